package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"geoarena/logging"
)

// HandleRules 读取与热更新已存在房间的计分规则
// GET /admin/rules?room=arena  返回当前规则
// POST /admin/rules?room=arena 以 JSON 载荷更新部分字段
func (m *RoomManager) HandleRules(w http.ResponseWriter, r *http.Request) {
	room, ok := m.Room(r.URL.Query().Get("room"))
	if !ok {
		http.Error(w, "unknown room", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		rules, err := room.Rules()
		if err != nil {
			writeRoomError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rules)
	case http.MethodPost:
		var patch RulesPatch
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&patch); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		rules, err := room.UpdateRules(patch)
		if err != nil {
			writeRoomError(w, err)
			return
		}
		logging.Log.Infof("rules updated via admin: room=%s", room.ID)
		writeJSON(w, http.StatusOK, rules)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMetrics 输出指定房间的运行指标，未指定房间时输出全部房间
// GET /metrics?room=arena
func (m *RoomManager) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("room"); id != "" {
		room, ok := m.Room(id)
		if !ok {
			http.Error(w, "unknown room", http.StatusNotFound)
			return
		}
		st, err := room.Stats()
		if err != nil {
			writeRoomError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
		return
	}

	all := make([]RoomStats, 0)
	for _, id := range m.RoomIDs() {
		room, ok := m.Room(id)
		if !ok {
			continue
		}
		if st, err := room.Stats(); err == nil {
			all = append(all, st)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": all})
}

func writeRoomError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrRoomStopped) {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
