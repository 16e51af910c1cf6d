package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"geoarena/config"
	"geoarena/protocol"
)

func newTestServer(t *testing.T) (*httptest.Server, *RoomManager) {
	t.Helper()
	cfg := config.Default()
	cfg.SnapshotInterval = 0
	cfg.ArenaCenter = origin
	rm := NewRoomManager(cfg)

	mux := http.NewServeMux()
	mux.Handle("/ws", NewWSHandler(rm, cfg.AllowedOrigins))
	mux.HandleFunc("/admin/rules", rm.HandleRules)
	mux.HandleFunc("/metrics", rm.HandleMetrics)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		rm.Close()
	})
	return srv, rm
}

func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readUntil(t *testing.T, ws *websocket.Conn, codec protocol.Codec, want string) protocol.Envelope {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		kind, b, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("read waiting for %s: %v", want, err)
		}
		if codec.Binary() != (kind == websocket.BinaryMessage) {
			t.Fatalf("frame kind %d does not match codec %s", kind, codec.Name())
		}
		env, err := codec.DecodeEnvelope(b)
		if err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		if env.T == want {
			return env
		}
	}
}

func writeFrame(t *testing.T, ws *websocket.Conn, codec protocol.Codec, typ string, payload any) {
	t.Helper()
	b, err := codec.Encode(typ, payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	kind := websocket.TextMessage
	if codec.Binary() {
		kind = websocket.BinaryMessage
	}
	if err := ws.WriteMessage(kind, b); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestWebsocketSessionAcrossCodecs(t *testing.T) {
	srv, _ := newTestServer(t)

	packed := dialWS(t, srv, "room=it&codec=msgpack")
	welcome, err := protocol.DecodePayload[protocol.Welcome](protocol.Msgpack, readUntil(t, packed, protocol.Msgpack, protocol.MsgWelcome))
	if err != nil || welcome.ID == "" {
		t.Fatalf("welcome = %+v (%v)", welcome, err)
	}
	writeFrame(t, packed, protocol.Msgpack, protocol.MsgJoin, protocol.Join{Name: "packed", Position: origin})
	readUntil(t, packed, protocol.Msgpack, protocol.MsgCurrentTerritories)

	plain := dialWS(t, srv, "room=it")
	plainID, err := protocol.DecodePayload[protocol.Welcome](protocol.JSON, readUntil(t, plain, protocol.JSON, protocol.MsgWelcome))
	if err != nil {
		t.Fatalf("welcome: %v", err)
	}
	writeFrame(t, plain, protocol.JSON, protocol.MsgJoin, protocol.Join{Name: "plain", Position: origin})
	players, err := protocol.DecodePayload[[]protocol.Participant](protocol.JSON, readUntil(t, plain, protocol.JSON, protocol.MsgCurrentPlayers))
	if err != nil || len(players) != 2 {
		t.Fatalf("currentPlayers = %+v (%v)", players, err)
	}

	joined, err := protocol.DecodePayload[protocol.Participant](protocol.Msgpack, readUntil(t, packed, protocol.Msgpack, protocol.MsgPlayerJoined))
	if err != nil || joined.ID != plainID.ID {
		t.Fatalf("playerJoined = %+v (%v)", joined, err)
	}

	_ = plain.Close()
	left, err := protocol.DecodePayload[string](protocol.Msgpack, readUntil(t, packed, protocol.Msgpack, protocol.MsgPlayerLeft))
	if err != nil || left != plainID.ID {
		t.Fatalf("playerLeft = %q (%v)", left, err)
	}
}

func TestWebsocketRejectsForeignOrigin(t *testing.T) {
	srv, _ := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	h := http.Header{}
	h.Set("Origin", "http://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(url, h)
	if err == nil {
		t.Fatalf("dial with foreign origin succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("response = %+v, want 403", resp)
	}
}

func TestOriginChecker(t *testing.T) {
	check := OriginChecker([]string{"http://localhost:5173/"})
	cases := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"HTTP://LOCALHOST:5173", true},
		{"http://localhost:9999", false},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if c.origin != "" {
			req.Header.Set("Origin", c.origin)
		}
		if got := check(req); got != c.want {
			t.Errorf("origin %q: got %v, want %v", c.origin, got, c.want)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "http://anything")
	if !OriginChecker([]string{"*"})(req) {
		t.Errorf("wildcard rejected origin")
	}
}

func TestAdminRulesRoundTrip(t *testing.T) {
	srv, rm := newTestServer(t)
	rm.GetOrCreateRoom("admin")

	resp, err := http.Post(srv.URL+"/admin/rules?room=admin", "application/json",
		bytes.NewBufferString(`{"captureBonus":80,"maxSpeed":12.5}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	get, err := http.Get(srv.URL + "/admin/rules?room=admin")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer get.Body.Close()
	var rules config.Rules
	if err := json.NewDecoder(get.Body).Decode(&rules); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rules.CaptureBonus != 80 || rules.MaxSpeed != 12.5 || rules.HitBonus != 10 {
		t.Fatalf("rules = %+v", rules)
	}

	bad, err := http.Post(srv.URL+"/admin/rules?room=admin", "application/json", bytes.NewBufferString(`{"step":1}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d, want 400", bad.StatusCode)
	}
}

func TestAdminRulesUnknownRoom(t *testing.T) {
	srv, rm := newTestServer(t)

	get, err := http.Get(srv.URL + "/admin/rules?room=typo")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	get.Body.Close()
	if get.StatusCode != http.StatusNotFound {
		t.Fatalf("get status = %d, want 404", get.StatusCode)
	}
	post, err := http.Post(srv.URL+"/admin/rules?room=typo", "application/json", bytes.NewBufferString(`{"hitBonus":1}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	post.Body.Close()
	if post.StatusCode != http.StatusNotFound {
		t.Fatalf("post status = %d, want 404", post.StatusCode)
	}
	if _, ok := rm.Room("typo"); ok {
		t.Fatalf("admin request created a room")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, rm := newTestServer(t)
	rm.GetOrCreateRoom("m1")

	resp, err := http.Get(srv.URL + "/metrics?room=m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var st RoomStats
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Room != "m1" || st.Participants != 0 {
		t.Fatalf("stats = %+v", st)
	}

	missing, err := http.Get(srv.URL + "/metrics?room=nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown room status = %d, want 404", missing.StatusCode)
	}
}
