package server

import (
	"sync/atomic"
)

// RoomMetrics 记录房间运行期的关键指标（用于监控与调试）
type RoomMetrics struct {
	Connections    int64 // 接入的连接数
	Joins          int64
	Leaves         int64
	Accepted       int64 // 已生效的客户端事件
	Dropped        int64 // 格式错误、引用不存在或被拒绝的事件
	Hits           int64
	Captures       int64
	Respawns       int64
	SendErrors     int64 // 未能入队的帧（队列满或连接已关闭）
	Snapshots      int64
	HandledCount   int64
	TotalHandledNs int64
}

func (m *RoomMetrics) IncConnections() { atomic.AddInt64(&m.Connections, 1) }
func (m *RoomMetrics) IncJoins() { atomic.AddInt64(&m.Joins, 1) }
func (m *RoomMetrics) IncLeaves() { atomic.AddInt64(&m.Leaves, 1) }
func (m *RoomMetrics) IncAccepted() { atomic.AddInt64(&m.Accepted, 1) }
func (m *RoomMetrics) IncDropped() { atomic.AddInt64(&m.Dropped, 1) }
func (m *RoomMetrics) IncHits() { atomic.AddInt64(&m.Hits, 1) }
func (m *RoomMetrics) IncCaptures() { atomic.AddInt64(&m.Captures, 1) }
func (m *RoomMetrics) IncRespawns() { atomic.AddInt64(&m.Respawns, 1) }
func (m *RoomMetrics) IncSendErrors() { atomic.AddInt64(&m.SendErrors, 1) }
func (m *RoomMetrics) IncSnapshots() { atomic.AddInt64(&m.Snapshots, 1) }
func (m *RoomMetrics) AddHandled(ns int64) {
	atomic.AddInt64(&m.HandledCount, 1)
	atomic.AddInt64(&m.TotalHandledNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RoomMetrics) Snapshot() map[string]any {
	handled := atomic.LoadInt64(&m.HandledCount)
	total := atomic.LoadInt64(&m.TotalHandledNs)
	var avgUs float64
	if handled > 0 {
		avgUs = float64(total) / float64(handled) / 1e3
	}
	return map[string]any{
		"connections":    atomic.LoadInt64(&m.Connections),
		"joins":          atomic.LoadInt64(&m.Joins),
		"leaves":         atomic.LoadInt64(&m.Leaves),
		"accepted":       atomic.LoadInt64(&m.Accepted),
		"dropped":        atomic.LoadInt64(&m.Dropped),
		"hits":           atomic.LoadInt64(&m.Hits),
		"captures":       atomic.LoadInt64(&m.Captures),
		"respawns":       atomic.LoadInt64(&m.Respawns),
		"send_errors":    atomic.LoadInt64(&m.SendErrors),
		"snapshots":      atomic.LoadInt64(&m.Snapshots),
		"handled":        handled,
		"avg_handled_us": avgUs,
	}
}
