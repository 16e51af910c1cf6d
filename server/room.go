package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"geoarena/config"
	"geoarena/geo"
	"geoarena/logging"
	"geoarena/protocol"
)

// ErrRoomStopped 房间已停止
var ErrRoomStopped = errors.New("room stopped")

type roomClient struct {
	conn  Conn
	codec protocol.Codec
}

// Room 房间世界：持有注册表与所有连接
// 状态只在 Run 协程内修改，其他协程通过 inbox 与之通信
type Room struct {
	ID string

	registry *Registry
	clients  map[string]*roomClient
	inbox    chan any
	quit     chan struct{}
	stopOnce sync.Once

	snapshotEvery time.Duration
	metrics       *RoomMetrics
	log           *zap.SugaredLogger

	startOnce sync.Once
}

// NewRoom 按规则与领地布局创建房间，需调用 Start 开始处理
func NewRoom(id string, rules config.Rules, layout []protocol.Territory, snapshotEvery time.Duration) *Room {
	return &Room{
		ID:            id,
		registry:      NewRegistry(rules, layout),
		clients:       make(map[string]*roomClient),
		inbox:         make(chan any, 256),
		quit:          make(chan struct{}),
		snapshotEvery: snapshotEvery,
		metrics:       &RoomMetrics{},
		log:           logging.Log.With("room", id),
	}
}

// Connect 接入连接并返回玩家 id；客户端先收到 welcome，发送 join 后才成为玩家
func (r *Room) Connect(conn Conn, codec protocol.Codec) (string, error) {
	id := uuid.NewString()
	if !r.send(connect{ID: id, Conn: conn, Codec: codec}) {
		return "", ErrRoomStopped
	}
	return id, nil
}

// Deliver 把连接的一帧交给房间；阻塞直到入队，保证同一连接内的顺序
func (r *Room) Deliver(id string, data []byte) {
	r.send(inbound{ID: id, Data: data})
}

// RequestLeave 请求房间移除该连接及其玩家
func (r *Room) RequestLeave(id string) {
	r.send(disconnect{ID: id})
}

// Rules 返回当前规则
func (r *Room) Rules() (config.Rules, error) {
	return r.rules(nil)
}

// UpdateRules 应用 patch 并返回更新后的规则
func (r *Room) UpdateRules(patch RulesPatch) (config.Rules, error) {
	return r.rules(&patch)
}

func (r *Room) rules(patch *RulesPatch) (config.Rules, error) {
	reply := make(chan config.Rules, 1)
	if !r.send(rulesRequest{patch: patch, reply: reply}) {
		return config.Rules{}, ErrRoomStopped
	}
	select {
	case rules := <-reply:
		return rules, nil
	case <-r.quit:
		return config.Rules{}, ErrRoomStopped
	}
}

// Stats 返回连接数、玩家数与指标
func (r *Room) Stats() (RoomStats, error) {
	reply := make(chan RoomStats, 1)
	if !r.send(statsRequest{reply: reply}) {
		return RoomStats{}, ErrRoomStopped
	}
	select {
	case st := <-reply:
		return st, nil
	case <-r.quit:
		return RoomStats{}, ErrRoomStopped
	}
}

func (r *Room) send(cmd any) bool {
	select {
	case <-r.quit:
		return false
	default:
	}
	select {
	case r.inbox <- cmd:
		return true
	case <-r.quit:
		return false
	}
}

func (r *Room) handle(cmd any) {
	switch c := cmd.(type) {
	case connect:
		r.handleConnect(c)
	case inbound:
		r.handleInbound(c)
	case disconnect:
		r.handleDisconnect(c.ID)
	case rulesRequest:
		if c.patch != nil {
			r.registry.SetRules(c.patch.apply(r.registry.Rules()))
			r.log.Infof("rules updated: %+v", r.registry.Rules())
		}
		c.reply <- r.registry.Rules()
	case statsRequest:
		c.reply <- RoomStats{
			Room:         r.ID,
			Connections:  len(r.clients),
			Participants: r.registry.Len(),
			Metrics:      r.metrics.Snapshot(),
		}
	}
}

func (r *Room) handleConnect(c connect) {
	codec := c.Codec
	if codec == nil {
		codec = protocol.JSON
	}
	r.clients[c.ID] = &roomClient{conn: c.Conn, codec: codec}
	r.metrics.IncConnections()
	r.sendTo(c.ID, protocol.MsgWelcome, protocol.Welcome{ID: c.ID})
	r.log.Debugf("connection %s attached (codec=%s)", c.ID, codec.Name())
}

func (r *Room) handleDisconnect(id string) {
	c, ok := r.clients[id]
	if !ok {
		return
	}
	delete(r.clients, id)
	_ = c.conn.Close()

	released, err := r.registry.Leave(id)
	if err != nil {
		// 已连接但未 join
		return
	}
	r.metrics.IncLeaves()
	r.broadcast(protocol.MsgPlayerLeft, id, "")
	r.log.Infof("participant %s left, released territories %v", id, released)
}

// handleInbound 解码并应用客户端的一帧；格式错误或引用不存在的事件直接丢弃，不回复
func (r *Room) handleInbound(in inbound) {
	c, ok := r.clients[in.ID]
	if !ok {
		r.metrics.IncDropped()
		return
	}
	env, err := c.codec.DecodeEnvelope(in.Data)
	if err != nil {
		r.drop(in.ID, "envelope", err)
		return
	}

	switch env.T {
	case protocol.MsgJoin:
		req, err := protocol.DecodePayload[protocol.Join](c.codec, env)
		if err != nil {
			r.drop(in.ID, env.T, err)
			return
		}
		r.onJoin(in.ID, req)
	case protocol.MsgMove:
		pos, err := protocol.DecodePayload[geo.LatLng](c.codec, env)
		if err != nil {
			r.drop(in.ID, env.T, err)
			return
		}
		r.onMove(in.ID, pos)
	case protocol.MsgPlayerHit:
		req, err := protocol.DecodePayload[protocol.HitRequest](c.codec, env)
		if err != nil {
			r.drop(in.ID, env.T, err)
			return
		}
		r.onHit(in.ID, req)
	case protocol.MsgTerritoryCaptured:
		req, err := protocol.DecodePayload[protocol.CaptureRequest](c.codec, env)
		if err != nil {
			r.drop(in.ID, env.T, err)
			return
		}
		r.onCapture(in.ID, req)
	case protocol.MsgRespawn:
		pos, err := protocol.DecodePayload[geo.LatLng](c.codec, env)
		if err != nil {
			r.drop(in.ID, env.T, err)
			return
		}
		r.onRespawn(in.ID, pos)
	default:
		r.drop(in.ID, env.T, errors.New("unknown event"))
	}
}

func (r *Room) onJoin(id string, req protocol.Join) {
	p, err := r.registry.Join(id, req.Name, req.Position)
	if err != nil {
		r.drop(id, protocol.MsgJoin, err)
		return
	}
	r.metrics.IncJoins()
	r.metrics.IncAccepted()
	r.sendTo(id, protocol.MsgCurrentPlayers, r.registry.Roster())
	r.sendTo(id, protocol.MsgCurrentTerritories, r.registry.Territories())
	r.broadcast(protocol.MsgPlayerJoined, p, id)
	r.log.Infof("%s joined as %s", p.Name, id)
}

func (r *Room) onMove(id string, pos geo.LatLng) {
	if err := r.registry.Move(id, pos); err != nil {
		r.drop(id, protocol.MsgMove, err)
		return
	}
	r.metrics.IncAccepted()
	r.broadcast(protocol.MsgPlayerMoved, protocol.PlayerMoved{ID: id, Position: pos}, id)
}

func (r *Room) onHit(id string, req protocol.HitRequest) {
	out, err := r.registry.ReportHit(id, req.TargetID)
	if err != nil {
		r.drop(id, protocol.MsgPlayerHit, err)
		return
	}
	r.metrics.IncAccepted()
	r.metrics.IncHits()
	r.broadcast(protocol.MsgPlayerHit, out.Attacker, "")
	r.broadcast(protocol.MsgPlayerHit, out.Target, "")
	if out.Killed {
		r.log.Infof("%s eliminated %s, released %v", id, req.TargetID, out.Released)
	} else {
		r.log.Debugf("%s hit %s (projectile %s): %d / %d", id, req.TargetID, req.ProjectileID, out.Attacker.Score, out.Target.Score)
	}
}

func (r *Room) onCapture(id string, req protocol.CaptureRequest) {
	owner := req.OwnerID
	if owner == "" {
		owner = id
	}
	out, err := r.registry.CaptureTerritory(req.TerritoryID, owner)
	if err != nil {
		r.drop(id, protocol.MsgTerritoryCaptured, err)
		return
	}
	r.metrics.IncAccepted()
	r.metrics.IncCaptures()
	if out.Penalized != nil {
		r.broadcast(protocol.MsgPlayerHit, *out.Penalized, "")
	}
	r.broadcast(protocol.MsgTerritoryCaptured, out.Captured, "")
	r.log.Infof("%s captured %s, score %d", owner, req.TerritoryID, out.Captured.Score)
}

func (r *Room) onRespawn(id string, pos geo.LatLng) {
	resp, err := r.registry.Respawn(id, pos)
	if err != nil {
		r.drop(id, protocol.MsgRespawn, err)
		return
	}
	r.metrics.IncAccepted()
	r.metrics.IncRespawns()
	r.broadcast(protocol.MsgPlayerRespawned, resp, "")
}

func (r *Room) drop(id, event string, err error) {
	r.metrics.IncDropped()
	r.log.Debugf("dropped %s from %s: %v", event, id, err)
}

// sendTo 发送即忘，队列满或已关闭只计数
func (r *Room) sendTo(id, t string, payload any) {
	c, ok := r.clients[id]
	if !ok {
		return
	}
	b, err := c.codec.Encode(t, payload)
	if err != nil {
		r.log.Errorf("encode %s: %v", t, err)
		return
	}
	if err := c.conn.Send(b); err != nil {
		r.metrics.IncSendErrors()
	}
}

// broadcast 发给除 except 外的所有连接，每种编码只编码一次
func (r *Room) broadcast(t string, payload any, except string) {
	frames := make(map[string][]byte, 2)
	for id, c := range r.clients {
		if id == except {
			continue
		}
		b, ok := frames[c.codec.Name()]
		if !ok {
			var err error
			b, err = c.codec.Encode(t, payload)
			if err != nil {
				r.log.Errorf("encode %s: %v", t, err)
				return
			}
			frames[c.codec.Name()] = b
		}
		if err := c.conn.Send(b); err != nil {
			r.metrics.IncSendErrors()
		}
	}
}

// broadcastSnapshot 用全量权威状态重新同步所有连接，弥补丢失的增量事件
func (r *Room) broadcastSnapshot() {
	if len(r.clients) == 0 {
		return
	}
	r.broadcast(protocol.MsgSnapshot, protocol.Snapshot{
		Players:     r.registry.Roster(),
		Territories: r.registry.Territories(),
	}, "")
	r.metrics.IncSnapshots()
}

func (r *Room) shutdown() {
	for id, c := range r.clients {
		_ = c.conn.Close()
		delete(r.clients, id)
	}
}
