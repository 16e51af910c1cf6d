package server

import (
	"errors"
	"time"

	"geoarena/config"
	"geoarena/geo"
	"geoarena/protocol"
)

var (
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrUnknownTerritory   = errors.New("unknown territory")
	ErrSelfHit            = errors.New("participant cannot hit itself")
	ErrTargetDown         = errors.New("target is not alive")
	ErrActorDown          = errors.New("participant is not alive")
	ErrAlreadyJoined      = errors.New("participant already joined")
	ErrAlreadyOwner       = errors.New("territory already owned by participant")
	ErrNotDead            = errors.New("participant is alive")
	ErrImplausible        = errors.New("report fails plausibility check")
)

// moveSlack 移动距离允许超出 MaxSpeed·elapsed 的余量（米），吸收帧与到达时间的抖动
const moveSlack = 1.0

// HitOutcome 一次有效命中带来的分数变化
type HitOutcome struct {
	Attacker protocol.HitUpdate
	Target   protocol.HitUpdate
	Killed   bool
	Released []string
}

// CaptureOutcome 一次有效占领；原主人失去领地时设置 Penalized
type CaptureOutcome struct {
	Captured  protocol.CaptureUpdate
	Penalized *protocol.HitUpdate
}

// Registry 玩家、领地与分数的唯一权威来源
// 非并发安全，由房间协程独占
type Registry struct {
	rules config.Rules

	participants map[string]*participant
	order        []string // 加入顺序

	territories    map[string]*territory
	territoryOrder []string

	joins uint64
	now   func() time.Time
}

// NewRegistry 以给定领地创建注册表，领地初始无主
func NewRegistry(rules config.Rules, layout []protocol.Territory) *Registry {
	r := &Registry{
		rules:        rules,
		participants: make(map[string]*participant),
		territories:  make(map[string]*territory, len(layout)),
		now:          time.Now,
	}
	for _, t := range layout {
		if _, dup := r.territories[t.ID]; dup {
			continue
		}
		t.OwnerID = ""
		t.CaptureProgress = 0
		r.territories[t.ID] = &territory{Territory: t}
		r.territoryOrder = append(r.territoryOrder, t.ID)
	}
	return r
}

func (r *Registry) Rules() config.Rules { return r.rules }

func (r *Registry) SetRules(rules config.Rules) { r.rules = rules }

func (r *Registry) Len() int { return len(r.participants) }

// Join 创建满血、零分、无领地的玩家
func (r *Registry) Join(id, name string, pos geo.LatLng) (protocol.Participant, error) {
	if id == "" {
		return protocol.Participant{}, ErrUnknownParticipant
	}
	if _, ok := r.participants[id]; ok {
		return protocol.Participant{}, ErrAlreadyJoined
	}
	r.joins++
	p := &participant{
		id:       id,
		name:     name,
		color:    ColorFor(r.joins),
		pos:      pos,
		health:   r.rules.MaxHealth,
		alive:    true,
		lastMove: r.now(),
	}
	r.participants[id] = p
	r.order = append(r.order, id)
	return p.snapshot(r.rules.MaxHealth), nil
}

// Move 保存上报的位置；未设置 MaxSpeed 时完全信任客户端
func (r *Registry) Move(id string, pos geo.LatLng) error {
	p, ok := r.participants[id]
	if !ok {
		return ErrUnknownParticipant
	}
	now := r.now()
	if r.rules.MaxSpeed > 0 {
		allowed := r.rules.MaxSpeed*now.Sub(p.lastMove).Seconds() + moveSlack
		if geo.Distance(p.pos, pos) > allowed {
			return ErrImplausible
		}
	}
	p.pos = pos
	p.lastMove = now
	return nil
}

// ReportHit 攻击者加分、目标扣分（不低于 0），双方都必须存活
// HitDamage > 0 时目标同时扣血，归零即死亡并释放领地
func (r *Registry) ReportHit(attackerID, targetID string) (HitOutcome, error) {
	if attackerID == targetID {
		return HitOutcome{}, ErrSelfHit
	}
	attacker, ok := r.participants[attackerID]
	if !ok {
		return HitOutcome{}, ErrUnknownParticipant
	}
	target, ok := r.participants[targetID]
	if !ok {
		return HitOutcome{}, ErrUnknownParticipant
	}
	if !attacker.alive {
		return HitOutcome{}, ErrActorDown
	}
	if !target.alive {
		return HitOutcome{}, ErrTargetDown
	}
	if r.rules.MaxHitRange > 0 && geo.Distance(attacker.pos, target.pos) > r.rules.MaxHitRange {
		return HitOutcome{}, ErrImplausible
	}

	attacker.score += r.rules.HitBonus
	target.score = floorZero(target.score - r.rules.HitPenalty)

	out := HitOutcome{
		Attacker: protocol.HitUpdate{ID: attacker.id, Score: attacker.score},
		Target:   protocol.HitUpdate{ID: target.id, Score: target.score},
	}
	if r.rules.HitDamage > 0 {
		target.health = floorZero(target.health - r.rules.HitDamage)
		out.Target.Health = protocol.IntPtr(target.health)
		if target.health == 0 {
			target.alive = false
			out.Killed = true
			out.Released = r.releaseAll(target)
		}
	}
	return out, nil
}

// CaptureTerritory 把领地转给存活的 ownerID
// 已是主人时不做任何改变，返回 ErrAlreadyOwner
func (r *Registry) CaptureTerritory(territoryID, ownerID string) (CaptureOutcome, error) {
	t, ok := r.territories[territoryID]
	if !ok {
		return CaptureOutcome{}, ErrUnknownTerritory
	}
	owner, ok := r.participants[ownerID]
	if !ok {
		return CaptureOutcome{}, ErrUnknownParticipant
	}
	if !owner.alive {
		return CaptureOutcome{}, ErrActorDown
	}
	if t.OwnerID == ownerID {
		return CaptureOutcome{}, ErrAlreadyOwner
	}

	var out CaptureOutcome
	if t.OwnerID != "" {
		if prev, ok := r.participants[t.OwnerID]; ok {
			prev.removeTerritory(territoryID)
			prev.score = floorZero(prev.score - r.rules.CapturePenalty)
			out.Penalized = &protocol.HitUpdate{ID: prev.id, Score: prev.score}
		}
	}

	t.OwnerID = ownerID
	t.CaptureProgress = 100
	owner.addTerritory(territoryID)
	owner.score += r.rules.CaptureBonus

	out.Captured = protocol.CaptureUpdate{TerritoryID: territoryID, OwnerID: ownerID, Score: owner.score}
	return out, nil
}

// Leave 移除玩家并释放其全部领地
func (r *Registry) Leave(id string) ([]string, error) {
	p, ok := r.participants[id]
	if !ok {
		return nil, ErrUnknownParticipant
	}
	released := r.releaseAll(p)
	delete(r.participants, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return released, nil
}

// Respawn 让死亡玩家在 pos 满血复活
func (r *Registry) Respawn(id string, pos geo.LatLng) (protocol.Respawned, error) {
	p, ok := r.participants[id]
	if !ok {
		return protocol.Respawned{}, ErrUnknownParticipant
	}
	if p.alive {
		return protocol.Respawned{}, ErrNotDead
	}
	p.alive = true
	p.health = r.rules.MaxHealth
	p.pos = pos
	p.lastMove = r.now()
	return protocol.Respawned{ID: id, Position: pos, Health: p.health}, nil
}

func (r *Registry) releaseAll(p *participant) []string {
	released := make([]string, 0, len(p.territories))
	for _, tid := range p.territories {
		if t, ok := r.territories[tid]; ok && t.OwnerID == p.id {
			t.OwnerID = ""
			t.CaptureProgress = 0
			released = append(released, tid)
		}
	}
	p.territories = nil
	return released
}

// Participant 返回单个玩家的副本
func (r *Registry) Participant(id string) (protocol.Participant, bool) {
	p, ok := r.participants[id]
	if !ok {
		return protocol.Participant{}, false
	}
	return p.snapshot(r.rules.MaxHealth), true
}

// Roster 按加入顺序返回所有玩家的副本
func (r *Registry) Roster() []protocol.Participant {
	out := make([]protocol.Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.participants[id].snapshot(r.rules.MaxHealth))
	}
	return out
}

// Territory 返回单个领地的副本
func (r *Registry) Territory(id string) (protocol.Territory, bool) {
	t, ok := r.territories[id]
	if !ok {
		return protocol.Territory{}, false
	}
	return t.Territory, true
}

// Territories 按布局顺序返回所有领地的副本
func (r *Registry) Territories() []protocol.Territory {
	out := make([]protocol.Territory, 0, len(r.territoryOrder))
	for _, id := range r.territoryOrder {
		out = append(out, r.territories[id].Territory)
	}
	return out
}
