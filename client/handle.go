package client

import (
	"sort"
	"time"

	"geoarena/geo"
	"geoarena/protocol"
)

// Handle 应用一条服务端权威事件；未知事件或引用不存在的玩家、领地时忽略，
// 只返回载荷解码错误
func (e *Engine) Handle(now time.Time, codec protocol.Codec, env protocol.Envelope) error {
	switch env.T {
	case protocol.MsgWelcome:
		w, err := protocol.DecodePayload[protocol.Welcome](codec, env)
		if err != nil {
			return err
		}
		e.id = w.ID
	case protocol.MsgCurrentPlayers:
		players, err := protocol.DecodePayload[[]protocol.Participant](codec, env)
		if err != nil {
			return err
		}
		e.applyRoster(players)
	case protocol.MsgCurrentTerritories:
		terrs, err := protocol.DecodePayload[[]protocol.Territory](codec, env)
		if err != nil {
			return err
		}
		e.territories = terrs
		for i := range e.territories {
			if e.territories[i].OwnerID == e.id && e.id != "" {
				e.territories[i].CaptureProgress = 100
			}
		}
	case protocol.MsgPlayerJoined:
		p, err := protocol.DecodePayload[protocol.Participant](codec, env)
		if err != nil {
			return err
		}
		if p.ID != e.id {
			e.remotes[p.ID] = p
		}
	case protocol.MsgPlayerMoved:
		m, err := protocol.DecodePayload[protocol.PlayerMoved](codec, env)
		if err != nil {
			return err
		}
		if p, ok := e.remotes[m.ID]; ok {
			p.Position = m.Position
			e.remotes[m.ID] = p
		}
	case protocol.MsgPlayerHit:
		u, err := protocol.DecodePayload[protocol.HitUpdate](codec, env)
		if err != nil {
			return err
		}
		e.applyHit(now, u)
	case protocol.MsgTerritoryCaptured:
		u, err := protocol.DecodePayload[protocol.CaptureUpdate](codec, env)
		if err != nil {
			return err
		}
		e.applyCapture(now, u)
	case protocol.MsgPlayerLeft:
		id, err := protocol.DecodePayload[string](codec, env)
		if err != nil {
			return err
		}
		e.releaseTerritories(id)
		delete(e.remotes, id)
	case protocol.MsgPlayerRespawned:
		r, err := protocol.DecodePayload[protocol.Respawned](codec, env)
		if err != nil {
			return err
		}
		e.applyRespawned(r)
	case protocol.MsgSnapshot:
		s, err := protocol.DecodePayload[protocol.Snapshot](codec, env)
		if err != nil {
			return err
		}
		e.applySnapshot(now, s)
	default:
		e.log.Debugf("ignoring event %q", env.T)
	}
	return nil
}

func (e *Engine) applyRoster(players []protocol.Participant) {
	for _, p := range players {
		if p.ID == e.id {
			e.color = p.Color
			e.score = p.Score
			if p.MaxHealth > 0 {
				e.maxHealth = p.MaxHealth
			}
			continue
		}
		e.remotes[p.ID] = p
	}
}

func (e *Engine) applyHit(now time.Time, u protocol.HitUpdate) {
	if u.ID == e.id && e.id != "" {
		e.score = u.Score
		if u.Health != nil {
			e.health = *u.Health
			if e.health <= 0 {
				e.die(now)
			}
		}
		return
	}
	p, ok := e.remotes[u.ID]
	if !ok {
		return
	}
	p.Score = u.Score
	if u.Health != nil {
		p.Health = *u.Health
		if p.Health <= 0 && p.Alive {
			p.Alive = false
			e.remotes[u.ID] = p
			e.releaseTerritories(u.ID)
			e.addEffect(p.Position, now, EffectDeath)
			return
		}
	}
	e.remotes[u.ID] = p
}

// applyCapture 转移领地归属，重复应用不改变状态；他人占领时本地进度归零
func (e *Engine) applyCapture(now time.Time, u protocol.CaptureUpdate) {
	t := e.territory(u.TerritoryID)
	if t == nil {
		return
	}
	mine := u.OwnerID == e.id && e.id != ""
	if mine {
		e.score = u.Score
	} else if p, ok := e.remotes[u.OwnerID]; ok {
		p.Score = u.Score
		e.remotes[u.OwnerID] = p
	}
	if t.OwnerID == u.OwnerID {
		return
	}

	prev := t.OwnerID
	t.OwnerID = u.OwnerID
	if mine {
		t.CaptureProgress = 100
		e.addEffect(t.Position, now, EffectCapture)
	} else {
		t.CaptureProgress = 0
	}
	if p, ok := e.remotes[prev]; ok {
		p.Territories = without(p.Territories, u.TerritoryID)
		e.remotes[prev] = p
	}
	if p, ok := e.remotes[u.OwnerID]; ok {
		p.Territories = append(without(p.Territories, u.TerritoryID), u.TerritoryID)
		e.remotes[u.OwnerID] = p
	}
}

func (e *Engine) applyRespawned(r protocol.Respawned) {
	if r.ID == e.id && e.id != "" {
		// 本地已复活，以服务端血量为准
		e.awaitingRespawn = false
		e.health = r.Health
		return
	}
	p, ok := e.remotes[r.ID]
	if !ok {
		return
	}
	p.Alive = true
	p.Health = r.Health
	p.Position = r.Position
	e.remotes[r.ID] = p
}

// applySnapshot 以服务端视图替换远端玩家与领地归属，归属未变时保留本地占领进度
// 快照显示本地玩家已死亡时在此处死亡（复活尚未确认时除外）
func (e *Engine) applySnapshot(now time.Time, s protocol.Snapshot) {
	remotes := make(map[string]protocol.Participant, len(s.Players))
	for _, p := range s.Players {
		if p.ID == e.id && e.id != "" {
			e.score = p.Score
			if p.Alive {
				// 服务端已处理复活
				e.awaitingRespawn = false
			}
			if e.alive && !e.awaitingRespawn {
				if !p.Alive {
					e.die(now)
				} else if p.Health > 0 {
					e.health = p.Health
				}
			}
			continue
		}
		remotes[p.ID] = p
	}
	e.remotes = remotes

	for _, st := range s.Territories {
		t := e.territory(st.ID)
		if t == nil {
			e.territories = append(e.territories, st)
			continue
		}
		if t.OwnerID == st.OwnerID {
			continue
		}
		t.OwnerID = st.OwnerID
		if st.OwnerID == e.id && e.id != "" {
			t.CaptureProgress = 100
		} else {
			t.CaptureProgress = 0
		}
	}
}

func (e *Engine) territory(id string) *protocol.Territory {
	for i := range e.territories {
		if e.territories[i].ID == id {
			return &e.territories[i]
		}
	}
	return nil
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func (e *Engine) ID() string { return e.id }
func (e *Engine) Name() string { return e.name }
func (e *Engine) Color() string { return e.color }
func (e *Engine) Position() geo.LatLng { return e.pos }
func (e *Engine) Health() int { return e.health }
func (e *Engine) MaxHealth() int { return e.maxHealth }
func (e *Engine) Alive() bool { return e.alive }
func (e *Engine) Score() int { return e.score }

// Reloading 是否正在换弹
func (e *Engine) Reloading() bool { return e.reload.pending() }

// RespawnIn 距复活的剩余时间，存活时为 0
func (e *Engine) RespawnIn(now time.Time) time.Duration { return e.respawn.remaining(now) }

// Weapon 返回当前武器的副本
func (e *Engine) Weapon() (Weapon, bool) {
	w := e.inv.Weapon()
	if w == nil {
		return Weapon{}, false
	}
	return *w, true
}

func (e *Engine) Inventory() []Item { return e.inv.Items() }

// Remotes 按 id 升序返回已知的远端玩家
func (e *Engine) Remotes() []protocol.Participant {
	out := make([]protocol.Participant, 0, len(e.remotes))
	for _, p := range e.remotes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (e *Engine) Remote(id string) (protocol.Participant, bool) {
	p, ok := e.remotes[id]
	return p, ok
}

func (e *Engine) Territories() []protocol.Territory {
	return append([]protocol.Territory(nil), e.territories...)
}

func (e *Engine) Projectiles() []Projectile {
	return append([]Projectile(nil), e.projectiles...)
}

func (e *Engine) Effects() []Effect { return append([]Effect(nil), e.effects...) }

func (e *Engine) DroppedItems() []DroppedItem {
	out := make([]DroppedItem, len(e.dropped))
	for i, d := range e.dropped {
		d.Item = d.Item.clone()
		out[i] = d
	}
	return out
}

func (e *Engine) Notices() []Notice { return append([]Notice(nil), e.notices...) }
