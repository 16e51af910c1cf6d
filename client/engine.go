package client

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"geoarena/geo"
	"geoarena/logging"
	"geoarena/protocol"
)

// Emitter 把引擎产生的结果发给服务端；发送即忘，错误只记录日志
type Emitter interface {
	EmitJoin(name string, pos geo.LatLng) error
	EmitMove(pos geo.LatLng) error
	EmitHit(targetID, projectileID string) error
	EmitCapture(territoryID, ownerID string) error
	EmitRespawn(pos geo.LatLng) error
}

type Options struct {
	Name       string
	Start      geo.LatLng
	AutoReload bool
	// Rand 决定复活位置，默认以当前时间为种子
	Rand *rand.Rand
	Log  *zap.SugaredLogger
}

// Engine 单个玩家的本地游戏状态；非并发安全，由 Runner 在单协程中驱动
type Engine struct {
	emit Emitter
	log  *zap.SugaredLogger
	rng  *rand.Rand

	id        string
	name      string
	color     string
	pos       geo.LatLng
	lastSent  geo.LatLng
	health    int
	maxHealth int
	alive     bool
	score     int

	// 已发送 respawn，尚未收到 playerRespawned
	awaitingRespawn bool

	remotes     map[string]protocol.Participant
	territories []protocol.Territory
	projectiles []Projectile
	effects     []Effect
	dropped     []DroppedItem
	notices     []Notice

	inv        Inventory
	autoReload bool
	reload     deadline
	respawn    deadline
}

func NewEngine(emit Emitter, opts Options) *Engine {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	log := opts.Log
	if log == nil {
		log = logging.Log
	}
	e := &Engine{
		emit:       emit,
		log:        log,
		rng:        rng,
		name:       opts.Name,
		pos:        opts.Start,
		lastSent:   opts.Start,
		health:     DefaultMaxHealth,
		maxHealth:  DefaultMaxHealth,
		alive:      true,
		remotes:    make(map[string]protocol.Participant),
		autoReload: opts.AutoReload,
	}
	e.giveStarterWeapon()
	return e
}

// Join 以当前位置宣告加入
func (e *Engine) Join() {
	e.send(e.emit.EmitJoin(e.name, e.pos), protocol.MsgJoin)
	e.lastSent = e.pos
}

// Frame 推进 dt：依次处理到期任务、移动、子弹与碰撞
func (e *Engine) Frame(now time.Time, dt time.Duration, in Input) {
	e.runTimers(now)
	e.move(dt, in)
	e.advanceProjectiles(dt)
	e.collide(now)
}

func (e *Engine) runTimers(now time.Time) {
	if e.reload.due(now) {
		if w := e.inv.Weapon(); w != nil {
			w.Ammo = w.MaxAmmo
			e.log.Debugf("reloaded %s", w.Name)
		}
	}
	if e.respawn.due(now) {
		e.respawnNow(now)
	}
}

func (e *Engine) move(dt time.Duration, in Input) {
	if !e.alive {
		return
	}
	step := PlayerSpeed * dt.Seconds()
	var east, north float64
	if in.Up {
		north += step
	}
	if in.Down {
		north -= step
	}
	if in.Right {
		east += step
	}
	if in.Left {
		east -= step
	}
	if east == 0 && north == 0 {
		return
	}
	e.pos = geo.Offset(e.pos, east, north)
	if geo.Distance(e.lastSent, e.pos) > MoveEpsilon {
		e.send(e.emit.EmitMove(e.pos), protocol.MsgMove)
		e.lastSent = e.pos
	}
}

func (e *Engine) advanceProjectiles(dt time.Duration) {
	kept := e.projectiles[:0]
	for _, p := range e.projectiles {
		step := p.Speed * dt.Seconds()
		p.Position = geo.Offset(p.Position, p.Direction.X*step, -p.Direction.Y*step)
		p.Traveled += step
		if p.Traveled < p.MaxRange {
			kept = append(kept, p)
		}
	}
	e.projectiles = kept
}

type target struct {
	id  string
	pos geo.LatLng
}

// targets 按命中检测顺序列出存活玩家：本地玩家优先，其余按 id 升序
func (e *Engine) targets() []target {
	out := make([]target, 0, len(e.remotes)+1)
	if e.alive && e.id != "" {
		out = append(out, target{id: e.id, pos: e.pos})
	}
	ids := make([]string, 0, len(e.remotes))
	for id, p := range e.remotes {
		if p.Alive {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		out = append(out, target{id: id, pos: e.remotes[id].Position})
	}
	return out
}

// collide 每颗子弹至多命中一人：targets() 顺序中第一个在 HitRadius 内且不是发射者的玩家
func (e *Engine) collide(now time.Time) {
	if len(e.projectiles) == 0 {
		return
	}
	targets := e.targets()
	kept := e.projectiles[:0]
	for _, p := range e.projectiles {
		hit := ""
		for _, t := range targets {
			if t.id == p.OwnerID {
				continue
			}
			if geo.Distance(p.Position, t.pos) <= HitRadius {
				hit = t.id
				break
			}
		}
		if hit == "" {
			kept = append(kept, p)
			continue
		}
		e.addEffect(p.Position, now, EffectHit)
		if p.OwnerID == e.id && e.alive {
			e.send(e.emit.EmitHit(hit, p.ID), protocol.MsgPlayerHit)
		}
		e.log.Debugf("projectile %s hit %s", p.ID, hit)
	}
	e.projectiles = kept
}

// CaptureTick 推进一次占领进度：存活且非主人时在占领半径内每次增加 100/(captureTime/tick)，
// 到 100 时发起占领；不在范围内则衰减。已拥有的领地跳过
func (e *Engine) CaptureTick() {
	for i := range e.territories {
		t := &e.territories[i]
		if e.id != "" && t.OwnerID == e.id {
			continue
		}
		radius := t.CaptureRadius
		if radius <= 0 {
			radius = t.Radius
		}
		if e.alive && geo.Distance(t.Position, e.pos) <= radius {
			t.CaptureProgress = math.Min(100, t.CaptureProgress+captureStep(t.CaptureTimeMs))
			if t.CaptureProgress >= 100 && e.id != "" {
				e.send(e.emit.EmitCapture(t.ID, e.id), protocol.MsgTerritoryCaptured)
			}
			continue
		}
		t.CaptureProgress = math.Max(0, t.CaptureProgress-CaptureDecay)
	}
}

func captureStep(captureTimeMs int64) float64 {
	ticks := float64(captureTimeMs) / float64(CaptureTickInterval.Milliseconds())
	if ticks <= 0 {
		return 100
	}
	return 100 / ticks
}

// Sweep 清理过期的特效、地上物品与提示
func (e *Engine) Sweep(now time.Time) {
	effects := e.effects[:0]
	for _, fx := range e.effects {
		if now.Sub(fx.At) <= EffectTTL {
			effects = append(effects, fx)
		}
	}
	e.effects = effects

	dropped := e.dropped[:0]
	for _, d := range e.dropped {
		if now.Sub(d.DroppedAt) <= DroppedItemTTL {
			dropped = append(dropped, d)
		}
	}
	e.dropped = dropped

	notices := e.notices[:0]
	for _, n := range e.notices {
		if now.Before(n.Until) {
			notices = append(notices, n)
		}
	}
	e.notices = notices
}

// Fire 以屏幕中心为基准，朝指针方向用当前武器开火
func (e *Engine) Fire(now time.Time, pointer, center Vec) (Projectile, error) {
	if !e.alive {
		return Projectile{}, ErrDead
	}
	w := e.inv.Weapon()
	if w == nil {
		return Projectile{}, ErrNoWeapon
	}
	if w.Ammo <= 0 {
		return Projectile{}, ErrNoAmmo
	}
	if e.reload.pending() {
		return Projectile{}, ErrReloading
	}
	if !w.cooledDown(now) {
		return Projectile{}, ErrCoolingDown
	}

	w.Ammo--
	w.LastShot = now
	p := Projectile{
		ID:        uuid.NewString(),
		Origin:    e.pos,
		Position:  e.pos,
		Direction: AimDirection(pointer, center),
		MaxRange:  w.Range,
		Speed:     ProjectileSpeed,
		SpawnedAt: now,
		OwnerID:   e.id,
		Damage:    w.Damage,
	}
	e.projectiles = append(e.projectiles, p)

	if w.Ammo == 0 && e.autoReload {
		e.reload.schedule(now.Add(w.Reload))
	}
	return p, nil
}

// Reload 经过换弹时间后补满当前武器
func (e *Engine) Reload(now time.Time) error {
	if !e.alive {
		return ErrDead
	}
	w := e.inv.Weapon()
	if w == nil {
		return ErrNoWeapon
	}
	if e.reload.pending() {
		return ErrReloading
	}
	if w.Ammo >= w.MaxAmmo {
		return ErrFullAmmo
	}
	e.reload.schedule(now.Add(w.Reload))
	return nil
}

// Drop 取出槽位中的物品并放在玩家当前位置
func (e *Engine) Drop(slot int, now time.Time) (DroppedItem, error) {
	if !e.alive {
		return DroppedItem{}, ErrDead
	}
	wasEquipped := e.inv.EquippedID()
	it, err := e.inv.Remove(slot)
	if err != nil {
		return DroppedItem{}, err
	}
	if it.ID == wasEquipped {
		e.reload.cancel()
	}
	d := DroppedItem{
		ID:        uuid.NewString(),
		Item:      it,
		Position:  e.pos,
		DroppedAt: now,
	}
	e.dropped = append(e.dropped, d)
	return d, nil
}

// Pickup 拾取 PickupRadius 内的地上物品；未装备武器时自动装备拾到的武器
func (e *Engine) Pickup(id string, now time.Time) error {
	if !e.alive {
		return ErrDead
	}
	idx := -1
	for i, d := range e.dropped {
		if d.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrUnknownItem
	}
	d := e.dropped[idx]
	if geo.Distance(e.pos, d.Position) > PickupRadius {
		return ErrOutOfRange
	}
	slot, err := e.inv.Add(d.Item)
	if err != nil {
		e.notify("inventory full", now)
		return err
	}
	e.dropped = append(e.dropped[:idx], e.dropped[idx+1:]...)
	if d.Item.Kind == ItemWeapon && e.inv.Weapon() == nil {
		_ = e.inv.Equip(slot)
	}
	return nil
}

// Equip 切换到槽位中的武器，并放弃正在进行的换弹
func (e *Engine) Equip(slot int) error {
	if !e.alive {
		return ErrDead
	}
	prev := e.inv.EquippedID()
	if err := e.inv.Equip(slot); err != nil {
		return err
	}
	if e.inv.EquippedID() != prev {
		e.reload.cancel()
	}
	return nil
}

// Disconnect 取消所有定时任务并停止本地活动
func (e *Engine) Disconnect() {
	e.reload.cancel()
	e.respawn.cancel()
	e.projectiles = nil
}

func (e *Engine) die(now time.Time) {
	if !e.alive {
		return
	}
	e.alive = false
	e.health = 0
	e.projectiles = nil
	e.inv.Clear()
	e.reload.cancel()
	e.releaseTerritories(e.id)
	e.addEffect(e.pos, now, EffectDeath)
	e.respawn.schedule(now.Add(RespawnDelay))
	e.log.Infof("%s eliminated, respawning in %s", e.name, RespawnDelay)
}

func (e *Engine) respawnNow(now time.Time) {
	e.pos = geo.RandomWithin(e.pos, RespawnRadius, e.rng)
	e.health = e.maxHealth
	e.alive = true
	e.reload.cancel()
	e.inv.Clear()
	e.giveStarterWeapon()
	e.send(e.emit.EmitRespawn(e.pos), protocol.MsgRespawn)
	e.awaitingRespawn = true
	e.lastSent = e.pos
	e.log.Infof("%s respawned at %.6f,%.6f", e.name, e.pos.Lat, e.pos.Lng)
}

func (e *Engine) giveStarterWeapon() {
	slot, err := e.inv.Add(WeaponItem(Pistol))
	if err == nil {
		_ = e.inv.Equip(slot)
	}
}

// releaseTerritories 在本地清除 owner 拥有的全部领地
func (e *Engine) releaseTerritories(owner string) {
	if owner == "" {
		return
	}
	for i := range e.territories {
		if e.territories[i].OwnerID == owner {
			e.territories[i].OwnerID = ""
			e.territories[i].CaptureProgress = 0
		}
	}
	if p, ok := e.remotes[owner]; ok {
		p.Territories = nil
		e.remotes[owner] = p
	}
}

func (e *Engine) addEffect(pos geo.LatLng, now time.Time, kind EffectKind) {
	e.effects = append(e.effects, Effect{ID: uuid.NewString(), Position: pos, At: now, Kind: kind})
}

func (e *Engine) notify(text string, now time.Time) {
	e.notices = append(e.notices, Notice{Text: text, Until: now.Add(NoticeTTL)})
}

func (e *Engine) send(err error, event string) {
	if err != nil {
		e.log.Debugf("emit %s: %v", event, err)
	}
}
