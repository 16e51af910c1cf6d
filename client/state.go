// Package client 单个玩家的本地模拟与预测：移动、子弹、碰撞、领地占领进度、武器与背包，
// 并以服务端推送的事件为准进行校正
package client

import (
	"time"

	"geoarena/geo"
)

const (
	PlayerSpeed     = 120.0 // 米/秒
	ProjectileSpeed = 300.0 // 米/秒
	HitRadius       = 2.0   // 米
	MoveEpsilon     = 1.0   // 移动超过该距离（米）才上报位置
	PickupRadius    = 3.0   // 米
	RespawnRadius   = 100.0 // 以死亡位置为圆心（米）
	CaptureDecay    = 2.0   // 离开领地后每次 tick 衰减的进度

	CaptureTickInterval = 100 * time.Millisecond
	SweepInterval       = 100 * time.Millisecond
	RespawnDelay        = 3 * time.Second
	EffectTTL           = time.Second
	DroppedItemTTL      = 60 * time.Second
	NoticeTTL           = 2 * time.Second

	DefaultMaxHealth = 100
)

// Input 一帧内按住的方向
type Input struct {
	Up, Down, Left, Right bool
}

// Vec 屏幕坐标向量，Y 轴向下
type Vec struct {
	X, Y float64
}

type Projectile struct {
	ID        string
	Origin    geo.LatLng
	Position  geo.LatLng
	Direction Vec
	Traveled  float64
	MaxRange  float64
	Speed     float64
	SpawnedAt time.Time
	OwnerID   string
	Damage    int
}

type EffectKind string

const (
	EffectHit     EffectKind = "hit"
	EffectCapture EffectKind = "capture"
	EffectDeath   EffectKind = "death"
)

// Effect 短暂的视觉标记
type Effect struct {
	ID       string
	Position geo.LatLng
	At       time.Time
	Kind     EffectKind
}

// DroppedItem 地上的物品，直到被拾取或过期
type DroppedItem struct {
	ID        string
	Item      Item
	Position  geo.LatLng
	DroppedAt time.Time
}

// Notice 给玩家的临时提示
type Notice struct {
	Text  string
	Until time.Time
}
