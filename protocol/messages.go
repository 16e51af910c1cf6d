package protocol

import "geoarena/geo"

type Welcome struct {
	ID string `json:"id" msgpack:"id"`
}

type Join struct {
	Name     string     `json:"name" msgpack:"name"`
	Position geo.LatLng `json:"position" msgpack:"position"`
}

// Participant 玩家列表中的一项
type Participant struct {
	ID          string     `json:"id" msgpack:"id"`
	Name        string     `json:"name" msgpack:"name"`
	Color       string     `json:"color" msgpack:"color"`
	Position    geo.LatLng `json:"position" msgpack:"position"`
	Health      int        `json:"health" msgpack:"health"`
	MaxHealth   int        `json:"maxHealth" msgpack:"maxHealth"`
	Alive       bool       `json:"isAlive" msgpack:"isAlive"`
	Score       int        `json:"score" msgpack:"score"`
	Territories []string   `json:"territories" msgpack:"territories"`
}

// Territory 可占领区域的共享描述，OwnerID 为空表示无主
type Territory struct {
	ID              string     `json:"id" msgpack:"id"`
	Position        geo.LatLng `json:"position" msgpack:"position"`
	Radius          float64    `json:"radius" msgpack:"radius"`
	CaptureRadius   float64    `json:"captureRadius" msgpack:"captureRadius"`
	OwnerID         string     `json:"ownerId,omitempty" msgpack:"ownerId,omitempty"`
	CaptureProgress float64    `json:"captureProgress" msgpack:"captureProgress"`
	Color           string     `json:"color" msgpack:"color"`
	CaptureTimeMs   int64      `json:"captureTime" msgpack:"captureTime"`
}

type PlayerMoved struct {
	ID       string     `json:"id" msgpack:"id"`
	Position geo.LatLng `json:"position" msgpack:"position"`
}

type HitRequest struct {
	TargetID     string `json:"targetId" msgpack:"targetId"`
	ProjectileID string `json:"projectileId" msgpack:"projectileId"`
}

// HitUpdate 玩家的新分数；只有受伤的一方携带 Health
type HitUpdate struct {
	ID     string `json:"id" msgpack:"id"`
	Score  int    `json:"score" msgpack:"score"`
	Health *int   `json:"health,omitempty" msgpack:"health,omitempty"`
}

type CaptureRequest struct {
	TerritoryID string `json:"territoryId" msgpack:"territoryId"`
	OwnerID     string `json:"ownerId" msgpack:"ownerId"`
}

type CaptureUpdate struct {
	TerritoryID string `json:"territoryId" msgpack:"territoryId"`
	OwnerID     string `json:"ownerId" msgpack:"ownerId"`
	Score       int    `json:"score" msgpack:"score"`
}

type Respawned struct {
	ID       string     `json:"id" msgpack:"id"`
	Position geo.LatLng `json:"position" msgpack:"position"`
	Health   int        `json:"health" msgpack:"health"`
}

// Snapshot 周期性的全量状态同步
type Snapshot struct {
	Players     []Participant `json:"players" msgpack:"players"`
	Territories []Territory   `json:"territories" msgpack:"territories"`
}

// IntPtr 可选整数字段的辅助函数
func IntPtr(v int) *int { return &v }
