package client

import "time"

type WeaponType string

const (
	Pistol  WeaponType = "pistol"
	Rifle   WeaponType = "rifle"
	Sniper  WeaponType = "sniper"
	Shotgun WeaponType = "shotgun"
)

// Weapon 一把枪的状态，首次开火前 LastShot 为零值
type Weapon struct {
	Type     WeaponType
	Name     string
	Ammo     int
	MaxAmmo  int
	Reload   time.Duration
	FireRate time.Duration // 两次开火的最小间隔
	Damage   int
	Range    float64 // 米
	LastShot time.Time
}

var weaponCatalog = map[WeaponType]Weapon{
	Pistol:  {Type: Pistol, Name: "Pistol", MaxAmmo: 5, Reload: 2000 * time.Millisecond, FireRate: 200 * time.Millisecond, Damage: 25, Range: 30},
	Rifle:   {Type: Rifle, Name: "Rifle", MaxAmmo: 30, Reload: 3000 * time.Millisecond, FireRate: 100 * time.Millisecond, Damage: 35, Range: 50},
	Sniper:  {Type: Sniper, Name: "Sniper", MaxAmmo: 5, Reload: 4000 * time.Millisecond, FireRate: 500 * time.Millisecond, Damage: 100, Range: 100},
	Shotgun: {Type: Shotgun, Name: "Shotgun", MaxAmmo: 8, Reload: 3500 * time.Millisecond, FireRate: 300 * time.Millisecond, Damage: 50, Range: 20},
}

// NewWeapon 返回满弹的指定类型武器
func NewWeapon(t WeaponType) (Weapon, bool) {
	w, ok := weaponCatalog[t]
	if !ok {
		return Weapon{}, false
	}
	w.Ammo = w.MaxAmmo
	return w, true
}

func (w *Weapon) cooledDown(now time.Time) bool {
	return w.LastShot.IsZero() || now.Sub(w.LastShot) >= w.FireRate
}
