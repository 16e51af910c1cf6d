package client

import (
	"math"

	"geoarena/geo"
)

// aimDeadZone 指针距屏幕中心小于该距离（像素）时视为未瞄准
const aimDeadZone = 5.0

// DefaultAim 屏幕上朝北
var DefaultAim = Vec{X: 0, Y: -1}

// AimDirection 返回屏幕中心指向指针的单位向量
// 指针在原点、死区内或坐标非有限值时返回 DefaultAim
func AimDirection(pointer, center Vec) Vec {
	if pointer == (Vec{}) {
		return DefaultAim
	}
	dx, dy := pointer.X-center.X, pointer.Y-center.Y
	l := math.Hypot(dx, dy)
	if math.IsNaN(l) || math.IsInf(l, 0) || l < aimDeadZone {
		return DefaultAim
	}
	return Vec{X: dx / l, Y: dy / l}
}

// ScreenDirection 从一个地图位置指向另一个位置的屏幕单位向量
func ScreenDirection(from, to geo.LatLng) Vec {
	north, east := geo.OffsetToMeters(from.Lat, to.Lat-from.Lat, to.Lng-from.Lng)
	l := math.Hypot(east, north)
	if l == 0 {
		return DefaultAim
	}
	return Vec{X: east / l, Y: -north / l}
}
