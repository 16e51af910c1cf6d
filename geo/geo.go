// Package geo 经纬度与局部平面米制坐标的换算
//
// 采用局部平面近似：纬度每度 111 320 米，经度每度 111 320·cos(lat) 米。
// 适用于一公里以内的场地，不适用于两极附近或长距离。
package geo

import (
	"math"
	"math/rand"
)

// MetersPerDegreeLat 纬度一度的长度（米）
const MetersPerDegreeLat = 111_320.0

// 经度比例低于该值视为 0（极点附近）
const minLngScale = 1e-6

// LatLng 经纬度坐标（度）
type LatLng struct {
	Lat float64 `json:"lat" msgpack:"lat"`
	Lng float64 `json:"lng" msgpack:"lng"`
}

// MetersPerDegreeLng 返回纬度 lat 处经度一度的长度（米）
func MetersPerDegreeLng(lat float64) float64 {
	return MetersPerDegreeLat * math.Cos(lat*math.Pi/180)
}

// MetersToOffset 把 originLat 处的东/北位移（米）换算为经纬度增量
func MetersToOffset(originLat, east, north float64) (dLat, dLng float64) {
	dLat = north / MetersPerDegreeLat
	perLng := MetersPerDegreeLng(originLat)
	if math.Abs(perLng) < minLngScale {
		return dLat, 0
	}
	return dLat, east / perLng
}

// OffsetToMeters 是 MetersToOffset 的逆运算
func OffsetToMeters(originLat, dLat, dLng float64) (north, east float64) {
	return dLat * MetersPerDegreeLat, dLng * MetersPerDegreeLng(originLat)
}

// Offset 将 p 向东/北移动若干米
func Offset(p LatLng, east, north float64) LatLng {
	dLat, dLng := MetersToOffset(p.Lat, east, north)
	return LatLng{Lat: p.Lat + dLat, Lng: p.Lng + dLng}
}

// Distance 以 a 为基准的平面距离（米）
func Distance(a, b LatLng) float64 {
	north, east := OffsetToMeters(a.Lat, b.Lat-a.Lat, b.Lng-a.Lng)
	return math.Sqrt(north*north + east*east)
}

// Bearing 从 from 指向 to 的方位角（弧度，以正东为 0，逆时针为正）
func Bearing(from, to LatLng) float64 {
	north, east := OffsetToMeters(from.Lat, to.Lat-from.Lat, to.Lng-from.Lng)
	return math.Atan2(north, east)
}

// RandomWithin 在 center 周围 radius 米内按均匀随机角度与距离取点
func RandomWithin(center LatLng, radius float64, rng *rand.Rand) LatLng {
	angle := rng.Float64() * 2 * math.Pi
	dist := rng.Float64() * radius
	return Offset(center, math.Cos(angle)*dist, math.Sin(angle)*dist)
}
