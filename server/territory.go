package server

import (
	"fmt"

	"geoarena/geo"
	"geoarena/protocol"
)

const (
	TerritoryRadius      = 50.0 // 米
	TerritoryCaptureTime = 5000 // 毫秒
)

var territoryColors = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4",
	"#FFEAA7", "#DDA0DD", "#98D8C8", "#F7DC6F",
}

// layoutOffsets 领地相对场地中心的偏移（东/北，米）
var layoutOffsets = [][2]float64{
	{10, 11},
	{-10, -11},
	{-10, 11},
}

// DefaultLayout 在 center 周围生成初始领地
func DefaultLayout(center geo.LatLng) []protocol.Territory {
	out := make([]protocol.Territory, 0, len(layoutOffsets))
	for i, off := range layoutOffsets {
		out = append(out, protocol.Territory{
			ID:            fmt.Sprintf("territory_%d", i+1),
			Position:      geo.Offset(center, off[0], off[1]),
			Radius:        TerritoryRadius,
			CaptureRadius: TerritoryRadius,
			Color:         territoryColors[i%len(territoryColors)],
			CaptureTimeMs: TerritoryCaptureTime,
		})
	}
	return out
}
