package server

import (
	"fmt"
	"math"
	"time"

	"geoarena/geo"
	"geoarena/protocol"
)

// participant 注册表中玩家的权威记录
type participant struct {
	id     string
	name   string
	color  string
	pos    geo.LatLng
	health int
	alive  bool
	score  int
	// 已占领的领地 id，按占领顺序
	territories []string
	lastMove    time.Time
}

func (p *participant) snapshot(maxHealth int) protocol.Participant {
	owned := make([]string, len(p.territories))
	copy(owned, p.territories)
	return protocol.Participant{
		ID:          p.id,
		Name:        p.name,
		Color:       p.color,
		Position:    p.pos,
		Health:      p.health,
		MaxHealth:   maxHealth,
		Alive:       p.alive,
		Score:       p.score,
		Territories: owned,
	}
}

func (p *participant) owns(tid string) bool {
	for _, id := range p.territories {
		if id == tid {
			return true
		}
	}
	return false
}

func (p *participant) addTerritory(tid string) {
	if !p.owns(tid) {
		p.territories = append(p.territories, tid)
	}
}

func (p *participant) removeTerritory(tid string) {
	kept := p.territories[:0]
	for _, id := range p.territories {
		if id != tid {
			kept = append(kept, id)
		}
	}
	p.territories = kept
}

// territory 可占领区域：有主时进度为 100，否则为 0
type territory struct {
	protocol.Territory
}

// goldenAngle 让相邻序号的色相在色环上尽量分散
const goldenAngle = 137.50776405003785

// ColorFor 由加入序号推导玩家颜色（纯函数，相同输入得到相同颜色）
func ColorFor(seq uint64) string {
	hue := math.Mod(float64(seq)*goldenAngle, 360)
	return fmt.Sprintf("hsl(%d, 70%%, 50%%)", int(hue))
}

func floorZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
