package server

import (
	"geoarena/config"
	"geoarena/protocol"
)

// Conn 客户端连接的发送端
type Conn interface {
	Send([]byte) error
	Close() error
}

// 以下命令由房间协程按到达顺序逐条处理

// connect 以连接级 id 注册一个传输连接
type connect struct {
	ID    string
	Conn  Conn
	Codec protocol.Codec
}

// inbound 从连接读到的一帧原始数据
type inbound struct {
	ID   string
	Data []byte
}

// disconnect 读协程退出时发出
type disconnect struct {
	ID string
}

// RulesPatch 部分更新规则，nil 字段保持不变
type RulesPatch struct {
	HitBonus       *int     `json:"hitBonus,omitempty"`
	HitPenalty     *int     `json:"hitPenalty,omitempty"`
	CaptureBonus   *int     `json:"captureBonus,omitempty"`
	CapturePenalty *int     `json:"capturePenalty,omitempty"`
	HitDamage      *int     `json:"hitDamage,omitempty"`
	MaxSpeed       *float64 `json:"maxSpeed,omitempty"`
	MaxHitRange    *float64 `json:"maxHitRange,omitempty"`
}

func (p RulesPatch) apply(r config.Rules) config.Rules {
	if p.HitBonus != nil {
		r.HitBonus = *p.HitBonus
	}
	if p.HitPenalty != nil {
		r.HitPenalty = *p.HitPenalty
	}
	if p.CaptureBonus != nil {
		r.CaptureBonus = *p.CaptureBonus
	}
	if p.CapturePenalty != nil {
		r.CapturePenalty = *p.CapturePenalty
	}
	if p.HitDamage != nil {
		r.HitDamage = *p.HitDamage
	}
	if p.MaxSpeed != nil {
		r.MaxSpeed = *p.MaxSpeed
	}
	if p.MaxHitRange != nil {
		r.MaxHitRange = *p.MaxHitRange
	}
	return r
}

// rulesRequest 读取（patch == nil）或更新房间规则
type rulesRequest struct {
	patch *RulesPatch
	reply chan config.Rules
}

// RoomStats 指标接口输出的时点视图
type RoomStats struct {
	Room         string         `json:"room"`
	Connections  int            `json:"connections"`
	Participants int            `json:"participants"`
	Metrics      map[string]any `json:"metrics"`
}

type statsRequest struct {
	reply chan RoomStats
}
