package client

import "time"

// deadline 按帧时间检查的一次性任务；重新 schedule 会替换未到期的任务
type deadline struct {
	at    time.Time
	armed bool
}

func (d *deadline) schedule(at time.Time) {
	d.at = at
	d.armed = true
}

func (d *deadline) cancel() { d.armed = false }

func (d *deadline) pending() bool { return d.armed }

// due 到期时解除并返回 true
func (d *deadline) due(now time.Time) bool {
	if !d.armed || now.Before(d.at) {
		return false
	}
	d.armed = false
	return true
}

// remaining 无待执行任务时为 0
func (d *deadline) remaining(now time.Time) time.Duration {
	if !d.armed || !now.Before(d.at) {
		return 0
	}
	return d.at.Sub(now)
}
