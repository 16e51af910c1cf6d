package server

import "time"

// Start 在独立协程中启动房间循环，重复调用无效
func (r *Room) Start() {
	r.startOnce.Do(func() {
		go r.Run()
	})
}

// Run 房间事件循环：逐条处理入站命令，并按 snapshotEvery 周期广播全量快照
func (r *Room) Run() {
	var snapshots <-chan time.Time
	if r.snapshotEvery > 0 {
		ticker := time.NewTicker(r.snapshotEvery)
		defer ticker.Stop()
		snapshots = ticker.C
	}

	for {
		select {
		case <-r.quit:
			r.shutdown()
			return
		case cmd := <-r.inbox:
			start := time.Now()
			r.handle(cmd)
			r.metrics.AddHandled(time.Since(start).Nanoseconds())
		case <-snapshots:
			r.broadcastSnapshot()
		}
	}
}

// Stop 结束 Run 并关闭所有连接
func (r *Room) Stop() {
	r.stopOnce.Do(func() {
		close(r.quit)
	})
}
