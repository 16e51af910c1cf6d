package client

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"geoarena/logging"
	"geoarena/protocol"
)

// Source 提供服务端的原始帧
type Source interface {
	Codec() protocol.Codec
	Incoming() <-chan []byte
	Done() <-chan struct{}
}

// Command 控制器希望在下一帧执行的操作
type Command struct {
	Input   Input
	Fire    bool
	Pointer Vec
	Center  Vec
	Reload  bool
	Pickup  string // 地上物品 id
}

// Controller 根据引擎当前状态决定每帧输入，只能读取引擎
type Controller interface {
	Control(now time.Time, e *Engine) Command
}

type ControllerFunc func(now time.Time, e *Engine) Command

func (f ControllerFunc) Control(now time.Time, e *Engine) Command { return f(now, e) }

// Runner 在单个协程中驱动 Engine：帧、占领 tick、清理与服务端事件都经由 Run 的 select 串行处理
type Runner struct {
	engine *Engine
	src    Source
	ctrl   Controller
	log    *zap.SugaredLogger

	FrameInterval   time.Duration
	CaptureInterval time.Duration
	SweepInterval   time.Duration
}

func NewRunner(engine *Engine, src Source, ctrl Controller) *Runner {
	return &Runner{
		engine:          engine,
		src:             src,
		ctrl:            ctrl,
		log:             logging.Log,
		FrameInterval:   16 * time.Millisecond,
		CaptureInterval: CaptureTickInterval,
		SweepInterval:   SweepInterval,
	}
}

// Run 先 join，然后持续处理直到 ctx 结束或连接关闭；退出时取消引擎的定时任务
func (r *Runner) Run(ctx context.Context) error {
	defer r.engine.Disconnect()

	frames := time.NewTicker(r.FrameInterval)
	defer frames.Stop()
	capture := time.NewTicker(r.CaptureInterval)
	defer capture.Stop()
	sweep := time.NewTicker(r.SweepInterval)
	defer sweep.Stop()

	codec := r.src.Codec()
	r.engine.Join()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.src.Done():
			return ErrDisconnected
		case b := <-r.src.Incoming():
			env, err := codec.DecodeEnvelope(b)
			if err != nil {
				r.log.Debugf("bad frame: %v", err)
				continue
			}
			if err := r.engine.Handle(time.Now(), codec, env); err != nil {
				r.log.Debugf("handle %s: %v", env.T, err)
			}
		case now := <-frames.C:
			dt := now.Sub(last)
			last = now
			r.step(now, dt)
		case <-capture.C:
			r.engine.CaptureTick()
		case now := <-sweep.C:
			r.engine.Sweep(now)
		}
	}
}

func (r *Runner) step(now time.Time, dt time.Duration) {
	var cmd Command
	if r.ctrl != nil {
		cmd = r.ctrl.Control(now, r.engine)
	}
	r.engine.Frame(now, dt, cmd.Input)

	if cmd.Reload {
		if err := r.engine.Reload(now); err != nil && !errors.Is(err, ErrReloading) {
			r.log.Debugf("reload: %v", err)
		}
	}
	if cmd.Fire {
		if _, err := r.engine.Fire(now, cmd.Pointer, cmd.Center); err != nil {
			r.log.Debugf("fire: %v", err)
		}
	}
	if cmd.Pickup != "" {
		if err := r.engine.Pickup(cmd.Pickup, now); err != nil {
			r.log.Debugf("pickup %s: %v", cmd.Pickup, err)
		}
	}
}
