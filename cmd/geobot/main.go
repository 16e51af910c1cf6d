// Command geobot 无界面机器人：连接 geoarena 服务端，在场地内游走、
// 前往不属于自己的领地，并射击射程内最近的对手
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geoarena/client"
	"geoarena/config"
	"geoarena/geo"
	"geoarena/logging"
	"geoarena/protocol"
)

func main() {
	var (
		serverURL string
		name      string
		codecName string
		envFile   string
		duration  time.Duration
		seed      int64
	)
	flag.StringVar(&serverURL, "url", "ws://localhost:3000/ws", "server websocket url")
	flag.StringVar(&name, "name", "geobot", "player name")
	flag.StringVar(&codecName, "codec", "json", "wire codec: json or msgpack")
	flag.StringVar(&envFile, "env", ".env", "optional .env file with GEOARENA_* settings")
	flag.DurationVar(&duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	flag.Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if err := logging.Init(logging.Options{File: "geobot.log", Level: cfg.LogLevel, Console: true}); err != nil {
		panic(err)
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	codec := protocol.CodecByName(codecName)
	conn, err := client.Dial(ctx, serverURL, codec)
	if err != nil {
		logging.Log.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	rng := rand.New(rand.NewSource(seed))
	start := geo.RandomWithin(cfg.ArenaCenter, 30, rng)
	engine := client.NewEngine(conn, client.Options{
		Name:       name,
		Start:      start,
		AutoReload: true,
		Rand:       rng,
		Log:        logging.Log.With("bot", name),
	})

	runner := client.NewRunner(engine, conn, newWanderer(rng))
	logging.Log.Infof("%s connected to %s (codec=%s, seed=%d)", name, serverURL, codec.Name(), seed)
	err = runner.Run(ctx)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logging.Log.Infof("%s stopping: score %d", name, engine.Score())
	case err != nil:
		logging.Log.Warnf("%s disconnected: %v", name, err)
	}
}

// screenCenter 名义上的屏幕中心，用于把瞄准方向换算为指针位置
var screenCenter = client.Vec{X: 400, Y: 300}

// wanderer 每隔几秒随机换方向；附近有非己方领地时前往，并射击最近的存活对手
type wanderer struct {
	rng     *rand.Rand
	heading client.Input
	until   time.Time
}

func newWanderer(rng *rand.Rand) *wanderer {
	return &wanderer{rng: rng}
}

func (w *wanderer) Control(now time.Time, e *client.Engine) client.Command {
	var cmd client.Command
	if !e.Alive() {
		return cmd
	}
	pos := e.Position()

	if goal, ok := w.territoryGoal(e); ok {
		cmd.Input = steer(pos, goal)
	} else {
		if now.After(w.until) {
			w.heading = client.Input{
				Up:    w.rng.Intn(2) == 0,
				Down:  w.rng.Intn(3) == 0,
				Left:  w.rng.Intn(2) == 0,
				Right: w.rng.Intn(3) == 0,
			}
			w.until = now.Add(time.Duration(1+w.rng.Intn(3)) * time.Second)
		}
		cmd.Input = w.heading
	}

	weapon, armed := e.Weapon()
	if !armed {
		return cmd
	}
	if weapon.Ammo == 0 {
		cmd.Reload = true
		return cmd
	}
	if target, ok := nearestRival(e, weapon.Range); ok {
		dir := client.ScreenDirection(pos, target)
		cmd.Fire = true
		cmd.Center = screenCenter
		cmd.Pointer = client.Vec{X: screenCenter.X + dir.X*100, Y: screenCenter.Y + dir.Y*100}
	}
	return cmd
}

// territoryGoal 80 米内最近的非己方领地中心；已在占领范围内时不再移动
func (w *wanderer) territoryGoal(e *client.Engine) (geo.LatLng, bool) {
	pos := e.Position()
	best, bestDist := geo.LatLng{}, math.Inf(1)
	for _, t := range e.Territories() {
		if t.OwnerID == e.ID() {
			continue
		}
		d := geo.Distance(pos, t.Position)
		if d < 5 {
			// 已在领地内，原地停留
			return geo.LatLng{}, false
		}
		if d < 80 && d < bestDist {
			best, bestDist = t.Position, d
		}
	}
	return best, !math.IsInf(bestDist, 1)
}

func steer(from, to geo.LatLng) client.Input {
	north, east := geo.OffsetToMeters(from.Lat, to.Lat-from.Lat, to.Lng-from.Lng)
	return client.Input{
		Up:    north > 1,
		Down:  north < -1,
		Right: east > 1,
		Left:  east < -1,
	}
}

func nearestRival(e *client.Engine, reach float64) (geo.LatLng, bool) {
	pos := e.Position()
	best, bestDist := geo.LatLng{}, reach
	found := false
	for _, p := range e.Remotes() {
		if !p.Alive {
			continue
		}
		if d := geo.Distance(pos, p.Position); d <= bestDist {
			best, bestDist, found = p.Position, d, true
		}
	}
	return best, found
}
