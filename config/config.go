// Package config 从环境变量读取服务端与机器人配置（先加载可选的 .env 文件）
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"geoarena/geo"
)

const envPrefix = "GEOARENA_"

// Rules 房间的计分与校验规则，可通过 admin 接口热更新
type Rules struct {
	HitBonus       int `json:"hitBonus"`
	HitPenalty     int `json:"hitPenalty"`
	CaptureBonus   int `json:"captureBonus"`
	CapturePenalty int `json:"capturePenalty"`
	// HitDamage 每次命中扣除的血量，0 表示服务端不跟踪血量
	HitDamage int `json:"hitDamage"`
	MaxHealth int `json:"maxHealth"`
	// MaxSpeed（米/秒）与 MaxHitRange（米）为可选的上报合理性校验，0 表示完全信任客户端
	MaxSpeed    float64 `json:"maxSpeed"`
	MaxHitRange float64 `json:"maxHitRange"`
}

// DefaultRules 默认计分规则
func DefaultRules() Rules {
	return Rules{
		HitBonus:       10,
		HitPenalty:     5,
		CaptureBonus:   50,
		CapturePenalty: 20,
		HitDamage:      25,
		MaxHealth:      100,
	}
}

type Config struct {
	Addr       string
	LogFile    string
	LogLevel   string
	LogConsole bool

	AllowedOrigins   []string
	DefaultRoom      string
	SnapshotInterval time.Duration
	ArenaCenter      geo.LatLng
	Rules            Rules
}

// Default 返回内置默认配置
func Default() Config {
	return Config{
		Addr:       ":3000",
		LogFile:    "app.log",
		LogLevel:   "debug",
		LogConsole: false,
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://localhost:5174",
			"http://localhost:5175",
			"http://localhost:5176",
		},
		DefaultRoom:      "arena",
		SnapshotInterval: 2 * time.Second,
		ArenaCenter:      geo.LatLng{Lat: -23.55052, Lng: -46.633308},
		Rules:            DefaultRules(),
	}
}

// Load 加载 .env 文件（未指定时为 ".env"，文件不存在则忽略），再用 GEOARENA_* 变量覆盖 Default()
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv 通过 lookup 函数构建配置，测试时可不依赖进程环境变量
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	r := reader{lookup: lookup}

	r.str("ADDR", &cfg.Addr)
	r.str("LOG_FILE", &cfg.LogFile)
	r.str("LOG_LEVEL", &cfg.LogLevel)
	r.boolean("LOG_CONSOLE", &cfg.LogConsole)
	r.list("ALLOWED_ORIGINS", &cfg.AllowedOrigins)
	r.str("DEFAULT_ROOM", &cfg.DefaultRoom)
	r.duration("SNAPSHOT_INTERVAL", &cfg.SnapshotInterval)
	r.float("ARENA_LAT", &cfg.ArenaCenter.Lat)
	r.float("ARENA_LNG", &cfg.ArenaCenter.Lng)

	r.integer("HIT_BONUS", &cfg.Rules.HitBonus)
	r.integer("HIT_PENALTY", &cfg.Rules.HitPenalty)
	r.integer("CAPTURE_BONUS", &cfg.Rules.CaptureBonus)
	r.integer("CAPTURE_PENALTY", &cfg.Rules.CapturePenalty)
	r.integer("HIT_DAMAGE", &cfg.Rules.HitDamage)
	r.integer("MAX_HEALTH", &cfg.Rules.MaxHealth)
	r.float("MAX_SPEED", &cfg.Rules.MaxSpeed)
	r.float("MAX_HIT_RANGE", &cfg.Rules.MaxHitRange)

	if r.err != nil {
		return Config{}, r.err
	}
	if cfg.Rules.MaxHealth <= 0 {
		return Config{}, fmt.Errorf("%sMAX_HEALTH must be positive, got %d", envPrefix, cfg.Rules.MaxHealth)
	}
	return cfg, nil
}

// reader 只保留第一个解析错误
type reader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *reader) get(key string) (string, bool) {
	if r.err != nil {
		return "", false
	}
	v, ok := r.lookup(envPrefix + key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *reader) fail(key, v string, err error) {
	r.err = fmt.Errorf("%s%s=%q: %w", envPrefix, key, v, err)
}

func (r *reader) str(key string, dst *string) {
	if v, ok := r.get(key); ok {
		*dst = v
	}
}

func (r *reader) list(key string, dst *[]string) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func (r *reader) boolean(key string, dst *bool) {
	if v, ok := r.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = b
	}
}

func (r *reader) integer(key string, dst *int) {
	if v, ok := r.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (r *reader) float(key string, dst *float64) {
	if v, ok := r.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (r *reader) duration(key string, dst *time.Duration) {
	if v, ok := r.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = d
	}
}
