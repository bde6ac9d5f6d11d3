package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Match    MatchConfig
	Realtime RealtimeConfig
	Log      LogConfig
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr        string
	StaticDir   string
	CORSOrigins []string
}

// StoreConfig 描述持久化存储配置。
type StoreConfig struct {
	Backend      string
	Path         string
	WriteTimeout time.Duration
}

// MatchConfig 描述配对与会话计时参数。
type MatchConfig struct {
	SessionDuration  time.Duration
	GraceFirst       time.Duration
	GraceSecond      time.Duration
	RemovalDelay     time.Duration
	MaxMessageLength int
	ViewsExcerpt     int
	FactorsExcerpt   int
	GroupALabel      string
	GroupBLabel      string
}

// RealtimeConfig bounds inbound websocket traffic per connection.
type RealtimeConfig struct {
	EventsPerSecond float64
	EventBurst      int
	ReadLimit       int64
}

type LogConfig struct {
	Level  string
	Format string
}

// environment is the flat view of every supported variable.
type environment struct {
	Port        string `env:"PORT,default=8080"`
	StaticDir   string `env:"STATIC_DIR"`
	CORSOrigins string `env:"CORS_ORIGINS,default=*"`

	StoreBackend      string        `env:"STORE_BACKEND,default=badger" validate:"oneof=badger pebble memory"`
	StorePath         string        `env:"STORE_PATH,default=data"`
	StoreWriteTimeout time.Duration `env:"STORE_WRITE_TIMEOUT,default=5s" validate:"gt=0"`

	SessionDuration  time.Duration `env:"SESSION_DURATION,default=5m" validate:"gt=0"`
	GraceFirst       time.Duration `env:"GRACE_FIRST,default=10s" validate:"gt=0"`
	GraceSecond      time.Duration `env:"GRACE_SECOND,default=20s" validate:"gt=0"`
	RemovalDelay     time.Duration `env:"REMOVAL_DELAY,default=5s" validate:"gte=0"`
	MaxMessageLength int           `env:"MAX_MESSAGE_LENGTH,default=500" validate:"gt=0"`
	ViewsExcerpt     int           `env:"VIEWS_EXCERPT,default=200" validate:"gte=0"`
	FactorsExcerpt   int           `env:"FACTORS_EXCERPT,default=150" validate:"gte=0"`
	GroupALabel      string        `env:"GROUP_A_LABEL,default=pro_climate" validate:"required,nefield=GroupBLabel,ne=neutral"`
	GroupBLabel      string        `env:"GROUP_B_LABEL,default=anti_climate" validate:"required,ne=neutral"`

	EventsPerSecond float64 `env:"WS_EVENTS_PER_SECOND,default=20" validate:"gt=0"`
	EventBurst      int     `env:"WS_EVENT_BURST,default=40" validate:"gt=0"`
	ReadLimit       int64   `env:"WS_READ_LIMIT,default=16384" validate:"gt=0"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json" validate:"oneof=json console"`
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	return LoadFrom(env.EnvironToEnvSet(os.Environ()))
}

// LoadFrom 从给定的环境变量集合加载配置。
func LoadFrom(es env.EnvSet) (*Config, error) {
	var e environment
	if err := env.Unmarshal(es, &e); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := validator.New().Struct(e); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	server, err := loadServerConfig(e)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		Store: StoreConfig{
			Backend:      e.StoreBackend,
			Path:         e.StorePath,
			WriteTimeout: e.StoreWriteTimeout,
		},
		Match: MatchConfig{
			SessionDuration:  e.SessionDuration,
			GraceFirst:       e.GraceFirst,
			GraceSecond:      e.GraceSecond,
			RemovalDelay:     e.RemovalDelay,
			MaxMessageLength: e.MaxMessageLength,
			ViewsExcerpt:     e.ViewsExcerpt,
			FactorsExcerpt:   e.FactorsExcerpt,
			GroupALabel:      e.GroupALabel,
			GroupBLabel:      e.GroupBLabel,
		},
		Realtime: RealtimeConfig{
			EventsPerSecond: e.EventsPerSecond,
			EventBurst:      e.EventBurst,
			ReadLimit:       e.ReadLimit,
		},
		Log: LogConfig{
			Level:  e.LogLevel,
			Format: e.LogFormat,
		},
	}, nil
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig(e environment) (ServerConfig, error) {
	cfg := ServerConfig{
		StaticDir:   strings.TrimSpace(e.StaticDir),
		CORSOrigins: splitList(e.CORSOrigins),
	}

	port := strings.TrimSpace(e.Port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		cfg.Addr = port
		return cfg, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	cfg.Addr = ":" + port
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
