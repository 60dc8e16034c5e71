package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Backend string

const (
	BackendStd Backend = "std"
	BackendZap Backend = "zap"
)

type Env string

const (
	EnvDev   Env = "dev"
	EnvStage Env = "stage"
	EnvProd  Env = "prod"
)

type Config struct {
	Service    string  `yaml:"service"`
	Version    string  `yaml:"version"`
	InstanceId string  `yaml:"instance_id"`
	Env        Env     `yaml:"env"`
	Backend    Backend `yaml:"backend"`
	Debug      bool    `yaml:"debug"`
	AddSource  bool    `yaml:"add_source"`
}

// ParseEnv maps the usual spellings onto an Env. Unknown values are dev.
func ParseEnv(raw string) Env {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "prod", "production":
		return EnvProd
	case "stage", "staging", "preprod":
		return EnvStage
	default:
		return EnvDev
	}
}

// New builds the service logger. The zap backend is the default outside of
// dev. A nil w means stdout.
func New(cfg Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if cfg.Env == "" {
		cfg.Env = ParseEnv(os.Getenv("APP_ENV"))
	}
	if cfg.Service == "" {
		cfg.Service = "go-meet"
	}
	if cfg.InstanceId == "" {
		hn, _ := os.Hostname()
		cfg.InstanceId = hn + "-" + uuid.NewString()[:8]
	}
	if cfg.Backend == "" {
		if cfg.Env == EnvDev {
			cfg.Backend = BackendStd
		} else {
			cfg.Backend = BackendZap
		}
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	var h slog.Handler
	switch cfg.Backend {
	case BackendZap:
		h = newZapHandler(w, level, cfg.AddSource)
	default:
		h = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: cfg.AddSource,
		})
	}

	return slog.New(h.WithAttrs([]slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("version", cfg.Version),
		slog.String("instance_id", cfg.InstanceId),
		slog.Time("started_at", time.Now()),
	}))
}
