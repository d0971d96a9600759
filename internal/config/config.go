package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port           int    `envconfig:"PORT" default:"8080" validate:"gt=0,lt=65536"`
	DatabaseURL    string `envconfig:"DATABASE_URL" default:"sqlite://./data/certdesk.db" validate:"required"`
	JWTSecret      string `envconfig:"JWT_SECRET" default:"dev-secret-change-in-production" validate:"required"`
	AssetDir       string `envconfig:"ASSET_DIR" default:"./data/assets" validate:"required"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`

	// Editor
	DefaultPreset string  `envconfig:"DEFAULT_PRESET" default:"letter" validate:"oneof=letter a4"`
	SnapThreshold float64 `envconfig:"SNAP_THRESHOLD" default:"12" validate:"gt=0"`
	HistoryDepth  int     `envconfig:"HISTORY_DEPTH" default:"60" validate:"gt=1"`

	// Asset ingestion
	ElementMaxBytes     int64         `envconfig:"ELEMENT_MAX_BYTES" default:"5242880" validate:"gt=0"`
	BackgroundMaxBytes  int64         `envconfig:"BACKGROUND_MAX_BYTES" default:"10485760" validate:"gtfield=ElementMaxBytes"`
	DecodeFallbackAfter time.Duration `envconfig:"DECODE_FALLBACK_AFTER" default:"1500ms" validate:"gt=0"`
	DecodeTimeout       time.Duration `envconfig:"DECODE_TIMEOUT" default:"8s" validate:"gtfield=DecodeFallbackAfter"`

	// Sessions
	SessionIdleTimeout time.Duration `envconfig:"SESSION_IDLE_TIMEOUT" default:"30m" validate:"gt=0"`
	ReapSchedule       string        `envconfig:"REAP_SCHEDULE" default:"@every 1m" validate:"required"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Origins splits AllowedOrigins into trimmed, non-empty entries.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// OriginHosts returns the origins without scheme, the form websocket.AcceptOptions expects.
func (c *Config) OriginHosts() []string {
	origins := c.Origins()
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if i := strings.Index(o, "://"); i >= 0 {
			o = o[i+3:]
		}
		hosts = append(hosts, o)
	}
	return hosts
}
