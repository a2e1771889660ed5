package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment overrides: FLOORPLAN_VIEWPORT__SCALE sets
// viewport.scale.
const EnvPrefix = "FLOORPLAN_"

// ============================================================
// Configuration
// ============================================================

type Config struct {
	Port         string `koanf:"port"`
	Environment  string `koanf:"env"`
	ReadTimeout  int    `koanf:"read_timeout"`
	WriteTimeout int    `koanf:"write_timeout"`
	LogLevel     string `koanf:"log_level"`
	LogFile      string `koanf:"log_file"`

	AllowOrigins []string `koanf:"allow_origins"`

	// Floor plan SVG with a "real-world" group. Empty means a blank plan
	// of the viewport size.
	FloorPlan string `koanf:"floor_plan"`
	// Root is the data directory served from disk when BaseURL is empty.
	Root             string   `koanf:"root"`
	BaseURL          string   `koanf:"base_url"`
	Sources          []string `koanf:"sources"`
	FetchConcurrency int      `koanf:"fetch_concurrency"`
	SettleDelayMS    int      `koanf:"settle_delay_ms"`

	// Idle sessions are dropped after this many minutes; 0 keeps them.
	SessionTTLMinutes int `koanf:"session_ttl_minutes"`

	Viewport Viewport `koanf:"viewport"`
	Panel    Panel    `koanf:"panel"`

	BookingAccount string `koanf:"booking_account"`
}

// Viewport places the diagram on the page.
type Viewport struct {
	Scale   float64 `koanf:"scale"`
	OffsetX float64 `koanf:"offset_x"`
	OffsetY float64 `koanf:"offset_y"`
	Width   float64 `koanf:"width"`
	Height  float64 `koanf:"height"`
}

// Panel is the on-page box of the description area.
type Panel struct {
	X      float64 `koanf:"x"`
	Y      float64 `koanf:"y"`
	Width  float64 `koanf:"width"`
	Height float64 `koanf:"height"`
}

func Default() *Config {
	return &Config{
		Port:             "3000",
		Environment:      "development",
		ReadTimeout:      10,
		WriteTimeout:     10,
		LogLevel:         "info",
		AllowOrigins:     []string{"*"},
		Root:             ".",
		Sources:          []string{"furnashings/*.json"},
		FetchConcurrency: 4,
		SettleDelayMS:    100,
		Viewport:         Viewport{Scale: 1, Width: 1024, Height: 768},
		Panel:            Panel{X: 0, Y: 0, Width: 1024, Height: 240},

		SessionTTLMinutes: 30,
		BookingAccount:    "3665",
	}
}

// Load reads the YAML file at path, if it exists, over the defaults and
// then applies FLOORPLAN_* environment overrides. Nested keys use a double
// underscore; sources and allow_origins take comma separated lists.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}

func envKey(key, value string) (string, interface{}) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	switch key {
	case "sources", "allow_origins":
		var list []string
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				list = append(list, v)
			}
		}
		return key, list
	}
	return key, value
}

// Validate checks that the configuration can serve a floor plan.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	if c.BaseURL == "" && c.Root == "" {
		return fmt.Errorf("root or base_url is required")
	}
	if c.Viewport.Scale <= 0 {
		return fmt.Errorf("viewport.scale must be positive")
	}
	if c.FetchConcurrency < 0 {
		return fmt.Errorf("fetch_concurrency must be non-negative")
	}
	if c.SettleDelayMS < 0 {
		return fmt.Errorf("settle_delay_ms must be non-negative")
	}
	if c.SessionTTLMinutes < 0 {
		return fmt.Errorf("session_ttl_minutes must be non-negative")
	}
	return nil
}

func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMS) * time.Millisecond
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}
