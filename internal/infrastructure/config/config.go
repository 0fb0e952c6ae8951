package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Terminal bounds enforced by Validate.
const (
	MaxHistoryLimit = 1000
	// large pastes need this long before the submitting carriage return
	MinLargeDelay = 300 * time.Millisecond
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Terminal  TerminalConfig
	State     StateConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8787"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// TerminalConfig holds per-session defaults and context delivery tuning.
type TerminalConfig struct {
	Shell          string        `envconfig:"TERMINAL_SHELL"`
	Home           string        `envconfig:"TERMINAL_HOME"`
	Cols           int           `envconfig:"TERMINAL_COLS" default:"80"`
	Rows           int           `envconfig:"TERMINAL_ROWS" default:"24"`
	HistoryLimit   int           `envconfig:"TERMINAL_HISTORY_LIMIT" default:"1000"`
	PasteThreshold int           `envconfig:"TERMINAL_PASTE_THRESHOLD" default:"500"`
	SmallDelay     time.Duration `envconfig:"TERMINAL_SMALL_DELAY" default:"50ms"`
	LargeDelay     time.Duration `envconfig:"TERMINAL_LARGE_DELAY" default:"300ms"`
	StopGrace      time.Duration `envconfig:"TERMINAL_STOP_GRACE" default:"500ms"`
	AutoForward    bool          `envconfig:"TERMINAL_AUTO_FORWARD" default:"true"`
	AutoRestart    bool          `envconfig:"TERMINAL_AUTO_RESTART" default:"false"`
	WarmStart      bool          `envconfig:"TERMINAL_WARM_START" default:"true"`
	OutputBuffer   int           `envconfig:"TERMINAL_OUTPUT_BUFFER" default:"1048576"`
}

// StateConfig controls persistence of per-project session state.
type StateConfig struct {
	Dir    string `envconfig:"STATE_DIR"`
	Format string `envconfig:"STATE_FORMAT" default:"json"`
}

// Enabled reports whether persistence is configured.
func (s StateConfig) Enabled() bool {
	return s.Dir != ""
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	// same names the state store parses
	switch strings.ToLower(strings.TrimSpace(c.State.Format)) {
	case "json", "yaml", "yml", "toml":
	default:
		return fmt.Errorf("invalid STATE_FORMAT %q: want json, yaml, yml or toml", c.State.Format)
	}

	t := c.Terminal
	if t.Cols <= 0 || t.Rows <= 0 || t.Cols > math.MaxUint16 || t.Rows > math.MaxUint16 {
		return fmt.Errorf("invalid terminal size %dx%d: each side must be in 1..%d", t.Cols, t.Rows, math.MaxUint16)
	}
	if t.HistoryLimit < 1 || t.HistoryLimit > MaxHistoryLimit {
		return fmt.Errorf("invalid TERMINAL_HISTORY_LIMIT %d: want 1..%d", t.HistoryLimit, MaxHistoryLimit)
	}
	if t.PasteThreshold <= 0 {
		return fmt.Errorf("invalid TERMINAL_PASTE_THRESHOLD %d: must be positive", t.PasteThreshold)
	}
	if t.SmallDelay < 0 {
		return fmt.Errorf("TERMINAL_SMALL_DELAY must not be negative")
	}
	if t.LargeDelay < MinLargeDelay {
		return fmt.Errorf("TERMINAL_LARGE_DELAY %s is below the %s minimum", t.LargeDelay, MinLargeDelay)
	}
	if t.SmallDelay > t.LargeDelay {
		return fmt.Errorf("TERMINAL_SMALL_DELAY %s exceeds TERMINAL_LARGE_DELAY %s", t.SmallDelay, t.LargeDelay)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8787",
			Host: "127.0.0.1",
		},
		Terminal: TerminalConfig{
			Cols:           80,
			Rows:           24,
			HistoryLimit:   1000,
			PasteThreshold: 500,
			SmallDelay:     50 * time.Millisecond,
			LargeDelay:     300 * time.Millisecond,
			StopGrace:      500 * time.Millisecond,
			AutoForward:    true,
			AutoRestart:    false,
			WarmStart:      true,
			OutputBuffer:   1 << 20,
		},
		State: StateConfig{
			Format: "json",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}
