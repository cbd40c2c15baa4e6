package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Addr          string
	Server        string
	WSPath        string
	ProbePath     string
	RetryInterval time.Duration
	RemovalGrace  time.Duration
	LogLevel      zapcore.Level
}

func Defaults() Config {
	return Config{
		Addr:          "localhost:4150",
		Server:        "http://localhost:4150",
		WSPath:        "/ws",
		ProbePath:     "/reconnect",
		RetryInterval: time.Second,
		RemovalGrace:  200 * time.Millisecond,
		LogLevel:      zapcore.InfoLevel,
	}
}

// Load reads .env (if present) and then the environment on top of Defaults.
func Load(envFiles ...string) (Config, error) {
	_ = godotenv.Load(envFiles...) // a missing .env is fine
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup. Every bad value is reported.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	c := Defaults()
	var errs error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}

	str("COMBOSYNC_ADDR", &c.Addr)
	str("COMBOSYNC_SERVER", &c.Server)
	str("COMBOSYNC_WS_PATH", &c.WSPath)
	str("COMBOSYNC_PROBE_PATH", &c.ProbePath)
	dur("COMBOSYNC_RETRY_INTERVAL", &c.RetryInterval)
	dur("COMBOSYNC_REMOVAL_GRACE", &c.RemovalGrace)
	if v, ok := lookup("COMBOSYNC_LOG_LEVEL"); ok && v != "" {
		if err := c.LogLevel.UnmarshalText([]byte(v)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("COMBOSYNC_LOG_LEVEL: %w", err))
		}
	}

	return c, multierr.Append(errs, c.Validate())
}

func (c Config) Validate() error {
	var errs error
	if c.RetryInterval <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("retry interval must be positive, got %s", c.RetryInterval))
	}
	if c.RemovalGrace < 0 {
		errs = multierr.Append(errs, fmt.Errorf("removal grace must not be negative, got %s", c.RemovalGrace))
	}
	u, err := url.Parse(c.Server)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("server url: %w", err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = multierr.Append(errs, fmt.Errorf("server url must be http or https, got %q", c.Server))
	}
	for name, p := range map[string]string{"ws path": c.WSPath, "probe path": c.ProbePath} {
		if !strings.HasPrefix(p, "/") {
			errs = multierr.Append(errs, fmt.Errorf("%s must start with /, got %q", name, p))
		}
	}
	return errs
}

// WebSocketURL is the event endpoint, e.g. ws://localhost:4150/ws.
func (c Config) WebSocketURL() string {
	base := strings.TrimSuffix(c.Server, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + c.WSPath
}

// ProbeURL is the liveness endpoint polled while disconnected.
func (c Config) ProbeURL() string {
	return strings.TrimSuffix(c.Server, "/") + c.ProbePath
}
