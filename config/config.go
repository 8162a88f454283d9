// Package config loads agent settings from a TOML file with environment
// overrides.
//
// Precedence is defaults, then the file, then REQWEST_* env vars.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vadimpiven/node-reqwest-sub001/engine"
	"github.com/vadimpiven/node-reqwest-sub001/eventloop"
	"github.com/vadimpiven/node-reqwest-sub001/logging"
)

// DefaultPath is read when Load is called with an empty path.
const DefaultPath = "reqwest.toml"

type Config struct {
	Agent    AgentConfig    `toml:"agent"`
	Loop     LoopConfig     `toml:"loop"`
	Log      LogConfig      `toml:"log"`
	Observer ObserverConfig `toml:"observer"`
}

type AgentConfig struct {
	RequestTimeout          Duration `toml:"request_timeout"`
	ConnectTimeout          Duration `toml:"connect_timeout"`
	HeadersTimeout          Duration `toml:"headers_timeout"`
	IdleTimeout             Duration `toml:"idle_timeout"`
	MaxIdleConnsPerHost     int      `toml:"max_idle_conns_per_host"`
	MaxConcurrentDispatches int      `toml:"max_concurrent_dispatches"`
	RateLimit               float64  `toml:"rate_limit"`
	RateBurst               int      `toml:"rate_burst"`
	EnableHTTP2             bool     `toml:"enable_http2"`
	ChunkSize               int      `toml:"chunk_size"`
}

type LoopConfig struct {
	QueueSize int `toml:"queue_size"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ObserverConfig struct {
	Enabled     bool   `toml:"enabled"`
	ServiceName string `toml:"service_name"`
}

// Duration is a time.Duration written as a Go duration string ("1.5s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns a Config with all defaults applied.
func Default() Config {
	dc := engine.DefaultConfig
	return Config{
		Agent: AgentConfig{
			RequestTimeout:          Duration{dc.RequestTimeout},
			ConnectTimeout:          Duration{dc.ConnectTimeout},
			HeadersTimeout:          Duration{dc.HeadersTimeout},
			IdleTimeout:             Duration{dc.IdleTimeout},
			MaxIdleConnsPerHost:     dc.MaxIdleConnsPerHost,
			MaxConcurrentDispatches: dc.MaxConcurrentDispatches,
			RateLimit:               dc.RateLimit,
			RateBurst:               dc.RateBurst,
			EnableHTTP2:             dc.EnableHTTP2,
			ChunkSize:               dc.ChunkSize,
		},
		Loop:     LoopConfig{QueueSize: eventloop.DefaultOptions.QueueSize},
		Log:      LogConfig{Level: "info", Format: "json"},
		Observer: ObserverConfig{ServiceName: "reqwest"},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins). A missing
// file is not an error; a malformed one, or one with unknown keys, is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return cfg, fmt.Errorf("parse %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	durations := map[string]*Duration{
		"REQWEST_REQUEST_TIMEOUT": &cfg.Agent.RequestTimeout,
		"REQWEST_CONNECT_TIMEOUT": &cfg.Agent.ConnectTimeout,
		"REQWEST_HEADERS_TIMEOUT": &cfg.Agent.HeadersTimeout,
		"REQWEST_IDLE_TIMEOUT":    &cfg.Agent.IdleTimeout,
	}
	for env, d := range durations {
		if v := os.Getenv(env); v != "" {
			if err := d.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("%s: %w", env, err)
			}
		}
	}

	if v := os.Getenv("REQWEST_MAX_CONCURRENT_DISPATCHES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REQWEST_MAX_CONCURRENT_DISPATCHES: %w", err)
		}
		cfg.Agent.MaxConcurrentDispatches = n
	}
	if v := os.Getenv("REQWEST_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("REQWEST_RATE_LIMIT: %w", err)
		}
		cfg.Agent.RateLimit = f
	}
	if v := os.Getenv("REQWEST_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("REQWEST_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("REQWEST_OBSERVER_ENABLED"); v == "true" || v == "1" {
		cfg.Observer.Enabled = true
	}

	return nil
}

// EngineConfig converts the [agent] table.
func (c Config) EngineConfig() engine.Config {
	a := c.Agent
	return engine.Config{
		RequestTimeout:          a.RequestTimeout.Duration,
		ConnectTimeout:          a.ConnectTimeout.Duration,
		HeadersTimeout:          a.HeadersTimeout.Duration,
		IdleTimeout:             a.IdleTimeout.Duration,
		MaxIdleConnsPerHost:     a.MaxIdleConnsPerHost,
		MaxConcurrentDispatches: a.MaxConcurrentDispatches,
		RateLimit:               a.RateLimit,
		RateBurst:               a.RateBurst,
		EnableHTTP2:             a.EnableHTTP2,
		ChunkSize:               a.ChunkSize,
	}
}

// EngineOptions returns an option function applying the [agent] table.
func (c Config) EngineOptions() func(o *engine.Options) {
	return func(o *engine.Options) {
		o.Config = c.EngineConfig()
	}
}

// LoopOptions returns an option function applying the [loop] table.
func (c Config) LoopOptions() func(o *eventloop.Options) {
	return func(o *eventloop.Options) {
		if c.Loop.QueueSize > 0 {
			o.QueueSize = c.Loop.QueueSize
		}
	}
}

// LoggerConfig converts the [log] table.
func (c Config) LoggerConfig() *logging.LoggerConfig {
	lc := logging.DefaultLoggerConfig()
	lc.Level = logging.ParseLevel(c.Log.Level)
	if c.Log.Format != "" {
		lc.Format = c.Log.Format
	}
	return lc
}
