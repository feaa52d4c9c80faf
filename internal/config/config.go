// Package config defines the typed configuration for the trading pipeline.
// Config starts from Default() and is optionally overlaid by a YAML file
// whose path is passed to Load, via a viper-driven load/validate split.
//
// The mechanism that reads a user's .env/session preferences lives outside
// the core; this package only defines the typed struct, its defaults, and
// its validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for one process (Main, SE worker,
// or OEG worker).
type Config struct {
	Channel       ChannelConfig       `mapstructure:"channel"`
	Order         OrderConfig         `mapstructure:"order"`
	DGW           DGWConfig           `mapstructure:"dgw"`
	Lifecycle     LifecycleConfig     `mapstructure:"lifecycle"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ChannelConfig holds the bind/connect addressing for channels T, S, O and
// their backpressure thresholds.
type ChannelConfig struct {
	MarketBind    string `mapstructure:"market_bind"`
	MarketConnect string `mapstructure:"market_connect"`
	SignalBind    string `mapstructure:"signal_bind"`
	SignalConnect string `mapstructure:"signal_connect"`
	OrderBind     string `mapstructure:"order_bind"`
	OrderConnect  string `mapstructure:"order_connect"`
	TickHWM       int    `mapstructure:"tick_hwm"`
	SignalHWM     int    `mapstructure:"signal_hwm"`
}

// OrderConfig tunes OEG's request/retry behavior.
type OrderConfig struct {
	RequestTimeout time.Duration `mapstructure:"order_request_timeout_ms"`
	RetryCount     int           `mapstructure:"order_retry_count"`
}

// DGWConfig tunes the DLL/Broker Gateway's queue, dedupe cache, and
// reconnect backoff.
type DGWConfig struct {
	QueueCapacity     int             `mapstructure:"dgw_queue_capacity"`
	DedupeCacheSize   int             `mapstructure:"dgw_dedupe_cache_size"`
	ReconnectBackoffs []time.Duration `mapstructure:"dgw_reconnect_backoffs"`
}

// LifecycleConfig tunes the Supervisor's startup/shutdown timing and
// where PID files are written.
type LifecycleConfig struct {
	ShutdownGraceMs  time.Duration `mapstructure:"shutdown_grace_ms"`
	ReadyTimeout     time.Duration `mapstructure:"ready_timeout_ms"`
	PIDDir           string        `mapstructure:"pid_dir"`
	DedupeRingLength int           `mapstructure:"dedupe_ring_length"`
}

type ObservabilityConfig struct {
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
}

// Default returns the configuration used when nothing is
// overridden: order_request_timeout_ms=5000, order_retry_count=3,
// tick_hwm=100000, signal_hwm=1024, dgw_queue_capacity=256,
// shutdown_grace_ms=2000.
func Default() *Config {
	return &Config{
		Channel: ChannelConfig{
			MarketBind:    "nats://127.0.0.1:4222",
			MarketConnect: "nats://127.0.0.1:4222",
			SignalBind:    "nats://127.0.0.1:4222",
			SignalConnect: "nats://127.0.0.1:4222",
			OrderBind:     "nats://127.0.0.1:4222",
			OrderConnect:  "nats://127.0.0.1:4222",
			TickHWM:       100_000,
			SignalHWM:     1_024,
		},
		Order: OrderConfig{
			RequestTimeout: 5_000 * time.Millisecond,
			RetryCount:     3,
		},
		DGW: DGWConfig{
			QueueCapacity:   256,
			DedupeCacheSize: 4_096,
			ReconnectBackoffs: []time.Duration{
				1 * time.Second, 2 * time.Second, 5 * time.Second, 10 * time.Second, 30 * time.Second,
			},
		},
		Lifecycle: LifecycleConfig{
			ShutdownGraceMs:  2_000 * time.Millisecond,
			ReadyTimeout:     3 * time.Second,
			PIDDir:           "tmp/pids",
			DedupeRingLength: 64,
		},
		Observability: ObservabilityConfig{
			JaegerEndpoint: "",
			ServiceName:    "auto-futures-trading-machine",
			LogLevel:       "info",
			LogFormat:      "json",
		},
	}
}

// Load reads config from an optional YAML file layered over Default().
// AFTM_* environment variables override only keys that the file itself
// sets; with an empty path neither a file nor the environment is read and
// Default() is validated as is.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("AFTM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the invariants a CONFIG-kind error reports.
func (c *Config) Validate() error {
	if c.Channel.MarketConnect == "" || c.Channel.SignalConnect == "" || c.Channel.OrderConnect == "" {
		return fmt.Errorf("channel connect addresses are required")
	}
	if c.Order.RequestTimeout <= 0 {
		return fmt.Errorf("order.order_request_timeout_ms must be > 0")
	}
	if c.Order.RetryCount < 0 {
		return fmt.Errorf("order.order_retry_count must be >= 0")
	}
	if c.DGW.QueueCapacity <= 0 {
		return fmt.Errorf("dgw.dgw_queue_capacity must be > 0")
	}
	if c.DGW.DedupeCacheSize <= 0 {
		return fmt.Errorf("dgw.dgw_dedupe_cache_size must be > 0")
	}
	if c.Lifecycle.ShutdownGraceMs <= 0 {
		return fmt.Errorf("lifecycle.shutdown_grace_ms must be > 0")
	}
	return nil
}
