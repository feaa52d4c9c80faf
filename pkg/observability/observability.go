package observability

import (
	"context"
	"os"

	"github.com/ttpss930141011/auto-futures-trading-machine/internal/config"
)

// Provider bundles the Logger, MetricsProvider and TracingProvider that
// every component (MDG, SE, OEG, DGW, Supervisor) receives as constructor
// parameters, never looked up through a package-level global.
type Provider struct {
	Logger  *Logger
	Metrics *MetricsProvider
	Tracing *TracingProvider
	config  *SimpleObservabilityConfig
}

// SimpleObservabilityConfig contains the minimal configuration needed to
// construct a Provider for one component process.
type SimpleObservabilityConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	LogLevel       string
	LogFormat      string
	JaegerEndpoint string
	MetricsEnabled bool
}

// NewProvider creates a Provider wired with a Logger, an OTel/Prometheus
// MetricsProvider, and a TracingProvider.
func NewProvider(cfg *SimpleObservabilityConfig) (*Provider, error) {
	if cfg == nil {
		cfg = GetDefaultSimpleConfig()
	}

	obsCfg := config.ObservabilityConfig{
		ServiceName:    cfg.ServiceName,
		LogLevel:       cfg.LogLevel,
		LogFormat:      cfg.LogFormat,
		JaegerEndpoint: cfg.JaegerEndpoint,
	}

	logger := NewLogger(obsCfg)

	metrics, err := NewMetricsProvider(MetricsConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Namespace:      "aftm",
		Enabled:        cfg.MetricsEnabled,
	})
	if err != nil {
		return nil, err
	}

	tracing, err := NewTracingProvider(obsCfg)
	if err != nil {
		return nil, err
	}

	return &Provider{Logger: logger, Metrics: metrics, Tracing: tracing, config: cfg}, nil
}

// Start emits the provider's own startup log line.
func (p *Provider) Start(ctx context.Context) error {
	p.Logger.Info(ctx, "observability provider started", map[string]interface{}{
		"service":     p.config.ServiceName,
		"version":     p.config.ServiceVersion,
		"environment": p.config.Environment,
	})
	return nil
}

// Stop shuts down tracing and metrics exporters.
func (p *Provider) Stop(ctx context.Context) error {
	if p.Tracing != nil {
		if err := p.Tracing.Shutdown(ctx); err != nil {
			return err
		}
	}
	if p.Metrics != nil {
		return p.Metrics.Shutdown(ctx)
	}
	return nil
}

// GetDefaultSimpleConfig returns default observability configuration drawn
// from the process environment.
func GetDefaultSimpleConfig() *SimpleObservabilityConfig {
	return &SimpleObservabilityConfig{
		ServiceName:    getEnv("SERVICE_NAME", "unknown-service"),
		ServiceVersion: getEnv("SERVICE_VERSION", "unknown"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", ""),
		MetricsEnabled: getEnv("METRICS_ENABLED", "false") == "true",
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
