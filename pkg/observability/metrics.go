package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider manages the OpenTelemetry meter and its Prometheus
// exposition for the trading pipeline's four components.
type MetricsProvider struct {
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	registry      *prometheus.Registry

	ticksPublished   metric.Int64Counter
	ticksDropped     metric.Int64Counter
	codecErrors      metric.Int64Counter
	signalsEmitted   metric.Int64Counter
	signalsDropped   metric.Int64Counter
	ordersSubmitted  metric.Int64Counter
	ordersBusy       metric.Int64Counter
	orderRetries     metric.Int64Counter
	orderRequestTime metric.Float64Histogram
	dgwQueueDepth    metric.Int64UpDownCounter
	dgwDedupeHits    metric.Int64Counter
	brokerReconnects metric.Int64Counter
	componentHealthy metric.Float64Gauge
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	ServiceName    string
	ServiceVersion string
	Namespace      string
	Port           int
	Enabled        bool
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg MetricsConfig) (*MetricsProvider, error) {
	if !cfg.Enabled {
		return &MetricsProvider{}, nil
	}

	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
		otelprom.WithNamespace(cfg.Namespace),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	meter := meterProvider.Meter(cfg.ServiceName)

	mp := &MetricsProvider{
		meterProvider: meterProvider,
		meter:         meter,
		registry:      registry,
	}

	if err := mp.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return mp, nil
}

func (mp *MetricsProvider) initializeMetrics() error {
	var err error

	if mp.ticksPublished, err = mp.meter.Int64Counter("mdg_ticks_published_total",
		metric.WithDescription("ticks normalized and published on channel T"), metric.WithUnit("1")); err != nil {
		return err
	}
	if mp.ticksDropped, err = mp.meter.Int64Counter("mdg_ticks_dropped_total",
		metric.WithDescription("ticks dropped due to publisher backpressure"), metric.WithUnit("1")); err != nil {
		return err
	}
	if mp.codecErrors, err = mp.meter.Int64Counter("codec_errors_total",
		metric.WithDescription("frames that failed to encode or decode"), metric.WithUnit("1")); err != nil {
		return err
	}
	if mp.signalsEmitted, err = mp.meter.Int64Counter("se_signals_emitted_total",
		metric.WithDescription("trading signals emitted by the strategy engine"), metric.WithUnit("1")); err != nil {
		return err
	}
	if mp.signalsDropped, err = mp.meter.Int64Counter("se_signals_dropped_total",
		metric.WithDescription("signals dropped on channel S overflow"), metric.WithUnit("1")); err != nil {
		return err
	}
	if mp.ordersSubmitted, err = mp.meter.Int64Counter("oeg_orders_submitted_total",
		metric.WithDescription("order requests submitted to DGW"), metric.WithUnit("1")); err != nil {
		return err
	}
	if mp.ordersBusy, err = mp.meter.Int64Counter("dgw_orders_busy_total",
		metric.WithDescription("order requests rejected because the DGW queue was full"), metric.WithUnit("1")); err != nil {
		return err
	}
	if mp.orderRetries, err = mp.meter.Int64Counter("oeg_order_retries_total",
		metric.WithDescription("transport-failure retries attempted by OEG"), metric.WithUnit("1")); err != nil {
		return err
	}
	if mp.orderRequestTime, err = mp.meter.Float64Histogram("oeg_order_request_duration_seconds",
		metric.WithDescription("round-trip latency of a send_order request"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5)); err != nil {
		return err
	}
	if mp.dgwQueueDepth, err = mp.meter.Int64UpDownCounter("dgw_queue_depth",
		metric.WithDescription("current depth of the DGW handler queue"), metric.WithUnit("1")); err != nil {
		return err
	}
	if mp.dgwDedupeHits, err = mp.meter.Int64Counter("dgw_dedupe_hits_total",
		metric.WithDescription("send_order requests served from the dedupe cache"), metric.WithUnit("1")); err != nil {
		return err
	}
	if mp.brokerReconnects, err = mp.meter.Int64Counter("dgw_broker_reconnects_total",
		metric.WithDescription("broker reconnect attempts"), metric.WithUnit("1")); err != nil {
		return err
	}
	if mp.componentHealthy, err = mp.meter.Float64Gauge("component_healthy",
		metric.WithDescription("1 if the component is RUNNING, 0 otherwise"), metric.WithUnit("1")); err != nil {
		return err
	}

	return nil
}

func (mp *MetricsProvider) RecordTickPublished(ctx context.Context, commodityID string) {
	if mp.ticksPublished == nil {
		return
	}
	mp.ticksPublished.Add(ctx, 1, metric.WithAttributes(attribute.String("commodity_id", commodityID)))
}

func (mp *MetricsProvider) RecordTickDropped(ctx context.Context, commodityID string) {
	if mp.ticksDropped == nil {
		return
	}
	mp.ticksDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("commodity_id", commodityID)))
}

func (mp *MetricsProvider) RecordCodecError(ctx context.Context, channel string) {
	if mp.codecErrors == nil {
		return
	}
	mp.codecErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", channel)))
}

func (mp *MetricsProvider) RecordSignalEmitted(ctx context.Context, operation string) {
	if mp.signalsEmitted == nil {
		return
	}
	mp.signalsEmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

func (mp *MetricsProvider) RecordSignalDropped(ctx context.Context) {
	if mp.signalsDropped == nil {
		return
	}
	mp.signalsDropped.Add(ctx, 1)
}

func (mp *MetricsProvider) RecordOrderSubmitted(ctx context.Context, side string, duration time.Duration, ok bool) {
	if mp.ordersSubmitted == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "failed"
	}
	attrs := metric.WithAttributes(attribute.String("side", side), attribute.String("status", status))
	mp.ordersSubmitted.Add(ctx, 1, attrs)
	mp.orderRequestTime.Record(ctx, duration.Seconds(), attrs)
}

func (mp *MetricsProvider) RecordOrderBusy(ctx context.Context) {
	if mp.ordersBusy == nil {
		return
	}
	mp.ordersBusy.Add(ctx, 1)
}

func (mp *MetricsProvider) RecordOrderRetry(ctx context.Context) {
	if mp.orderRetries == nil {
		return
	}
	mp.orderRetries.Add(ctx, 1)
}

func (mp *MetricsProvider) SetDGWQueueDepth(ctx context.Context, delta int64) {
	if mp.dgwQueueDepth == nil {
		return
	}
	mp.dgwQueueDepth.Add(ctx, delta)
}

func (mp *MetricsProvider) RecordDedupeHit(ctx context.Context) {
	if mp.dgwDedupeHits == nil {
		return
	}
	mp.dgwDedupeHits.Add(ctx, 1)
}

func (mp *MetricsProvider) RecordBrokerReconnect(ctx context.Context) {
	if mp.brokerReconnects == nil {
		return
	}
	mp.brokerReconnects.Add(ctx, 1)
}

func (mp *MetricsProvider) SetComponentHealthy(ctx context.Context, component string, healthy bool) {
	if mp.componentHealthy == nil {
		return
	}
	value := 0.0
	if healthy {
		value = 1.0
	}
	mp.componentHealthy.Record(ctx, value, metric.WithAttributes(attribute.String("component", component)))
}

// StartMetricsServer starts the Prometheus metrics HTTP endpoint.
func (mp *MetricsProvider) StartMetricsServer(port int) error {
	if mp.registry == nil {
		return fmt.Errorf("metrics not enabled")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(mp.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	return server.ListenAndServe()
}

// Shutdown gracefully shuts down the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	if mp.meterProvider == nil {
		return nil
	}
	return mp.meterProvider.Shutdown(ctx)
}
