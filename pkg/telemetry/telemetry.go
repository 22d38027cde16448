package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Service name for telemetry
	serviceName = "inferunity-engine"

	// Metric names
	metricRunExecutions  = "run.executions.total"
	metricRunDuration    = "run.execution.duration"
	metricRunSuccess     = "run.executions.success.total"
	metricRunFailure     = "run.executions.failure.total"
	metricNodeExecutions = "node.executions.total"
	metricNodeDuration   = "node.execution.duration"
	metricNodeSuccess    = "node.executions.success.total"
	metricNodeFailure    = "node.executions.failure.total"
	metricPoolBytesUsed  = "pool.bytes.used"
	metricPoolBytesFree  = "pool.bytes.free"
)

// Provider manages OpenTelemetry setup and provides access to tracers and meters.
type Provider struct {
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider trace.TracerProvider
	meter          metric.Meter
	tracer         trace.Tracer

	// Metrics instruments
	runExecutions  metric.Int64Counter
	runDuration    metric.Float64Histogram
	runSuccess     metric.Int64Counter
	runFailure     metric.Int64Counter
	nodeExecutions metric.Int64Counter
	nodeDuration   metric.Float64Histogram
	nodeSuccess    metric.Int64Counter
	nodeFailure    metric.Int64Counter
	poolBytesUsed  metric.Int64Counter
	poolBytesFree  metric.Int64Counter

	mu sync.RWMutex
}

// Config holds telemetry configuration
type Config struct {
	// ServiceName is the name of the service for telemetry
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Environment (e.g., "production", "staging", "development")
	Environment string

	// EnableTracing enables distributed tracing
	EnableTracing bool

	// EnableMetrics enables metrics collection
	EnableMetrics bool
}

// DefaultConfig returns default telemetry configuration
func DefaultConfig() Config {
	return Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    "development",
		EnableTracing:  true,
		EnableMetrics:  true,
	}
}

// NewProvider creates a new telemetry provider with Prometheus metrics exporter.
// It initializes OpenTelemetry with the given configuration and returns a provider
// that can be used to create tracers and record metrics.
func NewProvider(ctx context.Context, config Config) (*Provider, error) {
	provider := &Provider{}

	// Create resource with service information
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			attribute.String("environment", config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// Initialize metrics if enabled
	if config.EnableMetrics {
		if err := provider.initMetrics(res); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	// Initialize tracing if enabled
	if config.EnableTracing {
		provider.initTracing()
	}

	return provider, nil
}

// initMetrics initializes the metrics provider with Prometheus exporter
func (p *Provider) initMetrics(res *resource.Resource) error {
	// Create Prometheus exporter
	exporter, err := prometheus.New()
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	// Create meter provider with the exporter
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	// Set as global meter provider
	otel.SetMeterProvider(p.meterProvider)

	// Create meter
	p.meter = p.meterProvider.Meter(serviceName)

	// Create metric instruments
	if err := p.createMetricInstruments(); err != nil {
		return fmt.Errorf("failed to create metric instruments: %w", err)
	}

	return nil
}

// initTracing initializes the tracing provider
func (p *Provider) initTracing() {
	// For now, use the global tracer provider; production deployments
	// should swap in an OTLP or Jaeger exporter here.
	p.tracerProvider = otel.GetTracerProvider()
	p.tracer = p.tracerProvider.Tracer(serviceName)
}

// createMetricInstruments creates all metric instruments
func (p *Provider) createMetricInstruments() error {
	var err error

	p.runExecutions, err = p.meter.Int64Counter(
		metricRunExecutions,
		metric.WithDescription("Total number of session runs"),
	)
	if err != nil {
		return err
	}

	p.runDuration, err = p.meter.Float64Histogram(
		metricRunDuration,
		metric.WithDescription("Run duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	p.runSuccess, err = p.meter.Int64Counter(
		metricRunSuccess,
		metric.WithDescription("Total number of successful runs"),
	)
	if err != nil {
		return err
	}

	p.runFailure, err = p.meter.Int64Counter(
		metricRunFailure,
		metric.WithDescription("Total number of failed runs"),
	)
	if err != nil {
		return err
	}

	p.nodeExecutions, err = p.meter.Int64Counter(
		metricNodeExecutions,
		metric.WithDescription("Total number of node executions"),
	)
	if err != nil {
		return err
	}

	p.nodeDuration, err = p.meter.Float64Histogram(
		metricNodeDuration,
		metric.WithDescription("Node execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	p.nodeSuccess, err = p.meter.Int64Counter(
		metricNodeSuccess,
		metric.WithDescription("Total number of successful node executions"),
	)
	if err != nil {
		return err
	}

	p.nodeFailure, err = p.meter.Int64Counter(
		metricNodeFailure,
		metric.WithDescription("Total number of failed node executions"),
	)
	if err != nil {
		return err
	}

	p.poolBytesUsed, err = p.meter.Int64Counter(
		metricPoolBytesUsed,
		metric.WithDescription("Cumulative bytes claimed from the tensor pool"),
	)
	if err != nil {
		return err
	}

	p.poolBytesFree, err = p.meter.Int64Counter(
		metricPoolBytesFree,
		metric.WithDescription("Cumulative bytes released back to the tensor pool"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Tracer returns the tracer for creating spans
func (p *Provider) Tracer() trace.Tracer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tracer
}

// Meter returns the meter for recording metrics
func (p *Provider) Meter() metric.Meter {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.meter
}

// RecordRun records metrics for one session run.
func (p *Provider) RecordRun(ctx context.Context, sessionID string, duration time.Duration, success bool, nodesExecuted int) {
	if p.meter == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("session.id", sessionID),
		attribute.Int("nodes.executed", nodesExecuted),
	}

	p.runExecutions.Add(ctx, 1, metric.WithAttributes(attrs...))
	p.runDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if success {
		p.runSuccess.Add(ctx, 1, metric.WithAttributes(attrs...))
	} else {
		p.runFailure.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordNodeExecution records metrics for one node execution.
func (p *Provider) RecordNodeExecution(ctx context.Context, nodeID string, opType string, duration time.Duration, success bool) {
	if p.meter == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("node.id", nodeID),
		attribute.String("op.type", opType),
	}

	p.nodeExecutions.Add(ctx, 1, metric.WithAttributes(attrs...))
	p.nodeDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if success {
		p.nodeSuccess.Add(ctx, 1, metric.WithAttributes(attrs...))
	} else {
		p.nodeFailure.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordPoolAllocation records bytes claimed from, or released back to,
// the tensor pool.
func (p *Provider) RecordPoolAllocation(ctx context.Context, bytesUsedDelta, bytesFreedDelta int64) {
	if p.meter == nil {
		return
	}
	if bytesUsedDelta > 0 {
		p.poolBytesUsed.Add(ctx, bytesUsedDelta)
	}
	if bytesFreedDelta > 0 {
		p.poolBytesFree.Add(ctx, bytesFreedDelta)
	}
}

// MetricsHandler returns an http.Handler serving the Prometheus exposition
// format for every metric this Provider records. The otel Prometheus
// exporter registers against the default Prometheus registry, so this is
// just promhttp.Handler() — callers mount it at "/metrics" on whatever
// HTTP server they run alongside the engine.
func (p *Provider) MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// Shutdown gracefully shuts down the telemetry provider
func (p *Provider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown meter provider: %w", err)
		}
	}

	return nil
}
