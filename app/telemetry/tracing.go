// Package telemetry provides OpenTelemetry tracing and metrics instrumentation
// for the wheel node. It configures OTLP trace export, an OpenTelemetry meter
// backed by the Prometheus registry, and helpers for instrumenting the
// computation lifecycle.
package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	metricsdk "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName    = "wheeld"
	serviceVersion = "0.1.0"
)

// Config holds the configuration for telemetry
type Config struct {
	// Tracing configuration
	Enabled      bool
	OTLPEndpoint string
	SampleRate   float64
	Environment  string
	ChainID      string

	// Metrics configuration
	PrometheusEnabled bool
}

// Provider manages OpenTelemetry tracing and metrics
type Provider struct {
	tracerProvider *tracesdk.TracerProvider
	meterProvider  *metricsdk.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	config         Config
}

// NewProvider initializes a new telemetry provider. A disabled config yields
// a provider whose tracer and meter fall back to the global no-op ones.
func NewProvider(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{config: cfg}, nil
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := &Provider{config: cfg}

	if err := provider.initTracing(res); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if cfg.PrometheusEnabled {
		if err := provider.initMetrics(res); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	return provider, nil
}

func validateConfig(cfg Config) error {
	if cfg.OTLPEndpoint == "" {
		return fmt.Errorf("otlp endpoint is required")
	}
	if _, err := url.Parse(cfg.OTLPEndpoint); err != nil {
		return fmt.Errorf("invalid otlp endpoint: %w", err)
	}
	if cfg.SampleRate < 0 || cfg.SampleRate > 1 {
		return fmt.Errorf("sample rate must be between 0 and 1")
	}
	return nil
}

func newResource(cfg Config) (*resource.Resource, error) {
	return resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
			attribute.String("environment", cfg.Environment),
			attribute.String("chain.id", cfg.ChainID),
		),
	)
}

// initTracing sets up OTLP/HTTP trace export
func (p *Provider) initTracing(res *resource.Resource) error {
	endpoint := strings.TrimPrefix(p.config.OTLPEndpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client := otlptracehttp.NewClient(
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithURLPath("/v1/traces"),
	)

	exporter, err := otlptrace.New(context.Background(), client)
	if err != nil {
		return fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	sampler := tracesdk.ParentBased(
		tracesdk.TraceIDRatioBased(p.config.SampleRate),
	)

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exporter,
			tracesdk.WithMaxExportBatchSize(512),
			tracesdk.WithMaxQueueSize(2048),
			tracesdk.WithBatchTimeout(5*time.Second),
		),
		tracesdk.WithResource(res),
		tracesdk.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)

	p.tracerProvider = tp
	p.tracer = tp.Tracer(serviceName)
	return nil
}

// initMetrics bridges OpenTelemetry instruments into the default Prometheus
// registry served by the node's /metrics endpoint.
func (p *Provider) initMetrics(res *resource.Resource) error {
	exporter, err := prometheus.New()
	if err != nil {
		return fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	mp := metricsdk.NewMeterProvider(
		metricsdk.WithResource(res),
		metricsdk.WithReader(exporter),
	)
	otel.SetMeterProvider(mp)

	p.meterProvider = mp
	p.meter = mp.Meter(serviceName)
	return nil
}

// Shutdown flushes and stops the tracer and meter providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var err error

	if p.tracerProvider != nil {
		if shutdownErr := p.tracerProvider.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("failed to shutdown tracer provider: %w", shutdownErr)
		}
	}

	if p.meterProvider != nil {
		if shutdownErr := p.meterProvider.Shutdown(ctx); shutdownErr != nil {
			if err != nil {
				err = fmt.Errorf("%w; failed to shutdown meter provider: %w", err, shutdownErr)
			} else {
				err = fmt.Errorf("failed to shutdown meter provider: %w", shutdownErr)
			}
		}
	}

	return err
}

// Tracer returns the OpenTelemetry tracer
func (p *Provider) Tracer() trace.Tracer {
	if p.tracer == nil {
		return otel.Tracer(serviceName)
	}
	return p.tracer
}

// Meter returns the OpenTelemetry meter
func (p *Provider) Meter() metric.Meter {
	if p.meter == nil {
		return otel.Meter(serviceName)
	}
	return p.meter
}

// HealthCheck verifies that telemetry is properly initialized
func (p *Provider) HealthCheck() error {
	if !p.config.Enabled {
		return nil
	}
	if p.tracerProvider == nil || p.tracer == nil {
		return fmt.Errorf("tracer not initialized")
	}
	if p.config.PrometheusEnabled && (p.meterProvider == nil || p.meter == nil) {
		return fmt.Errorf("meter not initialized but Prometheus is enabled")
	}
	return nil
}

// StartModuleSpan starts a new span for module execution
func StartModuleSpan(ctx context.Context, moduleName string, operation string) (context.Context, trace.Span) {
	tracer := otel.Tracer(serviceName)
	return tracer.Start(ctx, fmt.Sprintf("module.%s.%s", moduleName, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("module.name", moduleName),
			attribute.String("module.operation", operation),
		),
	)
}

// StartComputationSpan starts a span scoped to one computation offset.
func StartComputationSpan(ctx context.Context, moduleName, operation string, offset uint64, height int64) (context.Context, trace.Span) {
	ctx, span := StartModuleSpan(ctx, moduleName, operation)
	span.SetAttributes(
		attribute.Int64("computation.offset", int64(offset)),
		attribute.Int64("block.height", height),
	)
	return ctx, span
}

// RecordError records an error on the current span
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanStatus sets the status of a span
func SetSpanStatus(span trace.Span, success bool, message string) {
	if span == nil {
		return
	}
	if success {
		span.SetStatus(codes.Ok, message)
	} else {
		span.SetStatus(codes.Error, message)
	}
}

// AddSpanAttributes adds attributes to a span
func AddSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}
