package trace

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"

	defaultGRPCEndpoint = "localhost:4317"
	defaultHTTPEndpoint = "http://localhost:4318"
)

// Config is the tracing section of the provider configuration.
type Config struct {
	Enabled     bool              `yaml:"enabled"`
	ServiceName string            `yaml:"service_name"`
	Endpoint    string            `yaml:"endpoint"`
	Protocol    string            `yaml:"protocol"` // grpc or http
	Insecure    bool              `yaml:"insecure"`
	SamplerRate float64           `yaml:"sampler_rate"` // 0.0~1.0
	Environment string            `yaml:"environment"`
	Headers     map[string]string `yaml:"headers"`
}

// protocol returns the exporter protocol, grpc unless http is asked for.
func (c *Config) protocol() string {
	if c.Protocol == ProtocolHTTP {
		return ProtocolHTTP
	}
	return ProtocolGRPC
}

func (c *Config) endpoint() string {
	switch {
	case c.Endpoint != "":
		return c.Endpoint
	case c.protocol() == ProtocolHTTP:
		return defaultHTTPEndpoint
	default:
		return defaultGRPCEndpoint
	}
}

// samplerRate clamps the configured rate into [0, 1].
func (c *Config) samplerRate() float64 {
	return min(max(c.SamplerRate, 0), 1)
}

// InitTracing installs a global OTLP tracer provider and returns its shutdown
// func. When tracing is disabled the no-op provider stays in place and the
// router spans cost nothing.
func InitTracing(ctx context.Context, cfg *Config, lg *zap.Logger) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.samplerRate()))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	lg.Debug("tracing enabled",
		zap.String("endpoint", cfg.endpoint()),
		zap.String("protocol", cfg.protocol()),
		zap.Float64("sampler_rate", cfg.samplerRate()))
	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, cfg *Config) (*otlptrace.Exporter, error) {
	if cfg.protocol() == ProtocolHTTP {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.endpoint())}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		return otlptracehttp.New(ctx, opts...)
	}
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.endpoint())}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	return otlptracegrpc.New(ctx, opts...)
}

// Tracer starts spans on a named tracer of the global provider.
type Tracer struct {
	tracer trace.Tracer
}

func NewTracer(name string) *Tracer {
	return &Tracer{tracer: otel.Tracer(name)}
}

// Scope is a started span and the context carrying it.
type Scope struct {
	Ctx  context.Context
	Span trace.Span
}

// Start opens a span with attrs already set.
func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) *Scope {
	nctx, sp := t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return &Scope{Ctx: nctx, Span: sp}
}

// Fail marks the span failed. A nil err is ignored.
func (s *Scope) Fail(err error) {
	if s == nil || s.Span == nil || err == nil {
		return
	}
	s.Span.RecordError(err)
	s.Span.SetStatus(codes.Error, err.Error())
}

func (s *Scope) End() {
	if s != nil && s.Span != nil {
		s.Span.End()
	}
}
