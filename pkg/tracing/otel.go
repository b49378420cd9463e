package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/rhuss/agentserver/pkg/tracing"

// Config configures a Provider.
type Config struct {
	// ServiceName is recorded as the service.name resource attribute.
	ServiceName string

	// OTLPEndpoint enables OTLP/HTTP export when set. It is either a
	// host:port or a full URL.
	OTLPEndpoint string

	// Insecure disables TLS for the OTLP exporter.
	Insecure bool

	// MaxTraces bounds the completed traces kept for lookup.
	MaxTraces int

	// Logger receives export errors. Defaults to slog.Default().
	Logger *slog.Logger

	// SpanProcessors are registered in addition to the store and exporter.
	SpanProcessors []sdktrace.SpanProcessor
}

// Provider implements Tracer and TraceSource on the OpenTelemetry SDK.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
	store  *Store
}

var (
	_ Tracer      = (*Provider)(nil)
	_ TraceSource = (*Provider)(nil)
)

// NewProvider creates a Provider. Export errors are routed to cfg.Logger
// through the global OpenTelemetry error handler.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "agentserver"
	}

	store := NewStore(cfg.MaxTraces)
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
		)),
		sdktrace.WithSpanProcessor(store),
	}

	if cfg.OTLPEndpoint != "" {
		exp, err := otlptracehttp.New(ctx, exporterOptions(cfg)...)
		if err != nil {
			return nil, fmt.Errorf("creating OTLP exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
		logger.Info("trace export enabled", "endpoint", cfg.OTLPEndpoint)
	}
	for _, sp := range cfg.SpanProcessors {
		opts = append(opts, sdktrace.WithSpanProcessor(sp))
	}

	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		logger.Warn("tracing error", "error", err)
	}))

	tp := sdktrace.NewTracerProvider(opts...)
	return &Provider{
		tp:     tp,
		tracer: tp.Tracer(instrumentationName),
		store:  store,
	}, nil
}

func exporterOptions(cfg Config) []otlptracehttp.Option {
	var opts []otlptracehttp.Option
	if strings.Contains(cfg.OTLPEndpoint, "://") {
		opts = append(opts, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts
}

// TracerProvider returns the underlying provider for instrumentation
// libraries such as otelhttp.
func (p *Provider) TracerProvider() trace.TracerProvider {
	return p.tp
}

// Start implements Tracer.
func (p *Provider) Start(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := p.tracer.Start(ctx, name,
		trace.WithAttributes(
			SpanTypeKey.String(SpanTypeAgent),
			GenAIOperationNameKey.String(OperationInvokeAgent),
		),
	)
	return ctx, &otelSpan{span: span}
}

// Trace implements TraceSource.
func (p *Provider) Trace(traceID string) (map[string]any, error) {
	return p.store.Trace(traceID)
}

// Shutdown flushes pending exports and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.tp.Shutdown(ctx)
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) TraceID() string {
	sc := s.span.SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

func (s *otelSpan) SetInputs(inputs any) {
	s.span.SetAttributes(InputsKey.String(jsonString(inputs)))
}

func (s *otelSpan) SetAttribute(key string, value any) {
	s.span.SetAttributes(toAttribute(key, value))
}

func (s *otelSpan) End(output any) {
	if !s.span.IsRecording() {
		return
	}
	s.span.SetAttributes(OutputsKey.String(jsonString(output)))
	s.span.SetStatus(codes.Ok, "")
	s.span.End()
}

func (s *otelSpan) EndWithError(msg string) {
	if !s.span.IsRecording() {
		return
	}
	s.span.SetAttributes(OutputsKey.String(msg))
	s.span.SetStatus(codes.Error, msg)
	s.span.End()
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	default:
		return attribute.String(key, jsonString(v))
	}
}
