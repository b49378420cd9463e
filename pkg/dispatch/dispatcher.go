package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"time"

	"github.com/rhuss/agentserver/pkg/agent"
	"github.com/rhuss/agentserver/pkg/api"
	"github.com/rhuss/agentserver/pkg/auth"
	"github.com/rhuss/agentserver/pkg/debug"
	"github.com/rhuss/agentserver/pkg/observability"
	"github.com/rhuss/agentserver/pkg/tracing"
	"github.com/rhuss/agentserver/pkg/transport"
)

// Span attribute keys set by the dispatcher.
const (
	attrDuration    = string(tracing.DurationKey)
	attrTotalChunks = "total_chunks"
)

// Config holds the collaborators of a Dispatcher.
type Config struct {
	// Tracer opens the invoke and stream spans. Defaults to tracing.Nop().
	Tracer tracing.Tracer

	// Traces resolves a trace ID to the materialized trace when a request
	// sets databricks_options.return_trace. Trace return is skipped when nil.
	Traces tracing.TraceSource

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Dispatcher implements transport.InvocationHandler for one agent type.
type Dispatcher struct {
	agentType api.AgentType
	registry  *agent.Registry
	tracer    tracing.Tracer
	traces    tracing.TraceSource
	logger    *slog.Logger
}

var _ transport.InvocationHandler = (*Dispatcher)(nil)

// New creates a Dispatcher serving the handlers of registry.
func New(agentType api.AgentType, registry *agent.Registry, cfg Config) *Dispatcher {
	if cfg.Tracer == nil {
		cfg.Tracer = tracing.Nop()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Dispatcher{
		agentType: agentType,
		registry:  registry,
		tracer:    cfg.Tracer,
		traces:    cfg.Traces,
		logger:    cfg.Logger,
	}
}

// AgentType returns the agent type requests are validated against.
func (d *Dispatcher) AgentType() api.AgentType {
	return d.agentType
}

// Handle validates env.Data and routes it to the invoke or stream path.
// A returned *api.APIError has not been written to w.
func (d *Dispatcher) Handle(ctx context.Context, env *api.Envelope, w transport.ResponseWriter) error {
	d.logger.InfoContext(ctx, "Request received",
		"request_id", transport.RequestIDFromContext(ctx),
		"agent_type", string(d.agentType),
		"request_size", requestSize(env.Data),
		"stream_requested", env.Stream,
	)
	if debug.TraceIsEnabled("dispatch") {
		if body, err := json.Marshal(env.Data); err == nil {
			debug.Trace("dispatch", "request body", "body", debug.Truncate(string(body), 4096))
		}
	}

	if apiErr := api.ValidateRequest(d.agentType, env.Data); apiErr != nil {
		debug.Log("dispatch", "validation failed", "param", apiErr.Param)
		return apiErr
	}

	if env.Stream {
		return d.stream(ctx, env, w)
	}
	return d.invoke(ctx, env, w)
}

func (d *Dispatcher) invoke(ctx context.Context, env *api.Envelope, w transport.ResponseWriter) error {
	reg := d.registry.Invoke()
	if reg == nil {
		return api.NewServerError("No invoke function registered")
	}

	start := time.Now()
	ctx, span := d.tracer.Start(ctx, reg.Name+"_invoke")
	span.SetInputs(env.Data)
	tagCaller(ctx, span)

	result, err := d.resolve(ctx, reg.Handler, env.Data)
	if err != nil {
		span.SetAttribute(attrDuration, elapsedMillis(start))
		span.EndWithError("Error: " + err.Error())
		d.handlerFailed(ctx, observability.ModeInvoke, err)
		d.logger.ErrorContext(ctx, "Error response sent",
			"endpoint", observability.ModeInvoke,
			"duration_ms", elapsedMillis(start),
			"function_name", reg.Name,
			"return_trace", env.ReturnTrace,
			"error", err.Error(),
		)
		return api.NewServerError(err.Error())
	}

	if env.ReturnTrace {
		if tr, ok := d.lookupTrace(ctx, span); ok {
			result = maps.Clone(result)
			result[api.DatabricksOutputKey] = map[string]any{"trace": tr}
		}
	}

	span.SetAttribute(attrDuration, elapsedMillis(start))
	span.End(result)

	if err := w.WriteResponse(ctx, result); err != nil {
		d.logger.WarnContext(ctx, "writing response failed",
			"function_name", reg.Name,
			"error", err,
		)
		return nil
	}

	d.logger.InfoContext(ctx, "Response sent",
		"endpoint", observability.ModeInvoke,
		"duration_ms", elapsedMillis(start),
		"response_size", requestSize(result),
		"function_name", reg.Name,
		"return_trace", env.ReturnTrace,
	)
	return nil
}

// resolve runs the handler and normalizes its result. A result that cannot
// be encoded as JSON fails here, before the span is closed.
func (d *Dispatcher) resolve(ctx context.Context, h agent.InvokeHandler, req api.Request) (map[string]any, error) {
	raw, err := agent.Resolve(ctx, h, req)
	if err != nil {
		return nil, err
	}
	result, err := agent.Normalize(raw)
	if err != nil {
		return nil, err
	}
	if err := checkEncodable(result); err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return result, nil
}

func checkEncodable(v map[string]any) error {
	_, err := json.Marshal(v)
	return err
}

// tagCaller records the authenticated caller on span.
func tagCaller(ctx context.Context, span tracing.Span) {
	for k, v := range auth.IdentityFromContext(ctx).Tags() {
		span.SetAttribute(k, v)
	}
}

// lookupTrace fetches the trace the span belongs to. Tracing is
// best-effort: a failed lookup is logged and the trace is omitted.
func (d *Dispatcher) lookupTrace(ctx context.Context, span tracing.Span) (map[string]any, bool) {
	if d.traces == nil {
		return nil, false
	}
	traceID := span.TraceID()
	if traceID == "" {
		return nil, false
	}
	tr, err := d.traces.Trace(traceID)
	if err != nil {
		observability.TraceLookupFailuresTotal.Inc()
		d.logger.WarnContext(ctx, "trace lookup failed",
			"trace_id", traceID,
			"error", err,
		)
		return nil, false
	}
	return tr, true
}

func (d *Dispatcher) handlerFailed(ctx context.Context, mode string, err error) {
	observability.HandlerErrorsTotal.WithLabelValues(mode).Inc()
	tags := map[string]string{
		"mode":       mode,
		"agent_type": string(d.agentType),
		"request_id": transport.RequestIDFromContext(ctx),
	}
	maps.Copy(tags, auth.IdentityFromContext(ctx).Tags())
	observability.CaptureError(ctx, err, tags)
}

// elapsedMillis returns the time since start in milliseconds, rounded to
// two decimals.
func elapsedMillis(start time.Time) float64 {
	return math.Round(float64(time.Since(start).Microseconds())/10) / 100
}

// requestSize returns the encoded size of v, or 0 if it cannot be encoded.
func requestSize(v any) int {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(data)
}
