package tracing

import (
	"context"
	"errors"
)

// ErrTraceNotFound is returned by TraceSource.Trace for unknown or evicted
// traces.
var ErrTraceNotFound = errors.New("trace not found")

// Tracer starts spans.
type Tracer interface {
	// Start begins a span named name as a child of any span in ctx. The
	// returned context carries the new span.
	Start(ctx context.Context, name string) (context.Context, Span)
}

// Span is one unit of tracing data. Only the first End or EndWithError call
// has an effect.
type Span interface {
	// TraceID returns the hex trace identifier, or "" when not recording.
	TraceID() string

	// SetInputs records the span inputs.
	SetInputs(inputs any)

	// SetAttribute records a single attribute. Scalars are stored as-is and
	// everything else as JSON.
	SetAttribute(key string, value any)

	// End records the output and closes the span successfully.
	End(output any)

	// EndWithError closes the span with an error status and msg as output.
	EndWithError(msg string)
}

// TraceSource looks up materialized traces.
type TraceSource interface {
	// Trace returns the trace with the given hex ID as
	// {"info": {...}, "data": {"spans": [...]}}.
	Trace(traceID string) (map[string]any, error)
}
