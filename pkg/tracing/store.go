package tracing

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxTraces is the number of completed traces a Store keeps when no
// limit is configured.
const DefaultMaxTraces = 1000

// Trace states reported in the info section.
const (
	StateOK         = "OK"
	StateError      = "ERROR"
	StateInProgress = "IN_PROGRESS"
)

// Store is a span processor that keeps the spans of every live trace in
// memory. When the local root span of a trace ends, the trace moves to a
// bounded list of completed traces; the least recently completed trace is
// dropped first.
type Store struct {
	mu        sync.Mutex
	live      map[trace.TraceID]*traceEntry
	completed map[trace.TraceID]*list.Element
	order     *list.List
	max       int
}

type traceEntry struct {
	id    trace.TraceID
	spans []sdktrace.ReadOnlySpan
	index map[trace.SpanID]int
}

var _ sdktrace.SpanProcessor = (*Store)(nil)

// NewStore returns a Store keeping at most maxTraces completed traces.
func NewStore(maxTraces int) *Store {
	if maxTraces <= 0 {
		maxTraces = DefaultMaxTraces
	}
	return &Store{
		live:      make(map[trace.TraceID]*traceEntry),
		completed: make(map[trace.TraceID]*list.Element),
		order:     list.New(),
		max:       maxTraces,
	}
}

// OnStart implements sdktrace.SpanProcessor.
func (s *Store) OnStart(_ context.Context, span sdktrace.ReadWriteSpan) {
	sc := span.SpanContext()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.live[sc.TraceID()]
	if !ok {
		entry = &traceEntry{id: sc.TraceID(), index: make(map[trace.SpanID]int)}
		s.live[sc.TraceID()] = entry
	}
	entry.index[sc.SpanID()] = len(entry.spans)
	entry.spans = append(entry.spans, span)
}

// OnEnd implements sdktrace.SpanProcessor.
func (s *Store) OnEnd(span sdktrace.ReadOnlySpan) {
	sc := span.SpanContext()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.live[sc.TraceID()]
	if !ok {
		return
	}
	if i, ok := entry.index[sc.SpanID()]; ok {
		entry.spans[i] = span
	}

	parent := span.Parent()
	if parent.IsValid() && !parent.IsRemote() {
		return
	}

	delete(s.live, entry.id)
	s.completed[entry.id] = s.order.PushFront(entry)
	for s.order.Len() > s.max {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.completed, oldest.Value.(*traceEntry).id)
	}
}

// Shutdown implements sdktrace.SpanProcessor.
func (s *Store) Shutdown(context.Context) error { return nil }

// ForceFlush implements sdktrace.SpanProcessor.
func (s *Store) ForceFlush(context.Context) error { return nil }

// Len returns the number of live and completed traces held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live) + s.order.Len()
}

// Trace implements TraceSource.
func (s *Store) Trace(traceID string) (map[string]any, error) {
	id, err := trace.TraceIDFromHex(traceID)
	if err != nil {
		return nil, fmt.Errorf("invalid trace id %q: %w", traceID, err)
	}

	s.mu.Lock()
	entry, ok := s.live[id]
	if !ok {
		if el, found := s.completed[id]; found {
			entry, ok = el.Value.(*traceEntry), true
		}
	}
	var spans []sdktrace.ReadOnlySpan
	if ok {
		spans = append(spans, entry.spans...)
	}
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("trace %s: %w", traceID, ErrTraceNotFound)
	}
	return materialize(id, spans), nil
}

func materialize(id trace.TraceID, spans []sdktrace.ReadOnlySpan) map[string]any {
	info := map[string]any{
		"trace_id": id.String(),
		"state":    StateInProgress,
	}
	out := make([]any, 0, len(spans))

	for i, span := range spans {
		out = append(out, spanToMap(span))
		if i != 0 {
			continue
		}

		start := span.StartTime()
		info["request_time"] = start.UTC().Format(time.RFC3339Nano)
		if end := span.EndTime(); !end.IsZero() {
			info["execution_duration_ms"] = end.Sub(start).Milliseconds()
			info["state"] = StateOK
			if span.Status().Code == codes.Error {
				info["state"] = StateError
			}
		}
	}

	return map[string]any{
		"info": info,
		"data": map[string]any{"spans": out},
	}
}

func spanToMap(span sdktrace.ReadOnlySpan) map[string]any {
	sc := span.SpanContext()
	m := map[string]any{
		"name":                 span.Name(),
		"trace_id":             sc.TraceID().String(),
		"span_id":              sc.SpanID().String(),
		"start_time_unix_nano": span.StartTime().UnixNano(),
		"status": map[string]any{
			"code":    span.Status().Code.String(),
			"message": span.Status().Description,
		},
	}
	if parent := span.Parent(); parent.IsValid() {
		m["parent_span_id"] = parent.SpanID().String()
	}
	if end := span.EndTime(); !end.IsZero() {
		m["end_time_unix_nano"] = end.UnixNano()
	}

	attrs := make(map[string]any)
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	m["attributes"] = attrs

	if events := span.Events(); len(events) > 0 {
		evs := make([]any, 0, len(events))
		for _, ev := range events {
			evAttrs := make(map[string]any, len(ev.Attributes))
			for _, kv := range ev.Attributes {
				evAttrs[string(kv.Key)] = kv.Value.AsInterface()
			}
			evs = append(evs, map[string]any{
				"name":           ev.Name,
				"time_unix_nano": ev.Time.UnixNano(),
				"attributes":     evAttrs,
			})
		}
		m["events"] = evs
	}
	return m
}

// jsonString encodes v for storage in a string attribute.
func jsonString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
