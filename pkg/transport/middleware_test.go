package transport

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/rhuss/agentserver/pkg/api"
)

// recordingWriter is a minimal ResponseWriter for testing middleware.
type recordingWriter struct {
	frames   []api.Frame
	response map[string]any
	flushed  bool
}

func (w *recordingWriter) WriteFrame(_ context.Context, frame api.Frame) error {
	w.frames = append(w.frames, frame)
	return nil
}

func (w *recordingWriter) WriteResponse(_ context.Context, resp map[string]any) error {
	w.response = resp
	return nil
}

func (w *recordingWriter) Flush() error {
	w.flushed = true
	return nil
}

func noopHandler() InvocationHandler {
	return InvocationHandlerFunc(func(ctx context.Context, env *api.Envelope, w ResponseWriter) error {
		return nil
	})
}

func TestChainAppliesMiddlewareInOrder(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next InvocationHandler) InvocationHandler {
			return InvocationHandlerFunc(func(ctx context.Context, env *api.Envelope, w ResponseWriter) error {
				order = append(order, name+":before")
				err := next.Handle(ctx, env, w)
				order = append(order, name+":after")
				return err
			})
		}
	}

	handler := InvocationHandlerFunc(func(ctx context.Context, env *api.Envelope, w ResponseWriter) error {
		order = append(order, "handler")
		return nil
	})

	wrapped := Chain(mw("first"), mw("second"), mw("third"))(handler)
	wrapped.Handle(context.Background(), &api.Envelope{}, &recordingWriter{})

	expected := []string{
		"first:before", "second:before", "third:before",
		"handler",
		"third:after", "second:after", "first:after",
	}

	if len(order) != len(expected) {
		t.Fatalf("execution order length = %d, want %d: %v", len(order), len(expected), order)
	}
	for i, got := range order {
		if got != expected[i] {
			t.Errorf("order[%d] = %q, want %q", i, got, expected[i])
		}
	}
}

func TestRecoveryCatchesPanic(t *testing.T) {
	handler := InvocationHandlerFunc(func(ctx context.Context, env *api.Envelope, w ResponseWriter) error {
		panic("test panic")
	})

	var hooked any
	wrapped := Recovery(func(_ context.Context, r any) { hooked = r })(handler)
	err := wrapped.Handle(context.Background(), &api.Envelope{}, &recordingWriter{})

	if err == nil {
		t.Fatal("expected error after panic, got nil")
	}

	apiErr, ok := err.(*api.APIError)
	if !ok {
		t.Fatalf("expected *api.APIError, got %T: %v", err, err)
	}
	if apiErr.Type != api.ErrorTypeServerError {
		t.Errorf("error type = %q, want %q", apiErr.Type, api.ErrorTypeServerError)
	}
	if !strings.Contains(apiErr.Message, "test panic") {
		t.Errorf("error message = %q, should contain %q", apiErr.Message, "test panic")
	}
	if hooked != "test panic" {
		t.Errorf("panic hook received %v, want %q", hooked, "test panic")
	}
}

func TestRecoveryPassesThroughNormalExecution(t *testing.T) {
	wrapped := Recovery()(noopHandler())
	if err := wrapped.Handle(context.Background(), &api.Envelope{}, &recordingWriter{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequestIDGeneratesNewID(t *testing.T) {
	var capturedID string

	handler := InvocationHandlerFunc(func(ctx context.Context, env *api.Envelope, w ResponseWriter) error {
		capturedID = RequestIDFromContext(ctx)
		return nil
	})

	RequestID()(handler).Handle(context.Background(), &api.Envelope{}, &recordingWriter{})

	if capturedID == "" {
		t.Fatal("expected a generated request ID, got empty string")
	}
	if _, err := uuid.Parse(capturedID); err != nil {
		t.Errorf("request ID %q is not a UUID: %v", capturedID, err)
	}
}

func TestRequestIDPropagatesExisting(t *testing.T) {
	var capturedID string

	handler := InvocationHandlerFunc(func(ctx context.Context, env *api.Envelope, w ResponseWriter) error {
		capturedID = RequestIDFromContext(ctx)
		return nil
	})

	ctx := ContextWithRequestID(context.Background(), "existing-id-123")
	RequestID()(handler).Handle(ctx, &api.Envelope{}, &recordingWriter{})

	if capturedID != "existing-id-123" {
		t.Errorf("request ID = %q, want %q", capturedID, "existing-id-123")
	}
}

func TestRequestIDUniqueness(t *testing.T) {
	ids := make(map[string]bool)
	handler := InvocationHandlerFunc(func(ctx context.Context, env *api.Envelope, w ResponseWriter) error {
		ids[RequestIDFromContext(ctx)] = true
		return nil
	})

	wrapped := RequestID()(handler)
	for i := 0; i < 100; i++ {
		wrapped.Handle(context.Background(), &api.Envelope{}, &recordingWriter{})
	}

	if len(ids) != 100 {
		t.Errorf("expected 100 unique IDs, got %d", len(ids))
	}
}

func TestLoggingEmitsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx := ContextWithRequestID(context.Background(), "req-log-test")
	env := &api.Envelope{Data: api.Request{"input": "hi"}, Stream: true}
	Logging(logger)(noopHandler()).Handle(ctx, env, &recordingWriter{})

	output := buf.String()
	for _, expected := range []string{"request_id=req-log-test", "stream=true", "return_trace=false", "invocation completed"} {
		if !strings.Contains(output, expected) {
			t.Errorf("log output missing %q in:\n%s", expected, output)
		}
	}
}

func TestLoggingEmitsErrorOnFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := InvocationHandlerFunc(func(ctx context.Context, env *api.Envelope, w ResponseWriter) error {
		return api.NewServerError("test failure")
	})

	Logging(logger)(handler).Handle(context.Background(), &api.Envelope{}, &recordingWriter{})

	output := buf.String()
	if !strings.Contains(output, "invocation failed") {
		t.Errorf("log output missing 'invocation failed' in:\n%s", output)
	}
	if !strings.Contains(output, "test failure") {
		t.Errorf("log output missing error message in:\n%s", output)
	}
}
