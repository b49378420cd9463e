package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rhuss/agentserver/pkg/api"
	"github.com/rhuss/agentserver/pkg/transport"
)

// writerState tracks the state of an SSE ResponseWriter.
type writerState int

const (
	writerIdle      writerState = iota // Initial state, no writes yet
	writerStreaming                    // WriteFrame has been called at least once
	writerCompleted                    // Terminal frame sent or WriteResponse called
)

var (
	errWriterCompleted  = errors.New("writer is completed")
	errStreamingStarted = errors.New("streaming has already started")
)

// sseResponseWriter implements transport.ResponseWriter for HTTP responses.
// It handles both streaming (SSE) and non-streaming (JSON) output.
type sseResponseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu    sync.Mutex
	state writerState
}

var _ transport.ResponseWriter = (*sseResponseWriter)(nil)

func newSSEResponseWriter(w http.ResponseWriter) *sseResponseWriter {
	return &sseResponseWriter{
		w:  w,
		rc: http.NewResponseController(w),
	}
}

// WriteFrame sends a single SSE frame and flushes it. The frame is
// formatted as:
//
//	data: {payload}\n
//	\n
//
// No frame may follow a done or error frame.
func (s *sseResponseWriter) WriteFrame(ctx context.Context, frame api.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerCompleted {
		return fmt.Errorf("cannot write frame: %w", errWriterCompleted)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := frame.Payload()
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	// First frame: set SSE headers.
	if s.state == writerIdle {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.w.WriteHeader(http.StatusOK)
		s.state = writerStreaming
	}

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	if frame.IsTerminal() {
		s.state = writerCompleted
	}
	return nil
}

// WriteResponse sends a complete non-streaming JSON response.
// This is mutually exclusive with WriteFrame.
func (s *sseResponseWriter) WriteResponse(_ context.Context, resp map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerStreaming {
		return fmt.Errorf("cannot write response: %w", errStreamingStarted)
	}
	if s.state == writerCompleted {
		return fmt.Errorf("cannot write response: %w", errWriterCompleted)
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	s.w.Header().Set("Content-Type", "application/json")
	s.state = writerCompleted
	if _, err := s.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}

// Flush ensures buffered data is sent to the client.
func (s *sseResponseWriter) Flush() error {
	return s.rc.Flush()
}

// hasStartedStreaming reports whether at least one frame was written and
// the stream is still open.
func (s *sseResponseWriter) hasStartedStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == writerStreaming
}

func (s *sseResponseWriter) isCompleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == writerCompleted
}
