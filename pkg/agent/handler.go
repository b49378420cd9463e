package agent

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/rhuss/agentserver/pkg/api"
)

// ErrNoResult is returned when an asynchronous handler closes its channel
// without delivering an outcome.
var ErrNoResult = errors.New("handler finished without a result")

// Outcome is a single value or failure delivered on a channel by an
// asynchronous handler.
type Outcome struct {
	Value any
	Err   error
}

// InvokeHandler produces a single result for a request. It is implemented by
// InvokeFunc and AsyncInvokeFunc only.
type InvokeHandler interface {
	resolve(ctx context.Context, req api.Request) (any, error)
}

// StreamHandler produces an ordered sequence of chunks for a request. It is
// implemented by StreamFunc and ChannelStreamFunc only.
type StreamHandler interface {
	chunks(ctx context.Context, req api.Request) iter.Seq2[any, error]
}

// InvokeFunc is a synchronous invoke handler.
type InvokeFunc func(ctx context.Context, req api.Request) (any, error)

func (f InvokeFunc) resolve(ctx context.Context, req api.Request) (any, error) {
	return f(ctx, req)
}

// AsyncInvokeFunc is an invoke handler that delivers its result later. The
// first Outcome received is the result.
type AsyncInvokeFunc func(ctx context.Context, req api.Request) <-chan Outcome

func (f AsyncInvokeFunc) resolve(ctx context.Context, req api.Request) (any, error) {
	ch := f(ctx, req)
	if ch == nil {
		return nil, ErrNoResult
	}
	select {
	case out, ok := <-ch:
		if !ok {
			return nil, ErrNoResult
		}
		return out.Value, out.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// StreamFunc is a stream handler that returns a pull sequence. A non-nil
// error ends the stream.
type StreamFunc func(ctx context.Context, req api.Request) iter.Seq2[any, error]

func (f StreamFunc) chunks(ctx context.Context, req api.Request) iter.Seq2[any, error] {
	return f(ctx, req)
}

// ChannelStreamFunc is a stream handler that sends chunks from its own
// goroutine. The producer must close the channel when done and must stop
// when ctx is cancelled. An Outcome with a non-nil Err ends the stream.
type ChannelStreamFunc func(ctx context.Context, req api.Request) <-chan Outcome

func (f ChannelStreamFunc) chunks(ctx context.Context, req api.Request) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		ch := f(ctx, req)
		if ch == nil {
			return
		}
		for {
			select {
			case out, ok := <-ch:
				if !ok {
					return
				}
				if !yield(out.Value, out.Err) || out.Err != nil {
					return
				}
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			}
		}
	}
}

// Resolve runs an invoke handler to completion and returns its raw result.
// A panic in the handler is returned as an error.
func Resolve(ctx context.Context, h InvokeHandler, req api.Request) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.resolve(ctx, req)
}

// Chunks returns the chunk sequence of a stream handler. Iteration stops at
// the first error. A panic in the handler is reported as the final error.
func Chunks(ctx context.Context, h StreamHandler, req api.Request) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		inBody := false
		defer func() {
			if r := recover(); r != nil {
				if inBody {
					panic(r)
				}
				yield(nil, fmt.Errorf("handler panic: %v", r))
			}
		}()

		seq := h.chunks(ctx, req)
		if seq == nil {
			return
		}
		for v, err := range seq {
			inBody = true
			more := yield(v, err)
			inBody = false
			if !more || err != nil {
				return
			}
		}
	}
}
