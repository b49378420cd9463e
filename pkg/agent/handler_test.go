package agent

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhuss/agentserver/pkg/api"
)

func collect(t *testing.T, seq iter.Seq2[any, error]) ([]any, error) {
	t.Helper()
	var values []any
	for v, err := range seq {
		if err != nil {
			return values, err
		}
		values = append(values, v)
	}
	return values, nil
}

func TestResolveInvokeFunc(t *testing.T) {
	h := InvokeFunc(func(_ context.Context, req api.Request) (any, error) {
		return map[string]any{"echo": req["input"]}, nil
	})

	got, err := Resolve(context.Background(), h, api.Request{"input": "hi"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"echo": "hi"}, got)
}

func TestResolveAsyncInvokeFunc(t *testing.T) {
	h := AsyncInvokeFunc(func(_ context.Context, _ api.Request) <-chan Outcome {
		ch := make(chan Outcome, 1)
		go func() {
			time.Sleep(5 * time.Millisecond)
			ch <- Outcome{Value: "later"}
		}()
		return ch
	})

	got, err := Resolve(context.Background(), h, nil)
	require.NoError(t, err)
	assert.Equal(t, "later", got)
}

func TestResolveAsyncClosedWithoutResult(t *testing.T) {
	h := AsyncInvokeFunc(func(_ context.Context, _ api.Request) <-chan Outcome {
		ch := make(chan Outcome)
		close(ch)
		return ch
	})

	_, err := Resolve(context.Background(), h, nil)
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestResolveAsyncCancelled(t *testing.T) {
	h := AsyncInvokeFunc(func(_ context.Context, _ api.Request) <-chan Outcome {
		return make(chan Outcome)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Resolve(ctx, h, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveRecoversPanic(t *testing.T) {
	h := InvokeFunc(func(_ context.Context, _ api.Request) (any, error) {
		panic("kaboom")
	})

	_, err := Resolve(context.Background(), h, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestChunksStreamFunc(t *testing.T) {
	h := StreamFunc(func(_ context.Context, _ api.Request) iter.Seq2[any, error] {
		return func(yield func(any, error) bool) {
			for _, s := range []string{"a", "b", "c"} {
				if !yield(s, nil) {
					return
				}
			}
		}
	})

	got, err := collect(t, Chunks(context.Background(), h, nil))
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b", "c"}, got)
}

func TestChunksStopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	h := StreamFunc(func(_ context.Context, _ api.Request) iter.Seq2[any, error] {
		return func(yield func(any, error) bool) {
			if !yield("a", nil) {
				return
			}
			if !yield(nil, boom) {
				return
			}
			yield("never", nil)
		}
	})

	got, err := collect(t, Chunks(context.Background(), h, nil))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []any{"a"}, got)
}

func TestChunksRecoversPanic(t *testing.T) {
	h := StreamFunc(func(_ context.Context, _ api.Request) iter.Seq2[any, error] {
		return func(yield func(any, error) bool) {
			if !yield("a", nil) {
				return
			}
			panic("mid-stream")
		}
	})

	got, err := collect(t, Chunks(context.Background(), h, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mid-stream")
	assert.Equal(t, []any{"a"}, got)
}

func TestChunksChannelStreamFunc(t *testing.T) {
	h := ChannelStreamFunc(func(ctx context.Context, _ api.Request) <-chan Outcome {
		ch := make(chan Outcome)
		go func() {
			defer close(ch)
			for i := range 3 {
				select {
				case ch <- Outcome{Value: i}:
				case <-ctx.Done():
					return
				}
			}
		}()
		return ch
	})

	got, err := collect(t, Chunks(context.Background(), h, nil))
	require.NoError(t, err)
	assert.Equal(t, []any{0, 1, 2}, got)
}

func TestChunksChannelStreamStopsProducerOnBreak(t *testing.T) {
	stopped := make(chan struct{})
	h := ChannelStreamFunc(func(ctx context.Context, _ api.Request) <-chan Outcome {
		ch := make(chan Outcome)
		go func() {
			defer close(stopped)
			defer close(ch)
			for i := 0; ; i++ {
				select {
				case ch <- Outcome{Value: i}:
				case <-ctx.Done():
					return
				}
			}
		}()
		return ch
	})

	for v, err := range Chunks(context.Background(), h, nil) {
		require.NoError(t, err)
		if v.(int) == 1 {
			break
		}
	}

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("producer goroutine still running after consumer stopped")
	}
}
