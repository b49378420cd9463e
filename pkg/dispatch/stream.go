package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rhuss/agentserver/pkg/agent"
	"github.com/rhuss/agentserver/pkg/api"
	"github.com/rhuss/agentserver/pkg/debug"
	"github.com/rhuss/agentserver/pkg/observability"
	"github.com/rhuss/agentserver/pkg/transport"
)

// errDisconnected marks a stream abandoned because the consumer went away.
var errDisconnected = errors.New("client disconnected")

// streamRun tracks the state of one stream invocation.
type streamRun struct {
	chunks []map[string]any
	err    error
	gone   bool
}

func (d *Dispatcher) stream(ctx context.Context, env *api.Envelope, w transport.ResponseWriter) error {
	reg := d.registry.Stream()
	if reg == nil {
		return api.NewServerError("No stream function registered")
	}

	observability.StreamingConnections.Inc()
	defer observability.StreamingConnections.Dec()

	start := time.Now()
	ctx, span := d.tracer.Start(ctx, reg.Name+"_stream")
	span.SetInputs(env.Data)
	tagCaller(ctx, span)

	run := d.pump(ctx, reg.Handler, env.Data, w)

	span.SetAttribute(attrDuration, elapsedMillis(start))
	span.SetAttribute(attrTotalChunks, len(run.chunks))

	if run.err != nil {
		span.EndWithError("Error: " + run.err.Error())
		d.logger.ErrorContext(ctx, "Streaming response error",
			"endpoint", observability.ModeStream,
			"duration_ms", elapsedMillis(start),
			"chunks_sent", len(run.chunks),
			"function_name", reg.Name,
			"return_trace", env.ReturnTrace,
			"error", run.err.Error(),
		)
		if run.gone {
			return nil
		}
		d.handlerFailed(ctx, observability.ModeStream, run.err)
		if err := w.WriteFrame(ctx, api.ErrorFrame(run.err.Error())); err != nil {
			debug.Log("streaming", "error frame not delivered", "error", err)
		}
		return nil
	}

	span.End(agent.ReduceStream(run.chunks))

	if env.ReturnTrace {
		if tr, ok := d.lookupTrace(ctx, span); ok {
			if err := w.WriteFrame(ctx, api.TraceFrame(map[string]any{"trace": tr})); err != nil {
				debug.Log("streaming", "trace frame not delivered", "error", err)
				return nil
			}
		}
	}

	if err := w.WriteFrame(ctx, api.DoneFrame()); err != nil {
		debug.Log("streaming", "done frame not delivered", "error", err)
		return nil
	}

	d.logger.InfoContext(ctx, "Streaming response completed",
		"endpoint", observability.ModeStream,
		"duration_ms", elapsedMillis(start),
		"total_chunks", len(run.chunks),
		"function_name", reg.Name,
		"return_trace", env.ReturnTrace,
	)
	return nil
}

// pump pulls chunks from the handler and writes one chunk frame per chunk
// until the handler finishes, fails, or the consumer goes away. Breaking out
// of the range loop stops the producer.
func (d *Dispatcher) pump(ctx context.Context, h agent.StreamHandler, req api.Request, w transport.ResponseWriter) streamRun {
	var run streamRun

	for raw, err := range agent.Chunks(ctx, h, req) {
		if ctx.Err() != nil {
			run.err, run.gone = errDisconnected, true
			break
		}
		if err != nil {
			run.err = err
			break
		}

		chunk, err := agent.Normalize(raw)
		if err != nil {
			run.err = err
			break
		}
		if err := checkEncodable(chunk); err != nil {
			run.err = fmt.Errorf("encoding chunk: %w", err)
			break
		}

		// The chunk is known to encode, so a failed write means the
		// consumer is gone.
		if err := w.WriteFrame(ctx, api.ChunkFrame(chunk)); err != nil {
			debug.Log("streaming", "chunk frame not delivered", "error", err)
			run.err, run.gone = errDisconnected, true
			break
		}
		run.chunks = append(run.chunks, chunk)
		observability.StreamChunksTotal.Inc()
	}

	if run.err == nil && ctx.Err() != nil {
		run.err, run.gone = errDisconnected, true
	}
	return run
}
