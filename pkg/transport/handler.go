package transport

import (
	"context"

	"github.com/rhuss/agentserver/pkg/api"
)

// InvocationHandler handles one POST /invocations request. The
// implementation writes either a complete response or a sequence of stream
// frames to w. A returned error is reported to the client by the transport:
// as a JSON error if nothing has been written yet, or as an in-band error
// frame if streaming has started.
type InvocationHandler interface {
	Handle(ctx context.Context, env *api.Envelope, w ResponseWriter) error
}

// InvocationHandlerFunc is an adapter that allows using an ordinary function
// as an InvocationHandler.
type InvocationHandlerFunc func(ctx context.Context, env *api.Envelope, w ResponseWriter) error

// Handle calls f(ctx, env, w).
func (f InvocationHandlerFunc) Handle(ctx context.Context, env *api.Envelope, w ResponseWriter) error {
	return f(ctx, env, w)
}

// ResponseWriter abstracts streaming and non-streaming output for the handler.
// The transport layer creates a ResponseWriter for each request.
//
// WriteFrame and WriteResponse are mutually exclusive on a single writer
// instance. Calling one after the other returns an error, as does writing a
// frame after a terminal frame (done or error).
type ResponseWriter interface {
	// WriteFrame sends a single server-sent event and flushes it.
	WriteFrame(ctx context.Context, frame api.Frame) error

	// WriteResponse sends a complete non-streaming response.
	WriteResponse(ctx context.Context, resp map[string]any) error

	// Flush ensures buffered data is sent to the client. Returns an error
	// if the client has disconnected.
	Flush() error
}
