package transport

import (
	"context"

	"github.com/google/uuid"

	"github.com/rhuss/agentserver/pkg/api"
)

// RequestID returns middleware that assigns a unique request ID to each
// request. If the incoming request context already carries a request ID
// (set by the HTTP adapter from the X-Request-ID header), that value is
// used. Otherwise a random UUID is generated.
func RequestID() Middleware {
	return func(next InvocationHandler) InvocationHandler {
		return InvocationHandlerFunc(func(ctx context.Context, env *api.Envelope, w ResponseWriter) error {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, NewRequestID())
			}
			return next.Handle(ctx, env, w)
		})
	}
}

// NewRequestID returns a new random request ID.
func NewRequestID() string {
	return uuid.NewString()
}
