package transport

import (
	"context"
	"fmt"

	"github.com/rhuss/agentserver/pkg/api"
)

// PanicHook is notified of a recovered panic before it is converted to an
// error, for example to report it to an error tracker.
type PanicHook func(ctx context.Context, recovered any)

// Recovery returns middleware that catches panics in the handler and
// converts them to server error responses. The server continues to
// accept new requests after a panic is recovered.
func Recovery(hooks ...PanicHook) Middleware {
	return func(next InvocationHandler) InvocationHandler {
		return InvocationHandlerFunc(func(ctx context.Context, env *api.Envelope, w ResponseWriter) (retErr error) {
			defer func() {
				if r := recover(); r != nil {
					for _, hook := range hooks {
						hook(ctx, r)
					}
					retErr = api.NewServerError(fmt.Sprintf("internal server error: %v", r))
				}
			}()
			return next.Handle(ctx, env, w)
		})
	}
}
