package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/agentserver/pkg/api"
)

// Logging returns middleware that emits a structured log entry for each
// invocation with the request ID, the stream and return_trace flags, the
// duration, and the error if the handler failed.
//
// Status codes are not visible at this level; the HTTP adapter logs those.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next InvocationHandler) InvocationHandler {
		return InvocationHandlerFunc(func(ctx context.Context, env *api.Envelope, w ResponseWriter) error {
			start := time.Now()

			err := next.Handle(ctx, env, w)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.Bool("stream", env.Stream),
				slog.Bool("return_trace", env.ReturnTrace),
				slog.Duration("duration", time.Since(start)),
			}

			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "invocation failed", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelInfo, "invocation completed", attrs...)
			}

			return err
		})
	}
}
