package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/rhuss/agentserver/pkg/api"
	"github.com/rhuss/agentserver/pkg/transport"
)

// Adapter serves the invocation protocol over HTTP.
// It decodes the request envelope, runs the handler, and renders errors the
// handler returns before any output was written.
type Adapter struct {
	handler  transport.InvocationHandler
	inflight *transport.InFlightRegistry
	mux      *http.ServeMux
	config   Config
	logger   *slog.Logger
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64
	AgentType   api.AgentType
	Logger      *slog.Logger
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 10 << 20, // 10 MB
		AgentType:   api.AgentTypeResponses,
	}
}

// NewAdapter creates an HTTP adapter for handler.
// Middleware is applied to the handler in the given order.
func NewAdapter(handler transport.InvocationHandler, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		handler = transport.Chain(middlewares...)(handler)
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &Adapter{
		handler:  handler,
		inflight: transport.NewInFlightRegistry(),
		mux:      http.NewServeMux(),
		config:   cfg,
		logger:   logger,
	}

	a.mux.HandleFunc("POST /invocations", a.handleInvocations)
	a.mux.HandleFunc("GET /health", a.handleHealth)

	return a
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest. The returned handler includes
// HTTP-level middleware for request ID propagation.
func (a *Adapter) Handler() http.Handler {
	return httpRequestIDMiddleware(a.mux)
}

// InFlight returns the registry of active streams.
func (a *Adapter) InFlight() *transport.InFlightRegistry {
	return a.inflight
}

// httpRequestIDMiddleware puts a request ID into the request context,
// taken from the X-Request-ID header or generated, and echoes it in the
// response headers.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = transport.NewRequestID()
		}
		r = r.WithContext(transport.ContextWithRequestID(r.Context(), id))
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// handleHealth handles GET /health.
func (a *Adapter) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":     "ok",
		"agent_type": string(a.config.AgentType),
	})
}

// handleInvocations handles POST /invocations.
func (a *Adapter) handleInvocations(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
				http.StatusUnsupportedMediaType,
			)
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var body any
	if err := decodeBody(r.Body, &body); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return
		}
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("body", "Invalid JSON in request body: "+err.Error()),
			http.StatusBadRequest,
		)
		return
	}

	data, ok := body.(map[string]any)
	if !ok {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("body", "Invalid JSON in request body: expected an object"),
			http.StatusBadRequest,
		)
		return
	}

	env, apiErr := api.NewEnvelope(data)
	if apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	if env.Stream {
		a.handleStreamingInvocation(w, r, env)
		return
	}

	rw := newSSEResponseWriter(w)
	if err := a.handler.Handle(r.Context(), env, rw); err != nil {
		a.writeHandlerError(r.Context(), w, rw, err)
	}
}

// decodeBody decodes exactly one JSON value from r. Anything but whitespace
// after the value is an error.
func decodeBody(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return err
	}
	switch _, err := dec.Token(); {
	case err == io.EOF:
		return nil
	case err != nil:
		return err
	default:
		return errTrailingData
	}
}

var errTrailingData = errors.New("unexpected data after the JSON object")

// handleStreamingInvocation runs a streaming invocation under a context
// that the server can cancel on shutdown.
func (a *Adapter) handleStreamingInvocation(w http.ResponseWriter, r *http.Request, env *api.Envelope) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	id := transport.RequestIDFromContext(ctx)
	a.inflight.Register(id, cancel)
	defer a.inflight.Remove(id)

	rw := newSSEResponseWriter(w)
	if err := a.handler.Handle(ctx, env, rw); err != nil {
		a.writeHandlerError(ctx, w, rw, err)
	}
}

// writeHandlerError writes an error returned by the handler. If streaming
// has already started, it sends an error frame. Otherwise it writes a
// standard JSON error response.
func (a *Adapter) writeHandlerError(ctx context.Context, w http.ResponseWriter, rw *sseResponseWriter, err error) {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		apiErr = api.NewServerError(err.Error())
	}

	if rw.hasStartedStreaming() {
		if werr := rw.WriteFrame(ctx, api.ErrorFrame(apiErr.Message)); werr != nil {
			a.logger.Debug("error frame not delivered", "error", werr)
		}
		return
	}

	if rw.isCompleted() {
		a.logger.Warn("handler failed after response was written", "error", err)
		return
	}

	transport.WriteAPIError(w, apiErr)
}
