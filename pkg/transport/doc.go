// Package transport defines the handler interface and middleware chain that
// sit between the HTTP adapter and the request dispatcher.
//
// The transport layer decodes an incoming invocation into an api.Envelope,
// hands it to an InvocationHandler, and serializes what the handler writes
// back to the client: a single JSON object or a sequence of server-sent
// event frames.
//
// # Handler Interface
//
// InvocationHandler is the only contract between transport and dispatch. The
// ResponseWriter it receives abstracts the two output modes, so the handler
// never sees the underlying protocol.
//
// # Middleware
//
// The middleware chain wraps InvocationHandler with cross-cutting concerns.
// Built-in middleware provides panic recovery, request ID assignment
// (X-Request-ID), and structured logging via log/slog.
//
// # In-flight Streams
//
// InFlightRegistry tracks running streams by request ID so that a server
// shutting down can cancel them instead of waiting on a handler that never
// finishes.
package transport
