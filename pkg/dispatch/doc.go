// Package dispatch routes an invocation to the registered agent handler.
//
// The Dispatcher validates the request against the configured agent type,
// then runs either the invoke path, which writes one JSON response, or the
// stream path, which writes one frame per chunk followed by [DONE]. Each
// path opens a tracing span around the handler. Failures before the first
// frame are returned as *api.APIError values for the transport to render;
// failures after streaming has started are reported in-band with an error
// frame.
package dispatch
