// Package api defines the protocol types served by agentserver.
//
// The package covers the inbound request envelope of POST /invocations, the
// agent type contracts a server instance enforces, the typed Responses
// models that handlers may return, the server-sent event frames of the
// streaming path, and the structured error type shared by all layers.
//
// Core types:
//   - [AgentType]: The request/response contract enforced by a server
//   - [Envelope]: Decoded request body with the stream and trace flags split out
//   - [ResponsesAgentRequest]: Typed request model used for validation
//   - [ResponsesAgentResponse], [ResponsesAgentStreamEvent]: Typed result models
//   - [Frame]: One server-sent event of a streaming response
//   - [APIError]: Structured error with type, param, and message
//
// The package performs no I/O. Typed models serialize with omitempty so that
// unset fields are excluded when a handler result is normalized to a mapping.
package api
