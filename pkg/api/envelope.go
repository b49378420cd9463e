package api

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// AgentType identifies the request/response contract a server instance
// enforces. It is fixed when the server is constructed.
type AgentType string

// AgentTypeResponses is the MLflow ResponsesAgent contract.
const AgentTypeResponses AgentType = "agent/v1/responses"

// ParseAgentType converts a configured value to an AgentType. Only the
// contracts this package can validate are accepted.
func ParseAgentType(s string) (AgentType, error) {
	switch AgentType(s) {
	case AgentTypeResponses:
		return AgentTypeResponses, nil
	default:
		return "", fmt.Errorf("unsupported agent type %q (supported: %q)", s, AgentTypeResponses)
	}
}

// Request is the mapping handed to a registered handler: the decoded request
// body without the stream flag.
type Request = map[string]any

const (
	streamKey            = "stream"
	databricksOptionsKey = "databricks_options"
)

// DatabricksOptions are the serving options a request carries under
// databricks_options. Unknown keys are ignored.
type DatabricksOptions struct {
	ReturnTrace bool `mapstructure:"return_trace"`
}

// Envelope is the decoded body of an invocation request with its control
// fields split out.
type Envelope struct {
	// Data is the request mapping with the "stream" key removed. It is
	// passed unchanged to validation and to the handler.
	Data Request

	// Stream selects the server-sent event path.
	Stream bool

	// ReturnTrace is databricks_options.return_trace.
	ReturnTrace bool
}

// NewEnvelope splits the control fields out of a decoded request body.
// The input map is not modified.
func NewEnvelope(body map[string]any) (*Envelope, *APIError) {
	env := &Envelope{Data: make(Request, len(body))}

	for k, v := range body {
		if k == streamKey {
			continue
		}
		env.Data[k] = v
	}

	switch v := body[streamKey].(type) {
	case nil:
	case bool:
		env.Stream = v
	default:
		return nil, NewInvalidRequestError(streamKey, fmt.Sprintf("stream must be a boolean, got %T", v))
	}

	switch raw := body[databricksOptionsKey].(type) {
	case nil:
	case map[string]any:
		var opts DatabricksOptions
		if err := mapstructure.Decode(raw, &opts); err != nil {
			return nil, NewInvalidRequestError(databricksOptionsKey+".return_trace",
				"return_trace must be a boolean")
		}
		env.ReturnTrace = opts.ReturnTrace
	default:
		return nil, NewInvalidRequestError(databricksOptionsKey,
			fmt.Sprintf("databricks_options must be an object, got %T", raw))
	}

	return env, nil
}
