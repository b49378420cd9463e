package tracing

import "go.opentelemetry.io/otel/attribute"

const (
	// InputsKey holds the JSON-encoded span inputs.
	InputsKey = attribute.Key("agent.span.inputs")

	// OutputsKey holds the JSON-encoded span outputs.
	OutputsKey = attribute.Key("agent.span.outputs")

	// SpanTypeKey classifies the span.
	SpanTypeKey = attribute.Key("agent.span.type")

	// DurationKey is the wall-clock duration recorded by the dispatcher.
	DurationKey = attribute.Key("duration_ms")

	// GenAIOperationNameKey follows the OTel GenAI conventions.
	GenAIOperationNameKey = attribute.Key("gen_ai.operation.name")
)

// Span type values.
const (
	SpanTypeAgent = "AGENT"
)

// GenAI operation values.
const (
	OperationInvokeAgent = "invoke_agent"
)
