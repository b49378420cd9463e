package api

import (
	"encoding/json"
	"fmt"
)

// FrameType identifies the kind of a streaming frame.
type FrameType string

const (
	// FrameChunk carries one normalized handler chunk: {"chunk": {...}}.
	FrameChunk FrameType = "chunk"

	// FrameTrace carries the materialized trace: {"databricks_output": {...}}.
	FrameTrace FrameType = "trace"

	// FrameError reports a handler failure in-band: {"error": "..."}.
	FrameError FrameType = "error"

	// FrameDone is the [DONE] sentinel sent after a successful stream.
	FrameDone FrameType = "done"
)

// DoneSentinel is the data payload of the final frame of a successful stream.
const DoneSentinel = "[DONE]"

// DatabricksOutputKey is the reserved key under which the trace is attached
// to an invoke result.
const DatabricksOutputKey = "databricks_output"

// Frame is one server-sent event of a streaming response.
type Frame struct {
	Type    FrameType
	Data    map[string]any // FrameChunk and FrameTrace
	Message string         // FrameError
}

// ChunkFrame wraps a normalized chunk.
func ChunkFrame(chunk map[string]any) Frame {
	return Frame{Type: FrameChunk, Data: chunk}
}

// TraceFrame wraps a databricks_output value.
func TraceFrame(output map[string]any) Frame {
	return Frame{Type: FrameTrace, Data: output}
}

// ErrorFrame reports a failure after streaming has started.
func ErrorFrame(message string) Frame {
	return Frame{Type: FrameError, Message: message}
}

// DoneFrame returns the [DONE] sentinel frame.
func DoneFrame() Frame {
	return Frame{Type: FrameDone}
}

// IsTerminal reports whether no frame may follow this one.
func (f Frame) IsTerminal() bool {
	return f.Type == FrameDone || f.Type == FrameError
}

// Payload returns the bytes that follow "data: " on the wire.
func (f Frame) Payload() ([]byte, error) {
	switch f.Type {
	case FrameChunk:
		return json.Marshal(map[string]any{"chunk": f.Data})
	case FrameTrace:
		return json.Marshal(map[string]any{DatabricksOutputKey: f.Data})
	case FrameError:
		return json.Marshal(map[string]any{"error": f.Message})
	case FrameDone:
		return []byte(DoneSentinel), nil
	default:
		return nil, fmt.Errorf("unknown frame type %q", f.Type)
	}
}
