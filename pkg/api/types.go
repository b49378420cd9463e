package api

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Model is implemented by the typed Responses models. A handler result that
// implements Model is normalized by serializing it, so fields tagged
// omitempty and left unset do not appear in the response.
type Model interface {
	responsesModel()
}

// ---------------------------------------------------------------------------
// Request
// ---------------------------------------------------------------------------

// Input item types.
const (
	ItemTypeMessage            = "message"
	ItemTypeFunctionCall       = "function_call"
	ItemTypeFunctionCallOutput = "function_call_output"
	ItemTypeReasoning          = "reasoning"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleDeveloper = "developer"
)

// ResponsesAgentRequest is the request model of the agent/v1/responses
// contract. Fields beyond these are allowed and ignored by validation.
type ResponsesAgentRequest struct {
	Input        InputValue     `json:"input"`
	CustomInputs map[string]any `json:"custom_inputs,omitempty"`
	Context      *ChatContext   `json:"context,omitempty"`
}

func (ResponsesAgentRequest) responsesModel() {}

// ChatContext identifies the conversation and user a request belongs to.
type ChatContext struct {
	ConversationID string `json:"conversation_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
}

var errInvalidInput = errors.New("input must be a string or an array of items")

// InputValue holds the input field, which is either a plain text prompt or
// a list of items.
type InputValue struct {
	Text  string
	Items []InputItem `validate:"omitempty,dive"`

	isText  bool
	present bool
}

// TextInput returns an InputValue holding a plain text prompt.
func TextInput(text string) InputValue {
	return InputValue{Text: text, isText: true, present: true}
}

// ItemsInput returns an InputValue holding a list of items.
func ItemsInput(items ...InputItem) InputValue {
	return InputValue{Items: items, present: true}
}

// IsText reports whether the input was given as a plain string.
func (v InputValue) IsText() bool { return v.isText }

// IsSet reports whether the input field was present and not null.
func (v InputValue) IsSet() bool { return v.present }

// MarshalJSON writes the input in the form it was given.
func (v InputValue) MarshalJSON() ([]byte, error) {
	switch {
	case !v.present:
		return []byte("null"), nil
	case v.isText:
		return json.Marshal(v.Text)
	case v.Items == nil:
		return []byte("[]"), nil
	default:
		return json.Marshal(v.Items)
	}
}

// UnmarshalJSON accepts a string, an array of items, or null.
func (v *InputValue) UnmarshalJSON(data []byte) error {
	*v = InputValue{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	switch trimmed[0] {
	case '"':
		if err := json.Unmarshal(trimmed, &v.Text); err != nil {
			return err
		}
		v.isText = true
	case '[':
		if err := json.Unmarshal(trimmed, &v.Items); err != nil {
			return err
		}
	default:
		return errInvalidInput
	}
	v.present = true
	return nil
}

// InputItem is one entry of a list input: a message, a function call, a
// function call output, or a reasoning item. Content is either a string or
// a list of content parts and is kept undecoded.
type InputItem struct {
	Type      string `json:"type,omitempty" validate:"omitempty,oneof=message function_call function_call_output reasoning"`
	ID        string `json:"id,omitempty"`
	Role      string `json:"role,omitempty" validate:"omitempty,oneof=user assistant system developer"`
	Content   any    `json:"content,omitempty"`
	Status    string `json:"status,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Output    any    `json:"output,omitempty"`
}

// IsMessage reports whether the item is a message. Items without a type are
// treated as messages.
func (i InputItem) IsMessage() bool {
	return i.Type == "" || i.Type == ItemTypeMessage
}

// ---------------------------------------------------------------------------
// Response
// ---------------------------------------------------------------------------

// ResponsesAgentResponse is the result model of the agent/v1/responses
// contract.
type ResponsesAgentResponse struct {
	ID            string         `json:"id,omitempty"`
	Output        []OutputItem   `json:"output"`
	Reasoning     map[string]any `json:"reasoning,omitempty"`
	Usage         *Usage         `json:"usage,omitempty"`
	CustomOutputs map[string]any `json:"custom_outputs,omitempty"`
}

func (ResponsesAgentResponse) responsesModel() {}

// Usage reports token consumption.
type Usage struct {
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
	TotalTokens  int `json:"total_tokens,omitempty"`
}

// OutputItem is one item of a response output. Which fields are set depends
// on Type.
type OutputItem struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Role      string          `json:"role,omitempty"`
	Status    string          `json:"status,omitempty"`
	Content   []OutputContent `json:"content,omitempty"`
	CallID    string          `json:"call_id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Arguments string          `json:"arguments,omitempty"`
	Output    string          `json:"output,omitempty"`
	Summary   []SummaryText   `json:"summary,omitempty"`
}

func (OutputItem) responsesModel() {}

// OutputContent is a content part of an output message.
type OutputContent struct {
	Type        string       `json:"type"`
	Text        string       `json:"text"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

// Annotation marks a span of output text, such as a citation.
type Annotation struct {
	Type       string `json:"type"`
	Title      string `json:"title,omitempty"`
	URL        string `json:"url,omitempty"`
	StartIndex int    `json:"start_index,omitempty"`
	EndIndex   int    `json:"end_index,omitempty"`
}

// SummaryText is one entry of a reasoning summary.
type SummaryText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewTextOutputItem returns an assistant message with a single output_text
// part.
func NewTextOutputItem(id, text string) OutputItem {
	return OutputItem{
		Type: ItemTypeMessage,
		ID:   id,
		Role: RoleAssistant,
		Content: []OutputContent{
			{Type: "output_text", Text: text},
		},
	}
}

// ---------------------------------------------------------------------------
// Stream events
// ---------------------------------------------------------------------------

// Stream event types.
const (
	EventOutputItemDone  = "response.output_item.done"
	EventOutputTextDelta = "response.output_text.delta"
)

// ResponsesAgentStreamEvent is one chunk produced by a stream handler.
type ResponsesAgentStreamEvent struct {
	Type           string         `json:"type"`
	Item           *OutputItem    `json:"item,omitempty"`
	Delta          string         `json:"delta,omitempty"`
	ItemID         string         `json:"item_id,omitempty"`
	OutputIndex    *int           `json:"output_index,omitempty"`
	ContentIndex   *int           `json:"content_index,omitempty"`
	SequenceNumber *int           `json:"sequence_number,omitempty"`
	CustomOutputs  map[string]any `json:"custom_outputs,omitempty"`
}

func (ResponsesAgentStreamEvent) responsesModel() {}

// NewOutputItemDone returns a response.output_item.done event for item.
func NewOutputItemDone(item OutputItem) ResponsesAgentStreamEvent {
	return ResponsesAgentStreamEvent{Type: EventOutputItemDone, Item: &item}
}

// NewTextDelta returns a response.output_text.delta event.
func NewTextDelta(itemID, delta string) ResponsesAgentStreamEvent {
	return ResponsesAgentStreamEvent{Type: EventOutputTextDelta, ItemID: itemID, Delta: delta}
}
