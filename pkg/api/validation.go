package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		v.RegisterStructValidation(validateResponsesRequest, ResponsesAgentRequest{})
		v.RegisterStructValidation(validateInputItem, InputItem{})
		validate = v
	})
	return validate
}

func validateResponsesRequest(sl validator.StructLevel) {
	req := sl.Current().Interface().(ResponsesAgentRequest)
	switch {
	case !req.Input.IsSet():
		sl.ReportError(req.Input, "input", "Input", "required", "")
	case req.Input.IsText() && req.Input.Text == "":
		sl.ReportError(req.Input.Text, "input", "Input", "required", "")
	}
}

func validateInputItem(sl validator.StructLevel) {
	item := sl.Current().Interface().(InputItem)
	switch {
	case item.IsMessage():
		if item.Role == "" {
			sl.ReportError(item.Role, "role", "Role", "required", "")
		}
		if item.Content == nil {
			sl.ReportError(item.Content, "content", "Content", "required", "")
		}
	case item.Type == ItemTypeFunctionCall:
		if item.CallID == "" {
			sl.ReportError(item.CallID, "call_id", "CallID", "required", "")
		}
		if item.Name == "" {
			sl.ReportError(item.Name, "name", "Name", "required", "")
		}
	case item.Type == ItemTypeFunctionCallOutput:
		if item.CallID == "" {
			sl.ReportError(item.CallID, "call_id", "CallID", "required", "")
		}
	}
}

// ValidateRequest checks a request mapping against the request model of the
// given agent type. It returns an *APIError describing the first failure, or
// nil if the request is valid. Unknown agent types are always rejected. The
// mapping is not modified.
func ValidateRequest(agentType AgentType, data map[string]any) *APIError {
	switch agentType {
	case AgentTypeResponses:
		var req ResponsesAgentRequest
		return validateAs(agentType, data, &req)
	default:
		return NewInvalidRequestError("", fmt.Sprintf("Unsupported agent type %q", agentType))
	}
}

// validateAs decodes data into model and runs the struct validators on it.
func validateAs(agentType AgentType, data map[string]any, model any) *APIError {
	raw, err := json.Marshal(data)
	if err != nil {
		return invalidParams(agentType, "")
	}
	if err := json.Unmarshal(raw, model); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return invalidParams(agentType, typeErr.Field)
		}
		if errors.Is(err, errInvalidInput) {
			return invalidParams(agentType, "input")
		}
		return invalidParams(agentType, "")
	}

	if err := requestValidator().Struct(model); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return invalidParams(agentType, fieldPath(fieldErrs[0]))
		}
		return invalidParams(agentType, "")
	}
	return nil
}

func invalidParams(agentType AgentType, param string) *APIError {
	return NewInvalidRequestError(param,
		fmt.Sprintf("Invalid parameters for %s. Expected format based on MLflow agent type.", agentType))
}

// fieldPath turns a validator namespace such as
// "ResponsesAgentRequest.input.Items[0].role" into "input[0].role".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		ns = rest
	}
	return strings.ReplaceAll(ns, ".Items[", "[")
}
