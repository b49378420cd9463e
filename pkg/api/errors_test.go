package api

import (
	"encoding/json"
	"testing"
)

func TestAPIErrorInterface(t *testing.T) {
	var _ error = &APIError{}
}

func TestAPIErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			"with param",
			&APIError{Type: ErrorTypeInvalidRequest, Param: "input", Message: "is required"},
			"invalid_request: is required (param: input)",
		},
		{
			"without param",
			&APIError{Type: ErrorTypeServerError, Message: "No invoke function registered"},
			"server_error: No invoke function registered",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("APIError.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name      string
		err       *APIError
		wantType  ErrorType
		wantParam string
	}{
		{"invalid request", NewInvalidRequestError("input", "is required"), ErrorTypeInvalidRequest, "input"},
		{"not found", NewNotFoundError("trace not found"), ErrorTypeNotFound, ""},
		{"server error", NewServerError("internal failure"), ErrorTypeServerError, ""},
		{"unauthorized", NewUnauthorizedError("authentication required"), ErrorTypeUnauthorized, ""},
		{"too many requests", NewTooManyRequestsError("rate limit exceeded"), ErrorTypeTooManyRequests, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", tt.err.Type, tt.wantType)
			}
			if tt.err.Param != tt.wantParam {
				t.Errorf("Param = %q, want %q", tt.err.Param, tt.wantParam)
			}
		})
	}
}

func TestErrorResponseCarriesDetail(t *testing.T) {
	data, err := json.Marshal(NewErrorResponse(NewServerError("No stream function registered")))
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if got["detail"] != "No stream function registered" {
		t.Errorf("detail = %v, want %q", got["detail"], "No stream function registered")
	}
	inner, ok := got["error"].(map[string]any)
	if !ok {
		t.Fatalf("error field missing or wrong type: %v", got["error"])
	}
	if inner["type"] != string(ErrorTypeServerError) {
		t.Errorf("error.type = %v, want %q", inner["type"], ErrorTypeServerError)
	}
	if _, present := inner["param"]; present {
		t.Error("empty param should be omitted")
	}
}
