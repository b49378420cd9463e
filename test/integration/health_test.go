package integration

import (
	"net/http"
	"strings"
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/health")

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
	if body["agent_type"] != "agent/v1/responses" {
		t.Errorf("agent_type = %q, want %q", body["agent_type"], "agent/v1/responses")
	}
}

func TestMetricsEndpointNoAuth(t *testing.T) {
	// Generate at least one request so the counters have samples.
	resp := postJSON(t, testEnv.BaseURL()+"/invocations", invocation("hi", false))
	readBody(t, resp)

	resp = getURL(t, testEnv.BaseURL()+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 without auth, got %d", resp.StatusCode)
	}

	body := readBody(t, resp)
	for _, name := range []string{
		"agentserver_requests_total",
		"agentserver_request_duration_seconds",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output lacks %s", name)
		}
	}
}
