package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mvamarnath1/interview/internal/config"
)

func decodeReadinessResponse(t *testing.T, rec *httptest.ResponseRecorder) ReadinessResponse {
	t.Helper()
	var response ReadinessResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return response
}

func TestHealthzHandler(t *testing.T) {
	handler := NewHealthHandler(nil, nil, nil, nil)
	rec := httptest.NewRecorder()
	handler.HealthzHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "interview" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestReadyzHandler_AllHealthy(t *testing.T) {
	handler := NewHealthHandler(&mockProvider{}, &mockTemplates{templates: []string{"answer"}}, &mockPinger{}, &config.Config{Provider: "gemini"})

	rec := httptest.NewRecorder()
	handler.ReadyzHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	response := decodeReadinessResponse(t, rec)
	if response.Status != "ready" {
		t.Errorf("expected status 'ready', got '%s'", response.Status)
	}
	for _, name := range []string{"provider", "prompt_manager", "database", "configuration"} {
		check, ok := response.Checks[name]
		if !ok {
			t.Errorf("missing check: %s", name)
			continue
		}
		if check.Status != "ok" {
			t.Errorf("check %s: expected status 'ok', got '%s'", name, check.Status)
		}
	}
}

func TestReadyzHandler_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler *HealthHandler
		failing string
	}{
		{
			name:    "no provider",
			handler: NewHealthHandler(nil, &mockTemplates{templates: []string{"answer"}}, &mockPinger{}, &config.Config{}),
			failing: "provider",
		},
		{
			name:    "no templates",
			handler: NewHealthHandler(&mockProvider{}, &mockTemplates{}, &mockPinger{}, &config.Config{}),
			failing: "prompt_manager",
		},
		{
			name:    "database down",
			handler: NewHealthHandler(&mockProvider{}, &mockTemplates{templates: []string{"answer"}}, &mockPinger{err: errors.New("connection refused")}, &config.Config{}),
			failing: "database",
		},
		{
			name:    "no config",
			handler: NewHealthHandler(&mockProvider{}, &mockTemplates{templates: []string{"answer"}}, &mockPinger{}, nil),
			failing: "configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler.ReadyzHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rec.Code != http.StatusServiceUnavailable {
				t.Fatalf("expected status 503, got %d", rec.Code)
			}
			response := decodeReadinessResponse(t, rec)
			if response.Status != "not_ready" {
				t.Errorf("expected status 'not_ready', got '%s'", response.Status)
			}
			if response.Checks[tt.failing].Status != "failed" {
				t.Errorf("expected check %s to fail, got %+v", tt.failing, response.Checks[tt.failing])
			}
		})
	}
}
