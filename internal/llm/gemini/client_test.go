package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/genai"

	"github.com/mvamarnath1/interview/internal/llm"
	"github.com/mvamarnath1/interview/internal/models"
)

func newStubClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	genaiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     "test",
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: server.Client(),
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    server.URL,
			APIVersion: "v1beta",
		},
	})
	if err != nil {
		t.Fatalf("failed to create genai client: %v", err)
	}

	return &Client{
		client: genaiClient,
		config: &Config{APIKey: "test", Model: "test-model"},
	}
}

func textResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	}
}

func TestClientGenerateContentSuccess(t *testing.T) {
	var sentConfig map[string]any
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/test-model:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			sentConfig, _ = body["generationConfig"].(map[string]any)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(textResponse(`{"answer":"hi","score":7,"category":"general"}`))
	})

	resp, err := client.GenerateContent(context.Background(), "prompt", llm.GenerationOptions{Temperature: 0.2, MaxOutputTokens: 128})
	if err != nil {
		t.Fatalf("GenerateContent returned error: %v", err)
	}
	if resp.Content != `{"answer":"hi","score":7,"category":"general"}` {
		t.Fatalf("unexpected content %s", resp.Content)
	}
	if resp.Metadata.Model != "test-model" || resp.Metadata.Provider != "gemini" {
		t.Fatalf("expected metadata to include model and provider, got %+v", resp.Metadata)
	}
	if sentConfig == nil {
		t.Fatal("expected generationConfig in request")
	}
	if tokens, _ := sentConfig["maxOutputTokens"].(float64); tokens != 128 {
		t.Fatalf("expected maxOutputTokens 128, got %v", sentConfig["maxOutputTokens"])
	}
	if temp, _ := sentConfig["temperature"].(float64); temp < 0.19 || temp > 0.21 {
		t.Fatalf("expected temperature 0.2, got %v", sentConfig["temperature"])
	}
}

func TestClientGenerateContentRateLimit(t *testing.T) {
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "429 rate limit", http.StatusTooManyRequests)
	})

	_, err := client.GenerateContent(context.Background(), "prompt", llm.GenerationOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	var provErr *llm.ProviderError
	if !errors.As(err, &provErr) || provErr.Code != llm.ErrCodeRateLimit {
		t.Fatalf("expected provider rate limit error, got %v", err)
	}
	if !errors.Is(llm.Classify(err), models.ErrUpstreamUnavailable) {
		t.Fatalf("rate limit should classify as upstream unavailable")
	}
}

func TestClientGenerateContentEmptyResponse(t *testing.T) {
	client := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(textResponse(""))
	})

	_, err := client.GenerateContent(context.Background(), "prompt", llm.GenerationOptions{})
	if err == nil {
		t.Fatal("expected error for empty response")
	}
	if !errors.Is(llm.Classify(err), models.ErrUpstreamMalformed) {
		t.Fatalf("empty response should classify as malformed, got %v", err)
	}
}

func TestGetProviderNameAndRateLimitHelper(t *testing.T) {
	client := &Client{}
	if client.GetProviderName() != "gemini" {
		t.Fatalf("expected provider name gemini")
	}

	cases := map[string]bool{
		"429 rate limit exceeded": true,
		"RESOURCE_EXHAUSTED":      true,
		"quota exceeded":          true,
		"other error":             false,
	}
	for input, expect := range cases {
		if got := isRateLimitError(errors.New(input)); got != expect {
			t.Fatalf("isRateLimitError(%s) = %v, expected %v", input, got, expect)
		}
	}
	if isRateLimitError(nil) {
		t.Fatalf("expected nil error to return false")
	}
}
