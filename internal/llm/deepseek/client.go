package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mvamarnath1/interview/internal/llm"
	"github.com/mvamarnath1/interview/internal/models"
)

const providerName = "deepseek"

// Client talks to the OpenAI-compatible chat completions endpoint.
type Client struct {
	http   *http.Client
	config *Config
}

// NewClient uses httpClient when given; the caller's context bounds each call.
func NewClient(config *Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{http: httpClient, config: config}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float32         `json:"temperature"`
	MaxTokens      int32           `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Model string `json:"model"`
}

func (c *Client) GenerateContent(ctx context.Context, prompt string, opts llm.GenerationOptions) (*models.GenerationResponse, error) {
	startTime := time.Now()

	payload, err := json.Marshal(chatRequest{
		Model:          c.config.Model,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		Temperature:    opts.Temperature,
		MaxTokens:      opts.MaxOutputTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, c.fail(llm.ErrCodeInvalidInput, "Failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, c.fail(llm.ErrCodeInvalidInput, "Failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, c.fail(llm.ErrCodeTimeout, "Request timed out", err)
		}
		return nil, c.fail(llm.ErrCodeServiceDown, "Request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(llm.ErrCodeServiceDown, "Failed to read response", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, c.fail(llm.ErrCodeRateLimit, "Rate limited", statusError(resp.StatusCode, body))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, c.fail(llm.ErrCodeAPIKey, "Rejected credentials", statusError(resp.StatusCode, body))
	case resp.StatusCode != http.StatusOK:
		return nil, c.fail(llm.ErrCodeServiceDown, "Unexpected status", statusError(resp.StatusCode, body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, c.fail(llm.ErrCodeEmptyResponse, "Failed to decode response", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, c.fail(llm.ErrCodeEmptyResponse, "No choices in response", nil)
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return nil, c.fail(llm.ErrCodeEmptyResponse, "Empty response generated", nil)
	}

	model := parsed.Model
	if model == "" {
		model = c.config.Model
	}
	return &models.GenerationResponse{
		Content: content,
		Metadata: models.GenerationMetadata{
			ProcessingTime: int(time.Since(startTime).Milliseconds()),
			Provider:       providerName,
			Model:          model,
		},
	}, nil
}

func (c *Client) GetProviderName() string {
	return providerName
}

func (c *Client) fail(code, message string, err error) error {
	return &llm.ProviderError{Provider: providerName, Code: code, Message: message, Err: err}
}

func statusError(status int, body []byte) error {
	const maxBody = 200
	if len(body) > maxBody {
		body = body[:maxBody]
	}
	return fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(body)))
}
