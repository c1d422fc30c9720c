package gemini

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/mvamarnath1/interview/internal/llm"
	"github.com/mvamarnath1/interview/internal/models"
)

const providerName = "gemini"

// Client represents a Gemini LLM client
type Client struct {
	client *genai.Client
	config *Config
}

func NewClient(config *Config) (*Client, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodeAPIKey,
			Message:  "Failed to create Gemini client",
			Err:      err,
		}
	}

	return &Client{
		client: client,
		config: config,
	}, nil
}

// GenerateContent runs a single completion. The model is asked for a JSON
// document; parsing is left to the caller.
func (c *Client) GenerateContent(ctx context.Context, prompt string, opts llm.GenerationOptions) (*models.GenerationResponse, error) {
	startTime := time.Now()

	genConfig := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(opts.Temperature),
		ResponseMIMEType: "application/json",
	}
	if opts.MaxOutputTokens > 0 {
		genConfig.MaxOutputTokens = opts.MaxOutputTokens
	}

	result, err := c.client.Models.GenerateContent(ctx, c.config.Model, genai.Text(prompt), genConfig)
	if err != nil {
		code := llm.ErrCodeServiceDown
		switch {
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
			code = llm.ErrCodeTimeout
		case isRateLimitError(err):
			code = llm.ErrCodeRateLimit
		}
		return nil, &llm.ProviderError{
			Provider: providerName,
			Code:     code,
			Message:  "Failed to generate content",
			Err:      err,
		}
	}

	if result == nil {
		return nil, &llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodeEmptyResponse,
			Message:  "No response generated",
		}
	}

	content := strings.TrimSpace(result.Text())
	if content == "" {
		return nil, &llm.ProviderError{
			Provider: providerName,
			Code:     llm.ErrCodeEmptyResponse,
			Message:  "Empty response generated",
		}
	}

	return &models.GenerationResponse{
		Content: content,
		Metadata: models.GenerationMetadata{
			ProcessingTime: int(time.Since(startTime).Milliseconds()),
			Provider:       providerName,
			Model:          c.config.Model,
		},
	}, nil
}

func (c *Client) GetProviderName() string {
	return providerName
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "quota")
}
