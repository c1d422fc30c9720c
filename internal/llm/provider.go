package llm

import (
	"context"
	"errors"

	"github.com/mvamarnath1/interview/internal/models"
)

// sampling bounds applied to a single completion call
type GenerationOptions struct {
	Temperature     float32
	MaxOutputTokens int32
}

// defines the interface for LLM providers
type Provider interface {
	GenerateContent(ctx context.Context, prompt string, opts GenerationOptions) (*models.GenerationResponse, error)
	GetProviderName() string
}

// represents an error from an LLM provider
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Provider + " error: " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Provider + " error: " + e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeAPIKey        = "invalid_api_key"
	ErrCodeRateLimit     = "rate_limit_exceeded"
	ErrCodeServiceDown   = "service_unavailable"
	ErrCodeInvalidInput  = "invalid_input"
	ErrCodeTimeout       = "timeout"
	ErrCodeEmptyResponse = "empty_response"
)

// Classify maps a provider failure onto the upstream error taxonomy. An empty
// or unusable completion is malformed; everything else means the upstream
// could not be reached in time.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrUpstreamMalformed) || errors.Is(err, models.ErrUpstreamUnavailable) {
		return err
	}
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		switch provErr.Code {
		case ErrCodeEmptyResponse, ErrCodeInvalidInput:
			return errors.Join(models.ErrUpstreamMalformed, err)
		}
	}
	return errors.Join(models.ErrUpstreamUnavailable, err)
}
