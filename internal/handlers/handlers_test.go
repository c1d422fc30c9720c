package handlers

import (
	"context"
	"errors"
	"sync"

	"github.com/mvamarnath1/interview/internal/llm"
	"github.com/mvamarnath1/interview/internal/models"
)

type mockProvider struct {
	getProviderNameFn func() string
}

func (m *mockProvider) GenerateContent(context.Context, string, llm.GenerationOptions) (*models.GenerationResponse, error) {
	return &models.GenerationResponse{}, nil
}

func (m *mockProvider) GetProviderName() string {
	if m.getProviderNameFn == nil {
		return "mock"
	}
	return m.getProviderNameFn()
}

type mockTemplates struct {
	templates []string
}

func (m *mockTemplates) GetTemplates() []string { return m.templates }

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(context.Context) error { return m.err }

type mockPresence struct {
	interviewer, candidate bool
}

func (m *mockPresence) Bound(string) (bool, bool) { return m.interviewer, m.candidate }

type failingTurns struct{}

func (failingTurns) ListBySession(context.Context, string) ([]models.Turn, error) {
	return nil, errors.New("database unavailable")
}

// stubAnswerer echoes the question back as the answer.
type stubAnswerer struct {
	mu    sync.Mutex
	calls int
}

func (s *stubAnswerer) Answer(_ context.Context, _, _, question string) (models.Answer, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return models.Answer{Question: question, Text: "echo: " + question, Score: 7, Category: models.CategoryGeneral}, nil
}
