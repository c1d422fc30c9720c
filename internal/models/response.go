package models

import "time"

type CreateSessionResponse struct {
	SessionID        string    `json:"sessionId"`
	JoinCode         string    `json:"joinCode"`
	JoinURL          string    `json:"joinUrl"`
	ExpiresAt        time.Time `json:"expiresAt"`
	InterviewerToken string    `json:"interviewerToken"`
	WSPath           string    `json:"wsPath"`
}

type JoinResponse struct {
	SessionID string `json:"sessionId"`
	Role      Role   `json:"role"`
	Token     string `json:"token"`
	WSPath    string `json:"wsPath"`
}

type SessionView struct {
	Session
	InterviewerBound bool `json:"interviewerBound"`
	CandidateBound   bool `json:"candidateBound"`
}

// raw completion returned by an LLM provider
type GenerationResponse struct {
	Content  string             `json:"content"`
	Metadata GenerationMetadata `json:"metadata"`
}

type GenerationMetadata struct {
	ProcessingTime int    `json:"processing_time_ms"`
	Provider       string `json:"provider"`
	Model          string `json:"model"`
}
