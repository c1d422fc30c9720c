package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/mvamarnath1/interview/internal/config"
	"github.com/mvamarnath1/interview/internal/llm"
	"github.com/mvamarnath1/interview/internal/utils"
)

const serviceName = "interview"

type ReadinessCheck struct {
	Status  string `json:"status"` // "ok" | "failed"
	Message string `json:"message,omitempty"`
}

type ReadinessResponse struct {
	Status  string                    `json:"status"` // "ready" | "not_ready"
	Service string                    `json:"service"`
	Checks  map[string]ReadinessCheck `json:"checks"`
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type TemplateSource interface {
	GetTemplates() []string
}

type HealthHandler struct {
	provider  llm.Provider
	templates TemplateSource
	db        Pinger
	config    *config.Config
}

func NewHealthHandler(provider llm.Provider, templates TemplateSource, db Pinger, cfg *config.Config) *HealthHandler {
	return &HealthHandler{
		provider:  provider,
		templates: templates,
		db:        db,
		config:    cfg,
	}
}

func (handler *HealthHandler) HealthzHandler(writer http.ResponseWriter, request *http.Request) {
	utils.JSON(writer, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": serviceName,
		"version": "1.0.0",
	})
}

func (handler *HealthHandler) ReadyzHandler(writer http.ResponseWriter, request *http.Request) {
	checks := make(map[string]ReadinessCheck)
	allChecksPass := true
	fail := func(name, message string) {
		checks[name] = ReadinessCheck{Status: "failed", Message: message}
		allChecksPass = false
	}

	if handler.provider == nil {
		fail("provider", "AI provider not initialized")
	} else {
		checks["provider"] = ReadinessCheck{Status: "ok", Message: handler.provider.GetProviderName()}
	}

	switch {
	case handler.templates == nil:
		fail("prompt_manager", "Prompt manager not initialized")
	case len(handler.templates.GetTemplates()) == 0:
		fail("prompt_manager", "No prompt templates loaded")
	default:
		checks["prompt_manager"] = ReadinessCheck{Status: "ok"}
	}

	if handler.db == nil {
		fail("database", "Database not initialized")
	} else {
		ctx, cancel := context.WithTimeout(request.Context(), 2*time.Second)
		err := handler.db.PingContext(ctx)
		cancel()
		if err != nil {
			fail("database", err.Error())
		} else {
			checks["database"] = ReadinessCheck{Status: "ok"}
		}
	}

	if handler.config == nil {
		fail("configuration", "Configuration not loaded")
	} else {
		checks["configuration"] = ReadinessCheck{Status: "ok"}
	}

	response := ReadinessResponse{
		Service: serviceName,
		Checks:  checks,
	}

	if allChecksPass {
		response.Status = "ready"
		utils.JSON(writer, http.StatusOK, response)
	} else {
		response.Status = "not_ready"
		utils.JSON(writer, http.StatusServiceUnavailable, response)
	}
}
