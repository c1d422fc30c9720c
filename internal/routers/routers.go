package routers

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mvamarnath1/interview/internal/handlers"
	"github.com/mvamarnath1/interview/internal/metrics"
	"github.com/mvamarnath1/interview/internal/middleware"
	"github.com/mvamarnath1/interview/internal/models"
)

const apiTimeout = 30 * time.Second

func HealthRoutes(router *chi.Mux, healthHandler *handlers.HealthHandler) {
	router.Get("/healthz", healthHandler.HealthzHandler)
	router.Get("/readyz", healthHandler.ReadyzHandler)
}

func MetricsRoutes(router *chi.Mux) {
	router.Handle("/metrics", metrics.Handler())
}

func SessionRoutes(router *chi.Mux, sessionHandler *handlers.SessionHandler) {
	router.Route("/api/v1", func(r chi.Router) {
		// long-lived websocket routes live outside this group
		r.Use(chimiddleware.Timeout(apiTimeout))

		r.With(middleware.ValidateRequest[*models.CreateSessionRequest]()).Post("/sessions", sessionHandler.CreateHandler)
		r.Get("/sessions/{id}", sessionHandler.GetHandler)
		r.Delete("/sessions/{id}", sessionHandler.CloseHandler)
		r.Get("/sessions/{id}/turns", sessionHandler.TurnsHandler)
		r.With(middleware.ValidateRequest[*models.JoinRequest]()).Post("/join", sessionHandler.JoinHandler)
	})
}

func RelayRoutes(router *chi.Mux, wsHandler *handlers.WSHandler) {
	router.Get("/ws/{sessionId}/{role}", wsHandler.ServeWS)
}
