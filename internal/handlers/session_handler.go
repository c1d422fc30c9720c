package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mvamarnath1/interview/internal/middleware"
	"github.com/mvamarnath1/interview/internal/models"
	"github.com/mvamarnath1/interview/internal/utils"
)

// SessionRegistry is the part of the session registry exposed over HTTP.
type SessionRegistry interface {
	CreateSession(ctx context.Context, ownerName string) (models.Session, error)
	Get(ctx context.Context, sessionID string) (models.Session, error)
	Close(ctx context.Context, sessionID string) error
	ResolveJoinCode(ctx context.Context, code string) (string, error)
}

// PresenceReader reports which roles hold a live connection.
type PresenceReader interface {
	Bound(sessionID string) (interviewer, candidate bool)
}

type TurnLister interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.Turn, error)
}

type SessionHandler struct {
	registry      SessionRegistry
	presence      PresenceReader
	turns         TurnLister
	tokens        *utils.TokenIssuer
	publicBaseURL string
	logger        *zap.Logger
}

func NewSessionHandler(registry SessionRegistry, presence PresenceReader, turns TurnLister, tokens *utils.TokenIssuer, publicBaseURL string, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		registry:      registry,
		presence:      presence,
		turns:         turns,
		tokens:        tokens,
		publicBaseURL: publicBaseURL,
		logger:        logger,
	}
}

// WSPath is the relay endpoint a role connects to.
func WSPath(sessionID string, role models.Role) string {
	return "/ws/" + sessionID + "/" + string(role)
}

// CreateHandler opens a session for the interviewer.
func (h *SessionHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.CreateSessionRequest](r)

	session, err := h.registry.CreateSession(r.Context(), req.OwnerName)
	if err != nil {
		h.logger.Warn("failed to create session", zap.Error(err))
		writeDomainError(w, err)
		return
	}

	token, err := h.tokens.Issue(session.ID, string(models.RoleInterviewer))
	if err != nil {
		h.logger.Error("failed to issue interviewer token", zap.String("session_id", session.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to issue token")
		return
	}

	h.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("owner", session.OwnerName))

	utils.JSON(w, http.StatusCreated, models.CreateSessionResponse{
		SessionID:        session.ID,
		JoinCode:         session.JoinCode,
		JoinURL:          h.publicBaseURL + "/join?code=" + url.QueryEscape(session.JoinCode),
		ExpiresAt:        session.ExpiresAt,
		InterviewerToken: token,
		WSPath:           WSPath(session.ID, models.RoleInterviewer),
	})
}

// JoinHandler resolves a join code for the candidate and hands out a token.
func (h *SessionHandler) JoinHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.JoinRequest](r)

	sessionID, err := h.registry.ResolveJoinCode(r.Context(), req.Code)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	token, err := h.tokens.Issue(sessionID, string(models.RoleCandidate))
	if err != nil {
		h.logger.Error("failed to issue candidate token", zap.String("session_id", sessionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to issue token")
		return
	}

	utils.JSON(w, http.StatusOK, models.JoinResponse{
		SessionID: sessionID,
		Role:      models.RoleCandidate,
		Token:     token,
		WSPath:    WSPath(sessionID, models.RoleCandidate),
	})
}

func (h *SessionHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	session, err := h.registry.Get(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	view := models.SessionView{Session: session}
	if h.presence != nil {
		view.InterviewerBound, view.CandidateBound = h.presence.Bound(sessionID)
	}
	utils.JSON(w, http.StatusOK, view)
}

// CloseHandler ends the session. Closing an ended session succeeds too.
func (h *SessionHandler) CloseHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if err := h.registry.Close(r.Context(), sessionID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TurnsHandler lists the persisted question/answer history of a session.
func (h *SessionHandler) TurnsHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if _, err := h.registry.Get(r.Context(), sessionID); err != nil {
		writeDomainError(w, err)
		return
	}

	turns := []models.Turn{}
	if h.turns != nil {
		listed, err := h.turns.ListBySession(r.Context(), sessionID)
		if err != nil {
			h.logger.Error("failed to list turns", zap.String("session_id", sessionID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to load turns")
			return
		}
		turns = listed
	}
	utils.JSON(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"turns":     turns,
	})
}
