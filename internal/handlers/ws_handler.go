package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mvamarnath1/interview/internal/models"
	"github.com/mvamarnath1/interview/internal/relay"
	"github.com/mvamarnath1/interview/internal/utils"
)

const maxFrameBytes = 1 << 16

// Relay is the part of the relay manager driven by a connection.
type Relay interface {
	Bind(ctx context.Context, sessionID string, role models.Role, client *relay.Client) (*relay.Binding, error)
	Forward(b *relay.Binding, data []byte) error
	Disconnect(b *relay.Binding)
}

type WSHandler struct {
	relay    Relay
	tokens   *utils.TokenIssuer
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewWSHandler(r Relay, tokens *utils.TokenIssuer, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		relay:  r,
		tokens: tokens,
		// access is gated by the binding token, not the origin
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		logger:   logger,
	}
}

// ServeWS binds the connection as {role} in {sessionId} and pumps frames
// into the relay until the connection drops, is superseded or the session
// ends.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	role := models.Role(chi.URLParam(r, "role"))
	if !role.Valid() {
		writeError(w, http.StatusBadRequest, models.ErrInvalidRole.Error(), "role must be interviewer or candidate")
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = utils.ExtractTokenFromHeader(r.Header.Get("Authorization"))
	}
	claims, err := h.tokens.Validate(token)
	if err != nil || claims.SessionID != sessionID || claims.Role != string(role) {
		writeError(w, http.StatusUnauthorized, "invalid_token", "token does not grant this binding")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	client := relay.NewClient(conn)
	defer client.Close("")

	binding, err := h.relay.Bind(r.Context(), sessionID, role, client)
	if err != nil {
		code := models.ErrorCode(err)
		_ = client.Send(models.ErrorFrame(sessionID, role, code, "cannot bind to session"))
		client.Close(code)
		return
	}
	defer h.relay.Disconnect(binding)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("connection dropped",
					zap.String("session_id", sessionID),
					zap.String("role", string(role)),
					zap.Error(err))
			}
			return
		}
		if err := h.relay.Forward(binding, data); err != nil {
			if errors.Is(err, models.ErrProtocol) {
				continue
			}
			return
		}
	}
}
