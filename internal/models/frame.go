package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

type FrameType string

const (
	FrameQuestion FrameType = "question"
	FrameAnswer   FrameType = "answer"
	FramePresence FrameType = "presence"
	FrameError    FrameType = "error"
)

func (t FrameType) Valid() bool {
	switch t {
	case FrameQuestion, FrameAnswer, FramePresence, FrameError:
		return true
	}
	return false
}

// presence statuses carried in FramePresence bodies
const (
	PresenceConnected               = "connected"
	PresenceCandidateConnected      = "candidate_connected"
	PresenceCandidateDisconnected   = "candidate_disconnected"
	PresenceInterviewerConnected    = "interviewer_connected"
	PresenceInterviewerDisconnected = "interviewer_disconnected"
	PresenceSuperseded              = "superseded"
	PresenceSessionClosed           = "session_closed"
)

// PresenceConnectedFor returns the status announced to the peer when role binds.
func PresenceConnectedFor(role Role) string {
	if role == RoleCandidate {
		return PresenceCandidateConnected
	}
	return PresenceInterviewerConnected
}

// PresenceDisconnectedFor returns the status announced to the peer when role drops.
func PresenceDisconnectedFor(role Role) string {
	if role == RoleCandidate {
		return PresenceCandidateDisconnected
	}
	return PresenceInterviewerDisconnected
}

// Frame is the tagged payload exchanged over a relay connection.
type Frame struct {
	Type      FrameType       `json:"type"`
	SessionID string          `json:"sessionId"`
	Role      Role            `json:"role"`
	Body      json.RawMessage `json:"body,omitempty"`
}

type QuestionBody struct {
	Text string `json:"text"`
}

type PresenceBody struct {
	Status string `json:"status"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewFrame marshals body into a frame. Bodies are plain structs so marshalling
// cannot fail in practice; a failure yields a frame without body.
func NewFrame(t FrameType, sessionID string, role Role, body any) Frame {
	f := Frame{Type: t, SessionID: sessionID, Role: role}
	if body != nil {
		if b, err := json.Marshal(body); err == nil {
			f.Body = b
		}
	}
	return f
}

func PresenceFrame(sessionID string, role Role, status string) Frame {
	return NewFrame(FramePresence, sessionID, role, PresenceBody{Status: status})
}

func ErrorFrame(sessionID string, role Role, code, message string) Frame {
	return NewFrame(FrameError, sessionID, role, ErrorBody{Code: code, Message: message})
}

// ParseFrame decodes a client frame. Malformed JSON and unknown tags both
// yield ErrProtocol.
func ParseFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: malformed frame: %v", ErrProtocol, err)
	}
	if !f.Type.Valid() {
		return f, fmt.Errorf("%w: unknown frame type %q", ErrProtocol, f.Type)
	}
	return f, nil
}

// QuestionText extracts the question from a question frame body. A bare JSON
// string body is accepted as well as {"text": ...}.
func (f Frame) QuestionText() (string, error) {
	if len(f.Body) == 0 {
		return "", fmt.Errorf("%w: question frame without body", ErrProtocol)
	}
	var body QuestionBody
	if err := json.Unmarshal(f.Body, &body); err != nil {
		var text string
		if err := json.Unmarshal(f.Body, &text); err != nil {
			return "", fmt.Errorf("%w: question body must be text", ErrProtocol)
		}
		body.Text = text
	}
	body.Text = strings.TrimSpace(body.Text)
	if body.Text == "" {
		return "", fmt.Errorf("%w: empty question", ErrProtocol)
	}
	return body.Text, nil
}
