package models

import "time"

type SessionState string

const (
	SessionOpen    SessionState = "open"
	SessionJoined  SessionState = "joined"
	SessionExpired SessionState = "expired"
	SessionClosed  SessionState = "closed"
)

// Active reports whether the session still holds its join code.
func (s SessionState) Active() bool {
	return s == SessionOpen || s == SessionJoined
}

type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleCandidate   Role = "candidate"
)

func (r Role) Valid() bool {
	return r == RoleInterviewer || r == RoleCandidate
}

// Peer returns the opposite side of the pairing.
func (r Role) Peer() Role {
	if r == RoleInterviewer {
		return RoleCandidate
	}
	return RoleInterviewer
}

// Session is one interview pairing. Live connection bindings are owned by the
// relay and never persisted.
type Session struct {
	ID             string       `gorm:"primaryKey;size:36" json:"sessionId"`
	OwnerName      string       `gorm:"not null" json:"ownerName"`
	JoinCode       string       `gorm:"size:6;index" json:"joinCode"`
	State          SessionState `gorm:"size:16;index" json:"state"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
	ExpiresAt      time.Time    `gorm:"not null" json:"expiresAt"`
	LastActivityAt time.Time    `json:"lastActivityAt"`
}

// Expired reports whether the hard TTL has elapsed at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
