package models

import "errors"

var (
	// join-code errors, shown to the user
	ErrNotFound = errors.New("not_found")
	ErrExpired  = errors.New("expired")

	// client misuse, connection-local
	ErrInvalidSession = errors.New("invalid_session")
	ErrInvalidRole    = errors.New("invalid_role")
	ErrProtocol       = errors.New("protocol_error")

	// completion failures, always recovered by the fallback answer
	ErrUpstreamUnavailable = errors.New("upstream_unavailable")
	ErrUpstreamMalformed   = errors.New("upstream_malformed")

	ErrResourceExhausted = errors.New("resource_exhausted")
)

// ErrorCode returns the wire code for a domain error, or "internal_error".
func ErrorCode(err error) string {
	for _, known := range []error{
		ErrNotFound, ErrExpired, ErrInvalidSession, ErrInvalidRole, ErrProtocol,
		ErrUpstreamUnavailable, ErrUpstreamMalformed, ErrResourceExhausted,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal_error"
}

// uniform error responses
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorResponse) Error() string {
	return e.Code + ": " + e.Message
}
