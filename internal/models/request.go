package models

import (
	"strings"
	"unicode"
)

const maxOwnerNameLength = 128

type CreateSessionRequest struct {
	OwnerName string `json:"ownerName"`
}

// implements the Validator interface
func (r *CreateSessionRequest) Validate() error {
	r.OwnerName = strings.TrimSpace(r.OwnerName)
	if r.OwnerName == "" {
		return &ErrorResponse{
			Code:    "missing_owner_name",
			Message: "ownerName field is required",
		}
	}
	if len(r.OwnerName) > maxOwnerNameLength {
		return &ErrorResponse{
			Code:    "invalid_owner_name",
			Message: "ownerName must be at most 128 characters",
		}
	}
	return nil
}

type JoinRequest struct {
	Code string `json:"code"`
}

func (r *JoinRequest) Validate() error {
	r.Code = strings.TrimSpace(r.Code)
	if r.Code == "" {
		return &ErrorResponse{
			Code:    "missing_code",
			Message: "code field is required",
		}
	}
	if len(r.Code) != 6 || strings.IndexFunc(r.Code, func(c rune) bool { return !unicode.IsDigit(c) }) >= 0 {
		return &ErrorResponse{
			Code:    "invalid_code",
			Message: "code must be 6 digits",
		}
	}
	return nil
}
