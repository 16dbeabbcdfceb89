package api

import (
	"errors"
	"fmt"
	"strings"
)

var (
	InvalidCredentialsErr = errors.New("invalid credentials")
	UnauthorizedErr       = errors.New("unauthorized")
	RequestFailedErr      = errors.New("request failed")
)

// APIError is the decoded error payload of a non-2xx response. The backend
// reports either a message, an error string, or a field-keyed validation map;
// whichever is present ends up in Message / ValidationErrors.
type APIError struct {
	Status           int               `json:"-"`
	Message          string            `json:"message,omitempty"`
	ErrorText        string            `json:"error,omitempty"`
	ValidationErrors map[string]string `json:"validationErrors,omitempty"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.ErrorText
	}
	if msg == "" && len(e.ValidationErrors) > 0 {
		parts := make([]string, 0, len(e.ValidationErrors))
		for field, detail := range e.ValidationErrors {
			parts = append(parts, fmt.Sprintf("%s: %s", field, detail))
		}
		msg = strings.Join(parts, "; ")
	}
	if msg == "" {
		msg = "no error detail"
	}
	return fmt.Sprintf("api error (status %d): %s", e.Status, msg)
}

// Unwrap maps the status code onto the package sentinels so that callers can
// branch with errors.Is without inspecting payloads.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case 401, 403:
		return UnauthorizedErr
	default:
		return RequestFailedErr
	}
}
