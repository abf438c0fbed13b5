package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies an error for the caller. The cache engine, the session guard and the CLI
// branch on Kind, never on message text.
type Kind string

const (
	KindAuth        Kind = "AUTH"         // 401/403, missing or expired token
	KindValidation  Kind = "VALIDATION"   // 400/422, rejected payload
	KindNotFound    Kind = "NOT_FOUND"    // 404, mutation target is gone
	KindNetwork     Kind = "NETWORK"      // transport failure, timeout
	KindRateLimited Kind = "RATE_LIMITED" // 429, daily AI usage exhausted
	KindServer      Kind = "SERVER"       // everything else
)

// Error is the structured error every layer of the client returns.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewAuth(message string) *Error {
	return &Error{Kind: KindAuth, Status: http.StatusUnauthorized, Message: message}
}

// NewValidation creates a validation error. Details maps field name to the failed rule.
func NewValidation(message string, details map[string]any) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: message, Details: details}
}

func NewNotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Message: message}
}

// NewNetwork wraps a transport failure. Status stays 0: no response was received.
func NewNetwork(err error) *Error {
	return &Error{Kind: KindNetwork, Message: "network error", Err: err}
}

func NewServer(status int, message string) *Error {
	return &Error{Kind: KindServer, Status: status, Message: message}
}

// NewRateLimited mirrors the backend's LimitExceeded payload.
func NewRateLimited(message string, limit, used int, resetAfter time.Time) *Error {
	if message == "" {
		message = "daily AI usage limit exceeded"
	}
	return &Error{
		Kind:    KindRateLimited,
		Status:  http.StatusTooManyRequests,
		Message: message,
		Details: map[string]any{
			"limit":       limit,
			"used":        used,
			"reset_after": resetAfter,
		},
	}
}

// FromStatus maps an HTTP error status to the taxonomy.
func FromStatus(status int, message string, details map[string]any) *Error {
	if message == "" {
		message = http.StatusText(status)
	}

	var kind Kind
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		kind = KindValidation
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	default:
		kind = KindServer
	}

	return &Error{Kind: kind, Status: status, Message: message, Details: details}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindServer when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindServer
}

func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsUnauthorized reports a 401. Only 401 clears the session; a 403 is surfaced as-is.
func IsUnauthorized(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindAuth && e.Status == http.StatusUnauthorized
}

func IsNotFound(err error) bool {
	return Is(err, KindNotFound)
}

func IsValidation(err error) bool {
	return Is(err, KindValidation)
}

func IsNetwork(err error) bool {
	return Is(err, KindNetwork)
}
