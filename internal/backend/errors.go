package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is matched by errors.Is for 404 responses.
	ErrNotFound = errors.New("backend: not found")
	// ErrInvalidPayload is returned when a response cannot be decoded or fails validation.
	ErrInvalidPayload = errors.New("backend: invalid payload")
	// ErrUnauthorized is matched by errors.Is for 401 and 403 responses.
	ErrUnauthorized = errors.New("backend: unauthorized")
)

// APIError describes a non-2xx response from the commerce backend.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Resource   string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("backend: %s responded %d: %s", e.Resource, e.StatusCode, msg)
}

// Is maps status codes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// Temporary reports whether retrying later might succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}
