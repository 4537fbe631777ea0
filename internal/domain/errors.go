package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors
var (
	ErrMissingCredentials   = errors.New("account and api key are required")
	ErrUnauthorized         = errors.New("unauthorized: check the api key")
	ErrNotFound             = errors.New("resource not found")
	ErrTransportFailure     = errors.New("upstream request failed")
	ErrStorage              = errors.New("credentials could not be stored")
	ErrIncompleteAnswers    = errors.New("every question needs an answer before submitting")
	ErrAlreadyExists        = errors.New("player already exists")
	ErrProbeFailed          = errors.New("could not check whether the player exists")
	ErrCredentialsNotStored = errors.New("store the credentials before creating players")
	ErrInvalidState         = errors.New("operation not allowed in the current quiz state")
	ErrNoAnswer             = errors.New("answer the current question first")
	ErrNoPlayerSelected     = errors.New("no player selected")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrUnknownBoard         = errors.New("unknown board")
)

// APIError is a non-2xx response from the upstream API
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// Unwrap maps the status code onto the error taxonomy
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrTransportFailure
	}
}

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// UserMessage returns the text an operator sees for err. Upstream messages are
// surfaced verbatim.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status == http.StatusUnauthorized && apiErr.Message == "" {
			return ErrUnauthorized.Error()
		}
		return apiErr.Error()
	}
	return err.Error()
}
