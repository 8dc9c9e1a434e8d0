package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrTransport         = errors.New("booking backend unreachable")
	ErrMalformedResponse = errors.New("malformed booking backend response")
	ErrMissingCredential = errors.New("missing backend credential")
)

// Kind classifies a failed backend call so screens can word it correctly.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindServer       Kind = "server"
	KindTransport    Kind = "transport"
	KindMalformed    Kind = "malformed"
	KindUnknown      Kind = "unknown"
)

// APIError is a non-success answer from the backend.
type APIError struct {
	Status  int
	Kind    Kind
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// conflict phrases used by the backend when it rejects a double booking with 400
var conflictPhrases = []string{"already booked", "overlap"}

func classify(status int, message string) Kind {
	switch {
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		lower := strings.ToLower(message)
		for _, p := range conflictPhrases {
			if strings.Contains(lower, p) {
				return KindConflict
			}
		}
		return KindValidation
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnauthorized
	case status >= 500:
		return KindServer
	case status >= 400:
		return KindValidation
	}
	return KindUnknown
}

// KindOf returns the failure kind of any error produced by the client.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Kind
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformed
	}
	return KindUnknown
}

// MessageOf returns the backend supplied message, if any.
func MessageOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}
