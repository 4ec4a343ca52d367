package core

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport means the completion provider could not be reached or
	// did not answer before the deadline.
	ErrTransport = errors.New("completion provider unreachable")
	// ErrMalformedResponse means the provider answered without the expected
	// answer text.
	ErrMalformedResponse = errors.New("malformed completion response")
	// ErrNoExchange is returned by feedback actions when nothing has been
	// answered yet in the session.
	ErrNoExchange = errors.New("no answered question to rate")
)

// ProviderError is a non-success answer from the completion provider.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("Error %d: %s", e.StatusCode, e.Body)
}

// DescribeError turns a Submit failure into the text shown to the user.
func DescribeError(err error) string {
	var perr *ProviderError
	switch {
	case errors.As(err, &perr):
		return perr.Error()
	case errors.Is(err, ErrTransport):
		return "The assistant could not be reached. Please try again."
	case errors.Is(err, ErrMalformedResponse):
		return "The assistant returned an unexpected response. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}

// ErrorKind is a short machine-readable label for API responses.
func ErrorKind(err error) string {
	var perr *ProviderError
	switch {
	case errors.As(err, &perr):
		return "provider_error"
	case errors.Is(err, ErrTransport):
		return "transport_error"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	default:
		return "internal_error"
	}
}
