package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport wraps failures where no backend response was received.
	ErrTransport = errors.New("backend transport failure")
	// ErrMalformedResponse is returned when a 2xx body cannot be decoded or lacks required fields.
	ErrMalformedResponse = errors.New("malformed backend response")
)

// StatusError is returned when the backend answers with a non-2xx status or with
// success:false. Message is the backend-supplied text, possibly empty.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}
