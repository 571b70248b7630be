package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 1 << 20

// Envelope is the backend's uniform response wrapper.
type Envelope[T any] struct {
	Success *bool  `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}

// Decode reads resp and unwraps its envelope. The body is consumed and closed.
//
// A non-2xx status or an explicit success:false yields *StatusError carrying the
// backend message. An undecodable 2xx body yields ErrMalformedResponse.
func Decode[T any](resp *http.Response) (T, error) {
	var zero T
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return zero, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return zero, &StatusError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
		}
	}

	var env Envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if env.Success != nil && !*env.Success {
		return zero, &StatusError{
			StatusCode: resp.StatusCode,
			Message:    env.Message,
		}
	}
	return env.Data, nil
}

// errorMessage pulls {message} out of an error body; anything else yields "".
func errorMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}
