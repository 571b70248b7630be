package goSession

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidCredentials is returned when the backend rejects a login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoRefreshToken is returned when a refresh is attempted with nothing persisted.
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrRefreshRejected is returned when the backend rejects a refresh token.
	ErrRefreshRejected = errors.New("refresh token rejected")
	// ErrNetworkFailure is returned when a backend call fails at the transport level.
	ErrNetworkFailure = errors.New("network failure")
	// ErrStorageFailure is returned when the persistence mirror cannot be written.
	ErrStorageFailure = errors.New("session storage failure")
	// ErrCredentialsRequired is returned by Login when email or password is empty.
	ErrCredentialsRequired = errors.New("email and password are required")
	// ErrOperationInFlight is returned when a Login or RefreshToken is already running.
	ErrOperationInFlight = errors.New("session operation already in flight")
	// ErrAlreadyInitialized is returned by a second call to Initialize.
	ErrAlreadyInitialized = errors.New("session manager already initialized")
	// ErrManagerClosed is returned by operations on a closed Manager.
	ErrManagerClosed = errors.New("session manager closed")
)

// ErrorKind classifies an [AuthError].
type ErrorKind uint8

const (
	// KindInvalidCredentials means the backend rejected Login.
	KindInvalidCredentials ErrorKind = iota + 1
	// KindNoRefreshToken means RefreshToken found no persisted refresh token.
	KindNoRefreshToken
	// KindRefreshRejected means the backend rejected RefreshToken.
	KindRefreshRejected
	// KindNetworkFailure means the request never produced a backend response.
	KindNetworkFailure
	// KindStorageFailure means the session could not be written through to storage.
	KindStorageFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindNoRefreshToken:
		return "no_refresh_token"
	case KindRefreshRejected:
		return "refresh_rejected"
	case KindNetworkFailure:
		return "network_failure"
	case KindStorageFailure:
		return "storage_failure"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindInvalidCredentials:
		return ErrInvalidCredentials
	case KindNoRefreshToken:
		return ErrNoRefreshToken
	case KindRefreshRejected:
		return ErrRefreshRejected
	case KindNetworkFailure:
		return ErrNetworkFailure
	case KindStorageFailure:
		return ErrStorageFailure
	default:
		return nil
	}
}

// AuthError is the error returned by session operations that reach the backend or the
// persistence mirror. Message carries the backend-supplied text when there is one.
//
// errors.Is matches the sentinel for Kind; the underlying cause stays reachable via Unwrap.
type AuthError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if s := e.Kind.sentinel(); s != nil {
		b.WriteString(s.Error())
	} else {
		b.WriteString("auth error")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is reports whether target is the sentinel for e.Kind.
func (e *AuthError) Is(target error) bool {
	if e == nil {
		return false
	}
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func (e *AuthError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newAuthError(kind ErrorKind, message string, err error) *AuthError {
	return &AuthError{Kind: kind, Message: message, Err: err}
}
