package client

import "fmt"

// TransportError means the backend could not be reached at all, as
// opposed to answering with an error status.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "cannot reach the backend server; check that it is running"
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a non-2xx response. Detail carries the message the
// backend put in the body, when there was one.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("server error (status %d)", e.StatusCode)
}

// FormatError is a 2xx response whose body is missing the expected shape.
type FormatError struct {
	Msg string
}

func (e *FormatError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "invalid response format"
}

// AuthError is a failed login or registration.
type AuthError struct {
	Op     string // "login" or "register"
	Detail string
}

func (e *AuthError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Op + " failed"
}
