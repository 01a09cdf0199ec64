package session

import (
	"errors"
	"fmt"
)

var (
	ErrCapacity         = errors.New("room is full")
	ErrResourceCreation = errors.New("could not create peer connection")
	ErrNegotiation      = errors.New("negotiation failed")
	ErrMediaUnavailable = errors.New("local media unavailable")
	ErrConnectionFailed = errors.New("peer connection failed")
	ErrSignaling        = errors.New("signaling error")
	ErrClosed           = errors.New("session closed")
)

// Error ties a failure to the operation that hit it. Kind is one of the
// sentinel errors above; Err is the underlying cause, if any.
type Error struct {
	Op      string
	Kind    error
	Err     error
	Details string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Details != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Details)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NewError(op string, kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func WrapError(op string, kind error, details string) *Error {
	return &Error{Op: op, Kind: kind, Details: details}
}
