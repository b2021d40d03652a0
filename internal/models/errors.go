package models

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

// Error kinds of the conversation flow. Match with errors.Is.
var (
	ErrInvalidKey         = errors.New("invalid activation key")
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrTransportFailure   = errors.New("transport failure")
	ErrUnhandled          = errors.New("unhandled error")
)

type FlowError struct {
	Kind error
	Op   string
	Err  error
}

func (e *FlowError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *FlowError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func PersistenceError(op string, err error) error {
	return &FlowError{Kind: ErrPersistenceFailure, Op: op, Err: err}
}

func TransportError(op string, err error) error {
	return &FlowError{Kind: ErrTransportFailure, Op: op, Err: err}
}

func UnhandledError(op string, err error) error {
	return &FlowError{Kind: ErrUnhandled, Op: op, Err: err}
}

// ErrorKind returns the flow kind of err; anything unclassified is ErrUnhandled.
func ErrorKind(err error) error {
	for _, kind := range []error{ErrInvalidKey, ErrPersistenceFailure, ErrTransportFailure, ErrUnhandled} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrUnhandled
}
