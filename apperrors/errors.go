// Package apperrors holds the error kinds shared by stores, services and the HTTP layer.
// Match them with errors.Is.
package apperrors

import "errors"

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrConflict      = errors.New("already exists")
	ErrNotFound      = errors.New("not found")
	ErrConfiguration = errors.New("configuration error")
	ErrHosting       = errors.New("hosting error")
	ErrGeneration    = errors.New("generation error")
)

// Error is an error of a known kind whose message is shown to callers as-is.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

// New returns an error of the given kind. Its Error() is exactly msg.
func New(kind error, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap keeps cause in the message and matches both kind and cause with errors.Is.
func Wrap(kind error, msg string, cause error) error {
	if cause == nil {
		return New(kind, msg)
	}
	return &wrapped{e: Error{Kind: kind, Msg: msg + ": " + cause.Error()}, cause: cause}
}

type wrapped struct {
	e     Error
	cause error
}

func (w *wrapped) Error() string { return w.e.Msg }

func (w *wrapped) Unwrap() []error { return []error{w.e.Kind, w.cause} }
