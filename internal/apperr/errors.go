// Package apperr defines the error kinds shared by the service and HTTP layers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kinds. Match with errors.Is(err, apperr.ErrNotFound) etc.
var (
	ErrValidation   = errors.New("validation")
	ErrDecode       = errors.New("decode")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrStorage      = errors.New("storage")
)

// Error carries a kind, the failing operation and a caller-facing message.
type Error struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.message(), e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.message(), e.Err)
	case e.Op != "":
		return e.Op + ": " + e.message()
	}
	return e.message()
}

func (e *Error) message() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Kind.Error()
}

// Is reports whether target is the kind of e.
func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// Validation reports malformed or missing input.
func Validation(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Msg: fmt.Sprintf(format, args...)}
}

// Decode reports an unreadable request body.
func Decode(msg string, err error) error {
	return &Error{Kind: ErrDecode, Msg: msg, Err: err}
}

// NotFound reports a missing entity.
func NotFound(what string) error {
	return &Error{Kind: ErrNotFound, Msg: what + " not found"}
}

// Unauthorized reports a missing or invalid actor identity.
func Unauthorized(msg string) error {
	return &Error{Kind: ErrUnauthorized, Msg: msg}
}

// Forbidden reports an actor acting on something it does not own.
func Forbidden(msg string) error {
	return &Error{Kind: ErrForbidden, Msg: msg}
}

// Conflict reports a uniqueness violation.
func Conflict(msg string) error {
	return &Error{Kind: ErrConflict, Msg: msg}
}

// Storage wraps a document or blob store failure.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: ErrStorage, Op: op, Msg: "storage failure", Err: err}
}

// HTTPStatus maps an error to its response status.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrDecode):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Message returns the text safe to show to a client.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) && !errors.Is(err, ErrStorage) {
		return ae.message()
	}
	return "internal error"
}
