package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/querysync/internal/value"
)

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeInvalidArguments indicates arguments that cannot be canonicalized.
	ErrCodeInvalidArguments ErrorCode = "INVALID_ARGUMENTS"

	// ErrCodeAlreadySpecified indicates a second optimistic update for the
	// same mutation invocation.
	ErrCodeAlreadySpecified ErrorCode = "ALREADY_SPECIFIED"

	// ErrCodeMisuseAsEventHandler indicates a mutation invoked with a UI
	// event as its argument.
	ErrCodeMisuseAsEventHandler ErrorCode = "MISUSE_AS_EVENT_HANDLER"

	// ErrCodeWatchCreate indicates the watch factory failed.
	ErrCodeWatchCreate ErrorCode = "WATCH_CREATE_FAILED"

	// ErrCodeDestroyed indicates use of a destroyed observer.
	ErrCodeDestroyed ErrorCode = "DESTROYED"
)

// Sentinels for errors.Is. Every *Error matches the sentinel of its code.
var (
	ErrInvalidArguments     = value.ErrInvalidArguments
	ErrAlreadySpecified     = errors.New("optimistic update already specified")
	ErrMisuseAsEventHandler = errors.New("mutation used as an event handler")
	ErrWatchCreate          = errors.New("watch creation failed")
	ErrDestroyed            = errors.New("observer destroyed")
)

// Error is a coded engine error with structured context for diagnostics.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Mutation names the mutation (AlreadySpecified, MisuseAsEventHandler).
	Mutation string

	// Slot names the query slot (InvalidArguments, WatchCreate).
	Slot string

	// Query names the query function (InvalidArguments, WatchCreate).
	Query string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Mutation != "":
		msg += fmt.Sprintf(" (mutation=%s)", e.Mutation)
	case e.Slot != "" && e.Query != "":
		msg += fmt.Sprintf(" (slot=%s, query=%s)", e.Slot, e.Query)
	case e.Query != "":
		msg += fmt.Sprintf(" (query=%s)", e.Query)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's code.
func (e *Error) Is(target error) bool {
	switch e.Code {
	case ErrCodeInvalidArguments:
		return target == ErrInvalidArguments
	case ErrCodeAlreadySpecified:
		return target == ErrAlreadySpecified
	case ErrCodeMisuseAsEventHandler:
		return target == ErrMisuseAsEventHandler
	case ErrCodeWatchCreate:
		return target == ErrWatchCreate
	case ErrCodeDestroyed:
		return target == ErrDestroyed
	}
	return false
}

// NewAlreadySpecifiedError creates the error for a second optimistic update
// attached to one mutation.
func NewAlreadySpecifiedError(mutation string) *Error {
	return &Error{
		Code:     ErrCodeAlreadySpecified,
		Message:  fmt.Sprintf("already specified optimistic update for mutation %s", mutation),
		Mutation: mutation,
	}
}

// NewMisuseError creates the error for a mutation invoked as an event handler.
func NewMisuseError(mutation string) *Error {
	return &Error{
		Code: ErrCodeMisuseAsEventHandler,
		Message: fmt.Sprintf("mutation %s was called with a UI event as its argument; "+
			"wrap it in a handler that passes the mutation arguments instead", mutation),
		Mutation: mutation,
	}
}

func newInvalidArgumentsError(slot, query string, err error) *Error {
	return &Error{
		Code:    ErrCodeInvalidArguments,
		Message: "arguments cannot be canonicalized",
		Slot:    slot,
		Query:   query,
		Err:     err,
	}
}

func newWatchCreateError(query string, err error) *Error {
	return &Error{
		Code:    ErrCodeWatchCreate,
		Message: "watch factory failed",
		Query:   query,
		Err:     err,
	}
}

func newDestroyedError() *Error {
	return &Error{
		Code:    ErrCodeDestroyed,
		Message: "observer has been destroyed",
	}
}

// IsAlreadySpecified reports whether err is an AlreadySpecified error.
// Uses errors.As to handle wrapped errors.
func IsAlreadySpecified(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeAlreadySpecified
}

// IsMisuse reports whether err is a MisuseAsEventHandler error.
func IsMisuse(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeMisuseAsEventHandler
}
