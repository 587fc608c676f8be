package value

import (
	"errors"
	"fmt"
)

// CodeInvalidArguments identifies arguments that cannot be canonicalized.
const CodeInvalidArguments = "INVALID_ARGUMENTS"

// ErrInvalidArguments is matched by every canonicalization failure.
//
//	if errors.Is(err, value.ErrInvalidArguments) { ... }
var ErrInvalidArguments = errors.New("invalid arguments")

// Error describes why a value could not be canonicalized.
type Error struct {
	// Code is always CodeInvalidArguments.
	Code string

	// Path locates the offending element, e.g. "args.items[2]".
	Path string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s at %s", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is ErrInvalidArguments.
func (e *Error) Is(target error) bool {
	return target == ErrInvalidArguments
}

func invalid(path, format string, args ...any) *Error {
	return &Error{
		Code:    CodeInvalidArguments,
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	}
}
