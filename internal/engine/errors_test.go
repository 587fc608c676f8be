package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/querysync/internal/value"
)

func TestError_IsMatchesSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"already specified", NewAlreadySpecifiedError("sendMessage"), ErrAlreadySpecified},
		{"misuse", NewMisuseError("sendMessage"), ErrMisuseAsEventHandler},
		{"invalid arguments", newInvalidArgumentsError("a", "q", errors.New("cycle")), ErrInvalidArguments},
		{"watch create", newWatchCreateError("q", errors.New("boom")), ErrWatchCreate},
		{"destroyed", newDestroyedError(), ErrDestroyed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.ErrorIs(t, fmt.Errorf("wrapped: %w", tt.err), tt.sentinel)
		})
	}
}

func TestError_MessageNamesMutation(t *testing.T) {
	err := NewAlreadySpecifiedError("sendMessage")
	assert.Contains(t, err.Error(), "sendMessage")
	assert.Contains(t, err.Error(), string(ErrCodeAlreadySpecified))
	assert.Equal(t, "sendMessage", err.Mutation)
}

func TestError_UnwrapsCause(t *testing.T) {
	cause := &value.Error{Code: value.CodeInvalidArguments, Path: "args.x", Message: "NaN"}
	err := newInvalidArgumentsError("slot", "q", cause)

	var ve *value.Error
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "args.x", ve.Path)
	assert.Contains(t, err.Error(), "slot=slot")
}

func TestIsHelpers(t *testing.T) {
	wrapped := fmt.Errorf("call: %w", NewAlreadySpecifiedError("m"))
	assert.True(t, IsAlreadySpecified(wrapped))
	assert.False(t, IsMisuse(wrapped))

	assert.True(t, IsMisuse(NewMisuseError("m")))
	assert.False(t, IsAlreadySpecified(errors.New("other")))
}
