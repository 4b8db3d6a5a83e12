package apperror

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	err := New(CodeXRPLRequestFailed,
		WithContext("book_offers"),
		WithCause(errors.New("connection reset")))

	assert.Equal(t, "XRPL_REQUEST_FAILED: XRPL request failed (book_offers): connection reset", err.Error())
	assert.Equal(t, "INVALID_SIDE: Invalid trade side (hold)", Validation(CodeInvalidSide, "hold").Error())
}

func TestAppError_IsMatchesCode(t *testing.T) {
	err := fmt.Errorf("estimate: %w", New(CodeCircuitOpen))

	assert.True(t, errors.Is(err, New(CodeCircuitOpen)))
	assert.False(t, errors.Is(err, New(CodeXRPLRequestFailed)))
	assert.Equal(t, CodeCircuitOpen, GetCode(err))
	assert.Equal(t, CodeUnknownError, GetCode(errors.New("plain")))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, CodeXRPLRequestFailed, "x"))

	inner := New(CodeServiceTimeout)
	wrapped := Wrap(inner, CodeXRPLRequestFailed, "book_offers")
	assert.Same(t, inner, wrapped)
	assert.Equal(t, "book_offers", wrapped.Context)

	cause := errors.New("boom")
	wrapped = Wrap(cause, CodeXRPLRequestFailed, "book_offers")
	assert.Equal(t, CodeXRPLRequestFailed, wrapped.Code)
	assert.ErrorIs(t, wrapped, cause)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"upstream", New(CodeXRPLRequestFailed), true},
		{"circuit", fmt.Errorf("wrapped: %w", New(CodeCircuitOpen)), true},
		{"validation", Validation(CodeInvalidTradeSize, "0"), false},
		{"invalid pool", New(CodeInvalidPool), false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("plain"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestLogArgs(t *testing.T) {
	args := LogArgs(New(CodeInvalidSide))
	assert.Equal(t, "error_code", args[2])
	assert.Equal(t, "INVALID_SIDE", args[3])
	assert.Equal(t, "validation", args[5])

	plain := errors.New("plain")
	assert.Equal(t, []any{"error", plain}, LogArgs(plain))
}
