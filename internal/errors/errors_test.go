package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Unwrap_PreservesOriginalError(t *testing.T) {
	originalErr := errors.New("original error")

	wrapped := New(KindIO, "file not found: test.txt", originalErr)

	require.NotNil(t, wrapped)
	assert.Equal(t, originalErr, errors.Unwrap(wrapped))
	assert.True(t, errors.Is(wrapped, originalErr))
}

func TestError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		message  string
		expected string
	}{
		{"validation", KindValidation, "query cannot be empty", "[validation] query cannot be empty"},
		{"not found", KindNotFound, "root not cached", "[not_found] root not cached"},
		{"timeout", KindTimeout, "embed batch timed out", "[timeout] embed batch timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.kind, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestError_Is_MatchesByKind(t *testing.T) {
	err1 := New(KindNotFound, "file A not found", nil)
	err2 := New(KindNotFound, "file B not found", nil)

	assert.True(t, errors.Is(err1, err2))
}

func TestError_Is_DoesNotMatchDifferentKinds(t *testing.T) {
	err1 := New(KindNotFound, "file not found", nil)
	err2 := New(KindValidation, "bad input", nil)

	assert.False(t, errors.Is(err1, err2))
}

func TestError_WithDetail_AddsContext(t *testing.T) {
	err := New(KindIO, "file not found", nil)

	err = err.WithDetail("path", "/foo/bar.go")
	err = err.WithDetail("size", "1024")

	assert.Equal(t, "/foo/bar.go", err.Details["path"])
	assert.Equal(t, "1024", err.Details["size"])
}

func TestError_WithSuggestion_AddsSuggestion(t *testing.T) {
	err := New(KindTimeout, "connection timed out", nil)

	err = err.WithSuggestion("check your network connection")

	assert.Equal(t, "check your network connection", err.Suggestion)
}

func TestWrap_CreatesErrorFromError(t *testing.T) {
	originalErr := errors.New("something went wrong")

	wrapped := Wrap(KindIO, originalErr)

	require.NotNil(t, wrapped)
	assert.Equal(t, KindIO, wrapped.Kind)
	assert.Equal(t, "something went wrong", wrapped.Message)
	assert.Equal(t, originalErr, wrapped.Cause)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(KindIO, nil))
}

func TestKindConstructors(t *testing.T) {
	assert.Equal(t, KindValidation, Validation("bad").Kind)
	assert.Equal(t, KindNotFound, NotFound("missing", nil).Kind)
	assert.Equal(t, KindIO, IO("disk", nil).Kind)
	assert.Equal(t, KindParse, Parse("malformed", nil).Kind)
	assert.Equal(t, KindTimeout, Timeout("slow", nil).Kind)
	assert.Equal(t, KindCancelled, Cancelled("stopped").Kind)
	assert.Equal(t, KindLockTimeout, LockTimeout("locked").Kind)
	assert.Equal(t, KindBroadcastClosed, BroadcastClosed("abandoned").Kind)
}

func TestIsRetryable_OnlyTimeoutKindIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"timeout error", New(KindTimeout, "timeout", nil), true},
		{"not found error", New(KindNotFound, "not found", nil), false},
		{"wrapped timeout", Wrap(KindTimeout, errors.New("wrapped")), true},
		{"standard error", errors.New("standard error"), false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestGetKind(t *testing.T) {
	assert.Equal(t, KindValidation, GetKind(New(KindValidation, "x", nil)))
	assert.Equal(t, Kind(""), GetKind(errors.New("standard")))
	assert.Equal(t, Kind(""), GetKind(nil))
}
