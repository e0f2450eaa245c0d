package errors

import "fmt"

// Error is the structured error type every component returns instead of a
// bare fmt.Errorf, so callers can branch on Kind rather than parse strings.
type Error struct {
	// Kind classifies the failure; see the Kind* constants.
	Kind Kind

	// Message is the human-readable description.
	Message string

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error, if any.
	Cause error

	// Suggestion is an actionable hint for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind, so errors.Is
// can match against a bare &Error{Kind: KindTimeout}.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithDetail adds a key-value detail to the error. Returns e for chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion sets an actionable suggestion for the user. Returns e for
// chaining.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// New creates an Error of the given kind.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Wrap creates an Error from an existing error, reusing its message. Returns
// nil if err is nil.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return New(kind, err.Error(), err)
}

// Validation creates a KindValidation error.
func Validation(message string) *Error {
	return New(KindValidation, message, nil)
}

// NotFound creates a KindNotFound error.
func NotFound(message string, cause error) *Error {
	return New(KindNotFound, message, cause)
}

// IO creates a KindIO error.
func IO(message string, cause error) *Error {
	return New(KindIO, message, cause)
}

// Parse creates a KindParse error.
func Parse(message string, cause error) *Error {
	return New(KindParse, message, cause)
}

// Timeout creates a KindTimeout error.
func Timeout(message string, cause error) *Error {
	return New(KindTimeout, message, cause)
}

// Cancelled creates a KindCancelled error.
func Cancelled(message string) *Error {
	return New(KindCancelled, message, nil)
}

// LockTimeout creates a KindLockTimeout error.
func LockTimeout(message string) *Error {
	return New(KindLockTimeout, message, nil)
}

// BroadcastClosed creates a KindBroadcastClosed error.
func BroadcastClosed(message string) *Error {
	return New(KindBroadcastClosed, message, nil)
}

// IsRetryable reports whether err is an *Error whose Kind is typically
// retryable (currently: KindTimeout only).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return retryableKinds[e.Kind]
}

// GetKind extracts the Kind from err, returning "" if err is not an *Error.
func GetKind(err error) Kind {
	e, ok := err.(*Error)
	if !ok {
		return ""
	}
	return e.Kind
}
