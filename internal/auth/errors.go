package auth

import "errors"

// DefaultErrorMessage is shown when the server gave no usable explanation.
const DefaultErrorMessage = "Unexpected error. Please try again."

// AuthError is a login failure fit for display. Message is either the
// server's text verbatim or DefaultErrorMessage.
type AuthError struct {
	Message string
	// Cause is the underlying failure, if any. It is never displayed.
	Cause error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

// ErrSuperseded reports a login whose response arrived after a newer logout
// or login. Its result was discarded.
var ErrSuperseded = &AuthError{Message: DefaultErrorMessage, Cause: errors.New("login superseded")}

// ErrWatchUnsupported is returned by Watch when the store cannot report
// external changes.
var ErrWatchUnsupported = errors.New("session store does not support watching")

func unexpected(cause error) *AuthError {
	return &AuthError{Message: DefaultErrorMessage, Cause: cause}
}
