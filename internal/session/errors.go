// ABOUTME: Typed wire errors with stable codes for everything replied as an ERROR frame
// ABOUTME: Maps conversation service errors onto the four-code taxonomy

package session

import (
	"errors"

	"github.com/helplane/helplane/internal/conversation"
)

// Stable error codes carried in ERROR frames. The observed client behavior
// only distinguishes message text, but codes give clients something to
// switch on without string matching.
const (
	CodeValidation = "VALIDATION"
	CodeNotAllowed = "NOT_ALLOWED"
	CodeConflict   = "CONFLICT"
	CodeNotFound   = "NOT_FOUND"
	CodeInternal   = "INTERNAL"
)

// WireError is an error replied to the originating connection as an ERROR
// frame. It is never broadcast to a room.
type WireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *WireError) Error() string {
	return e.Message
}

func validationError(msg string) *WireError {
	return &WireError{Code: CodeValidation, Message: msg}
}

func notAllowedError(msg string) *WireError {
	return &WireError{Code: CodeNotAllowed, Message: msg}
}

func conflictError(msg string) *WireError {
	return &WireError{Code: CodeConflict, Message: msg}
}

func internalError() *WireError {
	return &WireError{Code: CodeInternal, Message: "something went wrong"}
}

// wireErrorFor translates conversation service errors into wire errors.
// Anything unrecognized (store failures, timeouts) becomes the generic
// internal error; the caller is responsible for logging the original.
func wireErrorFor(err error) *WireError {
	switch {
	case errors.Is(err, conversation.ErrForbidden):
		return notAllowedError("not allowed")
	case errors.Is(err, conversation.ErrNotFound):
		return &WireError{Code: CodeNotFound, Message: "conversation not found"}
	case errors.Is(err, conversation.ErrAlreadyClosed):
		return conflictError("conversation already closed")
	case errors.Is(err, conversation.ErrNotAssigned):
		return conflictError("conversation not yet assigned")
	case errors.Is(err, ErrClosing):
		return conflictError("conversation is closing")
	default:
		return internalError()
	}
}
