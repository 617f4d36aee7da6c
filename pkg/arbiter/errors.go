package arbiter

import (
	"errors"
	"fmt"
)

// Code is a stable arbitration error code surfaced to callers.
type Code string

const (
	CodeSessionLimitExceeded   Code = "SESSION_LIMIT_EXCEEDED"
	CodeSessionNotFound        Code = "SESSION_NOT_FOUND"
	CodeInvalidState           Code = "INVALID_STATE"
	CodeInvalidStateTransition Code = "INVALID_STATE_TRANSITION"
	CodeWaiversDisabled        Code = "WAIVERS_DISABLED"
	CodeAppealsDisabled        Code = "APPEALS_DISABLED"
	CodeNoVerdict              Code = "NO_VERDICT"
)

// Error is a protocol error carrying a stable code and, where applicable,
// the session it concerns. All errors are surfaced synchronously to the
// caller of the failing operation; none are swallowed.
type Error struct {
	Code      Code
	SessionID string
	Message   string
}

func (e *Error) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("%s: %s (session %s)", e.Code, e.Message, e.SessionID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code Code, sessionID, format string, args ...any) *Error {
	return &Error{Code: code, SessionID: sessionID, Message: fmt.Sprintf(format, args...)}
}

// IsCode reports whether err is an arbitration Error with the given code.
func IsCode(err error, code Code) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == code
}
