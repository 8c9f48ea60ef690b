package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code is a stable machine-readable error code returned to API clients.
type Code string

const (
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeNotFound           Code = "NOT_FOUND"
	CodePermissionDenied   Code = "PERMISSION_DENIED"
	CodeFailedPrecondition Code = "FAILED_PRECONDITION"
	CodeConflict           Code = "CONFLICT"
	CodeInternal           Code = "INTERNAL"
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
)

// Error carries a Code together with a human-readable message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrInvalidArgument    = &Error{Code: CodeInvalidArgument, Message: "invalid argument"}
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "not found"}
	ErrPermissionDenied   = &Error{Code: CodePermissionDenied, Message: "permission denied"}
	ErrFailedPrecondition = &Error{Code: CodeFailedPrecondition, Message: "failed precondition"}
	ErrConflict           = &Error{Code: CodeConflict, Message: "conflict"}
	ErrInternal           = &Error{Code: CodeInternal, Message: "internal error"}

	ErrUnauthorized = &Error{Code: CodeUnauthenticated, Message: "user is not authorized"}
	ErrForbidden    = ErrPermissionDenied
)

func newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func InvalidArgument(format string, args ...any) error {
	return newf(CodeInvalidArgument, format, args...)
}

func NotFound(format string, args ...any) error {
	return newf(CodeNotFound, format, args...)
}

func PermissionDenied(format string, args ...any) error {
	return newf(CodePermissionDenied, format, args...)
}

func FailedPrecondition(format string, args ...any) error {
	return newf(CodeFailedPrecondition, format, args...)
}

func Conflict(format string, args ...any) error {
	return newf(CodeConflict, format, args...)
}

// Internal wraps an infrastructure failure without hiding the cause from logs.
func Internal(err error, msg string) error {
	return &Error{Code: CodeInternal, Message: msg, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns a message that is safe to show to callers.
func MessageOf(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		if e.Code == CodeInternal {
			return "internal error"
		}
		return e.Message
	}
	return "internal error"
}

// HTTPStatus maps a code to the HTTP status used by the API.
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeFailedPrecondition:
		return http.StatusPreconditionFailed
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
