package service

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind 错误分类，每类对应唯一的 HTTP 状态码
type ErrorKind string

const (
	KindUnauthenticated  ErrorKind = "Unauthenticated"
	KindUnauthorized     ErrorKind = "Unauthorized"
	KindNotFound         ErrorKind = "NotFound"
	KindConflict         ErrorKind = "Conflict"
	KindValidationFailed ErrorKind = "ValidationFailed"
	KindInternal         ErrorKind = "Internal"
)

// HTTPStatus maps the kind to its response status.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindUnauthorized:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Label is the short "error" field of the failure envelope.
func (k ErrorKind) Label() string {
	switch k {
	case KindUnauthenticated:
		return "Unauthorized"
	case KindUnauthorized:
		return "Forbidden"
	case KindNotFound:
		return "Not Found"
	case KindConflict:
		return "Conflict"
	case KindValidationFailed:
		return "Bad Request"
	default:
		return "Internal Server Error"
	}
}

// Error 结构化业务错误
type Error struct {
	Kind    ErrorKind
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors by kind, so errors.Is(err, ErrNotFound) works for
// any NotFound error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

var (
	ErrUnauthenticated  = &Error{Kind: KindUnauthenticated}
	ErrUnauthorized     = &Error{Kind: KindUnauthorized}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrValidationFailed = &Error{Kind: KindValidationFailed}
	ErrInternal         = &Error{Kind: KindInternal}
)

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewValidationError 请求体/参数校验失败
func NewValidationError(details []string) *Error {
	return &Error{Kind: KindValidationFailed, Message: "Validation failed", Details: details}
}

// internalError wraps a backend failure. Message stays generic; the cause is kept
// for logging only.
func internalError(op string, err error) *Error {
	return &Error{Kind: KindInternal, Message: "Internal server error", Err: fmt.Errorf("%s: %w", op, err)}
}

// AsError extracts the structured error; anything else is reported as Internal.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Message: "Internal server error", Err: err}
}
