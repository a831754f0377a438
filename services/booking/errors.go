package booking

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error for the HTTP edge.
type Kind string

const (
	KindValidation           Kind = "validation"
	KindAuthorization        Kind = "authorization"
	KindNotFound             Kind = "not_found"
	KindConflict             Kind = "conflict"
	KindAuthorityUnavailable Kind = "authority_unavailable"
	KindInvalidSignature     Kind = "invalid_signature"
	KindInternal             Kind = "internal"
)

// Error is the typed result of a rejected or failed booking operation.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may repeat the operation as is.
func (e *Error) Retryable() bool {
	return e.Kind == KindAuthorityUnavailable
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func ValidationError(msg string) error {
	return newError(KindValidation, msg, nil)
}

func AuthorizationError(msg string) error {
	return newError(KindAuthorization, msg, nil)
}

func ConflictError(msg string, err error) error {
	return newError(KindConflict, msg, err)
}

func NotFoundError(msg string) error {
	return newError(KindNotFound, msg, nil)
}

func AuthorityUnavailableError(msg string, err error) error {
	return newError(KindAuthorityUnavailable, msg, err)
}

func InvalidSignatureError(err error) error {
	return newError(KindInvalidSignature, "webhook signature rejected", err)
}

func internalError(msg string, err error) error {
	return newError(KindInternal, msg, err)
}

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsRetryable reports whether err is an *Error the caller may retry.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}
