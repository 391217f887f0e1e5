package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code classifies an error for transport mapping and retry decisions.
// The set is deliberately small: validation, the two "expected absence"
// outcomes, and the transient storage class.
type Code string

const (
	CodeValidation  Code = "VALIDATION_ERROR"
	CodeNotFound    Code = "NOT_FOUND"
	CodeConflict    Code = "CONFLICT"
	CodeIdempotency Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal    Code = "INTERNAL_ERROR"
	CodeDependency  Code = "DEPENDENCY_ERROR"
)

// Metadata drives the HTTP layer: status code, whether the caller may
// retry, the public message, and whether details are safe to expose.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:  {http.StatusBadRequest, false, "validation failed", true},
	CodeNotFound:    {http.StatusNotFound, false, "resource not found", false},
	CodeConflict:    {http.StatusConflict, false, "conflict detected", false},
	CodeIdempotency: {http.StatusConflict, false, "idempotency key reused", true},
	CodeInternal:    {http.StatusInternalServerError, true, "internal server error", false},
	CodeDependency:  {http.StatusServiceUnavailable, true, "dependency unavailable", true},
}

// MetadataFor never fails; unknown codes map to the internal class.
func MetadataFor(code Code) Metadata {
	meta, ok := metadataByCode[code]
	if !ok {
		return metadataByCode[CodeInternal]
	}
	return meta
}

// Error is the coded error carried across service boundaries. All
// accessors tolerate a nil receiver so call sites can chain without
// guarding.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. The cause
// stays reachable through Unwrap for errors.Is checks against driver
// sentinels.
func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As extracts the coded error from anywhere in the chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsRetryable reports whether the caller should consider retrying after the
// given error. Transient storage failures are the only retryable class.
func IsRetryable(err error) bool {
	typed := As(err)
	if typed == nil {
		return false
	}
	return MetadataFor(typed.Code()).Retryable
}
