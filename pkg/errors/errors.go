// Package errors is the typed error used across services. A Code decides the
// HTTP status and how much of the error the API may show to a client.
package errors

import (
	stdErrors "errors"
	"net/http"
	"strings"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeSignature     Code = "INVALID_SIGNATURE"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Metadata is the public face of a Code. ShowMessage lets the caller's own
// message replace PublicMessage; ShowDetails lets Details through.
type Metadata struct {
	HTTPStatus    int
	Retryable     bool
	PublicMessage string
	ShowMessage   bool
	ShowDetails   bool
}

// exposure flags
const (
	hidden = iota
	message
	messageAndDetails
	detailsOnly
)

func meta(status int, public string, exposure int, retryable bool) Metadata {
	return Metadata{
		HTTPStatus:    status,
		Retryable:     retryable,
		PublicMessage: public,
		ShowMessage:   exposure == message || exposure == messageAndDetails,
		ShowDetails:   exposure == messageAndDetails || exposure == detailsOnly,
	}
}

var metadata = map[Code]Metadata{
	CodeValidation:    meta(http.StatusBadRequest, "validation failed", messageAndDetails, false),
	CodeSignature:     meta(http.StatusBadRequest, "signature verification failed", hidden, false),
	CodeUnauthorized:  meta(http.StatusUnauthorized, "authentication required", message, false),
	CodeForbidden:     meta(http.StatusForbidden, "access denied", messageAndDetails, false),
	CodeNotFound:      meta(http.StatusNotFound, "resource not found", message, false),
	CodeConflict:      meta(http.StatusConflict, "conflict detected", message, false),
	CodeIdempotency:   meta(http.StatusConflict, "idempotency key reused", message, false),
	CodeStateConflict: meta(http.StatusUnprocessableEntity, "state transition disallowed", messageAndDetails, false),
	CodeInternal:      meta(http.StatusInternalServerError, "internal server error", hidden, true),
	CodeDependency:    meta(http.StatusServiceUnavailable, "dependency unavailable", detailsOnly, true),
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	m, ok := metadata[code]
	if !ok {
		m = metadata[CodeInternal]
	}
	return m
}

// Error carries a Code, an operator-facing message, optional client-facing
// details and the underlying cause. Accessors tolerate a nil receiver.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return Wrap(code, nil, message)
}

// Wrap attaches a code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
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
	if e != nil {
		e.details = details
	}
	return e
}

// Public returns the message a client may see for this error.
func (e *Error) Public() string {
	m := MetadataFor(e.Code())
	if msg := e.Message(); m.ShowMessage && msg != "" {
		return msg
	}
	return m.PublicMessage
}

// Error renders "CODE: message[: cause]".
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	parts := []string{string(e.code), e.message}
	if e.cause != nil {
		parts = append(parts, e.cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// IsCode reports whether the outermost typed error in err's chain has code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// As finds the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if !stdErrors.As(err, &typed) {
		return nil
	}
	return typed
}
