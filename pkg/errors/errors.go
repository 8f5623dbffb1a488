// Package errors defines the typed errors services return and how each code
// is rendered over HTTP.
package errors

import (
	stdErrors "errors"
	"net/http"
)

// Code is the stable, client-visible error identifier.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// CodePaymentNotCompleted marks a confirm attempt against an intent that has not succeeded.
	CodePaymentNotCompleted Code = "PAYMENT_NOT_COMPLETED"
	// CodeUpstream carries a payment provider failure whose message is safe to show sellers.
	CodeUpstream Code = "UPSTREAM_ERROR"
)

// Metadata is how a code surfaces over HTTP.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	// ExposeMessage lets a non-empty error message replace PublicMessage.
	ExposeMessage bool
}

// client errors echo their message; server side failures say only what failed
func clientFacing(status int, public string, details bool) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: public, DetailsAllowed: details, ExposeMessage: true}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:          clientFacing(http.StatusBadRequest, "validation failed", true),
	CodeUnauthorized:        clientFacing(http.StatusUnauthorized, "authentication required", false),
	CodeForbidden:           clientFacing(http.StatusForbidden, "access denied", false),
	CodeNotFound:            clientFacing(http.StatusNotFound, "resource not found", false),
	CodeConflict:            clientFacing(http.StatusConflict, "conflict detected", false),
	CodeStateConflict:       clientFacing(http.StatusUnprocessableEntity, "state transition disallowed", true),
	CodeIdempotency:         clientFacing(http.StatusConflict, "idempotency key reused", true),
	CodeRateLimit:           clientFacing(http.StatusTooManyRequests, "rate limit exceeded", false),
	CodePaymentNotCompleted: clientFacing(http.StatusUnprocessableEntity, "payment not completed", true),

	CodeInternal:   {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "internal server error", ExposeMessage: true},
	CodeDependency: {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "dependency unavailable", DetailsAllowed: true},
	CodeUpstream:   {HTTPStatus: http.StatusBadGateway, Retryable: true, PublicMessage: "payment provider error", DetailsAllowed: true, ExposeMessage: true},
}

// MetadataFor returns the rendering rules for code. Unknown codes render as internal.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded error with an optional cause and client-safe details.
// The nil *Error behaves as an internal error with no message.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches code and message to err. A nil err behaves like New.
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

// PublicMessage is the text a client may see for this error.
func (e *Error) PublicMessage() string {
	meta := MetadataFor(e.Code())
	if msg := e.Message(); meta.ExposeMessage && msg != "" {
		return msg
	}
	return meta.PublicMessage
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets structured details, shown only for codes that allow them.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.message == "" && e.cause != nil {
		return string(e.code) + ": " + e.cause.Error()
	}
	return string(e.code) + ": " + e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether the outermost typed error in err's chain has code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// IsRetryable reports whether a client may retry the failed request as is.
func IsRetryable(err error) bool {
	typed := As(err)
	return typed != nil && MetadataFor(typed.code).Retryable
}
