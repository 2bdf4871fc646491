// Package domainerrors carries typed error codes across layers.
//
// Stores return sentinel facts (see pkg/platform/sentinel); services translate
// them into coded errors here; transports map codes to status codes via
// pkg/platform/httputil. The code is a stable, machine-readable string that is
// safe to return to clients.
package domainerrors

import "errors"

// Code classifies an error for callers and transports.
type Code string

// Generic codes shared by every module.
const (
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeTimeout            Code = "timeout"
	CodeUnavailable        Code = "unavailable"
	CodeInternal           Code = "internal_error"
)

// Admission codes: a new introduction request was refused.
const (
	CodeInsufficientCredits    Code = "insufficient_credits"
	CodeRecipientAtCapacity    Code = "recipient_at_capacity"
	CodeDuplicateActiveRequest Code = "duplicate_active_request"
	CodeCompanyNotVerified     Code = "company_not_verified"
)

// Conflict codes: the caller lost a race or acted on a closed request.
const (
	CodeAlreadyResponded Code = "already_responded"
	CodeExpired          Code = "expired"
)

// Verification codes.
const (
	CodeInvalidFormat        Code = "invalid_format"
	CodeUnreachable          Code = "unreachable"
	CodeManualReviewRequired Code = "manual_review_required"
)

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to err. A nil err yields a plain coded error.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether the outermost coded error in err's chain has code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias of HasCode kept for handler readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost coded message, or a generic message.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
