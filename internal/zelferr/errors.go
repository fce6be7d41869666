// Package zelferr defines the coded error taxonomy shared by every service.
// Errors carry a string code plus an HTTP-like status so callers can branch
// with errors.Is without parsing messages.
package zelferr

import (
	"errors"
	"fmt"
)

// Error is a coded error. Two Errors match under errors.Is when their codes
// are equal, regardless of wrapped cause.
type Error struct {
	Status int
	Code   string
	cause  error
}

func New(status int, code string) *Error {
	return &Error{Status: status, Code: code}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%d:%s: %v", e.Status, e.Code, e.cause)
	}
	return fmt.Sprintf("%d:%s", e.Status, e.Code)
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of e wrapping the underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{Status: e.Status, Code: e.Code, cause: err}
}

// Validation errors: detected before any write, safe to surface verbatim.
var (
	ErrInvalidNameLength = New(400, "invalid_name_length")
	ErrInvalidDuration   = New(400, "invalid_duration")
	ErrInvalidTagName    = New(400, "invalid_tag_name")
	ErrReservedTagName   = New(400, "reserved_tag_name")
	ErrInvalidDomain     = New(400, "invalid_domain")
)

// Conflict errors: retry with different input, not the same request.
var (
	ErrTagAlreadyExists        = New(409, "tag_already_exists")
	ErrDomainAlreadyRegistered = New(409, "domain_already_registered")
	ErrDomainNotActive         = New(409, "domain_not_active")
)

// Not-found errors.
var (
	ErrTagNotFound      = New(404, "tag_not_found")
	ErrDomainNotFound   = New(404, "domain_not_found")
	ErrReferralNotFound = New(404, "referral_tag_not_found")
)

// Credential errors fail closed: a single coarse code, never the specific
// check that failed.
var ErrVerificationFailed = New(403, "verification_failed")

// Payment errors are retryable after a delay.
var ErrPaymentConfirmationFailed = New(409, "payment_confirmation_failed")

// Upstream covers any collaborator failure not otherwise classified. Full
// detail goes to the log, the caller sees only the code.
var ErrUpstream = New(502, "upstream_unavailable")
