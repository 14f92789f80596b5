// Package apperr defines the error taxonomy shared by the service and HTTP layers.
// Every error that reaches a handler is either an *Error or gets treated as internal.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindRateLimited  Kind = "rate_limited"
	KindUnavailable  Kind = "unavailable"
	KindInternal     Kind = "internal"
)

// Error carries a stable machine code and a message that is safe to show to clients.
// Cause is only ever logged.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Wrap(kind Kind, code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

// KindOf returns KindInternal for anything that isn't an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

func Is(err error, code string) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

func Status(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func Validation(code, msg string) *Error {
	return New(KindValidation, code, msg)
}

func InvalidCredentials() *Error {
	return New(KindUnauthorized, "invalid_credentials", "Invalid email or password")
}

func Unauthenticated() *Error {
	return New(KindUnauthorized, "unauthenticated", "Authentication required")
}

func TokenExpired() *Error {
	return New(KindUnauthorized, "token_expired", "Token expired")
}

func TokenNotFound() *Error {
	return New(KindNotFound, "token_not_found", "Token expired or invalid")
}

func InvalidRefreshToken() *Error {
	return New(KindUnauthorized, "invalid_refresh_token", "Refresh token invalid or revoked")
}

func InvalidResetToken() *Error {
	return New(KindUnauthorized, "invalid_reset_token", "Reset link invalid or already used")
}

func Invalid2FACode() *Error {
	return New(KindUnauthorized, "invalid_2fa_code", "Invalid two-factor code")
}

func UserNotFound() *Error {
	return New(KindNotFound, "user_not_found", "User not found")
}

func EmailTaken() *Error {
	return New(KindConflict, "email_taken", "This email is already registered. Please login or use a different email")
}

func TooManyAttempts() *Error {
	return New(KindRateLimited, "too_many_attempts", "Too many attempts, try again later")
}

func DBUnavailable(cause error) *Error {
	return Wrap(KindUnavailable, "db_unavailable", "Service temporarily unavailable", cause)
}

func MailUnavailable(cause error) *Error {
	return Wrap(KindUnavailable, "mail_unavailable", "Failed to send email, try again later", cause)
}

func OAuthUnavailable(cause error) *Error {
	return Wrap(KindUnavailable, "oauth_unavailable", "Identity provider unavailable", cause)
}

func Internal(cause error) *Error {
	return Wrap(KindInternal, "internal_error", "Internal server error", cause)
}
