// Package validators contains validators found throughout the application
// that have been abstracted away from the main code
package validators

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrEmailEmpty   = errors.New("no email address provided")
	ErrEmailInvalid = errors.New("invalid email address provided")
	ErrEmailTooLong = errors.New("email address is too long")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func EmailValidator(e string) error {
	if e == "" {
		return ErrEmailEmpty
	}

	if len(e) > 320 {
		return ErrEmailTooLong
	}

	if err := validate.Var(e, "email"); err != nil {
		return ErrEmailInvalid
	}

	return nil
}

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
