package validators

import (
	"errors"
	"strings"
	"unicode/utf8"
)

var (
	ErrNameEmpty   = errors.New("no name provided")
	ErrNameTooLong = errors.New("name must be at most 100 characters long")
)

func NameValidator(n string) error {
	n = strings.TrimSpace(n)
	if n == "" {
		return ErrNameEmpty
	}

	if utf8.RuneCountInString(n) > 100 {
		return ErrNameTooLong
	}

	return nil
}
