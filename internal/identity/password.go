package identity

import (
	"errors"
	"unicode"
)

// ErrWeakPassword is returned when a password fails the account policy.
var ErrWeakPassword = errors.New("password must be at least 8 characters long and contain uppercase, lowercase letters and a number")

// ValidatePassword enforces the account password policy: at least 8
// characters with an upper-case letter, a lower-case letter, and a digit.
func ValidatePassword(pw string) error {
	if len(pw) < 8 {
		return ErrWeakPassword
	}
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return ErrWeakPassword
	}
	return nil
}
