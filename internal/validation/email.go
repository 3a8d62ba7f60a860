package validation

import (
	"errors"
	"net/mail"
)

// maxEmailLen is the RFC 5321 ceiling for a full address.
const maxEmailLen = 254

// ValidateEmail checks that an address is present, within the RFC length
// limit, and parseable as an RFC 5322 address.
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("email address is required")
	}
	if len(email) > maxEmailLen {
		return errors.New("email address is too long (max 254 characters)")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.New("invalid email address format")
	}
	return nil
}
