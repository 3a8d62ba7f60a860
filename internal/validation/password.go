package validation

import (
	"errors"
	"strings"
)

const (
	// bcrypt truncates input beyond 72 bytes, so longer passwords are rejected
	// instead of silently weakened.
	passwordMinLen = 12
	passwordMaxLen = 72
)

var weakSubstrings = []string{
	"password", "123456", "qwerty", "admin", "letmein",
	"welcome", "monkey", "dragon", "master", "sunshine",
}

// ValidatePassword enforces minimum strength for new account passwords.
func ValidatePassword(password string) error {
	if len(password) < passwordMinLen {
		return errors.New("password must be at least 12 characters")
	}
	if len(password) > passwordMaxLen {
		return errors.New("password must not exceed 72 characters")
	}

	lower := strings.ToLower(password)
	for _, weak := range weakSubstrings {
		if strings.Contains(lower, weak) {
			return errors.New("password is too common, please choose a stronger one")
		}
	}
	return nil
}
