// ABOUTME: Client-side form validation for sign-in, profile and chat input
// ABOUTME: Failures are returned as *Error so callers can show the message as-is

package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Limits
const (
	MinPasswordLength = 8
	MinNameLength     = 2
	MaxNameLength     = 50
	OTPLength         = 6
	DefaultMaxChars   = 2000
)

// Error is a validation failure for a single field.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string { return e.Message }

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	otpPattern   = regexp.MustCompile(`^[0-9]{6}$`)
)

// Email checks that s looks like an email address.
func Email(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return &Error{Field: "email", Message: "Email is required."}
	}
	if !emailPattern.MatchString(s) {
		return &Error{Field: "email", Message: "Please enter a valid email address."}
	}
	return nil
}

// Password checks the minimum password length.
func Password(s string) error {
	if s == "" {
		return &Error{Field: "password", Message: "Password is required."}
	}
	if utf8.RuneCountInString(s) < MinPasswordLength {
		return &Error{Field: "password", Message: fmt.Sprintf("Password must be at least %d characters.", MinPasswordLength)}
	}
	return nil
}

// Name checks a display name's trimmed length.
func Name(s string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	if n < MinNameLength || n > MaxNameLength {
		return &Error{Field: "name", Message: fmt.Sprintf("Name must be between %d and %d characters.", MinNameLength, MaxNameLength)}
	}
	return nil
}

// OTP checks a one-time code is exactly six digits.
func OTP(s string) error {
	if !otpPattern.MatchString(strings.TrimSpace(s)) {
		return &Error{Field: "otp", Message: fmt.Sprintf("Code must be exactly %d digits.", OTPLength)}
	}
	return nil
}

// Message checks a chat message is non-blank and within max runes.
// A max of zero or less uses DefaultMaxChars.
func Message(s string, max int) error {
	if strings.TrimSpace(s) == "" {
		return &Error{Field: "message", Message: "Message cannot be empty."}
	}
	if max <= 0 {
		max = DefaultMaxChars
	}
	if n := utf8.RuneCountInString(s); n > max {
		return &Error{Field: "message", Message: fmt.Sprintf("Message is too long (%d/%d characters).", n, max)}
	}
	return nil
}

// NewPassword checks a password change: the new password must be valid and differ from the current one.
func NewPassword(current, next string) error {
	if current == "" {
		return &Error{Field: "current_password", Message: "Current password is required."}
	}
	if err := Password(next); err != nil {
		return err
	}
	if current == next {
		return &Error{Field: "new_password", Message: "New password must differ from the current password."}
	}
	return nil
}
