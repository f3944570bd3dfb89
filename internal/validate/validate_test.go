// ABOUTME: Tests for form validation and the character counter
// ABOUTME: Table-driven cases for email, password, name, OTP and chat message limits

package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmail(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
	}{
		{"ada@example.com", true},
		{"  ada@example.com  ", true},
		{"a.b+c@sub.example.org", true},
		{"", false},
		{"ada", false},
		{"ada@example", false},
		{"ada @example.com", false},
		{"@example.com", false},
		{"ada@@example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			err := Email(tt.in)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, IsValidation(err), "expected validation error, got %v", err)
			}
		})
	}
}

func TestPassword(t *testing.T) {
	assert.Error(t, Password(""))
	assert.Error(t, Password("short"))
	assert.Error(t, Password("1234567"))
	assert.NoError(t, Password("12345678"))
}

func TestName(t *testing.T) {
	assert.Error(t, Name("A"))
	assert.Error(t, Name("   A   "))
	assert.NoError(t, Name("Al"))
	assert.NoError(t, Name(strings.Repeat("x", 50)))
	assert.Error(t, Name(strings.Repeat("x", 51)))
}

func TestOTP(t *testing.T) {
	assert.NoError(t, OTP("123456"))
	assert.NoError(t, OTP(" 123456 "))
	assert.Error(t, OTP("12345"))
	assert.Error(t, OTP("1234567"))
	assert.Error(t, OTP("12a456"))
}

func TestMessage(t *testing.T) {
	assert.Error(t, Message("", 2000))
	assert.Error(t, Message(" \n\t", 2000))
	assert.NoError(t, Message("hi", 2000))
	assert.NoError(t, Message(strings.Repeat("é", 2000), 2000))

	err := Message(strings.Repeat("x", 2001), 2000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2001/2000")

	// zero max falls back to the default
	assert.Error(t, Message(strings.Repeat("x", DefaultMaxChars+1), 0))
}

func TestNewPassword(t *testing.T) {
	assert.Error(t, NewPassword("", "newpassword"))
	assert.Error(t, NewPassword("oldpassword", "short"))
	assert.Error(t, NewPassword("samepassword", "samepassword"))
	assert.NoError(t, NewPassword("oldpassword", "newpassword"))
}

func TestIsValidation(t *testing.T) {
	assert.False(t, IsValidation(nil))
	assert.False(t, IsValidation(errors.New("other")))
	assert.True(t, IsValidation(Email("nope")))
}

func TestCounter_State(t *testing.T) {
	c := Counter{Max: 2000}

	s := c.State("")
	assert.False(t, s.CanSend)
	assert.Equal(t, 2000, s.Remaining)

	s = c.State(strings.Repeat("x", 2000))
	assert.True(t, s.CanSend)
	assert.False(t, s.Over)
	assert.Equal(t, 0, s.Remaining)
	assert.True(t, s.Warn)

	s = c.State(strings.Repeat("x", 2001))
	assert.False(t, s.CanSend)
	assert.True(t, s.Over)
	assert.Equal(t, -1, s.Remaining)

	s = c.State(strings.Repeat("x", 1500))
	assert.False(t, s.Warn)
	assert.Equal(t, 500, s.Remaining)
}
