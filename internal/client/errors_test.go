// ABOUTME: Tests for API error decoding and friendly error messages
// ABOUTME: Table-driven over the error body shapes and failure kinds the console meets

package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"

	"github.com/2389/coven-console/internal/stream"
	"github.com/2389/coven-console/internal/validate"
)

func response(code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestParseAPIError(t *testing.T) {
	tests := []struct {
		name   string
		code   int
		body   string
		detail string
	}{
		{"detail string", 404, `{"detail": "Document not found"}`, "Document not found"},
		{"detail list", 422, `{"detail": [{"loc": ["body", "email"], "msg": "invalid email"}, {"msg": "too short"}]}`, "invalid email; too short"},
		{"detail object", 400, `{"detail": {"message": "bad input"}}`, "bad input"},
		{"error field", 409, `{"error": "name taken"}`, "name taken"},
		{"message field", 500, `{"message": "boom"}`, "boom"},
		{"plain text", 502, "upstream unavailable\n", "upstream unavailable"},
		{"html page", 502, "<html><body>Bad Gateway</body></html>", ""},
		{"empty", 503, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := parseAPIError(response(tt.code, tt.body))
			assert.Equal(t, tt.code, e.StatusCode)
			assert.Equal(t, tt.detail, e.Detail)
			assert.Equal(t, http.StatusText(tt.code), e.Message)
		})
	}
}

func TestAPIError_Is(t *testing.T) {
	err := fmt.Errorf("loading: %w", &APIError{StatusCode: 404})
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrForbidden))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestFriendlyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"validation", &validate.Error{Field: "email", Message: "Please enter a valid email address."}, "Please enter a valid email address."},
		{"422 with detail", &APIError{StatusCode: 422, Detail: "top_k must not be negative"}, "top_k must not be negative"},
		{"400 without detail", &APIError{StatusCode: 400}, msgInvalid},
		{"401", &APIError{StatusCode: 401, Detail: "Token has expired"}, msgUnauthorized},
		{"403", &APIError{StatusCode: 403}, msgForbidden},
		{"404", fmt.Errorf("wrapped: %w", &APIError{StatusCode: 404}), msgNotFound},
		{"409 without detail", &APIError{StatusCode: 409}, msgConflict},
		{"413", &APIError{StatusCode: 413}, msgTooLarge},
		{"429", &APIError{StatusCode: 429}, msgRateLimited},
		{"500", &APIError{StatusCode: 500, Detail: "trace"}, msgServer},
		{"418", &APIError{StatusCode: 418}, msgUnknown},
		{"stream error", &stream.StreamError{Message: "The model failed to respond"}, "The model failed to respond"},
		{"empty reply", stream.ErrEmptyResponse, msgEmptyReply},
		{"breaker open", fmt.Errorf("GET /health: %w", gobreaker.ErrOpenState), msgUnavailable},
		{"half open", gobreaker.ErrTooManyRequests, msgUnavailable},
		{"deadline", context.DeadlineExceeded, msgTimeout},
		{"cancelled", context.Canceled, msgCancelled},
		{"net timeout", &url.Error{Op: "Get", URL: "http://x", Err: timeoutErr{}}, msgTimeout},
		{"refused", &url.Error{Op: "Get", URL: "http://x", Err: errors.New("connection refused")}, msgNetwork},
		{"unexpected eof", io.ErrUnexpectedEOF, msgNetwork},
		{"other", errors.New("strange"), msgUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FriendlyError(tt.err))
		})
	}
}
