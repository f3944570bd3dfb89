// ABOUTME: API error type and user-facing error messages
// ABOUTME: Decodes backend error bodies and maps any failure to a friendly sentence

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/2389/coven-console/internal/stream"
	"github.com/2389/coven-console/internal/validate"
	"github.com/sony/gobreaker"
)

// Sentinel errors matched through APIError.Is
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Detail)
	}
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

// Is lets errors.Is match the status sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	}
	return false
}

// errorBody covers the error shapes the backend produces
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// parseAPIError builds an APIError from a failed response. The body is consumed.
func parseAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil || len(body) == 0 {
		return apiErr
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		text := strings.TrimSpace(string(body))
		if text != "" && !strings.HasPrefix(text, "<") {
			apiErr.Detail = text
		}
		return apiErr
	}

	switch {
	case len(eb.Detail) > 0:
		apiErr.Detail = detailText(eb.Detail)
	case eb.Error != "":
		apiErr.Detail = eb.Error
	case eb.Message != "":
		apiErr.Detail = eb.Message
	}
	return apiErr
}

// detailText flattens a detail field that is a string, a list of {msg} objects, or an object with msg/message.
func detailText(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}

	type item struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
	}
	pick := func(it item) string {
		if it.Msg != "" {
			return it.Msg
		}
		return it.Message
	}

	var items []item
	if json.Unmarshal(raw, &items) == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if m := pick(it); m != "" {
				msgs = append(msgs, m)
			}
		}
		return strings.Join(msgs, "; ")
	}

	var one item
	if json.Unmarshal(raw, &one) == nil {
		return pick(one)
	}
	return ""
}

// Friendly messages
const (
	msgNetwork      = "Unable to connect to the server. Please check your connection."
	msgTimeout      = "The request timed out. Please try again."
	msgCancelled    = "The request was cancelled."
	msgUnavailable  = "The service is temporarily unavailable. Please try again shortly."
	msgInvalid      = "Invalid request."
	msgUnauthorized = "Your session has expired. Please sign in again."
	msgForbidden    = "You don't have permission to perform this action."
	msgNotFound     = "The requested resource was not found."
	msgConflict     = "This conflicts with an existing resource."
	msgTooLarge     = "The file is too large to upload."
	msgRateLimited  = "Too many requests. Please slow down and try again."
	msgServer       = "Server error. Please try again later."
	msgEmptyReply   = "The assistant returned an empty response. Please try again."
	msgUnknown      = "Something went wrong. Please try again."
)

// MsgUnknown is what FriendlyError returns for errors it cannot classify.
const MsgUnknown = msgUnknown

// FriendlyError maps any error to a message suitable for showing to a user.
func FriendlyError(err error) string {
	if err == nil {
		return ""
	}

	var ve *validate.Error
	if errors.As(err, &ve) {
		return ve.Message
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return friendlyStatus(apiErr)
	}

	var se *stream.StreamError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	if errors.Is(err, stream.ErrEmptyResponse) {
		return msgEmptyReply
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return msgUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return msgTimeout
	}
	if errors.Is(err, context.Canceled) {
		return msgCancelled
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return msgTimeout
		}
		return msgNetwork
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return msgNetwork
	}

	return msgUnknown
}

func friendlyStatus(e *APIError) string {
	switch {
	case e.StatusCode == http.StatusBadRequest, e.StatusCode == http.StatusUnprocessableEntity:
		return orDefault(e.Detail, msgInvalid)
	case e.StatusCode == http.StatusUnauthorized:
		return msgUnauthorized
	case e.StatusCode == http.StatusForbidden:
		return msgForbidden
	case e.StatusCode == http.StatusNotFound:
		return msgNotFound
	case e.StatusCode == http.StatusConflict:
		return orDefault(e.Detail, msgConflict)
	case e.StatusCode == http.StatusRequestEntityTooLarge:
		return msgTooLarge
	case e.StatusCode == http.StatusTooManyRequests:
		return msgRateLimited
	case e.StatusCode >= 500:
		return msgServer
	}
	return msgUnknown
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
