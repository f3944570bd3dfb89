// ABOUTME: Tests for chat stream line decoding
// ABOUTME: Covers NDJSON, SSE data lines, comments, the [DONE] sentinel, and malformed lines

package stream

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, body string) ([]Event, error) {
	t.Helper()
	r := NewReader(strings.NewReader(body))
	var events []Event
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

func TestReader_NDJSON(t *testing.T) {
	events, err := readAll(t, `{"chunk":"Hel"}
{"chunk":"lo"}
{"done":true,"session_id":"s-1"}
`)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "Hel", events[0].Chunk)
	assert.Equal(t, "lo", events[1].Chunk)
	assert.True(t, events[2].Done)
	assert.Equal(t, "s-1", events[2].SessionID)
}

func TestReader_SSE(t *testing.T) {
	body := ": keep-alive\r\n" +
		"event: message\r\n" +
		"data: {\"status\":\"thinking\"}\r\n" +
		"\r\n" +
		"data:{\"tool\":\"search_docs\"}\n" +
		"\n" +
		"data: [DONE]\n"

	events, err := readAll(t, body)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "thinking", events[0].Status)
	assert.Equal(t, "search_docs", events[1].Tool)
	assert.Equal(t, Event{Done: true}, events[2])
}

func TestReader_MalformedLineReportsPosition(t *testing.T) {
	events, err := readAll(t, "{\"chunk\":\"ok\"}\n\n{not json}\n")
	require.Len(t, events, 1)

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 3, de.Line)
	assert.Contains(t, err.Error(), "stream line 3")
}

func TestReader_EmptyBody(t *testing.T) {
	events, err := readAll(t, "")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestReader_LineTooLong(t *testing.T) {
	long := `{"chunk":"` + strings.Repeat("x", MaxLineSize) + `"}`
	_, err := readAll(t, long)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading stream")
}
