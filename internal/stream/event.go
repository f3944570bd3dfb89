// ABOUTME: Chat stream event decoding from newline-delimited JSON or SSE data lines
// ABOUTME: Reader yields one Event per line and reports malformed lines with their position

package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// MaxLineSize bounds a single stream line.
const MaxLineSize = 1 << 20

// doneSentinel terminates an SSE stream in the OpenAI style
const doneSentinel = "[DONE]"

// Event is one decoded chat stream event. Any combination of fields may be set.
type Event struct {
	Chunk     string   `json:"chunk,omitempty"`
	Tool      string   `json:"tool,omitempty"`
	ToolsUsed []string `json:"tools_used,omitempty"`
	Done      bool     `json:"done,omitempty"`
	Error     string   `json:"error,omitempty"`
	Status    string   `json:"status,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
}

// DecodeError reports a line that could not be decoded as an Event.
type DecodeError struct {
	Line int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("stream line %d: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Reader decodes events from a chunked response body.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	return &Reader{scanner: scanner}
}

// Next returns the next event, or io.EOF when the stream ends.
// Blank lines, SSE comments and non-data SSE fields are skipped.
func (r *Reader) Next() (Event, error) {
	for r.scanner.Scan() {
		r.line++
		payload, ok := dataPayload(r.scanner.Text())
		if !ok {
			continue
		}

		if payload == doneSentinel {
			return Event{Done: true}, nil
		}

		var ev Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return Event{}, &DecodeError{Line: r.line, Err: err}
		}
		return ev, nil
	}

	if err := r.scanner.Err(); err != nil {
		return Event{}, fmt.Errorf("reading stream: %w", err)
	}
	return Event{}, io.EOF
}

// dataPayload extracts the JSON payload from a raw line.
// Returns false for lines that carry no event.
func dataPayload(raw string) (string, bool) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, ":") {
		return "", false
	}

	if rest, ok := strings.CutPrefix(line, "data:"); ok {
		rest = strings.TrimSpace(rest)
		return rest, rest != ""
	}

	// Other SSE fields (event:, id:, retry:) never hold JSON
	for _, field := range []string{"event:", "id:", "retry:"} {
		if strings.HasPrefix(line, field) {
			return "", false
		}
	}

	return line, true
}
