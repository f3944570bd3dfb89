// ABOUTME: Transcript accumulator that applies stream events to a pending assistant reply
// ABOUTME: Owns the placeholder lifecycle: filled by chunks, removed on error or empty completion

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyResponse is set when the stream completes without any content.
var ErrEmptyResponse = errors.New("empty response from assistant")

// Role constants
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one transcript entry.
type Message struct {
	ID        string
	Role      string
	Content   string
	ToolsUsed []string
	CreatedAt time.Time
	// Pending marks the assistant placeholder while the reply streams in.
	Pending bool
}

// StreamError is an error event sent by the backend mid-stream.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string { return e.Message }

// Snapshot is a copy of the accumulator state, safe to hand to UI callbacks.
type Snapshot struct {
	Messages    []Message
	CurrentTool string
	Status      string
	SessionID   string
	Finished    bool
	Err         error
}

// Accumulator builds the transcript for one send.
// It is not safe for concurrent use.
type Accumulator struct {
	messages    []Message
	placeholder int // index of the assistant placeholder, -1 once removed
	currentTool string
	status      string
	sessionID   string
	finished    bool
	err         error
}

// NewAccumulator starts a transcript with history, the user message and an empty assistant placeholder.
func NewAccumulator(history []Message, userText string) *Accumulator {
	now := time.Now()
	msgs := make([]Message, 0, len(history)+2)
	msgs = append(msgs, history...)
	msgs = append(msgs,
		Message{ID: uuid.NewString(), Role: RoleUser, Content: userText, CreatedAt: now},
		Message{ID: uuid.NewString(), Role: RoleAssistant, CreatedAt: now, Pending: true},
	)
	return &Accumulator{
		messages:    msgs,
		placeholder: len(msgs) - 1,
	}
}

// Apply folds one event into the transcript. Events after finish are ignored.
func (a *Accumulator) Apply(ev Event) {
	if a.finished {
		return
	}

	if ev.SessionID != "" {
		a.sessionID = ev.SessionID
	}
	if ev.Status != "" {
		a.status = ev.Status
	}

	if ev.Error != "" {
		a.removePlaceholder()
		a.err = &StreamError{Message: ev.Error}
		a.finished = true
		return
	}

	if a.placeholder >= 0 {
		p := &a.messages[a.placeholder]
		if ev.Chunk != "" {
			p.Content += ev.Chunk
		}
		if ev.Tool != "" {
			a.currentTool = ev.Tool
			if !slices.Contains(p.ToolsUsed, ev.Tool) {
				p.ToolsUsed = append(p.ToolsUsed, ev.Tool)
			}
		}
		if ev.ToolsUsed != nil {
			p.ToolsUsed = slices.Clone(ev.ToolsUsed)
		}
	}

	if ev.Done {
		a.finish()
	}
}

// Close finishes the transcript when the stream ended without a done event.
func (a *Accumulator) Close() {
	if !a.finished {
		a.finish()
	}
}

// Fail aborts the send with a transport error, dropping the placeholder.
func (a *Accumulator) Fail(err error) {
	if a.finished {
		return
	}
	a.removePlaceholder()
	a.err = err
	a.finished = true
}

func (a *Accumulator) finish() {
	a.finished = true
	a.currentTool = ""
	if a.placeholder < 0 {
		return
	}
	if a.messages[a.placeholder].Content == "" {
		a.removePlaceholder()
		a.err = ErrEmptyResponse
		return
	}
	a.messages[a.placeholder].Pending = false
}

func (a *Accumulator) removePlaceholder() {
	if a.placeholder < 0 {
		return
	}
	a.messages = slices.Delete(a.messages, a.placeholder, a.placeholder+1)
	a.placeholder = -1
}

// Finished reports whether a terminal event has been applied.
func (a *Accumulator) Finished() bool { return a.finished }

// Err returns the terminal error, if any.
func (a *Accumulator) Err() error { return a.err }

// SessionID returns the session id announced by the stream.
func (a *Accumulator) SessionID() string { return a.sessionID }

// Reply returns the assistant message, or nil when it was removed.
func (a *Accumulator) Reply() *Message {
	if a.placeholder < 0 {
		return nil
	}
	m := cloneMessage(a.messages[a.placeholder])
	return &m
}

// Snapshot returns a deep copy of the current state.
func (a *Accumulator) Snapshot() Snapshot {
	msgs := make([]Message, len(a.messages))
	for i, m := range a.messages {
		msgs[i] = cloneMessage(m)
	}
	return Snapshot{
		Messages:    msgs,
		CurrentTool: a.currentTool,
		Status:      a.status,
		SessionID:   a.sessionID,
		Finished:    a.finished,
		Err:         a.err,
	}
}

func cloneMessage(m Message) Message {
	m.ToolsUsed = slices.Clone(m.ToolsUsed)
	return m
}

// Consume reads events from r into acc until the stream finishes, calling fn after each event.
// It returns acc.Err() for stream-level failures, or the read error for transport failures.
func Consume(ctx context.Context, r io.Reader, acc *Accumulator, fn func(Snapshot)) error {
	reader := NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			acc.Fail(err)
			notify(fn, acc)
			return err
		}

		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			acc.Close()
			notify(fn, acc)
			return acc.Err()
		}
		if err != nil {
			// A cancelled request surfaces as a body read error
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			acc.Fail(err)
			notify(fn, acc)
			return fmt.Errorf("consuming stream: %w", err)
		}

		acc.Apply(ev)
		notify(fn, acc)
		if acc.Finished() {
			return acc.Err()
		}
	}
}

func notify(fn func(Snapshot), acc *Accumulator) {
	if fn != nil {
		fn(acc.Snapshot())
	}
}
