// ABOUTME: Tests for the transcript accumulator and the Consume loop
// ABOUTME: Verifies chunk accumulation, placeholder removal, and post-finish event handling

package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulator_ChunksAccumulate(t *testing.T) {
	acc := NewAccumulator(nil, "hi")

	acc.Apply(Event{Chunk: "Hello"})
	acc.Apply(Event{Chunk: ", world"})

	snap := acc.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, RoleUser, snap.Messages[0].Role)
	assert.Equal(t, "Hello, world", snap.Messages[1].Content)
	assert.True(t, snap.Messages[1].Pending)
	assert.False(t, snap.Finished)

	acc.Apply(Event{Done: true, SessionID: "s-9"})
	snap = acc.Snapshot()
	assert.True(t, snap.Finished)
	assert.NoError(t, snap.Err)
	assert.False(t, snap.Messages[1].Pending)
	assert.Equal(t, "s-9", acc.SessionID())
}

func TestAccumulator_ErrorRemovesPlaceholder(t *testing.T) {
	acc := NewAccumulator(nil, "hi")
	acc.Apply(Event{Chunk: "partial"})
	acc.Apply(Event{Error: "model overloaded"})

	snap := acc.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, RoleUser, snap.Messages[0].Role)

	var se *StreamError
	require.ErrorAs(t, acc.Err(), &se)
	assert.Equal(t, "model overloaded", se.Message)
	assert.Nil(t, acc.Reply())
}

func TestAccumulator_EmptyCompletionRemovesPlaceholder(t *testing.T) {
	acc := NewAccumulator(nil, "hi")
	acc.Apply(Event{Status: "thinking"})
	acc.Apply(Event{Done: true})

	snap := acc.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.ErrorIs(t, acc.Err(), ErrEmptyResponse)
}

func TestAccumulator_IgnoresEventsAfterFinish(t *testing.T) {
	acc := NewAccumulator(nil, "hi")
	acc.Apply(Event{Chunk: "answer"})
	acc.Apply(Event{Done: true})
	acc.Apply(Event{Chunk: " trailing"})
	acc.Apply(Event{Error: "late error"})

	assert.NoError(t, acc.Err())
	assert.Equal(t, "answer", acc.Reply().Content)
}

func TestAccumulator_Tools(t *testing.T) {
	acc := NewAccumulator(nil, "hi")
	acc.Apply(Event{Tool: "search_docs"})
	acc.Apply(Event{Tool: "search_docs"})
	assert.Equal(t, "search_docs", acc.Snapshot().CurrentTool)
	assert.Equal(t, []string{"search_docs"}, acc.Reply().ToolsUsed)

	acc.Apply(Event{ToolsUsed: []string{"a", "b"}, Chunk: "x"})
	acc.Apply(Event{Done: true})
	assert.Equal(t, []string{"a", "b"}, acc.Reply().ToolsUsed)
	assert.Empty(t, acc.Snapshot().CurrentTool)
}

func TestAccumulator_KeepsHistory(t *testing.T) {
	history := []Message{{ID: "old", Role: RoleUser, Content: "earlier"}}
	acc := NewAccumulator(history, "now")
	snap := acc.Snapshot()
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, "earlier", snap.Messages[0].Content)
	assert.Equal(t, "now", snap.Messages[1].Content)
}

func TestAccumulator_SnapshotIsCopy(t *testing.T) {
	acc := NewAccumulator(nil, "hi")
	acc.Apply(Event{Tool: "t1", Chunk: "x"})
	snap := acc.Snapshot()
	snap.Messages[1].ToolsUsed[0] = "mutated"
	assert.Equal(t, []string{"t1"}, acc.Reply().ToolsUsed)
}

func TestConsume_EndWithoutDone(t *testing.T) {
	acc := NewAccumulator(nil, "hi")
	var updates int
	err := Consume(context.Background(), strings.NewReader("data: {\"chunk\":\"tail\"}\n"), acc, func(Snapshot) { updates++ })
	require.NoError(t, err)
	assert.True(t, acc.Finished())
	assert.Equal(t, "tail", acc.Reply().Content)
	assert.Equal(t, 2, updates)
}

func TestConsume_EndWithoutContent(t *testing.T) {
	acc := NewAccumulator(nil, "hi")
	err := Consume(context.Background(), strings.NewReader(""), acc, nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestConsume_StopsAtDone(t *testing.T) {
	acc := NewAccumulator(nil, "hi")
	body := "{\"chunk\":\"a\"}\n{\"done\":true}\n{not even json}\n"
	err := Consume(context.Background(), strings.NewReader(body), acc, nil)
	require.NoError(t, err)
	assert.Equal(t, "a", acc.Reply().Content)
}

func TestConsume_ErrorEvent(t *testing.T) {
	acc := NewAccumulator(nil, "hi")
	err := Consume(context.Background(), strings.NewReader(`{"error":"boom"}`), acc, nil)
	var se *StreamError
	require.ErrorAs(t, err, &se)
	assert.Len(t, acc.Snapshot().Messages, 1)
}

func TestConsume_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	acc := NewAccumulator(nil, "hi")
	err := Consume(ctx, strings.NewReader(`{"chunk":"never"}`), acc, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, acc.Reply())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestConsume_TransportError(t *testing.T) {
	acc := NewAccumulator(nil, "hi")
	err := Consume(context.Background(), io.MultiReader(strings.NewReader("{\"chunk\":\"a\"}\n"), failingReader{}), acc, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Nil(t, acc.Reply())
}
