// ABOUTME: Tests for chat sessions against the in-memory fake backend
// ABOUTME: Covers streaming replies, double-submit rejection, failures, loading and local mirroring

package chat_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-console/internal/chat"
	"github.com/2389/coven-console/internal/client"
	"github.com/2389/coven-console/internal/mockapi"
	"github.com/2389/coven-console/internal/session"
	"github.com/2389/coven-console/internal/store"
	"github.com/2389/coven-console/internal/stream"
	"github.com/2389/coven-console/internal/validate"
)

func newClient(t *testing.T, opts mockapi.Options) *client.Client {
	t.Helper()
	t.Setenv(session.EnvToken, "")

	api := mockapi.New(opts)
	require.NoError(t, api.ApplySeed(&mockapi.Seed{Users: []mockapi.SeedUser{
		{Email: "alice@example.com", Name: "Alice"},
	}}))
	ts := httptest.NewServer(api.Handler())
	t.Cleanup(ts.Close)

	mgr := session.NewManager(store.NewMockStore(), nil)
	tok, err := api.IssueToken("alice@example.com")
	require.NoError(t, err)
	require.NoError(t, mgr.Save(context.Background(), tok, "alice@example.com"))

	return client.New(client.Options{BaseURL: ts.URL, HTTPClient: ts.Client(), Tokens: mgr})
}

func newSession(t *testing.T, api chat.API, ms store.TranscriptStore) *chat.Session {
	t.Helper()
	s := chat.NewSession(api, chat.Options{
		MaxChars:  validate.DefaultMaxChars,
		DedupeTTL: time.Minute,
		Store:     ms,
	})
	t.Cleanup(s.Close)
	return s
}

func TestSession_SendStreamsReply(t *testing.T) {
	ms := store.NewMockStore()
	s := newSession(t, newClient(t, mockapi.Options{}), ms)
	ctx := context.Background()

	var updates []stream.Snapshot
	reply, err := s.Send(ctx, "find the docs please", func(snap stream.Snapshot) {
		updates = append(updates, snap)
	})
	require.NoError(t, err)
	require.NotNil(t, reply)

	assert.Equal(t, "You said: find the docs please", reply.Content)
	assert.Equal(t, []string{"search_documents"}, reply.ToolsUsed)
	assert.False(t, reply.Pending)
	assert.NotEmpty(t, s.SessionID())
	require.NotEmpty(t, updates)
	assert.True(t, updates[len(updates)-1].Finished)

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, stream.RoleUser, msgs[0].Role)
	assert.Equal(t, stream.RoleAssistant, msgs[1].Role)

	mirrored, err := ms.GetChatMessages(ctx, s.SessionID())
	require.NoError(t, err)
	require.Len(t, mirrored, 2)
	assert.Equal(t, "find the docs please", mirrored[0].Content)

	sessions, err := ms.ListChatSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "find the docs please", sessions[0].Title)
}

func TestSession_ContinuesSameServerSession(t *testing.T) {
	s := newSession(t, newClient(t, mockapi.Options{}), nil)
	ctx := context.Background()

	_, err := s.Send(ctx, "first", nil)
	require.NoError(t, err)
	id := s.SessionID()

	_, err = s.Send(ctx, "second", nil)
	require.NoError(t, err)
	assert.Equal(t, id, s.SessionID())
	assert.Len(t, s.Messages(), 4)
}

func TestSession_RejectsInvalidMessage(t *testing.T) {
	s := newSession(t, newClient(t, mockapi.Options{}), nil)

	_, err := s.Send(context.Background(), "   ", nil)
	assert.True(t, validate.IsValidation(err))

	_, err = s.Send(context.Background(), strings.Repeat("a", validate.DefaultMaxChars+1), nil)
	assert.True(t, validate.IsValidation(err))
	assert.Empty(t, s.Messages())
}

// blockingAPI holds the stream open until released so a second send can race it
type blockingAPI struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingAPI) StreamChat(ctx context.Context, req client.ChatRequest) (io.ReadCloser, error) {
	close(b.started)
	<-b.release
	body := `data: {"session_id":"s1","status":"thinking"}` + "\n\n" +
		`data: {"chunk":"hi"}` + "\n\n" +
		`data: {"done":true,"session_id":"s1"}` + "\n\n"
	return io.NopCloser(strings.NewReader(body)), nil
}

func (b *blockingAPI) GetSession(ctx context.Context, id string) (*client.SessionDetail, error) {
	return nil, errors.New("not implemented")
}

func TestSession_DoubleSubmitRejected(t *testing.T) {
	api := &blockingAPI{started: make(chan struct{}), release: make(chan struct{})}
	s := newSession(t, api, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := s.Send(ctx, "hello", nil)
		done <- err
	}()

	<-api.started
	// The first send already claimed the key, so the duplicate fails before queueing
	_, err := s.Send(ctx, "  hello ", nil)
	assert.ErrorIs(t, err, chat.ErrDuplicate)
	assert.True(t, validate.IsValidation(err))

	close(api.release)
	require.NoError(t, <-done)
	assert.Len(t, s.Messages(), 2)
}

func TestSession_ResendAfterReplyRejected(t *testing.T) {
	s := newSession(t, newClient(t, mockapi.Options{}), nil)
	ctx := context.Background()

	_, err := s.Send(ctx, "hello there", nil)
	require.NoError(t, err)
	require.NotEmpty(t, s.SessionID())

	// The server id arrived with the reply, the guard still matches the first message
	_, err = s.Send(ctx, "hello there", nil)
	assert.ErrorIs(t, err, chat.ErrDuplicate)
	assert.Len(t, s.Messages(), 2)

	s.Reset()
	_, err = s.Send(ctx, "hello there", nil)
	require.NoError(t, err)
	assert.Len(t, s.Messages(), 2)
}

func TestSession_StreamErrorDropsPlaceholder(t *testing.T) {
	s := newSession(t, newClient(t, mockapi.Options{}), nil)

	_, err := s.Send(context.Background(), mockapi.PromptError, nil)
	require.Error(t, err)
	var se *stream.StreamError
	assert.ErrorAs(t, err, &se)

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, stream.RoleUser, msgs[0].Role)

	// A failed send frees the message for a retry
	_, err = s.Send(context.Background(), mockapi.PromptError, nil)
	assert.NotErrorIs(t, err, chat.ErrDuplicate)
}

func TestSession_EmptyResponse(t *testing.T) {
	s := newSession(t, newClient(t, mockapi.Options{}), nil)

	_, err := s.Send(context.Background(), mockapi.PromptEmpty, nil)
	assert.ErrorIs(t, err, stream.ErrEmptyResponse)
	assert.Len(t, s.Messages(), 1)
}

func TestSession_Cancelled(t *testing.T) {
	s := newSession(t, newClient(t, mockapi.Options{ChunkDelay: 50 * time.Millisecond}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	first := true
	_, err := s.Send(ctx, "a long enough prompt to stream slowly", func(stream.Snapshot) {
		if first {
			first = false
			cancel()
		}
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSession_LoadAndReset(t *testing.T) {
	c := newClient(t, mockapi.Options{})
	ctx := context.Background()

	writer := newSession(t, c, nil)
	_, err := writer.Send(ctx, "remember this", nil)
	require.NoError(t, err)
	id := writer.SessionID()

	ms := store.NewMockStore()
	reader := newSession(t, c, ms)
	require.NoError(t, reader.Load(ctx, id))
	assert.Equal(t, id, reader.SessionID())

	msgs := reader.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "remember this", msgs[0].Content)
	assert.Equal(t, "You said: remember this", msgs[1].Content)

	mirrored, err := ms.GetChatMessages(ctx, id)
	require.NoError(t, err)
	assert.Len(t, mirrored, 2)

	// Loading twice replaces rather than duplicates the mirror
	require.NoError(t, reader.Load(ctx, id))
	mirrored, err = ms.GetChatMessages(ctx, id)
	require.NoError(t, err)
	assert.Len(t, mirrored, 2)

	reader.Reset()
	assert.Empty(t, reader.SessionID())
	assert.Empty(t, reader.Messages())
}

func TestSession_LoadUnknown(t *testing.T) {
	s := newSession(t, newClient(t, mockapi.Options{}), nil)
	err := s.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, client.ErrNotFound)
}
