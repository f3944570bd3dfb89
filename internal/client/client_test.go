// ABOUTME: End-to-end tests for the REST client against the in-memory fake backend
// ABOUTME: Covers sign-in, token clearing on 401, uploads, admin calls and local validation

package client_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-console/internal/client"
	"github.com/2389/coven-console/internal/mockapi"
	"github.com/2389/coven-console/internal/session"
	"github.com/2389/coven-console/internal/store"
	"github.com/2389/coven-console/internal/stream"
	"github.com/2389/coven-console/internal/validate"
)

type countingRecorder struct {
	mu    sync.Mutex
	codes []int
}

func (r *countingRecorder) ObserveRequest(method string, code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, code)
}

type fixture struct {
	api      *mockapi.Server
	ts       *httptest.Server
	store    *store.MockStore
	sessions *session.Manager
	client   *client.Client
	recorder *countingRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv(session.EnvToken, "")

	api := mockapi.New(mockapi.Options{})
	require.NoError(t, api.ApplySeed(&mockapi.Seed{Users: []mockapi.SeedUser{
		{Email: "admin@example.com", Name: "Admin", Role: client.RoleAdmin},
		{Email: "alice@example.com", Name: "Alice"},
	}}))
	ts := httptest.NewServer(api.Handler())
	t.Cleanup(ts.Close)

	ms := store.NewMockStore()
	mgr := session.NewManager(ms, nil)
	rec := &countingRecorder{}
	c := client.New(client.Options{
		BaseURL:    ts.URL + "/",
		HTTPClient: ts.Client(),
		Tokens:     mgr,
		Recorder:   rec,
		MaxChars:   validate.DefaultMaxChars,
	})
	return &fixture{api: api, ts: ts, store: ms, sessions: mgr, client: c, recorder: rec}
}

func (f *fixture) signIn(t *testing.T, email string) {
	t.Helper()
	tok, err := f.api.IssueToken(email)
	require.NoError(t, err)
	require.NoError(t, f.sessions.Save(context.Background(), tok, email))
}

func TestClient_OTPSignIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.RequestOTP(ctx, "alice@example.com"))
	code := f.api.LastOTP("alice@example.com")

	resp, err := f.client.VerifyOTP(ctx, "alice@example.com", code)
	require.NoError(t, err)
	assert.Equal(t, "Alice", resp.User.Name)

	info, err := f.sessions.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, resp.AccessToken, info.Token)
	assert.Equal(t, "alice@example.com", info.Email)

	me, err := f.client.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", me.Email)
}

func TestClient_ValidatesBeforeSending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.client.RequestOTP(ctx, "not-an-email")
	assert.True(t, validate.IsValidation(err))

	_, err = f.client.VerifyOTP(ctx, "alice@example.com", "12ab")
	assert.True(t, validate.IsValidation(err))

	_, err = f.client.StreamChat(ctx, client.ChatRequest{Message: strings.Repeat("x", validate.DefaultMaxChars+1)})
	assert.True(t, validate.IsValidation(err))

	assert.Empty(t, f.recorder.codes, "no request should reach the server")
}

func TestClient_UnauthorizedClearsToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signIn(t, "alice@example.com")

	// Revoke server-side, leaving the local copy in place
	tok, err := f.sessions.Token(ctx)
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodPost, f.ts.URL+"/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := f.ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	_, err = f.client.Me(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, client.ErrUnauthorized))
	assert.Equal(t, "Your session has expired. Please sign in again.", client.FriendlyError(err))

	_, err = f.store.LoadToken(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestClient_LogoutAlwaysClearsLocalToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signIn(t, "alice@example.com")

	require.NoError(t, f.client.Logout(ctx))
	_, err := f.sessions.Current(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession)

	// A second logout fails on the server but still leaves us signed out
	f.signIn(t, "alice@example.com")
	f.ts.Close()
	err = f.client.Logout(ctx)
	assert.Error(t, err)
	_, err = f.sessions.Current(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestClient_UploadAndApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signIn(t, "admin@example.com")

	col, err := f.client.CreateCollection(ctx, client.CollectionInput{Name: "Policies"})
	require.NoError(t, err)

	doc, err := f.client.UploadDocument(ctx, client.Upload{
		Filename:     "/tmp/nested/policy.md",
		Content:      strings.NewReader("# Leave policy\n"),
		Title:        "Leave policy",
		CollectionID: col.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "policy.md", doc.Filename)
	assert.Equal(t, "Leave policy", doc.Title)
	assert.Equal(t, col.ID, doc.CollectionID)
	assert.Equal(t, client.DocumentPending, doc.Status)

	pending, err := f.client.PendingDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = f.client.RejectDocument(ctx, doc.ID, "")
	require.Error(t, err)
	assert.Equal(t, "reason is required", client.FriendlyError(err))

	approved, err := f.client.ApproveDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, client.DocumentApproved, approved.Status)

	docs, err := f.client.CollectionDocuments(ctx, col.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestClient_AdminForbiddenForRegularUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signIn(t, "alice@example.com")

	_, err := f.client.ListUsers(ctx, client.UserFilter{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, client.ErrForbidden))
	assert.Equal(t, "You don't have permission to perform this action.", client.FriendlyError(err))

	// Forbidden does not sign the user out
	_, err = f.client.Me(ctx)
	assert.NoError(t, err)
}

func TestClient_AdminUserManagement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signIn(t, "admin@example.com")

	page, err := f.client.ListUsers(ctx, client.UserFilter{Search: "alice"})
	require.NoError(t, err)
	require.Len(t, page.Users, 1)
	alice := page.Users[0]

	u, err := f.client.SetUserRole(ctx, alice.ID, client.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, client.RoleAdmin, u.Role)

	_, err = f.client.SetUserRole(ctx, alice.ID, client.RoleSuperadmin)
	assert.True(t, errors.Is(err, client.ErrForbidden))

	_, err = f.client.SetUserRole(ctx, alice.ID, "owner")
	assert.True(t, validate.IsValidation(err))

	stats, err := f.client.SystemStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalUsers)

	days, err := f.client.UsageHistory(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, days, 3)
}

func TestClient_StreamChat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signIn(t, "alice@example.com")

	body, err := f.client.StreamChat(ctx, client.ChatRequest{Message: "hello there"})
	require.NoError(t, err)
	defer body.Close()

	acc := stream.NewAccumulator(nil, "hello there")
	require.NoError(t, stream.Consume(ctx, body, acc, nil))
	reply := acc.Reply()
	require.NotNil(t, reply)
	assert.Equal(t, "You said: hello there", reply.Content)
	assert.NotEmpty(t, acc.SessionID())

	sessions, err := f.client.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, acc.SessionID(), sessions[0].ID)
	assert.Equal(t, 2, sessions[0].MessageCount)
}

func TestClient_ResolverAndErrorBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, "<html>bad gateway</html>")
		case "/api/collections":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, `{"error": "name taken"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := client.New(client.Options{Resolver: staticResolver(srv.URL), HTTPClient: srv.Client()})
	ctx := context.Background()

	base, err := c.BaseURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, srv.URL, base)

	_, err = c.Health(ctx)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Empty(t, apiErr.Detail)

	_, err = c.CreateCollection(ctx, client.CollectionInput{Name: "dup"})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "name taken", apiErr.Detail)
	assert.True(t, errors.Is(err, client.ErrConflict))
}

type staticResolver string

func (s staticResolver) Resolve(context.Context) (string, error) { return string(s) + "/", nil }

func TestClient_NoBaseURL(t *testing.T) {
	c := client.New(client.Options{})
	_, err := c.Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no base url configured")
}
