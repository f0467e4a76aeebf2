package marzban

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plaza-bot/internal/faults"
	"plaza-bot/internal/models"
)

type panelState struct {
	t           *testing.T
	tokenGrants int
	users       map[string]userResponse
	conflictOn  string
}

func newTestPanel(t *testing.T) (*panelState, *httptest.Server) {
	t.Helper()
	state := &panelState{t: t, users: map[string]userResponse{}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/admin/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("username") != "admin" || r.PostForm.Get("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		state.tokenGrants++
		json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok"})
	})
	mux.HandleFunc("GET /api/user/{name}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		user, ok := state.users[r.PathValue("name")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(user)
	})
	mux.HandleFunc("POST /api/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var create createUserRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&create))
		if _, exists := state.users[create.Username]; exists || create.Username == state.conflictOn {
			w.WriteHeader(http.StatusConflict)
			return
		}
		user := userResponse{
			Username: create.Username,
			Links:    []string{"vless://" + create.Username + "@panel.example:443"},
		}
		state.users[create.Username] = user
		json.NewEncoder(w).Encode(user)
	})
	mux.HandleFunc("DELETE /api/user/{name}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if _, ok := state.users[r.PathValue("name")]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(state.users, r.PathValue("name"))
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return state, srv
}

func TestIssueCreatesRemoteAccount(t *testing.T) {
	state, srv := newTestPanel(t)
	b := New(srv.URL, "admin", "secret")

	cred, err := b.Issue(context.Background(), 100, models.DefaultPreference(100), 30)
	require.NoError(t, err)
	assert.Equal(t, "user_100", cred.Handle)
	assert.Equal(t, "vless://user_100@panel.example:443", cred.Payload)
	assert.Contains(t, state.users, "user_100")
}

func TestIssueIsIdempotentPerUser(t *testing.T) {
	state, srv := newTestPanel(t)
	b := New(srv.URL, "admin", "secret")

	first, err := b.Issue(context.Background(), 100, models.DefaultPreference(100), 30)
	require.NoError(t, err)

	second, err := b.Issue(context.Background(), 100, models.DefaultPreference(100), 30)
	require.NoError(t, err)

	assert.Equal(t, first.Payload, second.Payload)
	assert.Len(t, state.users, 1, "second issue reuses the account instead of duplicating it")
}

func TestIssueReusesToken(t *testing.T) {
	state, srv := newTestPanel(t)
	b := New(srv.URL, "admin", "secret")

	_, err := b.Issue(context.Background(), 100, models.DefaultPreference(100), 30)
	require.NoError(t, err)
	_, err = b.Issue(context.Background(), 200, models.DefaultPreference(200), 30)
	require.NoError(t, err)

	assert.Equal(t, 1, state.tokenGrants, "token is cached across calls")
}

func TestIssueReauthenticatesOnExpiredToken(t *testing.T) {
	state, srv := newTestPanel(t)
	b := New(srv.URL, "admin", "secret")
	b.token = "expired" // simulate a session the panel no longer accepts

	_, err := b.Issue(context.Background(), 100, models.DefaultPreference(100), 30)
	require.NoError(t, err)
	assert.Equal(t, 1, state.tokenGrants)
}

func TestIssueMapsCreateRaceToConflict(t *testing.T) {
	state, srv := newTestPanel(t)
	state.conflictOn = "user_100"
	b := New(srv.URL, "admin", "secret")

	_, err := b.Issue(context.Background(), 100, models.DefaultPreference(100), 30)
	assert.ErrorIs(t, err, faults.ErrConflict)
}

func TestIssueBadCredentials(t *testing.T) {
	_, srv := newTestPanel(t)
	b := New(srv.URL, "admin", "wrong")

	_, err := b.Issue(context.Background(), 100, models.DefaultPreference(100), 30)
	assert.ErrorIs(t, err, faults.ErrUnavailable)
}

func TestIssuePanelDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on
	b := New(srv.URL, "admin", "secret")

	_, err := b.Issue(context.Background(), 100, models.DefaultPreference(100), 30)
	assert.ErrorIs(t, err, faults.ErrUnavailable)
}

func TestCleanup(t *testing.T) {
	state, srv := newTestPanel(t)
	b := New(srv.URL, "admin", "secret")

	_, err := b.Issue(context.Background(), 100, models.DefaultPreference(100), 30)
	require.NoError(t, err)

	require.NoError(t, b.Cleanup(context.Background(), "user_100"))
	assert.Empty(t, state.users)

	// Deleting an account the panel no longer knows is fine.
	assert.NoError(t, b.Cleanup(context.Background(), "user_100"))
}

func TestLinksPayloadFallbacks(t *testing.T) {
	b := New("https://panel.example", "admin", "secret")

	assert.Equal(t, "a\nb", b.linksPayload(userResponse{Links: []string{"a", "b"}}))
	assert.Equal(t, "https://panel.example/sub/abc",
		b.linksPayload(userResponse{SubscriptionURL: "https://panel.example/sub/abc"}))
	assert.Equal(t, "https://panel.example/sub/user_1",
		b.linksPayload(userResponse{Username: "user_1"}))
}
