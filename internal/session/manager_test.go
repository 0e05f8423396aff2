// Copyright (c) 2025 The QMS Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/99designs/keyring"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "qms/cli/internal/errors"
	"qms/cli/internal/httpclient"
	"qms/cli/internal/storage"
)

const testUser = `{"id":7,"email":"alice@example.com","username":"alice","full_name":"Alice Doe","role":"qa","is_active":true}`

// mockBackend serves /api/auth/login and a protected /api/capa/ endpoint.
type mockBackend struct {
	*httptest.Server
	loginCalls atomic.Int32
	// loginBody, when set, replaces the success response body.
	loginBody atomic.Value
	// loginStatus, when non-zero, is returned for valid credentials instead of 200.
	loginStatus atomic.Int32
	// protectedStatus is returned by /api/capa/.
	protectedStatus atomic.Int32
	// lastAuth is the Authorization header of the latest /api/capa/ request.
	lastAuth atomic.Value
}

func newMockBackend(t *testing.T) *mockBackend {
	t.Helper()
	mb := &mockBackend{}
	mb.protectedStatus.Store(http.StatusOK)
	mb.lastAuth.Store("")
	mb.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case LoginPath:
			mb.loginCalls.Add(1)
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			var req LoginRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if req.Username != "alice" || req.Password != "correct-horse" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail":"Incorrect username or password"}`))
				return
			}
			if status := mb.loginStatus.Load(); status != 0 {
				w.WriteHeader(int(status))
				return
			}
			if body, _ := mb.loginBody.Load().(string); body != "" {
				_, _ = w.Write([]byte(body))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"tok-123","token_type":"bearer","user":` + testUser + `}`))
		case "/api/capa/":
			mb.lastAuth.Store(r.Header.Get("Authorization"))
			w.WriteHeader(int(mb.protectedStatus.Load()))
			_, _ = w.Write([]byte(`[]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(mb.Close)
	return mb
}

func newManager(t *testing.T, store storage.Store, baseURL string) (*Manager, *httpclient.Client) {
	t.Helper()
	client := httpclient.New(baseURL)
	m, err := New(store, client, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, client
}

func memStore() storage.Store {
	return storage.NewKeyringStore(keyring.NewArrayKeyring(nil))
}

func assertLoggedOut(t *testing.T, m *Manager, store storage.Store, client *httpclient.Client) {
	t.Helper()
	assert.False(t, m.IsAuthenticated())
	assert.Equal(t, Session{}, m.Snapshot())
	_, ok, err := store.Get(storage.KeyToken)
	require.NoError(t, err)
	assert.False(t, ok, "token key must be removed")
	_, ok, err = store.Get(storage.KeyUser)
	require.NoError(t, err)
	assert.False(t, ok, "user key must be removed")
	_, ok = client.DefaultHeader(AuthorizationHeader)
	assert.False(t, ok, "authorization header must be removed")
}

func TestLogin_Success(t *testing.T) {
	mb := newMockBackend(t)
	store := memStore()
	m, client := newManager(t, store, mb.URL)

	require.NoError(t, m.Login(context.Background(), "alice", "correct-horse"))

	assert.True(t, m.IsAuthenticated())
	assert.Equal(t, "tok-123", m.Token())
	assert.JSONEq(t, testUser, m.User().String())

	token, ok, err := store.Get(storage.KeyToken)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tok-123", token)

	user, ok, err := store.Get(storage.KeyUser)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, testUser, user)

	header, ok := client.DefaultHeader(AuthorizationHeader)
	require.True(t, ok)
	assert.Equal(t, "Bearer tok-123", header)

	p, err := m.User().Profile()
	require.NoError(t, err)
	assert.Equal(t, "Alice Doe", p.DisplayName())
	assert.Equal(t, "qa", p.Role)
}

func TestLogin_SubsequentRequestsCarryBearer(t *testing.T) {
	mb := newMockBackend(t)
	m, client := newManager(t, memStore(), mb.URL)
	require.NoError(t, m.Login(context.Background(), "alice", "correct-horse"))

	require.NoError(t, client.DoJSON(context.Background(), http.MethodGet, "/api/capa/", nil, nil))
	assert.Equal(t, "Bearer tok-123", mb.lastAuth.Load())
}

func TestLogin_FailureCommitsNothing(t *testing.T) {
	tests := []struct {
		name      string
		password  string
		body      string
		wantKind  qerrors.Kind
		wantCode  int
		closeHost bool
	}{
		{name: "invalid credentials", password: "wrong", wantKind: qerrors.AuthFailed, wantCode: http.StatusUnauthorized},
		{name: "missing access_token", password: "correct-horse", body: `{"user":{"id":1}}`, wantKind: qerrors.MalformedResponse},
		{name: "empty access_token", password: "correct-horse", body: `{"access_token":"","user":null}`, wantKind: qerrors.MalformedResponse},
		{name: "non-JSON body", password: "correct-horse", body: `<html>ok</html>`, wantKind: qerrors.MalformedResponse},
		{name: "backend unreachable", password: "correct-horse", wantKind: qerrors.AuthFailed, closeHost: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mb := newMockBackend(t)
			mb.loginBody.Store(tt.body)
			store := memStore()
			m, client := newManager(t, store, mb.URL)
			if tt.closeHost {
				mb.Close()
			}

			err := m.Login(context.Background(), "alice", tt.password)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, qerrors.KindOf(err))
			assert.Equal(t, tt.wantCode, httpclient.StatusCode(err))
			assertLoggedOut(t, m, store, client)
		})
	}
}

func TestLogin_MissingUserIsAllowed(t *testing.T) {
	mb := newMockBackend(t)
	mb.loginBody.Store(`{"access_token":"tok-no-user"}`)
	store := memStore()
	m, _ := newManager(t, store, mb.URL)

	require.NoError(t, m.Login(context.Background(), "alice", "correct-horse"))
	assert.True(t, m.IsAuthenticated())
	assert.True(t, m.User().IsZero())

	user, ok, err := store.Get(storage.KeyUser)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "null", user)
}

func TestLogout_ClearsEverythingAndIsIdempotent(t *testing.T) {
	mb := newMockBackend(t)
	store := memStore()
	m, client := newManager(t, store, mb.URL)
	require.NoError(t, m.Login(context.Background(), "alice", "correct-horse"))

	m.Logout()
	assertLoggedOut(t, m, store, client)

	m.Logout()
	assertLoggedOut(t, m, store, client)
}

func TestNew_RestoresPersistedSession(t *testing.T) {
	mb := newMockBackend(t)
	store := memStore()
	require.NoError(t, store.Set(storage.KeyToken, "persisted"))
	require.NoError(t, store.Set(storage.KeyUser, testUser))

	m, client := newManager(t, store, mb.URL)

	assert.True(t, m.IsAuthenticated())
	assert.Equal(t, "persisted", m.Token())
	header, ok := client.DefaultHeader(AuthorizationHeader)
	require.True(t, ok)
	assert.Equal(t, "Bearer persisted", header)
	assert.Zero(t, mb.loginCalls.Load(), "restoring must not touch the network")

	require.NoError(t, client.DoJSON(context.Background(), http.MethodGet, "/api/capa/", nil, nil))
	assert.Equal(t, "Bearer persisted", mb.lastAuth.Load())
}

func TestNew_EmptyStore(t *testing.T) {
	store := memStore()
	m, client := newManager(t, store, "http://localhost:8000")
	assertLoggedOut(t, m, store, client)
}

func TestNew_CorruptUserIsDropped(t *testing.T) {
	store := memStore()
	require.NoError(t, store.Set(storage.KeyToken, "persisted"))
	require.NoError(t, store.Set(storage.KeyUser, "{not json"))

	m, _ := newManager(t, store, "http://localhost:8000")
	assert.True(t, m.IsAuthenticated())
	assert.True(t, m.User().IsZero())
}

type brokenStore struct {
	storage.Store
	getErr, setErr error
	failSetKey     string
}

func (b *brokenStore) Get(key string) (string, bool, error) {
	if b.getErr != nil {
		return "", false, b.getErr
	}
	return b.Store.Get(key)
}

func (b *brokenStore) Set(key, value string) error {
	if b.setErr != nil && key == b.failSetKey {
		return b.setErr
	}
	return b.Store.Set(key, value)
}

func TestNew_StorageUnreadable(t *testing.T) {
	store := &brokenStore{Store: memStore(), getErr: errors.New("keychain locked")}
	_, err := New(store, httpclient.New("http://localhost:8000"), zerolog.Nop())
	require.Error(t, err)
	assert.True(t, qerrors.Is(err, qerrors.StorageFailed))
}

func TestLogin_StorageFailureRollsBack(t *testing.T) {
	mb := newMockBackend(t)
	inner := memStore()
	store := &brokenStore{Store: inner, setErr: errors.New("disk full"), failSetKey: storage.KeyUser}
	m, client := newManager(t, store, mb.URL)

	err := m.Login(context.Background(), "alice", "correct-horse")
	require.Error(t, err)
	assert.True(t, qerrors.Is(err, qerrors.StorageFailed))
	assertLoggedOut(t, m, inner, client)
}

func TestUnauthorizedResponseLogsOut(t *testing.T) {
	mb := newMockBackend(t)
	store := memStore()
	m, client := newManager(t, store, mb.URL)
	require.NoError(t, m.Login(context.Background(), "alice", "correct-horse"))

	mb.protectedStatus.Store(http.StatusUnauthorized)
	err := client.DoJSON(context.Background(), http.MethodGet, "/api/capa/", nil, nil)

	assert.True(t, httpclient.IsUnauthorized(err), "caller must still observe the failure")
	assertLoggedOut(t, m, store, client)
}

func TestForbiddenResponseKeepsSession(t *testing.T) {
	mb := newMockBackend(t)
	m, client := newManager(t, memStore(), mb.URL)
	require.NoError(t, m.Login(context.Background(), "alice", "correct-horse"))

	mb.protectedStatus.Store(http.StatusForbidden)
	_ = client.DoJSON(context.Background(), http.MethodGet, "/api/capa/", nil, nil)
	assert.True(t, m.IsAuthenticated())
}

func TestClose_StopsReactingToUnauthorized(t *testing.T) {
	mb := newMockBackend(t)
	m, client := newManager(t, memStore(), mb.URL)
	require.NoError(t, m.Login(context.Background(), "alice", "correct-horse"))

	m.Close()
	mb.protectedStatus.Store(http.StatusUnauthorized)
	_ = client.DoJSON(context.Background(), http.MethodGet, "/api/capa/", nil, nil)
	assert.True(t, m.IsAuthenticated())
}

func TestSubscribe(t *testing.T) {
	mb := newMockBackend(t)
	m, _ := newManager(t, memStore(), mb.URL)

	var seen []bool
	unsubscribe := m.Subscribe(func(s Session) {
		seen = append(seen, s.IsAuthenticated())
	})

	require.NoError(t, m.Login(context.Background(), "alice", "correct-horse"))
	m.Logout()
	unsubscribe()
	require.NoError(t, m.Login(context.Background(), "alice", "correct-horse"))

	assert.Equal(t, []bool{true, false}, seen)
}

func TestLogin_FailedReloginFromExistingSession(t *testing.T) {
	tests := []struct {
		name      string
		password  string
		status    int
		body      string
		wantKind  qerrors.Kind
		wantKeeps bool
	}{
		{name: "server error keeps session", password: "correct-horse", status: http.StatusInternalServerError, wantKind: qerrors.AuthFailed, wantKeeps: true},
		{name: "malformed body keeps session", password: "correct-horse", body: `{"user":null}`, wantKind: qerrors.MalformedResponse, wantKeeps: true},
		{name: "unauthorized clears session", password: "wrong", wantKind: qerrors.AuthFailed, wantKeeps: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mb := newMockBackend(t)
			store := memStore()
			m, client := newManager(t, store, mb.URL)
			require.NoError(t, m.Login(context.Background(), "alice", "correct-horse"))

			mb.loginStatus.Store(int32(tt.status))
			mb.loginBody.Store(tt.body)
			err := m.Login(context.Background(), "alice", tt.password)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, qerrors.KindOf(err))

			if !tt.wantKeeps {
				assertLoggedOut(t, m, store, client)
				return
			}
			assert.True(t, m.IsAuthenticated())
			assert.Equal(t, "tok-123", m.Token())
			assert.JSONEq(t, testUser, m.User().String())
			tok, ok, err := store.Get(storage.KeyToken)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "tok-123", tok)
			user, ok, err := store.Get(storage.KeyUser)
			require.NoError(t, err)
			require.True(t, ok)
			assert.JSONEq(t, testUser, user)
			header, ok := client.DefaultHeader(AuthorizationHeader)
			require.True(t, ok)
			assert.Equal(t, "Bearer tok-123", header)
		})
	}
}

func TestNew_CorruptSessionFileStartsLoggedOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))
	store := storage.NewFileStore(path)

	m, client := newManager(t, store, "http://localhost:8000")
	assert.False(t, m.IsAuthenticated())

	m.Logout()
	_, ok := client.DefaultHeader(AuthorizationHeader)
	assert.False(t, ok)
	data, err := os.ReadFile(path)
	if err == nil {
		assert.True(t, json.Valid(data), "session file must be valid after logout, got %q", data)
	} else {
		assert.ErrorIs(t, err, os.ErrNotExist)
	}

	_, _, err = store.Get(storage.KeyToken)
	assert.NoError(t, err)
}

func TestLogin_UnreadableStoreKeepsPreviousToken(t *testing.T) {
	mb := newMockBackend(t)
	inner := memStore()
	require.NoError(t, inner.Set(storage.KeyToken, "persisted"))
	store := &brokenStore{Store: inner}
	m, _ := newManager(t, store, mb.URL)

	store.getErr = errors.New("keychain locked")
	err := m.Login(context.Background(), "alice", "correct-horse")
	require.Error(t, err)
	assert.True(t, qerrors.Is(err, qerrors.StorageFailed))

	tok, ok, err := inner.Get(storage.KeyToken)
	require.NoError(t, err)
	assert.True(t, ok, "stored token must survive a failed commit")
	assert.Equal(t, "persisted", tok)
	assert.Equal(t, "persisted", m.Token())
}

func TestSnapshot_UserIsACopy(t *testing.T) {
	mb := newMockBackend(t)
	m, _ := newManager(t, memStore(), mb.URL)
	require.NoError(t, m.Login(context.Background(), "alice", "correct-horse"))

	u := m.User()
	for i := range u {
		u[i] = 'x'
	}
	assert.JSONEq(t, testUser, m.User().String())

	s := m.Snapshot()
	s.User[0] = 'x'
	assert.JSONEq(t, testUser, m.Snapshot().User.String())
}
