// Copyright (c) 2025 The QMS Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package session owns the authenticated session of the CLI process.
//
// A session has three projections that must always agree: the in-memory
// Session, the durable record in a storage.Store (keys "token" and "user"),
// and the Authorization default header of the shared httpclient.Client. The
// Manager is the only writer of all three and updates them together under one
// lock. It also subscribes to the client's unauthorized notifications, so a 401
// on any request clears the session.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	qerrors "qms/cli/internal/errors"
	"qms/cli/internal/httpclient"
	"qms/cli/internal/logging"
	"qms/cli/internal/storage"
)

// LoginPath is the backend endpoint that exchanges credentials for a token.
const LoginPath = "/api/auth/login"

// AuthorizationHeader is the default header the Manager maintains on the client.
const AuthorizationHeader = "Authorization"

// Session is the current token and user. The zero value is logged out.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// IsAuthenticated reports whether s carries a token.
func (s Session) IsAuthenticated() bool { return s.Token != "" }

// LoginRequest is the body posted to LoginPath.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the success body returned by LoginPath.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	User        User   `json:"user"`
}

// Manager coordinates the session across memory, durable storage and the
// shared HTTP client. It is safe for concurrent use; concurrent logins are not
// de-duplicated and the last one to commit wins.
type Manager struct {
	store  storage.Store
	client *httpclient.Client
	log    zerolog.Logger

	mu      sync.RWMutex
	current Session

	lmu       sync.Mutex
	nextID    int
	listeners []listener

	unsubscribe func()
}

type listener struct {
	id int
	fn func(Session)
}

// New restores the persisted session, primes the client's Authorization
// header when a token was stored, and subscribes to unauthorized responses.
// No network call is made.
func New(store storage.Store, client *httpclient.Client, log zerolog.Logger) (*Manager, error) {
	m := &Manager{
		store:  store,
		client: client,
		log:    log.With().Str("component", "session").Logger(),
	}

	restored, err := m.load()
	if err != nil {
		return nil, err
	}
	m.current = restored
	if restored.IsAuthenticated() {
		client.SetDefaultHeader(AuthorizationHeader, bearer(restored.Token))
		m.log.Debug().Msg("restored persisted session")
	}

	m.unsubscribe = client.OnUnauthorized(m.handleUnauthorized)
	return m, nil
}

// load reads the durable record. A corrupt record or user is dropped rather
// than failing startup; an unreadable store (for example a locked keychain) is
// an error.
func (m *Manager) load() (Session, error) {
	var s Session

	token, _, err := m.store.Get(storage.KeyToken)
	if errors.Is(err, storage.ErrCorrupt) {
		m.log.Warn().Err(err).Msg("stored session is corrupt; starting logged out")
		return s, nil
	}
	if err != nil {
		return s, qerrors.Wrap(qerrors.StorageFailed, "read stored token", err)
	}
	s.Token = token

	raw, ok, err := m.store.Get(storage.KeyUser)
	switch {
	case err != nil:
		m.log.Warn().Err(err).Msg("stored user unreadable; ignoring")
	case ok && !json.Valid([]byte(raw)):
		m.log.Warn().Msg("stored user is not valid JSON; ignoring")
	case ok:
		s.User = User(raw)
	}
	return s, nil
}

// Login exchanges credentials for a token. On success the token and user are
// persisted, kept in memory and installed as the client's bearer header. On
// any failure the error is logged and returned, and no session state changes.
// A 2xx response without an access_token is treated as a failure.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	var resp LoginResponse
	err := m.client.DoJSON(ctx, http.MethodPost, LoginPath, LoginRequest{
		Username: username,
		Password: password,
	}, &resp)
	if err != nil {
		kind := qerrors.AuthFailed
		if errors.Is(err, httpclient.ErrDecodeResponse) {
			kind = qerrors.MalformedResponse
		}
		return m.loginFailed(username, qerrors.Wrap(kind, "login", err))
	}
	if resp.AccessToken == "" {
		return m.loginFailed(username, qerrors.New(qerrors.MalformedResponse, "login response has no access_token"))
	}

	next := Session{Token: resp.AccessToken, User: resp.User}
	if err := m.commit(next); err != nil {
		return m.loginFailed(username, err)
	}
	m.log.Info().Str("username", username).Msg("login succeeded")
	m.notify(Session{Token: next.Token, User: User(bytes.Clone(next.User))})
	return nil
}

func (m *Manager) loginFailed(username string, err error) error {
	m.log.Error().
		Str("username", username).
		Int("status", httpclient.StatusCode(err)).
		Msg(logging.Mask(err.Error()))
	return err
}

// commit writes next to all three projections. A storage failure leaves the
// previous state in place.
func (m *Manager) commit(next Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prevToken, hadToken, err := m.store.Get(storage.KeyToken)
	if err != nil && !errors.Is(err, storage.ErrCorrupt) {
		return qerrors.Wrap(qerrors.StorageFailed, "read stored token", err)
	}
	if err := m.store.Set(storage.KeyToken, next.Token); err != nil {
		return qerrors.Wrap(qerrors.StorageFailed, "persist token", err)
	}
	if err := m.store.Set(storage.KeyUser, next.User.String()); err != nil {
		m.restoreToken(prevToken, hadToken)
		return qerrors.Wrap(qerrors.StorageFailed, "persist user", err)
	}

	m.current = next
	m.client.SetDefaultHeader(AuthorizationHeader, bearer(next.Token))
	return nil
}

func (m *Manager) restoreToken(prev string, had bool) {
	var err error
	if had {
		err = m.store.Set(storage.KeyToken, prev)
	} else {
		err = m.store.Remove(storage.KeyToken)
	}
	if err != nil {
		m.log.Error().Err(err).Msg("could not roll back stored token")
	}
}

// Logout clears the session everywhere. It never fails: storage errors are
// logged and the in-memory state and header are cleared regardless. Calling it
// when already logged out is harmless.
func (m *Manager) Logout() {
	m.mu.Lock()
	if err := m.store.Remove(storage.KeyToken); err != nil {
		m.log.Error().Err(err).Msg("remove stored token")
	}
	if err := m.store.Remove(storage.KeyUser); err != nil {
		m.log.Error().Err(err).Msg("remove stored user")
	}
	m.client.DeleteDefaultHeader(AuthorizationHeader)
	m.current = Session{}
	m.mu.Unlock()

	m.notify(Session{})
}

// handleUnauthorized is the client subscription: any 401 ends the session.
func (m *Manager) handleUnauthorized(resp *http.Response) {
	ev := m.log.Warn().Int("status", resp.StatusCode)
	if resp.Request != nil && resp.Request.URL != nil {
		ev = ev.Str("method", resp.Request.Method).Str("path", resp.Request.URL.Path)
	}
	ev.Msg("unauthorized response; clearing session")
	m.Logout()
}

// IsAuthenticated reports whether a token is currently held.
func (m *Manager) IsAuthenticated() bool {
	return m.Snapshot().IsAuthenticated()
}

// Token returns the current token, or "" when logged out.
func (m *Manager) Token() string {
	return m.Snapshot().Token
}

// User returns a copy of the current user record.
func (m *Manager) User() User {
	return m.Snapshot().User
}

// Snapshot returns a copy of the current session. The user bytes are cloned,
// so callers may modify the result freely.
func (m *Manager) Snapshot() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.current
	s.User = User(bytes.Clone(s.User))
	return s
}

// TokenClaims decodes the current token's claims for display.
func (m *Manager) TokenClaims() (Claims, error) {
	return ParseClaims(m.Token())
}

// Subscribe registers fn to be called with the new session after every login
// and logout. The returned function removes the subscription.
func (m *Manager) Subscribe(fn func(Session)) (unsubscribe func()) {
	m.lmu.Lock()
	defer m.lmu.Unlock()
	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, listener{id: id, fn: fn})

	return func() {
		m.lmu.Lock()
		defer m.lmu.Unlock()
		for i, l := range m.listeners {
			if l.id == id {
				m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

func (m *Manager) notify(s Session) {
	m.lmu.Lock()
	fns := make([]func(Session), 0, len(m.listeners))
	for _, l := range m.listeners {
		fns = append(fns, l.fn)
	}
	m.lmu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// Close detaches the Manager from the client's unauthorized notifications.
func (m *Manager) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func bearer(token string) string {
	return "Bearer " + token
}
