package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/thruflo/serverboard/internal/api"
	"github.com/thruflo/serverboard/internal/logging"
	"github.com/thruflo/serverboard/internal/session"
)

// Authenticator exchanges credentials for a token. *api.Client implements it.
type Authenticator interface {
	Login(ctx context.Context, req api.LoginRequest) (api.LoginResponse, error)
}

// Result is the outcome of Manager.Login. At most one of Invalid and Err is
// set; neither means the user is now authorized.
type Result struct {
	Invalid FieldErrors
	Err     *AuthError
}

// OK reports whether the login succeeded.
func (r Result) OK() bool {
	return len(r.Invalid) == 0 && r.Err == nil
}

// Manager owns the session. It is the only reader and writer of the stored
// token; everything else asks it.
type Manager struct {
	store  session.Store
	client Authenticator
	log    *logging.Logger

	mu         sync.Mutex
	token      string
	authorized bool
	// gen is bumped by every Login and Logout; a login response is applied
	// only if gen is unchanged since the request was sent.
	gen uint64

	subMu  sync.Mutex
	subs   []subscriber
	nextID int

	// notifyMu is held while subscribers run; notified is the gen of the
	// last state delivered to them.
	notifyMu sync.Mutex
	notified uint64
}

type subscriber struct {
	id int
	fn func(bool)
}

// NewManager seeds the session from store. It panics if store or client is
// nil.
func NewManager(store session.Store, client Authenticator) (*Manager, error) {
	if store == nil {
		panic("auth: NewManager requires a session store")
	}
	if client == nil {
		panic("auth: NewManager requires an authenticator")
	}

	m := &Manager{
		store:  store,
		client: client,
		log:    logging.With("component", "auth"),
	}

	token, ok, err := store.Get(session.TokenKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if ok {
		m.token = token
		m.authorized = true
	}
	return m, nil
}

// IsAuthorized reports whether a token is held.
func (m *Manager) IsAuthorized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authorized
}

// Token returns the bearer token if authorized.
func (m *Manager) Token() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.authorized
}

// Subscribe registers fn to be called with the new authorization state after
// every change. Calls happen synchronously, in registration order, before the
// method that caused the change returns. A state that was overtaken by a newer
// one before it could be delivered is skipped, so subscribers never see
// changes out of commit order. fn must not call Login or Logout. The returned
// function removes fn.
func (m *Manager) Subscribe(fn func(authorized bool)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs = append(m.subs, subscriber{id: id, fn: fn})

	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		for i, s := range m.subs {
			if s.id == id {
				m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

// notify delivers the state committed at gen unless a newer one already went
// out.
func (m *Manager) notify(gen uint64, authorized bool) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	if gen <= m.notified {
		return
	}
	m.notified = gen

	m.subMu.Lock()
	subs := make([]subscriber, len(m.subs))
	copy(subs, m.subs)
	m.subMu.Unlock()

	for _, s := range subs {
		s.fn(authorized)
	}
}

// Login validates creds and, if they pass, asks the server for a token. On
// success the token is persisted and subscribers are told before Login
// returns. Invalid credentials never reach the network.
func (m *Manager) Login(ctx context.Context, creds Credentials) Result {
	if fe := creds.Validate(); fe != nil {
		return Result{Invalid: fe}
	}

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	log := m.log.With("username", creds.Username)
	log.Debug("requesting token")

	resp, err := m.client.Login(ctx, api.LoginRequest{
		Username: creds.Username,
		Password: creds.Password,
	})
	if err != nil {
		log.Debug("login request failed", "error", err)
		return Result{Err: unexpected(err)}
	}

	var token string
	switch r := resp.(type) {
	case *api.LoginSuccess:
		token = r.Token
	case *api.LoginFailure:
		log.Info("login rejected", "status", r.Status)
		if r.Message == "" {
			return Result{Err: unexpected(fmt.Errorf("status %d without message", r.Status))}
		}
		return Result{Err: &AuthError{Message: r.Message}}
	default:
		return Result{Err: unexpected(fmt.Errorf("unexpected login response %T", resp))}
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		log.Debug("discarding superseded login")
		return Result{Err: ErrSuperseded}
	}
	if err := m.store.Set(session.TokenKey, token); err != nil {
		m.mu.Unlock()
		log.Error("failed to persist token", "error", err)
		return Result{Err: unexpected(err)}
	}
	m.token = token
	m.authorized = true
	m.mu.Unlock()

	log.Info("logged in")
	m.notify(gen, true)
	return Result{}
}

// Logout forgets the token, removes it from the store and tells
// subscribers, all before returning. No request is sent. Any login still in
// flight is discarded when it completes. The in-memory session is cleared
// even if the store fails; the store error is returned.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	was := m.authorized
	m.token = ""
	m.authorized = false
	err := m.store.Delete(session.TokenKey)
	m.mu.Unlock()

	if err != nil {
		m.log.Error("failed to remove stored token", "error", err)
		err = fmt.Errorf("failed to clear session: %w", err)
	} else {
		m.log.Info("logged out")
	}

	if was {
		m.notify(gen, false)
	}
	return err
}

// Watch follows external changes to the stored token (another process
// logging in or out, the session file being deleted) until ctx is done. It
// returns ErrWatchUnsupported if the store cannot be watched.
func (m *Manager) Watch(ctx context.Context) error {
	w, ok := m.store.(session.Watcher)
	if !ok {
		return ErrWatchUnsupported
	}

	events, err := w.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch session: %w", err)
	}

	for ev := range events {
		if ev.Key != session.TokenKey {
			continue
		}
		m.apply(ev)
	}
	return nil
}

// apply reconciles with the store after ev. The event only says that
// something changed; its value may already be stale by the time it arrives.
func (m *Manager) apply(ev session.Event) {
	m.mu.Lock()
	token, present, err := m.store.Get(session.TokenKey)
	if err != nil {
		m.mu.Unlock()
		m.log.Warn("failed to re-read session", "error", err)
		return
	}

	was := m.authorized
	switch {
	case present && (token != m.token || !m.authorized):
		m.gen++
		m.token = token
		m.authorized = true
	case !present && m.authorized:
		m.gen++
		m.token = ""
		m.authorized = false
	default:
		m.mu.Unlock()
		m.log.Debug("session event matches current state", "present", ev.Present)
		return
	}
	gen := m.gen
	now := m.authorized
	m.mu.Unlock()

	m.log.Info("session changed externally", "authorized", now)
	if was != now {
		m.notify(gen, now)
	}
}
