package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/stockly-app/sessionkit/pkg/authevents"
	"github.com/stockly-app/sessionkit/pkg/identity"
	"github.com/stockly-app/sessionkit/pkg/logger"
	"github.com/stockly-app/sessionkit/pkg/messages"
)

// LoginClient posts the login request. *apiclient.Client implements it.
type LoginClient interface {
	Post(ctx context.Context, path string, in, out any) error
}

// CredentialStore is the durable side of the session. *credstore.Store
// implements it.
type CredentialStore interface {
	SaveSession(ctx context.Context, access, refresh string, u *identity.User) error
	Clear(ctx context.Context) error
	ReadUser(ctx context.Context) *identity.User
}

// UnauthorizedSource delivers forced-logout signals. *authevents.Bus
// implements it.
type UnauthorizedSource interface {
	OnUnauthorized(fn authevents.Handler) (unsubscribe func())
}

// Manager owns the in-memory session. It is safe for concurrent use; the
// lock is never held across storage or network calls.
type Manager struct {
	client   LoginClient
	store    CredentialStore
	log      *slog.Logger
	reporter Reporter
	messages *messages.Catalog

	mu sync.Mutex
	// guarded by mu
	user      *identity.User
	hydrating bool
	inFlight  int
	// version changes on every login and logout so a slow Hydrate cannot
	// restore a session that was replaced or ended while it was reading.
	version  uint64
	watchers map[chan State]struct{}
	closed   bool

	unsubscribe func()
	closeOnce   sync.Once
	done        chan struct{}
	wg          sync.WaitGroup
}

// New creates a manager in the hydrating state and registers its
// unauthorized handler on events. Call Hydrate once at startup and Close
// when done.
func New(client LoginClient, store CredentialStore, events UnauthorizedSource, opts ...Option) (*Manager, error) {
	if client == nil {
		return nil, ErrNoClient
	}
	if store == nil {
		return nil, ErrNoStore
	}

	m := &Manager{
		client:    client,
		store:     store,
		log:       logger.Discard(),
		hydrating: true,
		watchers:  make(map[chan State]struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(logger.Component("session"))
	if m.reporter == nil {
		m.reporter = logReporter{log: m.log}
	}
	if m.messages == nil {
		m.messages = messages.MustNew(messages.DefaultLanguage)
	}

	m.unsubscribe = func() {}
	if events != nil {
		m.unsubscribe = events.OnUnauthorized(m.handleUnauthorized)
	}
	return m, nil
}

// Hydrate restores a persisted user. It finishes the hydrating phase
// whatever the outcome; later calls do nothing.
func (m *Manager) Hydrate(ctx context.Context) {
	m.mu.Lock()
	if !m.hydrating {
		m.mu.Unlock()
		return
	}
	version := m.version
	m.mu.Unlock()

	u := m.store.ReadUser(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hydrating {
		return
	}
	if u != nil && m.version == version {
		m.user = u
		m.log.InfoContext(ctx, "session restored", logger.UserID(u.ID))
	}
	m.hydrating = false
	m.notifyLocked()
}

// Logout ends the session and clears stored credentials. The in-memory state
// is anonymous even when clearing storage fails; the error is returned for
// the caller to surface. Calling Logout while anonymous is harmless.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.version++
	wasAuthenticated := m.user != nil
	m.user = nil
	if wasAuthenticated {
		m.notifyLocked()
	}
	m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		m.log.ErrorContext(ctx, "failed to clear stored credentials", logger.Error(err))
		return err
	}
	if wasAuthenticated {
		m.log.InfoContext(ctx, "signed out", logger.Event("logout"))
	}
	return nil
}

// State returns a snapshot of the session.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// User returns a copy of the signed-in user, or nil.
func (m *Manager) User() *identity.User {
	return m.State().User
}

func (m *Manager) IsAuthenticated() bool {
	return m.State().IsAuthenticated()
}

// IsLoading reports whether hydration is still running.
func (m *Manager) IsLoading() bool {
	return m.State().IsLoading()
}

// IsAuthenticating reports whether a login call is in flight.
func (m *Manager) IsAuthenticating() bool {
	return m.State().Authenticating
}

func (m *Manager) Phase() Phase {
	return m.State().Phase()
}

// Watch returns a channel that receives the current state immediately and
// then the latest state after every change. A slow reader skips
// intermediate states but always sees the most recent one. The channel is
// closed when ctx ends or the manager is closed.
func (m *Manager) Watch(ctx context.Context) <-chan State {
	ch := make(chan State, 1)

	m.mu.Lock()
	defer m.mu.Unlock()

	ch <- m.stateLocked()
	if m.closed {
		close(ch)
		return ch
	}
	m.watchers[ch] = struct{}{}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		select {
		case <-ctx.Done():
			m.mu.Lock()
			if _, ok := m.watchers[ch]; ok {
				delete(m.watchers, ch)
				close(ch)
			}
			m.mu.Unlock()
		case <-m.done:
		}
	}()
	return ch
}

// Close unregisters the unauthorized handler and closes watch channels.
// The session itself is left as is.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.unsubscribe()

		m.mu.Lock()
		m.closed = true
		close(m.done)
		for ch := range m.watchers {
			close(ch)
		}
		clear(m.watchers)
		m.mu.Unlock()

		m.wg.Wait()
	})
	return nil
}

func (m *Manager) handleUnauthorized(ctx context.Context, sig authevents.Signal) {
	m.log.InfoContext(ctx, "forcing logout after rejected credentials",
		logger.Event("unauthorized"),
		logger.Path(sig.Path),
		logger.RequestID(sig.RequestID),
	)
	// Errors are already logged by Logout.
	_ = m.Logout(ctx)
}

func (m *Manager) stateLocked() State {
	return State{
		User:           m.user.Clone(),
		Hydrating:      m.hydrating,
		Authenticating: m.inFlight > 0,
	}
}

// notifyLocked replaces any undelivered state in each watcher with the
// current one.
func (m *Manager) notifyLocked() {
	if len(m.watchers) == 0 {
		return
	}
	s := m.stateLocked()
	for ch := range m.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}
