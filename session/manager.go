package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/grindolympiads/examgate/notifications"
)

// Manager is the single owned root of all visitor sessions. It is created
// with the application and closed on shutdown; nothing else constructs
// sessions or feeds.
type Manager struct {
	backend  Backend
	notifier notifications.Backend
	tokens   TokenStore

	mu       sync.Mutex
	sessions map[string]*Session
	feeds    map[string]*notifications.Feed
}

// NewManager creates a session manager.
func NewManager(backend Backend, notifier notifications.Backend, tokens TokenStore) *Manager {
	return &Manager{
		backend:  backend,
		notifier: notifier,
		tokens:   tokens,
		sessions: make(map[string]*Session),
		feeds:    make(map[string]*notifications.Feed),
	}
}

// Create creates a new anonymous session with a fresh session ID.
func (m *Manager) Create() *Session {
	s, _ := m.install(uuid.NewString())
	return s
}

// install returns the live session for the given session ID, building it
// together with its satellite feed on first use and wiring the feed's
// re-initialization to the logged-out transition. Concurrent installs for the
// same session ID converge on one session; created reports whether this call
// built it.
func (m *Manager) install(sid string) (s *Session, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sid]; ok {
		return s, false
	}

	s = newSession(sid, m.backend, m.tokens)
	feed := notifications.NewFeed(m.notifier, s)
	s.Subscribe(func(state State) {
		if !state.IsLoggedIn {
			feed.Clear()
		}
	})

	m.sessions[sid] = s
	m.feeds[sid] = feed
	return s, true
}

// Lookup returns the live session for the given session ID, if any.
func (m *Manager) Lookup(sid string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sid]
	return s, ok
}

// Attach returns the live session for the given session ID, resuming it from
// the durable token store if necessary. A fresh process start with no stored
// token yields no session and no profile fetch. With a stored token, the
// profile and progress fetch fires automatically; if the token turns out to
// be invalid, the resumed session settles as anonymous.
func (m *Manager) Attach(ctx context.Context, sid string) (*Session, error) {
	if sid == "" {
		return nil, nil
	}
	if s, ok := m.Lookup(sid); ok {
		return s, nil
	}

	record, err := m.tokens.GetSession(ctx, sid)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}

	s, created := m.install(sid)
	if created {
		// A resume failure already invalidated the session; the caller sees
		// an anonymous snapshot.
		_ = s.Resume(ctx, record.Token, record.AdminMode)
	}
	return s, nil
}

// Feed returns the notification feed of the given session.
func (m *Manager) Feed(sid string) (*notifications.Feed, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	feed, ok := m.feeds[sid]
	return feed, ok
}

// Logout logs out and tears down the session with the given ID. The durable
// record is removed even when no live session exists, so a logout after a
// restart still clears the stored token.
func (m *Manager) Logout(ctx context.Context, sid string) {
	if s, ok := m.Lookup(sid); ok {
		_ = s.Logout(ctx)
		m.Remove(sid)
		return
	}
	_ = m.tokens.DeleteSession(ctx, sid)
}

// Remove tears down the session with the given ID.
func (m *Manager) Remove(sid string) {
	m.mu.Lock()
	s, ok := m.sessions[sid]
	delete(m.sessions, sid)
	delete(m.feeds, sid)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Range calls fn for every live session until fn returns false.
func (m *Manager) Range(fn func(s *Session, feed *notifications.Feed) bool) {
	m.mu.Lock()
	type pair struct {
		s    *Session
		feed *notifications.Feed
	}
	pairs := make([]pair, 0, len(m.sessions))
	for sid, s := range m.sessions {
		pairs = append(pairs, pair{s, m.feeds[sid]})
	}
	m.mu.Unlock()

	for _, p := range pairs {
		if !fn(p.s, p.feed) {
			return
		}
	}
}

// Prune drops live sessions that have settled as anonymous. They can always
// be re-attached from the durable store if a matching record still exists.
func (m *Manager) Prune() int {
	m.mu.Lock()
	var stale []string
	for sid, s := range m.sessions {
		if s.Snapshot().Phase == PhaseAnonymous {
			stale = append(stale, sid)
		}
	}
	m.mu.Unlock()

	for _, sid := range stale {
		m.Remove(sid)
	}
	return len(stale)
}

// Close tears down all live sessions.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.feeds = make(map[string]*notifications.Feed)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
