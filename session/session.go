// Package session owns the per-visitor authentication and privilege state:
// who is logged in, which bearer token they hold, whether their admin mode is
// armed, and how that state reacts to login, logout, resume and fetch
// failures. It is the only writer of identity state; every other component
// reads immutable snapshots.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/grindolympiads/examgate/database"
	"github.com/grindolympiads/examgate/olympiads"
	"golang.org/x/sync/errgroup"
)

// Phase represents the lifecycle phase of a session.
type Phase string

const (
	PhaseAnonymous      Phase = "anonymous"
	PhaseAuthenticating Phase = "authenticating"
	PhaseAuthenticated  Phase = "authenticated"
)

// ErrClosed is returned when an operation is attempted on a closed session.
var ErrClosed = errors.New("session is closed")

// Backend is the part of the GrindOlympiads client the session store needs.
type Backend interface {
	Login(ctx context.Context, assertion string) (*olympiads.LoginResult, error)
	Revoke(ctx context.Context, token string) error
	UserProfile(ctx context.Context, token string) (*olympiads.User, error)
	UserProgress(ctx context.Context, token string) ([]olympiads.ProgressEntry, error)
}

// TokenStore persists the bearer token (and the armed admin-mode flag)
// between restarts. Implemented by database.DB.
type TokenStore interface {
	SaveSession(ctx context.Context, sid, userID, token string) error
	GetSession(ctx context.Context, sid string) (*database.SessionRecord, error)
	SetAdminMode(ctx context.Context, sid string, adminMode bool) error
	DeleteSession(ctx context.Context, sid string) error
}

// State is an immutable snapshot of a session.
type State struct {
	Phase      Phase
	IsLoggedIn bool
	User       *olympiads.User
	Progress   []olympiads.ProgressEntry
	AdminMode  bool
}

// Session holds the authentication state of a single visitor.
//
// All transitions are serialized by a mutex, but network calls happen outside
// of it. A generation counter guards against interleaved async results: every
// login, resume and logout bumps the generation, and a fetch result is only
// committed if the generation it started under is still current. A logout
// issued while a user-data fetch is in flight therefore always wins,
// regardless of resolution order.
type Session struct {
	id      string
	backend Backend
	tokens  TokenStore

	mu          sync.Mutex
	gen         uint64
	phase       Phase
	token       string
	user        *olympiads.User
	progress    []olympiads.ProgressEntry
	adminMode   bool
	resumeAdmin bool
	closed      bool

	subs    map[int]func(State)
	nextSub int
}

func newSession(id string, backend Backend, tokens TokenStore) *Session {
	return &Session{
		id:      id,
		backend: backend,
		tokens:  tokens,
		phase:   PhaseAnonymous,
		subs:    make(map[int]func(State)),
	}
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Snapshot returns an immutable snapshot of the session state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() State {
	progress := make([]olympiads.ProgressEntry, len(s.progress))
	copy(progress, s.progress)
	return State{
		Phase:      s.phase,
		IsLoggedIn: s.phase == PhaseAuthenticated,
		User:       s.user,
		Progress:   progress,
		AdminMode:  s.adminMode,
	}
}

// Token returns the current bearer token and whether the session is logged
// in. It satisfies the token source contract of the notification feed.
func (s *Session) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.phase == PhaseAuthenticated
}

// Subscribe registers fn to be called after every state transition and
// returns a function that unsubscribes it. Dependent components use this to
// re-initialize when the session transitions to logged-out.
func (s *Session) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// notify calls every subscriber with a fresh snapshot. Must be called
// without holding the mutex.
func (s *Session) notify() {
	s.mu.Lock()
	state := s.snapshotLocked()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

// Login exchanges the provider identity assertion for an application token,
// persists the token, and triggers a full user-data refresh. On failure the
// prior state is left untouched and the error is surfaced to the login
// handler only.
func (s *Session) Login(ctx context.Context, assertion string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.gen++
	gen := s.gen
	s.phase = PhaseAuthenticating
	s.mu.Unlock()

	result, err := s.backend.Login(ctx, assertion)
	if err != nil {
		log.Error("login exchange failed", "sid", s.id, "error", err)
		s.mu.Lock()
		if s.gen == gen {
			s.phase = s.settledPhaseLocked()
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if s.gen != gen || s.closed {
		s.mu.Unlock()
		// Superseded before the token was committed. The token was never
		// used locally, but it is live server-side; revoke it best-effort.
		if err := s.backend.Revoke(ctx, result.Token); err != nil {
			log.Warn("failed to revoke superseded login token", "sid", s.id, "error", err)
		}
		return nil
	}
	s.token = result.Token
	s.mu.Unlock()

	if err := s.tokens.SaveSession(ctx, s.id, result.User.ID, result.Token); err != nil {
		log.Warn("failed to persist session token", "sid", s.id, "error", err)
	}

	// A logout can interleave with the durable save: it deletes the record,
	// then the save lands and re-creates it. Re-check the generation after
	// saving so the record cannot outlive the logout.
	s.mu.Lock()
	superseded := s.gen != gen || s.closed
	s.mu.Unlock()
	if superseded {
		if err := s.tokens.DeleteSession(ctx, s.id); err != nil {
			log.Warn("failed to delete session record", "sid", s.id, "error", err)
		}
		return nil
	}

	return s.fetchUserData(ctx, gen)
}

// Resume restores a session from a durable token. The armed admin-mode flag
// is only re-applied once the fetched profile confirms the user is still an
// admin.
func (s *Session) Resume(ctx context.Context, token string, adminMode bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.gen++
	gen := s.gen
	s.token = token
	s.phase = PhaseAuthenticating
	s.resumeAdmin = adminMode
	s.mu.Unlock()

	return s.fetchUserData(ctx, gen)
}

// BypassLogin installs a synthetic authenticated user without contacting the
// backend. Only reachable when the insecure bypass flag is enabled.
func (s *Session) BypassLogin(user *olympiads.User) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.token = "bypass-" + s.id
	s.user = user
	s.progress = nil
	s.adminMode = false
	s.phase = PhaseAuthenticated
	s.mu.Unlock()
	s.notify()
}

// fetchUserData retrieves profile and progress and commits them if the
// session generation is unchanged. Any failure invalidates the entire
// session: a token that cannot load its own profile is treated as not
// authenticated.
func (s *Session) fetchUserData(ctx context.Context, gen uint64) error {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	if token == "" {
		return nil
	}

	var (
		user     *olympiads.User
		progress []olympiads.ProgressEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.backend.UserProfile(gctx, token)
		return err
	})
	g.Go(func() error {
		var err error
		progress, err = s.backend.UserProgress(gctx, token)
		return err
	})
	err := g.Wait()

	s.mu.Lock()
	if s.gen != gen || s.closed {
		// Superseded by a logout or newer login; the late result must not
		// overwrite the later-intended state.
		s.mu.Unlock()
		return nil
	}

	if err != nil {
		log.Error("failed to fetch user data, invalidating session", "sid", s.id, "error", err)
		s.invalidateLocked()
		s.mu.Unlock()
		s.notify()
		if derr := s.tokens.DeleteSession(ctx, s.id); derr != nil {
			log.Warn("failed to delete session record", "sid", s.id, "error", derr)
		}
		return err
	}

	s.user = user
	s.progress = progress
	s.phase = PhaseAuthenticated
	if s.resumeAdmin {
		s.adminMode = user.IsAdmin
		s.resumeAdmin = false
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// Logout invalidates the server-side session best-effort and unconditionally
// clears all client-held state, so the UI can never get stuck showing a
// privileged view after a failed revoke call. Calling Logout on an anonymous
// session is a no-op.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.phase == PhaseAnonymous && s.token == "" {
		s.mu.Unlock()
		return nil
	}
	// Bump the generation first so in-flight fetches can no longer commit.
	s.gen++
	token := s.token
	s.mu.Unlock()

	if token != "" {
		if err := s.backend.Revoke(ctx, token); err != nil {
			log.Warn("server-side session revoke failed, clearing local state anyway", "sid", s.id, "error", err)
		}
	}

	s.mu.Lock()
	s.invalidateLocked()
	s.mu.Unlock()
	s.notify()

	if err := s.tokens.DeleteSession(ctx, s.id); err != nil {
		log.Warn("failed to delete session record", "sid", s.id, "error", err)
	}
	return nil
}

// invalidateLocked resets the session to anonymous. Admin mode is forced off
// in the same critical section as the logged-out transition.
func (s *Session) invalidateLocked() {
	s.token = ""
	s.user = nil
	s.progress = nil
	s.adminMode = false
	s.resumeAdmin = false
	s.phase = PhaseAnonymous
}

// ToggleAdminMode flips the armed admin-mode flag. The toggle is a silent
// no-op unless the session is authenticated as an admin; admin mode can
// therefore never be true while logged out or for a non-admin user.
func (s *Session) ToggleAdminMode() bool {
	s.mu.Lock()
	if s.closed || s.phase != PhaseAuthenticated || s.user == nil || !s.user.IsAdmin {
		adminMode := s.adminMode
		s.mu.Unlock()
		return adminMode
	}
	s.adminMode = !s.adminMode
	adminMode := s.adminMode
	s.mu.Unlock()
	s.notify()

	if err := s.tokens.SetAdminMode(context.Background(), s.id, adminMode); err != nil {
		log.Warn("failed to persist admin mode", "sid", s.id, "error", err)
	}
	return adminMode
}

// Close marks the session as torn down. In-flight results arriving after
// Close are ignored; no state is mutated after teardown.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.gen++
	s.subs = make(map[int]func(State))
}

func (s *Session) settledPhaseLocked() Phase {
	if s.user != nil && s.token != "" {
		return PhaseAuthenticated
	}
	return PhaseAnonymous
}
