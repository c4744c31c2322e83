package session

import (
	"context"
	"errors"
	"testing"

	"github.com/grindolympiads/examgate/database"
	"github.com/grindolympiads/examgate/olympiads"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNotifier satisfies the notification backend with canned data.
type fakeNotifier struct {
	items []olympiads.Notification
	err   error
}

func (f *fakeNotifier) Notifications(_ context.Context, _ string) ([]olympiads.Notification, error) {
	return f.items, f.err
}

func (f *fakeNotifier) MarkNotificationRead(_ context.Context, _, _ string) error {
	return nil
}

func newTestManager(t *testing.T, backend Backend, notifier *fakeNotifier) (*Manager, *database.DB) {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	if notifier == nil {
		notifier = &fakeNotifier{}
	}
	m := NewManager(backend, notifier, db)
	t.Cleanup(m.Close)
	return m, db
}

func TestAttachWithoutRecordYieldsNoSession(t *testing.T) {
	m, _ := newTestManager(t, &fakeBackend{}, nil)

	s, err := m.Attach(context.Background(), "unknown-sid")
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = m.Attach(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestAttachResumesFromDurableToken(t *testing.T) {
	backend := &fakeBackend{
		loginResult: &olympiads.LoginResult{Token: "tok-1", User: *adminUser()},
		profile:     adminUser(),
	}
	m, db := newTestManager(t, backend, nil)

	s := m.Create()
	require.NoError(t, s.Login(context.Background(), "assertion"))
	s.ToggleAdminMode()
	sid := s.ID()

	// Simulate a process restart: only the durable record survives.
	m.Remove(sid)

	resumed, err := m.Attach(context.Background(), sid)
	require.NoError(t, err)
	require.NotNil(t, resumed)

	state := resumed.Snapshot()
	assert.True(t, state.IsLoggedIn)
	assert.True(t, state.AdminMode)

	record, err := db.GetSession(context.Background(), sid)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "tok-1", record.Token)
}

func TestAttachReturnsLiveSession(t *testing.T) {
	m, _ := newTestManager(t, &fakeBackend{}, nil)

	s := m.Create()
	s.BypassLogin(regularUser())

	attached, err := m.Attach(context.Background(), s.ID())
	require.NoError(t, err)
	assert.Same(t, s, attached)
}

func TestManagerLogoutRemovesDurableRecordWithoutLiveSession(t *testing.T) {
	m, db := newTestManager(t, &fakeBackend{}, nil)

	require.NoError(t, db.SaveSession(context.Background(), "sid-1", "u1", "tok-1"))
	m.Logout(context.Background(), "sid-1")

	record, err := db.GetSession(context.Background(), "sid-1")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestManagerLogoutTearsDownLiveSession(t *testing.T) {
	backend := &fakeBackend{
		loginResult: &olympiads.LoginResult{Token: "tok-1", User: *regularUser()},
		profile:     regularUser(),
	}
	m, db := newTestManager(t, backend, nil)

	s := m.Create()
	require.NoError(t, s.Login(context.Background(), "assertion"))
	sid := s.ID()

	m.Logout(context.Background(), sid)

	_, ok := m.Lookup(sid)
	assert.False(t, ok)
	record, err := db.GetSession(context.Background(), sid)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestFeedClearedOnLogout(t *testing.T) {
	backend := &fakeBackend{
		loginResult: &olympiads.LoginResult{Token: "tok-1", User: *regularUser()},
		profile:     regularUser(),
	}
	notifier := &fakeNotifier{items: []olympiads.Notification{
		{ID: "n1", Message: "New exam available"},
	}}
	m, _ := newTestManager(t, backend, notifier)

	s := m.Create()
	require.NoError(t, s.Login(context.Background(), "assertion"))

	feed, ok := m.Feed(s.ID())
	require.True(t, ok)
	_, err := feed.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, feed.Notifications(), 1)

	require.NoError(t, s.Logout(context.Background()))
	assert.Empty(t, feed.Notifications(), "feed re-initializes on logout")

	// Anonymous sessions never fetch, even if the backend would answer.
	fresh, err := feed.Refresh(context.Background())
	require.NoError(t, err)
	assert.Nil(t, fresh)
	assert.Empty(t, feed.Notifications())
}

func TestFeedErrorDoesNotTouchSession(t *testing.T) {
	backend := &fakeBackend{
		loginResult: &olympiads.LoginResult{Token: "tok-1", User: *regularUser()},
		profile:     regularUser(),
	}
	notifier := &fakeNotifier{err: errors.New("backend down")}
	m, _ := newTestManager(t, backend, notifier)

	s := m.Create()
	require.NoError(t, s.Login(context.Background(), "assertion"))

	feed, ok := m.Feed(s.ID())
	require.True(t, ok)
	_, err := feed.Refresh(context.Background())
	require.Error(t, err)

	assert.True(t, s.Snapshot().IsLoggedIn, "a feed failure never invalidates the session")
	token, loggedIn := s.Token()
	assert.True(t, loggedIn)
	assert.Equal(t, "tok-1", token)
}

func TestConcurrentAttachConvergesOnOneSession(t *testing.T) {
	backend := &fakeBackend{profile: regularUser()}
	store := newFakeTokenStore()
	store.records["sid-1"] = &database.SessionRecord{SID: "sid-1", Token: "tok-1"}
	store.getEntered = make(chan struct{}, 2)
	store.getRelease = make(chan struct{})

	m := NewManager(backend, &fakeNotifier{}, store)
	t.Cleanup(m.Close)

	type result struct {
		s   *Session
		err error
	}
	results := make(chan result, 2)
	for range 2 {
		go func() {
			s, err := m.Attach(context.Background(), "sid-1")
			results <- result{s, err}
		}()
	}

	// Both requests miss the live-session lookup and sit in the record load
	// before either installs.
	<-store.getEntered
	<-store.getEntered
	close(store.getRelease)

	first := <-results
	second := <-results
	require.NoError(t, first.err)
	require.NoError(t, second.err)
	require.NotNil(t, first.s)
	assert.Same(t, first.s, second.s, "one sid never yields two live sessions")

	live, ok := m.Lookup("sid-1")
	require.True(t, ok)
	assert.Same(t, first.s, live)
	assert.Equal(t, 1, backend.profileFetches(), "only the installing request resumes")
}

func TestPruneDropsAnonymousSessions(t *testing.T) {
	m, _ := newTestManager(t, &fakeBackend{}, nil)

	anon := m.Create()
	active := m.Create()
	active.BypassLogin(regularUser())

	assert.Equal(t, 1, m.Prune())

	_, ok := m.Lookup(anon.ID())
	assert.False(t, ok)
	_, ok = m.Lookup(active.ID())
	assert.True(t, ok)
}
