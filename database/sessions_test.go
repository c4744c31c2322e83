package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSaveAndGetSession(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveSession(ctx, "sid-1", "u1", "tok-1"))

	record, err := db.GetSession(ctx, "sid-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "u1", record.UserID)
	assert.Equal(t, "tok-1", record.Token)
	assert.False(t, record.AdminMode)
}

func TestSaveSessionReplacesExistingRecord(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveSession(ctx, "sid-1", "u1", "tok-1"))
	require.NoError(t, db.SaveSession(ctx, "sid-1", "u1", "tok-2"))

	record, err := db.GetSession(ctx, "sid-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "tok-2", record.Token)
}

func TestGetSessionReturnsNilForUnknownSID(t *testing.T) {
	db := newTestDB(t)

	record, err := db.GetSession(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestSetAdminMode(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveSession(ctx, "sid-1", "u1", "tok-1"))
	require.NoError(t, db.SetAdminMode(ctx, "sid-1", true))

	record, err := db.GetSession(ctx, "sid-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.True(t, record.AdminMode)
}

func TestDeleteSession(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveSession(ctx, "sid-1", "u1", "tok-1"))
	require.NoError(t, db.DeleteSession(ctx, "sid-1"))

	record, err := db.GetSession(ctx, "sid-1")
	require.NoError(t, err)
	assert.Nil(t, record)

	// Deleting again is not an error.
	require.NoError(t, db.DeleteSession(ctx, "sid-1"))
}

func TestDeleteAllSessions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveSession(ctx, "sid-1", "u1", "tok-1"))
	require.NoError(t, db.SaveSession(ctx, "sid-2", "u2", "tok-2"))

	removed, err := db.DeleteAllSessions(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)
}

func TestPruneSessions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveSession(ctx, "stale", "u1", "tok-1"))
	require.NoError(t, db.db.Model(&SessionRecord{}).
		Where("sid = ?", "stale").
		Update("last_seen", time.Now().Add(-48*time.Hour)).Error)
	require.NoError(t, db.SaveSession(ctx, "fresh", "u2", "tok-2"))

	removed, err := db.PruneSessions(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	record, err := db.GetSession(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, record)
}

func TestPushSubscriptions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	sub := &PushSubscription{
		UserID:   "u1",
		Endpoint: "https://push.example.com/ep1",
		P256dh:   "key",
		Auth:     "auth",
	}
	require.NoError(t, db.SavePushSubscription(ctx, sub))

	// Re-subscribing the same endpoint replaces the keys instead of failing.
	require.NoError(t, db.SavePushSubscription(ctx, &PushSubscription{
		UserID:   "u1",
		Endpoint: "https://push.example.com/ep1",
		P256dh:   "rotated",
		Auth:     "auth",
	}))

	subs, err := db.PushSubscriptionsForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "rotated", subs[0].P256dh)

	require.NoError(t, db.DeletePushSubscription(ctx, sub.Endpoint))
	subs, err = db.PushSubscriptionsForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, subs)
}
