package database

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SaveSession stores or replaces the durable record for the given session ID.
func (d *DB) SaveSession(ctx context.Context, sid, userID, token string) error {
	record := SessionRecord{
		SID:      sid,
		UserID:   userID,
		Token:    token,
		LastSeen: time.Now(),
	}
	err := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sid"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "token", "last_seen", "admin_mode"}),
		}).
		Create(&record).Error
	if err != nil {
		log.Error("failed to save session record", "sid", sid, "error", err)
	}
	return err
}

// GetSession returns the durable record for the given session ID, or nil if
// there is none.
func (d *DB) GetSession(ctx context.Context, sid string) (*SessionRecord, error) {
	var record SessionRecord
	if err := d.db.WithContext(ctx).Where("sid = ?", sid).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		log.Error("failed to get session record", "sid", sid, "error", err)
		return nil, err
	}
	return &record, nil
}

// SetAdminMode persists the armed admin-mode flag of a session.
func (d *DB) SetAdminMode(ctx context.Context, sid string, adminMode bool) error {
	return d.db.WithContext(ctx).
		Model(&SessionRecord{}).
		Where("sid = ?", sid).
		Update("admin_mode", adminMode).Error
}

// TouchSession updates the last-seen timestamp of a session.
func (d *DB) TouchSession(ctx context.Context, sid string) error {
	return d.db.WithContext(ctx).
		Model(&SessionRecord{}).
		Where("sid = ?", sid).
		Update("last_seen", time.Now()).Error
}

// DeleteSession removes the durable record for the given session ID.
// Deleting a record that doesn't exist is not an error.
func (d *DB) DeleteSession(ctx context.Context, sid string) error {
	return d.db.WithContext(ctx).
		Unscoped().
		Where("sid = ?", sid).
		Delete(&SessionRecord{}).Error
}

// DeleteAllSessions removes every durable session record.
func (d *DB) DeleteAllSessions(ctx context.Context) (int64, error) {
	res := d.db.WithContext(ctx).Unscoped().Where("1 = 1").Delete(&SessionRecord{})
	return res.RowsAffected, res.Error
}

// PruneSessions removes records not seen within maxAge and returns how many
// were removed.
func (d *DB) PruneSessions(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	res := d.db.WithContext(ctx).
		Unscoped().
		Where("last_seen < ?", cutoff).
		Delete(&SessionRecord{})
	return res.RowsAffected, res.Error
}
