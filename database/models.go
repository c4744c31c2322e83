package database

import (
	"time"

	"gorm.io/gorm"
)

// SessionRecord is the durable part of a visitor session. The bearer token is
// the only identity state that survives a restart; user data and privileges
// are always re-derived from the backend so stale privilege data is never
// served from disk. The armed admin-mode flag is kept with the token and
// removed together with it on logout.
type SessionRecord struct {
	gorm.Model
	SID       string `gorm:"column:sid;uniqueIndex;not null"`
	UserID    string `gorm:"index"`
	Token     string `gorm:"not null"`
	AdminMode bool
	LastSeen  time.Time
}

// PushSubscription is a browser push subscription of a user.
type PushSubscription struct {
	gorm.Model
	UserID    string `gorm:"index;not null"`
	Endpoint  string `gorm:"uniqueIndex;not null"`
	P256dh    string `gorm:"not null"`
	Auth      string `gorm:"not null"`
	UserAgent string
}
