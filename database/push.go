package database

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SavePushSubscription stores or refreshes a push subscription. Endpoints are
// unique, so re-subscribing from the same browser updates the existing row.
func (d *DB) SavePushSubscription(ctx context.Context, sub *PushSubscription) error {
	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth", "user_agent"}),
		}).
		Create(sub).Error
}

// PushSubscriptionsForUser returns all push subscriptions of a user.
func (d *DB) PushSubscriptionsForUser(ctx context.Context, userID string) ([]PushSubscription, error) {
	var subs []PushSubscription
	if err := d.db.WithContext(ctx).Where("user_id = ?", userID).Find(&subs).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return subs, nil
}

// DeletePushSubscription removes a push subscription by endpoint.
func (d *DB) DeletePushSubscription(ctx context.Context, endpoint string) error {
	return d.db.WithContext(ctx).
		Unscoped().
		Where("endpoint = ?", endpoint).
		Delete(&PushSubscription{}).Error
}
