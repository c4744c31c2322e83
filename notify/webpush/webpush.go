// Package webpush delivers browser push notifications for newly arrived
// exam-platform notifications.
package webpush

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/charmbracelet/log"
	"github.com/grindolympiads/examgate/config"
	"github.com/grindolympiads/examgate/database"
	"github.com/grindolympiads/examgate/olympiads"
)

// Client sends web push notifications to subscribed browsers. Subscriptions
// are stored per user in the database.
type Client struct {
	cfg *config.WebPushConfig
	db  *database.DB
}

// New creates a new webpush client.
func New(cfg *config.WebPushConfig, db *database.DB) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	if cfg.PublicKey == "" || cfg.PrivateKey == "" {
		return nil, fmt.Errorf("VAPID keys are required for webpush")
	}
	return &Client{cfg: cfg, db: db}, nil
}

// PublicKey returns the VAPID public key for client-side subscription.
func (c *Client) PublicKey() string {
	return c.cfg.PublicKey
}

// Subscribe stores a push subscription for a user.
func (c *Client) Subscribe(ctx context.Context, sub *database.PushSubscription) error {
	return c.db.SavePushSubscription(ctx, sub)
}

// Unsubscribe removes a push subscription by endpoint.
func (c *Client) Unsubscribe(ctx context.Context, endpoint string) error {
	return c.db.DeletePushSubscription(ctx, endpoint)
}

type pushPayload struct {
	Title     string `json:"title"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Tag       string `json:"tag"`
}

// NotifyUser pushes a notification to every subscribed browser of the user.
// Expired subscriptions are removed as they are discovered.
func (c *Client) NotifyUser(ctx context.Context, userID string, n olympiads.Notification) error {
	subs, err := c.db.PushSubscriptionsForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load push subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	payload, err := json.Marshal(pushPayload{
		Title:     "GrindOlympiads",
		Message:   n.Message,
		Timestamp: n.Timestamp,
		Tag:       n.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	options := &webpush.Options{
		Subscriber:      c.cfg.VAPIDEmail,
		VAPIDPublicKey:  c.cfg.PublicKey,
		VAPIDPrivateKey: c.cfg.PrivateKey,
		TTL:             c.cfg.TTL,
	}

	for _, sub := range subs {
		resp, err := webpush.SendNotification(payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}, options)
		if err != nil {
			log.Warn("failed to send push notification", "user_id", userID, "error", err)
			continue
		}
		if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
			log.Debug("removing expired push subscription", "user_id", userID, "endpoint", sub.Endpoint)
			if err := c.db.DeletePushSubscription(ctx, sub.Endpoint); err != nil {
				log.Warn("failed to remove expired push subscription", "error", err)
			}
		}
		resp.Body.Close()
	}
	return nil
}

// GenerateVAPIDKeys generates a new VAPID key pair.
func GenerateVAPIDKeys() (privateKey, publicKey string, err error) {
	return webpush.GenerateVAPIDKeys()
}
