package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/grindolympiads/examgate/api/models"
	"github.com/grindolympiads/examgate/session"
)

// Notifications returns the visitor's notification feed. The feed is
// refreshed on every request; a fetch failure surfaces as an error string next
// to the last known notifications instead of failing the request.
func (h *Handler) Notifications(c *gin.Context) {
	ctx := c.Request.Context()
	s := session.MustFromContext(ctx)

	feed, ok := h.manager.Feed(s.ID())
	if !ok {
		c.JSON(http.StatusOK, gin.H{
			"notifications": []models.Notification{},
			"unreadCount":   0,
		})
		return
	}

	// The error is already captured in the feed's error string.
	_, _ = feed.Refresh(ctx)

	resp := gin.H{
		"notifications": models.NotificationsFromBackend(feed.Notifications()),
		"unreadCount":   feed.Unread(),
	}
	if msg := feed.Err(); msg != "" {
		resp["error"] = msg
	}
	c.JSON(http.StatusOK, resp)
}

// MarkNotificationRead marks a single notification as read. The local feed is
// only updated after the backend confirms.
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	ctx := c.Request.Context()
	s := session.MustFromContext(ctx)

	feed, ok := h.manager.Feed(s.ID())
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no notification feed"})
		return
	}

	if err := feed.MarkRead(ctx, c.Param("id")); err != nil {
		respondBackendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
