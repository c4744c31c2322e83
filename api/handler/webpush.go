package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/grindolympiads/examgate/database"
	"github.com/grindolympiads/examgate/session"
)

type pushSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys" binding:"required"`
}

// WebPushPublicKey returns the VAPID public key the browser needs to
// subscribe, or 404 when webpush is disabled.
func (h *Handler) WebPushPublicKey(c *gin.Context) {
	if h.push == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "webpush is disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": h.push.PublicKey()})
}

// WebPushSubscribe stores the browser's push subscription for the logged-in
// user.
func (h *Handler) WebPushSubscribe(c *gin.Context) {
	if h.push == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "webpush is disabled"})
		return
	}

	s := session.MustFromContext(c.Request.Context())
	state := s.Snapshot()
	if state.User == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req pushSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err := h.push.Subscribe(c.Request.Context(), &database.PushSubscription{
		UserID:    state.User.ID,
		Endpoint:  req.Endpoint,
		P256dh:    req.Keys.P256dh,
		Auth:      req.Keys.Auth,
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store subscription"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// WebPushUnsubscribe removes a push subscription by endpoint.
func (h *Handler) WebPushUnsubscribe(c *gin.Context) {
	if h.push == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "webpush is disabled"})
		return
	}

	var req struct {
		Endpoint string `json:"endpoint" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.push.Unsubscribe(c.Request.Context(), req.Endpoint); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove subscription"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
