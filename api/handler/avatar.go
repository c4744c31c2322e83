package handler

import (
	"net/http"
	"strconv"

	"github.com/ccoveille/go-safecast"
	"github.com/gin-gonic/gin"
)

// Avatar proxies a user avatar through the on-disk cache, scaling it down on
// first access. The size query parameter is clamped by the cache.
func (h *Handler) Avatar(c *gin.Context) {
	avatarURL := c.Query("url")
	if avatarURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing url parameter"})
		return
	}

	size := 0
	if raw := c.Query("size"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid size parameter"})
			return
		}
		size, err = safecast.ToInt(parsed)
		if err != nil || size < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid size parameter"})
			return
		}
	}

	// Serve writes the error response itself on failure.
	_ = h.avatars.Serve(avatarURL, size, c.Writer, c.Request)
}
