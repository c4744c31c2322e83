package auth

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/grindolympiads/examgate/session"
)

// Guard derives route protection from the broadcast session state. Both
// variants re-evaluate on every request, so a privilege change (admin mode
// toggled, session invalidated) takes effect immediately on already-mounted
// routes.
type Guard struct {
	manager *session.Manager
}

// NewGuard creates a guard over the given session manager.
func NewGuard(manager *session.Manager) *Guard {
	return &Guard{manager: manager}
}

// WithSession resolves the visitor's session from the sid cookie, resuming it
// from the durable token store when needed, and injects it into the request
// context. It never rejects; downstream guards decide.
func (g *Guard) WithSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		cookieSession := sessions.Default(c)
		sid, _ := cookieSession.Get(sessionKeySID).(string)

		s, err := g.manager.Attach(c.Request.Context(), sid)
		if err != nil || s == nil {
			c.Next()
			return
		}

		c.Request = c.Request.WithContext(session.NewContext(c.Request.Context(), s))
		c.Next()
	}
}

// RequireSession rejects requests without a logged-in session. API requests
// get a 401, everything else is sent back to the home route without the
// protected handler ever running.
func (g *Guard) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := session.FromContext(c.Request.Context())
		if !ok || !s.Snapshot().IsLoggedIn {
			g.reject(c, http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects requests unless the user is an admin AND admin mode is
// armed. Being an admin account is necessary but not sufficient.
func (g *Guard) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := session.FromContext(c.Request.Context())
		if !ok {
			g.reject(c, http.StatusUnauthorized)
			return
		}
		state := s.Snapshot()
		if !state.IsLoggedIn || state.User == nil || !state.User.IsAdmin || !state.AdminMode {
			g.reject(c, http.StatusForbidden)
			return
		}
		c.Next()
	}
}

func (g *Guard) reject(c *gin.Context, status int) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		msg := "unauthorized"
		if status == http.StatusForbidden {
			msg = "forbidden"
		}
		c.JSON(status, gin.H{"error": msg})
		c.Abort()
		return
	}
	c.Redirect(http.StatusFound, "/")
	c.Abort()
}
