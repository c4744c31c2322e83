package auth

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/grindolympiads/examgate/olympiads"
	"github.com/grindolympiads/examgate/session"
)

const (
	sessionKeySID   = "sid"
	sessionKeyState = "oauth_state"
)

// Login starts the OAuth flow by redirecting to the provider.
func (p *OIDCProvider) Login(c *gin.Context) {
	state := uuid.New().String()
	cookieSession := sessions.Default(c)
	cookieSession.Set(sessionKeyState, state)
	if err := cookieSession.Save(); err != nil {
		c.AbortWithError(http.StatusInternalServerError, err) //nolint:errcheck
		return
	}
	c.Redirect(http.StatusFound, p.config.AuthCodeURL(state))
}

// Callback handles the provider redirect: it verifies the returned identity
// assertion and hands it to the session store, which exchanges it for an
// application token and loads the user. A failed exchange leaves the visitor
// anonymous and surfaces the error to the login page only.
func (p *OIDCProvider) Callback(c *gin.Context) {
	ctx := c.Request.Context()
	cookieSession := sessions.Default(c)

	state, _ := cookieSession.Get(sessionKeyState).(string)
	cookieSession.Delete(sessionKeyState)
	if state == "" || c.Query("state") != state {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	oauth2Token, err := p.config.Exchange(ctx, c.Query("code"))
	if err != nil {
		c.AbortWithError(http.StatusUnauthorized, err) //nolint:errcheck
		return
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	if _, err := p.verifier.Verify(ctx, rawIDToken); err != nil {
		c.AbortWithError(http.StatusUnauthorized, err) //nolint:errcheck
		return
	}

	s := p.manager.Create()
	if err := s.Login(ctx, rawIDToken); err != nil {
		// The session store already logged the failure and kept the prior
		// state; the visitor stays anonymous.
		p.manager.Remove(s.ID())
		c.Redirect(http.StatusFound, "/login?error=login_failed")
		return
	}

	cookieSession.Set(sessionKeySID, s.ID())
	if err := cookieSession.Save(); err != nil {
		c.AbortWithError(http.StatusInternalServerError, err) //nolint:errcheck
		return
	}
	c.Redirect(http.StatusFound, "/")
}

// BypassHandler installs a synthetic logged-in user. Dev-only, gated by the
// allow_insecure_bypass config flag.
func BypassHandler(manager *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := manager.Create()
		s.BypassLogin(&olympiads.User{
			ID:     "math1434",
			Name:   "Math User",
			Email:  "math1434@example.com",
			Points: 1434,
			Role:   "User",
		})

		cookieSession := sessions.Default(c)
		cookieSession.Set(sessionKeySID, s.ID())
		if err := cookieSession.Save(); err != nil {
			c.AbortWithError(http.StatusInternalServerError, err) //nolint:errcheck
			return
		}
		log.Warn("insecure bypass login used", "sid", s.ID())
		c.Redirect(http.StatusFound, "/")
	}
}

// LogoutHandler revokes the server-side session best-effort and
// unconditionally clears the local session and its cookie.
func LogoutHandler(manager *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookieSession := sessions.Default(c)
		if sid, ok := cookieSession.Get(sessionKeySID).(string); ok && sid != "" {
			manager.Logout(c.Request.Context(), sid)
		}

		cookieSession.Delete(sessionKeySID)
		if err := cookieSession.Save(); err != nil {
			log.Warn("failed to clear session cookie", "error", err)
		}
		c.Redirect(http.StatusFound, "/")
	}
}
