// Package api hosts the HTTP surface of examgate: session endpoints for the
// SPA, auth flow, notification feed, exam listing and the admin surface.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/grindolympiads/examgate/api/auth"
	apicache "github.com/grindolympiads/examgate/api/cache"
	"github.com/grindolympiads/examgate/api/handler"
	"github.com/grindolympiads/examgate/cache"
	"github.com/grindolympiads/examgate/config"
	"github.com/grindolympiads/examgate/notify/webpush"
	"github.com/grindolympiads/examgate/olympiads"
	"github.com/grindolympiads/examgate/session"
)

// Server is the examgate HTTP server.
type Server struct {
	cfg        *config.Config
	ginEngine  *gin.Engine
	httpServer *http.Server
	manager    *session.Manager
	guard      *auth.Guard
	oidc       *auth.OIDCProvider
	handler    *handler.Handler
}

// New creates the HTTP server and wires the full route table.
func New(ctx context.Context, cfg *config.Config, client *olympiads.Client, manager *session.Manager, avatarCache *apicache.AvatarCache, push *webpush.Client) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	examCache := cache.NewExamCache(cfg.Cache)

	s := &Server{
		cfg:       cfg,
		ginEngine: gin.New(),
		manager:   manager,
		guard:     auth.NewGuard(manager),
		handler:   handler.New(cfg, client, manager, examCache, avatarCache, push),
	}

	if cfg.Auth.OIDC != nil && cfg.Auth.OIDC.Enabled {
		oidc, err := auth.NewOIDCProvider(ctx, cfg.Auth.OIDC, manager)
		if err != nil {
			return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
		}
		s.oidc = oidc
	}

	s.setupRoutes()
	return s, nil
}

func (s *Server) setupSession() {
	store := cookie.NewStore([]byte(s.cfg.SessionKey))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   s.cfg.SessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.ginEngine.Use(sessions.Sessions("examgate_session", store))
}

func (s *Server) setupRoutes() {
	s.ginEngine.Use(gin.Recovery())
	s.ginEngine.Use(gzip.Gzip(gzip.DefaultCompression))
	s.setupSession()

	// Every route sees the resolved session; the guards below decide access.
	s.ginEngine.Use(s.guard.WithSession())

	s.ginEngine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if s.oidc != nil {
		s.ginEngine.GET("/auth/login", s.oidc.Login)
		s.ginEngine.GET("/auth/callback", s.oidc.Callback)
	}
	if s.cfg.Auth.AllowInsecureBypass {
		s.ginEngine.GET("/auth/bypass", auth.BypassHandler(s.manager))
	}
	s.ginEngine.GET("/auth/logout", auth.LogoutHandler(s.manager))

	// The session surface is public so the SPA can render the anonymous
	// shell from the same endpoint.
	s.ginEngine.GET("/api/me", s.handler.Me)
	s.ginEngine.GET("/api/webpush/public-key", s.handler.WebPushPublicKey)

	protected := s.ginEngine.Group("/api")
	protected.Use(s.guard.RequireSession())
	protected.GET("/progress", s.handler.Progress)
	protected.GET("/notifications", s.handler.Notifications)
	protected.POST("/notifications/:id/read", s.handler.MarkNotificationRead)
	protected.POST("/admin-mode/toggle", s.handler.ToggleAdminMode)
	protected.GET("/exams", s.handler.Exams)
	protected.GET("/exams/:id", s.handler.Exam)
	protected.POST("/answers", s.handler.SubmitAnswer)
	protected.GET("/avatar", s.handler.Avatar)
	protected.POST("/webpush/subscribe", s.handler.WebPushSubscribe)
	protected.POST("/webpush/unsubscribe", s.handler.WebPushUnsubscribe)

	admin := s.ginEngine.Group("/api/admin")
	admin.Use(s.guard.RequireSession(), s.guard.RequireAdmin())
	admin.GET("/users", s.handler.AdminUsers)
	admin.PUT("/problems/:id", s.handler.UpdateProblem)
	admin.GET("/status", s.handler.SystemStatus)
}

// Run starts the HTTP server and blocks until the context is canceled or the
// server fails.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s.ginEngine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.httpServer.Shutdown(context.Background())
	}
}

// Engine exposes the gin engine for tests.
func (s *Server) Engine() *gin.Engine {
	return s.ginEngine
}
