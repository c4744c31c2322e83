// Package handler contains the HTTP handlers of the examgate API surface.
package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	apicache "github.com/grindolympiads/examgate/api/cache"
	"github.com/grindolympiads/examgate/api/models"
	"github.com/grindolympiads/examgate/cache"
	"github.com/grindolympiads/examgate/config"
	"github.com/grindolympiads/examgate/gravatar"
	"github.com/grindolympiads/examgate/notify/webpush"
	"github.com/grindolympiads/examgate/olympiads"
	"github.com/grindolympiads/examgate/session"
	"github.com/samber/lo"
)

// Handler bundles the dependencies of the API handlers.
type Handler struct {
	cfg       *config.Config
	client    *olympiads.Client
	manager   *session.Manager
	examCache *cache.ExamCache
	avatars   *apicache.AvatarCache
	push      *webpush.Client
}

// New creates a new API handler.
func New(cfg *config.Config, client *olympiads.Client, manager *session.Manager, examCache *cache.ExamCache, avatars *apicache.AvatarCache, push *webpush.Client) *Handler {
	return &Handler{
		cfg:       cfg,
		client:    client,
		manager:   manager,
		examCache: examCache,
		avatars:   avatars,
		push:      push,
	}
}

// avatarURL resolves the avatar shown for a user: the cached proxy URL when
// the profile carries one, a gravatar fallback otherwise.
func (h *Handler) avatarURL(user *olympiads.User) string {
	if user == nil {
		return ""
	}
	if user.Avatar != "" {
		return "/api/avatar?url=" + url.QueryEscape(user.Avatar)
	}
	return gravatar.URL(user.Email, h.cfg.Gravatar)
}

// Me returns the merged session surface: identity, privilege and progress.
// Reachable without a session so the SPA can render the anonymous shell from
// the same endpoint.
func (h *Handler) Me(c *gin.Context) {
	s, ok := session.FromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusOK, models.SessionInfo{Progress: []models.Progress{}})
		return
	}
	state := s.Snapshot()
	c.JSON(http.StatusOK, models.SessionInfoFromState(state, h.avatarURL(state.User)))
}

// ToggleAdminMode flips the armed admin-mode flag and returns the resulting
// value. For non-admins the flag simply stays false.
func (h *Handler) ToggleAdminMode(c *gin.Context) {
	s := session.MustFromContext(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"isAdminMode": s.ToggleAdminMode()})
}

// Progress returns the completed exam records of the logged-in user, straight
// from the session snapshot.
func (h *Handler) Progress(c *gin.Context) {
	s := session.MustFromContext(c.Request.Context())
	c.JSON(http.StatusOK, models.ProgressFromBackend(s.Snapshot().Progress))
}

// Exams returns the exam listing, cached across sessions. Optional
// competition and search query parameters filter the listing server-side.
func (h *Handler) Exams(c *gin.Context) {
	ctx := c.Request.Context()
	s := session.MustFromContext(ctx)
	token, ok := s.Token()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	exams, cached := h.examCache.Get(ctx)
	if !cached {
		var err error
		exams, err = h.client.Exams(ctx, token)
		if err != nil {
			respondBackendError(c, err)
			return
		}
		h.examCache.Set(ctx, exams)
	}

	if competition := c.Query("competition"); competition != "" {
		exams = lo.Filter(exams, func(e olympiads.Exam, _ int) bool {
			return strings.EqualFold(e.Competition, competition)
		})
	}
	if search := strings.ToLower(c.Query("search")); search != "" {
		exams = lo.Filter(exams, func(e olympiads.Exam, _ int) bool {
			return strings.Contains(strings.ToLower(e.Competition), search) ||
				strings.Contains(strings.ToLower(e.Exam), search) ||
				strings.Contains(e.Year, search)
		})
	}

	c.JSON(http.StatusOK, gin.H{"tests": models.ExamsFromBackend(exams)})
}

// Exam returns a single exam with its problems.
func (h *Handler) Exam(c *gin.Context) {
	ctx := c.Request.Context()
	s := session.MustFromContext(ctx)
	token, ok := s.Token()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	detail, err := h.client.Exam(ctx, token, c.Param("id"))
	if err != nil {
		respondBackendError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// SubmitAnswer forwards an answer submission to the backend.
func (h *Handler) SubmitAnswer(c *gin.Context) {
	ctx := c.Request.Context()
	s := session.MustFromContext(ctx)
	token, ok := s.Token()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var submission olympiads.AnswerSubmission
	if err := c.ShouldBindJSON(&submission); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.client.SubmitAnswer(ctx, token, &submission); err != nil {
		respondBackendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// respondBackendError maps a backend failure to an API response, passing the
// backend's status and message through when available.
func respondBackendError(c *gin.Context, err error) {
	var apiErr *olympiads.APIError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.StatusCode, gin.H{"error": apiErr.Message})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": "backend unavailable"})
}
