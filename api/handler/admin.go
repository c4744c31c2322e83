package handler

import (
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/grindolympiads/examgate/api/models"
	"github.com/grindolympiads/examgate/notifications"
	"github.com/grindolympiads/examgate/olympiads"
	"github.com/grindolympiads/examgate/session"
	"github.com/samber/lo"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// AdminUsers returns all registered users. Only reachable with armed admin
// mode.
func (h *Handler) AdminUsers(c *gin.Context) {
	ctx := c.Request.Context()
	s := session.MustFromContext(ctx)
	token, ok := s.Token()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	users, err := h.client.AdminUsers(ctx, token)
	if err != nil {
		respondBackendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users": lo.Map(users, func(u olympiads.User, _ int) *models.User {
			return models.UserFromBackend(&u, h.avatarURL(&u))
		}),
	})
}

// UpdateProblem forwards a problem edit to the backend and invalidates the
// exam listing cache so the edit is visible immediately.
func (h *Handler) UpdateProblem(c *gin.Context) {
	ctx := c.Request.Context()
	s := session.MustFromContext(ctx)
	token, ok := s.Token()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var problem olympiads.Problem
	if err := c.ShouldBindJSON(&problem); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	problem.ID = c.Param("id")

	if err := h.client.UpdateProblem(ctx, token, &problem); err != nil {
		respondBackendError(c, err)
		return
	}

	h.examCache.Invalidate(ctx)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SystemStatus reports host metrics for the admin dashboard.
func (h *Handler) SystemStatus(c *gin.Context) {
	ctx := c.Request.Context()

	status := gin.H{}

	if info, err := host.InfoWithContext(ctx); err == nil {
		status["hostname"] = info.Hostname
		status["os"] = info.OS
		status["platform"] = info.Platform
		status["uptime"] = humanize.Time(time.Now().Add(-time.Duration(info.Uptime) * time.Second))
	}

	if percentages, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percentages) > 0 {
		status["cpuPercent"] = percentages[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		status["memoryUsed"] = humanize.Bytes(vm.Used)
		status["memoryTotal"] = humanize.Bytes(vm.Total)
		status["memoryPercent"] = vm.UsedPercent
	}

	liveSessions := 0
	h.manager.Range(func(s *session.Session, _ *notifications.Feed) bool {
		if s.Snapshot().IsLoggedIn {
			liveSessions++
		}
		return true
	})
	status["liveSessions"] = liveSessions

	c.JSON(http.StatusOK, status)
}
