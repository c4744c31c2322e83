package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	apicache "github.com/grindolympiads/examgate/api/cache"
	"github.com/grindolympiads/examgate/cache"
	"github.com/grindolympiads/examgate/config"
	"github.com/grindolympiads/examgate/database"
	"github.com/grindolympiads/examgate/notifications"
	"github.com/grindolympiads/examgate/olympiads"
	"github.com/grindolympiads/examgate/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct{}

func (stubBackend) Login(context.Context, string) (*olympiads.LoginResult, error) {
	return nil, errors.New("not implemented")
}
func (stubBackend) Revoke(context.Context, string) error { return nil }
func (stubBackend) UserProfile(context.Context, string) (*olympiads.User, error) {
	return nil, errors.New("not implemented")
}
func (stubBackend) UserProgress(context.Context, string) ([]olympiads.ProgressEntry, error) {
	return nil, errors.New("not implemented")
}

type stubNotifier struct {
	items []olympiads.Notification
	err   error
}

func (s *stubNotifier) Notifications(context.Context, string) ([]olympiads.Notification, error) {
	return s.items, s.err
}
func (s *stubNotifier) MarkNotificationRead(context.Context, string, string) error { return nil }

type testEnv struct {
	handler *Handler
	manager *session.Manager
}

func newTestEnv(t *testing.T, notifier *stubNotifier) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	if notifier == nil {
		notifier = &stubNotifier{}
	}
	manager := session.NewManager(stubBackend{}, notifier, db)
	t.Cleanup(manager.Close)

	cfg := &config.Config{
		Gravatar: &config.GravatarConfig{Enabled: true, DefaultImage: "robohash", Rating: "g", Size: 80},
	}
	h := New(cfg, nil, manager, cache.NewExamCache(nil), apicache.NewAvatarCache(t.TempDir()), nil)
	return &testEnv{handler: h, manager: manager}
}

// serve runs a handler with the given session injected into the request
// context, or without one when s is nil.
func serve(h gin.HandlerFunc, s *session.Session, method, target string) *httptest.ResponseRecorder {
	r := gin.New()
	r.Handle(method, "/x", func(c *gin.Context) {
		if s != nil {
			c.Request = c.Request.WithContext(session.NewContext(c.Request.Context(), s))
		}
		h(c)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestMeAnonymous(t *testing.T) {
	env := newTestEnv(t, nil)

	w := serve(env.handler.Me, nil, http.MethodGet, "/x")
	require.Equal(t, http.StatusOK, w.Code)

	var info struct {
		IsLoggedIn bool            `json:"isLoggedIn"`
		AdminMode  bool            `json:"isAdminMode"`
		User       json.RawMessage `json:"user"`
		Progress   []any           `json:"userProgress"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.False(t, info.IsLoggedIn)
	assert.False(t, info.AdminMode)
	assert.Equal(t, "null", string(info.User))
	assert.NotNil(t, info.Progress, "progress serializes as [] instead of null")
}

func TestMeLoggedInWithGravatarFallback(t *testing.T) {
	env := newTestEnv(t, nil)
	s := env.manager.Create()
	s.BypassLogin(&olympiads.User{ID: "u1", Name: "Student", Email: "student@example.com"})

	w := serve(env.handler.Me, s, http.MethodGet, "/x")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"isLoggedIn":true`)
	assert.Contains(t, w.Body.String(), "gravatar.com/avatar/")
}

func TestMeUsesAvatarProxyWhenProfileHasAvatar(t *testing.T) {
	env := newTestEnv(t, nil)
	s := env.manager.Create()
	s.BypassLogin(&olympiads.User{ID: "u1", Avatar: "https://img.example.com/u1.png"})

	w := serve(env.handler.Me, s, http.MethodGet, "/x")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/avatar?url=")
}

func TestToggleAdminModeEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	s := env.manager.Create()
	s.BypassLogin(&olympiads.User{ID: "a1", IsAdmin: true})

	w := serve(env.handler.ToggleAdminMode, s, http.MethodPost, "/x")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"isAdminMode":true`)

	w = serve(env.handler.ToggleAdminMode, s, http.MethodPost, "/x")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"isAdminMode":false`)
}

func TestNotificationsEndpoint(t *testing.T) {
	notifier := &stubNotifier{items: []olympiads.Notification{
		{ID: "n1", Message: "New exam available"},
		{ID: "n2", Message: "Score published", Read: true},
	}}
	env := newTestEnv(t, notifier)
	s := env.manager.Create()
	s.BypassLogin(&olympiads.User{ID: "u1"})

	w := serve(env.handler.Notifications, s, http.MethodGet, "/x")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Notifications []any  `json:"notifications"`
		UnreadCount   int    `json:"unreadCount"`
		Error         string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Notifications, 2)
	assert.Equal(t, 1, resp.UnreadCount)
	assert.Empty(t, resp.Error)
}

func TestNotificationsEndpointSurfacesFetchError(t *testing.T) {
	notifier := &stubNotifier{err: errors.New("backend down")}
	env := newTestEnv(t, notifier)
	s := env.manager.Create()
	s.BypassLogin(&olympiads.User{ID: "u1"})

	w := serve(env.handler.Notifications, s, http.MethodGet, "/x")
	require.Equal(t, http.StatusOK, w.Code, "a feed failure is not a request failure")

	var resp struct {
		Notifications []any  `json:"notifications"`
		Error         string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, notifications.FetchErrorMessage, resp.Error)
	assert.Empty(t, resp.Notifications)
}

func TestRespondBackendErrorUnwrapsWrappedAPIError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	wrapped := fmt.Errorf("loading exams: %w", &olympiads.APIError{
		StatusCode: http.StatusNotFound,
		Message:    "exam not found",
	})
	respondBackendError(c, wrapped)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "exam not found")
}

func TestRespondBackendErrorFallsBackToBadGateway(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondBackendError(c, errors.New("connection refused"))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "backend unavailable")
}

func TestAvatarRejectsBadSize(t *testing.T) {
	env := newTestEnv(t, nil)

	w := serve(env.handler.Avatar, nil, http.MethodGet, "/x?url=https%3A%2F%2Fimg.example.com%2Fu1.png&size=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(env.handler.Avatar, nil, http.MethodGet, "/x")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
