package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/tasklist-service/internal/api/http/handlers"
	"github.com/spec-kit/tasklist-service/internal/auth"
	"github.com/spec-kit/tasklist-service/internal/config"
	"github.com/spec-kit/tasklist-service/internal/domain"
	"github.com/spec-kit/tasklist-service/internal/events"
	"github.com/spec-kit/tasklist-service/internal/observability"
	"github.com/spec-kit/tasklist-service/internal/repository/repotest"
	"github.com/spec-kit/tasklist-service/internal/service"
	apperrors "github.com/spec-kit/tasklist-service/pkg/util"
)

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	app    *fiber.App
	store  *repotest.Store
	tokens *auth.TokenManager
	calls  map[string]int
}

func newTestServer(t *testing.T, delivery config.DeliveryMode) *testServer {
	t.Helper()
	store := repotest.NewStore()
	tokens, err := auth.NewTokenManager("access-secret", "refresh-secret")
	require.NoError(t, err)

	authCfg := config.AuthConfig{BcryptCost: bcrypt.MinCost, Delivery: delivery, CookieSecure: true}
	svc, err := service.NewAuthService(authCfg, service.AuthDependencies{
		Users:      store.Users(),
		UnitOfWork: store.UnitOfWork(),
		Sessions:   service.NewSessionStore(store.RefreshTokens(), nil),
		Tokens:     tokens,
		Dispatcher: events.NewInMemoryDispatcher(),
	})
	require.NoError(t, err)

	metrics := observability.NewMetrics()
	access := auth.NewAccessMiddleware(auth.NewRoleResolver(store.Hierarchy(), store.Memberships()), auth.DefaultPolicy(), metrics)

	ts := &testServer{store: store, tokens: tokens, calls: map[string]int{}}
	stub := func(name string) fiber.Handler {
		return func(c *fiber.Ctx) error {
			ts.calls[name]++
			return c.JSON(fiber.Map{"handler": name, "role": string(auth.RoleFromContext(c))})
		}
	}

	app := fiber.New()
	RegisterMiddlewares(app, MiddlewareConfig{Metrics: metrics, RequestTimeout: time.Second, AllowedOrigins: "http://localhost:3000"})
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("tasklist-service", "test", map[string]handlers.Pinger{
			"postgres": pingerFunc(func(context.Context) error { return nil }),
		}),
		Sessions:         handlers.NewSessionHandler(svc, authCfg),
		Access:           handlers.NewAccessHandler(access),
		Metrics:          metrics,
		AuthMiddleware:   auth.NewAuthMiddleware(tokens),
		AccessMiddleware: access,
		Resources: ResourceHandlers{
			ListLists:     stub("ListLists"),
			GetList:       stub("GetList"),
			DeleteList:    stub("DeleteList"),
			CreateTask:    stub("CreateTask"),
			GetTask:       stub("GetTask"),
			DeleteSubtask: stub("DeleteSubtask"),
			UpdateSubtask: stub("UpdateSubtask"),
			AddComment:    stub("AddComment"),
			UpdateTag:     stub("UpdateTag"),
		},
	})
	ts.app = app
	return ts
}

type requestOpt func(*http.Request)

func withBearer(token string) requestOpt {
	return func(r *http.Request) { r.Header.Set(fiber.HeaderAuthorization, "Bearer "+token) }
}

func withoutContentType() requestOpt {
	return func(r *http.Request) { r.Header.Del(fiber.HeaderContentType) }
}

func withCookie(c *http.Cookie) requestOpt {
	return func(r *http.Request) { r.AddCookie(c) }
}

func (ts *testServer) do(t *testing.T, method, path string, body any, opts ...requestOpt) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := ts.app.Test(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func (ts *testServer) register(t *testing.T, email string) map[string]any {
	t.Helper()
	resp, body := ts.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Ada", "email": email, "password": "pw",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body
}

func refreshCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == handlers.RefreshCookieName {
			return c
		}
	}
	return nil
}

func TestSessionFlow_BodyDelivery(t *testing.T) {
	ts := newTestServer(t, config.DeliveryBody)

	reg := ts.register(t, "ada@example.com")
	assert.NotEmpty(t, reg["accessToken"])
	refresh, _ := reg["refreshToken"].(string)
	require.NotEmpty(t, refresh)

	resp, body := ts.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "ada@example.com", "password": "pw"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["refreshToken"])
	assert.Nil(t, refreshCookie(resp))

	resp, body = ts.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"token": refresh})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, refresh, body["refreshToken"])
	assert.NotEmpty(t, body["accessToken"])

	for i := 0; i < 2; i++ {
		resp, body = ts.do(t, http.MethodPost, "/api/auth/logout", map[string]string{"token": refresh})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Logged out successfully", body["message"])
	}

	resp, body = ts.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"token": refresh})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, apperrors.CodeInvalidToken, body["code"])
	assert.Equal(t, "Invalid token", body["message"])
}

func TestSessionFlow_CookieDelivery(t *testing.T) {
	ts := newTestServer(t, config.DeliveryCookie)

	resp, body := ts.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Ada", "email": "ada@example.com", "password": "pw",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, body["accessToken"])
	assert.NotContains(t, body, "refreshToken")

	cookie := refreshCookie(resp)
	require.NotNil(t, cookie)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, int(auth.RefreshTokenTTL/time.Second), cookie.MaxAge)

	resp, body = ts.do(t, http.MethodPost, "/api/auth/refresh", nil, withCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["accessToken"])

	resp, _ = ts.do(t, http.MethodPost, "/api/auth/logout", nil, withCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cleared := refreshCookie(resp)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.True(t, cleared.Expires.Before(time.Now()))

	resp, _ = ts.do(t, http.MethodPost, "/api/auth/refresh", nil, withCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value}))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRefresh_MissingToken(t *testing.T) {
	for _, mode := range []config.DeliveryMode{config.DeliveryBody, config.DeliveryCookie} {
		t.Run(string(mode), func(t *testing.T) {
			ts := newTestServer(t, mode)
			resp, body := ts.do(t, http.MethodPost, "/api/auth/refresh", nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, apperrors.CodeUnauthorized, body["code"])
		})
	}
}

func TestRefresh_BodyWithoutContentType(t *testing.T) {
	ts := newTestServer(t, config.DeliveryBody)
	refresh, _ := ts.register(t, "ada@example.com")["refreshToken"].(string)
	require.NotEmpty(t, refresh)

	resp, body := ts.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"token": refresh}, withoutContentType())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["accessToken"])

	resp, body = ts.do(t, http.MethodPost, "/api/auth/refresh", "not json", withoutContentType())
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, apperrors.CodeUnauthorized, body["code"])

	resp, body = ts.do(t, http.MethodPost, "/api/auth/logout", map[string]string{"token": refresh}, withoutContentType())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Logged out successfully", body["message"])

	resp, _ = ts.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"token": refresh})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLogout_WithoutToken(t *testing.T) {
	ts := newTestServer(t, config.DeliveryBody)
	resp, body := ts.do(t, http.MethodPost, "/api/auth/logout", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Logged out successfully", body["message"])
}

func TestLogout_StorageError(t *testing.T) {
	ts := newTestServer(t, config.DeliveryBody)
	ts.store.FailWith(errors.New("db down"))

	resp, body := ts.do(t, http.MethodPost, "/api/auth/logout", map[string]string{"token": "x"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal server error", body["message"])
}

func TestLogin_Errors(t *testing.T) {
	ts := newTestServer(t, config.DeliveryBody)
	ts.register(t, "ada@example.com")

	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
		wantCode   string
	}{
		{name: "wrong password", body: map[string]string{"email": "ada@example.com", "password": "nope"}, wantStatus: http.StatusBadRequest, wantCode: apperrors.CodeInvalidCredentials},
		{name: "unknown email", body: map[string]string{"email": "who@example.com", "password": "pw"}, wantStatus: http.StatusBadRequest, wantCode: apperrors.CodeInvalidCredentials},
		{name: "missing password", body: map[string]string{"email": "ada@example.com"}, wantStatus: http.StatusBadRequest, wantCode: apperrors.CodeInvalidCredentials},
		{name: "empty fields", body: map[string]string{}, wantStatus: http.StatusBadRequest, wantCode: apperrors.CodeInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.do(t, http.MethodPost, "/api/auth/login", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCode, body["code"])
			if tt.wantCode == apperrors.CodeInvalidCredentials {
				assert.Equal(t, "Invalid credentials", body["message"])
			}
		})
	}
}

func TestRegister_Errors(t *testing.T) {
	ts := newTestServer(t, config.DeliveryBody)
	ts.register(t, "ada@example.com")

	resp, body := ts.do(t, http.MethodPost, "/api/auth/register", map[string]string{"name": "B", "email": "ada@example.com", "password": "x"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, apperrors.CodeConflict, body["code"])

	resp, body = ts.do(t, http.MethodPost, "/api/auth/register", map[string]string{"email": "b@example.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, apperrors.CodeValidation, body["code"])
}

type listFixture struct {
	listID    string
	taskID    string
	subtaskID string
	tagID     string
}

func (ts *testServer) seedList(t *testing.T, members map[string]domain.Role) listFixture {
	t.Helper()
	f := listFixture{listID: uuid.NewString(), taskID: uuid.NewString(), subtaskID: uuid.NewString(), tagID: uuid.NewString()}
	ts.store.AddTask(f.taskID, f.listID)
	ts.store.AddSubtask(f.subtaskID, f.taskID)
	ts.store.AddTag(f.tagID, f.listID)
	for userID, role := range members {
		ts.store.AddMembership(f.listID, userID, role)
	}
	return f
}

func (ts *testServer) accessToken(t *testing.T, userID string) string {
	t.Helper()
	token, _, err := ts.tokens.IssueAccessToken(userID)
	require.NoError(t, err)
	return token
}

func TestResourceRoutes_Authorization(t *testing.T) {
	ts := newTestServer(t, config.DeliveryBody)
	f := ts.seedList(t, map[string]domain.Role{
		"owner":  domain.RoleOwner,
		"editor": domain.RoleEditor,
		"viewer": domain.RoleViewer,
	})

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		user       string
		wantStatus int
		wantCode   string
	}{
		{name: "viewer reads task", method: http.MethodGet, path: "/api/tasks/" + f.taskID, user: "viewer", wantStatus: http.StatusOK},
		{name: "viewer comments", method: http.MethodPost, path: "/api/task-comments", body: map[string]string{"taskId": f.taskID, "body": "hi"}, user: "viewer", wantStatus: http.StatusOK},
		{name: "viewer cannot create task", method: http.MethodPost, path: "/api/tasks", body: map[string]string{"listId": f.listID}, user: "viewer", wantStatus: http.StatusForbidden, wantCode: apperrors.CodeForbidden},
		{name: "editor creates task", method: http.MethodPost, path: "/api/tasks", body: map[string]string{"listId": f.listID}, user: "editor", wantStatus: http.StatusOK},
		{name: "editor updates subtask", method: http.MethodPut, path: "/api/subtasks/" + f.subtaskID, user: "editor", wantStatus: http.StatusOK},
		{name: "editor cannot delete subtask", method: http.MethodDelete, path: "/api/subtasks/" + f.subtaskID, user: "editor", wantStatus: http.StatusForbidden, wantCode: apperrors.CodeForbidden},
		{name: "owner deletes subtask", method: http.MethodDelete, path: "/api/subtasks/" + f.subtaskID, user: "owner", wantStatus: http.StatusOK},
		{name: "editor cannot delete list", method: http.MethodDelete, path: "/api/lists/" + f.listID, user: "editor", wantStatus: http.StatusForbidden, wantCode: apperrors.CodeForbidden},
		{name: "viewer cannot update tag", method: http.MethodPut, path: "/api/tags/" + f.tagID, user: "viewer", wantStatus: http.StatusForbidden, wantCode: apperrors.CodeForbidden},
		{name: "stranger reads list", method: http.MethodGet, path: "/api/lists/" + f.listID, user: "stranger", wantStatus: http.StatusForbidden, wantCode: apperrors.CodeNotAMember},
		{name: "lists index needs only auth", method: http.MethodGet, path: "/api/lists", user: "stranger", wantStatus: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.do(t, tt.method, tt.path, tt.body, withBearer(ts.accessToken(t, tt.user)))
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["code"])
			}
		})
	}
}

func TestResourceRoutes_DeniedRequestsNeverReachHandler(t *testing.T) {
	ts := newTestServer(t, config.DeliveryBody)
	f := ts.seedList(t, map[string]domain.Role{"editor": domain.RoleEditor})

	resp, body := ts.do(t, http.MethodGet, "/api/tasks/"+f.taskID, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "No token provided", body["message"])

	resp, _ = ts.do(t, http.MethodGet, "/api/tasks/"+f.taskID, nil, withBearer("garbage"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodDelete, "/api/subtasks/"+f.subtaskID, nil, withBearer(ts.accessToken(t, "editor")))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	assert.Zero(t, ts.calls["GetTask"])
	assert.Zero(t, ts.calls["DeleteSubtask"])
}

func TestResourceRoutes_UnmountedHandler(t *testing.T) {
	ts := newTestServer(t, config.DeliveryBody)
	resp, body := ts.do(t, http.MethodGet, "/api/tags/list/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, apperrors.CodeNotFound, body["code"])
}

func TestAccessIntrospection(t *testing.T) {
	ts := newTestServer(t, config.DeliveryBody)
	f := ts.seedList(t, map[string]domain.Role{"editor": domain.RoleEditor})

	resp, body := ts.do(t, http.MethodGet, "/api/access/subtask/"+f.subtaskID, nil, withBearer(ts.accessToken(t, "editor")))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "editor", body["role"])
	assert.Equal(t, []any{"comment", "read", "write"}, body["actions"])

	resp, body = ts.do(t, http.MethodGet, "/api/access/widget/"+f.subtaskID, nil, withBearer(ts.accessToken(t, "editor")))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, apperrors.CodeValidation, body["code"])

	resp, body = ts.do(t, http.MethodGet, "/api/access/task/"+f.taskID, nil, withBearer(ts.accessToken(t, "stranger")))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, apperrors.CodeNotAMember, body["code"])
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, config.DeliveryBody)

	resp, body := ts.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body["status"])

	resp, _ = ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetrics_LabelsUseRouteTemplates(t *testing.T) {
	ts := newTestServer(t, config.DeliveryBody)
	for i := 0; i < 60; i++ {
		id := uuid.NewString()
		for _, path := range []string{"/api/lists/" + id, "/nope/" + id, "/api/tasks/" + id} {
			ts.do(t, http.MethodGet, path, nil)
		}
	}

	resp, err := ts.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	text := string(raw)
	assert.Contains(t, text, `path="/api/lists/:listId"`)
	assert.Contains(t, text, `path="/api/tasks/:taskId"`)
	assert.Contains(t, text, `path="unmatched"`)
	assert.NotContains(t, text, "/nope/")
}
