package users

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/clavis-iam/clavis-iam/internal/rbac"
	"github.com/clavis-iam/clavis-iam/internal/session"
	"github.com/clavis-iam/clavis-iam/internal/shared"
)

type stubMinter struct{}

func (stubMinter) Mint(subjectID int64) (string, error) {
	return fmt.Sprintf("token-for-%d", subjectID), nil
}

func (stubMinter) TTL() time.Duration { return 30 * time.Minute }

type stubPermissionLister struct {
	perms []rbac.EffectivePermission
}

func (l stubPermissionLister) ListEffectivePermissions(ctx context.Context, userID int64) ([]rbac.EffectivePermission, error) {
	return l.perms, nil
}

func userHandlerFixture(t *testing.T) (*memoryUserRepo, *Handler) {
	t.Helper()
	repo := newMemoryUserRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, NewService(repo), stubMinter{}, stubPermissionLister{}, nil, nil, false)
	return repo, h
}

func publicRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	h.MountPublic(r)
	return r
}

func identifiedRouter(h *Handler, userID int64, mount func(chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithUserID(req.Context(), userID)))
		})
	})
	mount(r)
	return r
}

func TestRegisterEndpoint(t *testing.T) {
	_, h := userHandlerFixture(t)
	router := publicRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(
		`{"name":"Ada","surname":"Lovelace","email":"ada@example.com","password":"correct horse","password_confirm":"correct horse"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	var body userResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "user", body.Role)
	require.True(t, body.IsActive)
	// The credential never appears in the response.
	require.NotContains(t, rr.Body.String(), "correct horse")
	require.NotContains(t, rr.Body.String(), "password")
}

func TestRegisterEndpointValidation(t *testing.T) {
	_, h := userHandlerFixture(t)
	router := publicRouter(h)

	for name, payload := range map[string]string{
		"short password": `{"name":"Ada","email":"ada@example.com","password":"short","password_confirm":"short"}`,
		"bad email":      `{"name":"Ada","email":"not-an-email","password":"correct horse","password_confirm":"correct horse"}`,
		"mismatch":       `{"name":"Ada","email":"ada@example.com","password":"correct horse","password_confirm":"other horse"}`,
		"unknown field":  `{"name":"Ada","email":"ada@example.com","password":"correct horse","password_confirm":"correct horse","admin":true}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(payload))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusBadRequest, rr.Code, name)
	}
}

func TestRegisterEndpointDuplicateEmail(t *testing.T) {
	_, h := userHandlerFixture(t)
	router := publicRouter(h)

	payload := `{"name":"Ada","email":"ada@example.com","password":"correct horse","password_confirm":"correct horse"}`

	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(payload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(payload))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestLoginEndpoint(t *testing.T) {
	_, h := userHandlerFixture(t)
	router := publicRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(
		`{"name":"Ada","email":"ada@example.com","password":"correct horse","password_confirm":"correct horse"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(
		`{"email":"ada@example.com","password":"correct horse"}`))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var body loginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "token-for-1", body.AccessToken)
	require.Equal(t, "Bearer", body.TokenType)
	require.Equal(t, int64(1800), body.ExpiresIn)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, session.CookieName, cookies[0].Name)
	require.Equal(t, "token-for-1", cookies[0].Value)
	require.True(t, cookies[0].HttpOnly)
	require.Equal(t, 1800, cookies[0].MaxAge)
}

func TestLoginEndpointBadCredentials(t *testing.T) {
	_, h := userHandlerFixture(t)
	router := publicRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(
		`{"email":"nobody@example.com","password":"anything"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Empty(t, rr.Result().Cookies())
}

func TestLogoutEndpointClearsCookie(t *testing.T) {
	_, h := userHandlerFixture(t)
	router := identifiedRouter(h, 1, h.MountAuthenticated)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, session.CookieName, cookies[0].Name)
	require.Empty(t, cookies[0].Value)
	require.Negative(t, cookies[0].MaxAge)
}

func TestUpdateMeEndpoint(t *testing.T) {
	repo, h := userHandlerFixture(t)
	_, err := NewService(repo).Register(context.Background(), registerInput("ada@example.com"))
	require.NoError(t, err)
	router := identifiedRouter(h, 1, h.MountAuthenticated)

	req := httptest.NewRequest(http.MethodPatch, "/me", strings.NewReader(`{"name":"Augusta"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var body userResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "Augusta", body.Name)
	require.Equal(t, "Lovelace", body.Surname)
}

func TestDeactivateMeEndpoint(t *testing.T) {
	repo, h := userHandlerFixture(t)
	_, err := NewService(repo).Register(context.Background(), registerInput("ada@example.com"))
	require.NoError(t, err)
	router := identifiedRouter(h, 1, h.MountAuthenticated)

	req := httptest.NewRequest(http.MethodPatch, "/me/deactivate", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	stored, err := repo.FindByID(context.Background(), 1)
	require.NoError(t, err)
	require.False(t, stored.IsActive)

	// Second attempt finds no active account.
	req = httptest.NewRequest(http.MethodPatch, "/me/deactivate", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMyPermissionsEndpoint(t *testing.T) {
	repo := newMemoryUserRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	lister := stubPermissionLister{perms: []rbac.EffectivePermission{
		{Resource: "products", Action: "read", Allowed: true},
	}}
	h := NewHandler(logger, NewService(repo), stubMinter{}, lister, nil, nil, false)
	router := identifiedRouter(h, 1, h.MountAuthenticated)

	req := httptest.NewRequest(http.MethodGet, "/me/permissions", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Permissions []rbac.EffectivePermission `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Permissions, 1)
	require.Equal(t, "products", body.Permissions[0].Resource)
}

func TestChangeRoleEndpoint(t *testing.T) {
	repo, h := userHandlerFixture(t)
	svc := NewService(repo)
	_, err := svc.Register(context.Background(), registerInput("admin@example.com"))
	require.NoError(t, err)
	target, err := svc.Register(context.Background(), registerInput("ada@example.com"))
	require.NoError(t, err)
	router := identifiedRouter(h, 1, h.MountAdmin)

	req := httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/users/%d/role", target.ID),
		strings.NewReader(`{"role":"manager"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var body userResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "manager", body.Role)

	req = httptest.NewRequest(http.MethodPatch, "/users/999/role", strings.NewReader(`{"role":"manager"}`))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)

	req = httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/users/%d/role", target.ID),
		strings.NewReader(`{"role":"root"}`))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
