package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/clavis-iam/clavis-iam/internal/platform/httpx"
	"github.com/clavis-iam/clavis-iam/internal/rbac"
	"github.com/clavis-iam/clavis-iam/internal/session"
	"github.com/clavis-iam/clavis-iam/internal/shared"
)

// TokenMinter mints access tokens at login.
type TokenMinter interface {
	Mint(subjectID int64) (string, error)
	TTL() time.Duration
}

// PermissionLister answers "what may this user do".
type PermissionLister interface {
	ListEffectivePermissions(ctx context.Context, userID int64) ([]rbac.EffectivePermission, error)
}

// Handler wires HTTP endpoints for registration, login and account management.
type Handler struct {
	logger        *slog.Logger
	service       *Service
	minter        TokenMinter
	permissions   PermissionLister
	throttle      *shared.LoginThrottle
	audit         *shared.AuditLogger
	validator     *validator.Validate
	secureCookies bool
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, minter TokenMinter, permissions PermissionLister, throttle *shared.LoginThrottle, audit *shared.AuditLogger, secureCookies bool) *Handler {
	return &Handler{
		logger:        logger,
		service:       service,
		minter:        minter,
		permissions:   permissions,
		throttle:      throttle,
		audit:         audit,
		validator:     validator.New(),
		secureCookies: secureCookies,
	}
}

// MountPublic registers the unauthenticated routes.
func (h *Handler) MountPublic(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
}

// MountAuthenticated registers routes behind the session boundary.
func (h *Handler) MountAuthenticated(r chi.Router) {
	r.Post("/logout", h.handleLogout)
	r.Patch("/me", h.handleUpdateMe)
	r.Patch("/me/deactivate", h.handleDeactivateMe)
	r.Get("/me/permissions", h.handleMyPermissions)
}

// MountAdmin registers administrator-only account routes.
func (h *Handler) MountAdmin(r chi.Router) {
	r.Patch("/users/{id}/role", h.handleChangeRole)
}

type userResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

func toUserResponse(user *User) userResponse {
	return userResponse{
		ID:       user.ID,
		Name:     user.Name,
		Surname:  user.Surname,
		Email:    user.Email,
		Role:     string(user.Role),
		IsActive: user.IsActive,
	}
}

type registerRequest struct {
	Name            string `json:"name" validate:"required,max=100"`
	Surname         string `json:"surname" validate:"max=100"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required"`
	Role            string `json:"role" validate:"omitempty,oneof=administrator manager user viewer"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	user, err := h.service.Register(r.Context(), RegisterInput{
		Name:            req.Name,
		Surname:         req.Surname,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		Role:            rbac.Role(req.Role),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toUserResponse(user))
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	if err := h.throttle.Allow(r.Context(), req.Email, r.RemoteAddr); err != nil {
		httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "too many login attempts, retry later")
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
		return
	}

	raw, err := h.minter.Mint(user.ID)
	if err != nil {
		h.logger.Error("mint token", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	h.throttle.Reset(r.Context(), req.Email, r.RemoteAddr)

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    raw,
		Path:     "/",
		MaxAge:   int(h.minter.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	httpx.JSON(w, http.StatusOK, loginResponse{
		AccessToken: raw,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.minter.TTL().Seconds()),
	})
}

// handleLogout only clears the client-held cookie. Tokens are not
// persisted server-side, so there is nothing else to destroy.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w)
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

type updateMeRequest struct {
	Name    *string `json:"name" validate:"omitempty,max=100"`
	Surname *string `json:"surname" validate:"omitempty,max=100"`
	Email   *string `json:"email" validate:"omitempty,email"`
}

func (h *Handler) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	var req updateMeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	user, err := h.service.Update(r.Context(), userID, UpdateInput{
		Name:    req.Name,
		Surname: req.Surname,
		Email:   req.Email,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) handleDeactivateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	user, err := h.service.Deactivate(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.clearCookie(w)
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "account deactivated", "email": user.Email})
}

func (h *Handler) handleMyPermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	perms, err := h.permissions.ListEffectivePermissions(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

type changeRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=administrator manager user viewer"`
}

func (h *Handler) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	targetID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	var req changeRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	user, err := h.service.ChangeRole(r.Context(), targetID, rbac.Role(req.Role))
	if err != nil {
		h.respondError(w, err)
		return
	}
	if actorID, ok := shared.UserIDFromContext(r.Context()); ok {
		if err := h.audit.Record(r.Context(), shared.AuditLog{
			ActorID:  actorID,
			Action:   "user.role_changed",
			Entity:   "user",
			EntityID: strconv.FormatInt(user.ID, 10),
			Meta:     map[string]any{"role": string(user.Role)},
		}); err != nil {
			h.logger.Warn("audit role change", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmailTaken):
		httpx.Problem(w, http.StatusConflict, "Conflict", "email already registered")
	case errors.Is(err, ErrPasswordMismatch):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "passwords do not match")
	case errors.Is(err, rbac.ErrInvalidRole):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown role")
	case errors.Is(err, ErrUserNotFound), errors.Is(err, rbac.ErrUserNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "user not found or removed")
	default:
		h.logger.Error("users handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
