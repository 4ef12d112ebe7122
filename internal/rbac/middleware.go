package rbac

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/clavis-iam/clavis-iam/internal/platform/httpx"
	"github.com/clavis-iam/clavis-iam/internal/shared"
)

// Middleware gates HTTP routes on permission table decisions. It is the
// integration point business-data collaborators mount in front of their
// handlers.
type Middleware struct {
	Evaluator *Evaluator
	Directory Directory
	Logger    *slog.Logger
}

// Require admits the request only when the authenticated user's role
// holds an explicit allow for (resource, action). An explicit deny and
// a missing rule both fail closed with 403.
func (m Middleware) Require(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := shared.UserIDFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			allowed, err := m.Evaluator.Authorize(r.Context(), userID, resource, action)
			switch {
			case err == nil && allowed:
				next.ServeHTTP(w, r)
			case err == nil || errors.Is(err, ErrPermissionNotFound):
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "access denied for "+action+" on "+resource)
			case errors.Is(err, ErrUserNotFound):
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "user not found or removed")
			default:
				if m.Logger != nil {
					m.Logger.Error("authorize request", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			}
		})
	}
}

// RequireAdministrator admits only active administrators. Administrative
// surfaces are gated on the role itself rather than a table rule so the
// permission table stays editable even when it is empty or misconfigured.
func (m Middleware) RequireAdministrator() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := shared.UserIDFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			account, err := m.Directory.Account(r.Context(), userID)
			if err != nil {
				if errors.Is(err, ErrUserNotFound) {
					httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "user not found or removed")
					return
				}
				if m.Logger != nil {
					m.Logger.Error("resolve account", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !account.Active || account.Role != RoleAdministrator {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "administrator role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
