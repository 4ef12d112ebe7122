package session

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/clavis-iam/clavis-iam/internal/platform/httpx"
	"github.com/clavis-iam/clavis-iam/internal/shared"
	"github.com/clavis-iam/clavis-iam/internal/token"
)

// CookieName is the cookie the login handler sets for browser clients.
// API clients send the same token in the Authorization header instead.
const CookieName = "clavis_access_token"

// TokenFromRequest extracts the raw bearer token from the Authorization
// header, falling back to the session cookie. The core never looks at
// any other transport framing.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if raw, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(raw)
		}
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// Middleware authenticates requests before they reach protected handlers.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

// Authenticate rejects the request with 401 unless a presented token
// resolves to an active user, and stores that user id in the context.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := m.Resolver.Resolve(r.Context(), TokenFromRequest(r))
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", rejectionDetail(err))
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithUserID(r.Context(), userID)))
	})
}

// rejectionDetail names the failure mode without detailing why signature
// verification itself failed.
func rejectionDetail(err error) string {
	switch {
	case errors.Is(err, ErrTokenMissing):
		return "token missing"
	case errors.Is(err, ErrTokenExpired):
		return "token expired"
	case errors.Is(err, ErrSubjectMissing):
		return "token subject missing"
	case errors.Is(err, ErrUserInactive):
		return "inactive or unknown user"
	case errors.Is(err, token.ErrInvalidToken):
		return "invalid token"
	default:
		return "authentication failed"
	}
}
