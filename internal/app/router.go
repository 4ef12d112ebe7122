package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clavis-iam/clavis-iam/internal/observability"
	"github.com/clavis-iam/clavis-iam/internal/platform/httpx"
	"github.com/clavis-iam/clavis-iam/internal/rbac"
	"github.com/clavis-iam/clavis-iam/internal/session"
	"github.com/clavis-iam/clavis-iam/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	UsersHandler       *users.Handler
	PermissionsHandler *rbac.Handler
	SessionMiddleware  session.Middleware
	RBACMiddleware     rbac.Middleware
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router. Three surfaces: public
// (register/login), authenticated (account self-service), and
// administrator (permission table and role assignment).
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	params.UsersHandler.MountPublic(r)

	r.Group(func(r chi.Router) {
		r.Use(params.SessionMiddleware.Authenticate)
		params.UsersHandler.MountAuthenticated(r)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(params.SessionMiddleware.Authenticate)
		r.Use(params.RBACMiddleware.RequireAdministrator())
		params.PermissionsHandler.MountRoutes(r)
		params.UsersHandler.MountAdmin(r)
	})

	return r
}
