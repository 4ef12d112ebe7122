package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/clavis-iam/clavis-iam/internal/platform/httpx"
	"github.com/clavis-iam/clavis-iam/internal/shared"
)

// Handler exposes the administrative CRUD surface of the permission table.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	audit     *shared.AuditLogger
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, audit *shared.AuditLogger) *Handler {
	return &Handler{logger: logger, service: service, audit: audit, validator: validator.New()}
}

// MountRoutes registers the permission rule routes. The router mounts
// them behind the administrator gate.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/permissions", h.listRules)
	r.Post("/permissions", h.createRule)
	r.Patch("/permissions/{id}", h.updateRule)
	r.Delete("/permissions/{id}", h.deleteRule)
}

type ruleResponse struct {
	ID       int64  `json:"id"`
	Role     string `json:"role"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Allowed  bool   `json:"allowed"`
}

func toRuleResponse(rule Rule) ruleResponse {
	return ruleResponse{
		ID:       rule.ID,
		Role:     string(rule.Role),
		Resource: rule.Resource,
		Action:   rule.Action,
		Allowed:  rule.Allowed,
	}
}

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.ListAll(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, toRuleResponse(rule))
	}
	httpx.JSON(w, http.StatusOK, out)
}

type createRuleRequest struct {
	Role     string `json:"role" validate:"required,oneof=administrator manager user viewer"`
	Resource string `json:"resource" validate:"required,max=50"`
	Action   string `json:"action" validate:"required,max=20"`
	Allowed  *bool  `json:"allowed"`
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	allowed := true
	if req.Allowed != nil {
		allowed = *req.Allowed
	}
	rule, err := h.service.Create(r.Context(), Role(req.Role), req.Resource, req.Action, allowed)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.recordAudit(r, "permission.created", rule)
	httpx.JSON(w, http.StatusCreated, toRuleResponse(rule))
}

type updateRuleRequest struct {
	Allowed *bool `json:"allowed" validate:"required"`
}

func (h *Handler) updateRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid rule id")
		return
	}
	var req updateRuleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rule, err := h.service.UpdateAllowed(r.Context(), id, *req.Allowed)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.recordAudit(r, "permission.updated", rule)
	httpx.JSON(w, http.StatusOK, toRuleResponse(rule))
}

func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid rule id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	h.recordAudit(r, "permission.deleted", Rule{ID: id})
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "permission rule deleted"})
}

func (h *Handler) recordAudit(r *http.Request, action string, rule Rule) {
	actorID, ok := shared.UserIDFromContext(r.Context())
	if !ok {
		return
	}
	meta := map[string]any{}
	if rule.Role != "" {
		meta["role"] = string(rule.Role)
		meta["resource"] = rule.Resource
		meta["action"] = rule.Action
		meta["allowed"] = rule.Allowed
	}
	if err := h.audit.Record(r.Context(), shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "permission",
		EntityID: strconv.FormatInt(rule.ID, 10),
		Meta:     meta,
	}); err != nil && h.logger != nil {
		h.logger.Warn("audit permission change", slog.Any("error", err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRuleExists):
		httpx.Problem(w, http.StatusConflict, "Conflict", "permission rule already exists for this role, resource and action")
	case errors.Is(err, ErrRuleNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "permission rule not found")
	case errors.Is(err, ErrInvalidRole):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown role")
	default:
		if h.logger != nil {
			h.logger.Error("rbac handler", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}
