package access

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gescom/gescom/internal/platform/httpx"
	"github.com/gescom/gescom/internal/shared"
)

// Handler exposes the admin surface for permissions.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	gate     Middleware
}

// NewHandler constructs the access handler.
func NewHandler(logger *slog.Logger, service *Service, gate Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), gate: gate}
}

// MountRoutes registers permission routes. The admin surface itself sits
// behind the access module grant.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(ModuleAccess))
		r.Post("/permissions", h.grant)
		r.Post("/permissions/{id}/toggle", h.toggle)
		r.Get("/users/{id}/permissions", h.listForUser)
	})
}

type grantRequest struct {
	UserID      int64  `json:"user_id" validate:"required,gt=0"`
	Module      string `json:"module" validate:"required"`
	Description string `json:"description" validate:"max=255"`
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	p, err := h.service.Grant(r.Context(), req.UserID, Module(req.Module), req.Description)
	if err != nil {
		h.logger.Error("grant permission", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	p, err := h.service.Toggle(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) listForUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	perms, err := h.service.ListForUser(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perms)
}
