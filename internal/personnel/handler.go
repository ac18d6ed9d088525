package personnel

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gescom/gescom/internal/access"
	"github.com/gescom/gescom/internal/platform/httpx"
	"github.com/gescom/gescom/internal/shared"
)

// Handler wires HTTP endpoints for the employee registry.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	gate     access.Middleware
}

// NewHandler constructs the personnel handler.
func NewHandler(logger *slog.Logger, service *Service, gate access.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), gate: gate}
}

// MountRoutes registers employee routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(access.ModulePersonnel))
		r.Post("/employees", h.create)
		r.Put("/employees/{id}", h.update)
		r.Get("/employees", h.list)
		r.Get("/employees/{id}", h.show)
	})
}

type employeeRequest struct {
	Name           string  `json:"name" validate:"required,max=120"`
	Phone          string  `json:"phone" validate:"max=40"`
	Role           string  `json:"role" validate:"max=60"`
	CommissionRate float64 `json:"commission_rate" validate:"gte=0,lte=100"`
	Active         *bool   `json:"active,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req employeeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	e, err := h.service.Create(r.Context(), CreateInput{
		Name:           req.Name,
		Phone:          req.Phone,
		Role:           req.Role,
		CommissionRate: req.CommissionRate,
	})
	if err != nil {
		h.logger.Error("create employee", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, e)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	var req employeeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	e, err := h.service.Update(r.Context(), id, UpdateInput{
		Name:           req.Name,
		Phone:          req.Phone,
		Role:           req.Role,
		CommissionRate: req.CommissionRate,
		Active:         active,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	employees, err := h.service.List(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, employees)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	e, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}
