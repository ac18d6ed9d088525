package commission

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

// Handler wires HTTP endpoints for commission settlement and reporting.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	gate     access.Middleware
}

// NewHandler constructs the commission handler.
func NewHandler(logger *slog.Logger, service *Service, gate access.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), gate: gate}
}

// MountRoutes registers commission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(access.ModuleCommission))
		r.Get("/commissions", h.list)
		r.Get("/commissions/{id}", h.show)
		r.Post("/commissions/{id}/pay", h.pay)
		r.Post("/commissions/{id}/void", h.void)
		r.Get("/commissions/summary/{beneficiaryID}", h.summary)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var beneficiaryID int64
	if raw := r.URL.Query().Get("beneficiary_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, shared.ErrValidation)
			return
		}
		beneficiaryID = id
	}
	commissions, err := h.service.List(r.Context(), beneficiaryID, cursorFromQuery(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, commissions)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

type payRequest struct {
	MontantVerse float64 `json:"montant_verse" validate:"required,gt=0"`
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	var req payRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	c, err := h.service.Pay(r.Context(), id, req.MontantVerse, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("pay commission", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	c, err := h.service.Void(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "beneficiaryID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	s, err := h.service.SummaryFor(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func cursorFromQuery(r *http.Request) shared.Cursor {
	var cursor shared.Cursor
	q := r.URL.Query()
	if after := q.Get("after"); after != "" {
		if id, err := strconv.ParseInt(after, 10, 64); err == nil {
			cursor.AfterID = id
		}
	}
	if limit := q.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			cursor.Limit = n
		}
	}
	return cursor
}
