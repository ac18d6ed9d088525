package stock

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

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	gate     access.Middleware
}

// NewHandler constructs the stock handler.
func NewHandler(logger *slog.Logger, service *Service, gate access.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), gate: gate}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(access.ModuleStock))
		r.Post("/stock", h.materialize)
		r.Get("/stock", h.list)
		r.Get("/stock/mouvements", h.movements)
		r.Get("/stock/{id}", h.show)
		r.Post("/stock/{id}/renew", h.renew)
		r.Put("/stock/{id}/unavailable", h.setUnavailable)
	})
}

// itemView decorates a stock item with its derived status.
type itemView struct {
	StockItem
	Status Status `json:"status"`
}

func viewOf(item StockItem) itemView {
	return itemView{StockItem: item, Status: item.Status()}
}

type materializeRequest struct {
	PurchaseLineID int64   `json:"purchase_line_id" validate:"required,gt=0"`
	Categorie      string  `json:"categorie" validate:"required,oneof=software hosting security services hardware"`
	QuantiteMin    int64   `json:"quantite_min" validate:"gte=0"`
	PrixVente      float64 `json:"prix_vente" validate:"required,gt=0"`
	Description    string  `json:"description" validate:"max=500"`
}

func (h *Handler) materialize(w http.ResponseWriter, r *http.Request) {
	var req materializeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	item, err := h.service.Materialize(r.Context(), MaterializeInput{
		PurchaseLineID: req.PurchaseLineID,
		Category:       Category(req.Categorie),
		QuantityMin:    req.QuantiteMin,
		SalePrice:      req.PrixVente,
		Description:    req.Description,
		ActorID:        shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.logger.Error("materialize stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, viewOf(item))
}

type renewRequest struct {
	PurchaseLineID int64  `json:"purchase_line_id" validate:"required,gt=0"`
	Commentaire    string `json:"commentaire" validate:"max=500"`
}

func (h *Handler) renew(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	var req renewRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	item, err := h.service.Renew(r.Context(), id, req.PurchaseLineID, req.Commentaire, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(item))
}

type unavailableRequest struct {
	Unavailable *bool `json:"unavailable" validate:"required"`
}

func (h *Handler) setUnavailable(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	var req unavailableRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	item, err := h.service.SetUnavailable(r.Context(), id, *req.Unavailable, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(item))
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(item))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context(), cursorFromQuery(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	views := make([]itemView, 0, len(items))
	for _, item := range items {
		views = append(views, viewOf(item))
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	filter := MovementFilter{Cursor: cursorFromQuery(r)}
	q := r.URL.Query()
	if stockID := q.Get("stock_id"); stockID != "" {
		if id, err := strconv.ParseInt(stockID, 10, 64); err == nil {
			filter.StockID = id
		}
	}
	filter.Type = MovementType(q.Get("type"))
	movements, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
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
