package sales

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

// Handler wires HTTP endpoints for the sale lifecycle.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	gate     access.Middleware
}

// NewHandler constructs the sales handler.
func NewHandler(logger *slog.Logger, service *Service, gate access.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), gate: gate}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(access.ModuleSales))
		r.Post("/sales", h.create)
		r.Get("/sales", h.list)
		r.Get("/sales/{id}", h.show)
		r.Post("/sales/{id}/payments", h.recordPayment)
		r.Get("/sales/{id}/payments", h.listPayments)
		r.Put("/sales/{id}/cancel", h.cancel)
	})
}

type saleLineRequest struct {
	StockID  int64 `json:"stock_id" validate:"required,gt=0"`
	Quantite int64 `json:"quantite" validate:"required,gt=0"`
}

type createSaleRequest struct {
	NomClient     string            `json:"nom_client" validate:"required,max=120"`
	Numero        string            `json:"numero" validate:"max=40"`
	Adresse       string            `json:"adresse" validate:"max=255"`
	BeneficiaryID int64             `json:"beneficiary_id" validate:"omitempty,gt=0"`
	Lines         []saleLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	input := CreateSaleInput{
		ClientName:     req.NomClient,
		ClientPhone:    req.Numero,
		ClientAddress:  req.Adresse,
		BeneficiaryID:  req.BeneficiaryID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		ActorID:        shared.ActorFromContext(r.Context()),
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, SaleLineInput{StockID: line.StockID, Quantity: line.Quantite})
	}
	sale, err := h.service.CreateSale(r.Context(), input)
	if err != nil {
		h.logger.Error("create sale", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	sales, err := h.service.List(r.Context(), cursorFromQuery(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sales)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, saleView{Sale: sale, BalanceDue: sale.BalanceDue()})
}

type paymentRequest struct {
	Montant     float64 `json:"montant" validate:"required,gt=0"`
	Commentaire string  `json:"commentaire" validate:"max=500"`
}

// saleView adds the derived balance to responses.
type saleView struct {
	Sale
	BalanceDue float64 `json:"balance_due"`
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	sale, err := h.service.RecordPayment(r.Context(), id, req.Montant, req.Commentaire, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("record payment", slog.Int64("sale_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, saleView{Sale: sale, BalanceDue: sale.BalanceDue()})
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	payments, err := h.service.ListPayments(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	sale, err := h.service.Cancel(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("cancel sale", slog.Int64("sale_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
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
