package catalog

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gescom/gescom/internal/access"
	"github.com/gescom/gescom/internal/platform/httpx"
	"github.com/gescom/gescom/internal/shared"
)

// Handler wires HTTP endpoints for suppliers and purchases.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	gate     access.Middleware
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, service *Service, gate access.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), gate: gate}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(access.ModuleCatalog))
		r.Post("/suppliers", h.createSupplier)
		r.Put("/suppliers/{id}", h.updateSupplier)
		r.Post("/suppliers/{id}/toggle", h.toggleSupplier)
		r.Get("/suppliers", h.listSuppliers)
		r.Get("/suppliers/{id}", h.showSupplier)
		r.Post("/purchases", h.createPurchase)
		r.Get("/purchases", h.listPurchases)
		r.Get("/purchases/by-service", h.listByService)
		r.Get("/purchases/{id}", h.showPurchase)
		r.Put("/purchases/{id}/status", h.updatePurchaseStatus)
	})
}

type supplierRequest struct {
	Name     string   `json:"name" validate:"required,max=120"`
	Email    string   `json:"email" validate:"omitempty,email"`
	Phone    string   `json:"phone" validate:"max=40"`
	Address  string   `json:"address" validate:"max=255"`
	Services []string `json:"services" validate:"dive,max=120"`
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	supplier, err := h.service.CreateSupplier(r.Context(), CreateSupplierInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
		Services: req.Services,
	})
	if err != nil {
		h.logger.Error("create supplier", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, supplier)
}

func (h *Handler) updateSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	var req supplierRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	supplier, err := h.service.UpdateSupplier(r.Context(), Supplier{
		ID:       id,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
		Services: req.Services,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, supplier)
}

func (h *Handler) toggleSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	supplier, err := h.service.ToggleSupplier(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, supplier)
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.service.ListSuppliers(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, suppliers)
}

func (h *Handler) showSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	supplier, err := h.service.GetSupplier(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, supplier)
}

type purchaseLineRequest struct {
	NomService    string     `json:"nom_service" validate:"required,max=120"`
	Quantite      int64      `json:"quantite" validate:"required,gt=0"`
	PrixUnitaire  float64    `json:"prix_unitaire" validate:"required,gt=0"`
	DateCommande  *time.Time `json:"date_commande,omitempty"`
	DateLivraison *time.Time `json:"date_livraison,omitempty"`
	Photos        []string   `json:"photos" validate:"max=4"`
}

type createPurchaseRequest struct {
	SupplierID int64                 `json:"supplier_id" validate:"required,gt=0"`
	Note       string                `json:"note" validate:"max=500"`
	Lines      []purchaseLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) createPurchase(w http.ResponseWriter, r *http.Request) {
	var req createPurchaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	input := CreatePurchaseInput{
		SupplierID: req.SupplierID,
		Note:       req.Note,
		ActorID:    shared.ActorFromContext(r.Context()),
	}
	for _, line := range req.Lines {
		orderDate := time.Time{}
		if line.DateCommande != nil {
			orderDate = *line.DateCommande
		}
		input.Lines = append(input.Lines, PurchaseLineInput{
			ServiceName:  line.NomService,
			Quantity:     line.Quantite,
			UnitPrice:    line.PrixUnitaire,
			OrderDate:    orderDate,
			DeliveryDate: line.DateLivraison,
			Photos:       line.Photos,
		})
	}
	purchase, err := h.service.CreatePurchase(r.Context(), input)
	if err != nil {
		h.logger.Error("create purchase", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, purchase)
}

func (h *Handler) listPurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := h.service.ListPurchases(r.Context(), cursorFromQuery(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, purchases)
}

func (h *Handler) listByService(w http.ResponseWriter, r *http.Request) {
	service := r.URL.Query().Get("service")
	purchases, err := h.service.ListPurchasesByService(r.Context(), service, cursorFromQuery(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, purchases)
}

func (h *Handler) showPurchase(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	purchase, err := h.service.GetPurchase(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, purchase)
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=ordered paid received cancelled"`
}

func (h *Handler) updatePurchaseStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	purchase, err := h.service.UpdatePurchaseStatus(r.Context(), id, PurchaseStatus(req.Status), shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, purchase)
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
