package sales

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/gescom/gescom/internal/access"
	"github.com/gescom/gescom/internal/shared"
	"github.com/gescom/gescom/internal/stock"
)

type allowAllRepo struct{}

func (allowAllRepo) Insert(_ context.Context, p access.Permission) (access.Permission, error) {
	return p, nil
}

func (allowAllRepo) Toggle(_ context.Context, _ int64) (access.Permission, error) {
	return access.Permission{}, shared.ErrNotFound
}

func (allowAllRepo) ListForUser(_ context.Context, _ int64) ([]access.Permission, error) {
	return nil, nil
}

func (allowAllRepo) ActiveModules(_ context.Context, _ int64) ([]string, error) {
	return []string{string(access.ModuleSales)}, nil
}

type denyAllRepo struct{ allowAllRepo }

func (denyAllRepo) ActiveModules(_ context.Context, _ int64) ([]string, error) {
	return nil, nil
}

func newTestRouter(t *testing.T, svc *Service, gateRepo access.RepositoryPort, actorID int64) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	gate := access.Middleware{Service: access.NewService(gateRepo, nil, time.Minute), Logger: logger}
	handler := NewHandler(logger, svc, gate)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithActor(req.Context(), actorID)))
		})
	})
	handler.MountRoutes(r)
	return r
}

func newTestService() (*Service, *memoryRepo, *memoryStock) {
	repo := newMemoryRepo()
	stocks := newMemoryStock(stock.StockItem{ID: 1, Quantity: 10, SalePrice: 100})
	return NewService(repo, stocks, newMemoryCommissions(), nil, nil), repo, stocks
}

func TestHandlerCreateSale(t *testing.T) {
	svc, _, stocks := newTestService()
	router := newTestRouter(t, svc, allowAllRepo{}, 1)

	body := `{"nom_client":"Diallo","numero":"620000000","adresse":"Conakry","lines":[{"stock_id":1,"quantite":3}]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sales", bytes.NewBufferString(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	var sale Sale
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sale))
	require.Equal(t, 300.0, sale.Total)
	require.Equal(t, StatusPending, sale.Status)
	require.NotEmpty(t, sale.Reference)
	require.Equal(t, int64(7), stocks.items[1].Quantity)
}

func TestHandlerCreateSaleRejectsUnknownField(t *testing.T) {
	svc, _, _ := newTestService()
	router := newTestRouter(t, svc, allowAllRepo{}, 1)

	body := `{"nom_client":"Diallo","prix_total":1,"lines":[{"stock_id":1,"quantite":3}]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sales", bytes.NewBufferString(body)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerPermissionDenied(t *testing.T) {
	svc, _, _ := newTestService()
	router := newTestRouter(t, svc, denyAllRepo{}, 1)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sales", nil))

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerAnonymousDenied(t *testing.T) {
	svc, _, _ := newTestService()
	router := newTestRouter(t, svc, allowAllRepo{}, 0)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sales", nil))

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerPaymentFlow(t *testing.T) {
	svc, _, _ := newTestService()
	router := newTestRouter(t, svc, allowAllRepo{}, 1)

	_, err := svc.CreateSale(context.Background(), CreateSaleInput{
		ClientName: "Diallo",
		Lines:      []SaleLineInput{{StockID: 1, Quantity: 5}},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sales/1/payments", bytes.NewBufferString(`{"montant":300}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var view struct {
		Sale
		BalanceDue float64 `json:"balance_due"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, 200.0, view.BalanceDue)
	require.Equal(t, StatusPending, view.Status)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sales/1/payments", bytes.NewBufferString(`{"montant":500}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sales/1/payments", bytes.NewBufferString(`{"montant":200}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, StatusPaid, view.Status)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sales/1/payments", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var payments []Payment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payments))
	require.Len(t, payments, 2)
}

func TestHandlerCancel(t *testing.T) {
	svc, _, stocks := newTestService()
	router := newTestRouter(t, svc, allowAllRepo{}, 1)

	_, err := svc.CreateSale(context.Background(), CreateSaleInput{
		ClientName: "Diallo",
		Lines:      []SaleLineInput{{StockID: 1, Quantity: 4}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(6), stocks.items[1].Quantity)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/sales/1/cancel", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(10), stocks.items[1].Quantity)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/sales/1/cancel", nil))
	require.Equal(t, http.StatusConflict, rec.Code)
}
