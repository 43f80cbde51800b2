package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitasport/inventory-engine/analytics"
	"github.com/vitasport/inventory-engine/api"
	"github.com/vitasport/inventory-engine/inventory"
	"github.com/vitasport/inventory-engine/inventory/store"
	"github.com/vitasport/inventory-engine/report"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()

	mem := store.NewMemory()
	ledger := inventory.NewLedger(mem)
	engine := analytics.NewEngine(mem)
	exporter := report.NewExporter(mem, engine, ledger, t.TempDir())

	log := logrus.New()
	log.SetOutput(io.Discard)

	return api.NewRouter(api.NewHandler(mem, ledger, engine, exporter, log))
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func productBody(name, sku string, maxStock int64) map[string]any {
	return map[string]any{
		"name":       name,
		"sku":        sku,
		"sale_price": "100.00",
		"cost_price": "60.00",
		"category":   "proteina",
		"max_stock":  maxStock,
		"status":     "Activo",
	}
}

// =============================================================================
// PRODUCT ENDPOINT TESTS
// =============================================================================

func TestAPI_CreateAndListProducts(t *testing.T) {
	// GIVEN: A product created with max_stock 10
	// WHEN: Listing products
	// THEN: The listing shows the seeded stock and computed margin

	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/products", productBody("Whey 1kg", "WP-1000", 10))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	products := decodeBody[[]map[string]any](t, rec)
	require.Len(t, products, 1)
	assert.Equal(t, "Whey 1kg", products[0]["name"])
	assert.Equal(t, float64(10), products[0]["current_stock"])
	assert.Equal(t, "40", products[0]["margin_percent"])
}

func TestAPI_CreateProduct_MissingName_BadRequest(t *testing.T) {
	router := newTestRouter(t)

	body := productBody("", "", 0)
	delete(body, "name")

	rec := doJSON(t, router, http.MethodPost, "/api/products", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_DeleteProduct_Referenced_Conflict(t *testing.T) {
	// GIVEN: A product whose creation seeded a ledger entry
	// WHEN: Deleting it over HTTP
	// THEN: 409 and the product stays

	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/products", productBody("Whey 1kg", "WP-1000", 5))
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[map[string]any](t, rec)
	path := fmt.Sprintf("/api/products/%.0f", created["id"].(float64))

	rec = doJSON(t, router, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// STOCK ENDPOINT TESTS
// =============================================================================

func TestAPI_StockMovementAndBalances(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/products", productBody("Whey 1kg", "WP-1000", 0))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/stock/movements", map[string]any{
		"product_id": 1, "movement_type": "ingreso", "quantity": 7,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/stock/balances", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	balances := decodeBody[[]map[string]any](t, rec)
	require.Len(t, balances, 1)
	assert.Equal(t, float64(7), balances[0]["current_stock"])
}

func TestAPI_StockMovement_UnknownType_BadRequest(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/stock/movements", map[string]any{
		"product_id": 1, "movement_type": "ajuste", "quantity": 7,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SALES ENDPOINT TESTS
// =============================================================================

func TestAPI_RecordSale_ComputesDiscountedTotal(t *testing.T) {
	// GIVEN: A product with stock 10
	// WHEN: Selling 2 units at 100.00 with 10% discount
	// THEN: 201 and the listed sale totals 180.00

	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/products", productBody("Whey 1kg", "WP-1000", 10))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/sales", map[string]any{
		"product_id": 1, "quantity": 2, "unit_price": "100.00", "discount": "10",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/sales", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	sales := decodeBody[[]map[string]any](t, rec)
	require.Len(t, sales, 1)
	assert.Equal(t, "180.00", sales[0]["sale_price"])
}

func TestAPI_RecordSale_InsufficientStock_Conflict(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/products", productBody("Whey 1kg", "WP-1000", 1))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/sales", map[string]any{
		"product_id": 1, "quantity": 5, "unit_price": "100.00",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_SalesTrend_InvalidDays_BadRequest(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/sales/trend?days=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_SalesTotals_EmptyWindow_Zeroes(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/sales/totals", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	totals := decodeBody[map[string]any](t, rec)
	assert.Equal(t, float64(0), totals["total_units"])
}

// =============================================================================
// CASH ENDPOINT TESTS
// =============================================================================

func TestAPI_CashSummary_CombinesSalesAndCash(t *testing.T) {
	// GIVEN: A 100.00 sale, 50.00 extra income, 30.00 expense
	// WHEN: Reading the cash summary
	// THEN: income 150.00, expense 30.00, balance 120.00

	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/products", productBody("Whey 1kg", "WP-1000", 10))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/sales", map[string]any{
		"product_id": 1, "quantity": 1, "unit_price": "100.00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/cash/movements", map[string]any{
		"movement_type": "ingreso", "amount": "50.00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/cash/movements", map[string]any{
		"movement_type": "egreso", "amount": "30.00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/cash/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	summary := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "150.00", summary["total_income"])
	assert.Equal(t, "30.00", summary["total_expense"])
	assert.Equal(t, "120.00", summary["balance"])
}

// =============================================================================
// REPORT ENDPOINT TESTS
// =============================================================================

func TestAPI_ExportAllReports(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/products", productBody("Whey 1kg", "WP-1000", 10))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/reports/all", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[map[string]any](t, rec)
	artifacts := resp["artifacts"].([]any)
	assert.Len(t, artifacts, 6)
	assert.Nil(t, resp["failed"])
}

func TestAPI_ExportUnknownKind_NotFound(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/reports/nonsense", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
