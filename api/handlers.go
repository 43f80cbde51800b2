/*
handlers.go - HTTP API handlers for the inventory engine

PURPOSE:
  Exposes the inventory ledger and sales analytics engine via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Products:
    GET    /api/products               List products (+ derived stock)
    POST   /api/products               Create product
    GET    /api/products/{id}          Get product details
    PUT    /api/products/{id}          Update product
    DELETE /api/products/{id}          Delete product (fails when referenced)

  Stock:
    GET    /api/stock/balances         Current balance per product
    GET    /api/stock/movements        Recent movements (?limit, default 100)
    POST   /api/stock/movements        Append a movement

  Sales:
    GET    /api/sales                  Recent sales (?limit, default 100)
    POST   /api/sales                  Record a sale
    GET    /api/sales/by-product       Per-product aggregation
    GET    /api/sales/trend            Daily trend series (?days)
    GET    /api/sales/totals           Window totals

  Cash:
    GET    /api/cash/movements         Recent cash movements
    POST   /api/cash/movements         Record a cash movement
    GET    /api/cash/summary           Income/expense/balance summary

  Reports:
    POST   /api/reports/all            Export every kind (partial failure ok)
    POST   /api/reports/{kind}         Export one kind

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input shape (validator/v10 tags)
  3. Call domain logic (catalog, ledger, recorder, engine, exporter)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (duplicate SKU, insufficient stock, referenced product)
  - 500: Internal errors

SECURITY NOTE:
  No authentication middleware. All endpoints are public; the caller is
  trusted infrastructure (the desktop shell or an internal gateway).

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vitasport/inventory-engine/analytics"
	"github.com/vitasport/inventory-engine/inventory"
	"github.com/vitasport/inventory-engine/report"
)

// defaultListLimit bounds the recent-listing endpoints.
const defaultListLimit = 100

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    inventory.TxStore
	Catalog  *inventory.Catalog
	Ledger   *inventory.Ledger
	Recorder *inventory.SaleRecorder
	Engine   *analytics.Engine
	Exporter *report.Exporter
	Log      *logrus.Logger

	validate *validator.Validate
}

// NewHandler creates a handler over one store. The ledger and engine are
// shared with the exporter so every surface derives from the same instances.
func NewHandler(store inventory.TxStore, ledger *inventory.Ledger, engine *analytics.Engine, exporter *report.Exporter, log *logrus.Logger) *Handler {
	return &Handler{
		Store:    store,
		Catalog:  inventory.NewCatalog(store, ledger),
		Ledger:   ledger,
		Recorder: inventory.NewSaleRecorder(store, ledger),
		Engine:   engine,
		Exporter: exporter,
		Log:      log,
		validate: validator.New(),
	}
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

// ListProducts returns all products with their derived stock.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Catalog.ListProducts(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list products", err)
		return
	}
	balances, err := h.Ledger.BalancesForAll(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to derive balances", err)
		return
	}

	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p, balances[p.ID])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetProduct returns a single product with its derived stock.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	p, err := h.Catalog.GetProduct(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get product", err)
		return
	}
	balance, err := h.Ledger.BalanceOf(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to derive balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(*p, balance))
}

// CreateProduct creates a product. max_stock > 0 seeds an initial ingress
// movement in the same transaction.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := toProduct(req)
	if err != nil {
		h.writeDomainError(w, "Invalid product", err)
		return
	}
	id, err := h.Catalog.AddProduct(r.Context(), p)
	if err != nil {
		h.writeDomainError(w, "Failed to create product", err)
		return
	}

	p.ID = id
	writeJSON(w, http.StatusCreated, toProductDTO(p, p.MaxStock))
}

// UpdateProduct replaces a product's master data.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req ProductRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := toProduct(req)
	if err != nil {
		h.writeDomainError(w, "Invalid product", err)
		return
	}
	p.ID = id
	if err := h.Catalog.UpdateProduct(r.Context(), p); err != nil {
		h.writeDomainError(w, "Failed to update product", err)
		return
	}

	balance, err := h.Ledger.BalanceOf(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to derive balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p, balance))
}

// DeleteProduct removes a product. Fails with 409 when the ledger
// references it.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.Catalog.DeleteProduct(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// STOCK HANDLERS
// =============================================================================

// GetStockBalances returns the current balance of every product with
// ledger entries.
func (h *Handler) GetStockBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.Ledger.BalancesForAll(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to derive balances", err)
		return
	}

	dtos := make([]BalanceDTO, 0, len(balances))
	for productID, stock := range balances {
		dtos = append(dtos, BalanceDTO{ProductID: productID, CurrentStock: stock})
	}
	sortBalances(dtos)
	writeJSON(w, http.StatusOK, dtos)
}

// ListStockMovements returns the most recent movements, newest first.
func (h *Handler) ListStockMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := h.Ledger.Recent(r.Context(), queryLimit(r))
	if err != nil {
		h.writeDomainError(w, "Failed to list movements", err)
		return
	}

	dtos := make([]MovementDTO, len(movements))
	for i, m := range movements {
		dtos[i] = toMovementDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AddStockMovement appends one movement to the ledger.
func (h *Handler) AddStockMovement(w http.ResponseWriter, r *http.Request) {
	var req MovementRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.Ledger.Append(r.Context(), inventory.Movement{
		ProductID: req.ProductID,
		Type:      inventory.MovementType(req.Type),
		Quantity:  req.Quantity,
		Note:      req.Note,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to append movement", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// =============================================================================
// SALES HANDLERS
// =============================================================================

// ListSales returns the most recent sales, newest first.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.Store.RecentSales(r.Context(), queryLimit(r))
	if err != nil {
		h.writeDomainError(w, "Failed to list sales", err)
		return
	}

	dtos := make([]SaleDTO, len(sales))
	for i, s := range sales {
		dtos[i] = toSaleDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSale records a sale atomically with its egress movement.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req SaleRequest
	if !h.decode(w, r, &req) {
		return
	}

	unitPrice, err := decimal.NewFromString(req.UnitPrice)
	if err != nil {
		h.writeDomainError(w, "Invalid sale", &inventory.ValidationError{Field: "unit_price", Reason: "must be a decimal number"})
		return
	}
	discount := decimal.Zero
	if req.DiscountPct != "" {
		discount, err = decimal.NewFromString(req.DiscountPct)
		if err != nil {
			h.writeDomainError(w, "Invalid sale", &inventory.ValidationError{Field: "discount", Reason: "must be a decimal number"})
			return
		}
	}
	var saleDate time.Time
	if req.SaleDate != "" {
		saleDate, _ = time.Parse("2006-01-02", req.SaleDate)
	}

	id, err := h.Recorder.RecordSale(r.Context(), inventory.SaleRequest{
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
		UnitPrice:   unitPrice,
		DiscountPct: discount,
		Channel:     req.Channel,
		SaleDate:    saleDate,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to record sale", err)
		return
	}
	writeJSON(w, http.StatusCreated, SaleCreatedDTO{ID: id})
}

// SalesByProduct returns the per-product aggregation for a window.
// Query: start_date, end_date, category, order_by (revenue|qty), limit.
func (h *Handler) SalesByProduct(w http.ResponseWriter, r *http.Request) {
	window, err := queryWindow(r)
	if err != nil {
		h.writeDomainError(w, "Invalid window", err)
		return
	}

	orderBy := analytics.OrderByRevenue
	if r.URL.Query().Get("order_by") == string(analytics.OrderByQty) {
		orderBy = analytics.OrderByQty
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	rows, err := h.Engine.SalesByProduct(r.Context(), window, orderBy, limit)
	if err != nil {
		h.writeDomainError(w, "Failed to aggregate sales", err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// SalesTrend returns the gap-filled daily series for the last ?days days.
func (h *Handler) SalesTrend(w http.ResponseWriter, r *http.Request) {
	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.writeDomainError(w, "Invalid days", &inventory.ValidationError{Field: "days", Reason: "must be an integer"})
			return
		}
		days = parsed
	}

	series, err := h.Engine.SalesTrend(r.Context(), days)
	if err != nil {
		h.writeDomainError(w, "Failed to compute trend", err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// SalesTotals returns total units and revenue for a window.
func (h *Handler) SalesTotals(w http.ResponseWriter, r *http.Request) {
	window, err := queryWindow(r)
	if err != nil {
		h.writeDomainError(w, "Invalid window", err)
		return
	}

	totals, err := h.Engine.SalesTotals(r.Context(), window)
	if err != nil {
		h.writeDomainError(w, "Failed to compute totals", err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// =============================================================================
// CASH HANDLERS
// =============================================================================

// ListCashMovements returns the most recent cash movements, newest first.
func (h *Handler) ListCashMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := h.Store.RecentCashMovements(r.Context(), queryLimit(r))
	if err != nil {
		h.writeDomainError(w, "Failed to list cash movements", err)
		return
	}

	dtos := make([]CashMovementDTO, len(movements))
	for i, m := range movements {
		dtos[i] = toCashMovementDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AddCashMovement records one income or expense entry.
func (h *Handler) AddCashMovement(w http.ResponseWriter, r *http.Request) {
	var req CashMovementRequest
	if !h.decode(w, r, &req) {
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		h.writeDomainError(w, "Invalid cash movement", &inventory.ValidationError{Field: "amount", Reason: "must be a decimal number"})
		return
	}
	if !amount.IsPositive() {
		h.writeDomainError(w, "Invalid cash movement", &inventory.ValidationError{Field: "amount", Reason: "must be positive"})
		return
	}
	movementDate := time.Now().UTC()
	if req.MovementDate != "" {
		movementDate, _ = time.Parse("2006-01-02", req.MovementDate)
	}

	id, err := h.Store.InsertCashMovement(r.Context(), inventory.CashMovement{
		Type:         inventory.MovementType(req.Type),
		Amount:       amount,
		Category:     req.Category,
		Description:  req.Description,
		MovementDate: movementDate,
		CreatedBy:    req.CreatedBy,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to record cash movement", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// CashSummary returns total income (sales revenue + cash income), total
// expense and the resulting balance for a window.
func (h *Handler) CashSummary(w http.ResponseWriter, r *http.Request) {
	window, err := queryWindow(r)
	if err != nil {
		h.writeDomainError(w, "Invalid window", err)
		return
	}

	totals, err := h.Engine.SalesTotals(r.Context(), window)
	if err != nil {
		h.writeDomainError(w, "Failed to compute totals", err)
		return
	}
	cash, err := h.Store.CashMovementsInWindow(r.Context(), window)
	if err != nil {
		h.writeDomainError(w, "Failed to load cash movements", err)
		return
	}

	income := totals.TotalRevenue
	expense := decimal.Zero
	for _, m := range cash {
		switch m.Type {
		case inventory.MovementIngress:
			income = income.Add(m.Amount)
		case inventory.MovementEgress:
			expense = expense.Add(m.Amount)
		}
	}
	writeJSON(w, http.StatusOK, CashSummaryDTO{
		TotalIncome:  income.StringFixed(2),
		TotalExpense: expense.StringFixed(2),
		Balance:      income.Sub(expense).StringFixed(2),
	})
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// ExportReport generates one report kind.
// POST /api/reports/{kind}?start_date=...&end_date=...
func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	kind := report.Kind(chi.URLParam(r, "kind"))
	window, err := queryWindow(r)
	if err != nil {
		h.writeDomainError(w, "Invalid window", err)
		return
	}

	artifact, err := h.Exporter.Export(r.Context(), kind, window)
	if err != nil {
		if errors.Is(err, report.ErrUnknownKind) {
			writeError(w, http.StatusNotFound, "Unknown report kind", err)
			return
		}
		h.writeDomainError(w, "Failed to export report", err)
		return
	}
	writeJSON(w, http.StatusCreated, toArtifactDTO(artifact))
}

// ExportAllReports generates every kind over full history. A failing kind
// does not abort the rest; failures are reported per kind.
func (h *Handler) ExportAllReports(w http.ResponseWriter, r *http.Request) {
	artifacts, err := h.Exporter.ExportAll(r.Context())

	resp := ExportAllResponse{Artifacts: make([]ArtifactDTO, len(artifacts))}
	for i, a := range artifacts {
		resp.Artifacts[i] = toArtifactDTO(a)
	}

	if err != nil {
		var partial *report.PartialExportError
		if !errors.As(err, &partial) {
			h.writeDomainError(w, "Failed to export reports", err)
			return
		}
		resp.Failed = make(map[string]string, len(partial.Failed))
		for kind, kindErr := range partial.Failed {
			resp.Failed[string(kind)] = kindErr.Error()
		}
		h.Log.WithField("failed", resp.Failed).Warn("partial report export")
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// REQUEST PARSING HELPERS
// =============================================================================

// decode parses the JSON body and validates its shape. Writes the error
// response itself and returns false when the request is unusable.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return 0, false
	}
	return id, true
}

// queryWindow reads start_date/end_date/category query parameters.
func queryWindow(r *http.Request) (inventory.Window, error) {
	var window inventory.Window
	q := r.URL.Query()

	if raw := q.Get("start_date"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return inventory.Window{}, &inventory.ValidationError{Field: "start_date", Reason: "must be YYYY-MM-DD"}
		}
		window.Start = &t
	}
	if raw := q.Get("end_date"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return inventory.Window{}, &inventory.ValidationError{Field: "end_date", Reason: "must be YYYY-MM-DD"}
		}
		window.End = &t
	}
	window.Category = q.Get("category")
	return window, nil
}

func queryLimit(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			return limit
		}
	}
	return defaultListLimit
}

func sortBalances(dtos []BalanceDTO) {
	sort.Slice(dtos, func(i, j int) bool { return dtos[i].ProductID < dtos[j].ProductID })
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case inventory.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, inventory.ErrInsufficientStock) || inventory.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case inventory.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Log.WithError(err).Error(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
