/*
Package report renders analytics and catalog snapshots into CSV files.

PURPOSE:
  Each report kind is a deterministic tabular rendering of one query:
  a stable column order, a header row naming the query's output fields,
  and one record per row. Artifacts are plain delimited text so any
  spreadsheet or script can re-read them.

REPORT KINDS:
  sales           Every sale in the window, newest first
  inventory       Catalog snapshot + derived current stock + margin
  top_products    Top 50 products by revenue over full history
  profitability   Revenue/cost/margin per product (all products)
  stock_movements Full movement ledger, newest first
  financial       Income/expense summary (sales + cash movements)

SINGLE SOURCE OF TRUTH:
  Aggregated kinds consume the analytics engine rather than re-querying,
  so exported numbers always match what the dashboard displays.

PARTIAL FAILURE:
  ExportAll runs every kind and never aborts on the first error. It
  returns the successful artifacts plus a PartialExportError naming each
  failed kind and its reason.

SEE ALSO:
  - analytics: Aggregation queries consumed here
  - inventory/ledger.go: Balance derivation for the inventory report
*/
package report

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vitasport/inventory-engine/analytics"
	"github.com/vitasport/inventory-engine/inventory"
)

// =============================================================================
// KINDS AND ARTIFACTS
// =============================================================================

// Kind identifies a report type.
type Kind string

const (
	KindSales          Kind = "sales"
	KindInventory      Kind = "inventory"
	KindTopProducts    Kind = "top_products"
	KindProfitability  Kind = "profitability"
	KindStockMovements Kind = "stock_movements"
	KindFinancial      Kind = "financial"
)

// AllKinds lists every report kind in export order.
var AllKinds = []Kind{
	KindInventory,
	KindSales,
	KindTopProducts,
	KindStockMovements,
	KindProfitability,
	KindFinancial,
}

// ErrUnknownKind is returned for a kind outside AllKinds.
var ErrUnknownKind = errors.New("unknown report kind")

// Artifact is a generated report file. Immutable once written.
type Artifact struct {
	Kind        Kind      `json:"kind"`
	Path        string    `json:"path"`
	GeneratedAt time.Time `json:"generated_at"`
}

// PartialExportError reports that one or more kinds failed during a bulk
// export. The successful artifacts are still returned alongside it.
type PartialExportError struct {
	Failed map[Kind]error
}

func (e *PartialExportError) Error() string {
	kinds := make([]string, 0, len(e.Failed))
	for k := range e.Failed {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	return fmt.Sprintf("export failed for kinds: %s", strings.Join(kinds, ", "))
}

// =============================================================================
// EXPORTER
// =============================================================================

// Exporter writes report artifacts into a directory.
type Exporter struct {
	store  inventory.Store
	engine *analytics.Engine
	ledger *inventory.Ledger
	dir    string
	now    func() time.Time
}

// NewExporter creates an exporter writing into dir (created on demand).
func NewExporter(store inventory.Store, engine *analytics.Engine, ledger *inventory.Ledger, dir string) *Exporter {
	return &Exporter{
		store:  store,
		engine: engine,
		ledger: ledger,
		dir:    dir,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Export renders one report kind. The window scopes the sales and financial
// kinds; the others always cover full history.
func (e *Exporter) Export(ctx context.Context, kind Kind, w inventory.Window) (Artifact, error) {
	var (
		header []string
		rows   [][]string
		err    error
	)

	switch kind {
	case KindSales:
		header, rows, err = e.salesRows(ctx, w)
	case KindInventory:
		header, rows, err = e.inventoryRows(ctx)
	case KindTopProducts:
		header, rows, err = e.topProductsRows(ctx)
	case KindProfitability:
		header, rows, err = e.profitabilityRows(ctx)
	case KindStockMovements:
		header, rows, err = e.stockMovementsRows(ctx)
	case KindFinancial:
		header, rows, err = e.financialRows(ctx, w)
	default:
		return Artifact{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err != nil {
		return Artifact{}, err
	}

	generatedAt := e.now()
	path := filepath.Join(e.dir, fmt.Sprintf("%s_report_%d.csv", kind, generatedAt.Unix()))
	if err := writeCSV(path, header, rows); err != nil {
		return Artifact{}, err
	}
	return Artifact{Kind: kind, Path: path, GeneratedAt: generatedAt}, nil
}

// ExportAll runs every kind with no window filter (full history). Kinds are
// read-only and independent, so they run concurrently. A failure in one kind
// does not prevent the others from completing: the successful artifacts are
// returned together with a PartialExportError naming the failures.
func (e *Exporter) ExportAll(ctx context.Context) ([]Artifact, error) {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		artifacts []Artifact
		failed    = make(map[Kind]error)
	)

	for _, kind := range AllKinds {
		wg.Add(1)
		go func(kind Kind) {
			defer wg.Done()
			artifact, err := e.Export(ctx, kind, inventory.Window{})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[kind] = err
				return
			}
			artifacts = append(artifacts, artifact)
		}(kind)
	}
	wg.Wait()

	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Kind < artifacts[j].Kind })
	if len(failed) > 0 {
		return artifacts, &PartialExportError{Failed: failed}
	}
	return artifacts, nil
}

// =============================================================================
// ROW RENDERERS - One per kind, stable column order
// =============================================================================

func (e *Exporter) salesRows(ctx context.Context, w inventory.Window) ([]string, [][]string, error) {
	header := []string{"id", "product_id", "quantity", "sale_price", "discount", "channel", "sale_date", "created_by"}

	sales, err := e.store.SalesInWindow(ctx, w)
	if err != nil {
		return nil, nil, err
	}
	rows := make([][]string, 0, len(sales))
	for _, s := range sales {
		rows = append(rows, []string{
			formatID(s.ID),
			formatID(s.ProductID),
			formatID(s.Quantity),
			s.SalePrice.StringFixed(2),
			s.DiscountPct.String(),
			s.Channel,
			s.SaleDate.UTC().Format("2006-01-02"),
			s.CreatedBy,
		})
	}
	return header, rows, nil
}

func (e *Exporter) inventoryRows(ctx context.Context) ([]string, [][]string, error) {
	header := []string{
		"id", "sku", "name", "sale_price", "cost_price", "brand", "category",
		"presentation", "flavor", "weight", "expiry_date", "lot_number",
		"min_stock", "max_stock", "location", "status", "current_stock", "margin_percent",
	}

	products, err := e.store.ListProducts(ctx)
	if err != nil {
		return nil, nil, err
	}
	balances, err := e.ledger.BalancesForAll(ctx)
	if err != nil {
		return nil, nil, err
	}

	rows := make([][]string, 0, len(products))
	for _, p := range products {
		rows = append(rows, []string{
			formatID(p.ID),
			p.SKU,
			p.Name,
			p.SalePrice.StringFixed(2),
			p.CostPrice.StringFixed(2),
			p.Brand,
			p.Category,
			p.Presentation,
			p.Flavor,
			p.Weight,
			p.ExpiryDate,
			p.LotNumber,
			formatID(p.MinStock),
			formatID(p.MaxStock),
			p.Location,
			string(p.Status),
			formatID(balances[p.ID]),
			marginPercent(p.SalePrice, p.CostPrice),
		})
	}
	return header, rows, nil
}

func (e *Exporter) topProductsRows(ctx context.Context) ([]string, [][]string, error) {
	header := []string{"product_id", "sku", "name", "category", "total_qty", "total_revenue"}

	top, err := e.engine.SalesByProduct(ctx, inventory.Window{}, analytics.OrderByRevenue, 50)
	if err != nil {
		return nil, nil, err
	}
	products, err := e.productIndex(ctx)
	if err != nil {
		return nil, nil, err
	}

	rows := make([][]string, 0, len(top))
	for _, row := range top {
		p := products[row.ProductID]
		rows = append(rows, []string{
			formatID(row.ProductID),
			p.SKU,
			row.Name,
			p.Category,
			formatID(row.TotalQty),
			row.TotalRevenue.StringFixed(2),
		})
	}
	return header, rows, nil
}

func (e *Exporter) profitabilityRows(ctx context.Context) ([]string, [][]string, error) {
	header := []string{
		"product_id", "sku", "name", "unit_cost", "total_qty_sold",
		"total_revenue", "estimated_total_cost", "gross_profit", "margin_percent",
	}

	products, err := e.store.ListProducts(ctx)
	if err != nil {
		return nil, nil, err
	}
	byProduct, err := e.engine.SalesByProduct(ctx, inventory.Window{}, analytics.OrderByRevenue, 0)
	if err != nil {
		return nil, nil, err
	}
	sold := make(map[int64]analytics.ProductSales, len(byProduct))
	for _, row := range byProduct {
		sold[row.ProductID] = row
	}

	// Every product appears, including never-sold ones with zero totals.
	type entry struct {
		product inventory.Product
		sales   analytics.ProductSales
	}
	entries := make([]entry, 0, len(products))
	for _, p := range products {
		s, ok := sold[p.ID]
		if !ok {
			s = analytics.ProductSales{ProductID: p.ID, Name: p.Name, TotalRevenue: decimal.Zero}
		}
		entries = append(entries, entry{product: p, sales: s})
	}
	sort.Slice(entries, func(i, j int) bool {
		cmp := entries[i].sales.TotalRevenue.Cmp(entries[j].sales.TotalRevenue)
		if cmp != 0 {
			return cmp > 0
		}
		return entries[i].product.ID < entries[j].product.ID
	})

	rows := make([][]string, 0, len(entries))
	for _, en := range entries {
		unitCost := en.product.CostPrice
		estimatedCost := unitCost.Mul(decimal.NewFromInt(en.sales.TotalQty))
		grossProfit := en.sales.TotalRevenue.Sub(estimatedCost)

		margin := ""
		if en.sales.TotalRevenue.IsPositive() {
			margin = grossProfit.Div(en.sales.TotalRevenue).Mul(decimal.NewFromInt(100)).Round(0).String()
		}

		rows = append(rows, []string{
			formatID(en.product.ID),
			en.product.SKU,
			en.product.Name,
			unitCost.StringFixed(2),
			formatID(en.sales.TotalQty),
			en.sales.TotalRevenue.StringFixed(2),
			estimatedCost.StringFixed(2),
			grossProfit.StringFixed(2),
			margin,
		})
	}
	return header, rows, nil
}

func (e *Exporter) stockMovementsRows(ctx context.Context) ([]string, [][]string, error) {
	header := []string{"id", "product_id", "type", "quantity", "note", "created_by", "created_at"}

	movements, err := e.store.RecentMovements(ctx, 0)
	if err != nil {
		return nil, nil, err
	}
	rows := make([][]string, 0, len(movements))
	for _, m := range movements {
		rows = append(rows, []string{
			formatID(m.ID),
			formatID(m.ProductID),
			string(m.Type),
			formatID(m.Quantity),
			m.Note,
			m.CreatedBy,
			m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return header, rows, nil
}

func (e *Exporter) financialRows(ctx context.Context, w inventory.Window) ([]string, [][]string, error) {
	header := []string{"type", "label", "amount"}

	totals, err := e.engine.SalesTotals(ctx, w)
	if err != nil {
		return nil, nil, err
	}
	cash, err := e.store.CashMovementsInWindow(ctx, w)
	if err != nil {
		return nil, nil, err
	}

	otherIncome := decimal.Zero
	expense := decimal.Zero
	for _, cm := range cash {
		switch cm.Type {
		case inventory.MovementIngress:
			otherIncome = otherIncome.Add(cm.Amount)
		case inventory.MovementEgress:
			expense = expense.Add(cm.Amount)
		}
	}
	totalIncome := totals.TotalRevenue.Add(otherIncome)
	balance := totalIncome.Sub(expense)

	rows := [][]string{
		{"income", "Ingresos por ventas", totals.TotalRevenue.StringFixed(2)},
		{"income", "Otros ingresos", otherIncome.StringFixed(2)},
		{"expense", "Gastos / Egresos", expense.StringFixed(2)},
		{"summary", "Total ingresos", totalIncome.StringFixed(2)},
		{"summary", "Balance", balance.StringFixed(2)},
	}
	return header, rows, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (e *Exporter) productIndex(ctx context.Context) (map[int64]inventory.Product, error) {
	list, err := e.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[int64]inventory.Product, len(list))
	for _, p := range list {
		index[p.ID] = p
	}
	return index, nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &inventory.StorageError{Op: "create report directory", Err: err}
	}
	f, err := os.Create(path)
	if err != nil {
		return &inventory.StorageError{Op: "create report file", Err: err}
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return &inventory.StorageError{Op: "write report header", Err: err}
	}
	if err := w.WriteAll(rows); err != nil {
		return &inventory.StorageError{Op: "write report rows", Err: err}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &inventory.StorageError{Op: "flush report", Err: err}
	}
	return f.Close()
}

func formatID(v int64) string {
	return fmt.Sprintf("%d", v)
}

// marginPercent renders round((sale-cost)/sale*100) or "" when either price
// is unset.
func marginPercent(sale, cost decimal.Decimal) string {
	if !sale.IsPositive() || !cost.IsPositive() {
		return ""
	}
	return sale.Sub(cost).Div(sale).Mul(decimal.NewFromInt(100)).Round(0).String()
}
