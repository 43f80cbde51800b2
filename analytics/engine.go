/*
Package analytics answers time-windowed queries over sales history.

PURPOSE:
  The Engine is the single source of truth for sales aggregation. Dashboard
  widgets and report exports both consume it, so the numbers displayed and
  the numbers exported can never drift apart.

QUERIES:
  SalesByProduct: group sales in a window by product, sum quantity and
                  revenue, sort descending by revenue or quantity
  SalesTrend:     one entry per calendar day for the last N days, gap-filled
                  with zero entries so callers can render a continuous axis
  SalesTotals:    total units and revenue for a window

CROSS-CONSISTENCY:
  For any window, the sum of SalesByProduct revenue over ALL products equals
  SalesTotals revenue. Both are folds over the same sale set.

STATELESSNESS:
  The Engine holds no state of its own; every answer is derived from the
  stores at call time.

SEE ALSO:
  - inventory/store.go: Source interfaces
  - report: Exporters consuming this engine
*/
package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vitasport/inventory-engine/inventory"
)

// =============================================================================
// ENGINE
// =============================================================================

// Source is the read surface the engine needs.
type Source interface {
	SalesInWindow(ctx context.Context, w inventory.Window) ([]inventory.Sale, error)
	ListProducts(ctx context.Context) ([]inventory.Product, error)
}

// Engine aggregates sales history. Stateless relative to the stores.
type Engine struct {
	source Source
	now    func() time.Time
}

// NewEngine creates an engine over the given source.
func NewEngine(source Source) *Engine {
	return &Engine{
		source: source,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// OrderBy selects the sort key for SalesByProduct.
type OrderBy string

const (
	OrderByRevenue OrderBy = "revenue"
	OrderByQty     OrderBy = "qty"
)

// ProductSales is one row of the by-product aggregation.
type ProductSales struct {
	ProductID    int64           `json:"product_id"`
	Name         string          `json:"name"`
	TotalQty     int64           `json:"total_qty"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

// TrendPoint is one calendar day of the trend series.
type TrendPoint struct {
	Date         string          `json:"date"` // YYYY-MM-DD
	SalesCount   int64           `json:"sales_count"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

// Totals sums a window of sales. Zero values when nothing matches.
type Totals struct {
	TotalUnits   int64           `json:"total_units"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
}

// =============================================================================
// SALES BY PRODUCT
// =============================================================================

// SalesByProduct groups the window's sales by product, sums quantity and
// revenue, and returns rows sorted descending by the requested key.
// Ties break by ascending product id for determinism. limit <= 0 means
// no truncation.
func (e *Engine) SalesByProduct(ctx context.Context, w inventory.Window, orderBy OrderBy, limit int) ([]ProductSales, error) {
	sales, products, err := e.windowSales(ctx, w)
	if err != nil {
		return nil, err
	}

	grouped := make(map[int64]*ProductSales)
	for _, s := range sales {
		row, ok := grouped[s.ProductID]
		if !ok {
			row = &ProductSales{ProductID: s.ProductID, TotalRevenue: decimal.Zero}
			if p, found := products[s.ProductID]; found {
				row.Name = p.Name
			}
			grouped[s.ProductID] = row
		}
		row.TotalQty += s.Quantity
		row.TotalRevenue = row.TotalRevenue.Add(s.SalePrice)
	}

	rows := make([]ProductSales, 0, len(grouped))
	for _, row := range grouped {
		rows = append(rows, *row)
	}

	sort.Slice(rows, func(i, j int) bool {
		var cmp int
		if orderBy == OrderByQty {
			switch {
			case rows[i].TotalQty > rows[j].TotalQty:
				cmp = 1
			case rows[i].TotalQty < rows[j].TotalQty:
				cmp = -1
			}
		} else {
			cmp = rows[i].TotalRevenue.Cmp(rows[j].TotalRevenue)
		}
		if cmp != 0 {
			return cmp > 0
		}
		return rows[i].ProductID < rows[j].ProductID
	})

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// =============================================================================
// SALES TREND
// =============================================================================

// SalesTrend returns one entry per calendar day for the most recent `days`
// days ending today, in chronological order. Days with no sales appear as
// zero entries; the series is never sparse.
func (e *Engine) SalesTrend(ctx context.Context, days int) ([]TrendPoint, error) {
	if days <= 0 {
		return nil, &inventory.ValidationError{Field: "days", Reason: "must be positive"}
	}

	today := inventory.DateOnly(e.now())
	start := today.AddDate(0, 0, -(days - 1))

	sales, err := e.source.SalesInWindow(ctx, inventory.Window{Start: &start, End: &today})
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]*TrendPoint)
	for _, s := range sales {
		day := inventory.DateOnly(s.SaleDate).Format("2006-01-02")
		point, ok := byDay[day]
		if !ok {
			point = &TrendPoint{Date: day, TotalRevenue: decimal.Zero}
			byDay[day] = point
		}
		point.SalesCount++
		point.TotalRevenue = point.TotalRevenue.Add(s.SalePrice)
	}

	series := make([]TrendPoint, 0, days)
	for d := start; !d.After(today); d = d.AddDate(0, 0, 1) {
		day := d.Format("2006-01-02")
		if point, ok := byDay[day]; ok {
			series = append(series, *point)
		} else {
			series = append(series, TrendPoint{Date: day, TotalRevenue: decimal.Zero})
		}
	}
	return series, nil
}

// =============================================================================
// SALES TOTALS
// =============================================================================

// SalesTotals sums units and revenue across the window. Returns zero values
// (never an error) when nothing matches.
func (e *Engine) SalesTotals(ctx context.Context, w inventory.Window) (Totals, error) {
	sales, _, err := e.windowSales(ctx, w)
	if err != nil {
		return Totals{}, err
	}

	totals := Totals{TotalRevenue: decimal.Zero}
	for _, s := range sales {
		totals.TotalUnits += s.Quantity
		totals.TotalRevenue = totals.TotalRevenue.Add(s.SalePrice)
	}
	return totals, nil
}

// =============================================================================
// INTERNAL
// =============================================================================

// windowSales loads the window's sales with the category filter applied
// (resolved via the product's catalog category) plus a product lookup map.
func (e *Engine) windowSales(ctx context.Context, w inventory.Window) ([]inventory.Sale, map[int64]inventory.Product, error) {
	sales, err := e.source.SalesInWindow(ctx, w)
	if err != nil {
		return nil, nil, err
	}
	list, err := e.source.ListProducts(ctx)
	if err != nil {
		return nil, nil, err
	}
	products := make(map[int64]inventory.Product, len(list))
	for _, p := range list {
		products[p.ID] = p
	}

	if w.Category == "" {
		return sales, products, nil
	}
	filtered := sales[:0:0]
	for _, s := range sales {
		if p, ok := products[s.ProductID]; ok && p.Category == w.Category {
			filtered = append(filtered, s)
		}
	}
	return filtered, products, nil
}
