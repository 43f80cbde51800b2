/*
Package inventory provides the core inventory ledger and sales engine.

PURPOSE:
  This package contains the domain types and algorithms for tracking product
  stock as a derived quantity. Stock is never a mutable counter: every change
  is an immutable movement in an append-only ledger, and the current balance
  is always computed by folding that ledger.

KEY CONCEPTS IN THIS FILE (types.go):
  - Product: catalog master data (identity, pricing, thresholds, status)
  - Movement: an immutable ledger entry (ingress = stock in, egress = stock out)
  - Sale: a committed sales transaction, always paired with one egress movement
  - CashMovement: free-form income/expense entry for the financial summary
  - Window: a date range (and optional category) scoping analytics queries

DESIGN PRINCIPLES:
  1. Immutability: Movements are never modified, corrections are new movements
  2. Precision: Uses decimal.Decimal for money to avoid floating-point errors
  3. Derivation: Balance is a fold over movements, never an independent field
  4. Atomicity: A sale and its egress movement are created as one unit

SEE ALSO:
  - ledger.go: Append-only movement ledger and derived balances
  - sales.go: Atomic sale recording
  - catalog.go: Product master data operations
  - store.go: Persistence interfaces
*/
package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PRODUCT - Catalog master data
// =============================================================================

// Status is a product lifecycle state.
type Status string

const (
	StatusActive       Status = "Activo"
	StatusInactive     Status = "Inactivo"
	StatusDiscontinued Status = "Descontinuado"
)

// Product is catalog master data. It is mutated independently of the ledger;
// the ledger only references it by id.
type Product struct {
	ID           int64           `json:"id"`
	SKU          string          `json:"sku,omitempty"` // unique when set
	Name         string          `json:"name"`
	SalePrice    decimal.Decimal `json:"sale_price"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	Brand        string          `json:"brand,omitempty"`
	Category     string          `json:"category,omitempty"`
	Presentation string          `json:"presentation,omitempty"`
	Flavor       string          `json:"flavor,omitempty"`
	Weight       string          `json:"weight,omitempty"`
	ImagePath    string          `json:"image_path,omitempty"`
	ExpiryDate   string          `json:"expiry_date,omitempty"` // YYYY-MM-DD, informational
	LotNumber    string          `json:"lot_number,omitempty"`
	MinStock     int64           `json:"min_stock"`
	MaxStock     int64           `json:"max_stock"`
	Location     string          `json:"location,omitempty"`
	Status       Status          `json:"status,omitempty"`
}

// =============================================================================
// MOVEMENT - One immutable ledger entry
// =============================================================================

// MovementType encodes the sign of a movement. Quantity stays positive;
// the type decides whether it adds to or subtracts from stock.
type MovementType string

const (
	// MovementIngress adds stock. The wire vocabulary is Spanish ("ingreso")
	// for compatibility with existing callers and exported report files.
	MovementIngress MovementType = "ingreso"
	// MovementEgress removes stock.
	MovementEgress MovementType = "egreso"
)

// Valid reports whether t is one of the two known movement types.
func (t MovementType) Valid() bool {
	return t == MovementIngress || t == MovementEgress
}

// Movement is one entry in the append-only stock ledger.
//
// INVARIANTS:
//   - Quantity > 0 (the sign lives in Type, preventing silent sign flips)
//   - Never updated or deleted after creation
type Movement struct {
	ID        int64        `json:"id"`
	ProductID int64        `json:"product_id"`
	Type      MovementType `json:"movement_type"`
	Quantity  int64        `json:"quantity"`
	Note      string       `json:"note,omitempty"`
	CreatedBy string       `json:"created_by,omitempty"`
	// Reference links the movement to the record that caused it
	// (e.g. the sale it was created with).
	Reference string `json:"reference,omitempty"`
	// IdempotencyKey rejects duplicate appends from retries when set.
	IdempotencyKey string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// Delta returns the signed stock effect of the movement.
func (m Movement) Delta() int64 {
	if m.Type == MovementEgress {
		return -m.Quantity
	}
	return m.Quantity
}

// =============================================================================
// SALE - A committed sales transaction
// =============================================================================

// Sale is a recorded sales transaction. SalePrice is the final total,
// already net of discount; DiscountPct is kept for reporting only.
type Sale struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	Quantity    int64           `json:"quantity"`
	SalePrice   decimal.Decimal `json:"sale_price"`
	DiscountPct decimal.Decimal `json:"discount,omitempty"`
	Channel     string          `json:"channel,omitempty"`
	SaleDate    time.Time       `json:"sale_date"`
	CreatedBy   string          `json:"created_by,omitempty"`
	// Reference is shared with the egress movement created in the same unit.
	Reference string `json:"reference,omitempty"`
}

// =============================================================================
// CASH MOVEMENT - Income/expense outside of sales
// =============================================================================

// CashMovement is a free-form income ("ingreso") or expense ("egreso") entry.
// Sales revenue is NOT recorded here; the financial summary combines both.
type CashMovement struct {
	ID           int64           `json:"id"`
	Type         MovementType    `json:"movement_type"`
	Amount       decimal.Decimal `json:"amount"`
	Category     string          `json:"category,omitempty"`
	Description  string          `json:"description,omitempty"`
	MovementDate time.Time       `json:"movement_date"`
	CreatedBy    string          `json:"created_by,omitempty"`
}

// CashSummary aggregates cash flow. TotalIncome includes sales revenue.
type CashSummary struct {
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	Balance      decimal.Decimal `json:"balance"`
}

// =============================================================================
// WINDOW - Date range scoping analytics queries
// =============================================================================

// Window scopes a query to [Start, End] by calendar date, inclusive on both
// ends. A nil bound means unbounded in that direction. Category filters by
// the product's catalog category when non-empty.
type Window struct {
	Start    *time.Time
	End      *time.Time
	Category string
}

// Contains reports whether the calendar date of t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	day := DateOnly(t)
	if w.Start != nil && day.Before(DateOnly(*w.Start)) {
		return false
	}
	if w.End != nil && day.After(DateOnly(*w.End)) {
		return false
	}
	return true
}

// DateOnly truncates t to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// MONEY HELPERS
// =============================================================================

var oneHundred = decimal.NewFromInt(100)

// ClampDiscount forces a discount percentage into [0, 100].
// Out-of-range values are clamped, not rejected: max(0, min(100, v)).
func ClampDiscount(pct decimal.Decimal) decimal.Decimal {
	if pct.IsNegative() {
		return decimal.Zero
	}
	if pct.GreaterThan(oneHundred) {
		return oneHundred
	}
	return pct
}

// SaleTotal computes the final sale total:
//
//	total = round(max(0, unit_price × quantity × (1 − discount/100)))
//
// Rounding is half-away-from-zero to the currency's minor unit, applied once
// to the final total so rounding error never compounds across quantity.
func SaleTotal(unitPrice decimal.Decimal, quantity int64, discountPct decimal.Decimal) decimal.Decimal {
	d := ClampDiscount(discountPct)
	subtotal := unitPrice.Mul(decimal.NewFromInt(quantity))
	total := subtotal.Mul(oneHundred.Sub(d)).Div(oneHundred)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return total.Round(2)
}
