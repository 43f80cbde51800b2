/*
sales.go - Atomic sale recording

PURPOSE:
  Records a sale as ONE atomic unit: a sales-transaction row plus one egress
  movement of the same quantity for the same product. The two records share a
  reference id and can never exist independently of each other.

TOTAL COMPUTATION:
  subtotal = unit_price × quantity
  total    = round(max(0, subtotal × (1 − discount/100)))

  Rounding is half-away-from-zero, applied once to the final total (not per
  unit), so rounding error never compounds across quantity. Out-of-range
  discounts are clamped to [0,100], not rejected - the single documented
  coercion in this engine.

STOCK ENFORCEMENT:
  The resulting balance may never go negative. The check runs under the
  product's write lock, so two concurrent sales against the same product
  cannot both pass against a stale balance: exactly enough succeed to
  exhaust stock, the rest fail with ErrInsufficientStock.

ATOMICITY:
  Both writes happen inside a single store transaction (TxStore.WithTx).
  A failure between the two writes rolls back the whole unit; no orphaned
  sale or movement is ever observable.

SEE ALSO:
  - ledger.go: Per-product locking and balance derivation
  - store.go: TxStore interface
*/
package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// SALE RECORDER
// =============================================================================

// SaleRequest is the input to RecordSale. UnitPrice is the gross price per
// unit; the recorder computes and stores the discounted total.
type SaleRequest struct {
	ProductID   int64
	Quantity    int64
	UnitPrice   decimal.Decimal
	DiscountPct decimal.Decimal
	Channel     string
	SaleDate    time.Time // zero value means "now"
	CreatedBy   string
}

// SaleRecorder validates and commits sales.
type SaleRecorder struct {
	store   TxStore
	ledger  *Ledger
	catalog CatalogStore
	now     func() time.Time
}

// NewSaleRecorder creates a recorder. The ledger must be backed by the same
// store so balance caching and locking stay consistent with the writes.
func NewSaleRecorder(store TxStore, ledger *Ledger) *SaleRecorder {
	return &SaleRecorder{
		store:   store,
		ledger:  ledger,
		catalog: store,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RecordSale atomically creates one sale and one egress movement.
// Returns the new sale's id.
//
// Failure modes:
//   - ValidationError: quantity <= 0, negative unit price, unknown product
//   - InsufficientStockError: the egress would drive the balance negative
//   - StorageError: the underlying store failed; nothing was written
func (r *SaleRecorder) RecordSale(ctx context.Context, req SaleRequest) (int64, error) {
	if req.Quantity <= 0 {
		return 0, &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if req.UnitPrice.IsNegative() {
		return 0, &ValidationError{Field: "unit_price", Reason: "must not be negative"}
	}

	product, err := r.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return 0, err
	}
	if product == nil {
		return 0, &ValidationError{Field: "product_id", Reason: "unknown product"}
	}

	saleDate := req.SaleDate
	if saleDate.IsZero() {
		saleDate = r.now()
	}
	discount := ClampDiscount(req.DiscountPct)
	total := SaleTotal(req.UnitPrice, req.Quantity, discount)

	// Serialize the check-then-act against all other writes for this product.
	lock := r.ledger.productLock(req.ProductID)
	lock.Lock()
	defer lock.Unlock()

	balance, err := r.ledger.balanceLocked(ctx, req.ProductID)
	if err != nil {
		return 0, err
	}
	if req.Quantity > balance {
		return 0, &InsufficientStockError{
			ProductID: req.ProductID,
			Available: balance,
			Requested: req.Quantity,
		}
	}

	// One reference ties the sale to its movement. Either both records are
	// committed or neither is.
	ref := uuid.NewString()
	createdAt := r.now()

	var saleID int64
	err = r.store.WithTx(ctx, func(s Store) error {
		var txErr error
		saleID, txErr = s.InsertSale(ctx, Sale{
			ProductID:   req.ProductID,
			Quantity:    req.Quantity,
			SalePrice:   total,
			DiscountPct: discount,
			Channel:     req.Channel,
			SaleDate:    saleDate,
			CreatedBy:   req.CreatedBy,
			Reference:   ref,
		})
		if txErr != nil {
			return txErr
		}
		_, txErr = s.AppendMovement(ctx, Movement{
			ProductID:      req.ProductID,
			Type:           MovementEgress,
			Quantity:       req.Quantity,
			Note:           "venta",
			CreatedBy:      req.CreatedBy,
			Reference:      ref,
			IdempotencyKey: ref,
			CreatedAt:      createdAt,
		})
		return txErr
	})
	if err != nil {
		return 0, err
	}

	// Drop the materialized balance before returning; the next read
	// re-derives it from the ledger.
	r.ledger.invalidate(req.ProductID)
	return saleID, nil
}
