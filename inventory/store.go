/*
store.go - Persistence interfaces for the inventory engine

PURPOSE:
  Defines the interface between the domain logic and the database. The
  movement side of the Store keeps append-only semantics; catalog and cash
  records are ordinary mutable rows.

KEY INTERFACES:
  LedgerStore:  Movement persistence (append + ordered reads, no mutation)
  SaleStore:    Sales transaction persistence
  CatalogStore: Product master data
  CashStore:    Cash movement persistence
  Store:        All of the above
  TxStore:      Store + WithTx for atomic multi-record writes

APPEND-ONLY CONTRACT:
  LedgerStore has AppendMovement and reads. No update or delete method
  exists for movements - corrections are compensating movements.

ATOMIC WRITES:
  WithTx ensures all-or-nothing semantics. Recording a sale writes one
  sale row and one egress movement; either both are committed or neither
  is. Partial state is never observable.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - inventory/store: In-memory for testing

SEE ALSO:
  - ledger.go: Higher-level ledger using LedgerStore
  - sales.go: Uses TxStore for the two-record sale
*/
package inventory

import "context"

// =============================================================================
// LEDGER STORE - Append-only movement persistence
// =============================================================================

// LedgerStore persists stock movements.
// IMPORTANT: movements are APPEND-ONLY. No update, no delete. Ever.
type LedgerStore interface {
	// AppendMovement persists a movement and returns its id.
	// Fails with ErrDuplicateIdempotencyKey when the key already exists.
	// This is the ONLY write operation for movements.
	AppendMovement(ctx context.Context, m Movement) (int64, error)

	// MovementsFor returns all movements for a product, ordered by
	// creation time then insertion order. Finite and restartable.
	MovementsFor(ctx context.Context, productID int64) ([]Movement, error)

	// AllMovements returns every movement, ordered by creation time then
	// insertion order. Used for whole-inventory balance folds and exports.
	AllMovements(ctx context.Context) ([]Movement, error)

	// RecentMovements returns the newest movements first, at most limit.
	// limit <= 0 means no limit.
	RecentMovements(ctx context.Context, limit int) ([]Movement, error)

	// HasMovements reports whether any ledger entry references the product.
	HasMovements(ctx context.Context, productID int64) (bool, error)
}

// =============================================================================
// SALE STORE
// =============================================================================

// SaleStore persists sales transactions.
type SaleStore interface {
	// InsertSale persists a sale and returns its id.
	InsertSale(ctx context.Context, s Sale) (int64, error)

	// RecentSales returns the newest sales first, at most limit.
	RecentSales(ctx context.Context, limit int) ([]Sale, error)

	// SalesInWindow returns sales whose sale_date falls inside the window's
	// date bounds (category filtering is done by the caller against the
	// catalog). Ordered by sale_date descending, then id descending.
	SalesInWindow(ctx context.Context, w Window) ([]Sale, error)
}

// =============================================================================
// CATALOG STORE
// =============================================================================

// CatalogStore persists product master data.
type CatalogStore interface {
	// InsertProduct persists a product and returns its id.
	// Fails with ErrDuplicateSKU when the SKU is already taken.
	InsertProduct(ctx context.Context, p Product) (int64, error)

	// UpdateProduct replaces the stored product with the same id.
	// Fails with ErrProductNotFound when the id is unknown.
	UpdateProduct(ctx context.Context, p Product) error

	// DeleteProduct removes a product row. Reference checks against the
	// ledger are the caller's job (see Catalog.DeleteProduct).
	DeleteProduct(ctx context.Context, id int64) error

	// GetProduct returns the product or (nil, nil) when not found.
	GetProduct(ctx context.Context, id int64) (*Product, error)

	// ListProducts returns all products ordered by id.
	ListProducts(ctx context.Context) ([]Product, error)
}

// =============================================================================
// CASH STORE
// =============================================================================

// CashStore persists cash movements (income/expenses outside of sales).
type CashStore interface {
	InsertCashMovement(ctx context.Context, m CashMovement) (int64, error)

	// RecentCashMovements returns the newest movements first, at most limit.
	RecentCashMovements(ctx context.Context, limit int) ([]CashMovement, error)

	// CashMovementsInWindow returns cash movements whose movement_date falls
	// inside the window's date bounds.
	CashMovementsInWindow(ctx context.Context, w Window) ([]CashMovement, error)
}

// =============================================================================
// COMBINED STORES
// =============================================================================

// Store is the full persistence surface of the engine.
type Store interface {
	LedgerStore
	SaleStore
	CatalogStore
	CashStore
}

// TxStore wraps Store with transaction support.
// Use this when you need atomic multi-record writes (e.g. recording a sale).
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
