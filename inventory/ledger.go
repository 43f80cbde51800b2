/*
ledger.go - Append-only stock ledger and derived balances

PURPOSE:
  The Ledger is the single source of truth for stock history. Every stock
  change is an immutable movement; current stock is derived by folding the
  movements for a product (+quantity for ingress, -quantity for egress,
  starting at 0). There is no mutable stock counter anywhere.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No update, no delete. Corrections are new movements.
  2. VALIDATED: Appends with quantity <= 0 or an unknown type are rejected.
  3. CACHE CONSISTENCY: The materialized balance for a product is invalidated
     synchronously before any append for that product returns. There is no
     stale-read window.
  4. SERIALIZED WRITES: All writes touching a product hold that product's
     mutex, so concurrent check-then-act sequences cannot race.

BALANCE CACHE:
  BalanceOf folds the product's movements once and caches the result.
  The cache entry is dropped on every append touching the product. Two
  BalanceOf calls with no intervening append return identical results.

SEE ALSO:
  - store.go: LedgerStore interface
  - sales.go: Uses the per-product lock for the stock-sufficiency check
*/
package inventory

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// LEDGER - Append-only movement log with derived balances
// =============================================================================

// Ledger wraps a LedgerStore with validation, per-product write
// serialization and a write-through balance cache.
type Ledger struct {
	store LedgerStore

	mu       sync.RWMutex
	balances map[int64]int64 // materialized balances, re-derivable at any time

	locks sync.Map // productID -> *sync.Mutex
}

// NewLedger creates a ledger over the given store.
func NewLedger(store LedgerStore) *Ledger {
	return &Ledger{
		store:    store,
		balances: make(map[int64]int64),
	}
}

// Append validates and persists a movement, returning its id.
// The cached balance for the product is invalidated before Append returns.
func (l *Ledger) Append(ctx context.Context, m Movement) (int64, error) {
	if err := validateMovement(m); err != nil {
		return 0, err
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	lock := l.productLock(m.ProductID)
	lock.Lock()
	defer lock.Unlock()

	// Non-negativity invariant: an egress may never drive the balance
	// below zero. Checked under the product lock so concurrent appends
	// cannot both pass against a stale balance.
	if m.Type == MovementEgress {
		balance, err := l.balanceLocked(ctx, m.ProductID)
		if err != nil {
			return 0, err
		}
		if m.Quantity > balance {
			return 0, &InsufficientStockError{
				ProductID: m.ProductID,
				Available: balance,
				Requested: m.Quantity,
			}
		}
	}

	id, err := l.store.AppendMovement(ctx, m)
	if err != nil {
		return 0, err
	}
	l.invalidate(m.ProductID)
	return id, nil
}

// MovementsFor returns the product's movements ordered by timestamp then
// insertion order.
func (l *Ledger) MovementsFor(ctx context.Context, productID int64) ([]Movement, error) {
	return l.store.MovementsFor(ctx, productID)
}

// Recent returns the newest movements first, at most limit.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Movement, error) {
	return l.store.RecentMovements(ctx, limit)
}

// =============================================================================
// BALANCE RESOLVER - Stock derived by folding the ledger
// =============================================================================

// BalanceOf returns the product's current stock. Pure with respect to the
// ledger: two calls with no intervening append produce identical results.
func (l *Ledger) BalanceOf(ctx context.Context, productID int64) (int64, error) {
	lock := l.productLock(productID)
	lock.Lock()
	defer lock.Unlock()
	return l.balanceLocked(ctx, productID)
}

// balanceLocked computes the balance with the product's lock already held.
// Used by the sale recorder so the sufficiency check and the write happen
// under one critical section.
func (l *Ledger) balanceLocked(ctx context.Context, productID int64) (int64, error) {
	l.mu.RLock()
	cached, ok := l.balances[productID]
	l.mu.RUnlock()
	if ok {
		return cached, nil
	}

	movements, err := l.store.MovementsFor(ctx, productID)
	if err != nil {
		return 0, err
	}
	var balance int64
	for _, m := range movements {
		balance += m.Delta()
	}

	l.mu.Lock()
	l.balances[productID] = balance
	l.mu.Unlock()
	return balance, nil
}

// BalancesForAll folds the whole ledger into a product_id -> current_stock
// mapping. Products with no movements are absent.
func (l *Ledger) BalancesForAll(ctx context.Context) (map[int64]int64, error) {
	movements, err := l.store.AllMovements(ctx)
	if err != nil {
		return nil, err
	}
	balances := make(map[int64]int64)
	for _, m := range movements {
		balances[m.ProductID] += m.Delta()
	}
	return balances, nil
}

// =============================================================================
// INTERNAL
// =============================================================================

// productLock returns the mutex serializing writes for a product.
func (l *Ledger) productLock(productID int64) *sync.Mutex {
	v, _ := l.locks.LoadOrStore(productID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// invalidate drops the cached balance for a product. Must be called before
// any append touching the product is considered complete.
func (l *Ledger) invalidate(productID int64) {
	l.mu.Lock()
	delete(l.balances, productID)
	l.mu.Unlock()
}

func validateMovement(m Movement) error {
	if m.ProductID <= 0 {
		return &ValidationError{Field: "product_id", Reason: "must be positive"}
	}
	if !m.Type.Valid() {
		return &ValidationError{Field: "movement_type", Reason: `must be "ingreso" or "egreso"`}
	}
	if m.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	return nil
}
