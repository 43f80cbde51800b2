// Package store provides an in-memory Store implementation (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/vitasport/inventory-engine/inventory"
)

// =============================================================================
// MEMORY STORE - In-memory implementation of inventory.TxStore
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	movements   []inventory.Movement
	sales       []inventory.Sale
	products    map[int64]inventory.Product
	cash        []inventory.CashMovement
	idempotency map[string]bool

	nextMovementID int64
	nextSaleID     int64
	nextProductID  int64
	nextCashID     int64
}

func NewMemory() *Memory {
	return &Memory{
		products:    make(map[int64]inventory.Product),
		idempotency: make(map[string]bool),
	}
}

// =============================================================================
// LEDGER STORE - Append-only
// =============================================================================

func (m *Memory) AppendMovement(_ context.Context, mv inventory.Movement) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendMovementLocked(mv)
}

func (m *Memory) appendMovementLocked(mv inventory.Movement) (int64, error) {
	if mv.IdempotencyKey != "" && m.idempotency[mv.IdempotencyKey] {
		return 0, inventory.ErrDuplicateIdempotencyKey
	}
	m.nextMovementID++
	mv.ID = m.nextMovementID
	m.movements = append(m.movements, mv)
	if mv.IdempotencyKey != "" {
		m.idempotency[mv.IdempotencyKey] = true
	}
	return mv.ID, nil
}

func (m *Memory) MovementsFor(_ context.Context, productID int64) ([]inventory.Movement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []inventory.Movement
	for _, mv := range m.movements {
		if mv.ProductID == productID {
			result = append(result, mv)
		}
	}
	sortMovementsChronological(result)
	return result, nil
}

func (m *Memory) AllMovements(_ context.Context) ([]inventory.Movement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]inventory.Movement, len(m.movements))
	copy(result, m.movements)
	sortMovementsChronological(result)
	return result, nil
}

func (m *Memory) RecentMovements(_ context.Context, limit int) ([]inventory.Movement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]inventory.Movement, len(m.movements))
	copy(result, m.movements)
	sortMovementsChronological(result)
	reverseMovements(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *Memory) HasMovements(_ context.Context, productID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, mv := range m.movements {
		if mv.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

// Stable sort keeps insertion order for equal timestamps.
func sortMovementsChronological(movements []inventory.Movement) {
	sort.SliceStable(movements, func(i, j int) bool {
		return movements[i].CreatedAt.Before(movements[j].CreatedAt)
	})
}

func reverseMovements(movements []inventory.Movement) {
	for i, j := 0, len(movements)-1; i < j; i, j = i+1, j-1 {
		movements[i], movements[j] = movements[j], movements[i]
	}
}

// =============================================================================
// SALE STORE
// =============================================================================

func (m *Memory) InsertSale(_ context.Context, s inventory.Sale) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertSaleLocked(s)
}

func (m *Memory) insertSaleLocked(s inventory.Sale) (int64, error) {
	m.nextSaleID++
	s.ID = m.nextSaleID
	m.sales = append(m.sales, s)
	return s.ID, nil
}

func (m *Memory) RecentSales(_ context.Context, limit int) ([]inventory.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]inventory.Sale, len(m.sales))
	copy(result, m.sales)
	sortSalesNewestFirst(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *Memory) SalesInWindow(_ context.Context, w inventory.Window) ([]inventory.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []inventory.Sale
	for _, s := range m.sales {
		if w.Contains(s.SaleDate) {
			result = append(result, s)
		}
	}
	sortSalesNewestFirst(result)
	return result, nil
}

func sortSalesNewestFirst(sales []inventory.Sale) {
	sort.SliceStable(sales, func(i, j int) bool {
		if !sales[i].SaleDate.Equal(sales[j].SaleDate) {
			return sales[i].SaleDate.After(sales[j].SaleDate)
		}
		return sales[i].ID > sales[j].ID
	})
}

// =============================================================================
// CATALOG STORE
// =============================================================================

func (m *Memory) InsertProduct(_ context.Context, p inventory.Product) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertProductLocked(p)
}

func (m *Memory) insertProductLocked(p inventory.Product) (int64, error) {
	if p.SKU != "" {
		for _, existing := range m.products {
			if existing.SKU == p.SKU {
				return 0, inventory.ErrDuplicateSKU
			}
		}
	}
	m.nextProductID++
	p.ID = m.nextProductID
	m.products[p.ID] = p
	return p.ID, nil
}

func (m *Memory) UpdateProduct(_ context.Context, p inventory.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[p.ID]; !ok {
		return inventory.ErrProductNotFound
	}
	if p.SKU != "" {
		for id, existing := range m.products {
			if id != p.ID && existing.SKU == p.SKU {
				return inventory.ErrDuplicateSKU
			}
		}
	}
	m.products[p.ID] = p
	return nil
}

func (m *Memory) DeleteProduct(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[id]; !ok {
		return inventory.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *Memory) GetProduct(_ context.Context, id int64) (*inventory.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) ListProducts(_ context.Context) ([]inventory.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]inventory.Product, 0, len(m.products))
	for _, p := range m.products {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// =============================================================================
// CASH STORE
// =============================================================================

func (m *Memory) InsertCashMovement(_ context.Context, cm inventory.CashMovement) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextCashID++
	cm.ID = m.nextCashID
	m.cash = append(m.cash, cm)
	return cm.ID, nil
}

func (m *Memory) RecentCashMovements(_ context.Context, limit int) ([]inventory.CashMovement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]inventory.CashMovement, len(m.cash))
	copy(result, m.cash)
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].MovementDate.Equal(result[j].MovementDate) {
			return result[i].MovementDate.After(result[j].MovementDate)
		}
		return result[i].ID > result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *Memory) CashMovementsInWindow(_ context.Context, w inventory.Window) ([]inventory.CashMovement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []inventory.CashMovement
	for _, cm := range m.cash {
		if w.Contains(cm.MovementDate) {
			result = append(result, cm)
		}
	}
	return result, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// WithTx executes fn within a transaction.
// For the memory store this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(inventory.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	view := &txMemoryView{parent: m}

	if err := fn(view); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	movements   []inventory.Movement
	sales       []inventory.Sale
	products    map[int64]inventory.Product
	cash        []inventory.CashMovement
	idempotency map[string]bool

	nextMovementID, nextSaleID, nextProductID, nextCashID int64
}

func (m *Memory) snapshot() memorySnapshot {
	products := make(map[int64]inventory.Product, len(m.products))
	for k, v := range m.products {
		products[k] = v
	}
	idempotency := make(map[string]bool, len(m.idempotency))
	for k, v := range m.idempotency {
		idempotency[k] = v
	}
	return memorySnapshot{
		movements:      append([]inventory.Movement{}, m.movements...),
		sales:          append([]inventory.Sale{}, m.sales...),
		products:       products,
		cash:           append([]inventory.CashMovement{}, m.cash...),
		idempotency:    idempotency,
		nextMovementID: m.nextMovementID,
		nextSaleID:     m.nextSaleID,
		nextProductID:  m.nextProductID,
		nextCashID:     m.nextCashID,
	}
}

func (m *Memory) restore(s memorySnapshot) {
	m.movements = s.movements
	m.sales = s.sales
	m.products = s.products
	m.cash = s.cash
	m.idempotency = s.idempotency
	m.nextMovementID = s.nextMovementID
	m.nextSaleID = s.nextSaleID
	m.nextProductID = s.nextProductID
	m.nextCashID = s.nextCashID
}

// txMemoryView runs store operations with the parent's lock already held.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) AppendMovement(_ context.Context, mv inventory.Movement) (int64, error) {
	return tv.parent.appendMovementLocked(mv)
}

func (tv *txMemoryView) InsertSale(_ context.Context, s inventory.Sale) (int64, error) {
	return tv.parent.insertSaleLocked(s)
}

func (tv *txMemoryView) InsertProduct(_ context.Context, p inventory.Product) (int64, error) {
	return tv.parent.insertProductLocked(p)
}

// Reads inside a transaction see the uncommitted writes.

func (tv *txMemoryView) MovementsFor(_ context.Context, productID int64) ([]inventory.Movement, error) {
	var result []inventory.Movement
	for _, mv := range tv.parent.movements {
		if mv.ProductID == productID {
			result = append(result, mv)
		}
	}
	sortMovementsChronological(result)
	return result, nil
}

func (tv *txMemoryView) AllMovements(_ context.Context) ([]inventory.Movement, error) {
	result := make([]inventory.Movement, len(tv.parent.movements))
	copy(result, tv.parent.movements)
	sortMovementsChronological(result)
	return result, nil
}

func (tv *txMemoryView) RecentMovements(_ context.Context, limit int) ([]inventory.Movement, error) {
	result := make([]inventory.Movement, len(tv.parent.movements))
	copy(result, tv.parent.movements)
	sortMovementsChronological(result)
	reverseMovements(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (tv *txMemoryView) HasMovements(_ context.Context, productID int64) (bool, error) {
	for _, mv := range tv.parent.movements {
		if mv.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

func (tv *txMemoryView) RecentSales(_ context.Context, limit int) ([]inventory.Sale, error) {
	result := make([]inventory.Sale, len(tv.parent.sales))
	copy(result, tv.parent.sales)
	sortSalesNewestFirst(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (tv *txMemoryView) SalesInWindow(_ context.Context, w inventory.Window) ([]inventory.Sale, error) {
	var result []inventory.Sale
	for _, s := range tv.parent.sales {
		if w.Contains(s.SaleDate) {
			result = append(result, s)
		}
	}
	sortSalesNewestFirst(result)
	return result, nil
}

func (tv *txMemoryView) UpdateProduct(_ context.Context, p inventory.Product) error {
	if _, ok := tv.parent.products[p.ID]; !ok {
		return inventory.ErrProductNotFound
	}
	tv.parent.products[p.ID] = p
	return nil
}

func (tv *txMemoryView) DeleteProduct(_ context.Context, id int64) error {
	if _, ok := tv.parent.products[id]; !ok {
		return inventory.ErrProductNotFound
	}
	delete(tv.parent.products, id)
	return nil
}

func (tv *txMemoryView) GetProduct(_ context.Context, id int64) (*inventory.Product, error) {
	p, ok := tv.parent.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (tv *txMemoryView) ListProducts(_ context.Context) ([]inventory.Product, error) {
	result := make([]inventory.Product, 0, len(tv.parent.products))
	for _, p := range tv.parent.products {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (tv *txMemoryView) InsertCashMovement(_ context.Context, cm inventory.CashMovement) (int64, error) {
	tv.parent.nextCashID++
	cm.ID = tv.parent.nextCashID
	tv.parent.cash = append(tv.parent.cash, cm)
	return cm.ID, nil
}

func (tv *txMemoryView) RecentCashMovements(_ context.Context, limit int) ([]inventory.CashMovement, error) {
	result := make([]inventory.CashMovement, len(tv.parent.cash))
	copy(result, tv.parent.cash)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (tv *txMemoryView) CashMovementsInWindow(_ context.Context, w inventory.Window) ([]inventory.CashMovement, error) {
	var result []inventory.CashMovement
	for _, cm := range tv.parent.cash {
		if w.Contains(cm.MovementDate) {
			result = append(result, cm)
		}
	}
	return result, nil
}
