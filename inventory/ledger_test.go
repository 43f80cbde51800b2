package inventory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitasport/inventory-engine/inventory"
	"github.com/vitasport/inventory-engine/inventory/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestLedger() (*inventory.Ledger, *store.Memory) {
	mem := store.NewMemory()
	return inventory.NewLedger(mem), mem
}

func ingress(productID, qty int64) inventory.Movement {
	return inventory.Movement{ProductID: productID, Type: inventory.MovementIngress, Quantity: qty}
}

func egress(productID, qty int64) inventory.Movement {
	return inventory.Movement{ProductID: productID, Type: inventory.MovementEgress, Quantity: qty}
}

// =============================================================================
// BALANCE DERIVATION TESTS
// =============================================================================

func TestLedger_Balance_IsFoldOverMovements(t *testing.T) {
	// GIVEN: Ingress 10, egress 3, ingress 5 for one product
	// WHEN: Reading the balance
	// THEN: Balance is 10 - 3 + 5 = 12, derived, never stored

	ledger, _ := newTestLedger()
	ctx := context.Background()

	_, err := ledger.Append(ctx, ingress(1, 10))
	require.NoError(t, err)
	_, err = ledger.Append(ctx, egress(1, 3))
	require.NoError(t, err)
	_, err = ledger.Append(ctx, ingress(1, 5))
	require.NoError(t, err)

	balance, err := ledger.BalanceOf(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(12), balance)
}

func TestLedger_Balance_UnknownProduct_IsZero(t *testing.T) {
	// GIVEN: An empty ledger
	// WHEN: Reading the balance of a product with no movements
	// THEN: Balance is zero, not an error

	ledger, _ := newTestLedger()

	balance, err := ledger.BalanceOf(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestLedger_Balance_CacheInvalidatedOnAppend(t *testing.T) {
	// GIVEN: A cached balance for a product
	// WHEN: Appending another movement for it
	// THEN: The next read reflects the append, never a stale cached value

	ledger, _ := newTestLedger()
	ctx := context.Background()

	_, err := ledger.Append(ctx, ingress(1, 10))
	require.NoError(t, err)

	balance, err := ledger.BalanceOf(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(10), balance)

	_, err = ledger.Append(ctx, egress(1, 4))
	require.NoError(t, err)

	balance, err = ledger.BalanceOf(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(6), balance)
}

func TestLedger_BalancesForAll_CoversEveryProduct(t *testing.T) {
	// GIVEN: Movements spread over three products
	// WHEN: Deriving all balances in one pass
	// THEN: Every product appears with its folded balance

	ledger, _ := newTestLedger()
	ctx := context.Background()

	_, err := ledger.Append(ctx, ingress(1, 10))
	require.NoError(t, err)
	_, err = ledger.Append(ctx, ingress(2, 7))
	require.NoError(t, err)
	_, err = ledger.Append(ctx, egress(2, 2))
	require.NoError(t, err)
	_, err = ledger.Append(ctx, ingress(3, 1))
	require.NoError(t, err)

	balances, err := ledger.BalancesForAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{1: 10, 2: 5, 3: 1}, balances)
}

// =============================================================================
// APPEND VALIDATION TESTS
// =============================================================================

func TestLedger_Append_RejectsNonPositiveQuantity(t *testing.T) {
	// GIVEN: A movement with quantity 0
	// WHEN: Appending it
	// THEN: ValidationError; the sign lives in the type, not the quantity

	ledger, _ := newTestLedger()

	_, err := ledger.Append(context.Background(), inventory.Movement{
		ProductID: 1, Type: inventory.MovementIngress, Quantity: 0,
	})

	assert.Error(t, err)
	var vErr *inventory.ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Equal(t, "quantity", vErr.Field)
}

func TestLedger_Append_RejectsUnknownMovementType(t *testing.T) {
	// GIVEN: A movement with a type outside {ingreso, egreso}
	// WHEN: Appending it
	// THEN: ValidationError

	ledger, _ := newTestLedger()

	_, err := ledger.Append(context.Background(), inventory.Movement{
		ProductID: 1, Type: "ajuste", Quantity: 5,
	})

	assert.ErrorIs(t, err, inventory.ErrValidation)
}

func TestLedger_Append_RejectsEgressBelowZero(t *testing.T) {
	// GIVEN: A product with balance 3
	// WHEN: Appending an egress of 5
	// THEN: InsufficientStockError carrying available and requested

	ledger, _ := newTestLedger()
	ctx := context.Background()

	_, err := ledger.Append(ctx, ingress(1, 3))
	require.NoError(t, err)

	_, err = ledger.Append(ctx, egress(1, 5))

	var stockErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(3), stockErr.Available)
	assert.Equal(t, int64(5), stockErr.Requested)

	// The rejected movement left no trace.
	balance, err := ledger.BalanceOf(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), balance)
}

// =============================================================================
// ORDERING TESTS
// =============================================================================

func TestLedger_MovementsFor_ChronologicalAndStable(t *testing.T) {
	// GIVEN: Movements appended with identical timestamps
	// WHEN: Reading them back
	// THEN: Order is by creation time, insertion order breaking ties

	ledger, _ := newTestLedger()
	ctx := context.Background()

	at := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	for _, note := range []string{"first", "second", "third"} {
		_, err := ledger.Append(ctx, inventory.Movement{
			ProductID: 1, Type: inventory.MovementIngress, Quantity: 1,
			Note: note, CreatedAt: at,
		})
		require.NoError(t, err)
	}

	movements, err := ledger.MovementsFor(ctx, 1)
	require.NoError(t, err)
	require.Len(t, movements, 3)
	assert.Equal(t, "first", movements[0].Note)
	assert.Equal(t, "second", movements[1].Note)
	assert.Equal(t, "third", movements[2].Note)
}

func TestLedger_Recent_NewestFirstWithLimit(t *testing.T) {
	// GIVEN: Five movements appended over time
	// WHEN: Reading the two most recent
	// THEN: Newest first, truncated to the limit

	ledger, _ := newTestLedger()
	ctx := context.Background()

	base := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := ledger.Append(ctx, inventory.Movement{
			ProductID: 1, Type: inventory.MovementIngress, Quantity: int64(i + 1),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	recent, err := ledger.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(5), recent[0].Quantity)
	assert.Equal(t, int64(4), recent[1].Quantity)
}

// =============================================================================
// CONCURRENCY TESTS
// =============================================================================

func TestLedger_ConcurrentEgress_NeverOversells(t *testing.T) {
	// GIVEN: A product with balance 10
	// WHEN: 20 goroutines each try to take 1 unit concurrently
	// THEN: Exactly 10 succeed and the final balance is exactly 0

	ledger, _ := newTestLedger()
	ctx := context.Background()

	_, err := ledger.Append(ctx, ingress(1, 10))
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.Append(ctx, egress(1, 1)); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)

	balance, err := ledger.BalanceOf(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}
