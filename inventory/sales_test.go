package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitasport/inventory-engine/inventory"
	"github.com/vitasport/inventory-engine/inventory/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestRecorder(t *testing.T, initialStock int64) (*inventory.SaleRecorder, *inventory.Ledger, *store.Memory, int64) {
	t.Helper()
	mem := store.NewMemory()
	ledger := inventory.NewLedger(mem)
	catalog := inventory.NewCatalog(mem, ledger)

	productID, err := catalog.AddProduct(context.Background(), inventory.Product{
		Name:      "Whey Protein 1kg",
		SKU:       "WP-1000",
		SalePrice: decimal.NewFromInt(100),
		CostPrice: decimal.NewFromInt(60),
		MaxStock:  initialStock,
	})
	require.NoError(t, err)

	return inventory.NewSaleRecorder(mem, ledger), ledger, mem, productID
}

func saleReq(productID, qty int64, unitPrice, discount string) inventory.SaleRequest {
	return inventory.SaleRequest{
		ProductID:   productID,
		Quantity:    qty,
		UnitPrice:   decimal.RequireFromString(unitPrice),
		DiscountPct: decimal.RequireFromString(discount),
	}
}

// =============================================================================
// TOTAL COMPUTATION TESTS
// =============================================================================

func TestRecordSale_DiscountedTotal(t *testing.T) {
	// GIVEN: Unit price 100.00, quantity 2, discount 10%
	// WHEN: Recording the sale
	// THEN: Stored total is 180.00

	recorder, _, mem, productID := newTestRecorder(t, 10)
	ctx := context.Background()

	id, err := recorder.RecordSale(ctx, saleReq(productID, 2, "100.00", "10"))
	require.NoError(t, err)
	assert.Positive(t, id)

	sales, err := mem.RecentSales(ctx, 1)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.True(t, sales[0].SalePrice.Equal(decimal.RequireFromString("180.00")),
		"got %s", sales[0].SalePrice)
}

func TestRecordSale_RoundsHalfAwayFromZeroOnce(t *testing.T) {
	// GIVEN: Unit price 1.005, quantity 3, no discount
	// WHEN: Recording the sale
	// THEN: Total is round(3.015) = 3.02, rounded once on the final total

	recorder, _, mem, productID := newTestRecorder(t, 10)
	ctx := context.Background()

	_, err := recorder.RecordSale(ctx, saleReq(productID, 3, "1.005", "0"))
	require.NoError(t, err)

	sales, err := mem.RecentSales(ctx, 1)
	require.NoError(t, err)
	assert.True(t, sales[0].SalePrice.Equal(decimal.RequireFromString("3.02")),
		"got %s", sales[0].SalePrice)
}

func TestRecordSale_DiscountClampedNotRejected(t *testing.T) {
	// GIVEN: Discounts outside [0,100]
	// WHEN: Recording sales with 150% and -5%
	// THEN: 150 clamps to 100 (total 0), -5 clamps to 0 (full price)

	recorder, _, mem, productID := newTestRecorder(t, 10)
	ctx := context.Background()

	_, err := recorder.RecordSale(ctx, saleReq(productID, 1, "50.00", "150"))
	require.NoError(t, err)
	_, err = recorder.RecordSale(ctx, saleReq(productID, 1, "50.00", "-5"))
	require.NoError(t, err)

	sales, err := mem.RecentSales(ctx, 2)
	require.NoError(t, err)
	require.Len(t, sales, 2)

	totals := []string{sales[0].SalePrice.StringFixed(2), sales[1].SalePrice.StringFixed(2)}
	assert.ElementsMatch(t, []string{"0.00", "50.00"}, totals)
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestRecordSale_RejectsNonPositiveQuantity(t *testing.T) {
	recorder, _, _, productID := newTestRecorder(t, 10)

	_, err := recorder.RecordSale(context.Background(), saleReq(productID, 0, "10.00", "0"))

	assert.ErrorIs(t, err, inventory.ErrValidation)
}

func TestRecordSale_RejectsUnknownProduct(t *testing.T) {
	recorder, _, _, _ := newTestRecorder(t, 10)

	_, err := recorder.RecordSale(context.Background(), saleReq(999, 1, "10.00", "0"))

	var vErr *inventory.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "product_id", vErr.Field)
}

// =============================================================================
// STOCK ENFORCEMENT TESTS
// =============================================================================

func TestRecordSale_InsufficientStock_Rejected(t *testing.T) {
	// GIVEN: A product with stock 5
	// WHEN: Selling 6 units
	// THEN: InsufficientStockError; nothing is written

	recorder, ledger, mem, productID := newTestRecorder(t, 5)
	ctx := context.Background()

	_, err := recorder.RecordSale(ctx, saleReq(productID, 6, "10.00", "0"))

	var stockErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(5), stockErr.Available)
	assert.Equal(t, int64(6), stockErr.Requested)

	balance, err := ledger.BalanceOf(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), balance)

	sales, err := mem.RecentSales(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestRecordSale_ConcurrentSales_ExactlyExhaustStock(t *testing.T) {
	// GIVEN: A product with stock 5
	// WHEN: 10 concurrent sales of 1 unit each
	// THEN: Exactly 5 succeed, the rest fail with insufficient stock,
	//       and the final balance is exactly 0

	recorder, ledger, mem, productID := newTestRecorder(t, 5)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		stockErrs int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := recorder.RecordSale(ctx, saleReq(productID, 1, "10.00", "0"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, inventory.ErrInsufficientStock):
				stockErrs++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 5, stockErrs)

	balance, err := ledger.BalanceOf(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	sales, err := mem.RecentSales(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, sales, 5)
}

// =============================================================================
// ATOMICITY TESTS
// =============================================================================

// appendFailStore makes AppendMovement fail inside transactions, simulating
// a crash between the sale insert and its egress movement.
type appendFailStore struct {
	*store.Memory
}

func (s *appendFailStore) WithTx(ctx context.Context, fn func(inventory.Store) error) error {
	return s.Memory.WithTx(ctx, func(inner inventory.Store) error {
		return fn(&failingAppendView{Store: inner})
	})
}

type failingAppendView struct {
	inventory.Store
}

func (v *failingAppendView) AppendMovement(context.Context, inventory.Movement) (int64, error) {
	return 0, &inventory.StorageError{Op: "append movement", Err: errors.New("disk full")}
}

func TestRecordSale_MovementFailure_RollsBackSale(t *testing.T) {
	// GIVEN: A store that fails the movement append mid-transaction
	// WHEN: Recording a sale
	// THEN: The sale row is rolled back; partial state is never observable

	mem := store.NewMemory()
	failing := &appendFailStore{Memory: mem}
	ledger := inventory.NewLedger(mem)

	// Seed stock outside the failing path.
	_, err := ledger.Append(context.Background(), inventory.Movement{
		ProductID: 1, Type: inventory.MovementIngress, Quantity: 10,
	})
	require.NoError(t, err)

	productID, err := mem.InsertProduct(context.Background(), inventory.Product{
		Name: "Creatine 300g", SalePrice: decimal.NewFromInt(20), CostPrice: decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	recorder := inventory.NewSaleRecorder(failing, ledger)
	_, err = recorder.RecordSale(context.Background(), saleReq(productID, 1, "20.00", "0"))

	assert.ErrorIs(t, err, inventory.ErrStorage)

	sales, err := mem.RecentSales(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, sales, "sale must be rolled back with its movement")
}
