package inventory_test

import (
	"context"
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

func newTestCatalog() (*inventory.Catalog, *inventory.Ledger, *store.Memory) {
	mem := store.NewMemory()
	ledger := inventory.NewLedger(mem)
	return inventory.NewCatalog(mem, ledger), ledger, mem
}

func validProduct(name, sku string) inventory.Product {
	return inventory.Product{
		Name:      name,
		SKU:       sku,
		SalePrice: decimal.NewFromInt(25),
		CostPrice: decimal.NewFromInt(15),
		Category:  "proteina",
		Status:    inventory.StatusActive,
	}
}

// =============================================================================
// CREATION TESTS
// =============================================================================

func TestCatalog_AddProduct_SeedsInitialStock(t *testing.T) {
	// GIVEN: A new product with max_stock 24
	// WHEN: Creating it
	// THEN: One ingress movement of 24 is appended in the same unit,
	//       so the derived balance starts at 24

	catalog, ledger, _ := newTestCatalog()
	ctx := context.Background()

	p := validProduct("BCAA 400g", "BCAA-400")
	p.MaxStock = 24

	id, err := catalog.AddProduct(ctx, p)
	require.NoError(t, err)

	balance, err := ledger.BalanceOf(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(24), balance)

	movements, err := ledger.MovementsFor(ctx, id)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, inventory.MovementIngress, movements[0].Type)
	assert.Equal(t, "stock inicial", movements[0].Note)
}

func TestCatalog_AddProduct_NoMaxStock_NoSeed(t *testing.T) {
	// GIVEN: A new product with max_stock 0
	// WHEN: Creating it
	// THEN: No movement is seeded; balance starts at 0

	catalog, ledger, _ := newTestCatalog()
	ctx := context.Background()

	id, err := catalog.AddProduct(ctx, validProduct("Shaker", ""))
	require.NoError(t, err)

	movements, err := ledger.MovementsFor(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestCatalog_AddProduct_ValidationFailures(t *testing.T) {
	catalog, _, _ := newTestCatalog()
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*inventory.Product)
		field  string
	}{
		{"empty name", func(p *inventory.Product) { p.Name = "" }, "name"},
		{"negative sale price", func(p *inventory.Product) { p.SalePrice = decimal.NewFromInt(-1) }, "sale_price"},
		{"negative cost price", func(p *inventory.Product) { p.CostPrice = decimal.NewFromInt(-1) }, "cost_price"},
		{"min above max", func(p *inventory.Product) { p.MinStock = 10; p.MaxStock = 5 }, "min_stock"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProduct("Test", "")
			tt.mutate(&p)

			_, err := catalog.AddProduct(ctx, p)

			var vErr *inventory.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestCatalog_AddProduct_DuplicateSKU_Conflict(t *testing.T) {
	// GIVEN: An existing product with SKU "WP-1000"
	// WHEN: Creating another product with the same SKU
	// THEN: ErrDuplicateSKU

	catalog, _, _ := newTestCatalog()
	ctx := context.Background()

	_, err := catalog.AddProduct(ctx, validProduct("Whey 1kg", "WP-1000"))
	require.NoError(t, err)

	_, err = catalog.AddProduct(ctx, validProduct("Whey 2kg", "WP-1000"))
	assert.ErrorIs(t, err, inventory.ErrDuplicateSKU)
}

// =============================================================================
// UPDATE AND LOOKUP TESTS
// =============================================================================

func TestCatalog_UpdateProduct_UnknownID_NotFound(t *testing.T) {
	catalog, _, _ := newTestCatalog()

	p := validProduct("Ghost", "")
	p.ID = 99

	err := catalog.UpdateProduct(context.Background(), p)
	assert.ErrorIs(t, err, inventory.ErrProductNotFound)
}

func TestCatalog_UpdateProduct_ReplacesMasterData(t *testing.T) {
	catalog, _, _ := newTestCatalog()
	ctx := context.Background()

	id, err := catalog.AddProduct(ctx, validProduct("Whey 1kg", "WP-1000"))
	require.NoError(t, err)

	updated := validProduct("Whey Gold 1kg", "WP-1000")
	updated.ID = id
	updated.Status = inventory.StatusDiscontinued
	require.NoError(t, catalog.UpdateProduct(ctx, updated))

	got, err := catalog.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Whey Gold 1kg", got.Name)
	assert.Equal(t, inventory.StatusDiscontinued, got.Status)
}

func TestCatalog_GetProduct_Missing_NotFound(t *testing.T) {
	catalog, _, _ := newTestCatalog()

	_, err := catalog.GetProduct(context.Background(), 404)
	assert.ErrorIs(t, err, inventory.ErrProductNotFound)
}

// =============================================================================
// DELETION POLICY TESTS
// =============================================================================

func TestCatalog_DeleteProduct_WithLedgerEntries_Conflicts(t *testing.T) {
	// GIVEN: A product whose creation seeded a ledger entry
	// WHEN: Deleting it
	// THEN: ConflictError; the ledger is immutable so deletion never cascades

	catalog, _, _ := newTestCatalog()
	ctx := context.Background()

	p := validProduct("Creatine 300g", "CR-300")
	p.MaxStock = 12
	id, err := catalog.AddProduct(ctx, p)
	require.NoError(t, err)

	err = catalog.DeleteProduct(ctx, id)

	assert.ErrorIs(t, err, inventory.ErrProductReferenced)
	var conflict *inventory.ConflictError
	assert.ErrorAs(t, err, &conflict)

	// Still present.
	_, err = catalog.GetProduct(ctx, id)
	assert.NoError(t, err)
}

func TestCatalog_DeleteProduct_Unreferenced_Succeeds(t *testing.T) {
	// GIVEN: A product with no ledger entries
	// WHEN: Deleting it
	// THEN: It is gone

	catalog, _, _ := newTestCatalog()
	ctx := context.Background()

	id, err := catalog.AddProduct(ctx, validProduct("Shaker", ""))
	require.NoError(t, err)

	require.NoError(t, catalog.DeleteProduct(ctx, id))

	_, err = catalog.GetProduct(ctx, id)
	assert.ErrorIs(t, err, inventory.ErrProductNotFound)
}
