/*
catalog.go - Product master data operations

PURPOSE:
  Catalog commands create, update and delete products. The catalog is
  consulted by the sale recorder and the analytics engine but mutated
  independently of the ledger.

DOMAIN INVARIANTS ENFORCED HERE:
  - name is required
  - sale_price and cost_price are non-negative
  - min_stock <= max_stock when both are set
  - SKU is unique when present (enforced by the store)
  - a product with ledger entries cannot be deleted: the ledger is
    immutable, so deletion fails with a conflict instead of cascading

Anything beyond these (formats, lengths, enum membership of free-text
fields) is the caller's responsibility.

INITIAL STOCK:
  Creating a product with max_stock > 0 seeds the ledger with one ingress
  movement of max_stock, in the same transaction as the product row.

SEE ALSO:
  - ledger.go: HasMovements backs the deletion reference check
*/
package inventory

import (
	"context"
	"time"
)

// =============================================================================
// CATALOG
// =============================================================================

// Catalog exposes product master data commands.
type Catalog struct {
	store  TxStore
	ledger *Ledger
	now    func() time.Time
}

// NewCatalog creates a catalog over the given store. The ledger is used to
// keep the balance cache consistent when product creation seeds stock.
func NewCatalog(store TxStore, ledger *Ledger) *Catalog {
	return &Catalog{
		store:  store,
		ledger: ledger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// AddProduct validates and persists a new product, returning its id.
// A max_stock > 0 seeds one ingress movement in the same transaction.
func (c *Catalog) AddProduct(ctx context.Context, p Product) (int64, error) {
	if err := validateProduct(p); err != nil {
		return 0, err
	}

	var id int64
	err := c.store.WithTx(ctx, func(s Store) error {
		var txErr error
		id, txErr = s.InsertProduct(ctx, p)
		if txErr != nil {
			return txErr
		}
		if p.MaxStock > 0 {
			_, txErr = s.AppendMovement(ctx, Movement{
				ProductID: id,
				Type:      MovementIngress,
				Quantity:  p.MaxStock,
				Note:      "stock inicial",
				CreatedAt: c.now(),
			})
		}
		return txErr
	})
	if err != nil {
		return 0, err
	}
	c.ledger.invalidate(id)
	return id, nil
}

// UpdateProduct replaces the stored product with the same id.
func (c *Catalog) UpdateProduct(ctx context.Context, p Product) error {
	if p.ID <= 0 {
		return &ValidationError{Field: "id", Reason: "must be positive"}
	}
	if err := validateProduct(p); err != nil {
		return err
	}
	return c.store.UpdateProduct(ctx, p)
}

// DeleteProduct removes a product. Fails with a conflict when the ledger
// references it - movements are never deleted, so the product must stay.
func (c *Catalog) DeleteProduct(ctx context.Context, id int64) error {
	referenced, err := c.store.HasMovements(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return &ConflictError{
			Resource: "product",
			Detail:   "product has ledger entries and cannot be deleted",
			Cause:    ErrProductReferenced,
		}
	}
	return c.store.DeleteProduct(ctx, id)
}

// GetProduct returns a product or ErrProductNotFound.
func (c *Catalog) GetProduct(ctx context.Context, id int64) (*Product, error) {
	p, err := c.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProductNotFound
	}
	return p, nil
}

// ListProducts returns all products ordered by id.
func (c *Catalog) ListProducts(ctx context.Context) ([]Product, error) {
	return c.store.ListProducts(ctx)
}

// =============================================================================
// VALIDATION
// =============================================================================

func validateProduct(p Product) error {
	if p.Name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if p.SalePrice.IsNegative() {
		return &ValidationError{Field: "sale_price", Reason: "must not be negative"}
	}
	if p.CostPrice.IsNegative() {
		return &ValidationError{Field: "cost_price", Reason: "must not be negative"}
	}
	if p.MinStock < 0 {
		return &ValidationError{Field: "min_stock", Reason: "must not be negative"}
	}
	if p.MaxStock < 0 {
		return &ValidationError{Field: "max_stock", Reason: "must not be negative"}
	}
	if p.MinStock > 0 && p.MaxStock > 0 && p.MinStock > p.MaxStock {
		return &ValidationError{Field: "min_stock", Reason: "must not exceed max_stock"}
	}
	return nil
}
