/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements inventory.TxStore using SQLite. In production, the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  The movement side of the store enforces append-only semantics:
  - No UPDATE statements on the stock_movements table
  - No DELETE statements on the stock_movements table
  - Corrections via compensating movements only

KEY TABLES:
  products:        Catalog master data (mutable rows, unique SKU)
  stock_movements: Immutable ledger of all stock changes
  sales:           Committed sales transactions
  cash_movements:  Income/expense entries outside of sales

INDEXES:
  - idx_movements_product: Per-product balance folds (hot path)
  - idx_movements_idempotency: Duplicate append rejection
  - idx_sales_date: Window queries for analytics and reports

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/inventory.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := inventory.NewLedger(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - inventory/store.go: Interface definitions
  - inventory/ledger.go: Higher-level ledger using LedgerStore
  - inventory/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/vitasport/inventory-engine/inventory"
)

// Store implements inventory.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// dbtx is the subset of *sql.DB and *sql.Tx the row-level helpers need, so
// the same code serves both direct calls and calls inside WithTx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, &inventory.StorageError{Op: "open database", Err: err}
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, &inventory.StorageError{Op: "migrate database", Err: err}
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Products (catalog master data)
	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sku TEXT UNIQUE,
		name TEXT NOT NULL,
		sale_price TEXT NOT NULL,
		cost_price TEXT NOT NULL,
		brand TEXT,
		category TEXT,
		presentation TEXT,
		flavor TEXT,
		weight TEXT,
		image_path TEXT,
		expiry_date TEXT,
		lot_number TEXT,
		min_stock INTEGER NOT NULL DEFAULT 0,
		max_stock INTEGER NOT NULL DEFAULT 0,
		location TEXT,
		status TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_products_category
		ON products(category);

	-- Stock movements (append-only ledger)
	CREATE TABLE IF NOT EXISTS stock_movements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('ingreso', 'egreso')),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		note TEXT,
		created_by TEXT,
		reference TEXT,
		idempotency_key TEXT,
		created_at TEXT NOT NULL
	);

	-- Per-product balance folds (hot path)
	CREATE INDEX IF NOT EXISTS idx_movements_product
		ON stock_movements(product_id, created_at);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_movements_idempotency
		ON stock_movements(idempotency_key) WHERE idempotency_key IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_movements_created_at
		ON stock_movements(created_at DESC);

	-- Sales
	CREATE TABLE IF NOT EXISTS sales (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		sale_price TEXT NOT NULL,
		discount TEXT,
		channel TEXT,
		sale_date TEXT NOT NULL,
		created_by TEXT,
		reference TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sales_date
		ON sales(sale_date DESC);
	CREATE INDEX IF NOT EXISTS idx_sales_product
		ON sales(product_id);

	-- Cash movements (income/expenses outside of sales)
	CREATE TABLE IF NOT EXISTS cash_movements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL CHECK (type IN ('ingreso', 'egreso')),
		amount TEXT NOT NULL,
		category TEXT,
		description TEXT,
		movement_date TEXT NOT NULL,
		created_by TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_cash_movements_date
		ON cash_movements(movement_date DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEDGER STORE (inventory.LedgerStore interface)
// =============================================================================

// AppendMovement adds a movement to the ledger.
func (s *Store) AppendMovement(ctx context.Context, m inventory.Movement) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendMovementTx(ctx, s.db, m)
}

func (s *Store) appendMovementTx(ctx context.Context, db dbtx, m inventory.Movement) (int64, error) {
	query := `
		INSERT INTO stock_movements
		(product_id, type, quantity, note, created_by, reference, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.ExecContext(ctx, query,
		m.ProductID,
		string(m.Type),
		m.Quantity,
		m.Note,
		m.CreatedBy,
		m.Reference,
		nullString(m.IdempotencyKey),
		m.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, inventory.ErrDuplicateIdempotencyKey
		}
		return 0, &inventory.StorageError{Op: "append movement", Err: err}
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, &inventory.StorageError{Op: "append movement", Err: err}
	}
	return id, nil
}

// MovementsFor returns all movements for a product in chronological order.
func (s *Store) MovementsFor(ctx context.Context, productID int64) ([]inventory.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryMovements(ctx, s.db, `
		SELECT id, product_id, type, quantity, note, created_by, reference, idempotency_key, created_at
		FROM stock_movements
		WHERE product_id = ?
		ORDER BY created_at ASC, id ASC
	`, productID)
}

// AllMovements returns every movement in chronological order.
func (s *Store) AllMovements(ctx context.Context) ([]inventory.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryMovements(ctx, s.db, `
		SELECT id, product_id, type, quantity, note, created_by, reference, idempotency_key, created_at
		FROM stock_movements
		ORDER BY created_at ASC, id ASC
	`)
}

// RecentMovements returns the newest movements first, at most limit.
func (s *Store) RecentMovements(ctx context.Context, limit int) ([]inventory.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.recentMovements(ctx, s.db, limit)
}

func (s *Store) recentMovements(ctx context.Context, db dbtx, limit int) ([]inventory.Movement, error) {
	query := `
		SELECT id, product_id, type, quantity, note, created_by, reference, idempotency_key, created_at
		FROM stock_movements
		ORDER BY created_at DESC, id DESC
	`
	if limit > 0 {
		query += " LIMIT ?"
		return s.queryMovements(ctx, db, query, limit)
	}
	return s.queryMovements(ctx, db, query)
}

// HasMovements reports whether any ledger entry references the product.
func (s *Store) HasMovements(ctx context.Context, productID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.hasMovements(ctx, s.db, productID)
}

func (s *Store) hasMovements(ctx context.Context, db dbtx, productID int64) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM stock_movements WHERE product_id = ?",
		productID,
	).Scan(&count)
	if err != nil {
		return false, &inventory.StorageError{Op: "count movements", Err: err}
	}
	return count > 0, nil
}

func (s *Store) queryMovements(ctx context.Context, db dbtx, query string, args ...any) ([]inventory.Movement, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &inventory.StorageError{Op: "query movements", Err: err}
	}
	defer rows.Close()

	var movements []inventory.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &inventory.StorageError{Op: "query movements", Err: err}
	}
	return movements, nil
}

func scanMovement(rows *sql.Rows) (inventory.Movement, error) {
	var (
		m              inventory.Movement
		mvType         string
		note, by, ref  sql.NullString
		idempotencyKey sql.NullString
		createdAt      string
	)
	err := rows.Scan(&m.ID, &m.ProductID, &mvType, &m.Quantity, &note, &by, &ref, &idempotencyKey, &createdAt)
	if err != nil {
		return inventory.Movement{}, &inventory.StorageError{Op: "scan movement", Err: err}
	}

	m.Type = inventory.MovementType(mvType)
	m.Note = note.String
	m.CreatedBy = by.String
	m.Reference = ref.String
	m.IdempotencyKey = idempotencyKey.String
	m.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return inventory.Movement{}, err
	}
	return m, nil
}

// =============================================================================
// SALE STORE (inventory.SaleStore interface)
// =============================================================================

// InsertSale persists a sale and returns its id.
func (s *Store) InsertSale(ctx context.Context, sale inventory.Sale) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertSaleTx(ctx, s.db, sale)
}

func (s *Store) insertSaleTx(ctx context.Context, db dbtx, sale inventory.Sale) (int64, error) {
	query := `
		INSERT INTO sales
		(product_id, quantity, sale_price, discount, channel, sale_date, created_by, reference)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.ExecContext(ctx, query,
		sale.ProductID,
		sale.Quantity,
		sale.SalePrice.String(),
		sale.DiscountPct.String(),
		sale.Channel,
		sale.SaleDate.UTC().Format(time.RFC3339),
		sale.CreatedBy,
		sale.Reference,
	)
	if err != nil {
		return 0, &inventory.StorageError{Op: "insert sale", Err: err}
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, &inventory.StorageError{Op: "insert sale", Err: err}
	}
	return id, nil
}

// RecentSales returns the newest sales first, at most limit.
func (s *Store) RecentSales(ctx context.Context, limit int) ([]inventory.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.recentSales(ctx, s.db, limit)
}

func (s *Store) recentSales(ctx context.Context, db dbtx, limit int) ([]inventory.Sale, error) {
	query := `
		SELECT id, product_id, quantity, sale_price, discount, channel, sale_date, created_by, reference
		FROM sales
		ORDER BY sale_date DESC, id DESC
	`
	if limit > 0 {
		query += " LIMIT ?"
		return s.querySales(ctx, db, query, limit)
	}
	return s.querySales(ctx, db, query)
}

// SalesInWindow returns sales whose sale_date falls inside the window's date
// bounds, newest first.
func (s *Store) SalesInWindow(ctx context.Context, w inventory.Window) ([]inventory.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.salesInWindow(ctx, s.db, w)
}

func (s *Store) salesInWindow(ctx context.Context, db dbtx, w inventory.Window) ([]inventory.Sale, error) {
	query := `
		SELECT id, product_id, quantity, sale_price, discount, channel, sale_date, created_by, reference
		FROM sales
	`
	where, args := windowClause("sale_date", w)
	query += where + " ORDER BY sale_date DESC, id DESC"
	return s.querySales(ctx, db, query, args...)
}

func (s *Store) querySales(ctx context.Context, db dbtx, query string, args ...any) ([]inventory.Sale, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &inventory.StorageError{Op: "query sales", Err: err}
	}
	defer rows.Close()

	var sales []inventory.Sale
	for rows.Next() {
		var (
			sale              inventory.Sale
			price, discount   string
			channel, by, ref  sql.NullString
			saleDate          string
		)
		err := rows.Scan(&sale.ID, &sale.ProductID, &sale.Quantity, &price, &discount, &channel, &saleDate, &by, &ref)
		if err != nil {
			return nil, &inventory.StorageError{Op: "scan sale", Err: err}
		}
		sale.SalePrice, err = parseDecimal(price)
		if err != nil {
			return nil, err
		}
		sale.DiscountPct, err = parseDecimal(discount)
		if err != nil {
			return nil, err
		}
		sale.Channel = channel.String
		sale.CreatedBy = by.String
		sale.Reference = ref.String
		sale.SaleDate, err = parseTime(saleDate)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, &inventory.StorageError{Op: "query sales", Err: err}
	}
	return sales, nil
}

// =============================================================================
// CATALOG STORE (inventory.CatalogStore interface)
// =============================================================================

// InsertProduct persists a product and returns its id.
func (s *Store) InsertProduct(ctx context.Context, p inventory.Product) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertProductTx(ctx, s.db, p)
}

func (s *Store) insertProductTx(ctx context.Context, db dbtx, p inventory.Product) (int64, error) {
	query := `
		INSERT INTO products
		(sku, name, sale_price, cost_price, brand, category, presentation, flavor,
		 weight, image_path, expiry_date, lot_number, min_stock, max_stock, location, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.ExecContext(ctx, query,
		nullString(p.SKU),
		p.Name,
		p.SalePrice.String(),
		p.CostPrice.String(),
		p.Brand,
		p.Category,
		p.Presentation,
		p.Flavor,
		p.Weight,
		p.ImagePath,
		p.ExpiryDate,
		p.LotNumber,
		p.MinStock,
		p.MaxStock,
		p.Location,
		string(p.Status),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, inventory.ErrDuplicateSKU
		}
		return 0, &inventory.StorageError{Op: "insert product", Err: err}
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, &inventory.StorageError{Op: "insert product", Err: err}
	}
	return id, nil
}

// UpdateProduct replaces the stored product with the same id.
func (s *Store) UpdateProduct(ctx context.Context, p inventory.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateProduct(ctx, s.db, p)
}

func (s *Store) updateProduct(ctx context.Context, db dbtx, p inventory.Product) error {
	query := `
		UPDATE products SET
			sku = ?, name = ?, sale_price = ?, cost_price = ?, brand = ?,
			category = ?, presentation = ?, flavor = ?, weight = ?, image_path = ?,
			expiry_date = ?, lot_number = ?, min_stock = ?, max_stock = ?,
			location = ?, status = ?
		WHERE id = ?
	`

	result, err := db.ExecContext(ctx, query,
		nullString(p.SKU),
		p.Name,
		p.SalePrice.String(),
		p.CostPrice.String(),
		p.Brand,
		p.Category,
		p.Presentation,
		p.Flavor,
		p.Weight,
		p.ImagePath,
		p.ExpiryDate,
		p.LotNumber,
		p.MinStock,
		p.MaxStock,
		p.Location,
		string(p.Status),
		p.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return inventory.ErrDuplicateSKU
		}
		return &inventory.StorageError{Op: "update product", Err: err}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return &inventory.StorageError{Op: "update product", Err: err}
	}
	if affected == 0 {
		return inventory.ErrProductNotFound
	}
	return nil
}

// DeleteProduct removes a product row.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deleteProduct(ctx, s.db, id)
}

func (s *Store) deleteProduct(ctx context.Context, db dbtx, id int64) error {
	result, err := db.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	if err != nil {
		return &inventory.StorageError{Op: "delete product", Err: err}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return &inventory.StorageError{Op: "delete product", Err: err}
	}
	if affected == 0 {
		return inventory.ErrProductNotFound
	}
	return nil
}

// GetProduct returns the product or (nil, nil) when not found.
func (s *Store) GetProduct(ctx context.Context, id int64) (*inventory.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getProduct(ctx, s.db, id)
}

func (s *Store) getProduct(ctx context.Context, db dbtx, id int64) (*inventory.Product, error) {
	rows, err := db.QueryContext(ctx, productSelect+" WHERE id = ?", id)
	if err != nil {
		return nil, &inventory.StorageError{Op: "get product", Err: err}
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, &inventory.StorageError{Op: "get product", Err: err}
		}
		return nil, nil
	}
	p, err := scanProduct(rows)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProducts returns all products ordered by id.
func (s *Store) ListProducts(ctx context.Context) ([]inventory.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listProducts(ctx, s.db)
}

func (s *Store) listProducts(ctx context.Context, db dbtx) ([]inventory.Product, error) {
	rows, err := db.QueryContext(ctx, productSelect+" ORDER BY id ASC")
	if err != nil {
		return nil, &inventory.StorageError{Op: "list products", Err: err}
	}
	defer rows.Close()

	var products []inventory.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &inventory.StorageError{Op: "list products", Err: err}
	}
	return products, nil
}

const productSelect = `
	SELECT id, sku, name, sale_price, cost_price, brand, category, presentation,
	       flavor, weight, image_path, expiry_date, lot_number, min_stock,
	       max_stock, location, status
	FROM products
`

func scanProduct(rows *sql.Rows) (inventory.Product, error) {
	var (
		p                    inventory.Product
		sku                  sql.NullString
		salePrice, costPrice string
		brand, category      sql.NullString
		presentation, flavor sql.NullString
		weight, imagePath    sql.NullString
		expiry, lot          sql.NullString
		location, status     sql.NullString
	)
	err := rows.Scan(&p.ID, &sku, &p.Name, &salePrice, &costPrice, &brand, &category,
		&presentation, &flavor, &weight, &imagePath, &expiry, &lot,
		&p.MinStock, &p.MaxStock, &location, &status)
	if err != nil {
		return inventory.Product{}, &inventory.StorageError{Op: "scan product", Err: err}
	}

	p.SKU = sku.String
	p.SalePrice, err = parseDecimal(salePrice)
	if err != nil {
		return inventory.Product{}, err
	}
	p.CostPrice, err = parseDecimal(costPrice)
	if err != nil {
		return inventory.Product{}, err
	}
	p.Brand = brand.String
	p.Category = category.String
	p.Presentation = presentation.String
	p.Flavor = flavor.String
	p.Weight = weight.String
	p.ImagePath = imagePath.String
	p.ExpiryDate = expiry.String
	p.LotNumber = lot.String
	p.Location = location.String
	p.Status = inventory.Status(status.String)
	return p, nil
}

// =============================================================================
// CASH STORE (inventory.CashStore interface)
// =============================================================================

// InsertCashMovement persists a cash movement and returns its id.
func (s *Store) InsertCashMovement(ctx context.Context, m inventory.CashMovement) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertCashMovementTx(ctx, s.db, m)
}

func (s *Store) insertCashMovementTx(ctx context.Context, db dbtx, m inventory.CashMovement) (int64, error) {
	query := `
		INSERT INTO cash_movements
		(type, amount, category, description, movement_date, created_by)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := db.ExecContext(ctx, query,
		string(m.Type),
		m.Amount.String(),
		m.Category,
		m.Description,
		m.MovementDate.UTC().Format(time.RFC3339),
		m.CreatedBy,
	)
	if err != nil {
		return 0, &inventory.StorageError{Op: "insert cash movement", Err: err}
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, &inventory.StorageError{Op: "insert cash movement", Err: err}
	}
	return id, nil
}

// RecentCashMovements returns the newest cash movements first, at most limit.
func (s *Store) RecentCashMovements(ctx context.Context, limit int) ([]inventory.CashMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.recentCashMovements(ctx, s.db, limit)
}

func (s *Store) recentCashMovements(ctx context.Context, db dbtx, limit int) ([]inventory.CashMovement, error) {
	query := `
		SELECT id, type, amount, category, description, movement_date, created_by
		FROM cash_movements
		ORDER BY movement_date DESC, id DESC
	`
	if limit > 0 {
		query += " LIMIT ?"
		return s.queryCashMovements(ctx, db, query, limit)
	}
	return s.queryCashMovements(ctx, db, query)
}

// CashMovementsInWindow returns cash movements inside the window's date bounds.
func (s *Store) CashMovementsInWindow(ctx context.Context, w inventory.Window) ([]inventory.CashMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cashMovementsInWindow(ctx, s.db, w)
}

func (s *Store) cashMovementsInWindow(ctx context.Context, db dbtx, w inventory.Window) ([]inventory.CashMovement, error) {
	query := `
		SELECT id, type, amount, category, description, movement_date, created_by
		FROM cash_movements
	`
	where, args := windowClause("movement_date", w)
	query += where + " ORDER BY movement_date DESC, id DESC"
	return s.queryCashMovements(ctx, db, query, args...)
}

func (s *Store) queryCashMovements(ctx context.Context, db dbtx, query string, args ...any) ([]inventory.CashMovement, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &inventory.StorageError{Op: "query cash movements", Err: err}
	}
	defer rows.Close()

	var movements []inventory.CashMovement
	for rows.Next() {
		var (
			m             inventory.CashMovement
			mvType        string
			amount        string
			category, by  sql.NullString
			description   sql.NullString
			movementDate  string
		)
		err := rows.Scan(&m.ID, &mvType, &amount, &category, &description, &movementDate, &by)
		if err != nil {
			return nil, &inventory.StorageError{Op: "scan cash movement", Err: err}
		}
		m.Type = inventory.MovementType(mvType)
		m.Amount, err = parseDecimal(amount)
		if err != nil {
			return nil, err
		}
		m.Category = category.String
		m.Description = description.String
		m.CreatedBy = by.String
		m.MovementDate, err = parseTime(movementDate)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &inventory.StorageError{Op: "query cash movements", Err: err}
	}
	return movements, nil
}

// =============================================================================
// TRANSACTIONAL STORE (inventory.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store inventory.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &inventory.StorageError{Op: "begin transaction", Err: err}
	}
	defer sqlTx.Rollback()

	view := &txStore{tx: sqlTx, parent: s}
	if err := fn(view); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return &inventory.StorageError{Op: "commit transaction", Err: err}
	}
	return nil
}

// txStore routes every call through the open transaction so reads inside
// WithTx observe uncommitted writes.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) AppendMovement(ctx context.Context, m inventory.Movement) (int64, error) {
	return ts.parent.appendMovementTx(ctx, ts.tx, m)
}

func (ts *txStore) MovementsFor(ctx context.Context, productID int64) ([]inventory.Movement, error) {
	return ts.parent.queryMovements(ctx, ts.tx, `
		SELECT id, product_id, type, quantity, note, created_by, reference, idempotency_key, created_at
		FROM stock_movements
		WHERE product_id = ?
		ORDER BY created_at ASC, id ASC
	`, productID)
}

func (ts *txStore) AllMovements(ctx context.Context) ([]inventory.Movement, error) {
	return ts.parent.queryMovements(ctx, ts.tx, `
		SELECT id, product_id, type, quantity, note, created_by, reference, idempotency_key, created_at
		FROM stock_movements
		ORDER BY created_at ASC, id ASC
	`)
}

func (ts *txStore) RecentMovements(ctx context.Context, limit int) ([]inventory.Movement, error) {
	return ts.parent.recentMovements(ctx, ts.tx, limit)
}

func (ts *txStore) HasMovements(ctx context.Context, productID int64) (bool, error) {
	return ts.parent.hasMovements(ctx, ts.tx, productID)
}

func (ts *txStore) InsertSale(ctx context.Context, sale inventory.Sale) (int64, error) {
	return ts.parent.insertSaleTx(ctx, ts.tx, sale)
}

func (ts *txStore) RecentSales(ctx context.Context, limit int) ([]inventory.Sale, error) {
	return ts.parent.recentSales(ctx, ts.tx, limit)
}

func (ts *txStore) SalesInWindow(ctx context.Context, w inventory.Window) ([]inventory.Sale, error) {
	return ts.parent.salesInWindow(ctx, ts.tx, w)
}

func (ts *txStore) InsertProduct(ctx context.Context, p inventory.Product) (int64, error) {
	return ts.parent.insertProductTx(ctx, ts.tx, p)
}

func (ts *txStore) UpdateProduct(ctx context.Context, p inventory.Product) error {
	return ts.parent.updateProduct(ctx, ts.tx, p)
}

func (ts *txStore) DeleteProduct(ctx context.Context, id int64) error {
	return ts.parent.deleteProduct(ctx, ts.tx, id)
}

func (ts *txStore) GetProduct(ctx context.Context, id int64) (*inventory.Product, error) {
	return ts.parent.getProduct(ctx, ts.tx, id)
}

func (ts *txStore) ListProducts(ctx context.Context) ([]inventory.Product, error) {
	return ts.parent.listProducts(ctx, ts.tx)
}

func (ts *txStore) InsertCashMovement(ctx context.Context, m inventory.CashMovement) (int64, error) {
	return ts.parent.insertCashMovementTx(ctx, ts.tx, m)
}

func (ts *txStore) RecentCashMovements(ctx context.Context, limit int) ([]inventory.CashMovement, error) {
	return ts.parent.recentCashMovements(ctx, ts.tx, limit)
}

func (ts *txStore) CashMovementsInWindow(ctx context.Context, w inventory.Window) ([]inventory.CashMovement, error) {
	return ts.parent.cashMovementsInWindow(ctx, ts.tx, w)
}

// =============================================================================
// HELPERS
// =============================================================================

// windowClause builds a WHERE fragment constraining the named RFC3339 column
// to the window's date bounds, inclusive on both ends.
func windowClause(column string, w inventory.Window) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if w.Start != nil {
		clauses = append(clauses, "DATE("+column+") >= DATE(?)")
		args = append(args, w.Start.UTC().Format(time.RFC3339))
	}
	if w.End != nil {
		clauses = append(clauses, "DATE("+column+") <= DATE(?)")
		args = append(args, w.End.UTC().Format(time.RFC3339))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &inventory.StorageError{Op: "parse decimal", Err: err}
	}
	return d, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, &inventory.StorageError{Op: "parse time", Err: err}
	}
	return t, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
