package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"itemledger/internal/model"
	"itemledger/pkg/apperror"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteCatalogRepository implements CatalogRepository using SQLite.
// Intended for development and single-node deployments; SQLite has no row
// locks, so the transactional path serializes on the repository mutex and
// the single writer connection instead.
type SQLiteCatalogRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteCatalogRepository opens a SQLite-backed catalog repository.
// dbPath is the path to the database file (e.g., "./data/catalog.db").
func NewSQLiteCatalogRepository(dbPath string) (*SQLiteCatalogRepository, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports 1 writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createCatalogTablesSQLite(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteCatalogRepository{db: db}, nil
}

func createCatalogTablesSQLite(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS shops (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		location TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_shops_location ON shops(location);
	CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		shop_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		price TEXT NOT NULL,
		stock INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(shop_id, name)
	);
	CREATE INDEX IF NOT EXISTS idx_items_name ON items(name);
	`
	_, err := db.Exec(query)
	return err
}

// sqliteItemStore implements ItemStore over a connection pool or transaction.
// SQLite reads need no FOR UPDATE clause; the single writer connection
// serializes transactions.
type sqliteItemStore struct {
	q querier
}

func (s sqliteItemStore) ItemForUpdate(ctx context.Context, itemID int64) (*model.Item, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, shop_id, name, price, stock, created_at, updated_at FROM items WHERE id = ?`,
		itemID)
	return scanItem(row, itemID)
}

func (s sqliteItemStore) UpdateStock(ctx context.Context, itemID int64, stock int64) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE items SET stock = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, stock, itemID)
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperror.NotFound(fmt.Sprintf("item %d not found", itemID))
	}
	return nil
}

func (s sqliteItemStore) UpdateAttributes(ctx context.Context, itemID int64, name string, price decimal.Decimal) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE items SET name = ?, price = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, price.String(), itemID)
	if err != nil {
		return fmt.Errorf("failed to update item attributes: %w", err)
	}
	return nil
}

// ItemForUpdate loads an item without a transaction.
func (r *SQLiteCatalogRepository) ItemForUpdate(ctx context.Context, itemID int64) (*model.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sqliteItemStore{q: r.db}.ItemForUpdate(ctx, itemID)
}

// UpdateStock persists a new stock value outside any transaction.
func (r *SQLiteCatalogRepository) UpdateStock(ctx context.Context, itemID int64, stock int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sqliteItemStore{q: r.db}.UpdateStock(ctx, itemID, stock)
}

// UpdateAttributes persists non-stock attributes outside any transaction.
func (r *SQLiteCatalogRepository) UpdateAttributes(ctx context.Context, itemID int64, name string, price decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sqliteItemStore{q: r.db}.UpdateAttributes(ctx, itemID, name, price)
}

// InTx runs fn inside a transaction. The repository mutex stands in for the
// per-row exclusive lock MySQL provides.
func (r *SQLiteCatalogRepository) InTx(ctx context.Context, fn func(store ItemStore) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(sqliteItemStore{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}
	return nil
}

// CreateShop inserts a shop and returns its id.
func (r *SQLiteCatalogRepository) CreateShop(ctx context.Context, shop *model.Shop) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO shops (name, location) VALUES (?, ?)`, shop.Name, shop.Location)
	if err != nil {
		return 0, fmt.Errorf("failed to create shop: %w", err)
	}
	return result.LastInsertId()
}

// GetShop retrieves a shop by id.
func (r *SQLiteCatalogRepository) GetShop(ctx context.Context, shopID int64) (*model.Shop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var shop model.Shop
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, location, created_at FROM shops WHERE id = ?`, shopID).
		Scan(&shop.ID, &shop.Name, &shop.Location, &shop.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound(fmt.Sprintf("shop %d not found", shopID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shop: %w", err)
	}
	return &shop, nil
}

// FindShopsByLocation lists shops in a location, ordered by id.
func (r *SQLiteCatalogRepository) FindShopsByLocation(ctx context.Context, location string) ([]model.Shop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, location, created_at FROM shops WHERE location = ? ORDER BY id`, location)
	if err != nil {
		return nil, fmt.Errorf("failed to find shops: %w", err)
	}
	defer rows.Close()

	var shops []model.Shop
	for rows.Next() {
		var shop model.Shop
		if err := rows.Scan(&shop.ID, &shop.Name, &shop.Location, &shop.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan shop: %w", err)
		}
		shops = append(shops, shop)
	}
	return shops, rows.Err()
}

// CreateItem inserts an item and returns its id.
func (r *SQLiteCatalogRepository) CreateItem(ctx context.Context, item *model.Item) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO items (shop_id, name, price, stock) VALUES (?, ?, ?, ?)`,
		item.ShopID, item.Name, item.Price.String(), item.Stock)
	if err != nil {
		return 0, fmt.Errorf("failed to create item: %w", err)
	}
	return result.LastInsertId()
}

// GetItem retrieves an item by id.
func (r *SQLiteCatalogRepository) GetItem(ctx context.Context, itemID int64) (*model.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row := r.db.QueryRowContext(ctx,
		`SELECT id, shop_id, name, price, stock, created_at, updated_at FROM items WHERE id = ?`,
		itemID)
	return scanItem(row, itemID)
}

// GetItemByShopAndName retrieves an item by owning shop and name.
func (r *SQLiteCatalogRepository) GetItemByShopAndName(ctx context.Context, shopID int64, name string) (*model.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row := r.db.QueryRowContext(ctx,
		`SELECT id, shop_id, name, price, stock, created_at, updated_at
		 FROM items WHERE shop_id = ? AND name = ? LIMIT 1`, shopID, name)

	item, err := scanItemRow(row)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound(fmt.Sprintf("item %q not found in shop %d", name, shopID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item by shop and name: %w", err)
	}
	return item, nil
}

// FindItemsByName lists items matching a name across all shops, ordered by id.
func (r *SQLiteCatalogRepository) FindItemsByName(ctx context.Context, name string) ([]model.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, shop_id, name, price, stock, created_at, updated_at
		 FROM items WHERE name = ? ORDER BY id`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to find items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var (
			item     model.Item
			priceRaw string
		)
		if err := rows.Scan(&item.ID, &item.ShopID, &item.Name, &priceRaw, &item.Stock,
			&item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		if item.Price, err = decimal.NewFromString(priceRaw); err != nil {
			return nil, fmt.Errorf("failed to parse price: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Close closes the database connection.
func (r *SQLiteCatalogRepository) Close() error {
	return r.db.Close()
}
