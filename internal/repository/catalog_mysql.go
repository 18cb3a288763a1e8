package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"itemledger/internal/model"
	"itemledger/pkg/apperror"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

// MySQLCatalogRepository implements CatalogRepository using MySQL.
type MySQLCatalogRepository struct {
	db *sql.DB
}

// NewMySQLCatalogRepository opens a MySQL-backed catalog repository.
func NewMySQLCatalogRepository(dsn string) (*MySQLCatalogRepository, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	if err := createCatalogTablesMySQL(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &MySQLCatalogRepository{db: db}, nil
}

func createCatalogTablesMySQL(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS shops (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			location VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			KEY idx_shops_location (location)
		)`,
		`CREATE TABLE IF NOT EXISTS items (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			shop_id BIGINT NOT NULL,
			name VARCHAR(255) NOT NULL,
			price DECIMAL(12,2) NOT NULL,
			stock BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY uq_items_shop_name (shop_id, name),
			KEY idx_items_name (name)
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// querier abstracts *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// mysqlItemStore implements ItemStore over either a connection pool (plain
// reads) or a transaction (locked reads).
type mysqlItemStore struct {
	q      querier
	locked bool
}

func (s mysqlItemStore) ItemForUpdate(ctx context.Context, itemID int64) (*model.Item, error) {
	query := `SELECT id, shop_id, name, price, stock, created_at, updated_at FROM items WHERE id = ?`
	if s.locked {
		query += ` FOR UPDATE`
	}
	return scanItem(s.q.QueryRowContext(ctx, query, itemID), itemID)
}

func (s mysqlItemStore) UpdateStock(ctx context.Context, itemID int64, stock int64) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE items SET stock = ? WHERE id = ?`, stock, itemID)
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		// Stock value may be unchanged; verify the row exists.
		var id int64
		if err := s.q.QueryRowContext(ctx, `SELECT id FROM items WHERE id = ?`, itemID).Scan(&id); err != nil {
			return apperror.NotFound(fmt.Sprintf("item %d not found", itemID))
		}
	}
	return nil
}

func (s mysqlItemStore) UpdateAttributes(ctx context.Context, itemID int64, name string, price decimal.Decimal) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE items SET name = ?, price = ? WHERE id = ?`, name, price.String(), itemID)
	if err != nil {
		return fmt.Errorf("failed to update item attributes: %w", err)
	}
	return nil
}

// ItemForUpdate loads an item without a row lock. Used by the distributed
// mutex strategy, which serializes externally.
func (r *MySQLCatalogRepository) ItemForUpdate(ctx context.Context, itemID int64) (*model.Item, error) {
	return mysqlItemStore{q: r.db}.ItemForUpdate(ctx, itemID)
}

// UpdateStock persists a new stock value outside any transaction.
func (r *MySQLCatalogRepository) UpdateStock(ctx context.Context, itemID int64, stock int64) error {
	return mysqlItemStore{q: r.db}.UpdateStock(ctx, itemID, stock)
}

// UpdateAttributes persists non-stock attributes outside any transaction.
func (r *MySQLCatalogRepository) UpdateAttributes(ctx context.Context, itemID int64, name string, price decimal.Decimal) error {
	return mysqlItemStore{q: r.db}.UpdateAttributes(ctx, itemID, name, price)
}

// InTx runs fn inside a transaction whose item reads take exclusive row
// locks (SELECT ... FOR UPDATE), released on commit or rollback.
func (r *MySQLCatalogRepository) InTx(ctx context.Context, fn func(store ItemStore) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(mysqlItemStore{q: tx, locked: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}
	return nil
}

// CreateShop inserts a shop and returns its id.
func (r *MySQLCatalogRepository) CreateShop(ctx context.Context, shop *model.Shop) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO shops (name, location) VALUES (?, ?)`, shop.Name, shop.Location)
	if err != nil {
		return 0, fmt.Errorf("failed to create shop: %w", err)
	}
	return result.LastInsertId()
}

// GetShop retrieves a shop by id.
func (r *MySQLCatalogRepository) GetShop(ctx context.Context, shopID int64) (*model.Shop, error) {
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
func (r *MySQLCatalogRepository) FindShopsByLocation(ctx context.Context, location string) ([]model.Shop, error) {
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
func (r *MySQLCatalogRepository) CreateItem(ctx context.Context, item *model.Item) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO items (shop_id, name, price, stock) VALUES (?, ?, ?, ?)`,
		item.ShopID, item.Name, item.Price.String(), item.Stock)
	if err != nil {
		return 0, fmt.Errorf("failed to create item: %w", err)
	}
	return result.LastInsertId()
}

// GetItem retrieves an item by id.
func (r *MySQLCatalogRepository) GetItem(ctx context.Context, itemID int64) (*model.Item, error) {
	return scanItem(r.db.QueryRowContext(ctx,
		`SELECT id, shop_id, name, price, stock, created_at, updated_at FROM items WHERE id = ?`,
		itemID), itemID)
}

// GetItemByShopAndName retrieves an item by owning shop and name.
func (r *MySQLCatalogRepository) GetItemByShopAndName(ctx context.Context, shopID int64, name string) (*model.Item, error) {
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
func (r *MySQLCatalogRepository) FindItemsByName(ctx context.Context, name string) ([]model.Item, error) {
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
func (r *MySQLCatalogRepository) Close() error {
	return r.db.Close()
}

// scanItem maps one item row, converting sql.ErrNoRows into NOT_FOUND.
func scanItem(row *sql.Row, itemID int64) (*model.Item, error) {
	item, err := scanItemRow(row)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound(fmt.Sprintf("item %d not found", itemID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

func scanItemRow(row *sql.Row) (*model.Item, error) {
	var (
		item     model.Item
		priceRaw string
	)
	err := row.Scan(&item.ID, &item.ShopID, &item.Name, &priceRaw, &item.Stock,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if item.Price, err = decimal.NewFromString(priceRaw); err != nil {
		return nil, fmt.Errorf("failed to parse price: %w", err)
	}
	return &item, nil
}
