package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"itemledger/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteStockLogRepository implements StockLogRepository using SQLite.
type SQLiteStockLogRepository struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStockLogRepository opens a SQLite-backed stock log repository.
func NewSQLiteStockLogRepository(dbPath string) (*SQLiteStockLogRepository, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports 1 writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	query := `
	CREATE TABLE IF NOT EXISTS stock_update_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id TEXT NOT NULL,
		item_id INTEGER NOT NULL,
		quantity INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_stock_log_order ON stock_update_log(order_id);
	`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteStockLogRepository{db: db}, nil
}

// Record appends a new entry and returns its id.
func (r *SQLiteStockLogRepository) Record(ctx context.Context, orderID string, itemID, quantity int64, outcome model.Outcome) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO stock_update_log (order_id, item_id, quantity, outcome) VALUES (?, ?, ?, ?)`,
		orderID, itemID, quantity, string(outcome))
	if err != nil {
		return 0, fmt.Errorf("failed to record log entry: %w", err)
	}
	return result.LastInsertId()
}

// ListByOrder returns all entries for an order ordered by id.
func (r *SQLiteStockLogRepository) ListByOrder(ctx context.Context, orderID string) ([]model.StockLogEntry, error) {
	return listLogEntries(ctx, r.db,
		`SELECT id, order_id, item_id, quantity, outcome, created_at
		 FROM stock_update_log WHERE order_id = ? ORDER BY id`, orderID)
}

// History returns the deduplicated audit view: the entry with the greatest
// id per item supersedes earlier ones.
func (r *SQLiteStockLogRepository) History(ctx context.Context, orderID string) ([]model.StockLogEntry, error) {
	return listLogEntries(ctx, r.db,
		`SELECT l.id, l.order_id, l.item_id, l.quantity, l.outcome, l.created_at
		 FROM stock_update_log l
		 JOIN (SELECT MAX(id) AS id FROM stock_update_log WHERE order_id = ? GROUP BY item_id) latest
		   ON l.id = latest.id
		 ORDER BY l.id`, orderID)
}

// MarkReversed transitions a SUCCEEDED entry to REVERSED.
func (r *SQLiteStockLogRepository) MarkReversed(ctx context.Context, entryID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return markReversed(ctx, r.db, entryID)
}

// Close closes the database connection.
func (r *SQLiteStockLogRepository) Close() error {
	return r.db.Close()
}
