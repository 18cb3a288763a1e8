package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"itemledger/internal/model"
	"itemledger/pkg/apperror"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStockLogRepository implements StockLogRepository using MySQL.
type MySQLStockLogRepository struct {
	db *sql.DB
}

// NewMySQLStockLogRepository opens a MySQL-backed stock log repository.
func NewMySQLStockLogRepository(dsn string) (*MySQLStockLogRepository, error) {
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

	query := `CREATE TABLE IF NOT EXISTS stock_update_log (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		order_id VARCHAR(64) NOT NULL,
		item_id BIGINT NOT NULL,
		quantity BIGINT NOT NULL,
		outcome VARCHAR(16) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_stock_log_order (order_id)
	)`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &MySQLStockLogRepository{db: db}, nil
}

// Record appends a new entry and returns its id.
func (r *MySQLStockLogRepository) Record(ctx context.Context, orderID string, itemID, quantity int64, outcome model.Outcome) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO stock_update_log (order_id, item_id, quantity, outcome) VALUES (?, ?, ?, ?)`,
		orderID, itemID, quantity, string(outcome))
	if err != nil {
		return 0, fmt.Errorf("failed to record log entry: %w", err)
	}
	return result.LastInsertId()
}

// ListByOrder returns all entries for an order ordered by id.
func (r *MySQLStockLogRepository) ListByOrder(ctx context.Context, orderID string) ([]model.StockLogEntry, error) {
	return listLogEntries(ctx, r.db,
		`SELECT id, order_id, item_id, quantity, outcome, created_at
		 FROM stock_update_log WHERE order_id = ? ORDER BY id`, orderID)
}

// History returns the deduplicated audit view: the entry with the greatest
// id per item supersedes earlier ones.
func (r *MySQLStockLogRepository) History(ctx context.Context, orderID string) ([]model.StockLogEntry, error) {
	return listLogEntries(ctx, r.db,
		`SELECT l.id, l.order_id, l.item_id, l.quantity, l.outcome, l.created_at
		 FROM stock_update_log l
		 JOIN (SELECT MAX(id) AS id FROM stock_update_log WHERE order_id = ? GROUP BY item_id) latest
		   ON l.id = latest.id
		 ORDER BY l.id`, orderID)
}

// MarkReversed transitions a SUCCEEDED entry to REVERSED.
func (r *MySQLStockLogRepository) MarkReversed(ctx context.Context, entryID int64) error {
	return markReversed(ctx, r.db, entryID)
}

// Close closes the database connection.
func (r *MySQLStockLogRepository) Close() error {
	return r.db.Close()
}

// listLogEntries runs a log query and maps the rows, converting an empty
// result into NO_SUCH_ORDER.
func listLogEntries(ctx context.Context, q querier, query, orderID string) ([]model.StockLogEntry, error) {
	rows, err := q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list log entries: %w", err)
	}
	defer rows.Close()

	var entries []model.StockLogEntry
	for rows.Next() {
		var (
			e       model.StockLogEntry
			outcome string
		)
		if err := rows.Scan(&e.ID, &e.OrderID, &e.ItemID, &e.Quantity, &outcome, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		e.Outcome = model.Outcome(outcome)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, apperror.NoSuchOrder(fmt.Sprintf("no log entries for order %s", orderID))
	}
	return entries, nil
}

// markReversed performs the conditional transition shared by both backends.
// The outcome guard in the WHERE clause makes the transition atomic per entry
// and at most once.
func markReversed(ctx context.Context, q querier, entryID int64) error {
	result, err := q.ExecContext(ctx,
		`UPDATE stock_update_log SET outcome = ? WHERE id = ? AND outcome = ?`,
		string(model.OutcomeReversed), entryID, string(model.OutcomeSucceeded))
	if err != nil {
		return fmt.Errorf("failed to mark entry reversed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark entry reversed: %w", err)
	}
	if rows == 0 {
		return apperror.EntryNotReversible(fmt.Sprintf("log entry %d is not in SUCCEEDED state", entryID))
	}
	return nil
}
