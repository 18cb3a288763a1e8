package repository

import (
	"context"

	"itemledger/internal/model"

	"github.com/shopspring/decimal"
)

// ItemStore is the item mutation surface a lock strategy hands to its
// critical section. The transactional implementation reads with an exclusive
// row lock; the plain implementation relies on an external mutex held by the
// caller.
type ItemStore interface {
	// ItemForUpdate loads an item for a read-modify-write cycle.
	ItemForUpdate(ctx context.Context, itemID int64) (*model.Item, error)

	// UpdateStock persists a new stock value.
	UpdateStock(ctx context.Context, itemID int64, stock int64) error

	// UpdateAttributes persists non-stock attributes.
	UpdateAttributes(ctx context.Context, itemID int64, name string, price decimal.Decimal) error
}

// CatalogRepository defines item and shop data access.
type CatalogRepository interface {
	// ItemStore methods operate outside any transaction.
	ItemStore

	// InTx runs fn inside a transaction; the ItemStore it receives takes an
	// exclusive row lock on every ItemForUpdate, held until commit/rollback.
	InTx(ctx context.Context, fn func(store ItemStore) error) error

	CreateShop(ctx context.Context, shop *model.Shop) (int64, error)
	GetShop(ctx context.Context, shopID int64) (*model.Shop, error)
	FindShopsByLocation(ctx context.Context, location string) ([]model.Shop, error)

	CreateItem(ctx context.Context, item *model.Item) (int64, error)
	GetItem(ctx context.Context, itemID int64) (*model.Item, error)
	GetItemByShopAndName(ctx context.Context, shopID int64, name string) (*model.Item, error)
	FindItemsByName(ctx context.Context, name string) ([]model.Item, error)

	Close() error
}

// StockLogRepository defines access to the append-only stock update log.
type StockLogRepository interface {
	// Record appends a new entry and returns its id. Ids are monotonic and
	// reflect commit order.
	Record(ctx context.Context, orderID string, itemID, quantity int64, outcome model.Outcome) (int64, error)

	// ListByOrder returns all entries for an order ordered by id.
	// Returns a NO_SUCH_ORDER error when the order has no entries.
	ListByOrder(ctx context.Context, orderID string) ([]model.StockLogEntry, error)

	// History returns the deduplicated audit view of an order: when several
	// entries exist for one item, only the one with the greatest id is kept.
	History(ctx context.Context, orderID string) ([]model.StockLogEntry, error)

	// MarkReversed transitions a SUCCEEDED entry to REVERSED. Returns an
	// ENTRY_NOT_REVERSIBLE error for entries in any other state.
	MarkReversed(ctx context.Context, entryID int64) error

	Close() error
}
