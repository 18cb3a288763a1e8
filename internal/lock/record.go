package lock

import (
	"context"

	"itemledger/internal/repository"
)

// RecordGuard serializes mutations with a storage-level exclusive lock on
// the item row. The lock is taken by the locked read inside fn and released
// automatically when the surrounding transaction commits or rolls back, so
// every exit path (including panics unwinding through the deferred rollback)
// releases it.
type RecordGuard struct {
	catalog repository.CatalogRepository
}

// NewRecordGuard creates a record-lock guard over the given catalog.
func NewRecordGuard(catalog repository.CatalogRepository) *RecordGuard {
	return &RecordGuard{catalog: catalog}
}

// WithItemLock runs fn inside a transaction whose item reads lock the row.
// The wait bound is governed by the database's transaction/lock timeout.
func (g *RecordGuard) WithItemLock(ctx context.Context, itemID int64, fn func(ctx context.Context, store repository.ItemStore) error) error {
	return g.catalog.InTx(ctx, func(store repository.ItemStore) error {
		return fn(ctx, store)
	})
}
