// Package lock provides the two interchangeable strategies that serialize
// concurrent stock mutations against a single item: an exclusive row lock
// held for a transaction, and a named distributed mutex held for the
// critical section.
package lock

import (
	"context"

	"itemledger/internal/repository"
)

// Guard serializes stock mutations against one item. The function receives
// the ItemStore it must use for reads and writes inside the critical
// section. Mutations on different items never block each other; the choice
// of implementation is a deployment decision, not a correctness one.
type Guard interface {
	WithItemLock(ctx context.Context, itemID int64, fn func(ctx context.Context, store repository.ItemStore) error) error
}
