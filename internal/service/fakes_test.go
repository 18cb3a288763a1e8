package service

import (
	"context"
	"fmt"
	"sync"

	"itemledger/internal/model"
	"itemledger/internal/publisher"
	"itemledger/internal/repository"
	"itemledger/pkg/apperror"

	"github.com/shopspring/decimal"
)

// memCatalog is an in-memory CatalogRepository. InTx serializes critical
// sections on a single mutex, which is the coarse equivalent of the row
// lock the real backends take.
type memCatalog struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	items  map[int64]*model.Item
	shops  map[int64]*model.Shop
	nextID int64
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		items: make(map[int64]*model.Item),
		shops: make(map[int64]*model.Shop),
	}
}

func (c *memCatalog) addShop(name, location string) *model.Shop {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	shop := &model.Shop{ID: c.nextID, Name: name, Location: location}
	c.shops[shop.ID] = shop
	return shop
}

func (c *memCatalog) addItem(shopID int64, name string, price int64, stock int64) *model.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	item := &model.Item{ID: c.nextID, ShopID: shopID, Name: name, Price: decimal.NewFromInt(price), Stock: stock}
	c.items[item.ID] = item
	return item
}

func (c *memCatalog) ItemForUpdate(ctx context.Context, itemID int64) (*model.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[itemID]
	if !ok {
		return nil, apperror.NotFound(fmt.Sprintf("item %d not found", itemID))
	}
	copied := *item
	return &copied, nil
}

func (c *memCatalog) UpdateStock(ctx context.Context, itemID int64, stock int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[itemID]
	if !ok {
		return apperror.NotFound(fmt.Sprintf("item %d not found", itemID))
	}
	item.Stock = stock
	return nil
}

func (c *memCatalog) UpdateAttributes(ctx context.Context, itemID int64, name string, price decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[itemID]
	if !ok {
		return apperror.NotFound(fmt.Sprintf("item %d not found", itemID))
	}
	item.Name = name
	item.Price = price
	return nil
}

func (c *memCatalog) InTx(ctx context.Context, fn func(store repository.ItemStore) error) error {
	c.txMu.Lock()
	defer c.txMu.Unlock()
	return fn(c)
}

func (c *memCatalog) CreateShop(ctx context.Context, shop *model.Shop) (int64, error) {
	created := c.addShop(shop.Name, shop.Location)
	return created.ID, nil
}

func (c *memCatalog) GetShop(ctx context.Context, shopID int64) (*model.Shop, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	shop, ok := c.shops[shopID]
	if !ok {
		return nil, apperror.NotFound(fmt.Sprintf("shop %d not found", shopID))
	}
	copied := *shop
	return &copied, nil
}

func (c *memCatalog) FindShopsByLocation(ctx context.Context, location string) ([]model.Shop, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var shops []model.Shop
	for id := int64(1); id <= c.nextID; id++ {
		if shop, ok := c.shops[id]; ok && shop.Location == location {
			shops = append(shops, *shop)
		}
	}
	return shops, nil
}

func (c *memCatalog) CreateItem(ctx context.Context, item *model.Item) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	copied := *item
	copied.ID = c.nextID
	c.items[copied.ID] = &copied
	return copied.ID, nil
}

func (c *memCatalog) GetItem(ctx context.Context, itemID int64) (*model.Item, error) {
	return c.ItemForUpdate(ctx, itemID)
}

func (c *memCatalog) GetItemByShopAndName(ctx context.Context, shopID int64, name string) (*model.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := int64(1); id <= c.nextID; id++ {
		if item, ok := c.items[id]; ok && item.ShopID == shopID && item.Name == name {
			copied := *item
			return &copied, nil
		}
	}
	return nil, apperror.NotFound(fmt.Sprintf("item %q not found in shop %d", name, shopID))
}

func (c *memCatalog) FindItemsByName(ctx context.Context, name string) ([]model.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var items []model.Item
	for id := int64(1); id <= c.nextID; id++ {
		if item, ok := c.items[id]; ok && item.Name == name {
			items = append(items, *item)
		}
	}
	return items, nil
}

func (c *memCatalog) Close() error { return nil }

func (c *memCatalog) stockOf(itemID int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items[itemID].Stock
}

func (c *memCatalog) deleteItem(itemID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, itemID)
}

// memStockLog is an in-memory StockLogRepository.
type memStockLog struct {
	mu      sync.Mutex
	entries []model.StockLogEntry
	nextID  int64
	failAll bool // force Record to fail
}

func newMemStockLog() *memStockLog {
	return &memStockLog{}
}

func (l *memStockLog) Record(ctx context.Context, orderID string, itemID, quantity int64, outcome model.Outcome) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAll {
		return 0, fmt.Errorf("log backend unavailable")
	}
	l.nextID++
	l.entries = append(l.entries, model.StockLogEntry{
		ID: l.nextID, OrderID: orderID, ItemID: itemID, Quantity: quantity, Outcome: outcome,
	})
	return l.nextID, nil
}

func (l *memStockLog) ListByOrder(ctx context.Context, orderID string) ([]model.StockLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.StockLogEntry
	for _, e := range l.entries {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil, apperror.NoSuchOrder(fmt.Sprintf("no log entries for order %s", orderID))
	}
	return out, nil
}

func (l *memStockLog) History(ctx context.Context, orderID string) ([]model.StockLogEntry, error) {
	all, err := l.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	latest := make(map[int64]model.StockLogEntry)
	for _, e := range all {
		latest[e.ItemID] = e // ordered by id, later wins
	}
	var out []model.StockLogEntry
	for _, e := range all {
		if latest[e.ItemID].ID == e.ID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *memStockLog) MarkReversed(ctx context.Context, entryID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.entries {
		if l.entries[i].ID != entryID {
			continue
		}
		if l.entries[i].Outcome != model.OutcomeSucceeded {
			return apperror.EntryNotReversible(fmt.Sprintf("log entry %d is not in SUCCEEDED state", entryID))
		}
		l.entries[i].Outcome = model.OutcomeReversed
		return nil
	}
	return apperror.EntryNotReversible(fmt.Sprintf("log entry %d not found", entryID))
}

func (l *memStockLog) Close() error { return nil }

func (l *memStockLog) byOutcome(orderID string, outcome model.Outcome) []model.StockLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.StockLogEntry
	for _, e := range l.entries {
		if e.OrderID == orderID && e.Outcome == outcome {
			out = append(out, e)
		}
	}
	return out
}

// fakePublisher records published batches.
type fakePublisher struct {
	mu      sync.Mutex
	batches map[string][]publisher.StockUpdate
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{batches: make(map[string][]publisher.StockUpdate)}
}

func (p *fakePublisher) Publish(ctx context.Context, orderID string, updates []publisher.StockUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches[orderID] = append(p.batches[orderID], updates...)
	return nil
}

// timeoutGuard simulates a lock strategy whose acquisition always times out.
type timeoutGuard struct{}

func (timeoutGuard) WithItemLock(ctx context.Context, itemID int64, fn func(ctx context.Context, store repository.ItemStore) error) error {
	return apperror.LockTimeout("")
}
