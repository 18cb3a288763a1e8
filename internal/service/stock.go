package service

import (
	"context"
	"fmt"

	"itemledger/internal/lock"
	"itemledger/internal/model"
	"itemledger/internal/publisher"
	"itemledger/internal/repository"
	"itemledger/pkg/apperror"
	"itemledger/pkg/uid"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// StockPublisher receives (item, new stock) pairs after a mutation batch.
type StockPublisher interface {
	Publish(ctx context.Context, orderID string, updates []publisher.StockUpdate) error
}

// OrderItem is one decrement request within an order.
type OrderItem struct {
	ItemID   int64 `json:"item_id"`
	Quantity int64 `json:"quantity"`
}

// OrderItemResult is the per-item outcome of a batch decrement.
type OrderItemResult struct {
	ItemID   int64         `json:"item_id"`
	Quantity int64         `json:"quantity"`
	Outcome  model.Outcome `json:"outcome"`
	NewStock int64         `json:"new_stock,omitempty"`
}

// StockService owns all stock mutations. Every read-modify-write runs
// inside the configured lock strategy, and every decrement attempt leaves a
// log entry recording its outcome.
type StockService struct {
	guard    lock.Guard
	catalog  repository.CatalogRepository
	stockLog repository.StockLogRepository
	pub      StockPublisher // optional
	log      *logrus.Logger
}

// NewStockService creates a stock service. pub may be nil to disable
// outbound event publishing.
func NewStockService(
	guard lock.Guard,
	catalog repository.CatalogRepository,
	stockLog repository.StockLogRepository,
	pub StockPublisher,
	log *logrus.Logger,
) *StockService {
	return &StockService{
		guard:    guard,
		catalog:  catalog,
		stockLog: stockLog,
		pub:      pub,
		log:      log,
	}
}

// Decrease removes quantity from an item's stock on behalf of an order.
// Business failures (item missing, insufficient stock) are recorded as
// FAILED log entries before being surfaced; infrastructure failures (lock
// timeout or unavailability) propagate without a log entry since no
// mutation was attempted.
func (s *StockService) Decrease(ctx context.Context, orderID string, itemID, quantity int64) (*model.Item, error) {
	var updated *model.Item

	err := s.guard.WithItemLock(ctx, itemID, func(ctx context.Context, store repository.ItemStore) error {
		item, err := store.ItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		if !item.CanDecrease(quantity) {
			return apperror.InsufficientStock(
				fmt.Sprintf("item %d has stock %d, cannot remove %d", itemID, item.Stock, quantity))
		}
		item.Decrease(quantity)
		if err := store.UpdateStock(ctx, itemID, item.Stock); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		if apperror.IsBusiness(err) {
			s.record(ctx, orderID, itemID, quantity, model.OutcomeFailed)
		}
		return nil, err
	}

	if err := s.recordStrict(ctx, orderID, itemID, quantity, model.OutcomeSucceeded); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"order_id": orderID,
		"item_id":  itemID,
		"quantity": quantity,
		"stock":    updated.Stock,
	}).Debug("stock decreased")
	return updated, nil
}

// Increase adds quantity to an item's stock unconditionally (no upper
// bound). Increases are serialized through the same guard as decreases.
func (s *StockService) Increase(ctx context.Context, itemID, quantity int64) (*model.Item, error) {
	var updated *model.Item

	err := s.guard.WithItemLock(ctx, itemID, func(ctx context.Context, store repository.ItemStore) error {
		item, err := store.ItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		item.Increase(quantity)
		if err := store.UpdateStock(ctx, itemID, item.Stock); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DecreaseBatch processes each order item independently; one failure never
// aborts the rest. The succeeded (item, new stock) pairs are handed to the
// publisher fire-and-forget. An empty orderID is replaced with a generated
// one so the attempts still share an order-scoped log history.
func (s *StockService) DecreaseBatch(ctx context.Context, orderID string, items []OrderItem) []OrderItemResult {
	if orderID == "" {
		orderID = uid.New()
	}

	results := make([]OrderItemResult, 0, len(items))
	var updates []publisher.StockUpdate
	for _, req := range items {
		result := OrderItemResult{ItemID: req.ItemID, Quantity: req.Quantity, Outcome: model.OutcomeFailed}
		item, err := s.Decrease(ctx, orderID, req.ItemID, req.Quantity)
		if err == nil {
			result.Outcome = model.OutcomeSucceeded
			result.NewStock = item.Stock
			updates = append(updates, publisher.StockUpdate{ItemID: item.ID, NewStock: item.Stock})
		} else {
			s.log.WithFields(logrus.Fields{
				"order_id": orderID,
				"item_id":  req.ItemID,
			}).WithError(err).Warn("batch decrement item failed")
		}
		results = append(results, result)
	}

	if s.pub != nil && len(updates) > 0 {
		if err := s.pub.Publish(ctx, orderID, updates); err != nil {
			// Fire-and-forget: the mutations stand regardless.
			s.log.WithField("order_id", orderID).WithError(err).Warn("stock update publish failed")
		}
	}
	return results
}

// Update mutates non-stock attributes under the item lock, matching the
// serialization of stock mutations so readers never observe a torn row.
func (s *StockService) Update(ctx context.Context, itemID int64, name string, price decimal.Decimal) (*model.Item, error) {
	var updated *model.Item

	err := s.guard.WithItemLock(ctx, itemID, func(ctx context.Context, store repository.ItemStore) error {
		item, err := store.ItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		if err := store.UpdateAttributes(ctx, itemID, name, price); err != nil {
			return err
		}
		item.Name = name
		item.Price = price
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Create registers a new item under an existing shop and returns the saved
// row as re-read from the catalog.
func (s *StockService) Create(ctx context.Context, shopID int64, name string, price decimal.Decimal, stock int64) (*model.Item, error) {
	shop, err := s.catalog.GetShop(ctx, shopID)
	if err != nil {
		return nil, err
	}

	item := &model.Item{ShopID: shop.ID, Name: name, Price: price, Stock: stock}
	if _, err := s.catalog.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	return s.catalog.GetItemByShopAndName(ctx, shop.ID, name)
}

// record appends a log entry, logging (but not surfacing) append failures.
// Used on the business-failure path where the caller already has an error.
func (s *StockService) record(ctx context.Context, orderID string, itemID, quantity int64, outcome model.Outcome) {
	if _, err := s.stockLog.Record(ctx, orderID, itemID, quantity, outcome); err != nil {
		s.log.WithFields(logrus.Fields{
			"order_id": orderID,
			"item_id":  itemID,
			"outcome":  outcome,
		}).WithError(err).Error("failed to record stock log entry")
	}
}

// recordStrict appends a log entry and surfaces append failures. The append
// runs after the guard's critical section, so on the record-lock path the
// stock transaction has already committed: a log-backend failure in that
// window leaves an applied decrement with no SUCCEEDED entry, invisible to
// compensation. The log lives on its own connection and cannot join the
// stock transaction, so the INTERNAL error returned here is the caller's
// only signal that the order needs manual reconciliation.
func (s *StockService) recordStrict(ctx context.Context, orderID string, itemID, quantity int64, outcome model.Outcome) error {
	if _, err := s.stockLog.Record(ctx, orderID, itemID, quantity, outcome); err != nil {
		s.log.WithFields(logrus.Fields{
			"order_id": orderID,
			"item_id":  itemID,
			"outcome":  outcome,
		}).WithError(err).Error("failed to record stock log entry")
		return apperror.Internal("stock mutation applied but log append failed").WithCause(err)
	}
	return nil
}
