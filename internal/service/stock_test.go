package service

import (
	"context"
	"sync"
	"testing"

	"itemledger/internal/lock"
	"itemledger/internal/logger"
	"itemledger/internal/model"
	"itemledger/pkg/apperror"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStockFixture(t *testing.T) (*StockService, *memCatalog, *memStockLog) {
	t.Helper()
	catalog := newMemCatalog()
	stockLog := newMemStockLog()
	svc := NewStockService(lock.NewRecordGuard(catalog), catalog, stockLog, nil, logger.New("error"))
	return svc, catalog, stockLog
}

func TestDecrease_Success(t *testing.T) {
	svc, catalog, stockLog := newStockFixture(t)
	shop := catalog.addShop("main", "seoul")
	item := catalog.addItem(shop.ID, "bread", 100, 10)

	updated, err := svc.Decrease(context.Background(), "order-1", item.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), updated.Stock)
	assert.Equal(t, int64(5), catalog.stockOf(item.ID))

	succeeded := stockLog.byOutcome("order-1", model.OutcomeSucceeded)
	require.Len(t, succeeded, 1)
	assert.Equal(t, item.ID, succeeded[0].ItemID)
	assert.Equal(t, int64(5), succeeded[0].Quantity)
}

func TestDecrease_InsufficientStock(t *testing.T) {
	svc, catalog, stockLog := newStockFixture(t)
	shop := catalog.addShop("main", "seoul")
	item := catalog.addItem(shop.ID, "bread", 100, 5)

	_, err := svc.Decrease(context.Background(), "order-1", item.ID, 8)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))

	// Stock untouched, failure recorded.
	assert.Equal(t, int64(5), catalog.stockOf(item.ID))
	assert.Len(t, stockLog.byOutcome("order-1", model.OutcomeFailed), 1)
	assert.Empty(t, stockLog.byOutcome("order-1", model.OutcomeSucceeded))
}

func TestDecrease_ItemNotFound(t *testing.T) {
	svc, _, stockLog := newStockFixture(t)

	_, err := svc.Decrease(context.Background(), "order-1", 999, 1)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeNotFound))
	assert.Len(t, stockLog.byOutcome("order-1", model.OutcomeFailed), 1)
}

func TestDecrease_LockTimeoutLeavesNoLogEntry(t *testing.T) {
	catalog := newMemCatalog()
	stockLog := newMemStockLog()
	svc := NewStockService(timeoutGuard{}, catalog, stockLog, nil, logger.New("error"))
	shop := catalog.addShop("main", "seoul")
	item := catalog.addItem(shop.ID, "bread", 100, 5)

	_, err := svc.Decrease(context.Background(), "order-1", item.ID, 1)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeLockTimeout))

	// No mutation was attempted, so the log stays empty.
	_, err = stockLog.ListByOrder(context.Background(), "order-1")
	assert.True(t, apperror.IsCode(err, apperror.CodeNoSuchOrder))
}

func TestIncreaseDecrease_RoundTrip(t *testing.T) {
	svc, catalog, _ := newStockFixture(t)
	shop := catalog.addShop("main", "seoul")
	item := catalog.addItem(shop.ID, "bread", 100, 10)

	_, err := svc.Increase(context.Background(), item.ID, 7)
	require.NoError(t, err)
	_, err = svc.Decrease(context.Background(), "order-1", item.ID, 7)
	require.NoError(t, err)

	assert.Equal(t, int64(10), catalog.stockOf(item.ID))
}

func TestDecrease_ConcurrentExactFit(t *testing.T) {
	svc, catalog, stockLog := newStockFixture(t)
	shop := catalog.addShop("main", "seoul")
	const k = 50
	item := catalog.addItem(shop.ID, "bread", 100, k)

	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Decrease(context.Background(), "order-1", item.ID, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(0), catalog.stockOf(item.ID))
	assert.Len(t, stockLog.byOutcome("order-1", model.OutcomeSucceeded), k)
}

func TestDecrease_ConcurrentOversubscribed(t *testing.T) {
	svc, catalog, stockLog := newStockFixture(t)
	shop := catalog.addShop("main", "seoul")
	const stock, requests = 20, 50
	item := catalog.addItem(shop.ID, "bread", 100, stock)

	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Decrease(context.Background(), "order-1", item.ID, 1)
			if err != nil {
				// The only acceptable failure is running out of stock.
				assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))
			}
		}()
	}
	wg.Wait()

	// Exactly the attempts that fit were accepted; stock never goes negative.
	assert.Equal(t, int64(0), catalog.stockOf(item.ID))
	assert.Len(t, stockLog.byOutcome("order-1", model.OutcomeSucceeded), stock)
	assert.Len(t, stockLog.byOutcome("order-1", model.OutcomeFailed), requests-stock)
}

func TestDecreaseBatch_PublishesSucceededPairs(t *testing.T) {
	catalog := newMemCatalog()
	stockLog := newMemStockLog()
	pub := newFakePublisher()
	svc := NewStockService(lock.NewRecordGuard(catalog), catalog, stockLog, pub, logger.New("error"))

	shop := catalog.addShop("main", "seoul")
	bread := catalog.addItem(shop.ID, "bread", 100, 10)
	milk := catalog.addItem(shop.ID, "milk", 50, 2)

	results := svc.DecreaseBatch(context.Background(), "order-1", []OrderItem{
		{ItemID: bread.ID, Quantity: 4},
		{ItemID: milk.ID, Quantity: 5}, // exceeds stock
	})
	require.Len(t, results, 2)
	assert.Equal(t, model.OutcomeSucceeded, results[0].Outcome)
	assert.Equal(t, int64(6), results[0].NewStock)
	assert.Equal(t, model.OutcomeFailed, results[1].Outcome)

	// Only the succeeded pair is published.
	published := pub.batches["order-1"]
	require.Len(t, published, 1)
	assert.Equal(t, bread.ID, published[0].ItemID)
	assert.Equal(t, int64(6), published[0].NewStock)
}

func TestDecreaseBatch_GeneratesOrderID(t *testing.T) {
	svc, catalog, stockLog := newStockFixture(t)
	shop := catalog.addShop("main", "seoul")
	item := catalog.addItem(shop.ID, "bread", 100, 10)

	results := svc.DecreaseBatch(context.Background(), "", []OrderItem{{ItemID: item.ID, Quantity: 1}})
	require.Len(t, results, 1)
	assert.Equal(t, model.OutcomeSucceeded, results[0].Outcome)

	// Exactly one entry exists and it carries a generated, non-empty order id.
	stockLog.mu.Lock()
	defer stockLog.mu.Unlock()
	require.Len(t, stockLog.entries, 1)
	assert.NotEmpty(t, stockLog.entries[0].OrderID)
}

func TestDecrease_LogAppendFailureSurfaces(t *testing.T) {
	catalog := newMemCatalog()
	stockLog := newMemStockLog()
	stockLog.failAll = true
	svc := NewStockService(lock.NewRecordGuard(catalog), catalog, stockLog, nil, logger.New("error"))

	shop := catalog.addShop("main", "seoul")
	item := catalog.addItem(shop.ID, "bread", 100, 10)

	_, err := svc.Decrease(context.Background(), "order-1", item.ID, 1)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInternal))
}

func TestUpdate_ChangesAttributesNotStock(t *testing.T) {
	svc, catalog, _ := newStockFixture(t)
	shop := catalog.addShop("main", "seoul")
	item := catalog.addItem(shop.ID, "bread", 100, 10)

	updated, err := svc.Update(context.Background(), item.ID, "baguette", decimal.NewFromInt(120))
	require.NoError(t, err)
	assert.Equal(t, "baguette", updated.Name)
	assert.True(t, updated.Price.Equal(decimal.NewFromInt(120)))
	assert.Equal(t, int64(10), catalog.stockOf(item.ID))
}

func TestCreate_RegistersUnderShop(t *testing.T) {
	svc, catalog, _ := newStockFixture(t)
	shop := catalog.addShop("main", "seoul")

	item, err := svc.Create(context.Background(), shop.ID, "bread", decimal.NewFromInt(100), 5)
	require.NoError(t, err)
	assert.Equal(t, shop.ID, item.ShopID)
	assert.Equal(t, int64(5), item.Stock)

	_, err = svc.Create(context.Background(), 999, "bread", decimal.NewFromInt(100), 5)
	assert.True(t, apperror.IsCode(err, apperror.CodeNotFound))
}
