// Command stress fires concurrent decrements at one item to exercise the
// configured lock strategy, then compensates every order. Verifies that
// exactly the requests fitting the seeded stock succeed and that stock
// returns to its seeded value after compensation.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"itemledger/internal/config"
	"itemledger/internal/lock"
	"itemledger/internal/logger"
	"itemledger/internal/model"
	"itemledger/internal/publisher"
	"itemledger/internal/repository"
	"itemledger/internal/service"
	"itemledger/pkg/apperror"
	"itemledger/pkg/uid"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func main() {
	initialStock := flag.Int64("stock", 20, "seeded stock for the test item")
	totalRequests := flag.Int("requests", 50, "concurrent single-unit decrements to fire")
	flag.Parse()

	cfg := config.MustLoad()
	logg := logger.New(cfg.App.LogLevel)
	ctx := context.Background()

	catalog, stockLog := mustOpenRepositories(cfg)
	defer catalog.Close()
	defer stockLog.Close()

	guard := mustBuildGuard(cfg, catalog)

	var pub service.StockPublisher
	if cfg.Kafka.Enabled() {
		kafkaPub := publisher.NewKafkaStockPublisher(cfg.Kafka.BrokerList(), cfg.Kafka.Topic, logg)
		defer kafkaPub.Close()
		pub = kafkaPub
		logg.WithField("topic", cfg.Kafka.Topic).Info("kafka publisher enabled")
	}

	stock := service.NewStockService(guard, catalog, stockLog, pub, logg)
	compensator := service.NewCompensator(stock, stockLog, logg)

	// Seed a throwaway shop and item.
	shopID, err := catalog.CreateShop(ctx, &model.Shop{Name: "stress", Location: "stress"})
	if err != nil {
		log.Fatalf("Failed to create shop: %v", err)
	}
	item, err := stock.Create(ctx, shopID, fmt.Sprintf("stress-item-%d", time.Now().UnixNano()),
		decimal.NewFromInt(100), *initialStock)
	if err != nil {
		log.Fatalf("Failed to create item: %v", err)
	}

	var (
		succeeded atomic.Int64
		failed    atomic.Int64
		wg        sync.WaitGroup
	)
	orderIDs := make([]string, *totalRequests)
	for i := range orderIDs {
		orderIDs[i] = uid.New()
	}

	start := time.Now()
	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func(orderID string) {
			defer wg.Done()
			results := stock.DecreaseBatch(ctx, orderID, []service.OrderItem{{ItemID: item.ID, Quantity: 1}})
			if results[0].Outcome == model.OutcomeSucceeded {
				succeeded.Add(1)
			} else {
				failed.Add(1)
			}
		}(orderIDs[i])
	}
	wg.Wait()
	elapsed := time.Since(start)

	drained, err := catalog.GetItem(ctx, item.ID)
	if err != nil {
		log.Fatalf("Failed to reload item: %v", err)
	}

	// Treat every order as failed and roll all of them back.
	reversed := 0
	for _, orderID := range orderIDs {
		report, err := compensator.Compensate(ctx, orderID)
		if err != nil {
			if apperror.IsCode(err, apperror.CodeNoSuchOrder) {
				continue // decrement never produced a log entry
			}
			log.Fatalf("Compensation failed for order %s: %v", orderID, err)
		}
		reversed += report.Reversed
	}

	final, err := catalog.GetItem(ctx, item.ID)
	if err != nil {
		log.Fatalf("Failed to reload item: %v", err)
	}

	fmt.Println("========== STRESS RESULTS ==========")
	fmt.Printf("Strategy:          %s\n", cfg.Lock.Strategy)
	fmt.Printf("Initial stock:     %d\n", *initialStock)
	fmt.Printf("Requests:          %d\n", *totalRequests)
	fmt.Printf("Succeeded:         %d\n", succeeded.Load())
	fmt.Printf("Failed:            %d\n", failed.Load())
	fmt.Printf("Stock after run:   %d\n", drained.Stock)
	fmt.Printf("Entries reversed:  %d\n", reversed)
	fmt.Printf("Stock after undo:  %d\n", final.Stock)
	fmt.Printf("Elapsed:           %v\n", elapsed)

	if succeeded.Load() != *initialStock-drained.Stock {
		log.Fatalf("Accounting mismatch: %d successes but stock moved %d -> %d",
			succeeded.Load(), *initialStock, drained.Stock)
	}
	if final.Stock != *initialStock {
		log.Fatalf("Compensation mismatch: expected stock %d, got %d", *initialStock, final.Stock)
	}
}

func mustOpenRepositories(cfg *config.Config) (repository.CatalogRepository, repository.StockLogRepository) {
	switch cfg.Catalog.Type {
	case "mysql":
		catalog, err := repository.NewMySQLCatalogRepository(cfg.Catalog.MySQLDSN())
		if err != nil {
			log.Fatalf("Failed to initialize MySQL catalog: %v", err)
		}
		stockLog, err := repository.NewMySQLStockLogRepository(cfg.Catalog.MySQLDSN())
		if err != nil {
			log.Fatalf("Failed to initialize MySQL stock log: %v", err)
		}
		return catalog, stockLog
	default: // sqlite
		catalog, err := repository.NewSQLiteCatalogRepository(cfg.Catalog.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite catalog: %v", err)
		}
		stockLog, err := repository.NewSQLiteStockLogRepository(cfg.Catalog.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite stock log: %v", err)
		}
		return catalog, stockLog
	}
}

func mustBuildGuard(cfg *config.Config, catalog repository.CatalogRepository) lock.Guard {
	if cfg.Lock.Strategy != "redis" {
		return lock.NewRecordGuard(catalog)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	return lock.NewRedisGuard(redislock.New(client), catalog,
		cfg.Lock.TTL, cfg.Lock.WaitTimeout, cfg.Lock.RetryInterval)
}
