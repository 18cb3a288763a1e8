// Command compensate reverses the applied stock decrements of a failed
// order. Safe to re-run: already-reversed entries are skipped.
//
//	compensate -order <order-id>
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"itemledger/internal/config"
	"itemledger/internal/lock"
	"itemledger/internal/logger"
	"itemledger/internal/repository"
	"itemledger/internal/service"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

func main() {
	orderID := flag.String("order", "", "order id to compensate")
	flag.Parse()
	if *orderID == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.MustLoad()
	logg := logger.New(cfg.App.LogLevel)

	catalog, stockLog := mustOpenRepositories(cfg)
	defer catalog.Close()
	defer stockLog.Close()

	guard := mustBuildGuard(cfg, catalog)

	stock := service.NewStockService(guard, catalog, stockLog, nil, logg)
	compensator := service.NewCompensator(stock, stockLog, logg)

	report, err := compensator.Compensate(context.Background(), *orderID)
	if err != nil {
		log.Fatalf("Compensation failed: %v", err)
	}

	out, _ := json.MarshalIndent(report, "", "  ")
	os.Stdout.Write(append(out, '\n'))

	if len(report.Failures) > 0 {
		os.Exit(1)
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
