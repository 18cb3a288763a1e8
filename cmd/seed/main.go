// Command seed registers a shop and an item with initial stock. Intended
// for development and load-test setup.
//
//	seed -shop "Main Street" -location seoul -item bread -price 100 -stock 50
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"itemledger/internal/config"
	"itemledger/internal/lock"
	"itemledger/internal/logger"
	"itemledger/internal/model"
	"itemledger/internal/repository"
	"itemledger/internal/service"

	"github.com/shopspring/decimal"
)

func main() {
	shopName := flag.String("shop", "", "shop name")
	location := flag.String("location", "", "shop location")
	itemName := flag.String("item", "", "item name")
	price := flag.String("price", "0", "item price")
	stock := flag.Int64("stock", 0, "initial stock")
	flag.Parse()

	if *shopName == "" || *location == "" || *itemName == "" {
		flag.Usage()
		os.Exit(2)
	}

	itemPrice, err := decimal.NewFromString(*price)
	if err != nil {
		log.Fatalf("Invalid price %q: %v", *price, err)
	}

	cfg := config.MustLoad()
	logg := logger.New(cfg.App.LogLevel)

	catalog, stockLog := mustOpenRepositories(cfg)
	defer catalog.Close()
	defer stockLog.Close()

	ctx := context.Background()

	shopID, err := catalog.CreateShop(ctx, &model.Shop{Name: *shopName, Location: *location})
	if err != nil {
		log.Fatalf("Failed to create shop: %v", err)
	}

	stockSvc := service.NewStockService(lock.NewRecordGuard(catalog), catalog, stockLog, nil, logg)
	item, err := stockSvc.Create(ctx, shopID, *itemName, itemPrice, *stock)
	if err != nil {
		log.Fatalf("Failed to create item: %v", err)
	}

	log.Printf("Created shop %d and item %d (%s, price %s, stock %d)",
		shopID, item.ID, item.Name, item.Price.String(), item.Stock)
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
