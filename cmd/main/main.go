package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"trade-sim/src/config"
	datasource "trade-sim/src/data_source"
	"trade-sim/src/data_source/sim"
	"trade-sim/src/engine"
	"trade-sim/src/interfaces"
	"trade-sim/src/ledger"
	"trade-sim/src/logger"
	"trade-sim/src/models"
	"trade-sim/src/newswire"
	"trade-sim/src/server"
	"trade-sim/src/storage"
	"trade-sim/src/watchlist"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	config, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(config.LogLevel, config.Name)

	// 1. Storage
	var db interfaces.IDatabase

	switch config.Storage.DBType {
	case "postgres":
		db, err = storage.NewPostgresDB(config.MConfig, appLogger)
	case "memory":
		db, err = storage.NewMemoryDB(config.MConfig, appLogger)
	default:
		// Default to SQLite
		db, err = storage.NewAsyncSQLiteDB(config.MConfig, appLogger)
	}

	if err != nil {
		appLogger.Critical("Failed to init db: %v", err)
	}
	if err := db.Initialize(config.Stocks); err != nil {
		appLogger.Critical("Failed to migrate db: %v", err)
	}
	defer db.Close()

	// 2. Quote board, warmed from storage
	stocks, err := db.ListStocks()
	if err != nil {
		appLogger.Critical("Failed to load stocks: %v", err)
	}
	market := datasource.NewMarketState(stocks, config.Feed.TickHistorySize)

	// 3. Ledger and trading engine
	book := ledger.NewLedger(appLogger)
	if err := book.LoadFromStorage(db); err != nil {
		appLogger.Critical("Failed to load accounts: %v", err)
	}
	orders := engine.NewOrderEngine(book, market, db, config.Trading, appLogger)

	// 4. Watchlist evaluator
	evaluator := watchlist.NewEvaluator(market, db, appLogger)
	if err := evaluator.LoadFromStorage(); err != nil {
		appLogger.Critical("Failed to load watchlists: %v", err)
	}

	// 5. Price sources
	if len(config.Feed.Sources) == 0 {
		appLogger.Critical("No price sources configured")
	}

	var sources []interfaces.IPriceSource
	for _, srcCfg := range config.Feed.Sources {
		sources = append(sources, sim.NewRandomWalkSource(config.MConfig, srcCfg))
	}
	manager := datasource.NewMultiSourceManager(sources, appLogger)

	// 6. News generator
	var wire interfaces.INewsFeed = newswire.NewNewsWire(config.MConfig, market, db, appLogger)

	// 7. Server
	srv := server.NewServer(config, appLogger, db, book, orders, market, evaluator, manager, *configPath)
	var exchanger interfaces.IDataExchanger = srv

	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}()

	// 8. Main Loop (Push Model)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wrapWg := &sync.WaitGroup{}
	priceUpdates := make(chan []models.MStockTick, 100)
	newsUpdates := make(chan []models.MNewsArticle, 16)

	if err := manager.Start(ctx, priceUpdates, wrapWg); err != nil {
		appLogger.Critical("Failed to start sources: %v", err)
	}
	if err := wire.Start(ctx, newsUpdates, wrapWg); err != nil {
		appLogger.Critical("Failed to start newswire: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	// Daily retention sweep; the first one runs on startup.
	cleanup := time.NewTicker(24 * time.Hour)
	defer cleanup.Stop()
	if err := db.CleanupOldNews(); err != nil {
		appLogger.Warning("News cleanup failed: %v", err)
	}

	appLogger.Info("Starting data loop (Push Model)...")

	for {
		select {
		case ticks, ok := <-priceUpdates:
			if !ok {
				appLogger.Info("Price source closed channel.")
				return
			}

			updated := market.ApplyTicks(ticks)
			if len(updated) == 0 {
				continue
			}

			if err := db.UpdateStockPrices(updated); err != nil {
				appLogger.Error("Failed to persist prices: %v", err)
			}

			exchanger.Broadcast(models.MTickEvent{
				Stocks:    updated,
				Timestamp: time.Now().Unix(),
			})

		case articles, ok := <-newsUpdates:
			if !ok {
				appLogger.Info("Newswire closed channel.")
				return
			}

			// Persistence and sentiment already handled by the wire;
			// stocks ride along so sentiment changes reach clients.
			exchanger.Broadcast(models.MTickEvent{
				Stocks:    market.List(),
				News:      articles,
				Timestamp: time.Now().Unix(),
			})

		case <-cleanup.C:
			if err := db.CleanupOldNews(); err != nil {
				appLogger.Warning("News cleanup failed: %v", err)
			}

		case <-quit:
			appLogger.Info("Shutting down...")
			wire.Stop()
			manager.Stop()
			cancel()
			wrapWg.Wait() // Wait for sources to close
			srv.Stop()
			return
		}
	}
}
