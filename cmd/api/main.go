package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lv-simtrade/internal/config"
	"lv-simtrade/internal/db"
	"lv-simtrade/internal/health"
	"lv-simtrade/internal/httpserver"
	"lv-simtrade/internal/ledger"
	"lv-simtrade/internal/marketdata"
	"lv-simtrade/internal/metrics"
	"lv-simtrade/internal/orders"
	"lv-simtrade/internal/positions"
	"lv-simtrade/internal/simulator"
	"lv-simtrade/internal/sweeper"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("fatal", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	simCfg, err := config.LoadMarketTables(cfg.MarketTablePath)
	if err != nil {
		return err
	}

	seed := cfg.SlippageSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sim := simulator.New(simCfg, rand.New(rand.NewSource(seed)))

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	bus := marketdata.NewBus()
	insStore := marketdata.NewStore(pool)
	feed := marketdata.NewFeed(config.SpreadTable(simCfg), bus, rand.New(rand.NewSource(seed+1)), logger,
		marketdata.WithInterval(cfg.PriceTickInterval))

	ledgerSvc := ledger.NewService(pool, logger)
	orderSvc := orders.NewService(
		pool,
		orders.NewStore(pool),
		positions.NewStore(pool),
		ledgerSvc,
		insStore,
		sim,
		feed,
		bus,
		collector,
		logger,
		cfg.MaintenanceMarginPct,
	)

	instruments, err := insStore.ListActive(ctx)
	if err != nil {
		return err
	}
	go feed.Run(ctx, instruments)

	sw := sweeper.New(orderSvc, cfg.SweepInterval, collector, logger)
	go sw.Run(ctx)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Resolver:      httpserver.HeaderResolver{},
		OrderHandler:  orders.NewHandler(orderSvc),
		LedgerHandler: ledger.NewHandler(ledgerSvc),
		HealthHandler: health.NewHandler(pool, version),
		QuotesWS:      httpserver.NewQuotesWS(bus, os.Getenv("WS_ORIGIN"), logger),
	})

	apiServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metrics.Handler(registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("api listening", zap.String("addr", cfg.HTTPAddr))
		errCh <- apiServer.ListenAndServe()
	}()
	go func() {
		logger.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
		errCh <- metricsServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api shutdown", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics shutdown", zap.Error(err))
	}
	return nil
}
