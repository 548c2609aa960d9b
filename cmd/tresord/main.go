package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tresor/config"
	"tresor/native/pricing"
	"tresor/native/rulesets"
	"tresor/native/tokens"
	"tresor/native/treasury"
	"tresor/observability/logging"
	"tresor/rpc"
	"tresor/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("TRESOR_ENV"))
	logger := logging.Setup("tresord", env)

	if err := run(*configFile, logger); err != nil {
		os.Exit(1)
	}
}

func run(configFile string, logger *slog.Logger) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		return err
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		return err
	}
	defer db.Close()
	state := storage.NewState(db)

	feeds := pricing.NewFeedStore()
	for _, feed := range cfg.PriceFeeds {
		feeds.Register(feed.PricingCurrency, feed.UnitCurrency, big.NewRat(feed.RateNumerator, feed.RateDenominator))
	}
	converter := pricing.NewConverter(feeds, cfg.RateDecimals)

	registry := rulesets.NewRegistry(state)
	tokenLedger := tokens.NewLedger(state, registry.ReservedRateOf)

	store := treasury.NewTerminalStore()
	store.SetState(state)
	store.SetRulesetProvider(registry)
	store.SetTokenLedger(tokenLedger)
	store.SetConverter(converter)

	feeless := make(map[string]struct{}, len(cfg.FeelessAddresses))
	for _, addr := range cfg.FeelessAddresses {
		feeless[strings.TrimSpace(addr)] = struct{}{}
	}
	fees := treasury.NewFeeProcessor(store, treasury.FeePolicy{
		Rate:    cfg.FeeRateBps,
		Project: cfg.FeeProject,
		Feeless: feeless,
	})

	server := rpc.NewServer(store, fees, tokenLedger, registry, logger)

	mux := http.NewServeMux()
	mux.Handle("/", server.Handler())
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting JSON-RPC server", slog.String("address", cfg.RPCAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Exiting through here rather than inside the goroutine lets the
	// deferred database close run.
	select {
	case err := <-serveErr:
		logger.Error("RPC server failed", slog.Any("error", err))
		return err
	case <-quit:
	}
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", slog.Any("error", err))
		return err
	}
	return nil
}
