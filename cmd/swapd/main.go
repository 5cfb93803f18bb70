package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"swapnet/config"
	"swapnet/core/state"
	"swapnet/native/auth"
	"swapnet/native/escrow"
	"swapnet/native/orderbook"
	"swapnet/native/resolver"
	"swapnet/native/token"
	"swapnet/observability"
	"swapnet/observability/logging"
	"swapnet/storage"
)

func main() {
	configPath := flag.String("config", "swapd.toml", "path to the daemon configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Setup("swapd", "")
		panic(err)
	}
	logger := logging.Setup("swapd", cfg.Environment)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	scope := auth.NewCallScope(cfg.Owner(), cfg.Vault(), cfg.Book())
	bank := token.NewBank(manager, cfg.Vault(), cfg.Book())

	emitter := observability.Events()
	ledger := escrow.NewLedger(manager, bank, scope, cfg.Vault())
	ledger.SetEmitter(emitter)
	book := orderbook.NewBook(manager, ledger, scope, cfg.Book())
	book.SetEmitter(emitter)
	orch := resolver.NewOrchestrator(book, ledger, scope, cfg.Owner())
	orch.SetEmitter(emitter)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: cfg.MetricsAddress, Handler: mux}

	go func() {
		logger.Info("metrics listener started", "addr", cfg.MetricsAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener failed", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("metrics shutdown", "err", err)
	}
	logger.Info("swapd stopped")
}
