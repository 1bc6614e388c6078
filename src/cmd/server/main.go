package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/api-sage/ledger-transfer-engine/src/internal/adapter/http/controller"
	"github.com/api-sage/ledger-transfer-engine/src/internal/adapter/http/middleware"
	"github.com/api-sage/ledger-transfer-engine/src/internal/adapter/http/router"
	"github.com/api-sage/ledger-transfer-engine/src/internal/adapter/repository/postgres"
	"github.com/api-sage/ledger-transfer-engine/src/internal/config"
	"github.com/api-sage/ledger-transfer-engine/src/internal/logger"
	"github.com/api-sage/ledger-transfer-engine/src/internal/usecase/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := postgres.RunMigrations(startupCtx, cfg.DatabaseDSN, cfg.MigrationsDir); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	db, err := postgres.Open(startupCtx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}

	ledgerRepo := postgres.NewLedgerRepository(db)
	idempotencyRepo := postgres.NewIdempotencyRepository(db)

	guard := services.NewIdempotencyGuard(idempotencyRepo, cfg.IdempotencyInFlightTTL)
	locker := services.NewAccountLocker()

	transferService := services.NewTransferService(ledgerRepo, guard, locker, cfg.MaxApplyAttempts, cfg.LockWaitTimeout)
	accountService := services.NewAccountService(ledgerRepo)

	transferController := controller.NewTransferController(transferService)
	accountController := controller.NewAccountController(accountService)

	authMiddleware := middleware.BasicAuth(cfg.ChannelID, cfg.ChannelKeyHash)
	mux := router.New(accountController, transferController, authMiddleware)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	purgeCtx, stopPurge := context.WithCancel(context.Background())
	go purgeLoop(purgeCtx, guard, cfg.IdempotencyRetention)

	go func() {
		logger.Info("server starting", logger.Fields{"addr": cfg.HTTPAddr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen and serve: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("server shutting down", nil)
	stopPurge()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", err, nil)
	}

	if err := db.Close(); err != nil {
		logger.Error("close database failed", err, nil)
	}

	logger.Info("server exited", nil)
}

// purgeLoop evicts resolved idempotency keys that have aged past the retry
// window. The interval is a fraction of the retention so eviction lag stays
// small relative to the window itself.
func purgeLoop(ctx context.Context, guard *services.IdempotencyGuard, retention time.Duration) {
	interval := retention / 24
	if interval < time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purgeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			removed, err := guard.PurgeExpired(purgeCtx, retention)
			cancel()
			if err != nil {
				logger.Error("idempotency purge failed", err, nil)
				continue
			}
			if removed > 0 {
				logger.Info("idempotency purge completed", logger.Fields{"removed": removed})
			}
		}
	}
}
