package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal" // To listen for Ctrl+C
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/ojedapedro/colegiopay/internal/adapter/handler"
	"github.com/ojedapedro/colegiopay/internal/adapter/middleware"
	"github.com/ojedapedro/colegiopay/internal/adapter/remote"
	"github.com/ojedapedro/colegiopay/internal/adapter/storage"
	"github.com/ojedapedro/colegiopay/internal/core/config"
	"github.com/ojedapedro/colegiopay/internal/core/ledger"
	"github.com/ojedapedro/colegiopay/internal/core/normalize"
	"github.com/ojedapedro/colegiopay/internal/core/reconcile"
	"github.com/ojedapedro/colegiopay/internal/core/security"
	"github.com/ojedapedro/colegiopay/internal/core/worker"
)

func main() {
	// 1. Setup Logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 2. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("❌ Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Build the ledger
	schedule, err := ledger.NewFeeSchedule(cfg.Fees)
	if err != nil {
		slog.Error("❌ Invalid fee schedule", "error", err)
		os.Exit(1)
	}
	normalizer := normalize.New(cfg.FallbackInstrument, logger)
	service := ledger.NewService(schedule, ledger.Options{
		Merger: reconcile.NewMerger(normalizer, time.Now, logger),
		Logger: logger,
	})

	// 4. Optional Database (local copy + idempotency keys)
	var store worker.Store
	var idempotency middleware.IdempotencyStore = middleware.NewMemoryIdempotencyStore()
	var closeDB func()
	if cfg.DatabaseURL != "" {
		dbPool, err := storage.ConnectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("❌ Database connection failed", "error", err)
			os.Exit(1)
		}
		if err := storage.Migrate(ctx, dbPool); err != nil {
			slog.Error("❌ Database migration failed", "error", err)
			os.Exit(1)
		}
		store = storage.NewSnapshotRepository(dbPool)
		idempotency = storage.NewIdempotencyRepository(dbPool)
		closeDB = dbPool.Close
	} else {
		slog.Warn("⚠️ DATABASE_URL is not set, state lives in memory and the remote store only")
	}

	// 5. Optional Remote Store
	var remoteStore worker.Remote
	if cfg.RemoteURL != "" {
		remoteStore = remote.NewClient(cfg.RemoteURL, 10*time.Second)
	}

	syncer := worker.NewSyncer(service, remoteStore, store, logger)
	if err := syncer.Bootstrap(ctx); err != nil {
		slog.Error("❌ Could not load initial state", "error", err)
		os.Exit(1)
	}

	// 6. Access keys
	var keys *security.Keyring
	if ring := security.NewKeyring(cfg.CashierKeyHashes, cfg.ReviewerKeyHashes); !ring.Empty() {
		keys = ring
	} else if cfg.Env == "development" {
		slog.Warn("⚠️ No API keys configured, authentication disabled (development only)")
	} else {
		slog.Error("❌ CASHIER_KEY_HASHES / REVIEWER_KEY_HASHES must be set outside development")
		os.Exit(1)
	}

	// 7. Setup Fiber
	app := fiber.New(fiber.Config{
		// This prevents the server from shutting down instantly
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	// 8. Routes
	handler.RegisterRoutes(app, handler.Deps{
		Service:     service,
		Syncer:      syncer,
		Keys:        keys,
		Idempotency: idempotency,
	})

	// 9. Start Workers
	worker.StartSyncWorker(ctx, syncer, cfg.SyncInterval)
	worker.StartAccrualScheduler(ctx, service, syncer, cfg.AccrualInterval)
	if _, err := worker.RunAccrual(ctx, service, syncer, time.Now()); err != nil {
		slog.Error("Error running monthly accrual", "error", err)
	}

	// ==========================================
	// 🚀 GRACEFUL SHUTDOWN LOGIC STARTS HERE
	// ==========================================

	// Create a channel to listen for OS signals (Ctrl+C, Docker Stop)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Run Server in a separate Goroutine so it doesn't block
	go func() {
		slog.Info("🚀 Server starting", "env", cfg.Env, "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
		}
	}()

	// Block here until we receive a stop signal
	<-stop
	slog.Info("🛑 Shutting down server...")

	// Tell Fiber to stop accepting new requests and finish active ones
	if err := app.Shutdown(); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	cancel()

	// Save and push the final state before the database goes away
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer flushCancel()
	if err := syncer.Push(flushCtx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Final push failed, state kept locally", "error", err)
	}

	if closeDB != nil {
		closeDB()
		slog.Info("✅ Database connection closed")
	}

	slog.Info("👋 Server exited successfully")
}
