package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/atlas-erp/atlas-erp/internal/app"
	"github.com/atlas-erp/atlas-erp/internal/audit"
	"github.com/atlas-erp/atlas-erp/internal/ledger/accounts"
	"github.com/atlas-erp/atlas-erp/internal/ledger/budgets"
	"github.com/atlas-erp/atlas-erp/internal/ledger/sequence"
	"github.com/atlas-erp/atlas-erp/internal/ledger/transactions"
	"github.com/atlas-erp/atlas-erp/internal/platform/mongodb"
	"github.com/atlas-erp/atlas-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	store, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("connect mongodb", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Warn("mongodb close", slog.Any("error", err))
		}
	}()
	if store.AtomicWrites() {
		logger.Info("multi-document transactions available")
	} else {
		logger.Warn("standalone deployment detected, postings will run without multi-record atomicity")
	}

	db := store.Database()
	if err := accounts.EnsureIndexes(ctx, db); err != nil {
		logger.Error("accounts indexes", slog.Any("error", err))
		os.Exit(1)
	}
	if err := transactions.EnsureIndexes(ctx, db); err != nil {
		logger.Error("transactions indexes", slog.Any("error", err))
		os.Exit(1)
	}
	if err := budgets.EnsureIndexes(ctx, db); err != nil {
		logger.Error("budgets indexes", slog.Any("error", err))
		os.Exit(1)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()
	enqueuer := jobs.NewEnqueuer(asynqClient, logger)

	auditSvc := audit.NewService(db)
	if err := auditSvc.EnsureIndexes(ctx); err != nil {
		logger.Error("audit indexes", slog.Any("error", err))
		os.Exit(1)
	}

	seqGen := sequence.NewGenerator(db)

	accountRepo := accounts.NewRepository(db)
	accountSvc := accounts.NewService(accountRepo, seqGen, auditSvc, enqueuer, logger)

	txnRepo := transactions.NewRepository(store)
	txnSvc := transactions.NewService(txnRepo, accountSvc, seqGen, auditSvc, enqueuer, enqueuer, logger)

	budgetRepo := budgets.NewRepository(db)
	budgetSvc := budgets.NewService(budgetRepo, accountSvc, enqueuer, logger)

	router := app.NewRouter(app.RouterConfig{
		Logger:       logger,
		Config:       cfg,
		Accounts:     accounts.NewHandler(logger, accountSvc),
		Transactions: transactions.NewHandler(logger, txnSvc),
		Budgets:      budgets.NewHandler(logger, budgetSvc),
		Audit:        audit.NewHandler(logger, auditSvc),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
