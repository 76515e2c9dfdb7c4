// feed-worker consumes the ledger change feed and reports a recomputed
// summary for each changed owner.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"finledger/internal/backend"
	"finledger/internal/config"
	"finledger/internal/ledger"
	"finledger/internal/log"
	"finledger/internal/remote"
	"finledger/internal/remote/feed"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Component: log.ComponentWorker})
	log.SetDefault(logger)

	logger.Info("Starting feed-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the feed worker")
		os.Exit(1)
	}

	// The worker reads the store directly; it never publishes, so the plain
	// backend store is enough.
	workerCfg := *cfg
	workerCfg.AMQPURL = ""
	result, err := backend.NewFactory(logger).CreateStore(&workerCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer result.Cleanup()

	client, err := feed.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := func(msg *feed.ChangeMessage) error {
		return reportSummary(ctx, result.Store, logger, msg)
	}

	if err := client.ConsumeChanges(ctx, handler); err != nil && err != context.Canceled {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker stopped gracefully")
}

func reportSummary(ctx context.Context, store remote.Store, logger *log.Logger, msg *feed.ChangeMessage) error {
	txns, err := store.List(ctx, msg.Owner)
	if err != nil {
		return err
	}

	summary := ledger.Summarize(txns)
	logger.InfoContext(ctx, "Ledger changed",
		log.FieldOperation, msg.Op,
		log.FieldOwner, msg.Owner,
		log.FieldTxnID, msg.ID,
		log.FieldCount, len(txns),
		"income", summary.Income.String(),
		"expenses", summary.Expenses.String(),
		"balance", summary.Balance.String())
	return nil
}
