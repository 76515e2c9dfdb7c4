// Package backend selects and assembles the remote store from configuration.
package backend

import (
	"fmt"

	"finledger/internal/config"
	"finledger/internal/log"
	"finledger/internal/remote"
	"finledger/internal/remote/feed"
	"finledger/internal/remote/memory"
	"finledger/internal/remote/sqlite"
)

// BackendType selects the authoritative store implementation.
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
)

func (bt BackendType) String() string { return string(bt) }

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}

// CleanupFunc releases backend resources. It is safe to call once.
type CleanupFunc func() error

// Result bundles the assembled store with its cleanup.
type Result struct {
	Store   remote.Store
	Cleanup CleanupFunc
}

// Factory builds stores from application config.
type Factory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) *Factory {
	return &Factory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateStore builds the configured store, wrapping it with the AMQP change
// feed publisher when a broker URL is configured. A broker that cannot be
// reached at startup disables the feed rather than failing the backend.
func (f *Factory) CreateStore(cfg *config.Config) (*Result, error) {
	backendType := BackendType(cfg.DataBackend)
	if !backendType.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", cfg.DataBackend)
	}

	var (
		store   remote.Store
		cleanup CleanupFunc
	)
	switch backendType {
	case SQLiteBackend:
		s, err := sqlite.NewStore(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite store: %w", err)
		}
		store, cleanup = s, s.Close
		f.logger.Info("Initialized sqlite backend", "db_path", cfg.SQLiteDBPath)
	case MemoryBackend:
		s := memory.NewStore()
		store, cleanup = s, s.Close
		f.logger.Info("Initialized memory backend")
	}

	if cfg.AMQPURL == "" {
		return &Result{Store: store, Cleanup: cleanup}, nil
	}

	client, err := feed.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without change feed", "error", err)
		return &Result{Store: store, Cleanup: cleanup}, nil
	}
	f.logger.Info("Initialized AMQP change feed",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)

	storeCleanup := cleanup
	return &Result{
		Store: feed.NewPublisher(store, client, f.logger),
		Cleanup: func() error {
			client.Close()
			return storeCleanup()
		},
	}, nil
}
