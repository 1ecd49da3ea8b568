package common

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"transaction-core-go/internal/accounts"
	"transaction-core-go/internal/audit"
	"transaction-core-go/internal/database"
	"transaction-core-go/internal/engine"
	"transaction-core-go/internal/limits"
	"transaction-core-go/internal/models"
	"transaction-core-go/internal/postgres"
	"transaction-core-go/internal/store"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	Ledger   store.LedgerStore
	Accounts *accounts.Service
	Audit    *audit.Sink
	Engine   *engine.Engine
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	ledger, err := NewLedgerStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	accountsService, err := accounts.NewService(cfg.Accounts)
	if err != nil {
		ledger.Close()
		return nil, err
	}

	location, err := time.LoadLocation(cfg.Limits.Timezone)
	if err != nil {
		ledger.Close()
		return nil, fmt.Errorf("invalid limits timezone %q: %w", cfg.Limits.Timezone, err)
	}
	zap.L().Info("Limit windows anchored to timezone", zap.String("timezone", location.String()))

	sink := audit.NewSink(cfg.Audit)
	evaluator := limits.NewEvaluator(ledger, location)
	transactionEngine := engine.New(ledger, accountsService, evaluator, sink, cfg.Engine)

	return &Services{
		Ledger:   ledger,
		Accounts: accountsService,
		Audit:    sink,
		Engine:   transactionEngine,
	}, nil
}

// NewLedgerStore selects the storage backend by configured driver.
func NewLedgerStore(ctx context.Context, cfg models.DatabaseConfig) (store.LedgerStore, error) {
	switch cfg.Driver {
	case models.DriverPostgres:
		return postgres.NewService(ctx, cfg)
	case models.DriverSQLite, "":
		return database.NewService(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown database driver: %q", cfg.Driver)
	}
}

// InitializeStoreOnly initializes just the ledger store without the Account
// Service client. Useful for read-only operations like querying history.
func InitializeStoreOnly(ctx context.Context, cfg *models.Config) (store.LedgerStore, error) {
	ledger, err := NewLedgerStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return ledger, nil
}

func (cs *Services) Close() {
	if cs.Audit != nil {
		cs.Audit.Close()
	}
	if cs.Ledger != nil {
		cs.Ledger.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
