package postgres

import (
	"context"
	"fmt"

	"transaction-core-go/internal/models"
	"transaction-core-go/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.LedgerStore.
var _ store.LedgerStore = (*Service)(nil)

// Service is the PostgreSQL ledger backend. Unlike the SQLite backend it has
// real row locks, so the reversal path serializes observers with
// SELECT ... FOR UPDATE before the partial unique index ever fires.
type Service struct {
	pool *pgxpool.Pool
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database url cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{pool: pool}
	if err := service.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Postgres ledger service initialized successfully",
		zap.Int32("max_conns", poolConfig.MaxConns))
	return service, nil
}

func (s *Service) Close() {
	s.pool.Close()
}

func (s *Service) HealthCheck(ctx context.Context) error {
	var one int
	if err := s.pool.QueryRow(ctx, queryHealthCheck).Scan(&one); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

func (s *Service) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS transactions (
		transaction_id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		from_account_id TEXT NOT NULL,
		to_account_id TEXT NOT NULL,
		amount NUMERIC(20,4) NOT NULL CHECK (amount >= 0),
		currency TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		reference TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL,
		idempotency_key TEXT,
		original_transaction_id TEXT,
		failure_reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		processed_at TIMESTAMPTZ
	);

	CREATE UNIQUE INDEX IF NOT EXISTS uk_transaction_idempotency_key
		ON transactions(created_by, kind, idempotency_key)
		WHERE idempotency_key IS NOT NULL;

	CREATE UNIQUE INDEX IF NOT EXISTS uk_reversal_per_original_transaction
		ON transactions(original_transaction_id)
		WHERE kind = 'REVERSAL' AND status IN ('PROCESSING', 'COMPLETED');

	CREATE INDEX IF NOT EXISTS idx_transactions_from_account ON transactions(from_account_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_to_account ON transactions(to_account_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_created_by ON transactions(created_by, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status, created_at);

	CREATE TABLE IF NOT EXISTS transaction_limits (
		account_type TEXT NOT NULL,
		kind TEXT NOT NULL,
		per_operation_cap NUMERIC(20,4),
		daily_amount_cap NUMERIC(20,4),
		monthly_amount_cap NUMERIC(20,4),
		daily_count_cap BIGINT,
		monthly_count_cap BIGINT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		PRIMARY KEY (account_type, kind)
	);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}
