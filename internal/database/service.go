/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"

	"transaction-core-go/internal/models"
	"transaction-core-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.LedgerStore.
var _ store.LedgerStore = (*Service)(nil)

type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite ledger database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Ledger database service initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) HealthCheck(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, queryHealthCheck).Scan(&one); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

func (s *Service) initSchema() error {
	schema := `
	-- Ledger of money-movement transactions. Rows are inserted in PROCESSING
	-- and updated exactly once to a terminal status; never deleted.
	CREATE TABLE IF NOT EXISTS transactions (
		transaction_id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		from_account_id TEXT NOT NULL,
		to_account_id TEXT NOT NULL,
		amount DECIMAL(20,4) NOT NULL CHECK (amount >= 0),
		currency TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		reference TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL,
		idempotency_key TEXT,
		original_transaction_id TEXT,
		failure_reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		processed_at TIMESTAMP
	);

	-- One effect per (caller, kind, key); the insert path relies on this firing.
	CREATE UNIQUE INDEX IF NOT EXISTS uk_transaction_idempotency_key
		ON transactions(created_by, kind, idempotency_key)
		WHERE idempotency_key IS NOT NULL;

	-- At most one live reversal per original transaction.
	CREATE UNIQUE INDEX IF NOT EXISTS uk_reversal_per_original_transaction
		ON transactions(original_transaction_id)
		WHERE kind = 'REVERSAL' AND status IN ('PROCESSING', 'COMPLETED');

	-- Query support
	CREATE INDEX IF NOT EXISTS idx_transactions_from_account ON transactions(from_account_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_to_account ON transactions(to_account_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_created_by ON transactions(created_by, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status, created_at);

	-- Cap configuration per (account type, kind). NULL caps do not constrain.
	CREATE TABLE IF NOT EXISTS transaction_limits (
		account_type TEXT NOT NULL,
		kind TEXT NOT NULL,
		per_operation_cap DECIMAL(20,4),
		daily_amount_cap DECIMAL(20,4),
		monthly_amount_cap DECIMAL(20,4),
		daily_count_cap INTEGER,
		monthly_count_cap INTEGER,
		active BOOLEAN NOT NULL DEFAULT 1,
		PRIMARY KEY (account_type, kind)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}
