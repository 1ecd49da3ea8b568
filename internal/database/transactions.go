package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"transaction-core-go/internal/models"
	"transaction-core-go/internal/store"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// scannable is satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanTransaction(row scannable) (*models.Transaction, error) {
	var tx models.Transaction
	var amountStr string
	var processedAt sql.NullTime

	err := row.Scan(&tx.Id, &tx.Kind, &tx.Status, &tx.FromAccountId, &tx.ToAccountId,
		&amountStr, &tx.Currency, &tx.Description, &tx.Reference, &tx.CreatedBy,
		&tx.IdempotencyKey, &tx.OriginalTransactionId, &tx.FailureReason,
		&tx.CreatedAt, &processedAt)
	if err != nil {
		return nil, err
	}

	tx.Amount, err = decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
	}
	if processedAt.Valid {
		t := processedAt.Time
		tx.ProcessedAt = &t
	}
	return &tx, nil
}

// mapInsertError translates SQLite unique-index violations into the store
// sentinels the engine branches on. Message order matters: the reversal
// index message contains "original_transaction_id", which itself contains
// "transaction_id".
func mapInsertError(err error, tx *models.Transaction) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		msg := sqliteErr.Error()
		switch {
		case strings.Contains(msg, "idempotency_key"):
			return fmt.Errorf("%w: key %q already used by %s for kind %s",
				store.ErrDuplicateTransaction, tx.IdempotencyKey, tx.CreatedBy, tx.Kind)
		case strings.Contains(msg, "original_transaction"):
			return fmt.Errorf("%w: transaction %s already has a live reversal",
				store.ErrDuplicateReversal, tx.OriginalTransactionId)
		case strings.Contains(msg, "transaction_id"):
			return fmt.Errorf("%w: id %s already exists", store.ErrDuplicateTransaction, tx.Id)
		}
	}
	return fmt.Errorf("failed to insert transaction: %w", err)
}

func bindProcessedAt(processedAt *time.Time) any {
	if processedAt == nil {
		return nil
	}
	return processedAt.UTC()
}

// InsertTransaction records a new ledger row. Timestamps are normalized to
// UTC before binding so string comparison in SQLite stays correct.
func (s *Service) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	zap.L().Debug("Inserting transaction",
		zap.String("transaction_id", tx.Id),
		zap.String("kind", string(tx.Kind)),
		zap.String("status", string(tx.Status)),
		zap.String("amount", tx.Amount.String()))

	_, err := s.db.ExecContext(ctx, queryInsertTransaction,
		tx.Id, string(tx.Kind), string(tx.Status), tx.FromAccountId, tx.ToAccountId,
		tx.Amount.String(), tx.Currency, tx.Description, tx.Reference, tx.CreatedBy,
		tx.IdempotencyKey, tx.OriginalTransactionId, tx.FailureReason,
		tx.CreatedAt.UTC(), bindProcessedAt(tx.ProcessedAt))
	if err != nil {
		return mapInsertError(err, tx)
	}
	return nil
}

func (s *Service) FindById(ctx context.Context, transactionId string) (*models.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, queryGetTransactionById, transactionId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrTransactionNotFound, transactionId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", transactionId, err)
	}
	return tx, nil
}

func (s *Service) FindByIdempotencyKey(ctx context.Context, createdBy string, kind models.TransactionKind, key string) (*models.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, queryGetTransactionByIdempotencyKey, createdBy, string(kind), key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no %s by %s with key %q", store.ErrTransactionNotFound, kind, createdBy, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	return tx, nil
}

// UpdateStatus moves a PROCESSING row to COMPLETED, FAILED or
// FAILED_REQUIRES_MANUAL_ACTION. Terminal rows never move again through this
// path; REVERSED is only reachable via FinalizeReversal.
func (s *Service) UpdateStatus(ctx context.Context, params store.UpdateStatusParams) error {
	switch params.Status {
	case models.StatusCompleted, models.StatusFailed, models.StatusManualAction:
	default:
		return fmt.Errorf("%w: cannot update status to %s", store.ErrInvalidTransition, params.Status)
	}

	result, err := s.db.ExecContext(ctx, queryUpdateTransactionStatus,
		string(params.Status), params.ProcessedAt.UTC(), params.FailureReason, params.Id)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Distinguish a missing row from one that already reached a terminal
		// status, so callers can branch on the sentinel.
		existing, findErr := s.FindById(ctx, params.Id)
		if findErr != nil {
			return findErr
		}
		return fmt.Errorf("%w: transaction %s is already %s", store.ErrInvalidTransition, params.Id, existing.Status)
	}

	zap.L().Info("Transaction status updated",
		zap.String("transaction_id", params.Id),
		zap.String("status", string(params.Status)),
		zap.String("failure_reason", params.FailureReason))
	return nil
}

// FindPendingOlderThan returns PROCESSING rows created before cutoff, oldest
// first. The sweeper uses it to fail stuck work.
func (s *Service) FindPendingOlderThan(ctx context.Context, cutoff time.Time) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, queryFindPendingOlderThan, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to find pending transactions: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]models.Transaction, error) {
	var transactions []models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return transactions, nil
}
