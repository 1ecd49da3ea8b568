package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"transaction-core-go/internal/models"
	"transaction-core-go/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// scannable is satisfied by both pgx.Row and pgx.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanTransaction(row scannable) (*models.Transaction, error) {
	var tx models.Transaction
	var amountStr string

	err := row.Scan(&tx.Id, &tx.Kind, &tx.Status, &tx.FromAccountId, &tx.ToAccountId,
		&amountStr, &tx.Currency, &tx.Description, &tx.Reference, &tx.CreatedBy,
		&tx.IdempotencyKey, &tx.OriginalTransactionId, &tx.FailureReason,
		&tx.CreatedAt, &tx.ProcessedAt)
	if err != nil {
		return nil, err
	}

	tx.Amount, err = decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
	}
	return &tx, nil
}

// mapInsertError translates unique violations (SQLSTATE 23505) into the
// store sentinels, keyed by constraint name.
func mapInsertError(err error, tx *models.Transaction) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "uk_transaction_idempotency_key":
			return fmt.Errorf("%w: key %q already used by %s for kind %s",
				store.ErrDuplicateTransaction, tx.IdempotencyKey, tx.CreatedBy, tx.Kind)
		case "uk_reversal_per_original_transaction":
			return fmt.Errorf("%w: transaction %s already has a live reversal",
				store.ErrDuplicateReversal, tx.OriginalTransactionId)
		default:
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

func (s *Service) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	zap.L().Debug("Inserting transaction",
		zap.String("transaction_id", tx.Id),
		zap.String("kind", string(tx.Kind)),
		zap.String("status", string(tx.Status)),
		zap.String("amount", tx.Amount.String()))

	_, err := s.pool.Exec(ctx, queryInsertTransaction,
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
	tx, err := scanTransaction(s.pool.QueryRow(ctx, queryGetTransactionById, transactionId))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrTransactionNotFound, transactionId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", transactionId, err)
	}
	return tx, nil
}

func (s *Service) FindByIdempotencyKey(ctx context.Context, createdBy string, kind models.TransactionKind, key string) (*models.Transaction, error) {
	tx, err := scanTransaction(s.pool.QueryRow(ctx, queryGetTransactionByIdempotencyKey, createdBy, string(kind), key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: no %s by %s with key %q", store.ErrTransactionNotFound, kind, createdBy, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	return tx, nil
}

func (s *Service) UpdateStatus(ctx context.Context, params store.UpdateStatusParams) error {
	switch params.Status {
	case models.StatusCompleted, models.StatusFailed, models.StatusManualAction:
	default:
		return fmt.Errorf("%w: cannot update status to %s", store.ErrInvalidTransition, params.Status)
	}

	tag, err := s.pool.Exec(ctx, queryUpdateTransactionStatus,
		string(params.Status), params.ProcessedAt.UTC(), params.FailureReason, params.Id)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
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

func (s *Service) FindPendingOlderThan(ctx context.Context, cutoff time.Time) ([]models.Transaction, error) {
	rows, err := s.pool.Query(ctx, queryFindPendingOlderThan, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to find pending transactions: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]models.Transaction, error) {
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
