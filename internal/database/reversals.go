package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"transaction-core-go/internal/models"
	"transaction-core-go/internal/store"

	"go.uber.org/zap"
)

func (s *Service) FindReversalsOf(ctx context.Context, originalId string) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, queryGetReversalsOf, originalId)
	if err != nil {
		return nil, fmt.Errorf("failed to get reversals of %s: %w", originalId, err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	return collectTransactions(rows)
}

// IsReversed reports whether originalId has a live reversal, meaning a
// REVERSAL row in PROCESSING or COMPLETED. FAILED reversal attempts do not
// count and a new attempt may be made after one.
func (s *Service) IsReversed(ctx context.Context, originalId string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, queryCountActiveReversals, originalId).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count reversals of %s: %w", originalId, err)
	}
	return count > 0, nil
}

// CreateReversal runs the eligibility gates and inserts the REVERSAL row in
// one store transaction. SQLite has no row-level locks; the partial unique
// index on original_transaction_id is what actually guarantees exclusivity
// when two attempts race past the gates, so a unique violation on the insert
// maps to ErrDuplicateReversal just like a failed gate.
func (s *Service) CreateReversal(ctx context.Context, params store.CreateReversalParams) (*models.Transaction, error) {
	zap.L().Info("Creating reversal",
		zap.String("original_transaction_id", params.OriginalId),
		zap.String("reversal_id", params.Reversal.Id))

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	original, err := scanTransaction(dbTx.QueryRowContext(ctx, queryGetTransactionById, params.OriginalId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrTransactionNotFound, params.OriginalId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load original transaction: %w", err)
	}

	// Eligibility gates, checked in order. A REVERSED original means a prior
	// attempt already won; that is a duplicate, not an invalid state.
	if original.Status == models.StatusReversed {
		return nil, fmt.Errorf("%w: transaction %s is already reversed", store.ErrDuplicateReversal, params.OriginalId)
	}
	if original.Status != models.StatusCompleted {
		return nil, fmt.Errorf("%w: original transaction is %s", store.ErrNotReversible, original.Status)
	}
	if original.Kind == models.KindReversal {
		return nil, fmt.Errorf("%w: cannot reverse a reversal", store.ErrNotReversible)
	}
	if params.Now.Sub(original.CreatedAt) > params.MaxAge {
		return nil, fmt.Errorf("%w: original transaction is older than %s", store.ErrNotReversible, params.MaxAge)
	}

	var liveReversals int
	if err := dbTx.QueryRowContext(ctx, queryCountActiveReversals, params.OriginalId).Scan(&liveReversals); err != nil {
		return nil, fmt.Errorf("failed to count reversals of %s: %w", params.OriginalId, err)
	}
	if liveReversals > 0 {
		return nil, fmt.Errorf("%w: transaction %s already has a live reversal", store.ErrDuplicateReversal, params.OriginalId)
	}

	reversal := params.Reversal
	reversal.Kind = models.KindReversal
	reversal.Status = models.StatusProcessing
	reversal.OriginalTransactionId = params.OriginalId

	_, err = dbTx.ExecContext(ctx, queryInsertTransaction,
		reversal.Id, string(reversal.Kind), string(reversal.Status),
		reversal.FromAccountId, reversal.ToAccountId,
		reversal.Amount.String(), reversal.Currency, reversal.Description, reversal.Reference,
		reversal.CreatedBy, reversal.IdempotencyKey, reversal.OriginalTransactionId,
		reversal.FailureReason, reversal.CreatedAt.UTC(), bindProcessedAt(reversal.ProcessedAt))
	if err != nil {
		return nil, mapInsertError(err, &reversal)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, mapInsertError(fmt.Errorf("failed to commit reversal: %w", err), &reversal)
	}

	zap.L().Info("Reversal row created",
		zap.String("reversal_id", reversal.Id),
		zap.String("original_transaction_id", params.OriginalId))
	return &reversal, nil
}

// FinalizeReversal performs the one sanctioned terminal-to-terminal edge:
// the REVERSAL row moves PROCESSING -> COMPLETED and the original
// COMPLETED -> REVERSED, in a single store transaction. The original keeps
// its processed_at; REVERSED records a status change, not a new settlement.
func (s *Service) FinalizeReversal(ctx context.Context, params store.FinalizeReversalParams) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	result, err := dbTx.ExecContext(ctx, queryFinalizeReversal, params.ProcessedAt.UTC(), params.ReversalId)
	if err != nil {
		return fmt.Errorf("failed to complete reversal %s: %w", params.ReversalId, err)
	}
	if affected, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	} else if affected == 0 {
		return fmt.Errorf("%w: reversal %s is not in PROCESSING", store.ErrInvalidTransition, params.ReversalId)
	}

	result, err = dbTx.ExecContext(ctx, queryMarkOriginalReversed, params.OriginalId)
	if err != nil {
		return fmt.Errorf("failed to mark original %s reversed: %w", params.OriginalId, err)
	}
	if affected, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	} else if affected == 0 {
		return fmt.Errorf("%w: original %s is not in COMPLETED", store.ErrInvalidTransition, params.OriginalId)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reversal finalization: %w", err)
	}

	zap.L().Info("Reversal finalized",
		zap.String("reversal_id", params.ReversalId),
		zap.String("original_transaction_id", params.OriginalId))
	return nil
}
