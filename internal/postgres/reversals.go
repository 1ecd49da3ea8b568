package postgres

import (
	"context"
	"errors"
	"fmt"

	"transaction-core-go/internal/models"
	"transaction-core-go/internal/store"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

func (s *Service) FindReversalsOf(ctx context.Context, originalId string) ([]models.Transaction, error) {
	rows, err := s.pool.Query(ctx, queryGetReversalsOf, originalId)
	if err != nil {
		return nil, fmt.Errorf("failed to get reversals of %s: %w", originalId, err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func (s *Service) IsReversed(ctx context.Context, originalId string) (bool, error) {
	var count int
	if err := s.pool.QueryRow(ctx, queryCountActiveReversals, originalId).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count reversals of %s: %w", originalId, err)
	}
	return count > 0, nil
}

// CreateReversal locks the original row with SELECT ... FOR UPDATE, runs the
// eligibility gates under that lock, and inserts the REVERSAL row before
// committing. A second concurrent attempt blocks on the row lock and then
// sees the winner's PROCESSING row in the live-reversal count; anything that
// still races through is stopped by the partial unique index on insert.
func (s *Service) CreateReversal(ctx context.Context, params store.CreateReversalParams) (*models.Transaction, error) {
	zap.L().Info("Creating reversal",
		zap.String("original_transaction_id", params.OriginalId),
		zap.String("reversal_id", params.Reversal.Id))

	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback(ctx)

	original, err := scanTransaction(dbTx.QueryRow(ctx, queryGetTransactionByIdLocked, params.OriginalId))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrTransactionNotFound, params.OriginalId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load original transaction: %w", err)
	}

	// A REVERSED original means a prior attempt already won; that is a
	// duplicate, not an invalid state.
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
	if err := dbTx.QueryRow(ctx, queryCountActiveReversals, params.OriginalId).Scan(&liveReversals); err != nil {
		return nil, fmt.Errorf("failed to count reversals of %s: %w", params.OriginalId, err)
	}
	if liveReversals > 0 {
		return nil, fmt.Errorf("%w: transaction %s already has a live reversal", store.ErrDuplicateReversal, params.OriginalId)
	}

	reversal := params.Reversal
	reversal.Kind = models.KindReversal
	reversal.Status = models.StatusProcessing
	reversal.OriginalTransactionId = params.OriginalId

	_, err = dbTx.Exec(ctx, queryInsertTransaction,
		reversal.Id, string(reversal.Kind), string(reversal.Status),
		reversal.FromAccountId, reversal.ToAccountId,
		reversal.Amount.String(), reversal.Currency, reversal.Description, reversal.Reference,
		reversal.CreatedBy, reversal.IdempotencyKey, reversal.OriginalTransactionId,
		reversal.FailureReason, reversal.CreatedAt.UTC(), bindProcessedAt(reversal.ProcessedAt))
	if err != nil {
		return nil, mapInsertError(err, &reversal)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, mapInsertError(fmt.Errorf("failed to commit reversal: %w", err), &reversal)
	}

	zap.L().Info("Reversal row created",
		zap.String("reversal_id", reversal.Id),
		zap.String("original_transaction_id", params.OriginalId))
	return &reversal, nil
}

func (s *Service) FinalizeReversal(ctx context.Context, params store.FinalizeReversalParams) error {
	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback(ctx)

	tag, err := dbTx.Exec(ctx, queryFinalizeReversal, params.ProcessedAt.UTC(), params.ReversalId)
	if err != nil {
		return fmt.Errorf("failed to complete reversal %s: %w", params.ReversalId, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: reversal %s is not in PROCESSING", store.ErrInvalidTransition, params.ReversalId)
	}

	tag, err = dbTx.Exec(ctx, queryMarkOriginalReversed, params.OriginalId)
	if err != nil {
		return fmt.Errorf("failed to mark original %s reversed: %w", params.OriginalId, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: original %s is not in COMPLETED", store.ErrInvalidTransition, params.OriginalId)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reversal finalization: %w", err)
	}

	zap.L().Info("Reversal finalized",
		zap.String("reversal_id", params.ReversalId),
		zap.String("original_transaction_id", params.OriginalId))
	return nil
}
