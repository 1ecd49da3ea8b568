package engine

import (
	"context"
	"errors"

	"transaction-core-go/internal/accounts"
	"transaction-core-go/internal/models"
	"transaction-core-go/internal/store"

	"go.uber.org/zap"
)

// ReverseParams identifies the COMPLETED transaction to cancel.
type ReverseParams struct {
	OriginalTransactionId string
	Reason                string
	Caller                string
	IdempotencyKey        string
}

// Reverse cancels a prior COMPLETED transaction by recording a new REVERSAL
// row and applying the inverse legs. Exclusivity comes from the store: the
// original is row-locked while the eligibility gates run, and the partial
// unique index guarantees at most one live reversal per original even when
// two attempts race.
func (e *Engine) Reverse(ctx context.Context, params ReverseParams) (*models.Transaction, error) {
	if params.OriginalTransactionId == "" {
		return nil, newError(CategoryValidation, "MISSING_ORIGINAL", "original transaction id is required")
	}
	if params.Caller == "" {
		return nil, newError(CategoryValidation, "MISSING_CALLER", "caller identity is required")
	}

	key := normalizeIdempotencyKey(params.IdempotencyKey)
	if existing, err := e.findReplay(ctx, params.Caller, models.KindReversal, key); err != nil || existing != nil {
		return existing, err
	}

	original, err := e.ledger.FindById(ctx, params.OriginalTransactionId)
	if errors.Is(err, store.ErrTransactionNotFound) {
		return nil, wrapError(CategoryNotFound, "TRANSACTION_NOT_FOUND", err,
			"original transaction %s not found", params.OriginalTransactionId)
	}
	if err != nil {
		return nil, wrapError(CategoryInternal, "LEDGER_ERROR", err, "failed to load original transaction")
	}

	reversal := &models.Transaction{
		Id:                    newTransactionId(),
		Kind:                  models.KindReversal,
		Status:                models.StatusProcessing,
		Amount:                original.Amount,
		Currency:              original.Currency,
		Description:           params.Reason,
		Reference:             original.Reference,
		CreatedBy:             params.Caller,
		IdempotencyKey:        key,
		OriginalTransactionId: original.Id,
		CreatedAt:             e.now().UTC(),
	}
	reversal.FromAccountId, reversal.ToAccountId = reversalLegs(original)

	// The store re-reads the original under its row lock and re-runs the
	// gates; the snapshot above only shaped the legs.
	if _, err := e.ledger.CreateReversal(ctx, store.CreateReversalParams{
		OriginalId: original.Id,
		Reversal:   *reversal,
		MaxAge:     e.reversalWindow,
		Now:        e.now().UTC(),
	}); err != nil {
		return e.mapCreateReversalError(ctx, err, params.Caller, key)
	}
	e.emitAudit(ctx, reversal, models.AuditOutcomeInitiated, "")

	if err := e.applyReversalLegs(ctx, reversal); err != nil {
		return nil, err
	}

	processedAt := e.now().UTC()
	if err := e.ledger.FinalizeReversal(ctx, store.FinalizeReversalParams{
		ReversalId:  reversal.Id,
		OriginalId:  original.Id,
		ProcessedAt: processedAt,
	}); err != nil {
		return nil, wrapError(CategoryInternal, "LEDGER_ERROR", err,
			"failed to finalise reversal %s", reversal.Id)
	}
	reversal.Status = models.StatusCompleted
	reversal.ProcessedAt = &processedAt
	e.emitAudit(ctx, reversal, models.AuditOutcomeCompleted, "")

	original.Status = models.StatusReversed
	e.emitAudit(ctx, original, models.AuditOutcomeReversed, "")

	zap.L().Info("Reversal completed",
		zap.String("reversal_id", reversal.Id),
		zap.String("original_transaction_id", original.Id),
		zap.String("amount", reversal.Amount.String()))
	return reversal, nil
}

// reversalLegs computes the inverse accounts: transfers swap parties,
// inbound kinds pay back out to EXTERNAL, outbound kinds are refunded from
// EXTERNAL.
func reversalLegs(original *models.Transaction) (from, to string) {
	switch original.Kind {
	case models.KindTransfer:
		return original.ToAccountId, original.FromAccountId
	case models.KindDeposit, models.KindInterest:
		return original.ToAccountId, models.ExternalAccountId
	default: // WITHDRAWAL, FEE
		return models.ExternalAccountId, original.FromAccountId
	}
}

func (e *Engine) mapCreateReversalError(ctx context.Context, err error, caller, key string) (*models.Transaction, error) {
	switch {
	case errors.Is(err, store.ErrDuplicateReversal):
		return nil, wrapError(CategoryAlreadyReversed, "ALREADY_REVERSED", err, "transaction already reversed")
	case errors.Is(err, store.ErrNotReversible):
		return nil, wrapError(CategoryInvalidState, "NOT_REVERSIBLE", err, "transaction cannot be reversed")
	case errors.Is(err, store.ErrTransactionNotFound):
		return nil, wrapError(CategoryNotFound, "TRANSACTION_NOT_FOUND", err, "original transaction not found")
	case errors.Is(err, store.ErrDuplicateTransaction) && key != "":
		winner, findErr := e.ledger.FindByIdempotencyKey(ctx, caller, models.KindReversal, key)
		if findErr != nil {
			return nil, wrapError(CategoryInternal, "LEDGER_ERROR", findErr,
				"lost reversal insert race but winning row not found")
		}
		return winner, nil
	default:
		return nil, wrapError(CategoryInternal, "LEDGER_ERROR", err, "failed to persist reversal intent")
	}
}

// applyReversalLegs drives the gateway legs of a reversal. Business
// rejections fail the reversal row cleanly (the original stays COMPLETED and
// the partial index admits a later attempt). Unreachability is different:
// the remote may have applied the leg, so unless a successful compensation
// restored a clean state the row is flagged for manual action.
func (e *Engine) applyReversalLegs(ctx context.Context, reversal *models.Transaction) error {
	hasDebit := reversal.FromAccountId != models.ExternalAccountId
	hasCredit := reversal.ToAccountId != models.ExternalAccountId

	if hasDebit {
		_, err := e.gateway.ApplyBalanceOperation(ctx, accounts.ApplyBalanceOperationParams{
			AccountId:   reversal.FromAccountId,
			OperationId: operationId(reversal.Id, "debit"),
			Delta:       reversal.Amount.Neg(),
			Reason:      string(models.KindReversal),
			Label:       reversal.Description,
		})
		if err != nil {
			if errors.Is(err, accounts.ErrServiceUnavailable) {
				e.markFailed(ctx, reversal, models.StatusManualAction, models.ReasonServiceUnavailable)
				return wrapError(CategoryManualAction, models.ReasonServiceUnavailable, err,
					"reversal debit leg unreachable, manual action required")
			}
			e.markFailed(ctx, reversal, models.StatusFailed, reasonCodeFor(err))
			return mapGatewayError(err, "reversal debit leg failed")
		}
	}

	if !hasCredit {
		return nil
	}

	_, err := e.gateway.ApplyBalanceOperation(ctx, accounts.ApplyBalanceOperationParams{
		AccountId:       reversal.ToAccountId,
		OperationId:     operationId(reversal.Id, "credit"),
		Delta:           reversal.Amount,
		Reason:          string(models.KindReversal),
		Label:           reversal.Description,
		CreditBalancing: true,
	})
	if err == nil {
		return nil
	}
	creditErr := err

	if !hasDebit {
		if errors.Is(creditErr, accounts.ErrServiceUnavailable) {
			e.markFailed(ctx, reversal, models.StatusManualAction, models.ReasonServiceUnavailable)
			return wrapError(CategoryManualAction, models.ReasonServiceUnavailable, creditErr,
				"reversal credit leg unreachable, manual action required")
		}
		e.markFailed(ctx, reversal, models.StatusFailed, reasonCodeFor(creditErr))
		return mapGatewayError(creditErr, "reversal credit leg failed")
	}

	// Two-leg reversal with the debit already applied: compensate it.
	zap.L().Warn("Reversal credit leg failed, compensating debit",
		zap.String("reversal_id", reversal.Id),
		zap.String("debit_account_id", reversal.FromAccountId),
		zap.Error(creditErr))

	_, err = e.gateway.ApplyBalanceOperation(ctx, accounts.ApplyBalanceOperationParams{
		AccountId:       reversal.FromAccountId,
		OperationId:     operationId(reversal.Id, "compensate"),
		Delta:           reversal.Amount,
		Reason:          string(models.KindReversal),
		Label:           "compensation: " + reversal.Description,
		CreditBalancing: true,
	})
	if err != nil {
		zap.L().Error("Reversal compensation failed, manual action required",
			zap.String("reversal_id", reversal.Id),
			zap.Error(err))
		e.markFailed(ctx, reversal, models.StatusManualAction, models.ReasonCompensationFailed)
		return wrapError(CategoryManualAction, models.ReasonCompensationFailed, err,
			"reversal credit failed and compensation failed for %s", reversal.Id)
	}

	e.markFailed(ctx, reversal, models.StatusFailed, reasonCodeFor(creditErr))
	return mapGatewayError(creditErr, "reversal credit leg failed, debit compensated")
}
