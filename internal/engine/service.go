package engine

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"transaction-core-go/internal/accounts"
	"transaction-core-go/internal/audit"
	"transaction-core-go/internal/limits"
	"transaction-core-go/internal/models"
	"transaction-core-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Gateway is the slice of the Account Gateway the engine drives. Operation
// ids are "<transactionId>:<role>" with role debit, credit or compensate, so
// remote retries of the same leg collapse to one effect.
type Gateway interface {
	GetAccount(ctx context.Context, accountId string) (*models.AccountSnapshot, error)
	ApplyBalanceOperation(ctx context.Context, params accounts.ApplyBalanceOperationParams) (*models.BalanceOperationResult, error)
}

// Engine orchestrates money movement: it validates requests, enforces
// idempotency and limits against the ledger, drives the Account Gateway,
// compensates on partial failure, and finalises ledger state. It holds no
// mutable state of its own; all coordination runs through the ledger store's
// constraints.
type Engine struct {
	ledger  store.LedgerStore
	gateway Gateway
	limits  *limits.Evaluator
	audit   *audit.Sink

	reversalWindow time.Duration
	now            func() time.Time
}

func New(ledger store.LedgerStore, gateway Gateway, evaluator *limits.Evaluator, sink *audit.Sink, cfg models.EngineConfig) *Engine {
	reversalWindow := cfg.ReversalWindow
	if reversalWindow <= 0 {
		reversalWindow = 30 * 24 * time.Hour
	}
	return &Engine{
		ledger:         ledger,
		gateway:        gateway,
		limits:         evaluator,
		audit:          sink,
		reversalWindow: reversalWindow,
		now:            time.Now,
	}
}

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// normalizeIdempotencyKey trims and upper-cases a caller-supplied key. The
// empty string means no key.
func normalizeIdempotencyKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

func normalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

func operationId(transactionId, role string) string {
	return transactionId + ":" + role
}

// findReplay returns the prior winning row for (caller, kind, key), or nil
// when this is a fresh request.
func (e *Engine) findReplay(ctx context.Context, caller string, kind models.TransactionKind, key string) (*models.Transaction, error) {
	if key == "" {
		return nil, nil
	}
	existing, err := e.ledger.FindByIdempotencyKey(ctx, caller, kind, key)
	if errors.Is(err, store.ErrTransactionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapError(CategoryInternal, "LEDGER_ERROR", err, "idempotency pre-check failed")
	}
	zap.L().Info("Returning prior transaction for idempotency key",
		zap.String("transaction_id", existing.Id),
		zap.String("caller", caller),
		zap.String("kind", string(kind)))
	return existing, nil
}

// checkLimits runs the limit evaluator and translates its fail-closed errors.
func (e *Engine) checkLimits(ctx context.Context, params limits.CheckParams) error {
	err := e.limits.Check(ctx, params)
	if err == nil {
		return nil
	}
	if errors.Is(err, limits.ErrLimitExceeded) {
		return wrapError(CategoryLimitExceeded, models.ReasonLimitExceeded, err, "operation blocked by transaction limit")
	}
	return wrapError(CategoryServiceUnavailable, models.ReasonServiceUnavailable, err, "limit evaluation unavailable")
}

// mapGatewayError translates a typed gateway error into the caller-facing
// taxonomy.
func mapGatewayError(err error, detail string) *Error {
	switch {
	case errors.Is(err, accounts.ErrAccountNotFound):
		return wrapError(CategoryAccountNotFound, models.ReasonAccountNotFound, err, "%s", detail)
	case errors.Is(err, accounts.ErrInsufficientFunds):
		return wrapError(CategoryInsufficientFunds, models.ReasonInsufficientFunds, err, "%s", detail)
	case errors.Is(err, accounts.ErrServiceUnavailable):
		return wrapError(CategoryServiceUnavailable, models.ReasonServiceUnavailable, err, "%s", detail)
	case errors.Is(err, accounts.ErrConflict):
		return wrapError(CategoryInvalidState, models.ReasonRemoteRejected, err, "%s", detail)
	default:
		return wrapError(CategoryValidation, models.ReasonRemoteRejected, err, "%s", detail)
	}
}

// reasonCodeFor picks the stable failure reason recorded on the ledger row.
func reasonCodeFor(err error) string {
	switch {
	case errors.Is(err, accounts.ErrAccountNotFound):
		return models.ReasonAccountNotFound
	case errors.Is(err, accounts.ErrInsufficientFunds):
		return models.ReasonInsufficientFunds
	case errors.Is(err, accounts.ErrServiceUnavailable):
		return models.ReasonServiceUnavailable
	default:
		return models.ReasonRemoteRejected
	}
}

// markCompleted moves the row to COMPLETED and mirrors the change on the
// in-memory copy.
func (e *Engine) markCompleted(ctx context.Context, tx *models.Transaction) error {
	processedAt := e.now().UTC()
	err := e.ledger.UpdateStatus(ctx, store.UpdateStatusParams{
		Id:          tx.Id,
		Status:      models.StatusCompleted,
		ProcessedAt: processedAt,
	})
	if err != nil {
		return wrapError(CategoryInternal, "LEDGER_ERROR", err, "failed to finalise transaction %s", tx.Id)
	}
	tx.Status = models.StatusCompleted
	tx.ProcessedAt = &processedAt
	e.emitAudit(ctx, tx, models.AuditOutcomeCompleted, "")
	return nil
}

// markFailed records a terminal failure. Losing this update is tolerable:
// the sweeper will fail the stuck row later.
func (e *Engine) markFailed(ctx context.Context, tx *models.Transaction, status models.TransactionStatus, reason string) {
	processedAt := e.now().UTC()
	err := e.ledger.UpdateStatus(ctx, store.UpdateStatusParams{
		Id:            tx.Id,
		Status:        status,
		ProcessedAt:   processedAt,
		FailureReason: reason,
	})
	if err != nil {
		zap.L().Error("Failed to record terminal failure status",
			zap.String("transaction_id", tx.Id),
			zap.String("status", string(status)),
			zap.String("reason", reason),
			zap.Error(err))
		return
	}
	tx.Status = status
	tx.ProcessedAt = &processedAt
	tx.FailureReason = reason

	outcome := models.AuditOutcomeFailed
	if status == models.StatusManualAction {
		outcome = models.AuditOutcomeManualAction
	}
	e.emitAudit(ctx, tx, outcome, reason)
}

func (e *Engine) emitAudit(ctx context.Context, tx *models.Transaction, outcome, reasonCode string) {
	severity := models.AuditSeverityInfo
	switch outcome {
	case models.AuditOutcomeFailed:
		severity = models.AuditSeverityWarn
	case models.AuditOutcomeManualAction:
		severity = models.AuditSeverityCritical
	}

	e.audit.Record(models.AuditEvent{
		Time:          e.now().UTC(),
		CorrelationId: models.CorrelationIdFrom(ctx),
		TransactionId: tx.Id,
		Caller:        tx.CreatedBy,
		Kind:          tx.Kind,
		FromAccountId: tx.FromAccountId,
		ToAccountId:   tx.ToAccountId,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		Status:        string(tx.Status),
		Outcome:       outcome,
		ReasonCode:    reasonCode,
		Severity:      severity,
	})
}

// insertProcessing writes the PROCESSING intent row. A duplicate-key
// violation means a concurrent request with the same idempotency key won the
// insert race; the winner's row is re-queried and returned.
func (e *Engine) insertProcessing(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	err := e.ledger.InsertTransaction(ctx, tx)
	if err == nil {
		e.emitAudit(ctx, tx, models.AuditOutcomeInitiated, "")
		return nil, nil
	}
	if errors.Is(err, store.ErrDuplicateTransaction) && tx.IdempotencyKey != "" {
		winner, findErr := e.ledger.FindByIdempotencyKey(ctx, tx.CreatedBy, tx.Kind, tx.IdempotencyKey)
		if findErr != nil {
			return nil, wrapError(CategoryInternal, "LEDGER_ERROR", findErr,
				"lost insert race but winning transaction not found")
		}
		zap.L().Info("Lost idempotent insert race, returning winner",
			zap.String("winner_id", winner.Id),
			zap.String("loser_id", tx.Id))
		return winner, nil
	}
	return nil, wrapError(CategoryInternal, "LEDGER_ERROR", err, "failed to persist transaction intent")
}

func newTransactionId() string {
	return uuid.New().String()
}
