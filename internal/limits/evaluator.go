package limits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"transaction-core-go/internal/models"
	"transaction-core-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Errors returned by Check. Anything that is not ErrLimitExceeded means the
// evaluation itself could not complete; the evaluator fails closed and the
// caller must treat the operation as denied.
var (
	ErrLimitExceeded    = errors.New("transaction limit exceeded")
	ErrCheckUnavailable = errors.New("limit check unavailable")
)

// AggregateStore is the slice of the ledger store the evaluator reads.
type AggregateStore interface {
	GetLimit(ctx context.Context, accountType string, kind models.TransactionKind) (*models.TransactionLimit, error)
	SumCompletedAmount(ctx context.Context, accountId string, kind models.TransactionKind, since time.Time) (decimal.Decimal, error)
	CountCompleted(ctx context.Context, accountId string, kind models.TransactionKind, since time.Time) (int64, error)
}

// Evaluator decides whether a proposed transaction fits within the configured
// caps for its (accountType, kind) pair. Day and month windows are calendar
// boundaries in the configured location.
type Evaluator struct {
	store    AggregateStore
	location *time.Location
	now      func() time.Time
}

func NewEvaluator(aggregates AggregateStore, location *time.Location) *Evaluator {
	if location == nil {
		location = time.UTC
	}
	return &Evaluator{
		store:    aggregates,
		location: location,
		now:      time.Now,
	}
}

// CheckParams describes the proposed operation.
type CheckParams struct {
	AccountId   string
	AccountType string
	Kind        models.TransactionKind
	Amount      decimal.Decimal
}

// Check returns nil when the operation is allowed, ErrLimitExceeded (wrapped
// with the breached cap) when a cap blocks it, and ErrCheckUnavailable when
// the evaluation could not run. There is no allow-on-error path.
func (e *Evaluator) Check(ctx context.Context, params CheckParams) error {
	limit, err := e.store.GetLimit(ctx, params.AccountType, params.Kind)
	if errors.Is(err, store.ErrLimitNotFound) {
		return nil
	}
	if err != nil {
		zap.L().Error("Limit lookup failed, denying operation",
			zap.String("account_type", params.AccountType),
			zap.String("kind", string(params.Kind)),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrCheckUnavailable, err)
	}
	if !limit.Active {
		return nil
	}

	if limit.PerOperationCap != nil && params.Amount.GreaterThan(*limit.PerOperationCap) {
		return fmt.Errorf("%w: amount %s exceeds per-operation cap %s",
			ErrLimitExceeded, params.Amount.String(), limit.PerOperationCap.String())
	}

	now := e.now()
	if err := e.checkWindow(ctx, params, limit.DailyAmountCap, limit.DailyCountCap, e.dayStart(now), "daily"); err != nil {
		return err
	}
	return e.checkWindow(ctx, params, limit.MonthlyAmountCap, limit.MonthlyCountCap, e.monthStart(now), "monthly")
}

// checkWindow evaluates the amount and count caps for one window. Aggregates
// are only fetched when the corresponding cap is set.
func (e *Evaluator) checkWindow(ctx context.Context, params CheckParams, amountCap *decimal.Decimal, countCap *int64, since time.Time, window string) error {
	if amountCap != nil {
		sum, err := e.store.SumCompletedAmount(ctx, params.AccountId, params.Kind, since)
		if err != nil {
			zap.L().Error("Limit aggregate query failed, denying operation",
				zap.String("account_id", params.AccountId),
				zap.String("window", window),
				zap.Error(err))
			return fmt.Errorf("%w: %v", ErrCheckUnavailable, err)
		}
		if sum.Add(params.Amount).GreaterThan(*amountCap) {
			return fmt.Errorf("%w: %s amount %s + %s exceeds %s cap %s",
				ErrLimitExceeded, window, sum.String(), params.Amount.String(), window, amountCap.String())
		}
	}

	if countCap != nil {
		count, err := e.store.CountCompleted(ctx, params.AccountId, params.Kind, since)
		if err != nil {
			zap.L().Error("Limit aggregate query failed, denying operation",
				zap.String("account_id", params.AccountId),
				zap.String("window", window),
				zap.Error(err))
			return fmt.Errorf("%w: %v", ErrCheckUnavailable, err)
		}
		if count >= *countCap {
			return fmt.Errorf("%w: %s count %d reached cap %d",
				ErrLimitExceeded, window, count, *countCap)
		}
	}

	return nil
}

func (e *Evaluator) dayStart(now time.Time) time.Time {
	local := now.In(e.location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, e.location)
}

func (e *Evaluator) monthStart(now time.Time) time.Time {
	local := now.In(e.location)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, e.location)
}
