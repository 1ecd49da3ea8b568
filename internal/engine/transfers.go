package engine

import (
	"context"

	"transaction-core-go/internal/accounts"
	"transaction-core-go/internal/limits"
	"transaction-core-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransferParams describes an atomic two-party movement between accounts.
type TransferParams struct {
	FromAccountId  string
	ToAccountId    string
	Amount         decimal.Decimal
	Currency       string
	Description    string
	Reference      string
	Caller         string
	IdempotencyKey string
}

func (p TransferParams) validate() error {
	if p.FromAccountId == "" || p.FromAccountId == models.ExternalAccountId {
		return newError(CategoryValidation, "INVALID_ACCOUNT", "source account id %q is not a valid transfer party", p.FromAccountId)
	}
	if p.ToAccountId == "" || p.ToAccountId == models.ExternalAccountId {
		return newError(CategoryValidation, "INVALID_ACCOUNT", "destination account id %q is not a valid transfer party", p.ToAccountId)
	}
	if p.FromAccountId == p.ToAccountId {
		return newError(CategoryValidation, "SAME_ACCOUNT", "cannot transfer from an account to itself")
	}
	if p.Caller == "" {
		return newError(CategoryValidation, "MISSING_CALLER", "caller identity is required")
	}
	if p.Amount.LessThanOrEqual(decimal.Zero) {
		return newError(CategoryValidation, "INVALID_AMOUNT", "transfer amount must be positive, got %s", p.Amount.String())
	}
	if p.Currency != "" && !currencyPattern.MatchString(normalizeCurrency(p.Currency)) {
		return newError(CategoryValidation, "INVALID_CURRENCY", "currency %q is not a valid ISO-4217 code", p.Currency)
	}
	return nil
}

// Transfer debits the source account and credits the destination. The remote
// only mutates one account per call, so a failed credit after a successful
// debit triggers a compensating credit back to the source; the compensate
// operation id is distinct from the debit's, keeping both independently
// idempotent at the remote.
func (e *Engine) Transfer(ctx context.Context, params TransferParams) (*models.Transaction, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	key := normalizeIdempotencyKey(params.IdempotencyKey)
	if existing, err := e.findReplay(ctx, params.Caller, models.KindTransfer, key); err != nil || existing != nil {
		return existing, err
	}

	source, err := e.gateway.GetAccount(ctx, params.FromAccountId)
	if err != nil {
		return nil, mapGatewayError(err, "unable to resolve source account "+params.FromAccountId)
	}
	destination, err := e.gateway.GetAccount(ctx, params.ToAccountId)
	if err != nil {
		return nil, mapGatewayError(err, "unable to resolve destination account "+params.ToAccountId)
	}

	// Transfers are same-currency; cross-currency movement is rejected
	// rather than silently converted.
	sourceCurrency := normalizeCurrency(source.Currency)
	if destCurrency := normalizeCurrency(destination.Currency); sourceCurrency != destCurrency {
		return nil, newError(CategoryValidation, "CURRENCY_MISMATCH",
			"cannot transfer between %s and %s accounts", source.Currency, destination.Currency)
	}
	currency := normalizeCurrency(params.Currency)
	if currency == "" {
		currency = sourceCurrency
	} else if currency != sourceCurrency {
		return nil, newError(CategoryValidation, "CURRENCY_MISMATCH",
			"account %s holds %s, not %s", params.FromAccountId, source.Currency, params.Currency)
	}

	if err := e.checkLimits(ctx, limits.CheckParams{
		AccountId:   params.FromAccountId,
		AccountType: source.AccountType,
		Kind:        models.KindTransfer,
		Amount:      params.Amount,
	}); err != nil {
		return nil, err
	}

	if err := checkFunds(source, params.Amount); err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		Id:             newTransactionId(),
		Kind:           models.KindTransfer,
		Status:         models.StatusProcessing,
		FromAccountId:  params.FromAccountId,
		ToAccountId:    params.ToAccountId,
		Amount:         params.Amount,
		Currency:       currency,
		Description:    params.Description,
		Reference:      params.Reference,
		CreatedBy:      params.Caller,
		IdempotencyKey: key,
		CreatedAt:      e.now().UTC(),
	}

	if winner, err := e.insertProcessing(ctx, tx); err != nil || winner != nil {
		return winner, err
	}

	if err := e.applyTwoLegs(ctx, tx, twoLegs{
		debitAccount:  params.FromAccountId,
		creditAccount: params.ToAccountId,
		amount:        params.Amount,
		reason:        string(models.KindTransfer),
		label:         params.Description,
	}); err != nil {
		return nil, err
	}

	if err := e.markCompleted(ctx, tx); err != nil {
		return nil, err
	}

	zap.L().Info("Transfer completed",
		zap.String("transaction_id", tx.Id),
		zap.String("from_account_id", params.FromAccountId),
		zap.String("to_account_id", params.ToAccountId),
		zap.String("amount", params.Amount.String()))
	return tx, nil
}

// twoLegs names the parties of a debit-then-credit sequence. The reversal
// flow reuses it with the parties swapped.
type twoLegs struct {
	debitAccount  string
	creditAccount string
	amount        decimal.Decimal
	reason        string
	label         string
}

// applyTwoLegs drives debit, credit and, when the credit fails, the
// compensating credit back to the debited account. On any failure the row is
// moved to its terminal failure status before the error is returned. A credit
// timeout still compensates: the remote may have applied the credit, and the
// distinct compensate operation id guarantees at most one net credit
// survives.
func (e *Engine) applyTwoLegs(ctx context.Context, tx *models.Transaction, legs twoLegs) error {
	_, err := e.gateway.ApplyBalanceOperation(ctx, accounts.ApplyBalanceOperationParams{
		AccountId:   legs.debitAccount,
		OperationId: operationId(tx.Id, "debit"),
		Delta:       legs.amount.Neg(),
		Reason:      legs.reason,
		Label:       legs.label,
	})
	if err != nil {
		e.markFailed(ctx, tx, models.StatusFailed, reasonCodeFor(err))
		return mapGatewayError(err, "debit leg failed")
	}

	_, err = e.gateway.ApplyBalanceOperation(ctx, accounts.ApplyBalanceOperationParams{
		AccountId:       legs.creditAccount,
		OperationId:     operationId(tx.Id, "credit"),
		Delta:           legs.amount,
		Reason:          legs.reason,
		Label:           legs.label,
		CreditBalancing: true,
	})
	if err == nil {
		return nil
	}
	creditErr := err

	zap.L().Warn("Credit leg failed, compensating debit",
		zap.String("transaction_id", tx.Id),
		zap.String("debit_account_id", legs.debitAccount),
		zap.String("credit_account_id", legs.creditAccount),
		zap.Error(creditErr))

	_, err = e.gateway.ApplyBalanceOperation(ctx, accounts.ApplyBalanceOperationParams{
		AccountId:       legs.debitAccount,
		OperationId:     operationId(tx.Id, "compensate"),
		Delta:           legs.amount,
		Reason:          legs.reason,
		Label:           "compensation: " + legs.label,
		CreditBalancing: true,
	})
	if err != nil {
		zap.L().Error("Compensation failed, manual action required",
			zap.String("transaction_id", tx.Id),
			zap.String("debit_account_id", legs.debitAccount),
			zap.Error(err))
		e.markFailed(ctx, tx, models.StatusManualAction, models.ReasonCompensationFailed)
		return wrapError(CategoryManualAction, models.ReasonCompensationFailed, err,
			"credit failed and compensation failed for transaction %s", tx.Id)
	}

	e.markFailed(ctx, tx, models.StatusFailed, reasonCodeFor(creditErr))
	return mapGatewayError(creditErr, "credit leg failed, debit compensated")
}
