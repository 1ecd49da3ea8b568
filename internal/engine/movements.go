package engine

import (
	"context"

	"transaction-core-go/internal/accounts"
	"transaction-core-go/internal/limits"
	"transaction-core-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MovementParams describes a single-account movement against the EXTERNAL
// counter-party: deposits, withdrawals, fees and interest.
type MovementParams struct {
	AccountId      string
	Amount         decimal.Decimal
	Currency       string
	Description    string
	Reference      string
	Caller         string
	IdempotencyKey string
}

// inbound reports whether money arrives on the account for this kind.
func inbound(kind models.TransactionKind) bool {
	return kind == models.KindDeposit || kind == models.KindInterest
}

func (p MovementParams) validate(kind models.TransactionKind) error {
	if p.AccountId == "" || p.AccountId == models.ExternalAccountId {
		return newError(CategoryValidation, "INVALID_ACCOUNT", "account id %q is not a valid target", p.AccountId)
	}
	if p.Caller == "" {
		return newError(CategoryValidation, "MISSING_CALLER", "caller identity is required")
	}
	if p.Amount.LessThanOrEqual(decimal.Zero) {
		return newError(CategoryValidation, "INVALID_AMOUNT", "%s amount must be positive, got %s", kind, p.Amount.String())
	}
	if p.Currency != "" && !currencyPattern.MatchString(normalizeCurrency(p.Currency)) {
		return newError(CategoryValidation, "INVALID_CURRENCY", "currency %q is not a valid ISO-4217 code", p.Currency)
	}
	return nil
}

// processMovement is the shared pipeline behind Deposit, Withdraw, ChargeFee
// and AccrueInterest. The ordering is deliberate: no Account Gateway mutation
// happens before the PROCESSING row is the authoritative winner for the
// idempotency key.
func (e *Engine) processMovement(ctx context.Context, kind models.TransactionKind, params MovementParams) (*models.Transaction, error) {
	if err := params.validate(kind); err != nil {
		return nil, err
	}

	key := normalizeIdempotencyKey(params.IdempotencyKey)
	if existing, err := e.findReplay(ctx, params.Caller, kind, key); err != nil || existing != nil {
		return existing, err
	}

	snapshot, err := e.gateway.GetAccount(ctx, params.AccountId)
	if err != nil {
		return nil, mapGatewayError(err, "unable to resolve account "+params.AccountId)
	}

	currency := normalizeCurrency(params.Currency)
	if currency == "" {
		currency = normalizeCurrency(snapshot.Currency)
	} else if snapshotCurrency := normalizeCurrency(snapshot.Currency); snapshotCurrency != "" && currency != snapshotCurrency {
		return nil, newError(CategoryValidation, "CURRENCY_MISMATCH",
			"account %s holds %s, not %s", params.AccountId, snapshot.Currency, params.Currency)
	}

	if err := e.checkLimits(ctx, limits.CheckParams{
		AccountId:   params.AccountId,
		AccountType: snapshot.AccountType,
		Kind:        kind,
		Amount:      params.Amount,
	}); err != nil {
		return nil, err
	}

	if !inbound(kind) {
		if err := checkFunds(snapshot, params.Amount); err != nil {
			return nil, err
		}
	}

	tx := &models.Transaction{
		Id:             newTransactionId(),
		Kind:           kind,
		Status:         models.StatusProcessing,
		FromAccountId:  models.ExternalAccountId,
		ToAccountId:    params.AccountId,
		Amount:         params.Amount,
		Currency:       currency,
		Description:    params.Description,
		Reference:      params.Reference,
		CreatedBy:      params.Caller,
		IdempotencyKey: key,
		CreatedAt:      e.now().UTC(),
	}
	if !inbound(kind) {
		tx.FromAccountId = params.AccountId
		tx.ToAccountId = models.ExternalAccountId
	}

	if winner, err := e.insertProcessing(ctx, tx); err != nil || winner != nil {
		return winner, err
	}

	role, delta, creditBalancing := "debit", params.Amount.Neg(), false
	if inbound(kind) {
		role, delta, creditBalancing = "credit", params.Amount, true
	}

	_, err = e.gateway.ApplyBalanceOperation(ctx, accounts.ApplyBalanceOperationParams{
		AccountId:       params.AccountId,
		OperationId:     operationId(tx.Id, role),
		Delta:           delta,
		Reason:          string(kind),
		Label:           params.Description,
		CreditBalancing: creditBalancing,
	})
	if err != nil {
		e.markFailed(ctx, tx, models.StatusFailed, reasonCodeFor(err))
		return nil, mapGatewayError(err, string(kind)+" balance operation failed")
	}

	if err := e.markCompleted(ctx, tx); err != nil {
		return nil, err
	}

	zap.L().Info("Movement completed",
		zap.String("transaction_id", tx.Id),
		zap.String("kind", string(kind)),
		zap.String("account_id", params.AccountId),
		zap.String("amount", params.Amount.String()))
	return tx, nil
}

// checkFunds verifies the account can cover an outbound amount. CREDIT
// accounts draw on available credit instead of balance.
func checkFunds(snapshot *models.AccountSnapshot, amount decimal.Decimal) error {
	available := snapshot.Balance
	if snapshot.AccountType == models.AccountTypeCredit {
		available = snapshot.AvailableCredit
	}
	if available.LessThan(amount) {
		return newError(CategoryInsufficientFunds, models.ReasonInsufficientFunds,
			"account %s has %s available, needs %s", snapshot.Id, available.String(), amount.String())
	}
	return nil
}
