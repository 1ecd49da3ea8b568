package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"transaction-core-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetAccount fetches the current snapshot of one account. Inactive accounts
// are not usable for money movement and surface as a validation error.
func (s *Service) GetAccount(ctx context.Context, accountId string) (*models.AccountSnapshot, error) {
	outcome, err := s.call(ctx, http.MethodGet, "/accounts/"+accountId, nil)
	if err != nil {
		return nil, err
	}

	switch {
	case outcome.status == http.StatusOK:
	case outcome.status == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountId)
	default:
		return nil, fmt.Errorf("%w: unexpected status %d fetching account %s",
			ErrRemoteValidation, outcome.status, accountId)
	}

	var snapshot models.AccountSnapshot
	if err := json.Unmarshal(outcome.body, &snapshot); err != nil {
		return nil, fmt.Errorf("unable to decode account snapshot: %w", err)
	}
	if !snapshot.Active {
		return nil, fmt.Errorf("%w: account %s is inactive", ErrRemoteValidation, accountId)
	}

	return &snapshot, nil
}

// ApplyBalanceOperationParams contains parameters for applying one signed
// balance delta. OperationId makes the call idempotent at the remote side;
// replaying it yields the original result.
type ApplyBalanceOperationParams struct {
	AccountId       string
	OperationId     string
	Delta           decimal.Decimal
	Reason          string
	Label           string
	CreditBalancing bool
}

// ApplyBalanceOperation posts a signed delta against an account. REJECTED
// responses carry a reason code that selects the typed error.
func (s *Service) ApplyBalanceOperation(ctx context.Context, params ApplyBalanceOperationParams) (*models.BalanceOperationResult, error) {
	zap.L().Debug("Applying balance operation",
		zap.String("account_id", params.AccountId),
		zap.String("operation_id", params.OperationId),
		zap.String("delta", params.Delta.String()))

	body := models.BalanceOperation{
		OperationId:     params.OperationId,
		Delta:           params.Delta,
		Reason:          params.Reason,
		Label:           params.Label,
		CreditBalancing: params.CreditBalancing,
	}

	outcome, err := s.call(ctx, http.MethodPost, "/accounts/"+params.AccountId+"/balance-operations", body)
	if err != nil {
		return nil, err
	}

	switch outcome.status {
	case http.StatusOK:
		var result models.BalanceOperationResult
		if err := json.Unmarshal(outcome.body, &result); err != nil {
			return nil, fmt.Errorf("unable to decode balance operation result: %w", err)
		}
		if result.Status == models.BalanceOpIdempotentReplay {
			zap.L().Info("Balance operation collapsed to idempotent replay",
				zap.String("account_id", params.AccountId),
				zap.String("operation_id", params.OperationId))
		}
		return &result, nil

	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, params.AccountId)

	case http.StatusConflict:
		var result models.BalanceOperationResult
		if err := json.Unmarshal(outcome.body, &result); err != nil {
			return nil, fmt.Errorf("%w: operation %s rejected", ErrConflict, params.OperationId)
		}
		if result.ReasonCode == "INSUFFICIENT_FUNDS" {
			return nil, fmt.Errorf("%w: account %s, operation %s",
				ErrInsufficientFunds, params.AccountId, params.OperationId)
		}
		return nil, fmt.Errorf("%w: operation %s rejected with %s",
			ErrConflict, params.OperationId, result.ReasonCode)

	case http.StatusBadRequest:
		return nil, fmt.Errorf("%w: operation %s", ErrRemoteValidation, params.OperationId)

	default:
		return nil, fmt.Errorf("%w: unexpected status %d for operation %s",
			ErrRemoteValidation, outcome.status, params.OperationId)
	}
}
