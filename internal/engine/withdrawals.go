package engine

import (
	"context"

	"transaction-core-go/internal/models"
)

// Withdraw debits an account and pays out to the EXTERNAL counter-party. The
// account's balance (available credit for CREDIT accounts) must cover the
// amount before any intent row is written.
func (e *Engine) Withdraw(ctx context.Context, params MovementParams) (*models.Transaction, error) {
	return e.processMovement(ctx, models.KindWithdrawal, params)
}

// ChargeFee debits a fee from an account. Same pipeline as a withdrawal,
// recorded under its own kind.
func (e *Engine) ChargeFee(ctx context.Context, params MovementParams) (*models.Transaction, error) {
	return e.processMovement(ctx, models.KindFee, params)
}
