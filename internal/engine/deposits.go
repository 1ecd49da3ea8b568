package engine

import (
	"context"

	"transaction-core-go/internal/models"
)

// Deposit credits an account from the EXTERNAL counter-party.
func (e *Engine) Deposit(ctx context.Context, params MovementParams) (*models.Transaction, error) {
	return e.processMovement(ctx, models.KindDeposit, params)
}

// AccrueInterest credits earned interest to an account. Same pipeline as a
// deposit, recorded under its own kind so limits and statements can tell
// them apart.
func (e *Engine) AccrueInterest(ctx context.Context, params MovementParams) (*models.Transaction, error) {
	return e.processMovement(ctx, models.KindInterest, params)
}
