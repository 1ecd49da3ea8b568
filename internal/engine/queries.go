package engine

import (
	"context"
	"errors"

	"transaction-core-go/internal/models"
	"transaction-core-go/internal/store"
)

// Role gates row visibility on query operations. Non-elevated callers only
// see transactions they created.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleOperator Role = "OPERATOR"
)

func (r Role) Elevated() bool {
	return r == RoleOperator
}

// GetById returns one transaction. Rows created by someone else are reported
// as not found to non-elevated callers rather than as forbidden, so the query
// does not leak their existence.
func (e *Engine) GetById(ctx context.Context, caller string, role Role, transactionId string) (*models.Transaction, error) {
	tx, err := e.ledger.FindById(ctx, transactionId)
	if errors.Is(err, store.ErrTransactionNotFound) {
		return nil, wrapError(CategoryNotFound, "TRANSACTION_NOT_FOUND", err, "transaction %s not found", transactionId)
	}
	if err != nil {
		return nil, wrapError(CategoryInternal, "LEDGER_ERROR", err, "failed to load transaction")
	}
	if !role.Elevated() && tx.CreatedBy != caller {
		return nil, newError(CategoryNotFound, "TRANSACTION_NOT_FOUND", "transaction %s not found", transactionId)
	}
	return tx, nil
}

// GetByAccount pages through an account's ledger history.
func (e *Engine) GetByAccount(ctx context.Context, caller string, role Role, accountId string, page models.Page) (*models.TransactionPage, error) {
	if accountId == "" {
		return nil, newError(CategoryValidation, "INVALID_ACCOUNT", "account id is required")
	}
	return e.Search(ctx, caller, role, models.TransactionFilter{AccountId: accountId}, page)
}

// GetByCaller pages through transactions created by one caller identity.
// Non-elevated callers may only ask about themselves.
func (e *Engine) GetByCaller(ctx context.Context, caller string, role Role, createdBy string, page models.Page) (*models.TransactionPage, error) {
	if createdBy == "" {
		createdBy = caller
	}
	if !role.Elevated() && createdBy != caller {
		return nil, newError(CategoryValidation, "FORBIDDEN", "cannot query transactions created by another caller")
	}
	return e.Search(ctx, caller, role, models.TransactionFilter{CreatedBy: createdBy}, page)
}

// Search runs the parametric ledger filter with database-level paging. For
// non-elevated callers the created-by predicate is forced to the caller
// identity regardless of what the filter asked for.
func (e *Engine) Search(ctx context.Context, caller string, role Role, filter models.TransactionFilter, page models.Page) (*models.TransactionPage, error) {
	if !role.Elevated() {
		filter.CreatedBy = caller
	}

	result, err := e.ledger.SearchTransactions(ctx, filter, page)
	if err != nil {
		return nil, wrapError(CategoryInternal, "LEDGER_ERROR", err, "transaction search failed")
	}
	return result, nil
}
