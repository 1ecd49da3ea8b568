package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExternalAccountId is the reserved counter-party identifier for money that
// enters or leaves the system: deposits are funded from it, withdrawals pay
// out to it. It never resolves against the Account Service.
const ExternalAccountId = "EXTERNAL"

// TransactionKind identifies the business operation a ledger row records.
type TransactionKind string

const (
	KindDeposit    TransactionKind = "DEPOSIT"
	KindWithdrawal TransactionKind = "WITHDRAWAL"
	KindTransfer   TransactionKind = "TRANSFER"
	KindReversal   TransactionKind = "REVERSAL"
	KindFee        TransactionKind = "FEE"
	KindInterest   TransactionKind = "INTEREST"
)

// ValidKind reports whether k is one of the known transaction kinds.
func ValidKind(k TransactionKind) bool {
	switch k {
	case KindDeposit, KindWithdrawal, KindTransfer, KindReversal, KindFee, KindInterest:
		return true
	}
	return false
}

// TransactionStatus is the lifecycle state of a ledger row.
type TransactionStatus string

const (
	StatusProcessing   TransactionStatus = "PROCESSING"
	StatusCompleted    TransactionStatus = "COMPLETED"
	StatusFailed       TransactionStatus = "FAILED"
	StatusManualAction TransactionStatus = "FAILED_REQUIRES_MANUAL_ACTION"
	StatusReversed     TransactionStatus = "REVERSED"
)

// Terminal reports whether s is an absorbing state. The single sanctioned
// exception is COMPLETED -> REVERSED, which only the reversal finalisation
// path may perform.
func (s TransactionStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusManualAction, StatusReversed:
		return true
	}
	return false
}

// Transaction is the central ledger entity. Rows are inserted in PROCESSING
// and moved exactly once to a terminal status; they are never deleted.
type Transaction struct {
	Id                    string            `db:"transaction_id"`
	Kind                  TransactionKind   `db:"kind"`
	Status                TransactionStatus `db:"status"`
	FromAccountId         string            `db:"from_account_id"`
	ToAccountId           string            `db:"to_account_id"`
	Amount                decimal.Decimal   `db:"amount"`
	Currency              string            `db:"currency"`
	Description           string            `db:"description"`
	Reference             string            `db:"reference"`
	CreatedBy             string            `db:"created_by"`
	IdempotencyKey        string            `db:"idempotency_key"`         // empty means none
	OriginalTransactionId string            `db:"original_transaction_id"` // REVERSAL rows only
	FailureReason         string            `db:"failure_reason"`
	CreatedAt             time.Time         `db:"created_at"`
	ProcessedAt           *time.Time        `db:"processed_at"`
}

// TransactionLimit caps activity for one (accountType, kind) pair. Nil cap
// fields are unset and do not constrain.
type TransactionLimit struct {
	AccountType      string           `db:"account_type"`
	Kind             TransactionKind  `db:"kind"`
	PerOperationCap  *decimal.Decimal `db:"per_operation_cap"`
	DailyAmountCap   *decimal.Decimal `db:"daily_amount_cap"`
	MonthlyAmountCap *decimal.Decimal `db:"monthly_amount_cap"`
	DailyCountCap    *int64           `db:"daily_count_cap"`
	MonthlyCountCap  *int64           `db:"monthly_count_cap"`
	Active           bool             `db:"active"`
}

// TransactionFilter narrows a ledger search. Zero values (empty strings, nil
// pointers) leave the corresponding predicate out of the query.
type TransactionFilter struct {
	AccountId           string
	Kind                TransactionKind
	Status              TransactionStatus
	CreatedBy           string
	CreatedAfter        *time.Time
	CreatedBefore       *time.Time
	MinAmount           *decimal.Decimal
	MaxAmount           *decimal.Decimal
	DescriptionContains string
	Reference           string
}

// Page is a database-level paging request.
type Page struct {
	Limit  int
	Offset int
}

// TransactionPage is one page of search results plus the unpaged total.
type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	TotalCount   int64         `json:"total_count"`
	Limit        int           `json:"limit"`
	Offset       int           `json:"offset"`
}
