package store

import (
	"context"
	"errors"
	"time"

	"transaction-core-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations. Unique-index
// violations must map to the duplicate errors below so the engine can branch
// on them without knowing the storage engine.
var (
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	ErrDuplicateReversal    = errors.New("transaction already reversed")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrNotReversible        = errors.New("transaction is not reversible")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrLimitNotFound        = errors.New("transaction limit not found")
)

// UpdateStatusParams moves a PROCESSING row to a terminal status. Anything
// else is rejected with ErrInvalidTransition; REVERSED is reserved for the
// reversal finalisation path.
type UpdateStatusParams struct {
	Id            string
	Status        models.TransactionStatus
	ProcessedAt   time.Time
	FailureReason string
}

// CreateReversalParams inserts a REVERSAL row against an original
// transaction inside one store transaction. The original row is locked for
// the duration, the eligibility gates run under that lock, and the partial
// unique index backstops concurrent attempts that raced past the gates.
type CreateReversalParams struct {
	OriginalId string
	Reversal   models.Transaction
	MaxAge     time.Duration
	Now        time.Time
}

// FinalizeReversalParams completes a reversal: the REVERSAL row moves
// PROCESSING -> COMPLETED and the original COMPLETED -> REVERSED, atomically.
type FinalizeReversalParams struct {
	ReversalId  string
	OriginalId  string
	ProcessedAt time.Time
}

// LedgerStore defines the contract that every backend (SQLite, Postgres, ...) must satisfy.
type LedgerStore interface {
	// --- Transactions ---
	InsertTransaction(ctx context.Context, tx *models.Transaction) error
	FindById(ctx context.Context, transactionId string) (*models.Transaction, error)
	FindByIdempotencyKey(ctx context.Context, createdBy string, kind models.TransactionKind, key string) (*models.Transaction, error)
	UpdateStatus(ctx context.Context, params UpdateStatusParams) error

	// --- Reversals ---
	FindReversalsOf(ctx context.Context, originalId string) ([]models.Transaction, error)
	IsReversed(ctx context.Context, originalId string) (bool, error)
	CreateReversal(ctx context.Context, params CreateReversalParams) (*models.Transaction, error)
	FinalizeReversal(ctx context.Context, params FinalizeReversalParams) error

	// --- Sweeper ---
	FindPendingOlderThan(ctx context.Context, cutoff time.Time) ([]models.Transaction, error)

	// --- Limit aggregates (COMPLETED rows only) ---
	SumCompletedAmount(ctx context.Context, accountId string, kind models.TransactionKind, since time.Time) (decimal.Decimal, error)
	CountCompleted(ctx context.Context, accountId string, kind models.TransactionKind, since time.Time) (int64, error)

	// --- Search ---
	SearchTransactions(ctx context.Context, filter models.TransactionFilter, page models.Page) (*models.TransactionPage, error)

	// --- Limits ---
	GetLimit(ctx context.Context, accountType string, kind models.TransactionKind) (*models.TransactionLimit, error)
	UpsertLimit(ctx context.Context, limit *models.TransactionLimit) error
	ListLimits(ctx context.Context) ([]models.TransactionLimit, error)

	// --- Lifecycle ---
	HealthCheck(ctx context.Context) error
	Close()
}
