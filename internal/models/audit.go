package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Audit outcomes. INITIATED is the only non-terminal outcome; the sink's
// overflow policy may drop it but never a terminal one.
const (
	AuditOutcomeInitiated    = "INITIATED"
	AuditOutcomeCompleted    = "COMPLETED"
	AuditOutcomeFailed       = "FAILED"
	AuditOutcomeManualAction = "FAILED_REQUIRES_MANUAL_ACTION"
	AuditOutcomeReversed     = "REVERSED"
)

// Audit severities.
const (
	AuditSeverityInfo     = "INFO"
	AuditSeverityWarn     = "WARN"
	AuditSeverityCritical = "CRITICAL"
)

// Stable failure reason codes carried on terminal audit events and ledger rows.
const (
	ReasonLimitExceeded      = "LIMIT_EXCEEDED"
	ReasonInsufficientFunds  = "INSUFFICIENT_FUNDS"
	ReasonAccountNotFound    = "ACCOUNT_NOT_FOUND"
	ReasonRemoteRejected     = "REMOTE_REJECTED"
	ReasonServiceUnavailable = "SERVICE_UNAVAILABLE"
	ReasonCompensationFailed = "COMPENSATION_FAILED"
	ReasonStuckTimeout       = "STUCK_TIMEOUT"
)

// AuditEvent is one append-only entry in the transaction audit stream.
type AuditEvent struct {
	Time          time.Time       `json:"time"`
	CorrelationId string          `json:"correlation_id"`
	TransactionId string          `json:"transaction_id"`
	Caller        string          `json:"caller"`
	Kind          TransactionKind `json:"kind"`
	FromAccountId string          `json:"from_account_id"`
	ToAccountId   string          `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	Outcome       string          `json:"outcome"`
	ReasonCode    string          `json:"reason_code,omitempty"`
	Severity      string          `json:"severity"`
}

// Terminal reports whether the event records a terminal lifecycle outcome.
func (e AuditEvent) Terminal() bool {
	return e.Outcome != AuditOutcomeInitiated
}
