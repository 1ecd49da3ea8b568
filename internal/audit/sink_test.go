package audit

import (
	"fmt"
	"testing"
	"time"

	"transaction-core-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func auditEvent(id, outcome string) models.AuditEvent {
	severity := models.AuditSeverityInfo
	if outcome == models.AuditOutcomeManualAction {
		severity = models.AuditSeverityCritical
	}
	return models.AuditEvent{
		Time:          time.Now().UTC(),
		TransactionId: id,
		Caller:        "user1",
		Kind:          models.KindTransfer,
		FromAccountId: "acc-0001",
		ToAccountId:   "acc-0002",
		Amount:        decimal.NewFromInt(100),
		Currency:      "USD",
		Outcome:       outcome,
		Severity:      severity,
	}
}

// stoppedSink builds a sink without a writer goroutine so the buffer state
// can be inspected deterministically.
func stoppedSink(capacity int) *Sink {
	return &Sink{
		capacity: capacity,
		queue:    make([]models.AuditEvent, 0, capacity),
		notify:   make(chan struct{}, 1),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

func TestRecord_OverflowDropsOldestNonTerminal(t *testing.T) {
	s := stoppedSink(3)

	s.Record(auditEvent("tx-1", models.AuditOutcomeInitiated))
	s.Record(auditEvent("tx-2", models.AuditOutcomeCompleted))
	s.Record(auditEvent("tx-3", models.AuditOutcomeInitiated))
	s.Record(auditEvent("tx-4", models.AuditOutcomeFailed))

	require.Len(t, s.queue, 3)
	assert.Equal(t, "tx-2", s.queue[0].TransactionId, "oldest non-terminal (tx-1) should have been evicted")
	assert.Equal(t, int64(1), s.Stats().Dropped)
}

func TestRecord_TerminalEventsNeverDropped(t *testing.T) {
	s := stoppedSink(2)

	s.Record(auditEvent("tx-1", models.AuditOutcomeCompleted))
	s.Record(auditEvent("tx-2", models.AuditOutcomeReversed))
	// Buffer full of terminal events: a terminal newcomer still lands.
	s.Record(auditEvent("tx-3", models.AuditOutcomeManualAction))

	require.Len(t, s.queue, 3)
	assert.Equal(t, int64(0), s.Stats().Dropped)

	// A non-terminal newcomer is the only droppable thing left.
	s.Record(auditEvent("tx-4", models.AuditOutcomeInitiated))
	require.Len(t, s.queue, 3)
	assert.Equal(t, int64(1), s.Stats().Dropped)
}

func TestRecord_PreservesOrder(t *testing.T) {
	s := stoppedSink(10)

	for i := 0; i < 5; i++ {
		s.Record(auditEvent(fmt.Sprintf("tx-%d", i), models.AuditOutcomeCompleted))
	}

	require.Len(t, s.queue, 5)
	for i := 0; i < 5; i++ {
		assert.Equal(t, fmt.Sprintf("tx-%d", i), s.queue[i].TransactionId)
	}
}

func TestClose_DrainsBuffer(t *testing.T) {
	s := NewSink(models.AuditConfig{BufferSize: 16})

	for i := 0; i < 8; i++ {
		s.Record(auditEvent(fmt.Sprintf("tx-%d", i), models.AuditOutcomeCompleted))
	}
	s.Close()

	stats := s.Stats()
	assert.Equal(t, int64(8), stats.Emitted)
	assert.Equal(t, 0, stats.Buffered)
	assert.Equal(t, int64(0), stats.Dropped)
}

func TestRecord_AfterCloseIsIgnored(t *testing.T) {
	s := NewSink(models.AuditConfig{BufferSize: 4})
	s.Close()

	s.Record(auditEvent("tx-late", models.AuditOutcomeCompleted))
	assert.Equal(t, 0, s.Stats().Buffered)
}
