package sweeper

import (
	"context"
	"testing"
	"time"

	"transaction-core-go/internal/audit"
	"transaction-core-go/internal/database"
	"transaction-core-go/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSweeper(t *testing.T) (*Sweeper, *database.Service, *audit.Sink) {
	ledger, err := database.NewService(context.Background(), models.DatabaseConfig{
		Driver:          models.DriverSQLite,
		Path:            ":memory:",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
		PingTimeout:     5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(ledger.Close)

	sink := audit.NewSink(models.AuditConfig{BufferSize: 64})
	t.Cleanup(sink.Close)

	s := New(ledger, sink, models.SweeperConfig{
		Interval:      time.Minute,
		PendingCutoff: 10 * time.Minute,
	})
	return s, ledger, sink
}

func insertRow(t *testing.T, ledger *database.Service, status models.TransactionStatus, age time.Duration) string {
	tx := &models.Transaction{
		Id:            uuid.New().String(),
		Kind:          models.KindTransfer,
		Status:        status,
		FromAccountId: "acc-0001",
		ToAccountId:   "acc-0002",
		Amount:        decimal.NewFromInt(100),
		Currency:      "USD",
		CreatedBy:     "user1",
		CreatedAt:     time.Now().UTC().Add(-age),
	}
	require.NoError(t, ledger.InsertTransaction(context.Background(), tx))
	return tx.Id
}

func TestSweepOnce_FailsStuckRows(t *testing.T) {
	s, ledger, _ := setupSweeper(t)
	ctx := context.Background()

	stuckId := insertRow(t, ledger, models.StatusProcessing, 30*time.Minute)
	freshId := insertRow(t, ledger, models.StatusProcessing, time.Minute)
	completedId := insertRow(t, ledger, models.StatusCompleted, time.Hour)

	swept := s.sweepOnce(ctx)
	assert.Equal(t, 1, swept)

	stuck, err := ledger.FindById(ctx, stuckId)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stuck.Status)
	assert.Equal(t, models.ReasonStuckTimeout, stuck.FailureReason)
	require.NotNil(t, stuck.ProcessedAt)

	fresh, err := ledger.FindById(ctx, freshId)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, fresh.Status)

	completed, err := ledger.FindById(ctx, completedId)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)
}

func TestSweepOnce_EmptyLedger(t *testing.T) {
	s, _, _ := setupSweeper(t)
	assert.Equal(t, 0, s.sweepOnce(context.Background()))
}

func TestSweepOnce_EmitsAuditEvent(t *testing.T) {
	s, ledger, sink := setupSweeper(t)
	insertRow(t, ledger, models.StatusProcessing, time.Hour)

	require.Equal(t, 1, s.sweepOnce(context.Background()))

	// The writer drains asynchronously; wait for the event to land.
	deadline := time.Now().Add(2 * time.Second)
	for {
		stats := sink.Stats()
		if stats.Emitted+int64(stats.Buffered) >= 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expected an audit event for the swept transaction")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStartStop(t *testing.T) {
	s, ledger, _ := setupSweeper(t)
	insertRow(t, ledger, models.StatusProcessing, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx)
	s.Stop()

	// Stop is safe to call twice.
	s.Stop()
}
