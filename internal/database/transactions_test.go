package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"transaction-core-go/internal/models"
	"transaction-core-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func setupTestDb(t *testing.T) (*Service, func()) {
	// A single connection keeps the :memory: database alive and shared.
	service, err := NewService(context.Background(), models.DatabaseConfig{
		Driver:          models.DriverSQLite,
		Path:            ":memory:",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
		PingTimeout:     5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	cleanup := func() {
		service.Close()
	}

	return service, cleanup
}

func testTransaction(kind models.TransactionKind, status models.TransactionStatus) *models.Transaction {
	return &models.Transaction{
		Id:            uuid.New().String(),
		Kind:          kind,
		Status:        status,
		FromAccountId: "acc-0001",
		ToAccountId:   "acc-0002",
		Amount:        decimal.NewFromFloat(25.50),
		Currency:      "USD",
		Description:   "test payment",
		CreatedBy:     "user1",
		CreatedAt:     time.Now().UTC(),
	}
}

func TestInsertTransaction_Roundtrip(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	tx := testTransaction(models.KindTransfer, models.StatusProcessing)
	tx.Reference = "INV-42"
	tx.IdempotencyKey = "KEY-1"

	if err := service.InsertTransaction(ctx, tx); err != nil {
		t.Fatalf("InsertTransaction failed: %v", err)
	}

	got, err := service.FindById(ctx, tx.Id)
	if err != nil {
		t.Fatalf("FindById failed: %v", err)
	}

	if got.Kind != models.KindTransfer {
		t.Errorf("Expected kind %s, got %s", models.KindTransfer, got.Kind)
	}
	if got.Status != models.StatusProcessing {
		t.Errorf("Expected status %s, got %s", models.StatusProcessing, got.Status)
	}
	if !got.Amount.Equal(tx.Amount) {
		t.Errorf("Expected amount %s, got %s", tx.Amount.String(), got.Amount.String())
	}
	if got.IdempotencyKey != "KEY-1" {
		t.Errorf("Expected idempotency key KEY-1, got %q", got.IdempotencyKey)
	}
	if got.Reference != "INV-42" {
		t.Errorf("Expected reference INV-42, got %q", got.Reference)
	}
	if got.ProcessedAt != nil {
		t.Errorf("Expected nil processed_at on PROCESSING row, got %v", got.ProcessedAt)
	}
	if !got.CreatedAt.Equal(tx.CreatedAt) {
		t.Errorf("Expected created_at %v, got %v", tx.CreatedAt, got.CreatedAt)
	}
}

func TestInsertTransaction_DuplicateId(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	tx := testTransaction(models.KindDeposit, models.StatusProcessing)

	if err := service.InsertTransaction(ctx, tx); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := service.InsertTransaction(ctx, tx)
	if err == nil {
		t.Fatalf("Expected duplicate transaction error, got nil")
	}
	if !errors.Is(err, store.ErrDuplicateTransaction) {
		t.Errorf("Expected ErrDuplicateTransaction, got: %v", err)
	}
}

func TestInsertTransaction_IdempotencyKeyScope(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	first := testTransaction(models.KindWithdrawal, models.StatusProcessing)
	first.IdempotencyKey = "SAME-KEY"
	if err := service.InsertTransaction(ctx, first); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	// Same caller, same kind, same key collides.
	dup := testTransaction(models.KindWithdrawal, models.StatusProcessing)
	dup.IdempotencyKey = "SAME-KEY"
	err := service.InsertTransaction(ctx, dup)
	if !errors.Is(err, store.ErrDuplicateTransaction) {
		t.Errorf("Expected ErrDuplicateTransaction for same (caller, kind, key), got: %v", err)
	}

	// Different kind does not collide.
	otherKind := testTransaction(models.KindDeposit, models.StatusProcessing)
	otherKind.IdempotencyKey = "SAME-KEY"
	if err := service.InsertTransaction(ctx, otherKind); err != nil {
		t.Errorf("Expected insert with different kind to succeed, got: %v", err)
	}

	// Different caller does not collide.
	otherCaller := testTransaction(models.KindWithdrawal, models.StatusProcessing)
	otherCaller.IdempotencyKey = "SAME-KEY"
	otherCaller.CreatedBy = "user2"
	if err := service.InsertTransaction(ctx, otherCaller); err != nil {
		t.Errorf("Expected insert with different caller to succeed, got: %v", err)
	}

	// Rows without a key never collide with each other.
	for i := 0; i < 2; i++ {
		noKey := testTransaction(models.KindWithdrawal, models.StatusProcessing)
		if err := service.InsertTransaction(ctx, noKey); err != nil {
			t.Errorf("Expected keyless insert %d to succeed, got: %v", i, err)
		}
	}
}

func TestFindByIdempotencyKey(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	tx := testTransaction(models.KindTransfer, models.StatusCompleted)
	tx.IdempotencyKey = "LOOKUP-KEY"
	if err := service.InsertTransaction(ctx, tx); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := service.FindByIdempotencyKey(ctx, "user1", models.KindTransfer, "LOOKUP-KEY")
	if err != nil {
		t.Fatalf("FindByIdempotencyKey failed: %v", err)
	}
	if got.Id != tx.Id {
		t.Errorf("Expected transaction %s, got %s", tx.Id, got.Id)
	}

	_, err = service.FindByIdempotencyKey(ctx, "user1", models.KindTransfer, "NO-SUCH-KEY")
	if !errors.Is(err, store.ErrTransactionNotFound) {
		t.Errorf("Expected ErrTransactionNotFound, got: %v", err)
	}
}

func TestFindById_NotFound(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	_, err := service.FindById(context.Background(), "missing-id")
	if !errors.Is(err, store.ErrTransactionNotFound) {
		t.Errorf("Expected ErrTransactionNotFound, got: %v", err)
	}
}

func TestUpdateStatus_CompletesProcessingRow(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	tx := testTransaction(models.KindDeposit, models.StatusProcessing)
	if err := service.InsertTransaction(ctx, tx); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	processedAt := time.Now().UTC()
	err := service.UpdateStatus(ctx, store.UpdateStatusParams{
		Id:          tx.Id,
		Status:      models.StatusCompleted,
		ProcessedAt: processedAt,
	})
	if err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	got, err := service.FindById(ctx, tx.Id)
	if err != nil {
		t.Fatalf("FindById failed: %v", err)
	}
	if got.Status != models.StatusCompleted {
		t.Errorf("Expected status COMPLETED, got %s", got.Status)
	}
	if got.ProcessedAt == nil {
		t.Fatalf("Expected processed_at to be set")
	}
	if !got.ProcessedAt.Equal(processedAt) {
		t.Errorf("Expected processed_at %v, got %v", processedAt, got.ProcessedAt)
	}
}

func TestUpdateStatus_TerminalRowsAreImmutable(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	tx := testTransaction(models.KindWithdrawal, models.StatusProcessing)
	if err := service.InsertTransaction(ctx, tx); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	params := store.UpdateStatusParams{
		Id:            tx.Id,
		Status:        models.StatusFailed,
		ProcessedAt:   time.Now().UTC(),
		FailureReason: "INSUFFICIENT_FUNDS",
	}
	if err := service.UpdateStatus(ctx, params); err != nil {
		t.Fatalf("First UpdateStatus failed: %v", err)
	}

	params.Status = models.StatusCompleted
	params.FailureReason = ""
	err := service.UpdateStatus(ctx, params)
	if !errors.Is(err, store.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition on terminal row, got: %v", err)
	}

	got, err := service.FindById(ctx, tx.Id)
	if err != nil {
		t.Fatalf("FindById failed: %v", err)
	}
	if got.Status != models.StatusFailed {
		t.Errorf("Expected status to stay FAILED, got %s", got.Status)
	}
	if got.FailureReason != "INSUFFICIENT_FUNDS" {
		t.Errorf("Expected failure reason to survive, got %q", got.FailureReason)
	}
}

func TestUpdateStatus_RejectsReservedTargets(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	tx := testTransaction(models.KindTransfer, models.StatusProcessing)
	if err := service.InsertTransaction(ctx, tx); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	for _, target := range []models.TransactionStatus{models.StatusProcessing, models.StatusReversed} {
		err := service.UpdateStatus(ctx, store.UpdateStatusParams{
			Id:          tx.Id,
			Status:      target,
			ProcessedAt: time.Now().UTC(),
		})
		if !errors.Is(err, store.ErrInvalidTransition) {
			t.Errorf("Expected ErrInvalidTransition for target %s, got: %v", target, err)
		}
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	err := service.UpdateStatus(context.Background(), store.UpdateStatusParams{
		Id:          "missing-id",
		Status:      models.StatusCompleted,
		ProcessedAt: time.Now().UTC(),
	})
	if !errors.Is(err, store.ErrTransactionNotFound) {
		t.Errorf("Expected ErrTransactionNotFound, got: %v", err)
	}
}

func TestFindPendingOlderThan(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()

	stale := testTransaction(models.KindTransfer, models.StatusProcessing)
	stale.CreatedAt = now.Add(-30 * time.Minute)
	staler := testTransaction(models.KindDeposit, models.StatusProcessing)
	staler.CreatedAt = now.Add(-2 * time.Hour)
	fresh := testTransaction(models.KindWithdrawal, models.StatusProcessing)
	fresh.CreatedAt = now.Add(-1 * time.Minute)
	oldButTerminal := testTransaction(models.KindTransfer, models.StatusCompleted)
	oldButTerminal.CreatedAt = now.Add(-3 * time.Hour)

	for _, tx := range []*models.Transaction{stale, staler, fresh, oldButTerminal} {
		if err := service.InsertTransaction(ctx, tx); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	pending, err := service.FindPendingOlderThan(ctx, now.Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("FindPendingOlderThan failed: %v", err)
	}

	if len(pending) != 2 {
		t.Fatalf("Expected 2 stuck transactions, got %d", len(pending))
	}
	// Oldest first.
	if pending[0].Id != staler.Id {
		t.Errorf("Expected oldest row %s first, got %s", staler.Id, pending[0].Id)
	}
	if pending[1].Id != stale.Id {
		t.Errorf("Expected row %s second, got %s", stale.Id, pending[1].Id)
	}
}
