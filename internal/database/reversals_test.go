package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"transaction-core-go/internal/models"
	"transaction-core-go/internal/store"

	"github.com/google/uuid"
)

const testReversalWindow = 30 * 24 * time.Hour

// insertCompleted stores a COMPLETED original ready to be reversed.
func insertCompleted(t *testing.T, service *Service, kind models.TransactionKind) *models.Transaction {
	t.Helper()
	ctx := context.Background()

	tx := testTransaction(kind, models.StatusCompleted)
	processedAt := time.Now().UTC()
	tx.ProcessedAt = &processedAt
	if err := service.InsertTransaction(ctx, tx); err != nil {
		t.Fatalf("Failed to insert original: %v", err)
	}
	return tx
}

func reversalOf(original *models.Transaction) models.Transaction {
	return models.Transaction{
		Id:            uuid.New().String(),
		FromAccountId: original.ToAccountId,
		ToAccountId:   original.FromAccountId,
		Amount:        original.Amount,
		Currency:      original.Currency,
		Description:   "reversal of " + original.Id,
		CreatedBy:     "user1",
		CreatedAt:     time.Now().UTC(),
	}
}

func TestCreateReversal_HappyPath(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	original := insertCompleted(t, service, models.KindTransfer)

	created, err := service.CreateReversal(ctx, store.CreateReversalParams{
		OriginalId: original.Id,
		Reversal:   reversalOf(original),
		MaxAge:     testReversalWindow,
		Now:        time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateReversal failed: %v", err)
	}

	got, err := service.FindById(ctx, created.Id)
	if err != nil {
		t.Fatalf("FindById failed: %v", err)
	}
	if got.Kind != models.KindReversal {
		t.Errorf("Expected kind REVERSAL, got %s", got.Kind)
	}
	if got.Status != models.StatusProcessing {
		t.Errorf("Expected status PROCESSING, got %s", got.Status)
	}
	if got.OriginalTransactionId != original.Id {
		t.Errorf("Expected original_transaction_id %s, got %s", original.Id, got.OriginalTransactionId)
	}

	reversed, err := service.IsReversed(ctx, original.Id)
	if err != nil {
		t.Fatalf("IsReversed failed: %v", err)
	}
	if !reversed {
		t.Errorf("Expected original to report a live reversal")
	}
}

func TestCreateReversal_OriginalNotFound(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	_, err := service.CreateReversal(context.Background(), store.CreateReversalParams{
		OriginalId: "missing-id",
		Reversal:   models.Transaction{Id: uuid.New().String(), CreatedAt: time.Now().UTC(), CreatedBy: "user1"},
		MaxAge:     testReversalWindow,
		Now:        time.Now().UTC(),
	})
	if !errors.Is(err, store.ErrTransactionNotFound) {
		t.Errorf("Expected ErrTransactionNotFound, got: %v", err)
	}
}

func TestCreateReversal_OriginalNotCompleted(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	for _, status := range []models.TransactionStatus{
		models.StatusProcessing, models.StatusFailed,
	} {
		original := testTransaction(models.KindTransfer, status)
		if err := service.InsertTransaction(ctx, original); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}

		_, err := service.CreateReversal(ctx, store.CreateReversalParams{
			OriginalId: original.Id,
			Reversal:   reversalOf(original),
			MaxAge:     testReversalWindow,
			Now:        time.Now().UTC(),
		})
		if !errors.Is(err, store.ErrNotReversible) {
			t.Errorf("Expected ErrNotReversible for %s original, got: %v", status, err)
		}
	}

	// A REVERSED original reports the duplicate, not an invalid state.
	original := testTransaction(models.KindTransfer, models.StatusReversed)
	if err := service.InsertTransaction(ctx, original); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	_, err := service.CreateReversal(ctx, store.CreateReversalParams{
		OriginalId: original.Id,
		Reversal:   reversalOf(original),
		MaxAge:     testReversalWindow,
		Now:        time.Now().UTC(),
	})
	if !errors.Is(err, store.ErrDuplicateReversal) {
		t.Errorf("Expected ErrDuplicateReversal for REVERSED original, got: %v", err)
	}
}

func TestCreateReversal_CannotReverseReversal(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	reversal := insertCompleted(t, service, models.KindReversal)

	_, err := service.CreateReversal(ctx, store.CreateReversalParams{
		OriginalId: reversal.Id,
		Reversal:   reversalOf(reversal),
		MaxAge:     testReversalWindow,
		Now:        time.Now().UTC(),
	})
	if !errors.Is(err, store.ErrNotReversible) {
		t.Errorf("Expected ErrNotReversible for reversal-of-reversal, got: %v", err)
	}
}

func TestCreateReversal_TooOld(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	original := testTransaction(models.KindTransfer, models.StatusCompleted)
	original.CreatedAt = time.Now().UTC().Add(-31 * 24 * time.Hour)
	if err := service.InsertTransaction(ctx, original); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	_, err := service.CreateReversal(ctx, store.CreateReversalParams{
		OriginalId: original.Id,
		Reversal:   reversalOf(original),
		MaxAge:     testReversalWindow,
		Now:        time.Now().UTC(),
	})
	if !errors.Is(err, store.ErrNotReversible) {
		t.Errorf("Expected ErrNotReversible for aged-out original, got: %v", err)
	}
}

func TestCreateReversal_SecondAttemptRejected(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	original := insertCompleted(t, service, models.KindTransfer)
	params := store.CreateReversalParams{
		OriginalId: original.Id,
		Reversal:   reversalOf(original),
		MaxAge:     testReversalWindow,
		Now:        time.Now().UTC(),
	}
	if _, err := service.CreateReversal(ctx, params); err != nil {
		t.Fatalf("First CreateReversal failed: %v", err)
	}

	params.Reversal = reversalOf(original)
	_, err := service.CreateReversal(ctx, params)
	if !errors.Is(err, store.ErrDuplicateReversal) {
		t.Errorf("Expected ErrDuplicateReversal, got: %v", err)
	}
}

func TestCreateReversal_AllowedAfterFailedAttempt(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	original := insertCompleted(t, service, models.KindWithdrawal)

	first, err := service.CreateReversal(ctx, store.CreateReversalParams{
		OriginalId: original.Id,
		Reversal:   reversalOf(original),
		MaxAge:     testReversalWindow,
		Now:        time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("First CreateReversal failed: %v", err)
	}

	// A failed attempt releases the slot.
	err = service.UpdateStatus(ctx, store.UpdateStatusParams{
		Id:            first.Id,
		Status:        models.StatusFailed,
		ProcessedAt:   time.Now().UTC(),
		FailureReason: "SERVICE_UNAVAILABLE",
	})
	if err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	reversed, err := service.IsReversed(ctx, original.Id)
	if err != nil {
		t.Fatalf("IsReversed failed: %v", err)
	}
	if reversed {
		t.Errorf("Expected failed reversal to not count as live")
	}

	if _, err := service.CreateReversal(ctx, store.CreateReversalParams{
		OriginalId: original.Id,
		Reversal:   reversalOf(original),
		MaxAge:     testReversalWindow,
		Now:        time.Now().UTC(),
	}); err != nil {
		t.Errorf("Expected retry after failed attempt to succeed, got: %v", err)
	}

	attempts, err := service.FindReversalsOf(ctx, original.Id)
	if err != nil {
		t.Fatalf("FindReversalsOf failed: %v", err)
	}
	if len(attempts) != 2 {
		t.Errorf("Expected both attempts in history, got %d", len(attempts))
	}
}

func TestFinalizeReversal(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	original := insertCompleted(t, service, models.KindTransfer)
	reversal, err := service.CreateReversal(ctx, store.CreateReversalParams{
		OriginalId: original.Id,
		Reversal:   reversalOf(original),
		MaxAge:     testReversalWindow,
		Now:        time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateReversal failed: %v", err)
	}

	processedAt := time.Now().UTC()
	err = service.FinalizeReversal(ctx, store.FinalizeReversalParams{
		ReversalId:  reversal.Id,
		OriginalId:  original.Id,
		ProcessedAt: processedAt,
	})
	if err != nil {
		t.Fatalf("FinalizeReversal failed: %v", err)
	}

	gotReversal, err := service.FindById(ctx, reversal.Id)
	if err != nil {
		t.Fatalf("FindById reversal failed: %v", err)
	}
	if gotReversal.Status != models.StatusCompleted {
		t.Errorf("Expected reversal COMPLETED, got %s", gotReversal.Status)
	}
	if gotReversal.ProcessedAt == nil {
		t.Errorf("Expected reversal processed_at to be set")
	}

	gotOriginal, err := service.FindById(ctx, original.Id)
	if err != nil {
		t.Fatalf("FindById original failed: %v", err)
	}
	if gotOriginal.Status != models.StatusReversed {
		t.Errorf("Expected original REVERSED, got %s", gotOriginal.Status)
	}

	// Replays hit the transition guard.
	err = service.FinalizeReversal(ctx, store.FinalizeReversalParams{
		ReversalId:  reversal.Id,
		OriginalId:  original.Id,
		ProcessedAt: time.Now().UTC(),
	})
	if !errors.Is(err, store.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition on replay, got: %v", err)
	}
}

func TestFinalizeReversal_RollsBackWhenOriginalNotCompleted(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	original := insertCompleted(t, service, models.KindDeposit)
	reversal, err := service.CreateReversal(ctx, store.CreateReversalParams{
		OriginalId: original.Id,
		Reversal:   reversalOf(original),
		MaxAge:     testReversalWindow,
		Now:        time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateReversal failed: %v", err)
	}

	// Point at an original that is not COMPLETED; the whole finalization
	// must roll back, leaving the reversal in PROCESSING.
	bystander := testTransaction(models.KindDeposit, models.StatusFailed)
	if err := service.InsertTransaction(ctx, bystander); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	err = service.FinalizeReversal(ctx, store.FinalizeReversalParams{
		ReversalId:  reversal.Id,
		OriginalId:  bystander.Id,
		ProcessedAt: time.Now().UTC(),
	})
	if !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition, got: %v", err)
	}

	gotReversal, err := service.FindById(ctx, reversal.Id)
	if err != nil {
		t.Fatalf("FindById failed: %v", err)
	}
	if gotReversal.Status != models.StatusProcessing {
		t.Errorf("Expected reversal to stay PROCESSING after rollback, got %s", gotReversal.Status)
	}
}
