package database

import (
	"context"
	"testing"
	"time"

	"transaction-core-go/internal/models"

	"github.com/shopspring/decimal"
)

func insertWithAmount(t *testing.T, service *Service, tx *models.Transaction, amount string) *models.Transaction {
	t.Helper()
	var err error
	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		t.Fatalf("Bad amount %q: %v", amount, err)
	}
	if err := service.InsertTransaction(context.Background(), tx); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	return tx
}

func TestSumCompletedAmount_SideMapping(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	since := time.Now().UTC().Add(-time.Hour)

	// Deposits credit acc-0002; withdrawals debit acc-0001.
	deposit := testTransaction(models.KindDeposit, models.StatusCompleted)
	deposit.FromAccountId = models.ExternalAccountId
	deposit.ToAccountId = "acc-0002"
	insertWithAmount(t, service, deposit, "100.25")

	withdrawal := testTransaction(models.KindWithdrawal, models.StatusCompleted)
	withdrawal.FromAccountId = "acc-0001"
	withdrawal.ToAccountId = models.ExternalAccountId
	insertWithAmount(t, service, withdrawal, "40.75")

	depositSum, err := service.SumCompletedAmount(ctx, "acc-0002", models.KindDeposit, since)
	if err != nil {
		t.Fatalf("SumCompletedAmount failed: %v", err)
	}
	if !depositSum.Equal(decimal.RequireFromString("100.25")) {
		t.Errorf("Expected deposit sum 100.25 on receiving account, got %s", depositSum.String())
	}

	withdrawalSum, err := service.SumCompletedAmount(ctx, "acc-0001", models.KindWithdrawal, since)
	if err != nil {
		t.Fatalf("SumCompletedAmount failed: %v", err)
	}
	if !withdrawalSum.Equal(decimal.RequireFromString("40.75")) {
		t.Errorf("Expected withdrawal sum 40.75 on source account, got %s", withdrawalSum.String())
	}

	// The opposite sides see nothing.
	other, err := service.SumCompletedAmount(ctx, "acc-0001", models.KindDeposit, since)
	if err != nil {
		t.Fatalf("SumCompletedAmount failed: %v", err)
	}
	if !other.IsZero() {
		t.Errorf("Expected zero deposit sum on source account, got %s", other.String())
	}
}

func TestAggregates_StatusScope(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	since := time.Now().UTC().Add(-time.Hour)

	completed := testTransaction(models.KindTransfer, models.StatusCompleted)
	insertWithAmount(t, service, completed, "10")

	// Reversed rows were completed once; they still consume the window.
	reversed := testTransaction(models.KindTransfer, models.StatusReversed)
	insertWithAmount(t, service, reversed, "7")

	failed := testTransaction(models.KindTransfer, models.StatusFailed)
	insertWithAmount(t, service, failed, "100")

	pending := testTransaction(models.KindTransfer, models.StatusProcessing)
	insertWithAmount(t, service, pending, "1000")

	sum, err := service.SumCompletedAmount(ctx, "acc-0001", models.KindTransfer, since)
	if err != nil {
		t.Fatalf("SumCompletedAmount failed: %v", err)
	}
	if !sum.Equal(decimal.RequireFromString("17")) {
		t.Errorf("Expected sum 17 (completed + reversed), got %s", sum.String())
	}

	count, err := service.CountCompleted(ctx, "acc-0001", models.KindTransfer, since)
	if err != nil {
		t.Fatalf("CountCompleted failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected count 2, got %d", count)
	}
}

func TestAggregates_WindowStart(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()

	inWindow := testTransaction(models.KindTransfer, models.StatusCompleted)
	inWindow.CreatedAt = now.Add(-10 * time.Minute)
	insertWithAmount(t, service, inWindow, "5")

	beforeWindow := testTransaction(models.KindTransfer, models.StatusCompleted)
	beforeWindow.CreatedAt = now.Add(-26 * time.Hour)
	insertWithAmount(t, service, beforeWindow, "50")

	sum, err := service.SumCompletedAmount(ctx, "acc-0001", models.KindTransfer, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("SumCompletedAmount failed: %v", err)
	}
	if !sum.Equal(decimal.RequireFromString("5")) {
		t.Errorf("Expected only in-window amount 5, got %s", sum.String())
	}

	count, err := service.CountCompleted(ctx, "acc-0001", models.KindTransfer, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("CountCompleted failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected count 1, got %d", count)
	}
}

func TestSearchTransactions_Filters(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	transfer := testTransaction(models.KindTransfer, models.StatusCompleted)
	transfer.Description = "rent payment march"
	transfer.Reference = "REF-1"
	insertWithAmount(t, service, transfer, "1200")

	deposit := testTransaction(models.KindDeposit, models.StatusCompleted)
	deposit.ToAccountId = "acc-0001"
	deposit.FromAccountId = models.ExternalAccountId
	deposit.CreatedBy = "user2"
	insertWithAmount(t, service, deposit, "300")

	failed := testTransaction(models.KindTransfer, models.StatusFailed)
	insertWithAmount(t, service, failed, "50")

	// By kind.
	page, err := service.SearchTransactions(ctx, models.TransactionFilter{Kind: models.KindTransfer}, models.Page{})
	if err != nil {
		t.Fatalf("SearchTransactions failed: %v", err)
	}
	if page.TotalCount != 2 {
		t.Errorf("Expected 2 transfers, got %d", page.TotalCount)
	}

	// By status.
	page, err = service.SearchTransactions(ctx, models.TransactionFilter{Status: models.StatusFailed}, models.Page{})
	if err != nil {
		t.Fatalf("SearchTransactions failed: %v", err)
	}
	if page.TotalCount != 1 || page.Transactions[0].Id != failed.Id {
		t.Errorf("Expected only the failed row, got %d rows", page.TotalCount)
	}

	// By account, matching either side.
	page, err = service.SearchTransactions(ctx, models.TransactionFilter{AccountId: "acc-0001"}, models.Page{})
	if err != nil {
		t.Fatalf("SearchTransactions failed: %v", err)
	}
	if page.TotalCount != 3 {
		t.Errorf("Expected 3 rows touching acc-0001, got %d", page.TotalCount)
	}

	// By caller.
	page, err = service.SearchTransactions(ctx, models.TransactionFilter{CreatedBy: "user2"}, models.Page{})
	if err != nil {
		t.Fatalf("SearchTransactions failed: %v", err)
	}
	if page.TotalCount != 1 || page.Transactions[0].Id != deposit.Id {
		t.Errorf("Expected only user2's deposit, got %d rows", page.TotalCount)
	}

	// By description substring.
	page, err = service.SearchTransactions(ctx, models.TransactionFilter{DescriptionContains: "rent"}, models.Page{})
	if err != nil {
		t.Fatalf("SearchTransactions failed: %v", err)
	}
	if page.TotalCount != 1 || page.Transactions[0].Id != transfer.Id {
		t.Errorf("Expected description match on the transfer, got %d rows", page.TotalCount)
	}

	// By reference.
	page, err = service.SearchTransactions(ctx, models.TransactionFilter{Reference: "REF-1"}, models.Page{})
	if err != nil {
		t.Fatalf("SearchTransactions failed: %v", err)
	}
	if page.TotalCount != 1 || page.Transactions[0].Id != transfer.Id {
		t.Errorf("Expected reference match on the transfer, got %d rows", page.TotalCount)
	}

	// By amount range.
	minAmount := decimal.RequireFromString("100")
	maxAmount := decimal.RequireFromString("500")
	page, err = service.SearchTransactions(ctx, models.TransactionFilter{MinAmount: &minAmount, MaxAmount: &maxAmount}, models.Page{})
	if err != nil {
		t.Fatalf("SearchTransactions failed: %v", err)
	}
	if page.TotalCount != 1 || page.Transactions[0].Id != deposit.Id {
		t.Errorf("Expected amount range to match the deposit, got %d rows", page.TotalCount)
	}
}

func TestSearchTransactions_DateRange(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()

	older := testTransaction(models.KindTransfer, models.StatusCompleted)
	older.CreatedAt = now.Add(-48 * time.Hour)
	insertWithAmount(t, service, older, "1")

	recent := testTransaction(models.KindTransfer, models.StatusCompleted)
	recent.CreatedAt = now.Add(-1 * time.Hour)
	insertWithAmount(t, service, recent, "2")

	after := now.Add(-24 * time.Hour)
	before := now
	page, err := service.SearchTransactions(ctx, models.TransactionFilter{
		CreatedAfter:  &after,
		CreatedBefore: &before,
	}, models.Page{})
	if err != nil {
		t.Fatalf("SearchTransactions failed: %v", err)
	}
	if page.TotalCount != 1 || page.Transactions[0].Id != recent.Id {
		t.Errorf("Expected only the recent row in range, got %d rows", page.TotalCount)
	}
}

func TestSearchTransactions_Paging(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()

	var ids []string
	for i := 0; i < 5; i++ {
		tx := testTransaction(models.KindDeposit, models.StatusCompleted)
		tx.CreatedAt = now.Add(time.Duration(i) * time.Second)
		insertWithAmount(t, service, tx, "10")
		ids = append(ids, tx.Id)
	}

	page, err := service.SearchTransactions(ctx, models.TransactionFilter{}, models.Page{Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("SearchTransactions failed: %v", err)
	}
	if page.TotalCount != 5 {
		t.Errorf("Expected total count 5, got %d", page.TotalCount)
	}
	if len(page.Transactions) != 2 {
		t.Fatalf("Expected 2 rows per page, got %d", len(page.Transactions))
	}
	// Newest first.
	if page.Transactions[0].Id != ids[4] {
		t.Errorf("Expected newest row first, got %s", page.Transactions[0].Id)
	}

	last, err := service.SearchTransactions(ctx, models.TransactionFilter{}, models.Page{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("SearchTransactions failed: %v", err)
	}
	if len(last.Transactions) != 1 {
		t.Errorf("Expected 1 row on the last page, got %d", len(last.Transactions))
	}
	if last.Transactions[0].Id != ids[0] {
		t.Errorf("Expected oldest row last, got %s", last.Transactions[0].Id)
	}
}
