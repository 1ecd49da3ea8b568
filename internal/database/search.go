package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"transaction-core-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 1000
)

// accountArrivesOnToSide reports which ledger column an account occupies for
// a kind: money arrives on the to side for DEPOSIT and INTEREST, and leaves
// from the from side for everything else.
func accountArrivesOnToSide(kind models.TransactionKind) bool {
	return kind == models.KindDeposit || kind == models.KindInterest
}

func (s *Service) SumCompletedAmount(ctx context.Context, accountId string, kind models.TransactionKind, since time.Time) (decimal.Decimal, error) {
	query := querySumCompletedByFromAccount
	if accountArrivesOnToSide(kind) {
		query = querySumCompletedByToAccount
	}

	var sumStr string
	if err := s.db.QueryRowContext(ctx, query, accountId, string(kind), since.UTC()).Scan(&sumStr); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum %s amounts for %s: %w", kind, accountId, err)
	}
	sum, err := decimal.NewFromString(sumStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse aggregate sum '%s': %w", sumStr, err)
	}
	return sum, nil
}

func (s *Service) CountCompleted(ctx context.Context, accountId string, kind models.TransactionKind, since time.Time) (int64, error) {
	query := queryCountCompletedByFromAccount
	if accountArrivesOnToSide(kind) {
		query = queryCountCompletedByToAccount
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, query, accountId, string(kind), since.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s transactions for %s: %w", kind, accountId, err)
	}
	return count, nil
}

// buildSearchConditions turns a filter into a WHERE fragment plus bind args,
// shared by the page query and the total-count query. Zero-valued filter
// fields contribute no predicate.
func buildSearchConditions(filter models.TransactionFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.AccountId != "" {
		conditions = append(conditions, "(from_account_id = ? OR to_account_id = ?)")
		args = append(args, filter.AccountId, filter.AccountId)
	}
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.CreatedBy != "" {
		conditions = append(conditions, "created_by = ?")
		args = append(args, filter.CreatedBy)
	}
	if filter.CreatedAfter != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.CreatedAfter.UTC())
	}
	if filter.CreatedBefore != nil {
		conditions = append(conditions, "created_at < ?")
		args = append(args, filter.CreatedBefore.UTC())
	}
	if filter.MinAmount != nil {
		conditions = append(conditions, "amount >= ?")
		args = append(args, filter.MinAmount.String())
	}
	if filter.MaxAmount != nil {
		conditions = append(conditions, "amount <= ?")
		args = append(args, filter.MaxAmount.String())
	}
	if filter.DescriptionContains != "" {
		conditions = append(conditions, "description LIKE '%' || ? || '%'")
		args = append(args, filter.DescriptionContains)
	}
	if filter.Reference != "" {
		conditions = append(conditions, "reference = ?")
		args = append(args, filter.Reference)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// SearchTransactions runs the filter as a single parametric query with
// database-side paging, never loading unbounded result sets.
func (s *Service) SearchTransactions(ctx context.Context, filter models.TransactionFilter, page models.Page) (*models.TransactionPage, error) {
	if page.Limit <= 0 {
		page.Limit = defaultPageLimit
	}
	if page.Limit > maxPageLimit {
		page.Limit = maxPageLimit
	}
	if page.Offset < 0 {
		page.Offset = 0
	}

	where, args := buildSearchConditions(filter)

	var totalCount int64
	countQuery := "SELECT COUNT(*) FROM transactions" + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to count search results: %w", err)
	}

	pageQuery := querySelectTransaction + where + " ORDER BY created_at DESC, transaction_id LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, pageQuery, append(args, page.Limit, page.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to search transactions: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	transactions, err := collectTransactions(rows)
	if err != nil {
		return nil, err
	}

	return &models.TransactionPage{
		Transactions: transactions,
		TotalCount:   totalCount,
		Limit:        page.Limit,
		Offset:       page.Offset,
	}, nil
}
