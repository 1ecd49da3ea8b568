package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"transaction-core-go/internal/models"

	"github.com/shopspring/decimal"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 1000
)

func accountArrivesOnToSide(kind models.TransactionKind) bool {
	return kind == models.KindDeposit || kind == models.KindInterest
}

func (s *Service) SumCompletedAmount(ctx context.Context, accountId string, kind models.TransactionKind, since time.Time) (decimal.Decimal, error) {
	query := querySumCompletedByFromAccount
	if accountArrivesOnToSide(kind) {
		query = querySumCompletedByToAccount
	}

	var sumStr string
	if err := s.pool.QueryRow(ctx, query, accountId, string(kind), since.UTC()).Scan(&sumStr); err != nil {
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
	if err := s.pool.QueryRow(ctx, query, accountId, string(kind), since.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s transactions for %s: %w", kind, accountId, err)
	}
	return count, nil
}

// searchbuilder accumulates WHERE predicates with positional $n placeholders.
type searchBuilder struct {
	conditions []string
	args       []any
}

func (b *searchBuilder) add(column, op string, value any) {
	b.args = append(b.args, value)
	b.conditions = append(b.conditions, fmt.Sprintf("%s %s $%d", column, op, len(b.args)))
}

func (b *searchBuilder) where() string {
	if len(b.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conditions, " AND ")
}

func buildSearchConditions(filter models.TransactionFilter) *searchBuilder {
	b := &searchBuilder{}

	if filter.AccountId != "" {
		b.args = append(b.args, filter.AccountId)
		b.conditions = append(b.conditions,
			fmt.Sprintf("(from_account_id = $%d OR to_account_id = $%d)", len(b.args), len(b.args)))
	}
	if filter.Kind != "" {
		b.add("kind", "=", string(filter.Kind))
	}
	if filter.Status != "" {
		b.add("status", "=", string(filter.Status))
	}
	if filter.CreatedBy != "" {
		b.add("created_by", "=", filter.CreatedBy)
	}
	if filter.CreatedAfter != nil {
		b.add("created_at", ">=", filter.CreatedAfter.UTC())
	}
	if filter.CreatedBefore != nil {
		b.add("created_at", "<", filter.CreatedBefore.UTC())
	}
	if filter.MinAmount != nil {
		b.add("amount", ">=", filter.MinAmount.String())
	}
	if filter.MaxAmount != nil {
		b.add("amount", "<=", filter.MaxAmount.String())
	}
	if filter.DescriptionContains != "" {
		b.args = append(b.args, filter.DescriptionContains)
		b.conditions = append(b.conditions,
			fmt.Sprintf("description LIKE '%%' || $%d || '%%'", len(b.args)))
	}
	if filter.Reference != "" {
		b.add("reference", "=", filter.Reference)
	}
	return b
}

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

	b := buildSearchConditions(filter)

	var totalCount int64
	countQuery := "SELECT COUNT(*) FROM transactions" + b.where()
	if err := s.pool.QueryRow(ctx, countQuery, b.args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to count search results: %w", err)
	}

	pageQuery := fmt.Sprintf("%s%s ORDER BY created_at DESC, transaction_id LIMIT $%d OFFSET $%d",
		querySelectTransaction, b.where(), len(b.args)+1, len(b.args)+2)
	rows, err := s.pool.Query(ctx, pageQuery, append(b.args, page.Limit, page.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to search transactions: %w", err)
	}
	defer rows.Close()

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
