package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"transaction-core-go/internal/models"
	"transaction-core-go/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func scanLimit(row scannable) (*models.TransactionLimit, error) {
	var limit models.TransactionLimit
	var perOp, dailyAmount, monthlyAmount sql.NullString
	var dailyCount, monthlyCount sql.NullInt64

	err := row.Scan(&limit.AccountType, &limit.Kind,
		&perOp, &dailyAmount, &monthlyAmount,
		&dailyCount, &monthlyCount, &limit.Active)
	if err != nil {
		return nil, err
	}

	if limit.PerOperationCap, err = parseNullDecimal(perOp); err != nil {
		return nil, err
	}
	if limit.DailyAmountCap, err = parseNullDecimal(dailyAmount); err != nil {
		return nil, err
	}
	if limit.MonthlyAmountCap, err = parseNullDecimal(monthlyAmount); err != nil {
		return nil, err
	}
	if dailyCount.Valid {
		v := dailyCount.Int64
		limit.DailyCountCap = &v
	}
	if monthlyCount.Valid {
		v := monthlyCount.Int64
		limit.MonthlyCountCap = &v
	}
	return &limit, nil
}

func parseNullDecimal(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cap '%s': %w", ns.String, err)
	}
	return &d, nil
}

func bindDecimalPtr(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func bindInt64Ptr(i *int64) any {
	if i == nil {
		return nil
	}
	return *i
}

func (s *Service) GetLimit(ctx context.Context, accountType string, kind models.TransactionKind) (*models.TransactionLimit, error) {
	limit, err := scanLimit(s.pool.QueryRow(ctx, queryGetLimit, accountType, string(kind)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: no limit for (%s, %s)", store.ErrLimitNotFound, accountType, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get limit for (%s, %s): %w", accountType, kind, err)
	}
	return limit, nil
}

func (s *Service) UpsertLimit(ctx context.Context, limit *models.TransactionLimit) error {
	_, err := s.pool.Exec(ctx, queryUpsertLimit,
		limit.AccountType, string(limit.Kind),
		bindDecimalPtr(limit.PerOperationCap),
		bindDecimalPtr(limit.DailyAmountCap),
		bindDecimalPtr(limit.MonthlyAmountCap),
		bindInt64Ptr(limit.DailyCountCap),
		bindInt64Ptr(limit.MonthlyCountCap),
		limit.Active)
	if err != nil {
		return fmt.Errorf("failed to upsert limit for (%s, %s): %w", limit.AccountType, limit.Kind, err)
	}

	zap.L().Info("Transaction limit upserted",
		zap.String("account_type", limit.AccountType),
		zap.String("kind", string(limit.Kind)),
		zap.Bool("active", limit.Active))
	return nil
}

func (s *Service) ListLimits(ctx context.Context) ([]models.TransactionLimit, error) {
	rows, err := s.pool.Query(ctx, queryListLimits)
	if err != nil {
		return nil, fmt.Errorf("failed to list limits: %w", err)
	}
	defer rows.Close()

	var limits []models.TransactionLimit
	for rows.Next() {
		limit, err := scanLimit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan limit: %w", err)
		}
		limits = append(limits, *limit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating limit rows: %w", err)
	}
	return limits, nil
}
