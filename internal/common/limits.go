package common

import (
	"fmt"
	"os"
	"path/filepath"

	"transaction-core-go/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

type LimitEntry struct {
	AccountType      string  `yaml:"account_type"`
	Kind             string  `yaml:"kind"`
	PerOperationCap  *string `yaml:"per_operation_cap"`
	DailyAmountCap   *string `yaml:"daily_amount_cap"`
	MonthlyAmountCap *string `yaml:"monthly_amount_cap"`
	DailyCountCap    *int64  `yaml:"daily_count_cap"`
	MonthlyCountCap  *int64  `yaml:"monthly_count_cap"`
	Active           *bool   `yaml:"active"`
}

type LimitsFile struct {
	Limits []LimitEntry `yaml:"limits"`
}

// LoadLimitsFile parses the seed file of per-account-type caps. Amounts are
// YAML strings so they survive the trip into decimals unrounded. An entry
// with no active flag defaults to active.
func LoadLimitsFile(limitsFile string) ([]models.TransactionLimit, error) {
	var limitsPath string
	if filepath.IsAbs(limitsFile) {
		limitsPath = limitsFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		limitsPath = filepath.Join(wd, limitsFile)
	}

	data, err := os.ReadFile(limitsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", limitsFile, err)
	}

	var file LimitsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", limitsFile, err)
	}

	limits := make([]models.TransactionLimit, 0, len(file.Limits))
	for i, entry := range file.Limits {
		if entry.AccountType == "" {
			return nil, fmt.Errorf("limit at index %d missing account_type", i)
		}
		if entry.Kind == "" {
			return nil, fmt.Errorf("limit at index %d missing kind", i)
		}

		limit := models.TransactionLimit{
			AccountType:     entry.AccountType,
			Kind:            models.TransactionKind(entry.Kind),
			DailyCountCap:   entry.DailyCountCap,
			MonthlyCountCap: entry.MonthlyCountCap,
			Active:          true,
		}
		if entry.Active != nil {
			limit.Active = *entry.Active
		}

		if limit.PerOperationCap, err = parseCap(entry.PerOperationCap, i, "per_operation_cap"); err != nil {
			return nil, err
		}
		if limit.DailyAmountCap, err = parseCap(entry.DailyAmountCap, i, "daily_amount_cap"); err != nil {
			return nil, err
		}
		if limit.MonthlyAmountCap, err = parseCap(entry.MonthlyAmountCap, i, "monthly_amount_cap"); err != nil {
			return nil, err
		}

		limits = append(limits, limit)
	}

	return limits, nil
}

func parseCap(raw *string, index int, field string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	value, err := decimal.NewFromString(*raw)
	if err != nil {
		return nil, fmt.Errorf("limit at index %d has invalid %s %q: %w", index, field, *raw, err)
	}
	if value.IsNegative() {
		return nil, fmt.Errorf("limit at index %d has negative %s", index, field)
	}
	return &value, nil
}
