package main

import (
	"context"
	"flag"
	"fmt"

	"transaction-core-go/internal/common"
	"transaction-core-go/internal/config"
	"transaction-core-go/internal/models"
	"transaction-core-go/internal/store"

	"go.uber.org/zap"
)

func seedLimits(ctx context.Context, ledger store.LedgerStore, limitsFile string) {
	zap.L().Info("Loading limit configuration", zap.String("file", limitsFile))
	limits, err := common.LoadLimitsFile(limitsFile)
	if err != nil {
		zap.L().Fatal("Failed to load limits file", zap.Error(err))
	}
	zap.L().Info("Limit configuration loaded", zap.Int("count", len(limits)))

	var seeded, failed int
	for i := range limits {
		limit := limits[i]
		if err := ledger.UpsertLimit(ctx, &limit); err != nil {
			failed++
			zap.L().Error("Failed to store limit",
				zap.String("account_type", limit.AccountType),
				zap.String("kind", string(limit.Kind)),
				zap.Error(err))
			continue
		}
		seeded++
		zap.L().Info("Stored limit",
			zap.String("account_type", limit.AccountType),
			zap.String("kind", string(limit.Kind)),
			zap.Bool("active", limit.Active))
	}

	if failed > 0 {
		zap.L().Warn("Limit seeding completed with some failures",
			zap.Int("seeded", seeded),
			zap.Int("failed", failed))
	} else {
		zap.L().Info("Limit seeding completed successfully", zap.Int("seeded", seeded))
	}
}

func printLimits(ctx context.Context, ledger store.LedgerStore) {
	limits, err := ledger.ListLimits(ctx)
	if err != nil {
		zap.L().Fatal("Failed to list limits", zap.Error(err))
	}

	common.PrintHeader("CONFIGURED TRANSACTION LIMITS", common.DefaultWidth)
	if len(limits) == 0 {
		fmt.Println("No limits configured")
	}
	for i, limit := range limits {
		prefix := common.BoxPrefix(i == len(limits)-1)
		state := "active"
		if !limit.Active {
			state = "inactive"
		}
		fmt.Printf("%s%s / %s (%s)\n", prefix, limit.AccountType, limit.Kind, state)

		detail := common.BoxDetailPrefix(i == len(limits)-1)
		if limit.PerOperationCap != nil {
			fmt.Printf("%s   per-operation cap: %s\n", detail, limit.PerOperationCap.String())
		}
		if limit.DailyAmountCap != nil {
			fmt.Printf("%s   daily amount cap:  %s\n", detail, limit.DailyAmountCap.String())
		}
		if limit.MonthlyAmountCap != nil {
			fmt.Printf("%s   monthly amount cap: %s\n", detail, limit.MonthlyAmountCap.String())
		}
		if limit.DailyCountCap != nil {
			fmt.Printf("%s   daily count cap:   %d\n", detail, *limit.DailyCountCap)
		}
		if limit.MonthlyCountCap != nil {
			fmt.Printf("%s   monthly count cap: %d\n", detail, *limit.MonthlyCountCap)
		}
	}
	common.PrintFooter("Setup complete", common.DefaultWidth)
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	limitsFlag := flag.String("limits", "", "Path to limits.yaml (default: LIMITS_FILE from config)")
	skipSeed := flag.Bool("skip-seed", false, "Initialize the schema without seeding limits")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	// Opening the store creates the schema.
	zap.L().Info("Initializing ledger store", zap.String("driver", firstNonEmpty(cfg.Database.Driver, models.DriverSQLite)))
	ledger, err := common.InitializeStoreOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize ledger store", zap.Error(err))
	}
	defer ledger.Close()

	if !*skipSeed {
		limitsFile := cfg.Limits.LimitsFile
		if *limitsFlag != "" {
			limitsFile = *limitsFlag
		}
		seedLimits(ctx, ledger, limitsFile)
	}

	printLimits(ctx, ledger)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
