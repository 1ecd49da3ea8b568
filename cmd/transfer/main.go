package main

import (
	"context"
	"flag"
	"fmt"

	"transaction-core-go/internal/common"
	"transaction-core-go/internal/config"
	"transaction-core-go/internal/engine"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func parseAndValidateFlags() (*engine.TransferParams, error) {
	fromFlag := flag.String("from", "", "Source account id (required)")
	toFlag := flag.String("to", "", "Destination account id (required)")
	amountFlag := flag.String("amount", "", "Amount to transfer (required)")
	descriptionFlag := flag.String("description", "", "Free-text description")
	referenceFlag := flag.String("reference", "", "External reference")
	callerFlag := flag.String("caller", "", "Caller identity (required)")
	keyFlag := flag.String("idempotency-key", "", "Idempotency key for safe retries")
	flag.Parse()

	if *fromFlag == "" || *toFlag == "" || *amountFlag == "" || *callerFlag == "" {
		return nil, fmt.Errorf("required flags: --from, --to, --amount, --caller")
	}

	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	return &engine.TransferParams{
		FromAccountId:  *fromFlag,
		ToAccountId:    *toFlag,
		Amount:         amount,
		Description:    *descriptionFlag,
		Reference:      *referenceFlag,
		Caller:         *callerFlag,
		IdempotencyKey: *keyFlag,
	}, nil
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	params, err := parseAndValidateFlags()
	if err != nil {
		zap.L().Fatal("Invalid flags", zap.Error(err))
	}

	zap.L().Info("Starting transfer",
		zap.String("from_account_id", params.FromAccountId),
		zap.String("to_account_id", params.ToAccountId),
		zap.String("amount", params.Amount.String()))

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	tx, err := services.Engine.Transfer(ctx, *params)
	if err != nil {
		common.PrintHeader("TRANSFER FAILED", common.DefaultWidth)
		fmt.Printf("From:     %s\n", params.FromAccountId)
		fmt.Printf("To:       %s\n", params.ToAccountId)
		fmt.Printf("Amount:   %s\n", params.Amount.String())
		fmt.Printf("Category: %s\n", engine.CategoryOf(err))
		fmt.Printf("Error:    %v\n", err)
		common.PrintSeparator("=", common.DefaultWidth)
		zap.L().Fatal("Transfer failed", zap.Error(err))
	}

	common.PrintHeader("TRANSFER COMPLETED", common.DefaultWidth)
	fmt.Printf("Transaction ID: %s\n", tx.Id)
	fmt.Printf("From:           %s\n", tx.FromAccountId)
	fmt.Printf("To:             %s\n", tx.ToAccountId)
	fmt.Printf("Amount:         %s %s\n", tx.Amount.String(), tx.Currency)
	fmt.Printf("Status:         %s\n", tx.Status)
	if tx.ProcessedAt != nil {
		fmt.Printf("Processed at:   %s\n", tx.ProcessedAt.Format("2006-01-02 15:04:05"))
	}
	common.PrintSeparator("=", common.DefaultWidth)
}
