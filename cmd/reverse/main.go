package main

import (
	"context"
	"flag"
	"fmt"

	"transaction-core-go/internal/common"
	"transaction-core-go/internal/config"
	"transaction-core-go/internal/engine"

	"go.uber.org/zap"
)

func parseAndValidateFlags() (*engine.ReverseParams, error) {
	transactionFlag := flag.String("transaction", "", "Id of the COMPLETED transaction to reverse (required)")
	reasonFlag := flag.String("reason", "", "Why the transaction is being reversed")
	callerFlag := flag.String("caller", "", "Caller identity (required)")
	keyFlag := flag.String("idempotency-key", "", "Idempotency key for safe retries")
	flag.Parse()

	if *transactionFlag == "" || *callerFlag == "" {
		return nil, fmt.Errorf("required flags: --transaction, --caller")
	}

	return &engine.ReverseParams{
		OriginalTransactionId: *transactionFlag,
		Reason:                *reasonFlag,
		Caller:                *callerFlag,
		IdempotencyKey:        *keyFlag,
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

	zap.L().Info("Starting reversal",
		zap.String("original_transaction_id", params.OriginalTransactionId))

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	tx, err := services.Engine.Reverse(ctx, *params)
	if err != nil {
		common.PrintHeader("REVERSAL FAILED", common.DefaultWidth)
		fmt.Printf("Original: %s\n", params.OriginalTransactionId)
		fmt.Printf("Category: %s\n", engine.CategoryOf(err))
		fmt.Printf("Error:    %v\n", err)
		common.PrintSeparator("=", common.DefaultWidth)
		zap.L().Fatal("Reversal failed", zap.Error(err))
	}

	common.PrintHeader("REVERSAL COMPLETED", common.DefaultWidth)
	fmt.Printf("Reversal ID:    %s\n", tx.Id)
	fmt.Printf("Original:       %s\n", tx.OriginalTransactionId)
	fmt.Printf("From:           %s\n", tx.FromAccountId)
	fmt.Printf("To:             %s\n", tx.ToAccountId)
	fmt.Printf("Amount:         %s %s\n", tx.Amount.String(), tx.Currency)
	fmt.Printf("Status:         %s\n", tx.Status)
	if tx.ProcessedAt != nil {
		fmt.Printf("Processed at:   %s\n", tx.ProcessedAt.Format("2006-01-02 15:04:05"))
	}
	common.PrintSeparator("=", common.DefaultWidth)
}
