/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"

	"transaction-core-go/internal/common"
	"transaction-core-go/internal/config"
	"transaction-core-go/internal/engine"
	"transaction-core-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type depositRequest struct {
	params   engine.MovementParams
	interest bool
}

func parseAndValidateFlags() (*depositRequest, error) {
	accountFlag := flag.String("account", "", "Target account id (required)")
	amountFlag := flag.String("amount", "", "Amount to deposit (required)")
	currencyFlag := flag.String("currency", "", "ISO currency code (default: account currency)")
	descriptionFlag := flag.String("description", "", "Free-text description")
	referenceFlag := flag.String("reference", "", "External reference")
	callerFlag := flag.String("caller", "", "Caller identity (required)")
	keyFlag := flag.String("idempotency-key", "", "Idempotency key for safe retries")
	interestFlag := flag.Bool("interest", false, "Record an INTEREST accrual instead of a DEPOSIT")
	flag.Parse()

	if *accountFlag == "" || *amountFlag == "" || *callerFlag == "" {
		return nil, fmt.Errorf("required flags: --account, --amount, --caller")
	}

	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	return &depositRequest{
		params: engine.MovementParams{
			AccountId:      *accountFlag,
			Amount:         amount,
			Currency:       *currencyFlag,
			Description:    *descriptionFlag,
			Reference:      *referenceFlag,
			Caller:         *callerFlag,
			IdempotencyKey: *keyFlag,
		},
		interest: *interestFlag,
	}, nil
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	req, err := parseAndValidateFlags()
	if err != nil {
		zap.L().Fatal("Invalid flags", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	label := "DEPOSIT"
	var tx *models.Transaction
	if req.interest {
		label = "INTEREST ACCRUAL"
		tx, err = services.Engine.AccrueInterest(ctx, req.params)
	} else {
		tx, err = services.Engine.Deposit(ctx, req.params)
	}
	if err != nil {
		common.PrintHeader(label+" FAILED", common.DefaultWidth)
		fmt.Printf("Account:  %s\n", req.params.AccountId)
		fmt.Printf("Amount:   %s\n", req.params.Amount.String())
		fmt.Printf("Category: %s\n", engine.CategoryOf(err))
		fmt.Printf("Error:    %v\n", err)
		common.PrintSeparator("=", common.DefaultWidth)
		zap.L().Fatal("Deposit failed", zap.Error(err))
	}

	common.PrintHeader(label+" COMPLETED", common.DefaultWidth)
	fmt.Printf("Transaction ID: %s\n", tx.Id)
	fmt.Printf("Account:        %s\n", tx.ToAccountId)
	fmt.Printf("Amount:         %s %s\n", tx.Amount.String(), tx.Currency)
	fmt.Printf("Status:         %s\n", tx.Status)
	if tx.ProcessedAt != nil {
		fmt.Printf("Processed at:   %s\n", tx.ProcessedAt.Format("2006-01-02 15:04:05"))
	}
	common.PrintSeparator("=", common.DefaultWidth)
}
