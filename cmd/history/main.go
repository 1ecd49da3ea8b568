package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"transaction-core-go/internal/common"
	"transaction-core-go/internal/config"
	"transaction-core-go/internal/engine"
	"transaction-core-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type historyRequest struct {
	caller string
	role   engine.Role
	filter models.TransactionFilter
	page   models.Page
}

func parseAndValidateFlags() (*historyRequest, error) {
	callerFlag := flag.String("caller", "", "Caller identity (required)")
	operatorFlag := flag.Bool("operator", false, "Query with elevated visibility")
	accountFlag := flag.String("account", "", "Filter: account id (either side)")
	kindFlag := flag.String("kind", "", "Filter: transaction kind (DEPOSIT, WITHDRAWAL, TRANSFER, REVERSAL, FEE, INTEREST)")
	statusFlag := flag.String("status", "", "Filter: transaction status")
	createdByFlag := flag.String("created-by", "", "Filter: creator identity (operator only)")
	referenceFlag := flag.String("reference", "", "Filter: external reference")
	minAmountFlag := flag.String("min-amount", "", "Filter: minimum amount")
	maxAmountFlag := flag.String("max-amount", "", "Filter: maximum amount")
	sinceFlag := flag.String("since", "", "Filter: created on or after (RFC3339)")
	untilFlag := flag.String("until", "", "Filter: created before (RFC3339)")
	limitFlag := flag.Int("limit", 20, "Page size")
	offsetFlag := flag.Int("offset", 0, "Page offset")
	flag.Parse()

	if *callerFlag == "" {
		return nil, fmt.Errorf("required flag: --caller")
	}

	req := &historyRequest{
		caller: *callerFlag,
		role:   engine.RoleCustomer,
		filter: models.TransactionFilter{
			AccountId: *accountFlag,
			Kind:      models.TransactionKind(*kindFlag),
			Status:    models.TransactionStatus(*statusFlag),
			CreatedBy: *createdByFlag,
			Reference: *referenceFlag,
		},
		page: models.Page{Limit: *limitFlag, Offset: *offsetFlag},
	}
	if *operatorFlag {
		req.role = engine.RoleOperator
	}

	if *minAmountFlag != "" {
		amount, err := decimal.NewFromString(*minAmountFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid min-amount: %w", err)
		}
		req.filter.MinAmount = &amount
	}
	if *maxAmountFlag != "" {
		amount, err := decimal.NewFromString(*maxAmountFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid max-amount: %w", err)
		}
		req.filter.MaxAmount = &amount
	}
	if *sinceFlag != "" {
		since, err := time.Parse(time.RFC3339, *sinceFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid since timestamp: %w", err)
		}
		req.filter.CreatedAfter = &since
	}
	if *untilFlag != "" {
		until, err := time.Parse(time.RFC3339, *untilFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid until timestamp: %w", err)
		}
		req.filter.CreatedBefore = &until
	}

	return req, nil
}

func printTransactions(page *models.TransactionPage) {
	common.PrintHeader("TRANSACTION HISTORY", common.WideWidth)
	fmt.Printf("Showing %d of %d transactions (offset %d)\n",
		len(page.Transactions), page.TotalCount, page.Offset)
	common.PrintBoxSeparator(common.WideWidth)

	for i, tx := range page.Transactions {
		isLast := i == len(page.Transactions)-1
		prefix := common.BoxPrefix(isLast)
		detail := common.BoxDetailPrefix(isLast)

		fmt.Printf("%s%s  %s  %s\n", prefix, tx.CreatedAt.Format("2006-01-02 15:04:05"), tx.Kind, tx.Status)
		fmt.Printf("%s   id:     %s\n", detail, tx.Id)
		fmt.Printf("%s   route:  %s -> %s\n", detail, tx.FromAccountId, tx.ToAccountId)
		fmt.Printf("%s   amount: %s %s\n", detail, tx.Amount.String(), tx.Currency)
		if tx.Description != "" {
			fmt.Printf("%s   note:   %s\n", detail, tx.Description)
		}
		if tx.OriginalTransactionId != "" {
			fmt.Printf("%s   reverses: %s\n", detail, tx.OriginalTransactionId)
		}
		if tx.FailureReason != "" {
			fmt.Printf("%s   failure: %s\n", detail, tx.FailureReason)
		}
	}

	common.PrintFooter(fmt.Sprintf("Total: %d", page.TotalCount), common.WideWidth)
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

	page, err := services.Engine.Search(ctx, req.caller, req.role, req.filter, req.page)
	if err != nil {
		zap.L().Fatal("Search failed", zap.Error(err))
	}

	printTransactions(page)
}
