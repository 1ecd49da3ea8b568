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

package models

import (
	"github.com/shopspring/decimal"
)

// Account types the Account Service reports. CREDIT accounts are funded by
// available credit rather than balance.
const (
	AccountTypeChecking = "CHECKING"
	AccountTypeSavings  = "SAVINGS"
	AccountTypeCredit   = "CREDIT"
)

// AccountSnapshot is the Account Service's view of one account at read time.
type AccountSnapshot struct {
	Id              string          `json:"id"`
	Balance         decimal.Decimal `json:"balance"`
	Currency        string          `json:"currency"`
	AccountType     string          `json:"accountType"`
	AvailableCredit decimal.Decimal `json:"availableCredit"`
	Active          bool            `json:"active"`
}

// BalanceOperation is the request body for POST /accounts/{id}/balance-operations.
// Delta is signed: negative debits, positive credits. Replays with the same
// OperationId are collapsed remotely.
type BalanceOperation struct {
	OperationId     string          `json:"operationId"`
	Delta           decimal.Decimal `json:"delta"`
	Reason          string          `json:"reason"`
	Label           string          `json:"label"`
	CreditBalancing bool            `json:"creditBalancing"`
}

// Balance operation result statuses reported by the Account Service.
const (
	BalanceOpApplied          = "APPLIED"
	BalanceOpIdempotentReplay = "IDEMPOTENT_REPLAY"
	BalanceOpRejected         = "REJECTED"
)

// BalanceOperationResult is the Account Service's response to a balance
// operation. On IDEMPOTENT_REPLAY the result mirrors the original apply.
type BalanceOperationResult struct {
	AccountId   string          `json:"accountId"`
	OperationId string          `json:"operationId"`
	Applied     bool            `json:"applied"`
	NewBalance  decimal.Decimal `json:"newBalance"`
	Version     int64           `json:"version"`
	Status      string          `json:"status"`
	ReasonCode  string          `json:"reasonCode,omitempty"`
}
