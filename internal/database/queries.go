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

package database

// SQL query constants. Empty strings bind as NULL for the nullable columns so
// the partial unique indexes only see real values.
const (
	queryHealthCheck = `SELECT 1`

	queryInsertTransaction = `
		INSERT INTO transactions (
			transaction_id, kind, status, from_account_id, to_account_id,
			amount, currency, description, reference, created_by,
			idempotency_key, original_transaction_id, failure_reason,
			created_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?)`

	querySelectTransaction = `
		SELECT transaction_id, kind, status, from_account_id, to_account_id,
			CAST(amount AS TEXT), currency, description, reference, created_by,
			COALESCE(idempotency_key, ''), COALESCE(original_transaction_id, ''),
			failure_reason, created_at, processed_at
		FROM transactions`

	queryGetTransactionById = querySelectTransaction + `
		WHERE transaction_id = ?`

	queryGetTransactionByIdempotencyKey = querySelectTransaction + `
		WHERE created_by = ? AND kind = ? AND idempotency_key = ?`

	// Only PROCESSING rows may move; terminal rows are immutable here. The
	// REVERSED status is reserved for the reversal finalization path below.
	queryUpdateTransactionStatus = `
		UPDATE transactions
		SET status = ?, processed_at = ?, failure_reason = ?
		WHERE transaction_id = ? AND status = 'PROCESSING'`

	queryGetReversalsOf = querySelectTransaction + `
		WHERE kind = 'REVERSAL' AND original_transaction_id = ?
		ORDER BY created_at ASC`

	queryCountActiveReversals = `
		SELECT COUNT(*) FROM transactions
		WHERE kind = 'REVERSAL' AND original_transaction_id = ?
			AND status IN ('PROCESSING', 'COMPLETED')`

	queryFindPendingOlderThan = querySelectTransaction + `
		WHERE status = 'PROCESSING' AND created_at < ?
		ORDER BY created_at ASC`

	queryFinalizeReversal = `
		UPDATE transactions
		SET status = 'COMPLETED', processed_at = ?
		WHERE transaction_id = ? AND kind = 'REVERSAL' AND status = 'PROCESSING'`

	queryMarkOriginalReversed = `
		UPDATE transactions
		SET status = 'REVERSED'
		WHERE transaction_id = ? AND status = 'COMPLETED'`

	// Limit aggregates. REVERSED rows were COMPLETED once and keep counting
	// against caps, so window sums never decrease as reversals land.
	querySumCompletedByFromAccount = `
		SELECT CAST(COALESCE(SUM(amount), 0) AS TEXT) FROM transactions
		WHERE from_account_id = ? AND kind = ?
			AND status IN ('COMPLETED', 'REVERSED')
			AND created_at >= ?`

	querySumCompletedByToAccount = `
		SELECT CAST(COALESCE(SUM(amount), 0) AS TEXT) FROM transactions
		WHERE to_account_id = ? AND kind = ?
			AND status IN ('COMPLETED', 'REVERSED')
			AND created_at >= ?`

	queryCountCompletedByFromAccount = `
		SELECT COUNT(*) FROM transactions
		WHERE from_account_id = ? AND kind = ?
			AND status IN ('COMPLETED', 'REVERSED')
			AND created_at >= ?`

	queryCountCompletedByToAccount = `
		SELECT COUNT(*) FROM transactions
		WHERE to_account_id = ? AND kind = ?
			AND status IN ('COMPLETED', 'REVERSED')
			AND created_at >= ?`

	queryGetLimit = `
		SELECT account_type, kind,
			CAST(per_operation_cap AS TEXT), CAST(daily_amount_cap AS TEXT),
			CAST(monthly_amount_cap AS TEXT),
			daily_count_cap, monthly_count_cap, active
		FROM transaction_limits
		WHERE account_type = ? AND kind = ?`

	queryListLimits = `
		SELECT account_type, kind,
			CAST(per_operation_cap AS TEXT), CAST(daily_amount_cap AS TEXT),
			CAST(monthly_amount_cap AS TEXT),
			daily_count_cap, monthly_count_cap, active
		FROM transaction_limits
		ORDER BY account_type, kind`

	queryUpsertLimit = `
		INSERT INTO transaction_limits (
			account_type, kind, per_operation_cap, daily_amount_cap,
			monthly_amount_cap, daily_count_cap, monthly_count_cap, active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_type, kind) DO UPDATE SET
			per_operation_cap = excluded.per_operation_cap,
			daily_amount_cap = excluded.daily_amount_cap,
			monthly_amount_cap = excluded.monthly_amount_cap,
			daily_count_cap = excluded.daily_count_cap,
			monthly_count_cap = excluded.monthly_count_cap,
			active = excluded.active`
)
