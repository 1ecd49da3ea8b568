package postgres

// SQL query constants, Postgres dialect. Same column contract as the SQLite
// backend: empty strings bind as NULL for the nullable columns and come back
// as empty strings on select.
const (
	queryHealthCheck = `SELECT 1`

	queryInsertTransaction = `
		INSERT INTO transactions (
			transaction_id, kind, status, from_account_id, to_account_id,
			amount, currency, description, reference, created_by,
			idempotency_key, original_transaction_id, failure_reason,
			created_at, processed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), NULLIF($12, ''), $13, $14, $15)`

	querySelectTransaction = `
		SELECT transaction_id, kind, status, from_account_id, to_account_id,
			amount::text, currency, description, reference, created_by,
			COALESCE(idempotency_key, ''), COALESCE(original_transaction_id, ''),
			failure_reason, created_at, processed_at
		FROM transactions`

	queryGetTransactionById = querySelectTransaction + `
		WHERE transaction_id = $1`

	queryGetTransactionByIdLocked = queryGetTransactionById + `
		FOR UPDATE`

	queryGetTransactionByIdempotencyKey = querySelectTransaction + `
		WHERE created_by = $1 AND kind = $2 AND idempotency_key = $3`

	queryUpdateTransactionStatus = `
		UPDATE transactions
		SET status = $1, processed_at = $2, failure_reason = $3
		WHERE transaction_id = $4 AND status = 'PROCESSING'`

	queryGetReversalsOf = querySelectTransaction + `
		WHERE kind = 'REVERSAL' AND original_transaction_id = $1
		ORDER BY created_at ASC`

	queryCountActiveReversals = `
		SELECT COUNT(*) FROM transactions
		WHERE kind = 'REVERSAL' AND original_transaction_id = $1
			AND status IN ('PROCESSING', 'COMPLETED')`

	queryFindPendingOlderThan = querySelectTransaction + `
		WHERE status = 'PROCESSING' AND created_at < $1
		ORDER BY created_at ASC`

	queryFinalizeReversal = `
		UPDATE transactions
		SET status = 'COMPLETED', processed_at = $1
		WHERE transaction_id = $2 AND kind = 'REVERSAL' AND status = 'PROCESSING'`

	queryMarkOriginalReversed = `
		UPDATE transactions
		SET status = 'REVERSED'
		WHERE transaction_id = $1 AND status = 'COMPLETED'`

	querySumCompletedByFromAccount = `
		SELECT COALESCE(SUM(amount), 0)::text FROM transactions
		WHERE from_account_id = $1 AND kind = $2
			AND status IN ('COMPLETED', 'REVERSED')
			AND created_at >= $3`

	querySumCompletedByToAccount = `
		SELECT COALESCE(SUM(amount), 0)::text FROM transactions
		WHERE to_account_id = $1 AND kind = $2
			AND status IN ('COMPLETED', 'REVERSED')
			AND created_at >= $3`

	queryCountCompletedByFromAccount = `
		SELECT COUNT(*) FROM transactions
		WHERE from_account_id = $1 AND kind = $2
			AND status IN ('COMPLETED', 'REVERSED')
			AND created_at >= $3`

	queryCountCompletedByToAccount = `
		SELECT COUNT(*) FROM transactions
		WHERE to_account_id = $1 AND kind = $2
			AND status IN ('COMPLETED', 'REVERSED')
			AND created_at >= $3`

	queryGetLimit = `
		SELECT account_type, kind,
			per_operation_cap::text, daily_amount_cap::text, monthly_amount_cap::text,
			daily_count_cap, monthly_count_cap, active
		FROM transaction_limits
		WHERE account_type = $1 AND kind = $2`

	queryListLimits = `
		SELECT account_type, kind,
			per_operation_cap::text, daily_amount_cap::text, monthly_amount_cap::text,
			daily_count_cap, monthly_count_cap, active
		FROM transaction_limits
		ORDER BY account_type, kind`

	queryUpsertLimit = `
		INSERT INTO transaction_limits (
			account_type, kind, per_operation_cap, daily_amount_cap,
			monthly_amount_cap, daily_count_cap, monthly_count_cap, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (account_type, kind) DO UPDATE SET
			per_operation_cap = excluded.per_operation_cap,
			daily_amount_cap = excluded.daily_amount_cap,
			monthly_amount_cap = excluded.monthly_amount_cap,
			daily_count_cap = excluded.daily_count_cap,
			monthly_count_cap = excluded.monthly_count_cap,
			active = excluded.active`
)
