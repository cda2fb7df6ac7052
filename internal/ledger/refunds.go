// internal/ledger/refunds.go
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"funding-engine/internal/models"
)

// InsertRefund records a refund attempt. The (franchise_id, investor_id)
// unique constraint is the idempotency key, and the insert doubles as the
// claim: only the caller that actually created the row (true) may move money
// for this investor. A conflicting insert returns false and the caller must
// inspect the existing row before touching the rail.
func (s *Store) InsertRefund(ctx context.Context, q DBTX, r *models.Refund) (bool, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO refunds (id, franchise_id, investor_id, amount, shares, status, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (franchise_id, investor_id) DO NOTHING`,
		r.ID, r.FranchiseID, r.InvestorID, r.Amount, r.Shares, r.Status, r.AttemptedAt)
	if err != nil {
		return false, fmt.Errorf("insert refund: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) GetRefund(ctx context.Context, q DBTX, franchiseID, investorID string) (*models.Refund, error) {
	var r models.Refund
	var settledAt sql.NullTime
	var receipt, failReason sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT id, franchise_id, investor_id, amount, shares, status, receipt, fail_reason, attempted_at, settled_at
		FROM refunds WHERE franchise_id = $1 AND investor_id = $2`,
		franchiseID, investorID).
		Scan(&r.ID, &r.FranchiseID, &r.InvestorID, &r.Amount, &r.Shares, &r.Status,
			&receipt, &failReason, &r.AttemptedAt, &settledAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get refund: %w", err)
	}
	r.Receipt = receipt.String
	r.FailReason = failReason.String
	if settledAt.Valid {
		r.SettledAt = &settledAt.Time
	}
	return &r, nil
}

// SettledInvestors returns the investors of a campaign whose refunds have
// already settled. The sweep skips these on re-runs.
func (s *Store) SettledInvestors(ctx context.Context, q DBTX, franchiseID string) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT investor_id FROM refunds
		WHERE franchise_id = $1 AND status = $2`,
		franchiseID, models.RefundSettled)
	if err != nil {
		return nil, fmt.Errorf("settled investors: %w", err)
	}
	defer rows.Close()

	settled := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan settled investor: %w", err)
		}
		settled[id] = true
	}
	return settled, rows.Err()
}

// MarkRefundSettled records the rail receipt once the transfer cleared.
func (s *Store) MarkRefundSettled(ctx context.Context, q DBTX, franchiseID, investorID, receipt string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE refunds SET status = $3, receipt = $4, settled_at = $5, fail_reason = ''
		WHERE franchise_id = $1 AND investor_id = $2`,
		franchiseID, investorID, models.RefundSettled, receipt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark refund settled: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrNotFound
	}
	return nil
}

// ReclaimFailedRefund moves a failed refund back to pending so exactly one
// sweep retries the transfer. Returns false when another sweep already holds
// the row or it settled in the meantime.
func (s *Store) ReclaimFailedRefund(ctx context.Context, q DBTX, franchiseID, investorID string) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE refunds SET status = $3, attempted_at = $4, fail_reason = ''
		WHERE franchise_id = $1 AND investor_id = $2 AND status = $5`,
		franchiseID, investorID, models.RefundPending, time.Now().UTC(), models.RefundFailed)
	if err != nil {
		return false, fmt.Errorf("reclaim failed refund: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkRefundFailed records why a transfer was given up on, leaving the row
// in place so the next sweep retries it.
func (s *Store) MarkRefundFailed(ctx context.Context, q DBTX, franchiseID, investorID, reason string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE refunds SET status = $3, fail_reason = $4
		WHERE franchise_id = $1 AND investor_id = $2 AND status != $5`,
		franchiseID, investorID, models.RefundFailed, reason, models.RefundSettled)
	if err != nil {
		return fmt.Errorf("mark refund failed: %w", err)
	}
	if _, err := res.RowsAffected(); err != nil {
		return err
	}
	return nil
}
