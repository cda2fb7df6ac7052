// internal/ledger/transactions.go
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"funding-engine/internal/models"
)

const transactionColumns = `id, franchise_id, type, category, amount, currency,
	transaction_date, status, applied_at, frc_tokens_issued, created_at`

func (s *Store) InsertTransaction(ctx context.Context, q DBTX, t *models.FinancialTransaction) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO financial_transactions (id, franchise_id, type, category, amount, currency,
			transaction_date, status, applied_at, frc_tokens_issued, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.FranchiseID, t.Type, t.Category, t.Amount, t.Currency,
		t.TransactionDate, t.Status, t.AppliedAt, t.FRCTokensIssued, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, q DBTX, id string) (*models.FinancialTransaction, error) {
	var t models.FinancialTransaction
	err := q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM financial_transactions WHERE id = $1`, id).
		Scan(&t.ID, &t.FranchiseID, &t.Type, &t.Category, &t.Amount, &t.Currency,
			&t.TransactionDate, &t.Status, &t.AppliedAt, &t.FRCTokensIssued, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &t, nil
}

// SettleTransaction moves a pending transaction to approved or rejected.
// The pending guard makes review idempotent: a second reviewer's decision
// on an already-settled transaction affects zero rows.
func (s *Store) SettleTransaction(ctx context.Context, q DBTX, id string, to models.TransactionStatus) (bool, error) {
	if to != models.TransactionApproved && to != models.TransactionRejected {
		return false, fmt.Errorf("cannot settle transaction to status %q", to)
	}
	res, err := q.ExecContext(ctx, `
		UPDATE financial_transactions SET status = $2
		WHERE id = $1 AND status = $3`,
		id, to, models.TransactionPending)
	if err != nil {
		return false, fmt.Errorf("settle transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkTransactionApplied stamps a settled transaction's downstream
// accounting as committed. The IS NULL guard hands the stamp to exactly one
// caller; committed inside the same ledger transaction as the accounting
// itself, it doubles as the replay fence against applying revenue twice.
func (s *Store) MarkTransactionApplied(ctx context.Context, q DBTX, id string) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE financial_transactions SET applied_at = $2
		WHERE id = $1 AND applied_at IS NULL`,
		id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark transaction applied: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetTokensIssued stamps how many performance tokens an approved income
// transaction minted.
func (s *Store) SetTokensIssued(ctx context.Context, q DBTX, id string, tokens int64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE financial_transactions SET frc_tokens_issued = $2 WHERE id = $1`,
		id, tokens)
	if err != nil {
		return fmt.Errorf("set tokens issued: %w", err)
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

// TransactionsForFranchise returns the transaction history of one
// franchise, most recent first.
func (s *Store) TransactionsForFranchise(ctx context.Context, q DBTX, franchiseID string) ([]*models.FinancialTransaction, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM financial_transactions
		 WHERE franchise_id = $1 ORDER BY transaction_date DESC`, franchiseID)
	if err != nil {
		return nil, fmt.Errorf("transactions for franchise: %w", err)
	}
	defer rows.Close()

	var out []*models.FinancialTransaction
	for rows.Next() {
		var t models.FinancialTransaction
		err := rows.Scan(&t.ID, &t.FranchiseID, &t.Type, &t.Category, &t.Amount, &t.Currency,
			&t.TransactionDate, &t.Status, &t.AppliedAt, &t.FRCTokensIssued, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
