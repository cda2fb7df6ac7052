// internal/ledger/dividends.go
package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"funding-engine/internal/models"
)

// AccrueDividend credits an investor's dividend balance, creating the row
// on first accrual.
func (s *Store) AccrueDividend(ctx context.Context, q DBTX, franchiseID, investorID string, amount models.Money) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO dividend_balances (franchise_id, investor_id, accrued, claimed)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (franchise_id, investor_id) DO UPDATE SET
			accrued = dividend_balances.accrued + $3`,
		franchiseID, investorID, amount)
	if err != nil {
		return fmt.Errorf("accrue dividend: %w", err)
	}
	return nil
}

func (s *Store) GetDividendBalance(ctx context.Context, q DBTX, franchiseID, investorID string) (*models.DividendBalance, error) {
	var d models.DividendBalance
	err := q.QueryRowContext(ctx, `
		SELECT franchise_id, investor_id, accrued, claimed
		FROM dividend_balances WHERE franchise_id = $1 AND investor_id = $2`,
		franchiseID, investorID).
		Scan(&d.FranchiseID, &d.InvestorID, &d.Accrued, &d.Claimed)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dividend balance: %w", err)
	}
	return &d, nil
}

// ClaimDividend debits a claim against the investor's accrued balance. The
// guard makes over-claiming impossible at the ledger even under concurrent
// claims: the second claim finds insufficient pending balance and affects
// zero rows.
func (s *Store) ClaimDividend(ctx context.Context, q DBTX, franchiseID, investorID string, amount models.Money) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE dividend_balances SET claimed = claimed + $3
		WHERE franchise_id = $1 AND investor_id = $2 AND accrued - claimed >= $3`,
		franchiseID, investorID, amount)
	if err != nil {
		return false, fmt.Errorf("claim dividend: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DividendBalancesForFranchise lists all investor balances of a franchise.
func (s *Store) DividendBalancesForFranchise(ctx context.Context, q DBTX, franchiseID string) ([]*models.DividendBalance, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT franchise_id, investor_id, accrued, claimed
		FROM dividend_balances WHERE franchise_id = $1
		ORDER BY investor_id`, franchiseID)
	if err != nil {
		return nil, fmt.Errorf("dividend balances for franchise: %w", err)
	}
	defer rows.Close()

	var out []*models.DividendBalance
	for rows.Next() {
		var d models.DividendBalance
		if err := rows.Scan(&d.FranchiseID, &d.InvestorID, &d.Accrued, &d.Claimed); err != nil {
			return nil, fmt.Errorf("scan dividend balance: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}
