// internal/ledger/shares.go
package ledger

import (
	"context"
	"fmt"

	"funding-engine/internal/models"
)

func (s *Store) InsertShare(ctx context.Context, q DBTX, sh *models.Share) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO shares (id, franchise_id, investor_id, number_of_shares, cost_per_share, purchase_date)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		sh.ID, sh.FranchiseID, sh.InvestorID, sh.NumberOfShares, sh.CostPerShare, sh.PurchaseDate)
	if err != nil {
		return fmt.Errorf("insert share: %w", err)
	}
	return nil
}

// SharesForFranchise returns all purchase records of one campaign, oldest
// first. The sweep refunds from these records, so every purchase must be
// represented here until the campaign resolves.
func (s *Store) SharesForFranchise(ctx context.Context, q DBTX, franchiseID string) ([]*models.Share, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, franchise_id, investor_id, number_of_shares, cost_per_share, purchase_date
		FROM shares WHERE franchise_id = $1
		ORDER BY purchase_date`, franchiseID)
	if err != nil {
		return nil, fmt.Errorf("shares for franchise: %w", err)
	}
	defer rows.Close()

	var out []*models.Share
	for rows.Next() {
		var sh models.Share
		err := rows.Scan(&sh.ID, &sh.FranchiseID, &sh.InvestorID, &sh.NumberOfShares, &sh.CostPerShare, &sh.PurchaseDate)
		if err != nil {
			return nil, fmt.Errorf("scan share: %w", err)
		}
		out = append(out, &sh)
	}
	return out, rows.Err()
}

// SharesByInvestor returns one investor's holdings across all franchises.
func (s *Store) SharesByInvestor(ctx context.Context, q DBTX, investorID string) ([]*models.Share, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, franchise_id, investor_id, number_of_shares, cost_per_share, purchase_date
		FROM shares WHERE investor_id = $1
		ORDER BY purchase_date`, investorID)
	if err != nil {
		return nil, fmt.Errorf("shares by investor: %w", err)
	}
	defer rows.Close()

	var out []*models.Share
	for rows.Next() {
		var sh models.Share
		err := rows.Scan(&sh.ID, &sh.FranchiseID, &sh.InvestorID, &sh.NumberOfShares, &sh.CostPerShare, &sh.PurchaseDate)
		if err != nil {
			return nil, fmt.Errorf("scan share: %w", err)
		}
		out = append(out, &sh)
	}
	return out, rows.Err()
}

// InvestorHolding is one investor's aggregate position in a campaign.
type InvestorHolding struct {
	InvestorID string
	Shares     int64
	Invested   models.Money
}

// HoldingsForFranchise aggregates share records per investor. Distribution
// weights and refund amounts both derive from this view.
func (s *Store) HoldingsForFranchise(ctx context.Context, q DBTX, franchiseID string) ([]InvestorHolding, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT investor_id, SUM(number_of_shares), SUM(number_of_shares * cost_per_share)
		FROM shares WHERE franchise_id = $1
		GROUP BY investor_id
		ORDER BY investor_id`, franchiseID)
	if err != nil {
		return nil, fmt.Errorf("holdings for franchise: %w", err)
	}
	defer rows.Close()

	var out []InvestorHolding
	for rows.Next() {
		var h InvestorHolding
		if err := rows.Scan(&h.InvestorID, &h.Shares, &h.Invested); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// DeleteSharesForFranchise removes all purchase records after a failed
// campaign has been fully refunded.
func (s *Store) DeleteSharesForFranchise(ctx context.Context, q DBTX, franchiseID string) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM shares WHERE franchise_id = $1`, franchiseID)
	if err != nil {
		return 0, fmt.Errorf("delete shares: %w", err)
	}
	return res.RowsAffected()
}
