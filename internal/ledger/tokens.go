// internal/ledger/tokens.go
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"funding-engine/internal/models"
)

const tokenColumns = `franchise_id, total_supply, circulating_supply, reserve_supply,
	total_revenue, total_expenses, net_profit, base_price, token_price, market_cap,
	initial_issued, created_at, updated_at`

// InsertToken creates a franchise's token row. franchise_id is the primary
// key, so a replayed bootstrap conflicts here (false) instead of duplicating
// the economy.
func (s *Store) InsertToken(ctx context.Context, q DBTX, t *models.FRCToken) (bool, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO frc_tokens (franchise_id, total_supply, circulating_supply, reserve_supply,
			total_revenue, total_expenses, net_profit, base_price, token_price, market_cap,
			initial_issued, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (franchise_id) DO NOTHING`,
		t.FranchiseID, t.TotalSupply, t.CirculatingSupply, t.ReserveSupply,
		t.TotalRevenue, t.TotalExpenses, t.NetProfit, t.BasePrice, t.TokenPrice, t.MarketCap,
		t.InitialIssued, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("insert token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) GetToken(ctx context.Context, q DBTX, franchiseID string) (*models.FRCToken, error) {
	var t models.FRCToken
	err := q.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM frc_tokens WHERE franchise_id = $1`, franchiseID).
		Scan(&t.FranchiseID, &t.TotalSupply, &t.CirculatingSupply, &t.ReserveSupply,
			&t.TotalRevenue, &t.TotalExpenses, &t.NetProfit, &t.BasePrice, &t.TokenPrice, &t.MarketCap,
			&t.InitialIssued, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	return &t, nil
}

// SaveToken writes back the full token state after an issuance or revenue
// event. The caller is expected to hold the token inside a transaction that
// also writes the holder rows, so supply and balances move together.
func (s *Store) SaveToken(ctx context.Context, q DBTX, t *models.FRCToken) error {
	if !t.SupplyInvariantOK() {
		return fmt.Errorf("refusing to persist token for franchise %s: circulating %d + reserve %d != total %d",
			t.FranchiseID, t.CirculatingSupply, t.ReserveSupply, t.TotalSupply)
	}
	res, err := q.ExecContext(ctx, `
		UPDATE frc_tokens SET
			circulating_supply = $2, reserve_supply = $3,
			total_revenue = $4, total_expenses = $5, net_profit = $6,
			token_price = $7, market_cap = $8, initial_issued = $9, updated_at = $10
		WHERE franchise_id = $1`,
		t.FranchiseID, t.CirculatingSupply, t.ReserveSupply,
		t.TotalRevenue, t.TotalExpenses, t.NetProfit,
		t.TokenPrice, t.MarketCap, t.InitialIssued, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save token: %w", err)
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

// CreditHolder adds tokens to one investor's balance, creating the holder
// row on first credit. The kind column breakdown (investment, performance,
// bonus) is additive and audit-only.
func (s *Store) CreditHolder(ctx context.Context, q DBTX, franchiseID, investorID string, amount, investment, performance, bonus int64) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO frc_holders (franchise_id, investor_id, token_balance, total_earned,
			investment_tokens, performance_tokens, bonus_tokens)
		VALUES ($1, $2, $3, $3, $4, $5, $6)
		ON CONFLICT (franchise_id, investor_id) DO UPDATE SET
			token_balance = frc_holders.token_balance + $3,
			total_earned = frc_holders.total_earned + $3,
			investment_tokens = frc_holders.investment_tokens + $4,
			performance_tokens = frc_holders.performance_tokens + $5,
			bonus_tokens = frc_holders.bonus_tokens + $6`,
		franchiseID, investorID, amount, investment, performance, bonus)
	if err != nil {
		return fmt.Errorf("credit holder: %w", err)
	}
	return nil
}

// HoldersForFranchise returns every holder with a positive balance, in a
// stable order so proportional allocations are deterministic.
func (s *Store) HoldersForFranchise(ctx context.Context, q DBTX, franchiseID string) ([]*models.FRCHolder, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT franchise_id, investor_id, token_balance, total_earned, total_redeemed,
			investment_tokens, performance_tokens, bonus_tokens
		FROM frc_holders
		WHERE franchise_id = $1 AND token_balance > 0
		ORDER BY investor_id`, franchiseID)
	if err != nil {
		return nil, fmt.Errorf("holders for franchise: %w", err)
	}
	defer rows.Close()

	var out []*models.FRCHolder
	for rows.Next() {
		var h models.FRCHolder
		err := rows.Scan(&h.FranchiseID, &h.InvestorID, &h.TokenBalance, &h.TotalEarned, &h.TotalRedeemed,
			&h.InvestmentTokens, &h.PerformanceTokens, &h.BonusTokens)
		if err != nil {
			return nil, fmt.Errorf("scan holder: %w", err)
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}

// SumHolderBalances is the circulating supply as seen from the holder side.
// Reconciliation against frc_tokens.circulating_supply catches drift.
func (s *Store) SumHolderBalances(ctx context.Context, q DBTX, franchiseID string) (int64, error) {
	var total int64
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(token_balance), 0) FROM frc_holders WHERE franchise_id = $1`,
		franchiseID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum holder balances: %w", err)
	}
	return total, nil
}
