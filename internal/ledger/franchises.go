// internal/ledger/franchises.go
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"funding-engine/internal/models"
)

const franchiseColumns = `id, business_id, name, carpet_area, cost_per_area, total_shares,
	selected_shares, launch_start_date, launch_end_date, status,
	total_revenue, capital_recovered, pending_dividends, created_at, updated_at`

func scanFranchise(row interface{ Scan(...interface{}) error }) (*models.Franchise, error) {
	var f models.Franchise
	var start, end sql.NullTime
	err := row.Scan(
		&f.ID, &f.BusinessID, &f.Name, &f.CarpetArea, &f.CostPerArea, &f.TotalShares,
		&f.SelectedShares, &start, &end, &f.Status,
		&f.TotalRevenue, &f.CapitalRecovered, &f.PendingDividends, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if start.Valid {
		f.LaunchStartDate = &start.Time
	}
	if end.Valid {
		f.LaunchEndDate = &end.Time
	}
	return &f, nil
}

func (s *Store) InsertFranchise(ctx context.Context, q DBTX, f *models.Franchise) error {
	if err := f.Validate(); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO franchises (id, business_id, name, carpet_area, cost_per_area, total_shares,
			selected_shares, status, total_revenue, capital_recovered, pending_dividends,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		f.ID, f.BusinessID, f.Name, f.CarpetArea, f.CostPerArea, f.TotalShares,
		f.SelectedShares, f.Status, f.TotalRevenue, f.CapitalRecovered, f.PendingDividends,
		f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert franchise: %w", err)
	}
	return nil
}

func (s *Store) GetFranchise(ctx context.Context, q DBTX, id string) (*models.Franchise, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+franchiseColumns+` FROM franchises WHERE id = $1`, id)
	f, err := scanFranchise(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get franchise: %w", err)
	}
	return f, nil
}

// ListExpiredFunding returns every franchise still in funding whose window
// has closed. This predicate is what makes the sweep idempotent: resolved
// franchises are excluded by construction.
func (s *Store) ListExpiredFunding(ctx context.Context, q DBTX, now time.Time) ([]*models.Franchise, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+franchiseColumns+` FROM franchises
		 WHERE status = $1 AND launch_end_date <= $2
		 ORDER BY launch_end_date`, models.StatusFunding, now)
	if err != nil {
		return nil, fmt.Errorf("list expired funding: %w", err)
	}
	defer rows.Close()

	var out []*models.Franchise
	for rows.Next() {
		f, err := scanFranchise(rows)
		if err != nil {
			return nil, fmt.Errorf("scan franchise: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// FundingProgress is one row of the read-side funding view.
type FundingProgress struct {
	Franchise     *models.Franchise
	TotalInvested models.Money
}

// ListFundingProgress returns all franchises in funding along with capital
// actually raised, derived from share records (never from a cached total).
func (s *Store) ListFundingProgress(ctx context.Context, q DBTX) ([]FundingProgress, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT f.id, f.business_id, f.name, f.carpet_area, f.cost_per_area, f.total_shares,
			f.selected_shares, f.launch_start_date, f.launch_end_date, f.status,
			f.total_revenue, f.capital_recovered, f.pending_dividends, f.created_at, f.updated_at,
			COALESCE(SUM(s.number_of_shares * s.cost_per_share), 0) AS total_invested
		FROM franchises f
		LEFT JOIN shares s ON s.franchise_id = f.id
		WHERE f.status = $1
		GROUP BY f.id
		ORDER BY f.launch_end_date`, models.StatusFunding)
	if err != nil {
		return nil, fmt.Errorf("list funding progress: %w", err)
	}
	defer rows.Close()

	var out []FundingProgress
	for rows.Next() {
		var f models.Franchise
		var start, end sql.NullTime
		var invested models.Money
		err := rows.Scan(
			&f.ID, &f.BusinessID, &f.Name, &f.CarpetArea, &f.CostPerArea, &f.TotalShares,
			&f.SelectedShares, &start, &end, &f.Status,
			&f.TotalRevenue, &f.CapitalRecovered, &f.PendingDividends, &f.CreatedAt, &f.UpdatedAt,
			&invested,
		)
		if err != nil {
			return nil, fmt.Errorf("scan funding progress: %w", err)
		}
		if start.Valid {
			f.LaunchStartDate = &start.Time
		}
		if end.Valid {
			f.LaunchEndDate = &end.Time
		}
		out = append(out, FundingProgress{Franchise: &f, TotalInvested: invested})
	}
	return out, rows.Err()
}

// UpdateStatus transitions a franchise between states, guarded by the
// expected current state. Returns false when the guard did not match,
// which callers treat as "someone else already resolved this".
func (s *Store) UpdateStatus(ctx context.Context, q DBTX, id string, from, to models.FranchiseStatus) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE franchises SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2`,
		id, from, to, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update franchise status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ApproveFranchise moves pending_approval → funding and stamps the
// campaign window in the same statement.
func (s *Store) ApproveFranchise(ctx context.Context, q DBTX, id string, start, end time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE franchises SET status = $2, launch_start_date = $3, launch_end_date = $4, updated_at = $5
		WHERE id = $1 AND status = $6`,
		id, models.StatusFunding, start, end, time.Now().UTC(), models.StatusPendingApproval)
	if err != nil {
		return false, fmt.Errorf("approve franchise: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReserveShares atomically claims n shares of remaining capacity. The
// guard keeps selectedShares within [0, totalShares] and restricts sales
// to the funding state; false means capacity or state did not allow it.
func (s *Store) ReserveShares(ctx context.Context, q DBTX, id string, n int64) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE franchises SET selected_shares = selected_shares + $2, updated_at = $3
		WHERE id = $1 AND status = $4 AND selected_shares + $2 <= total_shares`,
		id, n, time.Now().UTC(), models.StatusFunding)
	if err != nil {
		return false, fmt.Errorf("reserve shares: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ZeroSelectedShares resets capacity after a failed campaign's share
// records have been voided, keeping the sum-of-shares invariant intact.
func (s *Store) ZeroSelectedShares(ctx context.Context, q DBTX, id string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE franchises SET selected_shares = 0, updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("zero selected shares: %w", err)
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

// ApplyRevenue folds one distributed income event into the franchise's
// capital tracking counters.
func (s *Store) ApplyRevenue(ctx context.Context, q DBTX, id string, amount, capitalRecovery, dividends models.Money) error {
	res, err := q.ExecContext(ctx, `
		UPDATE franchises SET
			total_revenue = total_revenue + $2,
			capital_recovered = capital_recovered + $3,
			pending_dividends = pending_dividends + $4,
			updated_at = $5
		WHERE id = $1`,
		id, amount, capitalRecovery, dividends, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("apply revenue: %w", err)
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

// ReducePendingDividends debits the franchise-level dividend pool when an
// investor claims. The guard refuses to take the pool negative.
func (s *Store) ReducePendingDividends(ctx context.Context, q DBTX, id string, amount models.Money) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE franchises SET pending_dividends = pending_dividends - $2, updated_at = $3
		WHERE id = $1 AND pending_dividends >= $2`,
		id, amount, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("reduce pending dividends: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
