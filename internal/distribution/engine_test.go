// internal/distribution/engine_test.go
package distribution

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"funding-engine/internal/common/errors"
	"funding-engine/internal/common/logger"
	"funding-engine/internal/ledger"
	"funding-engine/internal/models"
	"funding-engine/internal/payrail"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

// ==========================
// Test Helper Functions
// ==========================

var testNow = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

type stubRail struct {
	err       error
	transfers int
}

func (s *stubRail) Transfer(ctx context.Context, fromVault, toWallet string, amount int64) (*payrail.Receipt, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.transfers++
	return &payrail.Receipt{Reference: "receipt-001", TransferredAt: testNow}, nil
}

func newTestEngine(t *testing.T, rail payrail.Rail) (*Engine, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	if rail == nil {
		rail = &stubRail{}
	}
	e := NewEngine(ledger.NewStore(db), rail,
		Config{CapitalRecoveryPercent: 50, FranchiseVault: "franchise-vault"},
		logger.NewNoOpLogger())
	return e, mock
}

// activeFranchise: target 50,000 units, recovered as given.
func activeFranchise(recovered models.Money) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "business_id", "name", "carpet_area", "cost_per_area", "total_shares",
		"selected_shares", "launch_start_date", "launch_end_date", "status",
		"total_revenue", "capital_recovered", "pending_dividends", "created_at", "updated_at",
	})
	rows.AddRow("franchise-001", "business-001", "Active Outlet", int64(500),
		models.MoneyFromUnits(100), int64(1000), int64(1000), testNow, testNow,
		models.StatusActive, models.Money(0), recovered, models.Money(0), testNow, testNow)
	return rows
}

func approvedIncome(amount models.Money) *models.FinancialTransaction {
	return &models.FinancialTransaction{
		ID:              "tx-001",
		FranchiseID:     "franchise-001",
		Type:            models.TransactionIncome,
		Category:        "sales",
		Amount:          amount,
		Currency:        "INR",
		TransactionDate: testNow,
		Status:          models.TransactionApproved,
		CreatedAt:       testNow,
	}
}

func holdingRows(holdings ...[3]interface{}) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"investor_id", "shares", "invested"})
	for _, h := range holdings {
		rows.AddRow(h[0], h[1], h[2])
	}
	return rows
}

// ==========================
// Split Policy
// ==========================

func TestDistribute_FiftyFiftySplit(t *testing.T) {
	e, mock := newTestEngine(t, nil)

	mock.ExpectQuery(`SELECT .* FROM franchises WHERE id`).
		WithArgs("franchise-001").
		WillReturnRows(activeFranchise(0))
	mock.ExpectQuery(`SELECT investor_id, SUM`).
		WithArgs("franchise-001").
		WillReturnRows(holdingRows(
			[3]interface{}{"investor-001", int64(600), int64(models.MoneyFromUnits(30000))},
			[3]interface{}{"investor-002", int64(400), int64(models.MoneyFromUnits(20000))},
		))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE financial_transactions SET applied_at`).
		WithArgs("tx-001", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE franchises SET\s+total_revenue`).
		WithArgs("franchise-001", models.MoneyFromUnits(10000), models.MoneyFromUnits(5000),
			models.MoneyFromUnits(5000), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO dividend_balances`).
		WithArgs("franchise-001", "investor-001", models.MoneyFromUnits(3000)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO dividend_balances`).
		WithArgs("franchise-001", "investor-002", models.MoneyFromUnits(2000)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result, err := e.Distribute(context.Background(), approvedIncome(models.MoneyFromUnits(10000)))
	assert.NoError(t, err)
	assert.Equal(t, models.MoneyFromUnits(5000), result.CapitalRecovery)
	assert.Equal(t, models.MoneyFromUnits(5000), result.DividendAmount)
	assert.False(t, result.FullyRecovered)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDistribute_RecoveryCappedByRemaining(t *testing.T) {
	e, mock := newTestEngine(t, nil)

	// 48,000 of 50,000 recovered; 10,000 income caps recovery at 2,000.
	mock.ExpectQuery(`SELECT .* FROM franchises WHERE id`).
		WithArgs("franchise-001").
		WillReturnRows(activeFranchise(models.MoneyFromUnits(48000)))
	mock.ExpectQuery(`SELECT investor_id, SUM`).
		WithArgs("franchise-001").
		WillReturnRows(holdingRows(
			[3]interface{}{"investor-001", int64(1000), int64(models.MoneyFromUnits(50000))},
		))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE financial_transactions SET applied_at`).
		WithArgs("tx-001", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE franchises SET\s+total_revenue`).
		WithArgs("franchise-001", models.MoneyFromUnits(10000), models.MoneyFromUnits(2000),
			models.MoneyFromUnits(8000), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO dividend_balances`).
		WithArgs("franchise-001", "investor-001", models.MoneyFromUnits(8000)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result, err := e.Distribute(context.Background(), approvedIncome(models.MoneyFromUnits(10000)))
	assert.NoError(t, err)
	assert.Equal(t, models.MoneyFromUnits(2000), result.CapitalRecovery)
	assert.Equal(t, models.MoneyFromUnits(8000), result.DividendAmount)
	assert.True(t, result.FullyRecovered)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDistribute_FullyRecoveredGoesAllToDividends(t *testing.T) {
	e, mock := newTestEngine(t, nil)

	mock.ExpectQuery(`SELECT .* FROM franchises WHERE id`).
		WithArgs("franchise-001").
		WillReturnRows(activeFranchise(models.MoneyFromUnits(50000)))
	mock.ExpectQuery(`SELECT investor_id, SUM`).
		WithArgs("franchise-001").
		WillReturnRows(holdingRows(
			[3]interface{}{"investor-001", int64(1000), int64(models.MoneyFromUnits(50000))},
		))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE financial_transactions SET applied_at`).
		WithArgs("tx-001", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE franchises SET\s+total_revenue`).
		WithArgs("franchise-001", models.MoneyFromUnits(10000), models.Money(0),
			models.MoneyFromUnits(10000), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO dividend_balances`).
		WithArgs("franchise-001", "investor-001", models.MoneyFromUnits(10000)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result, err := e.Distribute(context.Background(), approvedIncome(models.MoneyFromUnits(10000)))
	assert.NoError(t, err)
	assert.Equal(t, models.Money(0), result.CapitalRecovery)
	assert.Equal(t, models.MoneyFromUnits(10000), result.DividendAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDistribute_RemainderAssignedDeterministically(t *testing.T) {
	e, mock := newTestEngine(t, nil)

	// 101 minor units of dividends across a 2:1 split. Floors give 67 and
	// 33; the leftover unit goes to the largest fractional remainder
	// (investor-002, 2/3 vs 1/3), so the exact split is 67 and 34.
	mock.ExpectQuery(`SELECT .* FROM franchises WHERE id`).
		WithArgs("franchise-001").
		WillReturnRows(activeFranchise(models.MoneyFromUnits(50000)))
	mock.ExpectQuery(`SELECT investor_id, SUM`).
		WithArgs("franchise-001").
		WillReturnRows(holdingRows(
			[3]interface{}{"investor-001", int64(2), int64(200)},
			[3]interface{}{"investor-002", int64(1), int64(100)},
		))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE financial_transactions SET applied_at`).
		WithArgs("tx-001", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE franchises SET\s+total_revenue`).
		WithArgs("franchise-001", models.Money(101), models.Money(0),
			models.Money(101), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO dividend_balances`).
		WithArgs("franchise-001", "investor-001", models.Money(67)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO dividend_balances`).
		WithArgs("franchise-001", "investor-002", models.Money(34)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	_, err := e.Distribute(context.Background(), approvedIncome(models.Money(101)))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A transaction whose applied stamp is already set was distributed by an
// earlier attempt; the replay rolls back without touching the ledger.
func TestDistribute_AlreadyAppliedRollsBack(t *testing.T) {
	e, mock := newTestEngine(t, nil)

	mock.ExpectQuery(`SELECT .* FROM franchises WHERE id`).
		WithArgs("franchise-001").
		WillReturnRows(activeFranchise(0))
	mock.ExpectQuery(`SELECT investor_id, SUM`).
		WithArgs("franchise-001").
		WillReturnRows(holdingRows(
			[3]interface{}{"investor-001", int64(1000), int64(models.MoneyFromUnits(50000))},
		))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE financial_transactions SET applied_at`).
		WithArgs("tx-001", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := e.Distribute(context.Background(), approvedIncome(models.MoneyFromUnits(10000)))
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Validation
// ==========================

func TestDistribute_RejectsPendingTransaction(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	txn := approvedIncome(models.MoneyFromUnits(10000))
	txn.Status = models.TransactionPending

	_, err := e.Distribute(context.Background(), txn)
	assert.Error(t, err)
	stdErr := err.(*errors.StandardError)
	assert.Equal(t, errors.ErrCodeValidationFailed, stdErr.Code)
}

func TestDistribute_RejectsExpense(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	txn := approvedIncome(models.MoneyFromUnits(10000))
	txn.Type = models.TransactionExpense

	_, err := e.Distribute(context.Background(), txn)
	assert.Error(t, err)
}

func TestDistribute_RejectsInactiveFranchise(t *testing.T) {
	e, mock := newTestEngine(t, nil)

	rows := sqlmock.NewRows([]string{
		"id", "business_id", "name", "carpet_area", "cost_per_area", "total_shares",
		"selected_shares", "launch_start_date", "launch_end_date", "status",
		"total_revenue", "capital_recovered", "pending_dividends", "created_at", "updated_at",
	}).AddRow("franchise-001", "business-001", "Funding Outlet", int64(500),
		models.MoneyFromUnits(100), int64(1000), int64(600), testNow, testNow,
		models.StatusFunding, models.Money(0), models.Money(0), models.Money(0), testNow, testNow)

	mock.ExpectQuery(`SELECT .* FROM franchises WHERE id`).
		WithArgs("franchise-001").
		WillReturnRows(rows)

	_, err := e.Distribute(context.Background(), approvedIncome(models.MoneyFromUnits(10000)))
	assert.Error(t, err)
	stdErr := err.(*errors.StandardError)
	assert.Equal(t, errors.ErrCodeFranchiseNotActive, stdErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Claims
// ==========================

func balanceRows(accrued, claimed models.Money) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"franchise_id", "investor_id", "accrued", "claimed"}).
		AddRow("franchise-001", "investor-001", accrued, claimed)
}

func TestClaim_FullBalance(t *testing.T) {
	rail := &stubRail{}
	e, mock := newTestEngine(t, rail)

	mock.ExpectQuery(`SELECT .* FROM dividend_balances`).
		WithArgs("franchise-001", "investor-001").
		WillReturnRows(balanceRows(models.MoneyFromUnits(3000), models.MoneyFromUnits(1000)))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE dividend_balances SET claimed`).
		WithArgs("franchise-001", "investor-001", models.MoneyFromUnits(2000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE franchises SET pending_dividends`).
		WithArgs("franchise-001", models.MoneyFromUnits(2000), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	claimed, err := e.Claim(context.Background(), "franchise-001", "investor-001", 0)
	assert.NoError(t, err)
	assert.Equal(t, models.MoneyFromUnits(2000), claimed)
	assert.Equal(t, 1, rail.transfers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaim_ExceedsPending(t *testing.T) {
	e, mock := newTestEngine(t, nil)

	mock.ExpectQuery(`SELECT .* FROM dividend_balances`).
		WithArgs("franchise-001", "investor-001").
		WillReturnRows(balanceRows(models.MoneyFromUnits(3000), models.MoneyFromUnits(1000)))

	_, err := e.Claim(context.Background(), "franchise-001", "investor-001", models.MoneyFromUnits(2500))
	assert.Error(t, err)
	stdErr := err.(*errors.StandardError)
	assert.Equal(t, errors.ErrCodeClaimExceedsBalance, stdErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaim_ConcurrentDebitLoses(t *testing.T) {
	e, mock := newTestEngine(t, nil)

	mock.ExpectQuery(`SELECT .* FROM dividend_balances`).
		WithArgs("franchise-001", "investor-001").
		WillReturnRows(balanceRows(models.MoneyFromUnits(3000), models.MoneyFromUnits(1000)))

	mock.ExpectBegin()
	// Guard matches nothing: another claim landed between read and debit.
	mock.ExpectExec(`UPDATE dividend_balances SET claimed`).
		WithArgs("franchise-001", "investor-001", models.MoneyFromUnits(2000)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := e.Claim(context.Background(), "franchise-001", "investor-001", 0)
	assert.Error(t, err)
	stdErr := err.(*errors.StandardError)
	assert.Equal(t, errors.ErrCodeClaimExceedsBalance, stdErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaim_RailFailureCompensates(t *testing.T) {
	rail := &stubRail{err: stderrors.New("rail unavailable")}
	e, mock := newTestEngine(t, rail)

	mock.ExpectQuery(`SELECT .* FROM dividend_balances`).
		WithArgs("franchise-001", "investor-001").
		WillReturnRows(balanceRows(models.MoneyFromUnits(3000), models.MoneyFromUnits(1000)))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE dividend_balances SET claimed`).
		WithArgs("franchise-001", "investor-001", models.MoneyFromUnits(2000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE franchises SET pending_dividends`).
		WithArgs("franchise-001", models.MoneyFromUnits(2000), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// Compensation credits the debit back.
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE dividend_balances SET claimed = claimed -`).
		WithArgs("franchise-001", "investor-001", models.MoneyFromUnits(2000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE franchises SET pending_dividends = pending_dividends \+`).
		WithArgs("franchise-001", models.MoneyFromUnits(2000), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := e.Claim(context.Background(), "franchise-001", "investor-001", 0)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
