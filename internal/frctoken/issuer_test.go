// internal/frctoken/issuer_test.go
package frctoken

import (
	"context"
	"testing"
	"time"

	"funding-engine/internal/common/errors"
	"funding-engine/internal/common/logger"
	"funding-engine/internal/ledger"
	"funding-engine/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

// ==========================
// Test Helper Functions
// ==========================

var testNow = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func newTestIssuer(t *testing.T) (*Issuer, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	i := NewIssuer(ledger.NewStore(db), Config{RevenuePerToken: 100}, logger.NewNoOpLogger())
	return i, mock
}

func tokenRows(t *models.FRCToken) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"franchise_id", "total_supply", "circulating_supply", "reserve_supply",
		"total_revenue", "total_expenses", "net_profit", "base_price", "token_price", "market_cap",
		"initial_issued", "created_at", "updated_at",
	})
	rows.AddRow(t.FranchiseID, t.TotalSupply, t.CirculatingSupply, t.ReserveSupply,
		t.TotalRevenue, t.TotalExpenses, t.NetProfit, t.BasePrice, t.TokenPrice, t.MarketCap,
		t.InitialIssued, t.CreatedAt, t.UpdatedAt)
	return rows
}

func freshToken(totalSupply int64) *models.FRCToken {
	return &models.FRCToken{
		FranchiseID:   "franchise-001",
		TotalSupply:   totalSupply,
		ReserveSupply: totalSupply,
		BasePrice:     models.MoneyFromUnits(10),
		TokenPrice:    models.MoneyFromUnits(10),
		MarketCap:     models.MoneyFromUnits(10).Mul(totalSupply),
		CreatedAt:     testNow,
		UpdatedAt:     testNow,
	}
}

func franchiseRows() *sqlmock.Rows {
	// Target 50,000 units across 1000 shares.
	rows := sqlmock.NewRows([]string{
		"id", "business_id", "name", "carpet_area", "cost_per_area", "total_shares",
		"selected_shares", "launch_start_date", "launch_end_date", "status",
		"total_revenue", "capital_recovered", "pending_dividends", "created_at", "updated_at",
	})
	rows.AddRow("franchise-001", "business-001", "Active Outlet", int64(500),
		models.MoneyFromUnits(100), int64(1000), int64(1000), testNow, testNow,
		models.StatusActive, models.Money(0), models.Money(0), models.Money(0), testNow, testNow)
	return rows
}

func holdingRows(holdings ...[3]interface{}) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"investor_id", "shares", "invested"})
	for _, h := range holdings {
		rows.AddRow(h[0], h[1], h[2])
	}
	return rows
}

func holderRows(holders ...[2]interface{}) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"franchise_id", "investor_id", "token_balance", "total_earned", "total_redeemed",
		"investment_tokens", "performance_tokens", "bonus_tokens",
	})
	for _, h := range holders {
		bal := h[1].(int64)
		rows.AddRow("franchise-001", h[0], bal, bal, int64(0), bal, int64(0), int64(0))
	}
	return rows
}

func approvedIncome(amount models.Money) *models.FinancialTransaction {
	return &models.FinancialTransaction{
		ID:          "tx-001",
		FranchiseID: "franchise-001",
		Type:        models.TransactionIncome,
		Amount:      amount,
		Currency:    "INR",
		Status:      models.TransactionApproved,
		CreatedAt:   testNow,
	}
}

// ==========================
// Initial Issuance
// ==========================

func TestInitialIssuance_ProportionalWithFloor(t *testing.T) {
	i, mock := newTestIssuer(t)

	mock.ExpectQuery(`SELECT .* FROM frc_tokens`).
		WithArgs("franchise-001").
		WillReturnRows(tokenRows(freshToken(1000)))
	mock.ExpectQuery(`SELECT .* FROM franchises WHERE id`).
		WithArgs("franchise-001").
		WillReturnRows(franchiseRows())
	// Investments of 30,000 and 20,000 against a 50,000 target:
	// grants of 600 and 400 tokens.
	mock.ExpectQuery(`SELECT investor_id, SUM`).
		WithArgs("franchise-001").
		WillReturnRows(holdingRows(
			[3]interface{}{"investor-001", int64(600), int64(models.MoneyFromUnits(30000))},
			[3]interface{}{"investor-002", int64(400), int64(models.MoneyFromUnits(20000))},
		))

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO frc_holders`).
		WithArgs("franchise-001", "investor-001", int64(600), int64(600), int64(0), int64(0)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO frc_holders`).
		WithArgs("franchise-001", "investor-002", int64(400), int64(400), int64(0), int64(0)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE frc_tokens SET`).
		WithArgs("franchise-001", int64(1000), int64(0),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	issued, err := i.InitialIssuance(context.Background(), "franchise-001")
	assert.NoError(t, err)
	assert.Equal(t, int64(1000), issued)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitialIssuance_FloorRemainderStaysInReserve(t *testing.T) {
	i, mock := newTestIssuer(t)

	mock.ExpectQuery(`SELECT .* FROM frc_tokens`).
		WithArgs("franchise-001").
		WillReturnRows(tokenRows(freshToken(1000)))
	mock.ExpectQuery(`SELECT .* FROM franchises WHERE id`).
		WithArgs("franchise-001").
		WillReturnRows(franchiseRows())
	// Three equal investors on a 50,000 target: each gets floor(1000/3) = 333.
	third := int64(models.MoneyFromUnits(50000)) / 3
	mock.ExpectQuery(`SELECT investor_id, SUM`).
		WithArgs("franchise-001").
		WillReturnRows(holdingRows(
			[3]interface{}{"investor-001", int64(333), third},
			[3]interface{}{"investor-002", int64(333), third},
			[3]interface{}{"investor-003", int64(334), third},
		))

	mock.ExpectBegin()
	for _, investor := range []string{"investor-001", "investor-002", "investor-003"} {
		mock.ExpectExec(`INSERT INTO frc_holders`).
			WithArgs("franchise-001", investor, int64(333), int64(333), int64(0), int64(0)).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectExec(`UPDATE frc_tokens SET`).
		WithArgs("franchise-001", int64(999), int64(1),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	issued, err := i.InitialIssuance(context.Background(), "franchise-001")
	assert.NoError(t, err)
	assert.Equal(t, int64(999), issued)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitialIssuance_OnlyOnce(t *testing.T) {
	i, mock := newTestIssuer(t)

	token := freshToken(1000)
	token.InitialIssued = true

	mock.ExpectQuery(`SELECT .* FROM frc_tokens`).
		WithArgs("franchise-001").
		WillReturnRows(tokenRows(token))

	_, err := i.InitialIssuance(context.Background(), "franchise-001")
	assert.Error(t, err)
	stdErr := err.(*errors.StandardError)
	assert.Equal(t, errors.ErrCodeTokensAlreadyIssued, stdErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Performance Issuance
// ==========================

func TestPerformanceIssuance_ProportionalToBalances(t *testing.T) {
	i, mock := newTestIssuer(t)

	token := freshToken(2000)
	assert.NoError(t, token.Issue(1000)) // 600 + 400 held below

	mock.ExpectQuery(`SELECT .* FROM frc_tokens`).
		WithArgs("franchise-001").
		WillReturnRows(tokenRows(token))
	// 5,000 units of income at 100 units/token: 50 tokens, split 30/20.
	mock.ExpectQuery(`SELECT franchise_id, investor_id, token_balance`).
		WithArgs("franchise-001").
		WillReturnRows(holderRows(
			[2]interface{}{"investor-001", int64(600)},
			[2]interface{}{"investor-002", int64(400)},
		))

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO frc_holders`).
		WithArgs("franchise-001", "investor-001", int64(30), int64(0), int64(30), int64(0)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO frc_holders`).
		WithArgs("franchise-001", "investor-002", int64(20), int64(0), int64(20), int64(0)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE frc_tokens SET`).
		WithArgs("franchise-001", int64(1050), int64(950),
			models.MoneyFromUnits(5000), models.Money(0), models.MoneyFromUnits(5000),
			sqlmock.AnyArg(), sqlmock.AnyArg(), false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE financial_transactions SET frc_tokens_issued`).
		WithArgs("tx-001", int64(50)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	issued, err := i.PerformanceIssuance(context.Background(), approvedIncome(models.MoneyFromUnits(5000)))
	assert.NoError(t, err)
	assert.Equal(t, int64(50), issued)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPerformanceIssuance_SmallIncomeMintsNothing(t *testing.T) {
	i, mock := newTestIssuer(t)

	token := freshToken(2000)
	assert.NoError(t, token.Issue(1000))

	mock.ExpectQuery(`SELECT .* FROM frc_tokens`).
		WithArgs("franchise-001").
		WillReturnRows(tokenRows(token))
	mock.ExpectQuery(`SELECT franchise_id, investor_id, token_balance`).
		WithArgs("franchise-001").
		WillReturnRows(holderRows([2]interface{}{"investor-001", int64(1000)}))

	// Revenue still lands in the aggregates and the stamp is zero.
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE frc_tokens SET`).
		WithArgs("franchise-001", int64(1000), int64(1000),
			models.MoneyFromUnits(99), models.Money(0), models.MoneyFromUnits(99),
			sqlmock.AnyArg(), sqlmock.AnyArg(), false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE financial_transactions SET frc_tokens_issued`).
		WithArgs("tx-001", int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	issued, err := i.PerformanceIssuance(context.Background(), approvedIncome(models.MoneyFromUnits(99)))
	assert.NoError(t, err)
	assert.Equal(t, int64(0), issued)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPerformanceIssuance_ExhaustedReserveRejected(t *testing.T) {
	i, mock := newTestIssuer(t)

	token := freshToken(1000)
	assert.NoError(t, token.Issue(1000)) // reserve empty

	mock.ExpectQuery(`SELECT .* FROM frc_tokens`).
		WithArgs("franchise-001").
		WillReturnRows(tokenRows(token))
	mock.ExpectQuery(`SELECT franchise_id, investor_id, token_balance`).
		WithArgs("franchise-001").
		WillReturnRows(holderRows([2]interface{}{"investor-001", int64(1000)}))

	_, err := i.PerformanceIssuance(context.Background(), approvedIncome(models.MoneyFromUnits(10000)))
	assert.Error(t, err)
	stdErr := err.(*errors.StandardError)
	assert.Equal(t, errors.ErrCodeSupplyInvariantViolated, stdErr.Code)
	assert.True(t, errors.IsInvariantViolation(stdErr.Code))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPerformanceIssuance_RejectsPending(t *testing.T) {
	i, _ := newTestIssuer(t)

	txn := approvedIncome(models.MoneyFromUnits(5000))
	txn.Status = models.TransactionPending

	_, err := i.PerformanceIssuance(context.Background(), txn)
	assert.Error(t, err)
}

// ==========================
// Token Bootstrap
// ==========================

func TestCreateToken_ReplayReturnsExisting(t *testing.T) {
	i, mock := newTestIssuer(t)

	existing := freshToken(1000)
	existing.InitialIssued = true

	// The insert conflicts on franchise_id: a bootstrap already ran, so the
	// stored economy wins over the freshly built one.
	mock.ExpectExec(`INSERT INTO frc_tokens`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT .* FROM frc_tokens`).
		WithArgs("franchise-001").
		WillReturnRows(tokenRows(existing))

	token, err := i.CreateToken(context.Background(), "franchise-001", 1000, models.MoneyFromUnits(10))
	assert.NoError(t, err)
	assert.True(t, token.InitialIssued)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Expense Recording
// ==========================

func approvedExpense(amount models.Money) *models.FinancialTransaction {
	txn := approvedIncome(amount)
	txn.Type = models.TransactionExpense
	return txn
}

func TestRecordExpense_RepricesWithinStampedTx(t *testing.T) {
	i, mock := newTestIssuer(t)

	token := freshToken(2000)
	assert.NoError(t, token.Issue(1000))
	expense := models.MoneyFromUnits(2000)

	mock.ExpectQuery(`SELECT .* FROM frc_tokens`).
		WithArgs("franchise-001").
		WillReturnRows(tokenRows(token))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE financial_transactions SET applied_at`).
		WithArgs("tx-001", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE frc_tokens SET`).
		WithArgs("franchise-001", int64(1000), int64(1000),
			models.Money(0), expense, models.Money(0)-expense,
			sqlmock.AnyArg(), sqlmock.AnyArg(), false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, i.RecordExpense(context.Background(), approvedExpense(expense)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A replayed approval must not count the same expense into the aggregates a
// second time; the lost stamp rolls the whole repricing back.
func TestRecordExpense_AlreadyAppliedRollsBack(t *testing.T) {
	i, mock := newTestIssuer(t)

	token := freshToken(2000)
	assert.NoError(t, token.Issue(1000))

	mock.ExpectQuery(`SELECT .* FROM frc_tokens`).
		WithArgs("franchise-001").
		WillReturnRows(tokenRows(token))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE financial_transactions SET applied_at`).
		WithArgs("tx-001", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := i.RecordExpense(context.Background(), approvedExpense(models.MoneyFromUnits(2000)))
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Reconciliation
// ==========================

func TestReconcile_Matches(t *testing.T) {
	i, mock := newTestIssuer(t)

	token := freshToken(1000)
	assert.NoError(t, token.Issue(600))

	mock.ExpectQuery(`SELECT .* FROM frc_tokens`).
		WithArgs("franchise-001").
		WillReturnRows(tokenRows(token))
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(token_balance\), 0\)`).
		WithArgs("franchise-001").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(int64(600)))

	assert.NoError(t, i.Reconcile(context.Background(), "franchise-001"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcile_DriftDetected(t *testing.T) {
	i, mock := newTestIssuer(t)

	token := freshToken(1000)
	assert.NoError(t, token.Issue(600))

	mock.ExpectQuery(`SELECT .* FROM frc_tokens`).
		WithArgs("franchise-001").
		WillReturnRows(tokenRows(token))
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(token_balance\), 0\)`).
		WithArgs("franchise-001").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(int64(599)))

	err := i.Reconcile(context.Background(), "franchise-001")
	assert.Error(t, err)
	stdErr := err.(*errors.StandardError)
	assert.Equal(t, errors.ErrCodeConservationViolated, stdErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
