// internal/workers/revenue/claim-dividends/handler_test.go
package claimdividends

import (
	"context"
	"testing"

	"funding-engine/internal/common/errors"
	"funding-engine/internal/common/logger"
	"funding-engine/internal/distribution"
	"funding-engine/internal/ledger"
	"funding-engine/internal/models"
	"funding-engine/internal/payrail"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.NewNoOpLogger()
	engine := distribution.NewEngine(ledger.NewStore(db), payrail.NewSimulatedRail(log),
		distribution.Config{FranchiseVault: "franchise-vault"}, log)
	return NewHandler(LoadConfig(), engine, log), mock
}

func balanceRows(accrued, claimed models.Money) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"franchise_id", "investor_id", "accrued", "claimed"}).
		AddRow("franchise-001", "investor-001", accrued, claimed)
}

// ==========================
// Claims
// ==========================

func TestExecute_ClaimsFullBalance(t *testing.T) {
	h, mock := newTestHandler(t)

	// 3,000 units accrued, 1,000 already claimed: 2,000 pending.
	mock.ExpectQuery(`SELECT franchise_id, investor_id, accrued, claimed`).
		WithArgs("franchise-001", "investor-001").
		WillReturnRows(balanceRows(models.MoneyFromUnits(3000), models.MoneyFromUnits(1000)))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE dividend_balances SET claimed = claimed \+ \$3`).
		WithArgs("franchise-001", "investor-001", models.MoneyFromUnits(2000)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE franchises SET pending_dividends = pending_dividends - \$2`).
		WithArgs("franchise-001", models.MoneyFromUnits(2000), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	output, err := h.Execute(context.Background(), &Input{
		FranchiseID: "franchise-001",
		InvestorID:  "investor-001",
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(models.MoneyFromUnits(2000)), output.ClaimedAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_PartialClaim(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery(`SELECT franchise_id, investor_id, accrued, claimed`).
		WithArgs("franchise-001", "investor-001").
		WillReturnRows(balanceRows(models.MoneyFromUnits(3000), models.Money(0)))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE dividend_balances SET claimed = claimed \+ \$3`).
		WithArgs("franchise-001", "investor-001", models.MoneyFromUnits(500)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE franchises SET pending_dividends = pending_dividends - \$2`).
		WithArgs("franchise-001", models.MoneyFromUnits(500), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	output, err := h.Execute(context.Background(), &Input{
		FranchiseID: "franchise-001",
		InvestorID:  "investor-001",
		Amount:      int64(models.MoneyFromUnits(500)),
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(models.MoneyFromUnits(500)), output.ClaimedAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Guards
// ==========================

func TestExecute_ClaimExceedsPending(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery(`SELECT franchise_id, investor_id, accrued, claimed`).
		WithArgs("franchise-001", "investor-001").
		WillReturnRows(balanceRows(models.MoneyFromUnits(1000), models.MoneyFromUnits(1000)))

	_, err := h.Execute(context.Background(), &Input{
		FranchiseID: "franchise-001",
		InvestorID:  "investor-001",
		Amount:      int64(models.MoneyFromUnits(100)),
	})

	assert.Error(t, err)
	assert.Equal(t, errors.ErrCodeClaimExceedsBalance, err.(*errors.StandardError).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_UnknownInvestor(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery(`SELECT franchise_id, investor_id, accrued, claimed`).
		WithArgs("franchise-001", "investor-404").
		WillReturnRows(sqlmock.NewRows([]string{"franchise_id", "investor_id", "accrued", "claimed"}))

	_, err := h.Execute(context.Background(), &Input{
		FranchiseID: "franchise-001",
		InvestorID:  "investor-404",
	})

	assert.Error(t, err)
	assert.Equal(t, errors.ErrCodeClaimExceedsBalance, err.(*errors.StandardError).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_NegativeAmountRejected(t *testing.T) {
	h, _ := newTestHandler(t)

	_, err := h.Execute(context.Background(), &Input{
		FranchiseID: "franchise-001",
		InvestorID:  "investor-001",
		Amount:      -100,
	})

	assert.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, err.(*errors.StandardError).Code)
}

func TestExecute_MissingIdentifiers(t *testing.T) {
	h, _ := newTestHandler(t)

	_, err := h.Execute(context.Background(), &Input{InvestorID: "investor-001"})

	assert.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, err.(*errors.StandardError).Code)
}
