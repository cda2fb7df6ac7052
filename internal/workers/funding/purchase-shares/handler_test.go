// internal/workers/funding/purchase-shares/handler_test.go
package purchaseshares

import (
	"context"
	"testing"
	"time"

	"funding-engine/internal/campaign"
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

var testNow = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.NewNoOpLogger()
	store := ledger.NewStore(db)
	return NewHandler(LoadConfig(), store, campaign.NewMachine(store, log), log), mock
}

// fundingFranchiseRows is a live campaign: 1000 shares at 100 units each.
func fundingFranchiseRows(selectedShares int64) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "business_id", "name", "carpet_area", "cost_per_area", "total_shares",
		"selected_shares", "launch_start_date", "launch_end_date", "status",
		"total_revenue", "capital_recovered", "pending_dividends", "created_at", "updated_at",
	})
	rows.AddRow("franchise-001", "business-001", "Downtown Outlet", int64(500),
		models.MoneyFromUnits(100), int64(1000), selectedShares, testNow,
		testNow.Add(90*24*time.Hour), models.StatusFunding,
		models.Money(0), models.Money(0), models.Money(0), testNow, testNow)
	return rows
}

func stdCode(t *testing.T, err error) errors.ErrorCode {
	stdErr, ok := err.(*errors.StandardError)
	assert.True(t, ok, "expected *errors.StandardError, got %T", err)
	return stdErr.Code
}

// ==========================
// Purchase
// ==========================

func TestExecute_PurchaseRecordsShare(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery(`SELECT .* FROM franchises WHERE id`).
		WithArgs("franchise-001").
		WillReturnRows(fundingFranchiseRows(200))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE franchises SET selected_shares = selected_shares \+ \$2`).
		WithArgs("franchise-001", int64(50), sqlmock.AnyArg(), models.StatusFunding).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO shares`).
		WithArgs(sqlmock.AnyArg(), "franchise-001", "investor-001", int64(50),
			models.MoneyFromUnits(50), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	output, err := h.Execute(context.Background(), &Input{
		FranchiseID:    "franchise-001",
		InvestorID:     "investor-001",
		NumberOfShares: 50,
	})

	assert.NoError(t, err)
	assert.NotEmpty(t, output.ShareID)
	assert.Equal(t, int64(50), output.NumberOfShares)
	// cost per share: 50,000 units / 1000 shares = 50 units.
	assert.Equal(t, int64(models.MoneyFromUnits(50)), output.CostPerShare)
	assert.Equal(t, int64(models.MoneyFromUnits(2500)), output.TotalCost)
	assert.False(t, output.FullyFunded)
	assert.Equal(t, "funding", output.FranchiseStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_LastShareTriggersLaunch(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery(`SELECT .* FROM franchises WHERE id`).
		WithArgs("franchise-001").
		WillReturnRows(fundingFranchiseRows(990))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE franchises SET selected_shares = selected_shares \+ \$2`).
		WithArgs("franchise-001", int64(10), sqlmock.AnyArg(), models.StatusFunding).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO shares`).
		WithArgs(sqlmock.AnyArg(), "franchise-001", "investor-001", int64(10),
			models.MoneyFromUnits(50), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	// MarkLaunching re-reads the now fully sold campaign.
	mock.ExpectQuery(`SELECT .* FROM franchises WHERE id`).
		WithArgs("franchise-001").
		WillReturnRows(fundingFranchiseRows(1000))
	mock.ExpectExec(`UPDATE franchises SET status = \$3`).
		WithArgs("franchise-001", models.StatusFunding, models.StatusLaunching, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	output, err := h.Execute(context.Background(), &Input{
		FranchiseID:    "franchise-001",
		InvestorID:     "investor-001",
		NumberOfShares: 10,
	})

	assert.NoError(t, err)
	assert.True(t, output.FullyFunded)
	assert.Equal(t, "launching", output.FranchiseStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_CapacityExceededRollsBack(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery(`SELECT .* FROM franchises WHERE id`).
		WithArgs("franchise-001").
		WillReturnRows(fundingFranchiseRows(990))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE franchises SET selected_shares = selected_shares \+ \$2`).
		WithArgs("franchise-001", int64(20), sqlmock.AnyArg(), models.StatusFunding).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := h.Execute(context.Background(), &Input{
		FranchiseID:    "franchise-001",
		InvestorID:     "investor-001",
		NumberOfShares: 20,
	})

	assert.Error(t, err)
	assert.Equal(t, errors.ErrCodeSharesUnavailable, stdCode(t, err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_RejectsNonFundingCampaign(t *testing.T) {
	h, mock := newTestHandler(t)

	rows := sqlmock.NewRows([]string{
		"id", "business_id", "name", "carpet_area", "cost_per_area", "total_shares",
		"selected_shares", "launch_start_date", "launch_end_date", "status",
		"total_revenue", "capital_recovered", "pending_dividends", "created_at", "updated_at",
	}).AddRow("franchise-001", "business-001", "Downtown Outlet", int64(500),
		models.MoneyFromUnits(100), int64(1000), int64(1000), testNow,
		testNow.Add(90*24*time.Hour), models.StatusLaunching,
		models.Money(0), models.Money(0), models.Money(0), testNow, testNow)

	mock.ExpectQuery(`SELECT .* FROM franchises WHERE id`).
		WithArgs("franchise-001").
		WillReturnRows(rows)

	_, err := h.Execute(context.Background(), &Input{
		FranchiseID:    "franchise-001",
		InvestorID:     "investor-001",
		NumberOfShares: 10,
	})

	assert.Error(t, err)
	assert.Equal(t, errors.ErrCodeFranchiseNotFunding, stdCode(t, err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Input Validation
// ==========================

func TestExecute_RejectsNonPositiveShares(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, n := range []int64{0, -5} {
		_, err := h.Execute(context.Background(), &Input{
			FranchiseID:    "franchise-001",
			InvestorID:     "investor-001",
			NumberOfShares: n,
		})
		assert.Error(t, err)
		assert.Equal(t, errors.ErrCodeValidationFailed, stdCode(t, err))
	}
}

func TestExecute_RejectsMissingIdentifiers(t *testing.T) {
	h, _ := newTestHandler(t)

	_, err := h.Execute(context.Background(), &Input{NumberOfShares: 10})

	assert.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, stdCode(t, err))
}
