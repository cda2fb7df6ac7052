// internal/workers/funding/funding-statistics/handler_test.go
package fundingstatistics

import (
	"context"
	"testing"
	"time"

	"funding-engine/internal/accounting"
	"funding-engine/internal/common/logger"
	"funding-engine/internal/ledger"
	"funding-engine/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	log := logger.NewNoOpLogger()
	reporter := accounting.NewReporter(ledger.NewStore(db), rdb, time.Minute, log)
	return NewHandler(LoadConfig(), reporter, log), mock
}

func progressRows() *sqlmock.Rows {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	farEnd := time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "business_id", "name", "carpet_area", "cost_per_area", "total_shares",
		"selected_shares", "launch_start_date", "launch_end_date", "status",
		"total_revenue", "capital_recovered", "pending_dividends", "created_at", "updated_at",
		"total_invested",
	})
	// Fully funded: 50,000-unit target, 50,000 raised.
	rows.AddRow("franchise-001", "business-001", "Downtown Outlet", int64(500),
		models.MoneyFromUnits(100), int64(1000), int64(1000), created, farEnd,
		models.StatusFunding, models.Money(0), models.Money(0), models.Money(0),
		created, created, int64(models.MoneyFromUnits(50000)))
	// 40% funded with a distant deadline.
	rows.AddRow("franchise-002", "business-002", "Harbor Outlet", int64(500),
		models.MoneyFromUnits(100), int64(1000), int64(400), created, farEnd,
		models.StatusFunding, models.Money(0), models.Money(0), models.Money(0),
		created, created, int64(models.MoneyFromUnits(20000)))
	return rows
}

// ==========================
// Report
// ==========================

func TestExecute_AggregatesPortfolio(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery(`SELECT f\.id, .* FROM franchises f`).
		WithArgs(models.StatusFunding).
		WillReturnRows(progressRows())

	output, err := h.Execute(context.Background(), &Input{})

	assert.NoError(t, err)
	assert.Equal(t, 2, output.Statistics.TotalCampaigns)
	assert.Equal(t, 1, output.Statistics.SuccessfulCampaigns)
	assert.Equal(t, 0, output.Statistics.AtRiskCampaigns)
	assert.Equal(t, 0, output.Statistics.ExpiredCampaigns)
	assert.Equal(t, models.MoneyFromUnits(100000), output.Statistics.TotalFundingTarget)
	assert.Equal(t, models.MoneyFromUnits(70000), output.Statistics.TotalFundingRaised)
	assert.Equal(t, float64(70), output.Statistics.AverageFundingPercentage)
	assert.Nil(t, output.NearingDeadline)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_SecondCallServedFromCache(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery(`SELECT f\.id, .* FROM franchises f`).
		WithArgs(models.StatusFunding).
		WillReturnRows(progressRows())

	first, err := h.Execute(context.Background(), &Input{})
	assert.NoError(t, err)

	// No second query expectation: a repeat hit must come from Redis.
	second, err := h.Execute(context.Background(), &Input{})
	assert.NoError(t, err)
	assert.Equal(t, first.Statistics, second.Statistics)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_IncludesDeadlineReport(t *testing.T) {
	h, mock := newTestHandler(t)

	mock.ExpectQuery(`SELECT f\.id, .* FROM franchises f`).
		WithArgs(models.StatusFunding).
		WillReturnRows(progressRows())
	// The deadline report recomputes from the same progress view.
	mock.ExpectQuery(`SELECT f\.id, .* FROM franchises f`).
		WithArgs(models.StatusFunding).
		WillReturnRows(progressRows())

	output, err := h.Execute(context.Background(), &Input{IncludeDeadlines: true})

	assert.NoError(t, err)
	assert.NotNil(t, output.Statistics)
	// Both campaigns are decades from their deadline.
	assert.Empty(t, output.NearingDeadline)
	assert.NoError(t, mock.ExpectationsWereMet())
}
