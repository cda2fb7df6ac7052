// internal/accounting/metrics.go

// Package accounting is the read side of the funding ledger: pure
// derivations over franchise and share records. Nothing here mutates state,
// and every value is recomputable from the ledger alone. Cached copies are
// denormalized conveniences, never sources of truth.
package accounting

import (
	"math"
	"time"

	"funding-engine/internal/models"
)

// AtRiskWindow is how close to the deadline an under-funded campaign is
// flagged for operator attention.
const AtRiskWindow = 7

// FundingPercentage is how far a campaign has come toward its target,
// rounded to the nearest whole percent and capped at 100.
func FundingPercentage(totalInvested, totalInvestment models.Money) int {
	if totalInvestment <= 0 {
		return 0
	}
	pct := int(math.Round(float64(totalInvested) / float64(totalInvestment) * 100))
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// DaysRemaining is whole days until the funding deadline, rounding partial
// days up. A campaign with no deadline has no remaining-days notion and
// reports 0.
func DaysRemaining(f *models.Franchise, now time.Time) int {
	if f.LaunchEndDate == nil {
		return 0
	}
	left := f.LaunchEndDate.Sub(now)
	if left <= 0 {
		return 0
	}
	days := int(math.Ceil(left.Hours() / 24))
	return days
}

// IsAtRisk flags a campaign inside the warning window that has not yet hit
// its target.
func IsAtRisk(f *models.Franchise, totalInvested models.Money, now time.Time) bool {
	return DaysRemaining(f, now) <= AtRiskWindow &&
		FundingPercentage(totalInvested, f.TotalInvestment()) < 100
}

// OwnershipPercentage is one investor's stake in a franchise, as a
// percentage of total shares.
func OwnershipPercentage(investorShares, totalShares int64) float64 {
	if totalShares <= 0 {
		return 0
	}
	return float64(investorShares) / float64(totalShares) * 100
}
