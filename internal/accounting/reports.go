// internal/accounting/reports.go
package accounting

import (
	"context"
	"encoding/json"
	"time"

	"funding-engine/internal/common/logger"
	"funding-engine/internal/ledger"
	"funding-engine/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	fundingStatsCacheKey   = "reports:funding-statistics"
	deadlineReportCacheKey = "reports:nearing-deadline"
)

// FundingStatistics is the portfolio-wide view of all open campaigns.
type FundingStatistics struct {
	TotalCampaigns           int          `json:"totalCampaigns"`
	SuccessfulCampaigns      int          `json:"successfulCampaigns"`
	AtRiskCampaigns          int          `json:"atRiskCampaigns"`
	ExpiredCampaigns         int          `json:"expiredCampaigns"`
	TotalFundingTarget       models.Money `json:"totalFundingTarget"`
	TotalFundingRaised       models.Money `json:"totalFundingRaised"`
	AverageFundingPercentage float64      `json:"averageFundingPercentage"`
}

// DeadlineEntry is one campaign approaching its funding deadline.
type DeadlineEntry struct {
	FranchiseID       string       `json:"franchiseId"`
	Name              string       `json:"name"`
	DaysRemaining     int          `json:"daysRemaining"`
	FundingPercentage int          `json:"fundingPercentage"`
	IsAtRisk          bool         `json:"isAtRisk"`
	TotalInvestment   models.Money `json:"totalInvestment"`
	TotalRaised       models.Money `json:"totalRaised"`
}

// InvestmentPosition is one investor's stake in one franchise.
type InvestmentPosition struct {
	FranchiseID         string       `json:"franchiseId"`
	InvestorID          string       `json:"investorId"`
	Shares              int64        `json:"shares"`
	Invested            models.Money `json:"invested"`
	OwnershipPercentage float64      `json:"ownershipPercentage"`
}

// InvestmentSummary is one investor's portfolio across all franchises.
type InvestmentSummary struct {
	InvestorID    string               `json:"investorId"`
	TotalInvested models.Money         `json:"totalInvested"`
	TotalShares   int64                `json:"totalShares"`
	Positions     []InvestmentPosition `json:"positions"`
}

// InvestmentTracking is the investor breakdown of one franchise campaign.
type InvestmentTracking struct {
	FranchiseID       string               `json:"franchiseId"`
	Status            string               `json:"status"`
	TotalInvestment   models.Money         `json:"totalInvestment"`
	TotalRaised       models.Money         `json:"totalRaised"`
	FundingPercentage int                  `json:"fundingPercentage"`
	DaysRemaining     int                  `json:"daysRemaining"`
	Investors         []InvestmentPosition `json:"investors"`
}

// Reporter serves the admin read surface. Reports are recomputed from the
// ledger and cached in Redis for the configured TTL; a cache miss or a
// Redis outage degrades to a direct recompute, never to an error.
type Reporter struct {
	store  *ledger.Store
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
	now    func() time.Time
}

func NewReporter(store *ledger.Store, rdb *redis.Client, ttl time.Duration, log logger.Logger) *Reporter {
	return &Reporter{
		store:  store,
		redis:  rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "accounting"}),
		now:    time.Now,
	}
}

func (r *Reporter) GetFundingStatistics(ctx context.Context) (*FundingStatistics, error) {
	if cached, ok := r.fromCache(ctx, fundingStatsCacheKey); ok {
		var stats FundingStatistics
		if err := json.Unmarshal(cached, &stats); err == nil {
			return &stats, nil
		}
	}

	progress, err := r.store.ListFundingProgress(ctx, r.store.DB())
	if err != nil {
		return nil, err
	}

	now := r.now()
	stats := &FundingStatistics{TotalCampaigns: len(progress)}
	var pctSum float64
	for _, p := range progress {
		target := p.Franchise.TotalInvestment()
		pct := FundingPercentage(p.TotalInvested, target)
		stats.TotalFundingTarget += target
		stats.TotalFundingRaised += p.TotalInvested
		pctSum += float64(pct)

		switch {
		case pct >= 100:
			stats.SuccessfulCampaigns++
		case p.Franchise.Expired(now):
			stats.ExpiredCampaigns++
		case IsAtRisk(p.Franchise, p.TotalInvested, now):
			stats.AtRiskCampaigns++
		}
	}
	if len(progress) > 0 {
		stats.AverageFundingPercentage = pctSum / float64(len(progress))
	}

	r.toCache(ctx, fundingStatsCacheKey, stats)
	return stats, nil
}

func (r *Reporter) GetFranchisesNearingDeadline(ctx context.Context) ([]DeadlineEntry, error) {
	if cached, ok := r.fromCache(ctx, deadlineReportCacheKey); ok {
		var entries []DeadlineEntry
		if err := json.Unmarshal(cached, &entries); err == nil {
			return entries, nil
		}
	}

	progress, err := r.store.ListFundingProgress(ctx, r.store.DB())
	if err != nil {
		return nil, err
	}

	now := r.now()
	entries := []DeadlineEntry{}
	for _, p := range progress {
		days := DaysRemaining(p.Franchise, now)
		if days > AtRiskWindow {
			continue
		}
		target := p.Franchise.TotalInvestment()
		entries = append(entries, DeadlineEntry{
			FranchiseID:       p.Franchise.ID,
			Name:              p.Franchise.Name,
			DaysRemaining:     days,
			FundingPercentage: FundingPercentage(p.TotalInvested, target),
			IsAtRisk:          IsAtRisk(p.Franchise, p.TotalInvested, now),
			TotalInvestment:   target,
			TotalRaised:       p.TotalInvested,
		})
	}

	r.toCache(ctx, deadlineReportCacheKey, entries)
	return entries, nil
}

// GetInvestmentSummary is never cached: an investor checking their
// portfolio right after a purchase must see it.
func (r *Reporter) GetInvestmentSummary(ctx context.Context, investorID string) (*InvestmentSummary, error) {
	shares, err := r.store.SharesByInvestor(ctx, r.store.DB(), investorID)
	if err != nil {
		return nil, err
	}

	summary := &InvestmentSummary{InvestorID: investorID, Positions: []InvestmentPosition{}}

	// One investor can buy into the same campaign more than once; collapse
	// records per franchise before computing ownership.
	byFranchise := map[string]*InvestmentPosition{}
	var order []string
	for _, sh := range shares {
		pos, ok := byFranchise[sh.FranchiseID]
		if !ok {
			pos = &InvestmentPosition{FranchiseID: sh.FranchiseID, InvestorID: investorID}
			byFranchise[sh.FranchiseID] = pos
			order = append(order, sh.FranchiseID)
		}
		pos.Shares += sh.NumberOfShares
		pos.Invested += sh.Amount()
		summary.TotalShares += sh.NumberOfShares
		summary.TotalInvested += sh.Amount()
	}

	for _, franchiseID := range order {
		pos := byFranchise[franchiseID]
		f, err := r.store.GetFranchise(ctx, r.store.DB(), franchiseID)
		if err != nil {
			return nil, err
		}
		pos.OwnershipPercentage = OwnershipPercentage(pos.Shares, f.TotalShares)
		summary.Positions = append(summary.Positions, *pos)
	}
	return summary, nil
}

func (r *Reporter) GetInvestmentTracking(ctx context.Context, franchiseID string) (*InvestmentTracking, error) {
	f, err := r.store.GetFranchise(ctx, r.store.DB(), franchiseID)
	if err != nil {
		return nil, err
	}
	holdings, err := r.store.HoldingsForFranchise(ctx, r.store.DB(), franchiseID)
	if err != nil {
		return nil, err
	}

	tracking := &InvestmentTracking{
		FranchiseID:     franchiseID,
		Status:          string(f.Status),
		TotalInvestment: f.TotalInvestment(),
		DaysRemaining:   DaysRemaining(f, r.now()),
		Investors:       []InvestmentPosition{},
	}
	for _, h := range holdings {
		tracking.TotalRaised += h.Invested
		tracking.Investors = append(tracking.Investors, InvestmentPosition{
			FranchiseID:         franchiseID,
			InvestorID:          h.InvestorID,
			Shares:              h.Shares,
			Invested:            h.Invested,
			OwnershipPercentage: OwnershipPercentage(h.Shares, f.TotalShares),
		})
	}
	tracking.FundingPercentage = FundingPercentage(tracking.TotalRaised, tracking.TotalInvestment)
	return tracking, nil
}

func (r *Reporter) fromCache(ctx context.Context, key string) ([]byte, bool) {
	if r.redis == nil {
		return nil, false
	}
	val, err := r.redis.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	return []byte(val), true
}

func (r *Reporter) toCache(ctx context.Context, key string, v interface{}) {
	if r.redis == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := r.redis.Set(ctx, key, data, r.ttl).Err(); err != nil {
		r.logger.Warn("report cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}
