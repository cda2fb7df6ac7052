// internal/models/frctoken.go
package models

import (
	"fmt"
	"time"
)

// FRCToken is the per-franchise token economy. The supply invariant
// CirculatingSupply + ReserveSupply == TotalSupply holds at all times; an
// issuance that would break it is rejected, never clamped.
type FRCToken struct {
	FranchiseID       string `json:"franchiseId"`
	TotalSupply       int64  `json:"totalSupply"`
	CirculatingSupply int64  `json:"circulatingSupply"`
	ReserveSupply     int64  `json:"reserveSupply"`

	TotalRevenue  Money `json:"totalRevenue"`
	TotalExpenses Money `json:"totalExpenses"`
	NetProfit     Money `json:"netProfit"`
	BasePrice     Money `json:"basePrice"`
	TokenPrice    Money `json:"tokenPrice"`
	MarketCap     Money `json:"marketCap"`

	InitialIssued bool      `json:"initialIssued"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func NewFRCToken(franchiseID string, totalSupply int64, basePrice Money) (*FRCToken, error) {
	if franchiseID == "" {
		return nil, fmt.Errorf("token requires franchiseId")
	}
	if totalSupply <= 0 {
		return nil, fmt.Errorf("totalSupply must be positive, got %d", totalSupply)
	}
	if basePrice < 0 {
		return nil, fmt.Errorf("basePrice must not be negative, got %d", basePrice)
	}
	now := time.Now().UTC()
	return &FRCToken{
		FranchiseID:   franchiseID,
		TotalSupply:   totalSupply,
		ReserveSupply: totalSupply,
		BasePrice:     basePrice,
		TokenPrice:    basePrice,
		MarketCap:     basePrice.Mul(totalSupply),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Issue moves n tokens from reserve into circulation. An issuance larger
// than the reserve would push circulating past total supply; that signals a
// modeling bug upstream, so it fails rather than capping.
func (t *FRCToken) Issue(n int64) error {
	if n < 0 {
		return fmt.Errorf("cannot issue negative token count %d", n)
	}
	if n > t.ReserveSupply {
		return fmt.Errorf("issuing %d tokens exceeds reserve %d (total supply %d)", n, t.ReserveSupply, t.TotalSupply)
	}
	t.ReserveSupply -= n
	t.CirculatingSupply += n
	return nil
}

// SupplyInvariantOK reports circulating + reserve == total.
func (t *FRCToken) SupplyInvariantOK() bool {
	return t.CirculatingSupply+t.ReserveSupply == t.TotalSupply
}

// RecordRevenue folds an approved transaction into the rolling aggregates
// and reprices the token off net profit per unit of supply.
func (t *FRCToken) RecordRevenue(txType TransactionType, amount Money) {
	switch txType {
	case TransactionIncome:
		t.TotalRevenue += amount
	case TransactionExpense:
		t.TotalExpenses += amount
	}
	t.NetProfit = t.TotalRevenue - t.TotalExpenses
	price := t.BasePrice + MulDiv(t.NetProfit, 1, t.TotalSupply)
	if price < 0 {
		price = 0
	}
	t.TokenPrice = price
	t.MarketCap = t.TokenPrice.Mul(t.TotalSupply)
	t.UpdatedAt = time.Now().UTC()
}

// FRCHolder is one investor's token balance within a franchise. The sum of
// TokenBalance across a franchise's holders equals its CirculatingSupply.
type FRCHolder struct {
	FranchiseID string `json:"franchiseId"`
	InvestorID  string `json:"investorId"`

	TokenBalance  int64 `json:"tokenBalance"`
	TotalEarned   int64 `json:"totalEarned"`
	TotalRedeemed int64 `json:"totalRedeemed"`

	InvestmentTokens  int64 `json:"investmentTokens"`
	PerformanceTokens int64 `json:"performanceTokens"`
	BonusTokens       int64 `json:"bonusTokens"`
}
