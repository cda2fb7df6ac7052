// internal/payrail/rail.go

// Package payrail abstracts the external payment rail (the on-chain token
// program in production). Transfers are slow and can fail; callers always
// go through RetryingRail, which owns the backoff policy, and treat a
// returned error as terminal for this attempt.
package payrail

import (
	"context"
	"time"

	"funding-engine/internal/common/logger"

	"github.com/google/uuid"
)

// Receipt is the rail's proof of a settled transfer.
type Receipt struct {
	Reference     string    `json:"reference"`
	FromVault     string    `json:"fromVault"`
	ToWallet      string    `json:"toWallet"`
	TransferredAt time.Time `json:"transferredAt"`
}

// Rail moves funds between a vault and an investor wallet. Amounts are in
// minor units; the rail adapter owns any conversion to the native token's
// fractional precision.
type Rail interface {
	Transfer(ctx context.Context, fromVault, toWallet string, amount int64) (*Receipt, error)
}

// SimulatedRail settles transfers locally and is the default rail outside
// production, where the real token program is reached through its gateway.
type SimulatedRail struct {
	logger logger.Logger
}

func NewSimulatedRail(log logger.Logger) *SimulatedRail {
	return &SimulatedRail{
		logger: log.WithFields(map[string]interface{}{"component": "payrail"}),
	}
}

func (r *SimulatedRail) Transfer(ctx context.Context, fromVault, toWallet string, amount int64) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	receipt := &Receipt{
		Reference:     uuid.New().String(),
		FromVault:     fromVault,
		ToWallet:      toWallet,
		TransferredAt: time.Now().UTC(),
	}
	r.logger.Info("transfer settled", map[string]interface{}{
		"reference": receipt.Reference,
		"fromVault": fromVault,
		"toWallet":  toWallet,
		"amount":    amount,
	})
	return receipt, nil
}
