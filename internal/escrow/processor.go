// internal/escrow/processor.go

// Package escrow holds the funding sweep: the periodic job that resolves
// every campaign whose deadline has passed. Fully funded campaigns move to
// launching; failed ones have every investor refunded through the payment
// rail before the franchise closes. The sweep is idempotent end to end:
// re-running it never double-refunds and never re-resolves a franchise.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"funding-engine/internal/alerting"
	"funding-engine/internal/common/logger"
	"funding-engine/internal/common/metrics"
	"funding-engine/internal/ledger"
	"funding-engine/internal/models"
	"funding-engine/internal/payrail"

	"github.com/google/uuid"
)

// Outcome labels for one franchise in a sweep summary.
const (
	OutcomeLaunching     = "launching"
	OutcomeClosed        = "closed"
	OutcomeRefundPending = "refund_pending"
	OutcomeError         = "error"
)

// FranchiseResult is one franchise's resolution in a sweep pass.
type FranchiseResult struct {
	FranchiseID string `json:"franchiseId"`
	Status      string `json:"status"`
	RefundCount int    `json:"refundCount"`
}

// Summary is the sweep's externally visible output.
type Summary struct {
	ProcessedCount      int               `json:"processedCount"`
	ProcessedFranchises []FranchiseResult `json:"processedFranchises"`
}

// Config tunes one sweep pass.
type Config struct {
	Concurrency int
	EscrowVault string
}

// Processor resolves expired funding campaigns.
type Processor struct {
	store    *ledger.Store
	rail     payrail.Rail
	notifier alerting.Notifier
	config   Config
	logger   logger.Logger
}

func NewProcessor(store *ledger.Store, rail payrail.Rail, notifier alerting.Notifier, config Config, log logger.Logger) *Processor {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &Processor{
		store:    store,
		rail:     rail,
		notifier: notifier,
		config:   config,
		logger:   log.WithFields(map[string]interface{}{"component": "escrow"}),
	}
}

// ProcessExpiredFunding resolves every franchise still in funding whose
// window closed before now. Franchises are processed concurrently up to the
// configured bound; cancellation is honored between franchises, never in
// the middle of one franchise's refund batch.
func (p *Processor) ProcessExpiredFunding(ctx context.Context, now time.Time) (*Summary, error) {
	start := time.Now()
	metrics.SweepRuns.Inc()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	expired, err := p.store.ListExpiredFunding(ctx, p.store.DB(), now)
	if err != nil {
		return nil, fmt.Errorf("list expired funding: %w", err)
	}

	p.logger.Info("sweep started", map[string]interface{}{
		"expiredCount": len(expired),
		"now":          now.Format(time.RFC3339),
	})

	summary := &Summary{ProcessedFranchises: []FranchiseResult{}}
	if len(expired) == 0 {
		return summary, nil
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		sem     = make(chan struct{}, p.config.Concurrency)
		results = make([]FranchiseResult, 0, len(expired))
	)

	for _, f := range expired {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(f *models.Franchise) {
			defer wg.Done()
			defer func() { <-sem }()

			result := p.resolveFranchise(ctx, f)
			metrics.SweepFranchisesResolved.WithLabelValues(result.Status).Inc()

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}(f)
	}
	wg.Wait()

	summary.ProcessedCount = len(results)
	summary.ProcessedFranchises = results

	p.logger.Info("sweep finished", map[string]interface{}{
		"processedCount": summary.ProcessedCount,
		"duration":       time.Since(start).String(),
	})
	return summary, ctx.Err()
}

// resolveFranchise decides one campaign's fate. Fully funded campaigns
// transition without monetary movement; everything else goes through the
// refund path.
func (p *Processor) resolveFranchise(ctx context.Context, f *models.Franchise) FranchiseResult {
	result := FranchiseResult{FranchiseID: f.ID}

	if f.FullyFunded() {
		ok, err := p.store.UpdateStatus(ctx, p.store.DB(), f.ID,
			models.StatusFunding, models.StatusLaunching)
		if err != nil {
			p.logger.Error("launch transition failed", map[string]interface{}{
				"franchiseId": f.ID,
				"error":       err.Error(),
			})
			result.Status = OutcomeError
			return result
		}
		if !ok {
			// Another sweep got here first; nothing to do.
			result.Status = OutcomeLaunching
			return result
		}
		p.logger.Info("campaign fully funded, launching", map[string]interface{}{
			"franchiseId":    f.ID,
			"selectedShares": f.SelectedShares,
		})
		result.Status = OutcomeLaunching
		return result
	}

	return p.refundAndClose(ctx, f)
}

// refundAndClose returns every investor's capital and closes the campaign.
// Each refund is settled independently; the franchise only closes once all
// of them are. A partially refunded franchise stays in funding and the next
// sweep picks up exactly the investors still owed.
func (p *Processor) refundAndClose(ctx context.Context, f *models.Franchise) FranchiseResult {
	result := FranchiseResult{FranchiseID: f.ID}

	holdings, err := p.store.HoldingsForFranchise(ctx, p.store.DB(), f.ID)
	if err != nil {
		p.logger.Error("load holdings failed", map[string]interface{}{
			"franchiseId": f.ID,
			"error":       err.Error(),
		})
		result.Status = OutcomeError
		return result
	}
	settled, err := p.store.SettledInvestors(ctx, p.store.DB(), f.ID)
	if err != nil {
		p.logger.Error("load settled refunds failed", map[string]interface{}{
			"franchiseId": f.ID,
			"error":       err.Error(),
		})
		result.Status = OutcomeError
		return result
	}

	settledCount := 0
	for _, h := range holdings {
		if settled[h.InvestorID] {
			settledCount++
			continue
		}
		if err := p.refundInvestor(ctx, f, h); err != nil {
			if errors.Is(err, errRefundUnresolved) {
				// Money may have left the vault with no receipt recorded.
				// Never re-pay on guesswork; a human reconciles against
				// the rail and settles or fails the row.
				p.alert(ctx, "Refund outcome unknown",
					fmt.Sprintf("franchise %s investor %s: refund row is pending with no receipt; reconcile against the payment rail before retry",
						f.ID, h.InvestorID))
				p.logger.Warn("refund outcome unknown, skipping", map[string]interface{}{
					"franchiseId": f.ID,
					"investorId":  h.InvestorID,
					"amount":      int64(h.Invested),
				})
				continue
			}
			metrics.RefundsFailed.Inc()
			p.logger.Error("refund failed", map[string]interface{}{
				"franchiseId": f.ID,
				"investorId":  h.InvestorID,
				"amount":      int64(h.Invested),
				"error":       err.Error(),
			})
			continue
		}
		metrics.RefundsIssued.Inc()
		settledCount++
		result.RefundCount++
	}

	if settledCount < len(holdings) {
		// Incomplete batch: hold the franchise in funding and tell a human.
		p.alert(ctx, "Refund batch incomplete",
			fmt.Sprintf("franchise %s: %d of %d refunds settled; campaign held in funding for retry",
				f.ID, settledCount, len(holdings)))
		result.Status = OutcomeRefundPending
		return result
	}

	err = p.store.WithTx(ctx, func(tx ledger.DBTX) error {
		if _, err := p.store.DeleteSharesForFranchise(ctx, tx, f.ID); err != nil {
			return err
		}
		if err := p.store.ZeroSelectedShares(ctx, tx, f.ID); err != nil {
			return err
		}
		ok, err := p.store.UpdateStatus(ctx, tx, f.ID, models.StatusFunding, models.StatusClosed)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("franchise %s no longer in funding", f.ID)
		}
		return nil
	})
	if err != nil {
		p.logger.Error("close transition failed", map[string]interface{}{
			"franchiseId": f.ID,
			"error":       err.Error(),
		})
		result.Status = OutcomeError
		return result
	}

	p.logger.Info("campaign closed, all investors refunded", map[string]interface{}{
		"franchiseId": f.ID,
		"refundCount": result.RefundCount,
	})
	result.Status = OutcomeClosed
	return result
}

// errRefundUnresolved marks a refund row whose transfer outcome is unknown:
// the row is pending but this sweep does not hold the claim, so a previous
// attempt may have paid out without recording its receipt.
var errRefundUnresolved = errors.New("refund outcome unresolved")

// refundInvestor settles one investor's refund: claim the idempotency row
// first, then the rail transfer, then the terminal status. The amount is
// exactly the sum of that investor's share records, never a recomputation
// from price. The rail is only reached holding the claim (a freshly inserted
// pending row, or a failed row reclaimed by guarded update), so a
// crash-and-retry or an overlapping sweep can never pay the same investor
// twice.
func (p *Processor) refundInvestor(ctx context.Context, f *models.Franchise, h ledger.InvestorHolding) error {
	refund := &models.Refund{
		ID:          uuid.New().String(),
		FranchiseID: f.ID,
		InvestorID:  h.InvestorID,
		Amount:      h.Invested,
		Shares:      h.Shares,
		Status:      models.RefundPending,
		AttemptedAt: time.Now().UTC(),
	}
	claimed, err := p.store.InsertRefund(ctx, p.store.DB(), refund)
	if err != nil {
		return err
	}
	if !claimed {
		existing, err := p.store.GetRefund(ctx, p.store.DB(), f.ID, h.InvestorID)
		if err != nil {
			return err
		}
		switch existing.Status {
		case models.RefundSettled:
			// Settled after the skip list was loaded; nothing owed.
			return nil
		case models.RefundFailed:
			ok, err := p.store.ReclaimFailedRefund(ctx, p.store.DB(), f.ID, h.InvestorID)
			if err != nil {
				return err
			}
			if !ok {
				return errRefundUnresolved
			}
		default:
			return errRefundUnresolved
		}
	}

	receipt, err := p.rail.Transfer(ctx, p.config.EscrowVault, h.InvestorID, int64(h.Invested))
	if err != nil {
		if markErr := p.store.MarkRefundFailed(ctx, p.store.DB(), f.ID, h.InvestorID, err.Error()); markErr != nil {
			p.logger.Error("mark refund failed errored", map[string]interface{}{
				"franchiseId": f.ID,
				"investorId":  h.InvestorID,
				"error":       markErr.Error(),
			})
		}
		return err
	}

	return p.store.MarkRefundSettled(ctx, p.store.DB(), f.ID, h.InvestorID, receipt.Reference)
}

func (p *Processor) alert(ctx context.Context, subject, message string) {
	if p.notifier == nil {
		return
	}
	p.notifier.Alert(ctx, subject, message)
}
