// internal/distribution/engine.go

// Package distribution routes approved income between capital recovery and
// investor dividends. Until a franchise's build-out capital is repaid, half
// of every income event goes to recovery (capped by what is still owed);
// once fully recovered, everything flows to dividends permanently.
package distribution

import (
	"context"
	"fmt"
	"time"

	"funding-engine/internal/common/errors"
	"funding-engine/internal/common/logger"
	"funding-engine/internal/common/metrics"
	"funding-engine/internal/ledger"
	"funding-engine/internal/models"
	"funding-engine/internal/payrail"
)

// Config tunes the split policy.
type Config struct {
	// CapitalRecoveryPercent of each income event is routed to capital
	// recovery while capital is outstanding.
	CapitalRecoveryPercent int64
	// FranchiseVault is the rail account dividends are paid out from.
	FranchiseVault string
}

// Result summarizes one distribution.
type Result struct {
	FranchiseID      string       `json:"franchiseId"`
	Amount           models.Money `json:"amount"`
	CapitalRecovery  models.Money `json:"capitalRecovery"`
	DividendAmount   models.Money `json:"dividendAmount"`
	FullyRecovered   bool         `json:"fullyRecovered"`
	InvestorAccruals int          `json:"investorAccruals"`
}

// Engine applies revenue distributions and dividend claims.
type Engine struct {
	store  *ledger.Store
	rail   payrail.Rail
	config Config
	locks  *franchiseLocks
	logger logger.Logger
}

func NewEngine(store *ledger.Store, rail payrail.Rail, config Config, log logger.Logger) *Engine {
	if config.CapitalRecoveryPercent <= 0 || config.CapitalRecoveryPercent > 100 {
		config.CapitalRecoveryPercent = 50
	}
	return &Engine{
		store:  store,
		rail:   rail,
		config: config,
		locks:  newFranchiseLocks(),
		logger: log.WithFields(map[string]interface{}{"component": "distribution"}),
	}
}

// Distribute routes one approved income transaction. The split and every
// per-investor accrual commit in a single ledger transaction; conservation
// holds exactly at both levels (split sums to amount, accruals sum to the
// dividend pool).
func (e *Engine) Distribute(ctx context.Context, txn *models.FinancialTransaction) (*Result, error) {
	if txn.Type != models.TransactionIncome {
		return nil, errors.NewValidationError("only income transactions are distributable")
	}
	if txn.Status != models.TransactionApproved {
		return nil, errors.NewValidationError("only approved transactions are distributable")
	}
	if txn.Amount <= 0 {
		return nil, errors.NewValidationError("distribution amount must be positive")
	}

	lock := e.locks.get(txn.FranchiseID)
	lock.Lock()
	defer lock.Unlock()

	f, err := e.store.GetFranchise(ctx, e.store.DB(), txn.FranchiseID)
	if err != nil {
		if err == ledger.ErrNotFound {
			return nil, errors.NewFranchiseNotFoundError(txn.FranchiseID)
		}
		return nil, errors.NewQueryExecutionFailedError("get franchise", err)
	}
	if f.Status != models.StatusActive {
		return nil, errors.NewFranchiseNotActiveError(f.ID, string(f.Status))
	}

	remaining := f.RemainingCapital()
	capitalRecovery := models.MulDiv(txn.Amount, e.config.CapitalRecoveryPercent, 100)
	if capitalRecovery > remaining {
		capitalRecovery = remaining
	}
	dividends := txn.Amount - capitalRecovery

	holdings, err := e.store.HoldingsForFranchise(ctx, e.store.DB(), f.ID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("load holdings", err)
	}

	var perInvestor []models.Money
	if dividends > 0 && len(holdings) > 0 {
		weights := make([]int64, len(holdings))
		for i, h := range holdings {
			weights[i] = h.Shares
		}
		perInvestor, err = models.Allocate(dividends, weights)
		if err != nil {
			return nil, errors.NewConservationError(err.Error())
		}
	}

	err = e.store.WithTx(ctx, func(tx ledger.DBTX) error {
		// The applied stamp commits with the split itself; losing it here
		// means another attempt already distributed this transaction, and
		// the whole transaction rolls back instead of double-counting.
		ok, err := e.store.MarkTransactionApplied(ctx, tx, txn.ID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("transaction %s already distributed", txn.ID)
		}
		if err := e.store.ApplyRevenue(ctx, tx, f.ID, txn.Amount, capitalRecovery, dividends); err != nil {
			return err
		}
		for i, h := range holdings {
			if perInvestor == nil || perInvestor[i] == 0 {
				continue
			}
			if err := e.store.AccrueDividend(ctx, tx, f.ID, h.InvestorID, perInvestor[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("apply distribution", err)
	}

	metrics.RevenueDistributed.WithLabelValues("capital_recovery").Add(float64(capitalRecovery))
	metrics.RevenueDistributed.WithLabelValues("dividends").Add(float64(dividends))

	result := &Result{
		FranchiseID:      f.ID,
		Amount:           txn.Amount,
		CapitalRecovery:  capitalRecovery,
		DividendAmount:   dividends,
		FullyRecovered:   f.CapitalRecovered+capitalRecovery >= f.TotalInvestment(),
		InvestorAccruals: len(holdings),
	}

	e.logger.Info("revenue distributed", map[string]interface{}{
		"franchiseId":     f.ID,
		"transactionId":   txn.ID,
		"amount":          int64(txn.Amount),
		"capitalRecovery": int64(capitalRecovery),
		"dividends":       int64(dividends),
		"fullyRecovered":  result.FullyRecovered,
	})
	return result, nil
}

// Claim pays out an investor's pending dividends. A zero amount claims the
// full pending balance. The debit is a guarded update against the accrual
// ledger, so two concurrent claims cannot both succeed on the same balance.
func (e *Engine) Claim(ctx context.Context, franchiseID, investorID string, amount models.Money) (models.Money, error) {
	if amount < 0 {
		return 0, errors.NewValidationError("claim amount must not be negative")
	}

	balance, err := e.store.GetDividendBalance(ctx, e.store.DB(), franchiseID, investorID)
	if err != nil {
		if err == ledger.ErrNotFound {
			return 0, errors.NewClaimExceedsBalanceError("no dividend balance for investor")
		}
		return 0, errors.NewQueryExecutionFailedError("get dividend balance", err)
	}
	if amount == 0 {
		amount = balance.Pending()
	}
	if amount <= 0 || amount > balance.Pending() {
		return 0, errors.NewClaimExceedsBalanceError(
			"pending: " + balance.Pending().String() + ", requested: " + amount.String())
	}

	// Debit first: only a successfully reserved amount ever reaches the rail.
	err = e.store.WithTx(ctx, func(tx ledger.DBTX) error {
		ok, err := e.store.ClaimDividend(ctx, tx, franchiseID, investorID, amount)
		if err != nil {
			return err
		}
		if !ok {
			return errors.NewClaimExceedsBalanceError("balance changed concurrently")
		}
		ok, err = e.store.ReducePendingDividends(ctx, tx, franchiseID, amount)
		if err != nil {
			return err
		}
		if !ok {
			return errors.NewConservationError("franchise dividend pool below claimed amount")
		}
		return nil
	})
	if err != nil {
		if stdErr, isStd := err.(*errors.StandardError); isStd {
			return 0, stdErr
		}
		return 0, errors.NewQueryExecutionFailedError("claim dividend", err)
	}

	receipt, err := e.rail.Transfer(ctx, e.config.FranchiseVault, investorID, int64(amount))
	if err != nil {
		// Compensate the reserved debit so the investor can claim again.
		creditErr := e.store.WithTx(ctx, func(tx ledger.DBTX) error {
			if _, cErr := tx.ExecContext(ctx, `
				UPDATE dividend_balances SET claimed = claimed - $3
				WHERE franchise_id = $1 AND investor_id = $2`,
				franchiseID, investorID, amount); cErr != nil {
				return cErr
			}
			_, cErr := tx.ExecContext(ctx, `
				UPDATE franchises SET pending_dividends = pending_dividends + $2, updated_at = $3
				WHERE id = $1`, franchiseID, amount, time.Now().UTC())
			return cErr
		})
		if creditErr != nil {
			e.logger.Error("claim compensation failed, manual review required", map[string]interface{}{
				"franchiseId": franchiseID,
				"investorId":  investorID,
				"amount":      int64(amount),
				"error":       creditErr.Error(),
			})
		}
		return 0, err
	}

	e.logger.Info("dividends claimed", map[string]interface{}{
		"franchiseId": franchiseID,
		"investorId":  investorID,
		"amount":      int64(amount),
		"receipt":     receipt.Reference,
	})
	return amount, nil
}
