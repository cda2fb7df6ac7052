// internal/frctoken/issuer.go

// Package frctoken mints a franchise's FRC tokens. Two issuance events
// exist: a one-time initial issuance proportional to invested capital, and
// per-income performance issuances proportional to current token balances.
// The two proportionality bases are deliberately different claims and are
// never mixed. Every issuance conserves supply exactly; an issuance that
// would push circulating past total supply aborts instead of capping.
package frctoken

import (
	"context"
	"fmt"

	"funding-engine/internal/common/errors"
	"funding-engine/internal/common/logger"
	"funding-engine/internal/common/metrics"
	"funding-engine/internal/ledger"
	"funding-engine/internal/models"
)

// Config tunes the token economics.
type Config struct {
	// RevenuePerToken is how many whole currency units of income mint one
	// performance token.
	RevenuePerToken int64
}

// Issuer applies issuance events for all franchises.
type Issuer struct {
	store  *ledger.Store
	config Config
	logger logger.Logger
}

func NewIssuer(store *ledger.Store, config Config, log logger.Logger) *Issuer {
	if config.RevenuePerToken <= 0 {
		config.RevenuePerToken = 100
	}
	return &Issuer{
		store:  store,
		config: config,
		logger: log.WithFields(map[string]interface{}{"component": "frctoken"}),
	}
}

// CreateToken initializes a franchise's token economy with the full supply
// held in reserve. When the economy already exists the stored token is
// returned as-is, so a replayed bootstrap can pick up where it stopped.
func (i *Issuer) CreateToken(ctx context.Context, franchiseID string, totalSupply int64, basePrice models.Money) (*models.FRCToken, error) {
	token, err := models.NewFRCToken(franchiseID, totalSupply, basePrice)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	created, err := i.store.InsertToken(ctx, i.store.DB(), token)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("insert token", err)
	}
	if !created {
		existing, err := i.store.GetToken(ctx, i.store.DB(), franchiseID)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("get token", err)
		}
		return existing, nil
	}
	i.logger.Info("token created", map[string]interface{}{
		"franchiseId": franchiseID,
		"totalSupply": totalSupply,
		"basePrice":   int64(basePrice),
	})
	return token, nil
}

// InitialIssuance credits every investor floor(totalSupply × invested /
// totalInvestment) tokens. It runs exactly once per franchise; the floor's
// remainder stays in reserve.
func (i *Issuer) InitialIssuance(ctx context.Context, franchiseID string) (int64, error) {
	token, err := i.store.GetToken(ctx, i.store.DB(), franchiseID)
	if err != nil {
		if err == ledger.ErrNotFound {
			return 0, errors.NewFranchiseNotFoundError(franchiseID)
		}
		return 0, errors.NewQueryExecutionFailedError("get token", err)
	}
	if token.InitialIssued {
		return 0, errors.NewTokensAlreadyIssuedError(franchiseID)
	}

	f, err := i.store.GetFranchise(ctx, i.store.DB(), franchiseID)
	if err != nil {
		if err == ledger.ErrNotFound {
			return 0, errors.NewFranchiseNotFoundError(franchiseID)
		}
		return 0, errors.NewQueryExecutionFailedError("get franchise", err)
	}
	totalInvestment := f.TotalInvestment()
	if totalInvestment <= 0 {
		return 0, errors.NewValidationError("franchise has no investment target")
	}

	holdings, err := i.store.HoldingsForFranchise(ctx, i.store.DB(), franchiseID)
	if err != nil {
		return 0, errors.NewQueryExecutionFailedError("load holdings", err)
	}

	grants := make([]int64, len(holdings))
	var total int64
	for idx, h := range holdings {
		grants[idx] = token.TotalSupply * int64(h.Invested) / int64(totalInvestment)
		total += grants[idx]
	}

	if err := token.Issue(total); err != nil {
		return 0, errors.NewSupplyInvariantError(err.Error())
	}
	token.InitialIssued = true

	err = i.store.WithTx(ctx, func(tx ledger.DBTX) error {
		for idx, h := range holdings {
			if grants[idx] == 0 {
				continue
			}
			if err := i.store.CreditHolder(ctx, tx, franchiseID, h.InvestorID,
				grants[idx], grants[idx], 0, 0); err != nil {
				return err
			}
		}
		return i.store.SaveToken(ctx, tx, token)
	})
	if err != nil {
		return 0, errors.NewQueryExecutionFailedError("apply initial issuance", err)
	}

	metrics.TokensIssued.WithLabelValues("initial").Add(float64(total))
	i.logger.Info("initial issuance complete", map[string]interface{}{
		"franchiseId": franchiseID,
		"issued":      total,
		"reserve":     token.ReserveSupply,
		"holders":     len(holdings),
	})
	return total, nil
}

// PerformanceIssuance mints floor(incomeUnits / revenuePerToken) tokens for
// one approved income transaction and spreads them across current holders
// in proportion to their existing balances. Returns how many were minted so
// the transaction record can be stamped.
func (i *Issuer) PerformanceIssuance(ctx context.Context, txn *models.FinancialTransaction) (int64, error) {
	if txn.Type != models.TransactionIncome || txn.Status != models.TransactionApproved {
		return 0, errors.NewValidationError("performance issuance requires an approved income transaction")
	}

	token, err := i.store.GetToken(ctx, i.store.DB(), txn.FranchiseID)
	if err != nil {
		if err == ledger.ErrNotFound {
			return 0, errors.NewFranchiseNotFoundError(txn.FranchiseID)
		}
		return 0, errors.NewQueryExecutionFailedError("get token", err)
	}

	toIssue := txn.Amount.Units() / i.config.RevenuePerToken

	holders, err := i.store.HoldersForFranchise(ctx, i.store.DB(), txn.FranchiseID)
	if err != nil {
		return 0, errors.NewQueryExecutionFailedError("load holders", err)
	}

	var grants []int64
	var granted int64
	if toIssue > 0 && len(holders) > 0 && token.CirculatingSupply > 0 {
		grants = make([]int64, len(holders))
		for idx, h := range holders {
			grants[idx] = toIssue * h.TokenBalance / token.CirculatingSupply
			granted += grants[idx]
		}
	}

	// Record the revenue even when nothing mints: pricing tracks every
	// approved transaction, not just token-bearing ones.
	if err := token.Issue(granted); err != nil {
		return 0, errors.NewSupplyInvariantError(err.Error())
	}
	token.RecordRevenue(txn.Type, txn.Amount)

	err = i.store.WithTx(ctx, func(tx ledger.DBTX) error {
		for idx, h := range holders {
			if grants == nil || grants[idx] == 0 {
				continue
			}
			if err := i.store.CreditHolder(ctx, tx, txn.FranchiseID, h.InvestorID,
				grants[idx], 0, grants[idx], 0); err != nil {
				return err
			}
		}
		if err := i.store.SaveToken(ctx, tx, token); err != nil {
			return err
		}
		return i.store.SetTokensIssued(ctx, tx, txn.ID, granted)
	})
	if err != nil {
		return 0, errors.NewQueryExecutionFailedError("apply performance issuance", err)
	}

	metrics.TokensIssued.WithLabelValues("performance").Add(float64(granted))
	i.logger.Info("performance issuance complete", map[string]interface{}{
		"franchiseId":   txn.FranchiseID,
		"transactionId": txn.ID,
		"incomeAmount":  int64(txn.Amount),
		"issued":        granted,
		"tokenPrice":    int64(token.TokenPrice),
	})
	return granted, nil
}

// RecordExpense folds an approved expense into the token aggregates. No
// tokens move; only pricing changes. The applied stamp commits with the
// repricing, so a replayed approval cannot count the expense twice.
func (i *Issuer) RecordExpense(ctx context.Context, txn *models.FinancialTransaction) error {
	if txn.Type != models.TransactionExpense || txn.Status != models.TransactionApproved {
		return errors.NewValidationError("expense recording requires an approved expense transaction")
	}
	token, err := i.store.GetToken(ctx, i.store.DB(), txn.FranchiseID)
	if err != nil {
		if err == ledger.ErrNotFound {
			return errors.NewFranchiseNotFoundError(txn.FranchiseID)
		}
		return errors.NewQueryExecutionFailedError("get token", err)
	}
	token.RecordRevenue(txn.Type, txn.Amount)

	err = i.store.WithTx(ctx, func(tx ledger.DBTX) error {
		ok, err := i.store.MarkTransactionApplied(ctx, tx, txn.ID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("transaction %s already applied", txn.ID)
		}
		return i.store.SaveToken(ctx, tx, token)
	})
	if err != nil {
		return errors.NewQueryExecutionFailedError("record expense", err)
	}
	return nil
}

// Reconcile verifies the holder-side view of circulating supply against the
// token record. A mismatch is a conservation defect; the caller decides
// whether to halt issuance for the franchise.
func (i *Issuer) Reconcile(ctx context.Context, franchiseID string) error {
	token, err := i.store.GetToken(ctx, i.store.DB(), franchiseID)
	if err != nil {
		return errors.NewQueryExecutionFailedError("get token", err)
	}
	holderSum, err := i.store.SumHolderBalances(ctx, i.store.DB(), franchiseID)
	if err != nil {
		return errors.NewQueryExecutionFailedError("sum holder balances", err)
	}
	if holderSum != token.CirculatingSupply {
		return errors.NewConservationError(
			"holder balances do not sum to circulating supply")
	}
	return nil
}
