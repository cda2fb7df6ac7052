// internal/campaign/machine.go

// Package campaign drives a franchise through its funding lifecycle:
// pending_approval → funding → launching → active → closed, with rejection
// and failed-funding paths terminating in closed. All transitions are
// validated against a single table and applied with guarded updates, so a
// concurrent actor racing on the same franchise loses cleanly instead of
// corrupting state.
package campaign

import (
	"context"
	"time"

	"funding-engine/internal/common/errors"
	"funding-engine/internal/common/logger"
	"funding-engine/internal/ledger"
	"funding-engine/internal/models"
)

// allowed is the transition table. Anything absent is an invariant
// violation, not a retryable condition.
var allowed = map[models.FranchiseStatus][]models.FranchiseStatus{
	models.StatusPendingApproval: {models.StatusFunding, models.StatusClosed},
	models.StatusFunding:         {models.StatusLaunching, models.StatusClosed},
	models.StatusLaunching:       {models.StatusActive},
	models.StatusActive:          {models.StatusClosed},
}

// CanTransition reports whether from → to appears in the transition table.
func CanTransition(from, to models.FranchiseStatus) bool {
	for _, t := range allowed[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Machine applies lifecycle transitions against the ledger.
type Machine struct {
	store  *ledger.Store
	logger logger.Logger
	now    func() time.Time
}

func NewMachine(store *ledger.Store, log logger.Logger) *Machine {
	return &Machine{
		store:  store,
		logger: log.WithFields(map[string]interface{}{"component": "campaign"}),
		now:    time.Now,
	}
}

// Approve opens the funding window: pending_approval → funding. A zero end
// time gets the default 90-day window from start; a zero start means now.
func (m *Machine) Approve(ctx context.Context, franchiseID string, start, end time.Time) (*models.Franchise, error) {
	f, err := m.store.GetFranchise(ctx, m.store.DB(), franchiseID)
	if err != nil {
		if err == ledger.ErrNotFound {
			return nil, errors.NewFranchiseNotFoundError(franchiseID)
		}
		return nil, errors.NewQueryExecutionFailedError("get franchise", err)
	}
	if f.Status != models.StatusPendingApproval {
		return nil, errors.NewInvalidStatusTransitionError(string(f.Status), string(models.StatusFunding))
	}

	if start.IsZero() {
		start = m.now().UTC()
	}
	if end.IsZero() {
		end = start.Add(models.DefaultFundingWindow)
	}
	if !end.After(start) {
		return nil, errors.NewValidationError("launchEndDate must be after launchStartDate")
	}

	ok, err := m.store.ApproveFranchise(ctx, m.store.DB(), franchiseID, start, end)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("approve franchise", err)
	}
	if !ok {
		return nil, errors.NewInvalidStatusTransitionError(string(f.Status), string(models.StatusFunding))
	}

	m.logger.Info("campaign approved", map[string]interface{}{
		"franchiseId":     franchiseID,
		"launchStartDate": start.Format(time.RFC3339),
		"launchEndDate":   end.Format(time.RFC3339),
	})

	f.Status = models.StatusFunding
	f.LaunchStartDate = &start
	f.LaunchEndDate = &end
	return f, nil
}

// Reject closes a campaign before it ever opened. Rejection with shares
// sold would strand investor capital and is refused outright.
func (m *Machine) Reject(ctx context.Context, franchiseID, reason string) error {
	f, err := m.store.GetFranchise(ctx, m.store.DB(), franchiseID)
	if err != nil {
		if err == ledger.ErrNotFound {
			return errors.NewFranchiseNotFoundError(franchiseID)
		}
		return errors.NewQueryExecutionFailedError("get franchise", err)
	}
	if f.Status != models.StatusPendingApproval {
		return errors.NewInvalidStatusTransitionError(string(f.Status), string(models.StatusClosed))
	}
	if f.SelectedShares != 0 {
		return errors.NewConservationError("cannot reject a campaign with sold shares")
	}

	ok, err := m.transition(ctx, franchiseID, models.StatusPendingApproval, models.StatusClosed)
	if err != nil {
		return err
	}
	if !ok {
		return errors.NewInvalidStatusTransitionError(string(f.Status), string(models.StatusClosed))
	}

	m.logger.Info("campaign rejected", map[string]interface{}{
		"franchiseId": franchiseID,
		"reason":      reason,
	})
	return nil
}

// MarkLaunching moves a fully funded campaign to launching ahead of its
// deadline. The deadline-expiry path runs through the escrow sweep instead.
func (m *Machine) MarkLaunching(ctx context.Context, franchiseID string) error {
	f, err := m.store.GetFranchise(ctx, m.store.DB(), franchiseID)
	if err != nil {
		if err == ledger.ErrNotFound {
			return errors.NewFranchiseNotFoundError(franchiseID)
		}
		return errors.NewQueryExecutionFailedError("get franchise", err)
	}
	if f.Status != models.StatusFunding {
		return errors.NewInvalidStatusTransitionError(string(f.Status), string(models.StatusLaunching))
	}
	if !f.FullyFunded() {
		return errors.NewValidationError("campaign is not fully funded")
	}

	ok, err := m.transition(ctx, franchiseID, models.StatusFunding, models.StatusLaunching)
	if err != nil {
		return err
	}
	if !ok {
		return errors.NewInvalidStatusTransitionError(string(f.Status), string(models.StatusLaunching))
	}

	m.logger.Info("campaign fully funded, launching", map[string]interface{}{
		"franchiseId":    franchiseID,
		"selectedShares": f.SelectedShares,
	})
	return nil
}

// Activate marks the location operational: launching → active. An already
// active franchise is left alone, so an at-least-once caller can replay the
// go-live and resume whatever follow-up its first attempt left unfinished.
func (m *Machine) Activate(ctx context.Context, franchiseID string) error {
	f, err := m.store.GetFranchise(ctx, m.store.DB(), franchiseID)
	if err != nil {
		if err == ledger.ErrNotFound {
			return errors.NewFranchiseNotFoundError(franchiseID)
		}
		return errors.NewQueryExecutionFailedError("get franchise", err)
	}
	if f.Status == models.StatusActive {
		return nil
	}
	if f.Status != models.StatusLaunching {
		return errors.NewInvalidStatusTransitionError(string(f.Status), string(models.StatusActive))
	}

	ok, err := m.transition(ctx, franchiseID, models.StatusLaunching, models.StatusActive)
	if err != nil {
		return err
	}
	if !ok {
		// Lost the race; launching only ever moves to active.
		return nil
	}
	m.logger.Info("franchise activated", map[string]interface{}{"franchiseId": franchiseID})
	return nil
}

// Close retires an operating franchise: active → closed.
func (m *Machine) Close(ctx context.Context, franchiseID string) error {
	ok, err := m.transition(ctx, franchiseID, models.StatusActive, models.StatusClosed)
	if err != nil {
		return err
	}
	if !ok {
		return errors.NewInvalidStatusTransitionError(string(models.StatusActive), string(models.StatusClosed))
	}
	m.logger.Info("franchise closed", map[string]interface{}{"franchiseId": franchiseID})
	return nil
}

func (m *Machine) transition(ctx context.Context, franchiseID string, from, to models.FranchiseStatus) (bool, error) {
	if !CanTransition(from, to) {
		return false, errors.NewInvalidStatusTransitionError(string(from), string(to))
	}
	ok, err := m.store.UpdateStatus(ctx, m.store.DB(), franchiseID, from, to)
	if err != nil {
		return false, errors.NewQueryExecutionFailedError("update status", err)
	}
	return ok, nil
}
