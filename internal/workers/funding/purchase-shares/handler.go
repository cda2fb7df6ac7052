// internal/workers/funding/purchase-shares/handler.go
package purchaseshares

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"funding-engine/internal/campaign"
	"funding-engine/internal/common/errors"
	"funding-engine/internal/common/logger"
	"funding-engine/internal/ledger"
	"funding-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "purchase-shares"
)

// Handler records an investor's share purchase. The capacity reservation
// and the share record commit atomically, so the sum of share records
// always equals the franchise's selectedShares. A purchase that sells the
// last share also moves the campaign to Launching.
type Handler struct {
	config       *Config
	store        *ledger.Store
	machine      *campaign.Machine
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, store *ledger.Store, machine *campaign.Machine, log logger.Logger) *Handler {
	return &Handler{
		config:       config,
		store:        store,
		machine:      machine,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errorHandler.HandleJobError(ctx, client, job,
			errors.NewValidationError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.FranchiseID == "" || input.InvestorID == "" {
		return nil, errors.NewValidationError("franchiseId and investorId are required")
	}
	if input.NumberOfShares <= 0 {
		return nil, errors.NewValidationError(
			fmt.Sprintf("numberOfShares must be positive, got %d", input.NumberOfShares))
	}
	if h.config.MaxSharesPerPurchase > 0 && input.NumberOfShares > h.config.MaxSharesPerPurchase {
		return nil, errors.NewValidationError(
			fmt.Sprintf("numberOfShares %d exceeds purchase cap %d",
				input.NumberOfShares, h.config.MaxSharesPerPurchase))
	}

	f, err := h.store.GetFranchise(ctx, h.store.DB(), input.FranchiseID)
	if err != nil {
		if err == ledger.ErrNotFound {
			return nil, errors.NewFranchiseNotFoundError(input.FranchiseID)
		}
		return nil, errors.NewQueryExecutionFailedError("get franchise", err)
	}
	if f.Status != models.StatusFunding {
		return nil, errors.NewFranchiseNotFundingError(input.FranchiseID, string(f.Status))
	}

	share, err := models.NewShare(uuid.New().String(), input.FranchiseID, input.InvestorID,
		input.NumberOfShares, f.CostPerShare())
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	share.PurchaseDate = time.Now().UTC()

	err = h.store.WithTx(ctx, func(tx ledger.DBTX) error {
		ok, err := h.store.ReserveShares(ctx, tx, input.FranchiseID, input.NumberOfShares)
		if err != nil {
			return err
		}
		if !ok {
			return errors.NewSharesUnavailableError(input.NumberOfShares, f.RemainingShares())
		}
		return h.store.InsertShare(ctx, tx, share)
	})
	if err != nil {
		if stdErr, isStd := err.(*errors.StandardError); isStd {
			return nil, stdErr
		}
		return nil, errors.NewQueryExecutionFailedError("purchase shares", err)
	}

	totalCost := share.CostPerShare.Mul(share.NumberOfShares)
	fullyFunded := f.SelectedShares+input.NumberOfShares >= f.TotalShares
	status := models.StatusFunding
	if fullyFunded {
		// Converting to Launching is best-effort here: a concurrent
		// purchase may have won the transition already, and the sweep
		// resolves any campaign this call misses.
		if err := h.machine.MarkLaunching(ctx, input.FranchiseID); err != nil {
			h.logger.Warn("launch transition not applied", map[string]interface{}{
				"franchiseId": input.FranchiseID,
				"error":       err.Error(),
			})
		}
		status = models.StatusLaunching
	}

	h.logger.Info("shares purchased", map[string]interface{}{
		"shareId":        share.ID,
		"franchiseId":    input.FranchiseID,
		"investorId":     input.InvestorID,
		"numberOfShares": input.NumberOfShares,
		"totalCost":      int64(totalCost),
		"fullyFunded":    fullyFunded,
	})

	return &Output{
		ShareID:         share.ID,
		FranchiseID:     input.FranchiseID,
		InvestorID:      input.InvestorID,
		NumberOfShares:  input.NumberOfShares,
		CostPerShare:    int64(share.CostPerShare),
		TotalCost:       int64(totalCost),
		FullyFunded:     fullyFunded,
		FranchiseStatus: string(status),
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	} else {
		h.logger.Info("job completed successfully", map[string]interface{}{
			"jobKey": job.Key,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
