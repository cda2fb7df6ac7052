// internal/workers/revenue/approve-transaction/handler.go
package approvetransaction

import (
	"context"
	"encoding/json"
	"fmt"

	"funding-engine/internal/common/errors"
	"funding-engine/internal/common/logger"
	"funding-engine/internal/distribution"
	"funding-engine/internal/frctoken"
	"funding-engine/internal/ledger"
	"funding-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "approve-transaction"
)

// Handler is the second phase of the revenue flow: the decision settles a
// pending transaction, and an approved income event immediately drives the
// distribution split and the performance token issuance. A retried job whose
// earlier attempt settled the transaction but died partway through the
// downstream steps resumes them: the applied stamp fences the split and the
// tokens-issued stamp fences the issuance, each committed atomically with
// the work it marks.
type Handler struct {
	config       *Config
	store        *ledger.Store
	engine       *distribution.Engine
	issuer       *frctoken.Issuer
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, store *ledger.Store, engine *distribution.Engine, issuer *frctoken.Issuer, log logger.Logger) *Handler {
	return &Handler{
		config:       config,
		store:        store,
		engine:       engine,
		issuer:       issuer,
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
	if input.TransactionID == "" {
		return nil, errors.NewValidationError("transactionId is required")
	}
	var target models.TransactionStatus
	switch input.Decision {
	case "approved":
		target = models.TransactionApproved
	case "rejected":
		target = models.TransactionRejected
	default:
		return nil, errors.NewValidationError(
			fmt.Sprintf("decision must be approved or rejected, got %q", input.Decision))
	}

	txn, err := h.store.GetTransaction(ctx, h.store.DB(), input.TransactionID)
	if err != nil {
		if err == ledger.ErrNotFound {
			return nil, errors.NewTransactionNotFoundError(input.TransactionID)
		}
		return nil, errors.NewQueryExecutionFailedError("get transaction", err)
	}

	ok, err := h.store.SettleTransaction(ctx, h.store.DB(), txn.ID, target)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("settle transaction", err)
	}
	if ok {
		txn.Status = target
	} else {
		// The settle guard matched nothing: the transaction was taken off
		// pending before this attempt. Re-read it; only a transaction that
		// already carries this decision is a replay, and a replay resumes
		// whatever downstream work the earlier attempt left unfinished.
		txn, err = h.store.GetTransaction(ctx, h.store.DB(), input.TransactionID)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("get transaction", err)
		}
		if txn.Status != target {
			return nil, errors.NewTransactionNotApprovableError(txn.ID, string(txn.Status))
		}
	}

	output := &Output{
		TransactionID:     txn.ID,
		FranchiseID:       txn.FranchiseID,
		TransactionStatus: string(target),
	}
	if target == models.TransactionRejected {
		h.logger.Info("transaction rejected", map[string]interface{}{
			"transactionId": txn.ID,
			"franchiseId":   txn.FranchiseID,
		})
		return output, nil
	}

	switch txn.Type {
	case models.TransactionIncome:
		if txn.AppliedAt == nil {
			result, err := h.engine.Distribute(ctx, txn)
			if err != nil {
				return nil, err
			}
			output.DistributedAmount = int64(result.Amount)
			output.CapitalRecovery = int64(result.CapitalRecovery)
			output.DividendAmount = int64(result.DividendAmount)
			output.FullyRecovered = result.FullyRecovered
		} else {
			output.DistributedAmount = int64(txn.Amount)
		}

		issued := int64(0)
		if txn.FRCTokensIssued == nil {
			issued, err = h.issuer.PerformanceIssuance(ctx, txn)
			if err != nil {
				return nil, err
			}
		} else {
			issued = *txn.FRCTokensIssued
		}
		output.FRCTokensIssued = issued

	case models.TransactionExpense:
		if txn.AppliedAt == nil {
			if err := h.issuer.RecordExpense(ctx, txn); err != nil {
				return nil, err
			}
		}
	}

	h.logger.Info("transaction approved", map[string]interface{}{
		"transactionId":   txn.ID,
		"franchiseId":     txn.FranchiseID,
		"type":            string(txn.Type),
		"amount":          int64(txn.Amount),
		"frcTokensIssued": output.FRCTokensIssued,
	})
	return output, nil
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
