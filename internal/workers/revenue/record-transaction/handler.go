// internal/workers/revenue/record-transaction/handler.go
package recordtransaction

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"funding-engine/internal/common/errors"
	"funding-engine/internal/common/logger"
	"funding-engine/internal/ledger"
	"funding-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "record-transaction"
)

// Handler records the first phase of the two-phase revenue flow: the
// transaction lands as pending and nothing moves until a reviewer approves
// it through the approval workflow.
type Handler struct {
	config       *Config
	store        *ledger.Store
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, store *ledger.Store, log logger.Logger) *Handler {
	return &Handler{
		config:       config,
		store:        store,
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
	txDate := time.Now().UTC()
	if input.TransactionDate != "" {
		parsed, err := time.Parse(time.RFC3339, input.TransactionDate)
		if err != nil {
			return nil, errors.NewValidationError(fmt.Sprintf("parse transactionDate: %v", err))
		}
		txDate = parsed
	}

	txn, err := models.NewFinancialTransaction(uuid.New().String(), input.FranchiseID,
		models.TransactionType(input.Type), input.Category,
		models.Money(input.Amount), input.Currency, txDate)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	f, err := h.store.GetFranchise(ctx, h.store.DB(), input.FranchiseID)
	if err != nil {
		if err == ledger.ErrNotFound {
			return nil, errors.NewFranchiseNotFoundError(input.FranchiseID)
		}
		return nil, errors.NewQueryExecutionFailedError("get franchise", err)
	}
	if f.Status != models.StatusActive {
		return nil, errors.NewFranchiseNotActiveError(input.FranchiseID, string(f.Status))
	}

	if err := h.store.InsertTransaction(ctx, h.store.DB(), txn); err != nil {
		return nil, errors.NewQueryExecutionFailedError("insert transaction", err)
	}

	h.logger.Info("transaction recorded", map[string]interface{}{
		"transactionId": txn.ID,
		"franchiseId":   txn.FranchiseID,
		"type":          string(txn.Type),
		"amount":        int64(txn.Amount),
	})

	return &Output{
		TransactionID:     txn.ID,
		FranchiseID:       txn.FranchiseID,
		TransactionStatus: string(txn.Status),
		Amount:            int64(txn.Amount),
		Currency:          txn.Currency,
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
