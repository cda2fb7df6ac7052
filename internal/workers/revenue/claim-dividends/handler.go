// internal/workers/revenue/claim-dividends/handler.go
package claimdividends

import (
	"context"
	"encoding/json"
	"fmt"

	"funding-engine/internal/common/errors"
	"funding-engine/internal/common/logger"
	"funding-engine/internal/distribution"
	"funding-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "claim-dividends"
)

// Handler lets an investor withdraw accrued dividends. The debit-then-pay
// ordering inside the engine makes this safe to retry: a replay after a
// successful payout finds the balance already debited.
type Handler struct {
	config       *Config
	engine       *distribution.Engine
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, engine *distribution.Engine, log logger.Logger) *Handler {
	return &Handler{
		config:       config,
		engine:       engine,
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
	if input.Amount < 0 {
		return nil, errors.NewValidationError(
			fmt.Sprintf("amount must not be negative, got %d", input.Amount))
	}

	claimed, err := h.engine.Claim(ctx, input.FranchiseID, input.InvestorID,
		models.Money(input.Amount))
	if err != nil {
		return nil, err
	}

	return &Output{
		FranchiseID:   input.FranchiseID,
		InvestorID:    input.InvestorID,
		ClaimedAmount: int64(claimed),
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
