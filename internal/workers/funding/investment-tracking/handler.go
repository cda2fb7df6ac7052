// internal/workers/funding/investment-tracking/handler.go
package investmenttracking

import (
	"context"
	"encoding/json"
	"fmt"

	"funding-engine/internal/accounting"
	"funding-engine/internal/common/errors"
	"funding-engine/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "investment-tracking"
)

// Handler serves per-investor and per-campaign investment breakdowns.
type Handler struct {
	config       *Config
	reporter     *accounting.Reporter
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, reporter *accounting.Reporter, log logger.Logger) *Handler {
	return &Handler{
		config:       config,
		reporter:     reporter,
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
	switch {
	case input.InvestorID != "" && input.FranchiseID != "":
		return nil, errors.NewValidationError("set either investorId or franchiseId, not both")

	case input.InvestorID != "":
		summary, err := h.reporter.GetInvestmentSummary(ctx, input.InvestorID)
		if err != nil {
			return nil, err
		}
		return &Output{Summary: summary}, nil

	case input.FranchiseID != "":
		tracking, err := h.reporter.GetInvestmentTracking(ctx, input.FranchiseID)
		if err != nil {
			return nil, err
		}
		return &Output{Tracking: tracking}, nil

	default:
		return nil, errors.NewValidationError("investorId or franchiseId is required")
	}
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
