// internal/workers/funding/approve-franchise/handler.go
package approvefranchise

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"funding-engine/internal/campaign"
	"funding-engine/internal/common/errors"
	"funding-engine/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "approve-franchise"
)

// Handler is the approval authority callback. It moves a pending campaign
// either into its funding window or to a terminal rejection.
type Handler struct {
	config       *Config
	machine      *campaign.Machine
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, machine *campaign.Machine, log logger.Logger) *Handler {
	return &Handler{
		config:       config,
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
	if input.FranchiseID == "" {
		return nil, errors.NewValidationError("franchiseId is required")
	}

	switch input.Decision {
	case "approved":
		start, end, err := parseWindow(input.LaunchStartDate, input.LaunchEndDate)
		if err != nil {
			return nil, err
		}
		f, err := h.machine.Approve(ctx, input.FranchiseID, start, end)
		if err != nil {
			return nil, err
		}
		return &Output{
			FranchiseID:     f.ID,
			FranchiseStatus: string(f.Status),
			LaunchStartDate: f.LaunchStartDate.UTC().Format(time.RFC3339),
			LaunchEndDate:   f.LaunchEndDate.UTC().Format(time.RFC3339),
		}, nil

	case "rejected":
		if err := h.machine.Reject(ctx, input.FranchiseID, input.Reason); err != nil {
			return nil, err
		}
		return &Output{
			FranchiseID:     input.FranchiseID,
			FranchiseStatus: "closed",
		}, nil

	default:
		return nil, errors.NewValidationError(
			fmt.Sprintf("decision must be approved or rejected, got %q", input.Decision))
	}
}

// parseWindow tolerates absent dates; the state machine fills in defaults.
func parseWindow(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if startStr != "" {
		start, err = time.Parse(time.RFC3339, startStr)
		if err != nil {
			return start, end, errors.NewValidationError(fmt.Sprintf("parse launchStartDate: %v", err))
		}
	}
	if endStr != "" {
		end, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			return start, end, errors.NewValidationError(fmt.Sprintf("parse launchEndDate: %v", err))
		}
	}
	return start, end, nil
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
