// internal/workers/funding/activate-franchise/handler.go
package activatefranchise

import (
	"context"
	"encoding/json"
	"fmt"

	"funding-engine/internal/campaign"
	"funding-engine/internal/common/errors"
	"funding-engine/internal/common/logger"
	"funding-engine/internal/frctoken"
	"funding-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "activate-franchise"
)

// Handler performs the operational go-live for a fully funded campaign:
// Launching → Active, then the one-time FRC token bootstrap (create the
// token economy and run the initial issuance against recorded holdings).
type Handler struct {
	config       *Config
	machine      *campaign.Machine
	issuer       *frctoken.Issuer
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, machine *campaign.Machine, issuer *frctoken.Issuer, log logger.Logger) *Handler {
	return &Handler{
		config:       config,
		machine:      machine,
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
	if input.FranchiseID == "" {
		return nil, errors.NewValidationError("franchiseId is required")
	}
	totalSupply := input.TokenSupply
	if totalSupply == 0 {
		totalSupply = h.config.DefaultTokenSupply
	}
	basePriceUnits := input.BasePriceUnits
	if basePriceUnits == 0 {
		basePriceUnits = h.config.DefaultBasePriceUnits
	}

	// Every step tolerates a replay: Activate is a no-op on an active
	// franchise, CreateToken returns the existing economy, and the initial
	// issuance only runs while the token is still unissued. A job retried
	// after a partial first attempt resumes instead of erroring out.
	if err := h.machine.Activate(ctx, input.FranchiseID); err != nil {
		return nil, err
	}

	token, err := h.issuer.CreateToken(ctx, input.FranchiseID, totalSupply,
		models.MoneyFromUnits(basePriceUnits))
	if err != nil {
		return nil, err
	}

	issued := token.CirculatingSupply
	if !token.InitialIssued {
		issued, err = h.issuer.InitialIssuance(ctx, input.FranchiseID)
		if err != nil {
			return nil, err
		}
	}

	return &Output{
		FranchiseID:     input.FranchiseID,
		FranchiseStatus: string(models.StatusActive),
		TotalSupply:     token.TotalSupply,
		TokensIssued:    issued,
		ReserveSupply:   token.TotalSupply - issued,
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
