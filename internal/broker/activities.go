package broker

import (
	"context"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"

	"github.com/JonMunkholm/robodata/internal/core"
)

const errTypeBadPayload = "BadPayload"

// Validator runs validate-and-update for one job. *core.Service satisfies it.
type Validator interface {
	ValidateAndUpdate(ctx context.Context, job core.ValidationJob) core.DatasetStatus
}

// Activities holds the worker-side activity implementations.
type Activities struct {
	validator Validator
}

// NewActivities creates activities backed by v.
func NewActivities(v Validator) *Activities {
	return &Activities{validator: v}
}

// ValidateDataset decodes a job and runs it. Only an undecodable payload is an
// error; every dataset-level failure is recorded on the dataset itself.
func (a *Activities) ValidateDataset(ctx context.Context, payload []byte) (string, error) {
	logger := activity.GetLogger(ctx)

	job, err := core.DecodeJob(payload)
	if err != nil {
		logger.Error("undecodable validation job", "error", err)
		return "", temporal.NewNonRetryableApplicationError(err.Error(), errTypeBadPayload, err)
	}

	info := activity.GetInfo(ctx)
	logger.Info("validating dataset",
		"dataset_id", job.DatasetID,
		"job_id", job.JobID,
		"attempt", info.Attempt,
	)

	status := a.validator.ValidateAndUpdate(ctx, job)
	logger.Info("validation finished", "dataset_id", job.DatasetID, "status", string(status))
	return string(status), nil
}

// Register adds the workflow and activities to r.
func Register(r worker.Registry, acts *Activities) {
	r.RegisterWorkflow(DatasetValidationWorkflow)
	r.RegisterActivityWithOptions(acts.ValidateDataset, activity.RegisterOptions{Name: ValidateDatasetActivity})
}

// NewWorker creates a worker on taskQueue with everything registered.
// maxConcurrent caps simultaneous activity executions.
func NewWorker(c client.Client, taskQueue string, maxConcurrent int, v Validator) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: maxConcurrent,
	})
	Register(w, NewActivities(v))
	return w
}
