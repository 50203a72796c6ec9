package broker

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// ValidateDatasetActivity is the registered activity name.
const ValidateDatasetActivity = "ValidateDataset"

// Activity attempt limits.
const (
	defaultActivityTimeout = 10 * time.Minute
	maxActivityAttempts    = 3
)

// ValidationInput is the workflow argument. Payload is an encoded
// core.ValidationJob.
type ValidationInput struct {
	Payload         []byte        `json:"payload"`
	ActivityTimeout time.Duration `json:"activity_timeout"`
}

// DatasetValidationWorkflow runs the validate-and-update activity and returns
// the dataset status it wrote ("" when nothing was written).
func DatasetValidationWorkflow(ctx workflow.Context, in ValidationInput) (string, error) {
	timeout := in.ActivityTimeout
	if timeout <= 0 {
		timeout = defaultActivityTimeout
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2,
			MaximumAttempts:        maxActivityAttempts,
			NonRetryableErrorTypes: []string{errTypeBadPayload},
		},
	})

	var status string
	if err := workflow.ExecuteActivity(ctx, ValidateDatasetActivity, in.Payload).Get(ctx, &status); err != nil {
		workflow.GetLogger(ctx).Error("validation activity failed", "error", err)
		return "", err
	}
	return status, nil
}
