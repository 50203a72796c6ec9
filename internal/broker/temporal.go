// Package broker runs dataset validation jobs on Temporal.
//
// Publishing a job starts one DatasetValidationWorkflow whose workflow ID is
// the job's dedup key, so the server refuses a second start for the same
// dataset. The worker side registers the workflow and its single activity,
// which calls back into core.Service.ValidateAndUpdate.
package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/JonMunkholm/robodata/internal/config"
	"github.com/JonMunkholm/robodata/internal/core"
)

// workflowClient is the subset of client.Client the broker uses.
type workflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	CheckHealth(ctx context.Context, request *client.CheckHealthRequest) (*client.CheckHealthResponse, error)
}

// TemporalBroker implements core.Broker by starting workflows.
type TemporalBroker struct {
	client        workflowClient
	taskQueue     string
	activityLimit time.Duration
}

var _ core.Broker = (*TemporalBroker)(nil)

// Dial connects to the Temporal frontend named in cfg.
func Dial(cfg config.BrokerConfig) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    newLogAdapter(),
	})
	if err != nil {
		return nil, fmt.Errorf("dial temporal %s: %w", cfg.HostPort, err)
	}
	return c, nil
}

// NewTemporalBroker publishes onto taskQueue. activityLimit bounds a single
// validation attempt.
func NewTemporalBroker(c client.Client, taskQueue string, activityLimit time.Duration) *TemporalBroker {
	return &TemporalBroker{client: c, taskQueue: taskQueue, activityLimit: activityLimit}
}

// Publish starts the workflow for subject. A start rejected because the
// dedup key was already used counts as success.
func (b *TemporalBroker) Publish(ctx context.Context, subject string, payload []byte, dedupKey string) error {
	if subject != core.ValidationSubject {
		return fmt.Errorf("%w: unknown subject %q", core.ErrBrokerUnavailable, subject)
	}

	opts := client.StartWorkflowOptions{
		ID:                    dedupKey,
		TaskQueue:             b.taskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}
	input := ValidationInput{Payload: payload, ActivityTimeout: b.activityLimit}

	_, err := b.client.ExecuteWorkflow(ctx, opts, DatasetValidationWorkflow, input)
	if err == nil {
		return nil
	}
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &started) {
		return nil
	}
	return fmt.Errorf("start workflow %s: %w", dedupKey, err)
}

// Connected reports whether the frontend answers a health check.
func (b *TemporalBroker) Connected(ctx context.Context) bool {
	_, err := b.client.CheckHealth(ctx, &client.CheckHealthRequest{})
	return err == nil
}
