package core

// dispatch.go routes a validation job either to the durable broker or runs
// it inline. The choice is made per call from broker connectivity, so the
// calling code is the same in both cases.
//
// Any publish failure falls back to inline execution: a dataset that reached
// validating always gets a validate-and-update run from somewhere.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/JonMunkholm/robodata/internal/logging"
)

// ValidationSubject is the broker subject validation jobs are published on.
const ValidationSubject = "dataset.validate"

// DedupKey derives the broker deduplication key for a dataset. Only one job
// per dataset can ever be enqueued under it.
func DedupKey(datasetID string) string {
	return "dataset-validate-" + datasetID
}

// DispatchMode names how a job was executed.
type DispatchMode string

const (
	ModeQueued DispatchMode = "queued"
	ModeInline DispatchMode = "inline"
)

// Dispatcher hands a validation job to something that will run it.
type Dispatcher interface {
	Dispatch(ctx context.Context, job ValidationJob) error
	Mode() DispatchMode
}

// QueueDispatcher publishes jobs to a Broker.
type QueueDispatcher struct {
	broker Broker
}

// NewQueueDispatcher creates a dispatcher publishing to broker.
func NewQueueDispatcher(broker Broker) *QueueDispatcher {
	return &QueueDispatcher{broker: broker}
}

func (q *QueueDispatcher) Mode() DispatchMode { return ModeQueued }

// Dispatch publishes job under its dataset's dedup key.
func (q *QueueDispatcher) Dispatch(ctx context.Context, job ValidationJob) error {
	payload, err := EncodeJob(job)
	if err != nil {
		return err
	}
	if err := q.broker.Publish(ctx, ValidationSubject, payload, DedupKey(job.DatasetID)); err != nil {
		return fmt.Errorf("publish validation job for dataset %s: %w", job.DatasetID, err)
	}
	return nil
}

// InlineDispatcher runs validate-and-update on the calling goroutine.
type InlineDispatcher struct {
	run     func(ctx context.Context, job ValidationJob) DatasetStatus
	timeout time.Duration
}

// NewInlineDispatcher creates a dispatcher calling run with a context detached
// from the caller's cancellation and bounded by timeout.
func NewInlineDispatcher(run func(ctx context.Context, job ValidationJob) DatasetStatus, timeout time.Duration) *InlineDispatcher {
	return &InlineDispatcher{run: run, timeout: timeout}
}

func (d *InlineDispatcher) Mode() DispatchMode { return ModeInline }

// Dispatch blocks until the run has written a terminal state. It never fails.
func (d *InlineDispatcher) Dispatch(ctx context.Context, job ValidationJob) error {
	d.Run(ctx, job)
	return nil
}

// Run executes job and returns the status it left the dataset in.
func (d *InlineDispatcher) Run(ctx context.Context, job ValidationJob) DatasetStatus {
	runCtx := context.WithoutCancel(ctx)
	if d.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, d.timeout)
		defer cancel()
	}
	return d.run(runCtx, job)
}

// EncodeJob serializes a job for the broker.
func EncodeJob(job ValidationJob) ([]byte, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode validation job: %w", err)
	}
	return data, nil
}

// DecodeJob parses a broker payload.
func DecodeJob(payload []byte) (ValidationJob, error) {
	var job ValidationJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return job, fmt.Errorf("decode validation job: %w", err)
	}
	if job.DatasetID == "" {
		return job, fmt.Errorf("decode validation job: dataset_id is empty")
	}
	return job, nil
}

func (s *Service) inlineDispatcher() *InlineDispatcher {
	return NewInlineDispatcher(s.ValidateAndUpdate, s.cfg.Validation.Timeout)
}

// dispatcherFor picks the queue when the broker is reachable right now.
func (s *Service) dispatcherFor(ctx context.Context) Dispatcher {
	if s.BrokerConnected(ctx) {
		return NewQueueDispatcher(s.broker)
	}
	return s.inlineDispatcher()
}

// dispatch runs job via the selected dispatcher and reports the mode used.
func (s *Service) dispatch(ctx context.Context, job ValidationJob) DispatchMode {
	log := logging.WithFields(ctx, "dataset_id", job.DatasetID, "job_id", job.JobID)
	d := s.dispatcherFor(ctx)

	if d.Mode() == ModeQueued {
		// Written before publishing so a fast worker's checkpoints are not overwritten.
		s.writeProgress(ctx, ProgressSnapshot{
			DatasetID: job.DatasetID,
			Status:    StatusValidating,
			Percent:   0,
			Message:   "queued for validation",
		})
		err := d.Dispatch(ctx, job)
		if err == nil {
			log.Info("validation queued", "mode", ModeQueued)
			return ModeQueued
		}
		log.Warn("queue dispatch failed, validating inline", "error", err)
	}

	start := time.Now()
	status := s.inlineDispatcher().Run(ctx, job)
	log.Info("inline validation finished",
		"mode", ModeInline,
		"status", status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return ModeInline
}
