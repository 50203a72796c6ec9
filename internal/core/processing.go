package core

// processing.go implements validate-and-update, the routine both dispatch
// paths converge on. It is the only writer of validating -> {ready, failed}.
//
// The routine never returns an error. Invalid datasets, storage failures,
// limiter timeouts, and panics all end with the dataset marked failed and the
// reasons stored in its progress snapshot.

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/robodata/internal/logging"
)

// Progress checkpoints.
const (
	progressStructure = 10
	progressScoring   = 50
	progressDone      = 100
)

// ValidateAndUpdate validates the dataset named by job and writes its terminal
// state. It returns the status written, or "" when nothing was written because
// the dataset is gone or no longer validating.
func (s *Service) ValidateAndUpdate(ctx context.Context, job ValidationJob) (status DatasetStatus) {
	if job.JobID != "" {
		ctx = ContextWithJobID(ctx, job.JobID)
	}
	id := job.DatasetID
	log := logging.WithFields(ctx, "dataset_id", id, "job_id", job.JobID)
	start := time.Now()

	var current *Dataset
	defer func() {
		if r := recover(); r != nil {
			log.Error("validation panicked", "panic", r)
			status = s.fail(ctx, id, current, []string{fmt.Sprintf("%s: %v", ErrInternal, r)})
		}
	}()

	if err := s.limiter.Acquire(ctx); err != nil {
		log.Error("no validation slot", "error", err)
		return s.fail(ctx, id, nil, []string{internalMessage(err)})
	}
	defer s.limiter.Release()

	d, err := s.repo.Get(ctx, id)
	if err != nil {
		log.Error("load dataset", "error", err)
		return s.fail(ctx, id, nil, []string{internalMessage(err)})
	}
	if d == nil {
		log.Info("dataset gone before validation, skipping")
		return ""
	}
	if d.Status != StatusValidating {
		log.Info("dataset not validating, skipping", "status", d.Status)
		return ""
	}
	current = d

	s.emit(ctx, DatasetEvent{Type: EventValidationStarted, DatasetID: id, Dataset: d.Clone()})
	s.checkpoint(ctx, d, progressStructure, "validating structure")

	result, err := s.validator.Validate(ctx, d.StoragePath)
	if err != nil {
		log.Error("structure validation errored", "error", err)
		return s.fail(ctx, id, d, []string{internalMessage(err)})
	}
	for _, w := range result.Warnings {
		log.Warn("validation warning", "warning", w)
	}
	if !result.Valid {
		log.Info("dataset invalid", "errors", len(result.Errors))
		return s.fail(ctx, id, d, result.Errors)
	}

	s.checkpoint(ctx, d, progressScoring, "scoring")
	breakdown := s.scorer.Score(result)

	outcome := ValidationOutcome{
		Status:             StatusReady,
		FormatVersion:      result.FormatVersion,
		FPS:                result.FPS,
		TotalFrames:        result.TotalFrames,
		TotalDuration:      result.TotalDuration,
		DemonstrationCount: result.EpisodeCount,
		QualityScore:       breakdown.Total,
		QualityBreakdown:   &breakdown,
		Manifest:           result.Manifest,
		Stats:              result.Stats,
	}

	writeCtx, cancel := terminalContext(ctx)
	defer cancel()

	saved, err := s.repo.SaveOutcome(writeCtx, id, outcome)
	if err != nil {
		log.Error("save validation outcome", "error", err)
		return s.fail(ctx, id, d, []string{internalMessage(err)})
	}
	if !saved {
		log.Info("dataset left validating before outcome was saved, dropping result")
		return ""
	}

	d.applyOutcome(outcome, s.now())
	s.writeProgress(writeCtx, ProgressSnapshot{
		DatasetID: id,
		Status:    StatusReady,
		Percent:   progressDone,
		Message:   "validation complete",
	})
	log.Info("dataset ready",
		"quality_score", breakdown.Total,
		"episodes", result.EpisodeCount,
		"warnings", len(result.Warnings),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	s.emit(ctx, DatasetEvent{Type: EventValidationCompleted, DatasetID: id, Dataset: d.Clone(), Progress: progressDone})
	return StatusReady
}

// fail marks the dataset failed with errs as the reason. d may be nil when
// the dataset could not be loaded.
func (s *Service) fail(ctx context.Context, id string, d *Dataset, errs []string) DatasetStatus {
	log := logging.WithFields(ctx, "dataset_id", id)

	writeCtx, cancel := terminalContext(ctx)
	defer cancel()

	saved, err := s.repo.SaveOutcome(writeCtx, id, failedOutcome())
	if err != nil {
		log.Error("save failed outcome", "error", err)
		return ""
	}
	if !saved {
		log.Info("dataset left validating before failure was saved")
		return ""
	}

	var snapshot *Dataset
	if d != nil {
		snapshot = d.Clone()
		snapshot.applyOutcome(failedOutcome(), s.now())
	}

	s.writeProgress(writeCtx, ProgressSnapshot{
		DatasetID: id,
		Status:    StatusFailed,
		Percent:   progressDone,
		Message:   "validation failed",
		Errors:    errs,
	})
	log.Warn("dataset failed validation", "errors", errs)
	s.emit(ctx, DatasetEvent{
		Type:      EventValidationFailed,
		DatasetID: id,
		Dataset:   snapshot,
		Errors:    errs,
		Progress:  progressDone,
	})
	return StatusFailed
}

// terminalContext detaches from ctx so an expired run can still record its
// outcome.
func terminalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
}

// internalMessage renders an unexpected error as the single failure reason.
func internalMessage(err error) string {
	return fmt.Sprintf("%s: %v", ErrInternal, err)
}
