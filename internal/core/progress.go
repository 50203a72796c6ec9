package core

import (
	"context"
	"encoding/json"

	"github.com/JonMunkholm/robodata/internal/logging"
)

// ProgressKey returns the KV key holding a dataset's latest snapshot.
func ProgressKey(datasetID string) string {
	return "dataset:progress:" + datasetID
}

// writeProgress overwrites the dataset's snapshot. Failures are logged only.
func (s *Service) writeProgress(ctx context.Context, snap ProgressSnapshot) {
	if s.kv == nil {
		return
	}
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = s.now()
	}

	data, err := json.Marshal(snap)
	if err != nil {
		logging.FromContext(ctx).Warn("encode progress snapshot", "dataset_id", snap.DatasetID, "error", err)
		return
	}
	if err := s.kv.Put(ctx, ProgressKey(snap.DatasetID), data); err != nil {
		logging.FromContext(ctx).Warn("write progress snapshot", "dataset_id", snap.DatasetID, "error", err)
	}
}

// checkpoint records a validating-phase snapshot and publishes a progress event.
func (s *Service) checkpoint(ctx context.Context, d *Dataset, percent int, message string) {
	s.writeProgress(ctx, ProgressSnapshot{
		DatasetID: d.ID,
		Status:    StatusValidating,
		Percent:   percent,
		Message:   message,
	})
	s.emit(ctx, DatasetEvent{
		Type:      EventValidationProgress,
		DatasetID: d.ID,
		Dataset:   d.Clone(),
		Progress:  percent,
	})
}

// GetUploadProgress returns the latest snapshot for a dataset, or nil when
// the progress store is unavailable or nothing has been written yet.
func (s *Service) GetUploadProgress(ctx context.Context, datasetID string) *ProgressSnapshot {
	if s.kv == nil {
		return nil
	}

	data, err := s.kv.Get(ctx, ProgressKey(datasetID))
	if err != nil {
		logging.FromContext(ctx).Warn("read progress snapshot", "dataset_id", datasetID, "error", err)
		return nil
	}
	if data == nil {
		return nil
	}

	var snap ProgressSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logging.FromContext(ctx).Warn("decode progress snapshot", "dataset_id", datasetID, "error", err)
		return nil
	}
	return &snap
}
