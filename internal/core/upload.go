package core

// upload.go coordinates the client-side upload. The service never sees the
// dataset bytes: it hands out a prefix-scoped write reference, and once the
// client reports completion it moves the dataset to validating and hands it
// to the dispatcher.

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/robodata/internal/logging"
)

// InitiateUpload issues a time-limited write reference for the dataset's
// storage prefix. size is an optional upper bound in bytes (0 for none).
func (s *Service) InitiateUpload(ctx context.Context, id, contentType string, size int64) (*UploadTarget, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status != StatusUploading {
		return nil, invalidState(id, d.Status, "initiate upload for")
	}
	if s.storage == nil {
		return nil, fmt.Errorf("initiate upload for dataset %s: %w", id, ErrStorageUnavailable)
	}
	if size < 0 {
		return nil, &ValidationFailedError{Errors: []string{"size must not be negative"}}
	}

	target, err := s.storage.PresignUpload(ctx, d.StoragePath, UploadConstraints{
		ContentType: contentType,
		MaxSize:     size,
		Expiry:      s.cfg.Storage.UploadURLExpiry,
	})
	if err != nil {
		return nil, fmt.Errorf("presign upload for dataset %s: %w", id, err)
	}

	logging.FromContext(ctx).Info("upload initiated",
		"dataset_id", id,
		"storage_path", d.StoragePath,
		"expires_at", target.ExpiresAt,
	)
	s.emit(ctx, DatasetEvent{Type: EventUploadInitiated, DatasetID: id, Dataset: d.Clone()})
	return target, nil
}

// CompleteUpload moves the dataset from uploading to validating and
// dispatches validation. It is not idempotent: a second call fails with
// ErrInvalidState. Validation failures never surface here; they become
// dataset state and a progress snapshot.
func (s *Service) CompleteUpload(ctx context.Context, id string) error {
	d, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if d.Status != StatusUploading {
		return invalidState(id, d.Status, "complete upload for")
	}

	ok, err := s.repo.TransitionStatus(ctx, id, StatusUploading, StatusValidating)
	if err != nil {
		return fmt.Errorf("complete upload for dataset %s: %w", id, err)
	}
	if !ok {
		// Lost a race with another completion or a delete.
		current, gerr := s.repo.Get(ctx, id)
		if gerr == nil && current == nil {
			return notFound(id)
		}
		have := StatusValidating
		if current != nil {
			have = current.Status
		}
		return invalidState(id, have, "complete upload for")
	}

	d.Status = StatusValidating
	d.UpdatedAt = s.now()

	logging.FromContext(ctx).Info("upload completed", "dataset_id", id, "status", d.Status)
	s.emit(ctx, DatasetEvent{Type: EventUploadCompleted, DatasetID: id, Dataset: d.Clone()})

	job := ValidationJob{
		DatasetID:  id,
		JobID:      s.newID(),
		EnqueuedAt: s.now(),
	}
	s.dispatch(ctx, job)
	return nil
}
