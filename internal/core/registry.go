package core

// registry.go holds the dataset CRUD operations and their lifecycle
// bookkeeping. Every mutating call publishes exactly one event after the
// repository has accepted the change.

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/JonMunkholm/robodata/internal/logging"
)

// Create registers a new dataset in status uploading with zeroed metrics.
// Fails with ErrRobotTypeNotFound or ErrSkillNotFound when a reference does
// not resolve.
func (s *Service) Create(ctx context.Context, in CreateDatasetInput) (*Dataset, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.RobotTypeID = strings.TrimSpace(in.RobotTypeID)

	var problems []string
	if in.Name == "" {
		problems = append(problems, "name is required")
	}
	if in.RobotTypeID == "" {
		problems = append(problems, "robot_type_id is required")
	}
	if in.SkillID != nil && strings.TrimSpace(*in.SkillID) == "" {
		problems = append(problems, "skill_id must not be blank when set")
	}
	if len(problems) > 0 {
		return nil, &ValidationFailedError{Errors: problems}
	}

	if err := s.checkRobotType(ctx, in.RobotTypeID); err != nil {
		return nil, err
	}
	if in.SkillID != nil {
		if err := s.checkSkill(ctx, *in.SkillID); err != nil {
			return nil, err
		}
	}

	id := s.newID()
	now := s.now()
	d := &Dataset{
		ID:          id,
		Name:        in.Name,
		Description: in.Description,
		RobotTypeID: in.RobotTypeID,
		SkillID:     in.SkillID,
		StoragePath: path.Join(s.cfg.Storage.Prefix, id),
		Status:      StatusUploading,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create dataset: %w", err)
	}

	logging.FromContext(ctx).Info("dataset created",
		"dataset_id", id,
		"robot_type_id", d.RobotTypeID,
		"storage_path", d.StoragePath,
	)
	s.emit(ctx, DatasetEvent{Type: EventCreated, DatasetID: id, Dataset: d.Clone()})
	return d, nil
}

// Get returns a dataset or an error wrapping ErrDatasetNotFound.
func (s *Service) Get(ctx context.Context, id string) (*Dataset, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get dataset %s: %w", id, err)
	}
	if d == nil {
		return nil, notFound(id)
	}
	return d, nil
}

// List returns one page of datasets matching f.
func (s *Service) List(ctx context.Context, f ListFilter, p Pagination) (*DatasetList, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, &ValidationFailedError{Errors: []string{fmt.Sprintf("unknown status %q", f.Status)}}
	}
	p = p.Normalize()
	list, err := s.repo.List(ctx, f, p)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return list, nil
}

// Update changes name, description, or skill. It is allowed in any status.
func (s *Service) Update(ctx context.Context, id string, patch DatasetPatch) (*Dataset, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, &ValidationFailedError{Errors: []string{"name must not be blank"}}
	}
	if patch.SkillID != nil && !patch.ClearSkill {
		if err := s.checkSkill(ctx, *patch.SkillID); err != nil {
			return nil, err
		}
	}

	if patch.Empty() {
		return s.Get(ctx, id)
	}

	d, err := s.repo.UpdateDetails(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("update dataset %s: %w", id, err)
	}
	if d == nil {
		return nil, notFound(id)
	}

	logging.FromContext(ctx).Info("dataset updated", "dataset_id", id)
	s.emit(ctx, DatasetEvent{Type: EventUpdated, DatasetID: id, Dataset: d.Clone()})
	return d, nil
}

// Delete removes a dataset. Storage cleanup is best effort and never blocks
// removal of the registry row. Returns false if the dataset did not exist.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return false, fmt.Errorf("get dataset %s: %w", id, err)
	}
	if d == nil {
		return false, nil
	}

	log := logging.WithFields(ctx, "dataset_id", id)

	if s.storage == nil {
		log.Warn("storage not configured, skipping object cleanup", "storage_path", d.StoragePath)
	} else if err := s.storage.DeletePrefix(ctx, d.StoragePath); err != nil {
		log.Warn("storage cleanup failed", "storage_path", d.StoragePath, "error", err)
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete dataset %s: %w", id, err)
	}
	if !deleted {
		return false, nil
	}

	log.Info("dataset deleted", "status", d.Status)
	s.emit(ctx, DatasetEvent{Type: EventDeleted, DatasetID: id, Dataset: d.Clone()})
	return true, nil
}

// GetQualityBreakdown returns the breakdown persisted at validation time,
// or nil unless the dataset is ready.
func (s *Service) GetQualityBreakdown(ctx context.Context, id string) (*QualityBreakdown, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status != StatusReady {
		return nil, nil
	}
	return d.QualityBreakdown, nil
}

func (s *Service) checkRobotType(ctx context.Context, id string) error {
	ok, err := s.refs.RobotTypeExists(ctx, id)
	if err != nil {
		return fmt.Errorf("check robot type %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrRobotTypeNotFound, id)
	}
	return nil
}

func (s *Service) checkSkill(ctx context.Context, id string) error {
	ok, err := s.refs.SkillExists(ctx, id)
	if err != nil {
		return fmt.Errorf("check skill %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrSkillNotFound, id)
	}
	return nil
}
