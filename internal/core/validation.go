package core

// validation.go checks that a storage prefix holds a conforming dataset tree.
//
// Checks happen at two levels:
//  1. Hard: the root manifest must exist, parse, and carry every required
//     field. Any failure here makes the result invalid.
//  2. Soft: the normalization stats file and the episode index are probed.
//     Their absence or corruption only adds warnings.
//
// Storage errors on the hard path are returned as Go errors, because they say
// nothing about the dataset itself. The caller treats them as internal failures.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/JonMunkholm/robodata/internal/config"
)

// ValidationPaths are the manifest-tree sub-paths, relative to a dataset prefix.
type ValidationPaths struct {
	Manifest     string
	Stats        string
	EpisodeIndex string
}

// PathsFromConfig extracts sub-paths from validation config.
func PathsFromConfig(cfg config.ValidationConfig) ValidationPaths {
	return ValidationPaths{
		Manifest:     cfg.ManifestPath,
		Stats:        cfg.StatsPath,
		EpisodeIndex: cfg.EpisodeIndexPath,
	}
}

// StructureValidator inspects a dataset prefix in object storage.
type StructureValidator struct {
	storage Storage
	paths   ValidationPaths
}

// NewStructureValidator creates a validator reading from storage.
func NewStructureValidator(storage Storage, paths ValidationPaths) *StructureValidator {
	return &StructureValidator{storage: storage, paths: paths}
}

// Validate inspects the tree under prefix. A nil error with Valid=false means
// the dataset itself is non-conforming and Errors lists every reason.
func (v *StructureValidator) Validate(ctx context.Context, prefix string) (*ValidationResult, error) {
	if v.storage == nil {
		return nil, ErrStorageUnavailable
	}

	result := &ValidationResult{}
	manifestKey := path.Join(prefix, v.paths.Manifest)

	exists, err := v.storage.Exists(ctx, manifestKey)
	if err != nil {
		return nil, fmt.Errorf("check manifest %s: %w", manifestKey, err)
	}
	if !exists {
		result.Errors = []string{fmt.Sprintf("%s: %s", errMissingManifest, v.paths.Manifest)}
		return result, nil
	}

	data, err := v.storage.Download(ctx, manifestKey)
	if err != nil {
		return nil, fmt.Errorf("download manifest %s: %w", manifestKey, err)
	}
	data = stripBOM(data)

	manifest, warnings, err := DecodeManifest(data)
	if err != nil {
		var fe FieldErrors
		if errors.As(err, &fe) {
			result.Errors = fe.Messages()
		} else {
			result.Errors = []string{err.Error()}
		}
		return result, nil
	}

	result.Valid = true
	result.Warnings = append(result.Warnings, warnings...)
	result.Manifest = json.RawMessage(data)
	result.FormatVersion = manifest.CodebaseVersion
	result.RobotType = manifest.RobotType
	result.FPS = manifest.FPS
	result.EpisodeCount = manifest.TotalEpisodes
	result.TotalFrames = manifest.TotalFrames
	result.TotalDuration = manifest.Duration()

	v.probeStats(ctx, prefix, result)
	v.probeEpisodeIndex(ctx, prefix, result)

	return result, nil
}

// probeStats attaches the stats object when it exists and parses as a JSON object.
func (v *StructureValidator) probeStats(ctx context.Context, prefix string, result *ValidationResult) {
	if v.paths.Stats == "" {
		return
	}
	key := path.Join(prefix, v.paths.Stats)

	exists, err := v.storage.Exists(ctx, key)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("could not check %s: %v", v.paths.Stats, err))
		return
	}
	if !exists {
		result.Warnings = append(result.Warnings, fmt.Sprintf("optional stats file %s not found", v.paths.Stats))
		return
	}

	data, err := v.storage.Download(ctx, key)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("could not read %s: %v", v.paths.Stats, err))
		return
	}
	data = stripBOM(data)

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("stats file %s is not a valid JSON object", v.paths.Stats))
		return
	}
	result.Stats = json.RawMessage(data)
}

// probeEpisodeIndex only checks that the index exists.
func (v *StructureValidator) probeEpisodeIndex(ctx context.Context, prefix string, result *ValidationResult) {
	if v.paths.EpisodeIndex == "" {
		return
	}
	key := path.Join(prefix, v.paths.EpisodeIndex)

	exists, err := v.storage.Exists(ctx, key)
	switch {
	case err != nil:
		result.Warnings = append(result.Warnings, fmt.Sprintf("could not check %s: %v", v.paths.EpisodeIndex, err))
	case !exists:
		result.Warnings = append(result.Warnings, fmt.Sprintf("optional episode index %s not found", v.paths.EpisodeIndex))
	}
}
