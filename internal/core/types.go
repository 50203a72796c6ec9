package core

import (
	"encoding/json"
	"time"
)

// DatasetStatus is the lifecycle state of a dataset.
type DatasetStatus string

const (
	StatusUploading  DatasetStatus = "uploading"
	StatusValidating DatasetStatus = "validating"
	StatusReady      DatasetStatus = "ready"
	StatusFailed     DatasetStatus = "failed"
)

// Valid reports whether s is one of the four known states.
func (s DatasetStatus) Valid() bool {
	switch s {
	case StatusUploading, StatusValidating, StatusReady, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s.
func (s DatasetStatus) IsTerminal() bool {
	return s == StatusReady || s == StatusFailed
}

// CanTransition reports whether from -> to is an allowed lifecycle step.
// The only legal edges are uploading->validating and validating->{ready,failed}.
func CanTransition(from, to DatasetStatus) bool {
	switch from {
	case StatusUploading:
		return to == StatusValidating
	case StatusValidating:
		return to == StatusReady || to == StatusFailed
	}
	return false
}

// Dataset is a named collection of robot demonstration episodes stored under
// a single object-storage prefix.
type Dataset struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	RobotTypeID string  `json:"robot_type_id"`
	SkillID     *string `json:"skill_id,omitempty"`

	// StoragePath is the object prefix holding the dataset tree; it ends with ID.
	StoragePath string `json:"storage_path"`

	FormatVersion      string  `json:"format_version"`
	FPS                float64 `json:"fps"`
	TotalFrames        int     `json:"total_frames"`
	TotalDuration      float64 `json:"total_duration"`
	DemonstrationCount int     `json:"demonstration_count"`

	// QualityScore is 0 unless Status is ready.
	QualityScore     int               `json:"quality_score"`
	QualityBreakdown *QualityBreakdown `json:"quality_breakdown,omitempty"`

	// Manifest is present iff Status is ready; Stats is optional even then.
	Manifest json.RawMessage `json:"manifest,omitempty"`
	Stats    json.RawMessage `json:"stats,omitempty"`

	Status    DatasetStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Clone returns a deep copy safe to hand to event subscribers.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	c := *d
	if d.SkillID != nil {
		skill := *d.SkillID
		c.SkillID = &skill
	}
	if d.QualityBreakdown != nil {
		b := *d.QualityBreakdown
		c.QualityBreakdown = &b
	}
	c.Manifest = append(json.RawMessage(nil), d.Manifest...)
	c.Stats = append(json.RawMessage(nil), d.Stats...)
	return &c
}

// applyOutcome copies a terminal validation outcome onto the dataset.
func (d *Dataset) applyOutcome(o ValidationOutcome, at time.Time) {
	d.Status = o.Status
	d.FormatVersion = o.FormatVersion
	d.FPS = o.FPS
	d.TotalFrames = o.TotalFrames
	d.TotalDuration = o.TotalDuration
	d.DemonstrationCount = o.DemonstrationCount
	d.QualityScore = o.QualityScore
	d.QualityBreakdown = o.QualityBreakdown
	d.Manifest = o.Manifest
	d.Stats = o.Stats
	d.UpdatedAt = at
}

// CreateDatasetInput holds the caller-supplied fields for a new dataset.
type CreateDatasetInput struct {
	Name        string
	Description string
	RobotTypeID string
	SkillID     *string
}

// DatasetPatch lists the mutable dataset fields. Nil pointers are left as is.
// ClearSkill removes the skill reference and takes precedence over SkillID.
type DatasetPatch struct {
	Name        *string
	Description *string
	SkillID     *string
	ClearSkill  bool
}

// Empty reports whether the patch changes nothing.
func (p DatasetPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.SkillID == nil && !p.ClearSkill
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	RobotTypeID     string
	SkillID         string
	Status          DatasetStatus
	MinQualityScore *int

	// UpdatedBefore keeps datasets last modified strictly before this instant.
	UpdatedBefore time.Time
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 1000
)

// Pagination selects a 1-based page of results.
type Pagination struct {
	Page     int
	PageSize int
}

// Normalize clamps the page into a usable range.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset returns the number of rows to skip.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// DatasetList is one page of datasets plus the total match count.
type DatasetList struct {
	Items    []Dataset `json:"items"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}

// ValidationResult is the transient output of the structure validator.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string

	FormatVersion string
	RobotType     string
	FPS           float64
	EpisodeCount  int
	TotalFrames   int
	TotalDuration float64

	Manifest json.RawMessage
	Stats    json.RawMessage
}

// QualityBreakdown is the per-component quality score with its rounded total.
type QualityBreakdown struct {
	Demonstrations   float64 `json:"demonstrations"`
	Duration         float64 `json:"duration"`
	Diversity        float64 `json:"diversity"`
	FormatCompliance float64 `json:"format_compliance"`
	Total            int     `json:"total"`
}

// ValidationOutcome is the terminal write applied by validate-and-update.
type ValidationOutcome struct {
	Status DatasetStatus

	FormatVersion      string
	FPS                float64
	TotalFrames        int
	TotalDuration      float64
	DemonstrationCount int

	QualityScore     int
	QualityBreakdown *QualityBreakdown

	Manifest json.RawMessage
	Stats    json.RawMessage
}

// failedOutcome is the outcome for any invalid or crashed validation:
// metrics zeroed, no manifest, score 0.
func failedOutcome() ValidationOutcome {
	return ValidationOutcome{Status: StatusFailed}
}

// ProgressSnapshot is the latest-only polling record for one dataset.
type ProgressSnapshot struct {
	DatasetID string        `json:"dataset_id"`
	Status    DatasetStatus `json:"status"`
	Percent   int           `json:"percent"`
	Message   string        `json:"message"`
	Errors    []string      `json:"errors,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// UploadConstraints are conditions attached to an issued write reference.
type UploadConstraints struct {
	ContentType string
	MaxSize     int64 // 0 means unbounded
	Expiry      time.Duration
}

// UploadTarget is a time-limited write reference for a dataset prefix.
// Clients POST each object to URL with Fields as form values and the object
// key set under Path.
type UploadTarget struct {
	URL       string            `json:"url"`
	Fields    map[string]string `json:"fields,omitempty"`
	Path      string            `json:"path"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// ValidationJob is the payload handed from the dispatcher to validate-and-update.
type ValidationJob struct {
	DatasetID  string    `json:"dataset_id"`
	JobID      string    `json:"job_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
