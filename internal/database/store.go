// Package database is the PostgreSQL registry for datasets and the
// robot-type and skill lookups they reference.
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/robodata/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const datasetColumns = `id, name, description, robot_type_id, skill_id, storage_path,
	format_version, fps, total_frames, total_duration, demonstration_count,
	quality_score, quality_breakdown, manifest, stats, status, created_at, updated_at`

// Store implements core.DatasetRepository and core.ReferenceChecker on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ core.DatasetRepository = (*Store)(nil)
	_ core.ReferenceChecker  = (*Store)(nil)
)

// New creates a Store on pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Create inserts a new dataset row.
func (s *Store) Create(ctx context.Context, d *core.Dataset) error {
	breakdown, err := encodeBreakdown(d.QualityBreakdown)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO datasets (`+datasetColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		d.ID, d.Name, d.Description, d.RobotTypeID, d.SkillID, d.StoragePath,
		d.FormatVersion, d.FPS, d.TotalFrames, d.TotalDuration, d.DemonstrationCount,
		d.QualityScore, breakdown, nullJSON(d.Manifest), nullJSON(d.Stats),
		string(d.Status), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert dataset: %w", err)
	}
	return nil
}

// Get returns the dataset or nil when no row matches.
func (s *Store) Get(ctx context.Context, id string) (*core.Dataset, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+datasetColumns+` FROM datasets WHERE id = $1`, id)
	d, err := scanDataset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select dataset: %w", err)
	}
	return d, nil
}

// List returns one page of datasets, newest first.
func (s *Store) List(ctx context.Context, f core.ListFilter, p core.Pagination) (*core.DatasetList, error) {
	p = p.Normalize()

	wb := NewWhereBuilder()
	wb.Add("robot_type_id", f.RobotTypeID)
	wb.Add("skill_id", f.SkillID)
	wb.Add("status", string(f.Status))
	if f.MinQualityScore != nil {
		wb.AddCompare("quality_score", ">=", *f.MinQualityScore)
	}
	if !f.UpdatedBefore.IsZero() {
		wb.AddCompare("updated_at", "<", f.UpdatedBefore)
	}
	whereClause, args := wb.Build()

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM datasets"+whereClause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count datasets: %w", err)
	}

	limitIdx := wb.NextArgIndex()
	query := fmt.Sprintf("SELECT %s FROM datasets%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d",
		datasetColumns, whereClause, limitIdx, limitIdx+1)
	rows, err := s.pool.Query(ctx, query, append(args, p.PageSize, p.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	items := make([]core.Dataset, 0, p.PageSize)
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate datasets: %w", err)
	}

	return &core.DatasetList{
		Items:    items,
		Total:    total,
		Page:     p.Page,
		PageSize: p.PageSize,
	}, nil
}

// UpdateDetails applies the patch and returns the updated row, or nil when
// the id is unknown.
func (s *Store) UpdateDetails(ctx context.Context, id string, patch core.DatasetPatch) (*core.Dataset, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id}

	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", quoteIdentifier(col), len(args)))
	}
	if patch.Name != nil {
		set("name", strings.TrimSpace(*patch.Name))
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	switch {
	case patch.ClearSkill:
		set("skill_id", nil)
	case patch.SkillID != nil:
		set("skill_id", *patch.SkillID)
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE datasets SET `+strings.Join(sets, ", ")+` WHERE id = $1 RETURNING `+datasetColumns,
		args...)
	d, err := scanDataset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update dataset: %w", err)
	}
	return d, nil
}

// TransitionStatus moves id from one status to another only if it is
// currently in from.
func (s *Store) TransitionStatus(ctx context.Context, id string, from, to core.DatasetStatus) (bool, error) {
	if !core.CanTransition(from, to) {
		return false, fmt.Errorf("transition %s -> %s: %w", from, to, core.ErrInvalidState)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE datasets SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("transition dataset status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SaveOutcome writes a terminal validation outcome while the dataset is
// still validating. Returns false if it is not (including deleted).
func (s *Store) SaveOutcome(ctx context.Context, id string, o core.ValidationOutcome) (bool, error) {
	if !core.CanTransition(core.StatusValidating, o.Status) {
		return false, fmt.Errorf("outcome status %s: %w", o.Status, core.ErrInvalidState)
	}
	breakdown, err := encodeBreakdown(o.QualityBreakdown)
	if err != nil {
		return false, err
	}

	tag, err := s.pool.Exec(ctx, `UPDATE datasets SET
			status = $2,
			format_version = $3,
			fps = $4,
			total_frames = $5,
			total_duration = $6,
			demonstration_count = $7,
			quality_score = $8,
			quality_breakdown = $9,
			manifest = $10,
			stats = $11,
			updated_at = now()
		WHERE id = $1 AND status = 'validating'`,
		id, string(o.Status), o.FormatVersion, o.FPS, o.TotalFrames, o.TotalDuration,
		o.DemonstrationCount, o.QualityScore, breakdown, nullJSON(o.Manifest), nullJSON(o.Stats),
	)
	if err != nil {
		return false, fmt.Errorf("save validation outcome: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes the row and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM datasets WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete dataset: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RobotTypeExists reports whether a robot type with id is registered.
func (s *Store) RobotTypeExists(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, "robot_types", id)
}

// SkillExists reports whether a skill with id is registered.
func (s *Store) SkillExists(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, "skills", id)
}

func (s *Store) exists(ctx context.Context, table, id string) (bool, error) {
	var ok bool
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)", quoteIdentifier(table))
	if err := s.pool.QueryRow(ctx, query, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("check %s: %w", table, err)
	}
	return ok, nil
}

// scanDataset reads one row selected with datasetColumns.
func scanDataset(row pgx.Row) (*core.Dataset, error) {
	var (
		d         core.Dataset
		status    string
		breakdown []byte
		manifest  []byte
		stats     []byte
	)
	err := row.Scan(
		&d.ID, &d.Name, &d.Description, &d.RobotTypeID, &d.SkillID, &d.StoragePath,
		&d.FormatVersion, &d.FPS, &d.TotalFrames, &d.TotalDuration, &d.DemonstrationCount,
		&d.QualityScore, &breakdown, &manifest, &stats, &status, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Status = core.DatasetStatus(status)
	if len(manifest) > 0 {
		d.Manifest = json.RawMessage(manifest)
	}
	if len(stats) > 0 {
		d.Stats = json.RawMessage(stats)
	}
	if len(breakdown) > 0 {
		var b core.QualityBreakdown
		if err := json.Unmarshal(breakdown, &b); err != nil {
			return nil, fmt.Errorf("decode quality breakdown: %w", err)
		}
		d.QualityBreakdown = &b
	}
	return &d, nil
}

// nullJSON maps an empty document to SQL NULL.
func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func encodeBreakdown(b *core.QualityBreakdown) (any, error) {
	if b == nil {
		return nil, nil
	}
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode quality breakdown: %w", err)
	}
	return data, nil
}
