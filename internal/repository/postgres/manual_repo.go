package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/and161185/troubleshooter/internal/errs"
	"github.com/and161185/troubleshooter/internal/model"
	"github.com/and161185/troubleshooter/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// ManualRepo implements ManualRepository using PostgreSQL.
type ManualRepo struct{ db *DB }

// NewManualRepo constructs a manual repository.
func NewManualRepo(db *DB) *ManualRepo { return &ManualRepo{db: db} }

var _ repository.ManualRepository = (*ManualRepo)(nil)

const manualColumns = `id, title, category, description, author_id, author_name, created_at, updated_at`

func scanManual(row pgx.Row) (model.Manual, error) {
	var (
		m   model.Manual
		cat string
		upd *time.Time
	)
	if err := row.Scan(&m.ID, &m.Title, &cat, &m.Description, &m.AuthorID, &m.AuthorName, &m.CreatedAt, &upd); err != nil {
		return model.Manual{}, err
	}
	m.Category = model.Category(cat)
	if upd != nil {
		m.UpdatedAt = *upd
	}
	return m, nil
}

func (r *ManualRepo) queryManuals(ctx context.Context, q string, args ...any) ([]model.Manual, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Manual{}
	for rows.Next() {
		m, err := scanManual(rows)
		if err != nil {
			return nil, err
		}
		m.Steps = []model.Step{}
		out = append(out, m)
	}
	return out, rows.Err()
}

// List returns manuals newest first, then loads all their steps with one query.
func (r *ManualRepo) List(ctx context.Context) ([]model.Manual, error) {
	const q = `
SELECT ` + manualColumns + `
FROM manuals
ORDER BY created_at DESC`
	ms, err := r.queryManuals(ctx, q)
	if err != nil || len(ms) == 0 {
		return ms, err
	}

	ids := make([]string, len(ms))
	idx := make(map[uuid.UUID]int, len(ms))
	for i := range ms {
		ids[i] = ms[i].ID.String()
		idx[ms[i].ID] = i
	}
	const qs = `
SELECT id, manual_id, title, content, image_url, step_order
FROM steps
WHERE manual_id = ANY($1::uuid[])
ORDER BY manual_id, step_order`
	steps, err := r.querySteps(ctx, qs, ids)
	if err != nil {
		return nil, err
	}
	for _, st := range steps {
		if i, ok := idx[st.ManualID]; ok {
			ms[i].Steps = append(ms[i].Steps, st)
		}
	}
	return ms, nil
}

// ListSummaries returns manual rows only.
func (r *ManualRepo) ListSummaries(ctx context.Context, limit int) ([]model.Manual, error) {
	const q = `
SELECT ` + manualColumns + `
FROM manuals
ORDER BY created_at DESC
LIMIT $1`
	return r.queryManuals(ctx, q, limit)
}

// Get selects one manual and its steps.
func (r *ManualRepo) Get(ctx context.Context, id uuid.UUID) (*model.Manual, error) {
	const q = `
SELECT ` + manualColumns + `
FROM manuals WHERE id=$1`
	m, err := scanManual(r.db.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	const qs = `
SELECT id, manual_id, title, content, image_url, step_order
FROM steps WHERE manual_id=$1
ORDER BY step_order`
	if m.Steps, err = r.querySteps(ctx, qs, id); err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a manual row; id and timestamps come from the database.
func (r *ManualRepo) Create(ctx context.Context, m model.Manual) (*model.Manual, error) {
	const q = `
INSERT INTO manuals (title, category, description, author_id, author_name)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at`
	out := m
	out.Steps = nil
	if err := r.db.Pool.QueryRow(ctx, q, m.Title, string(m.Category), m.Description, m.AuthorID, m.AuthorName).
		Scan(&out.ID, &out.CreatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update overwrites editable fields.
func (r *ManualRepo) Update(ctx context.Context, id uuid.UUID, in model.ManualInput) error {
	const q = `
UPDATE manuals
SET title=$2, category=$3, description=$4, updated_at=now()
WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, in.Title, string(in.Category), in.Description)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes a manual; steps are removed by ON DELETE CASCADE.
func (r *ManualRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM manuals WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *ManualRepo) querySteps(ctx context.Context, q string, args ...any) ([]model.Step, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Step{}
	for rows.Next() {
		var (
			st  model.Step
			img *string
		)
		if err := rows.Scan(&st.ID, &st.ManualID, &st.Title, &st.Content, &img, &st.StepOrder); err != nil {
			return nil, err
		}
		if img != nil {
			st.ImageURL = *img
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// StepRepo implements StepRepository using PostgreSQL.
type StepRepo struct{ db *DB }

// NewStepRepo constructs a step repository.
func NewStepRepo(db *DB) *StepRepo { return &StepRepo{db: db} }

var _ repository.StepRepository = (*StepRepo)(nil)

// DeleteByManual removes all steps of a manual.
func (r *StepRepo) DeleteByManual(ctx context.Context, manualID uuid.UUID) error {
	const q = `DELETE FROM steps WHERE manual_id=$1`
	_, err := r.db.Pool.Exec(ctx, q, manualID)
	return err
}

// InsertBatch inserts all steps with a single multi-row INSERT.
func (r *StepRepo) InsertBatch(ctx context.Context, manualID uuid.UUID, steps []model.StepInput) error {
	if len(steps) == 0 {
		return nil
	}
	q, args := insertStepsSQL(manualID, steps)
	_, err := r.db.Pool.Exec(ctx, q, args...)
	switch pgCode(err) {
	case "":
		return err
	case codeForeignKeyViolation:
		return fmt.Errorf("insert steps: manual %s: %w", manualID, errs.ErrNotFound)
	case codeUniqueViolation:
		return fmt.Errorf("insert steps: duplicate step order: %w", errs.ErrValidation)
	default:
		return err
	}
}

func insertStepsSQL(manualID uuid.UUID, steps []model.StepInput) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO steps (manual_id, title, content, image_url, step_order) VALUES ")
	args := make([]any, 0, len(steps)*5)
	for i, s := range steps {
		if i > 0 {
			b.WriteString(", ")
		}
		n := i * 5
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5)
		var img *string
		if s.ImageURL != "" {
			v := s.ImageURL
			img = &v
		}
		args = append(args, manualID, s.Title, s.Content, img, i+1)
	}
	return b.String(), args
}
