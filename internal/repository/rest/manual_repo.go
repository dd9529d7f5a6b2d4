// Package rest implements repository interfaces over the backend table API.
package rest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/troubleshooter/internal/backend"
	"github.com/and161185/troubleshooter/internal/convert"
	"github.com/and161185/troubleshooter/internal/errs"
	"github.com/and161185/troubleshooter/internal/model"
	"github.com/and161185/troubleshooter/internal/repository"
	"github.com/gofrs/uuid/v5"
)

const (
	manualsTable  = "manuals"
	stepsTable    = "steps"
	profilesTable = "profiles"
)

var newestFirst = &backend.Order{Column: "created_at", Desc: true}

// ManualRepo implements ManualRepository over backend tables.
type ManualRepo struct {
	t   backend.Tables
	now func() time.Time
}

// NewManualRepo constructs a manual repository.
func NewManualRepo(t backend.Tables) *ManualRepo { return &ManualRepo{t: t, now: time.Now} }

var _ repository.ManualRepository = (*ManualRepo)(nil)

// List returns manuals with embedded steps, newest first.
func (r *ManualRepo) List(ctx context.Context) ([]model.Manual, error) {
	raws, err := r.t.Select(ctx, manualsTable, backend.Query{Embed: []string{stepsTable}, Order: newestFirst})
	if err != nil {
		return nil, err
	}
	return convert.ManualsFromJSON(raws)
}

// ListSummaries returns manual rows without the join.
func (r *ManualRepo) ListSummaries(ctx context.Context, limit int) ([]model.Manual, error) {
	raws, err := r.t.Select(ctx, manualsTable, backend.Query{Order: newestFirst, Limit: limit})
	if err != nil {
		return nil, err
	}
	return convert.ManualsFromJSON(raws)
}

// Get loads one manual with steps.
func (r *ManualRepo) Get(ctx context.Context, id uuid.UUID) (*model.Manual, error) {
	raws, err := r.t.Select(ctx, manualsTable, backend.Query{
		Embed:   []string{stepsTable},
		Filters: []backend.Filter{backend.Eq("id", id.String())},
	})
	if err != nil {
		return nil, err
	}
	if len(raws) == 0 {
		return nil, errs.ErrNotFound
	}
	ms, err := convert.ManualsFromJSON(raws[:1])
	if err != nil {
		return nil, err
	}
	return &ms[0], nil
}

// Create inserts the manual row and returns it with server-assigned fields.
func (r *ManualRepo) Create(ctx context.Context, m model.Manual) (*model.Manual, error) {
	row := convert.ManualRow(model.ManualInput{Title: m.Title, Category: m.Category, Description: m.Description})
	row["author_id"] = m.AuthorID.String()
	row["author_name"] = m.AuthorName
	raws, err := r.t.Insert(ctx, manualsTable, []backend.Row{row})
	if err != nil {
		return nil, err
	}
	if len(raws) == 0 {
		return nil, errors.New("insert manual: no row returned")
	}
	ms, err := convert.ManualsFromJSON(raws[:1])
	if err != nil {
		return nil, fmt.Errorf("insert manual: %w", err)
	}
	return &ms[0], nil
}

// Update overwrites the editable fields of a manual.
func (r *ManualRepo) Update(ctx context.Context, id uuid.UUID, in model.ManualInput) error {
	patch := convert.ManualRow(in)
	patch["updated_at"] = r.now().UTC()
	n, err := r.t.Update(ctx, manualsTable, patch, backend.Eq("id", id.String()))
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes a manual; steps cascade in the database.
func (r *ManualRepo) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := r.t.Delete(ctx, manualsTable, backend.Eq("id", id.String()))
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// StepRepo implements StepRepository over backend tables.
type StepRepo struct{ t backend.Tables }

// NewStepRepo constructs a step repository.
func NewStepRepo(t backend.Tables) *StepRepo { return &StepRepo{t: t} }

var _ repository.StepRepository = (*StepRepo)(nil)

// DeleteByManual removes all steps of a manual. Deleting nothing is not an error.
func (r *StepRepo) DeleteByManual(ctx context.Context, manualID uuid.UUID) error {
	_, err := r.t.Delete(ctx, stepsTable, backend.Eq("manual_id", manualID.String()))
	return err
}

// InsertBatch stores all steps in one request.
func (r *StepRepo) InsertBatch(ctx context.Context, manualID uuid.UUID, steps []model.StepInput) error {
	if len(steps) == 0 {
		return nil
	}
	_, err := r.t.Insert(ctx, stepsTable, convert.StepRows(manualID, steps))
	return err
}
