package rest

import (
	"context"
	"errors"
	"time"

	"github.com/and161185/troubleshooter/internal/backend"
	"github.com/and161185/troubleshooter/internal/convert"
	"github.com/and161185/troubleshooter/internal/errs"
	"github.com/and161185/troubleshooter/internal/model"
	"github.com/and161185/troubleshooter/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// ProfileRepo implements ProfileRepository over backend tables.
type ProfileRepo struct {
	t   backend.Tables
	now func() time.Time
}

// NewProfileRepo constructs a profile repository.
func NewProfileRepo(t backend.Tables) *ProfileRepo { return &ProfileRepo{t: t, now: time.Now} }

var _ repository.ProfileRepository = (*ProfileRepo)(nil)

// Get loads a profile by user id.
func (r *ProfileRepo) Get(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	raws, err := r.t.Select(ctx, profilesTable, backend.Query{Filters: []backend.Filter{backend.Eq("id", id.String())}})
	if err != nil {
		return nil, err
	}
	if len(raws) == 0 {
		return nil, errs.ErrNotFound
	}
	ps, err := convert.ProfilesFromJSON(raws[:1])
	if err != nil {
		return nil, err
	}
	return &ps[0], nil
}

// List returns profiles ordered by display name.
func (r *ProfileRepo) List(ctx context.Context) ([]model.Profile, error) {
	raws, err := r.t.Select(ctx, profilesTable, backend.Query{Order: &backend.Order{Column: "display_name"}})
	if err != nil {
		return nil, err
	}
	return convert.ProfilesFromJSON(raws)
}

// Update applies the non-nil fields of patch.
func (r *ProfileRepo) Update(ctx context.Context, id uuid.UUID, patch repository.ProfilePatch) error {
	row := backend.Row{}
	if patch.DisplayName != nil {
		row["display_name"] = *patch.DisplayName
	}
	if patch.Role != nil {
		row["role"] = string(*patch.Role)
	}
	if len(row) == 0 {
		return errors.New("validation: empty profile patch")
	}
	row["updated_at"] = r.now().UTC()
	n, err := r.t.Update(ctx, profilesTable, row, backend.Eq("id", id.String()))
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes a profile row.
func (r *ProfileRepo) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := r.t.Delete(ctx, profilesTable, backend.Eq("id", id.String()))
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}
