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

// ProfileRepo implements ProfileRepository using PostgreSQL.
type ProfileRepo struct{ db *DB }

// NewProfileRepo constructs a profile repository.
func NewProfileRepo(db *DB) *ProfileRepo { return &ProfileRepo{db: db} }

var _ repository.ProfileRepository = (*ProfileRepo)(nil)

func scanProfile(row pgx.Row) (model.Profile, error) {
	var (
		p    model.Profile
		name *string
		role string
		upd  *time.Time
	)
	if err := row.Scan(&p.ID, &name, &role, &upd); err != nil {
		return model.Profile{}, err
	}
	if name != nil {
		p.DisplayName = *name
	}
	if upd != nil {
		p.UpdatedAt = *upd
	}
	p.Role = model.ParseRole(role)
	return p, nil
}

// Get selects a profile by id.
func (r *ProfileRepo) Get(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	const q = `
SELECT id, display_name, role, updated_at
FROM profiles WHERE id=$1`
	p, err := scanProfile(r.db.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// List returns profiles ordered by display name.
func (r *ProfileRepo) List(ctx context.Context) ([]model.Profile, error) {
	const q = `
SELECT id, display_name, role, updated_at
FROM profiles
ORDER BY display_name`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update applies the non-nil patch fields.
func (r *ProfileRepo) Update(ctx context.Context, id uuid.UUID, patch repository.ProfilePatch) error {
	sets := []string{}
	args := []any{id}
	if patch.DisplayName != nil {
		args = append(args, *patch.DisplayName)
		sets = append(sets, fmt.Sprintf("display_name=$%d", len(args)))
	}
	if patch.Role != nil {
		args = append(args, string(*patch.Role))
		sets = append(sets, fmt.Sprintf("role=$%d", len(args)))
	}
	if len(sets) == 0 {
		return errors.New("validation: empty profile patch")
	}
	q := "UPDATE profiles SET " + strings.Join(sets, ", ") + ", updated_at=now() WHERE id=$1"
	tag, err := r.db.Pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes a profile row.
func (r *ProfileRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM profiles WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
