package repository

import (
	"context"

	"github.com/and161185/troubleshooter/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ProfilePatch lists the profile fields to change; nil fields are left as is.
type ProfilePatch struct {
	DisplayName *string
	Role        *model.Role
}

// ProfileRepository provides access to user profiles.
type ProfileRepository interface {
	// Get loads a profile; a missing row is errs.ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	// List returns all profiles ordered by display name.
	List(ctx context.Context) ([]model.Profile, error)
	// Update applies patch and bumps updated_at.
	Update(ctx context.Context, id uuid.UUID, patch ProfilePatch) error
	// Delete removes a profile row.
	Delete(ctx context.Context, id uuid.UUID) error
}
