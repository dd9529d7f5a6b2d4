// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/troubleshooter/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ManualRepository provides access to manuals.
type ManualRepository interface {
	// List returns all manuals with their steps, newest first.
	List(ctx context.Context) ([]model.Manual, error)
	// ListSummaries returns at most limit manuals without steps, newest first.
	ListSummaries(ctx context.Context, limit int) ([]model.Manual, error)
	// Get loads one manual with its steps.
	Get(ctx context.Context, id uuid.UUID) (*model.Manual, error)
	// Create inserts the manual row (steps ignored) and returns it as stored.
	Create(ctx context.Context, m model.Manual) (*model.Manual, error)
	// Update overwrites title, category and description and bumps updated_at.
	Update(ctx context.Context, id uuid.UUID, in model.ManualInput) error
	// Delete removes the manual; its steps go with it.
	Delete(ctx context.Context, id uuid.UUID) error
}

// StepRepository provides access to the steps of a manual.
type StepRepository interface {
	// DeleteByManual removes every step of the manual.
	DeleteByManual(ctx context.Context, manualID uuid.UUID) error
	// InsertBatch stores steps with step_order 1..N in slice order.
	InsertBatch(ctx context.Context, manualID uuid.UUID, steps []model.StepInput) error
}
