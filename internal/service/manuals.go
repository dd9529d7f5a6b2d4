package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/and161185/troubleshooter/internal/config"
	"github.com/and161185/troubleshooter/internal/errs"
	"github.com/and161185/troubleshooter/internal/model"
	"github.com/and161185/troubleshooter/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// ManualOptions configures a ManualService.
type ManualOptions struct {
	Timeouts      config.Timeouts
	FallbackLimit int // rows loaded by the summary query when the full list fails
	Logger        *zap.Logger
}

// ManualService keeps the in-memory manual collection in sync with the backend.
type ManualService struct {
	manuals  repository.ManualRepository
	steps    repository.StepRepository
	identity Identity
	log      *zap.Logger
	to       config.Timeouts
	limit    int

	mu      sync.RWMutex
	items   []model.Manual
	partial bool
	status  model.Status
}

// NewManualService constructs a ManualService with an empty collection.
func NewManualService(manuals repository.ManualRepository, steps repository.StepRepository, identity Identity, opts ManualOptions) *ManualService {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	limit := opts.FallbackLimit
	if limit <= 0 {
		limit = 5
	}
	return &ManualService{
		manuals:  manuals,
		steps:    steps,
		identity: identity,
		log:      log.Named("manuals"),
		to:       opts.Timeouts,
		limit:    limit,
	}
}

// Fetch reloads the collection. When the full list fails it falls back to a
// few summary rows and marks the collection partial; if that also fails the
// previous collection stays, the status reports the error and the first error is returned.
func (s *ManualService) Fetch(ctx context.Context) error {
	ms, err := runWithDeadline(ctx, s.log, "manuals.list", s.to.List, s.manuals.List)
	if err == nil {
		s.mu.Lock()
		s.items, s.partial, s.status = ms, false, model.Status{}
		s.mu.Unlock()
		return nil
	}
	s.log.Warn("manual list failed, loading summaries", zap.Error(err))

	fb, ferr := runWithDeadline(ctx, s.log, "manuals.list_fallback", s.to.List, func(ctx context.Context) ([]model.Manual, error) {
		return s.manuals.ListSummaries(ctx, s.limit)
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	if ferr == nil {
		s.items, s.partial, s.status = fb, true, model.Status{}
		return nil
	}
	s.log.Error("manual summaries failed", zap.Error(ferr))
	s.status = errorStatus("Could not load manuals", err)
	return err
}

// FetchAll reloads the full collection for the admin listing. There is no
// summary fallback: on failure the previous collection stays and the status reports the error.
func (s *ManualService) FetchAll(ctx context.Context) error {
	ms, err := runWithDeadline(ctx, s.log, "manuals.admin_list", s.to.AdminList, s.manuals.List)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.log.Error("admin manual list failed", zap.Error(err))
		s.status = errorStatus("Could not load manuals", err)
		return err
	}
	s.items, s.partial, s.status = ms, false, model.Status{}
	return nil
}

// Create stores in as a new manual by the signed-in user and reloads the collection.
func (s *ManualService) Create(ctx context.Context, in model.ManualInput) (*model.Manual, error) {
	in = normalizeManual(in)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	user := s.identity.CurrentUser()
	if user == nil {
		s.setStatus(errorStatus("Manual not saved", errs.ErrUnauthorized))
		return nil, errs.ErrUnauthorized
	}
	author := authorName(user, s.identity.CurrentProfile())

	created, err := runWithDeadline(ctx, s.log, "manuals.create", s.to.Save, func(ctx context.Context) (*model.Manual, error) {
		m, err := s.manuals.Create(ctx, model.Manual{
			Title:       in.Title,
			Category:    in.Category,
			Description: in.Description,
			AuthorID:    user.ID,
			AuthorName:  author,
		})
		if err != nil {
			return nil, err
		}
		if err := s.steps.InsertBatch(ctx, m.ID, in.Steps); err != nil {
			return m, fmt.Errorf("manual %s saved without steps: %w: %w", m.ID, errs.ErrPartialWrite, err)
		}
		return m, nil
	})
	if err != nil {
		s.log.Error("create manual failed", zap.Error(err))
		if errors.Is(err, errs.ErrPartialWrite) {
			s.refetch(ctx)
		}
		s.setStatus(errorStatus("Manual not saved", err))
		return created, err
	}
	s.refetch(ctx)
	s.setStatus(model.Status{Kind: model.StatusSuccess, Message: "Manual created"})
	return created, nil
}

// Update replaces the manual's fields and its whole step list.
// The three writes are not atomic: a failure after the first one wraps errs.ErrPartialWrite.
func (s *ManualService) Update(ctx context.Context, id uuid.UUID, in model.ManualInput) error {
	in = normalizeManual(in)
	if err := validateStruct(in); err != nil {
		return err
	}
	user, profile := s.identity.CurrentUser(), s.identity.CurrentProfile()
	if user == nil {
		s.setStatus(errorStatus("Manual not saved", errs.ErrUnauthorized))
		return errs.ErrUnauthorized
	}

	err := runErrWithDeadline(ctx, s.log, "manuals.update", s.to.Save, func(ctx context.Context) error {
		if err := s.authorize(ctx, id, user, profile); err != nil {
			return err
		}
		if err := s.manuals.Update(ctx, id, in); err != nil {
			return err
		}
		if err := s.steps.DeleteByManual(ctx, id); err != nil {
			return fmt.Errorf("clear steps of manual %s: %w: %w", id, errs.ErrPartialWrite, err)
		}
		if err := s.steps.InsertBatch(ctx, id, in.Steps); err != nil {
			return fmt.Errorf("insert steps of manual %s: %w: %w", id, errs.ErrPartialWrite, err)
		}
		return nil
	})
	if err != nil {
		s.log.Error("update manual failed", zap.Stringer("manual", id), zap.Error(err))
		if errors.Is(err, errs.ErrPartialWrite) {
			s.refetch(ctx)
		}
		s.setStatus(errorStatus("Manual not saved", err))
		return err
	}
	s.refetch(ctx)
	s.setStatus(model.Status{Kind: model.StatusSuccess, Message: "Manual updated"})
	return nil
}

// Delete removes the manual and drops it from the collection.
func (s *ManualService) Delete(ctx context.Context, id uuid.UUID) error {
	user, profile := s.identity.CurrentUser(), s.identity.CurrentProfile()
	if user == nil {
		s.setStatus(errorStatus("Manual not deleted", errs.ErrUnauthorized))
		return errs.ErrUnauthorized
	}
	err := runErrWithDeadline(ctx, s.log, "manuals.delete", s.to.Delete, func(ctx context.Context) error {
		if err := s.authorize(ctx, id, user, profile); err != nil {
			return err
		}
		return s.manuals.Delete(ctx, id)
	})
	if err != nil {
		s.log.Error("delete manual failed", zap.Stringer("manual", id), zap.Error(err))
		s.setStatus(errorStatus("Manual not deleted", err))
		return err
	}

	s.mu.Lock()
	kept := s.items[:0:0]
	for _, m := range s.items {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	s.items = kept
	s.status = model.Status{Kind: model.StatusSuccess, Message: "Manual deleted"}
	s.mu.Unlock()
	return nil
}

// authorize checks that user may modify manual id, loading it when not in memory.
func (s *ManualService) authorize(ctx context.Context, id uuid.UUID, user *model.User, profile *model.Profile) error {
	m, ok := s.Find(id)
	if !ok {
		got, err := s.manuals.Get(ctx, id)
		if err != nil {
			return err
		}
		m = got
	}
	if !model.CanModify(m, user, profile) {
		return errs.ErrForbidden
	}
	return nil
}

func (s *ManualService) refetch(ctx context.Context) {
	if err := s.Fetch(ctx); err != nil {
		s.log.Warn("reload after write failed", zap.Error(err))
	}
}

// Manuals returns a copy of the collection, newest first.
func (s *ManualService) Manuals() []model.Manual {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Manual, len(s.items))
	for i, m := range s.items {
		out[i] = copyManual(m)
	}
	return out
}

// Partial reports whether the collection came from the summary fallback.
func (s *ManualService) Partial() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.partial
}

// Status returns the last status message.
func (s *ManualService) Status() model.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// DismissStatus clears the status message.
func (s *ManualService) DismissStatus() { s.setStatus(model.Status{}) }

func (s *ManualService) setStatus(st model.Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// Find returns a copy of the manual with id from the collection.
func (s *ManualService) Find(id uuid.UUID) (*model.Manual, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.items {
		if m.ID == id {
			c := copyManual(m)
			return &c, true
		}
	}
	return nil, false
}

// Filter returns manuals whose title or description contains query
// (case-insensitive) in category; "" and model.CategoryAll match every category.
func (s *ManualService) Filter(query string, category model.Category) []model.Manual {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []model.Manual
	for _, m := range s.Manuals() {
		if category != "" && category != model.CategoryAll && m.Category != category {
			continue
		}
		if q == "" || strings.Contains(strings.ToLower(m.Title), q) || strings.Contains(strings.ToLower(m.Description), q) {
			out = append(out, m)
		}
	}
	return out
}

// FilterByTitleOrAuthor matches query against title and author name, as the admin view does.
func (s *ManualService) FilterByTitleOrAuthor(query string) []model.Manual {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []model.Manual
	for _, m := range s.Manuals() {
		if q == "" || strings.Contains(strings.ToLower(m.Title), q) || strings.Contains(strings.ToLower(m.AuthorName), q) {
			out = append(out, m)
		}
	}
	return out
}

func copyManual(m model.Manual) model.Manual {
	m.Steps = append([]model.Step(nil), m.Steps...)
	return m
}

// authorName picks the profile display name, then the auth display name, then the email.
func authorName(u *model.User, p *model.Profile) string {
	if p != nil && p.DisplayName != "" {
		return p.DisplayName
	}
	return u.Label()
}

func errorStatus(prefix string, err error) model.Status {
	return model.Status{Kind: model.StatusError, Message: prefix + ": " + describe(err)}
}

// describe renders err for the status line.
func describe(err error) string {
	var be *errs.BackendError
	switch {
	case errors.Is(err, errs.ErrTimeout):
		return "the server did not answer in time"
	case errors.Is(err, errs.ErrUnauthorized):
		return "sign in required"
	case errors.Is(err, errs.ErrForbidden):
		return "not allowed"
	case errors.Is(err, errs.ErrNotFound):
		return "not found"
	case errors.As(err, &be) && be.Message != "":
		return be.Message
	default:
		return err.Error()
	}
}
