package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/and161185/troubleshooter/internal/backend"
	"github.com/and161185/troubleshooter/internal/config"
	"github.com/and161185/troubleshooter/internal/errs"
	"github.com/and161185/troubleshooter/internal/model"
	"github.com/and161185/troubleshooter/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// ProfileSession is the part of SessionManager the admin controller needs.
type ProfileSession interface {
	Identity
	RefreshProfile(ctx context.Context) error
	UpdateDisplayName(ctx context.Context, name string) error
}

var _ ProfileSession = (*SessionManager)(nil)

// ProfileOptions configures a ProfileService.
type ProfileOptions struct {
	EmailDomain string
	RedirectURL string
	Timeouts    config.Timeouts
	Logger      *zap.Logger
}

// ProfileService backs the admin dashboard: every operation needs an admin profile.
type ProfileService struct {
	profiles repository.ProfileRepository
	auth     backend.Auth
	session  ProfileSession
	log      *zap.Logger
	to       config.Timeouts
	domain   string
	redirect string

	mu     sync.RWMutex
	items  []model.Profile
	status model.Status
}

// NewProfileService constructs a ProfileService.
func NewProfileService(profiles repository.ProfileRepository, auth backend.Auth, session ProfileSession, opts ProfileOptions) *ProfileService {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	domain := opts.EmailDomain
	if domain == "" {
		domain = "internal.com"
	}
	return &ProfileService{
		profiles: profiles,
		auth:     auth,
		session:  session,
		log:      log.Named("profiles"),
		to:       opts.Timeouts,
		domain:   domain,
		redirect: opts.RedirectURL,
	}
}

func (s *ProfileService) requireAdmin() (*model.User, error) {
	u := s.session.CurrentUser()
	if u == nil {
		return nil, errs.ErrUnauthorized
	}
	if !s.session.CurrentProfile().IsAdmin() {
		return nil, errs.ErrForbidden
	}
	return u, nil
}

// Fetch reloads all profiles.
func (s *ProfileService) Fetch(ctx context.Context) error {
	if _, err := s.requireAdmin(); err != nil {
		return err
	}
	ps, err := runWithDeadline(ctx, s.log, "profiles.list", s.to.AdminList, s.profiles.List)
	if err != nil {
		s.log.Error("profile list failed", zap.Error(err))
		s.setStatus(errorStatus("Could not load users", err))
		return err
	}
	s.mu.Lock()
	s.items, s.status = ps, model.Status{}
	s.mu.Unlock()
	return nil
}

// UpdateRole sets the role of profile id. Changing one's own role refreshes the session profile.
func (s *ProfileService) UpdateRole(ctx context.Context, id uuid.UUID, role model.Role) error {
	me, err := s.requireAdmin()
	if err != nil {
		return err
	}
	if !role.IsValid() {
		return errs.Invalid("role", "must be one of: user admin")
	}
	err = runErrWithDeadline(ctx, s.log, "profiles.role", s.to.Role, func(ctx context.Context) error {
		return s.profiles.Update(ctx, id, repository.ProfilePatch{Role: &role})
	})
	if err != nil {
		s.log.Error("role update failed", zap.Stringer("profile", id), zap.Error(err))
		s.setStatus(errorStatus("Role not changed", err))
		return err
	}
	s.patch(id, func(p *model.Profile) { p.Role = role })
	if id == me.ID {
		if err := s.session.RefreshProfile(ctx); err != nil {
			s.log.Warn("refresh own profile failed", zap.Error(err))
		}
	}
	s.setStatus(model.Status{Kind: model.StatusSuccess, Message: "Role updated"})
	return nil
}

// Save writes display name and role. Editing oneself also updates the auth
// metadata and refreshes the session profile.
func (s *ProfileService) Save(ctx context.Context, upd model.ProfileUpdate) error {
	me, err := s.requireAdmin()
	if err != nil {
		return err
	}
	upd.DisplayName = strings.TrimSpace(upd.DisplayName)
	if err := validateStruct(upd); err != nil {
		return err
	}
	self := upd.ID == me.ID
	err = runErrWithDeadline(ctx, s.log, "profiles.save", s.to.Save, func(ctx context.Context) error {
		if err := s.profiles.Update(ctx, upd.ID, repository.ProfilePatch{DisplayName: &upd.DisplayName, Role: &upd.Role}); err != nil {
			return err
		}
		if self {
			if err := s.session.UpdateDisplayName(ctx, upd.DisplayName); err != nil {
				return fmt.Errorf("profile saved, auth metadata not: %w: %w", errs.ErrPartialWrite, err)
			}
		}
		return nil
	})
	if err != nil {
		s.log.Error("profile save failed", zap.Stringer("profile", upd.ID), zap.Error(err))
		s.setStatus(errorStatus("User not saved", err))
		return err
	}
	s.patch(upd.ID, func(p *model.Profile) {
		p.DisplayName = upd.DisplayName
		p.Role = upd.Role
	})
	if self {
		if err := s.session.RefreshProfile(ctx); err != nil {
			s.log.Warn("refresh own profile failed", zap.Error(err))
		}
	}
	s.setStatus(model.Status{Kind: model.StatusSuccess, Message: "User updated"})
	return nil
}

// Delete removes profile id. The auth account itself stays with the backend.
func (s *ProfileService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.requireAdmin(); err != nil {
		return err
	}
	err := runErrWithDeadline(ctx, s.log, "profiles.delete", s.to.Delete, func(ctx context.Context) error {
		return s.profiles.Delete(ctx, id)
	})
	if err != nil {
		s.log.Error("profile delete failed", zap.Stringer("profile", id), zap.Error(err))
		s.setStatus(errorStatus("User not deleted", err))
		return err
	}
	s.mu.Lock()
	kept := s.items[:0:0]
	for _, p := range s.items {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.items = kept
	s.status = model.Status{Kind: model.StatusSuccess, Message: "User deleted"}
	s.mu.Unlock()
	return nil
}

// CreateUser registers a new account through the public sign-up endpoint.
// The backend signs the new account in, replacing the admin's session.
func (s *ProfileService) CreateUser(ctx context.Context, nu model.NewUser) (*model.AuthResult, error) {
	if _, err := s.requireAdmin(); err != nil {
		return nil, err
	}
	nu.Email = strings.ToLower(strings.TrimSpace(nu.Email))
	nu.DisplayName = strings.TrimSpace(nu.DisplayName)
	if err := validateStruct(nu); err != nil {
		return nil, err
	}
	s.log.Warn("creating a user through sign-up replaces the current session", zap.String("email", nu.Email))
	res, err := runWithDeadline(ctx, s.log, "profiles.create_user", s.to.SignUp, func(ctx context.Context) (*model.AuthResult, error) {
		return s.auth.SignUp(ctx, nu.Email, nu.Password, map[string]any{"display_name": nu.DisplayName})
	})
	if err != nil {
		s.log.Error("create user failed", zap.Error(err))
		s.setStatus(errorStatus("User not created", err))
		return nil, err
	}
	s.setStatus(model.Status{Kind: model.StatusSuccess, Message: "User created"})
	return res, nil
}

// SendPasswordReset mails a recovery link to the account behind profile id.
// The address is derived from the display name the same way sign-in derives it.
func (s *ProfileService) SendPasswordReset(ctx context.Context, id uuid.UUID) error {
	if _, err := s.requireAdmin(); err != nil {
		return err
	}
	p, ok := s.Find(id)
	if !ok {
		got, err := runWithDeadline(ctx, s.log, "profiles.get", s.to.AdminList, func(ctx context.Context) (*model.Profile, error) {
			return s.profiles.Get(ctx, id)
		})
		if err != nil {
			s.setStatus(errorStatus("Reset not sent", err))
			return err
		}
		p = got
	}
	if p.DisplayName == "" {
		err := errs.Invalid("display_name", "is required to derive the email")
		s.setStatus(errorStatus("Reset not sent", err))
		return err
	}
	email := EmailForUsername(p.DisplayName, s.domain)
	redirect := ""
	if s.redirect != "" {
		redirect = strings.TrimRight(s.redirect, "/") + "/reset-password"
	}
	err := runErrWithDeadline(ctx, s.log, "profiles.reset_password", s.to.ResetPassword, func(ctx context.Context) error {
		return s.auth.ResetPasswordForEmail(ctx, email, redirect)
	})
	if err != nil {
		s.log.Error("password reset failed", zap.Stringer("profile", id), zap.Error(err))
		s.setStatus(errorStatus("Reset not sent", err))
		return err
	}
	s.setStatus(model.Status{Kind: model.StatusSuccess, Message: "Reset link sent to " + email})
	return nil
}

// Profiles returns a copy of the loaded profiles.
func (s *ProfileService) Profiles() []model.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Profile(nil), s.items...)
}

// Find returns the loaded profile with id.
func (s *ProfileService) Find(id uuid.UUID) (*model.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.items {
		if p.ID == id {
			c := p
			return &c, true
		}
	}
	return nil, false
}

// Filter matches query against display name and role, case-insensitively.
func (s *ProfileService) Filter(query string) []model.Profile {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []model.Profile
	for _, p := range s.Profiles() {
		if q == "" || strings.Contains(strings.ToLower(p.DisplayName), q) || strings.Contains(string(p.Role), q) {
			out = append(out, p)
		}
	}
	return out
}

// Status returns the last status message.
func (s *ProfileService) Status() model.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// DismissStatus clears the status message.
func (s *ProfileService) DismissStatus() { s.setStatus(model.Status{}) }

func (s *ProfileService) setStatus(st model.Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

func (s *ProfileService) patch(id uuid.UUID, fn func(*model.Profile)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			fn(&s.items[i])
		}
	}
}
