package service

import (
	"context"
	"errors"
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

// Phase is the lifecycle state of a SessionManager.
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseBootstrapping Phase = "bootstrapping"
	PhaseAuthenticated Phase = "authenticated"
	PhaseAnonymous     Phase = "anonymous"
)

// SessionState is a point-in-time copy of the manager's state.
type SessionState struct {
	Phase   Phase
	Loading bool
	User    *model.User
	Profile *model.Profile
}

// Identity exposes the signed-in user to controllers.
type Identity interface {
	CurrentUser() *model.User
	CurrentProfile() *model.Profile
}

// SessionOptions configures a SessionManager.
type SessionOptions struct {
	EmailDomain string
	RedirectURL string
	Timeouts    config.Timeouts
	Logger      *zap.Logger
}

// SessionManager tracks who is signed in and their profile.
// State changes arrive only through Start and the backend's auth events;
// SignIn and SignUp return the backend result and let the event carry it.
type SessionManager struct {
	auth     backend.Auth
	profiles repository.ProfileRepository
	log      *zap.Logger
	to       config.Timeouts
	domain   string
	redirect string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	phase   Phase
	loading bool
	user    *model.User
	profile *model.Profile
	gen     uint64 // bumped whenever an event or sign-out decides the state
	closed  bool
	stop    func()

	closeOnce sync.Once
}

var _ Identity = (*SessionManager)(nil)

// NewSessionManager constructs an idle manager; call Start to bootstrap.
func NewSessionManager(auth backend.Auth, profiles repository.ProfileRepository, opts SessionOptions) *SessionManager {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	domain := opts.EmailDomain
	if domain == "" {
		domain = "internal.com"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionManager{
		auth:     auth,
		profiles: profiles,
		log:      log.Named("session"),
		to:       opts.Timeouts,
		domain:   domain,
		redirect: opts.RedirectURL,
		ctx:      ctx,
		cancel:   cancel,
		phase:    PhaseUninitialized,
	}
}

// Start subscribes to auth events and loads the persisted session.
// It waits at most the bootstrap timeout; a timeout or backend error ends
// loading with the last known user state and is logged, not returned.
func (m *SessionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("session manager closed")
	}
	if m.phase != PhaseUninitialized {
		m.mu.Unlock()
		return errors.New("session manager already started")
	}
	m.phase = PhaseBootstrapping
	m.loading = true
	gen := m.gen
	events, stop := m.auth.Subscribe()
	m.stop = stop
	m.wg.Add(1)
	m.mu.Unlock()

	go m.listen(events)

	s, err := runWithDeadline(ctx, m.log, "session.bootstrap", m.to.Bootstrap, m.auth.GetSession)

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.log.Debug("bootstrap result superseded by auth event")
		return nil
	}
	m.loading = false
	if err != nil {
		if m.user != nil {
			m.phase = PhaseAuthenticated
		} else {
			m.phase = PhaseAnonymous
		}
		m.mu.Unlock()
		if errors.Is(err, errs.ErrTimeout) {
			m.log.Warn("session bootstrap timed out", zap.Duration("after", m.to.Bootstrap))
		} else {
			m.log.Error("session bootstrap failed", zap.Error(err))
		}
		return nil
	}
	uid, ok := m.applyLocked(s)
	m.mu.Unlock()
	if ok {
		m.fetchProfileAsync(uid)
	}
	return nil
}

func (m *SessionManager) listen(events <-chan model.AuthEvent) {
	defer m.wg.Done()
	for ev := range events {
		m.handle(ev)
	}
}

func (m *SessionManager) handle(ev model.AuthEvent) {
	m.mu.Lock()
	m.gen++
	m.loading = false
	uid, ok := m.applyLocked(ev.Session)
	m.mu.Unlock()

	m.log.Debug("auth event", zap.String("type", string(ev.Type)), zap.Bool("signed_in", ok))
	if ok {
		m.fetchProfileAsync(uid)
	}
}

// applyLocked installs s as the current session and reports the user to fetch a profile for.
func (m *SessionManager) applyLocked(s *model.Session) (uuid.UUID, bool) {
	if s == nil {
		m.user, m.profile = nil, nil
		m.phase = PhaseAnonymous
		return uuid.Nil, false
	}
	u := s.User
	m.user = &u
	m.phase = PhaseAuthenticated
	if m.profile != nil && m.profile.ID != u.ID {
		m.profile = nil
	}
	return u.ID, true
}

func (m *SessionManager) fetchProfileAsync(uid uuid.UUID) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()
	go func() {
		defer m.wg.Done()
		_ = m.loadProfile(m.ctx, uid)
	}()
}

// loadProfile fetches the profile of uid and installs it if uid is still signed in.
func (m *SessionManager) loadProfile(ctx context.Context, uid uuid.UUID) error {
	p, err := runWithDeadline(ctx, m.log, "profile.fetch", m.to.Profile, func(ctx context.Context) (*model.Profile, error) {
		return m.profiles.Get(ctx, uid)
	})
	switch {
	case errors.Is(err, errs.ErrNotFound):
		m.log.Debug("no profile for user", zap.Stringer("user", uid))
		p = nil
	case err != nil:
		m.log.Error("profile fetch failed", zap.Stringer("user", uid), zap.Error(err))
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil || m.user.ID != uid {
		m.log.Debug("stale profile discarded", zap.Stringer("user", uid))
		return nil
	}
	m.profile = p
	return nil
}

// RefreshProfile re-reads the current user's profile. A missing profile is not an error.
func (m *SessionManager) RefreshProfile(ctx context.Context) error {
	u := m.CurrentUser()
	if u == nil {
		return nil
	}
	return m.loadProfile(ctx, u.ID)
}

// SignIn authenticates username with the synthesized email. The session
// reaches the manager through the SIGNED_IN event.
func (m *SessionManager) SignIn(ctx context.Context, username, password string) (*model.Session, error) {
	in := credentials{Username: strings.TrimSpace(username), Password: password}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	email := EmailForUsername(in.Username, m.domain)
	return runWithDeadline(ctx, m.log, "auth.sign_in", m.to.SignIn, func(ctx context.Context) (*model.Session, error) {
		return m.auth.SignInWithPassword(ctx, email, in.Password)
	})
}

// SignUp registers username; its original spelling becomes the display name.
func (m *SessionManager) SignUp(ctx context.Context, username, password string) (*model.AuthResult, error) {
	in := registration{Username: strings.TrimSpace(username), Password: password}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	email := EmailForUsername(in.Username, m.domain)
	meta := map[string]any{"display_name": in.Username}
	return runWithDeadline(ctx, m.log, "auth.sign_up", m.to.SignUp, func(ctx context.Context) (*model.AuthResult, error) {
		return m.auth.SignUp(ctx, email, in.Password, meta)
	})
}

// SignOut clears local state immediately and then asks the backend to revoke
// the session. Remote failures are logged; the caller is always signed out.
func (m *SessionManager) SignOut(ctx context.Context) {
	m.mu.Lock()
	m.gen++
	m.loading = false
	m.user, m.profile = nil, nil
	m.phase = PhaseAnonymous
	m.mu.Unlock()

	if err := runErrWithDeadline(ctx, m.log, "auth.sign_out", m.to.SignOut, m.auth.SignOut); err != nil {
		m.log.Warn("remote sign-out failed", zap.Error(err))
	}
}

// ResetPassword sends a recovery link for email that lands on <redirect>/reset-password.
func (m *SessionManager) ResetPassword(ctx context.Context, email string) error {
	in := recoveryEmail{Email: strings.TrimSpace(email)}
	if err := validateStruct(in); err != nil {
		return err
	}
	redirect := m.resetRedirect()
	return runErrWithDeadline(ctx, m.log, "auth.reset_password", m.to.ResetPassword, func(ctx context.Context) error {
		return m.auth.ResetPasswordForEmail(ctx, in.Email, redirect)
	})
}

func (m *SessionManager) resetRedirect() string {
	if m.redirect == "" {
		return ""
	}
	return strings.TrimRight(m.redirect, "/") + "/reset-password"
}

// RecoverFromLink signs in with the session carried by a recovery link.
func (m *SessionManager) RecoverFromLink(ctx context.Context, link string) (*model.Session, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil, errs.Invalid("link", "is required")
	}
	return runWithDeadline(ctx, m.log, "auth.recover", m.to.SignIn, func(ctx context.Context) (*model.Session, error) {
		return m.auth.SessionFromURL(ctx, link)
	})
}

// UpdatePassword sets a new password for the signed-in user.
func (m *SessionManager) UpdatePassword(ctx context.Context, password string) error {
	if err := validateStruct(newPassword{Password: password}); err != nil {
		return err
	}
	if m.CurrentUser() == nil {
		return errs.ErrUnauthorized
	}
	return runErrWithDeadline(ctx, m.log, "auth.update_password", m.to.Save, func(ctx context.Context) error {
		_, err := m.auth.UpdateUser(ctx, model.UserUpdate{Password: password})
		return err
	})
}

// UpdateDisplayName writes display_name into the signed-in user's metadata.
func (m *SessionManager) UpdateDisplayName(ctx context.Context, name string) error {
	if m.CurrentUser() == nil {
		return errs.ErrUnauthorized
	}
	u, err := m.auth.UpdateUser(ctx, model.UserUpdate{Data: map[string]any{"display_name": name}})
	if err != nil {
		return err
	}
	m.mu.Lock()
	if u != nil && m.user != nil && m.user.ID == u.ID {
		m.user.DisplayName = u.DisplayName
	}
	m.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current state.
func (m *SessionManager) Snapshot() SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := SessionState{Phase: m.phase, Loading: m.loading}
	if m.user != nil {
		u := *m.user
		st.User = &u
	}
	if m.profile != nil {
		p := *m.profile
		st.Profile = &p
	}
	return st
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (m *SessionManager) CurrentUser() *model.User { return m.Snapshot().User }

// CurrentProfile returns a copy of the signed-in user's profile, or nil.
func (m *SessionManager) CurrentProfile() *model.Profile { return m.Snapshot().Profile }

// IsAdmin reports whether the signed-in user holds the admin role.
func (m *SessionManager) IsAdmin() bool { return m.CurrentProfile().IsAdmin() }

// Close unsubscribes from auth events and waits for background work.
func (m *SessionManager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		stop := m.stop
		m.mu.Unlock()
		if stop != nil {
			stop()
		}
		m.cancel()
		m.wg.Wait()
	})
}
