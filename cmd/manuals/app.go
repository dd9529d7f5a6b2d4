package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/troubleshooter/internal/backend/supabase"
	"github.com/and161185/troubleshooter/internal/config"
	"github.com/and161185/troubleshooter/internal/errs"
	"github.com/and161185/troubleshooter/internal/model"
	"github.com/and161185/troubleshooter/internal/repository"
	"github.com/and161185/troubleshooter/internal/repository/postgres"
	"github.com/and161185/troubleshooter/internal/repository/rest"
	"github.com/and161185/troubleshooter/internal/service"
	"github.com/and161185/troubleshooter/internal/sessionstore"
)

// errUsage makes main print the usage text.
var errUsage = errors.New("usage")

// app wires the backend handle, the session manager and the controllers for one process run.
type app struct {
	cfg *config.Config
	log *zap.Logger

	client   *supabase.Client
	db       *postgres.DB // nil with the rest driver
	session  *service.SessionManager
	manuals  *service.ManualService
	profiles *service.ProfileService
	images   *service.ImageService

	stopRefresh context.CancelFunc
	refreshDone chan struct{}
	closeOnce   sync.Once
}

// newApp builds every component and bootstraps the persisted session.
func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	client, err := supabase.New(supabase.Config{
		URL:           cfg.Backend.URL,
		AnonKey:       cfg.Backend.AnonKey,
		Store:         sessionstore.NewFile(cfg.Session.Path, cfg.Session.Passphrase),
		Logger:        log,
		RefreshMargin: cfg.Session.RefreshMargin,
	})
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, client: client}

	var (
		manualRepo  repository.ManualRepository
		stepRepo    repository.StepRepository
		profileRepo repository.ProfileRepository
	)
	switch cfg.Data.Driver {
	case "postgres":
		db, err := postgres.New(ctx, cfg.Data.DSN)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.db = db
		manualRepo, stepRepo, profileRepo = postgres.NewManualRepo(db), postgres.NewStepRepo(db), postgres.NewProfileRepo(db)
	default:
		manualRepo, stepRepo, profileRepo = rest.NewManualRepo(client), rest.NewStepRepo(client), rest.NewProfileRepo(client)
	}

	a.session = service.NewSessionManager(client, profileRepo, service.SessionOptions{
		EmailDomain: cfg.Auth.EmailDomain,
		RedirectURL: cfg.Auth.RedirectURL,
		Timeouts:    cfg.Timeouts,
		Logger:      log,
	})
	a.manuals = service.NewManualService(manualRepo, stepRepo, a.session, service.ManualOptions{
		Timeouts:      cfg.Timeouts,
		FallbackLimit: cfg.List.FallbackLimit,
		Logger:        log,
	})
	a.profiles = service.NewProfileService(profileRepo, client, a.session, service.ProfileOptions{
		EmailDomain: cfg.Auth.EmailDomain,
		RedirectURL: cfg.Auth.RedirectURL,
		Timeouts:    cfg.Timeouts,
		Logger:      log,
	})
	a.images = service.NewImageService(client, cfg.Storage.Bucket, cfg.Timeouts, log)

	rctx, cancel := context.WithCancel(ctx)
	a.stopRefresh = cancel
	a.refreshDone = make(chan struct{})
	go func() {
		defer close(a.refreshDone)
		client.AutoRefresh(rctx, cfg.Session.RefreshInterval)
	}()

	if err := a.session.Start(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// close tears everything down once.
func (a *app) close() {
	a.closeOnce.Do(func() {
		a.stopRefresh()
		<-a.refreshDone
		a.session.Close()
		a.client.Close()
		if a.db != nil {
			a.db.Close()
		}
	})
}

// requireUser is the guard of every signed-in command. It also waits for the
// profile so author names and roles are known.
func (a *app) requireUser(ctx context.Context) (*model.User, error) {
	u := a.session.CurrentUser()
	if u == nil {
		return nil, errors.New("login required")
	}
	if err := a.session.RefreshProfile(ctx); err != nil {
		a.log.Warn("profile not loaded", zap.Error(err))
	}
	return u, nil
}

// requireAdmin is the guard of admin commands.
func (a *app) requireAdmin(ctx context.Context) error {
	if _, err := a.requireUser(ctx); err != nil {
		return err
	}
	if !a.session.IsAdmin() {
		return fmt.Errorf("admin role required: %w", errs.ErrForbidden)
	}
	return nil
}

// awaitUser waits until the auth event for id has reached the session manager.
func (a *app) awaitUser(ctx context.Context, id string, within time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, within)
	defer cancel()
	t := time.NewTicker(20 * time.Millisecond)
	defer t.Stop()
	for {
		if u := a.session.CurrentUser(); u != nil && u.ID.String() == id {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.New("session not established")
		case <-t.C:
		}
	}
}

type command func(a *app, ctx context.Context, args []string, out io.Writer) error

var commands = map[string]command{
	"register":       (*app).cmdRegister,
	"login":          (*app).cmdLogin,
	"logout":         (*app).cmdLogout,
	"whoami":         (*app).cmdWhoami,
	"reset-password": (*app).cmdResetPassword,
	"recover":        (*app).cmdRecover,
	"set-password":   (*app).cmdSetPassword,
	"list":           (*app).cmdList,
	"show":           (*app).cmdShow,
	"export":         (*app).cmdExport,
	"create":         (*app).cmdCreate,
	"edit":           (*app).cmdEdit,
	"rm":             (*app).cmdRemove,
	"users":          (*app).cmdUsers,
	"set-role":       (*app).cmdSetRole,
	"edit-user":      (*app).cmdEditUser,
	"rm-user":        (*app).cmdRemoveUser,
	"add-user":       (*app).cmdAddUser,
	"reset-user":     (*app).cmdResetUser,
	"manuals-admin":  (*app).cmdManualsAdmin,
}

// run dispatches cmd.
func (a *app) run(ctx context.Context, cmd string, args []string, out io.Writer) error {
	fn, ok := commands[cmd]
	if !ok {
		return errUsage
	}
	return fn(a, ctx, args, out)
}
