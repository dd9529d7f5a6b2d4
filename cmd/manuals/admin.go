package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/and161185/troubleshooter/internal/errs"
	"github.com/and161185/troubleshooter/internal/model"
)

// loadProfiles is the admin guard plus the user list fetch every admin command starts with.
func (a *app) loadProfiles(ctx context.Context) error {
	if err := a.requireAdmin(ctx); err != nil {
		return err
	}
	return a.profiles.Fetch(ctx)
}

func (a *app) cmdUsers(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("users", flag.ContinueOnError)
	query := fs.String("q", "", "search name or role")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := a.loadProfiles(ctx); err != nil {
		return err
	}
	ps := a.profiles.Filter(*query)
	if len(ps) == 0 {
		fmt.Fprintln(out, "no users")
		return nil
	}
	return printProfiles(out, ps)
}

// cmdManualsAdmin lists every manual with its author, searchable by title or author.
func (a *app) cmdManualsAdmin(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("manuals-admin", flag.ContinueOnError)
	query := fs.String("q", "", "search title or author")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := a.requireAdmin(ctx); err != nil {
		return err
	}
	if err := a.manuals.FetchAll(ctx); err != nil {
		return err
	}
	ms := a.manuals.FilterByTitleOrAuthor(*query)
	if len(ms) == 0 {
		fmt.Fprintln(out, "no manuals")
		return nil
	}
	return printManuals(out, ms)
}

func (a *app) cmdSetRole(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("set-role", flag.ContinueOnError)
	idStr := fs.String("id", "", "profile id")
	role := fs.String("role", "", "user or admin")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	id, err := parseID(*idStr)
	if err != nil {
		return err
	}
	if err := a.loadProfiles(ctx); err != nil {
		return err
	}
	if err := a.profiles.UpdateRole(ctx, id, model.Role(*role)); err != nil {
		return err
	}
	printStatus(out, a.profiles.Status())
	return nil
}

func (a *app) cmdEditUser(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("edit-user", flag.ContinueOnError)
	idStr := fs.String("id", "", "profile id")
	name := fs.String("name", "", "display name (unchanged when empty)")
	role := fs.String("role", "", "user or admin (unchanged when empty)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	id, err := parseID(*idStr)
	if err != nil {
		return err
	}
	if err := a.loadProfiles(ctx); err != nil {
		return err
	}
	p, ok := a.profiles.Find(id)
	if !ok {
		return fmt.Errorf("user %s: %w", id, errs.ErrNotFound)
	}
	upd := model.ProfileUpdate{ID: id, DisplayName: p.DisplayName, Role: p.Role}
	if *name != "" {
		upd.DisplayName = *name
	}
	if *role != "" {
		upd.Role = model.Role(*role)
	}
	if err := a.profiles.Save(ctx, upd); err != nil {
		return err
	}
	printStatus(out, a.profiles.Status())
	return nil
}

func (a *app) cmdRemoveUser(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("rm-user", flag.ContinueOnError)
	idStr := fs.String("id", "", "profile id")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	id, err := parseID(*idStr)
	if err != nil {
		return err
	}
	if err := a.loadProfiles(ctx); err != nil {
		return err
	}
	if err := a.profiles.Delete(ctx, id); err != nil {
		return err
	}
	printStatus(out, a.profiles.Status())
	return nil
}

// cmdAddUser registers an account through sign-up, which signs the new account in.
func (a *app) cmdAddUser(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add-user", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	pass := fs.String("p", "", "initial password")
	name := fs.String("name", "", "display name")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := a.requireAdmin(ctx); err != nil {
		return err
	}
	res, err := a.profiles.CreateUser(ctx, model.NewUser{Email: *email, Password: *pass, DisplayName: *name})
	if err != nil {
		return err
	}
	printStatus(out, a.profiles.Status())
	fmt.Fprintln(out, res.User.ID)
	if res.Session != nil {
		_, _ = color.New(color.FgYellow).Fprintf(out, "note: you are now signed in as %s; log in again as admin\n", res.User.Label())
	}
	return nil
}

func (a *app) cmdResetUser(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("reset-user", flag.ContinueOnError)
	idStr := fs.String("id", "", "profile id")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	id, err := parseID(*idStr)
	if err != nil {
		return err
	}
	if err := a.loadProfiles(ctx); err != nil {
		return err
	}
	if err := a.profiles.SendPasswordReset(ctx, id); err != nil {
		return err
	}
	printStatus(out, a.profiles.Status())
	return nil
}
