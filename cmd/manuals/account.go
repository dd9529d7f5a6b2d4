package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"
)

func (a *app) cmdRegister(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	user := fs.String("u", "", "username")
	pass := fs.String("p", "", "password")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	res, err := a.session.SignUp(ctx, *user, *pass)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "registered %s (%s)\n", res.User.Label(), res.User.Email)
	if res.Session == nil {
		fmt.Fprintln(out, "confirm the account before signing in")
	}
	return nil
}

func (a *app) cmdLogin(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	user := fs.String("u", "", "username")
	pass := fs.String("p", "", "password")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	s, err := a.session.SignIn(ctx, *user, *pass)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "signed in as %s\n", s.User.Label())
	return nil
}

func (a *app) cmdLogout(ctx context.Context, _ []string, out io.Writer) error {
	a.session.SignOut(ctx)
	fmt.Fprintln(out, "signed out")
	return nil
}

func (a *app) cmdWhoami(ctx context.Context, _ []string, out io.Writer) error {
	u, err := a.requireUser(ctx)
	if err != nil {
		return err
	}
	st := a.session.Snapshot()
	fmt.Fprintf(out, "id:    %s\nemail: %s\n", u.ID, u.Email)
	if st.Profile == nil {
		fmt.Fprintln(out, "name:  -\nrole:  -")
		return nil
	}
	fmt.Fprintf(out, "name:  %s\nrole:  %s\n", orDash(st.Profile.DisplayName), st.Profile.Role)
	return nil
}

func (a *app) cmdResetPassword(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := a.session.ResetPassword(ctx, *email); err != nil {
		return err
	}
	fmt.Fprintf(out, "reset link sent to %s\n", *email)
	return nil
}

// cmdRecover consumes a recovery link and sets the new password in one go.
func (a *app) cmdRecover(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("recover", flag.ContinueOnError)
	link := fs.String("link", "", "link from the reset email")
	pass := fs.String("p", "", "new password")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	s, err := a.session.RecoverFromLink(ctx, *link)
	if err != nil {
		return err
	}
	if err := a.awaitUser(ctx, s.User.ID.String(), 2*time.Second); err != nil {
		return err
	}
	if err := a.session.UpdatePassword(ctx, *pass); err != nil {
		return err
	}
	fmt.Fprintf(out, "password updated for %s\n", s.User.Label())
	return nil
}

func (a *app) cmdSetPassword(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("set-password", flag.ContinueOnError)
	pass := fs.String("p", "", "new password")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if _, err := a.requireUser(ctx); err != nil {
		return err
	}
	if err := a.session.UpdatePassword(ctx, *pass); err != nil {
		return err
	}
	fmt.Fprintln(out, "password updated")
	return nil
}
