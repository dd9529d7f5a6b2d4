package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/gofrs/uuid/v5"

	"github.com/and161185/troubleshooter/internal/errs"
	"github.com/and161185/troubleshooter/internal/model"
)

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%s: unexpected argument %q: %w", fs.Name(), fs.Arg(0), errUsage)
	}
	return nil
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.FromString(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, errs.Invalid("id", "must be a UUID")
	}
	return id, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// printStatus writes a controller status line: green for success, red for errors.
func printStatus(w io.Writer, st model.Status) {
	switch st.Kind {
	case model.StatusSuccess:
		_, _ = color.New(color.FgGreen).Fprintln(w, st.Message)
	case model.StatusError:
		_, _ = color.New(color.FgRed).Fprintln(w, st.Message)
	}
}

func printWarnings(w io.Writer, warnings []string) {
	yellow := color.New(color.FgYellow)
	for _, msg := range warnings {
		_, _ = yellow.Fprintf(w, "warning: %s\n", msg)
	}
}

func printManuals(w io.Writer, ms []model.Manual) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tTITLE\tAUTHOR\tSTEPS\tCREATED")
	for _, m := range ms {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			m.ID, m.Category, m.Title, orDash(m.AuthorName), len(m.Steps), day(m.CreatedAt))
	}
	return tw.Flush()
}

func printProfiles(w io.Writer, ps []model.Profile) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tROLE\tUPDATED")
	for _, p := range ps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, orDash(p.DisplayName), p.Role, day(p.UpdatedAt))
	}
	return tw.Flush()
}

func day(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02")
}

// isUsage reports whether err asks for the usage text.
func isUsage(err error) bool { return errors.Is(err, errUsage) }
