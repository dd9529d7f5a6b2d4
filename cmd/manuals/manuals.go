package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gofrs/uuid/v5"
	"gopkg.in/yaml.v3"

	"github.com/and161185/troubleshooter/internal/errs"
	"github.com/and161185/troubleshooter/internal/model"
	"github.com/and161185/troubleshooter/internal/render"
)

// load fetches the manual list; a partial list is announced but not an error.
func (a *app) load(ctx context.Context, out io.Writer) error {
	if err := a.manuals.Fetch(ctx); err != nil {
		return err
	}
	if a.manuals.Partial() {
		printWarnings(out, []string{"the full list did not load; showing the latest manuals without steps"})
	}
	return nil
}

// find returns manual id from the loaded list.
func (a *app) find(ctx context.Context, id uuid.UUID, out io.Writer) (*model.Manual, error) {
	if err := a.load(ctx, out); err != nil {
		return nil, err
	}
	m, ok := a.manuals.Find(id)
	if !ok {
		return nil, fmt.Errorf("manual %s: %w", id, errs.ErrNotFound)
	}
	return m, nil
}

func (a *app) cmdList(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	query := fs.String("q", "", "search title and description")
	category := fs.String("category", string(model.CategoryAll), "category filter")
	format := fs.String("format", "table", "table or yaml")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	cat := model.Category(*category)
	if cat != model.CategoryAll && !cat.IsValid() {
		return errs.Invalid("category", "must be one of: All Network Printer Software Hardware")
	}
	if _, err := a.requireUser(ctx); err != nil {
		return err
	}
	if err := a.load(ctx, out); err != nil {
		return err
	}
	ms := a.manuals.Filter(*query, cat)
	switch *format {
	case "yaml":
		docs := make([]render.Document, 0, len(ms))
		for _, m := range ms {
			docs = append(docs, render.ToDocument(m))
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(docs); err != nil {
			return err
		}
		return enc.Close()
	case "table":
		if len(ms) == 0 {
			fmt.Fprintln(out, "no manuals")
			return nil
		}
		return printManuals(out, ms)
	default:
		return errs.Invalid("format", "must be table or yaml")
	}
}

func (a *app) cmdShow(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	idStr := fs.String("id", "", "manual id")
	format := fs.String("format", "text", "text, yaml or html")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	id, err := parseID(*idStr)
	if err != nil {
		return err
	}
	if _, err := a.requireUser(ctx); err != nil {
		return err
	}
	m, err := a.find(ctx, id, out)
	if err != nil {
		return err
	}
	switch *format {
	case "text":
		return render.Text(out, *m)
	case "yaml":
		return render.YAML(out, *m)
	case "html":
		return render.HTML(out, *m)
	default:
		return errs.Invalid("format", "must be text, yaml or html")
	}
}

func (a *app) cmdExport(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	idStr := fs.String("id", "", "manual id")
	dst := fs.String("o", "", "output file (default <id>.html)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	id, err := parseID(*idStr)
	if err != nil {
		return err
	}
	if _, err := a.requireUser(ctx); err != nil {
		return err
	}
	m, err := a.find(ctx, id, out)
	if err != nil {
		return err
	}
	path := *dst
	if path == "" {
		path = id.String() + ".html"
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render.HTML(f, *m); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s\n", path)
	return nil
}

func (a *app) cmdCreate(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	file := fs.String("file", "", "manual definition ('-' = stdin)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *file == "" {
		return errs.Invalid("file", "is required")
	}
	if _, err := a.requireUser(ctx); err != nil {
		return err
	}
	doc, dir, err := readManualFile(*file, os.Stdin)
	if err != nil {
		return err
	}
	in, warnings := documentInput(ctx, doc, dir, a.images)
	printWarnings(out, warnings)

	m, err := a.manuals.Create(ctx, in)
	if err != nil {
		return saveError(err, m)
	}
	printStatus(out, a.manuals.Status())
	fmt.Fprintln(out, m.ID)
	return nil
}

func (a *app) cmdEdit(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	idStr := fs.String("id", "", "manual id")
	file := fs.String("file", "", "manual definition ('-' = stdin)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	id, err := parseID(*idStr)
	if err != nil {
		return err
	}
	if *file == "" {
		return errs.Invalid("file", "is required")
	}
	if _, err := a.requireUser(ctx); err != nil {
		return err
	}
	doc, dir, err := readManualFile(*file, os.Stdin)
	if err != nil {
		return err
	}
	in, warnings := documentInput(ctx, doc, dir, a.images)
	printWarnings(out, warnings)

	if err := a.manuals.Update(ctx, id, in); err != nil {
		return saveError(err, nil)
	}
	printStatus(out, a.manuals.Status())
	return nil
}

// saveError explains a failed composite save; partial writes name what was left behind.
func saveError(err error, m *model.Manual) error {
	if !errors.Is(err, errs.ErrPartialWrite) {
		return err
	}
	var b strings.Builder
	b.WriteString("the manual was saved only partly and may have missing steps")
	if m != nil {
		b.WriteString(" (id " + m.ID.String() + ")")
	}
	b.WriteString("; run edit again to replace its steps")
	return fmt.Errorf("%s: %w", b.String(), err)
}

func (a *app) cmdRemove(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("rm", flag.ContinueOnError)
	idStr := fs.String("id", "", "manual id")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	id, err := parseID(*idStr)
	if err != nil {
		return err
	}
	if _, err := a.requireUser(ctx); err != nil {
		return err
	}
	if err := a.load(ctx, out); err != nil {
		return err
	}
	if err := a.manuals.Delete(ctx, id); err != nil {
		return err
	}
	printStatus(out, a.manuals.Status())
	return nil
}
