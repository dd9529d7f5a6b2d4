package main

import (
	"bytes"
	"errors"
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/troubleshooter/internal/errs"
	"github.com/and161185/troubleshooter/internal/model"
)

func init() { color.NoColor = true }

func TestParseFlags(t *testing.T) {
	fs := flag.NewFlagSet("rm", flag.ContinueOnError)
	fs.SetOutput(&bytes.Buffer{})
	id := fs.String("id", "", "")
	require.NoError(t, parseFlags(fs, []string{"-id", "x"}))
	require.Equal(t, "x", *id)

	fs = flag.NewFlagSet("rm", flag.ContinueOnError)
	fs.SetOutput(&bytes.Buffer{})
	require.True(t, isUsage(parseFlags(fs, []string{"-nope"})))

	fs = flag.NewFlagSet("rm", flag.ContinueOnError)
	err := parseFlags(fs, []string{"extra"})
	require.True(t, isUsage(err))
	require.ErrorContains(t, err, `unexpected argument "extra"`)
}

func TestParseID(t *testing.T) {
	want := uuid.Must(uuid.NewV4())
	got, err := parseID(" " + want.String() + " ")
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = parseID("42")
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, &errs.ValidationError{Fields: []errs.FieldError{
		{Field: "title", Reason: "is required"},
		{Field: "steps[0].content", Reason: "is required"},
	}})
	require.Equal(t, "Error: invalid input\n  title: is required\n  steps[0].content: is required\n", buf.String())

	buf.Reset()
	printError(&buf, errors.New("login required"))
	require.Equal(t, "Error: login required\n", buf.String())
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, model.Status{Kind: model.StatusSuccess, Message: "Manual deleted"})
	printStatus(&buf, model.Status{})
	printStatus(&buf, model.Status{Kind: model.StatusError, Message: "Manual not saved: not allowed"})
	require.Equal(t, "Manual deleted\nManual not saved: not allowed\n", buf.String())
}

func TestPrintManuals(t *testing.T) {
	var buf bytes.Buffer
	ms := []model.Manual{{
		ID:        uuid.Must(uuid.NewV4()),
		Title:     "Printer offline",
		Category:  model.CategoryPrinter,
		CreatedAt: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		Steps:     []model.Step{{}, {}},
	}}
	require.NoError(t, printManuals(&buf, ms))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "ID"))
	require.Contains(t, lines[1], "Printer offline")
	require.Contains(t, lines[1], "2025-01-02")
	require.Contains(t, lines[1], " - ")
}

func TestPrintProfiles(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printProfiles(&buf, []model.Profile{{ID: uuid.Must(uuid.NewV4()), DisplayName: "alice", Role: model.RoleAdmin}}))
	require.Contains(t, buf.String(), "alice")
	require.Contains(t, buf.String(), "admin")
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger("warn", false)
	require.NoError(t, err)
	require.NotNil(t, l)

	_, err = newLogger("loud", false)
	require.ErrorContains(t, err, "log.level")
}

func TestCommandsTable(t *testing.T) {
	for _, name := range []string{"login", "logout", "list", "create", "edit", "rm", "users", "set-role", "add-user"} {
		_, ok := commands[name]
		require.True(t, ok, name)
	}
}
