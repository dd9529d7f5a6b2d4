// Command manuals is a terminal client for the IT troubleshooting manuals backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/and161185/troubleshooter/internal/config"
	"github.com/and161185/troubleshooter/internal/errs"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, `manuals CLI
Usage:
  manuals [-config file] [-url URL] [-key KEY] [-v] <cmd> [args]

Account:
  register        -u <username> -p <password>
  login           -u <username> -p <password>
  logout
  whoami
  reset-password  -email <address>
  recover         -link <url> -p <new password>
  set-password    -p <new password>

Manuals:
  list            [-q text] [-category Network|Printer|Software|Hardware|All] [-format table|yaml]
  show            -id <uuid> [-format text|yaml|html]
  export          -id <uuid> [-o file.html]
  create          -file <manual.yaml|->
  edit            -id <uuid> -file <manual.yaml|->
  rm              -id <uuid>

Admin:
  users           [-q text]
  set-role        -id <uuid> -role user|admin
  edit-user       -id <uuid> [-name <display name>] [-role user|admin]
  rm-user         -id <uuid>
  add-user        -email <address> -p <password> -name <display name>
  reset-user      -id <uuid>
  manuals-admin   [-q text]
`)
	os.Exit(2)
}

// main loads configuration, restores the session and dispatches one subcommand.
func main() {
	cfgPath := flag.String("config", "", "config file (default $XDG_CONFIG_HOME/troubleshooter/config.yaml)")
	backendURL := flag.String("url", "", "backend URL (overrides backend.url)")
	anonKey := flag.String("key", "", "backend public key (overrides backend.anon_key)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	if cmd == "version" {
		fmt.Printf("manuals %s (%s)\n", version, buildDate)
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fail(err)
	}
	if *backendURL != "" {
		cfg.Backend.URL = *backendURL
	}
	if *anonKey != "" {
		cfg.Backend.AnonKey = *anonKey
	}
	if err := cfg.Validate(); err != nil {
		fail(err)
	}

	logger, err := newLogger(cfg.Log.Level, *verbose)
	if err != nil {
		fail(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		fail(err)
	}
	defer a.close()

	if err := a.run(ctx, cmd, args, os.Stdout); err != nil {
		a.close()
		if isUsage(err) {
			usage()
		}
		fail(err)
	}
}

// newLogger builds a production logger at level, or a development logger when verbose.
func newLogger(level string, verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

func fail(err error) {
	printError(os.Stderr, err)
	os.Exit(1)
}

// printError renders err for the terminal; validation failures list one field per line.
func printError(w io.Writer, err error) {
	red := color.New(color.FgRed)
	var ve *errs.ValidationError
	if errors.As(err, &ve) && len(ve.Fields) > 0 {
		_, _ = red.Fprintln(w, "Error: invalid input")
		for _, f := range ve.Fields {
			fmt.Fprintf(w, "  %s: %s\n", f.Field, f.Reason)
		}
		return
	}
	_, _ = red.Fprintf(w, "Error: %v\n", err)
}
