// Command pgnative-shell is an interactive REPL over a single pgnative
// Session: a small Bubble Tea program wired to this module's own query
// engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mickamy/pgnative"
	"github.com/mickamy/pgnative/dsn"
	"github.com/mickamy/pgnative/internal/shell"
)

var version = "dev"

func main() {
	fs := flag.NewFlagSet("pgnative-shell", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "pgnative-shell — interactive SQL shell for pgnative\n\nUsage:\n  pgnative-shell [flags] [dsn]\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nIf no dsn argument is given, the DATABASE_URL environment variable is used.\n")
	}

	dsnEnv := fs.String("dsn-env", "DATABASE_URL", "environment variable holding the connection string, used when no dsn argument is given")
	showVersion := fs.Bool("version", false, "show version and exit")
	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("pgnative-shell %s\n", version)
		return
	}

	raw := fs.Arg(0)
	if raw == "" {
		raw = os.Getenv(*dsnEnv)
	}
	if raw == "" {
		fs.Usage()
		os.Exit(1)
	}

	if err := run(raw); err != nil {
		log.Fatal(err)
	}
}

func run(raw string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := dsn.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}

	session, err := pgnative.Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() { _ = session.Close() }()

	p := tea.NewProgram(shell.New(session), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
