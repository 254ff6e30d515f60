package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/go-scripts/dqcheck/internal/config"
	"github.com/go-scripts/dqcheck/internal/progress"
)

func newParser(flags *CLIFlags) (*kong.Kong, error) {
	return kong.New(flags,
		kong.Name("dqcheck"),
		kong.Description("Reconcile rendered reports with their reference data and run data-quality checks."),
		kong.UsageOnError(),
	)
}

// run parses args and executes the selected command
func run(ctx context.Context, args []string, out io.Writer, newSession sessionFunc) error {
	var flags CLIFlags
	parser, err := newParser(&flags)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	if flags.Debug {
		log.SetLevel(log.DebugLevel)
	}

	name := flags.ConfigFile
	if name == "" {
		name = config.DefaultFile
	}
	cfg, err := config.Load(name, flags.ConfigFile != "")
	if err != nil {
		return err
	}

	app := &App{
		ctx:        ctx,
		config:     cfg,
		out:        out,
		steps:      progress.New(out),
		newSession: newSession,
	}
	return kctx.Run(app)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, openBrowser)
	stop()

	switch {
	case errors.Is(err, errMismatch):
		os.Exit(1)
	case err != nil:
		log.Error("dqcheck failed", "error", err)
		os.Exit(2)
	}
}
