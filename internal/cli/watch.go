package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/klauern/rulebook/internal/logging"
	"github.com/klauern/rulebook/internal/registry"
	"github.com/klauern/rulebook/internal/ui"
	"github.com/klauern/rulebook/internal/validation"
	"github.com/klauern/rulebook/internal/watch"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Reload rules on change and report diagnostics",
		Description: `Load the roots, then reload whenever a rule or command file changes.
   Each load prints a summary and its diagnostics once. Stop with Ctrl-C.`,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "debounce",
				Usage: "How long to wait for changes to settle (default from config)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runWatch(ctx, cmd)
		},
	}
}

func runWatch(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	roots, err := rootsFor(cmd, cfg)
	if err != nil {
		return err
	}

	debounce := cfg.Watch.Debounce
	if d := cmd.Duration("debounce"); d > 0 {
		debounce = d
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	loadOpts, c := loadOptions(cfg, roots, cmd.Bool("clear-cache"))
	emit := func(reg *registry.Registry, err error) {
		if err != nil {
			stamp := ui.Dim(time.Now().Format("15:04:05"))
			fmt.Printf("%s %s\n", stamp, ui.StatusError("load failed: "+err.Error()))
			return
		}
		stamp := ui.Dim(reg.LoadedAt().Format("15:04:05"))
		if c != nil {
			if err := c.Save(); err != nil {
				logging.Warn("failed to save parse cache", logging.Err(err))
			}
		}
		nRules, nCommands := reg.Len()
		fmt.Printf("%s loaded %d rule(s), %d command(s), %d diagnostic(s)\n",
			stamp, nRules, nCommands, len(reg.Diagnostics()))
		printDiagnostics(os.Stdout, reg.Diagnostics(), validation.SeverityInfo)
	}

	fmt.Printf("Watching %d root(s), press Ctrl-C to stop\n", len(roots))
	err = watch.Reload(ctx, roots, emit,
		[]watch.Option{watch.WithDebounce(debounce), watch.WithLogger(logging.Default())},
		loadOpts...,
	)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
