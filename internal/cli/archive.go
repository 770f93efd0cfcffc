package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/klauern/rulebook/internal/archive"
	"github.com/klauern/rulebook/internal/logging"
	"github.com/klauern/rulebook/internal/model"
	"github.com/klauern/rulebook/internal/ui"
	"github.com/klauern/rulebook/internal/validation"
)

func archiveCommand() *cli.Command {
	return &cli.Command{
		Name:  "archive",
		Usage: "Pack rules into a portable bundle or unpack one into a root",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Write the loaded rules and commands to a tar.gz bundle",
				UsageText: "rulebook archive create --output FILE [--mode MODE] [--category CAT] [--since DATE] [--before DATE]",
				Description: `Bundle the record files of every loaded rule and command, including the
   sibling files of folder rules, with a manifest.json. Extracting the bundle
   into an empty directory gives a root that loads to the same records.

   Examples:
     rulebook archive create -o team-rules.tar.gz
     rulebook archive create --category review --since 2026-01-01 -o review.tar.gz`,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "output",
						Aliases:  []string{"o"},
						Usage:    "Bundle file to write",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "mode",
						Aliases: []string{"m"},
						Usage:   "Only pack rules with this apply mode (drops commands)",
					},
					&cli.StringFlag{
						Name:  "category",
						Usage: "Only pack rules and commands in this category",
					},
					&cli.StringFlag{
						Name:  "since",
						Usage: "Only pack records modified on or after this date (YYYY-MM-DD or RFC 3339)",
					},
					&cli.StringFlag{
						Name:  "before",
						Usage: "Only pack records modified before this date (YYYY-MM-DD or RFC 3339)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runArchiveCreate(ctx, cmd)
				},
			},
			{
				Name:      "extract",
				Usage:     "Unpack a bundle into a root",
				UsageText: "rulebook archive extract [--dir ROOT] [--dry-run] [--force] <file>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Root to extract into (default: first --root, else ./.cursor)",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "List the files that would be written",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite files that already exist",
					},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() < 1 {
						return errors.New("bundle file is required")
					}
					return runArchiveExtract(cmd, cmd.Args().Get(0))
				},
			},
		},
	}
}

func runArchiveCreate(ctx context.Context, cmd *cli.Command) error {
	opts := archive.CreateOptions{Category: cmd.String("category")}
	if s := cmd.String("mode"); s != "" {
		mode, err := model.ParseApplyMode(s)
		if err != nil {
			return err
		}
		opts.Mode = mode
	}
	var err error
	if opts.Since, err = parseDate(cmd.String("since")); err != nil {
		return fmt.Errorf("invalid --since: %w", err)
	}
	if opts.Before, err = parseDate(cmd.String("before")); err != nil {
		return fmt.Errorf("invalid --before: %w", err)
	}

	sess, err := openSession(ctx, cmd, validation.SeverityWarning)
	if err != nil {
		return err
	}

	output := cmd.String("output")
	// #nosec G304 - output is a user-specified destination
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create bundle: %w", err)
	}
	manifest, err := archive.Create(sess.reg.Rules(), sess.reg.Commands(), f, opts)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(output)
		return fmt.Errorf("failed to create bundle: %w", err)
	}

	logging.Debug("bundle written", logging.Path(output), logging.Count(manifest.RuleCount))
	fmt.Println(ui.StatusSuccess(fmt.Sprintf("Packed %d rule(s), %d command(s) into %s",
		manifest.RuleCount, manifest.CommandCount, output)))
	return nil
}

func runArchiveExtract(cmd *cli.Command, file string) error {
	root, err := targetRoot(cmd)
	if err != nil {
		return err
	}

	// #nosec G304 - file is a user-specified bundle
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open bundle: %w", err)
	}
	defer func() { _ = f.Close() }()

	manifest, written, err := archive.Extract(f, archive.ExtractOptions{
		TargetDir: root,
		DryRun:    cmd.Bool("dry-run"),
		Overwrite: cmd.Bool("force"),
	})
	if err != nil {
		return fmt.Errorf("failed to extract bundle: %w", err)
	}

	if cmd.Bool("dry-run") {
		fmt.Println(ui.StatusInfo(fmt.Sprintf("Would write %d file(s) to %s:", len(written), root)))
		for _, path := range written {
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = path
			}
			fmt.Printf("  %s\n", filepath.ToSlash(rel))
		}
		return nil
	}

	fmt.Println(ui.StatusSuccess(fmt.Sprintf("Extracted %d rule(s), %d command(s) to %s",
		manifest.RuleCount, manifest.CommandCount, root)))
	return nil
}

// parseDate accepts an empty string, a calendar date or an RFC 3339 time.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, time.Local); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
