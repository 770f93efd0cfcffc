package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/klauern/rulebook/internal/export"
	"github.com/klauern/rulebook/internal/model"
	"github.com/klauern/rulebook/internal/ui"
	"github.com/klauern/rulebook/internal/validation"
)

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Export rules and commands to JSON, YAML, or Markdown",
		UsageText: "rulebook export [--format json|yaml|markdown] [--output FILE]",
		Description: `Write every loaded rule and command in one document.

   Examples:
     rulebook export --format markdown --output RULES.md
     rulebook export --mode file --format yaml
     rulebook export --category lang/python --no-metadata`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: json, yaml, markdown",
				Value:   "json",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to FILE instead of stdout",
			},
			&cli.StringFlag{
				Name:    "mode",
				Aliases: []string{"m"},
				Usage:   "Only export rules with this apply mode",
			},
			&cli.StringFlag{
				Name:  "category",
				Usage: "Only export rules and commands in this category",
			},
			&cli.BoolFlag{
				Name:  "compact",
				Usage: "Disable pretty-printing for JSON",
			},
			&cli.BoolFlag{
				Name:  "no-metadata",
				Usage: "Omit file paths, attachments and timestamps",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runExport(ctx, cmd)
		},
	}
}

func runExport(ctx context.Context, cmd *cli.Command) error {
	format, err := export.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	opts := export.DefaultOptions()
	opts.Format = format
	opts.Pretty = !cmd.Bool("compact")
	opts.IncludeMetadata = !cmd.Bool("no-metadata")
	opts.Category = cmd.String("category")
	if s := cmd.String("mode"); s != "" {
		mode, err := model.ParseApplyMode(s)
		if err != nil {
			return err
		}
		opts.Mode = mode
	}

	sess, err := openSession(ctx, cmd, validation.SeverityWarning)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	output := cmd.String("output")
	if output != "" {
		// #nosec G304 - output path is provided by the user
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	if err := export.New(opts).Export(sess.reg.Rules(), sess.reg.Commands(), w); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if output != "" {
		fmt.Fprintln(os.Stderr, ui.StatusSuccess(fmt.Sprintf("Exported %s to %s", format, output)))
	}
	return nil
}
