package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/klauern/rulebook/internal/logging"
	"github.com/klauern/rulebook/internal/model"
	"github.com/klauern/rulebook/internal/security"
	"github.com/klauern/rulebook/internal/template"
	"github.com/klauern/rulebook/internal/ui"
	"github.com/klauern/rulebook/internal/util"
)

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "new",
		Usage: "Scaffold a new rule or command",
		Commands: []*cli.Command{
			newRuleCommand(),
			newCommandCommand(),
		},
	}
}

func newRuleCommand() *cli.Command {
	return &cli.Command{
		Name:      "rule",
		Usage:     "Create a new rule folder",
		UsageText: "rulebook new rule [options] <category>/<name>",
		Description: `Create rules/<category>/<name>/RULE.md with metadata for the chosen apply mode.

   Modes:
     always       applied to every request
     intelligent  offered to the agent by description (requires --description)
     file         applied when a --glob matches an active file
     manual       applied only when mentioned with @name

   Examples:
     rulebook new rule --mode always general/tone
     rulebook new rule --mode file --glob "**/*.py" lang/python-style
     rulebook new rule --mode intelligent --description "Security review checklist" review/security`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "mode",
				Aliases:  []string{"m"},
				Usage:    "Apply mode: always, intelligent, file, manual",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:    "glob",
				Aliases: []string{"g"},
				Usage:   "File glob for file mode (repeatable)",
			},
			&cli.StringFlag{
				Name:    "description",
				Aliases: []string{"d"},
				Usage:   "Description for intelligent mode",
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Root to create the rule in (default: first --root, else ./.cursor)",
			},
			&cli.StringFlag{
				Name:  "template-file",
				Usage: "Path to a custom rule template",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Print the generated content without writing it",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() < 1 {
				return errors.New("rule name is required")
			}
			return runNewRule(cmd, cmd.Args().Get(0))
		},
	}
}

func newCommandCommand() *cli.Command {
	return &cli.Command{
		Name:      "command",
		Usage:     "Create a new command file",
		UsageText: "rulebook new command [options] <category>/<name>",
		Description: `Create commands/<category>/<name>.md with overview, rules and steps sections.

   Examples:
     rulebook new command --rule strict-review --rule security review/pr`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "rule",
				Usage: "Rule id the command references (repeatable)",
			},
			&cli.StringFlag{
				Name:    "description",
				Aliases: []string{"d"},
				Usage:   "What the command does",
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Root to create the command in (default: first --root, else ./.cursor)",
			},
			&cli.StringFlag{
				Name:  "template-file",
				Usage: "Path to a custom command template",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Print the generated content without writing it",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() < 1 {
				return errors.New("command path is required")
			}
			return runNewCommand(cmd, cmd.Args().Get(0))
		},
	}
}

func runNewRule(cmd *cli.Command, name string) error {
	logging.Debug("creating new rule", slog.String("name", name))

	mode, err := model.ParseApplyMode(cmd.String("mode"))
	if err != nil {
		return fmt.Errorf("invalid mode: %w", err)
	}

	category, id := splitCategory(name)
	data := template.RuleData{
		ID:          id,
		Category:    category,
		Mode:        mode,
		Description: cmd.String("description"),
		Globs:       cmd.StringSlice("glob"),
	}
	if err := template.CheckRuleData(data); err != nil {
		return err
	}

	gen, err := generator(cmd, template.Rule)
	if err != nil {
		return err
	}

	content, err := gen.GenerateRule(data)
	if err != nil {
		return fmt.Errorf("failed to generate content: %w", err)
	}
	if err := checkScaffold(content); err != nil {
		return err
	}
	if cmd.Bool("dry-run") {
		previewContent(content)
		return nil
	}

	root, err := targetRoot(cmd)
	if err != nil {
		return err
	}
	path, err := gen.CreateRule(root, data)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	fmt.Println(ui.StatusSuccess("Created rule: " + path))
	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to write the rule\n", path)
	switch mode {
	case model.ModeManual:
		fmt.Printf("  2. Mention it with @%s to apply it\n", id)
	case model.ModeFileScoped:
		fmt.Printf("  2. Check it with: rulebook resolve --file <path matching %s>\n", strings.Join(data.Globs, ", "))
	default:
		fmt.Println("  2. Check it with: rulebook resolve")
	}
	fmt.Println("  3. Run 'rulebook lint' to validate")
	return nil
}

func runNewCommand(cmd *cli.Command, path string) error {
	path = strings.TrimPrefix(path, "/")
	logging.Debug("creating new command", logging.Command(path))

	data := template.CommandData{
		Path:        path,
		Description: cmd.String("description"),
		Rules:       cmd.StringSlice("rule"),
	}

	gen, err := generator(cmd, template.Command)
	if err != nil {
		return err
	}

	content, err := gen.GenerateCommand(data)
	if err != nil {
		return fmt.Errorf("failed to generate content: %w", err)
	}
	if err := checkScaffold(content); err != nil {
		return err
	}
	if cmd.Bool("dry-run") {
		previewContent(content)
		return nil
	}

	root, err := targetRoot(cmd)
	if err != nil {
		return err
	}
	file, err := gen.CreateCommand(root, data)
	if err != nil {
		return fmt.Errorf("failed to create command: %w", err)
	}

	fmt.Println(ui.StatusSuccess("Created command: " + file))
	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to describe the steps\n", file)
	fmt.Printf("  2. Invoke it with /%s\n", data.Path)
	fmt.Println("  3. Run 'rulebook lint' to check its rule references")
	return nil
}

// checkScaffold scans generated content for credentials before it is
// written. Error-level findings, typically carried in by a custom template,
// abort the scaffold; warnings are reported on stderr.
func checkScaffold(content string) error {
	result := security.ScanContent(content)
	for _, w := range result.Warnings {
		fmt.Fprintln(os.Stderr, ui.StatusWarning(w))
	}
	if err := result.Error(); err != nil {
		return fmt.Errorf("generated content: %s: %w", result.Summary(), err)
	}
	if len(result.Warnings) > 0 {
		logging.Debug("scaffold scanned", slog.String("summary", result.Summary()))
	}
	return nil
}

// generator returns a template generator, with --template-file replacing
// the built-in template for typ.
func generator(cmd *cli.Command, typ template.TemplateType) (*template.Generator, error) {
	gen, err := template.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize template generator: %w", err)
	}
	if file := cmd.String("template-file"); file != "" {
		if err := gen.LoadCustomTemplate(typ, util.ExpandPath(file, "")); err != nil {
			return nil, fmt.Errorf("failed to load custom template: %w", err)
		}
	}
	return gen, nil
}

// targetRoot picks the root new records are written to.
func targetRoot(cmd *cli.Command) (string, error) {
	if dir := cmd.String("dir"); dir != "" {
		return util.ExpandPath(dir, ""), nil
	}
	if roots := cmd.StringSlice("root"); len(roots) > 0 {
		return util.ExpandPath(roots[0], ""), nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to determine working directory: %w", err)
	}
	return util.ProjectRulesRoot(wd), nil
}

// splitCategory splits "a/b/name" into "a/b" and "name".
func splitCategory(name string) (category, id string) {
	name = strings.Trim(name, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

func previewContent(content string) {
	fmt.Println(ui.StatusInfo("Generated content preview:"))
	fmt.Println(strings.Repeat("-", 80))
	fmt.Println(content)
	fmt.Println(strings.Repeat("-", 80))
}
