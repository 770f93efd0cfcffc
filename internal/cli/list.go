package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/klauern/rulebook/internal/model"
	"github.com/klauern/rulebook/internal/similarity"
	"github.com/klauern/rulebook/internal/ui"
	"github.com/klauern/rulebook/internal/validation"
)

// ruleSummary is the list view of a rule.
type ruleSummary struct {
	ID          string   `json:"id" yaml:"id"`
	Category    string   `json:"category,omitempty" yaml:"category,omitempty"`
	Mode        string   `json:"mode" yaml:"mode"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Globs       []string `json:"globs,omitempty" yaml:"globs,omitempty"`
	Path        string   `json:"path" yaml:"path"`
}

// commandSummary is the list view of a command.
type commandSummary struct {
	Path        string   `json:"path" yaml:"path"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Rules       []string `json:"rules,omitempty" yaml:"rules,omitempty"`
	Steps       int      `json:"steps" yaml:"steps"`
	File        string   `json:"file" yaml:"file"`
}

func summarizeRule(r model.Rule) ruleSummary {
	return ruleSummary{
		ID:          r.ID,
		Category:    r.Category,
		Mode:        r.Mode.String(),
		Description: r.Description,
		Globs:       r.Globs,
		Path:        r.Path,
	}
}

func summarizeCommand(c model.Command) commandSummary {
	return commandSummary{
		Path:        c.Path,
		Description: c.Description,
		Rules:       c.RulesReferenced,
		Steps:       len(c.Steps),
		File:        c.File,
	}
}

func listCommand() *cli.Command {
	formatFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: table, json, yaml",
		}
	}
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List loaded rules or commands",
		Commands: []*cli.Command{
			{
				Name:      "rules",
				Usage:     "List rules",
				UsageText: "rulebook list rules [--mode always|intelligent|file|manual] [--format table|json|yaml]",
				Flags: []cli.Flag{
					formatFlag(),
					&cli.StringFlag{
						Name:    "mode",
						Aliases: []string{"m"},
						Usage:   "Only list rules with this apply mode",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runListRules(ctx, cmd)
				},
			},
			{
				Name:  "commands",
				Usage: "List commands",
				Flags: []cli.Flag{formatFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runListCommands(ctx, cmd)
				},
			},
		},
	}
}

func runListRules(ctx context.Context, cmd *cli.Command) error {
	var mode model.ApplyMode
	if s := cmd.String("mode"); s != "" {
		m, err := model.ParseApplyMode(s)
		if err != nil {
			return err
		}
		mode = m
	}

	sess, err := openSession(ctx, cmd, validation.SeverityWarning)
	if err != nil {
		return err
	}
	format, err := outputFormat(cmd, sess.cfg, "table", "json", "yaml")
	if err != nil {
		return err
	}

	rules := sess.reg.Rules()
	if mode != "" {
		rules = sess.reg.RulesByMode(mode)
	}
	summaries := make([]ruleSummary, 0, len(rules))
	for _, r := range rules {
		summaries = append(summaries, summarizeRule(r))
	}

	switch format {
	case "json":
		return outputAnyJSON(summaries)
	case "yaml":
		return outputAnyYAML(summaries)
	}

	if len(summaries) == 0 {
		fmt.Println("No rules found.")
		return nil
	}
	fmt.Printf("%-30s %-12s %-20s %s\n", "ID", "MODE", "CATEGORY", "APPLIES")
	fmt.Printf("%-30s %-12s %-20s %s\n", "--", "----", "--------", "-------")
	for _, s := range summaries {
		fmt.Printf("%-30s %-12s %-20s %s\n", s.ID, s.Mode, s.Category, applies(s))
	}
	fmt.Printf("\nTotal: %d rule(s)\n", len(summaries))
	return nil
}

// applies describes when a rule applies in one short line.
func applies(s ruleSummary) string {
	switch model.ApplyMode(s.Mode) {
	case model.ModeAlways:
		return "every request"
	case model.ModeFileScoped:
		return strings.Join(s.Globs, ", ")
	case model.ModeManual:
		return "@" + s.ID
	default:
		return truncate(s.Description, 60)
	}
}

func runListCommands(ctx context.Context, cmd *cli.Command) error {
	sess, err := openSession(ctx, cmd, validation.SeverityWarning)
	if err != nil {
		return err
	}
	format, err := outputFormat(cmd, sess.cfg, "table", "json", "yaml")
	if err != nil {
		return err
	}

	commands := sess.reg.Commands()
	summaries := make([]commandSummary, 0, len(commands))
	for _, c := range commands {
		summaries = append(summaries, summarizeCommand(c))
	}

	switch format {
	case "json":
		return outputAnyJSON(summaries)
	case "yaml":
		return outputAnyYAML(summaries)
	}

	if len(summaries) == 0 {
		fmt.Println("No commands found.")
		return nil
	}
	fmt.Printf("%-30s %-6s %s\n", "COMMAND", "STEPS", "DESCRIPTION")
	fmt.Printf("%-30s %-6s %s\n", "-------", "-----", "-----------")
	for _, s := range summaries {
		fmt.Printf("%-30s %-6d %s\n", "/"+s.Path, s.Steps, truncate(s.Description, 60))
	}
	fmt.Printf("\nTotal: %d command(s)\n", len(summaries))
	return nil
}

func showCommand() *cli.Command {
	formatFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, json, yaml",
			Value:   "text",
		}
	}
	return &cli.Command{
		Name:  "show",
		Usage: "Show a single rule or command",
		Commands: []*cli.Command{
			{
				Name:      "rule",
				Usage:     "Show a rule by id",
				UsageText: "rulebook show rule <id>",
				Flags:     []cli.Flag{formatFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() < 1 {
						return errors.New("rule id is required")
					}
					return runShowRule(ctx, cmd, cmd.Args().Get(0))
				},
			},
			{
				Name:      "command",
				Usage:     "Show a command by path",
				UsageText: "rulebook show command <category/name>",
				Flags:     []cli.Flag{formatFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() < 1 {
						return errors.New("command path is required")
					}
					return runShowCommand(ctx, cmd, strings.TrimPrefix(cmd.Args().Get(0), "/"))
				},
			},
		},
	}
}

func runShowRule(ctx context.Context, cmd *cli.Command, id string) error {
	sess, err := openSession(ctx, cmd, validation.SeverityWarning)
	if err != nil {
		return err
	}
	rule, ok := sess.reg.Rule(strings.TrimPrefix(id, "@"))
	if !ok {
		return notFound("rule", id, sess.reg.RuleIDs())
	}

	switch format := cmd.String("format"); format {
	case "json":
		return outputAnyJSON(rule)
	case "yaml":
		return outputAnyYAML(rule)
	case "text":
	default:
		return fmt.Errorf("unsupported format: %s (valid: text, json, yaml)", format)
	}

	fmt.Printf("%s %s\n", ui.Bold("Rule:"), rule.QualifiedName())
	fmt.Printf("  Mode:        %s (%s)\n", rule.Mode, rule.Mode.Description())
	if rule.Description != "" {
		fmt.Printf("  Description: %s\n", rule.Description)
	}
	if len(rule.Globs) > 0 {
		fmt.Printf("  Globs:       %s\n", strings.Join(rule.Globs, ", "))
	}
	fmt.Printf("  Path:        %s\n", rule.Path)
	for _, a := range rule.Attachments {
		fmt.Printf("  Attachment:  %s\n", a)
	}
	fmt.Println()
	fmt.Println(rule.Body)
	return nil
}

func runShowCommand(ctx context.Context, cmd *cli.Command, path string) error {
	sess, err := openSession(ctx, cmd, validation.SeverityWarning)
	if err != nil {
		return err
	}
	command, ok := sess.reg.Command(path)
	if !ok {
		return notFound("command", path, sess.reg.CommandPaths())
	}

	switch format := cmd.String("format"); format {
	case "json":
		return outputAnyJSON(command)
	case "yaml":
		return outputAnyYAML(command)
	case "text":
	default:
		return fmt.Errorf("unsupported format: %s (valid: text, json, yaml)", format)
	}

	fmt.Printf("%s /%s\n", ui.Bold("Command:"), command.Path)
	if command.Description != "" {
		fmt.Printf("  Description: %s\n", command.Description)
	}
	fmt.Printf("  File:        %s\n", command.File)
	if len(command.RulesReferenced) > 0 {
		refs := make([]string, 0, len(command.RulesReferenced))
		for _, id := range command.RulesReferenced {
			if _, ok := sess.reg.Rule(id); ok {
				refs = append(refs, "@"+id)
			} else {
				refs = append(refs, ui.Warning("@"+id+" (missing)"))
			}
		}
		fmt.Printf("  Rules:       %s\n", strings.Join(refs, ", "))
	}
	if len(command.Steps) > 0 {
		fmt.Printf("\n%s\n", ui.Bold("Steps:"))
		for i, step := range command.Steps {
			first, _, _ := strings.Cut(step, "\n")
			fmt.Printf("  %d. %s\n", i+1, first)
		}
	}
	fmt.Println()
	fmt.Println(command.Body)
	return nil
}

// notFound builds a lookup error with "did you mean" suggestions.
func notFound(kind, name string, known []string) error {
	suggestions := similarity.Suggest(name, known, 3)
	if len(suggestions) == 0 {
		return fmt.Errorf("%s %q not found", kind, name)
	}
	return fmt.Errorf("%s %q not found (did you mean: %s?)", kind, name, strings.Join(suggestions, ", "))
}

func truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
