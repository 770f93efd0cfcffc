package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/klauern/rulebook/internal/config"
	"github.com/klauern/rulebook/internal/logging"
	"github.com/klauern/rulebook/internal/model"
	"github.com/klauern/rulebook/internal/resolver"
	"github.com/klauern/rulebook/internal/ui"
	"github.com/klauern/rulebook/internal/ui/tui"
	"github.com/klauern/rulebook/internal/validation"
)

// resolveOutput is the structured form of a resolution.
type resolveOutput struct {
	Included     []resolvedRule `json:"included" yaml:"included"`
	Candidates   []resolvedRule `json:"candidates" yaml:"candidates"`
	Commands     []string       `json:"commands,omitempty" yaml:"commands,omitempty"`
	ComposedText string         `json:"composed_text" yaml:"composed_text"`
}

type resolvedRule struct {
	ID          string `json:"id" yaml:"id"`
	Mode        string `json:"mode" yaml:"mode"`
	Reason      string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Path        string `json:"path" yaml:"path"`
}

func resolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve which rules apply to a set of files and a message",
		UsageText: "rulebook resolve [--file PATH...] [--message TEXT] [--mention ID...] [--judge none|all|interactive]",
		Description: `Select the rules that apply to the given context and print the composed
   instruction text.

   Always rules are included unconditionally, file-scoped rules when a glob
   matches one of the --file paths, and manual rules when mentioned with @id
   in the message or with --mention. Intelligent rules are offered as
   candidates; --judge decides which of them are included.

   Examples:
     rulebook resolve --file src/app.py
     rulebook resolve --file src/app.py --message "review this with @strict-review"
     rulebook resolve --message "/review/pr" --judge interactive
     echo "fix the parser" | rulebook resolve --message - --format json`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "file",
				Aliases: []string{"F"},
				Usage:   "Active file path (repeatable)",
			},
			&cli.StringFlag{
				Name:    "message",
				Aliases: []string{"m"},
				Usage:   "Conversation text to scan for @mentions and /commands (- reads stdin)",
			},
			&cli.StringSliceFlag{
				Name:  "mention",
				Usage: "Rule id to treat as mentioned (repeatable)",
			},
			&cli.StringFlag{
				Name:  "judge",
				Usage: "How to pick intelligent candidates: none, all, interactive (default from config)",
			},
			&cli.StringSliceFlag{
				Name:  "select",
				Usage: "Candidate id to include (repeatable, overrides --judge)",
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Project directory that file paths are relative to (default: working directory)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, composed, json, yaml",
				Value:   "text",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runResolve(ctx, cmd)
		},
	}
}

func runResolve(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	switch format {
	case "text", "composed", "json", "yaml":
	default:
		return fmt.Errorf("unsupported format: %s (valid: text, composed, json, yaml)", format)
	}

	message := cmd.String("message")
	if message == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read message from stdin: %w", err)
		}
		message = string(data)
	}

	paths, err := projectPaths(cmd.String("dir"), cmd.StringSlice("file"))
	if err != nil {
		return err
	}

	sess, err := openSession(ctx, cmd, validation.SeverityWarning)
	if err != nil {
		return err
	}

	judge, err := judgeFor(cmd, sess.cfg)
	if err != nil {
		return err
	}

	q := resolver.NewQuery(paths, message, cmd.StringSlice("mention")...)
	logging.Debug("resolving",
		logging.Count(len(paths)),
		logging.Operation("resolve"),
	)

	set, err := resolver.ResolveWithJudge(ctx, q, sess.reg, judge)
	if err != nil {
		if errors.Is(err, tui.ErrPickerCanceled) {
			return errors.New("resolution canceled")
		}
		return err
	}
	for _, token := range q.Invocations {
		if !invoked(set.Commands, token) {
			logging.Debug("no command for invocation", logging.Command(token))
		}
	}

	out := toResolveOutput(set)
	switch format {
	case "json":
		return outputAnyJSON(out)
	case "yaml":
		return outputAnyYAML(out)
	case "composed":
		fmt.Print(set.ComposedText)
		return nil
	}

	printResolveSummary(out)
	if set.ComposedText != "" {
		fmt.Println()
		fmt.Print(set.ComposedText)
	}
	return nil
}

// projectPaths makes active file paths relative to the project directory so
// they can be matched against rule globs. Paths outside it are kept as given.
func projectPaths(dir string, files []string) ([]string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		dir = wd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(files))
	for _, f := range files {
		if f == "" {
			continue
		}
		if filepath.IsAbs(f) {
			if rel, err := filepath.Rel(dir, f); err == nil && !outside(rel) {
				f = rel
			}
		}
		out = append(out, filepath.ToSlash(f))
	}
	return out, nil
}

// outside reports whether a filepath.Rel result climbs out of its base.
func outside(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// judgeFor picks the relevance judge from --select, --judge or the config.
func judgeFor(cmd *cli.Command, cfg *config.Config) (resolver.RelevanceJudge, error) {
	if ids := cmd.StringSlice("select"); len(ids) > 0 {
		return resolver.StaticJudge{IDs: ids}, nil
	}

	name := cmd.String("judge")
	if name == "" {
		name = cfg.GetJudge()
	}
	switch name {
	case config.JudgeNone:
		return resolver.NoneJudge{}, nil
	case config.JudgeAll:
		return resolver.AllJudge{}, nil
	case config.JudgeInteractive:
		if !ui.IsTerminal(os.Stdin) || !ui.IsTerminal(os.Stderr) {
			return nil, errors.New("interactive judge requires a terminal")
		}
		return &tui.CandidatePicker{In: os.Stdin, Out: os.Stderr}, nil
	default:
		return nil, fmt.Errorf("unknown judge: %s (valid: none, all, interactive)", name)
	}
}

func invoked(commands []model.Command, token string) bool {
	for _, c := range commands {
		if c.Path == token || c.Name() == token {
			return true
		}
	}
	return false
}

func toResolveOutput(set model.ResolvedSet) resolveOutput {
	out := resolveOutput{
		Included:     make([]resolvedRule, 0, len(set.Included)),
		Candidates:   make([]resolvedRule, 0, len(set.Candidates)),
		ComposedText: set.ComposedText,
	}
	for _, r := range set.Included {
		out.Included = append(out.Included, resolvedRule{
			ID:     r.ID,
			Mode:   r.Mode.String(),
			Reason: set.Reasons[r.ID],
			Path:   r.Path,
		})
	}
	for _, r := range set.Candidates {
		out.Candidates = append(out.Candidates, resolvedRule{
			ID:          r.ID,
			Mode:        r.Mode.String(),
			Description: r.Description,
			Path:        r.Path,
		})
	}
	for _, c := range set.Commands {
		out.Commands = append(out.Commands, c.Path)
	}
	return out
}

func printResolveSummary(out resolveOutput) {
	fmt.Printf("%s (%d)\n", ui.Bold("Included"), len(out.Included))
	for _, r := range out.Included {
		fmt.Printf("  %s %-30s %s\n", ui.StatusSuccess(""), r.ID, ui.Dim(r.Reason))
	}
	fmt.Printf("%s (%d)\n", ui.Bold("Candidates"), len(out.Candidates))
	for _, r := range out.Candidates {
		fmt.Printf("  %s %-30s %s\n", ui.StatusSkipped(""), r.ID, ui.Dim(truncate(r.Description, 60)))
	}
	if len(out.Commands) > 0 {
		fmt.Printf("%s (%d)\n", ui.Bold("Commands"), len(out.Commands))
		for _, c := range out.Commands {
			fmt.Printf("  /%s\n", c)
		}
	}
}
