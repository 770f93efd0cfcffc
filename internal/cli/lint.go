package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/klauern/rulebook/internal/dependency"
	"github.com/klauern/rulebook/internal/model"
	"github.com/klauern/rulebook/internal/registry"
	"github.com/klauern/rulebook/internal/security"
	"github.com/klauern/rulebook/internal/similarity"
	"github.com/klauern/rulebook/internal/ui"
	"github.com/klauern/rulebook/internal/validation"
)

// lintNotice is a lint-only finding that is not produced while loading.
type lintNotice struct {
	msg   string
	path  string
	level validation.Severity
}

func (n *lintNotice) Error() string                 { return n.msg }
func (n *lintNotice) Severity() validation.Severity { return n.level }
func (n *lintNotice) RecordPath() string            { return n.path }

func lintCommand() *cli.Command {
	return &cli.Command{
		Name:  "lint",
		Usage: "Check rules and commands for problems",
		Description: `Report load diagnostics (malformed records, duplicate ids, invalid globs,
   dangling rule references), secrets in rule and command bodies, rules with
   near-duplicate ids or overlapping bodies, and manual rules no command
   references.

   Exits non-zero when errors are found, or warnings with --strict.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "Fail on warnings as well as errors",
			},
			&cli.BoolFlag{
				Name:  "no-secrets",
				Usage: "Skip the secret scan",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Only print warnings and errors",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runLint(ctx, cmd)
		},
	}
}

func runLint(ctx context.Context, cmd *cli.Command) error {
	sess, err := openSession(ctx, cmd, noDiagnostics)
	if err != nil {
		return err
	}
	cfg := sess.cfg

	findings := append([]error(nil), sess.reg.Diagnostics()...)
	if cfg.Lint.SecretScan && !cmd.Bool("no-secrets") {
		findings = append(findings, security.NewDetectorDefault().ScanRecords(sess.reg.Rules(), sess.reg.Commands())...)
	}
	findings = append(findings, lintSimilarity(sess.reg, cfg.Lint.NameThreshold, cfg.Lint.ContentThreshold)...)
	findings = append(findings, lintUnreferenced(sess.reg)...)

	minimum := validation.SeverityInfo
	if cmd.Bool("quiet") {
		minimum = validation.SeverityWarning
	}
	printDiagnostics(os.Stdout, findings, minimum)

	counts := validation.Count(findings)
	nRules, nCommands := sess.reg.Len()
	summary := fmt.Sprintf("%d rule(s), %d command(s): %d error(s), %d warning(s), %d info",
		nRules, nCommands,
		counts[validation.SeverityError], counts[validation.SeverityWarning], counts[validation.SeverityInfo])

	strict := cfg.Lint.Strict || cmd.Bool("strict")
	switch {
	case counts[validation.SeverityError] > 0:
		fmt.Println(ui.StatusError(summary))
		return fmt.Errorf("lint failed with %d error(s)", counts[validation.SeverityError])
	case strict && counts[validation.SeverityWarning] > 0:
		fmt.Println(ui.StatusWarning(summary))
		return fmt.Errorf("lint failed with %d warning(s) (strict)", counts[validation.SeverityWarning])
	case counts[validation.SeverityWarning] > 0:
		fmt.Println(ui.StatusWarning(summary))
	default:
		fmt.Println(ui.StatusSuccess(summary))
	}
	return nil
}

// lintSimilarity flags rules whose ids or bodies are close enough to be
// accidental duplicates.
func lintSimilarity(reg *registry.Registry, nameThreshold, contentThreshold float64) []error {
	rules := reg.Rules()
	byID := make(map[string]model.Rule, len(rules))
	for _, r := range rules {
		byID[r.ID] = r
	}

	var out []error
	nameCfg := similarity.DefaultNameMatcherConfig()
	nameCfg.Threshold = nameThreshold
	for _, m := range similarity.NewNameMatcher(nameCfg).FindSimilar(reg.RuleIDs()) {
		out = append(out, &lintNotice{
			msg:   fmt.Sprintf("rule %q has an id similar to %q (%.0f%%)", m.Name2, m.Name1, m.Score*100),
			path:  byID[m.Name2].Path,
			level: validation.SeverityWarning,
		})
	}

	contentCfg := similarity.DefaultContentMatcherConfig()
	contentCfg.Threshold = contentThreshold
	for _, m := range similarity.NewContentMatcher(contentCfg).FindSimilar(rules) {
		out = append(out, &lintNotice{
			msg:   fmt.Sprintf("rule %q overlaps with %q (%.0f%% similar content)", m.Rule2, m.Rule1, m.Score*100),
			path:  byID[m.Rule2].Path,
			level: validation.SeverityInfo,
		})
	}
	return out
}

// lintUnreferenced reports manual rules that only an explicit mention can
// ever activate and that no command points to.
func lintUnreferenced(reg *registry.Registry) []error {
	graph := dependency.Build(reg.Rules(), reg.Commands())
	var out []error
	for _, id := range graph.Unreferenced(reg.Rules()) {
		rule, _ := reg.Rule(id)
		out = append(out, &lintNotice{
			msg:   fmt.Sprintf("manual rule %q is not referenced by any command", id),
			path:  rule.Path,
			level: validation.SeverityInfo,
		})
	}
	return out
}
