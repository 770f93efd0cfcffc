package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/klauern/rulebook/internal/cache"
	"github.com/klauern/rulebook/internal/config"
	"github.com/klauern/rulebook/internal/logging"
	"github.com/klauern/rulebook/internal/progress"
	"github.com/klauern/rulebook/internal/registry"
	"github.com/klauern/rulebook/internal/ui"
	"github.com/klauern/rulebook/internal/util"
	"github.com/klauern/rulebook/internal/validation"
)

// session is a loaded registry plus the configuration it was loaded with.
type session struct {
	cfg   *config.Config
	roots []string
	reg   *registry.Registry
}

// loadConfig reads --config or the default config file.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := cmd.String("config"); path != "" {
		cfg, err = config.LoadFromPath(util.ExpandPath(path, ""))
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if !cmd.Bool("no-color") {
		switch cfg.Output.Color {
		case "never":
			ui.DisableColors()
		case "always":
			ui.EnableColors()
		}
	}
	return cfg, nil
}

// rootsFor returns the roots to load. Roots given with --root are used as-is
// and must exist; configured roots that are missing are skipped.
func rootsFor(cmd *cli.Command, cfg *config.Config) ([]string, error) {
	if explicit := cmd.StringSlice("root"); len(explicit) > 0 {
		return util.ExpandPaths(explicit, ""), nil
	}

	configured := cfg.RootPaths("")
	roots := make([]string, 0, len(configured))
	for _, root := range configured {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			logging.Debug("skipping missing root", logging.Root(root))
			continue
		}
		roots = append(roots, root)
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("no rule roots found (tried %s); pass --root or set roots in %s",
			strings.Join(configured, ", "), config.FilePath())
	}
	return roots, nil
}

// loadOptions builds the registry options for cfg. The returned cache, if
// any, must be saved by the caller after loading. clearCache drops every
// cached parse so the roots are read from scratch.
func loadOptions(cfg *config.Config, roots []string, clearCache bool) ([]registry.Option, *cache.Cache) {
	opts := []registry.Option{
		registry.WithLogger(logging.Default()),
		registry.WithWorkers(cfg.Workers()),
	}
	if !cfg.Cache.Enabled || len(roots) == 0 {
		return opts, nil
	}
	c, err := cache.New(cache.NameFor(roots[0]), util.ExpandPath(cfg.Cache.Location, ""))
	if err != nil {
		logging.Warn("parse cache unavailable", logging.Err(err))
		return opts, nil
	}
	switch {
	case clearCache:
		if err := c.Clear(); err != nil {
			logging.Warn("failed to clear parse cache", logging.Path(c.Path()), logging.Err(err))
		} else {
			logging.Debug("parse cache cleared", logging.Path(c.Path()))
		}
	case c.IsStale(cfg.Cache.TTL):
		logging.Debug("pruned cache entries", logging.Count(c.Prune(cfg.Cache.TTL)))
	}
	return append(opts, registry.WithCache(c)), c
}

// noDiagnostics makes openSession print no diagnostics.
const noDiagnostics = validation.SeverityError + 1

// openSession loads config and registry for a command. Diagnostics at or
// above minimum are printed once to stderr.
func openSession(ctx context.Context, cmd *cli.Command, minimum validation.Severity) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	roots, err := rootsFor(cmd, cfg)
	if err != nil {
		return nil, err
	}

	opts, c := loadOptions(cfg, roots, cmd.Bool("clear-cache"))
	bar := progress.NewPhased(os.Stderr, false)
	opts = append(opts, registry.WithProgress(bar.Report))

	reg, err := registry.LoadAll(ctx, roots, opts...)
	bar.Done()
	if err != nil {
		var loadErr *validation.LoadError
		if errors.As(err, &loadErr) {
			return nil, fmt.Errorf("cannot load rules: %w", err)
		}
		return nil, err
	}
	if c != nil {
		if err := c.Save(); err != nil {
			logging.Warn("failed to save parse cache", logging.Path(c.Path()), logging.Err(err))
		}
	}

	printDiagnostics(os.Stderr, reg.Diagnostics(), minimum)

	nRules, nCommands := reg.Len()
	logging.Info("registry loaded",
		slog.Int("rules", nRules),
		slog.Int("commands", nCommands),
		slog.Int("roots", len(roots)),
	)
	return &session{cfg: cfg, roots: reg.Roots(), reg: reg}, nil
}

// printDiagnostics writes one line per diagnostic at or above minimum.
func printDiagnostics(w io.Writer, diags []error, minimum validation.Severity) {
	for _, d := range diags {
		sev := validation.SeverityOf(d)
		if sev < minimum {
			continue
		}
		_, _ = fmt.Fprintln(w, formatDiagnostic(d, sev))
	}
}

func formatDiagnostic(d error, sev validation.Severity) string {
	switch sev {
	case validation.SeverityError:
		return ui.StatusError(d.Error())
	case validation.SeverityWarning:
		return ui.StatusWarning(d.Error())
	default:
		return ui.StatusInfo(d.Error())
	}
}

// outputAnyJSON outputs any value as JSON.
func outputAnyJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// outputAnyYAML outputs any value as YAML.
func outputAnyYAML(v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

// outputFormat returns the --format flag, falling back to the configured
// default when it is one of allowed.
func outputFormat(cmd *cli.Command, cfg *config.Config, allowed ...string) (string, error) {
	format := cmd.String("format")
	if format == "" {
		format = cfg.Output.Format
		if !slices.Contains(allowed, format) {
			format = allowed[0]
		}
	}
	if !slices.Contains(allowed, format) {
		return "", fmt.Errorf("unsupported format: %s (valid: %s)", format, strings.Join(allowed, ", "))
	}
	return format, nil
}
