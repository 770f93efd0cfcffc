package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/klauern/rulebook/internal/dependency"
	"github.com/klauern/rulebook/internal/logging"
	"github.com/klauern/rulebook/internal/model"
	"github.com/klauern/rulebook/internal/parser/commands"
	"github.com/klauern/rulebook/internal/parser/rules"
	"github.com/klauern/rulebook/internal/validation"
)

// Progress phases.
const (
	PhaseRules    = "rules"
	PhaseCommands = "commands"
)

// Load reads the rules and commands under root. It fails with a
// *validation.LoadError only when root itself is missing or unreadable;
// problems with individual records are reported through Diagnostics.
func Load(ctx context.Context, root string, opts ...Option) (*Registry, error) {
	return LoadAll(ctx, []string{root}, opts...)
}

// LoadAll merges several roots into one registry. Roots are read in order
// and the first root to define an id or command path keeps it.
func LoadAll(ctx context.Context, roots []string, opts ...Option) (*Registry, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	defer logging.Timer("registry_load")()

	abs := make([]string, 0, len(roots))
	for _, root := range roots {
		dir, err := checkRoot(root)
		if err != nil {
			return nil, err
		}
		abs = append(abs, dir)
	}

	reg := newRegistry(abs)
	for _, root := range abs {
		if err := loadRoot(ctx, reg, root, o); err != nil {
			return nil, err
		}
	}

	for _, d := range dependency.Check(reg.rules, reg.commands) {
		reg.diagnostics = append(reg.diagnostics, d)
	}

	for _, d := range reg.diagnostics {
		o.logger.Debug("load diagnostic",
			slog.String("severity", validation.SeverityOf(d).String()),
			logging.Err(d),
		)
	}
	nRules, nCommands := reg.Len()
	o.logger.Debug("registry loaded",
		slog.Int("rules", nRules),
		slog.Int("commands", nCommands),
		slog.Int("diagnostics", len(reg.diagnostics)),
		slog.Int("roots", len(abs)),
	)

	return reg, nil
}

func checkRoot(root string) (string, error) {
	if root == "" {
		return "", &validation.LoadError{Root: root, Err: errors.New("root path is empty")}
	}
	dir, err := filepath.Abs(root)
	if err != nil {
		return "", &validation.LoadError{Root: root, Err: err}
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", &validation.LoadError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return "", &validation.LoadError{Root: root, Err: fmt.Errorf("not a directory")}
	}
	f, err := os.Open(dir) // #nosec G304 - root is user-supplied by design
	if err != nil {
		return "", &validation.LoadError{Root: root, Err: err}
	}
	_ = f.Close()
	return dir, nil
}

type ruleResult struct {
	rule  model.Rule
	diags []error
	err   error
	clean bool
}

type commandResult struct {
	cmd   model.Command
	err   error
	clean bool
}

func loadRoot(ctx context.Context, reg *Registry, root string, o options) error {
	logger := o.logger.With(logging.Root(root))

	rp := rules.New(root).WithLogger(o.logger)
	ruleFiles, err := rp.Discover()
	if err != nil {
		return &validation.LoadError{Root: root, Err: err}
	}
	ruleResults := make([]ruleResult, len(ruleFiles))
	err = parallel(ctx, o, PhaseRules, len(ruleFiles), func(i int) {
		ruleResults[i] = parseRule(rp, ruleFiles[i], o)
	})
	if err != nil {
		return err
	}

	// Sequential pass over sorted paths so first-seen wins regardless of
	// which parse finished first.
	for _, res := range ruleResults {
		reg.diagnostics = append(reg.diagnostics, res.diags...)
		if res.err != nil {
			if !errors.Is(res.err, rules.ErrNotRecord) {
				reg.diagnostics = append(reg.diagnostics, res.err)
			}
			continue
		}
		if err := reg.addRule(res.rule); err != nil {
			reg.diagnostics = append(reg.diagnostics, err)
			continue
		}
		if res.clean && o.cache != nil {
			o.cache.SetRule(res.rule)
		}
	}

	cp := commands.New(root)
	cmdFiles, err := cp.Discover()
	if err != nil {
		return &validation.LoadError{Root: root, Err: err}
	}
	cmdResults := make([]commandResult, len(cmdFiles))
	err = parallel(ctx, o, PhaseCommands, len(cmdFiles), func(i int) {
		cmdResults[i] = parseCommand(cp, root, cmdFiles[i], o)
	})
	if err != nil {
		return err
	}

	for _, res := range cmdResults {
		if res.err != nil {
			reg.diagnostics = append(reg.diagnostics, res.err)
			continue
		}
		if err := reg.addCommand(res.cmd); err != nil {
			reg.diagnostics = append(reg.diagnostics, err)
			continue
		}
		if res.clean && o.cache != nil {
			o.cache.SetCommand(res.cmd)
		}
	}

	logger.Debug("root loaded",
		slog.Int("rule_files", len(ruleFiles)),
		slog.Int("command_files", len(cmdFiles)),
	)
	return nil
}

func parseRule(p *rules.Parser, file string, o options) ruleResult {
	if o.cache != nil {
		if cached, ok := o.cache.GetRule(file); ok {
			if rule, ok := p.Refresh(cached); ok {
				return ruleResult{rule: rule}
			}
		}
	}
	rule, diags, err := p.ParseFile(file)
	return ruleResult{rule: rule, diags: diags, err: err, clean: err == nil && len(diags) == 0}
}

func parseCommand(p *commands.Parser, root, file string, o options) commandResult {
	if o.cache != nil {
		if cached, ok := o.cache.GetCommand(file); ok {
			cached.Root = root
			return commandResult{cmd: cached}
		}
	}
	cmd, err := p.ParseFile(file)
	return commandResult{cmd: cmd, err: err, clean: err == nil}
}

// parallel runs fn for every index in [0, n) on at most o.workers
// goroutines. fn must only write to its own index.
func parallel(ctx context.Context, o options, phase string, n int, fn func(i int)) error {
	if n == 0 {
		return ctx.Err()
	}

	var (
		mu   sync.Mutex
		done int
	)
	report := func() {
		if o.progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done++
		o.progress(phase, done, n)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i := range n {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(i)
			report()
			return nil
		})
	}
	return g.Wait()
}
