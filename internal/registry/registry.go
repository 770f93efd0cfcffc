// Package registry loads rule and command records from one or more roots
// into an immutable, queryable registry.
//
// A registry is built once by Load or LoadAll and never mutated afterwards;
// reloading builds a new registry. All accessors return copies, so a
// registry is safe for concurrent readers.
package registry

import (
	"slices"
	"time"

	"github.com/klauern/rulebook/internal/model"
	"github.com/klauern/rulebook/internal/validation"
)

// Registry is the loaded set of rules and commands.
type Registry struct {
	roots       []string
	rules       []model.Rule
	ruleIndex   map[string]int
	commands    []model.Command
	cmdIndex    map[string]int
	diagnostics []error
	loadedAt    time.Time
}

func newRegistry(roots []string) *Registry {
	return &Registry{
		roots:     slices.Clone(roots),
		ruleIndex: make(map[string]int),
		cmdIndex:  make(map[string]int),
		loadedAt:  time.Now(),
	}
}

// Roots returns the root directories in load order.
func (r *Registry) Roots() []string {
	return slices.Clone(r.roots)
}

// Rules returns all rules in registry order: root order, then lexicographic
// path order within a root.
func (r *Registry) Rules() []model.Rule {
	return slices.Clone(r.rules)
}

// RulesByMode returns the rules with the given apply mode, in registry order.
func (r *Registry) RulesByMode(mode model.ApplyMode) []model.Rule {
	var out []model.Rule
	for _, rule := range r.rules {
		if rule.Mode == mode {
			out = append(out, rule)
		}
	}
	return out
}

// Rule looks up a rule by id.
func (r *Registry) Rule(id string) (model.Rule, bool) {
	i, ok := r.ruleIndex[id]
	if !ok {
		return model.Rule{}, false
	}
	return r.rules[i], true
}

// RuleIDs returns every rule id in registry order.
func (r *Registry) RuleIDs() []string {
	ids := make([]string, len(r.rules))
	for i, rule := range r.rules {
		ids[i] = rule.ID
	}
	return ids
}

// Commands returns all commands in registry order.
func (r *Registry) Commands() []model.Command {
	return slices.Clone(r.commands)
}

// Command looks up a command by its category/name path.
func (r *Registry) Command(path string) (model.Command, bool) {
	i, ok := r.cmdIndex[path]
	if !ok {
		return model.Command{}, false
	}
	return r.commands[i], true
}

// CommandPaths returns every command path in registry order.
func (r *Registry) CommandPaths() []string {
	paths := make([]string, len(r.commands))
	for i, cmd := range r.commands {
		paths[i] = cmd.Path
	}
	return paths
}

// Diagnostics returns the non-fatal problems found while loading, in the
// order they were found.
func (r *Registry) Diagnostics() []error {
	return slices.Clone(r.diagnostics)
}

// HasDiagnostics reports whether any diagnostic at or above min was found.
func (r *Registry) HasDiagnostics(minimum validation.Severity) bool {
	for _, d := range r.diagnostics {
		if validation.SeverityOf(d) >= minimum {
			return true
		}
	}
	return false
}

// Len returns the number of rules and commands.
func (r *Registry) Len() (rules, commands int) {
	return len(r.rules), len(r.commands)
}

// LoadedAt returns when the registry was built.
func (r *Registry) LoadedAt() time.Time {
	return r.loadedAt
}

func (r *Registry) addRule(rule model.Rule) error {
	if i, ok := r.ruleIndex[rule.ID]; ok {
		return &validation.DuplicateIDError{ID: rule.ID, Path: rule.Path, FirstPath: r.rules[i].Path}
	}
	r.ruleIndex[rule.ID] = len(r.rules)
	r.rules = append(r.rules, rule)
	return nil
}

func (r *Registry) addCommand(cmd model.Command) error {
	if i, ok := r.cmdIndex[cmd.Path]; ok {
		return &validation.DuplicateIDError{ID: cmd.Path, Path: cmd.File, FirstPath: r.commands[i].File}
	}
	r.cmdIndex[cmd.Path] = len(r.commands)
	r.commands = append(r.commands, cmd)
	return nil
}
