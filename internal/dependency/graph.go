// Package dependency checks the references commands make to rules.
package dependency

import (
	"sort"

	"github.com/klauern/rulebook/internal/model"
	"github.com/klauern/rulebook/internal/similarity"
	"github.com/klauern/rulebook/internal/validation"
)

// maxSuggestions bounds the "did you mean" list on a dangling reference.
const maxSuggestions = 3

// Graph indexes which commands reference which rules.
type Graph struct {
	ruleIDs   []string
	known     map[string]bool
	referrers map[string][]string
	dangling  []*validation.DanglingReferenceWarning
}

// Build indexes the references of every command against the given rules.
// Commands are visited in slice order, so the result is deterministic for a
// deterministic registry.
func Build(rules []model.Rule, commands []model.Command) *Graph {
	g := &Graph{
		known:     make(map[string]bool, len(rules)),
		referrers: make(map[string][]string),
	}
	for _, r := range rules {
		if g.known[r.ID] {
			continue
		}
		g.known[r.ID] = true
		g.ruleIDs = append(g.ruleIDs, r.ID)
	}

	matcher := similarity.NewNameMatcher(similarity.DefaultNameMatcherConfig())
	for _, cmd := range commands {
		for _, ref := range cmd.RulesReferenced {
			g.referrers[ref] = append(g.referrers[ref], cmd.Path)
			if g.known[ref] {
				continue
			}
			g.dangling = append(g.dangling, &validation.DanglingReferenceWarning{
				Command:     cmd.Path,
				Path:        cmd.File,
				RuleID:      ref,
				Suggestions: matcher.Suggest(ref, g.ruleIDs, maxSuggestions),
			})
		}
	}
	return g
}

// Dangling returns a warning for every reference to a rule id that does not
// exist.
func (g *Graph) Dangling() []*validation.DanglingReferenceWarning {
	out := make([]*validation.DanglingReferenceWarning, len(g.dangling))
	copy(out, g.dangling)
	return out
}

// ReferencedBy returns the paths of commands that reference ruleID, sorted.
func (g *Graph) ReferencedBy(ruleID string) []string {
	refs := append([]string(nil), g.referrers[ruleID]...)
	sort.Strings(refs)
	return refs
}

// Unreferenced returns the manual rules that no command references. Manual
// rules are only reachable through an explicit mention, so these are worth
// reporting in lint.
func (g *Graph) Unreferenced(rules []model.Rule) []string {
	var out []string
	for _, r := range rules {
		if r.Mode == model.ModeManual && len(g.referrers[r.ID]) == 0 {
			out = append(out, r.ID)
		}
	}
	return out
}

// Check is a shorthand returning the dangling references as diagnostics.
func Check(rules []model.Rule, commands []model.Command) []error {
	dangling := Build(rules, commands).Dangling()
	if len(dangling) == 0 {
		return nil
	}
	out := make([]error, 0, len(dangling))
	for _, d := range dangling {
		out = append(out, d)
	}
	return out
}
