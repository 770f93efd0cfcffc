// Package resolver selects the rules and commands that apply to a query and
// composes them into one instruction text.
//
// Resolution is a pure function of the query and the registry. Always,
// file-scoped and manual rules are selected deterministically; intelligent
// rules are only exposed as candidates, and choosing among them is left to a
// RelevanceJudge.
package resolver

import (
	"github.com/klauern/rulebook/internal/model"
)

// Source is the read-only view of a registry the resolver needs.
type Source interface {
	Rules() []model.Rule
	Commands() []model.Command
}

// Resolve selects the rules for q from src:
//
//  1. always rules, in registry order
//  2. file-scoped rules with a glob matching any active path
//  3. manual rules whose id is mentioned
//  4. intelligent rules, exposed as candidates only
//
// A rule is kept at its first step. Invoked commands are attached for
// reference. The result is identical for identical inputs.
func Resolve(q model.QueryContext, src Source) model.ResolvedSet {
	rules := src.Rules()
	paths := q.NormalizedPaths()

	set := model.ResolvedSet{
		Included:   []model.Rule{},
		Candidates: []model.Rule{},
		Reasons:    make(map[string]string),
	}
	seen := make(map[string]bool, len(rules))
	include := func(r model.Rule, reason string) {
		if seen[r.ID] {
			return
		}
		seen[r.ID] = true
		set.Included = append(set.Included, r)
		set.Reasons[r.ID] = reason
	}

	for _, r := range rules {
		if r.Mode == model.ModeAlways {
			include(r, model.ReasonAlways)
		}
	}
	for _, r := range rules {
		if r.Mode != model.ModeFileScoped {
			continue
		}
		if glob, ok := MatchAny(r.Globs, paths); ok {
			include(r, model.ReasonFilePrefix+glob)
		}
	}
	for _, r := range rules {
		if r.Mode == model.ModeManual && q.Mentions(r.ID) {
			include(r, model.ReasonMention)
		}
	}
	for _, r := range rules {
		if !r.Mode.IsDeterministic() && !seen[r.ID] {
			seen[r.ID] = true
			set.Candidates = append(set.Candidates, r)
		}
	}

	set.Commands = invokedCommands(q.Invocations, src.Commands())
	set.ComposedText = Compose(set.Included, set.Candidates, set.Commands)
	return set
}

// invokedCommands resolves invocation tokens against commands. A token
// matches a command path exactly, or else the first command whose name
// equals it.
func invokedCommands(invocations []string, commands []model.Command) []model.Command {
	if len(invocations) == 0 {
		return nil
	}
	byPath := make(map[string]int, len(commands))
	byName := make(map[string]int, len(commands))
	for i, c := range commands {
		byPath[c.Path] = i
		if _, ok := byName[c.Name()]; !ok {
			byName[c.Name()] = i
		}
	}

	var out []model.Command
	seen := make(map[string]bool)
	for _, inv := range invocations {
		i, ok := byPath[inv]
		if !ok {
			i, ok = byName[inv]
		}
		if !ok || seen[commands[i].Path] {
			continue
		}
		seen[commands[i].Path] = true
		out = append(out, commands[i])
	}
	return out
}
