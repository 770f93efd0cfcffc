package resolver

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/klauern/rulebook/internal/model"
	"github.com/klauern/rulebook/internal/registry"
	"github.com/klauern/rulebook/internal/util"
)

type fakeSource struct {
	rules    []model.Rule
	commands []model.Command
}

func (f fakeSource) Rules() []model.Rule       { return f.rules }
func (f fakeSource) Commands() []model.Command { return f.commands }

func always(id, body string) model.Rule {
	return model.Rule{ID: id, Mode: model.ModeAlways, Body: body}
}

func fileScoped(id string, globs ...string) model.Rule {
	return model.Rule{ID: id, Mode: model.ModeFileScoped, Globs: globs, Body: id + " body"}
}

func manual(id string) model.Rule {
	return model.Rule{ID: id, Mode: model.ModeManual, Body: id + " body"}
}

func intelligent(id, desc string) model.Rule {
	return model.Rule{ID: id, Mode: model.ModeIntelligent, Description: desc, Body: id + " body"}
}

func query(paths []string, mentions ...string) model.QueryContext {
	return NewQuery(paths, "", mentions...)
}

func TestResolve_ExampleScenario(t *testing.T) {
	src := fakeSource{rules: []model.Rule{
		always("A", "always on"),
		fileScoped("B", "**/api/**/*.py"),
		manual("C"),
	}}

	set := Resolve(query([]string{"svc/api/handler.py"}), src)

	if diff := cmp.Diff([]string{"A", "B"}, set.IncludedIDs()); diff != "" {
		t.Errorf("Included mismatch (-want +got):\n%s", diff)
	}
	if len(set.Candidates) != 0 {
		t.Errorf("Candidates = %v, want none", set.CandidateIDs())
	}
	want := map[string]string{"A": model.ReasonAlways, "B": "file:**/api/**/*.py"}
	if diff := cmp.Diff(want, set.Reasons); diff != "" {
		t.Errorf("Reasons mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_FileScopedGlob(t *testing.T) {
	src := fakeSource{rules: []model.Rule{fileScoped("tests", "**/tests/**/*.py")}}

	tests := map[string]struct {
		paths []string
		want  []string
	}{
		"test file":          {paths: []string{"project/tests/test_foo.py"}, want: []string{"tests"}},
		"source only":        {paths: []string{"project/src/foo.py"}, want: []string{}},
		"any path matches":   {paths: []string{"project/src/foo.py", "project/tests/unit/test_bar.py"}, want: []string{"tests"}},
		"no active paths":    {paths: nil, want: []string{}},
		"leading dot slash":  {paths: []string{"./tests/test_x.py"}, want: []string{"tests"}},
		"windows separators": {paths: []string{`project\tests\test_foo.py`}, want: []string{"tests"}},
		"case sensitive":     {paths: []string{"project/Tests/test_foo.py"}, want: []string{}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			set := Resolve(query(tt.paths), src)
			if diff := cmp.Diff(tt.want, set.IncludedIDs()); diff != "" {
				t.Errorf("Included mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolve_AlwaysRegardlessOfContext(t *testing.T) {
	src := fakeSource{rules: []model.Rule{
		always("core", "x"),
		manual("m"),
		intelligent("i", "desc"),
	}}

	contexts := map[string]model.QueryContext{
		"empty":        {},
		"paths":        query([]string{"a/b.go"}),
		"mentions":     query(nil, "m", "other"),
		"conversation": NewQuery(nil, "please refactor @m and /deploy"),
	}
	for name, q := range contexts {
		t.Run(name, func(t *testing.T) {
			set := Resolve(q, src)
			if len(set.Included) == 0 || set.Included[0].ID != "core" {
				t.Errorf("Included = %v, want core first", set.IncludedIDs())
			}
		})
	}
}

func TestResolve_ManualOnlyWhenMentioned(t *testing.T) {
	src := fakeSource{rules: []model.Rule{manual("audit-protocol"), manual("other")}}

	tests := map[string]struct {
		q    model.QueryContext
		want []string
	}{
		"not mentioned":     {q: query(nil), want: []string{}},
		"unrelated mention": {q: query(nil, "something-else"), want: []string{}},
		"mentioned":         {q: query(nil, "audit-protocol"), want: []string{"audit-protocol"}},
		"at prefix":         {q: query(nil, "@audit-protocol"), want: []string{"audit-protocol"}},
		"in conversation":   {q: NewQuery(nil, "run @audit-protocol now"), want: []string{"audit-protocol"}},
		"both mentioned":    {q: query(nil, "other", "audit-protocol"), want: []string{"audit-protocol", "other"}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Resolve(tt.q, src).IncludedIDs()); diff != "" {
				t.Errorf("Included mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolve_IntelligentNeverIncluded(t *testing.T) {
	src := fakeSource{rules: []model.Rule{
		intelligent("api-design", "REST API design for python handlers"),
		intelligent("docs", "Documentation style"),
	}}

	q := NewQuery([]string{"svc/api/handler.py"}, "I am designing a REST API for python handlers", "api-design")
	set := Resolve(q, src)

	if len(set.Included) != 0 {
		t.Errorf("Included = %v, want none", set.IncludedIDs())
	}
	if diff := cmp.Diff([]string{"api-design", "docs"}, set.CandidateIDs()); diff != "" {
		t.Errorf("Candidates mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_PriorityAndDedup(t *testing.T) {
	src := fakeSource{rules: []model.Rule{
		manual("m"),
		fileScoped("f", "*.go"),
		always("a", "x"),
		// A second record with an id already included must not repeat.
		{ID: "a", Mode: model.ModeManual, Body: "dup"},
		fileScoped("f", "*.go"),
	}}

	set := Resolve(query([]string{"main.go"}, "m", "a"), src)

	if diff := cmp.Diff([]string{"a", "f", "m"}, set.IncludedIDs()); diff != "" {
		t.Errorf("Included mismatch (-want +got):\n%s", diff)
	}
	if set.Included[0].Body != "x" {
		t.Errorf("kept body %q, want the always record", set.Included[0].Body)
	}
	if set.Reasons["a"] != model.ReasonAlways {
		t.Errorf("Reasons[a] = %q, want always", set.Reasons["a"])
	}
}

func TestResolve_Idempotent(t *testing.T) {
	src := fakeSource{
		rules: []model.Rule{
			always("a", "x"),
			fileScoped("f", "**/*.go", "**/*.mod"),
			manual("m"),
			intelligent("i", "desc"),
		},
		commands: []model.Command{{Path: "ops/deploy", Body: "deploy"}},
	}
	q := NewQuery([]string{"go.mod", "cmd/main.go"}, "/deploy with @m")

	first := Resolve(q, src)
	second := Resolve(q, src)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Resolve() not idempotent (-first +second):\n%s", diff)
	}
	if first.Reasons["f"] != "file:**/*.go" {
		t.Errorf("Reasons[f] = %q, want the first matching glob", first.Reasons["f"])
	}
}

func TestResolve_Commands(t *testing.T) {
	src := fakeSource{commands: []model.Command{
		{Path: "security/audit", Body: "audit"},
		{Path: "ops/deploy", Body: "deploy"},
		{Path: "other/deploy", Body: "other deploy"},
	}}

	tests := map[string]struct {
		text string
		want []string
	}{
		"by path":       {text: "/security/audit please", want: []string{"security/audit"}},
		"by name":       {text: "run /deploy", want: []string{"ops/deploy"}},
		"both forms":    {text: "/deploy then /ops/deploy", want: []string{"ops/deploy"}},
		"unknown":       {text: "/nothing", want: nil},
		"url ignored":   {text: "see https://x.io/security/audit", want: nil},
		"in code fence": {text: "```\n/deploy\n```", want: nil},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			set := Resolve(NewQuery(nil, tt.text), src)
			var got []string
			for _, c := range set.Commands {
				got = append(got, c.Path)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Commands mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolve_EmptySource(t *testing.T) {
	set := Resolve(NewQuery([]string{"a.go"}, "hello"), fakeSource{})
	if len(set.Included) != 0 || len(set.Candidates) != 0 || set.ComposedText != "" {
		t.Errorf("Resolve() on empty source = %+v", set)
	}
}

func TestResolve_WithRegistry(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"rules/core/a/RULE.md":    "---\nalwaysApply: true\n---\nRule A.",
		"rules/api/b/RULE.md":     "---\nglobs: **/api/**/*.py\n---\nRule B.",
		"rules/manual/c/RULE.md":  "---\nalwaysApply: false\n---\nRule C.",
		"rules/smart/d/RULE.mdc":  "---\ndescription: Helps with data pipelines\n---\nRule D.",
		"commands/ops/deploy.md":  "## Steps\n1. Ship it",
		"rules/api/b/example.txt": "attachment",
	}
	for rel, content := range files {
		util.WriteFile(t, filepath.Join(root, filepath.FromSlash(rel)), content)
	}

	reg, err := registry.Load(context.Background(), root)
	if err != nil {
		t.Fatalf("registry.Load() error = %v", err)
	}

	set := Resolve(NewQuery([]string{"svc/api/handler.py"}, "/deploy"), reg)
	if diff := cmp.Diff([]string{"a", "b"}, set.IncludedIDs()); diff != "" {
		t.Errorf("Included mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"d"}, set.CandidateIDs()); diff != "" {
		t.Errorf("Candidates mismatch (-want +got):\n%s", diff)
	}
	want := "=== rule: a ===\nRule A.\n\n=== rule: b ===\nRule B.\n\n" +
		"=== candidates for agent judgment ===\n- d: Helps with data pipelines\n\n" +
		"=== command: ops/deploy ===\n## Steps\n1. Ship it"
	if diff := cmp.Diff(want, set.ComposedText); diff != "" {
		t.Errorf("ComposedText mismatch (-want +got):\n%s", diff)
	}
}
