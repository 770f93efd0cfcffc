package resolver

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewQuery(t *testing.T) {
	q := NewQuery(
		[]string{"svc/api/handler.py"},
		"Please apply @api-design and @core-standards.\nThen run /security/audit.\nmail me@example.com",
		"@manual-one", " extra ", "",
	)

	want := []string{"api-design", "core-standards", "extra", "manual-one"}
	if diff := cmp.Diff(want, q.MentionList()); diff != "" {
		t.Errorf("MentionList() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"security/audit"}, q.Invocations); diff != "" {
		t.Errorf("Invocations mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"svc/api/handler.py"}, q.ActiveFilePaths); diff != "" {
		t.Errorf("ActiveFilePaths mismatch (-want +got):\n%s", diff)
	}
}

func TestNewQuery_CopiesPaths(t *testing.T) {
	paths := []string{"a.go"}
	q := NewQuery(paths, "")
	paths[0] = "b.go"
	if q.ActiveFilePaths[0] != "a.go" {
		t.Error("NewQuery() should copy the path slice")
	}
}

func TestExtractInvocations(t *testing.T) {
	tests := map[string]struct {
		text string
		want []string
	}{
		"none":            {text: "just talk", want: nil},
		"start of line":   {text: "/deploy", want: []string{"deploy"}},
		"nested":          {text: "use /ops/release/cut now", want: []string{"ops/release/cut"}},
		"trailing period": {text: "run /deploy.", want: []string{"deploy"}},
		"repeated":        {text: "/a /b /a", want: []string{"a", "b"}},
		"path in word":    {text: "edit src/main.go", want: nil},
		"fenced":          {text: "```sh\n/usr/bin/env\n```", want: nil},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ExtractInvocations(tt.text)); diff != "" {
				t.Errorf("ExtractInvocations() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	tests := map[string]struct {
		pattern, path string
		want          bool
	}{
		"double star any depth": {"**/*.py", "a/b/c.py", true},
		"double star zero dirs": {"**/*.py", "c.py", true},
		"single star one level": {"*.py", "a/c.py", false},
		"single star root":      {"*.py", "c.py", true},
		"case sensitive":        {"**/*.PY", "a.py", false},
		"braces":                {"**/*.{ts,tsx}", "web/app.tsx", true},
		"nested double star":    {"**/tests/**/*.py", "project/tests/test_foo.py", true},
		"nested miss":           {"**/tests/**/*.py", "project/src/foo.py", false},
		"invalid pattern":       {"[", "[", false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := Match(tt.pattern, tt.path); got != tt.want {
				t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}
