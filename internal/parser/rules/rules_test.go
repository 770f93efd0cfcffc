package rules

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/klauern/rulebook/internal/model"
	"github.com/klauern/rulebook/internal/util"
	"github.com/klauern/rulebook/internal/validation"
)

func writeRule(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, DirName, rel)
	util.WriteFile(t, path, content)
	return path
}

func TestParser_Locate(t *testing.T) {
	root := t.TempDir()
	writeRule(t, root, "core/python/RULE.md", "x")
	writeRule(t, root, "core/python/examples_pool.py", "x")
	writeRule(t, root, "core/python/notes.md", "x")
	writeRule(t, root, "api/rest.mdc", "x")
	writeRule(t, root, "agents/planner/planner.mdc", "x")
	writeRule(t, root, "agents/planner/examples_plan.py", "x")
	writeRule(t, root, "lang/python/python.mdc", "x")
	writeRule(t, root, "lang/python/typing.mdc", "x")
	writeRule(t, root, "README.md", "x")
	writeRule(t, root, "RULE.md", "x")
	writeRule(t, root, "top.md", "x")

	p := New(root)
	rulesDir := p.Dir()

	tests := map[string]struct {
		rel    string
		want   Location
		wantOK bool
	}{
		"folder record": {
			rel:    "core/python/RULE.md",
			want:   Location{ID: "python", Category: "core", Folder: true, Dir: filepath.Join(rulesDir, "core/python")},
			wantOK: true,
		},
		"attachment markdown": {
			rel: "core/python/notes.md",
		},
		"flat file": {
			rel:    "api/rest.mdc",
			want:   Location{ID: "rest", Category: "api", Dir: filepath.Join(rulesDir, "api")},
			wantOK: true,
		},
		"file named after folder": {
			rel:    "agents/planner/planner.mdc",
			want:   Location{ID: "planner", Category: "agents", Folder: true, Dir: filepath.Join(rulesDir, "agents/planner")},
			wantOK: true,
		},
		"file named after folder with flat siblings": {
			rel:    "lang/python/python.mdc",
			want:   Location{ID: "python", Category: "lang/python", Dir: filepath.Join(rulesDir, "lang/python")},
			wantOK: true,
		},
		"flat sibling of file named after folder": {
			rel:    "lang/python/typing.mdc",
			want:   Location{ID: "typing", Category: "lang/python", Dir: filepath.Join(rulesDir, "lang/python")},
			wantOK: true,
		},
		"readme": {
			rel: "README.md",
		},
		"record file at top level": {
			rel: "RULE.md",
		},
		"uncategorized flat": {
			rel:    "top.md",
			want:   Location{ID: "top", Dir: rulesDir},
			wantOK: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, ok := p.Locate(filepath.Join(rulesDir, tt.rel))
			if ok != tt.wantOK {
				t.Fatalf("Locate() ok = %v, want %v", ok, tt.wantOK)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Locate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParser_ParseFile(t *testing.T) {
	tests := map[string]struct {
		rel           string
		content       string
		wantMode      model.ApplyMode
		wantDesc      string
		wantGlobs     []string
		wantBody      string
		wantDiags     int
		wantMalformed bool
	}{
		"always apply": {
			rel:      "core/standards/RULE.md",
			content:  "---\nalwaysApply: true\n---\n# Standards\n\nFunctions under 20 lines.",
			wantMode: model.ModeAlways,
			wantBody: "# Standards\n\nFunctions under 20 lines.",
		},
		"intelligent": {
			rel:      "agents/planner/RULE.md",
			content:  "---\ndescription: Planning nodes and goal setting\nglobs:\nalwaysApply: false\n---\nPlan first.",
			wantMode: model.ModeIntelligent,
			wantDesc: "Planning nodes and goal setting",
			wantBody: "Plan first.",
		},
		"file scoped cursor dialect": {
			rel:       "testing/pytest/RULE.md",
			content:   "---\ndescription:\nglobs: **/tests/**/*.py, **/conftest.py\nalwaysApply: false\n---\nUse fixtures.",
			wantMode:  model.ModeFileScoped,
			wantGlobs: []string{"**/tests/**/*.py", "**/conftest.py"},
			wantBody:  "Use fixtures.",
		},
		"manual": {
			rel:      "security/audit/RULE.md",
			content:  "---\nalwaysApply: false\n---\nAudit carefully.",
			wantMode: model.ModeManual,
			wantBody: "Audit carefully.",
		},
		"no frontmatter is manual": {
			rel:      "misc/notes.md",
			content:  "Plain instructions.",
			wantMode: model.ModeManual,
			wantBody: "Plain instructions.",
		},
		"toml frontmatter": {
			rel:       "api/rest.mdc",
			content:   "+++\nglobs = [\"**/api/**/*.py\"]\n+++\nREST rules.",
			wantMode:  model.ModeFileScoped,
			wantGlobs: []string{"**/api/**/*.py"},
			wantBody:  "REST rules.",
		},
		"one invalid glob is dropped": {
			rel:       "web/ts/RULE.md",
			content:   "---\nglobs: [\"src/[a-z\", \"**/*.ts\"]\n---\nTS.",
			wantMode:  model.ModeFileScoped,
			wantGlobs: []string{"**/*.ts"},
			wantBody:  "TS.",
			wantDiags: 1,
		},
		"all globs invalid": {
			rel:           "web/broken/RULE.md",
			content:       "---\nglobs: [\"src/[a-z\", \"*.{ts\"]\n---\nBroken.",
			wantDiags:     2,
			wantMalformed: true,
		},
		"always with description": {
			rel:           "core/both/RULE.md",
			content:       "---\nalwaysApply: true\ndescription: nope\n---\nx",
			wantMalformed: true,
		},
		"description and globs": {
			rel:           "core/conflict/RULE.md",
			content:       "---\ndescription: d\nglobs: [\"*.go\"]\n---\nx",
			wantMalformed: true,
		},
		"bad alwaysApply": {
			rel:           "core/odd/RULE.md",
			content:       "---\nalwaysApply: maybe\n---\nx",
			wantMalformed: true,
		},
		"invalid id": {
			rel:           "core/bad name/RULE.md",
			content:       "---\nalwaysApply: true\n---\nx",
			wantMalformed: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			root := t.TempDir()
			path := writeRule(t, root, tt.rel, tt.content)

			rule, diags, err := New(root).ParseFile(path)
			if len(diags) != tt.wantDiags {
				t.Errorf("ParseFile() diagnostics = %v, want %d", diags, tt.wantDiags)
			}
			if tt.wantMalformed {
				var malformed *validation.MalformedRecordError
				if !errors.As(err, &malformed) {
					t.Fatalf("ParseFile() error = %v, want MalformedRecordError", err)
				}
				if malformed.Path != path {
					t.Errorf("MalformedRecordError.Path = %q, want %q", malformed.Path, path)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFile() error = %v", err)
			}
			if rule.Mode != tt.wantMode {
				t.Errorf("Mode = %q, want %q", rule.Mode, tt.wantMode)
			}
			if rule.Description != tt.wantDesc {
				t.Errorf("Description = %q, want %q", rule.Description, tt.wantDesc)
			}
			if diff := cmp.Diff(tt.wantGlobs, rule.Globs); diff != "" {
				t.Errorf("Globs mismatch (-want +got):\n%s", diff)
			}
			if rule.Body != tt.wantBody {
				t.Errorf("Body = %q, want %q", rule.Body, tt.wantBody)
			}
			if rule.Path != path {
				t.Errorf("Path = %q, want %q", rule.Path, path)
			}
			if rule.ModifiedAt.IsZero() {
				t.Error("ModifiedAt should be set")
			}
		})
	}
}

func TestParser_ParseFile_Attachments(t *testing.T) {
	root := t.TempDir()
	path := writeRule(t, root, "agents/memory/RULE.md", "---\nalwaysApply: true\n---\nRemember.")
	writeRule(t, root, "agents/memory/examples_storage.py", "pass")
	writeRule(t, root, "agents/memory/examples_retrieval.py", "pass")

	rule, _, err := New(root).ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	want := []string{"examples_retrieval.py", "examples_storage.py"}
	if diff := cmp.Diff(want, rule.Attachments); diff != "" {
		t.Errorf("Attachments mismatch (-want +got):\n%s", diff)
	}
	if rule.ID != "memory" || rule.Category != "agents" {
		t.Errorf("got id=%q category=%q, want memory/agents", rule.ID, rule.Category)
	}
}

func TestParser_ParseFile_FlatRuleNamedAfterFolder(t *testing.T) {
	root := t.TempDir()
	python := writeRule(t, root, "python/python.mdc", "---\nalwaysApply: true\n---\nPython basics.")
	writeRule(t, root, "python/typing.mdc", "---\nalwaysApply: true\n---\nUse typing.")

	rule, _, err := New(root).ParseFile(python)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if rule.ID != "python" || rule.Category != "python" {
		t.Errorf("got id=%q category=%q, want python/python", rule.ID, rule.Category)
	}
	if len(rule.Attachments) != 0 {
		t.Errorf("flat rule should have no attachments, got %v", rule.Attachments)
	}
}

func TestParser_ParseFile_NotRecord(t *testing.T) {
	root := t.TempDir()
	writeRule(t, root, "core/python/RULE.md", "x")
	notes := writeRule(t, root, "core/python/notes.md", "x")

	if _, _, err := New(root).ParseFile(notes); !errors.Is(err, ErrNotRecord) {
		t.Errorf("ParseFile() error = %v, want ErrNotRecord", err)
	}
}

func TestParser_Discover(t *testing.T) {
	root := t.TempDir()
	writeRule(t, root, "b/two/RULE.md", "x")
	writeRule(t, root, "a/one.mdc", "x")
	writeRule(t, root, "b/two/examples.py", "x")

	files, err := New(root).Discover()
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Discover() = %v, want 2 markdown files", files)
	}
	if filepath.Base(files[0]) != "one.mdc" {
		t.Errorf("Discover() not sorted: %v", files)
	}
}

func TestParser_Refresh(t *testing.T) {
	root := t.TempDir()
	path := writeRule(t, root, "core/python/RULE.md", "---\nalwaysApply: true\n---\nbody")
	p := New(root)

	rule, _, err := p.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if len(rule.Attachments) != 0 {
		t.Fatalf("Attachments = %v, want none", rule.Attachments)
	}

	writeRule(t, root, "core/python/example.py", "print()")
	refreshed, ok := p.Refresh(rule)
	if !ok {
		t.Fatal("Refresh() should keep a rule whose location is unchanged")
	}
	if diff := cmp.Diff([]string{"example.py"}, refreshed.Attachments); diff != "" {
		t.Errorf("Attachments mismatch (-want +got):\n%s", diff)
	}

	moved := rule
	moved.Category = "other"
	if _, ok := p.Refresh(moved); ok {
		t.Error("Refresh() should reject a rule whose category changed")
	}
}
