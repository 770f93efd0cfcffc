package export

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/klauern/rulebook/internal/model"
)

func TestParseFormat(t *testing.T) {
	tests := map[string]struct {
		input   string
		want    Format
		wantErr bool
	}{
		"json":            {input: "json", want: FormatJSON},
		"json uppercase":  {input: "JSON", want: FormatJSON},
		"yaml":            {input: "yaml", want: FormatYAML},
		"markdown":        {input: "markdown", want: FormatMarkdown},
		"markdown short":  {input: "md", want: FormatMarkdown},
		"surrounding ws":  {input: "  json  ", want: FormatJSON},
		"unsupported xml": {input: "xml", wantErr: true},
		"empty":           {input: "", wantErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestAllFormats(t *testing.T) {
	for _, f := range AllFormats() {
		if !f.IsValid() {
			t.Errorf("AllFormats() contains invalid format %q", f)
		}
	}
	if Format("xml").IsValid() {
		t.Error("Format(xml).IsValid() = true")
	}
}

func sampleRules() []model.Rule {
	mod := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []model.Rule{
		{
			ID:         "standards",
			Mode:       model.ModeAlways,
			Body:       "Write small functions.",
			Path:       "/repo/.cursor/rules/standards.mdc",
			ModifiedAt: mod,
		},
		{
			ID:          "python",
			Category:    "lang/python-tools",
			Mode:        model.ModeFileScoped,
			Globs:       []string{"**/*.py"},
			Body:        "Use type hints.",
			Path:        "/repo/.cursor/rules/lang/python-tools/python/RULE.md",
			Attachments: []string{"example.py"},
			ModifiedAt:  mod,
		},
		{
			ID:          "api-design",
			Mode:        model.ModeIntelligent,
			Description: "REST API conventions",
			Body:        "Prefer nouns.",
			Path:        "/repo/.cursor/rules/api-design.mdc",
		},
		{
			ID:       "audit-protocol",
			Category: "security",
			Mode:     model.ModeManual,
			Body:     "",
			Path:     "/repo/.cursor/rules/security/audit-protocol.mdc",
		},
	}
}

func sampleCommands() []model.Command {
	return []model.Command{
		{
			Path:            "security/audit",
			Description:     "Run a security audit",
			RulesReferenced: []string{"audit-protocol"},
			Steps:           []string{"Scan dependencies", "Review secrets\nin config"},
			Body:            "## Steps\n1. Scan dependencies",
			File:            "/repo/.cursor/commands/security/audit.md",
		},
		{
			Path: "release",
			Body: "Cut a release.",
			File: "/repo/.cursor/commands/release.md",
		},
	}
}

func TestExporter_JSON(t *testing.T) {
	tests := map[string]struct {
		pretty bool
	}{
		"pretty":  {pretty: true},
		"compact": {pretty: false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			e := New(Options{Format: FormatJSON, Pretty: tt.pretty, IncludeMetadata: true})
			if err := e.Export(sampleRules(), sampleCommands(), &buf); err != nil {
				t.Fatalf("Export() error = %v", err)
			}

			var doc document
			if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
				t.Fatalf("output is not valid JSON: %v", err)
			}
			if len(doc.Rules) != 4 || len(doc.Commands) != 2 {
				t.Fatalf("got %d rules, %d commands; want 4, 2", len(doc.Rules), len(doc.Commands))
			}
			if doc.Rules[1].Mode != "file" || doc.Rules[1].Path == "" {
				t.Errorf("rule[1] = %+v, want file mode with path", doc.Rules[1])
			}
			if doc.Rules[0].ModifiedAt != "2026-03-01T12:00:00Z" {
				t.Errorf("ModifiedAt = %q", doc.Rules[0].ModifiedAt)
			}
			if doc.Rules[2].ModifiedAt != "" {
				t.Errorf("zero ModifiedAt should be omitted, got %q", doc.Rules[2].ModifiedAt)
			}

			indented := strings.Contains(buf.String(), "\n  ")
			if indented != tt.pretty {
				t.Errorf("indented = %v, want %v", indented, tt.pretty)
			}
		})
	}
}

func TestExporter_YAML(t *testing.T) {
	var buf bytes.Buffer
	e := New(Options{Format: FormatYAML, Pretty: true})
	if err := e.Export(sampleRules(), sampleCommands(), &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var doc document
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}

	var ids []string
	for _, r := range doc.Rules {
		ids = append(ids, r.ID)
	}
	want := []string{"standards", "python", "api-design", "audit-protocol"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("rule ids mismatch (-want +got):\n%s", diff)
	}
	if doc.Commands[0].Steps[1] != "Review secrets\nin config" {
		t.Errorf("multi-line step lost: %q", doc.Commands[0].Steps[1])
	}
}

func TestExporter_Markdown(t *testing.T) {
	var buf bytes.Buffer
	e := New(Options{Format: FormatMarkdown, IncludeMetadata: true})
	if err := e.Export(sampleRules(), sampleCommands(), &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"# Rulebook",
		"Total: 4 rule(s), 2 command(s)",
		"## Uncategorized",
		"## Lang / Python Tools",
		"## Security",
		"### python",
		"| Mode | file |",
		"| Globs | `**/*.py` |",
		"| Attachments | example.py |",
		"*REST API conventions*",
		"*No content*",
		"## Commands",
		"### /security/audit",
		"Rules: @audit-protocol",
		"2. Review secrets in config",
		"```markdown\nCut a release.\n```",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q\n%s", want, out)
		}
	}

	// standards and api-design share the uncategorized group.
	if strings.Count(out, "## Uncategorized") != 1 {
		t.Errorf("uncategorized heading repeated:\n%s", out)
	}
	if strings.Index(out, "### api-design") > strings.Index(out, "## Lang / Python Tools") {
		t.Error("api-design should be grouped with standards before the python category")
	}
}

func TestExporter_MarkdownFencesBodyWithBackticks(t *testing.T) {
	rules := []model.Rule{{
		ID:   "code",
		Mode: model.ModeManual,
		Body: "Example:\n```go\nfmt.Println()\n```",
	}}

	var buf bytes.Buffer
	if err := New(Options{Format: FormatMarkdown}).Export(rules, nil, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.Contains(buf.String(), "````markdown\n") {
		t.Errorf("body with a fence should use a longer fence:\n%s", buf.String())
	}
}

func TestExporter_Filters(t *testing.T) {
	tests := map[string]struct {
		opts         Options
		wantRules    []string
		wantCommands []string
	}{
		"no filter": {
			wantRules:    []string{"standards", "python", "api-design", "audit-protocol"},
			wantCommands: []string{"security/audit", "release"},
		},
		"mode drops commands": {
			opts:      Options{Mode: model.ModeManual},
			wantRules: []string{"audit-protocol"},
		},
		"category": {
			opts:         Options{Category: "security"},
			wantRules:    []string{"audit-protocol"},
			wantCommands: []string{"security/audit"},
		},
		"mode and category": {
			opts:      Options{Mode: model.ModeAlways, Category: "security"},
			wantRules: nil,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			e := New(tt.opts)
			rules, commands := e.filter(sampleRules(), sampleCommands())

			var gotRules, gotCommands []string
			for _, r := range rules {
				gotRules = append(gotRules, r.ID)
			}
			for _, c := range commands {
				gotCommands = append(gotCommands, c.Path)
			}
			if diff := cmp.Diff(tt.wantRules, gotRules); diff != "" {
				t.Errorf("rules mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantCommands, gotCommands); diff != "" {
				t.Errorf("commands mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExporter_ExcludeMetadata(t *testing.T) {
	var buf bytes.Buffer
	e := New(Options{Format: FormatJSON})
	if err := e.Export(sampleRules(), sampleCommands(), &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if strings.Contains(buf.String(), "/repo/") {
		t.Error("output contains source paths without IncludeMetadata")
	}

	var doc map[string][]map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	for section, records := range doc {
		for _, rec := range records {
			for _, key := range []string{"file", "path", "attachments", "modified_at"} {
				if section == "commands" && key == "path" {
					continue
				}
				if _, ok := rec[key]; ok {
					t.Errorf("%s record %v has key %q without IncludeMetadata", section, rec, key)
				}
			}
		}
	}
	var modes []any
	for _, rec := range doc["rules"] {
		modes = append(modes, rec["mode"])
	}
	if !slices.Contains(modes, any("file")) {
		t.Errorf("rule modes = %v, want the file-scoped rule kept", modes)
	}
}

func TestExporter_ExportRule(t *testing.T) {
	var buf bytes.Buffer
	e := New(DefaultOptions())
	if err := e.ExportRule(sampleRules()[0], &buf); err != nil {
		t.Fatalf("ExportRule() error = %v", err)
	}

	var doc document
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(doc.Rules) != 1 || doc.Rules[0].ID != "standards" {
		t.Errorf("ExportRule() rules = %+v", doc.Rules)
	}
	if len(doc.Commands) != 0 {
		t.Errorf("ExportRule() commands = %+v", doc.Commands)
	}
}

func TestExporter_Empty(t *testing.T) {
	for _, f := range AllFormats() {
		t.Run(f.String(), func(t *testing.T) {
			var buf bytes.Buffer
			if err := New(Options{Format: f}).Export(nil, nil, &buf); err != nil {
				t.Fatalf("Export() error = %v", err)
			}
			if buf.Len() == 0 {
				t.Error("Export() wrote nothing")
			}
		})
	}
}

func TestExporter_UnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := New(Options{Format: "xml"}).Export(sampleRules(), nil, &buf); err == nil {
		t.Error("Export() with unsupported format should fail")
	}
}

func TestCategoryTitle(t *testing.T) {
	e := New(DefaultOptions())
	tests := map[string]string{
		"":                  "Uncategorized",
		"security":          "Security",
		"lang/python-tools": "Lang / Python Tools",
		"web_api":           "Web Api",
	}
	for in, want := range tests {
		if got := e.categoryTitle(in); got != want {
			t.Errorf("categoryTitle(%q) = %q, want %q", in, got, want)
		}
	}
}
