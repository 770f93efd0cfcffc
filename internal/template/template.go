// Package template scaffolds new rule folders and command files.
package template

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/klauern/rulebook/internal/logging"
	"github.com/klauern/rulebook/internal/model"
	"github.com/klauern/rulebook/internal/parser"
	"github.com/klauern/rulebook/internal/parser/commands"
	"github.com/klauern/rulebook/internal/parser/rules"
)

// TemplateType represents the kind of record a template produces.
type TemplateType string

const (
	Rule    TemplateType = "rule"
	Command TemplateType = "command"
)

// RuleData holds the data passed to rule templates.
type RuleData struct {
	ID          string
	Category    string
	Mode        model.ApplyMode
	Description string
	Globs       []string
}

// CommandData holds the data passed to command templates.
type CommandData struct {
	// Path is category/name.
	Path        string
	Description string
	Rules       []string
}

// Name returns the last segment of the command path.
func (d CommandData) Name() string {
	return model.Command{Path: d.Path}.Name()
}

// ErrExists is returned when the target file is already present.
var ErrExists = errors.New("file already exists")

// Generator handles record template generation.
type Generator struct {
	templates map[TemplateType]*template.Template
	funcs     template.FuncMap
}

// New creates a new template generator with built-in templates.
func New() (*Generator, error) {
	title := cases.Title(language.English)
	g := &Generator{
		templates: make(map[TemplateType]*template.Template),
		funcs: template.FuncMap{
			"quote": strconv.Quote,
			"join":  strings.Join,
			"title": func(s string) string {
				return title.String(strings.NewReplacer("-", " ", "_", " ").Replace(s))
			},
		},
	}

	builtin := map[TemplateType]string{
		Rule:    ruleTemplate,
		Command: commandTemplate,
	}
	for typ, content := range builtin {
		if err := g.parse(typ, content); err != nil {
			return nil, fmt.Errorf("failed to load built-in templates: %w", err)
		}
	}

	return g, nil
}

func (g *Generator) parse(typ TemplateType, content string) error {
	tmpl, err := template.New(string(typ)).Funcs(g.funcs).Parse(content)
	if err != nil {
		return fmt.Errorf("failed to parse %s template: %w", typ, err)
	}
	g.templates[typ] = tmpl
	return nil
}

// LoadCustomTemplate replaces the template for typ with the contents of path.
func (g *Generator) LoadCustomTemplate(typ TemplateType, path string) error {
	if _, ok := g.templates[typ]; !ok {
		return fmt.Errorf("unknown template type %q", typ)
	}
	// #nosec G304 - path is provided by the user on the command line
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read template file: %w", err)
	}
	return g.parse(typ, string(content))
}

// ListTemplates returns the available template types, sorted.
func (g *Generator) ListTemplates() []string {
	names := make([]string, 0, len(g.templates))
	for typ := range g.templates {
		names = append(names, string(typ))
	}
	slices.Sort(names)
	return names
}

func (g *Generator) execute(typ TemplateType, data any) (string, error) {
	tmpl, ok := g.templates[typ]
	if !ok {
		return "", fmt.Errorf("template %s not found", typ)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// CheckRuleData verifies that data describes a valid rule of its mode.
func CheckRuleData(data RuleData) error {
	if err := parser.ValidateID(data.ID); err != nil {
		return fmt.Errorf("invalid rule id: %w", err)
	}
	if data.Category != "" {
		if err := parser.ValidateCommandPath(data.Category); err != nil {
			return fmt.Errorf("invalid category: %w", err)
		}
	}
	for _, g := range data.Globs {
		if !parser.ValidGlob(g) {
			return fmt.Errorf("invalid glob pattern %q", g)
		}
	}
	rule := model.Rule{ID: data.ID, Mode: data.Mode, Description: data.Description, Globs: data.Globs}
	return rule.Validate()
}

// GenerateRule renders a rule record.
func (g *Generator) GenerateRule(data RuleData) (string, error) {
	if err := CheckRuleData(data); err != nil {
		return "", err
	}
	content, err := g.execute(Rule, data)
	if err != nil {
		return "", err
	}
	if err := ValidateRule(content, data.Mode); err != nil {
		return "", err
	}
	return content, nil
}

// GenerateCommand renders a command record.
func (g *Generator) GenerateCommand(data CommandData) (string, error) {
	if err := parser.ValidateCommandPath(data.Path); err != nil {
		return "", fmt.Errorf("invalid command path: %w", err)
	}
	for _, id := range data.Rules {
		if err := parser.ValidateID(id); err != nil {
			return "", fmt.Errorf("invalid rule reference: %w", err)
		}
	}
	if data.Description == "" {
		data.Description = "Describe what /" + data.Name() + " does."
	}
	return g.execute(Command, data)
}

// ValidateRule checks that rendered content classifies as the wanted mode.
// Custom templates are held to the same check.
func ValidateRule(content string, want model.ApplyMode) error {
	values, err := parser.DecodeFrontmatter(parser.SplitFrontmatter([]byte(content)))
	if err != nil {
		return fmt.Errorf("generated metadata does not parse: %w", err)
	}
	md, _, err := parser.ReadMetadata(values)
	if err != nil {
		return fmt.Errorf("generated metadata is invalid: %w", err)
	}
	got, err := md.Classify()
	if err != nil {
		return fmt.Errorf("generated metadata is invalid: %w", err)
	}
	if got != want {
		return fmt.Errorf("generated rule has apply mode %s, want %s", got, want)
	}
	return nil
}

// RulePath returns where a folder rule lives under root.
func RulePath(root string, data RuleData) string {
	parts := []string{root, rules.DirName}
	if data.Category != "" {
		parts = append(parts, filepath.FromSlash(data.Category))
	}
	parts = append(parts, data.ID, "RULE.md")
	return filepath.Join(parts...)
}

// CommandFilePath returns where a command file lives under root.
func CommandFilePath(root, path string) string {
	return filepath.Join(root, commands.DirName, filepath.FromSlash(path)+".md")
}

// CreateRule renders a rule and writes it under root. It refuses to
// overwrite an existing file.
func (g *Generator) CreateRule(root string, data RuleData) (string, error) {
	content, err := g.GenerateRule(data)
	if err != nil {
		return "", err
	}
	path := RulePath(root, data)
	if err := writeNew(path, content); err != nil {
		return "", err
	}
	logging.Debug("rule scaffolded", logging.Rule(data.ID), logging.Mode(data.Mode.String()), logging.Path(path))
	return path, nil
}

// CreateCommand renders a command and writes it under root. It refuses to
// overwrite an existing file.
func (g *Generator) CreateCommand(root string, data CommandData) (string, error) {
	content, err := g.GenerateCommand(data)
	if err != nil {
		return "", err
	}
	path := CommandFilePath(root, data.Path)
	if err := writeNew(path, content); err != nil {
		return "", err
	}
	logging.Debug("command scaffolded", logging.Command(data.Path), slog.Int("rules", len(data.Rules)), logging.Path(path))
	return path, nil
}

func writeNew(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s: %w", path, ErrExists)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// ParseTemplateType parses a template type string.
func ParseTemplateType(s string) (TemplateType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rule":
		return Rule, nil
	case "command", "cmd":
		return Command, nil
	default:
		return "", fmt.Errorf("unknown template type %q (valid: rule, command)", s)
	}
}
