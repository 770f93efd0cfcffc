// Package export writes the contents of a registry as JSON, YAML or Markdown.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/klauern/rulebook/internal/logging"
	"github.com/klauern/rulebook/internal/model"
)

// Format represents the output format for exported records.
type Format string

const (
	// FormatJSON exports records as JSON.
	FormatJSON Format = "json"
	// FormatYAML exports records as YAML.
	FormatYAML Format = "yaml"
	// FormatMarkdown exports records as Markdown.
	FormatMarkdown Format = "markdown"
)

// IsValid returns true if the format is recognized.
func (f Format) IsValid() bool {
	switch f {
	case FormatJSON, FormatYAML, FormatMarkdown:
		return true
	default:
		return false
	}
}

// String returns the string representation of the format.
func (f Format) String() string {
	return string(f)
}

// AllFormats returns all supported export formats.
func AllFormats() []Format {
	return []Format{FormatJSON, FormatYAML, FormatMarkdown}
}

// ParseFormat parses a string into a Format. "md" is accepted for Markdown.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "md" {
		s = string(FormatMarkdown)
	}
	format := Format(s)
	if !format.IsValid() {
		return "", fmt.Errorf("unsupported format %q (valid: json, yaml, markdown)", s)
	}
	return format, nil
}

// Options configures export behavior.
type Options struct {
	// Format specifies the output format.
	Format Format
	// Pretty enables pretty-printing for JSON/YAML.
	Pretty bool
	// IncludeMetadata includes file paths, attachments and timestamps.
	IncludeMetadata bool
	// Mode keeps only rules with this apply mode (empty means all).
	Mode model.ApplyMode
	// Category keeps only rules and commands in this category (empty means all).
	Category string
}

// DefaultOptions returns the default export options.
func DefaultOptions() Options {
	return Options{
		Format:          FormatJSON,
		Pretty:          true,
		IncludeMetadata: true,
	}
}

// Exporter handles exporting records to different formats.
type Exporter struct {
	opts  Options
	title cases.Caser
}

// New creates a new Exporter with the given options.
func New(opts Options) *Exporter {
	return &Exporter{opts: opts, title: cases.Title(language.English)}
}

// Export writes rules and commands to w in the configured format.
func (e *Exporter) Export(rules []model.Rule, commands []model.Command, w io.Writer) error {
	defer logging.Timer("export")()

	logging.Debug("starting export",
		slog.String("format", string(e.opts.Format)),
		slog.Int("rules", len(rules)),
		slog.Int("commands", len(commands)),
		logging.Operation("export"),
	)

	rules, commands = e.filter(rules, commands)

	doc := document{
		Rules:    make([]exportRule, len(rules)),
		Commands: make([]exportCommand, len(commands)),
	}
	for i, r := range rules {
		doc.Rules[i] = e.toExportRule(r)
	}
	for i, c := range commands {
		doc.Commands[i] = e.toExportCommand(c)
	}

	var err error
	switch e.opts.Format {
	case FormatJSON:
		err = e.exportJSON(doc, w)
	case FormatYAML:
		err = e.exportYAML(doc, w)
	case FormatMarkdown:
		err = e.exportMarkdown(rules, commands, w)
	default:
		err = fmt.Errorf("unsupported format: %s", e.opts.Format)
	}

	if err != nil {
		logging.Error("export failed",
			slog.String("format", string(e.opts.Format)),
			logging.Err(err),
		)
		return err
	}

	logging.Debug("export completed",
		slog.String("format", string(e.opts.Format)),
		logging.Count(len(rules)+len(commands)),
	)
	return nil
}

// ExportRule exports a single rule.
func (e *Exporter) ExportRule(rule model.Rule, w io.Writer) error {
	return e.Export([]model.Rule{rule}, nil, w)
}

func (e *Exporter) filter(rules []model.Rule, commands []model.Command) ([]model.Rule, []model.Command) {
	if e.opts.Mode == "" && e.opts.Category == "" {
		return rules, commands
	}

	var fr []model.Rule
	for _, r := range rules {
		if e.opts.Mode != "" && r.Mode != e.opts.Mode {
			continue
		}
		if e.opts.Category != "" && r.Category != e.opts.Category {
			continue
		}
		fr = append(fr, r)
	}

	// A mode filter applies to rules only, so commands drop out with it.
	var fc []model.Command
	if e.opts.Mode == "" {
		for _, c := range commands {
			if c.Category() == e.opts.Category {
				fc = append(fc, c)
			}
		}
	}

	logging.Debug("records filtered",
		slog.Int("rules", len(fr)),
		slog.Int("commands", len(fc)),
	)
	return fr, fc
}

type document struct {
	Rules    []exportRule    `json:"rules" yaml:"rules"`
	Commands []exportCommand `json:"commands" yaml:"commands"`
}

type exportRule struct {
	ID          string   `json:"id" yaml:"id"`
	Category    string   `json:"category,omitempty" yaml:"category,omitempty"`
	Mode        string   `json:"mode" yaml:"mode"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Globs       []string `json:"globs,omitempty" yaml:"globs,omitempty"`
	Path        string   `json:"path,omitempty" yaml:"path,omitempty"`
	Attachments []string `json:"attachments,omitempty" yaml:"attachments,omitempty"`
	Body        string   `json:"body" yaml:"body"`
	ModifiedAt  string   `json:"modified_at,omitempty" yaml:"modified_at,omitempty"`
}

type exportCommand struct {
	Path            string   `json:"path" yaml:"path"`
	Description     string   `json:"description,omitempty" yaml:"description,omitempty"`
	RulesReferenced []string `json:"rules_referenced,omitempty" yaml:"rules_referenced,omitempty"`
	Steps           []string `json:"steps,omitempty" yaml:"steps,omitempty"`
	File            string   `json:"file,omitempty" yaml:"file,omitempty"`
	Body            string   `json:"body" yaml:"body"`
	ModifiedAt      string   `json:"modified_at,omitempty" yaml:"modified_at,omitempty"`
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func (e *Exporter) toExportRule(r model.Rule) exportRule {
	er := exportRule{
		ID:          r.ID,
		Category:    r.Category,
		Mode:        string(r.Mode),
		Description: r.Description,
		Globs:       r.Globs,
		Body:        r.Body,
	}
	if e.opts.IncludeMetadata {
		er.Path = r.Path
		er.Attachments = r.Attachments
		if !r.ModifiedAt.IsZero() {
			er.ModifiedAt = r.ModifiedAt.Format(timeLayout)
		}
	}
	return er
}

func (e *Exporter) toExportCommand(c model.Command) exportCommand {
	ec := exportCommand{
		Path:            c.Path,
		Description:     c.Description,
		RulesReferenced: c.RulesReferenced,
		Steps:           c.Steps,
		Body:            c.Body,
	}
	if e.opts.IncludeMetadata {
		ec.File = c.File
		if !c.ModifiedAt.IsZero() {
			ec.ModifiedAt = c.ModifiedAt.Format(timeLayout)
		}
	}
	return ec
}

func (e *Exporter) exportJSON(doc document, w io.Writer) error {
	encoder := json.NewEncoder(w)
	if e.opts.Pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(doc)
}

func (e *Exporter) exportYAML(doc document, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	if e.opts.Pretty {
		encoder.SetIndent(2)
	}
	if err := encoder.Encode(doc); err != nil {
		_ = encoder.Close()
		return err
	}
	return encoder.Close()
}

// exportMarkdown groups rules under category headings, then lists commands.
func (e *Exporter) exportMarkdown(rules []model.Rule, commands []model.Command, w io.Writer) error {
	var sb strings.Builder

	sb.WriteString("# Rulebook\n\n")
	fmt.Fprintf(&sb, "Total: %d rule(s), %d command(s)\n\n", len(rules), len(commands))

	var order []string
	groups := make(map[string][]model.Rule)
	for _, r := range rules {
		if _, ok := groups[r.Category]; !ok {
			order = append(order, r.Category)
		}
		groups[r.Category] = append(groups[r.Category], r)
	}
	for _, category := range order {
		fmt.Fprintf(&sb, "## %s\n\n", e.categoryTitle(category))
		for _, r := range groups[category] {
			sb.WriteString(e.formatMarkdownRule(r))
		}
	}

	if len(commands) > 0 {
		sb.WriteString("## Commands\n\n")
		for _, c := range commands {
			sb.WriteString(e.formatMarkdownCommand(c))
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// categoryTitle turns "lang/python-tools" into "Lang / Python Tools".
func (e *Exporter) categoryTitle(category string) string {
	if category == "" {
		return "Uncategorized"
	}
	parts := strings.Split(category, "/")
	for i, p := range parts {
		p = strings.NewReplacer("-", " ", "_", " ").Replace(p)
		parts[i] = e.title.String(p)
	}
	return strings.Join(parts, " / ")
}

func (e *Exporter) formatMarkdownRule(r model.Rule) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "### %s\n\n", r.ID)
	if r.Description != "" {
		fmt.Fprintf(&sb, "*%s*\n\n", r.Description)
	}

	sb.WriteString("| Property | Value |\n")
	sb.WriteString("|----------|-------|\n")
	fmt.Fprintf(&sb, "| Mode | %s |\n", r.Mode)
	if len(r.Globs) > 0 {
		quoted := make([]string, len(r.Globs))
		for i, g := range r.Globs {
			quoted[i] = "`" + g + "`"
		}
		fmt.Fprintf(&sb, "| Globs | %s |\n", strings.Join(quoted, ", "))
	}
	if e.opts.IncludeMetadata {
		if r.Path != "" {
			fmt.Fprintf(&sb, "| Path | `%s` |\n", r.Path)
		}
		if len(r.Attachments) > 0 {
			fmt.Fprintf(&sb, "| Attachments | %s |\n", strings.Join(r.Attachments, ", "))
		}
		if !r.ModifiedAt.IsZero() {
			fmt.Fprintf(&sb, "| Modified | %s |\n", r.ModifiedAt.Format("2006-01-02 15:04:05"))
		}
	}
	sb.WriteString("\n")

	writeFenced(&sb, r.Body)
	return sb.String()
}

func (e *Exporter) formatMarkdownCommand(c model.Command) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "### /%s\n\n", c.Path)
	if c.Description != "" {
		fmt.Fprintf(&sb, "*%s*\n\n", c.Description)
	}
	if len(c.RulesReferenced) > 0 {
		refs := make([]string, len(c.RulesReferenced))
		for i, r := range c.RulesReferenced {
			refs[i] = "@" + r
		}
		fmt.Fprintf(&sb, "Rules: %s\n\n", strings.Join(refs, ", "))
	}
	for i, step := range c.Steps {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, strings.ReplaceAll(step, "\n", " "))
	}
	if len(c.Steps) > 0 {
		sb.WriteString("\n")
	}
	if len(c.Steps) == 0 {
		writeFenced(&sb, c.Body)
	}
	return sb.String()
}

func writeFenced(sb *strings.Builder, body string) {
	if strings.TrimSpace(body) == "" {
		sb.WriteString("*No content*\n\n")
		return
	}
	fence := "```"
	for strings.Contains(body, fence) {
		fence += "`"
	}
	sb.WriteString(fence + "markdown\n")
	sb.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString(fence + "\n\n")
}
