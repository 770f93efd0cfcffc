// Package commands parses command records from a commands tree.
//
// Command files are Markdown with an optional metadata block. The body is
// split into "##" sections by convention (overview, rules, steps, data
// sources, output); nothing beyond that convention is enforced.
package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/klauern/rulebook/internal/model"
	"github.com/klauern/rulebook/internal/parser"
	"github.com/klauern/rulebook/internal/validation"
)

// DirName is the name of the commands directory under a root.
const DirName = "commands"

// Canonical section names.
const (
	SectionOverview = "overview"
	SectionRules    = "rules"
	SectionSteps    = "steps"
)

var (
	headingRe  = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*\s*$`)
	mentionRe  = regexp.MustCompile(`(?:^|[^\w@])@([A-Za-z0-9][A-Za-z0-9_.-]*)`)
	backtickRe = regexp.MustCompile("`([A-Za-z0-9][A-Za-z0-9_.-]*)`")
	numberedRe = regexp.MustCompile(`^(\d+)[.)]\s+(.*)$`)
	bulletRe   = regexp.MustCompile(`^[-*+]\s+(.*)$`)
)

var sectionAlias = map[string]string{
	"overview":         SectionOverview,
	"summary":          SectionOverview,
	"purpose":          SectionOverview,
	"rules":            SectionRules,
	"rules referenced": SectionRules,
	"rules applied":    SectionRules,
	"related rules":    SectionRules,
	"relevant rules":   SectionRules,
	"steps":            SectionSteps,
	"workflow":         SectionSteps,
	"process":          SectionSteps,
	"instructions":     SectionSteps,
}

// Parser parses command files from one root.
type Parser struct {
	root        string
	commandsDir string
}

// New creates a parser for the commands directory of root.
func New(root string) *Parser {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Parser{root: root, commandsDir: filepath.Join(root, DirName)}
}

// Dir returns the commands directory this parser reads.
func (p *Parser) Dir() string {
	return p.commandsDir
}

// Discover returns every command file, sorted lexicographically.
func (p *Parser) Discover() ([]string, error) {
	return parser.DiscoverFiles(p.commandsDir, parser.CommandPatterns)
}

// CommandPath derives the category/name path of a command file.
func (p *Parser) CommandPath(file string) (string, error) {
	rel, err := filepath.Rel(p.commandsDir, file)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	return strings.TrimSuffix(rel, filepath.Ext(rel)), nil
}

// ParseFile reads one command file. A *validation.MalformedRecordError means
// the command must be skipped.
func (p *Parser) ParseFile(file string) (model.Command, error) {
	path, err := p.CommandPath(file)
	if err != nil {
		return model.Command{}, &validation.MalformedRecordError{ID: file, Path: file, Reason: "outside commands directory", Err: err}
	}
	malformed := func(reason string, err error) error {
		return &validation.MalformedRecordError{ID: path, Path: file, Reason: reason, Err: err}
	}

	if err := parser.ValidateCommandPath(path); err != nil {
		return model.Command{}, malformed("invalid path", err)
	}

	// #nosec G304 - file comes from discovery under the commands directory
	content, err := os.ReadFile(file)
	if err != nil {
		return model.Command{}, malformed("unreadable", err)
	}
	info, err := os.Stat(file)
	if err != nil {
		return model.Command{}, malformed("unreadable", err)
	}

	fm := parser.SplitFrontmatter(content)
	values, err := parser.DecodeFrontmatter(fm)
	if err != nil {
		return model.Command{}, malformed("unparseable metadata", err)
	}

	body := parser.NormalizeContent(fm.Content)
	cmd := model.Command{
		Path:       path,
		Body:       body,
		File:       file,
		Root:       p.root,
		ModifiedAt: info.ModTime(),
	}

	sections := SplitSections(body)

	if desc, ok := values[parser.KeyDescription]; ok && desc != nil {
		cmd.Description = strings.TrimSpace(fmt.Sprint(desc))
	}
	if cmd.Description == "" {
		cmd.Description = firstParagraph(sections[SectionOverview])
	}

	var refs []string
	if declared, ok := values[parser.KeyRules]; ok {
		list, err := parser.ToStringList(declared)
		if err != nil {
			return model.Command{}, malformed("invalid rules list", err)
		}
		refs = append(refs, list...)
	}
	refs = append(refs, ExtractRuleReferences(sections[SectionRules])...)
	refs = append(refs, ExtractMentions(body)...)
	cmd.RulesReferenced = dedupe(refs)

	cmd.Steps = ExtractSteps(sections[SectionSteps])

	extra := make(map[string]string)
	for name, text := range sections {
		if name == SectionRules || name == SectionSteps || name == "" || text == "" {
			continue
		}
		extra[name] = text
	}
	if len(extra) > 0 {
		cmd.Sections = extra
	}

	return cmd, nil
}

// SplitSections groups body text under canonical section names. Text before
// the first heading is stored under "". Only level-1 and level-2 headings
// start a section; deeper headings stay inside their parent.
func SplitSections(body string) map[string]string {
	sections := make(map[string]string)
	current := ""
	var buf []string

	flush := func() {
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		if prev, ok := sections[current]; ok && prev != "" {
			if text != "" {
				text = prev + "\n\n" + text
			} else {
				text = prev
			}
		}
		sections[current] = text
		buf = buf[:0]
	}

	inFence := false
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
		}
		if !inFence {
			if m := headingRe.FindStringSubmatch(line); m != nil && len(m[1]) <= 2 {
				flush()
				current = canonicalSection(m[2])
				continue
			}
		}
		buf = append(buf, line)
	}
	flush()

	return sections
}

func canonicalSection(title string) string {
	name := strings.ToLower(strings.TrimSpace(title))
	name = strings.Trim(name, ":")
	if alias, ok := sectionAlias[name]; ok {
		return alias
	}
	// "Step-by-step workflow" style headings
	for key, alias := range sectionAlias {
		if alias == SectionSteps && strings.Contains(name, key) {
			return alias
		}
	}
	return name
}

// ExtractRuleReferences returns rule ids named in a rules section: @id
// mentions, backticked ids, or bare list items.
func ExtractRuleReferences(section string) []string {
	var refs []string
	for _, line := range strings.Split(section, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		found := mentions(trimmed)
		if len(found) == 0 {
			for _, m := range backtickRe.FindAllStringSubmatch(trimmed, -1) {
				found = append(found, m[1])
			}
		}
		if len(found) == 0 {
			if m := bulletRe.FindStringSubmatch(trimmed); m != nil {
				words := strings.Fields(m[1])
				if len(words) > 0 {
					candidate := strings.TrimRight(words[0], ":,.")
					slug := strings.ContainsAny(candidate, "-_") || len(words) == 1
					if slug && parser.ValidateID(candidate) == nil {
						found = append(found, candidate)
					}
				}
			}
		}
		refs = append(refs, found...)
	}
	return dedupe(refs)
}

// ExtractMentions returns every @id mention in text, outside code fences.
func ExtractMentions(text string) []string {
	var refs []string
	inFence := false
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		refs = append(refs, mentions(line)...)
	}
	return dedupe(refs)
}

func mentions(line string) []string {
	var out []string
	for _, m := range mentionRe.FindAllStringSubmatch(line, -1) {
		out = append(out, strings.TrimRight(m[1], "."))
	}
	return out
}

// ExtractSteps returns the ordered steps of a steps section. "###" sub-headings
// take precedence, then numbered list items, then bullets. Continuation lines
// are folded into the preceding step.
func ExtractSteps(section string) []string {
	if section == "" {
		return nil
	}
	if steps := stepsByHeading(section); len(steps) > 0 {
		return steps
	}
	if steps := stepsByList(section, numberedRe, 2); len(steps) > 0 {
		return steps
	}
	return stepsByList(section, bulletRe, 1)
}

func stepsByHeading(section string) []string {
	var steps []string
	var cur []string
	inStep := false
	for _, line := range strings.Split(section, "\n") {
		if m := headingRe.FindStringSubmatch(line); m != nil && len(m[1]) >= 3 {
			if inStep {
				steps = append(steps, strings.TrimSpace(strings.Join(cur, "\n")))
			}
			cur = []string{m[2]}
			inStep = true
			continue
		}
		if inStep {
			cur = append(cur, line)
		}
	}
	if inStep {
		steps = append(steps, strings.TrimSpace(strings.Join(cur, "\n")))
	}
	return steps
}

func stepsByList(section string, re *regexp.Regexp, group int) []string {
	var steps []string
	for _, line := range strings.Split(section, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		// Only unindented items start a step.
		if line == strings.TrimLeft(line, " \t") {
			if m := re.FindStringSubmatch(line); m != nil {
				steps = append(steps, strings.TrimSpace(m[group]))
				continue
			}
		}
		if len(steps) > 0 {
			steps[len(steps)-1] += "\n" + strings.TrimSpace(line)
		}
	}
	return steps
}

func firstParagraph(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	para, _, _ := strings.Cut(text, "\n\n")
	return strings.Join(strings.Fields(para), " ")
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(strings.TrimPrefix(s, "@"))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
