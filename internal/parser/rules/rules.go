// Package rules parses rule records from a rules tree.
//
// A rule is either a folder holding a RULE.md (or RULE.mdc) record file plus
// optional attachments, or a single flat .md/.mdc file. A file named after
// its folder is the folder's record only when no other .md/.mdc file sits
// next to it. The rule id is the
// folder name or the flat file's stem; the category is the path between the
// rules directory and the rule.
package rules

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauern/rulebook/internal/logging"
	"github.com/klauern/rulebook/internal/model"
	"github.com/klauern/rulebook/internal/parser"
	"github.com/klauern/rulebook/internal/validation"
)

// DirName is the name of the rules directory under a root.
const DirName = "rules"

// RecordFileNames mark a folder as a single rule.
var RecordFileNames = []string{"RULE.md", "RULE.mdc", "rule.md", "rule.mdc"}

// ErrNotRecord is returned for files that belong to a rule folder but are not
// its record file (attachments, READMEs).
var ErrNotRecord = errors.New("not a rule record file")

// Location describes where a rule file sits in a rules tree.
type Location struct {
	ID       string
	Category string
	// Folder is true when the rule owns its directory.
	Folder bool
	Dir    string
}

// Parser parses rule files from one root.
type Parser struct {
	root     string
	rulesDir string
	logger   *slog.Logger
}

// New creates a parser for the rules directory of root.
func New(root string) *Parser {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Parser{
		root:     root,
		rulesDir: filepath.Join(root, DirName),
		logger:   logging.With(logging.Root(root)),
	}
}

// WithLogger replaces the parser's logger and returns the parser.
func (p *Parser) WithLogger(logger *slog.Logger) *Parser {
	if logger != nil {
		p.logger = logger.With(logging.Root(p.root))
	}
	return p
}

// Dir returns the rules directory this parser reads.
func (p *Parser) Dir() string {
	return p.rulesDir
}

// Discover returns every candidate rule file, sorted lexicographically.
// Attachments are filtered out later by ParseFile.
func (p *Parser) Discover() ([]string, error) {
	return parser.DiscoverFiles(p.rulesDir, parser.RulePatterns)
}

// Locate classifies path relative to the rules directory. It returns false
// for attachments and READMEs.
func (p *Parser) Locate(path string) (Location, bool) {
	base := filepath.Base(path)
	dir := filepath.Dir(path)

	if strings.EqualFold(base, "README.md") {
		return Location{}, false
	}

	if isRecordFileName(base) || p.isNamedRecord(dir, base) {
		if dir == p.rulesDir {
			// A RULE.md directly under rules/ has no folder to name it.
			return Location{}, false
		}
		return Location{
			ID:       filepath.Base(dir),
			Category: p.category(filepath.Dir(dir)),
			Folder:   true,
			Dir:      dir,
		}, true
	}

	if dir != p.rulesDir && hasRecordFile(dir) {
		return Location{}, false
	}

	return Location{
		ID:       stem(base),
		Category: p.category(dir),
		Dir:      dir,
	}, true
}

// ParseFile reads and validates one rule file. Non-fatal problems (dropped
// glob patterns) are returned as diagnostics. A *validation.MalformedRecordError
// means the record must be skipped; ErrNotRecord means the file is not a rule.
func (p *Parser) ParseFile(path string) (model.Rule, []error, error) {
	loc, ok := p.Locate(path)
	if !ok {
		return model.Rule{}, nil, ErrNotRecord
	}

	malformed := func(reason string, err error) error {
		return &validation.MalformedRecordError{ID: loc.ID, Path: path, Reason: reason, Err: err}
	}

	if err := parser.ValidateID(loc.ID); err != nil {
		return model.Rule{}, nil, malformed("invalid id", err)
	}

	// #nosec G304 - path comes from discovery under the rules directory
	content, err := os.ReadFile(path)
	if err != nil {
		return model.Rule{}, nil, malformed("unreadable", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return model.Rule{}, nil, malformed("unreadable", err)
	}

	fm := parser.SplitFrontmatter(content)
	values, err := parser.DecodeFrontmatter(fm)
	if err != nil {
		return model.Rule{}, nil, malformed("unparseable metadata", err)
	}

	md, unknown, err := parser.ReadMetadata(values)
	if err != nil {
		return model.Rule{}, nil, malformed("invalid metadata", err)
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		p.logger.Debug("ignoring unknown metadata keys",
			logging.Rule(loc.ID),
			logging.Path(path),
			slog.Any("keys", unknown),
		)
	}

	mode, err := md.Classify()
	if err != nil {
		return model.Rule{}, nil, malformed("ambiguous apply mode", err)
	}

	var diags []error
	rule := model.Rule{
		ID:         loc.ID,
		Category:   loc.Category,
		Mode:       mode,
		Body:       parser.NormalizeContent(fm.Content),
		Path:       path,
		Root:       p.root,
		ModifiedAt: info.ModTime(),
	}

	switch mode {
	case model.ModeIntelligent:
		rule.Description = strings.TrimSpace(*md.Description)
	case model.ModeFileScoped:
		for _, g := range md.Globs {
			if !parser.ValidGlob(g) {
				diags = append(diags, &validation.InvalidGlobError{ID: loc.ID, Path: path, Pattern: g})
				continue
			}
			rule.Globs = append(rule.Globs, g)
		}
		if len(rule.Globs) == 0 {
			return model.Rule{}, diags, malformed("no valid glob patterns", nil)
		}
	}

	if loc.Folder {
		rule.Attachments = attachments(loc.Dir, filepath.Base(path))
	}

	if err := rule.Validate(); err != nil {
		return model.Rule{}, diags, malformed("invalid rule", err)
	}

	return rule, diags, nil
}

// Refresh revalidates a previously parsed rule against the current tree
// layout. The record file itself is assumed unchanged; its location and the
// folder's attachments are recomputed. It returns false if the file no longer
// resolves to the same rule.
func (p *Parser) Refresh(rule model.Rule) (model.Rule, bool) {
	loc, ok := p.Locate(rule.Path)
	if !ok || loc.ID != rule.ID || loc.Category != rule.Category {
		return model.Rule{}, false
	}
	rule.Root = p.root
	rule.Attachments = nil
	if loc.Folder {
		rule.Attachments = attachments(loc.Dir, filepath.Base(rule.Path))
	}
	return rule, true
}

func (p *Parser) category(dir string) string {
	rel, err := filepath.Rel(p.rulesDir, dir)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

// attachments lists the regular files next to a folder rule's record file.
func attachments(dir, recordFile string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == recordFile {
			continue
		}
		out = append(out, e.Name())
	}
	slices.Sort(out)
	return out
}

func isRecordFileName(name string) bool {
	return slices.Contains(RecordFileNames, name)
}

func hasRecordFile(dir string) bool {
	for _, name := range RecordFileNames {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

// isNamedRecord reports whether base is a file named after its folder that
// is the only rule-looking file there, e.g. agents/planner/planner.mdc. A
// folder holding other .md/.mdc files is a category of flat rules instead.
func (p *Parser) isNamedRecord(dir, base string) bool {
	if dir == p.rulesDir || stem(base) != filepath.Base(dir) {
		return false
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == base || strings.EqualFold(name, "README.md") {
			continue
		}
		if ext := strings.ToLower(filepath.Ext(name)); ext == ".md" || ext == ".mdc" {
			return false
		}
	}
	return true
}

func stem(base string) string {
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// String implements fmt.Stringer for log output.
func (l Location) String() string {
	if l.Category == "" {
		return l.ID
	}
	return fmt.Sprintf("%s/%s", l.Category, l.ID)
}
