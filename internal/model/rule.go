package model

import (
	"fmt"
	"strings"
	"time"
)

// Rule is a declarative instruction record loaded from a rules tree.
// Rules are immutable once loaded; a reload replaces them wholesale.
type Rule struct {
	ID          string    `json:"id" yaml:"id"`
	Category    string    `json:"category,omitempty" yaml:"category,omitempty"`
	Mode        ApplyMode `json:"mode" yaml:"mode"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Globs       []string  `json:"globs,omitempty" yaml:"globs,omitempty"`
	Body        string    `json:"body" yaml:"body"`
	Path        string    `json:"path" yaml:"path"`
	Root        string    `json:"root,omitempty" yaml:"root,omitempty"`
	Attachments []string  `json:"attachments,omitempty" yaml:"attachments,omitempty"`
	ModifiedAt  time.Time `json:"modified_at" yaml:"modified_at"`
}

// Validate checks the apply mode invariant: each mode carries exactly the
// metadata it needs and nothing else.
func (r Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule id cannot be empty")
	}
	hasDesc := strings.TrimSpace(r.Description) != ""
	hasGlobs := len(r.Globs) > 0

	switch r.Mode {
	case ModeAlways:
		if hasDesc || hasGlobs {
			return fmt.Errorf("rule %q: always mode must not have a description or globs", r.ID)
		}
	case ModeIntelligent:
		if !hasDesc || hasGlobs {
			return fmt.Errorf("rule %q: intelligent mode requires a description and no globs", r.ID)
		}
	case ModeFileScoped:
		if !hasGlobs || hasDesc {
			return fmt.Errorf("rule %q: file mode requires globs and no description", r.ID)
		}
	case ModeManual:
		if hasDesc || hasGlobs {
			return fmt.Errorf("rule %q: manual mode must not have a description or globs", r.ID)
		}
	default:
		return fmt.Errorf("rule %q: unknown apply mode %q", r.ID, r.Mode)
	}
	return nil
}

// QualifiedName returns category/id, or just the id for uncategorized rules.
func (r Rule) QualifiedName() string {
	if r.Category == "" {
		return r.ID
	}
	return r.Category + "/" + r.ID
}
