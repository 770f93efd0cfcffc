package model

import (
	"fmt"
	"strings"
)

// ApplyMode controls when a rule is surfaced to the agent.
// Exactly one mode is determined from the presence of the rule's metadata keys.
type ApplyMode string

const (
	// ModeAlways rules are included in every resolution.
	ModeAlways ApplyMode = "always"

	// ModeIntelligent rules carry a description and are offered to the agent as
	// candidates; the agent decides whether they are relevant.
	ModeIntelligent ApplyMode = "intelligent"

	// ModeFileScoped rules are included when one of their globs matches an active file.
	ModeFileScoped ApplyMode = "file"

	// ModeManual rules are included only when mentioned explicitly with @id.
	ModeManual ApplyMode = "manual"
)

// modeOrder is the resolution priority of each mode (lower resolves first).
var modeOrder = map[ApplyMode]int{
	ModeAlways:      0,
	ModeFileScoped:  1,
	ModeManual:      2,
	ModeIntelligent: 3,
}

// IsValid returns true if the apply mode is recognized.
func (m ApplyMode) IsValid() bool {
	_, ok := modeOrder[m]
	return ok
}

// AllApplyModes returns all apply modes in resolution priority order.
func AllApplyModes() []ApplyMode {
	return []ApplyMode{ModeAlways, ModeFileScoped, ModeManual, ModeIntelligent}
}

// String returns the string representation of the apply mode.
func (m ApplyMode) String() string {
	return string(m)
}

// Priority returns the resolution priority of the mode. Lower values win
// when the same rule could be included by more than one step.
func (m ApplyMode) Priority() int {
	if p, ok := modeOrder[m]; ok {
		return p
	}
	return len(modeOrder)
}

// IsDeterministic reports whether inclusion under this mode is decided
// mechanically from the query context.
func (m ApplyMode) IsDeterministic() bool {
	return m == ModeAlways || m == ModeFileScoped || m == ModeManual
}

// Description returns a human-readable description of the apply mode.
func (m ApplyMode) Description() string {
	switch m {
	case ModeAlways:
		return "Always applied to every request"
	case ModeIntelligent:
		return "Offered to the agent, which decides relevance from the description"
	case ModeFileScoped:
		return "Applied when an active file matches one of the rule's globs"
	case ModeManual:
		return "Applied only when mentioned explicitly with @id"
	default:
		return "Unknown apply mode"
	}
}

// ParseApplyMode converts a string to an ApplyMode.
// Common aliases are accepted ("always-apply", "auto", "glob", "files", "agent", "agent-requested").
func ParseApplyMode(s string) (ApplyMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "always", "always-apply", "alwaysapply":
		return ModeAlways, nil
	case "intelligent", "agent", "agent-requested":
		return ModeIntelligent, nil
	case "file", "files", "glob", "globs", "auto", "file-scoped":
		return ModeFileScoped, nil
	case "manual":
		return ModeManual, nil
	default:
		return "", fmt.Errorf("unknown apply mode %q (valid: always, intelligent, file, manual)", s)
	}
}

// Metadata is the raw metadata block of a rule record before classification.
// Absent keys are nil so that an explicit "alwaysApply: false" can be told
// apart from a missing key. An empty globs key is treated as absent.
type Metadata struct {
	AlwaysApply *bool
	Description *string
	Globs       []string
}

// Classify determines the apply mode of a metadata block.
// It returns an error when the keys present do not describe exactly one mode.
func (md Metadata) Classify() (ApplyMode, error) {
	always := md.AlwaysApply != nil && *md.AlwaysApply
	hasDesc := md.Description != nil && strings.TrimSpace(*md.Description) != ""
	hasGlobs := len(md.Globs) > 0

	switch {
	case always && (hasDesc || hasGlobs):
		return "", fmt.Errorf("alwaysApply rules must not declare a description or globs")
	case always:
		return ModeAlways, nil
	case hasDesc && hasGlobs:
		return "", fmt.Errorf("a rule cannot declare both a description and globs")
	case hasDesc:
		return ModeIntelligent, nil
	case hasGlobs:
		return ModeFileScoped, nil
	default:
		return ModeManual, nil
	}
}
