package model

import "time"

// Command is a named multi-step workflow template loaded from a commands tree.
type Command struct {
	// Path is the hierarchical identifier category/name.
	Path        string `json:"path" yaml:"path"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// RulesReferenced lists rule ids the command declares as relevant.
	// They are informational and never force-activate a rule.
	RulesReferenced []string          `json:"rules_referenced,omitempty" yaml:"rules_referenced,omitempty"`
	Steps           []string          `json:"steps,omitempty" yaml:"steps,omitempty"`
	Sections        map[string]string `json:"sections,omitempty" yaml:"sections,omitempty"`
	Body            string            `json:"body" yaml:"body"`
	File            string            `json:"file" yaml:"file"`
	Root            string            `json:"root,omitempty" yaml:"root,omitempty"`
	ModifiedAt      time.Time         `json:"modified_at" yaml:"modified_at"`
}

// Name returns the last segment of the command path.
func (c Command) Name() string {
	for i := len(c.Path) - 1; i >= 0; i-- {
		if c.Path[i] == '/' {
			return c.Path[i+1:]
		}
	}
	return c.Path
}

// Category returns everything before the last segment of the command path.
func (c Command) Category() string {
	for i := len(c.Path) - 1; i >= 0; i-- {
		if c.Path[i] == '/' {
			return c.Path[:i]
		}
	}
	return ""
}
