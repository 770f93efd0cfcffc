package model

import (
	"slices"
	"strings"
)

// QueryContext describes one resolution request. It is built fresh for every
// request and never persisted.
type QueryContext struct {
	ActiveFilePaths  []string `json:"active_file_paths" yaml:"active_file_paths"`
	ConversationText string   `json:"conversation_text,omitempty" yaml:"conversation_text,omitempty"`
	// ExplicitMentions holds rule ids mentioned with @id.
	ExplicitMentions map[string]bool `json:"explicit_mentions,omitempty" yaml:"explicit_mentions,omitempty"`
	// Invocations holds command paths or names invoked with /command.
	Invocations []string `json:"invocations,omitempty" yaml:"invocations,omitempty"`
}

// Mentions reports whether id was mentioned explicitly.
func (q QueryContext) Mentions(id string) bool {
	return q.ExplicitMentions[id]
}

// MentionList returns the explicit mentions in sorted order.
func (q QueryContext) MentionList() []string {
	ids := make([]string, 0, len(q.ExplicitMentions))
	for id, ok := range q.ExplicitMentions {
		if ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// NormalizedPaths returns the active file paths with forward slashes and
// without a leading "./".
func (q QueryContext) NormalizedPaths() []string {
	out := make([]string, 0, len(q.ActiveFilePaths))
	for _, p := range q.ActiveFilePaths {
		p = strings.ReplaceAll(p, "\\", "/")
		for strings.HasPrefix(p, "./") {
			p = p[2:]
		}
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
