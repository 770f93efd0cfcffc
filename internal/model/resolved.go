package model

// Inclusion reasons recorded on a ResolvedSet.
const (
	ReasonAlways  = "always"
	ReasonMention = "mention"
	ReasonJudge   = "judge"
	// ReasonFilePrefix is followed by the glob that matched, e.g. "file:**/*.py".
	ReasonFilePrefix = "file:"
)

// ResolvedSet is the outcome of resolving a QueryContext against a registry.
type ResolvedSet struct {
	// Included holds the deterministic inclusion set in priority order.
	Included []Rule `json:"included" yaml:"included"`
	// Candidates holds intelligent rules left for agent judgment.
	Candidates []Rule `json:"candidates" yaml:"candidates"`
	// Commands holds commands invoked from the conversation text.
	Commands []Command `json:"commands,omitempty" yaml:"commands,omitempty"`
	// Reasons maps each included rule id to why it was included.
	Reasons      map[string]string `json:"reasons,omitempty" yaml:"reasons,omitempty"`
	ComposedText string            `json:"composed_text" yaml:"composed_text"`
}

// IncludedIDs returns the ids of the included rules in order.
func (s ResolvedSet) IncludedIDs() []string {
	return ruleIDs(s.Included)
}

// CandidateIDs returns the ids of the candidate rules in order.
func (s ResolvedSet) CandidateIDs() []string {
	return ruleIDs(s.Candidates)
}

func ruleIDs(rules []Rule) []string {
	ids := make([]string, len(rules))
	for i, r := range rules {
		ids[i] = r.ID
	}
	return ids
}
