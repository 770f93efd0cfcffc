package resolver

import (
	"regexp"
	"strings"

	"github.com/klauern/rulebook/internal/model"
	"github.com/klauern/rulebook/internal/parser/commands"
)

var invocationRe = regexp.MustCompile(`(?:^|\s)/([A-Za-z0-9][A-Za-z0-9_.-]*(?:/[A-Za-z0-9][A-Za-z0-9_.-]*)*)`)

// NewQuery builds a query context. Mentions are the @id tokens found in the
// conversation text plus the ids passed explicitly; invocations are the
// /command tokens in the conversation text.
func NewQuery(paths []string, conversation string, mentions ...string) model.QueryContext {
	q := model.QueryContext{
		ActiveFilePaths:  append([]string(nil), paths...),
		ConversationText: conversation,
		ExplicitMentions: make(map[string]bool),
	}
	for _, id := range commands.ExtractMentions(conversation) {
		q.ExplicitMentions[id] = true
	}
	for _, id := range mentions {
		id = strings.TrimPrefix(strings.TrimSpace(id), "@")
		if id != "" {
			q.ExplicitMentions[id] = true
		}
	}
	q.Invocations = ExtractInvocations(conversation)
	return q
}

// ExtractInvocations returns the /command tokens in text, in order of first
// appearance. A token must start a line or follow whitespace, so URLs and
// file paths inside words are ignored.
func ExtractInvocations(text string) []string {
	var out []string
	seen := make(map[string]bool)
	inFence := false
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		for _, m := range invocationRe.FindAllStringSubmatch(line, -1) {
			tok := strings.TrimRight(m[1], ".")
			if !seen[tok] {
				seen[tok] = true
				out = append(out, tok)
			}
		}
	}
	return out
}
