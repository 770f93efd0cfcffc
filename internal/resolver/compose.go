package resolver

import (
	"strings"

	"github.com/klauern/rulebook/internal/model"
)

// Section headers of composed text.
const (
	headerMarker     = "==="
	rulePrefix       = "=== rule: "
	commandPrefix    = "=== command: "
	headerSuffix     = " ==="
	CandidatesHeader = "=== candidates for agent judgment ==="
)

// Candidate is one entry of the candidates section.
type Candidate struct {
	ID          string
	Description string
}

// Composed is the structure recovered from composed text.
type Composed struct {
	Included   []string
	Bodies     map[string]string
	Candidates []Candidate
	Commands   []string
	// CommandBodies maps command paths to their bodies.
	CommandBodies map[string]string
}

// Compose renders included rules, then candidates, then commands. Each rule
// and command starts with a header line; body lines that would look like a
// header are escaped with a backslash.
func Compose(included, candidates []model.Rule, commands []model.Command) string {
	var blocks []string
	for _, r := range included {
		blocks = append(blocks, block(rulePrefix+r.ID+headerSuffix, r.Body))
	}
	if len(candidates) > 0 {
		lines := []string{CandidatesHeader}
		for _, c := range candidates {
			lines = append(lines, "- "+c.ID+": "+strings.Join(strings.Fields(c.Description), " "))
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	for _, c := range commands {
		blocks = append(blocks, block(commandPrefix+c.Path+headerSuffix, c.Body))
	}
	return strings.Join(blocks, "\n\n")
}

func block(header, body string) string {
	if body == "" {
		return header
	}
	return header + "\n" + escapeBody(body)
}

// escapeBody prefixes a backslash to every line that starts with "===" after
// any existing leading backslashes, so unescaping is exact.
func escapeBody(body string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimLeft(line, `\`), headerMarker) {
			lines[i] = `\` + line
		}
	}
	return strings.Join(lines, "\n")
}

func unescapeLine(line string) string {
	if strings.HasPrefix(line, `\`) && strings.HasPrefix(strings.TrimLeft(line, `\`), headerMarker) {
		return line[1:]
	}
	return line
}

// ParseComposed recovers the ordered rule ids, bodies, candidates and
// command paths from text produced by Compose.
func ParseComposed(text string) Composed {
	out := Composed{
		Bodies:        make(map[string]string),
		CommandBodies: make(map[string]string),
	}
	if text == "" {
		return out
	}

	type section struct {
		kind  string
		name  string
		lines []string
	}
	var sections []*section
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, headerMarker) {
			if s := parseHeader(line); s != nil {
				sections = append(sections, &section{kind: s[0], name: s[1]})
				continue
			}
		}
		if len(sections) == 0 {
			continue
		}
		cur := sections[len(sections)-1]
		cur.lines = append(cur.lines, line)
	}

	for i, s := range sections {
		lines := s.lines
		// Drop the blank separator line before the next header.
		if i < len(sections)-1 && len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}
		switch s.kind {
		case "rule":
			out.Included = append(out.Included, s.name)
			out.Bodies[s.name] = joinUnescaped(lines)
		case "command":
			out.Commands = append(out.Commands, s.name)
			out.CommandBodies[s.name] = joinUnescaped(lines)
		case "candidates":
			for _, line := range lines {
				entry, ok := strings.CutPrefix(line, "- ")
				if !ok {
					continue
				}
				id, desc, _ := strings.Cut(entry, ":")
				out.Candidates = append(out.Candidates, Candidate{
					ID:          strings.TrimSpace(id),
					Description: strings.TrimSpace(desc),
				})
			}
		}
	}
	return out
}

func parseHeader(line string) []string {
	if line == CandidatesHeader {
		return []string{"candidates", ""}
	}
	if !strings.HasSuffix(line, headerSuffix) {
		return nil
	}
	if name, ok := strings.CutPrefix(line, rulePrefix); ok {
		return []string{"rule", strings.TrimSuffix(name, headerSuffix)}
	}
	if name, ok := strings.CutPrefix(line, commandPrefix); ok {
		return []string{"command", strings.TrimSuffix(name, headerSuffix)}
	}
	return nil
}

func joinUnescaped(lines []string) string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = unescapeLine(l)
	}
	return strings.Join(out, "\n")
}

// CandidateIDs returns the ids listed in the candidates section.
func (c Composed) CandidateIDs() []string {
	ids := make([]string, len(c.Candidates))
	for i, cand := range c.Candidates {
		ids[i] = cand.ID
	}
	return ids
}
