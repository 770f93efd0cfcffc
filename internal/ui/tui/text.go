package tui

import (
	"strings"

	"github.com/klauern/rulebook/internal/model"
)

// candidateLine is the one-line description shown under a candidate in the
// picker list, whitespace collapsed and cut to width runes.
func candidateLine(rule model.Rule, width int) string {
	return clip(strings.Join(strings.Fields(rule.Description), " "), width)
}

// candidatePreview renders the preview pane for a candidate rule: its
// description and attachments as labelled, wrapped fields followed by the
// rule body.
func candidatePreview(rule model.Rule, width int) string {
	var fields []string
	if rule.Description != "" {
		fields = append(fields, field("Description: ", rule.Description, width))
	}
	if len(rule.Attachments) > 0 {
		fields = append(fields, field("Attachments: ", strings.Join(rule.Attachments, " "), width))
	}

	body := rule.Body
	if strings.TrimSpace(body) == "" {
		body = "(empty body)"
	}
	if len(fields) == 0 {
		return body
	}
	return strings.Join(fields, "\n") + "\n\n" + body
}

func clip(text string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= width {
		return text
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

// field lays text out after label, indenting continuation lines under the
// first word.
func field(label, text string, width int) string {
	if width <= len(label) {
		return label + strings.Join(strings.Fields(text), " ")
	}
	lines := wrapWords(text, width-len(label))
	if len(lines) == 0 {
		return label
	}
	indent := "\n" + strings.Repeat(" ", len(label))
	return label + strings.Join(lines, indent)
}

func wrapWords(text string, width int) []string {
	var lines []string
	var line []rune
	for _, word := range strings.Fields(text) {
		w := []rune(word)
		if len(line) > 0 && len(line)+1+len(w) > width {
			lines = append(lines, string(line))
			line = line[:0]
		}
		if len(line) > 0 {
			line = append(line, ' ')
		}
		line = append(line, w...)
	}
	if len(line) > 0 {
		lines = append(lines, string(line))
	}
	return lines
}
