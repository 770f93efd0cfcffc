package parser

import (
	"bytes"
	"fmt"
	"strings"
)

// Frontmatter delimiters.
const (
	DelimiterYAML = "---"
	DelimiterTOML = "+++"
)

// FrontmatterResult contains the parsed frontmatter and remaining content.
type FrontmatterResult struct {
	// Frontmatter contains the raw metadata bytes
	Frontmatter []byte
	// Delimiter is the fence that enclosed the frontmatter ("---" or "+++")
	Delimiter string
	// Content contains the remaining content after frontmatter
	Content string
	// HasFrontmatter indicates whether frontmatter was found
	HasFrontmatter bool
}

// SplitFrontmatter extracts the metadata block from the start of content.
// "---" fences YAML (or Cursor's YAML-like dialect) and "+++" fences TOML.
// Content without a complete fenced block is returned unchanged.
func SplitFrontmatter(content []byte) FrontmatterResult {
	// A UTF-8 BOM would hide the opening fence
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))

	for _, delim := range []string{DelimiterYAML, DelimiterTOML} {
		if bytes.HasPrefix(content, []byte(delim+"\n")) || bytes.HasPrefix(content, []byte(delim+"\r\n")) {
			return extractFrontmatter(content, delim)
		}
	}

	return FrontmatterResult{Content: string(content)}
}

// extractFrontmatter extracts frontmatter between delimiters.
func extractFrontmatter(content []byte, delim string) FrontmatterResult {
	delimiter := []byte(delim)
	remaining := content[len(delimiter):]
	remaining = trimLeadingNewline(remaining)

	var frontmatter []byte
	bodyStart := -1

	if bytes.HasPrefix(remaining, delimiter) {
		// Empty block: ---\n---\n
		frontmatter = []byte{}
		bodyStart = len(delimiter)
	} else {
		for _, nl := range []string{"\n", "\r\n"} {
			closing := append([]byte(nl), delimiter...)
			if idx := bytes.Index(remaining, closing); idx != -1 {
				frontmatter = remaining[:idx]
				bodyStart = idx + len(closing)
				break
			}
		}
	}

	if bodyStart < 0 {
		return FrontmatterResult{Content: string(content)}
	}

	clean := bytes.ReplaceAll(frontmatter, []byte("\r\n"), []byte("\n"))
	clean = bytes.TrimRight(clean, "\r")

	var body string
	if rest := trimLeadingNewline(remaining[bodyStart:]); len(rest) > 0 {
		body = string(rest)
	}

	return FrontmatterResult{
		Frontmatter:    clean,
		Delimiter:      delim,
		Content:        body,
		HasFrontmatter: true,
	}
}

func trimLeadingNewline(b []byte) []byte {
	if bytes.HasPrefix(b, []byte("\r\n")) {
		return b[2:]
	}
	if bytes.HasPrefix(b, []byte("\n")) {
		return b[1:]
	}
	return b
}

// ValidateID checks that a record id is a usable slug.
// Valid ids contain letters, digits, hyphens, underscores and dots, and do not
// start with a dot.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}
	if strings.TrimSpace(id) != id {
		return fmt.Errorf("id cannot have leading/trailing whitespace: %q", id)
	}
	if strings.HasPrefix(id, ".") {
		return fmt.Errorf("id cannot start with a dot: %q", id)
	}
	for _, r := range id {
		if !isIDChar(r) {
			return fmt.Errorf("id contains invalid character %q: %q", r, id)
		}
	}
	return nil
}

// ValidateCommandPath checks every segment of a category/name command path.
func ValidateCommandPath(path string) error {
	if path == "" {
		return fmt.Errorf("command path cannot be empty")
	}
	for _, seg := range strings.Split(path, "/") {
		if err := ValidateID(seg); err != nil {
			return fmt.Errorf("invalid command path %q: %w", path, err)
		}
	}
	return nil
}

func isIDChar(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') ||
		r == '-' || r == '_' || r == '.'
}

// NormalizeContent trims surrounding whitespace and normalizes line endings.
func NormalizeContent(content string) string {
	return strings.TrimSpace(strings.ReplaceAll(content, "\r\n", "\n"))
}
