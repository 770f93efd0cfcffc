package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/klauern/rulebook/internal/model"
)

// Recognized metadata keys.
const (
	KeyAlwaysApply = "alwaysApply"
	KeyDescription = "description"
	KeyGlobs       = "globs"
	KeyRules       = "rules"
)

// ParseYAMLFrontmatter parses YAML frontmatter into a map.
func ParseYAMLFrontmatter(frontmatter []byte) (map[string]any, error) {
	result := make(map[string]any)
	if len(frontmatter) == 0 {
		return result, nil
	}
	if err := yaml.Unmarshal(frontmatter, &result); err != nil {
		return nil, fmt.Errorf("failed to parse YAML frontmatter: %w", err)
	}
	if result == nil {
		result = make(map[string]any)
	}
	return result, nil
}

// ParseTOMLFrontmatter parses TOML frontmatter into a map.
func ParseTOMLFrontmatter(frontmatter []byte) (map[string]any, error) {
	result := make(map[string]any)
	if len(frontmatter) == 0 {
		return result, nil
	}
	if err := toml.Unmarshal(frontmatter, &result); err != nil {
		return nil, fmt.Errorf("failed to parse TOML frontmatter: %w", err)
	}
	return result, nil
}

// ParseLenientFrontmatter reads the flat "key: value" dialect Cursor writes,
// where values such as `globs: **/*.py` are not valid YAML. Nested structures
// are not supported; "- item" lines append to the previous key's list.
func ParseLenientFrontmatter(frontmatter []byte) (map[string]any, error) {
	result := make(map[string]any)
	var lastKey string

	for i, raw := range strings.Split(string(frontmatter), "\n") {
		line := strings.TrimRight(raw, "\r \t")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if strings.HasPrefix(trimmed, "- ") || trimmed == "-" {
			if lastKey == "" {
				return nil, fmt.Errorf("line %d: list item without a key", i+1)
			}
			item := unquote(strings.TrimSpace(strings.TrimPrefix(trimmed, "-")))
			switch cur := result[lastKey].(type) {
			case []any:
				result[lastKey] = append(cur, item)
			case nil:
				result[lastKey] = []any{item}
			default:
				return nil, fmt.Errorf("line %d: list item after scalar value for %q", i+1, lastKey)
			}
			continue
		}

		key, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: expected key: value, got %q", i+1, trimmed)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("line %d: empty key", i+1)
		}
		lastKey = key
		value = strings.TrimSpace(value)

		switch {
		case value == "":
			result[key] = nil
		case strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]"):
			items := SplitGlobList(value[1 : len(value)-1])
			list := make([]any, 0, len(items))
			for _, it := range items {
				list = append(list, unquote(it))
			}
			result[key] = list
		default:
			result[key] = unquote(value)
		}
	}

	return result, nil
}

// DecodeFrontmatter parses a split frontmatter block according to its
// delimiter. YAML blocks that fail to parse are retried with the lenient
// parser before an error is returned.
func DecodeFrontmatter(fm FrontmatterResult) (map[string]any, error) {
	if !fm.HasFrontmatter {
		return make(map[string]any), nil
	}
	if fm.Delimiter == DelimiterTOML {
		return ParseTOMLFrontmatter(fm.Frontmatter)
	}

	values, err := ParseYAMLFrontmatter(fm.Frontmatter)
	if err == nil {
		return values, nil
	}
	lenient, lerr := ParseLenientFrontmatter(fm.Frontmatter)
	if lerr != nil {
		return nil, err
	}
	return lenient, nil
}

// ReadMetadata extracts the rule metadata keys from decoded frontmatter.
// It returns the keys it did not recognize so callers can report them.
func ReadMetadata(values map[string]any) (model.Metadata, []string, error) {
	var md model.Metadata
	var unknown []string

	for key, val := range values {
		switch key {
		case KeyAlwaysApply:
			b, present, err := toBool(val)
			if err != nil {
				return model.Metadata{}, nil, fmt.Errorf("%s: %w", KeyAlwaysApply, err)
			}
			if present {
				md.AlwaysApply = &b
			}
		case KeyDescription:
			if val == nil {
				continue
			}
			s := strings.TrimSpace(fmt.Sprint(val))
			md.Description = &s
		case KeyGlobs:
			globs, err := ToStringList(val)
			if err != nil {
				return model.Metadata{}, nil, fmt.Errorf("%s: %w", KeyGlobs, err)
			}
			md.Globs = globs
		default:
			unknown = append(unknown, key)
		}
	}

	return md, unknown, nil
}

// ToStringList converts a scalar or list frontmatter value to a list of
// trimmed, non-empty strings. Scalars are split on top-level commas.
func ToStringList(val any) ([]string, error) {
	switch v := val.(type) {
	case nil:
		return nil, nil
	case string:
		return SplitGlobList(v), nil
	case []string:
		return cleanList(v), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			switch it := item.(type) {
			case nil:
				continue
			case string:
				out = append(out, it)
			case map[string]any, []any:
				return nil, fmt.Errorf("nested values are not supported")
			default:
				out = append(out, fmt.Sprint(it))
			}
		}
		return cleanList(out), nil
	case map[string]any:
		return nil, fmt.Errorf("nested values are not supported")
	default:
		return cleanList([]string{fmt.Sprint(v)}), nil
	}
}

// SplitGlobList splits a comma-separated pattern list, leaving commas inside
// {a,b} alternations and [...] classes alone.
func SplitGlobList(s string) []string {
	var parts []string
	var cur strings.Builder
	braces, brackets := 0, 0

	for _, r := range s {
		switch r {
		case '{':
			braces++
		case '}':
			if braces > 0 {
				braces--
			}
		case '[':
			brackets++
		case ']':
			if brackets > 0 {
				brackets--
			}
		case ',':
			if braces == 0 && brackets == 0 {
				parts = append(parts, cur.String())
				cur.Reset()
				continue
			}
		}
		cur.WriteRune(r)
	}
	parts = append(parts, cur.String())

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, unquote(strings.TrimSpace(p)))
	}
	return cleanList(out)
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func toBool(val any) (value bool, present bool, err error) {
	switch v := val.(type) {
	case nil:
		return false, false, nil
	case bool:
		return v, true, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return false, false, nil
		}
		b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(v)))
		if err != nil {
			return false, false, fmt.Errorf("expected true or false, got %q", v)
		}
		return b, true, nil
	default:
		return false, false, fmt.Errorf("expected true or false, got %v", v)
	}
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
