// Package security detects credentials and other sensitive data that should
// not be committed inside rule and command bodies.
package security

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/klauern/rulebook/internal/model"
	"github.com/klauern/rulebook/internal/validation"
)

// SensitivePattern represents a pattern to detect sensitive data
type SensitivePattern struct {
	Name        string
	Pattern     *regexp.Regexp
	Description string
	Severity    validation.Severity
}

// Detector performs sensitive data detection with configurable patterns.
type Detector struct {
	patterns []SensitivePattern
}

// DefaultPatterns returns the default built-in sensitive data patterns.
func DefaultPatterns() []SensitivePattern {
	return []SensitivePattern{
		{
			Name:        "API Key",
			Pattern:     regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*['\"]?[a-zA-Z0-9_\-]{16,}['\"]?`),
			Description: "API key pattern detected",
			Severity:    validation.SeverityWarning,
		},
		{
			Name:        "Token",
			Pattern:     regexp.MustCompile(`(?i)(token|access[_-]?token|auth[_-]?token)\s*[:=]\s*['\"]?[a-zA-Z0-9_\-\.]{16,}['\"]?`),
			Description: "Authentication token pattern detected",
			Severity:    validation.SeverityWarning,
		},
		{
			Name:        "Password",
			Pattern:     regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[:=]\s*['\"]?[a-zA-Z0-9_\-@!#$%^&*()]{8,}['\"]?`),
			Description: "Password pattern detected",
			Severity:    validation.SeverityWarning,
		},
		{
			Name:        "AWS Access Key",
			Pattern:     regexp.MustCompile(`(?i)(aws[_-]?access[_-]?key[_-]?id|aws[_-]?key)\s*[:=]\s*['\"]?AKIA[A-Z0-9]{16}['\"]?`),
			Description: "AWS access key detected",
			Severity:    validation.SeverityError,
		},
		{
			Name:        "AWS Secret Key",
			Pattern:     regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key|aws[_-]?secret)\s*[:=]\s*['\"]?[a-zA-Z0-9\/\+]{40}['\"]?`),
			Description: "AWS secret key detected",
			Severity:    validation.SeverityError,
		},
		{
			Name:        "GitHub Token",
			Pattern:     regexp.MustCompile(`(?i)(github[_-]?token|gh[_-]?token)\s*[:=]\s*['\"]?ghp_[a-zA-Z0-9]{36,}['\"]?`),
			Description: "GitHub personal access token detected",
			Severity:    validation.SeverityError,
		},
		{
			Name:        "Private Key",
			Pattern:     regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE\s+KEY-----`),
			Description: "Private key detected",
			Severity:    validation.SeverityError,
		},
		{
			Name:        "Generic Secret",
			Pattern:     regexp.MustCompile(`(?i)(secret|secret[_-]?key)\s*[:=]\s*['\"]?[a-zA-Z0-9_\-]{16,}['\"]?`),
			Description: "Generic secret pattern detected",
			Severity:    validation.SeverityWarning,
		},
		{
			Name:        "Bearer Token",
			Pattern:     regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_\-\.]{20,}`),
			Description: "Bearer token detected",
			Severity:    validation.SeverityWarning,
		},
		{
			Name:        "Database Connection String",
			Pattern:     regexp.MustCompile(`(?i)(postgres|postgresql|mysql|mongodb|redis):\/\/[^:\s]+:[^@\s]+@`),
			Description: "Database connection string with credentials detected",
			Severity:    validation.SeverityError,
		},
	}
}

// NewDetector creates a new detector with the given patterns.
// If patterns is nil or empty, uses DefaultPatterns().
func NewDetector(patterns []SensitivePattern) *Detector {
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	return &Detector{patterns: patterns}
}

// NewDetectorDefault creates a new detector with default patterns.
func NewDetectorDefault() *Detector {
	return NewDetector(nil)
}

// Finding is one match of a sensitive pattern inside a record body.
// It implements validation.Diagnostic so lint can report it next to load
// diagnostics.
type Finding struct {
	// Record is the rule id or command path, empty for free text.
	Record  string
	File    string
	Pattern string
	Line    int
	Column  int
	Content string
	Level   validation.Severity
	Message string
}

func (f *Finding) Error() string {
	where := fmt.Sprintf("line %d", f.Line)
	if f.Record != "" {
		where = fmt.Sprintf("%s, body line %d", f.Record, f.Line)
	}
	return fmt.Sprintf("%s at %s: %s", f.Message, where, f.Content)
}

func (f *Finding) Severity() validation.Severity { return f.Level }
func (f *Finding) RecordPath() string            { return f.File }

// Scan returns every finding in content. Lines are 1-indexed.
func (d *Detector) Scan(content string) []*Finding {
	if content == "" {
		return nil
	}

	var findings []*Finding
	for lineNum, line := range strings.Split(content, "\n") {
		if isFalsePositive(line) {
			continue
		}
		for _, pattern := range d.patterns {
			loc := pattern.Pattern.FindStringIndex(line)
			if loc == nil {
				continue
			}
			findings = append(findings, &Finding{
				Pattern: pattern.Name,
				Line:    lineNum + 1,
				Column:  loc[0] + 1,
				Content: truncateLine(line, 80),
				Level:   pattern.Severity,
				Message: pattern.Description,
			})
		}
	}
	return findings
}

// ScanRule scans the body of a rule.
func (d *Detector) ScanRule(rule model.Rule) []*Finding {
	findings := d.Scan(rule.Body)
	for _, f := range findings {
		f.Record = rule.ID
		f.File = rule.Path
	}
	return findings
}

// ScanCommand scans the body of a command.
func (d *Detector) ScanCommand(cmd model.Command) []*Finding {
	findings := d.Scan(cmd.Body)
	for _, f := range findings {
		f.Record = "/" + cmd.Path
		f.File = cmd.File
	}
	return findings
}

// ScanRecords scans every rule and command and returns the findings as
// diagnostics, in record order.
func (d *Detector) ScanRecords(rules []model.Rule, commands []model.Command) []error {
	var diags []error
	for _, r := range rules {
		for _, f := range d.ScanRule(r) {
			diags = append(diags, f)
		}
	}
	for _, c := range commands {
		for _, f := range d.ScanCommand(c) {
			diags = append(diags, f)
		}
	}
	return diags
}

// ScanContent scans content and folds the findings into a validation result:
// error-level findings invalidate it, the rest become warnings.
func (d *Detector) ScanContent(content string) *validation.Result {
	result := validation.NewResult()
	for _, f := range d.Scan(content) {
		if f.Level >= validation.SeverityError {
			result.AddError(&validation.Error{Field: "body", Message: f.Error()})
		} else {
			result.AddWarning(f.Error())
		}
	}
	return result
}

// isFalsePositive checks if a line is likely a false positive
func isFalsePositive(line string) bool {
	trimmed := strings.TrimSpace(line)

	// Shell and C-style comments. Markdown bullets ("* ") are not comments.
	if strings.HasPrefix(trimmed, "# ") ||
		strings.HasPrefix(trimmed, "//") ||
		strings.HasPrefix(trimmed, "/*") {
		return true
	}

	// Only skip when the value after : or = looks like a placeholder.
	if strings.ContainsAny(trimmed, ":=") {
		parts := strings.FieldsFunc(trimmed, func(r rune) bool {
			return r == ':' || r == '='
		})
		if len(parts) >= 2 {
			valuePart := strings.ToLower(strings.TrimSpace(parts[1]))
			if strings.Contains(valuePart, "your_") ||
				strings.Contains(valuePart, "<your") ||
				strings.Contains(valuePart, "placeholder") ||
				strings.Contains(valuePart, "example_") ||
				strings.Contains(valuePart, "${") ||
				strings.HasPrefix(valuePart, "\"xxx") ||
				strings.HasPrefix(valuePart, "'xxx") ||
				strings.Trim(valuePart, "x") == "" {
				return true
			}
		}
	}

	return false
}

// truncateLine truncates a line to the specified length with ellipsis
func truncateLine(line string, maxLen int) string {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) <= maxLen {
		return trimmed
	}
	return trimmed[:maxLen-3] + "..."
}

// ScanContent scans content with the default patterns.
func ScanContent(content string) *validation.Result {
	return NewDetectorDefault().ScanContent(content)
}
