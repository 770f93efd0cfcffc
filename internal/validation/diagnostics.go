package validation

import (
	"errors"
	"fmt"
	"strings"
)

// Severity ranks a diagnostic. Only a LoadError is fatal; everything else is
// reported alongside a best-effort registry.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns the lowercase name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Diagnostic is a non-fatal problem found while loading a record.
type Diagnostic interface {
	error
	Severity() Severity
	// RecordPath is the file the diagnostic refers to.
	RecordPath() string
}

// LoadError is returned when the root itself cannot be read. No registry is
// produced.
type LoadError struct {
	Root string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("cannot load %q: %v", e.Root, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// MalformedRecordError reports a record that was skipped because its metadata
// is unparseable or violates the apply mode invariant.
type MalformedRecordError struct {
	ID     string
	Path   string
	Reason string
	Err    error
}

func (e *MalformedRecordError) Error() string {
	msg := fmt.Sprintf("malformed record %q (%s): %s", e.ID, e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedRecordError) Unwrap() error      { return e.Err }
func (e *MalformedRecordError) Severity() Severity { return SeverityWarning }
func (e *MalformedRecordError) RecordPath() string { return e.Path }

// DuplicateIDError reports a record discarded because an earlier record
// (in lexicographic path order) already claimed its id.
type DuplicateIDError struct {
	ID        string
	Path      string
	FirstPath string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate id %q in %s (keeping %s)", e.ID, e.Path, e.FirstPath)
}

func (e *DuplicateIDError) Severity() Severity { return SeverityWarning }
func (e *DuplicateIDError) RecordPath() string { return e.Path }

// InvalidGlobError reports a single glob pattern dropped from a rule.
type InvalidGlobError struct {
	ID      string
	Path    string
	Pattern string
}

func (e *InvalidGlobError) Error() string {
	return fmt.Sprintf("rule %q (%s): invalid glob pattern %q dropped", e.ID, e.Path, e.Pattern)
}

func (e *InvalidGlobError) Severity() Severity { return SeverityWarning }
func (e *InvalidGlobError) RecordPath() string { return e.Path }

// DanglingReferenceWarning reports a command that references a rule id which
// is not in the registry. The command is still exposed.
type DanglingReferenceWarning struct {
	Command     string
	Path        string
	RuleID      string
	Suggestions []string
}

func (e *DanglingReferenceWarning) Error() string {
	msg := fmt.Sprintf("command %q references unknown rule %q", e.Command, e.RuleID)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

func (e *DanglingReferenceWarning) Severity() Severity { return SeverityInfo }
func (e *DanglingReferenceWarning) RecordPath() string { return e.Path }

// SeverityOf returns the severity of err. Errors that are not diagnostics
// are treated as SeverityError.
func SeverityOf(err error) Severity {
	var d Diagnostic
	if errors.As(err, &d) {
		return d.Severity()
	}
	return SeverityError
}

// Count tallies diagnostics by severity.
func Count(diags []error) map[Severity]int {
	counts := make(map[Severity]int, 3)
	for _, d := range diags {
		counts[SeverityOf(d)]++
	}
	return counts
}
