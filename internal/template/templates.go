package template

// ruleTemplate scaffolds a RULE.md record. The metadata block carries only the
// keys that select the requested apply mode.
const ruleTemplate = `---
{{- if eq .Mode "always"}}
alwaysApply: true
{{- else if eq .Mode "intelligent"}}
description: {{quote .Description}}
{{- else if eq .Mode "file"}}
globs:
{{- range .Globs}}
  - {{quote .}}
{{- end}}
{{- else}}
alwaysApply: false
{{- end}}
---

# {{title .ID}}

{{- if eq .Mode "always"}}

Applied to every request.
{{- else if eq .Mode "intelligent"}}

{{.Description}}
{{- else if eq .Mode "file"}}

Applied when an active file matches {{join .Globs ", "}}.
{{- else}}

Applied only when mentioned with @{{.ID}}.
{{- end}}

## Guidelines

- Describe the first guideline here.

## Examples

Add example files next to this RULE.md; they are listed as attachments.
`

// commandTemplate scaffolds a command file with the conventional sections.
const commandTemplate = `---
description: {{quote .Description}}
{{- if .Rules}}
rules:
{{- range .Rules}}
  - {{.}}
{{- end}}
{{- end}}
---

# {{title .Name}}

## Overview

{{.Description}}

## Rules
{{range .Rules}}
- @{{.}}
{{- else}}
- None yet.
{{- end}}

## Steps

1. Describe the first step.
2. Describe the second step.

## Output

Describe the expected result.
`
