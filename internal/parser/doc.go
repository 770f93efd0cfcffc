// Package parser provides the shared building blocks for reading rule and
// command records: frontmatter splitting, metadata decoding, file discovery
// and id validation. The record-specific parsers live in the rules and
// commands subpackages.
package parser
