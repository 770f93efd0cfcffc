package e2e

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Fixture provides helpers for creating test fixtures in E2E tests.
type Fixture struct {
	t       *testing.T
	baseDir string
}

// NewFixture creates a new fixture helper rooted at the given directory.
func NewFixture(t *testing.T, baseDir string) *Fixture {
	t.Helper()
	return &Fixture{
		t:       t,
		baseDir: baseDir,
	}
}

// WriteFile writes content to a file relative to the fixture base directory.
// It creates parent directories as needed.
func (f *Fixture) WriteFile(relPath, content string) string {
	f.t.Helper()
	fullPath := filepath.Join(f.baseDir, relPath)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		f.t.Fatalf("failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(fullPath, []byte(content), 0o600); err != nil {
		f.t.Fatalf("failed to write file %s: %v", fullPath, err)
	}

	return fullPath
}

// WriteRule writes a folder rule at rules/<category>/<id>/RULE.md. The
// metadata lines go between --- markers; an empty metadata string writes a
// body-only (manual) rule.
func (f *Fixture) WriteRule(category, id, metadata, body string) string {
	f.t.Helper()

	var content string
	if metadata != "" {
		content = "---\n" + strings.TrimRight(metadata, "\n") + "\n---\n"
	}
	content += body

	return f.WriteFile(filepath.Join("rules", filepath.FromSlash(category), id, "RULE.md"), content)
}

// WriteCommand writes a command file at commands/<path>.md.
func (f *Fixture) WriteCommand(path, content string) string {
	f.t.Helper()
	return f.WriteFile(filepath.Join("commands", filepath.FromSlash(path)+".md"), content)
}

// Exists returns true if the file or directory exists.
func (f *Fixture) Exists(relPath string) bool {
	f.t.Helper()
	fullPath := filepath.Join(f.baseDir, relPath)
	_, err := os.Stat(fullPath)
	return err == nil
}

// UserFixture creates a fixture helper for the user root (~/.cursor in the
// test home), which NewHarness configures as the only root.
func (h *Harness) UserFixture() *Fixture {
	h.t.Helper()

	root := h.UserRoot()
	if err := os.MkdirAll(root, 0o750); err != nil {
		h.t.Fatalf("failed to create user root: %v", err)
	}

	return NewFixture(h.t, root)
}
