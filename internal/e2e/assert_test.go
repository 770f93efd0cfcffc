package e2e

import (
	"path/filepath"
	"testing"

	"github.com/klauern/rulebook/internal/model"
	"github.com/klauern/rulebook/internal/resolver"
)

func TestAssertComposed(t *testing.T) {
	included := []model.Rule{
		{ID: "tone", Body: "Be concise."},
		{ID: "strict-review", Body: "Check every line."},
	}
	commands := []model.Command{{Path: "review/pr", Body: "1. Read the diff"}}
	r := &Result{Stdout: resolver.Compose(included, nil, commands)}

	AssertComposed(t, r, []string{"tone", "strict-review"}, []string{"review/pr"})
	AssertOutputContains(t, r, "Check every line.")
}

func TestAssertComposed_Empty(t *testing.T) {
	r := &Result{Stdout: resolver.Compose(nil, nil, nil)}

	AssertSuccess(t, r)
	AssertComposed(t, r, nil, nil)
}

func TestFixtureWriteRule(t *testing.T) {
	f := NewFixture(t, t.TempDir())

	withMeta := f.WriteRule("lang", "go", `globs: "**/*.go"`, "Run gofmt.")
	AssertFileEquals(t, withMeta, "---\nglobs: \"**/*.go\"\n---\nRun gofmt.")

	bare := f.WriteRule("", "plain", "", "Body only.")
	AssertFileEquals(t, bare, "Body only.")
	if !f.Exists(filepath.Join("rules", "plain", "RULE.md")) {
		t.Error("uncategorized rule should live directly under rules/")
	}
}

func TestFixtureWriteCommand(t *testing.T) {
	f := NewFixture(t, t.TempDir())

	path := f.WriteCommand("review/pr", "1. Read the diff\n")

	AssertFileExists(t, path)
	AssertFileContains(t, path, "Read the diff")
	if want := filepath.Join("commands", "review", "pr.md"); !f.Exists(want) {
		t.Errorf("command should be written at %s", want)
	}
}
