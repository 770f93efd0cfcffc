// Package archive packs loaded rules and commands into a portable tar.gz
// bundle and unpacks bundles into a root.
//
// A bundle holds the original record files under their root-relative paths
// (rules/..., commands/...), the sibling attachments of folder rules, and a
// manifest.json describing what was packed. Extracting a bundle into an
// empty directory yields a root that loads to the same rules and commands.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/klauern/rulebook/internal/model"
)

// ManifestVersion is the bundle format version written by Create.
const ManifestVersion = "1"

const manifestName = "manifest.json"

// ErrNoRecords is returned by Create when the filters leave nothing to pack.
var ErrNoRecords = errors.New("no rules or commands match the specified filters")

// Manifest describes the contents of a bundle.
type Manifest struct {
	Version      string            `json:"version"`
	CreatedAt    time.Time         `json:"created_at"`
	RuleCount    int               `json:"rule_count"`
	CommandCount int               `json:"command_count"`
	Rules        []ManifestRule    `json:"rules"`
	Commands     []ManifestCommand `json:"commands"`
}

// ManifestRule is a rule entry in the manifest.
type ManifestRule struct {
	ID         string    `json:"id"`
	Category   string    `json:"category,omitempty"`
	Mode       string    `json:"mode"`
	ModifiedAt time.Time `json:"modified_at"`
	// Files lists the bundle entries for the rule, record file first.
	Files []string `json:"files"`
}

// ManifestCommand is a command entry in the manifest.
type ManifestCommand struct {
	Path       string    `json:"path"`
	ModifiedAt time.Time `json:"modified_at"`
	File       string    `json:"file"`
}

// CreateOptions configures bundle creation.
type CreateOptions struct {
	Mode     model.ApplyMode // Keep only rules with this mode; drops commands (empty = all)
	Category string          // Keep only rules and commands in this category (empty = all)
	Since    time.Time       // Keep records modified at or after this time
	Before   time.Time       // Keep records modified strictly before this time
}

// ExtractOptions configures bundle extraction.
type ExtractOptions struct {
	TargetDir string // Root directory to extract into
	DryRun    bool   // Validate and report without writing
	Overwrite bool   // Replace files that already exist
}

// Create writes a tar.gz bundle of the filtered records to w and returns
// its manifest. Record files are read from disk at their loaded paths.
func Create(rules []model.Rule, commands []model.Command, w io.Writer, opts CreateOptions) (*Manifest, error) {
	rules, commands = filterRecords(rules, commands, opts)
	if len(rules) == 0 && len(commands) == 0 {
		return nil, ErrNoRecords
	}

	gzWriter := gzip.NewWriter(w)
	tarWriter := tar.NewWriter(gzWriter)

	manifest := &Manifest{
		Version:   ManifestVersion,
		CreatedAt: time.Now().UTC(),
		Rules:     make([]ManifestRule, 0, len(rules)),
		Commands:  make([]ManifestCommand, 0, len(commands)),
	}
	seen := make(map[string]bool)

	for _, r := range rules {
		sources := []string{r.Path}
		for _, a := range r.Attachments {
			sources = append(sources, filepath.Join(filepath.Dir(r.Path), a))
		}
		entry := ManifestRule{
			ID:         r.ID,
			Category:   r.Category,
			Mode:       r.Mode.String(),
			ModifiedAt: r.ModifiedAt,
		}
		for _, src := range sources {
			name, err := entryName(r.Root, src)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", r.QualifiedName(), err)
			}
			if seen[name] {
				continue
			}
			if err := addFile(tarWriter, name, src); err != nil {
				return nil, fmt.Errorf("rule %s: %w", r.QualifiedName(), err)
			}
			seen[name] = true
			entry.Files = append(entry.Files, name)
		}
		manifest.Rules = append(manifest.Rules, entry)
	}

	for _, c := range commands {
		name, err := entryName(c.Root, c.File)
		if err != nil {
			return nil, fmt.Errorf("command /%s: %w", c.Path, err)
		}
		if seen[name] {
			continue
		}
		if err := addFile(tarWriter, name, c.File); err != nil {
			return nil, fmt.Errorf("command /%s: %w", c.Path, err)
		}
		seen[name] = true
		manifest.Commands = append(manifest.Commands, ManifestCommand{
			Path:       c.Path,
			ModifiedAt: c.ModifiedAt,
			File:       name,
		})
	}

	manifest.RuleCount = len(manifest.Rules)
	manifest.CommandCount = len(manifest.Commands)

	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize manifest: %w", err)
	}
	header := &tar.Header{
		Name:    manifestName,
		Mode:    0o644,
		Size:    int64(len(manifestData)),
		ModTime: manifest.CreatedAt,
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return nil, fmt.Errorf("failed to write manifest header: %w", err)
	}
	if _, err := tarWriter.Write(manifestData); err != nil {
		return nil, fmt.Errorf("failed to write manifest data: %w", err)
	}

	if err := tarWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return manifest, nil
}

// maxEntrySize caps the size of a single bundle entry.
var maxEntrySize int64 = 4 << 20

// Extract reads a bundle from r and writes its files below opts.TargetDir.
// Every entry is validated and size-checked before anything is written.
// Files are written to a staging directory inside the target and renamed
// into place once all of them are staged: a bundle that fails validation or
// staging leaves the target untouched. It returns the manifest and the
// target paths written (or that would be written).
func Extract(r io.Reader, opts ExtractOptions) (*Manifest, []string, error) {
	if opts.TargetDir == "" {
		return nil, nil, errors.New("extract: target directory is required")
	}

	gzReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer func() { _ = gzReader.Close() }()

	tarReader := tar.NewReader(gzReader)

	var manifest *Manifest
	files := make(map[string][]byte)
	var order []string

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read tar header: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			return nil, nil, fmt.Errorf("entry %s: unsupported entry type", header.Name)
		}
		if header.Size > maxEntrySize {
			return nil, nil, fmt.Errorf("entry %s: %d bytes exceeds the %d byte limit", header.Name, header.Size, maxEntrySize)
		}

		data, err := io.ReadAll(io.LimitReader(tarReader, maxEntrySize+1))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read entry %s: %w", header.Name, err)
		}
		if int64(len(data)) > maxEntrySize {
			return nil, nil, fmt.Errorf("entry %s: exceeds the %d byte limit", header.Name, maxEntrySize)
		}

		if header.Name == manifestName {
			if err := json.Unmarshal(data, &manifest); err != nil {
				return nil, nil, fmt.Errorf("failed to parse manifest: %w", err)
			}
			continue
		}
		if err := checkEntryName(header.Name); err != nil {
			return nil, nil, err
		}
		if _, dup := files[header.Name]; !dup {
			order = append(order, header.Name)
		}
		files[header.Name] = data
	}

	if manifest == nil {
		return nil, nil, errors.New("archive missing manifest.json")
	}
	if manifest.Version != ManifestVersion {
		return nil, nil, fmt.Errorf("unsupported bundle version %q", manifest.Version)
	}

	targets := make([]string, 0, len(order))
	for _, name := range order {
		target := filepath.Join(opts.TargetDir, filepath.FromSlash(name))
		if info, err := os.Stat(target); err == nil {
			if info.IsDir() {
				return nil, nil, fmt.Errorf("%s is a directory", target)
			}
			if !opts.Overwrite {
				return nil, nil, fmt.Errorf("%s already exists", target)
			}
		}
		targets = append(targets, target)
	}
	if opts.DryRun {
		return manifest, targets, nil
	}

	if err := commit(opts.TargetDir, order, files); err != nil {
		return nil, nil, err
	}
	return manifest, targets, nil
}

// commit writes files into a staging directory under targetDir, then
// renames each one to its place below targetDir.
func commit(targetDir string, order []string, files map[string][]byte) error {
	if err := os.MkdirAll(targetDir, 0o750); err != nil {
		return fmt.Errorf("failed to create target directory: %w", err)
	}
	staging, err := os.MkdirTemp(targetDir, ".extract-*")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(staging) }()

	for _, name := range order {
		staged := filepath.Join(staging, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(staged), 0o750); err != nil {
			return fmt.Errorf("failed to stage %s: %w", name, err)
		}
		if err := os.WriteFile(staged, files[name], 0o600); err != nil {
			return fmt.Errorf("failed to stage %s: %w", name, err)
		}
	}

	for _, name := range order {
		target := filepath.Join(targetDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", target, err)
		}
		if err := os.Rename(filepath.Join(staging, filepath.FromSlash(name)), target); err != nil {
			return fmt.Errorf("failed to write file %s: %w", target, err)
		}
	}
	return nil
}

// filterRecords applies create options to rules and commands.
func filterRecords(rules []model.Rule, commands []model.Command, opts CreateOptions) ([]model.Rule, []model.Command) {
	inWindow := func(t time.Time) bool {
		// Since: include records modified at or after this time
		if !opts.Since.IsZero() && t.Before(opts.Since) {
			return false
		}
		// Before: include records modified strictly before this time
		if !opts.Before.IsZero() && !t.Before(opts.Before) {
			return false
		}
		return true
	}

	var keptRules []model.Rule
	for _, r := range rules {
		if opts.Mode != "" && r.Mode != opts.Mode {
			continue
		}
		if opts.Category != "" && r.Category != opts.Category {
			continue
		}
		if !inWindow(r.ModifiedAt) {
			continue
		}
		keptRules = append(keptRules, r)
	}

	if opts.Mode != "" {
		return keptRules, nil
	}
	var keptCommands []model.Command
	for _, c := range commands {
		if opts.Category != "" && c.Category() != opts.Category {
			continue
		}
		if !inWindow(c.ModifiedAt) {
			continue
		}
		keptCommands = append(keptCommands, c)
	}
	return keptRules, keptCommands
}

// entryName returns the slash-separated bundle path of file below root.
func entryName(root, file string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%s: record has no root", file)
	}
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return "", fmt.Errorf("%s: %w", file, err)
	}
	name := filepath.ToSlash(rel)
	if err := checkEntryName(name); err != nil {
		return "", err
	}
	return name, nil
}

// checkEntryName rejects entries that would land outside rules/ or
// commands/ of the target root.
func checkEntryName(name string) error {
	if name == "" || path.IsAbs(name) || strings.Contains(name, `\`) || path.Clean(name) != name {
		return fmt.Errorf("unsafe entry path %q", name)
	}
	first, _, _ := strings.Cut(name, "/")
	if !slices.Contains([]string{"rules", "commands"}, first) || !strings.Contains(name, "/") {
		return fmt.Errorf("unsafe entry path %q", name)
	}
	return nil
}

func addFile(tw *tar.Writer, name, src string) error {
	// #nosec G304 - src comes from a loaded record inside a configured root
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}
	header := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header for %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("failed to write data for %s: %w", name, err)
	}
	return nil
}
