// Package e2e provides testing infrastructure for end-to-end CLI tests.
// It includes a test harness for running CLI commands, fixture management,
// and utilities for setting up isolated test environments.
package e2e

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauern/rulebook/internal/cli"
	"github.com/klauern/rulebook/internal/logging"
)

// Result contains the outcome of running a CLI command.
type Result struct {
	// Stdout contains the captured standard output.
	Stdout string
	// Stderr contains the captured standard error (diagnostics, logs).
	Stderr string
	// Err is the error returned by the CLI command, if any.
	Err error
	// ExitCode is the inferred exit code (0 for success, 1 for error).
	ExitCode int
}

// Success returns true if the command completed without error.
func (r *Result) Success() bool {
	return r.Err == nil
}

// Harness provides a test harness for running E2E CLI tests.
// It manages environment isolation, temp directories, and output capture.
type Harness struct {
	t       *testing.T
	homeDir string
	env     map[string]string
}

// NewHarness creates a new E2E test harness.
// It points HOME and RULEBOOK_HOME at an isolated directory and makes
// ~/.cursor in that directory the only configured root.
func NewHarness(t *testing.T) *Harness {
	t.Helper()

	homeDir := t.TempDir()

	h := &Harness{
		t:       t,
		homeDir: homeDir,
		env:     make(map[string]string),
	}

	h.SetEnv("HOME", homeDir)
	h.SetEnv("RULEBOOK_HOME", filepath.Join(homeDir, ".rulebook"))
	h.SetEnv("RULEBOOK_ROOTS", h.UserRoot())
	h.SetEnv("RULEBOOK_OUTPUT_COLOR", "never")

	return h
}

// SetEnv sets an environment variable for CLI commands run through this harness.
// The environment will be restored after the test completes.
func (h *Harness) SetEnv(key, value string) {
	h.t.Helper()
	h.env[key] = value
	h.t.Setenv(key, value)
}

// HomeDir returns the isolated home directory for this test harness.
func (h *Harness) HomeDir() string {
	return h.homeDir
}

// UserRoot returns the user-level root (~/.cursor) inside the test home.
func (h *Harness) UserRoot() string {
	return filepath.Join(h.homeDir, ".cursor")
}

// Run executes a CLI command with the given arguments and captures the output.
func (h *Harness) Run(args ...string) *Result {
	h.t.Helper()
	return h.run(nil, args)
}

// RunWithStdin executes a CLI command with stdin input and captures output.
func (h *Harness) RunWithStdin(stdin string, args ...string) *Result {
	h.t.Helper()
	return h.run(&stdin, args)
}

func (h *Harness) run(stdin *string, args []string) *Result {
	h.t.Helper()

	// Prepend "rulebook" as the program name if not provided
	if len(args) == 0 || args[0] != "rulebook" {
		args = append([]string{"rulebook"}, args...)
	}

	if stdin != nil {
		oldStdin := os.Stdin
		stdinR, stdinW, err := os.Pipe()
		if err != nil {
			h.t.Fatalf("failed to create stdin pipe: %v", err)
		}
		go func() {
			defer func() { _ = stdinW.Close() }()
			_, _ = stdinW.WriteString(*stdin)
		}()
		os.Stdin = stdinR
		defer func() {
			os.Stdin = oldStdin
			_ = stdinR.Close()
		}()
	}

	oldStdout, oldStderr := os.Stdout, os.Stderr
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		h.t.Fatalf("failed to create stdout pipe: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		h.t.Fatalf("failed to create stderr pipe: %v", err)
	}
	os.Stdout, os.Stderr = stdoutW, stderrW

	// Read both pipes concurrently so large outputs cannot fill the pipe
	// buffer and block the command.
	stdoutBuf, stdoutDone := drain(stdoutR)
	stderrBuf, stderrDone := drain(stderrR)

	cmdErr := cli.Run(context.Background(), args)

	// Close writers to signal EOF to the reader goroutines
	if err := stdoutW.Close(); err != nil {
		h.t.Fatalf("failed to close stdout pipe writer: %v", err)
	}
	if err := stderrW.Close(); err != nil {
		h.t.Fatalf("failed to close stderr pipe writer: %v", err)
	}
	os.Stdout, os.Stderr = oldStdout, oldStderr

	if err := <-stdoutDone; err != nil {
		h.t.Fatalf("failed to read captured stdout: %v", err)
	}
	if err := <-stderrDone; err != nil {
		h.t.Fatalf("failed to read captured stderr: %v", err)
	}

	// The run pointed the default logger at the closed stderr pipe.
	logging.SetDefault(logging.New(logging.DefaultOptions()))

	exitCode := 0
	if cmdErr != nil {
		exitCode = 1
	}

	return &Result{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		Err:      cmdErr,
		ExitCode: exitCode,
	}
}

func drain(r *os.File) (*bytes.Buffer, <-chan error) {
	var buf bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(&buf, r)
		_ = r.Close()
		done <- err
	}()
	return &buf, done
}
