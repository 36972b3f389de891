package main

import (
	"errors"
	"fmt"
	"os/exec"
	"testing"

	"asvprep/internal/download"
)

func TestExitCodeMapping(t *testing.T) {
	if got := exitCode(errors.New("boom")); got != exitFailure {
		t.Fatalf("generic error: got %d", got)
	}
	if got := exitCode(fmt.Errorf("run: %w", errUnexpectedArgs)); got != exitUsage {
		t.Fatalf("usage error: got %d", got)
	}
	if got := exitCode(fmt.Errorf("stage 1 (corpus download): %w", download.ErrUnavailable)); got != exitUnavailable {
		t.Fatalf("unavailable downloader: got %d", got)
	}
}

func TestExitCodePassesThroughToolExitStatus(t *testing.T) {
	err := exec.Command("sh", "-c", "exit 7").Run()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if got := exitCode(fmt.Errorf("fetch: %w", err)); got != 7 {
		t.Fatalf("tool exit status: got %d", got)
	}
}

func TestRunCommandRejectsPositionalArgs(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"run", "bogus"})
	err := cmd.Execute()
	if !errors.Is(err, errUnexpectedArgs) {
		t.Fatalf("expected errUnexpectedArgs, got %v", err)
	}
	if exitCode(err) != exitUsage {
		t.Fatalf("positional args must map to the usage exit code")
	}
}
