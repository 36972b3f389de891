package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"asvprep/internal/download"
)

// Exit codes beyond the conventional 1: 2 marks a usage error, 3 a
// missing download tool. Scripted callers rely on the distinction to
// separate environment problems from stage failures.
const (
	exitFailure     = 1
	exitUsage       = 2
	exitUnavailable = 3
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, errUnexpectedArgs):
		return exitUsage
	case errors.Is(err, download.ErrUnavailable):
		return exitUnavailable
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return exitErr.ExitCode()
	}
	return exitFailure
}
