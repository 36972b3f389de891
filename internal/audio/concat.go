// Package audio shells out to ffmpeg to build per-speaker concatenated
// enrollment audio, the input for averaged speaker embeddings.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) error
}

// Option configures the concatenator.
type Option func(*Concatenator)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Concatenator) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Concatenator joins multiple audio files into one via the ffmpeg concat
// demuxer.
type Concatenator struct {
	binary string
	exec   Executor
}

// New constructs a concatenator for the given ffmpeg binary.
func New(binary string, opts ...Option) (*Concatenator, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	c := &Concatenator{binary: binary, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Concat joins inputs into output in order. Every input must exist before
// ffmpeg is invoked so a bad enrollment list fails with a useful error
// instead of an ffmpeg diagnostic.
func (c *Concatenator) Concat(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return errors.New("concat requires at least one input")
	}
	for _, input := range inputs {
		if _, err := os.Stat(input); err != nil {
			return fmt.Errorf("concat input: %w", err)
		}
	}

	listFile, err := writeConcatList(inputs)
	if err != nil {
		return err
	}
	defer os.Remove(listFile)

	args := []string{"-nostdin", "-hide_banner", "-loglevel", "error", "-y",
		"-f", "concat", "-safe", "0", "-i", listFile, output}
	if err := c.exec.Run(ctx, c.binary, args); err != nil {
		return fmt.Errorf("ffmpeg concat %s: %w", filepath.Base(output), err)
	}
	return nil
}

func writeConcatList(inputs []string) (string, error) {
	tmp, err := os.CreateTemp("", "asvprep-concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create concat list: %w", err)
	}
	for _, input := range inputs {
		// Single quotes inside paths need the concat demuxer escape.
		escaped := strings.ReplaceAll(input, "'", `'\''`)
		if _, err := fmt.Fprintf(tmp, "file '%s'\n", escaped); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return "", fmt.Errorf("write concat list: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close concat list: %w", err)
	}
	return tmp.Name(), nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail != "" {
			return fmt.Errorf("%w: %s", err, detail)
		}
		return err
	}
	return nil
}
