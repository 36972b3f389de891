// Package download wraps the external resumable download tool used for
// corpus archives. wget and curl invocations are supported; anything else
// is handed the URL and destination as its last two arguments.
package download

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// ErrUnavailable marks a missing download tool. The CLI maps it to a
// dedicated exit code so callers can distinguish environment problems from
// stage failures.
var ErrUnavailable = errors.New("download tool unavailable")

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client shells out to a resumable downloader.
type Client struct {
	binary string
	exec   Executor
}

// New constructs a download client for the given binary.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("downloader binary required")
	}
	client := &Client{binary: binary, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Available reports whether the downloader binary can be resolved. The
// returned error wraps ErrUnavailable so it survives further wrapping.
func (c *Client) Available() error {
	if _, err := exec.LookPath(c.binary); err != nil {
		return fmt.Errorf("%w: %q not found in PATH", ErrUnavailable, c.binary)
	}
	return nil
}

// Fetch downloads url to dest, resuming a partial file when the tool
// supports it. The destination directory is created as needed.
func (c *Client) Fetch(ctx context.Context, url, dest string) error {
	if strings.TrimSpace(url) == "" {
		return errors.New("download url required")
	}
	if strings.TrimSpace(dest) == "" {
		return errors.New("download destination required")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}

	args := c.argsFor(url, dest)
	if err := c.exec.Run(ctx, c.binary, args, nil); err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	if _, err := os.Stat(dest); err != nil {
		return fmt.Errorf("fetch %s: downloader produced no file: %w", url, err)
	}
	return nil
}

func (c *Client) argsFor(url, dest string) []string {
	switch filepath.Base(c.binary) {
	case "wget":
		return []string{"-c", "-O", dest, url}
	case "curl":
		return []string{"-L", "-C", "-", "-o", dest, url}
	default:
		return []string{url, dest}
	}
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	forward := func(line string) {
		if onOutput != nil {
			onOutput(line)
			return
		}
		fmt.Fprintln(os.Stderr, line)
	}

	var wg sync.WaitGroup
	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			forward(scanner.Text())
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
