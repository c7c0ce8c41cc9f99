package linecount

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultClocBinary is the executable looked up on PATH when none is configured.
const DefaultClocBinary = "cloc"

// CommandRunner executes a command and returns its standard output.
type CommandRunner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// Cloc classifies lines by invoking the external cloc tool and parsing its
// plain-text report.
type Cloc struct {
	binary   string
	language string
	timeout  time.Duration
	run      CommandRunner
}

// ClocOption configures a Cloc classifier.
type ClocOption func(*Cloc)

// WithCommandRunner replaces process execution, mainly for tests.
func WithCommandRunner(run CommandRunner) ClocOption {
	return func(c *Cloc) {
		c.run = run
	}
}

// NewCloc creates a cloc-backed classifier for language. A non-positive
// timeout leaves cloc's own default in place.
func NewCloc(binary, language string, timeout time.Duration, opts ...ClocOption) *Cloc {
	if binary == "" {
		binary = DefaultClocBinary
	}

	c := &Cloc{
		binary:   binary,
		language: language,
		timeout:  timeout,
		run:      execCommand,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// LookupCloc resolves binary on PATH.
func LookupCloc(binary string) (string, error) {
	if binary == "" {
		binary = DefaultClocBinary
	}

	resolved, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrClocNotFound, binary)
	}

	return resolved, nil
}

// Census runs cloc restricted to the tracked language on a single file.
func (c *Cloc) Census(ctx context.Context, path string) (LineCount, error) {
	out, err := c.run(ctx, filepath.Dir(path), c.binary,
		"--include-lang="+c.language, "--quiet", filepath.Base(path))
	if err != nil {
		return LineCount{}, err
	}

	return ParseCensus(out, c.language)
}

// DiffCensus runs cloc in diff mode on two files.
func (c *Cloc) DiffCensus(ctx context.Context, oldPath, newPath string) (DiffLineCount, error) {
	args := []string{"--diff", "--include-lang=" + c.language, "--quiet"}

	if c.timeout > 0 {
		secs := int(c.timeout / time.Second)
		if secs < 1 {
			secs = 1
		}

		args = append(args, "--diff-timeout", strconv.Itoa(secs))
	}

	args = append(args, oldPath, newPath)

	out, err := c.run(ctx, filepath.Dir(newPath), c.binary, args...)
	if err != nil {
		return DiffLineCount{}, err
	}

	return ParseDiff(out, c.language)
}

func execCommand(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stderr bytes.Buffer

	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrClocNotFound, name)
		}

		return nil, fmt.Errorf("%w: %w: %s", ErrClocFailed, err, bytes.TrimSpace(stderr.Bytes()))
	}

	return out, nil
}
