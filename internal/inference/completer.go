package inference

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/Iron-Ham/foundry/internal/config"
	"github.com/Iron-Ham/foundry/internal/errors"
)

// Completer turns a prompt into model output.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// waitDelay bounds how long Complete waits for output pipes after the
// command is killed.
const waitDelay = 500 * time.Millisecond

// CommandCompleter runs an external command per call, writing the prompt to
// its stdin and returning its stdout.
type CommandCompleter struct {
	command string
	args    []string
	timeout time.Duration
	dir     string
}

// CommandOption configures a CommandCompleter.
type CommandOption func(*CommandCompleter)

// WithTimeout bounds each call. Zero disables the per-call timeout.
func WithTimeout(d time.Duration) CommandOption {
	return func(c *CommandCompleter) {
		c.timeout = d
	}
}

// WithDir sets the working directory of the command.
func WithDir(dir string) CommandOption {
	return func(c *CommandCompleter) {
		c.dir = dir
	}
}

// NewCommandCompleter returns a completer for command with fixed args.
func NewCommandCompleter(command string, args []string, opts ...CommandOption) *CommandCompleter {
	c := &CommandCompleter{
		command: command,
		args:    append([]string(nil), args...),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewCommandCompleterFromConfig builds a CommandCompleter from the
// inference config section.
func NewCommandCompleterFromConfig(cfg config.InferenceConfig) *CommandCompleter {
	command := cfg.Command
	if command == "" {
		command = "claude"
	}
	return NewCommandCompleter(command, cfg.Args, WithTimeout(cfg.Timeout), WithDir(cfg.ResolveWorkDir()))
}

// Complete implements Completer.
func (c *CommandCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.command, c.args...)
	cmd.Dir = c.dir
	cmd.Stdin = strings.NewReader(prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", errors.NewTimeoutError(c.command, time.Since(start).Round(time.Millisecond))
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%s failed: %w\nstderr: %s", c.command, err, strings.TrimSpace(stderr.String()))
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "", ErrEmptyOutput
	}
	return out, nil
}
