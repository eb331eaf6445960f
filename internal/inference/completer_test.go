package inference

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/foundry/internal/config"
	ferrors "github.com/Iron-Ham/foundry/internal/errors"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestCommandCompleter_PromptOnStdin(t *testing.T) {
	requireShell(t)
	c := NewCommandCompleter("sh", []string{"-c", `printf '<summary>'; cat; printf '</summary>'`})

	out, err := c.Complete(context.Background(), "echo me")
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if out != "<summary>echo me</summary>" {
		t.Errorf("Complete() = %q", out)
	}
}

func TestCommandCompleter_Failure(t *testing.T) {
	requireShell(t)
	c := NewCommandCompleter("sh", []string{"-c", "echo bad input >&2; exit 3"})

	_, err := c.Complete(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "bad input") {
		t.Errorf("error should include stderr, got %v", err)
	}
}

func TestCommandCompleter_EmptyOutput(t *testing.T) {
	requireShell(t)
	c := NewCommandCompleter("sh", []string{"-c", "cat >/dev/null"})

	if _, err := c.Complete(context.Background(), "x"); !errors.Is(err, ErrEmptyOutput) {
		t.Errorf("Complete() error = %v, want ErrEmptyOutput", err)
	}
}

func TestCommandCompleter_Timeout(t *testing.T) {
	requireShell(t)
	c := NewCommandCompleter("sh", []string{"-c", "exec sleep 5"}, WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := c.Complete(context.Background(), "x")
	if !errors.Is(err, ferrors.ErrTimeout) {
		t.Fatalf("Complete() error = %v, want timeout", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Error("timeout did not stop the command")
	}
}

func TestCommandCompleter_WorkDir(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	c := NewCommandCompleterFromConfig(config.InferenceConfig{Command: "sh", Args: []string{"-c", "pwd"}, WorkDir: dir})

	out, err := c.Complete(context.Background(), "x")
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if got, _ := filepath.EvalSymlinks(out); got != mustEvalSymlinks(t, dir) {
		t.Errorf("command ran in %q, want %q", out, dir)
	}
}

func mustEvalSymlinks(t *testing.T, path string) string {
	t.Helper()
	p, err := filepath.EvalSymlinks(path)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestNewCommandCompleterFromConfig(t *testing.T) {
	c := NewCommandCompleterFromConfig(config.InferenceConfig{Args: []string{"--print"}, Timeout: time.Minute})
	if c.command != "claude" {
		t.Errorf("command = %q, want claude default", c.command)
	}
	if c.timeout != time.Minute || len(c.args) != 1 {
		t.Errorf("completer = %+v", c)
	}
}
