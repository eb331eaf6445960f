package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/foundry/internal/config"
	"github.com/Iron-Ham/foundry/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View foundry logs",
	Long: `View and filter the foundry log.

Every entry carries the project, phase, agent and council run it belongs to,
so one project's history can be pulled out of the shared log.

Examples:
  # Last 50 entries
  foundry logs

  # Everything one council run did
  foundry logs --project 6f1c2a --run 3b9e -n 0

  # Follow logs in real-time
  foundry logs -f

  # Warnings and errors from the last hour
  foundry logs --level warn --since 1h

  # Search for specific patterns
  foundry logs --grep "timeout|failed"`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsProject string
	logsPhase   string
	logsAgent   string
	logsRun     string
	logsTail    int
	logsFollow  bool
	logsLevel   string
	logsSince   string
	logsGrep    string
	logsJSON    bool
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVarP(&logsProject, "project", "p", "", "Only entries for this project ID")
	logsCmd.Flags().StringVar(&logsPhase, "phase", "", "Only entries for this phase")
	logsCmd.Flags().StringVar(&logsAgent, "agent", "", "Only entries for this council agent")
	logsCmd.Flags().StringVar(&logsRun, "run", "", "Only entries for this council run ID")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter entries matching pattern (regex)")
	logsCmd.Flags().BoolVar(&logsJSON, "json", false, "Output as JSON")
}

// logQuery is the parsed form of the logs flags.
type logQuery struct {
	filter logging.Filter
	grep   *regexp.Regexp
}

func newLogQuery(now time.Time) (logQuery, error) {
	q := logQuery{filter: logging.Filter{
		ProjectID: logsProject,
		Phase:     logsPhase,
		Agent:     logsAgent,
		RunID:     logsRun,
	}}
	if logsLevel != "" {
		q.filter.Level = logging.ParseLevel(logsLevel)
	}
	if logsSince != "" {
		d, err := time.ParseDuration(logsSince)
		if err != nil {
			return q, fmt.Errorf("invalid duration format: %w", err)
		}
		q.filter.Since = now.Add(-d)
	}
	if logsGrep != "" {
		re, err := regexp.Compile(logsGrep)
		if err != nil {
			return q, fmt.Errorf("invalid grep pattern: %w", err)
		}
		q.grep = re
	}
	return q, nil
}

// apply returns the entries passing the filter and the grep pattern. The
// pattern is matched against the message and every extra attribute.
func (q logQuery) apply(entries []logging.Entry) []logging.Entry {
	entries = logging.FilterEntries(entries, q.filter)
	if q.grep == nil {
		return entries
	}
	var out []logging.Entry
	for _, e := range entries {
		text := e.Message
		for k, v := range e.Attrs {
			text += fmt.Sprintf(" %s=%v", k, v)
		}
		if q.grep.MatchString(text) {
			out = append(out, e)
		}
	}
	return out
}

func runLogs(cmd *cobra.Command, args []string) error {
	q, err := newLogQuery(time.Now())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	logDir := config.LogDir()

	if logsFollow {
		return followLogs(cmd.Context(), logDir, q, out)
	}

	entries, err := logging.ReadEntries(logDir)
	if err != nil {
		return err
	}
	entries = q.apply(entries)
	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}

	if logsJSON {
		return logging.WriteJSON(out, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No matching log entries found.")
		fmt.Fprintln(out, "Logs are stored at:", filepath.Join(logDir, logging.LogFileName))
		return nil
	}
	return logging.WriteText(out, entries)
}

// followLogs prints entries appended to the log until ctx is cancelled.
// Rotation replaces the file, so the directory is watched and the file
// reopened from the start when it is recreated.
func followLogs(ctx context.Context, logDir string, q logQuery, out io.Writer) error {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	path := filepath.Join(logDir, logging.LogFileName)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(logDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", logDir, err)
	}

	t := &logTail{path: path}
	defer t.close()
	if err := t.open(io.SeekEnd); err != nil {
		return err
	}

	fmt.Fprintf(out, "Following %s... (Ctrl+C to stop)\n\n", path)

	emit := func() error {
		entries, err := t.read()
		if err != nil {
			return err
		}
		if logsJSON {
			for _, e := range q.apply(entries) {
				if err := logging.WriteJSON(out, []logging.Entry{e}); err != nil {
					return err
				}
			}
			return nil
		}
		return logging.WriteText(out, q.apply(entries))
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Name != path {
				continue
			}
			switch {
			case ev.Op&fsnotify.Create != 0:
				// Drain the old file before switching to the new one.
				if err := emit(); err != nil {
					return err
				}
				t.close()
				if err := t.open(io.SeekStart); err != nil {
					return err
				}
				if err := emit(); err != nil {
					return err
				}
			case ev.Op&fsnotify.Write != 0:
				if err := emit(); err != nil {
					return err
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("log watcher: %w", err)
		}
	}
}

// logTail reads complete lines appended to a file since the last read.
type logTail struct {
	path    string
	file    *os.File
	reader  *bufio.Reader
	partial string
}

func (t *logTail) open(whence int) error {
	f, err := os.Open(t.path)
	if os.IsNotExist(err) {
		// Created on first write; the Create event opens it.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	if _, err := f.Seek(0, whence); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to seek log file: %w", err)
	}
	t.file = f
	t.reader = bufio.NewReader(f)
	t.partial = ""
	return nil
}

func (t *logTail) read() ([]logging.Entry, error) {
	if t.file == nil {
		return nil, nil
	}
	var lines strings.Builder
	for {
		chunk, err := t.reader.ReadString('\n')
		if err == io.EOF {
			t.partial += chunk
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading log file: %w", err)
		}
		lines.WriteString(t.partial)
		lines.WriteString(chunk)
		t.partial = ""
	}
	return logging.ParseEntries(strings.NewReader(lines.String()))
}

func (t *logTail) close() {
	if t.file != nil {
		_ = t.file.Close()
		t.file = nil
	}
}
