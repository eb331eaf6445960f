package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/foundry/internal/config"
	"github.com/Iron-Ham/foundry/internal/project"
	"github.com/Iron-Ham/foundry/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status <project-id>",
	Short: "Show project status",
	Long: `Display the pipeline state of a project, the council progress and the
verdict.

With --watch the status is redrawn whenever the project changes, for
example while a council started from another terminal is running.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

var (
	statusWatch bool
	statusJSON  bool
)

// pollInterval is how often --watch re-reads backends that cannot be
// watched on disk.
const pollInterval = time.Second

// watchDebounce coalesces the create/rename events of one atomic write.
const watchDebounce = 50 * time.Millisecond

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Redraw when the project changes (Ctrl+C to stop)")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if statusWatch {
		// Another process writes the project; a cache would hide its changes.
		cfg.Store.CacheSize = 0
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := cmd.Context()
	id := args[0]
	out := cmd.OutOrStdout()
	styled := isStyled(out)

	p, err := a.updater.Get(ctx, id)
	if err != nil {
		return err
	}
	if statusJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}
	if !statusWatch {
		fmt.Fprint(out, renderStatus(p, newStyles(styled)))
		return nil
	}
	return watchStatus(ctx, a, p, out, styled)
}

// watchStatus redraws the status until ctx is cancelled. File-backed stores
// are watched with fsnotify; other backends are polled.
func watchStatus(ctx context.Context, a *app, p *project.Project, out io.Writer, styled bool) error {
	s := newStyles(styled)
	draw := func(p *project.Project) {
		if styled {
			fmt.Fprint(out, "\033[H\033[2J")
		}
		fmt.Fprint(out, renderStatus(p, s))
		fmt.Fprintln(out, s.muted.Render("\nWatching for changes... (Ctrl+C to stop)"))
	}
	draw(p)

	last := p.UpdatedAt
	reload := func() error {
		next, err := a.updater.Get(ctx, p.ID)
		if err != nil {
			return err
		}
		if !next.UpdatedAt.Equal(last) {
			last = next.UpdatedAt
			draw(next)
		}
		return nil
	}

	fs, ok := a.store.(*store.FileStore)
	if !ok {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := reload(); err != nil {
					return err
				}
			}
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	// Watch the directory: atomic renames replace the file's inode.
	if err := watcher.Add(fs.Dir()); err != nil {
		return fmt.Errorf("failed to watch %s: %w", fs.Dir(), err)
	}

	path := fs.Path(p.ID)
	debounce := time.NewTimer(watchDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Name != path || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce.Reset(watchDebounce)

		case <-debounce.C:
			if err := reload(); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("status watcher error", "error", err)
		}
	}
}
