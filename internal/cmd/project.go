package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/foundry/internal/project"
)

var newCmd = &cobra.Command{
	Use:   "new <title>",
	Short: "Create a project",
	Long: `Create a project from a product idea.

The project starts in the concept phase; run 'foundry start <id>' to begin
the pipeline.`,
	Args: cobra.ExactArgs(1),
	RunE: runNew,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Long: `List projects, most recently updated first.

Examples:
  # Projects whose title or id matches a glob
  foundry list --match "plant*"

  # Projects waiting in the design phase
  foundry list --phase design`,
	Aliases: []string{"ls"},
	RunE:    runList,
}

var (
	newDescription string
	listMatch      string
	listPhase      string
	listJSON       bool
)

func init() {
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(listCmd)

	newCmd.Flags().StringVarP(&newDescription, "description", "d", "", "Describe the idea")

	listCmd.Flags().StringVarP(&listMatch, "match", "m", "", "Only projects whose title or id matches this glob (case-insensitive)")
	listCmd.Flags().StringVar(&listPhase, "phase", "", "Only projects currently in this phase")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output as JSON")
}

func runNew(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		p, err := a.machine.CreateProject(ctx, args[0], newDescription)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Created project %s\n", p.ID)
		fmt.Fprintf(out, "Start the pipeline with: foundry start %s\n", p.ID)
		return nil
	})
}

func runList(cmd *cobra.Command, args []string) error {
	var matcher glob.Glob
	if listMatch != "" {
		g, err := glob.Compile(strings.ToLower(listMatch))
		if err != nil {
			return fmt.Errorf("invalid --match pattern: %w", err)
		}
		matcher = g
	}
	if listPhase != "" && !project.Phase(listPhase).IsValid() {
		return fmt.Errorf("unknown phase %q", listPhase)
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		projects, err := a.machine.ListProjects(ctx)
		if err != nil {
			return err
		}
		projects = filterProjects(projects, matcher, project.Phase(listPhase))

		out := cmd.OutOrStdout()
		if listJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(projects)
		}
		if len(projects) == 0 {
			fmt.Fprintln(out, "No projects found.")
			return nil
		}
		s := newStyles(isStyled(out))
		for _, p := range projects {
			fmt.Fprintln(out, renderProjectRow(p, s))
		}
		return nil
	})
}

// filterProjects keeps the projects matching the glob (on lowercased title
// or id) and currently in phase. A nil matcher or empty phase matches all.
func filterProjects(projects []*project.Project, matcher glob.Glob, phase project.Phase) []*project.Project {
	out := make([]*project.Project, 0, len(projects))
	for _, p := range projects {
		if matcher != nil && !matcher.Match(strings.ToLower(p.Title)) && !matcher.Match(strings.ToLower(p.ID)) {
			continue
		}
		if phase != "" && p.Phase != phase {
			continue
		}
		out = append(out, p)
	}
	return out
}

// withApp wires the app for one command and closes it afterwards. Close
// waits for any council run the command launched.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) (err error) {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(cmd.Context(), a)
}
