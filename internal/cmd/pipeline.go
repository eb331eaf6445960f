package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/foundry/internal/pipeline"
	"github.com/Iron-Ham/foundry/internal/project"
)

var startCmd = &cobra.Command{
	Use:   "start <project-id>",
	Short: "Start the pipeline",
	Long: `Start the pipeline at the concept phase.

The concept can be edited until the council is selected. Starting again
while still in the concept phase resets it.`,
	Args: cobra.ExactArgs(1),
	RunE: runStart,
}

var phaseCmd = &cobra.Command{
	Use:   "phase <project-id> <phase>",
	Short: "Start or restart a phase",
	Long: `Make <phase> current and run it. The command returns once the phase is
ready for review.

Phases: ` + strings.Join(phaseNames(), ", "),
	Args: cobra.ExactArgs(2),
	RunE: runPhase,
}

var conceptCmd = &cobra.Command{
	Use:   "concept",
	Short: "Work on the concept phase",
}

var conceptEditCmd = &cobra.Command{
	Use:   "edit <project-id>",
	Short: "Edit the title and description",
	Long:  `Edit the title and description. Allowed before the pipeline starts and while refining.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runConceptEdit,
}

var conceptStepCmd = &cobra.Command{
	Use:   "step <project-id> <step>",
	Short: "Advance the concept sub-flow",
	Long: `Move the concept phase to <step> and do its work:

  refining           back to editing the concept; drops any council verdict
  council_selection  summarize the concept and propose an evaluation panel
  council_running    run the selected panel; waits for the verdict
  prd_generation     draft the product requirements document (after the
                     council verdict has been reviewed)`,
	Args: cobra.ExactArgs(2),
	RunE: runConceptStep,
}

var reviewCmd = &cobra.Command{
	Use:   "review <project-id> approve|reject",
	Short: "Approve or reject the current phase",
	Long: `Apply a review decision to the phase awaiting review.

Approving advances the pipeline; approving deploy makes it live. Rejecting
re-runs the phase with your feedback, which is required outside the concept
phase.`,
	Args: cobra.ExactArgs(2),
	RunE: runReview,
}

var retryCmd = &cobra.Command{
	Use:   "retry <project-id>",
	Short: "Run the council again",
	Long:  `Discard the current council run and evaluate the concept again with the selected panel.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runRetry,
}

var (
	phaseFeedback      string
	reviewFeedback     string
	conceptTitle       string
	conceptDescription string
)

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(phaseCmd)
	rootCmd.AddCommand(conceptCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(retryCmd)
	conceptCmd.AddCommand(conceptEditCmd)
	conceptCmd.AddCommand(conceptStepCmd)

	phaseCmd.Flags().StringVarP(&phaseFeedback, "feedback", "f", "", "Feedback for the phase runner")
	reviewCmd.Flags().StringVarP(&reviewFeedback, "feedback", "f", "", "Reviewer feedback (required to reject)")
	conceptEditCmd.Flags().StringVarP(&conceptTitle, "title", "t", "", "New title (required)")
	conceptEditCmd.Flags().StringVarP(&conceptDescription, "description", "d", "", "New description")
	_ = conceptEditCmd.MarkFlagRequired("title")
}

func phaseNames() []string {
	var names []string
	for _, p := range project.Phases() {
		names = append(names, string(p))
	}
	return names
}

func runStart(cmd *cobra.Command, args []string) error {
	return mutate(cmd, func(ctx context.Context, m *pipeline.Machine) (*project.Project, error) {
		return m.StartPipeline(ctx, args[0])
	})
}

func runPhase(cmd *cobra.Command, args []string) error {
	return mutate(cmd, func(ctx context.Context, m *pipeline.Machine) (*project.Project, error) {
		return m.StartPhase(ctx, args[0], project.Phase(args[1]), phaseFeedback)
	})
}

func runConceptEdit(cmd *cobra.Command, args []string) error {
	return mutate(cmd, func(ctx context.Context, m *pipeline.Machine) (*project.Project, error) {
		return m.UpdateConcept(ctx, args[0], conceptTitle, conceptDescription)
	})
}

func runConceptStep(cmd *cobra.Command, args []string) error {
	return mutate(cmd, func(ctx context.Context, m *pipeline.Machine) (*project.Project, error) {
		return m.AdvanceConceptStep(ctx, args[0], project.Step(args[1]))
	})
}

func runReview(cmd *cobra.Command, args []string) error {
	return mutate(cmd, func(ctx context.Context, m *pipeline.Machine) (*project.Project, error) {
		return m.ReviewPhase(ctx, args[0], args[1], reviewFeedback)
	})
}

func runRetry(cmd *cobra.Command, args []string) error {
	return mutate(cmd, func(ctx context.Context, m *pipeline.Machine) (*project.Project, error) {
		return m.RetryCouncil(ctx, args[0])
	})
}

// mutate runs one pipeline operation and prints the resulting status. If
// the operation launched the council it waits for the run to settle first.
func mutate(cmd *cobra.Command, op func(ctx context.Context, m *pipeline.Machine) (*project.Project, error)) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		p, err := op(ctx, a.machine)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if councilLaunched(p) {
			fmt.Fprintf(out, "Council of %d agent(s) evaluating (deadline %s)...\n",
				p.Artifacts.CouncilProgress.TotalCount, a.engine.Deadline())
			a.engine.Wait()
			st, err := a.machine.GetStatus(ctx, p.ID)
			if err != nil {
				return err
			}
			p = st.Project
		}

		fmt.Fprint(out, renderStatus(p, newStyles(isStyled(out))))
		return nil
	})
}

func councilLaunched(p *project.Project) bool {
	cur := p.Pipeline.Current()
	return cur != nil && cur.Step == project.StepCouncilRunning &&
		cur.SubState == project.SubStateWorking && p.Artifacts.CouncilProgress != nil
}
