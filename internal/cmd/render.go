package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/Iron-Ham/foundry/internal/project"
)

var (
	primaryColor   = lipgloss.Color("#A78BFA") // Purple
	secondaryColor = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#F87171") // Red
	mutedColor     = lipgloss.Color("#9CA3AF") // Gray
	blueColor      = lipgloss.Color("#60A5FA") // Blue
)

// styles holds the text styles for command output. The zero value renders
// plain text.
type styles struct {
	title    lipgloss.Style
	label    lipgloss.Style
	muted    lipgloss.Style
	working  lipgloss.Style
	review   lipgloss.Style
	approved lipgloss.Style
	failed   lipgloss.Style
	box      lipgloss.Style
}

func newStyles(styled bool) styles {
	if !styled {
		return styles{}
	}
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(primaryColor),
		label:    lipgloss.NewStyle().Bold(true),
		muted:    lipgloss.NewStyle().Foreground(mutedColor),
		working:  lipgloss.NewStyle().Foreground(blueColor),
		review:   lipgloss.NewStyle().Foreground(warningColor).Bold(true),
		approved: lipgloss.NewStyle().Foreground(secondaryColor),
		failed:   lipgloss.NewStyle().Foreground(errorColor),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1),
	}
}

// isStyled reports whether w is a terminal that should get colored output.
func isStyled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (s styles) subState(sub project.SubState) string {
	text := string(sub)
	switch sub {
	case project.SubStateWorking:
		return s.working.Render(text)
	case project.SubStateReview:
		return s.review.Render(text)
	case project.SubStateApproved:
		return s.approved.Render(text)
	case project.SubStateRejected:
		return s.failed.Render(text)
	}
	return text
}

func (s styles) agentStatus(st project.AgentStatus) string {
	text := string(st)
	switch st {
	case project.AgentRunning:
		return s.working.Render(text)
	case project.AgentCompleted:
		return s.approved.Render(text)
	case project.AgentFailed:
		return s.failed.Render(text)
	}
	return s.muted.Render(text)
}

// renderStatus renders the project, its pipeline and the council state.
func renderStatus(p *project.Project, s styles) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", s.title.Render(p.Title), s.muted.Render("("+p.ID+")"))
	if p.Description != "" {
		fmt.Fprintf(&b, "%s\n", p.Description)
	}
	b.WriteByte('\n')

	if p.Pipeline == nil {
		fmt.Fprintf(&b, "%s not started\n", s.label.Render("Pipeline:"))
		return b.String()
	}

	b.WriteString(renderPhases(p.Pipeline, s))
	b.WriteByte('\n')

	if cur := p.Pipeline.Current(); cur != nil {
		fmt.Fprintf(&b, "%s %s / %s", s.label.Render("Current:"), cur.Phase, s.subState(cur.SubState))
		if cur.Step != "" {
			fmt.Fprintf(&b, " / %s", cur.Step)
		}
		b.WriteByte('\n')
		if cur.Feedback != "" {
			fmt.Fprintf(&b, "%s %s\n", s.label.Render("Feedback:"), cur.Feedback)
		}
	}

	if cp := p.Artifacts.CouncilProgress; cp != nil {
		b.WriteByte('\n')
		b.WriteString(renderCouncil(cp, s))
	}
	if v := p.Artifacts.CouncilVerdict; v != nil {
		b.WriteByte('\n')
		b.WriteString(renderVerdict(v, s))
	}
	if names := artifactNames(p.Artifacts); len(names) > 0 {
		fmt.Fprintf(&b, "\n%s %s\n", s.label.Render("Artifacts:"), strings.Join(names, ", "))
	}
	return b.String()
}

func renderPhases(ps *project.PipelineState, s styles) string {
	var parts []string
	for _, phase := range project.Phases() {
		st, ok := ps.Phases[phase]
		name := string(phase)
		switch {
		case !ok:
			parts = append(parts, s.muted.Render("○ "+name))
		case st.SubState == project.SubStateApproved:
			parts = append(parts, s.approved.Render("● "+name))
		case phase == ps.CurrentPhase:
			parts = append(parts, s.review.Render("◉ "+name))
		default:
			parts = append(parts, s.muted.Render("◌ "+name))
		}
	}
	return strings.Join(parts, s.muted.Render(" → ")) + "\n"
}

func renderCouncil(cp *project.CouncilProgress, s styles) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d/%d settled, synthesis %s %s\n",
		s.label.Render("Council:"), cp.CompletedCount, cp.TotalCount, cp.SynthesisStatus, s.muted.Render("(run "+cp.RunID+")"))
	for _, a := range cp.Agents {
		fmt.Fprintf(&b, "  %-20s %s", a.AgentName, s.agentStatus(a.Status))
		if a.Evaluation != nil {
			fmt.Fprintf(&b, " %.1f", a.Evaluation.Score)
		}
		if a.Error != "" {
			fmt.Fprintf(&b, " %s", s.muted.Render(a.Error))
		}
		b.WriteByte('\n')
	}
	if cp.SynthesisError != "" {
		fmt.Fprintf(&b, "  %s\n", s.failed.Render(cp.SynthesisError))
	}
	return b.String()
}

// renderVerdict renders the synthesized verdict inside a box.
func renderVerdict(v *project.Verdict, s styles) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %.1f/10  %s  confidence %.2f\n",
		s.label.Render("Verdict:"), v.OverallScore, s.review.Render(string(v.VerdictLevel)), v.Confidence)
	if v.NarrativeFallback {
		b.WriteString(s.muted.Render("(narrative generated without the model)") + "\n")
	}
	if v.ExecutiveSummary != "" {
		fmt.Fprintf(&b, "\n%s\n", v.ExecutiveSummary)
	}
	if v.KeyInsight != "" {
		fmt.Fprintf(&b, "\n%s %s\n", s.label.Render("Key insight:"), v.KeyInsight)
	}

	if len(v.DimensionScores) > 0 {
		fmt.Fprintf(&b, "\n%s\n", s.label.Render("Dimensions:"))
		for _, d := range v.DimensionScores {
			fmt.Fprintf(&b, "  %-20s %4.1f  %s\n", d.Dimension, d.Score, s.muted.Render(fmt.Sprintf("weight %.2f, %d reporter(s)", d.Weight, d.Reporters)))
		}
	}
	writeAreas(&b, s, "Consensus:", v.ConsensusAreas)
	writeAreas(&b, s, "Disagreement:", v.DisagreementAreas)
	writeList(&b, s, "Missing dimensions:", v.MissingDimensions)
	writeList(&b, s, "Recommended actions:", v.RecommendedActions)
	writeList(&b, s, "Risks:", v.Risks)
	writeList(&b, s, "Open questions:", v.OpenQuestions)

	return s.box.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}

func writeAreas(b *strings.Builder, s styles, label string, areas []project.AgreementArea) {
	if len(areas) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", s.label.Render(label))
	for _, a := range areas {
		fmt.Fprintf(b, "  %-20s spread %.1f (%.0f–%.0f)\n", a.Dimension, a.Spread, a.Min, a.Max)
	}
}

func writeList(b *strings.Builder, s styles, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", s.label.Render(label))
	for _, item := range items {
		fmt.Fprintf(b, "  - %s\n", item)
	}
}

func artifactNames(a project.Artifacts) []string {
	var names []string
	for _, f := range []struct {
		name string
		set  bool
	}{
		{"refined_concept", a.RefinedConcept != ""},
		{"selected_council", len(a.SelectedCouncil) > 0},
		{"prd", a.PRD != ""},
		{"specs", a.Specs != ""},
		{"design_system", a.DesignSystem != ""},
		{"main_screens", a.MainScreens != ""},
		{"all_screens", a.AllScreens != ""},
		{"dev_plan", a.DevPlan != ""},
		{"test_report", a.TestReport != ""},
		{"deploy_report", a.DeployReport != ""},
	} {
		if f.set {
			names = append(names, f.name)
		}
	}
	return names
}

// renderProjectRow renders one line of `foundry list`.
func renderProjectRow(p *project.Project, s styles) string {
	state := s.muted.Render("not started")
	if cur := p.Pipeline.Current(); cur != nil {
		state = string(cur.Phase) + "/" + s.subState(cur.SubState)
		if cur.Step != "" {
			state += "/" + string(cur.Step)
		}
	}
	return fmt.Sprintf("%-36s  %-30s  %s", p.ID, truncate(p.Title, 30), state)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
