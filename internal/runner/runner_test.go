package runner

import (
	"context"
	"strings"
	"testing"

	"github.com/Iron-Ham/foundry/internal/errors"
	"github.com/Iron-Ham/foundry/internal/pipeline"
	"github.com/Iron-Ham/foundry/internal/project"
)

type fakeGenerator struct {
	prompts []string
	out     string
	err     error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.out, f.err
}

func newProject(phase project.Phase, step project.Step) *project.Project {
	return &project.Project{
		ID:          "p1",
		Title:       "Plant Pal",
		Description: "Reminds you to water plants",
		Phase:       phase,
		Artifacts: project.Artifacts{
			RefinedConcept: "A watering reminder app",
			PRD:            "# PRD\nMust send reminders.",
		},
		Pipeline: &project.PipelineState{
			CurrentPhase: phase,
			Phases: map[project.Phase]*project.PhaseState{
				phase: {Phase: phase, SubState: project.SubStateWorking, Step: step},
			},
		},
	}
}

func TestRunners_WriteOwnArtifact(t *testing.T) {
	tests := []struct {
		name   string
		runner pipeline.Runner
		phase  project.Phase
		step   project.Step
		get    func(a project.Artifacts) string
	}{
		{"spec", NewSpec(nil), project.PhaseSpec, "", func(a project.Artifacts) string { return a.Specs }},
		{"design system", NewDesign(nil), project.PhaseDesign, project.StepDesignSystem, func(a project.Artifacts) string { return a.DesignSystem }},
		{"main screens", NewDesign(nil), project.PhaseDesign, project.StepDesignMainScreens, func(a project.Artifacts) string { return a.MainScreens }},
		{"all screens", NewDesign(nil), project.PhaseDesign, project.StepDesignAllScreens, func(a project.Artifacts) string { return a.AllScreens }},
		{"dev", NewDev(nil), project.PhaseDev, "", func(a project.Artifacts) string { return a.DevPlan }},
		{"test", NewTest(nil), project.PhaseTest, "", func(a project.Artifacts) string { return a.TestReport }},
		{"deploy", NewDeploy(nil), project.PhaseDeploy, "", func(a project.Artifacts) string { return a.DeployReport }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{out: "  generated  "}
			setGenerator(tt.runner, gen)
			p := newProject(tt.phase, tt.step)

			if err := tt.runner.Run(context.Background(), p, ""); err != nil {
				t.Fatalf("Run() error: %v", err)
			}
			if got := tt.get(p.Artifacts); got != "generated" {
				t.Errorf("artifact = %q, want %q", got, "generated")
			}
			if len(gen.prompts) != 1 {
				t.Fatalf("Generate calls = %d, want 1", len(gen.prompts))
			}
			prompt := gen.prompts[0]
			for _, want := range []string{"Plant Pal", "A watering reminder app", "<artifact>"} {
				if !strings.Contains(prompt, want) {
					t.Errorf("prompt missing %q:\n%s", want, prompt)
				}
			}
			if strings.Contains(prompt, "Reviewer feedback") {
				t.Error("prompt without feedback should not ask for a revision")
			}
		})
	}
}

func setGenerator(r pipeline.Runner, gen Generator) {
	switch r := r.(type) {
	case *Runner:
		r.gen = gen
	case DesignRunner:
		r.gen = gen
	}
}

func TestRun_FeedbackRevisesPreviousDraft(t *testing.T) {
	gen := &fakeGenerator{out: "v2"}
	r := NewSpec(gen)
	p := newProject(project.PhaseSpec, "")
	p.Artifacts.Specs = "v1 draft"

	if err := r.Run(context.Background(), p, "add offline support"); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	prompt := gen.prompts[0]
	for _, want := range []string{"v1 draft", "add offline support", "Reviewer feedback"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if p.Artifacts.Specs != "v2" {
		t.Errorf("Specs = %q, want v2", p.Artifacts.Specs)
	}
}

func TestRun_FallsBackToDescription(t *testing.T) {
	gen := &fakeGenerator{out: "ok"}
	p := newProject(project.PhaseDev, "")
	p.Artifacts.RefinedConcept = ""

	if err := NewDev(gen).Run(context.Background(), p, ""); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !strings.Contains(gen.prompts[0], "Reminds you to water plants") {
		t.Error("prompt should use the description when no refined concept exists")
	}
}

func TestRun_Errors(t *testing.T) {
	t.Run("generator error", func(t *testing.T) {
		gen := &fakeGenerator{err: errors.New("model unavailable")}
		p := newProject(project.PhaseSpec, "")
		err := NewSpec(gen).Run(context.Background(), p, "")
		if err == nil || !strings.Contains(err.Error(), "model unavailable") {
			t.Fatalf("Run() error = %v", err)
		}
		if p.Artifacts.Specs != "" {
			t.Error("artifact should be untouched on error")
		}
	})

	t.Run("empty output", func(t *testing.T) {
		gen := &fakeGenerator{out: "   "}
		err := NewTest(gen).Run(context.Background(), newProject(project.PhaseTest, ""), "")
		if !errors.Is(err, ErrEmptyArtifact) {
			t.Fatalf("Run() error = %v, want ErrEmptyArtifact", err)
		}
	})

	t.Run("unknown step", func(t *testing.T) {
		gen := &fakeGenerator{out: "x"}
		err := NewSpec(gen).Run(context.Background(), newProject(project.PhaseSpec, project.StepDesignSystem), "")
		if !errors.Is(err, errors.ErrInvalidStep) {
			t.Fatalf("Run() error = %v, want ErrInvalidStep", err)
		}
		if len(gen.prompts) != 0 {
			t.Error("generator should not be called")
		}
	})
}

func TestDesignRunner_IsStepped(t *testing.T) {
	var r pipeline.Runner = NewDesign(&fakeGenerator{})
	s, ok := r.(pipeline.Stepped)
	if !ok {
		t.Fatal("design runner should implement pipeline.Stepped")
	}
	if s.FirstStep() != project.StepDesignSystem {
		t.Errorf("FirstStep() = %s", s.FirstStep())
	}
	if _, ok := r.(pipeline.StepDriven); ok {
		t.Error("design runner must not be step-driven")
	}
	if _, ok := pipeline.Runner(NewSpec(nil)).(pipeline.Stepped); ok {
		t.Error("spec runner should not be stepped")
	}
}

func TestRegisterDefaults(t *testing.T) {
	reg := pipeline.NewRegistry()
	RegisterDefaults(reg, &fakeGenerator{})

	want := []project.Phase{project.PhaseConcept, project.PhaseSpec, project.PhaseDesign, project.PhaseDev, project.PhaseTest, project.PhaseDeploy}
	got := reg.Phases()
	if len(got) != len(want) {
		t.Fatalf("Phases() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Phases()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
