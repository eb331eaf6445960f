// Package runner provides the default phase runners for the spec, design,
// dev, test and deploy phases.
//
// Each runner renders a prompt from the project's concept and the artifacts
// approved so far, asks a Generator for the phase output and stores it in
// the artifact field the phase owns. The design runner is step-aware: it
// renders the design system, the main screens or the full screen set
// depending on the current design step.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/Iron-Ham/foundry/internal/errors"
	"github.com/Iron-Ham/foundry/internal/logging"
	"github.com/Iron-Ham/foundry/internal/pipeline"
	"github.com/Iron-Ham/foundry/internal/project"
)

// ErrEmptyArtifact is returned when the generator produced no output.
var ErrEmptyArtifact = errors.New("generator returned an empty artifact")

// Generator produces free-form text for a prompt. inference.Provider
// implements it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Stage is one unit of generated work: a prompt template and the artifact
// field its output is written to.
type Stage struct {
	Name     string
	Template *template.Template
	Output   func(a *project.Artifacts) *string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used by the runner.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Runner runs the stage matching the phase's current step. Phases without a
// sub-flow have a single stage keyed by the empty step.
type Runner struct {
	phase  project.Phase
	gen    Generator
	stages map[project.Step]Stage
	logger *logging.Logger
}

func newRunner(phase project.Phase, gen Generator, stages map[project.Step]Stage, opts ...Option) *Runner {
	r := &Runner{
		phase:  phase,
		gen:    gen,
		stages: stages,
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// promptData is what every stage template can reference.
type promptData struct {
	Title        string
	Description  string
	Concept      string
	PRD          string
	Specs        string
	DesignSystem string
	MainScreens  string
	AllScreens   string
	DevPlan      string
	TestReport   string
	Previous     string
	Feedback     string
}

// Run implements pipeline.Runner.
func (r *Runner) Run(ctx context.Context, p *project.Project, feedback string) error {
	var step project.Step
	if cur := p.Pipeline.Current(); cur != nil {
		step = cur.Step
	}
	stage, ok := r.stages[step]
	if !ok {
		return errors.NewValidationError("runner has no stage for step").
			WithField("step").WithValue(step).WithCause(errors.ErrInvalidStep)
	}

	out := stage.Output(&p.Artifacts)
	concept := p.Artifacts.RefinedConcept
	if concept == "" {
		concept = p.Description
	}
	data := promptData{
		Title:        p.Title,
		Description:  p.Description,
		Concept:      concept,
		PRD:          p.Artifacts.PRD,
		Specs:        p.Artifacts.Specs,
		DesignSystem: p.Artifacts.DesignSystem,
		MainScreens:  p.Artifacts.MainScreens,
		AllScreens:   p.Artifacts.AllScreens,
		DevPlan:      p.Artifacts.DevPlan,
		TestReport:   p.Artifacts.TestReport,
		Feedback:     feedback,
	}
	// Without feedback the stage starts over; with it, the model revises.
	if feedback != "" {
		data.Previous = *out
	}

	var buf bytes.Buffer
	if err := stage.Template.Execute(&buf, data); err != nil {
		return fmt.Errorf("render %s prompt: %w", stage.Name, err)
	}

	log := r.logger.WithProject(p.ID).WithPhase(string(r.phase))
	log.Debug("generating artifact", "stage", stage.Name, "revision", feedback != "")

	text, err := r.gen.Generate(ctx, buf.String())
	if err != nil {
		return fmt.Errorf("generate %s: %w", stage.Name, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyArtifact
	}
	*out = text
	log.Info("artifact generated", "stage", stage.Name, "bytes", len(text))
	return nil
}

// Phase returns the phase the runner serves.
func (r *Runner) Phase() project.Phase { return r.phase }

// DesignRunner is the design phase runner. Its phase starts at the design
// system step.
type DesignRunner struct {
	*Runner
}

// FirstStep implements pipeline.Stepped.
func (DesignRunner) FirstStep() project.Step { return project.StepDesignSystem }

// NewSpec returns the spec phase runner.
func NewSpec(gen Generator, opts ...Option) *Runner {
	return newRunner(project.PhaseSpec, gen, map[project.Step]Stage{
		"": {Name: "specs", Template: specTemplate, Output: func(a *project.Artifacts) *string { return &a.Specs }},
	}, opts...)
}

// NewDesign returns the step-aware design phase runner.
func NewDesign(gen Generator, opts ...Option) DesignRunner {
	system := Stage{Name: "design_system", Template: designSystemTemplate, Output: func(a *project.Artifacts) *string { return &a.DesignSystem }}
	return DesignRunner{newRunner(project.PhaseDesign, gen, map[project.Step]Stage{
		project.StepDesignSystem:      system,
		project.StepDesignMainScreens: {Name: "main_screens", Template: mainScreensTemplate, Output: func(a *project.Artifacts) *string { return &a.MainScreens }},
		project.StepDesignAllScreens:  {Name: "all_screens", Template: allScreensTemplate, Output: func(a *project.Artifacts) *string { return &a.AllScreens }},
		// A design phase restarted without a step renders the system again.
		"": system,
	}, opts...)}
}

// NewDev returns the dev phase runner.
func NewDev(gen Generator, opts ...Option) *Runner {
	return newRunner(project.PhaseDev, gen, map[project.Step]Stage{
		"": {Name: "dev_plan", Template: devTemplate, Output: func(a *project.Artifacts) *string { return &a.DevPlan }},
	}, opts...)
}

// NewTest returns the test phase runner.
func NewTest(gen Generator, opts ...Option) *Runner {
	return newRunner(project.PhaseTest, gen, map[project.Step]Stage{
		"": {Name: "test_report", Template: testTemplate, Output: func(a *project.Artifacts) *string { return &a.TestReport }},
	}, opts...)
}

// NewDeploy returns the deploy phase runner.
func NewDeploy(gen Generator, opts ...Option) *Runner {
	return newRunner(project.PhaseDeploy, gen, map[project.Step]Stage{
		"": {Name: "deploy_report", Template: deployTemplate, Output: func(a *project.Artifacts) *string { return &a.DeployReport }},
	}, opts...)
}

// RegisterDefaults registers the default runner for every phase after
// concept.
func RegisterDefaults(reg *pipeline.Registry, gen Generator, opts ...Option) {
	reg.Register(project.PhaseSpec, NewSpec(gen, opts...))
	reg.Register(project.PhaseDesign, NewDesign(gen, opts...))
	reg.Register(project.PhaseDev, NewDev(gen, opts...))
	reg.Register(project.PhaseTest, NewTest(gen, opts...))
	reg.Register(project.PhaseDeploy, NewDeploy(gen, opts...))
}
