package pipeline

import (
	"context"
	"sync"

	"github.com/Iron-Ham/foundry/internal/project"
)

// Runner performs one phase's work. It may write p.Artifacts; p is a
// snapshot and the machine merges its artifacts back on success. feedback
// is the reviewer feedback that restarted the phase, if any.
type Runner interface {
	Run(ctx context.Context, p *project.Project, feedback string) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, p *project.Project, feedback string) error

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, p *project.Project, feedback string) error {
	return f(ctx, p, feedback)
}

// StepDriven marks a runner whose phase is advanced step by step by explicit
// operations instead of by running the phase. Starting such a phase leaves
// it working.
type StepDriven interface {
	StepDriven()
}

// Stepped is implemented by runners of phases with an internal sub-flow.
// FirstStep seeds the phase step when the phase starts fresh.
type Stepped interface {
	FirstStep() project.Step
}

// ConceptRunner is the concept phase's runner. Its work happens in
// AdvanceConceptStep.
type ConceptRunner struct{}

// Run implements Runner and does nothing.
func (ConceptRunner) Run(context.Context, *project.Project, string) error { return nil }

// StepDriven implements StepDriven.
func (ConceptRunner) StepDriven() {}

// FirstStep implements Stepped.
func (ConceptRunner) FirstStep() project.Step { return project.StepRefining }

// Registry maps phases to runners. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	runners map[project.Phase]Runner
}

// NewRegistry returns a registry with the concept runner registered.
func NewRegistry() *Registry {
	r := &Registry{runners: make(map[project.Phase]Runner)}
	r.Register(project.PhaseConcept, ConceptRunner{})
	return r
}

// Register sets the runner for phase, replacing any previous one.
func (r *Registry) Register(phase project.Phase, runner Runner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runners[phase] = runner
}

// Lookup returns the runner for phase.
func (r *Registry) Lookup(phase project.Phase) (Runner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	runner, ok := r.runners[phase]
	return runner, ok
}

// Phases returns the phases that have a runner, in pipeline order.
func (r *Registry) Phases() []project.Phase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []project.Phase
	for _, phase := range project.Phases() {
		if _, ok := r.runners[phase]; ok {
			out = append(out, phase)
		}
	}
	return out
}
