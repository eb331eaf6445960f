package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/foundry/internal/decision"
	"github.com/Iron-Ham/foundry/internal/errors"
	"github.com/Iron-Ham/foundry/internal/event"
	"github.com/Iron-Ham/foundry/internal/logging"
	"github.com/Iron-Ham/foundry/internal/project"
	"github.com/Iron-Ham/foundry/internal/store"
)

// Machine is the phase state machine. It holds no per-project state; every
// operation reads and writes the project through the store.Updater.
type Machine struct {
	cfg    Config
	bus    *event.Bus
	logger *logging.Logger
	now    func() time.Time
}

// New creates a Machine with the given collaborators and options.
func New(cfg Config, opts ...Option) (*Machine, error) {
	if cfg.Updater == nil {
		return nil, errors.New("pipeline: Updater is required")
	}
	if cfg.Engine == nil {
		return nil, errors.New("pipeline: Engine is required")
	}
	if cfg.Assistant == nil {
		return nil, errors.New("pipeline: Assistant is required")
	}
	if cfg.Runners == nil {
		cfg.Runners = NewRegistry()
	}
	if _, ok := cfg.Runners.Lookup(project.PhaseConcept); !ok {
		cfg.Runners.Register(project.PhaseConcept, ConceptRunner{})
	}
	if cfg.Decision == nil {
		cfg.Decision = decision.Default()
	}
	if cfg.MaxPanelSize <= 0 {
		cfg.MaxPanelSize = DefaultMaxPanelSize
	}

	m := &Machine{
		cfg:    cfg,
		logger: logging.NopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	cfg.Engine.SetVerdictHook(m.onVerdict)
	return m, nil
}

// followup is long-running work that continues an operation after its first
// write has been committed and the project lock released.
type followup func(ctx context.Context, committed *project.Project) (*project.Project, error)

// tx collects what an operation wants to happen after its write commits.
type tx struct {
	events []event.Event
	next   followup
}

// transact applies fn under the project lock. A validation error from fn
// aborts the write. After the commit it publishes the phase change plus any
// queued events and runs the followup, if fn set one.
func (m *Machine) transact(ctx context.Context, id string, fn func(p *project.Project, t *tx) error) (*project.Project, error) {
	t := &tx{}
	saved := false
	p, err := m.cfg.Updater.Update(ctx, id, func(p *project.Project) error {
		if err := fn(p, t); err != nil {
			return err
		}
		now := m.now()
		p.UpdatedAt = now
		if p.Pipeline != nil {
			p.Pipeline.UpdatedAt = now
		}
		saved = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if saved {
		for _, e := range t.events {
			m.bus.Publish(e)
		}
		m.publishPhase(p)
	}
	if t.next != nil {
		// The followup must record its outcome even if the caller goes away.
		return t.next(context.WithoutCancel(ctx), p)
	}
	return p, nil
}

func (m *Machine) publishPhase(p *project.Project) {
	if e := phaseChanged(p); e != nil {
		m.bus.Publish(e)
	}
}

func phaseChanged(p *project.Project) event.Event {
	cur := p.Pipeline.Current()
	if cur == nil {
		return nil
	}
	return event.NewPhaseChangedEvent(p.ID, string(cur.Phase), string(cur.SubState), string(cur.Step), cur.Feedback)
}

func (m *Machine) projectLogger(p *project.Project) *logging.Logger {
	log := m.logger.WithProject(p.ID)
	if p.Pipeline != nil {
		log = log.WithPhase(string(p.Pipeline.CurrentPhase))
	}
	return log
}

// CreateProject stores a new project in the concept phase. The pipeline is
// not started.
func (m *Machine) CreateProject(ctx context.Context, title, description string) (*project.Project, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.NewValidationError("title is required").WithField("title")
	}
	now := m.now()
	p := &project.Project{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(description),
		Phase:       project.PhaseConcept,
		Metadata:    map[string]string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.cfg.Updater.Create(ctx, p); err != nil {
		return nil, err
	}
	m.logger.WithProject(p.ID).Info("project created", "title", p.Title)
	return p.Clone(), nil
}

// UpdateConcept edits the title and description. It is allowed before the
// pipeline starts and while the concept is being refined.
func (m *Machine) UpdateConcept(ctx context.Context, id, title, description string) (*project.Project, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.NewValidationError("title is required").WithField("title")
	}
	return m.transact(ctx, id, func(p *project.Project, _ *tx) error {
		if p.Pipeline != nil {
			cur := p.Pipeline.Current()
			if p.Pipeline.CurrentPhase != project.PhaseConcept {
				return errors.NewValidationError("concept can only be edited in the concept phase").
					WithField("phase").WithValue(p.Pipeline.CurrentPhase).WithCause(errors.ErrWrongPhase)
			}
			if cur.Step != project.StepRefining {
				return errors.NewValidationError("concept can only be edited while refining").
					WithField("step").WithValue(cur.Step).WithCause(errors.ErrInvalidStep)
			}
		}
		p.Title = title
		p.Description = strings.TrimSpace(description)
		return nil
	})
}

// ListProjects returns every project, most recently updated first.
func (m *Machine) ListProjects(ctx context.Context) ([]*project.Project, error) {
	return m.cfg.Updater.Store().List(ctx)
}

// GetStatus returns a snapshot of the project and its pipeline.
func (m *Machine) GetStatus(ctx context.Context, id string) (*Status, error) {
	p, err := m.cfg.Updater.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Status{
		Project:  p,
		Pipeline: p.Pipeline,
		Current:  p.Pipeline.Current(),
	}, nil
}

// StartPipeline puts the project at (concept, working, refining). It fails
// with ErrAlreadyStarted once the pipeline has left the concept phase.
func (m *Machine) StartPipeline(ctx context.Context, id string) (*project.Project, error) {
	return m.transact(ctx, id, func(p *project.Project, t *tx) error {
		if p.Pipeline != nil && p.Pipeline.CurrentPhase != project.PhaseConcept {
			return errors.NewValidationError("pipeline already started").
				WithField("phase").WithValue(p.Pipeline.CurrentPhase).WithCause(errors.ErrAlreadyStarted)
		}
		p.Pipeline = &project.PipelineState{
			CurrentPhase: project.PhaseConcept,
			Phases:       make(map[project.Phase]*project.PhaseState),
			RunID:        uuid.NewString(),
		}
		if err := m.beginPhase(p, t, project.PhaseConcept, "", project.StepRefining); err != nil {
			return err
		}
		t.events = append(t.events, event.NewPipelineStartedEvent(p.ID))
		m.projectLogger(p).Info("pipeline started", "pipeline_run", p.Pipeline.RunID)
		return nil
	})
}

// StartPhase makes phase current at working and runs its runner. It returns
// once the runner has finished and the phase is in review (or, for a
// step-driven phase, as soon as the phase is working).
func (m *Machine) StartPhase(ctx context.Context, id string, phase project.Phase, feedback string) (*project.Project, error) {
	if !phase.IsValid() {
		return nil, errors.NewValidationError("unknown phase").
			WithField("phase").WithValue(phase).WithCause(errors.ErrInvalidPhase)
	}
	if phase.IsTerminal() {
		return nil, errors.NewValidationError("the live phase is reached by approving deploy").
			WithField("phase").WithValue(phase).WithCause(errors.ErrInvalidPhase)
	}
	return m.transact(ctx, id, func(p *project.Project, t *tx) error {
		if err := requireStarted(p); err != nil {
			return err
		}
		return m.beginPhase(p, t, phase, feedback, m.firstStep(phase))
	})
}

func requireStarted(p *project.Project) error {
	if p.Pipeline == nil {
		return errors.NewValidationError("pipeline has not been started").WithCause(errors.ErrNotStarted)
	}
	if p.Pipeline.CurrentPhase.IsTerminal() {
		return errors.NewValidationError("pipeline is live").
			WithField("phase").WithValue(p.Pipeline.CurrentPhase).WithCause(errors.ErrTerminal)
	}
	return nil
}

func (m *Machine) firstStep(phase project.Phase) project.Step {
	runner, ok := m.cfg.Runners.Lookup(phase)
	if !ok {
		return ""
	}
	if s, ok := runner.(Stepped); ok {
		return s.FirstStep()
	}
	return ""
}

// beginPhase sets phase to working at step and makes it current. Unless the
// phase is step-driven it schedules the runner as the transaction followup.
func (m *Machine) beginPhase(p *project.Project, t *tx, phase project.Phase, feedback string, step project.Step) error {
	now := m.now()
	ps := &project.PhaseState{
		Phase:     phase,
		SubState:  project.SubStateWorking,
		Step:      step,
		StartedAt: now,
		Feedback:  feedback,
	}
	p.Pipeline.Phases[phase] = ps
	p.Pipeline.CurrentPhase = phase
	p.Phase = phase
	if phase == project.PhaseConcept {
		discardCouncil(p)
	}
	m.projectLogger(p).Info("phase started", "step", step, "has_feedback", feedback != "")

	runner, ok := m.cfg.Runners.Lookup(phase)
	if ok {
		if _, stepDriven := runner.(StepDriven); stepDriven {
			return nil
		}
	}

	snapshot := p.Clone()
	t.next = func(ctx context.Context, _ *project.Project) (*project.Project, error) {
		return m.runPhase(ctx, runner, snapshot, phase, now, feedback)
	}
	return nil
}

// runPhase runs the phase's runner on snapshot and records the outcome. A
// runner error is captured as the phase feedback; the phase ends in review
// either way. If the phase was restarted while the runner worked, the result
// is discarded.
func (m *Machine) runPhase(ctx context.Context, runner Runner, snapshot *project.Project, phase project.Phase, startedAt time.Time, feedback string) (*project.Project, error) {
	step := snapshot.Pipeline.Current().Step
	log := m.logger.WithProject(snapshot.ID).WithPhase(string(phase))

	var runErr error
	if runner == nil {
		runErr = fmt.Errorf("no runner registered for phase %s", phase)
	} else {
		runErr = invoke(ctx, runner, snapshot, feedback)
	}

	return m.transact(ctx, snapshot.ID, func(p *project.Project, _ *tx) error {
		cur := p.Pipeline.Current()
		if p.Pipeline.CurrentPhase != phase || cur == nil || !cur.StartedAt.Equal(startedAt) ||
			cur.SubState != project.SubStateWorking || cur.Step != step {
			log.Info("phase result discarded; phase was restarted")
			return store.ErrSkipSave
		}

		cur.SubState = project.SubStateReview
		if runErr != nil {
			perr := errors.NewPhaseError(fmt.Sprintf("%s runner failed", phase), runErr).
				WithProject(p.ID).WithPhase(string(phase)).WithStep(string(step))
			cur.Feedback = errors.Render(perr)
			log.Warn("phase runner failed", "step", step, "error", runErr)
			return nil
		}
		p.Artifacts = snapshot.Artifacts
		log.Info("phase ready for review", "step", step)
		return nil
	})
}

// invoke calls runner, converting a panic into an error.
func invoke(ctx context.Context, runner Runner, p *project.Project, feedback string) error {
	var (
		err error
		pc  panics.Catcher
	)
	pc.Try(func() {
		err = runner.Run(ctx, p, feedback)
	})
	if r := pc.Recovered(); r != nil {
		return fmt.Errorf("runner panicked: %v", r.Value)
	}
	return err
}

// approvePhase marks the current phase approved and starts the next one, or
// makes the pipeline live after deploy.
func (m *Machine) approvePhase(p *project.Project, t *tx) error {
	cur := p.Pipeline.Current()
	now := m.now()
	cur.SubState = project.SubStateApproved
	cur.CompletedAt = &now
	m.projectLogger(p).Info("phase approved")

	next, ok := cur.Phase.Next()
	if !ok {
		return errors.NewValidationError("no phase after current").
			WithField("phase").WithValue(cur.Phase).WithCause(errors.ErrTerminal)
	}
	if next.IsTerminal() {
		p.Pipeline.Phases[next] = &project.PhaseState{
			Phase:       next,
			SubState:    project.SubStateApproved,
			StartedAt:   now,
			CompletedAt: &now,
		}
		p.Pipeline.CurrentPhase = next
		p.Phase = next
		m.projectLogger(p).Info("pipeline is live")
		return nil
	}
	return m.beginPhase(p, t, next, "", m.firstStep(next))
}
