package council

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/foundry/internal/errors"
	"github.com/Iron-Ham/foundry/internal/event"
	"github.com/Iron-Ham/foundry/internal/logging"
	"github.com/Iron-Ham/foundry/internal/project"
	"github.com/Iron-Ham/foundry/internal/store"
	"github.com/Iron-Ham/foundry/internal/synthesis"
)

// DefaultDeadline bounds a council run when no deadline is configured.
const DefaultDeadline = 10 * time.Minute

// Evaluator produces one agent's evaluation. *inference.Provider
// implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, member project.CouncilMember, title, description string) (project.AgentEvaluation, error)
}

// Synthesizer merges evaluations into a verdict. *synthesis.Aggregator
// implements it.
type Synthesizer interface {
	Synthesize(ctx context.Context, req synthesis.Request) (*project.Verdict, error)
}

// VerdictHook runs inside the project lock right after a verdict is stored,
// letting the caller move its own state in the same write. The returned
// func, if any, runs only once that write has been committed.
type VerdictHook func(p *project.Project, v *project.Verdict) (committed func())

// Run identifies one launched council run.
type Run struct {
	ProjectID   string
	RunID       string
	Title       string
	Description string
	Panel       []project.CouncilMember
}

// Engine launches and coordinates council runs.
type Engine struct {
	updater     *store.Updater
	evaluator   Evaluator
	synthesizer Synthesizer
	bus         *event.Bus
	logger      *logging.Logger
	metrics     *Metrics
	deadline    time.Duration
	now         func() time.Time
	newRunID    func() string

	hookMu    sync.RWMutex
	onVerdict VerdictHook

	runs sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithDeadline sets the panel-wide deadline.
func WithDeadline(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.deadline = d
		}
	}
}

// WithBus publishes council events on bus.
func WithBus(bus *event.Bus) Option {
	return func(e *Engine) {
		e.bus = bus
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *logging.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records run metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine returns an Engine that persists through updater.
func NewEngine(updater *store.Updater, evaluator Evaluator, synthesizer Synthesizer, opts ...Option) *Engine {
	e := &Engine{
		updater:     updater,
		evaluator:   evaluator,
		synthesizer: synthesizer,
		logger:      logging.NopLogger(),
		deadline:    DefaultDeadline,
		now:         time.Now,
		newRunID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetVerdictHook installs the hook applied when a verdict is stored.
func (e *Engine) SetVerdictHook(hook VerdictHook) {
	e.hookMu.Lock()
	defer e.hookMu.Unlock()
	e.onVerdict = hook
}

func (e *Engine) verdictHook() VerdictHook {
	e.hookMu.RLock()
	defer e.hookMu.RUnlock()
	return e.onVerdict
}

// Deadline returns the panel-wide deadline.
func (e *Engine) Deadline() time.Duration {
	return e.deadline
}

// Prepare resets p's council state for a fresh run of panel: a new run id,
// every agent pending and no verdict. It only mutates p; the caller saves it
// (normally inside store.Updater.Update) and then calls Launch.
func (e *Engine) Prepare(p *project.Project, panel []project.CouncilMember) (*Run, error) {
	if len(panel) == 0 {
		return nil, errors.ErrNoPanel
	}
	run := &Run{
		ProjectID:   p.ID,
		RunID:       e.newRunID(),
		Title:       p.Title,
		Description: p.Description,
		Panel:       cloneMembers(panel),
	}
	if p.Artifacts.RefinedConcept != "" {
		run.Description = p.Artifacts.RefinedConcept
	}
	p.Artifacts.CouncilProgress = project.NewCouncilProgress(run.RunID, run.Panel, e.now())
	p.Artifacts.CouncilVerdict = nil
	p.UpdatedAt = e.now()
	return run, nil
}

// Launch runs a prepared run in the background. The run is detached from
// ctx's cancellation; the deadline is its only bound.
func (e *Engine) Launch(ctx context.Context, run *Run) {
	e.runs.Add(1)
	go e.execute(context.WithoutCancel(ctx), run)
}

// Wait blocks until every launched run has finished its coordinator.
// Agents abandoned at the deadline may still be running.
func (e *Engine) Wait() {
	e.runs.Wait()
}

func (e *Engine) runLogger(run *Run) *logging.Logger {
	return e.logger.WithProject(run.ProjectID).WithPhase(string(project.PhaseConcept)).WithRun(run.RunID)
}

// execute is the per-run coordinator. It is the only goroutine that
// force-fails agents or synthesizes for this run.
func (e *Engine) execute(ctx context.Context, run *Run) {
	defer e.runs.Done()
	e.metrics.IncActiveRuns()
	defer e.metrics.DecActiveRuns()

	started := e.now()
	log := e.runLogger(run)
	log.Info("council run started", "agents", len(run.Panel), "deadline", e.deadline.String())
	e.bus.Publish(event.NewCouncilStartedEvent(run.ProjectID, run.RunID, memberNames(run.Panel), e.deadline))

	var wg conc.WaitGroup
	for i, member := range run.Panel {
		wg.Go(func() {
			e.runAgent(ctx, run, i, member)
		})
	}

	settled := make(chan struct{})
	go func() {
		defer close(settled)
		if r := wg.WaitAndRecover(); r != nil {
			log.Error("council agent goroutine panicked", "panic", r.String())
		}
	}()

	timer := time.NewTimer(e.deadline)
	defer timer.Stop()

	select {
	case <-settled:
	case <-timer.C:
		e.expire(ctx, run)
	}

	outcome := e.synthesize(ctx, run)
	e.metrics.ObserveRun(outcome, e.now().Sub(started))
}

// runAgent drives one panel member to a terminal status.
func (e *Engine) runAgent(ctx context.Context, run *Run, i int, member project.CouncilMember) {
	log := e.runLogger(run).WithAgent(member.AgentName)

	cp, ok := e.updateProgress(ctx, run, func(cp *project.CouncilProgress) error {
		return cp.MarkRunning(i, e.now())
	})
	if !ok {
		return
	}
	e.publishAgent(run, member.AgentName, project.AgentRunning, "", cp)
	log.Debug("agent running")

	started := e.now()
	eval, err := e.evaluate(ctx, run, member)
	elapsed := e.now().Sub(started)

	if err != nil {
		msg := errors.Render(err)
		cp, ok = e.updateProgress(ctx, run, func(cp *project.CouncilProgress) error {
			return cp.MarkFailed(i, msg, e.now())
		})
		if !ok {
			log.Debug("agent failure discarded", "error", msg)
			return
		}
		log.Warn("agent failed", "error", msg, "duration", elapsed.String())
		e.metrics.ObserveAgent(OutcomeFailed, elapsed)
		e.publishAgent(run, member.AgentName, project.AgentFailed, msg, cp)
		return
	}

	eval.AgentName = member.AgentName
	cp, ok = e.updateProgress(ctx, run, func(cp *project.CouncilProgress) error {
		return cp.MarkCompleted(i, eval, e.now())
	})
	if !ok {
		log.Debug("late evaluation discarded")
		return
	}
	log.Info("agent completed", "score", eval.Score, "duration", elapsed.String())
	e.metrics.ObserveAgent(OutcomeCompleted, elapsed)
	e.publishAgent(run, member.AgentName, project.AgentCompleted, "", cp)
}

// evaluate calls the evaluator, converting a panic into an error.
func (e *Engine) evaluate(ctx context.Context, run *Run, member project.CouncilMember) (project.AgentEvaluation, error) {
	var (
		eval project.AgentEvaluation
		err  error
		pc   panics.Catcher
	)
	pc.Try(func() {
		eval, err = e.evaluator.Evaluate(ctx, member, run.Title, run.Description)
	})
	if r := pc.Recovered(); r != nil {
		return project.AgentEvaluation{}, fmt.Errorf("evaluator panicked: %v", r.Value)
	}
	return eval, err
}

// expire force-fails every agent that has not settled by the deadline.
func (e *Engine) expire(ctx context.Context, run *Run) {
	log := e.runLogger(run)
	msg := errors.NewTimeoutError("council deadline", e.deadline).Error()

	var timedOut []string
	cp, ok := e.updateProgress(ctx, run, func(cp *project.CouncilProgress) error {
		timedOut = cp.FailUnsettled(msg, e.now())
		if len(timedOut) == 0 {
			return store.ErrSkipSave
		}
		return nil
	})
	if !ok {
		return
	}

	log.Warn("council deadline reached", "timed_out", timedOut)
	for _, name := range timedOut {
		e.metrics.ObserveAgent(OutcomeTimedOut, e.deadline)
		e.publishAgent(run, name, project.AgentFailed, msg, cp)
	}
	e.bus.Publish(event.NewCouncilTimedOutEvent(run.ProjectID, run.RunID, timedOut))
}

// synthesize turns the settled run into a verdict, or records why it could
// not. It returns the run outcome label.
func (e *Engine) synthesize(ctx context.Context, run *Run) string {
	log := e.runLogger(run)

	var evals []project.AgentEvaluation
	_, ok := e.updateProgress(ctx, run, func(cp *project.CouncilProgress) error {
		if cp.SynthesisStatus != project.SynthesisPending {
			return store.ErrSkipSave
		}
		evals = cp.Evaluations()
		if len(evals) == 0 {
			cp.SynthesisStatus = project.SynthesisFailed
			cp.SynthesisError = errors.ErrNoEvaluations.Error()
			return nil
		}
		cp.SynthesisStatus = project.SynthesisRunning
		return nil
	})
	if !ok {
		return OutcomeFailed
	}
	if len(evals) == 0 {
		log.Warn("council synthesis failed", "error", errors.ErrNoEvaluations)
		e.metrics.ObserveSynthesis(OutcomeFailed)
		e.bus.Publish(event.NewCouncilSynthesisFailedEvent(run.ProjectID, run.RunID, errors.ErrNoEvaluations.Error()))
		return OutcomeFailed
	}

	verdict, err := e.runSynthesizer(ctx, run, evals)
	if err != nil {
		msg := errors.Render(errors.NewCouncilError("synthesis failed", err).
			WithProject(run.ProjectID).WithRunID(run.RunID))
		e.updateProgress(ctx, run, func(cp *project.CouncilProgress) error {
			cp.SynthesisStatus = project.SynthesisFailed
			cp.SynthesisError = msg
			return nil
		})
		log.Error("council synthesis failed", "error", msg)
		e.metrics.ObserveSynthesis(OutcomeFailed)
		e.bus.Publish(event.NewCouncilSynthesisFailedEvent(run.ProjectID, run.RunID, msg))
		return OutcomeFailed
	}

	hook := e.verdictHook()
	stored := false
	var committed func()
	_, err = e.updater.Update(ctx, run.ProjectID, func(p *project.Project) error {
		cp := p.Artifacts.CouncilProgress
		if cp == nil || cp.RunID != run.RunID {
			return store.ErrSkipSave
		}
		cp.SynthesisStatus = project.SynthesisCompleted
		cp.SynthesisError = ""
		p.Artifacts.CouncilVerdict = verdict
		if hook != nil {
			committed = hook(p, verdict)
		}
		p.UpdatedAt = e.now()
		stored = true
		return nil
	})
	if err != nil {
		msg := errors.Render(errors.NewCouncilError("failed to store verdict", err).
			WithProject(run.ProjectID).WithRunID(run.RunID))
		e.updateProgress(ctx, run, func(cp *project.CouncilProgress) error {
			if cp.SynthesisStatus != project.SynthesisRunning {
				return store.ErrSkipSave
			}
			cp.SynthesisStatus = project.SynthesisFailed
			cp.SynthesisError = msg
			return nil
		})
		log.Error("failed to store verdict", "error", err)
		e.metrics.ObserveSynthesis(OutcomeFailed)
		e.bus.Publish(event.NewCouncilSynthesisFailedEvent(run.ProjectID, run.RunID, msg))
		return OutcomeFailed
	}
	if !stored {
		log.Debug("verdict for replaced run discarded")
		return OutcomeFailed
	}
	if committed != nil {
		committed()
	}

	outcome := OutcomeCompleted
	if verdict.NarrativeFallback {
		outcome = OutcomeFallback
	}
	e.metrics.ObserveSynthesis(outcome)
	e.bus.Publish(event.NewCouncilSynthesizedEvent(run.ProjectID, run.RunID, verdict.OverallScore,
		string(verdict.VerdictLevel), len(verdict.ContributingAgents), verdict.NarrativeFallback))
	return OutcomeCompleted
}

func (e *Engine) runSynthesizer(ctx context.Context, run *Run, evals []project.AgentEvaluation) (*project.Verdict, error) {
	var (
		verdict *project.Verdict
		err     error
		pc      panics.Catcher
	)
	pc.Try(func() {
		verdict, err = e.synthesizer.Synthesize(ctx, synthesis.Request{
			RunID:       run.RunID,
			Title:       run.Title,
			Description: run.Description,
			Evaluations: evals,
		})
	})
	if r := pc.Recovered(); r != nil {
		return nil, fmt.Errorf("synthesizer panicked: %v", r.Value)
	}
	if err == nil && verdict == nil {
		err = errors.ErrNoEvaluations
	}
	return verdict, err
}

// updateProgress applies mutate to the run's progress under the project
// lock. It returns a snapshot of the progress and false when the write was
// dropped: the run was replaced, the transition was no longer legal, or the
// store failed.
func (e *Engine) updateProgress(ctx context.Context, run *Run, mutate func(cp *project.CouncilProgress) error) (*project.CouncilProgress, bool) {
	var snapshot *project.CouncilProgress
	_, err := e.updater.Update(ctx, run.ProjectID, func(p *project.Project) error {
		cp := p.Artifacts.CouncilProgress
		if cp == nil || cp.RunID != run.RunID {
			return errors.ErrStaleRun
		}
		if err := mutate(cp); err != nil {
			if errors.Is(err, project.ErrInvalidTransition) {
				return store.ErrSkipSave
			}
			return err
		}
		p.UpdatedAt = e.now()
		snapshot = cp.Clone()
		return nil
	})
	switch {
	case err == nil:
		return snapshot, snapshot != nil
	case errors.Is(err, errors.ErrStaleRun):
		e.runLogger(run).Debug("write for replaced run dropped")
	default:
		e.runLogger(run).Error("failed to persist council progress", "error", err)
	}
	return nil, false
}

func (e *Engine) publishAgent(run *Run, agent string, status project.AgentStatus, errMsg string, cp *project.CouncilProgress) {
	e.bus.Publish(event.NewAgentChangedEvent(run.ProjectID, run.RunID, agent, string(status), errMsg, cp.CompletedCount, cp.TotalCount))
}

func memberNames(panel []project.CouncilMember) []string {
	names := make([]string, len(panel))
	for i, m := range panel {
		names[i] = m.AgentName
	}
	return names
}

func cloneMembers(panel []project.CouncilMember) []project.CouncilMember {
	out := make([]project.CouncilMember, len(panel))
	for i, m := range panel {
		m.EvaluationCriteria = append([]string(nil), m.EvaluationCriteria...)
		out[i] = m
	}
	return out
}
