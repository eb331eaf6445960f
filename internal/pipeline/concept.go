package pipeline

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/foundry/internal/errors"
	"github.com/Iron-Ham/foundry/internal/inference"
	"github.com/Iron-Ham/foundry/internal/project"
	"github.com/Iron-Ham/foundry/internal/store"
)

// AdvanceConceptStep moves the concept phase to step and performs the work
// that step starts:
//
//   - refining: back to editing; the council run and verdict are dropped
//   - council_selection: summarize the concept and propose a panel, ending in
//     review, or back at refining with the error as feedback
//   - council_running: launch the council with the selected panel; the engine
//     moves the step to council_review when a verdict is stored
//   - prd_generation: draft the requirements document, ending at prd_review;
//     only valid once the verdict is at council_review or a PRD exists
//
// The review steps are reached through the work above, never directly.
func (m *Machine) AdvanceConceptStep(ctx context.Context, id string, step project.Step) (*project.Project, error) {
	switch step {
	case project.StepRefining, project.StepCouncilSelection, project.StepCouncilRunning, project.StepPRDGeneration:
	default:
		return nil, errors.NewValidationError("step cannot be entered directly").
			WithField("step").WithValue(step).WithCause(errors.ErrInvalidStep)
	}
	return m.transact(ctx, id, func(p *project.Project, t *tx) error {
		if err := requireConcept(p); err != nil {
			return err
		}
		return m.enterConceptStep(p, t, step, "")
	})
}

func requireConcept(p *project.Project) error {
	if err := requireStarted(p); err != nil {
		return err
	}
	if p.Pipeline.CurrentPhase != project.PhaseConcept {
		return errors.NewValidationError("project is not in the concept phase").
			WithField("phase").WithValue(p.Pipeline.CurrentPhase).WithCause(errors.ErrWrongPhase)
	}
	return nil
}

// enterConceptStep sets the concept step to working and schedules its work.
func (m *Machine) enterConceptStep(p *project.Project, t *tx, step project.Step, feedback string) error {
	cur := p.Pipeline.Current()

	switch step {
	case project.StepCouncilRunning:
		run, err := m.cfg.Engine.Prepare(p, p.Artifacts.SelectedCouncil)
		if err != nil {
			return errors.NewValidationError("no council panel has been selected").
				WithField("selected_council").WithCause(err)
		}
		t.next = func(ctx context.Context, committed *project.Project) (*project.Project, error) {
			m.cfg.Engine.Launch(ctx, run)
			return committed, nil
		}
	case project.StepPRDGeneration:
		if !afterCouncilReview(cur.Step) {
			return errors.NewValidationError("a PRD is drafted only after the council verdict is approved").
				WithField("step").WithValue(cur.Step).WithCause(errors.ErrInvalidStep)
		}
		if p.Artifacts.CouncilVerdict == nil {
			return errors.NewValidationError("the council has not produced a verdict").
				WithField("council_verdict").WithCause(errors.ErrInvalidStep)
		}
		snapshot := p.Clone()
		t.next = func(ctx context.Context, _ *project.Project) (*project.Project, error) {
			return m.generatePRD(ctx, snapshot)
		}
	case project.StepRefining:
		discardCouncil(p)
	case project.StepCouncilSelection:
		snapshot := p.Clone()
		t.next = func(ctx context.Context, _ *project.Project) (*project.Project, error) {
			return m.selectCouncil(ctx, snapshot)
		}
	}

	cur.Step = step
	cur.SubState = project.SubStateWorking
	cur.Feedback = feedback
	m.projectLogger(p).Info("concept step entered", "step", step)
	return nil
}

func afterCouncilReview(step project.Step) bool {
	switch step {
	case project.StepCouncilReview, project.StepPRDGeneration, project.StepPRDReview:
		return true
	}
	return false
}

// discardCouncil drops the council run and verdict so neither outlives the
// concept they judged. A run still in flight loses its writes to the run id
// check.
func discardCouncil(p *project.Project) {
	p.Artifacts.CouncilProgress = nil
	p.Artifacts.CouncilVerdict = nil
}

// inStep reports whether the concept phase is still working on step.
func inStep(p *project.Project, step project.Step) bool {
	if p.Pipeline == nil || p.Pipeline.CurrentPhase != project.PhaseConcept {
		return false
	}
	cur := p.Pipeline.Current()
	return cur != nil && cur.Step == step && cur.SubState == project.SubStateWorking
}

// selectCouncil summarizes the concept and proposes a panel. An empty
// proposal falls back to the configured default panel.
func (m *Machine) selectCouncil(ctx context.Context, snapshot *project.Project) (*project.Project, error) {
	log := m.logger.WithProject(snapshot.ID).WithPhase(string(project.PhaseConcept))

	summary, panel, err := m.proposeCouncil(ctx, snapshot)
	return m.transact(ctx, snapshot.ID, func(p *project.Project, _ *tx) error {
		if !inStep(p, project.StepCouncilSelection) {
			log.Info("council selection result discarded")
			return store.ErrSkipSave
		}
		cur := p.Pipeline.Current()
		if err != nil {
			perr := errors.NewPhaseError("council selection failed", err).
				WithProject(p.ID).WithPhase(string(project.PhaseConcept)).WithStep(string(project.StepCouncilSelection))
			cur.Step = project.StepRefining
			cur.SubState = project.SubStateWorking
			cur.Feedback = errors.Render(perr)
			log.Warn("council selection failed", "error", err)
			return nil
		}
		p.Artifacts.RefinedConcept = summary
		p.Artifacts.SelectedCouncil = panel
		cur.SubState = project.SubStateReview
		cur.Feedback = ""
		log.Info("council proposed", "agents", len(panel))
		return nil
	})
}

func (m *Machine) proposeCouncil(ctx context.Context, p *project.Project) (string, []project.CouncilMember, error) {
	summary, err := m.cfg.Assistant.SummarizeConcept(ctx, p.Title, p.Description)
	if err != nil {
		return "", nil, fmt.Errorf("summarize concept: %w", err)
	}
	panel, err := m.cfg.Assistant.ProposePanel(ctx, p.Title, summary, m.cfg.MaxPanelSize)
	if err != nil {
		return "", nil, fmt.Errorf("propose panel: %w", err)
	}
	if len(panel) == 0 {
		panel = m.cfg.Decision.Panel(m.cfg.MaxPanelSize)
	}
	if len(panel) == 0 {
		return "", nil, errors.ErrNoPanel
	}
	return summary, panel, nil
}

// generatePRD drafts the requirements document from the concept, the verdict
// and any feedback from a rejected draft.
func (m *Machine) generatePRD(ctx context.Context, snapshot *project.Project) (*project.Project, error) {
	log := m.logger.WithProject(snapshot.ID).WithPhase(string(project.PhaseConcept))

	prd, err := m.cfg.Assistant.GeneratePRD(ctx, inference.PRDInput{
		Title:       snapshot.Title,
		Description: snapshot.Description,
		Concept:     snapshot.Artifacts.RefinedConcept,
		Verdict:     snapshot.Artifacts.CouncilVerdict,
		Feedback:    snapshot.Artifacts.PRDFeedback,
	})
	return m.transact(ctx, snapshot.ID, func(p *project.Project, _ *tx) error {
		if !inStep(p, project.StepPRDGeneration) {
			log.Info("prd result discarded")
			return store.ErrSkipSave
		}
		cur := p.Pipeline.Current()
		cur.SubState = project.SubStateReview
		if err != nil {
			perr := errors.NewPhaseError("prd generation failed", err).
				WithProject(p.ID).WithPhase(string(project.PhaseConcept)).WithStep(string(project.StepPRDGeneration))
			cur.Feedback = errors.Render(perr)
			log.Warn("prd generation failed", "error", err)
			return nil
		}
		p.Artifacts.PRD = prd
		p.Artifacts.PRDFeedback = ""
		cur.Step = project.StepPRDReview
		cur.Feedback = ""
		log.Info("prd ready for review", "bytes", len(prd))
		return nil
	})
}

// RetryCouncil discards the current council progress and verdict and runs
// the selected panel again. It is only valid at council_running.
func (m *Machine) RetryCouncil(ctx context.Context, id string) (*project.Project, error) {
	return m.transact(ctx, id, func(p *project.Project, t *tx) error {
		if err := requireConcept(p); err != nil {
			return err
		}
		cur := p.Pipeline.Current()
		if cur.Step != project.StepCouncilRunning {
			return errors.NewValidationError("council can only be retried while running").
				WithField("step").WithValue(cur.Step).WithCause(errors.ErrInvalidStep)
		}
		m.projectLogger(p).Info("retrying council")
		return m.enterConceptStep(p, t, project.StepCouncilRunning, "")
	})
}

// onVerdict runs inside the engine's verdict write. It moves a concept phase
// that is still waiting on the council to council_review and announces the
// change once the write commits.
func (m *Machine) onVerdict(p *project.Project, v *project.Verdict) func() {
	if !inStep(p, project.StepCouncilRunning) {
		return nil
	}
	cur := p.Pipeline.Current()
	cur.Step = project.StepCouncilReview
	cur.SubState = project.SubStateReview
	cur.Feedback = ""
	p.Pipeline.UpdatedAt = m.now()
	m.projectLogger(p).Info("council verdict ready for review", "verdict_level", v.VerdictLevel, "run_id", v.RunID)
	e := phaseChanged(p)
	return func() { m.bus.Publish(e) }
}
