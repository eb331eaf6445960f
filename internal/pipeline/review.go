package pipeline

import (
	"context"
	"strings"

	"github.com/Iron-Ham/foundry/internal/errors"
	"github.com/Iron-Ham/foundry/internal/project"
)

// ReviewPhase applies a reviewer decision to the current phase, which must
// be in review.
//
// Approving follows the phase and step: concept council_selection starts the
// council, council_review starts PRD generation and prd_review approves the
// phase. Design system and main_screens advance the design step and re-run
// the design runner. Everything else approves the phase and starts the next
// one; approving deploy makes the pipeline live.
//
// Rejecting restarts the phase at working with the feedback, which is
// required. The concept steps rewind instead: council_review and
// council_selection go back to refining (council_selection also drops the
// proposed summary and panel), and a rejected PRD is regenerated with the
// feedback.
func (m *Machine) ReviewPhase(ctx context.Context, id, action, feedback string) (*project.Project, error) {
	action = strings.ToLower(strings.TrimSpace(action))
	feedback = strings.TrimSpace(feedback)
	if action != ActionApprove && action != ActionReject {
		return nil, errors.NewValidationError("action must be approve or reject").
			WithField("action").WithValue(action).WithCause(errors.ErrInvalidAction)
	}

	return m.transact(ctx, id, func(p *project.Project, t *tx) error {
		if err := requireStarted(p); err != nil {
			return err
		}
		cur := p.Pipeline.Current()
		if cur.SubState != project.SubStateReview {
			return errors.NewValidationError("phase is not awaiting review").
				WithField("sub_state").WithValue(cur.SubState).WithCause(errors.ErrNotInReview)
		}
		m.projectLogger(p).Info("phase reviewed", "action", action, "step", cur.Step)

		if action == ActionApprove {
			return m.approve(p, t)
		}
		return m.reject(p, t, feedback)
	})
}

func (m *Machine) approve(p *project.Project, t *tx) error {
	cur := p.Pipeline.Current()

	switch cur.Phase {
	case project.PhaseConcept:
		switch cur.Step {
		case project.StepCouncilSelection:
			return m.enterConceptStep(p, t, project.StepCouncilRunning, "")
		case project.StepCouncilReview:
			return m.enterConceptStep(p, t, project.StepPRDGeneration, "")
		case project.StepPRDReview:
			return m.approvePhase(p, t)
		default:
			return errors.NewValidationError("step has nothing to approve").
				WithField("step").WithValue(cur.Step).WithCause(errors.ErrInvalidStep)
		}

	case project.PhaseDesign:
		switch cur.Step {
		case project.StepDesignSystem:
			return m.restartPhase(p, t, "", project.StepDesignMainScreens)
		case project.StepDesignMainScreens:
			return m.restartPhase(p, t, "", project.StepDesignAllScreens)
		case project.StepDesignAllScreens, "":
			return m.approvePhase(p, t)
		default:
			return errors.NewValidationError("unknown design step").
				WithField("step").WithValue(cur.Step).WithCause(errors.ErrInvalidStep)
		}
	}
	return m.approvePhase(p, t)
}

func (m *Machine) reject(p *project.Project, t *tx, feedback string) error {
	cur := p.Pipeline.Current()

	if cur.Phase == project.PhaseConcept {
		switch cur.Step {
		case project.StepCouncilReview:
			return m.enterConceptStep(p, t, project.StepRefining, feedback)
		case project.StepCouncilSelection:
			p.Artifacts.RefinedConcept = ""
			p.Artifacts.SelectedCouncil = nil
			return m.enterConceptStep(p, t, project.StepRefining, feedback)
		case project.StepPRDReview, project.StepPRDGeneration:
			p.Artifacts.PRDFeedback = feedback
			return m.enterConceptStep(p, t, project.StepPRDGeneration, "")
		}
	}

	if feedback == "" {
		return errors.NewValidationError("feedback is required to reject").
			WithField("feedback").WithCause(errors.ErrFeedbackRequired)
	}
	return m.restartPhase(p, t, feedback, cur.Step)
}

// restartPhase starts the current phase again at step, keeping the phase's
// position in the pipeline.
func (m *Machine) restartPhase(p *project.Project, t *tx, feedback string, step project.Step) error {
	cur := p.Pipeline.Current()
	if cur.Phase == project.PhaseConcept {
		return m.enterConceptStep(p, t, project.StepRefining, feedback)
	}
	return m.beginPhase(p, t, cur.Phase, feedback, step)
}
