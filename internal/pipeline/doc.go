// Package pipeline drives a project through the fixed phase order
// concept → spec → design → dev → test → deploy → live, pausing at every
// phase boundary for human review.
//
// # Phases and Steps
//
// Each phase has a [project.PhaseState] whose sub-state moves
// working → review and then approved, or back to working on rejection. A
// phase only reaches review after its work has finished, successfully or
// with the error rendered into the phase feedback.
//
// The concept phase is step-driven: refining → council_selection →
// council_running → council_review → prd_generation → prd_review. Its steps
// are advanced with [Machine.AdvanceConceptStep]; council_running hands the
// selected panel to the council engine, which moves the step to
// council_review when a verdict is stored. The design phase walks
// system → main_screens → all_screens, re-running its runner per step.
//
// # Runners
//
// Non-concept phases delegate their work to a [Runner] looked up in a
// [Registry] by phase. Runners work on a snapshot of the project outside the
// project lock; their artifacts are merged back only if the phase was not
// restarted in the meantime.
//
// # Usage
//
//	m, err := pipeline.New(pipeline.Config{
//	    Updater:   updater,
//	    Engine:    engine,
//	    Assistant: provider,
//	    Runners:   registry,
//	}, pipeline.WithBus(bus), pipeline.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	p, err := m.StartPipeline(ctx, id)
//
// Every operation returns the updated project or a typed error from
// internal/errors. Validation failures never modify the project.
package pipeline
