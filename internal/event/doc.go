// Package event provides a synchronous pub-sub bus and the typed events the
// pipeline and council engine publish on it.
//
// Publishers never know who is listening: the CLI subscribes a debug logger,
// the HTTP API streams a project's events to clients, and tests subscribe to
// assert on transitions.
//
// # Event Types
//
// Pipeline:
//   - [PipelineStartedEvent] (pipeline.started)
//   - [PhaseChangedEvent] (phase.changed)
//
// Council:
//   - [CouncilStartedEvent] (council.started)
//   - [AgentChangedEvent] (council.agent_changed)
//   - [CouncilTimedOutEvent] (council.timed_out)
//   - [CouncilSynthesizedEvent] (council.synthesized)
//   - [CouncilSynthesisFailedEvent] (council.synthesis_failed)
//
// Every event above implements [ProjectEvent].
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers are called synchronously on the
// publishing goroutine and protected against panics.
//
// # Basic Usage
//
//	bus := event.NewBus(event.WithLogger(logger))
//
//	bus.Subscribe(event.TypePhaseChanged, func(e event.Event) {
//	    changed := e.(event.PhaseChangedEvent)
//	    fmt.Println(changed.Phase, changed.SubState)
//	})
//
//	id := bus.SubscribeProject(projectID, handler)
//	defer bus.Unsubscribe(id)
package event
