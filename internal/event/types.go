package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a "category.action" identifier, e.g. "phase.changed".
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// ProjectEvent is an Event scoped to one project.
type ProjectEvent interface {
	Event
	Project() string
}

// Event type identifiers.
const (
	TypePipelineStarted        = "pipeline.started"
	TypePhaseChanged           = "phase.changed"
	TypeCouncilStarted         = "council.started"
	TypeAgentChanged           = "council.agent_changed"
	TypeCouncilTimedOut        = "council.timed_out"
	TypeCouncilSynthesized     = "council.synthesized"
	TypeCouncilSynthesisFailed = "council.synthesis_failed"
)

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
	projectID string
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }
func (e baseEvent) Project() string      { return e.projectID }

func newBaseEvent(eventType, projectID string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
		projectID: projectID,
	}
}

// -----------------------------------------------------------------------------
// Pipeline Events
// -----------------------------------------------------------------------------

// PipelineStartedEvent is emitted when a project's pipeline is (re)initialized
// at the concept phase.
type PipelineStartedEvent struct {
	baseEvent
	ProjectID string
}

// NewPipelineStartedEvent creates a PipelineStartedEvent.
func NewPipelineStartedEvent(projectID string) PipelineStartedEvent {
	return PipelineStartedEvent{
		baseEvent: newBaseEvent(TypePipelineStarted, projectID),
		ProjectID: projectID,
	}
}

// PhaseChangedEvent is emitted whenever the current phase, its sub-state or
// its step changes.
type PhaseChangedEvent struct {
	baseEvent
	ProjectID string
	Phase     string
	SubState  string
	Step      string // empty for phases without a sub-flow
	Feedback  string
}

// NewPhaseChangedEvent creates a PhaseChangedEvent.
func NewPhaseChangedEvent(projectID, phase, subState, step, feedback string) PhaseChangedEvent {
	return PhaseChangedEvent{
		baseEvent: newBaseEvent(TypePhaseChanged, projectID),
		ProjectID: projectID,
		Phase:     phase,
		SubState:  subState,
		Step:      step,
		Feedback:  feedback,
	}
}

// -----------------------------------------------------------------------------
// Council Events
// -----------------------------------------------------------------------------

// CouncilStartedEvent is emitted when a council run launches its panel.
type CouncilStartedEvent struct {
	baseEvent
	ProjectID string
	RunID     string
	Agents    []string
	Deadline  time.Duration
}

// NewCouncilStartedEvent creates a CouncilStartedEvent.
func NewCouncilStartedEvent(projectID, runID string, agents []string, deadline time.Duration) CouncilStartedEvent {
	return CouncilStartedEvent{
		baseEvent: newBaseEvent(TypeCouncilStarted, projectID),
		ProjectID: projectID,
		RunID:     runID,
		Agents:    agents,
		Deadline:  deadline,
	}
}

// AgentChangedEvent is emitted on every persisted agent status transition.
type AgentChangedEvent struct {
	baseEvent
	ProjectID      string
	RunID          string
	Agent          string
	Status         string
	Error          string
	CompletedCount int
	TotalCount     int
}

// NewAgentChangedEvent creates an AgentChangedEvent.
func NewAgentChangedEvent(projectID, runID, agent, status, errMsg string, completed, total int) AgentChangedEvent {
	return AgentChangedEvent{
		baseEvent:      newBaseEvent(TypeAgentChanged, projectID),
		ProjectID:      projectID,
		RunID:          runID,
		Agent:          agent,
		Status:         status,
		Error:          errMsg,
		CompletedCount: completed,
		TotalCount:     total,
	}
}

// CouncilTimedOutEvent is emitted when the panel deadline fires before every
// agent settled.
type CouncilTimedOutEvent struct {
	baseEvent
	ProjectID string
	RunID     string
	TimedOut  []string // agents force-failed by the deadline
}

// NewCouncilTimedOutEvent creates a CouncilTimedOutEvent.
func NewCouncilTimedOutEvent(projectID, runID string, timedOut []string) CouncilTimedOutEvent {
	return CouncilTimedOutEvent{
		baseEvent: newBaseEvent(TypeCouncilTimedOut, projectID),
		ProjectID: projectID,
		RunID:     runID,
		TimedOut:  timedOut,
	}
}

// CouncilSynthesizedEvent is emitted when a verdict has been persisted.
type CouncilSynthesizedEvent struct {
	baseEvent
	ProjectID         string
	RunID             string
	OverallScore      float64
	VerdictLevel      string
	Contributors      int
	NarrativeFallback bool
}

// NewCouncilSynthesizedEvent creates a CouncilSynthesizedEvent.
func NewCouncilSynthesizedEvent(projectID, runID string, overall float64, level string, contributors int, fallback bool) CouncilSynthesizedEvent {
	return CouncilSynthesizedEvent{
		baseEvent:         newBaseEvent(TypeCouncilSynthesized, projectID),
		ProjectID:         projectID,
		RunID:             runID,
		OverallScore:      overall,
		VerdictLevel:      level,
		Contributors:      contributors,
		NarrativeFallback: fallback,
	}
}

// CouncilSynthesisFailedEvent is emitted when a run ends without a verdict.
type CouncilSynthesisFailedEvent struct {
	baseEvent
	ProjectID string
	RunID     string
	Error     string
}

// NewCouncilSynthesisFailedEvent creates a CouncilSynthesisFailedEvent.
func NewCouncilSynthesisFailedEvent(projectID, runID, errMsg string) CouncilSynthesisFailedEvent {
	return CouncilSynthesisFailedEvent{
		baseEvent: newBaseEvent(TypeCouncilSynthesisFailed, projectID),
		ProjectID: projectID,
		RunID:     runID,
		Error:     errMsg,
	}
}
