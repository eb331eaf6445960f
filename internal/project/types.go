package project

import "time"

// Project is the unit the pipeline drives from concept to live.
type Project struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Phase       Phase             `json:"phase"`
	Pipeline    *PipelineState    `json:"pipeline,omitempty"`
	Artifacts   Artifacts         `json:"artifacts"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// PipelineState tracks the project's position in the phase order.
// CurrentPhase always has an entry in Phases.
type PipelineState struct {
	CurrentPhase Phase                 `json:"current_phase"`
	Phases       map[Phase]*PhaseState `json:"phases"`
	RunID        string                `json:"run_id"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// Current returns the state of the current phase, or nil if the pipeline
// has not been started.
func (ps *PipelineState) Current() *PhaseState {
	if ps == nil {
		return nil
	}
	return ps.Phases[ps.CurrentPhase]
}

// PhaseState is a single phase's review-gate status.
type PhaseState struct {
	Phase       Phase      `json:"phase"`
	SubState    SubState   `json:"sub_state"`
	Step        Step       `json:"step,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Feedback    string     `json:"feedback,omitempty"`
}

// Artifacts holds the phase outputs. Each field is owned by one phase or
// concept step.
type Artifacts struct {
	RefinedConcept  string           `json:"refined_concept,omitempty"`
	SelectedCouncil []CouncilMember  `json:"selected_council,omitempty"`
	CouncilProgress *CouncilProgress `json:"council_progress,omitempty"`
	CouncilVerdict  *Verdict         `json:"council_verdict,omitempty"`
	PRD             string           `json:"prd,omitempty"`
	PRDFeedback     string           `json:"prd_feedback,omitempty"`
	Specs           string           `json:"specs,omitempty"`
	DesignSystem    string           `json:"design_system,omitempty"`
	MainScreens     string           `json:"main_screens,omitempty"`
	AllScreens      string           `json:"all_screens,omitempty"`
	DevPlan         string           `json:"dev_plan,omitempty"`
	TestReport      string           `json:"test_report,omitempty"`
	DeployReport    string           `json:"deploy_report,omitempty"`
}

// CouncilMember defines one evaluator agent. It is immutable once a council
// run starts.
type CouncilMember struct {
	AgentName          string   `json:"agent_name" yaml:"agent_name"`
	Role               string   `json:"role" yaml:"role"`
	Focus              string   `json:"focus" yaml:"focus"`
	EvaluationCriteria []string `json:"evaluation_criteria" yaml:"evaluation_criteria"`
	PromptOverride     string   `json:"prompt_override,omitempty" yaml:"prompt_override,omitempty"`
}

// AgentStatus is the lifecycle of one agent inside a council run.
// Transitions go pending → running → completed|failed and never reverse.
type AgentStatus string

const (
	AgentPending   AgentStatus = "pending"
	AgentRunning   AgentStatus = "running"
	AgentCompleted AgentStatus = "completed"
	AgentFailed    AgentStatus = "failed"
)

// IsTerminal returns true if this status represents a final state.
func (s AgentStatus) IsTerminal() bool {
	return s == AgentCompleted || s == AgentFailed
}

// CanTransition reports whether moving from s to next is allowed.
func (s AgentStatus) CanTransition(next AgentStatus) bool {
	switch s {
	case AgentPending:
		return next == AgentRunning || next == AgentFailed
	case AgentRunning:
		return next == AgentCompleted || next == AgentFailed
	default:
		return false
	}
}

// SynthesisStatus is the lifecycle of the verdict synthesis for a run.
type SynthesisStatus string

const (
	SynthesisPending   SynthesisStatus = "pending"
	SynthesisRunning   SynthesisStatus = "running"
	SynthesisCompleted SynthesisStatus = "completed"
	SynthesisFailed    SynthesisStatus = "failed"
)

// CouncilProgress is the shared progress record for one council run.
// TotalCount equals the panel size and never changes; CompletedCount counts
// entries that reached a terminal status and only grows.
type CouncilProgress struct {
	RunID           string               `json:"run_id"`
	StartedAt       time.Time            `json:"started_at"`
	Agents          []AgentProgressEntry `json:"agents"`
	SynthesisStatus SynthesisStatus      `json:"synthesis_status"`
	SynthesisError  string               `json:"synthesis_error,omitempty"`
	CompletedCount  int                  `json:"completed_count"`
	TotalCount      int                  `json:"total_count"`
}

// NewCouncilProgress returns a progress record with every panel member pending.
func NewCouncilProgress(runID string, panel []CouncilMember, now time.Time) *CouncilProgress {
	agents := make([]AgentProgressEntry, len(panel))
	for i, m := range panel {
		agents[i] = AgentProgressEntry{
			AgentName: m.AgentName,
			Status:    AgentPending,
		}
	}
	return &CouncilProgress{
		RunID:           runID,
		StartedAt:       now,
		Agents:          agents,
		SynthesisStatus: SynthesisPending,
		TotalCount:      len(panel),
	}
}

// Settled reports whether every agent has reached a terminal status.
func (cp *CouncilProgress) Settled() bool {
	for _, a := range cp.Agents {
		if !a.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// Evaluations returns the evaluations of completed agents in panel order.
func (cp *CouncilProgress) Evaluations() []AgentEvaluation {
	var out []AgentEvaluation
	for _, a := range cp.Agents {
		if a.Status == AgentCompleted && a.Evaluation != nil {
			out = append(out, *a.Evaluation)
		}
	}
	return out
}

// recount recomputes CompletedCount from the entries without ever
// decreasing it.
func (cp *CouncilProgress) recount() {
	n := 0
	for _, a := range cp.Agents {
		if a.Status.IsTerminal() {
			n++
		}
	}
	if n > cp.CompletedCount {
		cp.CompletedCount = n
	}
}

// AgentProgressEntry is one panel member's progress. Evaluation is set iff
// the status is completed; Error is set iff it is failed.
type AgentProgressEntry struct {
	AgentName   string           `json:"agent_name"`
	Status      AgentStatus      `json:"status"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Evaluation  *AgentEvaluation `json:"evaluation,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// AgentEvaluation is one agent's assessment of the subject.
type AgentEvaluation struct {
	AgentName  string                `json:"agent_name"`
	Score      float64               `json:"score"`
	Reasoning  string                `json:"reasoning"`
	Concerns   []string              `json:"concerns,omitempty"`
	KeyInsight string                `json:"key_insight,omitempty"`
	Confidence *float64              `json:"confidence,omitempty"`
	Dimensions []DimensionEvaluation `json:"dimensions,omitempty"`
}

// DimensionEvaluation is one agent's score on a single named axis.
type DimensionEvaluation struct {
	Dimension string  `json:"dimension"`
	Score     float64 `json:"score"`
	Weight    float64 `json:"weight"`
	Reasoning string  `json:"reasoning,omitempty"`
}

// DimensionScore is an aggregated score across the agents that reported
// the dimension.
type DimensionScore struct {
	Dimension string  `json:"dimension"`
	Score     float64 `json:"score"`
	Weight    float64 `json:"weight"`
	Reasoning string  `json:"reasoning"`
	Reporters int     `json:"reporters"`
}

// AgreementArea records a dimension whose raw scores were tightly or widely
// spread.
type AgreementArea struct {
	Dimension string  `json:"dimension"`
	Spread    float64 `json:"spread"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
}

// VerdictLevel is the coarse recommendation derived from the overall score.
type VerdictLevel string

// Verdict is the synthesized result of one council run. It is never mutated
// after creation; a retry produces a new one.
type Verdict struct {
	RunID                string           `json:"run_id"`
	DimensionScores      []DimensionScore `json:"dimension_scores"`
	OverallScore         float64          `json:"overall_score"`
	VerdictLevel         VerdictLevel     `json:"verdict_level"`
	Confidence           float64          `json:"confidence"`
	ConsensusAreas       []AgreementArea  `json:"consensus_areas"`
	DisagreementAreas    []AgreementArea  `json:"disagreement_areas"`
	MissingDimensions    []string         `json:"missing_dimensions,omitempty"`
	ExecutiveSummary     string           `json:"executive_summary"`
	KeyInsight           string           `json:"key_insight"`
	RecommendedActions   []string         `json:"recommended_actions"`
	Risks                []string         `json:"risks"`
	OpenQuestions        []string         `json:"open_questions"`
	SynthesizedReasoning string           `json:"synthesized_reasoning"`
	ContributingAgents   []string         `json:"contributing_agents"`
	NarrativeFallback    bool             `json:"narrative_fallback"`
	CreatedAt            time.Time        `json:"created_at"`
}
