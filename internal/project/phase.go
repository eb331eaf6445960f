package project

// Phase is one of the fixed lifecycle stages of a project.
type Phase string

const (
	PhaseConcept Phase = "concept"
	PhaseSpec    Phase = "spec"
	PhaseDesign  Phase = "design"
	PhaseDev     Phase = "dev"
	PhaseTest    Phase = "test"
	PhaseDeploy  Phase = "deploy"
	PhaseLive    Phase = "live"
)

// phaseOrder is the linear order every pipeline walks.
var phaseOrder = []Phase{
	PhaseConcept,
	PhaseSpec,
	PhaseDesign,
	PhaseDev,
	PhaseTest,
	PhaseDeploy,
	PhaseLive,
}

// Phases returns the phase order. The returned slice is a copy.
func Phases() []Phase {
	out := make([]Phase, len(phaseOrder))
	copy(out, phaseOrder)
	return out
}

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// IsValid reports whether p is one of the known phases.
func (p Phase) IsValid() bool {
	return p.index() >= 0
}

// IsTerminal returns true for the live phase.
func (p Phase) IsTerminal() bool {
	return p == PhaseLive
}

// Next returns the phase after p. The second return value is false when p is
// terminal or unknown.
func (p Phase) Next() (Phase, bool) {
	i := p.index()
	if i < 0 || i+1 >= len(phaseOrder) {
		return "", false
	}
	return phaseOrder[i+1], true
}

func (p Phase) index() int {
	for i, candidate := range phaseOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}

// ParsePhase converts a string into a Phase, reporting whether it is known.
func ParsePhase(s string) (Phase, bool) {
	p := Phase(s)
	return p, p.IsValid()
}

// SubState is a phase's position within human review gating.
type SubState string

const (
	SubStateWorking  SubState = "working"
	SubStateReview   SubState = "review"
	SubStateApproved SubState = "approved"
	SubStateRejected SubState = "rejected"
)

// Step is a phase-specific sub-flow position. Only the concept and design
// phases use steps.
type Step string

// Concept phase steps, in flow order.
const (
	StepRefining         Step = "refining"
	StepCouncilSelection Step = "council_selection"
	StepCouncilRunning   Step = "council_running"
	StepCouncilReview    Step = "council_review"
	StepPRDGeneration    Step = "prd_generation"
	StepPRDReview        Step = "prd_review"
)

// Design phase steps, in flow order.
const (
	StepDesignSystem      Step = "system"
	StepDesignMainScreens Step = "main_screens"
	StepDesignAllScreens  Step = "all_screens"
)

// ConceptSteps returns the concept sub-flow in order.
func ConceptSteps() []Step {
	return []Step{
		StepRefining,
		StepCouncilSelection,
		StepCouncilRunning,
		StepCouncilReview,
		StepPRDGeneration,
		StepPRDReview,
	}
}

// DesignSteps returns the design sub-flow in order.
func DesignSteps() []Step {
	return []Step{StepDesignSystem, StepDesignMainScreens, StepDesignAllScreens}
}

// IsConceptStep reports whether s belongs to the concept sub-flow.
func (s Step) IsConceptStep() bool {
	for _, c := range ConceptSteps() {
		if c == s {
			return true
		}
	}
	return false
}

// IsDesignStep reports whether s belongs to the design sub-flow.
func (s Step) IsDesignStep() bool {
	for _, d := range DesignSteps() {
		if d == s {
			return true
		}
	}
	return false
}

// String returns the string representation of the step.
func (s Step) String() string {
	return string(s)
}
