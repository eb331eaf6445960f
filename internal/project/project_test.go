package project

import (
	"errors"
	"testing"
	"time"
)

func TestPhase_Next(t *testing.T) {
	tests := []struct {
		phase  Phase
		want   Phase
		wantOK bool
	}{
		{PhaseConcept, PhaseSpec, true},
		{PhaseSpec, PhaseDesign, true},
		{PhaseDesign, PhaseDev, true},
		{PhaseDev, PhaseTest, true},
		{PhaseTest, PhaseDeploy, true},
		{PhaseDeploy, PhaseLive, true},
		{PhaseLive, "", false},
		{Phase("bogus"), "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.phase), func(t *testing.T) {
			got, ok := tt.phase.Next()
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("%s.Next() = (%q, %v), want (%q, %v)", tt.phase, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParsePhase(t *testing.T) {
	if p, ok := ParsePhase("design"); !ok || p != PhaseDesign {
		t.Errorf("ParsePhase(design) = (%q, %v)", p, ok)
	}
	if _, ok := ParsePhase("qa"); ok {
		t.Error("ParsePhase(qa) should not be valid")
	}
}

func TestStep_Membership(t *testing.T) {
	if !StepCouncilRunning.IsConceptStep() {
		t.Error("council_running should be a concept step")
	}
	if StepCouncilRunning.IsDesignStep() {
		t.Error("council_running should not be a design step")
	}
	if !StepDesignMainScreens.IsDesignStep() {
		t.Error("main_screens should be a design step")
	}
}

func TestAgentStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to AgentStatus
		want     bool
	}{
		{AgentPending, AgentRunning, true},
		{AgentPending, AgentFailed, true},
		{AgentPending, AgentCompleted, false},
		{AgentRunning, AgentCompleted, true},
		{AgentRunning, AgentFailed, true},
		{AgentRunning, AgentPending, false},
		{AgentCompleted, AgentFailed, false},
		{AgentFailed, AgentCompleted, false},
		{AgentFailed, AgentRunning, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition = %v, want %v", got, tt.want)
			}
		})
	}
}

func testPanel() []CouncilMember {
	return []CouncilMember{
		{AgentName: "market", Role: "Market Analyst"},
		{AgentName: "tech", Role: "Architect"},
		{AgentName: "ux", Role: "Designer"},
	}
}

func TestCouncilProgress_Lifecycle(t *testing.T) {
	now := time.Now()
	cp := NewCouncilProgress("run-1", testPanel(), now)

	if cp.TotalCount != 3 || cp.CompletedCount != 0 {
		t.Fatalf("counts = %d/%d, want 0/3", cp.CompletedCount, cp.TotalCount)
	}
	for _, a := range cp.Agents {
		if a.Status != AgentPending {
			t.Fatalf("agent %s status = %s, want pending", a.AgentName, a.Status)
		}
	}

	if err := cp.MarkRunning(0, now); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if err := cp.MarkCompleted(0, AgentEvaluation{AgentName: "market", Score: 7}, now); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if err := cp.MarkRunning(1, now); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if err := cp.MarkFailed(1, "provider down", now); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	if cp.CompletedCount != 2 {
		t.Errorf("CompletedCount = %d, want 2", cp.CompletedCount)
	}
	if cp.Settled() {
		t.Error("progress should not be settled with a pending agent")
	}

	// A completed agent can never be failed afterwards.
	if err := cp.MarkFailed(0, "late", now); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("MarkFailed on completed = %v, want ErrInvalidTransition", err)
	}

	failed := cp.FailUnsettled("timeout", now)
	if len(failed) != 1 || failed[0] != "ux" {
		t.Errorf("FailUnsettled = %v, want [ux]", failed)
	}
	if !cp.Settled() {
		t.Error("progress should be settled after FailUnsettled")
	}
	if cp.CompletedCount != cp.TotalCount {
		t.Errorf("CompletedCount = %d, want %d", cp.CompletedCount, cp.TotalCount)
	}

	evals := cp.Evaluations()
	if len(evals) != 1 || evals[0].AgentName != "market" {
		t.Errorf("Evaluations = %+v, want only market", evals)
	}
	if cp.Agents[1].Evaluation != nil || cp.Agents[1].Error == "" {
		t.Error("failed agent must carry an error and no evaluation")
	}
}

func TestCouncilProgress_UnknownIndex(t *testing.T) {
	cp := NewCouncilProgress("run-1", testPanel(), time.Now())
	if err := cp.MarkRunning(5, time.Now()); !errors.Is(err, ErrUnknownAgent) {
		t.Errorf("MarkRunning(5) = %v, want ErrUnknownAgent", err)
	}
}

func TestProject_CloneIsDeep(t *testing.T) {
	conf := 0.8
	now := time.Now()
	p := &Project{
		ID:       "p1",
		Metadata: map[string]string{"owner": "ana"},
		Pipeline: &PipelineState{
			CurrentPhase: PhaseConcept,
			Phases: map[Phase]*PhaseState{
				PhaseConcept: {Phase: PhaseConcept, SubState: SubStateWorking, Step: StepRefining},
			},
		},
		Artifacts: Artifacts{
			SelectedCouncil: testPanel(),
			CouncilProgress: NewCouncilProgress("run-1", testPanel(), now),
			CouncilVerdict:  &Verdict{Risks: []string{"cost"}},
		},
	}
	_ = p.Artifacts.CouncilProgress.MarkRunning(0, now)
	_ = p.Artifacts.CouncilProgress.MarkCompleted(0, AgentEvaluation{Concerns: []string{"a"}, Confidence: &conf}, now)

	c := p.Clone()
	c.Metadata["owner"] = "bo"
	c.Pipeline.Phases[PhaseConcept].SubState = SubStateReview
	c.Artifacts.SelectedCouncil[0].AgentName = "changed"
	c.Artifacts.CouncilProgress.Agents[0].Evaluation.Concerns[0] = "b"
	*c.Artifacts.CouncilProgress.Agents[0].Evaluation.Confidence = 0.1
	c.Artifacts.CouncilVerdict.Risks[0] = "time"

	if p.Metadata["owner"] != "ana" {
		t.Error("metadata shared with clone")
	}
	if p.Pipeline.Phases[PhaseConcept].SubState != SubStateWorking {
		t.Error("phase state shared with clone")
	}
	if p.Artifacts.SelectedCouncil[0].AgentName != "market" {
		t.Error("panel shared with clone")
	}
	if p.Artifacts.CouncilProgress.Agents[0].Evaluation.Concerns[0] != "a" {
		t.Error("evaluation concerns shared with clone")
	}
	if *p.Artifacts.CouncilProgress.Agents[0].Evaluation.Confidence != 0.8 {
		t.Error("confidence shared with clone")
	}
	if p.Artifacts.CouncilVerdict.Risks[0] != "cost" {
		t.Error("verdict shared with clone")
	}
}
