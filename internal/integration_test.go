// Package internal contains integration tests that verify the packages work
// together: the pipeline machine driving a real council engine, synthesis,
// phase runners and every store backend, with only the model scripted.
package internal

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/foundry/internal/config"
	"github.com/Iron-Ham/foundry/internal/council"
	"github.com/Iron-Ham/foundry/internal/decision"
	"github.com/Iron-Ham/foundry/internal/event"
	"github.com/Iron-Ham/foundry/internal/inference"
	"github.com/Iron-Ham/foundry/internal/pipeline"
	"github.com/Iron-Ham/foundry/internal/project"
	"github.com/Iron-Ham/foundry/internal/runner"
	"github.com/Iron-Ham/foundry/internal/store"
	"github.com/Iron-Ham/foundry/internal/synthesis"
)

// scriptedModel answers every call with all tagged blocks; each provider
// call extracts the one it asks for.
const scriptedModel = `<summary>A reminder app that keeps houseplants watered.</summary>
<panel>[
  {"agent_name": "market", "role": "Market analyst", "focus": "demand", "evaluation_criteria": ["demand"]},
  {"agent_name": "tech", "role": "Engineer", "focus": "feasibility", "evaluation_criteria": ["feasibility"]}
]</panel>
<evaluation>{"score": 7.5, "reasoning": "A clear niche.", "dimensions": [
  {"dimension": "market", "score": 7.5, "weight": 1, "reasoning": "Plant owners forget."}
]}</evaluation>
<synthesis>{"executive_summary": "Worth building.", "key_insight": "Reminders drive retention.",
  "recommended_actions": ["ship an MVP"], "risks": ["churn"], "open_questions": ["pricing"]}</synthesis>
<prd>Plant Care PRD</prd>
<artifact>Generated artifact</artifact>`

type harness struct {
	machine *pipeline.Machine
	engine  *council.Engine
	store   store.Store

	mu     sync.Mutex
	phases []string
}

func newHarness(t *testing.T, cfg config.StoreConfig) *harness {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open(%s) error = %v", cfg.Backend, err)
	}
	t.Cleanup(func() { _ = store.Close(st) })

	updater := store.NewUpdater(st)
	bus := event.NewBus()
	provider := inference.NewProvider(inference.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		return scriptedModel, nil
	}))
	dec := decision.Default()
	engine := council.NewEngine(updater, provider, synthesis.New(provider, dec),
		council.WithDeadline(5*time.Second),
		council.WithBus(bus),
	)
	registry := pipeline.NewRegistry()
	runner.RegisterDefaults(registry, provider)

	machine, err := pipeline.New(pipeline.Config{
		Updater:   updater,
		Engine:    engine,
		Assistant: provider,
		Runners:   registry,
		Decision:  dec,
	}, pipeline.WithBus(bus))
	if err != nil {
		t.Fatalf("pipeline.New() error = %v", err)
	}

	h := &harness{machine: machine, engine: engine, store: st}
	bus.Subscribe(event.TypePhaseChanged, func(e event.Event) {
		pc := e.(event.PhaseChangedEvent)
		h.mu.Lock()
		h.phases = append(h.phases, string(pc.Phase)+"/"+string(pc.SubState))
		h.mu.Unlock()
	})
	return h
}

func expectState(t *testing.T, p *project.Project, phase project.Phase, sub project.SubState, step project.Step) {
	t.Helper()
	cur := p.Pipeline.Current()
	if cur == nil {
		t.Fatalf("pipeline not started, want %s/%s/%s", phase, sub, step)
	}
	if cur.Phase != phase || cur.SubState != sub || cur.Step != step {
		t.Fatalf("state = %s/%s/%s (feedback %q), want %s/%s/%s",
			cur.Phase, cur.SubState, cur.Step, cur.Feedback, phase, sub, step)
	}
}

// TestConceptToLive drives one project through every phase on each store
// backend.
func TestConceptToLive(t *testing.T) {
	backends := []struct {
		name string
		cfg  func(dir string) config.StoreConfig
	}{
		{"memory", func(string) config.StoreConfig {
			return config.StoreConfig{Backend: "memory"}
		}},
		{"file", func(dir string) config.StoreConfig {
			return config.StoreConfig{Backend: "file", Dir: dir, CacheSize: 8}
		}},
		{"sqlite", func(dir string) config.StoreConfig {
			return config.StoreConfig{Backend: "sqlite", SQLitePath: filepath.Join(dir, "foundry.db")}
		}},
	}

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			h := newHarness(t, b.cfg(t.TempDir()))
			ctx := context.Background()
			m := h.machine

			p, err := m.CreateProject(ctx, "Plant Care", "Water reminders for houseplants")
			if err != nil {
				t.Fatalf("CreateProject() error = %v", err)
			}
			id := p.ID

			p, err = m.StartPipeline(ctx, id)
			if err != nil {
				t.Fatalf("StartPipeline() error = %v", err)
			}
			expectState(t, p, project.PhaseConcept, project.SubStateWorking, project.StepRefining)

			p, err = m.AdvanceConceptStep(ctx, id, project.StepCouncilSelection)
			if err != nil {
				t.Fatalf("AdvanceConceptStep(council_selection) error = %v", err)
			}
			expectState(t, p, project.PhaseConcept, project.SubStateReview, project.StepCouncilSelection)
			if len(p.Artifacts.SelectedCouncil) != 2 {
				t.Fatalf("SelectedCouncil = %d members, want 2", len(p.Artifacts.SelectedCouncil))
			}
			if p.Artifacts.RefinedConcept != "A reminder app that keeps houseplants watered." {
				t.Errorf("RefinedConcept = %q", p.Artifacts.RefinedConcept)
			}

			// Approving the panel launches the council in the background.
			if _, err := m.ReviewPhase(ctx, id, pipeline.ActionApprove, ""); err != nil {
				t.Fatalf("approve panel error = %v", err)
			}
			h.engine.Wait()

			st, err := m.GetStatus(ctx, id)
			if err != nil {
				t.Fatalf("GetStatus() error = %v", err)
			}
			p = st.Project
			expectState(t, p, project.PhaseConcept, project.SubStateReview, project.StepCouncilReview)
			cp := p.Artifacts.CouncilProgress
			if cp == nil || cp.CompletedCount != 2 || cp.SynthesisStatus != project.SynthesisCompleted {
				t.Fatalf("CouncilProgress = %+v, want 2 settled and synthesis completed", cp)
			}
			v := p.Artifacts.CouncilVerdict
			if v == nil {
				t.Fatal("CouncilVerdict is nil")
			}
			if v.RunID != cp.RunID {
				t.Errorf("verdict run %q, progress run %q", v.RunID, cp.RunID)
			}
			if v.NarrativeFallback || v.ExecutiveSummary != "Worth building." {
				t.Errorf("narrative = %q (fallback %v), want the model's", v.ExecutiveSummary, v.NarrativeFallback)
			}
			if v.OverallScore != 7.5 {
				t.Errorf("OverallScore = %v, want 7.5", v.OverallScore)
			}

			p, err = m.ReviewPhase(ctx, id, pipeline.ActionApprove, "")
			if err != nil {
				t.Fatalf("approve verdict error = %v", err)
			}
			expectState(t, p, project.PhaseConcept, project.SubStateReview, project.StepPRDReview)
			if p.Artifacts.PRD != "Plant Care PRD" {
				t.Errorf("PRD = %q", p.Artifacts.PRD)
			}

			p, err = m.ReviewPhase(ctx, id, pipeline.ActionApprove, "")
			if err != nil {
				t.Fatalf("approve prd error = %v", err)
			}
			expectState(t, p, project.PhaseSpec, project.SubStateReview, "")
			if p.Artifacts.Specs != "Generated artifact" {
				t.Errorf("Specs = %q", p.Artifacts.Specs)
			}

			steps := []struct {
				phase project.Phase
				step  project.Step
			}{
				{project.PhaseDesign, project.StepDesignSystem},
				{project.PhaseDesign, project.StepDesignMainScreens},
				{project.PhaseDesign, project.StepDesignAllScreens},
				{project.PhaseDev, ""},
				{project.PhaseTest, ""},
				{project.PhaseDeploy, ""},
			}
			for _, s := range steps {
				p, err = m.ReviewPhase(ctx, id, pipeline.ActionApprove, "")
				if err != nil {
					t.Fatalf("approve before %s/%s error = %v", s.phase, s.step, err)
				}
				expectState(t, p, s.phase, project.SubStateReview, s.step)
			}

			p, err = m.ReviewPhase(ctx, id, pipeline.ActionApprove, "")
			if err != nil {
				t.Fatalf("approve deploy error = %v", err)
			}
			if p.Pipeline.CurrentPhase != project.PhaseLive || p.Phase != project.PhaseLive {
				t.Fatalf("phase = %s, want live", p.Pipeline.CurrentPhase)
			}
			for _, a := range []string{p.Artifacts.DesignSystem, p.Artifacts.MainScreens, p.Artifacts.AllScreens,
				p.Artifacts.DevPlan, p.Artifacts.TestReport, p.Artifacts.DeployReport} {
				if a != "Generated artifact" {
					t.Errorf("artifact = %q, want every phase to have written one", a)
				}
			}

			// The stored record matches what the machine returned.
			stored, err := h.store.Get(ctx, id)
			if err != nil {
				t.Fatalf("store.Get() error = %v", err)
			}
			if stored.Pipeline.CurrentPhase != project.PhaseLive {
				t.Errorf("stored phase = %s, want live", stored.Pipeline.CurrentPhase)
			}

			h.mu.Lock()
			defer h.mu.Unlock()
			if n := len(h.phases); n == 0 || h.phases[n-1] != "live/approved" {
				t.Errorf("last phase event = %v, want live/approved", h.phases)
			}
		})
	}
}
