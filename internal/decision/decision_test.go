package decision

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Iron-Ham/foundry/internal/project"
)

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLevelFor(t *testing.T) {
	cfg := Default()
	tests := []struct {
		score float64
		want  project.VerdictLevel
	}{
		{10, LevelStrongGo},
		{8.0, LevelStrongGo},
		{7.9, LevelPromising},
		{6.5, LevelPromising},
		{5.0, LevelNeedsWork},
		{4.4, LevelReconsider},
		{0, LevelReconsider},
		{-1, LevelReconsider},
	}
	for _, tt := range tests {
		if got := cfg.LevelFor(tt.score); got != tt.want {
			t.Errorf("LevelFor(%.1f) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestActionsFor(t *testing.T) {
	cfg := Default()

	got := cfg.ActionsFor(LevelPromising)
	if len(got) != 2 {
		t.Fatalf("ActionsFor(promising) = %v", got)
	}
	got[0] = "mutated"
	if cfg.ActionTemplates[string(LevelPromising)][0] == "mutated" {
		t.Error("ActionsFor should return a copy")
	}

	if got := cfg.ActionsFor("unknown_level"); len(got) != 1 || !strings.Contains(got[0], "refine") {
		t.Errorf("ActionsFor(unknown) = %v, want default actions", got)
	}
}

func TestPanel(t *testing.T) {
	cfg := Default()
	if got := cfg.Panel(2); len(got) != 2 {
		t.Errorf("Panel(2) returned %d members", len(got))
	}
	if got := cfg.Panel(0); len(got) != len(cfg.DefaultPanel) {
		t.Errorf("Panel(0) returned %d members, want all", len(got))
	}
	p := cfg.Panel(1)
	p[0].EvaluationCriteria[0] = "mutated"
	if cfg.DefaultPanel[0].EvaluationCriteria[0] == "mutated" {
		t.Error("Panel should deep copy criteria")
	}
}

func TestParse_OverlaysDefaults(t *testing.T) {
	data := []byte(`
dimension_weights:
  feasibility: 3
  novelty: 0.5
verdict_thresholds:
  - {min_score: 0, level: low}
  - {min_score: 7, level: high}
strict_narrative: true
default_panel:
  - agent_name: solo
    role: Generalist
    focus: everything
    evaluation_criteria: [feasibility]
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if w, _ := cfg.Weight("feasibility"); w != 3 {
		t.Errorf("Weight(feasibility) = %v, want 3", w)
	}
	if w, ok := cfg.Weight("market_fit"); !ok || w != 1.5 {
		t.Errorf("Weight(market_fit) = %v, %v; default should survive the overlay", w, ok)
	}
	if _, ok := cfg.Weight("novelty"); !ok {
		t.Error("novelty weight should be added")
	}
	if cfg.Thresholds[0].Level != "high" {
		t.Errorf("thresholds not sorted highest first: %+v", cfg.Thresholds)
	}
	if cfg.LevelFor(7.2) != "high" || cfg.LevelFor(3) != "low" {
		t.Error("LevelFor does not use overridden thresholds")
	}
	if !cfg.StrictNarrative {
		t.Error("StrictNarrative should be true")
	}
	if len(cfg.DefaultPanel) != 1 || cfg.DefaultPanel[0].AgentName != "solo" {
		t.Errorf("DefaultPanel = %+v", cfg.DefaultPanel)
	}
	if cfg.SynthesisPrompt == "" {
		t.Error("SynthesisPrompt should keep its default")
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":         "dimension_weights: [",
		"negative weight":  "dimension_weights: {risk: -1}",
		"empty thresholds": "verdict_thresholds: []",
		"unnamed level":    "verdict_thresholds: [{min_score: 5}]",
		"out of range":     "verdict_thresholds: [{min_score: 11, level: x}]",
		"unnamed agent":    "default_panel: [{role: x}]",
		"bad template":     "synthesis_prompt: '{{.Title'",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(data)); err == nil {
				t.Error("Parse() should fail")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decision.yaml")
	if err := os.WriteFile(path, []byte("required_dimensions: [risk]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.RequiredDimensions) != 1 || cfg.RequiredDimensions[0] != "risk" {
		t.Errorf("RequiredDimensions = %v", cfg.RequiredDimensions)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load(missing) should fail")
	}
}
