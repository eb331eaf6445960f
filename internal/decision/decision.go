// Package decision holds the configuration that turns agent evaluations into
// a verdict: per-dimension weights, required dimensions, verdict-level
// thresholds, the synthesis prompt template, fallback action templates and
// the default evaluation panel.
//
// The built-in configuration ([Default]) can be overridden field by field
// from a YAML file with [Load].
package decision

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/foundry/internal/project"
)

// Verdict levels used by the default thresholds.
const (
	LevelStrongGo   project.VerdictLevel = "strong_go"
	LevelPromising  project.VerdictLevel = "promising"
	LevelNeedsWork  project.VerdictLevel = "needs_work"
	LevelReconsider project.VerdictLevel = "reconsider"
)

// DefaultActionsKey is the ActionTemplates entry used for levels without
// their own templates.
const DefaultActionsKey = "default"

// DefaultConfidence is assumed for evaluations that do not report one.
const DefaultConfidence = 0.7

// Threshold maps overall scores at or above MinScore to Level.
type Threshold struct {
	MinScore float64              `yaml:"min_score" json:"min_score"`
	Level    project.VerdictLevel `yaml:"level" json:"level"`
}

// Config is the decision configuration consumed by synthesis.
type Config struct {
	// DimensionWeights override the weight an agent reports for a dimension.
	DimensionWeights map[string]float64 `yaml:"dimension_weights"`
	// RequiredDimensions must be reported by at least one agent; missing ones
	// are listed on the verdict.
	RequiredDimensions []string `yaml:"required_dimensions"`
	// Thresholds are evaluated highest MinScore first.
	Thresholds []Threshold `yaml:"verdict_thresholds"`
	// SynthesisPrompt is a text/template rendered with the synthesis input.
	SynthesisPrompt string `yaml:"synthesis_prompt"`
	// ActionTemplates are the fallback recommended actions keyed by verdict
	// level, with DefaultActionsKey as the catch-all.
	ActionTemplates map[string][]string `yaml:"action_templates"`
	// DefaultPanel is used when no panel is proposed for a concept.
	DefaultPanel []project.CouncilMember `yaml:"default_panel"`
	// StrictNarrative makes a failed narrative call fail synthesis instead of
	// falling back to the templated narrative.
	StrictNarrative bool `yaml:"strict_narrative"`
}

// Default returns the built-in decision configuration.
func Default() *Config {
	return &Config{
		DimensionWeights: map[string]float64{
			"market_fit":  1.5,
			"feasibility": 1.25,
			"user_value":  1.5,
			"risk":        1.0,
			"cost":        0.75,
		},
		RequiredDimensions: []string{"market_fit", "feasibility", "user_value"},
		Thresholds: []Threshold{
			{MinScore: 8.0, Level: LevelStrongGo},
			{MinScore: 6.5, Level: LevelPromising},
			{MinScore: 4.5, Level: LevelNeedsWork},
			{MinScore: 0, Level: LevelReconsider},
		},
		SynthesisPrompt: defaultSynthesisPrompt,
		ActionTemplates: map[string][]string{
			string(LevelStrongGo): {
				"Proceed to requirements and lock the initial scope",
				"Validate the riskiest assumption with a small prototype",
			},
			string(LevelPromising): {
				"Address the top concerns before committing to scope",
				"Run lightweight user interviews to confirm the core value",
			},
			string(LevelNeedsWork): {
				"Refine the concept around the weakest dimensions",
				"Re-run the council after revising the concept",
			},
			string(LevelReconsider): {
				"Revisit the problem statement and target users",
				"Consider an alternative concept before investing further",
			},
			DefaultActionsKey: {
				"Review the council's concerns and refine the concept",
			},
		},
		DefaultPanel: []project.CouncilMember{
			{
				AgentName:          "market-analyst",
				Role:               "Market Analyst",
				Focus:              "market size, competition and positioning",
				EvaluationCriteria: []string{"market_fit", "user_value"},
			},
			{
				AgentName:          "technical-architect",
				Role:               "Technical Architect",
				Focus:              "implementation complexity and technical risk",
				EvaluationCriteria: []string{"feasibility", "risk"},
			},
			{
				AgentName:          "product-strategist",
				Role:               "Product Strategist",
				Focus:              "user problems, value proposition and scope",
				EvaluationCriteria: []string{"user_value", "market_fit"},
			},
			{
				AgentName:          "devils-advocate",
				Role:               "Devil's Advocate",
				Focus:              "failure modes, hidden costs and weak assumptions",
				EvaluationCriteria: []string{"risk", "cost"},
			},
		},
	}
}

// Load reads a YAML file and overlays it on Default. Fields absent from the
// file keep their defaults; map fields are merged key by key.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read decision config: %w", err)
	}
	return Parse(data)
}

// Parse overlays YAML data on Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse decision config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize sorts thresholds highest first.
func (c *Config) normalize() {
	sort.SliceStable(c.Thresholds, func(i, j int) bool {
		return c.Thresholds[i].MinScore > c.Thresholds[j].MinScore
	})
}

// Validate reports the first structural problem with the configuration.
func (c *Config) Validate() error {
	if len(c.Thresholds) == 0 {
		return fmt.Errorf("decision config: at least one verdict threshold is required")
	}
	for _, t := range c.Thresholds {
		if t.Level == "" {
			return fmt.Errorf("decision config: threshold %.1f has no level", t.MinScore)
		}
		if t.MinScore < 0 || t.MinScore > 10 {
			return fmt.Errorf("decision config: threshold %q min_score %.1f outside 0-10", t.Level, t.MinScore)
		}
	}
	for dim, w := range c.DimensionWeights {
		if w < 0 {
			return fmt.Errorf("decision config: dimension %q has negative weight", dim)
		}
	}
	for i, m := range c.DefaultPanel {
		if strings.TrimSpace(m.AgentName) == "" {
			return fmt.Errorf("decision config: default_panel[%d] has no agent_name", i)
		}
	}
	if _, err := template.New("synthesis").Parse(c.SynthesisPrompt); err != nil {
		return fmt.Errorf("decision config: synthesis_prompt: %w", err)
	}
	return nil
}

// LevelFor maps an overall score to a verdict level. Scores below every
// threshold get the lowest threshold's level.
func (c *Config) LevelFor(score float64) project.VerdictLevel {
	for _, t := range c.Thresholds {
		if score >= t.MinScore {
			return t.Level
		}
	}
	if n := len(c.Thresholds); n > 0 {
		return c.Thresholds[n-1].Level
	}
	return LevelReconsider
}

// Weight returns the configured weight for dimension.
func (c *Config) Weight(dimension string) (float64, bool) {
	w, ok := c.DimensionWeights[dimension]
	return w, ok
}

// ActionsFor returns a copy of the fallback actions for level.
func (c *Config) ActionsFor(level project.VerdictLevel) []string {
	if actions, ok := c.ActionTemplates[string(level)]; ok && len(actions) > 0 {
		return slices.Clone(actions)
	}
	return slices.Clone(c.ActionTemplates[DefaultActionsKey])
}

// Panel returns a copy of the default panel truncated to limit members.
// limit <= 0 means no limit.
func (c *Config) Panel(limit int) []project.CouncilMember {
	panel := c.DefaultPanel
	if limit > 0 && len(panel) > limit {
		panel = panel[:limit]
	}
	out := make([]project.CouncilMember, len(panel))
	for i, m := range panel {
		m.EvaluationCriteria = slices.Clone(m.EvaluationCriteria)
		out[i] = m
	}
	return out
}

const defaultSynthesisPrompt = `You are chairing a council that evaluated a product concept.

Concept: {{.Title}}
{{.Description}}

Overall score: {{printf "%.1f" .OverallScore}} ({{.VerdictLevel}})
{{range .DimensionScores}}- {{.Dimension}}: {{printf "%.1f" .Score}}
{{end}}
Agent evaluations:
{{range .Evaluations}}
## {{.AgentName}} (score {{printf "%.1f" .Score}})
{{.Reasoning}}
{{range .Concerns}}- concern: {{.}}
{{end}}{{end}}
Write the council's narrative. Respond with a single JSON object wrapped in
<synthesis></synthesis> tags with the keys "executive_summary" (string),
"key_insight" (string), "recommended_actions" (array of strings), "risks"
(array of strings) and "open_questions" (array of strings).
`
