package inference

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/Iron-Ham/foundry/internal/decision"
	"github.com/Iron-Ham/foundry/internal/logging"
	"github.com/Iron-Ham/foundry/internal/project"
)

// Narrative is the prose part of a verdict written by the model.
type Narrative struct {
	ExecutiveSummary   string   `json:"executive_summary"`
	KeyInsight         string   `json:"key_insight"`
	RecommendedActions []string `json:"recommended_actions"`
	Risks              []string `json:"risks"`
	OpenQuestions      []string `json:"open_questions"`
}

// SynthesisInput is the data the synthesis prompt template is rendered with.
type SynthesisInput struct {
	Title           string
	Description     string
	OverallScore    float64
	VerdictLevel    project.VerdictLevel
	DimensionScores []project.DimensionScore
	Evaluations     []project.AgentEvaluation
}

// PRDInput is the data for requirements generation.
type PRDInput struct {
	Title       string
	Description string
	Concept     string
	Verdict     *project.Verdict
	Feedback    string
}

// Provider issues the structured model calls the pipeline needs.
type Provider struct {
	completer Completer
	logger    *logging.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger used for call diagnostics.
func WithLogger(logger *logging.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProvider returns a Provider backed by completer.
func NewProvider(completer Completer, opts ...Option) *Provider {
	p := &Provider{
		completer: completer,
		logger:    logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) complete(ctx context.Context, call, prompt string) (string, error) {
	p.logger.Debug("inference call", "call", call, "prompt_bytes", len(prompt))
	out, err := p.completer.Complete(ctx, prompt)
	if err != nil {
		p.logger.Warn("inference call failed", "call", call, "error", err)
		return "", fmt.Errorf("%s: %w", call, err)
	}
	return out, nil
}

// Evaluate asks member to assess the concept and returns its evaluation.
func (p *Provider) Evaluate(ctx context.Context, member project.CouncilMember, title, description string) (project.AgentEvaluation, error) {
	prompt, err := renderEvaluationPrompt(member, title, description)
	if err != nil {
		return project.AgentEvaluation{}, err
	}
	out, err := p.complete(ctx, "evaluate", prompt)
	if err != nil {
		return project.AgentEvaluation{}, err
	}

	var eval project.AgentEvaluation
	if err := decodeTagged(out, "evaluation", &eval); err != nil {
		return project.AgentEvaluation{}, fmt.Errorf("evaluate %s: %w", member.AgentName, err)
	}
	eval.AgentName = member.AgentName
	if err := normalizeEvaluation(&eval); err != nil {
		return project.AgentEvaluation{}, fmt.Errorf("evaluate %s: %w", member.AgentName, err)
	}
	return eval, nil
}

// normalizeEvaluation rejects out-of-range scores and clamps confidence.
func normalizeEvaluation(eval *project.AgentEvaluation) error {
	if !inScoreRange(eval.Score) {
		return fmt.Errorf("score %v outside 0-10", eval.Score)
	}
	dims := eval.Dimensions[:0]
	for _, d := range eval.Dimensions {
		d.Dimension = strings.TrimSpace(d.Dimension)
		if d.Dimension == "" {
			continue
		}
		if !inScoreRange(d.Score) {
			return fmt.Errorf("dimension %s score %v outside 0-10", d.Dimension, d.Score)
		}
		if d.Weight < 0 {
			d.Weight = 0
		}
		dims = append(dims, d)
	}
	eval.Dimensions = dims
	if eval.Confidence != nil {
		c := math.Max(0, math.Min(1, *eval.Confidence))
		eval.Confidence = &c
	}
	return nil
}

func inScoreRange(s float64) bool {
	return !math.IsNaN(s) && s >= 0 && s <= 10
}

// Synthesize writes the council narrative using cfg's synthesis prompt.
func (p *Provider) Synthesize(ctx context.Context, in SynthesisInput, cfg *decision.Config) (Narrative, error) {
	if cfg == nil {
		cfg = decision.Default()
	}
	prompt, err := render("synthesis", cfg.SynthesisPrompt, in)
	if err != nil {
		return Narrative{}, err
	}
	out, err := p.complete(ctx, "synthesize", prompt)
	if err != nil {
		return Narrative{}, err
	}

	var n Narrative
	if err := decodeTagged(out, "synthesis", &n); err != nil {
		return Narrative{}, fmt.Errorf("synthesize: %w", err)
	}
	if strings.TrimSpace(n.ExecutiveSummary) == "" {
		return Narrative{}, fmt.Errorf("synthesize: %w: empty executive_summary", ErrInvalidJSON)
	}
	return n, nil
}

// SummarizeConcept condenses a concept into the refined summary the council
// evaluates.
func (p *Provider) SummarizeConcept(ctx context.Context, title, description string) (string, error) {
	prompt, err := render("summary", summaryPrompt, map[string]string{
		"Title":       title,
		"Description": description,
	})
	if err != nil {
		return "", err
	}
	out, err := p.complete(ctx, "summarize", prompt)
	if err != nil {
		return "", err
	}
	return textPayload(out, "summary")
}

// ProposePanel asks the model for at most limit council members suited to
// the concept. Members without a name are dropped and duplicate names keep
// the first occurrence.
func (p *Provider) ProposePanel(ctx context.Context, title, summary string, limit int) ([]project.CouncilMember, error) {
	prompt, err := render("panel", panelPrompt, map[string]any{
		"Title":   title,
		"Summary": summary,
		"Limit":   limit,
	})
	if err != nil {
		return nil, err
	}
	out, err := p.complete(ctx, "propose panel", prompt)
	if err != nil {
		return nil, err
	}

	var members []project.CouncilMember
	if err := decodeTagged(out, "panel", &members); err != nil {
		return nil, fmt.Errorf("propose panel: %w", err)
	}

	seen := make(map[string]bool, len(members))
	panel := make([]project.CouncilMember, 0, len(members))
	for _, m := range members {
		m.AgentName = strings.TrimSpace(m.AgentName)
		if m.AgentName == "" || seen[m.AgentName] {
			continue
		}
		seen[m.AgentName] = true
		panel = append(panel, m)
		if limit > 0 && len(panel) == limit {
			break
		}
	}
	return panel, nil
}

// GeneratePRD drafts the requirements document for an evaluated concept.
func (p *Provider) GeneratePRD(ctx context.Context, in PRDInput) (string, error) {
	prompt, err := render("prd", prdPrompt, in)
	if err != nil {
		return "", err
	}
	out, err := p.complete(ctx, "generate prd", prompt)
	if err != nil {
		return "", err
	}
	return textPayload(out, "prd")
}

// Generate runs a free-form prompt and returns the <artifact> block, or the
// whole output when the model did not tag it.
func (p *Provider) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := p.complete(ctx, "generate", prompt)
	if err != nil {
		return "", err
	}
	return textPayload(out, "artifact")
}
