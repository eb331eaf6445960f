// Package synthesis merges completed agent evaluations into a council
// verdict: aggregated dimension scores, a weighted overall score and level,
// consensus and disagreement areas, and a narrative written by the model or
// derived from templates when the model call fails.
package synthesis

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Iron-Ham/foundry/internal/decision"
	"github.com/Iron-Ham/foundry/internal/errors"
	"github.com/Iron-Ham/foundry/internal/inference"
	"github.com/Iron-Ham/foundry/internal/logging"
	"github.com/Iron-Ham/foundry/internal/project"
)

// Spread thresholds for agreement analysis. Spreads in (ConsensusSpread,
// DisagreementSpread] are neither.
const (
	ConsensusSpread    = 2.0
	DisagreementSpread = 4.0
)

// NeutralScore is the overall score when no dimension carries weight.
const NeutralScore = 5.0

const (
	maxFallbackRisks       = 5
	fallbackKeyInsight     = "Review the council's concerns to find the assumption the concept depends on most."
	fallbackOpenQuestion   = "What evidence would most change the council's assessment?"
	missingDimensionFormat = "No council member assessed %s; how does the concept hold up on it?"
)

// Narrator writes the verdict narrative. *inference.Provider implements it.
type Narrator interface {
	Synthesize(ctx context.Context, in inference.SynthesisInput, cfg *decision.Config) (inference.Narrative, error)
}

// Request is one synthesis job.
type Request struct {
	RunID       string
	Title       string
	Description string
	Evaluations []project.AgentEvaluation
}

// Aggregator produces verdicts. It holds no per-run state and is safe for
// concurrent use.
type Aggregator struct {
	narrator Narrator
	config   *decision.Config
	logger   *logging.Logger
	now      func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithClock overrides the verdict timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// New returns an Aggregator. A nil cfg uses decision.Default().
func New(narrator Narrator, cfg *decision.Config, opts ...Option) *Aggregator {
	if cfg == nil {
		cfg = decision.Default()
	}
	a := &Aggregator{
		narrator: narrator,
		config:   cfg,
		logger:   logging.NopLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Config returns the decision configuration in use.
func (a *Aggregator) Config() *decision.Config {
	return a.config
}

// Synthesize builds a new verdict from req.Evaluations. It fails with
// ErrNoEvaluations when there is nothing to aggregate, and with
// ErrNarrativeFailed only when strict narrative mode is on.
func (a *Aggregator) Synthesize(ctx context.Context, req Request) (*project.Verdict, error) {
	if len(req.Evaluations) == 0 {
		return nil, errors.ErrNoEvaluations
	}

	agg := aggregate(req.Evaluations)
	overall := a.overallScore(agg)
	level := a.config.LevelFor(overall)

	v := &project.Verdict{
		RunID:                req.RunID,
		DimensionScores:      make([]project.DimensionScore, 0, len(agg)),
		OverallScore:         overall,
		VerdictLevel:         level,
		Confidence:           averageConfidence(req.Evaluations),
		ConsensusAreas:       []project.AgreementArea{},
		DisagreementAreas:    []project.AgreementArea{},
		MissingDimensions:    a.missingDimensions(agg),
		SynthesizedReasoning: "",
		ContributingAgents:   make([]string, 0, len(req.Evaluations)),
		CreatedAt:            a.now(),
	}
	for _, e := range req.Evaluations {
		v.ContributingAgents = append(v.ContributingAgents, e.AgentName)
	}
	for _, d := range agg {
		v.DimensionScores = append(v.DimensionScores, d.score)
		if area, kind := d.agreement(); kind == consensus {
			v.ConsensusAreas = append(v.ConsensusAreas, area)
		} else if kind == disagreement {
			v.DisagreementAreas = append(v.DisagreementAreas, area)
		}
	}
	v.SynthesizedReasoning = reasoningSummary(v.DimensionScores)

	log := a.logger.With("run_id", req.RunID)
	narrative, err := a.narrate(ctx, req, v)
	if err != nil {
		if a.config.StrictNarrative {
			log.Warn("narrative failed in strict mode", "error", err)
			return nil, errors.Join(errors.ErrNarrativeFailed, err)
		}
		log.Warn("narrative failed, using fallback", "error", err)
		narrative = a.fallbackNarrative(req, v)
		v.NarrativeFallback = true
	}

	v.ExecutiveSummary = narrative.ExecutiveSummary
	v.KeyInsight = narrative.KeyInsight
	v.RecommendedActions = nonNil(narrative.RecommendedActions)
	v.Risks = nonNil(narrative.Risks)
	v.OpenQuestions = nonNil(narrative.OpenQuestions)
	for _, dim := range v.MissingDimensions {
		v.OpenQuestions = append(v.OpenQuestions, fmt.Sprintf(missingDimensionFormat, dim))
	}

	log.Info("verdict synthesized",
		"overall_score", v.OverallScore,
		"verdict_level", v.VerdictLevel,
		"contributors", len(v.ContributingAgents),
		"fallback", v.NarrativeFallback)
	return v, nil
}

func (a *Aggregator) narrate(ctx context.Context, req Request, v *project.Verdict) (inference.Narrative, error) {
	if a.narrator == nil {
		return inference.Narrative{}, fmt.Errorf("no narrator configured")
	}
	return a.narrator.Synthesize(ctx, inference.SynthesisInput{
		Title:           req.Title,
		Description:     req.Description,
		OverallScore:    v.OverallScore,
		VerdictLevel:    v.VerdictLevel,
		DimensionScores: v.DimensionScores,
		Evaluations:     req.Evaluations,
	}, a.config)
}

// overallScore is the weighted mean of the aggregated dimension scores.
func (a *Aggregator) overallScore(agg []*dimension) float64 {
	var sum, total float64
	for _, d := range agg {
		w := d.score.Weight
		if configured, ok := a.config.Weight(d.score.Dimension); ok {
			w = configured
			d.score.Weight = configured
		}
		sum += d.score.Score * w
		total += w
	}
	if total == 0 {
		return NeutralScore
	}
	return round1(sum / total)
}

func (a *Aggregator) missingDimensions(agg []*dimension) []string {
	reported := make(map[string]bool, len(agg))
	for _, d := range agg {
		reported[d.score.Dimension] = true
	}
	var missing []string
	for _, dim := range a.config.RequiredDimensions {
		if !reported[dim] {
			missing = append(missing, dim)
		}
	}
	return missing
}

func (a *Aggregator) fallbackNarrative(req Request, v *project.Verdict) inference.Narrative {
	n := inference.Narrative{
		ExecutiveSummary: fmt.Sprintf("%d council %s evaluated %q with an overall score of %.1f/10 (%s).",
			len(req.Evaluations), plural(len(req.Evaluations), "agent", "agents"), req.Title, v.OverallScore, v.VerdictLevel),
		KeyInsight:         fallbackKeyInsight,
		RecommendedActions: a.config.ActionsFor(v.VerdictLevel),
		Risks:              []string{},
		OpenQuestions:      []string{fallbackOpenQuestion},
	}
	for _, e := range req.Evaluations {
		if e.KeyInsight != "" {
			n.KeyInsight = e.KeyInsight
			break
		}
	}
collect:
	for _, e := range req.Evaluations {
		for _, c := range e.Concerns {
			if len(n.Risks) == maxFallbackRisks {
				break collect
			}
			n.Risks = append(n.Risks, c)
		}
	}
	return n
}

type agreementKind int

const (
	neither agreementKind = iota
	consensus
	disagreement
)

// dimension accumulates the raw per-agent scores for one dimension.
type dimension struct {
	score     project.DimensionScore
	raw       []float64
	weights   []float64
	reasoning []string
}

// agreement classifies the raw spread. Dimensions with a single reporter
// are never classified.
func (d *dimension) agreement() (project.AgreementArea, agreementKind) {
	if len(d.raw) < 2 {
		return project.AgreementArea{}, neither
	}
	lo, hi := d.raw[0], d.raw[0]
	for _, s := range d.raw[1:] {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	area := project.AgreementArea{
		Dimension: d.score.Dimension,
		Spread:    round1(hi - lo),
		Min:       lo,
		Max:       hi,
	}
	switch {
	case hi-lo <= ConsensusSpread:
		return area, consensus
	case hi-lo > DisagreementSpread:
		return area, disagreement
	default:
		return area, neither
	}
}

// aggregate groups dimension scores by name in order of first appearance.
func aggregate(evals []project.AgentEvaluation) []*dimension {
	var order []*dimension
	byName := make(map[string]*dimension)
	for _, e := range evals {
		for _, de := range e.Dimensions {
			d, ok := byName[de.Dimension]
			if !ok {
				d = &dimension{score: project.DimensionScore{Dimension: de.Dimension}}
				byName[de.Dimension] = d
				order = append(order, d)
			}
			d.raw = append(d.raw, de.Score)
			d.weights = append(d.weights, de.Weight)
			d.reasoning = append(d.reasoning, de.Reasoning)
		}
	}

	for _, d := range order {
		d.score.Score = round1(mean(d.raw))
		d.score.Weight = mean(d.weights)
		d.score.Reporters = len(d.raw)
		d.score.Reasoning = firstReasoning(d.reasoning)
	}
	return order
}

// firstReasoning returns the first non-empty reasoning, annotated with how
// many other agents reported the dimension.
func firstReasoning(reasons []string) string {
	first := ""
	for _, r := range reasons {
		if r != "" {
			first = r
			break
		}
	}
	if extra := len(reasons) - 1; extra > 0 {
		return fmt.Sprintf("%s (+%d additional %s)", first, extra, plural(extra, "perspective", "perspectives"))
	}
	return first
}

func reasoningSummary(scores []project.DimensionScore) string {
	var sb strings.Builder
	for i, s := range scores {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s (%.1f): %s", s.Dimension, s.Score, s.Reasoning)
	}
	return sb.String()
}

func averageConfidence(evals []project.AgentEvaluation) float64 {
	vals := make([]float64, len(evals))
	for i, e := range evals {
		vals[i] = decision.DefaultConfidence
		if e.Confidence != nil {
			vals[i] = *e.Confidence
		}
	}
	return math.Round(mean(vals)*100) / 100
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
