package project

import (
	"maps"
	"slices"
	"time"
)

// Clone returns a deep copy of the project. Stores hand out clones so that
// callers never share mutable state with each other.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	out := *p
	out.Metadata = maps.Clone(p.Metadata)
	out.Pipeline = p.Pipeline.clone()
	out.Artifacts = p.Artifacts.clone()
	return &out
}

func (ps *PipelineState) clone() *PipelineState {
	if ps == nil {
		return nil
	}
	out := *ps
	out.Phases = make(map[Phase]*PhaseState, len(ps.Phases))
	for k, v := range ps.Phases {
		if v == nil {
			continue
		}
		s := *v
		s.CompletedAt = cloneTime(v.CompletedAt)
		out.Phases[k] = &s
	}
	return &out
}

func (a Artifacts) clone() Artifacts {
	out := a
	out.SelectedCouncil = cloneMembers(a.SelectedCouncil)
	out.CouncilProgress = a.CouncilProgress.Clone()
	out.CouncilVerdict = a.CouncilVerdict.Clone()
	return out
}

func cloneMembers(in []CouncilMember) []CouncilMember {
	if in == nil {
		return nil
	}
	out := make([]CouncilMember, len(in))
	for i, m := range in {
		m.EvaluationCriteria = slices.Clone(m.EvaluationCriteria)
		out[i] = m
	}
	return out
}

// Clone returns a deep copy of the progress record.
func (cp *CouncilProgress) Clone() *CouncilProgress {
	if cp == nil {
		return nil
	}
	out := *cp
	out.Agents = make([]AgentProgressEntry, len(cp.Agents))
	for i, a := range cp.Agents {
		a.StartedAt = cloneTime(a.StartedAt)
		a.CompletedAt = cloneTime(a.CompletedAt)
		if a.Evaluation != nil {
			e := a.Evaluation.clone()
			a.Evaluation = &e
		}
		out.Agents[i] = a
	}
	return &out
}

func (e AgentEvaluation) clone() AgentEvaluation {
	out := e
	out.Concerns = slices.Clone(e.Concerns)
	out.Dimensions = slices.Clone(e.Dimensions)
	if e.Confidence != nil {
		c := *e.Confidence
		out.Confidence = &c
	}
	return out
}

// Clone returns a deep copy of the verdict.
func (v *Verdict) Clone() *Verdict {
	if v == nil {
		return nil
	}
	out := *v
	out.DimensionScores = slices.Clone(v.DimensionScores)
	out.ConsensusAreas = slices.Clone(v.ConsensusAreas)
	out.DisagreementAreas = slices.Clone(v.DisagreementAreas)
	out.MissingDimensions = slices.Clone(v.MissingDimensions)
	out.RecommendedActions = slices.Clone(v.RecommendedActions)
	out.Risks = slices.Clone(v.Risks)
	out.OpenQuestions = slices.Clone(v.OpenQuestions)
	out.ContributingAgents = slices.Clone(v.ContributingAgents)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
