package inference

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Iron-Ham/foundry/internal/project"
)

func render(name, text string, data any) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse %s prompt: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}
	return buf.String(), nil
}

type evaluationData struct {
	project.CouncilMember
	Title       string
	Description string
	Criteria    string
}

// renderEvaluationPrompt renders the member's PromptOverride when set,
// otherwise the built-in evaluation prompt.
func renderEvaluationPrompt(member project.CouncilMember, title, description string) (string, error) {
	text := evaluationPrompt
	if strings.TrimSpace(member.PromptOverride) != "" {
		text = member.PromptOverride
	}
	return render("evaluation", text, evaluationData{
		CouncilMember: member,
		Title:         title,
		Description:   description,
		Criteria:      strings.Join(member.EvaluationCriteria, ", "),
	})
}

const evaluationPrompt = `You are {{.Role}} ({{.AgentName}}) on a council evaluating a product concept.
Your focus: {{.Focus}}

Concept: {{.Title}}
{{.Description}}

Score the concept from 0 to 10 overall{{if .Criteria}} and on each of these dimensions: {{.Criteria}}{{end}}.
Be specific and candid; list concrete concerns.

Respond with a single JSON object wrapped in <evaluation></evaluation> tags:
<evaluation>
{
  "score": 7.5,
  "reasoning": "...",
  "concerns": ["..."],
  "key_insight": "...",
  "confidence": 0.8,
  "dimensions": [{"dimension": "feasibility", "score": 7, "weight": 1, "reasoning": "..."}]
}
</evaluation>
`

const summaryPrompt = `Summarize this product concept for an evaluation council.
State the problem, the target users, the proposed solution and what makes it different.
Keep it under 300 words.

Concept: {{.Title}}
{{.Description}}

Wrap the summary in <summary></summary> tags.
`

const panelPrompt = `Propose an evaluation council for this product concept.

Concept: {{.Title}}
{{.Summary}}

Choose {{if .Limit}}at most {{.Limit}}{{else}}a small number of{{end}} complementary evaluators.
Respond with a JSON array wrapped in <panel></panel> tags. Each element has the keys
"agent_name" (kebab-case), "role", "focus" and "evaluation_criteria" (array of dimension names
such as market_fit, feasibility, user_value, risk, cost).
`

const prdPrompt = `Write a product requirements document in Markdown.

Concept: {{.Title}}
{{if .Concept}}{{.Concept}}{{else}}{{.Description}}{{end}}
{{with .Verdict}}
Council verdict: {{.VerdictLevel}} ({{printf "%.1f" .OverallScore}}/10)
{{.ExecutiveSummary}}
{{range .Risks}}- risk: {{.}}
{{end}}{{range .RecommendedActions}}- action: {{.}}
{{end}}{{end}}{{if .Feedback}}
Revise the previous draft to address this reviewer feedback:
{{.Feedback}}
{{end}}
Cover goals, users, scope, functional requirements, non-functional requirements and open questions.
Wrap the document in <prd></prd> tags.
`
