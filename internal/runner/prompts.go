package runner

import "text/template"

var (
	specTemplate         = mustParse("specs", specPrompt)
	designSystemTemplate = mustParse("design_system", designSystemPrompt)
	mainScreensTemplate  = mustParse("main_screens", mainScreensPrompt)
	allScreensTemplate   = mustParse("all_screens", allScreensPrompt)
	devTemplate          = mustParse("dev_plan", devPrompt)
	testTemplate         = mustParse("test_report", testPrompt)
	deployTemplate       = mustParse("deploy_report", deployPrompt)
)

func mustParse(name, text string) *template.Template {
	return template.Must(template.New(name).Option("missingkey=zero").Parse(preamble + text + revision + outputFormat))
}

const preamble = `Product: {{.Title}}
{{with .Concept}}
Concept:
{{.}}
{{end}}{{with .PRD}}
Product requirements:
{{.}}
{{end}}
`

const revision = `{{if .Feedback}}
A reviewer rejected the previous draft.

Previous draft:
{{.Previous}}

Reviewer feedback:
{{.Feedback}}

Revise the draft to address the feedback. Keep what the reviewer did not object to.
{{end}}`

const outputFormat = `
Wrap the complete document in <artifact></artifact> tags. Use Markdown inside the tags.
`

const specPrompt = `You are a staff engineer writing the technical specification for this product.

Cover the system architecture, data model, external interfaces, error handling
and the acceptance criteria for every requirement above. Call out open risks.
`

const designSystemPrompt = `You are a product designer defining the design system for this product.
{{with .Specs}}
Technical specification:
{{.}}
{{end}}
Define color tokens, typography, spacing, iconography and the core components
with their states.
`

const mainScreensPrompt = `You are a product designer laying out the primary screens of this product.

Design system:
{{.DesignSystem}}

Describe the three to five screens a user sees most often: layout, content,
components used from the design system and the transitions between them.
`

const allScreensPrompt = `You are a product designer completing the screen inventory of this product.

Design system:
{{.DesignSystem}}

Main screens:
{{.MainScreens}}

List every remaining screen, empty state, error state and settings page, each
with its layout and the components it uses.
`

const devPrompt = `You are a tech lead planning the implementation of this product.
{{with .Specs}}
Technical specification:
{{.}}
{{end}}{{with .AllScreens}}
Screens:
{{.}}
{{end}}
Break the work into milestones and tasks with dependencies, estimates and the
order they should be built in.
`

const testPrompt = `You are a QA lead preparing the test plan for this product.
{{with .Specs}}
Technical specification:
{{.}}
{{end}}{{with .DevPlan}}
Implementation plan:
{{.}}
{{end}}
List the test suites, the critical user journeys they cover, and the exit
criteria for release.
`

const deployPrompt = `You are a release engineer preparing this product for launch.
{{with .DevPlan}}
Implementation plan:
{{.}}
{{end}}{{with .TestReport}}
Test plan:
{{.}}
{{end}}
Describe environments, the rollout strategy, monitoring, rollback steps and
the launch checklist.
`
