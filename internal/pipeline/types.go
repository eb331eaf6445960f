package pipeline

import (
	"context"
	"time"

	"github.com/Iron-Ham/foundry/internal/council"
	"github.com/Iron-Ham/foundry/internal/decision"
	"github.com/Iron-Ham/foundry/internal/event"
	"github.com/Iron-Ham/foundry/internal/inference"
	"github.com/Iron-Ham/foundry/internal/logging"
	"github.com/Iron-Ham/foundry/internal/project"
	"github.com/Iron-Ham/foundry/internal/store"
)

// Review actions.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// DefaultMaxPanelSize caps proposed panels when Config.MaxPanelSize is unset.
const DefaultMaxPanelSize = 8

// ConceptAssistant makes the model calls of the concept sub-flow.
// *inference.Provider implements it.
type ConceptAssistant interface {
	SummarizeConcept(ctx context.Context, title, description string) (string, error)
	ProposePanel(ctx context.Context, title, summary string, limit int) ([]project.CouncilMember, error)
	GeneratePRD(ctx context.Context, in inference.PRDInput) (string, error)
}

// Config holds the Machine's collaborators.
type Config struct {
	Updater   *store.Updater   // Required; all writes go through it
	Engine    *council.Engine  // Required; runs the concept council
	Assistant ConceptAssistant // Required; concept summary, panel and PRD
	Runners   *Registry        // Phase runners; defaults to NewRegistry()
	Decision  *decision.Config // Default panel source; defaults to decision.Default()

	// MaxPanelSize bounds proposed and default panels.
	MaxPanelSize int
}

// Option configures optional Machine settings.
type Option func(*Machine)

// WithBus publishes pipeline events on bus.
func WithBus(bus *event.Bus) Option {
	return func(m *Machine) {
		m.bus = bus
	}
}

// WithLogger sets the machine logger.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// Status is a read-only snapshot of a project's pipeline position.
type Status struct {
	Project  *project.Project       `json:"project"`
	Pipeline *project.PipelineState `json:"pipeline,omitempty"`
	Current  *project.PhaseState    `json:"current,omitempty"`
}
