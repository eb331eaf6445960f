package cmd

import (
	"fmt"

	"github.com/Iron-Ham/foundry/internal/config"
	"github.com/Iron-Ham/foundry/internal/council"
	"github.com/Iron-Ham/foundry/internal/decision"
	"github.com/Iron-Ham/foundry/internal/event"
	"github.com/Iron-Ham/foundry/internal/inference"
	"github.com/Iron-Ham/foundry/internal/logging"
	"github.com/Iron-Ham/foundry/internal/pipeline"
	"github.com/Iron-Ham/foundry/internal/runner"
	"github.com/Iron-Ham/foundry/internal/store"
	"github.com/Iron-Ham/foundry/internal/synthesis"
)

// app holds the wired collaborators one command invocation uses.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	store    store.Store
	updater  *store.Updater
	bus      *event.Bus
	engine   *council.Engine
	machine  *pipeline.Machine
	decision *decision.Config
}

// newCompleter builds the model completer. Tests replace it.
var newCompleter = func(cfg config.InferenceConfig) inference.Completer {
	return inference.NewCommandCompleterFromConfig(cfg)
}

// loadApp loads the configuration and wires the pipeline.
func loadApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return newApp(cfg)
}

func newApp(cfg *config.Config) (*app, error) {
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	dec := decision.Default()
	if cfg.Council.DecisionFile != "" {
		dec, err = decision.Load(cfg.Council.DecisionFile)
		if err != nil {
			_ = logger.Close()
			return nil, fmt.Errorf("failed to load decision file: %w", err)
		}
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("failed to open project store: %w", err)
	}
	updater := store.NewUpdater(st)

	bus := event.NewBus(event.WithLogger(logger))
	bus.SubscribeAll(func(e event.Event) {
		logger.Debug("event published", "event_type", e.EventType())
	})

	provider := inference.NewProvider(newCompleter(cfg.Inference), inference.WithLogger(logger))
	aggregator := synthesis.New(provider, dec, synthesis.WithLogger(logger))
	engine := council.NewEngine(updater, provider, aggregator,
		council.WithDeadline(cfg.Council.Deadline),
		council.WithBus(bus),
		council.WithLogger(logger),
		council.WithMetrics(council.DefaultMetrics()),
	)

	registry := pipeline.NewRegistry()
	runner.RegisterDefaults(registry, provider, runner.WithLogger(logger))

	machine, err := pipeline.New(pipeline.Config{
		Updater:      updater,
		Engine:       engine,
		Assistant:    provider,
		Runners:      registry,
		Decision:     dec,
		MaxPanelSize: cfg.Council.MaxPanelSize,
	}, pipeline.WithBus(bus), pipeline.WithLogger(logger))
	if err != nil {
		_ = store.Close(st)
		_ = logger.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		updater:  updater,
		bus:      bus,
		engine:   engine,
		machine:  machine,
		decision: dec,
	}, nil
}

func newLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	if !cfg.Enabled {
		return logging.NopLogger(), nil
	}
	logger, err := logging.NewLoggerWithRotation(config.LogDir(), cfg.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	return logger, nil
}

// Close waits for any council run this invocation launched, then releases
// the store and the log file.
func (a *app) Close() error {
	a.engine.Wait()
	err := store.Close(a.store)
	if lerr := a.logger.Close(); err == nil {
		err = lerr
	}
	return err
}
