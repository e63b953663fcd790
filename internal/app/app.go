// Package app wires configuration into a ready-to-run executor.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/stevehiehn/capflow/internal/artifact"
	"github.com/stevehiehn/capflow/internal/capabilities"
	"github.com/stevehiehn/capflow/internal/capability"
	"github.com/stevehiehn/capflow/internal/config"
	"github.com/stevehiehn/capflow/internal/engine"
	"github.com/stevehiehn/capflow/internal/plan"
	"github.com/stevehiehn/capflow/internal/progress"
	"github.com/stevehiehn/capflow/internal/store"
)

// App holds the wired components for one process.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *capability.Registry
	Executor *engine.Executor
	WorkDir  string

	closers []func() error
}

// Option adjusts what Build wires.
type Option func(*options)

type options struct {
	llm      llms.Model
	searcher capabilities.Searcher
	sinks    []progress.Sink
}

// WithLLM overrides the configured model.
func WithLLM(m llms.Model) Option {
	return func(o *options) { o.llm = m }
}

// WithSearcher overrides the web searcher.
func WithSearcher(s capabilities.Searcher) Option {
	return func(o *options) { o.searcher = s }
}

// WithProgress adds a progress sink.
func WithProgress(s progress.Sink) Option {
	return func(o *options) { o.sinks = append(o.sinks, s) }
}

// Build creates the model, searcher, persister, event publisher, registry
// and executor described by cfg.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, workDir string, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: capability.NewRegistry(),
		WorkDir:  workDir,
	}

	model := o.llm
	if model == nil {
		m, err := newModel(cfg, logger)
		if err != nil {
			return nil, err
		}
		model = m
	}

	searcher := o.searcher
	if searcher == nil {
		s, err := capabilities.NewDuckDuckGo(cfg.Research.MaxResults)
		if err != nil {
			return nil, fmt.Errorf("creating searcher: %w", err)
		}
		searcher = s
	}

	persister, err := a.openStore()
	if err != nil {
		return nil, err
	}

	sinks := progress.Multi{progress.NewLogSink(logger)}
	sinks = append(sinks, o.sinks...)
	if url := cfg.Events.NATSURL; url != "" {
		nc, err := nats.Connect(url, nats.Name("capflow"), nats.Timeout(5*time.Second))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connecting to nats: %w", err)
		}
		a.closers = append(a.closers, func() error { nc.Close(); return nil })
		sinks = append(sinks, progress.NewNATSSink(nc, cfg.Events.Subject, logger))
		logger.Debug("publishing progress to nats", "url", url, "subject", cfg.Events.Subject)
	}

	err = capabilities.Register(a.Registry, capabilities.Deps{
		LLM:       model,
		Searcher:  searcher,
		Persister: persister,
		Research: capabilities.ResearchOptions{
			MaxResults: cfg.Research.MaxResults,
			Timeout:    cfg.ResearchTimeout(),
			MaxTries:   cfg.Research.MaxTries,
		},
		WriteDocuments: cfg.Artifacts.Enabled && cfg.Artifacts.WriteDocuments,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	execOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithProgress(sinks),
	}
	if cfg.Artifacts.Enabled {
		execOpts = append(execOpts, engine.WithArtifacts(openArtifacts))
	}
	a.Executor = engine.New(a.Registry, execOpts...)
	return a, nil
}

// Run executes p with a fresh run context.
func (a *App) Run(ctx context.Context, p *plan.ExecutionPlan, inputs, session map[string]string) (*engine.Result, error) {
	rc := engine.NewRunContext(a.WorkDir, inputs, session)
	return a.Executor.Execute(ctx, p, rc)
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func (a *App) openStore() (store.Persister, error) {
	cfg := a.Config.Storage
	switch cfg.Kind {
	case "http":
		return store.NewHTTPClient(cfg.Endpoint, a.Config.StorageToken()), nil
	default:
		path := cfg.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(a.WorkDir, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating storage dir: %w", err)
		}
		db, err := store.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		return db, nil
	}
}

func openArtifacts(executionID, workDir string) (engine.ArtifactWriter, error) {
	s, err := artifact.New(executionID, workDir)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// newModel returns the configured model, or nil when none is usable.
func newModel(cfg *config.Config, logger *slog.Logger) (llms.Model, error) {
	if cfg.LLM.Provider == "none" {
		return nil, nil
	}
	key := cfg.APIKey()
	if key == "" && cfg.LLM.BaseURL == "" {
		logger.Warn("no API key configured; model-backed capabilities will not run", "provider", cfg.LLM.Provider)
		return nil, nil
	}
	if key == "" {
		// Local OpenAI-compatible servers ignore the key.
		key = "local"
	}
	opts := []openai.Option{
		openai.WithToken(key),
		openai.WithModel(cfg.LLM.Model),
	}
	if cfg.LLM.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.LLM.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating llm: %w", err)
	}
	return &timeoutModel{Model: llm, timeout: cfg.LLMTimeout()}, nil
}

// timeoutModel bounds every completion.
type timeoutModel struct {
	llms.Model
	timeout time.Duration
}

func (m *timeoutModel) GenerateContent(ctx context.Context, msgs []llms.MessageContent, opts ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	return m.Model.GenerateContent(ctx, msgs, opts...)
}
