package cmd

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/stevehiehn/capflow/internal/app"
	"github.com/stevehiehn/capflow/internal/capabilities"
	"github.com/stevehiehn/capflow/internal/capability"
	"github.com/stevehiehn/capflow/internal/config"
	"github.com/stevehiehn/capflow/internal/logging"
	"github.com/stevehiehn/capflow/internal/plan"
)

// parseInputs converts ["key=value", ...] to a map.
func parseInputs(raw []string) map[string]string {
	m := map[string]string{}
	for _, kv := range raw {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			m[parts[0]] = parts[1]
		}
	}
	return m
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// newLogger writes to stderr so stdout stays clean for results.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(level, os.Stderr), nil
}

func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...app.Option) (*app.App, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg, logger, wd, opts...)
}

// staticRegistry holds the built-in descriptors without live dependencies.
// It serves commands that inspect plans but never execute them.
func staticRegistry() *capability.Registry {
	reg := capability.NewRegistry()
	if err := capabilities.Register(reg, capabilities.Deps{}); err != nil {
		panic(err)
	}
	return reg
}

func loadPlan(path string, raw []string) (*plan.ExecutionPlan, map[string]string, error) {
	p, err := plan.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return p, p.ApplyDefaults(parseInputs(raw)), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
