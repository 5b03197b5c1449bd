package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/teamstreem/realm/internal/airtable"
	"github.com/teamstreem/realm/internal/cli/config"
	"github.com/teamstreem/realm/internal/cli/output"
	"github.com/teamstreem/realm/internal/reconcile"
	"github.com/teamstreem/realm/internal/state"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg        *config.Config
	Logger     *slog.Logger
	Renderer   *output.Renderer
	Store      *state.SQLiteStore
	Reconciler *reconcile.Reconciler
	Registry   *prometheus.Registry
}

// NewCommandContext opens the state store and builds a reconciler against the
// configured base. The snapshot is empty until the command loads it.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	if err := cfg.ValidateRemote(); err != nil {
		return nil, nil, err
	}

	cmdCtx, cleanup, err := NewCommandContextWithoutRemote(cmd)
	if err != nil {
		return nil, nil, err
	}

	gwMetrics := airtable.NewMetrics()
	recMetrics := reconcile.NewMetrics()
	for _, register := range []func(prometheus.Registerer) error{gwMetrics.Register, recMetrics.Register} {
		if err := register(cmdCtx.Registry); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	gw, err := airtable.New(airtable.Config{
		BaseURL:     cfg.Airtable.BaseURL,
		BaseID:      cfg.Airtable.BaseID,
		Token:       cfg.Airtable.Token,
		Timeout:     cfg.Airtable.Timeout,
		ListTimeout: cfg.Airtable.ListTimeout,
		RateLimit:   cfg.Airtable.RateLimit,
		Logger:      cmdCtx.Logger,
		Metrics:     gwMetrics,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	cmdCtx.Reconciler = reconcile.New(reconcile.Config{
		Gateway:          gw,
		Store:            cmdCtx.Store,
		Logger:           cmdCtx.Logger,
		Metrics:          recMetrics,
		KidsSessionLimit: cfg.Kids.SessionLimit,
	})
	return cmdCtx, cleanup, nil
}

// NewCommandContextWithoutRemote opens only the state store.
// Useful for commands that never talk to the base.
func NewCommandContextWithoutRemote(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	store, err := openStore(cfg.StatePath)
	if err != nil {
		return nil, nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	cleanup := func() {
		_ = store.Close()
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: newRenderer(cmd, cfg),
		Store:    store,
		Registry: reg,
	}, cleanup, nil
}

func newRenderer(cmd *cobra.Command, cfg *config.Config) *output.Renderer {
	return output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.Output))
}

// getConfig returns the current configuration, loading defaults when the
// root command did not run.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	cfg, err := config.LoadConfig("", nil)
	if err != nil {
		return &config.Config{StatePath: config.DefaultStateFile, Output: config.DefaultOutput}
	}
	return cfg
}

// openStore opens the state database, creating its directory.
func openStore(path string) (*state.SQLiteStore, error) {
	if path != state.MemoryPath {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}
	store, err := state.OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	return store, nil
}

// outcomeMessage describes how a write landed.
func outcomeMessage(what string, o reconcile.Outcome) string {
	if o == reconcile.SavedLocally {
		return what + " saved on this machine only (the base has no column for it yet)"
	}
	return what + " saved"
}

// reportOutcome prints the result of a write.
func reportOutcome(r *output.Renderer, what string, o reconcile.Outcome) {
	if o == reconcile.SavedLocally {
		r.Warning(outcomeMessage(what, o))
		return
	}
	r.Success(outcomeMessage(what, o))
}
