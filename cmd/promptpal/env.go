package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/jackzampolin/promptpal/internal/config"
	"github.com/jackzampolin/promptpal/internal/credential"
	"github.com/jackzampolin/promptpal/internal/home"
	"github.com/jackzampolin/promptpal/internal/kvstore"
	"github.com/jackzampolin/promptpal/internal/library"
	"github.com/jackzampolin/promptpal/internal/llmcall"
	"github.com/jackzampolin/promptpal/internal/optimizer"
	"github.com/jackzampolin/promptpal/internal/providers"
	"github.com/jackzampolin/promptpal/internal/svcctx"
)

// newLogger builds the process logger. Logs go to stderr so command output on
// stdout stays parseable.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// loadConfig resolves the home directory and loads configuration from
// --config, ./config.yaml or {home}/config.yaml.
func loadConfig() (*home.Dir, *config.Manager, *slog.Logger, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, nil, nil, err
	}
	mgr, err := config.NewManager(cfgFile, h.Path())
	if err != nil {
		return nil, nil, nil, err
	}

	level := logLevel
	if level == "" {
		level = mgr.Get().LogLevel
	}
	logger := newLogger(level)
	mgr.SetLogger(logger)
	return h, mgr, logger, nil
}

// localEnv is the set of services a one-shot CLI command works against.
type localEnv struct {
	*svcctx.Services
	store *kvstore.SQLiteStore
}

// openLocal opens the local database and wires the same services the server
// uses. Callers must Close it.
func openLocal(ctx context.Context) (*localEnv, error) {
	h, mgr, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, err
	}

	store, err := kvstore.Open(ctx, h.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	calls, err := llmcall.NewStore(ctx, store.DB())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create LLM call store: %w", err)
	}

	cfg := mgr.Get()
	creds := credential.NewStore(store)
	orch := optimizer.NewOrchestrator(optimizer.OrchestratorConfig{
		Credentials: creds,
		Client:      cfg.NewOptimizerClient(logger),
		Notifier:    llmcall.NewRecorder(calls, providers.OpenAIName, logger).Notifier(),
		Logger:      logger,
	})

	return &localEnv{
		Services: &svcctx.Services{
			KV:           store,
			Credentials:  creds,
			Library:      library.New(store, cfg.Library.User, library.Options{Logger: logger}),
			Orchestrator: orch,
			LLMCallStore: calls,
			Config:       mgr,
			Logger:       logger,
			Home:         h,
			Fs:           afero.NewOsFs(),
		},
		store: store,
	}, nil
}

// Close releases the database.
func (e *localEnv) Close() error {
	return e.store.Close()
}

// withLocal runs fn against freshly opened local services.
func withLocal(ctx context.Context, fn func(env *localEnv) error) error {
	env, err := openLocal(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(env)
}
