// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/jackzampolin/promptpal/internal/config"
	"github.com/jackzampolin/promptpal/internal/credential"
	"github.com/jackzampolin/promptpal/internal/home"
	"github.com/jackzampolin/promptpal/internal/kvstore"
	"github.com/jackzampolin/promptpal/internal/library"
	"github.com/jackzampolin/promptpal/internal/llmcall"
	"github.com/jackzampolin/promptpal/internal/optimizer"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	KV           kvstore.Store
	Credentials  credential.Provider
	Library      *library.Library
	Orchestrator *optimizer.Orchestrator
	LLMCallStore *llmcall.Store
	Config       *config.Manager
	Logger       *slog.Logger
	Home         *home.Dir
	Fs           afero.Fs
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// KVFrom extracts the key-value store from context.
func KVFrom(ctx context.Context) kvstore.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.KV
	}
	return nil
}

// CredentialsFrom extracts the credential provider from context.
func CredentialsFrom(ctx context.Context) credential.Provider {
	if s := ServicesFrom(ctx); s != nil {
		return s.Credentials
	}
	return nil
}

// LibraryFrom extracts the prompt library from context.
func LibraryFrom(ctx context.Context) *library.Library {
	if s := ServicesFrom(ctx); s != nil {
		return s.Library
	}
	return nil
}

// OrchestratorFrom extracts the optimization orchestrator from context.
func OrchestratorFrom(ctx context.Context) *optimizer.Orchestrator {
	if s := ServicesFrom(ctx); s != nil {
		return s.Orchestrator
	}
	return nil
}

// LLMCallStoreFrom extracts the LLM call store from context.
func LLMCallStoreFrom(ctx context.Context) *llmcall.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.LLMCallStore
	}
	return nil
}

// ConfigFrom extracts the config manager from context.
func ConfigFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Config
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}

// FsFrom extracts the filesystem used for exports from context.
func FsFrom(ctx context.Context) afero.Fs {
	if s := ServicesFrom(ctx); s != nil {
		return s.Fs
	}
	return nil
}
