package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptpal/internal/api"
	"github.com/jackzampolin/promptpal/internal/kvstore"
	"github.com/jackzampolin/promptpal/internal/library"
	"github.com/jackzampolin/promptpal/internal/svcctx"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage,omitempty"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Fprintf(api.Stdout, "Status: %s\n", resp.Status)
			return nil
		},
	}
}

// ReadyEndpoint handles GET /ready.
type ReadyEndpoint struct{}

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresInit() bool { return false }

func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Storage: "ok"}

	kv := svcctx.KVFrom(r.Context())
	if kv == nil {
		resp.Status = "degraded"
		resp.Storage = "not_initialized"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	if _, _, err := kv.Get(r.Context(), library.PromptsKeyPrefix); err != nil {
		resp.Status = "degraded"
		resp.Storage = "unhealthy"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness (includes storage)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/ready", &resp); err != nil {
				return err
			}
			fmt.Fprintf(api.Stdout, "Status:  %s\n", resp.Status)
			if resp.Storage != "" {
				fmt.Fprintf(api.Stdout, "Storage: %s\n", resp.Storage)
			}
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server    string          `json:"server"`
	Optimizer OptimizerStatus `json:"optimizer"`
	Storage   StorageStatus   `json:"storage"`
	Library   LibraryStatus   `json:"library"`
}

// OptimizerStatus shows the configured model and whether a key is stored.
type OptimizerStatus struct {
	Model         string `json:"model"`
	KeyConfigured bool   `json:"key_configured"`
}

// StorageStatus shows where data is persisted.
type StorageStatus struct {
	Path string `json:"path"`
}

// LibraryStatus shows the active library profile.
type LibraryStatus struct {
	User    string `json:"user"`
	Prompts int    `json:"prompts"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct{}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StatusResponse{Server: "running"}

	if cfg := svcctx.ConfigFrom(ctx); cfg != nil {
		resp.Optimizer.Model = cfg.Get().Optimizer.Model
	}
	if creds := svcctx.CredentialsFrom(ctx); creds != nil {
		_, ok, err := creds.Get(ctx)
		resp.Optimizer.KeyConfigured = ok && err == nil
	}

	switch kv := svcctx.KVFrom(ctx).(type) {
	case *kvstore.SQLiteStore:
		resp.Storage.Path = kv.Path()
	case nil:
		resp.Storage.Path = "not_initialized"
	default:
		resp.Storage.Path = "memory"
	}

	if lib := svcctx.LibraryFrom(ctx); lib != nil {
		resp.Library.User = lib.User()
		if prompts, err := lib.List(ctx, library.Filter{}); err == nil {
			resp.Library.Prompts = len(prompts)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			out := api.Stdout
			fmt.Fprintf(out, "Server: %s\n", resp.Server)
			fmt.Fprintf(out, "Optimizer:\n")
			fmt.Fprintf(out, "  Model:          %s\n", resp.Optimizer.Model)
			fmt.Fprintf(out, "  Key configured: %t\n", resp.Optimizer.KeyConfigured)
			fmt.Fprintf(out, "Storage:\n")
			fmt.Fprintf(out, "  Path: %s\n", resp.Storage.Path)
			fmt.Fprintf(out, "Library:\n")
			fmt.Fprintf(out, "  User:    %s\n", resp.Library.User)
			fmt.Fprintf(out, "  Prompts: %d\n", resp.Library.Prompts)
			return nil
		},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
