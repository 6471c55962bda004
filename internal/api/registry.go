package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Registry holds all registered endpoints.
type Registry struct {
	endpoints []Endpoint
}

// NewRegistry creates a new endpoint registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an endpoint to the registry.
func (r *Registry) Register(ep Endpoint) {
	r.endpoints = append(r.endpoints, ep)
}

// RegisterRoutes registers all endpoint HTTP routes with the given mux.
// initMiddleware wraps handlers that require full server initialization.
func (r *Registry) RegisterRoutes(mux *http.ServeMux, initMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	for _, ep := range r.endpoints {
		method, path, handler := ep.Route()
		if ep.RequiresInit() {
			handler = initMiddleware(handler)
		}
		mux.HandleFunc(method+" "+path, handler)
	}
}

// Grouped is implemented by endpoints whose commands nest under a parent
// command, e.g. "prompts" for `api prompts list`.
type Grouped interface {
	Group() string
}

func groupOf(ep Endpoint) string {
	if g, ok := ep.(Grouped); ok {
		return g.Group()
	}
	return ""
}

// BuildCommands returns a cobra.Command tree for all registered endpoints.
// Commands of Grouped endpoints share a parent command.
// getServerURL is called at runtime to get the server URL.
func (r *Registry) BuildCommands(getServerURL func() string) *cobra.Command {
	groups := make(map[string]*cobra.Command)
	apiCmd := &cobra.Command{
		Use:   "api",
		Short: "Commands that call the running server",
		Long: `API commands call the running PromptPal server via HTTP.

These commands require a running server (promptpal serve).
Use --server to specify a custom server URL.

Examples:
  promptpal api health                  # Check server health
  promptpal api optimize "a prompt"     # Optimize through the server
  promptpal api prompts list            # List saved prompts`,
	}

	for _, ep := range r.endpoints {
		cmd := ep.Command(getServerURL)
		if cmd == nil {
			continue
		}
		// Endpoints sharing a group (e.g. "prompts") are nested under one parent.
		if group := groupOf(ep); group != "" {
			parent := groups[group]
			if parent == nil {
				parent = &cobra.Command{Use: group, Short: "Commands for /api/" + group}
				groups[group] = parent
				apiCmd.AddCommand(parent)
			}
			parent.AddCommand(cmd)
			continue
		}
		apiCmd.AddCommand(cmd)
	}

	return apiCmd
}

// Endpoints returns all registered endpoints.
func (r *Registry) Endpoints() []Endpoint {
	return r.endpoints
}
