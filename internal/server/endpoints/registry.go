package endpoints

import (
	"github.com/jackzampolin/promptpal/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},

		// Optimization
		&OptimizeEndpoint{},

		// Settings endpoints
		&GetAPIKeyEndpoint{},
		&SetAPIKeyEndpoint{},
		&ClearAPIKeyEndpoint{},

		// Prompt endpoints
		&ListPromptsEndpoint{},
		&CreatePromptEndpoint{},
		&GetPromptEndpoint{},
		&UpdatePromptEndpoint{},
		&DeletePromptEndpoint{},
		&FavoritePromptEndpoint{},
		&OptimizePromptEndpoint{},
		&ExportPromptEndpoint{},
		&SharePromptEndpoint{},
		&ImportPromptsEndpoint{},
		&StatsEndpoint{},
		&SharedEndpoint{},

		// Tag endpoints
		&ListTagsEndpoint{},
		&CreateTagEndpoint{},

		// LLM call history endpoints
		&ListLLMCallsEndpoint{},
		&GetLLMCallEndpoint{},
		&LLMCallCountsEndpoint{},
	}
}

// NewRegistry returns an api.Registry with every endpoint registered.
func NewRegistry() *api.Registry {
	r := api.NewRegistry()
	for _, ep := range All() {
		r.Register(ep)
	}
	return r
}
