// Package llmcall records optimization attempts for traceability.
// Every terminal optimization result is recorded with its disposition and
// sizes. Prompt text and credentials are never stored.
package llmcall

import (
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/promptpal/internal/enhance"
	"github.com/jackzampolin/promptpal/internal/optimizer"
)

// Call represents a recorded optimization.
type Call struct {
	// Unique identifier
	ID string `json:"id"`

	// Timing
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int       `json:"latency_ms"`

	// Model info
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`

	// Disposition
	State   string `json:"state"`
	Reason  string `json:"reason,omitempty"`
	Failure string `json:"failure,omitempty"`

	// Sizes
	PromptChars   int `json:"prompt_chars"`
	ResponseChars int `json:"response_chars"`

	// Status
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// RecordOptions provides context for recording a call.
type RecordOptions struct {
	Provider string
}

// FromResult creates a Call from an optimizer result.
func FromResult(res optimizer.Result, opts RecordOptions) *Call {
	call := &Call{
		ID:            uuid.New().String(),
		Timestamp:     time.Now().UTC(),
		LatencyMs:     int(res.Duration.Milliseconds()),
		Provider:      opts.Provider,
		Model:         res.Model,
		Temperature:   res.Temperature,
		MaxTokens:     res.MaxTokens,
		State:         string(res.State),
		Reason:        string(res.Reason),
		Failure:       string(res.Failure),
		PromptChars:   res.PromptChars,
		ResponseChars: enhance.Length(res.Text),
		Success:       res.State == optimizer.StateSucceeded,
	}
	if res.Err != nil {
		call.Error = res.Err.Error()
	}
	return call
}
