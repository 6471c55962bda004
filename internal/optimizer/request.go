// Package optimizer rewrites prompts with a remote language model and falls
// back to local enhancement when the remote path is unavailable.
package optimizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jackzampolin/promptpal/internal/enhance"
)

// DefaultTemperature is used when neither the request nor config sets one.
const DefaultTemperature = 0.2

// MaxTokensCap bounds the derived max token budget.
const MaxTokensCap = 1024

// SystemPrompt is the fixed instruction sent ahead of every prompt.
const SystemPrompt = "You are an expert prompt engineer.\n" +
	"• Improve clarity and specificity\n" +
	"• Expand context where needed\n" +
	"• Preserve original intent\n" +
	"Return only the rewritten prompt."

// ErrBlankPrompt is returned by ValidatePrompt for empty or whitespace-only input.
var ErrBlankPrompt = errors.New("prompt is empty")

// Request is a single optimization call.
type Request struct {
	Prompt      string   `json:"prompt"`
	Temperature *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   *int     `json:"max_tokens,omitempty" validate:"omitempty,gte=1"`
}

var validate = validator.New()

// Validate checks the generation parameters. It does not look at the prompt.
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, e := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q (%s)", strings.ToLower(e.Field()), e.Tag(), e.Param()))
		}
		return fmt.Errorf("invalid request: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// ValidatePrompt rejects prompts that must never be sent.
func ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrBlankPrompt
	}
	return nil
}

// DefaultMaxTokens derives a completion budget of twice the prompt's
// enhance.Length, capped at MaxTokensCap.
func DefaultMaxTokens(prompt string) int {
	return min(MaxTokensCap, 2*enhance.Length(prompt))
}
