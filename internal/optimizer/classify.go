package optimizer

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackzampolin/promptpal/internal/providers"
)

// ErrEmptyCompletion marks a remote response with no usable text.
var ErrEmptyCompletion = errors.New("remote optimizer returned an empty completion")

// FailureKind says why a remote attempt did not produce text.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureAuth      FailureKind = "auth"
	FailureRateLimit FailureKind = "rate_limit"
	FailureQuota     FailureKind = "quota"
	FailureTransport FailureKind = "transport"
	FailureEmpty     FailureKind = "empty"
	FailureUnknown   FailureKind = "unknown"
)

// Classify maps a remote failure to a FailureKind. Structured provider errors
// are used when present; otherwise the error text is matched.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	if errors.Is(err, ErrEmptyCompletion) {
		return FailureEmpty
	}

	if apiErr, ok := providers.AsAPIError(err); ok {
		switch apiErr.Kind {
		case providers.KindAuth:
			return FailureAuth
		case providers.KindQuota:
			return FailureQuota
		case providers.KindRateLimit:
			return FailureRateLimit
		case providers.KindServer:
			return FailureTransport
		}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return FailureTransport
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "401"):
		return FailureAuth
	case strings.Contains(msg, "insufficient_quota"):
		return FailureQuota
	case strings.Contains(msg, "429"):
		return FailureRateLimit
	}
	return FailureUnknown
}

// UserMessage is the text shown to a user for this failure.
func (k FailureKind) UserMessage() string {
	switch k {
	case FailureNone:
		return ""
	case FailureAuth:
		return "Invalid API key. Please check your OpenAI API key in settings."
	case FailureRateLimit:
		return "API rate limit exceeded. Please try again later or check your OpenAI account."
	case FailureQuota:
		return "Your OpenAI account has insufficient quota. Please check your billing status."
	case FailureEmpty:
		return "The optimizer returned an empty response."
	default:
		return "Failed to optimize the prompt. Please try again or check your API key."
	}
}
