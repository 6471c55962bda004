package optimizer

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jackzampolin/promptpal/internal/credential"
	"github.com/jackzampolin/promptpal/internal/enhance"
)

// State is the terminal disposition of one optimization.
type State string

const (
	StateIdle         State = "idle"
	StateSucceeded    State = "succeeded"
	StateFallbackUsed State = "fallback_used"
	StateFailed       State = "failed"
)

// Reason explains a fallback.
type Reason string

const (
	ReasonNone                  Reason = ""
	ReasonCredentialAbsent      Reason = "credential_absent"
	ReasonCredentialUnavailable Reason = "credential_unavailable"
	ReasonClientUnavailable     Reason = "client_unavailable"
	ReasonRemoteError           Reason = "remote_error"
	ReasonEmptyCompletion       Reason = "empty_completion"
)

// Result is the outcome of Orchestrator.Optimize.
type Result struct {
	State    State         `json:"state"`
	Text     string        `json:"text"`
	Reason   Reason        `json:"reason,omitempty"`
	Failure  FailureKind   `json:"failure,omitempty"`
	Err      error         `json:"-"`
	Model    string        `json:"model,omitempty"`
	Duration time.Duration `json:"duration"`

	// Request parameters that were in effect, for history.
	Temperature *float64 `json:"-"`
	MaxTokens   *int     `json:"-"`
	PromptChars int      `json:"-"`
}

// Remote reports whether a remote request was issued.
func (r Result) Remote() bool {
	return r.State == StateSucceeded || r.Reason == ReasonRemoteError || r.Reason == ReasonEmptyCompletion
}

// Message is a one-line notice describing the result for display.
func (r Result) Message() string {
	switch r.State {
	case StateIdle:
		return "Nothing to optimize."
	case StateSucceeded:
		return "Prompt optimized."
	case StateFailed:
		if r.Err != nil {
			return r.Err.Error()
		}
		return "Optimization request was rejected."
	}

	switch r.Reason {
	case ReasonCredentialAbsent:
		return "No API key configured. Used offline enhancement. Add your OpenAI API key to enable AI optimization."
	case ReasonCredentialUnavailable:
		return "Could not read the stored API key. Used offline enhancement."
	case ReasonClientUnavailable:
		return "No optimizer model is configured. Used offline enhancement."
	default:
		return r.Failure.UserMessage() + " Used offline enhancement."
	}
}

// Notifier receives every terminal result.
type Notifier func(Result)

// OrchestratorConfig configures an Orchestrator.
type OrchestratorConfig struct {
	Credentials credential.Provider
	Client      *Client
	Notifier    Notifier
	Logger      *slog.Logger
}

// Orchestrator sequences credential lookup, one remote attempt and the local
// fallback. It is safe for concurrent use; calls are independent.
type Orchestrator struct {
	creds    credential.Provider
	client   atomic.Pointer[Client]
	notifier Notifier
	logger   *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	o := &Orchestrator{
		creds:    cfg.Credentials,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
	}
	o.client.Store(cfg.Client)
	return o
}

// SetClient swaps the remote client used by subsequent calls.
func (o *Orchestrator) SetClient(c *Client) {
	o.client.Store(c)
}

// Optimize runs one optimization. It never returns an error; the disposition
// is carried in the Result.
func (o *Orchestrator) Optimize(ctx context.Context, req Request) Result {
	start := time.Now()
	client := o.client.Load()

	res := Result{
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		PromptChars: enhance.Length(req.Prompt),
	}
	if client != nil {
		res.Model = client.Model()
	}

	if strings.TrimSpace(req.Prompt) == "" {
		res.State = StateIdle
		res.Text = req.Prompt
		return res
	}

	if err := req.Validate(); err != nil {
		res.State = StateFailed
		res.Err = err
		return o.finish(res, start)
	}

	cred, ok, err := o.creds.Get(ctx)
	switch {
	case err != nil:
		o.logger.Warn("credential lookup failed, using offline enhancement", "error", err)
		return o.fallback(res, start, ReasonCredentialUnavailable, err, req.Prompt)
	case !ok:
		o.logger.Debug("no credential configured, using offline enhancement")
		return o.fallback(res, start, ReasonCredentialAbsent, nil, req.Prompt)
	case client == nil:
		o.logger.Warn("no optimizer client configured, using offline enhancement")
		return o.fallback(res, start, ReasonClientUnavailable, nil, req.Prompt)
	}

	o.logger.Debug("optimizer state", "state", "requesting", "model", client.Model())

	text, err := client.Optimize(ctx, req, cred)
	if err != nil {
		o.logger.Warn("remote optimization failed, using offline enhancement", "error", err)
		return o.fallback(res, start, ReasonRemoteError, err, req.Prompt)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		o.logger.Warn("remote optimization returned empty text, using offline enhancement")
		return o.fallback(res, start, ReasonEmptyCompletion, ErrEmptyCompletion, req.Prompt)
	}

	res.State = StateSucceeded
	res.Text = text
	return o.finish(res, start)
}

func (o *Orchestrator) fallback(res Result, start time.Time, reason Reason, err error, prompt string) Result {
	res.State = StateFallbackUsed
	res.Reason = reason
	res.Err = err
	if reason == ReasonRemoteError || reason == ReasonEmptyCompletion {
		res.Failure = Classify(err)
	}
	res.Text = enhance.Enhance(prompt)
	return o.finish(res, start)
}

func (o *Orchestrator) finish(res Result, start time.Time) Result {
	res.Duration = time.Since(start)
	o.logger.Debug("optimizer state",
		"state", res.State,
		"reason", res.Reason,
		"failure", res.Failure,
		"duration", res.Duration)
	if o.notifier != nil {
		o.notifier(res)
	}
	return res
}
