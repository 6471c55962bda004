package optimizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackzampolin/promptpal/internal/credential"
	"github.com/jackzampolin/promptpal/internal/enhance"
	"github.com/jackzampolin/promptpal/internal/providers"
)

func newTestOrchestrator(cred string, llm *providers.MockClient, notify Notifier) *Orchestrator {
	return NewOrchestrator(OrchestratorConfig{
		Credentials: credential.NewMemory(cred),
		Client:      NewClient(llm, ClientConfig{Model: "test-model"}),
		Notifier:    notify,
	})
}

func TestOptimize_NoCredential(t *testing.T) {
	llm := providers.NewMockClient()
	o := newTestOrchestrator("", llm, nil)

	for _, prompt := range []string{"hi", "Explain how TCP congestion control works"} {
		res := o.Optimize(context.Background(), Request{Prompt: prompt})
		if res.State != StateFallbackUsed {
			t.Errorf("expected fallback_used, got %s", res.State)
		}
		if res.Reason != ReasonCredentialAbsent {
			t.Errorf("expected reason credential_absent, got %s", res.Reason)
		}
		if res.Text != enhance.Enhance(prompt) {
			t.Errorf("expected enhance(%q), got %q", prompt, res.Text)
		}
		if res.Err != nil {
			t.Errorf("credential absence should not carry an error, got %v", res.Err)
		}
	}
	if n := llm.RequestCount(); n != 0 {
		t.Errorf("expected zero requests, got %d", n)
	}
}

func TestOptimize_Success(t *testing.T) {
	llm := providers.NewMockClient()
	llm.ResponseText = "A much clearer prompt"
	o := newTestOrchestrator("sk-test", llm, nil)

	res := o.Optimize(context.Background(), Request{Prompt: "write a poem"})
	if res.State != StateSucceeded {
		t.Fatalf("expected succeeded, got %s (%v)", res.State, res.Err)
	}
	if res.Text != "A much clearer prompt" {
		t.Errorf("expected remote text, got %q", res.Text)
	}
	if n := llm.RequestCount(); n != 1 {
		t.Errorf("expected exactly one request, got %d", n)
	}

	req := llm.Requests()[0]
	if req.APIKey != "sk-test" {
		t.Errorf("expected credential on request, got %q", req.APIKey)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != providers.RoleSystem || req.Messages[0].Content != SystemPrompt {
		t.Errorf("expected fixed system message first, got %+v", req.Messages)
	}
	if req.Messages[1].Role != providers.RoleUser || req.Messages[1].Content != "write a poem" {
		t.Errorf("expected user prompt second, got %+v", req.Messages[1])
	}
	if req.Temperature == nil || *req.Temperature != DefaultTemperature {
		t.Errorf("expected default temperature, got %v", req.Temperature)
	}
	if req.Model != "test-model" {
		t.Errorf("expected configured model, got %q", req.Model)
	}
}

func TestOptimize_RemoteFailure(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		failure FailureKind
	}{
		{"auth", &providers.APIError{Provider: "openai", StatusCode: 401, Kind: providers.KindAuth}, FailureAuth},
		{"rate limit", &providers.APIError{Provider: "openai", StatusCode: 429, Kind: providers.KindRateLimit}, FailureRateLimit},
		{"quota", &providers.APIError{Provider: "openai", StatusCode: 429, Code: "insufficient_quota", Kind: providers.KindQuota}, FailureQuota},
		{"transport", context.DeadlineExceeded, FailureTransport},
		{"opaque", errors.New("connection reset"), FailureUnknown},
	}

	prompt := "Summarize the history of the printing press"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := providers.NewMockClient()
			llm.ShouldFail = true
			llm.FailErr = tt.err
			o := newTestOrchestrator("sk-test", llm, nil)

			res := o.Optimize(context.Background(), Request{Prompt: prompt})
			if res.State != StateFallbackUsed || res.Reason != ReasonRemoteError {
				t.Fatalf("expected fallback_used/remote_error, got %s/%s", res.State, res.Reason)
			}
			if res.Text != enhance.Enhance(prompt) {
				t.Errorf("expected enhanced text, got %q", res.Text)
			}
			if res.Failure != tt.failure {
				t.Errorf("expected failure %s, got %s", tt.failure, res.Failure)
			}
			if !errors.Is(res.Err, tt.err) {
				t.Errorf("expected Err to wrap %v, got %v", tt.err, res.Err)
			}
			if n := llm.RequestCount(); n != 1 {
				t.Errorf("expected one request, got %d", n)
			}
		})
	}
}

func TestOptimize_EmptyCompletion(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		llm := providers.NewMockClient()
		llm.ResponseText = text
		o := newTestOrchestrator("sk-test", llm, nil)

		res := o.Optimize(context.Background(), Request{Prompt: "hello"})
		if res.State != StateFallbackUsed || res.Reason != ReasonEmptyCompletion {
			t.Fatalf("expected fallback_used/empty_completion, got %s/%s", res.State, res.Reason)
		}
		if res.Text != enhance.Enhance("hello") {
			t.Errorf("expected enhanced text, got %q", res.Text)
		}
		if res.Failure != FailureEmpty {
			t.Errorf("expected failure empty, got %s", res.Failure)
		}
	}
}

func TestOptimize_BlankPromptIsIdle(t *testing.T) {
	llm := providers.NewMockClient()
	notified := 0
	o := newTestOrchestrator("sk-test", llm, func(Result) { notified++ })

	for _, prompt := range []string{"", "   "} {
		res := o.Optimize(context.Background(), Request{Prompt: prompt})
		if res.State != StateIdle {
			t.Errorf("expected idle for %q, got %s", prompt, res.State)
		}
		if res.Text != prompt {
			t.Errorf("expected text echoed unchanged, got %q", res.Text)
		}
	}
	if llm.RequestCount() != 0 {
		t.Error("expected no requests for blank prompts")
	}
	if notified != 0 {
		t.Error("expected no notifications for idle results")
	}
}

func TestOptimize_InvalidRequest(t *testing.T) {
	llm := providers.NewMockClient()
	o := newTestOrchestrator("sk-test", llm, nil)

	temp := 3.5
	res := o.Optimize(context.Background(), Request{Prompt: "hello", Temperature: &temp})
	if res.State != StateFailed {
		t.Fatalf("expected failed, got %s", res.State)
	}
	if res.Err == nil || !strings.Contains(res.Err.Error(), "temperature") {
		t.Errorf("expected temperature validation error, got %v", res.Err)
	}
	if res.Text != "" {
		t.Errorf("expected no text, got %q", res.Text)
	}

	zero := 0
	res = o.Optimize(context.Background(), Request{Prompt: "hello", MaxTokens: &zero})
	if res.State != StateFailed {
		t.Errorf("expected failed for max_tokens 0, got %s", res.State)
	}
	if llm.RequestCount() != 0 {
		t.Error("expected no requests for invalid requests")
	}
}

func TestOptimize_CredentialUnavailable(t *testing.T) {
	llm := providers.NewMockClient()
	creds := credential.NewMemory("sk-test")
	creds.Err = errors.New("disk on fire")
	o := NewOrchestrator(OrchestratorConfig{
		Credentials: creds,
		Client:      NewClient(llm, ClientConfig{}),
	})

	res := o.Optimize(context.Background(), Request{Prompt: "hello"})
	if res.State != StateFallbackUsed || res.Reason != ReasonCredentialUnavailable {
		t.Fatalf("expected fallback_used/credential_unavailable, got %s/%s", res.State, res.Reason)
	}
	if llm.RequestCount() != 0 {
		t.Error("expected no requests")
	}
}

func TestOptimize_NilClientWithCredential(t *testing.T) {
	o := NewOrchestrator(OrchestratorConfig{Credentials: credential.NewMemory("sk-test")})

	res := o.Optimize(context.Background(), Request{Prompt: "hello"})
	if res.State != StateFallbackUsed || res.Reason != ReasonClientUnavailable {
		t.Fatalf("expected fallback_used/client_unavailable, got %s/%s", res.State, res.Reason)
	}
	if res.Text != enhance.Enhance("hello") {
		t.Errorf("expected offline enhancement, got %q", res.Text)
	}
	if strings.Contains(res.Message(), "No API key") {
		t.Errorf("a stored key must not be reported missing: %q", res.Message())
	}

	o = NewOrchestrator(OrchestratorConfig{Credentials: credential.NewMemory("")})
	if res := o.Optimize(context.Background(), Request{Prompt: "hello"}); res.Reason != ReasonCredentialAbsent {
		t.Errorf("expected credential_absent without a key, got %s", res.Reason)
	}
}

func TestOptimize_ReadsCredentialPerCall(t *testing.T) {
	llm := providers.NewMockClient()
	creds := credential.NewMemory("")
	o := NewOrchestrator(OrchestratorConfig{
		Credentials: creds,
		Client:      NewClient(llm, ClientConfig{}),
	})

	if res := o.Optimize(context.Background(), Request{Prompt: "hello"}); res.Reason != ReasonCredentialAbsent {
		t.Fatalf("expected credential_absent first, got %s", res.Reason)
	}
	_ = creds.Set(context.Background(), "sk-new")
	if res := o.Optimize(context.Background(), Request{Prompt: "hello"}); res.State != StateSucceeded {
		t.Fatalf("expected succeeded after key set, got %s", res.State)
	}
}

func TestOptimize_Notifier(t *testing.T) {
	llm := providers.NewMockClient()
	var got []Result
	o := newTestOrchestrator("sk-test", llm, func(r Result) { got = append(got, r) })

	o.Optimize(context.Background(), Request{Prompt: "hello"})
	if len(got) != 1 {
		t.Fatalf("expected one notification, got %d", len(got))
	}
	if got[0].State != StateSucceeded {
		t.Errorf("expected succeeded notification, got %s", got[0].State)
	}
}

func TestOptimize_SetClient(t *testing.T) {
	first := providers.NewMockClient()
	second := providers.NewMockClient()
	o := newTestOrchestrator("sk-test", first, nil)

	o.SetClient(NewClient(second, ClientConfig{Model: "other"}))
	res := o.Optimize(context.Background(), Request{Prompt: "hello"})
	if res.Model != "other" {
		t.Errorf("expected swapped model, got %q", res.Model)
	}
	if first.RequestCount() != 0 || second.RequestCount() != 1 {
		t.Error("expected request to go to the swapped client")
	}
}

func TestResult_Message(t *testing.T) {
	tests := []struct {
		res  Result
		want string
	}{
		{Result{State: StateSucceeded}, "Prompt optimized."},
		{Result{State: StateFallbackUsed, Reason: ReasonCredentialAbsent}, "No API key configured"},
		{Result{State: StateFallbackUsed, Reason: ReasonRemoteError, Failure: FailureAuth}, "Invalid API key"},
		{Result{State: StateFallbackUsed, Reason: ReasonClientUnavailable}, "No optimizer model"},
		{Result{State: StateIdle}, "Nothing to optimize."},
	}
	for _, tt := range tests {
		if got := tt.res.Message(); !strings.Contains(got, tt.want) {
			t.Errorf("Message() = %q, want it to contain %q", got, tt.want)
		}
	}
}
