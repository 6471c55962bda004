package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/jackzampolin/promptpal/internal/credential"
	"github.com/jackzampolin/promptpal/internal/enhance"
	"github.com/jackzampolin/promptpal/internal/export"
	"github.com/jackzampolin/promptpal/internal/kvstore"
	"github.com/jackzampolin/promptpal/internal/library"
	"github.com/jackzampolin/promptpal/internal/llmcall"
	"github.com/jackzampolin/promptpal/internal/optimizer"
	"github.com/jackzampolin/promptpal/internal/providers"
	"github.com/jackzampolin/promptpal/internal/svcctx"
)

type testEnv struct {
	services *svcctx.Services
	creds    *credential.Memory
	llm      *providers.MockClient
	calls    *llmcall.Store
	mux      *http.ServeMux
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := kvstore.Open(ctx, kvstore.InMemory)
	if err != nil {
		t.Fatalf("kvstore.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	calls, err := llmcall.NewStore(ctx, db.DB())
	if err != nil {
		t.Fatalf("llmcall.NewStore() error = %v", err)
	}

	creds := credential.NewMemory("")
	llm := providers.NewMockClient()
	llm.ResponseText = "  Rewritten prompt with more context.  "

	orch := optimizer.NewOrchestrator(optimizer.OrchestratorConfig{
		Credentials: creds,
		Client:      optimizer.NewClient(llm, optimizer.ClientConfig{}),
		Notifier:    llmcall.NewRecorder(calls, providers.MockClientName, nil).Notifier(),
	})

	env := &testEnv{
		services: &svcctx.Services{
			KV:           db,
			Credentials:  creds,
			Library:      library.New(db, library.DefaultUser, library.Options{}),
			Orchestrator: orch,
			LLMCallStore: calls,
			Fs:           afero.NewMemMapFs(),
		},
		creds: creds,
		llm:   llm,
		calls: calls,
		mux:   http.NewServeMux(),
	}
	NewRegistry().RegisterRoutes(env.mux, func(h http.HandlerFunc) http.HandlerFunc { return h })
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req = req.WithContext(svcctx.WithServices(req.Context(), env.services))
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestOptimize_BlankPromptRejected(t *testing.T) {
	env := newTestEnv(t)
	env.creds.Set(context.Background(), "sk-test-key-123456")

	for _, prompt := range []string{"", "   ", "\n\t"} {
		rec := env.do(t, "POST", "/api/optimize", OptimizeRequest{Prompt: prompt})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("prompt %q: status = %d, want 400", prompt, rec.Code)
		}
		resp := decode[ErrorResponse](t, rec)
		if resp.Error != optimizer.ErrBlankPrompt.Error() {
			t.Errorf("prompt %q: error = %q", prompt, resp.Error)
		}
	}

	if n := env.llm.RequestCount(); n != 0 {
		t.Errorf("expected no outbound requests, got %d", n)
	}
	calls, err := env.calls.List(context.Background(), llmcall.QueryFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 0 {
		t.Errorf("expected nothing recorded, got %d calls", len(calls))
	}
}

func TestOptimize_Success(t *testing.T) {
	env := newTestEnv(t)
	env.creds.Set(context.Background(), "sk-test-key-123456")

	rec := env.do(t, "POST", "/api/optimize", OptimizeRequest{Prompt: "write a poem"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decode[OptimizeResponse](t, rec)
	if resp.State != optimizer.StateSucceeded {
		t.Errorf("state = %q, want succeeded", resp.State)
	}
	if resp.Text != "Rewritten prompt with more context." {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.Message == "" {
		t.Error("expected a message")
	}
	if n := env.llm.RequestCount(); n != 1 {
		t.Errorf("expected exactly one request, got %d", n)
	}
	if got := env.llm.Requests()[0].APIKey; got != "sk-test-key-123456" {
		t.Errorf("request used key %q", got)
	}
}

func TestOptimize_NoKeyFallsBack(t *testing.T) {
	env := newTestEnv(t)

	prompt := "explain goroutines to a new engineer"
	rec := env.do(t, "POST", "/api/optimize", OptimizeRequest{Prompt: prompt})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[OptimizeResponse](t, rec)
	if resp.State != optimizer.StateFallbackUsed || resp.Reason != optimizer.ReasonCredentialAbsent {
		t.Errorf("state/reason = %q/%q", resp.State, resp.Reason)
	}
	if resp.Text != enhance.Enhance(prompt) {
		t.Errorf("text is not the offline enhancement: %q", resp.Text)
	}
	if !strings.Contains(resp.Message, "No API key configured") {
		t.Errorf("message = %q", resp.Message)
	}
	if n := env.llm.RequestCount(); n != 0 {
		t.Errorf("expected zero requests, got %d", n)
	}
}

func TestOptimize_RemoteFailureFallsBack(t *testing.T) {
	env := newTestEnv(t)
	env.creds.Set(context.Background(), "sk-test-key-123456")
	env.llm.ShouldFail = true
	env.llm.FailErr = &providers.APIError{Provider: "openai", StatusCode: 429, Kind: providers.KindRateLimit, Message: "slow down"}

	rec := env.do(t, "POST", "/api/optimize", OptimizeRequest{Prompt: "short"})
	resp := decode[OptimizeResponse](t, rec)
	if resp.State != optimizer.StateFallbackUsed || resp.Failure != optimizer.FailureRateLimit {
		t.Errorf("state/failure = %q/%q", resp.State, resp.Failure)
	}
	if resp.Text != enhance.Enhance("short") {
		t.Errorf("text = %q", resp.Text)
	}
}

func TestOptimize_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body any
	}{
		{"malformed json", `{"prompt":`},
		{"temperature out of range", `{"prompt":"hello","temperature":3}`},
		{"zero max tokens", `{"prompt":"hello","max_tokens":0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "POST", "/api/optimize", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAPIKey_Lifecycle(t *testing.T) {
	env := newTestEnv(t)

	resp := decode[APIKeyResponse](t, env.do(t, "GET", "/api/settings/api-key", nil))
	if resp.Configured {
		t.Error("expected no key configured")
	}

	rec := env.do(t, "PUT", "/api/settings/api-key", SetAPIKeyRequest{Value: "  sk-abcdefghijkl  "})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d", rec.Code)
	}
	resp = decode[APIKeyResponse](t, rec)
	if !resp.Configured || resp.Masked != "sk-********ijkl" || resp.Warning != "" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if strings.Contains(rec.Body.String(), "abcdefgh") {
		t.Error("response leaked the key")
	}

	resp = decode[APIKeyResponse](t, env.do(t, "PUT", "/api/settings/api-key", SetAPIKeyRequest{Value: "not-a-key-value"}))
	if resp.Warning == "" {
		t.Error("expected a prefix warning")
	}

	if rec := env.do(t, "DELETE", "/api/settings/api-key", nil); rec.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d", rec.Code)
	}
	if _, ok, _ := env.creds.Get(context.Background()); ok {
		t.Error("key should be cleared")
	}

	env.creds.Set(context.Background(), "sk-abcdefghijkl")
	resp = decode[APIKeyResponse](t, env.do(t, "PUT", "/api/settings/api-key", SetAPIKeyRequest{Value: "   "}))
	if resp.Configured {
		t.Error("storing a blank value should clear the key")
	}
}

func TestPrompts_CRUD(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/api/prompts", CreatePromptRequest{
		Title:   "Code Review!",
		Content: "<p>Review this [language] code</p>",
		Tags:    []string{"dev"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	created := decode[library.Prompt](t, rec)
	if !strings.HasPrefix(created.ID, "prompt_") {
		t.Errorf("ID = %q", created.ID)
	}
	if len(created.Variables) != 1 || created.Variables[0].Name != "language" {
		t.Errorf("variables = %+v", created.Variables)
	}

	list := decode[PromptsResponse](t, env.do(t, "GET", "/api/prompts?tag=dev", nil))
	if list.Total != 1 {
		t.Errorf("list total = %d", list.Total)
	}
	list = decode[PromptsResponse](t, env.do(t, "GET", "/api/prompts?q=nomatch", nil))
	if list.Total != 0 {
		t.Errorf("search total = %d", list.Total)
	}

	rec = env.do(t, "PATCH", "/api/prompts/"+created.ID, `{"title":"Careful Review"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d", rec.Code)
	}
	if got := decode[library.Prompt](t, rec); got.Title != "Careful Review" || got.Content != created.Content {
		t.Errorf("patched = %+v", got)
	}

	fav := decode[library.Prompt](t, env.do(t, "POST", "/api/prompts/"+created.ID+"/favorite", nil))
	if !fav.Favorite {
		t.Error("expected favorite after toggle")
	}
	list = decode[PromptsResponse](t, env.do(t, "GET", "/api/prompts?favorites=true", nil))
	if list.Total != 1 {
		t.Errorf("favorites total = %d", list.Total)
	}

	if rec := env.do(t, "DELETE", "/api/prompts/"+created.ID, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	if rec := env.do(t, "GET", "/api/prompts/"+created.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", rec.Code)
	}
}

func TestPrompts_Errors(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, "POST", "/api/prompts", CreatePromptRequest{Content: "no title"}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing title status = %d", rec.Code)
	}
	if rec := env.do(t, "PATCH", "/api/prompts/prompt_missing", `{"title":"x"}`); rec.Code != http.StatusNotFound {
		t.Errorf("patch missing status = %d", rec.Code)
	}
	if rec := env.do(t, "GET", "/api/prompts?favorites=maybe", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad favorites status = %d", rec.Code)
	}
	if rec := env.do(t, "GET", "/api/prompts?recent=-1", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad recent status = %d", rec.Code)
	}
}

func TestPrompts_ExportAndShare(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.services.Library.Add(context.Background(), library.Prompt{
		Title:   "My Prompt!",
		Content: "<h1>Hello</h1><p>world</p>",
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := env.do(t, "GET", "/api/prompts/"+p.ID+"/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="My Prompt.txt"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if got := rec.Body.String(); got != "Hello\nworld" {
		t.Errorf("text export = %q", got)
	}

	rec = env.do(t, "GET", "/api/prompts/"+p.ID+"/export?format=json", nil)
	doc := decode[export.Document](t, rec)
	if doc.ID != p.ID || doc.Title != "My Prompt!" || doc.ExportedAt == "" {
		t.Errorf("json export = %+v", doc)
	}

	if rec := env.do(t, "GET", "/api/prompts/"+p.ID+"/export?format=pdf", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown format status = %d", rec.Code)
	}

	share := decode[ShareResponse](t, env.do(t, "GET", "/api/prompts/"+p.ID+"/share", nil))
	if !strings.Contains(share.URL, "/shared?title=My%20Prompt%21&content=") {
		t.Errorf("share url = %q", share.URL)
	}

	shared, err := export.ParseShared(share.URL)
	if err != nil {
		t.Fatalf("ParseShared() error = %v", err)
	}
	rec = env.do(t, "GET", "/api/shared?title="+strings.ReplaceAll(shared.Title, " ", "%20")+"&content=Hello", nil)
	if got := decode[export.Shared](t, rec); got.Content != "Hello" || got.Title != "My Prompt!" {
		t.Errorf("shared = %+v", got)
	}
}

func TestShared_MissingContent(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/api/shared?title=Only%20Title", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[ErrorResponse](t, rec).Error; got != export.ErrNoSharedContent.Error() {
		t.Errorf("error = %q", got)
	}

	got := decode[export.Shared](t, env.do(t, "GET", "/api/shared?content=hi", nil))
	if got.Title != export.DefaultSharedTitle {
		t.Errorf("title = %q", got.Title)
	}
}

func TestPrompts_OptimizeSaved(t *testing.T) {
	env := newTestEnv(t)
	env.creds.Set(context.Background(), "sk-test-key-123456")
	p, err := env.services.Library.Add(context.Background(), library.Prompt{Title: "t", Content: "<p>write tests</p>"})
	if err != nil {
		t.Fatal(err)
	}

	rec := env.do(t, "POST", "/api/prompts/"+p.ID+"/optimize?save=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decode[OptimizePromptResponse](t, rec)
	if resp.State != optimizer.StateSucceeded || resp.Prompt == nil {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Prompt.Content != "Rewritten prompt with more context." {
		t.Errorf("saved content = %q", resp.Prompt.Content)
	}
	if got := env.llm.Requests()[0].Messages[1].Content; got != "write tests" {
		t.Errorf("markup should be stripped before sending, got %q", got)
	}
}

func TestPrompts_Import(t *testing.T) {
	env := newTestEnv(t)

	body := `[{"id":"x","title":"A","content":"alpha","exportedAt":"2024-01-01T00:00:00.000Z"},{"title":"B","content":"beta"}]`
	rec := env.do(t, "POST", "/api/prompts/import", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := decode[PromptsResponse](t, rec); got.Total != 2 {
		t.Errorf("imported = %d", got.Total)
	}

	if rec := env.do(t, "POST", "/api/prompts/import", `{"title":"no content"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid import status = %d", rec.Code)
	}
}

func TestTagsAndStats(t *testing.T) {
	env := newTestEnv(t)

	first := decode[library.Tag](t, env.do(t, "POST", "/api/tags", CreateTagRequest{Name: "Writing"}))
	again := decode[library.Tag](t, env.do(t, "POST", "/api/tags", CreateTagRequest{Name: "writing"}))
	if first.ID == "" || first.ID != again.ID {
		t.Errorf("duplicate tag should return the existing one: %+v vs %+v", first, again)
	}
	if rec := env.do(t, "POST", "/api/tags", CreateTagRequest{Name: " "}); rec.Code != http.StatusBadRequest {
		t.Errorf("blank tag status = %d", rec.Code)
	}

	env.do(t, "POST", "/api/prompts", CreatePromptRequest{Title: "a", Content: "a", Tags: []string{"Writing"}, Favorite: true})
	env.do(t, "POST", "/api/prompts", CreatePromptRequest{Title: "b", Content: "b"})

	tags := decode[TagsResponse](t, env.do(t, "GET", "/api/tags", nil))
	if len(tags.Tags) != 1 {
		t.Errorf("tags = %+v", tags.Tags)
	}

	stats := decode[StatsResponse](t, env.do(t, "GET", "/api/stats", nil))
	if stats.Total != 2 || stats.Favorited != 1 || stats.TagsUsed != 1 || stats.RecentlyCreated != 2 {
		t.Errorf("stats = %+v", stats.Stats)
	}
	if len(stats.Recent) != 2 {
		t.Errorf("recent = %d", len(stats.Recent))
	}
}

func TestLLMCalls(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, "POST", "/api/optimize", OptimizeRequest{Prompt: "no key yet"})
	env.creds.Set(context.Background(), "sk-test-key-123456")
	env.do(t, "POST", "/api/optimize", OptimizeRequest{Prompt: "with a key"})

	list := decode[LLMCallsResponse](t, env.do(t, "GET", "/api/llmcalls", nil))
	if list.Total != 2 {
		t.Fatalf("total = %d", list.Total)
	}

	succeeded := decode[LLMCallsResponse](t, env.do(t, "GET", "/api/llmcalls?state=succeeded", nil))
	if succeeded.Total != 1 || !succeeded.Calls[0].Success {
		t.Errorf("succeeded = %+v", succeeded)
	}

	got := decode[LLMCallResponse](t, env.do(t, "GET", "/api/llmcalls/"+succeeded.Calls[0].ID, nil))
	if got.Call == nil || got.Call.ID != succeeded.Calls[0].ID {
		t.Errorf("get = %+v", got)
	}
	if rec := env.do(t, "GET", "/api/llmcalls/missing", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d", rec.Code)
	}

	counts := decode[LLMCallCountsResponse](t, env.do(t, "GET", "/api/llmcalls/counts", nil))
	if counts.Counts["succeeded"] != 1 || counts.Counts["fallback_used"] != 1 {
		t.Errorf("counts = %+v", counts.Counts)
	}

	if rec := env.do(t, "GET", "/api/llmcalls?success=maybe", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad filter status = %d", rec.Code)
	}
}

func TestHealthReadyStatus(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, "GET", "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
	if rec := env.do(t, "GET", "/ready", nil); rec.Code != http.StatusOK {
		t.Errorf("ready status = %d, body = %s", rec.Code, rec.Body.String())
	}

	status := decode[StatusResponse](t, env.do(t, "GET", "/status", nil))
	if status.Storage.Path != kvstore.InMemory || status.Library.User != library.DefaultUser {
		t.Errorf("status = %+v", status)
	}

	// Without services the readiness probe degrades.
	req := httptest.NewRequest("GET", "/ready", nil)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready without services = %d", rec.Code)
	}
}

func TestWriteLibraryError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{library.ErrNotFound, http.StatusNotFound},
		{library.ErrInvalidPrompt, http.StatusBadRequest},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeLibraryError(rec, tt.err)
		if rec.Code != tt.want {
			t.Errorf("%v: status = %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}

func TestParseCallFilter(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr bool
		check   func(t *testing.T, f llmcall.QueryFilter)
	}{
		{
			name:  "defaults",
			query: "",
			check: func(t *testing.T, f llmcall.QueryFilter) {
				if f.Limit != DefaultHistoryLimit || f.Offset != 0 || f.State != "" || f.Success != nil {
					t.Errorf("filter = %+v", f)
				}
			},
		},
		{
			name:  "all fields",
			query: "state=fallback_used&model=gpt-3.5-turbo&success=false&limit=5&offset=10&after=2024-01-15T00:00:00Z",
			check: func(t *testing.T, f llmcall.QueryFilter) {
				if f.State != "fallback_used" || f.Model != "gpt-3.5-turbo" || f.Limit != 5 || f.Offset != 10 {
					t.Errorf("filter = %+v", f)
				}
				if f.Success == nil || *f.Success {
					t.Errorf("success = %v", f.Success)
				}
				if f.After == nil || f.After.Year() != 2024 || f.Before != nil {
					t.Errorf("after = %v, before = %v", f.After, f.Before)
				}
			},
		},
		{
			name:  "zero limit uses default",
			query: "limit=0",
			check: func(t *testing.T, f llmcall.QueryFilter) {
				if f.Limit != DefaultHistoryLimit {
					t.Errorf("limit = %d", f.Limit)
				}
			},
		},
		{name: "unknown state", query: "state=idle", wantErr: true},
		{name: "bad success", query: "success=maybe", wantErr: true},
		{name: "negative offset", query: "offset=-1", wantErr: true},
		{name: "bad limit", query: "limit=ten", wantErr: true},
		{name: "bad time", query: "before=yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatalf("ParseQuery: %v", err)
			}
			f, err := ParseCallFilter(q)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCallFilter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, f)
			}
		})
	}
}
