package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptpal/internal/api"
	"github.com/jackzampolin/promptpal/internal/llmcall"
	"github.com/jackzampolin/promptpal/internal/optimizer"
	"github.com/jackzampolin/promptpal/internal/svcctx"
)

// DefaultHistoryLimit caps history listings when no limit is given.
const DefaultHistoryLimit = 100

// LLMCallsResponse is a page of optimization history.
type LLMCallsResponse struct {
	Calls []llmcall.Call `json:"calls"`
	Total int            `json:"total"`
}

// LLMCallResponse wraps a single recorded optimization.
type LLMCallResponse struct {
	Call *llmcall.Call `json:"call,omitempty"`
}

// LLMCallCountsResponse holds recorded optimizations per terminal state.
type LLMCallCountsResponse struct {
	Counts map[string]int `json:"counts"`
}

// ParseCallFilter builds a history filter from query parameters.
func ParseCallFilter(q url.Values) (llmcall.QueryFilter, error) {
	filter := llmcall.QueryFilter{
		Model: q.Get("model"),
		Limit: DefaultHistoryLimit,
	}

	if v := q.Get("state"); v != "" {
		switch optimizer.State(v) {
		case optimizer.StateSucceeded, optimizer.StateFallbackUsed, optimizer.StateFailed:
			filter.State = v
		default:
			return filter, fmt.Errorf("invalid state %q: want succeeded, fallback_used or failed", v)
		}
	}
	if v := q.Get("success"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, fmt.Errorf("invalid success filter %q: want true or false", v)
		}
		filter.Success = &b
	}

	var err error
	if filter.Limit, err = intParam(q, "limit", DefaultHistoryLimit); err != nil {
		return filter, err
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultHistoryLimit
	}
	if filter.Offset, err = intParam(q, "offset", 0); err != nil {
		return filter, err
	}
	if filter.After, err = timeParam(q, "after"); err != nil {
		return filter, err
	}
	if filter.Before, err = timeParam(q, "before"); err != nil {
		return filter, err
	}
	return filter, nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q: want a non-negative integer", name, v)
	}
	return n, nil
}

func timeParam(q url.Values, name string) (*time.Time, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s time %q: want RFC3339 (e.g. 2024-01-15T00:00:00Z)", name, v)
	}
	return &t, nil
}

// ListLLMCallsEndpoint handles GET /api/llmcalls.
type ListLLMCallsEndpoint struct{}

func (e *ListLLMCallsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/llmcalls", e.handler
}

func (e *ListLLMCallsEndpoint) RequiresInit() bool { return true }

func (e *ListLLMCallsEndpoint) Group() string { return "llmcalls" }

// handler godoc
//
//	@Summary		List optimization history
//	@Description	Recorded optimizations, newest first. Prompt text is never stored.
//	@Tags			llmcalls
//	@Produce		json
//	@Param			state	query		string	false	"succeeded, fallback_used or failed"
//	@Param			model	query		string	false	"Filter by model"
//	@Param			success	query		bool	false	"Filter by remote success"
//	@Param			limit	query		int		false	"Max results (default 100)"
//	@Param			offset	query		int		false	"Result offset"
//	@Param			after	query		string	false	"RFC3339 lower bound"
//	@Param			before	query		string	false	"RFC3339 upper bound"
//	@Success		200		{object}	LLMCallsResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/llmcalls [get]
func (e *ListLLMCallsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseCallFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	store := svcctx.LLMCallStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusInternalServerError, "history not available")
		return
	}

	calls, err := store.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, LLMCallsResponse{Calls: calls, Total: len(calls)})
}

func (e *ListLLMCallsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		state, model  string
		limit, offset int
		since         time.Duration
		fallbacks     bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded optimizations",
		Long: `List recorded optimizations, newest first.

Examples:
  promptpal api llmcalls list --state fallback_used
  promptpal api llmcalls list --since 24h --limit 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{}
			if state != "" {
				params.Set("state", state)
			}
			if fallbacks {
				params.Set("state", string(optimizer.StateFallbackUsed))
			}
			if model != "" {
				params.Set("model", model)
			}
			if since > 0 {
				params.Set("after", time.Now().Add(-since).UTC().Format(time.RFC3339))
			}
			params.Set("limit", strconv.Itoa(limit))
			if offset > 0 {
				params.Set("offset", strconv.Itoa(offset))
			}

			var resp LLMCallsResponse
			client := api.NewClient(getServerURL())
			if err := client.Get(cmd.Context(), "/api/llmcalls?"+params.Encode(), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "Filter by state (succeeded, fallback_used, failed)")
	cmd.Flags().BoolVar(&fallbacks, "fallbacks", false, "Only show optimizations that used the offline enhancement")
	cmd.Flags().StringVar(&model, "model", "", "Filter by model")
	cmd.Flags().DurationVar(&since, "since", 0, "Only show calls newer than this (e.g. 24h)")
	cmd.Flags().IntVar(&limit, "limit", DefaultHistoryLimit, "Max results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Result offset")
	return cmd
}

// GetLLMCallEndpoint handles GET /api/llmcalls/{id}.
type GetLLMCallEndpoint struct{}

func (e *GetLLMCallEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/llmcalls/{id}", e.handler
}

func (e *GetLLMCallEndpoint) RequiresInit() bool { return true }

func (e *GetLLMCallEndpoint) Group() string { return "llmcalls" }

// handler godoc
//
//	@Summary		Get a recorded optimization
//	@Tags			llmcalls
//	@Produce		json
//	@Param			id	path		string	true	"Call ID"
//	@Success		200	{object}	LLMCallResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/llmcalls/{id} [get]
func (e *GetLLMCallEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.LLMCallStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusInternalServerError, "history not available")
		return
	}

	call, err := store.Get(r.Context(), r.PathValue("id"))
	switch {
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	case call == nil:
		writeError(w, http.StatusNotFound, "call not found")
	default:
		writeJSON(w, http.StatusOK, LLMCallResponse{Call: call})
	}
}

func (e *GetLLMCallEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a recorded optimization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp LLMCallResponse
			client := api.NewClient(getServerURL())
			if err := client.Get(cmd.Context(), "/api/llmcalls/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp.Call)
		},
	}
}

// LLMCallCountsEndpoint handles GET /api/llmcalls/counts.
type LLMCallCountsEndpoint struct{}

func (e *LLMCallCountsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/llmcalls/counts", e.handler
}

func (e *LLMCallCountsEndpoint) RequiresInit() bool { return true }

func (e *LLMCallCountsEndpoint) Group() string { return "llmcalls" }

// handler godoc
//
//	@Summary		Count optimizations by state
//	@Tags			llmcalls
//	@Produce		json
//	@Success		200	{object}	LLMCallCountsResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/llmcalls/counts [get]
func (e *LLMCallCountsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.LLMCallStoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusInternalServerError, "history not available")
		return
	}

	counts, err := store.CountByState(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, LLMCallCountsResponse{Counts: counts})
}

func (e *LLMCallCountsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Count recorded optimizations by state",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp LLMCallCountsResponse
			client := api.NewClient(getServerURL())
			if err := client.Get(cmd.Context(), "/api/llmcalls/counts", &resp); err != nil {
				return err
			}
			return api.Output(resp.Counts)
		},
	}
}
