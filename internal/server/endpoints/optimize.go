package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptpal/internal/api"
	"github.com/jackzampolin/promptpal/internal/export"
	"github.com/jackzampolin/promptpal/internal/library"
	"github.com/jackzampolin/promptpal/internal/optimizer"
	"github.com/jackzampolin/promptpal/internal/svcctx"
)

// OptimizeRequest is the request body for POST /api/optimize.
type OptimizeRequest = optimizer.Request

// OptimizeResponse reports the optimized text and how it was produced.
type OptimizeResponse struct {
	State      optimizer.State       `json:"state"`
	Text       string                `json:"text"`
	Reason     optimizer.Reason      `json:"reason,omitempty"`
	Failure    optimizer.FailureKind `json:"failure,omitempty"`
	Message    string                `json:"message"`
	Model      string                `json:"model,omitempty"`
	DurationMs int64                 `json:"duration_ms"`
}

// NewOptimizeResponse converts an orchestrator result.
func NewOptimizeResponse(res optimizer.Result) OptimizeResponse {
	return OptimizeResponse{
		State:      res.State,
		Text:       res.Text,
		Reason:     res.Reason,
		Failure:    res.Failure,
		Message:    res.Message(),
		Model:      res.Model,
		DurationMs: res.Duration.Milliseconds(),
	}
}

// OptimizeEndpoint handles POST /api/optimize.
type OptimizeEndpoint struct{}

func (e *OptimizeEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/optimize", e.handler
}

func (e *OptimizeEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Optimize a prompt
//	@Description	Rewrite a prompt with the remote model, falling back to offline enhancement
//	@Tags			optimize
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OptimizeRequest	true	"Prompt and generation parameters"
//	@Success		200		{object}	OptimizeResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		429		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/optimize [post]
func (e *OptimizeEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := optimizer.ValidatePrompt(req.Prompt); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	orch := svcctx.OrchestratorFrom(r.Context())
	if orch == nil {
		writeError(w, http.StatusInternalServerError, "optimizer not available")
		return
	}

	res := orch.Optimize(r.Context(), req)
	if res.State == optimizer.StateFailed {
		writeError(w, http.StatusBadRequest, res.Message())
		return
	}
	writeJSON(w, http.StatusOK, NewOptimizeResponse(res))
}

func (e *OptimizeEndpoint) Command(getServerURL func() string) *cobra.Command {
	var temperature float64
	var maxTokens int

	cmd := &cobra.Command{
		Use:   "optimize <prompt>",
		Short: "Optimize a prompt through the server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := OptimizeRequest{Prompt: strings.Join(args, " ")}
			if err := optimizer.ValidatePrompt(req.Prompt); err != nil {
				return err
			}
			if cmd.Flags().Changed("temperature") {
				req.Temperature = &temperature
			}
			if cmd.Flags().Changed("max-tokens") {
				req.MaxTokens = &maxTokens
			}

			client := api.NewClient(getServerURL())
			var resp OptimizeResponse
			if err := client.Post(cmd.Context(), "/api/optimize", req, &resp); err != nil {
				return err
			}
			if resp.State != optimizer.StateSucceeded {
				api.Notice("%s", resp.Message)
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().Float64Var(&temperature, "temperature", optimizer.DefaultTemperature, "Sampling temperature (0-2)")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Completion budget (default: twice the prompt length, at most 1024)")
	return cmd
}

// OptimizePromptResponse is the result of optimizing a saved prompt.
type OptimizePromptResponse struct {
	OptimizeResponse `yaml:",inline"`
	Prompt           *library.Prompt `json:"prompt,omitempty" yaml:"prompt,omitempty"`
}

// OptimizePromptEndpoint handles POST /api/prompts/{id}/optimize.
type OptimizePromptEndpoint struct{}

func (e *OptimizePromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/prompts/{id}/optimize", e.handler
}

func (e *OptimizePromptEndpoint) RequiresInit() bool { return true }

func (e *OptimizePromptEndpoint) Group() string { return "prompts" }

// handler godoc
//
//	@Summary		Optimize a saved prompt
//	@Description	Optimize a prompt's content; with save=true the content is replaced by the result
//	@Tags			prompts
//	@Produce		json
//	@Param			id		path		string	true	"Prompt ID"
//	@Param			save	query		bool	false	"Replace the prompt content with the result"
//	@Success		200		{object}	OptimizePromptResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/prompts/{id}/optimize [post]
func (e *OptimizePromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lib := svcctx.LibraryFrom(ctx)
	orch := svcctx.OrchestratorFrom(ctx)
	if lib == nil || orch == nil {
		writeError(w, http.StatusInternalServerError, "library not available")
		return
	}

	p, err := lib.Get(ctx, r.PathValue("id"))
	if err != nil {
		writeLibraryError(w, err)
		return
	}

	req := optimizer.Request{Prompt: export.StripHTML(p.Content)}
	if err := optimizer.ValidatePrompt(req.Prompt); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := orch.Optimize(ctx, req)
	resp := OptimizePromptResponse{OptimizeResponse: NewOptimizeResponse(res)}
	if r.URL.Query().Get("save") == "true" && res.State != optimizer.StateFailed {
		updated, err := lib.Update(ctx, p.ID, library.Patch{Content: &res.Text})
		if err != nil {
			writeLibraryError(w, err)
			return
		}
		resp.Prompt = updated
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *OptimizePromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "optimize <id>",
		Short: "Optimize a saved prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/prompts/" + args[0] + "/optimize"
			if save {
				path += "?save=true"
			}
			client := api.NewClient(getServerURL())
			var resp OptimizePromptResponse
			if err := client.Post(cmd.Context(), path, nil, &resp); err != nil {
				return err
			}
			if resp.State != optimizer.StateSucceeded {
				api.Notice("%s", resp.Message)
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Replace the prompt content with the result")
	return cmd
}

// writeLibraryError maps library errors to HTTP status codes.
func writeLibraryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, library.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, library.ErrInvalidPrompt):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("library: %v", err))
	}
}
