package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptpal/internal/api"
	"github.com/jackzampolin/promptpal/internal/credential"
	"github.com/jackzampolin/promptpal/internal/svcctx"
)

// APIKeyResponse describes the stored credential without revealing it.
type APIKeyResponse struct {
	Configured bool   `json:"configured"`
	Masked     string `json:"masked,omitempty"`
	Hint       string `json:"hint"`
	Warning    string `json:"warning,omitempty"`
}

// SetAPIKeyRequest is the request body for storing a key.
type SetAPIKeyRequest struct {
	Value string `json:"value"`
}

// NewAPIKeyResponse builds a response for a stored value ("" when absent).
func NewAPIKeyResponse(value string) APIKeyResponse {
	resp := APIKeyResponse{
		Configured: value != "",
		Masked:     credential.Mask(value),
		Hint:       fmt.Sprintf("OpenAI API keys usually start with %q", credential.Hint),
	}
	if value != "" && !credential.LooksValid(value) {
		resp.Warning = fmt.Sprintf("key does not start with %q", credential.Hint)
	}
	return resp
}

// GetAPIKeyEndpoint handles GET /api/settings/api-key.
type GetAPIKeyEndpoint struct{}

func (e *GetAPIKeyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/settings/api-key", e.handler
}

func (e *GetAPIKeyEndpoint) RequiresInit() bool { return true }

func (e *GetAPIKeyEndpoint) Group() string { return "settings" }

// handler godoc
//
//	@Summary		Show API key status
//	@Description	Report whether an OpenAI API key is stored, masked
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	APIKeyResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/settings/api-key [get]
func (e *GetAPIKeyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	creds := svcctx.CredentialsFrom(r.Context())
	if creds == nil {
		writeError(w, http.StatusInternalServerError, "credential store not available")
		return
	}

	value, _, err := creds.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, NewAPIKeyResponse(value))
}

func (e *GetAPIKeyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get-key",
		Short: "Show whether an API key is stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp APIKeyResponse
			if err := client.Get(cmd.Context(), "/api/settings/api-key", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// SetAPIKeyEndpoint handles PUT /api/settings/api-key.
type SetAPIKeyEndpoint struct{}

func (e *SetAPIKeyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/api/settings/api-key", e.handler
}

func (e *SetAPIKeyEndpoint) RequiresInit() bool { return true }

func (e *SetAPIKeyEndpoint) Group() string { return "settings" }

// handler godoc
//
//	@Summary		Store API key
//	@Description	Store the OpenAI API key. An empty value clears it.
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SetAPIKeyRequest	true	"Key value"
//	@Success		200		{object}	APIKeyResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/settings/api-key [put]
func (e *SetAPIKeyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req SetAPIKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	creds := svcctx.CredentialsFrom(r.Context())
	if creds == nil {
		writeError(w, http.StatusInternalServerError, "credential store not available")
		return
	}
	if err := creds.Set(r.Context(), req.Value); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	value, _, err := creds.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
		logger.Info("api key updated", "configured", value != "")
	}
	writeJSON(w, http.StatusOK, NewAPIKeyResponse(value))
}

func (e *SetAPIKeyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "set-key <value>",
		Short: "Store the OpenAI API key on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp APIKeyResponse
			if err := client.Put(cmd.Context(), "/api/settings/api-key", SetAPIKeyRequest{Value: args[0]}, &resp); err != nil {
				return err
			}
			if resp.Warning != "" {
				api.Notice("Warning: %s", resp.Warning)
			}
			return api.Output(resp)
		},
	}
}

// ClearAPIKeyEndpoint handles DELETE /api/settings/api-key.
type ClearAPIKeyEndpoint struct{}

func (e *ClearAPIKeyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/settings/api-key", e.handler
}

func (e *ClearAPIKeyEndpoint) RequiresInit() bool { return true }

func (e *ClearAPIKeyEndpoint) Group() string { return "settings" }

// handler godoc
//
//	@Summary		Clear API key
//	@Description	Remove the stored OpenAI API key
//	@Tags			settings
//	@Success		204
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/settings/api-key [delete]
func (e *ClearAPIKeyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	creds := svcctx.CredentialsFrom(r.Context())
	if creds == nil {
		writeError(w, http.StatusInternalServerError, "credential store not available")
		return
	}
	if err := creds.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *ClearAPIKeyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-key",
		Short: "Remove the stored API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/settings/api-key"); err != nil {
				return err
			}
			api.Notice("API key cleared.")
			return nil
		},
	}
}
