package endpoints

import (
	"errors"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptpal/internal/api"
	"github.com/jackzampolin/promptpal/internal/export"
	"github.com/jackzampolin/promptpal/internal/svcctx"
)

// ExportPromptEndpoint handles GET /api/prompts/{id}/export.
type ExportPromptEndpoint struct{}

func (e *ExportPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts/{id}/export", e.handler
}

func (e *ExportPromptEndpoint) RequiresInit() bool { return true }

func (e *ExportPromptEndpoint) Group() string { return "prompts" }

// handler godoc
//
//	@Summary		Export a prompt
//	@Description	Download a prompt as plain text or a JSON document
//	@Tags			prompts
//	@Produce		plain
//	@Produce		json
//	@Param			id		path		string	true	"Prompt ID"
//	@Param			format	query		string	false	"txt (default) or json"
//	@Success		200		{file}		file
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/prompts/{id}/export [get]
func (e *ExportPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusInternalServerError, "library not available")
		return
	}

	p, err := lib.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLibraryError(w, err)
		return
	}

	format := r.URL.Query().Get("format")
	data, filename, err := export.Render(format, p.ID, p.Title, p.Content, time.Now())
	if err != nil {
		if errors.Is(err, export.ErrUnknownFormat) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	contentType := "text/plain; charset=utf-8"
	if format == export.FormatJSON {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (e *ExportPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	var format, dir string
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Download a prompt to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/prompts/" + url.PathEscape(args[0]) + "/export?format=" + url.QueryEscape(format)
			client := api.NewClient(getServerURL())
			data, header, err := client.GetRaw(cmd.Context(), path)
			if err != nil {
				return err
			}

			filename := "prompt." + format
			if _, params, err := mime.ParseMediaType(header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
				filename = filepath.Base(params["filename"])
			}
			written, err := export.Save(afero.NewOsFs(), dir, filename, data)
			if err != nil {
				return err
			}
			api.Notice("Exported to %s", written)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", export.FormatText, "Export format: txt or json")
	cmd.Flags().StringVar(&dir, "dir", ".", "Directory to write the file into")
	return cmd
}

// ShareResponse carries a share link.
type ShareResponse struct {
	URL string `json:"url"`
}

// SharePromptEndpoint handles GET /api/prompts/{id}/share.
type SharePromptEndpoint struct{}

func (e *SharePromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts/{id}/share", e.handler
}

func (e *SharePromptEndpoint) RequiresInit() bool { return true }

func (e *SharePromptEndpoint) Group() string { return "prompts" }

// handler godoc
//
//	@Summary		Share a prompt
//	@Description	Build a link that carries the prompt in its query string
//	@Tags			prompts
//	@Produce		json
//	@Param			id	path		string	true	"Prompt ID"
//	@Success		200	{object}	ShareResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/prompts/{id}/share [get]
func (e *SharePromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lib := svcctx.LibraryFrom(ctx)
	if lib == nil {
		writeError(w, http.StatusInternalServerError, "library not available")
		return
	}

	p, err := lib.Get(ctx, r.PathValue("id"))
	if err != nil {
		writeLibraryError(w, err)
		return
	}

	base := "http://" + r.Host
	if cfg := svcctx.ConfigFrom(ctx); cfg != nil {
		base = cfg.Get().Share.BaseURL
	}
	writeJSON(w, http.StatusOK, ShareResponse{URL: export.ShareURL(base, p.Title, p.Content)})
}

func (e *SharePromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "share <id>",
		Short: "Print a share link for a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ShareResponse
			if err := client.Get(cmd.Context(), "/api/prompts/"+url.PathEscape(args[0])+"/share", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// SharedEndpoint handles GET /api/shared.
type SharedEndpoint struct{}

func (e *SharedEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/shared", e.handler
}

func (e *SharedEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Open a shared prompt
//	@Description	Decode the title and content carried by a share link
//	@Tags			prompts
//	@Produce		json
//	@Param			title	query		string	false	"Prompt title"
//	@Param			content	query		string	true	"Prompt content"
//	@Success		200		{object}	export.Shared
//	@Failure		400		{object}	ErrorResponse
//	@Router			/api/shared [get]
func (e *SharedEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	shared, err := export.SharedFromValues(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, shared)
}

func (e *SharedEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "shared <link>",
		Short: "Decode a share link through the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Validate locally first so a bad link never leaves the machine.
			shared, err := export.ParseShared(args[0])
			if err != nil {
				return err
			}
			params := url.Values{}
			params.Set("title", shared.Title)
			params.Set("content", shared.Content)

			client := api.NewClient(getServerURL())
			var resp export.Shared
			if err := client.Get(cmd.Context(), "/api/shared?"+params.Encode(), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
