package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptpal/internal/api"
	"github.com/jackzampolin/promptpal/internal/library"
	"github.com/jackzampolin/promptpal/internal/svcctx"
)

// PromptsResponse contains a list of prompts.
type PromptsResponse struct {
	Prompts []library.Prompt `json:"prompts"`
	Total   int              `json:"total"`
}

// CreatePromptRequest is the request body for creating a prompt.
type CreatePromptRequest struct {
	Title       string             `json:"title"`
	Content     string             `json:"content"`
	Description string             `json:"description,omitempty"`
	Tags        []string           `json:"tags,omitempty"`
	Variables   []library.Variable `json:"variables,omitempty"`
	Favorite    bool               `json:"favorite,omitempty"`
}

// ListPromptsEndpoint handles GET /api/prompts.
type ListPromptsEndpoint struct{}

func (e *ListPromptsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts", e.handler
}

func (e *ListPromptsEndpoint) RequiresInit() bool { return true }

func (e *ListPromptsEndpoint) Group() string { return "prompts" }

// handler godoc
//
//	@Summary		List prompts
//	@Description	List saved prompts, newest first, with optional filters
//	@Tags			prompts
//	@Produce		json
//	@Param			q			query		string	false	"Search title, description and content"
//	@Param			tag			query		string	false	"Filter by tag"
//	@Param			favorites	query		bool	false	"Only favorites"
//	@Param			recent		query		int		false	"Return the N most recently created prompts instead"
//	@Success		200			{object}	PromptsResponse
//	@Failure		400			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Router			/api/prompts [get]
func (e *ListPromptsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusInternalServerError, "library not available")
		return
	}

	q := r.URL.Query()
	var (
		prompts []library.Prompt
		err     error
	)
	if v := q.Get("recent"); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid recent: "+strconv.Quote(v)+" must be a non-negative integer")
			return
		}
		prompts, err = lib.Recent(r.Context(), n)
	} else {
		filter := library.Filter{
			Query: q.Get("q"),
			Tag:   q.Get("tag"),
		}
		if v := q.Get("favorites"); v != "" {
			b, convErr := strconv.ParseBool(v)
			if convErr != nil {
				writeError(w, http.StatusBadRequest, "invalid favorites: "+strconv.Quote(v)+" must be true or false")
				return
			}
			filter.FavoritesOnly = b
		}
		prompts, err = lib.List(r.Context(), filter)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, PromptsResponse{Prompts: prompts, Total: len(prompts)})
}

func (e *ListPromptsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var query, tag string
	var favorites bool
	var recent int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{}
			if query != "" {
				params.Set("q", query)
			}
			if tag != "" {
				params.Set("tag", tag)
			}
			if favorites {
				params.Set("favorites", "true")
			}
			if recent > 0 {
				params.Set("recent", strconv.Itoa(recent))
			}

			path := "/api/prompts"
			if len(params) > 0 {
				path += "?" + params.Encode()
			}

			client := api.NewClient(getServerURL())
			var resp PromptsResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Search title, description and content")
	cmd.Flags().StringVar(&tag, "tag", "", "Filter by tag")
	cmd.Flags().BoolVar(&favorites, "favorites", false, "Only show favorites")
	cmd.Flags().IntVar(&recent, "recent", 0, "Show the N most recently created prompts")
	return cmd
}

// CreatePromptEndpoint handles POST /api/prompts.
type CreatePromptEndpoint struct{}

func (e *CreatePromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/prompts", e.handler
}

func (e *CreatePromptEndpoint) RequiresInit() bool { return true }

func (e *CreatePromptEndpoint) Group() string { return "prompts" }

// handler godoc
//
//	@Summary		Create a prompt
//	@Description	Save a new prompt. Unknown tags are registered.
//	@Tags			prompts
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreatePromptRequest	true	"Prompt"
//	@Success		201		{object}	library.Prompt
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/prompts [post]
func (e *CreatePromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req CreatePromptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusInternalServerError, "library not available")
		return
	}

	p, err := lib.Add(r.Context(), library.Prompt{
		Title:       req.Title,
		Content:     req.Content,
		Description: req.Description,
		Tags:        req.Tags,
		Variables:   req.Variables,
		Favorite:    req.Favorite,
	})
	if err != nil {
		writeLibraryError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (e *CreatePromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req CreatePromptRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Save a new prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var p library.Prompt
			if err := client.Post(cmd.Context(), "/api/prompts", req, &p); err != nil {
				return err
			}
			return api.Output(p)
		},
	}
	cmd.Flags().StringVar(&req.Title, "title", "", "Prompt title (required)")
	cmd.Flags().StringVar(&req.Content, "content", "", "Prompt content (required)")
	cmd.Flags().StringVar(&req.Description, "description", "", "Short description")
	cmd.Flags().StringSliceVar(&req.Tags, "tag", nil, "Tag (repeatable)")
	cmd.Flags().BoolVar(&req.Favorite, "favorite", false, "Mark as favorite")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("content")
	return cmd
}

// GetPromptEndpoint handles GET /api/prompts/{id}.
type GetPromptEndpoint struct{}

func (e *GetPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts/{id}", e.handler
}

func (e *GetPromptEndpoint) RequiresInit() bool { return true }

func (e *GetPromptEndpoint) Group() string { return "prompts" }

// handler godoc
//
//	@Summary		Get a prompt
//	@Description	Get a saved prompt by ID
//	@Tags			prompts
//	@Produce		json
//	@Param			id	path		string	true	"Prompt ID"
//	@Success		200	{object}	library.Prompt
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/prompts/{id} [get]
func (e *GetPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, p)
}

func (e *GetPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a prompt by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var p library.Prompt
			if err := client.Get(cmd.Context(), "/api/prompts/"+url.PathEscape(args[0]), &p); err != nil {
				return err
			}
			return api.Output(p)
		},
	}
}

// UpdatePromptEndpoint handles PATCH /api/prompts/{id}.
type UpdatePromptEndpoint struct{}

func (e *UpdatePromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PATCH", "/api/prompts/{id}", e.handler
}

func (e *UpdatePromptEndpoint) RequiresInit() bool { return true }

func (e *UpdatePromptEndpoint) Group() string { return "prompts" }

// handler godoc
//
//	@Summary		Update a prompt
//	@Description	Partially update a prompt. Omitted fields are unchanged.
//	@Tags			prompts
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Prompt ID"
//	@Param			body	body		library.Patch	true	"Fields to change"
//	@Success		200		{object}	library.Prompt
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/prompts/{id} [patch]
func (e *UpdatePromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var patch library.Patch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusInternalServerError, "library not available")
		return
	}

	p, err := lib.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeLibraryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (e *UpdatePromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	var title, content, description string
	var tags []string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch library.Patch
			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}
			if cmd.Flags().Changed("content") {
				patch.Content = &content
			}
			if cmd.Flags().Changed("description") {
				patch.Description = &description
			}
			if cmd.Flags().Changed("tag") {
				patch.Tags = &tags
			}

			client := api.NewClient(getServerURL())
			var p library.Prompt
			if err := client.Patch(cmd.Context(), "/api/prompts/"+url.PathEscape(args[0]), patch, &p); err != nil {
				return err
			}
			return api.Output(p)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&content, "content", "", "New content")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Replace tags (repeatable)")
	return cmd
}

// DeletePromptEndpoint handles DELETE /api/prompts/{id}.
type DeletePromptEndpoint struct{}

func (e *DeletePromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/prompts/{id}", e.handler
}

func (e *DeletePromptEndpoint) RequiresInit() bool { return true }

func (e *DeletePromptEndpoint) Group() string { return "prompts" }

// handler godoc
//
//	@Summary		Delete a prompt
//	@Tags			prompts
//	@Param			id	path	string	true	"Prompt ID"
//	@Success		204
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/prompts/{id} [delete]
func (e *DeletePromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusInternalServerError, "library not available")
		return
	}

	if err := lib.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeLibraryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *DeletePromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if err := client.Delete(cmd.Context(), "/api/prompts/"+url.PathEscape(args[0])); err != nil {
				return err
			}
			api.Notice("Prompt deleted.")
			return nil
		},
	}
}

// FavoritePromptEndpoint handles POST /api/prompts/{id}/favorite.
type FavoritePromptEndpoint struct{}

func (e *FavoritePromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/prompts/{id}/favorite", e.handler
}

func (e *FavoritePromptEndpoint) RequiresInit() bool { return true }

func (e *FavoritePromptEndpoint) Group() string { return "prompts" }

// handler godoc
//
//	@Summary		Toggle favorite
//	@Description	Flip a prompt's favorite flag
//	@Tags			prompts
//	@Produce		json
//	@Param			id	path		string	true	"Prompt ID"
//	@Success		200	{object}	library.Prompt
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/prompts/{id}/favorite [post]
func (e *FavoritePromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusInternalServerError, "library not available")
		return
	}

	p, err := lib.ToggleFavorite(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLibraryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (e *FavoritePromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <id>",
		Short: "Toggle a prompt's favorite flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var p library.Prompt
			if err := client.Post(cmd.Context(), "/api/prompts/"+url.PathEscape(args[0])+"/favorite", nil, &p); err != nil {
				return err
			}
			return api.Output(p)
		},
	}
}

// ImportPromptsEndpoint handles POST /api/prompts/import.
type ImportPromptsEndpoint struct{}

func (e *ImportPromptsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/prompts/import", e.handler
}

func (e *ImportPromptsEndpoint) RequiresInit() bool { return true }

func (e *ImportPromptsEndpoint) Group() string { return "prompts" }

// handler godoc
//
//	@Summary		Import prompts
//	@Description	Import a JSON export document, or an array of them, as new prompts
//	@Tags			prompts
//	@Accept			json
//	@Produce		json
//	@Success		201	{object}	PromptsResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/prompts/import [post]
func (e *ImportPromptsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusInternalServerError, "library not available")
		return
	}

	prompts, err := lib.Import(r.Context(), r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, PromptsResponse{Prompts: prompts, Total: len(prompts)})
}

func (e *ImportPromptsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import exported prompts from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if !json.Valid(data) {
				return fmt.Errorf("%s is not valid JSON", args[0])
			}

			client := api.NewClient(getServerURL())
			var resp PromptsResponse
			if err := client.Post(cmd.Context(), "/api/prompts/import", json.RawMessage(data), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
