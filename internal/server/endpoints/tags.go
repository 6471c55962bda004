package endpoints

import (
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptpal/internal/api"
	"github.com/jackzampolin/promptpal/internal/library"
	"github.com/jackzampolin/promptpal/internal/svcctx"
)

// TagsResponse contains the user's tags.
type TagsResponse struct {
	Tags []library.Tag `json:"tags"`
}

// CreateTagRequest is the request body for adding a tag.
type CreateTagRequest struct {
	Name string `json:"name"`
}

// ListTagsEndpoint handles GET /api/tags.
type ListTagsEndpoint struct{}

func (e *ListTagsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/tags", e.handler
}

func (e *ListTagsEndpoint) RequiresInit() bool { return true }

func (e *ListTagsEndpoint) Group() string { return "tags" }

// handler godoc
//
//	@Summary		List tags
//	@Tags			tags
//	@Produce		json
//	@Success		200	{object}	TagsResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/tags [get]
func (e *ListTagsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusInternalServerError, "library not available")
		return
	}

	tags, err := lib.Tags(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, TagsResponse{Tags: tags})
}

func (e *ListTagsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp TagsResponse
			if err := client.Get(cmd.Context(), "/api/tags", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// CreateTagEndpoint handles POST /api/tags.
type CreateTagEndpoint struct{}

func (e *CreateTagEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/tags", e.handler
}

func (e *CreateTagEndpoint) RequiresInit() bool { return true }

func (e *CreateTagEndpoint) Group() string { return "tags" }

// handler godoc
//
//	@Summary		Add a tag
//	@Description	Add a tag. An existing tag with the same name (any case) is returned unchanged.
//	@Tags			tags
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateTagRequest	true	"Tag"
//	@Success		200		{object}	library.Tag
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/tags [post]
func (e *CreateTagEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req CreateTagRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}

	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusInternalServerError, "library not available")
		return
	}

	tag, err := lib.AddTag(r.Context(), req.Name)
	if err != nil {
		writeLibraryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

func (e *CreateTagEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Add a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var tag library.Tag
			if err := client.Post(cmd.Context(), "/api/tags", CreateTagRequest{Name: args[0]}, &tag); err != nil {
				return err
			}
			return api.Output(tag)
		},
	}
}

// StatsResponse summarizes the library.
type StatsResponse struct {
	library.Stats `yaml:",inline"`
	Recent        []library.Prompt `json:"recent" yaml:"recent"`
}

// StatsEndpoint handles GET /api/stats.
type StatsEndpoint struct{}

// RecentLimit is how many recent prompts the stats view includes.
const RecentLimit = 5

func (e *StatsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/stats", e.handler
}

func (e *StatsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Library statistics
//	@Description	Counts of prompts, favorites, tags in use and prompts created in the last week
//	@Tags			prompts
//	@Produce		json
//	@Success		200	{object}	StatsResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/stats [get]
func (e *StatsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	lib := svcctx.LibraryFrom(r.Context())
	if lib == nil {
		writeError(w, http.StatusInternalServerError, "library not available")
		return
	}

	stats, err := lib.Stats(r.Context(), time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	recent, err := lib.Recent(r.Context(), RecentLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Stats: stats, Recent: recent})
}

func (e *StatsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show library statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatsResponse
			if err := client.Get(cmd.Context(), "/api/stats", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
