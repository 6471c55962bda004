package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptpal/internal/api"
	"github.com/jackzampolin/promptpal/internal/export"
	"github.com/jackzampolin/promptpal/internal/library"
	"github.com/jackzampolin/promptpal/internal/optimizer"
	"github.com/jackzampolin/promptpal/internal/server/endpoints"
)

var promptsCmd = &cobra.Command{
	Use:     "prompts",
	Aliases: []string{"prompt", "p"},
	Short:   "Manage the local prompt library",
}

var (
	addTitle       string
	addContent     string
	addDescription string
	addTags        []string
	addFavorite    bool
)

var promptsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Save a new prompt (content from --content or stdin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		content := addContent
		if content == "" {
			var err error
			if content, err = readPrompt(cmd, nil); err != nil {
				return err
			}
		}
		return withLocal(cmd.Context(), func(env *localEnv) error {
			p, err := env.Library.Add(cmd.Context(), library.Prompt{
				Title:       addTitle,
				Content:     content,
				Description: addDescription,
				Tags:        addTags,
				Favorite:    addFavorite,
			})
			if err != nil {
				return err
			}
			return api.Output(p)
		})
	},
}

var (
	listQuery     string
	listTag       string
	listFavorites bool
	listRecent    int
)

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List prompts, most recently updated first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocal(cmd.Context(), func(env *localEnv) error {
			var (
				prompts []library.Prompt
				err     error
			)
			if listRecent > 0 {
				prompts, err = env.Library.Recent(cmd.Context(), listRecent)
			} else {
				prompts, err = env.Library.List(cmd.Context(), library.Filter{
					Query:         listQuery,
					Tag:           listTag,
					FavoritesOnly: listFavorites,
				})
			}
			if err != nil {
				return err
			}
			return api.Output(endpoints.PromptsResponse{Prompts: prompts, Total: len(prompts)})
		})
	},
}

var promptsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocal(cmd.Context(), func(env *localEnv) error {
			p, err := env.Library.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return api.Output(p)
		})
	},
}

var (
	updTitle       string
	updContent     string
	updDescription string
	updTags        []string
)

var promptsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change a prompt's fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch library.Patch
		if cmd.Flags().Changed("title") {
			patch.Title = &updTitle
		}
		if cmd.Flags().Changed("content") {
			patch.Content = &updContent
		}
		if cmd.Flags().Changed("description") {
			patch.Description = &updDescription
		}
		if cmd.Flags().Changed("tag") {
			patch.Tags = &updTags
		}
		return withLocal(cmd.Context(), func(env *localEnv) error {
			p, err := env.Library.Update(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			return api.Output(p)
		})
	},
}

var promptsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocal(cmd.Context(), func(env *localEnv) error {
			if err := env.Library.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			api.Notice("Prompt deleted.")
			return nil
		})
	},
}

var promptsFavoriteCmd = &cobra.Command{
	Use:   "favorite <id>",
	Short: "Toggle a prompt's favorite flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocal(cmd.Context(), func(env *localEnv) error {
			p, err := env.Library.ToggleFavorite(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return api.Output(p)
		})
	},
}

var promptsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show library statistics and recent prompts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocal(cmd.Context(), func(env *localEnv) error {
			stats, err := env.Library.Stats(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			recent, err := env.Library.Recent(cmd.Context(), endpoints.RecentLimit)
			if err != nil {
				return err
			}
			return api.Output(endpoints.StatsResponse{Stats: stats, Recent: recent})
		})
	},
}

var (
	exportFormat string
	exportDir    string
)

var promptsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Write a prompt to a .txt or .json file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocal(cmd.Context(), func(env *localEnv) error {
			p, err := env.Library.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			data, filename, err := export.Render(exportFormat, p.ID, p.Title, p.Content, time.Now())
			if err != nil {
				return err
			}
			dir := exportDir
			if dir == "" {
				dir = env.Home.ExportsDir()
			}
			path, err := export.Save(env.Fs, dir, filename, data)
			if err != nil {
				return err
			}
			api.Notice("Exported to %s", path)
			return nil
		})
	},
}

var promptsShareCmd = &cobra.Command{
	Use:   "share <id>",
	Short: "Print a share link for a prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocal(cmd.Context(), func(env *localEnv) error {
			p, err := env.Library.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			base := env.Config.Get().Share.BaseURL
			return api.Output(endpoints.ShareResponse{URL: export.ShareURL(base, p.Title, p.Content)})
		})
	},
}

var promptsImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Import prompts from a JSON export (single document or array)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		return withLocal(cmd.Context(), func(env *localEnv) error {
			prompts, err := env.Library.Import(cmd.Context(), f)
			if err != nil {
				return err
			}
			api.Notice("Imported %d prompt(s).", len(prompts))
			return api.Output(endpoints.PromptsResponse{Prompts: prompts, Total: len(prompts)})
		})
	},
}

var optimizeSave bool

var promptsOptimizeCmd = &cobra.Command{
	Use:   "optimize <id>",
	Short: "Optimize a saved prompt's content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocal(cmd.Context(), func(env *localEnv) error {
			p, err := env.Library.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			prompt := export.StripHTML(p.Content)
			if err := optimizer.ValidatePrompt(prompt); err != nil {
				return fmt.Errorf("prompt %s: %w", p.ID, err)
			}

			res := env.Orchestrator.Optimize(cmd.Context(), optimizer.Request{Prompt: prompt})
			if res.State == optimizer.StateFailed {
				return res.Err
			}
			if res.State != optimizer.StateSucceeded {
				api.Notice("%s", res.Message())
			}

			out := endpoints.OptimizePromptResponse{OptimizeResponse: endpoints.NewOptimizeResponse(res)}
			if optimizeSave {
				if out.Prompt, err = env.Library.Update(cmd.Context(), p.ID, library.Patch{Content: &res.Text}); err != nil {
					return err
				}
			}
			return api.Output(out)
		})
	},
}

func init() {
	promptsAddCmd.Flags().StringVar(&addTitle, "title", "", "Prompt title (required)")
	promptsAddCmd.Flags().StringVar(&addContent, "content", "", "Prompt content (default: read stdin)")
	promptsAddCmd.Flags().StringVar(&addDescription, "description", "", "Short description")
	promptsAddCmd.Flags().StringSliceVar(&addTags, "tag", nil, "Tag (repeatable)")
	promptsAddCmd.Flags().BoolVar(&addFavorite, "favorite", false, "Mark as favorite")
	promptsAddCmd.MarkFlagRequired("title")

	promptsListCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Search title, description and content")
	promptsListCmd.Flags().StringVar(&listTag, "tag", "", "Filter by tag")
	promptsListCmd.Flags().BoolVar(&listFavorites, "favorites", false, "Only show favorites")
	promptsListCmd.Flags().IntVar(&listRecent, "recent", 0, "Show the N most recently created prompts")

	promptsUpdateCmd.Flags().StringVar(&updTitle, "title", "", "New title")
	promptsUpdateCmd.Flags().StringVar(&updContent, "content", "", "New content")
	promptsUpdateCmd.Flags().StringVar(&updDescription, "description", "", "New description")
	promptsUpdateCmd.Flags().StringSliceVar(&updTags, "tag", nil, "Replace tags (repeatable)")

	promptsExportCmd.Flags().StringVar(&exportFormat, "format", export.FormatText, "Export format: txt or json")
	promptsExportCmd.Flags().StringVar(&exportDir, "dir", "", "Output directory (default: ~/.promptpal/exports)")

	promptsOptimizeCmd.Flags().BoolVar(&optimizeSave, "save", false, "Replace the prompt content with the result")

	promptsCmd.AddCommand(
		promptsAddCmd,
		promptsListCmd,
		promptsGetCmd,
		promptsUpdateCmd,
		promptsDeleteCmd,
		promptsFavoriteCmd,
		promptsStatsCmd,
		promptsExportCmd,
		promptsShareCmd,
		promptsImportCmd,
		promptsOptimizeCmd,
	)
	rootCmd.AddCommand(promptsCmd)
}
