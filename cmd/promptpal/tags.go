package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptpal/internal/api"
	"github.com/jackzampolin/promptpal/internal/server/endpoints"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Manage tags",
}

var tagsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a tag (an existing tag with the same name is kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocal(cmd.Context(), func(env *localEnv) error {
			tag, err := env.Library.AddTag(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return api.Output(tag)
		})
	},
}

var tagsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocal(cmd.Context(), func(env *localEnv) error {
			tags, err := env.Library.Tags(cmd.Context())
			if err != nil {
				return err
			}
			return api.Output(endpoints.TagsResponse{Tags: tags})
		})
	},
}

func init() {
	tagsCmd.AddCommand(tagsAddCmd, tagsListCmd)
	rootCmd.AddCommand(tagsCmd)
}
