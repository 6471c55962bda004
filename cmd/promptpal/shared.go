package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptpal/internal/api"
	"github.com/jackzampolin/promptpal/internal/export"
	"github.com/jackzampolin/promptpal/internal/library"
)

var sharedSave bool

var sharedCmd = &cobra.Command{
	Use:   "shared <link>",
	Short: "Open a share link, optionally saving it to the library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		shared, err := export.ParseShared(args[0])
		if err != nil {
			return err
		}
		if !sharedSave {
			return api.Output(shared)
		}

		return withLocal(cmd.Context(), func(env *localEnv) error {
			p, err := env.Library.Add(cmd.Context(), library.Prompt{
				Title:   shared.Title,
				Content: shared.Content,
			})
			if err != nil {
				return err
			}
			api.Notice("Saved to your library.")
			return api.Output(p)
		})
	},
}

func init() {
	sharedCmd.Flags().BoolVar(&sharedSave, "save", false, "Save the shared prompt to the library")
	rootCmd.AddCommand(sharedCmd)
}
