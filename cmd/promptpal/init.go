package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptpal/internal/api"
	"github.com/jackzampolin/promptpal/internal/config"
	"github.com/jackzampolin/promptpal/internal/home"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the home directory and a default config file",
	Long: `Create ~/.promptpal (or --home) with the exports directory and a
default config.yaml. An existing config file is kept unless --force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		if h.ConfigExists() && !initForce {
			api.Notice("Config already exists at %s (use --force to overwrite)", h.ConfigPath())
			return nil
		}
		if err := config.WriteDefault(h.ConfigPath()); err != nil {
			return err
		}
		api.Notice("Wrote %s", h.ConfigPath())
		api.Notice("Next: promptpal key set <your OpenAI API key>")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}
