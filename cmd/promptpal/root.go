package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptpal/internal/api"
	"github.com/jackzampolin/promptpal/internal/config"
	"github.com/jackzampolin/promptpal/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "promptpal",
	Short: "Prompt library with AI prompt optimization",
	Long: `PromptPal keeps a local library of prompts and rewrites them with an
OpenAI chat model.

Without an API key, or when the remote call fails, prompts are rewritten
with a built-in offline enhancement instead, so optimize always returns text.

Features:
  - Prompt library with tags, favorites, search and statistics
  - Export to text or JSON, share links, JSON import
  - Optimization history
  - HTTP API (promptpal serve) with matching client commands (promptpal api)`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.promptpal/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "promptpal home directory (default: ~/.promptpal)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn or error (default: from config)",
	)

	// Set output format and load .env before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		api.SetOutputFormat(outputFormat)
		return config.LoadDotEnv()
	}

	rootCmd.AddCommand(versionCmd)
}
