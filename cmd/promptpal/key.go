package main

import (
	"bufio"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptpal/internal/api"
	"github.com/jackzampolin/promptpal/internal/credential"
	"github.com/jackzampolin/promptpal/internal/server/endpoints"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the stored OpenAI API key",
	Long: `Manage the OpenAI API key used by optimize.

The key is stored in the local database, never in config.yaml.
Without a key, optimize uses the offline enhancement.`,
}

var keySetCmd = &cobra.Command{
	Use:   "set [key]",
	Short: "Store the API key (reads stdin when no argument is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var value string
		if len(args) == 1 {
			value = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return err
			}
			value = line
		}
		value = strings.TrimSpace(value)

		return withLocal(cmd.Context(), func(env *localEnv) error {
			if err := env.Credentials.Set(cmd.Context(), value); err != nil {
				return err
			}
			if value == "" {
				api.Notice("Empty key given, stored key cleared.")
				return nil
			}
			if !credential.LooksValid(value) {
				api.Notice("Warning: key does not start with %q", credential.Hint)
			}
			api.Notice("API key saved.")
			return nil
		})
	},
}

var keyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show whether a key is stored (masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocal(cmd.Context(), func(env *localEnv) error {
			value, _, err := env.Credentials.Get(cmd.Context())
			if err != nil {
				return err
			}
			return api.Output(endpoints.NewAPIKeyResponse(value))
		})
	},
}

var keyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored key",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocal(cmd.Context(), func(env *localEnv) error {
			if err := env.Credentials.Clear(cmd.Context()); err != nil {
				return err
			}
			api.Notice("API key cleared.")
			return nil
		})
	},
}

func init() {
	keyCmd.AddCommand(keySetCmd, keyShowCmd, keyClearCmd)
	rootCmd.AddCommand(keyCmd)
}
