package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptpal/internal/api"
	"github.com/jackzampolin/promptpal/internal/optimizer"
	"github.com/jackzampolin/promptpal/internal/server/endpoints"
)

var (
	optTemperature float64
	optMaxTokens   int
	optTextOnly    bool
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize [prompt]",
	Short: "Rewrite a prompt for clarity and specificity",
	Long: `Rewrite a prompt with the configured OpenAI model.

The prompt is taken from the arguments, or from stdin when none are given.
Without a stored API key, or when the remote call fails, the prompt is
rewritten with the offline enhancement and a notice is printed to stderr.

Examples:
  promptpal optimize "write a cover letter"
  pbpaste | promptpal optimize --text
  promptpal optimize --temperature 0.7 --max-tokens 300 "plan a trip"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt, err := readPrompt(cmd, args)
		if err != nil {
			return err
		}
		if err := optimizer.ValidatePrompt(prompt); err != nil {
			return err
		}

		req := optimizer.Request{Prompt: prompt}
		if cmd.Flags().Changed("temperature") {
			req.Temperature = &optTemperature
		}
		if cmd.Flags().Changed("max-tokens") {
			req.MaxTokens = &optMaxTokens
		}

		return withLocal(cmd.Context(), func(env *localEnv) error {
			res := env.Orchestrator.Optimize(cmd.Context(), req)
			if res.State == optimizer.StateFailed {
				return res.Err
			}
			if res.State != optimizer.StateSucceeded {
				api.Notice("%s", res.Message())
			}
			if optTextOnly {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), res.Text)
				return err
			}
			return api.Output(endpoints.NewOptimizeResponse(res))
		})
	},
}

// readPrompt joins args, or reads stdin when there are none.
func readPrompt(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read prompt from stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func init() {
	optimizeCmd.Flags().Float64Var(&optTemperature, "temperature", optimizer.DefaultTemperature, "Sampling temperature (0-2)")
	optimizeCmd.Flags().IntVar(&optMaxTokens, "max-tokens", 0, "Completion budget (default: twice the prompt length, at most 1024)")
	optimizeCmd.Flags().BoolVar(&optTextOnly, "text", false, "Print only the optimized text")
	rootCmd.AddCommand(optimizeCmd)
}
