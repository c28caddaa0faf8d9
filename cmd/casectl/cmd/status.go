package cmd

import (
	"github.com/spf13/cobra"

	domain "github.com/bryanwahyu/roundsiq/internal/domain/analysis"
	"github.com/bryanwahyu/roundsiq/internal/infra/aiservice"
)

var statusCmd = &cobra.Command{
	Use:   "status <handle>",
	Short: "Ask the analysis service for the state of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := aiservice.New(aiservice.Options{
			BaseURL:        cfg.AnalysisService.BaseURL,
			APIKey:         cfg.AnalysisService.APIKey,
			RequestTimeout: cfg.AnalysisService.RequestTimeout.Std(),
			Logger:         logger,
		})
		resp, err := client.PollStatus(cmd.Context(), domain.JobHandle(args[0]))
		if err != nil {
			return err
		}
		out := map[string]any{"handle": args[0], "status": resp.Status}
		if resp.Payload != nil {
			out["payload"] = resp.Payload
		}
		if resp.Error != "" {
			out["error"] = resp.Error
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
