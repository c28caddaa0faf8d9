package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var reanalyzeCmd = &cobra.Command{
	Use:   "reanalyze <caseID>",
	Short: "Run a blocking analysis of a case and store the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caseID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid case id %q", args[0])
		}
		clinician, err := actingClinician()
		if err != nil {
			return err
		}
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		res, err := app.Reanalyzer.Reanalyze(cmd.Context(), clinician, caseID)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	rootCmd.AddCommand(reanalyzeCmd)
}
