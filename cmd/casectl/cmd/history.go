package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	historyPage     int
	historyPageSize int
)

var historyCmd = &cobra.Command{
	Use:   "history <caseID>",
	Short: "List stored analyses of a case, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caseID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid case id %q", args[0])
		}
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		page, err := app.Results.ListByCase(cmd.Context(), caseID, historyPage, historyPageSize)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), page)
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyPage, "page", 1, "page number")
	historyCmd.Flags().IntVar(&historyPageSize, "page-size", 20, "results per page")
	rootCmd.AddCommand(historyCmd)
}
