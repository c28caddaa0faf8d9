package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	domain "github.com/bryanwahyu/roundsiq/internal/domain/analysis"
)

var (
	submitWait    bool
	submitTimeout time.Duration
)

var submitCmd = &cobra.Command{
	Use:   "submit <caseID>",
	Short: "Queue an analysis of a case",
	Long: `Queue an analysis of a case with the analysis service.

With --wait the command polls until the job is finished and stores the
result. Without it the handle is printed and polling stops when the
command exits; use 'casectl status' to check the job afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().BoolVar(&submitWait, "wait", false, "poll until the job reaches a final state")
	submitCmd.Flags().DurationVar(&submitTimeout, "timeout", 30*time.Minute, "give up waiting after this long (cancels the job)")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	caseID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid case id %q", args[0])
	}
	clinician, err := actingClinician()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = app.Orchestrator.Shutdown(sctx)
	}()

	job, err := app.Orchestrator.Submit(ctx, clinician, caseID)
	if err != nil {
		return err
	}
	if !submitWait {
		return printJSON(cmd.OutOrStdout(), job)
	}

	wctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()
	final, err := app.Orchestrator.Wait(wctx, job.Handle)
	if err != nil {
		// Stop polling; a result arriving later is dropped.
		final, _ = app.Orchestrator.Cancel(job.Handle)
		_ = printJSON(cmd.OutOrStdout(), final)
		return fmt.Errorf("waiting for job %s: %w", job.Handle, err)
	}
	if err := printJSON(cmd.OutOrStdout(), final); err != nil {
		return err
	}
	if final.Status != domain.StatusCompleted {
		return fmt.Errorf("job %s ended %s: %s", final.Handle, final.Status, final.Error)
	}
	return nil
}
