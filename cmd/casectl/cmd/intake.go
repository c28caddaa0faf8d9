package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/roundsiq/internal/domain/cases"
)

var intake struct {
	specialty string
	symptoms  string
	history   string
	labs      string
	note      string
	images    []string
}

var intakeCmd = &cobra.Command{
	Use:   "intake",
	Short: "Store a new case",
	Long: `Store a new case. Images are uploaded to MinIO when it is enabled
and referenced by path otherwise.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
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

		c := &cases.Case{
			ClinicianID: clinician.ID,
			Specialty:   intake.specialty,
			Symptoms:    intake.symptoms,
			History:     intake.history,
			LabResults:  intake.labs,
			Note:        intake.note,
		}
		if !c.HasContent() {
			return fmt.Errorf("a case needs at least one of --symptoms, --history, --labs, --note")
		}
		for _, img := range intake.images {
			handle := img
			if app.Blob != nil {
				key := fmt.Sprintf("cases/%s/%s%s", time.Now().UTC().Format("2006/01/02"), uuid.NewString(), filepath.Ext(img))
				handle, err = app.Blob.Upload(ctx, img, key)
				if err != nil {
					return fmt.Errorf("upload %s: %w", img, err)
				}
			}
			c.Attachments = append(c.Attachments, handle)
		}
		if err := app.Cases.Save(ctx, c); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), c)
	},
}

func init() {
	f := intakeCmd.Flags()
	f.StringVar(&intake.specialty, "specialty", "", "case specialty (defaults to the clinician's)")
	f.StringVar(&intake.symptoms, "symptoms", "", "presenting symptoms")
	f.StringVar(&intake.history, "history", "", "relevant history")
	f.StringVar(&intake.labs, "labs", "", "lab results")
	f.StringVar(&intake.note, "note", "", "free-text clinical note")
	f.StringSliceVar(&intake.images, "image", nil, "image file to attach (repeatable)")
	rootCmd.AddCommand(intakeCmd)
}
