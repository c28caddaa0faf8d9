package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/roundsiq/internal/bootstrap"
	"github.com/bryanwahyu/roundsiq/internal/config"
	domain "github.com/bryanwahyu/roundsiq/internal/domain/analysis"
	"github.com/bryanwahyu/roundsiq/internal/logging"
)

var (
	cfgFile     string
	logLevel    string
	clinicianID string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "casectl",
	Short: "Operate clinical case analyses from the command line",
	Long: `casectl submits cases for analysis, follows queued jobs, runs
synchronous reanalyses and prints a case's analysis history. It reads the
same configuration file as the API server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initConfig()
	},
}

// Execute runs the root command; SIGINT and SIGTERM cancel its context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: $CONFIG_PATH or config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&clinicianID, "clinician", "",
		"clinician id to act as (must match auth.clinicians for a named identity)")
}

func initConfig() error {
	path := cfgFile
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.yaml"
	}
	c, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config %s: %w", path, err)
	}
	cfg = c
	logger = logging.New(logging.Config{Level: logLevel, Format: "text", Output: os.Stderr})
	return nil
}

func openApp(ctx context.Context) (*bootstrap.App, error) {
	return bootstrap.New(ctx, cfg, logger)
}

func actingClinician() (domain.Clinician, error) {
	return bootstrap.Clinician(cfg, clinicianID)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
