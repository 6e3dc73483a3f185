package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/feichai0017/document-summarizer/config"
	"github.com/feichai0017/document-summarizer/internal/app"
	"github.com/feichai0017/document-summarizer/internal/models"
	"github.com/feichai0017/document-summarizer/pkg/converters"
	"github.com/feichai0017/document-summarizer/pkg/logger"
)

// service is the part of the document service the CLI drives.
type service interface {
	List(ctx context.Context, limit int) ([]converters.DocumentView, error)
	Get(ctx context.Context, id string) (*converters.DocumentView, error)
	Ask(ctx context.Context, id, question string) (string, error)
	Chunks(ctx context.Context, id string) ([]models.Chunk, error)
	Calls(ctx context.Context, limit int) ([]models.CallLog, error)
	GetSettings(ctx context.Context) (models.ModelSettings, error)
	UpdateSettings(ctx context.Context, s models.ModelSettings) (models.ModelSettings, error)
	Cleanup(ctx context.Context, olderThan time.Duration) error
	HandleDocument(ctx context.Context, documentID string) error
}

var (
	configPath string

	docService service
	closeApp   func() error
)

var rootCmd = &cobra.Command{
	Use:   "docctl",
	Short: "Operate the document summarizer",
	Long: `docctl runs pipeline steps in-process against the configured database,
storage and LLM provider. It does not need Redis.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(*cobra.Command, []string) error {
		if closeApp == nil {
			return nil
		}
		err := closeApp()
		closeApp = nil
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")
}

func setup(cmd *cobra.Command, _ []string) error {
	if docService != nil {
		return nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.FromConfig(cfg.Log)
	if err != nil {
		return err
	}
	application, err := app.New(cmd.Context(), cfg, log, app.Options{})
	if err != nil {
		return err
	}
	docService = application.Service
	closeApp = func() error {
		log.Sync()
		return application.Close()
	}
	return nil
}
