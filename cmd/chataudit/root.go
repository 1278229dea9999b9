package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"chat-audit-go/internal/app"
	"chat-audit-go/internal/config"
	"chat-audit-go/internal/logger"
	"chat-audit-go/internal/types"
)

// commandContext lazily loads config and builds the pipeline once per invocation.
type commandContext struct {
	configFlag *string
	mockFlag   *bool
	app        *app.App
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var mockFlag bool
	ctx := &commandContext{configFlag: &configFlag, mockFlag: &mockFlag}

	rootCmd := &cobra.Command{
		Use:           "chataudit",
		Short:         "Normalize and audit sales chat exports",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (YAML)")
	rootCmd.PersistentFlags().BoolVar(&mockFlag, "mock", false, "Use mock transcription, OCR and analysis backends")

	rootCmd.AddCommand(newExtractCommand(ctx))
	rootCmd.AddCommand(newAnalyzeCommand(ctx))
	rootCmd.AddCommand(newBatchCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))
	return rootCmd
}

func (c *commandContext) ensureApp(ctx context.Context) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := config.Load(*c.configFlag)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if *c.mockFlag {
		cfg.Transcriber.Backend = config.BackendMock
		cfg.OCR.Backend = config.BackendMock
		cfg.Analysis.Backend = config.BackendMock
	}
	// logs go to stderr so stdout stays machine-readable
	a, err := app.New(ctx, cfg, logger.NewWithOutput(os.Stderr))
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

// readUpload loads a local file the way the HTTP boundary would receive it.
func readUpload(path, mimeType string) (types.UploadedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.UploadedFile{}, fmt.Errorf("read %s: %w", path, err)
	}
	return types.UploadedFile{Name: filepath.Base(path), MimeType: mimeType, Data: data}, nil
}
