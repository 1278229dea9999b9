package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"chat-audit-go/internal/watcher"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var outDir string
	var analyze bool
	var maxConcurrent int

	cmd := &cobra.Command{
		Use:   "watch <inbox-dir>",
		Short: "Ingest conversation files as they are dropped into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := ctx.ensureApp(runCtx)
			if err != nil {
				return err
			}
			handler := watcher.InboxHandler(a.Processor(analyze, true), outDir)
			w, err := watcher.New(args[0], handler, watcher.Options{MaxConcurrent: maxConcurrent}, a.Log)
			if err != nil {
				return err
			}
			defer w.Stop()

			if err := w.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default: the inbox itself)")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "Run analysis and write <name>.report.json")
	cmd.Flags().IntVar(&maxConcurrent, "concurrency", 2, "Files processed at once")
	return cmd
}
