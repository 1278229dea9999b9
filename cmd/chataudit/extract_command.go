package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var mimeType string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Print the normalized transcript of a .txt, .zip or image file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			file, err := readUpload(args[0], mimeType)
			if err != nil {
				return err
			}
			ex, err := a.Router.Extract(cmd.Context(), file)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, ex)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), ex.Text)
			return err
		},
	}
	cmd.Flags().StringVar(&mimeType, "mime", "", "Declared MIME type (default: inferred from the extension)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print route, coverage and transcript as JSON")
	return cmd
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var mimeType string
	var withTranscript bool

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Ingest a conversation and print its diagnostic report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			file, err := readUpload(args[0], mimeType)
			if err != nil {
				return err
			}
			res, err := a.Processor(true, withTranscript).Process(cmd.Context(), file)
			if err != nil {
				return err
			}
			return writeJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&mimeType, "mime", "", "Declared MIME type (default: inferred from the extension)")
	cmd.Flags().BoolVar(&withTranscript, "transcript", false, "Include the normalized transcript in the output")
	return cmd
}
