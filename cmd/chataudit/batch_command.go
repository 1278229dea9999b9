package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"chat-audit-go/internal/actionable"
	"chat-audit-go/internal/aggregator"
	"chat-audit-go/internal/manifest"
	"chat-audit-go/internal/processor"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var outPath string
	var analyze bool

	cmd := &cobra.Command{
		Use:   "batch <manifest.xlsx>",
		Short: "Process every file listed in a manifest workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := manifest.Load(args[0])
			if err != nil {
				return fmt.Errorf("load manifest: %w", err)
			}

			proc := a.Processor(analyze, false)
			results := make([]processor.Result, 0, len(rows))
			for _, row := range rows {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				file, err := readUpload(row.Path, row.MimeType)
				if err != nil {
					results = append(results, processor.Result{FileName: row.Name, Error: err.Error()})
					continue
				}
				file.Name = row.Name
				// per-file failures are recorded in the result
				res, _ := proc.Process(cmd.Context(), file)
				results = append(results, res)
			}

			ins := aggregator.Aggregate(results)
			card := actionable.Generate(ins)
			if outPath != "" {
				if err := manifest.WriteResults(outPath, results, ins, card); err != nil {
					return err
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderResults(results))
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d files, %d failed, media %d/%d transcribed (%d skipped)\n",
				ins.Files, ins.Failed, ins.Media.MediaTranscribed, ins.Media.MediaFound, ins.Media.MediaSkipped)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", card.Insight, card.Action)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write a results workbook (xlsx) to this path")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "Run analysis after ingestion")
	return cmd
}

// renderResults lays out one row per processed file with a totals footer.
func renderResults(results []processor.Result) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"File", "Route", "Media", "Failed", "Skipped", "Score", "ms", "Status"})

	var found, transcribed, failed, skipped int
	for _, r := range results {
		status := "ok"
		if r.Failed() {
			status = string(r.ErrorKind)
			if status == "" {
				status = "error"
			}
		}
		score := "-"
		if r.Report != nil {
			score = strconv.Itoa(r.Report.OverallScore)
		}
		route := string(r.Route)
		if route == "" {
			route = "-"
		}
		c := r.Coverage
		found += c.MediaFound
		transcribed += c.MediaTranscribed
		failed += c.MediaFailed
		skipped += c.MediaSkipped
		tw.AppendRow(table.Row{
			r.FileName, route,
			fmt.Sprintf("%d/%d", c.MediaTranscribed, c.MediaFound),
			c.MediaFailed, c.MediaSkipped, score, r.DurationMs, status,
		})
	}
	tw.AppendFooter(table.Row{
		fmt.Sprintf("%d files", len(results)), "",
		fmt.Sprintf("%d/%d", transcribed, found), failed, skipped, "", "", "",
	})

	right := []string{"Media", "Failed", "Skipped", "Score", "ms"}
	configs := make([]table.ColumnConfig, 0, len(right))
	for _, name := range right {
		configs = append(configs, table.ColumnConfig{Name: name, Align: text.AlignRight, AlignFooter: text.AlignRight})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}
