package manifest

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"chat-audit-go/internal/actionable"
	"chat-audit-go/internal/aggregator"
	"chat-audit-go/internal/processor"
)

const (
	ResultsSheet = "Results"
	SummarySheet = "Summary"
)

var resultsHeader = []interface{}{
	"file", "route", "ingestion_id", "media_found", "media_transcribed", "media_failed", "media_skipped",
	"overall_score", "stage", "outcome", "sentiment", "duration_ms", "error_kind", "error",
}

// WriteResults writes one Results row per processed file and a Summary sheet.
func WriteResults(path string, results []processor.Result, ins aggregator.Insight, card actionable.ActionCard) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ResultsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := setRow(f, ResultsSheet, 1, resultsHeader); err != nil {
		return err
	}
	for i, r := range results {
		row := []interface{}{
			r.FileName, string(r.Route), r.IngestionID,
			r.Coverage.MediaFound, r.Coverage.MediaTranscribed, r.Coverage.MediaFailed, r.Coverage.MediaSkipped,
			"", "", "", "",
			r.DurationMs, string(r.ErrorKind), r.Error,
		}
		if r.Report != nil {
			row[7] = r.Report.OverallScore
			row[8] = string(r.Report.Stage)
			row[9] = string(r.Report.Outcome)
			row[10] = string(r.Report.CustomerSentiment)
		}
		if err := setRow(f, ResultsSheet, i+2, row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("new sheet: %w", err)
	}
	summary := [][]interface{}{
		{"metric", "value"},
		{"files", ins.Files},
		{"failed", ins.Failed},
		{"analyzed", ins.Analyzed},
		{"avg_score", ins.AvgScore},
		{"media_found", ins.Media.MediaFound},
		{"media_transcribed", ins.Media.MediaTranscribed},
		{"media_failed", ins.Media.MediaFailed},
		{"media_skipped", ins.Media.MediaSkipped},
		{"media_failure_rate", ins.MediaFailureRate},
		{"insight", card.Insight},
		{"action", card.Action},
		{"impact", card.Impact},
	}
	for i, row := range summary {
		if err := setRow(f, SummarySheet, i+1, row); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, n int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, n, err)
	}
	return nil
}
