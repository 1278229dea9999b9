package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"chat-audit-go/internal/processor"
	"chat-audit-go/internal/types"
)

const (
	TranscriptSuffix = ".transcript.txt"
	ReportSuffix     = ".report.json"
)

// Processor is what the inbox runs on each file.
type Processor interface {
	Process(ctx context.Context, file types.UploadedFile) (processor.Result, error)
}

// InboxHandler processes a dropped file and writes <name>.transcript.txt, plus
// <name>.report.json when the result carries a report or an error.
// proc must keep transcripts in its results.
func InboxHandler(proc Processor, outDir string) EventHandler {
	return func(ctx context.Context, path string) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		name := filepath.Base(path)
		res, procErr := proc.Process(ctx, types.UploadedFile{Name: name, Data: data})

		dir := outDir
		if dir == "" {
			dir = filepath.Dir(path)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}

		if procErr == nil {
			if err := os.WriteFile(filepath.Join(dir, name+TranscriptSuffix), []byte(res.Transcript), 0o644); err != nil {
				return fmt.Errorf("write transcript: %w", err)
			}
		}
		if res.Report != nil || procErr != nil {
			out, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(dir, name+ReportSuffix), out, 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
		}
		return procErr
	}
}
