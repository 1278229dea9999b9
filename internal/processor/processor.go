// internal/processor/processor.go
package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"chat-audit-go/internal/ingest"
	"chat-audit-go/internal/logger"
	"chat-audit-go/internal/types"
)

// Extractor is the ingestion stage.
type Extractor interface {
	Extract(ctx context.Context, file types.UploadedFile) (ingest.Extraction, error)
}

// Analyzer is the analysis stage.
type Analyzer interface {
	Analyze(ctx context.Context, transcript string) (types.Report, error)
}

// Result is returned by /analyze and by batch runs, one per file.
type Result struct {
	FileName    string                       `json:"file_name"`
	IngestionID string                       `json:"ingestion_id,omitempty"`
	Route       types.Route                  `json:"route,omitempty"`
	Coverage    types.Coverage               `json:"coverage"`
	Media       []types.TranscriptionOutcome `json:"media,omitempty"`
	Transcript  string                       `json:"transcript,omitempty"`
	Report      *types.Report                `json:"report,omitempty"`
	DurationMs  int64                        `json:"duration_ms"`
	ErrorKind   types.ErrorKind              `json:"error_kind,omitempty"`
	Error       string                       `json:"error,omitempty"`
}

// Failed reports whether the file produced no usable output.
func (r Result) Failed() bool { return r.Error != "" }

type Options struct {
	// KeepTranscript copies the normalized transcript into the Result.
	KeepTranscript bool
}

type Processor struct {
	extractor Extractor
	analyzer  Analyzer
	opts      Options
	log       *logger.Logger
}

// New builds a processor. A nil analyzer makes it ingestion-only.
func New(extractor Extractor, analyzer Analyzer, opts Options, log *logger.Logger) *Processor {
	if log == nil {
		log = logger.Nop()
	}
	return &Processor{extractor: extractor, analyzer: analyzer, opts: opts, log: log}
}

// Process runs ingestion then analysis. Ingestion errors stop before analysis.
// The returned Result is always populated; err mirrors Result.Error.
func (p *Processor) Process(ctx context.Context, file types.UploadedFile) (Result, error) {
	log := p.log.FromContext(ctx).WithField("component", "processor").WithField("file", file.Name)
	start := time.Now()
	res := Result{FileName: file.Name}

	ex, err := p.extractor.Extract(ctx, file)
	if err != nil {
		return p.fail(res, start, fmt.Errorf("ingestion: %w", err), err), err
	}
	res.IngestionID = ex.IngestionID
	res.Route = ex.Route
	res.Coverage = ex.Coverage
	res.Media = ex.Media
	if p.opts.KeepTranscript {
		res.Transcript = ex.Text
	}

	if p.analyzer != nil {
		report, err := p.analyzer.Analyze(ctx, ex.Text)
		if err != nil {
			return p.fail(res, start, fmt.Errorf("analysis: %w", err), err), err
		}
		res.Report = &report
	}

	res.DurationMs = time.Since(start).Milliseconds()
	log.WithFields(logrus.Fields{
		"ingestion_id": res.IngestionID,
		"route":        res.Route,
		"duration_ms":  res.DurationMs,
		"analyzed":     res.Report != nil,
	}).Info("file processed")
	return res, nil
}

func (p *Processor) fail(res Result, start time.Time, logged, err error) Result {
	res.ErrorKind = types.KindOf(err)
	res.Error = err.Error()
	res.DurationMs = time.Since(start).Milliseconds()
	p.log.Component("processor").WithFields(logrus.Fields{
		"file": res.FileName,
		"kind": res.ErrorKind,
	}).WithError(logged).Warn("file processing failed")
	return res
}
