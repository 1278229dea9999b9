// Package app wires configured backends into the ingestion and analysis components.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"chat-audit-go/internal/analysis"
	"chat-audit-go/internal/archive"
	"chat-audit-go/internal/assembler"
	"chat-audit-go/internal/config"
	"chat-audit-go/internal/gemini"
	"chat-audit-go/internal/ingest"
	"chat-audit-go/internal/logger"
	"chat-audit-go/internal/media"
	"chat-audit-go/internal/ocr"
	"chat-audit-go/internal/processor"
)

const mockOCRText = "MOCK OCR\nCliente: Bom dia, ainda tem disponível?\nVendedor: Temos sim!"

type App struct {
	Config   *config.Config
	Router   *ingest.Router
	Analyzer *analysis.Analyzer
	Log      *logger.Logger
}

func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.New()
	}

	var gc gemini.Generator
	if cfg.NeedsGemini() {
		client, err := gemini.New(ctx, gemini.Options{APIKeys: cfg.Gemini.APIKeys, Model: cfg.Gemini.Model}, log)
		if err != nil {
			return nil, err
		}
		gc = client
	}

	var tr media.Transcriber
	switch cfg.Transcriber.Backend {
	case config.BackendMock:
		tr = media.NewStubTranscriber()
	case config.BackendGemini:
		tr = media.NewGeminiTranscriber(gc)
	default:
		return nil, fmt.Errorf("unsupported transcriber backend %q", cfg.Transcriber.Backend)
	}

	var rec ocr.Recognizer
	switch cfg.OCR.Backend {
	case config.BackendMock:
		rec = ocr.StubRecognizer{Text: mockOCRText}
	case config.BackendHTTP:
		rec = ocr.NewHTTPRecognizer(cfg.OCR.URL, cfg.OCR.Timeout)
	case config.BackendGemini:
		rec = ocr.NewGeminiRecognizer(gc)
	default:
		return nil, fmt.Errorf("unsupported ocr backend %q", cfg.OCR.Backend)
	}

	var gen analysis.Generator
	switch cfg.Analysis.Backend {
	case config.BackendMock:
		gen = analysis.MockGenerator{}
	case config.BackendGateway:
		gen = analysis.NewGatewayGenerator(analysis.GatewayOptions{
			URL:      cfg.Analysis.GatewayURL,
			APIKey:   cfg.Analysis.APIKey,
			Model:    cfg.Analysis.Model,
			Timeout:  cfg.Analysis.Timeout,
			MaxRetry: cfg.Analysis.MaxRetry,
		}, log)
	case config.BackendGemini:
		gen = analysis.NewGeminiGenerator(gc)
	default:
		return nil, fmt.Errorf("unsupported analysis backend %q", cfg.Analysis.Backend)
	}

	asm := assembler.New(tr, assembler.Options{
		MaxMedia:    cfg.Ingest.MaxMedia,
		ItemTimeout: cfg.Ingest.MediaTimeout,
		Concurrency: cfg.Ingest.MediaConcurrency,
	}, log)
	router := ingest.NewRouter(
		archive.Scanner{MaxEntryBytes: cfg.Ingest.MaxEntryBytes},
		asm,
		ocr.NewExtractor(rec, cfg.OCR.MinChars, cfg.OCR.Timeout, log),
		log,
	)

	log.WithFields(logrus.Fields{
		"transcriber":       cfg.Transcriber.Backend,
		"ocr":               cfg.OCR.Backend,
		"analysis":          cfg.Analysis.Backend,
		"max_media":         cfg.Ingest.MaxMedia,
		"media_concurrency": cfg.Ingest.MediaConcurrency,
	}).Info("pipeline configured")

	return &App{
		Config:   cfg,
		Router:   router,
		Analyzer: analysis.New(gen, analysis.Options{MaxChars: cfg.Analysis.MaxChars, Timeout: cfg.Analysis.Timeout}, log),
		Log:      log,
	}, nil
}

// Processor returns an ingest-only processor unless analyze is set.
func (a *App) Processor(analyze, keepTranscript bool) *processor.Processor {
	var an processor.Analyzer
	if analyze {
		an = a.Analyzer
	}
	return processor.New(a.Router, an, processor.Options{KeepTranscript: keepTranscript}, a.Log)
}
