// Package ingest is the entry point of the pipeline: it routes one uploaded file to
// the text, archive or image path and returns a single normalized transcript.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"chat-audit-go/internal/archive"
	"chat-audit-go/internal/assembler"
	"chat-audit-go/internal/logger"
	"chat-audit-go/internal/textutil"
	"chat-audit-go/internal/types"
)

var (
	zipMimes = map[string]bool{
		"application/zip":              true,
		"application/x-zip-compressed": true,
		"application/x-zip":            true,
		"multipart/x-zip":              true,
	}
	imageExts = map[string]bool{"jpg": true, "jpeg": true, "png": true, "bmp": true, "webp": true}
)

// Assembler builds the composite transcript for an archive.
type Assembler interface {
	Build(ctx context.Context, primary string, items []types.MediaItem) (assembler.Composite, error)
}

// ImageExtractor reads a conversation out of a screenshot.
type ImageExtractor interface {
	Extract(ctx context.Context, file types.UploadedFile) (string, error)
}

// Extraction is the result of one ingestion call.
type Extraction struct {
	IngestionID string                       `json:"ingestion_id"`
	Route       types.Route                  `json:"route"`
	Text        string                       `json:"transcript"`
	Coverage    types.Coverage               `json:"coverage"`
	Media       []types.TranscriptionOutcome `json:"media,omitempty"`
}

type Router struct {
	scanner archive.Scanner
	asm     Assembler
	ocr     ImageExtractor
	log     *logger.Logger
}

func NewRouter(scanner archive.Scanner, asm Assembler, ocr ImageExtractor, log *logger.Logger) *Router {
	if log == nil {
		log = logger.Nop()
	}
	return &Router{scanner: scanner, asm: asm, ocr: ocr, log: log}
}

// ExtractText returns only the normalized transcript.
func (r *Router) ExtractText(ctx context.Context, file types.UploadedFile) (string, error) {
	ex, err := r.Extract(ctx, file)
	if err != nil {
		return "", err
	}
	return ex.Text, nil
}

func (r *Router) Extract(ctx context.Context, file types.UploadedFile) (Extraction, error) {
	ex := Extraction{IngestionID: uuid.New().String(), Route: RouteOf(file)}
	entry := r.log.FromContext(ctx).WithFields(logrus.Fields{
		"ingestion_id": ex.IngestionID,
		"file":         file.Name,
		"mime":         file.MimeType,
		"route":        ex.Route,
	})
	ctx = logger.WithContext(ctx, entry)

	var err error
	switch ex.Route {
	case types.RouteText:
		ex.Text, err = textutil.Decode(file.Data)
		if err != nil {
			err = types.NewError(types.KindUnsupportedFormat,
				"The text file could not be decoded. Please upload a UTF-8 or UTF-16 export.", err)
		}
	case types.RouteArchive:
		err = r.extractArchive(ctx, file, &ex)
	case types.RouteImage:
		ex.Text, err = r.ocr.Extract(ctx, file)
	default:
		err = unsupported(file)
	}
	if err != nil {
		entry.WithField("kind", types.KindOf(err)).WithError(err).Warn("ingestion failed")
		return Extraction{}, err
	}

	entry.WithFields(logrus.Fields{
		"bytes":             len(ex.Text),
		"media_found":       ex.Coverage.MediaFound,
		"media_transcribed": ex.Coverage.MediaTranscribed,
		"media_failed":      ex.Coverage.MediaFailed,
		"media_skipped":     ex.Coverage.MediaSkipped,
	}).Info("ingestion complete")
	return ex, nil
}

func (r *Router) extractArchive(ctx context.Context, file types.UploadedFile, ex *Extraction) error {
	res, err := r.scanner.Scan(file.Data)
	if err != nil {
		return err
	}
	primary, err := res.PrimaryText()
	if err != nil {
		return err
	}
	c, err := r.asm.Build(ctx, primary, res.Media)
	if err != nil {
		return err
	}
	ex.Text = c.Text
	ex.Coverage = c.Coverage
	ex.Media = c.Outcomes
	return nil
}

// RouteOf applies the routing policy in order: text, archive, image. An empty
// route means the file belongs to no recognized family.
func RouteOf(file types.UploadedFile) types.Route {
	mt := normalizeMime(file.MimeType)
	ext := file.Ext()
	switch {
	case mt == "text/plain" || ext == "txt":
		return types.RouteText
	case zipMimes[mt] || ext == "zip":
		return types.RouteArchive
	case strings.HasPrefix(mt, "image/") || imageExts[ext]:
		return types.RouteImage
	}
	return ""
}

// normalizeMime drops parameters such as "; charset=utf-8".
func normalizeMime(mt string) string {
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

func unsupported(file types.UploadedFile) error {
	declared := file.MimeType
	if declared == "" {
		declared = "unknown"
	}
	return types.NewError(types.KindUnsupportedFormat,
		fmt.Sprintf("Unsupported file type %q (%s). Please upload a .txt export, a .zip export or a screenshot.", declared, file.Name), nil)
}
