package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"chat-audit-go/internal/logger"
	"chat-audit-go/internal/textutil"
	"chat-audit-go/internal/types"
)

const DefaultMinChars = 10

// maxReasonChars bounds the recognizer detail quoted in user-facing messages.
const maxReasonChars = 200

// Recognizer reads the text out of one image.
type Recognizer interface {
	Recognize(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Extractor is the screenshot path of ingestion: recognize, trim, quality-gate.
type Extractor struct {
	rec      Recognizer
	minChars int
	timeout  time.Duration
	log      *logger.Logger
}

func NewExtractor(rec Recognizer, minChars int, timeout time.Duration, log *logger.Logger) *Extractor {
	if minChars <= 0 {
		minChars = DefaultMinChars
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{rec: rec, minChars: minChars, timeout: timeout, log: log}
}

func (e *Extractor) Extract(ctx context.Context, file types.UploadedFile) (string, error) {
	log := e.log.FromContext(ctx).WithField("component", "ocr").WithField("file", file.Name)
	parent := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	raw, err := e.rec.Recognize(ctx, file.Data, ImageMime(file))
	if err != nil {
		if perr := parent.Err(); errors.Is(perr, context.Canceled) {
			log.Debug("text recognition cancelled")
			return "", perr
		}
		log.WithField("reason", err.Error()).Warn("text recognition failed")
		return "", types.NewError(types.KindRecognitionError,
			"Text recognition failed for the image: "+textutil.OneLine(err.Error(), maxReasonChars), err)
	}

	text := strings.TrimSpace(raw)
	if n := utf8.RuneCountInString(text); n < e.minChars {
		log.WithField("chars", n).Warn("recognized text below quality threshold")
		return "", types.NewError(types.KindInsufficientText,
			fmt.Sprintf("Only %d characters could be read from the image. Please upload a sharper screenshot of the conversation.", n), nil)
	}
	log.WithField("chars", utf8.RuneCountInString(text)).Debug("text recognized")
	return text, nil
}

// ImageMime prefers the declared image type, falling back to the extension.
func ImageMime(file types.UploadedFile) string {
	if mt := strings.ToLower(strings.TrimSpace(file.MimeType)); strings.HasPrefix(mt, "image/") {
		return mt
	}
	switch file.Ext() {
	case "png":
		return "image/png"
	case "bmp":
		return "image/bmp"
	case "webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
