package media

import (
	"context"
	"fmt"
	"strings"

	"chat-audit-go/internal/gemini"
	"chat-audit-go/internal/types"
)

// Transcriber turns one audio or image blob into a short text.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, mimeType string, kind types.MediaKind) (string, error)
}

// MimeFor is the MIME sent to the transcription model. Only audio/mp3, audio/ogg,
// image/png and image/jpeg are ever produced.
func MimeFor(kind types.MediaKind, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if kind == types.MediaAudio {
		if ext == "mp3" {
			return "audio/mp3"
		}
		return "audio/ogg"
	}
	if ext == "png" {
		return "image/png"
	}
	return "image/jpeg"
}

const (
	audioPrompt = `Transcribe this voice message from a sales conversation verbatim, in its original language.
Return only the transcription, without commentary.`
	imagePrompt = `This image was shared in a sales conversation. Describe it in one or two sentences and transcribe any visible text (prices, product names, receipts).
Return only the description.`
)

// GeminiTranscriber sends media inline to a multimodal model.
type GeminiTranscriber struct {
	gen gemini.Generator
}

func NewGeminiTranscriber(gen gemini.Generator) *GeminiTranscriber {
	return &GeminiTranscriber{gen: gen}
}

func (g *GeminiTranscriber) Transcribe(ctx context.Context, data []byte, mimeType string, kind types.MediaKind) (string, error) {
	if len(data) == 0 {
		return "", failed("empty media file", nil)
	}
	prompt := audioPrompt
	if kind == types.MediaImage {
		prompt = imagePrompt
	}
	text, err := g.gen.Generate(ctx, prompt, data, mimeType)
	if err != nil {
		return "", failed(err.Error(), err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", failed("model returned no text", nil)
	}
	return text, nil
}

func failed(reason string, cause error) error {
	return types.NewError(types.KindTranscriptionFailed, fmt.Sprintf("transcription failed: %s", reason), cause)
}

var _ Transcriber = (*GeminiTranscriber)(nil)
