package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"chat-audit-go/internal/gemini"
)

const recognizePrompt = `This is a screenshot of a chat conversation. Extract all of its text verbatim, one message per line, keeping the original order and language.
Return only the extracted text. If there is no readable text, return nothing.`

// GeminiRecognizer uses a multimodal model as the OCR engine.
type GeminiRecognizer struct {
	gen gemini.Generator
}

func NewGeminiRecognizer(gen gemini.Generator) *GeminiRecognizer {
	return &GeminiRecognizer{gen: gen}
}

func (g *GeminiRecognizer) Recognize(ctx context.Context, data []byte, mimeType string) (string, error) {
	return g.gen.Generate(ctx, recognizePrompt, data, mimeType)
}

// HTTPRecognizer calls an OCR inference endpoint taking {prompt, image_base64} and returning {text}.
type HTTPRecognizer struct {
	url        string
	client     *http.Client
	maxElapsed time.Duration
}

type inferenceRequest struct {
	Prompt   string `json:"prompt"`
	ImageB64 string `json:"image_base64"`
}

type inferenceResponse struct {
	Text string `json:"text"`
}

func NewHTTPRecognizer(url string, timeout time.Duration) *HTTPRecognizer {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &HTTPRecognizer{
		url:        url,
		client:     &http.Client{Timeout: timeout},
		maxElapsed: timeout,
	}
}

func (h *HTTPRecognizer) Recognize(ctx context.Context, data []byte, mimeType string) (string, error) {
	payload, err := json.Marshal(inferenceRequest{
		Prompt:   recognizePrompt,
		ImageB64: base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return "", err
	}

	var out inferenceResponse
	var lastErr error
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := h.client.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("ocr server error: %d %s", resp.StatusCode, bodySnippet(body))
			return lastErr
		}
		if resp.StatusCode >= 400 {
			// Permanent: don't retry on client errors
			lastErr = fmt.Errorf("ocr request rejected: %d %s", resp.StatusCode, bodySnippet(body))
			return backoff.Permanent(lastErr)
		}
		if err := json.Unmarshal(body, &out); err != nil {
			lastErr = fmt.Errorf("json decode error: %v body=%s", err, bodySnippet(body))
			return backoff.Permanent(lastErr)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = h.maxElapsed
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return "", lastErr
	}
	return out.Text, nil
}

func bodySnippet(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

// StubRecognizer returns a fixed text or error.
type StubRecognizer struct {
	Text string
	Err  error
}

func (s StubRecognizer) Recognize(ctx context.Context, _ []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Err != nil {
		return "", s.Err
	}
	if s.Text == "" {
		return "", errors.New("stub recognizer has no text configured")
	}
	return s.Text, nil
}

var (
	_ Recognizer = (*GeminiRecognizer)(nil)
	_ Recognizer = (*HTTPRecognizer)(nil)
	_ Recognizer = StubRecognizer{}
)
