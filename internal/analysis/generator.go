package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"chat-audit-go/internal/gemini"
	"chat-audit-go/internal/logger"
	"chat-audit-go/internal/types"
)

// Generator is the language model behind analysis and chat.
type Generator interface {
	Complete(ctx context.Context, system string, messages []types.ChatMessage) (string, error)
}

// GatewayGenerator talks to an OpenAI-compatible chat completions endpoint.
type GatewayGenerator struct {
	url        string
	apiKey     string
	model      string
	client     *http.Client
	maxElapsed time.Duration
	log        *logger.Logger
}

type GatewayOptions struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
	// MaxRetry bounds the total time spent retrying.
	MaxRetry time.Duration
}

func NewGatewayGenerator(opts GatewayOptions, log *logger.Logger) *GatewayGenerator {
	if opts.Timeout <= 0 {
		opts.Timeout = 90 * time.Second
	}
	if opts.MaxRetry <= 0 {
		opts.MaxRetry = 2 * time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &GatewayGenerator{
		url:        opts.URL,
		apiKey:     opts.APIKey,
		model:      opts.Model,
		client:     &http.Client{Timeout: opts.Timeout},
		maxElapsed: opts.MaxRetry,
		log:        log,
	}
}

type chatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string                  `json:"model,omitempty"`
	Messages    []chatCompletionMessage `json:"messages"`
	Temperature float64                 `json:"temperature"`
}

func (g *GatewayGenerator) Complete(ctx context.Context, system string, messages []types.ChatMessage) (string, error) {
	if g.url == "" {
		return "", fmt.Errorf("llm gateway not configured")
	}
	log := g.log.FromContext(ctx).WithField("component", "llm-gateway")

	req := chatCompletionRequest{Model: g.model, Temperature: 0.0}
	if system != "" {
		req.Messages = append(req.Messages, chatCompletionMessage{Role: "system", Content: system})
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, chatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	log.WithField("payload_len", len(data)).Debug("llm request")

	var content string
	var lastErr error
	op := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if g.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
		}

		resp, err := g.client.Do(httpReq)
		if err != nil {
			lastErr = err
			log.WithError(err).Warn("llm request failed")
			return err
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		log.WithField("http_status", resp.StatusCode).Debug("llm raw:\n" + string(body))

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("llm gateway returned %d: %s", resp.StatusCode, truncateForLog(body))
			return lastErr
		case resp.StatusCode >= 400:
			// Permanent: don't retry on client errors
			lastErr = fmt.Errorf("llm gateway rejected request %d: %s", resp.StatusCode, truncateForLog(body))
			return backoff.Permanent(lastErr)
		}

		if c, ok := contentFromChoices(body); ok {
			content = c
		} else {
			content = string(body)
		}
		lastErr = nil
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = g.maxElapsed
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return "", fmt.Errorf("llm completion failed: %w", lastErr)
	}
	return content, nil
}

// contentFromChoices reads openai-style choices[0].message.content
func contentFromChoices(body []byte) (string, bool) {
	var obj struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &obj); err != nil || len(obj.Choices) == 0 {
		return "", false
	}
	return obj.Choices[0].Message.Content, true
}

func truncateForLog(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

// GeminiGenerator flattens the conversation into a single prompt for the Gemini client.
type GeminiGenerator struct {
	gen gemini.Generator
}

func NewGeminiGenerator(gen gemini.Generator) *GeminiGenerator {
	return &GeminiGenerator{gen: gen}
}

func (g *GeminiGenerator) Complete(ctx context.Context, system string, messages []types.ChatMessage) (string, error) {
	var sb strings.Builder
	if system != "" {
		sb.WriteString(system)
		sb.WriteString("\n\n")
	}
	for i, m := range messages {
		if len(messages) > 1 {
			fmt.Fprintf(&sb, "%s: ", strings.ToUpper(string(m.Role)))
		}
		sb.WriteString(m.Content)
		if i < len(messages)-1 {
			sb.WriteString("\n\n")
		}
	}
	return g.gen.Generate(ctx, sb.String(), nil, "")
}

// MockGenerator returns a fixed, schema-valid report and a canned chat reply.
type MockGenerator struct {
	Report    string
	ChatReply string
}

func (m MockGenerator) Complete(ctx context.Context, system string, messages []types.ChatMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if system == analysisSystem {
		if m.Report != "" {
			return m.Report, nil
		}
		return mockReport, nil
	}
	if m.ChatReply != "" {
		return m.ChatReply, nil
	}
	last := ""
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	return fmt.Sprintf("MOCK reply to %q", last), nil
}

const mockReport = `{
  "overall_score": 62,
  "stage": "objection_handling",
  "outcome": "pending",
  "customer_sentiment": "neutral",
  "summary": "Customer asked about price and delivery; seller answered but did not propose a next step.",
  "scores": {"rapport": 7, "discovery": 5, "objection_handling": 6, "closing": 3},
  "errors": [
    {"title": "No call to action", "severity": "high", "excerpt": "Ok, qualquer coisa me chama", "suggestion": "Offer a concrete next step such as reserving the item or scheduling delivery."}
  ],
  "techniques": [
    {"name": "Rapport building", "applied": true, "evidence": "Greeted the customer by name"},
    {"name": "Urgency", "applied": false, "evidence": ""}
  ],
  "next_steps": ["Follow up within 24 hours with a delivery date"]
}`

var (
	_ Generator = (*GatewayGenerator)(nil)
	_ Generator = (*GeminiGenerator)(nil)
	_ Generator = MockGenerator{}
)
