// Package gemini wraps the Gemini API for the text, audio and image calls the pipeline makes.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"chat-audit-go/internal/logger"
)

// Generator produces text from a prompt and optional inline media.
type Generator interface {
	Generate(ctx context.Context, prompt string, data []byte, mimeType string) (string, error)
}

type Options struct {
	APIKeys []string
	Model   string
	// BaseURL overrides the API endpoint (tests, proxies).
	BaseURL string
}

// Client holds one genai client per API key and rotates keys on quota errors.
type Client struct {
	model   string
	clients []*genai.Client
	log     *logger.Logger

	mu         sync.Mutex
	currentKey int
}

func New(ctx context.Context, opts Options, log *logger.Logger) (*Client, error) {
	if len(opts.APIKeys) == 0 {
		return nil, errors.New("gemini: at least one API key is required")
	}
	if opts.Model == "" {
		opts.Model = "gemini-2.5-flash"
	}
	if log == nil {
		log = logger.Nop()
	}
	c := &Client{model: opts.Model, log: log}
	for i, key := range opts.APIKeys {
		cfg := &genai.ClientConfig{
			APIKey:  key,
			Backend: genai.BackendGeminiAPI,
		}
		if opts.BaseURL != "" {
			cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
		}
		client, err := genai.NewClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("gemini: create client for key %d: %w", i+1, err)
		}
		c.clients = append(c.clients, client)
	}
	return c, nil
}

// Generate sends prompt (plus data as an inline blob when non-empty) and returns the text reply.
// Rotates API keys on 429 / quota errors.
func (c *Client) Generate(ctx context.Context, prompt string, data []byte, mimeType string) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if len(data) > 0 {
		parts = append(parts, genai.NewPartFromBytes(data, mimeType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	var lastErr error
	for range c.clients {
		idx, client := c.current()
		result, err := client.Models.GenerateContent(ctx, c.model, contents, nil)
		if err != nil {
			if IsRateLimited(err) {
				c.log.Component("gemini").WithField("key_index", idx+1).Warn("key rate limited, rotating")
				c.rotate(idx)
				lastErr = err
				continue
			}
			return "", fmt.Errorf("generate content: %w", err)
		}
		return responseText(result)
	}
	return "", fmt.Errorf("all API keys exhausted: %w", lastErr)
}

func responseText(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", errors.New("empty response from Gemini")
	}
	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("empty response from Gemini")
	}
	return sb.String(), nil
}

func (c *Client) current() (int, *genai.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentKey, c.clients[c.currentKey]
}

// rotate advances past idx only if no other caller already did.
func (c *Client) rotate(idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentKey == idx {
		c.currentKey = (c.currentKey + 1) % len(c.clients)
	}
}

func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

var _ Generator = (*Client)(nil)
