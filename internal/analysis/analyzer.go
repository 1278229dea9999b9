// Package analysis turns a normalized conversation transcript into a sales diagnostic
// report and answers follow-up questions about it.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"chat-audit-go/internal/logger"
	"chat-audit-go/internal/types"
)

const DefaultMaxChars = 500000

var (
	ErrEmptyTranscript = errors.New("transcript is empty")
	ErrEmptyMessage    = errors.New("chat message is empty")
	ErrInvalidRole     = errors.New("chat history contains an unknown role")
)

type Options struct {
	// MaxChars caps the transcript handed to the model, in characters.
	MaxChars int
	Timeout  time.Duration
}

type Analyzer struct {
	gen  Generator
	opts Options
	log  *logger.Logger
}

func New(gen Generator, opts Options, log *logger.Logger) *Analyzer {
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Analyzer{gen: gen, opts: opts, log: log}
}

// Analyze caps the transcript, asks the model for a report and validates it.
func (a *Analyzer) Analyze(ctx context.Context, transcript string) (types.Report, error) {
	log := a.log.FromContext(ctx).WithField("component", "analysis")
	if strings.TrimSpace(transcript) == "" {
		return types.Report{}, ErrEmptyTranscript
	}

	capped, cut := Truncate(transcript, a.opts.MaxChars)
	if cut {
		log.WithFields(logrus.Fields{
			"chars":     utf8.RuneCountInString(transcript),
			"max_chars": a.opts.MaxChars,
		}).Info("transcript truncated for analysis")
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	raw, err := a.gen.Complete(ctx, analysisSystem, []types.ChatMessage{
		{Role: types.RoleUser, Content: BuildPrompt(capped)},
	})
	if err != nil {
		return types.Report{}, fmt.Errorf("analysis request failed: %w", err)
	}

	report, err := ParseReport(raw)
	if err != nil {
		log.WithField("reason", err.Error()).Warn("malformed analysis response")
		return types.Report{}, err
	}
	log.WithFields(logrus.Fields{
		"overall_score": report.OverallScore,
		"stage":         report.Stage,
	}).Info("analysis complete")
	return report, nil
}

// Chat answers a follow-up message given the prior turns.
func (a *Analyzer) Chat(ctx context.Context, history []types.ChatMessage, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}
	msgs := make([]types.ChatMessage, 0, len(history)+1)
	for _, m := range history {
		if m.Role != types.RoleUser && m.Role != types.RoleAssistant {
			return "", fmt.Errorf("%w: %q", ErrInvalidRole, m.Role)
		}
		msgs = append(msgs, m)
	}
	msgs = append(msgs, types.ChatMessage{Role: types.RoleUser, Content: message})

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	reply, err := a.gen.Complete(ctx, chatSystem, msgs)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

func (a *Analyzer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.opts.Timeout > 0 {
		return context.WithTimeout(ctx, a.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

// Truncate keeps at most limit characters of s and reports whether anything was cut.
func Truncate(s string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i], true
		}
		n++
	}
	return s, false
}
