package assembler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"chat-audit-go/internal/archive"
	"chat-audit-go/internal/logger"
	"chat-audit-go/internal/media"
	"chat-audit-go/internal/types"
)

const (
	DefaultMaxMedia    = 8
	DefaultItemTimeout = 60 * time.Second

	SectionHeader = "\n\n=== MEDIA TRANSCRIPTIONS ===\n"
)

type Options struct {
	// MaxMedia caps how many media items are transcribed, taken from the front.
	MaxMedia int
	// ItemTimeout time-boxes each transcription attempt.
	ItemTimeout time.Duration
	// Concurrency bounds in-flight transcriptions; 1 means strictly sequential.
	Concurrency int
}

// Composite is the assembled transcript plus what happened to each media item.
type Composite struct {
	Text     string
	Outcomes []types.TranscriptionOutcome
	Coverage types.Coverage
}

type Assembler struct {
	tr   media.Transcriber
	opts Options
	log  *logger.Logger
}

func New(tr media.Transcriber, opts Options, log *logger.Logger) *Assembler {
	if opts.MaxMedia <= 0 {
		opts.MaxMedia = DefaultMaxMedia
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = DefaultItemTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Assembler{tr: tr, opts: opts, log: log}
}

// Assemble returns the composite transcript. Media failures never make it fail;
// the error is non-nil only when ctx itself was cancelled.
func (a *Assembler) Assemble(ctx context.Context, primary string, items []types.MediaItem) (string, error) {
	c, err := a.Build(ctx, primary, items)
	if err != nil {
		return "", err
	}
	return c.Text, nil
}

func (a *Assembler) Build(ctx context.Context, primary string, items []types.MediaItem) (Composite, error) {
	log := a.log.FromContext(ctx).WithField("component", "assembler")

	selected := items
	skipped := 0
	if len(items) > a.opts.MaxMedia {
		selected = items[:a.opts.MaxMedia]
		skipped = len(items) - a.opts.MaxMedia
		log.WithFields(logrus.Fields{
			"media_found":  len(items),
			"media_budget": a.opts.MaxMedia,
			"skipped":      skipped,
		}).Info("media budget reached, skipping remaining items")
	}

	outcomes, err := a.transcribeAll(ctx, selected, log)
	if err != nil {
		return Composite{}, err
	}

	c := Composite{
		Outcomes: outcomes,
		Coverage: types.Coverage{MediaFound: len(items), MediaSkipped: skipped},
	}
	for _, o := range outcomes {
		if o.OK() {
			c.Coverage.MediaTranscribed++
		} else {
			c.Coverage.MediaFailed++
		}
	}
	c.Text = Render(primary, outcomes, skipped, a.opts.MaxMedia)
	return c, nil
}

// transcribeAll keeps results index-addressed so output order equals input order
// whatever the concurrency.
func (a *Assembler) transcribeAll(ctx context.Context, items []types.MediaItem, log *logrus.Entry) ([]types.TranscriptionOutcome, error) {
	outcomes := make([]types.TranscriptionOutcome, len(items))

	if a.opts.Concurrency == 1 {
		for i, item := range items {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			outcomes[i] = a.transcribeOne(ctx, item, log)
		}
		return outcomes, ctx.Err()
	}

	// one slot per in-flight transcription
	slots := make(chan struct{}, a.opts.Concurrency)
	var wg sync.WaitGroup
dispatch:
	for i, item := range items {
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			break dispatch
		}
		wg.Add(1)
		go func(i int, item types.MediaItem) {
			defer wg.Done()
			defer func() { <-slots }()
			outcomes[i] = a.transcribeOne(ctx, item, log)
		}(i, item)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (a *Assembler) transcribeOne(ctx context.Context, item types.MediaItem, log *logrus.Entry) types.TranscriptionOutcome {
	out := types.TranscriptionOutcome{Name: item.Name, Kind: item.Kind}
	itemLog := log.WithFields(logrus.Fields{"file": item.Name, "kind": item.Kind})

	data, err := archive.ReadEntry(item.Open)
	if err != nil {
		out.Err = fmt.Sprintf("could not read file: %v", err)
		itemLog.WithField("reason", out.Err).Warn("media transcription failed")
		return out
	}

	itemCtx, cancel := context.WithTimeout(ctx, a.opts.ItemTimeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	mimeType := media.MimeFor(item.Kind, item.Extension)
	go func() {
		text, err := a.tr.Transcribe(itemCtx, data, mimeType, item.Kind)
		ch <- result{text, err}
	}()

	// a transcriber that ignores its context must not hold up the rest
	var res result
	select {
	case <-itemCtx.Done():
		res.err = itemCtx.Err()
	case res = <-ch:
	}

	switch {
	case res.err != nil:
		out.Err = a.reason(res.err)
	case strings.TrimSpace(res.text) == "":
		out.Err = "no text returned"
	default:
		out.Text = strings.TrimSpace(res.text)
		itemLog.Debug("media transcribed")
		return out
	}
	itemLog.WithField("reason", out.Err).Warn("media transcription failed")
	return out
}

func (a *Assembler) reason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("timed out after %s", a.opts.ItemTimeout)
	}
	return strings.TrimPrefix(err.Error(), "transcription failed: ")
}

// Render lays out primary text, one block per outcome and the optional skip notice.
// With no media at all the primary text is returned unchanged.
func Render(primary string, outcomes []types.TranscriptionOutcome, skipped, budget int) string {
	if len(outcomes) == 0 && skipped == 0 {
		return primary
	}
	var sb strings.Builder
	sb.WriteString(primary)
	sb.WriteString(SectionHeader)
	for _, o := range outcomes {
		sb.WriteString(renderBlock(o))
	}
	if skipped > 0 {
		sb.WriteString(SkipNotice(skipped, budget))
	}
	return sb.String()
}

func renderBlock(o types.TranscriptionOutcome) string {
	if o.OK() {
		return fmt.Sprintf("\n[%s] %s\n%s\n", o.Kind.Label(), o.Name, o.Text)
	}
	return fmt.Sprintf("\n[%s] %s\n(transcription failed: %s)\n", o.Kind.Label(), o.Name, o.Err)
}

func SkipNotice(skipped, budget int) string {
	return fmt.Sprintf("\n[NOTICE] %d additional media file(s) were not transcribed: media budget of %d reached.\n", skipped, budget)
}
