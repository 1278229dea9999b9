package media

import (
	"context"
	"fmt"
	"time"

	"chat-audit-go/internal/types"
)

// StubTranscriber returns deterministic transcriptions; used for mock mode and tests.
type StubTranscriber struct {
	// Delay simulates model latency. It honours context cancellation.
	Delay time.Duration
	// Respond overrides the default reply when set.
	Respond func(data []byte, mimeType string, kind types.MediaKind) (string, error)
}

func NewStubTranscriber() *StubTranscriber {
	return &StubTranscriber{}
}

func (s *StubTranscriber) Transcribe(ctx context.Context, data []byte, mimeType string, kind types.MediaKind) (string, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return "", failed(ctx.Err().Error(), ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return "", failed(err.Error(), err)
	}
	if s.Respond != nil {
		return s.Respond(data, mimeType, kind)
	}
	return fmt.Sprintf("MOCK %s (%s, %d bytes)", kind.Label(), mimeType, len(data)), nil
}

var _ Transcriber = (*StubTranscriber)(nil)
