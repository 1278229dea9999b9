package assembler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-audit-go/internal/media"
	"chat-audit-go/internal/types"
)

func item(name string, kind types.MediaKind, body string) types.MediaItem {
	return types.MediaItem{
		Name:      name,
		Kind:      kind,
		Extension: types.Ext(name),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

func echoStub() *media.StubTranscriber {
	return &media.StubTranscriber{
		Respond: func(data []byte, mimeType string, kind types.MediaKind) (string, error) {
			if string(data) == "bad" {
				return "", types.NewError(types.KindTranscriptionFailed, "transcription failed: unsupported codec", nil)
			}
			return "heard " + string(data) + " as " + mimeType, nil
		},
	}
}

func TestAssemblePartialFailureContained(t *testing.T) {
	a := New(echoStub(), Options{}, nil)
	items := []types.MediaItem{
		item("PTT-1.opus", types.MediaAudio, "one"),
		item("PTT-2.mp3", types.MediaAudio, "bad"),
		item("IMG-3.png", types.MediaImage, "three"),
	}

	c, err := a.Build(context.Background(), "chat text", items)
	require.NoError(t, err)

	want := "chat text" + SectionHeader +
		"\n[AUDIO] PTT-1.opus\nheard one as audio/ogg\n" +
		"\n[AUDIO] PTT-2.mp3\n(transcription failed: unsupported codec)\n" +
		"\n[IMAGE] IMG-3.png\nheard three as image/png\n"
	assert.Equal(t, want, c.Text)
	assert.Equal(t, types.Coverage{MediaFound: 3, MediaTranscribed: 2, MediaFailed: 1}, c.Coverage)
}

func TestAssembleBudget(t *testing.T) {
	var seen []string
	stub := &media.StubTranscriber{
		Respond: func(data []byte, _ string, _ types.MediaKind) (string, error) {
			seen = append(seen, string(data))
			return "t" + string(data), nil
		},
	}
	var items []types.MediaItem
	for i := 0; i < 10; i++ {
		items = append(items, item(fmt.Sprintf("PTT-%02d.opus", i), types.MediaAudio, fmt.Sprint(i)))
	}

	text, err := New(stub, Options{MaxMedia: 8}, nil).Assemble(context.Background(), "chat", items)
	require.NoError(t, err)

	assert.Equal(t, []string{"0", "1", "2", "3", "4", "5", "6", "7"}, seen)
	assert.Equal(t, 1, strings.Count(text, "[NOTICE]"))
	assert.Contains(t, text, "[NOTICE] 2 additional media file(s) were not transcribed: media budget of 8 reached.")
	assert.NotContains(t, text, "PTT-08.opus")
	assert.True(t, strings.HasSuffix(text, SkipNotice(2, 8)))
}

func TestAssembleNoMediaReturnsPrimaryUnchanged(t *testing.T) {
	text, err := New(echoStub(), Options{}, nil).Assemble(context.Background(), "only chat\n", nil)
	require.NoError(t, err)
	assert.Equal(t, "only chat\n", text)
}

func TestAssembleTimesOutHungItemAndContinues(t *testing.T) {
	hang := make(chan struct{})
	defer close(hang)
	stub := &media.StubTranscriber{
		Respond: func(data []byte, _ string, _ types.MediaKind) (string, error) {
			if string(data) == "hang" {
				<-hang // ignores its context entirely
			}
			return "ok " + string(data), nil
		},
	}
	a := New(stub, Options{ItemTimeout: 30 * time.Millisecond}, nil)
	items := []types.MediaItem{
		item("a.opus", types.MediaAudio, "hang"),
		item("b.opus", types.MediaAudio, "b"),
	}

	c, err := a.Build(context.Background(), "chat", items)
	require.NoError(t, err)
	require.Len(t, c.Outcomes, 2)
	assert.Equal(t, "timed out after 30ms", c.Outcomes[0].Err)
	assert.Equal(t, "ok b", c.Outcomes[1].Text)
	assert.Contains(t, c.Text, "\n[AUDIO] a.opus\n(transcription failed: timed out after 30ms)\n")
}

func TestAssembleUnreadableItem(t *testing.T) {
	broken := types.MediaItem{
		Name: "IMG-1.jpg", Kind: types.MediaImage, Extension: "jpg",
		Open: func() (io.ReadCloser, error) { return nil, errors.New("flate: corrupt input") },
	}
	c, err := New(echoStub(), Options{}, nil).Build(context.Background(), "chat", []types.MediaItem{broken})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Coverage.MediaFailed)
	assert.Contains(t, c.Text, "(transcription failed: could not read file: flate: corrupt input)")
}

func TestAssembleConcurrentKeepsOrderAndIsDeterministic(t *testing.T) {
	var inFlight, peak atomic.Int32
	stub := &media.StubTranscriber{
		Respond: func(data []byte, _ string, _ types.MediaKind) (string, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			// later items finish first
			time.Sleep(time.Duration(10-len(data)) * 3 * time.Millisecond)
			inFlight.Add(-1)
			return "t" + string(data), nil
		},
	}
	var items []types.MediaItem
	for i := 0; i < 6; i++ {
		items = append(items, item(fmt.Sprintf("m%d.opus", i), types.MediaAudio, strings.Repeat("x", i+1)))
	}

	a := New(stub, Options{Concurrency: 3}, nil)
	first, err := a.Assemble(context.Background(), "chat", items)
	require.NoError(t, err)
	second, err := a.Assemble(context.Background(), "chat", items)
	require.NoError(t, err)

	sequential, err := New(stub, Options{Concurrency: 1}, nil).Assemble(context.Background(), "chat", items)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, sequential, first)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Less(t, strings.Index(first, "m0.opus"), strings.Index(first, "m5.opus"))
}

func TestAssembleCancelledDiscardsPartialResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	stub := &media.StubTranscriber{
		Respond: func(data []byte, _ string, _ types.MediaKind) (string, error) {
			if calls.Add(1) == 2 {
				cancel()
			}
			return "t", nil
		},
	}
	var items []types.MediaItem
	for i := 0; i < 5; i++ {
		items = append(items, item(fmt.Sprintf("m%d.opus", i), types.MediaAudio, "x"))
	}

	text, err := New(stub, Options{}, nil).Assemble(ctx, "chat", items)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, text)
	assert.Equal(t, int32(2), calls.Load())
}
