package media

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-audit-go/internal/types"
)

func TestMimeFor(t *testing.T) {
	tests := []struct {
		kind types.MediaKind
		ext  string
		want string
	}{
		{types.MediaAudio, "mp3", "audio/mp3"},
		{types.MediaAudio, "MP3", "audio/mp3"},
		{types.MediaAudio, "opus", "audio/ogg"},
		{types.MediaAudio, "ogg", "audio/ogg"},
		{types.MediaImage, "png", "image/png"},
		{types.MediaImage, ".PNG", "image/png"},
		{types.MediaImage, "jpg", "image/jpeg"},
		{types.MediaImage, "webp", "image/jpeg"},
		{types.MediaImage, "heic", "image/jpeg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MimeFor(tt.kind, tt.ext), "%s/%s", tt.kind, tt.ext)
	}
}

type fakeGenerator struct {
	prompt string
	mime   string
	reply  string
	err    error
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, _ []byte, mimeType string) (string, error) {
	f.prompt, f.mime = prompt, mimeType
	return f.reply, f.err
}

func TestGeminiTranscriber(t *testing.T) {
	gen := &fakeGenerator{reply: "  Oi, tudo bem? Quanto fica o frete?\n"}
	tr := NewGeminiTranscriber(gen)

	text, err := tr.Transcribe(context.Background(), []byte("OggS"), "audio/ogg", types.MediaAudio)
	require.NoError(t, err)
	assert.Equal(t, "Oi, tudo bem? Quanto fica o frete?", text)
	assert.Equal(t, "audio/ogg", gen.mime)
	assert.Equal(t, audioPrompt, gen.prompt)

	_, err = tr.Transcribe(context.Background(), []byte{0xFF}, "image/jpeg", types.MediaImage)
	require.NoError(t, err)
	assert.Equal(t, imagePrompt, gen.prompt)
}

func TestGeminiTranscriberFailures(t *testing.T) {
	tr := NewGeminiTranscriber(&fakeGenerator{err: errors.New("503 unavailable")})
	_, err := tr.Transcribe(context.Background(), []byte("x"), "audio/ogg", types.MediaAudio)
	assert.ErrorIs(t, err, types.ErrTranscriptionFailed)
	assert.Contains(t, err.Error(), "503 unavailable")

	tr = NewGeminiTranscriber(&fakeGenerator{reply: "   "})
	_, err = tr.Transcribe(context.Background(), []byte("x"), "audio/ogg", types.MediaAudio)
	assert.ErrorIs(t, err, types.ErrTranscriptionFailed)

	_, err = tr.Transcribe(context.Background(), nil, "audio/ogg", types.MediaAudio)
	assert.ErrorIs(t, err, types.ErrTranscriptionFailed)
}

func TestStubTranscriberHonoursDeadline(t *testing.T) {
	stub := &StubTranscriber{Delay: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := stub.Transcribe(ctx, []byte("x"), "audio/ogg", types.MediaAudio)
	assert.ErrorIs(t, err, types.ErrTranscriptionFailed)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestStubTranscriberDefault(t *testing.T) {
	text, err := NewStubTranscriber().Transcribe(context.Background(), []byte("abc"), "image/png", types.MediaImage)
	require.NoError(t, err)
	assert.Equal(t, "MOCK IMAGE (image/png, 3 bytes)", text)
}
