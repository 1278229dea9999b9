package archive

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-audit-go/internal/testsupport"
	"chat-audit-go/internal/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want types.EntryKind
	}{
		{"_chat.txt", types.EntryPrimaryText},
		{"Notes.TXT", types.EntryPrimaryText},
		{"PTT-20240301-WA0001.opus", types.EntryAudio},
		{"song.MP3", types.EntryAudio},
		{"voice.ogg", types.EntryAudio},
		{"IMG-1.jpg", types.EntryImage},
		{"IMG-2.JPEG", types.EntryImage},
		{"shot.png", types.EntryImage},
		{"sticker.webp", types.EntryImage},
		{"photo.HEIC", types.EntryImage},
		{"clip.mp4", types.EntryIgnored},
		{"contact.vcf", types.EntryIgnored},
		{"README", types.EntryIgnored},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.name), tt.name)
	}
}

func TestIsOSMetadata(t *testing.T) {
	assert.True(t, IsOSMetadata("__MACOSX/._chat.txt"))
	assert.True(t, IsOSMetadata("__macosx/media/IMG-1.jpg"))
	assert.True(t, IsOSMetadata("export/.DS_Store"))
	assert.True(t, IsOSMetadata("Thumbs.db"))
	assert.True(t, IsOSMetadata("._IMG-1.jpg"))
	assert.False(t, IsOSMetadata("_chat.txt"))
	assert.False(t, IsOSMetadata("media/IMG-1.jpg"))
}

func TestScanOfficialExportWinsRegardlessOfOrder(t *testing.T) {
	data := testsupport.Zip(t,
		testsupport.ZipEntry{Name: "notes.txt", Body: "unrelated notes"},
		testsupport.ZipEntry{Name: "_chat.txt", Body: "[01/02/24 09:00] Ana: Oi"},
		testsupport.ZipEntry{Name: "later.txt", Body: "later"},
	)
	res, err := Scan(data)
	require.NoError(t, err)
	assert.Equal(t, "_chat.txt", res.Primary.Path)

	text, err := res.PrimaryText()
	require.NoError(t, err)
	assert.Equal(t, "[01/02/24 09:00] Ana: Oi", text)
}

func TestScanFirstTextWinsWithoutOfficialExport(t *testing.T) {
	data := testsupport.Zip(t,
		testsupport.ZipEntry{Name: "a.txt", Body: "first"},
		testsupport.ZipEntry{Name: "b.txt", Body: "second"},
	)
	res, err := Scan(data)
	require.NoError(t, err)

	text, err := res.PrimaryText()
	require.NoError(t, err)
	assert.Equal(t, "first", text)
}

func TestScanMediaKeepsEnumerationOrderAndSkipsMetadata(t *testing.T) {
	data := testsupport.Zip(t,
		testsupport.ZipEntry{Name: "__MACOSX/._PTT-1.opus", Body: "meta"},
		testsupport.ZipEntry{Name: "PTT-2.opus", Body: "a2"},
		testsupport.ZipEntry{Name: "_chat.txt", Body: "chat"},
		testsupport.ZipEntry{Name: ".DS_Store", Body: "meta"},
		testsupport.ZipEntry{Name: "IMG-1.PNG", Body: "i1"},
		testsupport.ZipEntry{Name: "video.mp4", Body: "v"},
		testsupport.ZipEntry{Name: "PTT-1.mp3", Body: "a1"},
	)
	res, err := Scan(data)
	require.NoError(t, err)

	require.Len(t, res.Media, 3)
	assert.Equal(t, "PTT-2.opus", res.Media[0].Name)
	assert.Equal(t, types.MediaAudio, res.Media[0].Kind)
	assert.Equal(t, "IMG-1.PNG", res.Media[1].Name)
	assert.Equal(t, types.MediaImage, res.Media[1].Kind)
	assert.Equal(t, "png", res.Media[1].Extension)
	assert.Equal(t, "PTT-1.mp3", res.Media[2].Name)

	for _, e := range res.Entries {
		assert.False(t, IsOSMetadata(e.Path), e.Path)
	}
	assert.Len(t, res.Entries, 5)

	body, err := ReadEntry(res.Media[1].Open)
	require.NoError(t, err)
	assert.Equal(t, "i1", string(body))
}

func TestScanNoTranscript(t *testing.T) {
	data := testsupport.Zip(t,
		testsupport.ZipEntry{Name: "IMG-1.jpg", Body: "i"},
		testsupport.ZipEntry{Name: "__MACOSX/._chat.txt", Body: "meta"},
	)
	res, err := Scan(data)
	assert.ErrorIs(t, err, types.ErrNoTranscriptFound)
	assert.Empty(t, res.Entries)
}

func TestScanCorruptArchive(t *testing.T) {
	_, err := Scan([]byte("definitely not a zip"))
	assert.ErrorIs(t, err, types.ErrCorruptArchive)
}

func TestEntryLimit(t *testing.T) {
	data := testsupport.Zip(t,
		testsupport.ZipEntry{Name: "_chat.txt", Body: "0123456789abcdef"},
	)
	res, err := Scanner{MaxEntryBytes: 8}.Scan(data)
	require.NoError(t, err)

	_, err = res.PrimaryText()
	assert.ErrorIs(t, err, types.ErrCorruptArchive)
	assert.ErrorIs(t, err, ErrEntryTooLarge)
	assert.Equal(t, "The conversation text inside the ZIP archive is 16 bytes, over the 8 bytes size limit. Please export a shorter date range.", err.Error())
}

func TestUnreadablePrimaryTextKeepsGenericMessage(t *testing.T) {
	res := Result{Primary: types.ArchiveEntry{Path: "_chat.txt", Open: func() (io.ReadCloser, error) {
		return nil, errors.New("flate: corrupt input")
	}}}
	_, err := res.PrimaryText()
	assert.ErrorIs(t, err, types.ErrCorruptArchive)
	assert.NotErrorIs(t, err, ErrEntryTooLarge)
	assert.Equal(t, "The conversation text inside the ZIP archive could not be read.", err.Error())
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 bytes", formatBytes(512))
	assert.Equal(t, "1.5 KiB", formatBytes(1536))
	assert.Equal(t, "32.0 MiB", formatBytes(DefaultMaxEntryBytes))
}

func TestScanIsIdempotent(t *testing.T) {
	var entries []testsupport.ZipEntry
	for i := 0; i < 5; i++ {
		entries = append(entries, testsupport.ZipEntry{Name: fmt.Sprintf("PTT-%d.opus", i), Body: "x"})
	}
	entries = append(entries, testsupport.ZipEntry{Name: "_chat.txt", Body: "chat"})
	data := testsupport.Zip(t, entries...)

	first, err := Scan(data)
	require.NoError(t, err)
	second, err := Scan(data)
	require.NoError(t, err)
	require.Len(t, second.Media, len(first.Media))
	for i := range first.Media {
		assert.Equal(t, first.Media[i].Name, second.Media[i].Name)
	}
}
