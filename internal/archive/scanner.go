package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"chat-audit-go/internal/textutil"
	"chat-audit-go/internal/types"
)

// OfficialExportMarker is the name fragment of the merged whole-chat export.
const OfficialExportMarker = "_chat.txt"

// DefaultMaxEntryBytes bounds how much of one entry is ever read.
const DefaultMaxEntryBytes int64 = 32 << 20

// ErrEntryTooLarge is wrapped by reads of entries over the size limit.
var ErrEntryTooLarge = errors.New("archive entry over size limit")

var (
	audioExts = map[string]bool{"opus": true, "mp3": true, "ogg": true}
	imageExts = map[string]bool{"jpg": true, "jpeg": true, "png": true, "webp": true, "heic": true}
)

// Result is the classified view of one archive.
type Result struct {
	Entries []types.ArchiveEntry
	Primary types.ArchiveEntry
	Media   []types.MediaItem

	limit int64
}

// Scanner classifies ZIP archive members.
type Scanner struct {
	MaxEntryBytes int64
}

// Scan opens data as a ZIP, classifies every entry and resolves the primary transcript.
func Scan(data []byte) (Result, error) {
	return Scanner{}.Scan(data)
}

func (s Scanner) Scan(data []byte) (Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, types.NewError(types.KindCorruptArchive,
			"The ZIP archive could not be opened. Please export the conversation again.", err)
	}
	limit := s.MaxEntryBytes
	if limit <= 0 {
		limit = DefaultMaxEntryBytes
	}

	var (
		res          = Result{limit: limit}
		primaryFound bool
		official     bool
	)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || IsOSMetadata(f.Name) {
			continue
		}
		entry := types.ArchiveEntry{
			Path: f.Name,
			Kind: Classify(f.Name),
			Size: f.UncompressedSize64,
			Open: opener(f, limit),
		}
		res.Entries = append(res.Entries, entry)

		switch entry.Kind {
		case types.EntryPrimaryText:
			isOfficial := strings.Contains(strings.ToLower(path.Base(f.Name)), OfficialExportMarker)
			if !primaryFound || (isOfficial && !official) {
				res.Primary = entry
				primaryFound = true
				official = isOfficial
			}
		case types.EntryAudio, types.EntryImage:
			kind := types.MediaAudio
			if entry.Kind == types.EntryImage {
				kind = types.MediaImage
			}
			res.Media = append(res.Media, types.MediaItem{
				Name:      path.Base(f.Name),
				Kind:      kind,
				Extension: types.Ext(f.Name),
				Size:      entry.Size,
				Open:      entry.Open,
			})
		}
	}

	if !primaryFound {
		return Result{}, types.NewError(types.KindNoTranscriptFound,
			"No conversation text (.txt) was found inside the ZIP archive. Please check the export contents.", nil)
	}
	return res, nil
}

// PrimaryText reads and decodes the resolved primary transcript.
func (r Result) PrimaryText() (string, error) {
	data, err := ReadEntry(r.Primary.Open)
	if errors.Is(err, ErrEntryTooLarge) {
		return "", types.NewError(types.KindCorruptArchive,
			fmt.Sprintf("The conversation text inside the ZIP archive is %s, over the %s size limit. Please export a shorter date range.",
				formatBytes(int64(r.Primary.Size)), formatBytes(r.limit)), err)
	}
	if err != nil {
		return "", types.NewError(types.KindCorruptArchive,
			"The conversation text inside the ZIP archive could not be read.", err)
	}
	text, err := textutil.Decode(data)
	if err != nil {
		return "", types.NewError(types.KindCorruptArchive,
			"The conversation text inside the ZIP archive could not be decoded.", err)
	}
	return text, nil
}

// Classify maps an entry path to its kind; matching is case-insensitive.
func Classify(name string) types.EntryKind {
	ext := types.Ext(name)
	switch {
	case ext == "txt":
		return types.EntryPrimaryText
	case audioExts[ext]:
		return types.EntryAudio
	case imageExts[ext]:
		return types.EntryImage
	default:
		return types.EntryIgnored
	}
}

// IsOSMetadata reports entries added by the OS archiver rather than the chat export.
func IsOSMetadata(name string) bool {
	lower := strings.ToLower(strings.TrimPrefix(name, "/"))
	if lower == "__macosx" || strings.HasPrefix(lower, "__macosx/") {
		return true
	}
	base := path.Base(lower)
	return base == ".ds_store" || base == "thumbs.db" || strings.HasPrefix(base, "._")
}

// ReadEntry reads a whole entry through its opener.
func ReadEntry(open func() (io.ReadCloser, error)) ([]byte, error) {
	rc, err := open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// opener returns a lazy reader that refuses entries beyond limit.
func opener(f *zip.File, limit int64) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		if f.UncompressedSize64 > uint64(limit) {
			return nil, fmt.Errorf("entry %s is %d bytes, over the %d byte limit", f.Name, f.UncompressedSize64, limit)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open entry %s: %w", f.Name, err)
		}
		return &limitedReadCloser{r: io.LimitReader(rc, limit+1), c: rc, limit: limit, name: f.Name}, nil
	}
}

// limitedReadCloser guards against headers that understate the real size.
type limitedReadCloser struct {
	r     io.Reader
	c     io.Closer
	n     int64
	limit int64
	name  string
}

func (l *limitedReadCloser) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.n > l.limit {
		return n, fmt.Errorf("entry %s read past %d bytes: %w", l.name, l.limit, ErrEntryTooLarge)
	}
	return n, err
}

func (l *limitedReadCloser) Close() error { return l.c.Close() }

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d bytes", n)
}
