package types

import (
	"io"
	"path"
	"strings"
)

// UploadedFile is one caller-supplied upload. The pipeline never persists it.
type UploadedFile struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// Ext returns the lower-cased extension of the declared name without the dot.
func (f UploadedFile) Ext() string {
	return Ext(f.Name)
}

// Ext returns the lower-cased extension of name without the leading dot.
func Ext(name string) string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
}

type EntryKind string

const (
	EntryPrimaryText EntryKind = "primary_text"
	EntryAudio       EntryKind = "audio"
	EntryImage       EntryKind = "image"
	EntryIgnored     EntryKind = "ignored"
)

// ArchiveEntry is a classified archive member. Bytes are read lazily via Open.
type ArchiveEntry struct {
	Path string
	Kind EntryKind
	Size uint64
	Open func() (io.ReadCloser, error)
}

type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaImage MediaKind = "image"
)

// Label is the tag used for the media block in the composite transcript.
func (k MediaKind) Label() string {
	return strings.ToUpper(string(k))
}

// MediaItem is an ArchiveEntry restricted to processable media.
type MediaItem struct {
	Name      string
	Kind      MediaKind
	Extension string
	Size      uint64
	Open      func() (io.ReadCloser, error)
}

// TranscriptionOutcome is Success(Text) when Err == "" and Failure(Err) otherwise.
type TranscriptionOutcome struct {
	Name string    `json:"name"`
	Kind MediaKind `json:"kind"`
	Text string    `json:"text,omitempty"`
	Err  string    `json:"error,omitempty"`
}

func (o TranscriptionOutcome) OK() bool { return o.Err == "" }

// Coverage reports how much of an archive's media made it into the transcript.
type Coverage struct {
	MediaFound       int `json:"media_found"`
	MediaTranscribed int `json:"media_transcribed"`
	MediaFailed      int `json:"media_failed"`
	MediaSkipped     int `json:"media_skipped"`
}

type Route string

const (
	RouteText    Route = "text"
	RouteArchive Route = "archive"
	RouteImage   Route = "image"
)
