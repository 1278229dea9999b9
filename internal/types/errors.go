package types

import "errors"

type ErrorKind string

const (
	KindUnsupportedFormat         ErrorKind = "unsupported_format"
	KindCorruptArchive            ErrorKind = "corrupt_archive"
	KindNoTranscriptFound         ErrorKind = "no_transcript_found"
	KindTranscriptionFailed       ErrorKind = "transcription_failed"
	KindInsufficientText          ErrorKind = "insufficient_text"
	KindRecognitionError          ErrorKind = "recognition_error"
	KindMalformedAnalysisResponse ErrorKind = "malformed_analysis_response"
)

// IngestError carries a one-line message that is safe to show to end users.
// The underlying cause stays reachable through Unwrap for operators.
type IngestError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *IngestError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

func (e *IngestError) Unwrap() error { return e.Err }

// Is matches any IngestError of the same kind.
func (e *IngestError) Is(target error) bool {
	t, ok := target.(*IngestError)
	return ok && t.Kind == e.Kind
}

var (
	ErrUnsupportedFormat         = &IngestError{Kind: KindUnsupportedFormat}
	ErrCorruptArchive            = &IngestError{Kind: KindCorruptArchive}
	ErrNoTranscriptFound         = &IngestError{Kind: KindNoTranscriptFound}
	ErrTranscriptionFailed       = &IngestError{Kind: KindTranscriptionFailed}
	ErrInsufficientText          = &IngestError{Kind: KindInsufficientText}
	ErrRecognitionError          = &IngestError{Kind: KindRecognitionError}
	ErrMalformedAnalysisResponse = &IngestError{Kind: KindMalformedAnalysisResponse}
)

func NewError(kind ErrorKind, msg string, cause error) *IngestError {
	return &IngestError{Kind: kind, Message: msg, Err: cause}
}

// KindOf returns the kind of the first IngestError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ""
}
