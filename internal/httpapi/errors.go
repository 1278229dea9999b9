package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"chat-audit-go/internal/types"
)

type errorResponse struct {
	Error string          `json:"error"`
	Kind  types.ErrorKind `json:"kind,omitempty"`
}

// StatusFor maps a pipeline error to its HTTP status.
func StatusFor(err error) int {
	switch types.KindOf(err) {
	case types.KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case types.KindCorruptArchive, types.KindNoTranscriptFound, types.KindInsufficientText:
		return http.StatusUnprocessableEntity
	case types.KindRecognitionError, types.KindMalformedAnalysisResponse, types.KindTranscriptionFailed:
		return http.StatusBadGateway
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		// client went away
		return 499
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	kind := types.KindOf(err)
	msg := err.Error()
	if kind == "" {
		msg = "Something went wrong while processing the file. Please try again."
		if status == http.StatusGatewayTimeout {
			msg = "Processing took too long. Please try again with a smaller export."
		}
	}
	writeErrorBody(w, status, msg, kind)
}

func writeUploadError(w http.ResponseWriter, err error) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		writeErrorBody(w, http.StatusRequestEntityTooLarge, "The file is too large.", "")
		return
	}
	writeErrorBody(w, http.StatusBadRequest, "Upload exactly one file in the multipart field \"file\".", "")
}

func writeErrorBody(w http.ResponseWriter, status int, msg string, kind types.ErrorKind) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
