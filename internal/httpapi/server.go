// Package httpapi exposes ingestion, analysis and follow-up chat over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"chat-audit-go/internal/analysis"
	"chat-audit-go/internal/ingest"
	"chat-audit-go/internal/logger"
	"chat-audit-go/internal/processor"
	"chat-audit-go/internal/types"
)

const DefaultMaxUploadBytes int64 = 64 << 20

type Extractor interface {
	Extract(ctx context.Context, file types.UploadedFile) (ingest.Extraction, error)
}

type Processor interface {
	Process(ctx context.Context, file types.UploadedFile) (processor.Result, error)
}

type Chatter interface {
	Chat(ctx context.Context, history []types.ChatMessage, message string) (string, error)
}

type Deps struct {
	Extractor Extractor
	Processor Processor
	Chatter   Chatter
	// MaxUploadBytes caps the request body of upload endpoints.
	MaxUploadBytes int64
}

type Server struct {
	deps Deps
	log  *logger.Logger
}

func New(deps Deps, log *logger.Logger) *Server {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Server{deps: deps, log: log}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.health)
	mux.HandleFunc("POST /extract", s.extract)
	mux.HandleFunc("POST /analyze", s.analyze)
	mux.HandleFunc("POST /chat", s.chat)
	return mux
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.log.WithRequest(r).Debug("health check")
	fmt.Fprint(w, "ok")
}

func (s *Server) extract(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "extract")
	ctx := logger.WithContext(r.Context(), reqLog)

	file, err := s.readUpload(w, r)
	if err != nil {
		reqLog.WithError(err).Warn("bad upload")
		writeUploadError(w, err)
		return
	}
	ex, err := s.deps.Extractor.Extract(ctx, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "analyze")
	ctx := logger.WithContext(r.Context(), reqLog)

	file, err := s.readUpload(w, r)
	if err != nil {
		reqLog.WithError(err).Warn("bad upload")
		writeUploadError(w, err)
		return
	}
	res, err := s.deps.Processor.Process(ctx, file)
	reqLog.WithField("duration_ms", res.DurationMs).Info("processor finished")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type chatRequest struct {
	History []types.ChatMessage `json:"history"`
	Message string              `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "chat")
	ctx := logger.WithContext(r.Context(), reqLog)

	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)).Decode(&req); err != nil {
		writeErrorBody(w, http.StatusBadRequest, "The request body must be JSON with history and message.", "")
		return
	}
	reply, err := s.deps.Chatter.Chat(ctx, req.History, req.Message)
	if err != nil {
		if errors.Is(err, analysis.ErrEmptyMessage) || errors.Is(err, analysis.ErrInvalidRole) {
			writeErrorBody(w, http.StatusBadRequest, err.Error(), "")
			return
		}
		reqLog.WithError(err).Warn("chat failed")
		writeErrorBody(w, http.StatusBadGateway, "The assistant is unavailable right now. Please try again.", "")
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

var errNoFile = errors.New("missing multipart field \"file\"")

// readUpload takes exactly one multipart "file" part into memory.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (types.UploadedFile, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.deps.MaxUploadBytes); err != nil {
		return types.UploadedFile{}, err
	}
	defer r.MultipartForm.RemoveAll()

	f, hdr, err := r.FormFile("file")
	if err != nil {
		return types.UploadedFile{}, errNoFile
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return types.UploadedFile{}, err
	}
	return types.UploadedFile{
		Name:     hdr.Filename,
		MimeType: hdr.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}
