// Package httpapi exposes the upload front-end: a multipart POST that runs
// one recording through the transcript pipeline.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/ovozlabs/ovozd/internal/recognizer"
	"github.com/ovozlabs/ovozd/internal/transcriptstore"
)

// allowedTypes maps acceptable upload content types to the extension hint the
// pipeline stages the raw bytes under.
var allowedTypes = map[string]string{
	"video/ogg":   ".ogg",
	"audio/ogg":   ".ogg",
	"audio/mpeg":  ".mp3",
	"audio/wav":   ".wav",
	"audio/x-wav": ".wav",
}

// Transcriber runs one recording through the pipeline.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, ext string, lang recognizer.Language) recognizer.Result
}

// Recorder persists successful transcriptions.
type Recorder interface {
	Save(ctx context.Context, rec transcriptstore.Record) error
}

// Server handles the /recognize/ upload endpoint.
type Server struct {
	transcriber Transcriber
	recorder    Recorder
	log         *slog.Logger
	maxBytes    int64
}

// New builds the upload front-end. recorder may be nil when persistence is
// not configured.
func New(t Transcriber, recorder Recorder, maxBytes int64, log *slog.Logger) *Server {
	return &Server{transcriber: t, recorder: recorder, log: log, maxBytes: maxBytes}
}

// Register mounts the front-end's routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/recognize/", s.handleRecognize)
}

type recognizeResponse struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleRecognize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Detail: "method not allowed"})
		return
	}

	// The cap bounds transcoder latency and scratch space; a little slack
	// covers the multipart framing around the audio part.
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes+64*1024)
	if err := r.ParseMultipartForm(s.maxBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Fayl hajmi juda katta."})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "file field is required"})
		return
	}
	defer file.Close()

	// The body cap above leaves slack for multipart framing, so the audio
	// part itself still needs the exact check.
	if header.Size > s.maxBytes {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Fayl hajmi juda katta."})
		return
	}

	ext, ok := allowedTypes[header.Header.Get("Content-Type")]
	if !ok {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{Detail: "shu formatdagi audio qabul qilinadi: ogg, mp3, wav"})
		return
	}

	lang, err := recognizer.ParseLocale(r.FormValue("language"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: err.Error()})
		return
	}

	audio, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Fayl hajmi juda katta."})
		return
	}

	res := s.transcriber.Transcribe(r.Context(), audio, ext, lang)
	switch res.Status {
	case recognizer.StatusOK:
		s.persist(r.Context(), lang, res.Text)
		writeJSON(w, http.StatusOK, recognizeResponse{Language: lang.Locale(), Text: res.Text})
	case recognizer.StatusUnrecognized:
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Audio tanib bo'lmadi."})
	case recognizer.StatusBackendUnavailable:
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{Detail: "speech backend unavailable: " + res.Detail})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: res.Detail})
	}
}

// persist is best-effort: a store failure is logged, never surfaced.
func (s *Server) persist(ctx context.Context, lang recognizer.Language, text string) {
	if s.recorder == nil {
		return
	}
	err := s.recorder.Save(ctx, transcriptstore.Record{
		Language: lang.Locale(),
		Text:     text,
	})
	if err != nil {
		s.log.Error("failed to persist transcription", slog.String("error", err.Error()))
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
