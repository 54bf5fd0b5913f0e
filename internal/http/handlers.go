package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"

	"triage-sim/internal/catalog"
	"triage-sim/internal/core"
	"triage-sim/internal/db"
	"triage-sim/internal/llm"
	"triage-sim/pkg"

	"github.com/rs/zerolog"
)

// maxAudioUpload caps transcription uploads at 20 MB.
const maxAudioUpload = 20 << 20

// bracketedRe matches stage directions like "(sighs)" or "[coughs]" that the
// AI sometimes embeds in the narrative; they are stripped before speech
// synthesis so they are not read aloud.
var bracketedRe = regexp.MustCompile(`\s*[\(\[\{<][^)\]\}>]*[\)\]\}>]\s*`)

// TurnStream yields session ids as their archives are updated.  Satisfied by
// db.Notifier.
type TurnStream interface {
	Listen(ctx context.Context) (<-chan string, error)
}

// Server bundles together the dependencies required by HTTP handlers.  It
// implements http.Handler so it can be passed to http.ListenAndServe.  The
// routes are a 1:1 translation of the engine API.
type Server struct {
	Engine  *core.Engine
	Catalog *catalog.Catalog
	LLM     llm.Client
	Repo    *db.Repository // nil when the archive is disabled
	Stream  TurnStream     // nil when the archive is disabled
	Logger  zerolog.Logger
}

// NewServer constructs a Server.  repo and stream may be nil.
func NewServer(engine *core.Engine, cat *catalog.Catalog, llmClient llm.Client, repo *db.Repository, stream TurnStream, logger zerolog.Logger) *Server {
	return &Server{
		Engine:  engine,
		Catalog: cat,
		LLM:     llmClient,
		Repo:    repo,
		Stream:  stream,
		Logger:  logger,
	}
}

// ServeHTTP dispatches incoming requests based on the URL path.  Minimal
// routing logic is implemented here to keep dependencies light.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	// List available cases: GET /api/cases
	case path == "/api/cases" && r.Method == http.MethodGet:
		s.handleListCases(w, r)
	// Start a session: POST /api/sessions
	case path == "/api/sessions" && r.Method == http.MethodPost:
		s.handleStartSession(w, r)
	// Advance a session: POST /api/sessions/{id}/turns
	case strings.HasPrefix(path, "/api/sessions/") && strings.HasSuffix(path, "/turns") && r.Method == http.MethodPost:
		if id, ok := sessionIDFromPath(path); ok {
			s.handleTurn(w, r, id)
			return
		}
		http.NotFound(w, r)
	// Transcribe a spoken question: POST /api/sessions/{id}/transcriptions
	case strings.HasPrefix(path, "/api/sessions/") && strings.HasSuffix(path, "/transcriptions") && r.Method == http.MethodPost:
		if id, ok := sessionIDFromPath(path); ok {
			s.handleTranscribe(w, r, id)
			return
		}
		http.NotFound(w, r)
	// Synthesize patient speech: POST /api/speech
	case path == "/api/speech" && r.Method == http.MethodPost:
		s.handleSpeech(w, r)
	// Instructor archive: GET /api/instructor/sessions[/{id}[/stream]]
	case path == "/api/instructor/sessions" && r.Method == http.MethodGet:
		s.handleInstructorSessions(w, r)
	case strings.HasPrefix(path, "/api/instructor/sessions/") && r.Method == http.MethodGet:
		parts := strings.Split(path, "/")
		switch {
		case len(parts) == 6 && parts[4] != "" && parts[5] == "stream":
			s.handleInstructorStream(w, r, parts[4])
		case len(parts) == 5 && parts[4] != "":
			s.handleInstructorSession(w, r, parts[4])
		default:
			http.NotFound(w, r)
		}
	default:
		http.NotFound(w, r)
	}
}

// sessionIDFromPath extracts {id} from /api/sessions/{id}/<leaf>.
func sessionIDFromPath(path string) (string, bool) {
	parts := strings.Split(path, "/")
	if len(parts) != 5 || parts[3] == "" {
		return "", false
	}
	return parts[3], true
}

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Catalog.List())
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req pkg.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CaseID == "" {
		writeError(w, http.StatusBadRequest, "no case ID provided")
		return
	}
	result, err := s.Engine.Start(r.Context(), req.CaseID)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrCaseNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			s.Logger.Error().Err(err).Str("case_id", req.CaseID).Msg("start session")
			writeError(w, http.StatusInternalServerError, "server error starting session")
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request, sessionID string) {
	var req pkg.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "empty message")
		return
	}
	result, err := s.Engine.Advance(r.Context(), sessionID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, "invalid or expired session ID")
		case errors.Is(err, core.ErrTurnFailed):
			s.Logger.Error().Err(err).Str("session_id", sessionID).Msg("turn failed")
			writeError(w, http.StatusBadGateway, "an error occurred during the conversation turn")
		default:
			s.Logger.Error().Err(err).Str("session_id", sessionID).Msg("turn error")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request, sessionID string) {
	if !s.Engine.SessionExists(sessionID) {
		writeError(w, http.StatusNotFound, "invalid or expired session ID")
		return
	}
	if err := r.ParseMultipartForm(maxAudioUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no audio file uploaded")
		return
	}
	defer file.Close()

	transcript, err := s.LLM.Transcribe(r.Context(), file, header.Filename)
	if err != nil {
		s.Logger.Error().Err(err).Str("session_id", sessionID).Msg("transcription failed")
		writeError(w, http.StatusInternalServerError, "error during transcription")
		return
	}
	writeJSON(w, http.StatusOK, pkg.TranscriptResponse{Transcript: strings.TrimSpace(transcript)})
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	var req pkg.SpeechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	text := strings.TrimSpace(bracketedRe.ReplaceAllString(req.Text, " "))
	if text == "" {
		writeError(w, http.StatusBadRequest, "no text provided")
		return
	}
	audio, err := s.LLM.Speak(r.Context(), text)
	if err != nil {
		s.Logger.Error().Err(err).Msg("speech synthesis failed")
		writeError(w, http.StatusInternalServerError, "speech synthesis failed")
		return
	}
	writeJSON(w, http.StatusOK, pkg.SpeechResponse{
		AudioBase64: base64.StdEncoding.EncodeToString(audio),
		MimeType:    "audio/mpeg",
	})
}

func (s *Server) handleInstructorSessions(w http.ResponseWriter, r *http.Request) {
	if s.Repo == nil {
		writeError(w, http.StatusServiceUnavailable, "archive not configured")
		return
	}
	previews, err := s.Repo.ListRecentSessions(r.Context(), 50)
	if err != nil {
		s.Logger.Error().Err(err).Msg("list archived sessions")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, previews)
}

func (s *Server) handleInstructorSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	if s.Repo == nil {
		writeError(w, http.StatusServiceUnavailable, "archive not configured")
		return
	}
	turns, err := s.Repo.GetSessionTurns(r.Context(), sessionID)
	if err != nil {
		s.Logger.Error().Err(err).Str("session_id", sessionID).Msg("load archived turns")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"turns":      turns,
	})
}

// handleInstructorStream streams turn-update events for one session using
// SSE.  Each NOTIFY on the archive channel whose payload matches the session
// becomes one event; the connection stays open until the client disconnects.
func (s *Server) handleInstructorStream(w http.ResponseWriter, r *http.Request, sessionID string) {
	if s.Stream == nil {
		writeError(w, http.StatusServiceUnavailable, "archive not configured")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	updates, err := s.Stream.Listen(r.Context())
	if err != nil {
		s.Logger.Error().Err(err).Str("session_id", sessionID).Msg("open turn stream")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	for id := range updates {
		if id != sessionID {
			continue
		}
		payload, err := json.Marshal(map[string]string{
			"type":       "turn_update",
			"session_id": id,
		})
		if err != nil {
			continue
		}
		if _, err := io.WriteString(w, "data: "+string(payload)+"\n\n"); err != nil {
			return
		}
		flusher.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
