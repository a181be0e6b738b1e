// Package server exposes the dialogue pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/normanking/lucyd/internal/bus"
	"github.com/normanking/lucyd/internal/config"
	"github.com/normanking/lucyd/internal/llm"
	"github.com/normanking/lucyd/internal/metrics"
	"github.com/normanking/lucyd/internal/stt"
	"github.com/normanking/lucyd/internal/turn"
)

// Version is the reported service version.
const Version = "1.0.0"

// maxUploadBytes bounds multipart request bodies; the input processor
// enforces the tighter audio limit afterwards.
const maxUploadBytes = 12 << 20

// Server represents the HTTP server
type Server struct {
	cfg        *config.Config
	orch       *turn.Orchestrator
	events     *bus.EventBus
	audioDir   string
	httpServer *http.Server
	upgrader   websocket.Upgrader
	startTime  time.Time
	logger     zerolog.Logger
}

// ChatRequest is the POST /chat request body
type ChatRequest struct {
	UserID      string  `json:"user_id"`
	Text        string  `json:"text"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// WakePhraseRequest is the POST/DELETE /wake/phrases request body
type WakePhraseRequest struct {
	Phrase string `json:"phrase"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string      `json:"status"`
	Version   string      `json:"version"`
	Uptime    string      `json:"uptime"`
	Engines   turn.Status `json:"engines"`
	Timestamp string      `json:"timestamp"`
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error    string `json:"error"`
	Category string `json:"category"`
}

// New creates a new HTTP server
func New(cfg *config.Config, orch *turn.Orchestrator, events *bus.EventBus, audioDir string, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		orch:     orch,
		events:   events,
		audioDir: audioDir,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API serves local frontends; origin checks are left to
			// a fronting proxy in other deployments.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		startTime: time.Now(),
		logger:    logger.With().Str("component", "server").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.rootHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/chat", s.chatHandler)
	mux.HandleFunc("/speech", s.speechHandler)
	mux.HandleFunc("/wake", s.wakeHandler)
	mux.HandleFunc("/wake/phrases", s.wakePhrasesHandler)
	mux.HandleFunc("/conversation/", s.conversationHandler)
	mux.HandleFunc("/ws/events", s.wsEventsHandler)
	mux.Handle("/audio/", http.StripPrefix("/audio/", http.FileServer(http.Dir(audioDir))))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.instrument(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the instrumented root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server starting")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument tags each request with an ID and records access metrics.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		endpoint := routePattern(r.URL.Path)
		metrics.RequestCount.WithLabelValues(r.Method, endpoint, fmt.Sprintf("%d", rec.status)).Inc()
		metrics.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(elapsed.Seconds())

		s.logger.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", elapsed).
			Msg("Request handled")
	})
}

// routePattern collapses per-user and per-file paths so metrics stay
// low-cardinality.
func routePattern(path string) string {
	switch {
	case strings.HasPrefix(path, "/conversation/"):
		return "/conversation/{user}"
	case strings.HasPrefix(path, "/audio/"):
		return "/audio/{file}"
	default:
		return path
	}
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "lucyd",
		"version": Version,
		"status":  "running",
	})
}

// healthHandler handles health check requests
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	engines := s.orch.Status(r.Context())
	status := "healthy"
	if !engines.LLM {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Version:   Version,
		Uptime:    time.Since(s.startTime).String(),
		Engines:   engines,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// chatHandler runs one text dialogue turn
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON", Category: turn.CategoryInput.String()})
		return
	}
	if req.UserID == "" {
		req.UserID = "default"
	}

	resp, err := s.orch.Text(r.Context(), turn.TextRequest{
		UserID:      req.UserID,
		Text:        req.Text,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// speechHandler runs one spoken dialogue turn from an uploaded file
func (s *Server) speechHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, ok := s.readSpeechUpload(w, r)
	if !ok {
		return
	}

	resp, err := s.orch.Speech(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// wakeHandler checks an uploaded audio snippet for a wake phrase
func (s *Server) wakeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, ok := s.readSpeechUpload(w, r)
	if !ok {
		return
	}

	result, err := s.orch.Wake(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// readSpeechUpload parses a multipart upload with an "audio" file part
// and optional "user_id" and "language" fields.
func (s *Server) readSpeechUpload(w http.ResponseWriter, r *http.Request) (turn.SpeechRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid multipart form", Category: turn.CategoryInput.String()})
		return turn.SpeechRequest{}, false
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "audio file required", Category: turn.CategoryInput.String()})
		return turn.SpeechRequest{}, false
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "could not read audio", Category: turn.CategoryInput.String()})
		return turn.SpeechRequest{}, false
	}

	userID := r.FormValue("user_id")
	if userID == "" {
		userID = "default"
	}

	return turn.SpeechRequest{
		UserID:   userID,
		Audio:    audio,
		Filename: header.Filename,
		Language: r.FormValue("language"),
	}, true
}

// wakePhrasesHandler manages the wake phrase list
func (s *Server) wakePhrasesHandler(w http.ResponseWriter, r *http.Request) {
	detector := s.orch.WakePhrases()

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string][]string{"phrases": detector.Phrases()})

	case http.MethodPost, http.MethodDelete:
		phrase, ok := readPhrase(w, r)
		if !ok {
			return
		}
		if r.Method == http.MethodPost {
			detector.Add(phrase)
		} else {
			detector.Remove(phrase)
		}
		writeJSON(w, http.StatusOK, map[string][]string{"phrases": detector.Phrases()})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func readPhrase(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req WakePhraseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Phrase) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "phrase required", Category: turn.CategoryInput.String()})
		return "", false
	}
	return req.Phrase, true
}

// conversationHandler serves and clears per-user history
func (s *Server) conversationHandler(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimPrefix(r.URL.Path, "/conversation/")
	if userID == "" || strings.Contains(userID, "/") {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.orch.History(userID))

	case http.MethodDelete:
		s.orch.ClearHistory(userID)
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared", "user_id": userID})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// wsEventsHandler streams pipeline events over a websocket
func (s *Server) wsEventsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	// Buffered so a slow client drops events instead of blocking the bus.
	eventCh := make(chan bus.Event, 64)
	unsubscribe := s.events.SubscribeMultiple(bus.AllEventTypes, func(e bus.Event) {
		select {
		case eventCh <- e:
		default:
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		unsubscribe()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case event := <-eventCh:
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}

// writeError maps a turn failure to an HTTP status by category.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	category := turn.Categorize(err)

	var status int
	switch category {
	case turn.CategoryInput:
		status = http.StatusBadRequest
	case turn.CategoryCollaborator:
		status = http.StatusBadGateway
		if isTimeout(err) {
			status = http.StatusGatewayTimeout
		}
	case turn.CategoryUnavailable:
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}

	if status >= 500 {
		s.logger.Error().Err(err).Str("category", category.String()).Msg("Turn failed")
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Category: category.String()})
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, llm.ErrTimeout) ||
		errors.Is(err, stt.ErrTimeout)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
