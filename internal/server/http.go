package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harshraj32/test-app-wispr-flow/internal/audio"
	"github.com/harshraj32/test-app-wispr-flow/internal/catalog"
	"github.com/harshraj32/test-app-wispr-flow/internal/metrics"
	"github.com/harshraj32/test-app-wispr-flow/internal/protocol"
	"github.com/harshraj32/test-app-wispr-flow/internal/router"
	"github.com/harshraj32/test-app-wispr-flow/internal/sequencer"
)

// Catalog lists and resolves audio files
type Catalog interface {
	List() (catalog.Listing, error)
	Resolve(name string) (string, error)
}

// Player is the routed player
type Player interface {
	Play(name string) (router.Result, error)
	Stop() bool
	Status() router.Status
}

// HTTPServer serves the page, the audio files and the JSON API
type HTTPServer struct {
	server    *http.Server
	handler   http.Handler
	logger    *slog.Logger
	catalog   Catalog
	player    Player
	sequencer *sequencer.Sequencer
	hub       *Hub
	page      http.Handler
	metrics   *metrics.Metrics

	startTime time.Time
}

// HTTPServerConfig contains HTTP server configuration
type HTTPServerConfig struct {
	Port    int
	Address string
}

// NewHTTPServer creates the HTTP server. page serves / and /static/.
func NewHTTPServer(cfg HTTPServerConfig, logger *slog.Logger, cat Catalog, player Player,
	seq *sequencer.Sequencer, hub *Hub, page http.Handler, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		catalog:   cat,
		player:    player,
		sequencer: seq,
		hub:       hub,
		page:      page,
		metrics:   m,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)
	h.handler = mux

	// No WriteTimeout: audio responses stream for the length of the file
	h.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Page
	mux.HandleFunc("GET /{$}", h.withMetrics("/", h.page.ServeHTTP))
	mux.HandleFunc("GET /static/{asset}", h.withMetrics("/static/{asset}", h.page.ServeHTTP))

	// Catalog and audio files
	mux.HandleFunc("GET /api/audio-files", h.withMetrics("/api/audio-files", h.handleAudioFiles))
	mux.HandleFunc("GET /audio/{filename}", h.withMetrics("/audio/{filename}", h.handleAudio))

	// Routed playback
	mux.HandleFunc("GET /play-to-mic/{filename}", h.withMetrics("/play-to-mic/{filename}", h.handlePlayToMic))
	mux.HandleFunc("GET /stop-audio", h.withMetrics("/stop-audio", h.handleStopAudio))

	// Sequencer
	mux.HandleFunc("GET /api/sequencer", h.withMetrics("/api/sequencer", h.handleSnapshot))
	mux.HandleFunc("POST /api/sequencer/load", h.withMetrics("/api/sequencer/load", h.handleLoad))
	mux.HandleFunc("POST /api/sequencer/play/{index}", h.withMetrics("/api/sequencer/play/{index}", h.handlePlay))
	mux.HandleFunc("POST /api/sequencer/play-all", h.withMetrics("/api/sequencer/play-all", h.handlePlayAll))
	mux.HandleFunc("POST /api/sequencer/ended/{index}", h.withMetrics("/api/sequencer/ended/{index}", h.handleEnded))
	mux.HandleFunc("POST /api/sequencer/pause", h.withMetrics("/api/sequencer/pause", h.handlePause))
	mux.HandleFunc("POST /api/sequencer/stop", h.withMetrics("/api/sequencer/stop", h.handleStop))
	mux.HandleFunc("POST /api/sequencer/mode", h.withMetrics("/api/sequencer/mode", h.handleMode))

	// Push channel (no metrics wrapper, the connection is hijacked)
	mux.Handle("GET /ws", h.hub)

	// Health check endpoint
	mux.HandleFunc("GET /health", h.withMetrics("/health", h.handleHealth))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Create a response writer wrapper to capture status code
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := strconv.Itoa(ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Handler returns the routed handler
func (h *HTTPServer) Handler() http.Handler {
	return h.handler
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP server...")

	return h.server.Shutdown(ctx)
}

func (h *HTTPServer) handleAudioFiles(w http.ResponseWriter, r *http.Request) {
	listing, err := h.catalog.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Unable to read audio directory")
		return
	}

	writeJSON(w, http.StatusOK, protocol.FilesResponse{
		Files:   listing.Files,
		Message: listing.Message,
	})
}

func (h *HTTPServer) handleAudio(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")

	path, err := h.catalog.Resolve(name)
	if err != nil {
		http.Error(w, "Audio file not found", http.StatusNotFound)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		http.Error(w, "Audio file not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "Audio file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", audio.ContentType(name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (h *HTTPServer) handlePlayToMic(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")

	result, err := h.player.Play(name)
	if err != nil {
		h.writePlayError(w, name, err)
		return
	}

	writeJSON(w, http.StatusOK, protocol.PlayResponse{
		Status:     result.Status,
		File:       result.File,
		KeyToggled: result.KeyToggled,
	})
}

func (h *HTTPServer) handleStopAudio(w http.ResponseWriter, r *http.Request) {
	status := protocol.StatusNoActivePlayback
	if h.player.Stop() {
		status = protocol.StatusStopped
	}

	writeJSON(w, http.StatusOK, protocol.StopResponse{Status: status})
}

func (h *HTTPServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.NewSnapshotView(h.sequencer.Snapshot()))
}

func (h *HTTPServer) handleLoad(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.sequencer.LoadCatalog()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Unable to read audio directory")
		return
	}

	writeJSON(w, http.StatusOK, protocol.NewSnapshotView(snapshot))
}

func (h *HTTPServer) handlePlay(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid index")
		return
	}

	all := r.URL.Query().Get("all") == "1"

	snapshot, err := h.sequencer.PlayFrom(index, all)
	if err != nil {
		h.writeSequencerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, protocol.NewSnapshotView(snapshot))
}

func (h *HTTPServer) handlePlayAll(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.sequencer.PlayAll()
	if err != nil {
		h.writeSequencerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, protocol.NewSnapshotView(snapshot))
}

func (h *HTTPServer) handleEnded(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid index")
		return
	}

	writeJSON(w, http.StatusOK, protocol.NewSnapshotView(h.sequencer.Ended(index)))
}

func (h *HTTPServer) handlePause(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.NewSnapshotView(h.sequencer.Pause()))
}

func (h *HTTPServer) handleStop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.NewSnapshotView(h.sequencer.Stop()))
}

func (h *HTTPServer) handleMode(w http.ResponseWriter, r *http.Request) {
	routed, err := protocol.ParseModeRequest(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, protocol.NewSnapshotView(h.sequencer.SetMode(routed)))
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := h.sequencer.Snapshot()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"components": map[string]interface{}{
			"player": h.player.Status(),
			"sequencer": map[string]interface{}{
				"state":  snapshot.State,
				"index":  snapshot.Index,
				"routed": snapshot.Routed,
				"items":  len(snapshot.Items),
			},
			"websocket": map[string]interface{}{
				"clients": h.hub.Clients(),
			},
		},
	}

	writeJSON(w, http.StatusOK, health)
}

func (h *HTTPServer) writePlayError(w http.ResponseWriter, name string, err error) {
	switch {
	case errors.Is(err, router.ErrFileNotFound):
		writeError(w, http.StatusNotFound, "Audio file not found")
	default:
		h.logger.Error("Routed playback failed",
			slog.String("file", name),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "Failed to play audio")
	}
}

func (h *HTTPServer) writeSequencerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sequencer.ErrIndexOutOfRange):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, sequencer.ErrEmptyCatalog):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, router.ErrFileNotFound):
		writeError(w, http.StatusNotFound, "Audio file not found")
	default:
		h.logger.Error("Sequencer request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Failed to play audio")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, protocol.ErrorResponse{Error: message})
}
