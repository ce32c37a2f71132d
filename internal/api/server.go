// Package api exposes waterfall sessions, exports and spectrogram jobs over
// HTTP, plus a gRPC health service.
package api

import (
	"context"
	"embed"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/capture.gateway/internal/db"
	"github.com/banshee-data/capture.gateway/internal/gateway"
	"github.com/banshee-data/capture.gateway/internal/httputil"
	"github.com/banshee-data/capture.gateway/internal/monitoring"
	"github.com/banshee-data/capture.gateway/internal/spectrogram"
	"github.com/banshee-data/capture.gateway/internal/version"
	"github.com/banshee-data/capture.gateway/internal/viewer"
	"github.com/banshee-data/capture.gateway/internal/waterfall"
)

//go:embed static/index.html
var staticFS embed.FS

var logf = monitoring.Tagged("API")

// ExportLister lists recorded exports.
type ExportLister interface {
	ListExports(captureID string, limit int) ([]db.ExportRecord, error)
}

// Config wires the server's collaborators. Exporter, Exports and
// Spectrograms are optional; their endpoints answer 503 when unset.
type Config struct {
	Address      string
	Sessions     *viewer.Manager
	Exporter     *viewer.Exporter
	Exports      ExportLister
	Spectrograms *spectrogram.Runner
}

// Server is the HTTP front end.
type Server struct {
	address      string
	sessions     *viewer.Manager
	exporter     *viewer.Exporter
	exports      ExportLister
	spectrograms *spectrogram.Runner
	server       *http.Server
	started      time.Time
}

// NewServer creates a server from config.
func NewServer(config Config) *Server {
	s := &Server{
		address:      config.Address,
		sessions:     config.Sessions,
		exporter:     config.Exporter,
		exports:      config.Exports,
		spectrograms: config.Spectrograms,
		started:      time.Now(),
	}
	s.server = &http.Server{
		Addr:              s.address,
		Handler:           LoggingMiddleware(s.setupRoutes()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler without logging, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logf("starting HTTP server on %s", s.address)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		logf("HTTP server shutdown error: %v", err)
		if err := s.server.Close(); err != nil {
			logf("HTTP server force close error: %v", err)
		}
	}
	logf("HTTP server stopped")
	return nil
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleIndex)

	mux.HandleFunc("POST /api/waterfall/sessions", s.handleOpenSession)
	mux.HandleFunc("GET /api/waterfall/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/waterfall/sessions/{id}", s.withSession(s.handleSessionState))
	mux.HandleFunc("DELETE /api/waterfall/sessions/{id}", s.handleCloseSession)
	mux.HandleFunc("GET /api/waterfall/sessions/{id}/frame.png", s.withSession(s.handleFrame))
	mux.HandleFunc("POST /api/waterfall/sessions/{id}/click", s.withSession(s.handleClick))
	mux.HandleFunc("GET /api/waterfall/sessions/{id}/hover", s.withSession(s.handleHover))
	mux.HandleFunc("POST /api/waterfall/sessions/{id}/key", s.withSession(s.handleKey))
	mux.HandleFunc("POST /api/waterfall/sessions/{id}/index", s.withSession(s.handleIndexInput))
	mux.HandleFunc("POST /api/waterfall/sessions/{id}/select", s.withSession(s.handleSelect))
	mux.HandleFunc("POST /api/waterfall/sessions/{id}/increment", s.withSession(s.handleIncrement))
	mux.HandleFunc("POST /api/waterfall/sessions/{id}/decrement", s.withSession(s.handleDecrement))
	mux.HandleFunc("POST /api/waterfall/sessions/{id}/scroll", s.withSession(s.handleScroll))
	mux.HandleFunc("POST /api/waterfall/sessions/{id}/play", s.withSession(s.handlePlay))
	mux.HandleFunc("POST /api/waterfall/sessions/{id}/pause", s.withSession(s.handlePause))
	mux.HandleFunc("POST /api/waterfall/sessions/{id}/toggle", s.withSession(s.handleToggle))
	mux.HandleFunc("POST /api/waterfall/sessions/{id}/rate", s.withSession(s.handleRate))
	mux.HandleFunc("POST /api/waterfall/sessions/{id}/palette", s.withSession(s.handlePalette))
	mux.HandleFunc("POST /api/waterfall/sessions/{id}/resize", s.withSession(s.handleResize))
	mux.HandleFunc("POST /api/waterfall/sessions/{id}/save", s.withSession(s.handleSave))
	mux.HandleFunc("GET /api/waterfall/sessions/{id}/stats", s.withSession(s.handleStats))
	mux.HandleFunc("GET /api/waterfall/sessions/{id}/slice.png", s.withSession(s.handleSlicePNG))
	mux.HandleFunc("GET /api/waterfall/sessions/{id}/slice.html", s.withSession(s.handleSliceHTML))
	mux.HandleFunc("GET /api/waterfall/exports", s.handleListExports)

	mux.HandleFunc("POST /api/spectrogram", s.handleSubmitSpectrogram)
	mux.HandleFunc("GET /api/spectrogram/{capture_id}", s.handleSpectrogramStatus)
	mux.HandleFunc("GET /api/spectrogram/{capture_id}/image", s.handleSpectrogramImage)

	return mux
}

// writeError answers err with the matching status and a readable message.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, msg := errorStatus(err)
	switch {
	case status == http.StatusNotFound:
		httputil.NotFound(w, msg)
	case status == http.StatusBadRequest:
		httputil.BadRequest(w, msg)
	default:
		if status >= 500 {
			logf("request failed: %v", err)
		}
		httputil.WriteJSONError(w, status, msg)
	}
}

func errorStatus(err error) (int, string) {
	var apiErr *gateway.APIError
	switch {
	case errors.Is(err, viewer.ErrSessionNotFound), errors.Is(err, spectrogram.ErrJobNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, viewer.ErrInvalidIndex),
		errors.Is(err, waterfall.ErrInvalidRate),
		errors.Is(err, waterfall.ErrInvalidGeometry):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, viewer.ErrNotReady), errors.Is(err, spectrogram.ErrJobNotComplete):
		return http.StatusConflict, err.Error()
	case errors.Is(err, waterfall.ErrNoSamples):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, gateway.ErrWaterfallNotReady):
		return http.StatusConflict, gateway.UserMessage(err)
	case errors.As(err, &apiErr):
		switch apiErr.StatusCode {
		case http.StatusNotFound:
			return http.StatusNotFound, gateway.UserMessage(err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return http.StatusForbidden, gateway.UserMessage(err)
		}
		return http.StatusBadGateway, gateway.UserMessage(err)
	case errors.Is(err, spectrogram.ErrJobFailed):
		return http.StatusBadGateway, err.Error()
	}
	return http.StatusInternalServerError, err.Error()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":   "ok",
		"version":  version.Version,
		"git_sha":  version.GitSHA,
		"sessions": s.sessions.Len(),
		"uptime_s": int(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		httputil.InternalServerError(w, "index page missing")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

// queryInt parses an integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, errors.New("missing '" + name + "' parameter")
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("invalid '" + name + "' parameter")
	}
	return v, nil
}
