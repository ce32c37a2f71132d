package api

import (
	"net/http"
	"strings"

	"github.com/banshee-data/capture.gateway/internal/gateway"
	"github.com/banshee-data/capture.gateway/internal/httputil"
)

type spectrogramRequest struct {
	CaptureID string `json:"capture_id"`
	FFTSize   int    `json:"fft_size"`
	Colormap  string `json:"colormap"`
}

func (s *Server) spectrogramsEnabled(w http.ResponseWriter) bool {
	if s.spectrograms == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "spectrogram jobs are not configured")
		return false
	}
	return true
}

func (s *Server) handleSubmitSpectrogram(w http.ResponseWriter, r *http.Request) {
	if !s.spectrogramsEnabled(w) {
		return
	}
	var req spectrogramRequest
	if err := decodeBody(r, &req); err != nil {
		httputil.BadRequest(w, "invalid JSON body")
		return
	}
	req.CaptureID = strings.TrimSpace(req.CaptureID)
	if req.CaptureID == "" {
		httputil.BadRequest(w, "missing 'capture_id'")
		return
	}
	if req.FFTSize < 0 {
		httputil.BadRequest(w, "'fft_size' must be positive")
		return
	}
	snap, err := s.spectrograms.Submit(r.Context(), req.CaptureID, gateway.SpectrogramRequest{
		FFTSize:  req.FFTSize,
		Colormap: req.Colormap,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, snap)
}

func (s *Server) handleSpectrogramStatus(w http.ResponseWriter, r *http.Request) {
	if !s.spectrogramsEnabled(w) {
		return
	}
	snap, err := s.spectrograms.Status(r.PathValue("capture_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, snap)
}

func (s *Server) handleSpectrogramImage(w http.ResponseWriter, r *http.Request) {
	if !s.spectrogramsEnabled(w) {
		return
	}
	data, err := s.spectrograms.Image(r.PathValue("capture_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteBytes(w, http.DetectContentType(data), data)
}
