package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/capture.gateway/internal/gateway"
	"github.com/banshee-data/capture.gateway/internal/spectrogram"
	"github.com/banshee-data/capture.gateway/internal/viewer"
	"github.com/banshee-data/capture.gateway/internal/waterfall"
)

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"session", viewer.ErrSessionNotFound, http.StatusNotFound},
		{"job", spectrogram.ErrJobNotFound, http.StatusNotFound},
		{"index", fmt.Errorf("%w: 0", viewer.ErrInvalidIndex), http.StatusBadRequest},
		{"rate", waterfall.ErrInvalidRate, http.StatusBadRequest},
		{"geometry", waterfall.ErrInvalidGeometry, http.StatusBadRequest},
		{"not ready", viewer.ErrNotReady, http.StatusConflict},
		{"job running", spectrogram.ErrJobNotComplete, http.StatusConflict},
		{"no samples", waterfall.ErrNoSamples, http.StatusUnprocessableEntity},
		{"waterfall pending", fmt.Errorf("%w (status running)", gateway.ErrWaterfallNotReady), http.StatusConflict},
		{"upstream 404", &gateway.APIError{StatusCode: 404}, http.StatusNotFound},
		{"upstream 401", &gateway.APIError{StatusCode: 401}, http.StatusForbidden},
		{"upstream 403", &gateway.APIError{StatusCode: 403}, http.StatusForbidden},
		{"upstream 500", &gateway.APIError{StatusCode: 500}, http.StatusBadGateway},
		{"upstream 400", &gateway.APIError{StatusCode: 400}, http.StatusBadGateway},
		{"job failed", spectrogram.ErrJobFailed, http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, msg := errorStatus(tt.err)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestWriteErrorBody(t *testing.T) {
	s := &Server{}
	tests := []struct {
		err  error
		code int
		body string
	}{
		{viewer.ErrSessionNotFound, http.StatusNotFound, `{"error":"session not found"}`},
		{waterfall.ErrInvalidRate, http.StatusBadRequest, `{"error":"playback rate must be a positive number"}`},
		{viewer.ErrNotReady, http.StatusConflict, `{"error":"visualization is not ready"}`},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		s.writeError(rec, tt.err)
		assert.Equal(t, tt.code, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, tt.body, rec.Body.String())
	}
}

func TestLoggingMiddlewarePassesThrough(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
