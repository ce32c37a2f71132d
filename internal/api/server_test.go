package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/capture.gateway/internal/db"
	"github.com/banshee-data/capture.gateway/internal/fsutil"
	"github.com/banshee-data/capture.gateway/internal/gateway"
	"github.com/banshee-data/capture.gateway/internal/testutil"
	"github.com/banshee-data/capture.gateway/internal/timeutil"
	"github.com/banshee-data/capture.gateway/internal/viewer"
)

// fakeFetcher serves canned waterfalls keyed by capture ID.
type fakeFetcher struct {
	waterfalls map[string][]gateway.WaterfallEntry
	errs       map[string]error
}

func (f *fakeFetcher) FetchWaterfall(ctx context.Context, captureID string) ([]gateway.WaterfallEntry, error) {
	if err, ok := f.errs[captureID]; ok {
		return nil, err
	}
	entries, ok := f.waterfalls[captureID]
	if !ok {
		return nil, &gateway.APIError{StatusCode: http.StatusNotFound}
	}
	return entries, nil
}

func rampEntries(n int) []gateway.WaterfallEntry {
	raw := testutil.RampWaterfall(n, 16, -100)
	out := make([]gateway.WaterfallEntry, len(raw))
	for i, e := range raw {
		out[i] = gateway.WaterfallEntry{Data: e.Data, SampleRate: e.SampleRate}
	}
	return out
}

type testEnv struct {
	handler http.Handler
	manager *viewer.Manager
	fs      *fsutil.MemoryFileSystem
	db      *db.DB
	clock   *timeutil.MockClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	fetcher := &fakeFetcher{
		waterfalls: map[string][]gateway.WaterfallEntry{
			"cap-1":   rampEntries(250),
			"small":   rampEntries(5),
			"no-data": {},
		},
		errs: map[string]error{
			"pending":   gateway.ErrWaterfallNotReady,
			"forbidden": &gateway.APIError{StatusCode: http.StatusForbidden},
			"broken":    &gateway.APIError{StatusCode: http.StatusBadGateway},
		},
	}
	opts := viewer.DefaultOptions()
	opts.Clock = clock
	manager := viewer.NewManager(fetcher, opts)
	t.Cleanup(manager.CloseAll)

	database := cloneAPITestDB(t)
	memFS := fsutil.NewMemoryFileSystem()
	server := NewServer(Config{
		Sessions: manager,
		Exporter: viewer.NewExporter(memFS, "exports", database, clock),
		Exports:  database,
	})
	return &testEnv{handler: server.Handler(), manager: manager, fs: memFS, db: database, clock: clock}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) open(t *testing.T, captureID string) viewer.Snapshot {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/waterfall/sessions", map[string]string{"capture_id": captureID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var snap viewer.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.NotEmpty(t, snap.SessionID)
	return snap
}

func decodeAction(t *testing.T, rec *httptest.ResponseRecorder) actionResponse {
	t.Helper()
	var resp actionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body["error"]
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	env.open(t, "small")

	rec := env.do(t, http.MethodGet, "/health", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["sessions"])
}

func TestIndexPage(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "/api/waterfall/sessions")

	rec = env.do(t, http.MethodGet, "/nope", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestOpenSession(t *testing.T) {
	env := newTestEnv(t)
	snap := env.open(t, "cap-1")

	assert.Equal(t, "cap-1", snap.CaptureID)
	assert.Equal(t, viewer.StateReady, snap.Status)
	assert.Equal(t, 250, snap.TotalSlices)
	assert.Equal(t, 0, snap.SelectedIndex)
	assert.Equal(t, 0, snap.WindowStart)
	assert.True(t, snap.CanScrollUp)
	assert.False(t, snap.CanScrollDown)

	rec := env.do(t, http.MethodGet, "/api/waterfall/sessions/"+snap.SessionID, nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	rec = env.do(t, http.MethodGet, "/api/waterfall/sessions", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var list []viewer.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, snap.SessionID, list[0].SessionID)
}

func TestOpenSessionErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantMsg    string
	}{
		{"missing capture", map[string]string{}, http.StatusBadRequest, "missing 'capture_id'"},
		{"unknown field", map[string]string{"capture": "x"}, http.StatusBadRequest, "invalid JSON body"},
		{"not found", map[string]string{"capture_id": "ghost"}, http.StatusNotFound, "Capture not found or you do not have permission to view it."},
		{"forbidden", map[string]string{"capture_id": "forbidden"}, http.StatusForbidden, "You do not have permission to view this capture."},
		{"not ready", map[string]string{"capture_id": "pending"}, http.StatusConflict, ""},
		{"upstream failure", map[string]string{"capture_id": "broken"}, http.StatusBadGateway, "The gateway had a server error. Please try again later."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/waterfall/sessions", tt.body)
			testutil.AssertStatusCode(t, rec.Code, tt.wantStatus)
			msg := errorMessage(t, rec)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, msg)
			} else {
				assert.NotEmpty(t, msg)
			}
		})
	}
	assert.Equal(t, 0, env.manager.Len())
}

func TestUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{
		"/api/waterfall/sessions/nope",
		"/api/waterfall/sessions/nope/frame.png",
		"/api/waterfall/sessions/nope/stats",
	} {
		rec := env.do(t, http.MethodGet, path, nil)
		testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
	}
	rec := env.do(t, http.MethodDelete, "/api/waterfall/sessions/nope", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestCloseSession(t *testing.T) {
	env := newTestEnv(t)
	snap := env.open(t, "small")

	rec := env.do(t, http.MethodDelete, "/api/waterfall/sessions/"+snap.SessionID, nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusNoContent)
	assert.Equal(t, 0, env.manager.Len())

	rec = env.do(t, http.MethodGet, "/api/waterfall/sessions/"+snap.SessionID, nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestFramePNG(t *testing.T) {
	env := newTestEnv(t)
	snap := env.open(t, "cap-1")

	rec := env.do(t, http.MethodGet, "/api/waterfall/sessions/"+snap.SessionID+"/frame.png", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

func TestClickAndHover(t *testing.T) {
	env := newTestEnv(t)
	snap := env.open(t, "cap-1")
	base := "/api/waterfall/sessions/" + snap.SessionID

	// Rows are 4px tall on the default 400px canvas; y=0 is the top row.
	rec := env.do(t, http.MethodGet, base+"/hover?y=0", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var info viewer.HoverInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, viewer.HoverInfo{Slice: 99, Valid: true, Cursor: viewer.CursorPointer}, info)

	rec = env.do(t, http.MethodGet, base+"/hover?y=abc", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)

	rec = env.do(t, http.MethodPost, base+"/click", map[string]int{"y": 396})
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	resp := decodeAction(t, rec)
	assert.True(t, resp.Changed)
	assert.Equal(t, 0, resp.State.SelectedIndex)

	rec = env.do(t, http.MethodPost, base+"/click", map[string]int{"y": 0})
	resp = decodeAction(t, rec)
	assert.True(t, resp.Changed)
	assert.Equal(t, 99, resp.State.SelectedIndex)
}

func TestKeyNavigation(t *testing.T) {
	env := newTestEnv(t)
	snap := env.open(t, "cap-1")
	base := "/api/waterfall/sessions/" + snap.SessionID

	tests := []struct {
		key          string
		wantSelected int
		wantStart    int
	}{
		{"ArrowDown", 1, 0},
		{"ArrowRight", 2, 0},
		{"ArrowLeft", 1, 0},
		{"ArrowUp", 0, 0},
		{"PageUp", 100, 100},
		{"PageDown", 99, 0},
	}
	for _, tt := range tests {
		rec := env.do(t, http.MethodPost, base+"/key", map[string]string{"key": tt.key})
		testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
		resp := decodeAction(t, rec)
		assert.Equal(t, tt.wantSelected, resp.State.SelectedIndex, tt.key)
		assert.Equal(t, tt.wantStart, resp.State.WindowStart, tt.key)
	}

	rec := env.do(t, http.MethodPost, base+"/key", map[string]string{"key": "Enter"})
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.False(t, decodeAction(t, rec).Changed)
}

func TestIndexInput(t *testing.T) {
	env := newTestEnv(t)
	snap := env.open(t, "cap-1")
	path := "/api/waterfall/sessions/" + snap.SessionID + "/index"

	rec := env.do(t, http.MethodPost, path, map[string]string{"value": "150"})
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var resp indexResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "150", resp.Value)
	assert.Equal(t, 149, resp.State.SelectedIndex)
	assert.Equal(t, 50, resp.State.WindowStart)

	for _, bad := range []string{"abc", "0", "251", ""} {
		rec = env.do(t, http.MethodPost, path, map[string]string{"value": bad})
		testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
		resp = indexResponse{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "150", resp.Value, "input %q reverts to the current selection", bad)
		assert.NotEmpty(t, resp.Error)
		assert.Equal(t, 149, resp.State.SelectedIndex)
	}
}

func TestSelectIncrementDecrement(t *testing.T) {
	env := newTestEnv(t)
	snap := env.open(t, "small")
	base := "/api/waterfall/sessions/" + snap.SessionID

	rec := env.do(t, http.MethodPost, base+"/select", map[string]int{"index": 3})
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, 3, decodeAction(t, rec).State.SelectedIndex)

	rec = env.do(t, http.MethodPost, base+"/select", map[string]int{"index": 99})
	assert.Equal(t, 4, decodeAction(t, rec).State.SelectedIndex)

	rec = env.do(t, http.MethodPost, base+"/select", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)

	rec = env.do(t, http.MethodPost, base+"/increment", nil)
	resp := decodeAction(t, rec)
	assert.False(t, resp.Changed)
	assert.Equal(t, 4, resp.State.SelectedIndex)

	rec = env.do(t, http.MethodPost, base+"/decrement", nil)
	resp = decodeAction(t, rec)
	assert.True(t, resp.Changed)
	assert.Equal(t, 3, resp.State.SelectedIndex)
}

func TestScroll(t *testing.T) {
	env := newTestEnv(t)
	snap := env.open(t, "cap-1")
	path := "/api/waterfall/sessions/" + snap.SessionID + "/scroll"

	rec := env.do(t, http.MethodPost, path, map[string]string{"direction": "up"})
	resp := decodeAction(t, rec)
	assert.True(t, resp.Changed)
	assert.Equal(t, 100, resp.State.WindowStart)

	rec = env.do(t, http.MethodPost, path, map[string]string{"direction": "up"})
	assert.Equal(t, 150, decodeAction(t, rec).State.WindowStart)

	rec = env.do(t, http.MethodPost, path, map[string]string{"direction": "up"})
	resp = decodeAction(t, rec)
	assert.False(t, resp.Changed)
	assert.False(t, resp.State.CanScrollUp)

	rec = env.do(t, http.MethodPost, path, map[string]string{"direction": "sideways"})
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestPlaybackControls(t *testing.T) {
	env := newTestEnv(t)
	snap := env.open(t, "small")
	base := "/api/waterfall/sessions/" + snap.SessionID

	rec := env.do(t, http.MethodPost, base+"/play", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.True(t, decodeAction(t, rec).State.Playing)

	rec = env.do(t, http.MethodPost, base+"/toggle", nil)
	assert.False(t, decodeAction(t, rec).State.Playing)

	rec = env.do(t, http.MethodPost, base+"/pause", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.False(t, decodeAction(t, rec).State.Playing)

	rec = env.do(t, http.MethodPost, base+"/rate", map[string]float64{"rate": 4})
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, 4.0, decodeAction(t, rec).State.Rate)

	for _, bad := range []float64{0, -1, 1000} {
		rec = env.do(t, http.MethodPost, base+"/rate", map[string]float64{"rate": bad})
		testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
	}
}

func TestPaletteAndResize(t *testing.T) {
	env := newTestEnv(t)
	snap := env.open(t, "small")
	base := "/api/waterfall/sessions/" + snap.SessionID

	rec := env.do(t, http.MethodPost, base+"/palette", map[string]string{"palette": "magma"})
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "magma", decodeAction(t, rec).State.Palette.String())

	rec = env.do(t, http.MethodPost, base+"/palette", map[string]string{"palette": "rainbow"})
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)

	rec = env.do(t, http.MethodPost, base+"/resize", map[string]int{"width": 800, "height": 300})
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	state := decodeAction(t, rec).State
	assert.Equal(t, 800, state.Width)
	assert.Equal(t, 300, state.Height)

	rec = env.do(t, http.MethodPost, base+"/resize", map[string]int{"width": 50, "height": 300})
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)

	rec = env.do(t, http.MethodPost, base+"/resize", map[string]int{"width": 1_000_000, "height": 1_000_000})
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
	rec = env.do(t, http.MethodGet, base, nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
}

func TestSaveAndListExports(t *testing.T) {
	env := newTestEnv(t)
	snap := env.open(t, "cap-1")
	base := "/api/waterfall/sessions/" + snap.SessionID

	env.do(t, http.MethodPost, base+"/select", map[string]int{"index": 7})
	rec := env.do(t, http.MethodPost, base+"/save", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusCreated)
	var saved db.ExportRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.Equal(t, "waterfall_cap-1_20250601T120000.000Z.png", saved.Filename)
	assert.Equal(t, 7, saved.SelectedIndex)
	assert.True(t, env.fs.Exists(saved.Path))

	rec = env.do(t, http.MethodGet, "/api/waterfall/exports?capture_id=cap-1", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var list []db.ExportRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, saved.ID, list[0].ID)

	rec = env.do(t, http.MethodGet, "/api/waterfall/exports?limit=zero", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestExportsNotConfigured(t *testing.T) {
	manager := viewer.NewManager(&fakeFetcher{waterfalls: map[string][]gateway.WaterfallEntry{"small": rampEntries(5)}}, viewer.DefaultOptions())
	t.Cleanup(manager.CloseAll)
	h := NewServer(Config{Sessions: manager}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/waterfall/exports", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusServiceUnavailable)
}

func TestStatsAndCharts(t *testing.T) {
	env := newTestEnv(t)
	snap := env.open(t, "cap-1")
	base := "/api/waterfall/sessions/" + snap.SessionID
	env.do(t, http.MethodPost, base+"/select", map[string]int{"index": 10})

	rec := env.do(t, http.MethodGet, base+"/stats", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var stats statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 10, stats.Index)
	assert.Equal(t, 16, stats.Stats.Valid)
	assert.InDelta(t, -90.0, stats.Stats.MinDB, 1e-9)
	assert.InDelta(t, -75.0, stats.Stats.MaxDB, 1e-9)

	rec = env.do(t, http.MethodGet, base+"/slice.png", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = env.do(t, http.MethodGet, base+"/slice.html", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.True(t, strings.Contains(rec.Body.String(), "Selected slice"))
}

func TestEmptyCaptureStats(t *testing.T) {
	env := newTestEnv(t)
	snap := env.open(t, "no-data")
	assert.Equal(t, 0, snap.TotalSlices)

	rec := env.do(t, http.MethodGet, "/api/waterfall/sessions/"+snap.SessionID+"/stats", nil)
	testutil.AssertStatusCode(t, rec.Code, http.StatusUnprocessableEntity)
}
