package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/banshee-data/capture.gateway/internal/db"
	"github.com/banshee-data/capture.gateway/internal/httputil"
	"github.com/banshee-data/capture.gateway/internal/viewer"
	"github.com/banshee-data/capture.gateway/internal/waterfall"
)

// actionResponse is returned by every state-changing control.
type actionResponse struct {
	Changed bool            `json:"changed"`
	State   viewer.Snapshot `json:"state"`
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, s *viewer.Session)

// withSession resolves the {id} path segment before calling h.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Get(r.PathValue("id"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		h(w, r, sess)
	}
}

// decodeBody reads an optional JSON body into v. An empty body is accepted.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}

func writeAction(w http.ResponseWriter, changed bool, sess *viewer.Session) {
	httputil.WriteJSONOK(w, actionResponse{Changed: changed, State: sess.State()})
}

type openSessionRequest struct {
	CaptureID string `json:"capture_id"`
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := decodeBody(r, &req); err != nil {
		httputil.BadRequest(w, "invalid JSON body")
		return
	}
	req.CaptureID = strings.TrimSpace(req.CaptureID)
	if req.CaptureID == "" {
		httputil.BadRequest(w, "missing 'capture_id'")
		return
	}
	sess, err := s.sessions.Open(r.Context(), req.CaptureID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sess.State())
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.sessions.List()
	out := make([]viewer.Snapshot, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.State())
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request, sess *viewer.Session) {
	httputil.WriteJSONOK(w, sess.State())
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request, sess *viewer.Session) {
	data, err := sess.FramePNG()
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteBytes(w, "image/png", data)
}

type pointerRequest struct {
	Y int `json:"y"`
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request, sess *viewer.Session) {
	var req pointerRequest
	if err := decodeBody(r, &req); err != nil {
		httputil.BadRequest(w, "invalid JSON body")
		return
	}
	changed, err := sess.Click(req.Y)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeAction(w, changed, sess)
}

func (s *Server) handleHover(w http.ResponseWriter, r *http.Request, sess *viewer.Session) {
	y, err := queryInt(r, "y")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	info, err := sess.Hover(y)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, info)
}

type keyRequest struct {
	Key string `json:"key"`
}

func (s *Server) handleKey(w http.ResponseWriter, r *http.Request, sess *viewer.Session) {
	var req keyRequest
	if err := decodeBody(r, &req); err != nil {
		httputil.BadRequest(w, "invalid JSON body")
		return
	}
	changed, err := sess.HandleKey(viewer.ParseKey(req.Key))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeAction(w, changed, sess)
}

type indexRequest struct {
	Value string `json:"value"`
}

type indexResponse struct {
	Value string          `json:"value"`
	Error string          `json:"error,omitempty"`
	State viewer.Snapshot `json:"state"`
}

// handleIndexInput applies the 1-based index field. Rejected input still
// answers 400 with the value the field should revert to.
func (s *Server) handleIndexInput(w http.ResponseWriter, r *http.Request, sess *viewer.Session) {
	var req indexRequest
	if err := decodeBody(r, &req); err != nil {
		httputil.BadRequest(w, "invalid JSON body")
		return
	}
	shown, err := sess.SetIndexInput(req.Value)
	resp := indexResponse{Value: strconv.Itoa(shown), State: sess.State()}
	if err != nil {
		status, msg := errorStatus(err)
		resp.Error = msg
		httputil.WriteJSON(w, status, resp)
		return
	}
	httputil.WriteJSONOK(w, resp)
}

type selectRequest struct {
	Index *int `json:"index"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request, sess *viewer.Session) {
	var req selectRequest
	if err := decodeBody(r, &req); err != nil || req.Index == nil {
		httputil.BadRequest(w, "missing 'index'")
		return
	}
	if err := sess.Select(*req.Index); err != nil {
		s.writeError(w, err)
		return
	}
	writeAction(w, true, sess)
}

func (s *Server) handleIncrement(w http.ResponseWriter, r *http.Request, sess *viewer.Session) {
	changed, err := sess.Increment()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeAction(w, changed, sess)
}

func (s *Server) handleDecrement(w http.ResponseWriter, r *http.Request, sess *viewer.Session) {
	changed, err := sess.Decrement()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeAction(w, changed, sess)
}

type scrollRequest struct {
	Direction string `json:"direction"`
}

func (s *Server) handleScroll(w http.ResponseWriter, r *http.Request, sess *viewer.Session) {
	var req scrollRequest
	if err := decodeBody(r, &req); err != nil {
		httputil.BadRequest(w, "invalid JSON body")
		return
	}
	var dir waterfall.ScrollDirection
	switch strings.ToLower(req.Direction) {
	case "up":
		dir = waterfall.ScrollUp
	case "down":
		dir = waterfall.ScrollDown
	default:
		httputil.BadRequest(w, "direction must be 'up' or 'down'")
		return
	}
	changed, err := sess.Scroll(dir)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeAction(w, changed, sess)
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request, sess *viewer.Session) {
	if err := sess.Play(); err != nil {
		s.writeError(w, err)
		return
	}
	writeAction(w, true, sess)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request, sess *viewer.Session) {
	if err := sess.Pause(); err != nil {
		s.writeError(w, err)
		return
	}
	writeAction(w, true, sess)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request, sess *viewer.Session) {
	if _, err := sess.TogglePlayback(); err != nil {
		s.writeError(w, err)
		return
	}
	writeAction(w, true, sess)
}

type rateRequest struct {
	Rate float64 `json:"rate"`
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request, sess *viewer.Session) {
	var req rateRequest
	if err := decodeBody(r, &req); err != nil {
		httputil.BadRequest(w, "invalid JSON body")
		return
	}
	if err := sess.SetRate(req.Rate); err != nil {
		s.writeError(w, err)
		return
	}
	writeAction(w, true, sess)
}

type paletteRequest struct {
	Palette string `json:"palette"`
}

func (s *Server) handlePalette(w http.ResponseWriter, r *http.Request, sess *viewer.Session) {
	var req paletteRequest
	if err := decodeBody(r, &req); err != nil {
		httputil.BadRequest(w, "invalid JSON body")
		return
	}
	if _, ok := waterfall.ParsePalette(req.Palette); !ok {
		httputil.BadRequest(w, "unknown palette '"+req.Palette+"'")
		return
	}
	sess.SetPalette(req.Palette)
	writeAction(w, true, sess)
}

type resizeRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request, sess *viewer.Session) {
	var req resizeRequest
	if err := decodeBody(r, &req); err != nil {
		httputil.BadRequest(w, "invalid JSON body")
		return
	}
	if err := sess.Resize(req.Width, req.Height); err != nil {
		s.writeError(w, err)
		return
	}
	writeAction(w, true, sess)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request, sess *viewer.Session) {
	if s.exporter == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "exports are not configured")
		return
	}
	rec, err := sess.Save(s.exporter)
	if err != nil && rec == nil {
		s.writeError(w, err)
		return
	}
	if err != nil {
		// The file exists; only the ledger write failed.
		logf("export %s written but not recorded: %v", rec.Filename, err)
	}
	httputil.WriteJSON(w, http.StatusCreated, rec)
}

type statsResponse struct {
	Index int                  `json:"index"`
	Stats waterfall.SliceStats `json:"stats"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, sess *viewer.Session) {
	idx, st, err := sess.SelectedStats()
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, statsResponse{Index: idx, Stats: st})
}

func (s *Server) handleSlicePNG(w http.ResponseWriter, r *http.Request, sess *viewer.Session) {
	data, err := sess.SliceChartPNG()
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteBytes(w, "image/png", data)
}

func (s *Server) handleListExports(w http.ResponseWriter, r *http.Request) {
	if s.exports == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "exports are not configured")
		return
	}
	limit := db.DefaultExportListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = n
	}
	recs, err := s.exports.ListExports(r.URL.Query().Get("capture_id"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, recs)
}
