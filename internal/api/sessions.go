package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coin-pulse/internal/chart"
	"github.com/coin-pulse/internal/session"
	"github.com/coin-pulse/internal/synchronizer"
	"github.com/coin-pulse/pkg/models"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
)

// TimeFrameRequest switches the chart window of an open asset
type TimeFrameRequest struct {
	TimeFrame string `json:"timeframe"`
}

// SelectRequest is a pointer interaction on the chart viewport
type SelectRequest struct {
	X       float64 `json:"x"`
	ScrollX float64 `json:"scroll_x"`
}

// SelectResponse carries the selected sample and the refreshed detail state
type SelectResponse struct {
	Point *chart.Point             `json:"point"`
	State synchronizer.DetailState `json:"state"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": sess.ID})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(mux.Vars(r)["id"]) {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSessionAssets returns the list state, loading the first page on the
// first call
func (s *Server) handleSessionAssets(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.EnsureList(detached(r))
	s.writeJSON(w, http.StatusOK, sess.List.State())
}

func (s *Server) handleSessionLoadMore(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.List.LoadMore(detached(r))
	s.writeJSON(w, http.StatusOK, sess.List.State())
}

// handleSessionDetail returns the detail state, loading metadata and the
// default series together on the first call
func (s *Server) handleSessionDetail(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	d, created := sess.Detail(mux.Vars(r)["symbol"])
	if created {
		ctx := detached(r)
		var g errgroup.Group
		g.Go(func() error { return d.LoadDetail(ctx) })
		g.Go(func() error { return d.LoadSeries(ctx) })
		g.Wait()
	}

	s.writeJSON(w, http.StatusOK, d.State())
}

func (s *Server) handleSessionTimeFrame(w http.ResponseWriter, r *http.Request) {
	d, ok := s.openDetail(w, r)
	if !ok {
		return
	}

	var req TimeFrameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tf, err := models.ParseTimeFrame(req.TimeFrame)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Load failures are reported through the state's error field
	d.SetTimeFrame(detached(r), tf)
	s.writeJSON(w, http.StatusOK, d.State())
}

// handleSessionSelect hit-tests a pointer against the current chart and
// overlays the selected close onto the price stat
func (s *Server) handleSessionSelect(w http.ResponseWriter, r *http.Request) {
	d, ok := s.openDetail(w, r)
	if !ok {
		return
	}

	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := chart.New(d.State().Chart, s.defaultChartOptions(), func(label string, _ float64) {
		d.UpdateStatsForTime(label)
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := SelectResponse{}
	if p, hit := c.Touch(req.X, req.ScrollX); hit {
		resp.Point = &p
	}
	resp.State = d.State()
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := s.sessions.Get(mux.Vars(r)["id"])
	if !ok {
		s.writeError(w, http.StatusNotFound, "session not found")
	}
	return sess, ok
}

func (s *Server) openDetail(w http.ResponseWriter, r *http.Request) (*synchronizer.AssetDetail, bool) {
	sess, ok := s.session(w, r)
	if !ok {
		return nil, false
	}
	d, ok := sess.LookupDetail(mux.Vars(r)["symbol"])
	if !ok {
		s.writeError(w, http.StatusNotFound, "asset not opened in this session")
	}
	return d, ok
}

// detached keeps request values but lets loads finish after the client
// goes away
func detached(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}
