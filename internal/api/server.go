// Package api serves stored analysis runs over HTTP: run listings, signals,
// history, and the wavenumber map as PNG or HTML.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/mstid/internal/httputil"
	"github.com/banshee-data/mstid/internal/monitoring"
	"github.com/banshee-data/mstid/internal/mstid/dataset"
	"github.com/banshee-data/mstid/internal/mstid/l4music"
	"github.com/banshee-data/mstid/internal/mstid/l5detect"
	"github.com/banshee-data/mstid/internal/mstid/render"
	"github.com/banshee-data/mstid/internal/mstid/storage/sqlite"
	"github.com/banshee-data/mstid/internal/security"
)

var logf = monitoring.Component("API")

// ANSI escape codes for the request log
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// RunReader is the read side of the run store.
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*sqlite.Run, error)
	ListRuns(ctx context.Context, radar string) ([]*sqlite.Run, error)
	ListSignals(ctx context.Context, runID string) ([]l5detect.Signal, error)
	ListHistory(ctx context.Context, runID string) ([]dataset.HistoryEntry, error)
	GetMap(ctx context.Context, runID string) (*l4music.Map, error)
}

type Server struct {
	runs RunReader
}

func NewServer(runs RunReader) *Server {
	return &Server{runs: runs}
}

// RunDetail is the body of GET /api/runs/{id}.
type RunDetail struct {
	Run     *sqlite.Run       `json:"run"`
	Signals []l5detect.Signal `json:"signals"`
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		logf("[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/runs", s.listRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.showRun)
	mux.HandleFunc("GET /api/runs/{id}/history", s.showHistory)
	mux.HandleFunc("GET /api/runs/{id}/map.png", s.showMapPNG)
	mux.HandleFunc("GET /api/runs/{id}/map.html", s.showMapHTML)
	return mux
}

// writeStoreError maps store errors onto status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, sqlite.ErrRunNotFound) {
		httputil.Errorf(w, http.StatusNotFound, "%v", err)
		return
	}
	httputil.Errorf(w, http.StatusInternalServerError, "%v", err)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.runs.ListRuns(r.Context(), r.URL.Query().Get("radar"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if runs == nil {
		runs = []*sqlite.Run{}
	}
	httputil.OK(w, runs)
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := s.runs.GetRun(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	signals, err := s.runs.ListSignals(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if signals == nil {
		signals = []l5detect.Signal{}
	}
	httputil.OK(w, RunDetail{Run: run, Signals: signals})
}

func (s *Server) showHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.runs.GetRun(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	history, err := s.runs.ListHistory(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.OK(w, history)
}

// mapView is what both map renderers need.
type mapView struct {
	m       *l4music.Map
	signals []l5detect.Signal
	opts    render.Options
	name    string
}

// mapRequest loads the stored map for the {id} path value. The "scale"
// query parameter selects "db" or the default linear power.
func (s *Server) mapRequest(w http.ResponseWriter, r *http.Request) (*mapView, bool) {
	id := r.PathValue("id")
	var o render.Options
	switch scale := r.URL.Query().Get("scale"); scale {
	case "", "linear":
	case "db":
		o.Decibels = true
	default:
		httputil.Errorf(w, http.StatusBadRequest, "invalid scale %q (want linear or db)", scale)
		return nil, false
	}

	run, err := s.runs.GetRun(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return nil, false
	}
	m, err := s.runs.GetMap(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return nil, false
	}
	signals, err := s.runs.ListSignals(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return nil, false
	}
	o.Title = run.Radar + " " + run.WindowStart.Format("2006-01-02 15:04")
	return &mapView{
		m:       m,
		signals: signals,
		opts:    o,
		name:    security.SanitizeFilename(run.Radar + "_" + run.RunID),
	}, true
}

func (s *Server) showMapPNG(w http.ResponseWriter, r *http.Request) {
	v, ok := s.mapRequest(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := render.WritePNG(&buf, v.m, v.signals, v.opts); err != nil {
		httputil.Errorf(w, http.StatusInternalServerError, "%v", err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", v.name+".png"))
	httputil.Body(w, "image/png", buf.Bytes())
}

func (s *Server) showMapHTML(w http.ResponseWriter, r *http.Request) {
	v, ok := s.mapRequest(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := render.WriteHTML(&buf, v.m, v.signals, v.opts); err != nil {
		httputil.Errorf(w, http.StatusInternalServerError, "%v", err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", v.name+".html"))
	httputil.Body(w, "text/html; charset=utf-8", buf.Bytes())
}

// ListenAndServe serves the API on addr until ctx is cancelled, then shuts
// down with a 5 second grace period.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           LoggingMiddleware(s.ServeMux()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logf("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logf("HTTP server stopped")
	return nil
}
