// Package api serves monitor and window captures over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/xgrab/internal/capture"
	"github.com/example/xgrab/internal/frame"
	"github.com/example/xgrab/internal/imageio"
	"github.com/example/xgrab/internal/logger"
)

// Capturer is the capture surface the server needs.
type Capturer interface {
	ListMonitors() ([]capture.MonitorInfo, error)
	ListWindows() ([]capture.WindowInfo, error)
	CaptureMonitor(m capture.MonitorInfo) (*image.RGBA, error)
	CaptureRegion(m capture.MonitorInfo, x, y, width, height int) (*image.RGBA, error)
	CaptureRegionRGB(m capture.MonitorInfo, x, y, width, height int) (*frame.RGB, error)
	CaptureWindow(w capture.WindowInfo) (*image.RGBA, error)
	CaptureWindowRGB(w capture.WindowInfo) (*frame.RGB, error)
}

// Direct calls the capture package.
type Direct struct{}

func (Direct) ListMonitors() ([]capture.MonitorInfo, error) { return capture.ListMonitors() }
func (Direct) ListWindows() ([]capture.WindowInfo, error) { return capture.ListWindows() }
func (Direct) CaptureMonitor(m capture.MonitorInfo) (*image.RGBA, error) {
	return capture.CaptureMonitor(m)
}
func (Direct) CaptureRegion(m capture.MonitorInfo, x, y, w, h int) (*image.RGBA, error) {
	return capture.CaptureRegion(m, x, y, w, h)
}
func (Direct) CaptureRegionRGB(m capture.MonitorInfo, x, y, w, h int) (*frame.RGB, error) {
	return capture.CaptureRegionRGB(m, x, y, w, h)
}
func (Direct) CaptureWindow(w capture.WindowInfo) (*image.RGBA, error) {
	return capture.CaptureWindow(w)
}
func (Direct) CaptureWindowRGB(w capture.WindowInfo) (*frame.RGB, error) {
	return capture.CaptureWindowRGB(w)
}

// Server represents the HTTP API server
type Server struct {
	router   *mux.Router
	capturer Capturer
	version  string
}

// NewServer creates a new API server
func NewServer(c Capturer, version string) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		capturer: c,
		version:  version,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(logRequests)

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/monitors", s.handleMonitors).Methods(http.MethodGet)
	api.HandleFunc("/windows", s.handleWindows).Methods(http.MethodGet)
	api.HandleFunc("/monitors/{index:[0-9]+}/capture", s.handleMonitorCapture).Methods(http.MethodGet)
	api.HandleFunc("/windows/{id}/capture", s.handleWindowCapture).Methods(http.MethodGet)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.WithComponent("api").Info().Str("addr", addr).Msg("listening")
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.WithComponent("api").Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status":    "ok",
		"version":   s.version,
		"transport": string(capture.CurrentMode()),
	})
}

func (s *Server) handleMonitors(w http.ResponseWriter, r *http.Request) {
	mons, err := s.capturer.ListMonitors()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, mons)
}

func (s *Server) handleWindows(w http.ResponseWriter, r *http.Request) {
	wins, err := s.capturer.ListWindows()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, wins)
}

func (s *Server) handleMonitorCapture(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format, rgb, err := outputOptions(q.Get("format"), q.Get("rgb"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	region, whole, err := parseRegion(q.Get("x"), q.Get("y"), q.Get("width"), q.Get("height"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	mons, err := s.capturer.ListMonitors()
	if err != nil {
		writeError(w, err)
		return
	}
	idx, _ := strconv.Atoi(mux.Vars(r)["index"])
	if idx >= len(mons) {
		http.Error(w, fmt.Sprintf("monitor %d not found", idx), http.StatusNotFound)
		return
	}
	mon := mons[idx]
	if whole {
		region = image.Rect(0, 0, mon.Rect.Dx(), mon.Rect.Dy())
	}

	var img image.Image
	switch {
	case rgb:
		img, err = s.capturer.CaptureRegionRGB(mon, region.Min.X, region.Min.Y, region.Dx(), region.Dy())
	case whole:
		img, err = s.capturer.CaptureMonitor(mon)
	default:
		img, err = s.capturer.CaptureRegion(mon, region.Min.X, region.Min.Y, region.Dx(), region.Dy())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeImage(w, img, format)
}

func (s *Server) handleWindowCapture(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format, rgb, err := outputOptions(q.Get("format"), q.Get("rgb"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	wins, err := s.capturer.ListWindows()
	if err != nil {
		writeError(w, err)
		return
	}
	win, err := capture.SelectWindow("id:"+mux.Vars(r)["id"], wins)
	if err != nil {
		status := http.StatusNotFound
		if strings.Contains(err.Error(), "invalid") {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	var img image.Image
	if rgb {
		img, err = s.capturer.CaptureWindowRGB(win)
	} else {
		img, err = s.capturer.CaptureWindow(win)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeImage(w, img, format)
}

func outputOptions(format, rgb string) (imageio.Format, bool, error) {
	f, err := imageio.ParseFormat(format)
	if err != nil {
		return "", false, err
	}
	if rgb == "" {
		return f, false, nil
	}
	b, err := strconv.ParseBool(rgb)
	if err != nil {
		return "", false, fmt.Errorf("invalid rgb value %q", rgb)
	}
	return f, b, nil
}

// parseRegion reads a monitor relative rectangle. With no parameters at all
// whole is true and the caller uses the monitor bounds. Empty sizes are
// rejected here so they never reach the display server.
func parseRegion(xs, ys, ws, hs string) (rect image.Rectangle, whole bool, err error) {
	if xs == "" && ys == "" && ws == "" && hs == "" {
		return image.Rectangle{}, true, nil
	}
	var vals [4]int
	for i, v := range []struct{ name, val string }{{"x", xs}, {"y", ys}, {"width", ws}, {"height", hs}} {
		if v.val == "" {
			if i < 2 {
				continue
			}
			return image.Rectangle{}, false, fmt.Errorf("%s is required with a region", v.name)
		}
		n, err := strconv.Atoi(v.val)
		if err != nil {
			return image.Rectangle{}, false, fmt.Errorf("invalid %s %q", v.name, v.val)
		}
		vals[i] = n
	}
	if vals[2] <= 0 || vals[3] <= 0 {
		return image.Rectangle{}, false, fmt.Errorf("region size %dx%d must be positive", vals[2], vals[3])
	}
	return image.Rect(vals[0], vals[1], vals[0]+vals[2], vals[1]+vals[3]), false, nil
}

// statusFor maps capture failures onto HTTP status codes.
func statusFor(err error) int {
	if capture.KindOf(err) == capture.KindInvalidRegion {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.WithComponent("api").Error().Err(err).Int("status", status).Msg("capture failed")
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithComponent("api").Warn().Err(err).Msg("encode response")
	}
}

func writeImage(w http.ResponseWriter, img image.Image, f imageio.Format) {
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	if err := imageio.Encode(w, img, f); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithComponent("api").Warn().Err(err).Msg("encode image")
	}
}
