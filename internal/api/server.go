// Package api serves the analysis pipeline over HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/hem.analyzer/internal/config"
	"github.com/banshee-data/hem.analyzer/internal/hem/l1frames"
	"github.com/banshee-data/hem.analyzer/internal/httputil"
	"github.com/banshee-data/hem.analyzer/internal/monitoring"
	"github.com/banshee-data/hem.analyzer/internal/timeutil"
	"github.com/banshee-data/hem.analyzer/internal/version"
	"github.com/banshee-data/hem.analyzer/internal/video"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// DefaultMaxUploadBytes bounds the size of an uploaded video.
const DefaultMaxUploadBytes = 512 << 20

// OpenerFactory turns a spooled upload into a frame source opener.
type OpenerFactory func(ctx context.Context, path string) (l1frames.Opener, error)

// VideoOpener decodes uploads with the video package.
func VideoOpener(opts video.Options) OpenerFactory {
	return func(ctx context.Context, path string) (l1frames.Opener, error) {
		return video.FileOpener(ctx, path, opts)
	}
}

type Server struct {
	tuning  *config.TuningConfig
	open    OpenerFactory
	metrics *monitoring.Metrics
	clock   timeutil.Clock

	// MaxUploadBytes bounds the multipart body of /analyze.
	MaxUploadBytes int64
	// TempDir is where uploads are spooled; empty means os.TempDir.
	TempDir string
}

// NewServer returns a Server analysing uploads with tuning as the base
// configuration. Nil arguments fall back to the built-in defaults, the
// video package decoders and a private metrics registry.
func NewServer(tuning *config.TuningConfig, open OpenerFactory, metrics *monitoring.Metrics) *Server {
	if tuning == nil {
		tuning = config.DefaultTuningConfig()
	}
	if open == nil {
		open = VideoOpener(video.Options{})
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	return &Server{
		tuning:         tuning,
		open:           open,
		metrics:        metrics,
		clock:          timeutil.RealClock{},
		MaxUploadBytes: DefaultMaxUploadBytes,
	}
}

// SetClock replaces the clock used to time analyses.
func (s *Server) SetClock(c timeutil.Clock) { s.clock = c }

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
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

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// CORSMiddleware allows any origin so the static viewer can call the API
// from a file:// page or another port.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

var routes = map[string]bool{
	"/health":       true,
	"/analyze":      true,
	"/peaks":        true,
	"/charts/peaks": true,
	"/metrics":      true,
}

// instrument records request durations by route.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.clock.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		path := r.URL.Path
		if !routes[path] {
			path = "other"
		}
		s.metrics.RequestDuration.
			WithLabelValues(r.Method, path, strconv.Itoa(lrw.statusCode)).
			Observe(s.clock.Since(start).Seconds())
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/analyze", s.handleAnalyze)
	mux.HandleFunc("/peaks", s.handlePeaks)
	mux.HandleFunc("/charts/peaks", s.handlePeaksChart)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

// Handler is ServeMux wrapped with CORS, metrics and access logging.
func (s *Server) Handler() http.Handler {
	return LoggingMiddleware(CORSMiddleware(s.instrument(s.ServeMux())))
}

type healthResponse struct {
	Status string `json:"status"`
	version.Info
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, healthResponse{Status: "ok", Info: version.Current()})
}
