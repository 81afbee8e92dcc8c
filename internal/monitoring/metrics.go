package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for AnalysesTotal.
const (
	OutcomeOK         = "ok"
	OutcomeInvalidROI = "invalid_roi"
	OutcomeError      = "error"
)

// Metrics holds the analysis service collectors on a private registry so
// tests can create as many instances as they like.
type Metrics struct {
	registry *prometheus.Registry

	AnalysesTotal   *prometheus.CounterVec
	FramesSampled   prometheus.Counter
	FramesRead      prometheus.Counter
	EventsDetected  *prometheus.CounterVec
	PeaksDetected   *prometheus.CounterVec
	AnalysisLatency prometheus.Histogram
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hem_analyses_total",
			Help: "Analysis requests by outcome",
		}, []string{"outcome"}),
		FramesSampled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hem_frames_sampled_total",
			Help: "Frames that went through ROI analysis",
		}),
		FramesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hem_frames_read_total",
			Help: "Native frames decoded by the sampler",
		}),
		EventsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hem_events_detected_total",
			Help: "Detected brightness events by method",
		}, []string{"type"}),
		PeaksDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hem_peaks_detected_total",
			Help: "Segmented peaks by colour",
		}, []string{"color"}),
		AnalysisLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hem_analysis_duration_seconds",
			Help:    "Wall-clock time of one video analysis",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hem_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
	m.registry.MustRegister(
		m.AnalysesTotal,
		m.FramesSampled,
		m.FramesRead,
		m.EventsDetected,
		m.PeaksDetected,
		m.AnalysisLatency,
		m.RequestDuration,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveAnalysis records one finished analysis.
func (m *Metrics) ObserveAnalysis(outcome string, sampled, read int, d time.Duration) {
	m.AnalysesTotal.WithLabelValues(outcome).Inc()
	m.FramesSampled.Add(float64(sampled))
	m.FramesRead.Add(float64(read))
	m.AnalysisLatency.Observe(d.Seconds())
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
