package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/banshee-data/hem.analyzer/internal/charts"
	"github.com/banshee-data/hem.analyzer/internal/hem/l5peaks"
	"github.com/banshee-data/hem.analyzer/internal/httputil"
	"github.com/banshee-data/hem.analyzer/internal/monitoring"
)

// maxCurveBody bounds the JSON body of /peaks.
const maxCurveBody = 8 << 20

type peaksRequest struct {
	Curve  []float64          `json:"curve"`
	Method string             `json:"method,omitempty"`
	Params map[string]float64 `json:"params,omitempty"`
}

type peaksResponse struct {
	Method l5peaks.Method     `json:"method"`
	Green  []l5peaks.Interval `json:"green"`
	Peaks  []l5peaks.Peak     `json:"peaks"`
}

// peakParams overlays the request method and numeric options on the
// configured segmentation parameters.
func (s *Server) peakParams(method string, params map[string]float64) (l5peaks.Params, error) {
	p := s.tuning.PeakParams().Merge(l5peaks.ParamsFromMap(params))
	if method != "" {
		m, err := l5peaks.ParseMethod(method)
		if err != nil {
			return l5peaks.Params{}, err
		}
		p.Method = m
	}
	if err := p.Validate(); err != nil {
		return l5peaks.Params{}, err
	}
	return p, nil
}

func (s *Server) handlePeaks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req peaksRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCurveBody)).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	p, err := s.peakParams(req.Method, req.Params)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	peaks := l5peaks.Detect(req.Curve, p)
	for _, pk := range peaks {
		s.metrics.PeaksDetected.WithLabelValues(string(pk.Color)).Inc()
	}
	httputil.WriteJSONOK(w, peaksResponse{
		Method: p.GetMethod(),
		Green:  l5peaks.GreenIntervals(peaks),
		Peaks:  peaks,
	})
}

// handlePeaksChart renders the segmentation of a curve as an HTML chart.
// Query params:
//   - curve (required): comma-separated brightness values
//   - method (optional): threshold or morphological
//   - any numeric segmentation option, e.g. threshold=100
func (s *Server) handlePeaksChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	q := r.URL.Query()

	curve, err := parseCurve(q.Get("curve"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	params := make(map[string]float64)
	for key, vals := range q {
		if key == "curve" || key == "method" || len(vals) == 0 {
			continue
		}
		v, err := strconv.ParseFloat(vals[0], 64)
		if err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid %s %q", key, vals[0]))
			return
		}
		params[key] = v
	}
	p, err := s.peakParams(q.Get("method"), params)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	page, err := charts.RenderPeaks(curve, l5peaks.Detect(curve, p), p.GetThreshold())
	if err != nil {
		monitoring.Logf("render peaks chart: %v", err)
		httputil.InternalServerError(w, "failed to render chart")
		return
	}
	httputil.WriteHTML(w, page)
}

func parseCurve(raw string) ([]float64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("missing curve")
	}
	parts := strings.Split(raw, ",")
	curve := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid curve value %q", part)
		}
		curve = append(curve, v)
	}
	return curve, nil
}
