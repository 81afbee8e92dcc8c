package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/hem.analyzer/internal/config"
	"github.com/banshee-data/hem.analyzer/internal/gauge"
	"github.com/banshee-data/hem.analyzer/internal/hem/l2roi"
	"github.com/banshee-data/hem.analyzer/internal/hem/pipeline"
	"github.com/banshee-data/hem.analyzer/internal/httputil"
	"github.com/banshee-data/hem.analyzer/internal/monitoring"
	"github.com/banshee-data/hem.analyzer/internal/security"
	"github.com/banshee-data/hem.analyzer/internal/video"
)

// maxMemory is the part of a multipart body kept in memory before
// ParseMultipartForm spills to disk.
const maxMemory = 32 << 20

// handleAnalyze runs the pipeline on an uploaded video.
// Form fields:
//   - file (required): the video file
//   - roi_x, roi_y, roi_w, roi_h (required): normalised ROI
//   - sample_fps, methods, brightness_threshold and the detector keys
//     (smooth_k, baseline_n, sudden_k, sudden_min, threshold_delta,
//     threshold_hold, relative_delta): optional overrides of the tuning config
//   - settings (optional): JSON gauge.Settings captured with the video
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "missing file")
		return
	}
	defer file.Close()

	roi, err := parseROI(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	overrides, err := parseOverrides(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	tuning, err := s.tuning.Overlay(overrides)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	req := tuning.Request(roi)

	if raw := r.FormValue("settings"); raw != "" {
		var settings gauge.Settings
		if err := json.Unmarshal([]byte(raw), &settings); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid settings: %v", err))
			return
		}
		req.Settings = &settings
	}

	path, err := s.spool(file, header)
	if err != nil {
		monitoring.Logf("spool upload: %v", err)
		httputil.InternalServerError(w, "failed to store upload")
		return
	}
	defer os.Remove(path)

	ctx := r.Context()
	opener, err := s.open(ctx, path)
	if err != nil {
		s.metrics.ObserveAnalysis(monitoring.OutcomeError, 0, 0, 0)
		httputil.BadRequest(w, "Cannot open video")
		return
	}

	start := s.clock.Now()
	report, err := pipeline.Analyze(ctx, opener, req)
	elapsed := s.clock.Since(start)
	switch {
	case errors.Is(err, l2roi.ErrInvalidROI):
		s.metrics.ObserveAnalysis(monitoring.OutcomeInvalidROI, 0, 0, elapsed)
		httputil.UnprocessableEntity(w, err.Error())
		return
	case errors.Is(err, pipeline.ErrOpenVideo), errors.Is(err, video.ErrNoFrames):
		s.metrics.ObserveAnalysis(monitoring.OutcomeError, 0, 0, elapsed)
		httputil.BadRequest(w, "Cannot open video")
		return
	case err != nil:
		s.metrics.ObserveAnalysis(monitoring.OutcomeError, 0, 0, elapsed)
		monitoring.Logf("analyze %s: %v", header.Filename, err)
		httputil.InternalServerError(w, "analysis failed")
		return
	}

	s.metrics.ObserveAnalysis(monitoring.OutcomeOK, len(report.Series), report.FramesRead, elapsed)
	for _, e := range report.Events {
		s.metrics.EventsDetected.WithLabelValues(string(e.Type)).Inc()
	}
	httputil.WriteJSONOK(w, report)
}

// spool copies the upload to a temp file that keeps the original
// extension, so container sniffing by the decoder still works.
func (s *Server) spool(file multipart.File, header *multipart.FileHeader) (string, error) {
	ext := security.SafeExtension(header.Filename, ".mp4")
	tmp, err := os.CreateTemp(s.TempDir, "hem-upload-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func parseROI(r *http.Request) (l2roi.NormalizedROI, error) {
	var vals [4]float64
	for i, key := range []string{"roi_x", "roi_y", "roi_w", "roi_h"} {
		raw := r.FormValue(key)
		if raw == "" {
			return l2roi.NormalizedROI{}, fmt.Errorf("missing %s", key)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return l2roi.NormalizedROI{}, fmt.Errorf("invalid %s %q", key, raw)
		}
		vals[i] = v
	}
	return l2roi.NormalizedROI{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil
}

// parseOverrides collects the optional tuning fields of the form. Absent
// or blank fields stay nil.
func parseOverrides(r *http.Request) (*config.TuningConfig, error) {
	o := config.EmptyTuningConfig()

	floats := []struct {
		key string
		dst **float64
	}{
		{"sample_fps", &o.SampleFPS},
		{"brightness_threshold", &o.BrightnessThreshold},
		{"sudden_k", &o.SuddenK},
		{"sudden_min", &o.SuddenMin},
		{"threshold_delta", &o.ThresholdDelta},
		{"relative_delta", &o.RelativeDelta},
	}
	for _, f := range floats {
		raw := strings.TrimSpace(r.FormValue(f.key))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", f.key, raw)
		}
		*f.dst = &v
	}

	ints := []struct {
		key string
		dst **int
	}{
		{"smooth_k", &o.SmoothK},
		{"baseline_n", &o.BaselineN},
		{"threshold_hold", &o.ThresholdHold},
	}
	for _, f := range ints {
		raw := strings.TrimSpace(r.FormValue(f.key))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", f.key, raw)
		}
		*f.dst = &v
	}

	if raw := strings.TrimSpace(r.FormValue("methods")); raw != "" {
		o.Methods = &raw
	}
	if raw := strings.TrimSpace(r.FormValue("with_std")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid with_std %q", raw)
		}
		o.WithStd = &v
	}
	return o, nil
}
