package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/hem.analyzer/internal/hem/l1frames"
	"github.com/banshee-data/hem.analyzer/internal/monitoring"
	"github.com/banshee-data/hem.analyzer/internal/testutil"
	"github.com/banshee-data/hem.analyzer/internal/timeutil"
	"github.com/banshee-data/hem.analyzer/internal/video"
)

// stepFactory serves 40 frames of 20x10 at 10 fps whatever was uploaded.
// The left half brightens from 50 to 120 at frame 20. The spooled path
// of the last call is recorded.
type stepFactory struct {
	path    string
	content []byte
}

func (f *stepFactory) open(_ context.Context, path string) (l1frames.Opener, error) {
	f.path = path
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f.content = data
	frames := testutil.StepFrames(40, 20, 10, image.Rect(0, 0, 10, 10), 50, 120, 20)
	return video.MemoryOpener(10, frames), nil
}

func newTestServer(t *testing.T, open OpenerFactory) *Server {
	t.Helper()
	s := NewServer(nil, open, nil)
	s.TempDir = t.TempDir()
	s.SetClock(timeutil.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	return s
}

func multipartRequest(t *testing.T, fields map[string]string, withFile bool) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if withFile {
		fw, err := mw.CreateFormFile("file", "clip.avi")
		require.NoError(t, err)
		_, err = fw.Write([]byte("not really a video"))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func leftHalf() map[string]string {
	return map[string]string{"roi_x": "0", "roi_y": "0", "roi_w": "0.5", "roi_h": "1"}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var body map[string]string
	testutil.DecodeJSON(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "version")

	rec = httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

func TestAnalyze(t *testing.T) {
	f := &stepFactory{}
	s := newTestServer(t, f.open)

	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, multipartRequest(t, leftHalf(), true))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		HasHEM   bool    `json:"has_hem"`
		Baseline float64 `json:"baseline"`
		Events   []struct {
			T    float64 `json:"t"`
			Type string  `json:"type"`
		} `json:"events"`
		Series []struct {
			T   float64 `json:"t"`
			ROI float64 `json:"roi"`
		} `json:"series"`
		Window struct {
			Average    float64 `json:"average"`
			FrameCount int     `json:"frame_count"`
		} `json:"frames_10_to_20"`
	}
	testutil.DecodeJSON(t, rec, &body)

	assert.True(t, body.HasHEM)
	assert.InDelta(t, 50.0, body.Baseline, 1e-9)
	assert.Len(t, body.Series, 40)
	assert.Equal(t, 11, body.Window.FrameCount)
	assert.InDelta(t, 50.0, body.Window.Average, 1e-9)
	assert.NotEmpty(t, body.Events)

	assert.Equal(t, ".avi", filepath.Ext(f.path), "upload keeps its extension")
	assert.Equal(t, "not really a video", string(f.content))
	_, err := os.Stat(f.path)
	assert.True(t, os.IsNotExist(err), "upload removed after analysis")

	assert.Equal(t, 1.0, promtest.ToFloat64(s.metrics.AnalysesTotal.WithLabelValues(monitoring.OutcomeOK)))
	assert.Equal(t, 40.0, promtest.ToFloat64(s.metrics.FramesSampled))
	assert.Equal(t, 1, promtest.CollectAndCount(s.metrics.AnalysisLatency))
	assert.Equal(t, 1.0, promtest.ToFloat64(s.metrics.EventsDetected.WithLabelValues("threshold")))
}

func TestAnalyzeOverrides(t *testing.T) {
	f := &stepFactory{}
	s := newTestServer(t, f.open)

	fields := leftHalf()
	fields["sample_fps"] = "5"
	fields["methods"] = "threshold"
	fields["threshold_delta"] = "100"
	fields["settings"] = `{"depth_cm": 6.3, "zoom_scaler": 1}`

	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, multipartRequest(t, fields, true))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		HasHEM   bool `json:"has_hem"`
		Stride   int  `json:"stride"`
		Series   []any
		Settings map[string]any `json:"settings"`
	}
	testutil.DecodeJSON(t, rec, &body)
	assert.Equal(t, 2, body.Stride)
	assert.Len(t, body.Series, 20)
	assert.False(t, body.HasHEM, "threshold 100 above baseline is never reached")
	assert.Equal(t, 6.3, body.Settings["depth_cm"])
}

func TestAnalyzeInvalidROI(t *testing.T) {
	f := &stepFactory{}
	s := newTestServer(t, f.open)

	// A zero width is widened to one pixel; an origin on the right edge
	// leaves no pixel column to widen into.
	widened := leftHalf()
	widened["roi_w"] = "0"
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, multipartRequest(t, widened, true))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	fields := leftHalf()
	fields["roi_x"] = "1"
	rec = httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, multipartRequest(t, fields, true))

	testutil.AssertStatusCode(t, rec.Code, http.StatusUnprocessableEntity)
	var body map[string]string
	testutil.DecodeJSON(t, rec, &body)
	assert.Contains(t, body["error"], "invalid roi")
	assert.Equal(t, 1.0, promtest.ToFloat64(s.metrics.AnalysesTotal.WithLabelValues(monitoring.OutcomeInvalidROI)))
	assert.Equal(t, 1.0, promtest.ToFloat64(s.metrics.AnalysesTotal.WithLabelValues(monitoring.OutcomeOK)))
}

func TestAnalyzeBadRequests(t *testing.T) {
	f := &stepFactory{}
	s := newTestServer(t, f.open)

	with := func(k, v string) map[string]string {
		fields := leftHalf()
		fields[k] = v
		return fields
	}
	without := func(k string) map[string]string {
		fields := leftHalf()
		delete(fields, k)
		return fields
	}

	tests := []struct {
		name     string
		fields   map[string]string
		withFile bool
		want     string
	}{
		{"missing file", leftHalf(), false, "missing file"},
		{"missing roi", without("roi_h"), true, "missing roi_h"},
		{"bad roi", with("roi_x", "left"), true, "invalid roi_x"},
		{"bad float override", with("sample_fps", "fast"), true, "invalid sample_fps"},
		{"bad int override", with("smooth_k", "1.5"), true, "invalid smooth_k"},
		{"unknown method", with("methods", "sudden,psychic"), true, "psychic"},
		{"zero fps", with("sample_fps", "0"), true, "sample_fps"},
		{"bad settings", with("settings", "{"), true, "invalid settings"},
		{"bad with_std", with("with_std", "maybe"), true, "invalid with_std"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.ServeMux().ServeHTTP(rec, multipartRequest(t, tt.fields, tt.withFile))
			testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}

	t.Run("not multipart", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader("x")))
		testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analyze", nil))
		testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
	})
}

func TestAnalyzeCannotOpenVideo(t *testing.T) {
	t.Run("factory fails", func(t *testing.T) {
		s := newTestServer(t, func(context.Context, string) (l1frames.Opener, error) {
			return nil, errors.New("unsupported container")
		})
		rec := httptest.NewRecorder()
		s.ServeMux().ServeHTTP(rec, multipartRequest(t, leftHalf(), true))
		testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
		assert.Contains(t, rec.Body.String(), "Cannot open video")
	})

	t.Run("first open fails", func(t *testing.T) {
		s := newTestServer(t, func(context.Context, string) (l1frames.Opener, error) {
			return video.MemoryOpener(10, nil), nil
		})
		rec := httptest.NewRecorder()
		s.ServeMux().ServeHTTP(rec, multipartRequest(t, leftHalf(), true))
		testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
		assert.Equal(t, 1.0, promtest.ToFloat64(s.metrics.AnalysesTotal.WithLabelValues(monitoring.OutcomeError)))
	})
}

func TestAnalyzeUploadTooLarge(t *testing.T) {
	f := &stepFactory{}
	s := newTestServer(t, f.open)
	s.MaxUploadBytes = 16

	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, multipartRequest(t, leftHalf(), true))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestHandlerMiddleware(t *testing.T) {
	original := monitoring.Logf
	defer func() { monitoring.Logf = original }()
	var logged []string
	monitoring.SetLogger(func(format string, v ...any) { logged = append(logged, fmt.Sprintf(format, v...)) })

	s := newTestServer(t, nil)
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Len(t, logged, 1)
	assert.Contains(t, logged[0], "/health")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/analyze", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusNoContent)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Contains(t, rec.Body.String(), `hem_http_request_duration_seconds_count{method="GET",path="/health",status="200"} 1`)
}

func TestStatusCodeColor(t *testing.T) {
	assert.Contains(t, statusCodeColor(200), colorBoldGreen)
	assert.Contains(t, statusCodeColor(302), colorYellow)
	assert.Contains(t, statusCodeColor(422), colorBoldRed)
	assert.Equal(t, "100", statusCodeColor(100))
}
