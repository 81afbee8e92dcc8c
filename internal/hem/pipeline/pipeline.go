// Package pipeline runs one analysis request end to end: sample the video,
// build the ROI series, screen it for events and measure the fixed
// frames 10-20 window on a second pass.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/banshee-data/hem.analyzer/internal/gauge"
	"github.com/banshee-data/hem.analyzer/internal/hem"
	"github.com/banshee-data/hem.analyzer/internal/hem/l1frames"
	"github.com/banshee-data/hem.analyzer/internal/hem/l2roi"
	"github.com/banshee-data/hem.analyzer/internal/hem/l3series"
	"github.com/banshee-data/hem.analyzer/internal/hem/l4events"
)

// ErrOpenVideo wraps every failure to open the video for the first pass.
var ErrOpenVideo = errors.New("open video")

// Native indices of the fixed auxiliary window; frame_num is 1-based.
const (
	windowFrom = 9
	windowTo   = 20
)

// Request describes one analysis.
type Request struct {
	ROI         l2roi.NormalizedROI
	SampleFPS   float64
	Methods     []l4events.Method
	EventParams l4events.Params
	Thresholds  l2roi.Thresholds
	WithStd     bool
	Workers     int
	// MaxFrames bounds the number of sampled frames; 0 means unbounded.
	MaxFrames int
	// Settings is the instrument state captured alongside the video. It is
	// echoed in the report unchanged.
	Settings *gauge.Settings
}

// NewRequest returns a Request with the stock sampling rate, methods and
// thresholds.
func NewRequest(roi l2roi.NormalizedROI) Request {
	return Request{
		ROI:        roi,
		SampleFPS:  8,
		Methods:    l4events.AllMethods,
		Thresholds: l2roi.DefaultThresholds(),
		Workers:    1,
	}
}

// WindowFrame is one frame of the fixed auxiliary window.
type WindowFrame struct {
	FrameNum int     `json:"frame_num"`
	ROIValue float64 `json:"roi_value"`
}

// WindowAverage summarises the fixed auxiliary window.
type WindowAverage struct {
	Average    float64       `json:"average"`
	FrameCount int           `json:"frame_count"`
	Frames     []WindowFrame `json:"frames"`
}

// Report is the result of Analyze.
type Report struct {
	ID          string           `json:"id"`
	HasEvent    bool             `json:"has_hem"`
	Events      []l4events.Event `json:"events"`
	Baseline    float64          `json:"baseline"`
	Series      l3series.Series  `json:"series"`
	FixedWindow WindowAverage    `json:"frames_10_to_20"`
	FPS         float64          `json:"fps"`
	Stride      int              `json:"stride"`
	FramesRead  int              `json:"frames_read"`
	PixelROI    l2roi.PixelROI   `json:"pixel_roi"`
	Settings    *gauge.Settings  `json:"settings,omitempty"`
}

// Analyze opens the video, resolves the ROI against its frame size and
// runs the series and event stages. The fixed window is measured on a
// fresh source from open; if that second open fails the window is empty
// and the analysis still succeeds. An invalid ROI fails the whole request
// with an error wrapping l2roi.ErrInvalidROI.
func Analyze(ctx context.Context, open l1frames.Opener, req Request) (*Report, error) {
	src, err := open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenVideo, err)
	}
	defer src.Close()

	w, h := src.Size()
	analyzer, err := l2roi.NewAnalyzer(req.ROI, w, h, req.Thresholds, req.WithStd)
	if err != nil {
		return nil, err
	}

	sampler := l1frames.NewSampler(src, req.SampleFPS)
	series, err := l3series.Build(ctx, sampler, analyzer, l3series.BuildOptions{
		Workers:   req.Workers,
		MaxFrames: req.MaxFrames,
	})
	if err != nil {
		return nil, fmt.Errorf("build series: %w", err)
	}

	methods := req.Methods
	if len(methods) == 0 {
		methods = l4events.AllMethods
	}
	res := l4events.Detect(series.Times(), series.ROIMeans(), series.RefMeans(), methods, req.EventParams)

	report := &Report{
		ID:         uuid.NewString(),
		HasEvent:   res.HasEvent,
		Events:     res.Events,
		Baseline:   res.Baseline,
		Series:     series,
		FPS:        sampler.FPS(),
		Stride:     sampler.Stride(),
		FramesRead: sampler.FramesRead(),
		PixelROI:   analyzer.PixelROI(),
	}
	if req.Settings != nil {
		s := req.Settings.Clone()
		report.Settings = &s
	}

	report.FixedWindow = WindowAverage{Frames: []WindowFrame{}}
	if second, err := open(); err != nil {
		hem.Opsf("frames 10-20 pass skipped: %v", err)
	} else {
		report.FixedWindow = FixedWindowAverage(second, analyzer)
		second.Close()
	}

	hem.Opsf("analysis %s: %d samples, %d events, has_hem=%v", report.ID, len(series), len(res.Events), res.HasEvent)
	return report, nil
}

// FixedWindowAverage reads src from the start and averages the ROI mean of
// native frames 10 to 20 (indices 9-19). Shorter videos contribute what
// they have; a video with fewer than ten frames yields a zero average. A
// frame too small for the ROI contributes 0.
func FixedWindowAverage(src l1frames.Source, analyzer *l2roi.Analyzer) WindowAverage {
	out := WindowAverage{Frames: []WindowFrame{}}
	var sum float64
	for _, f := range l1frames.ReadWindow(src, windowFrom, windowTo) {
		v := analyzer.ROIMean(f.Pixels)
		if math.IsNaN(v) {
			v = 0
		}
		sum += v
		out.Frames = append(out.Frames, WindowFrame{FrameNum: f.Index + 1, ROIValue: v})
	}
	out.FrameCount = len(out.Frames)
	if out.FrameCount > 0 {
		out.Average = sum / float64(out.FrameCount)
	}
	hem.Diagf("frames 10-20: %d frames, average %.2f", out.FrameCount, out.Average)
	return out
}
