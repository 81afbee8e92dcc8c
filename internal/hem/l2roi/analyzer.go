package l2roi

import (
	"fmt"
	"image"
	"math"

	"github.com/banshee-data/hem.analyzer/internal/hem"
	"github.com/banshee-data/hem.analyzer/internal/hem/l1frames"
)

// Thresholds are the grey levels used by the ratio statistics.
type Thresholds struct {
	// High is the level a pixel must strictly exceed to count toward HighRatio.
	High float64 `json:"brightness_threshold"`
	// ConditionalMean gates ConditionalRatio: it is only computed when the
	// ROI mean strictly exceeds this level.
	ConditionalMean float64 `json:"conditional_mean_threshold"`
	// ConditionalPixel is the level a pixel must strictly exceed to count
	// toward ConditionalRatio.
	ConditionalPixel float64 `json:"conditional_pixel_threshold"`
}

// DefaultThresholds returns the stock grey levels.
func DefaultThresholds() Thresholds {
	return Thresholds{High: 128, ConditionalMean: 105, ConditionalPixel: 180}
}

// FrameMetrics are the statistics for one sampled frame. Ratios are
// percentages in [0,100].
type FrameMetrics struct {
	T                float64  `json:"t"`
	FrameIndex       int      `json:"frame_index"`
	ROIMean          float64  `json:"roi"`
	RefMean          float64  `json:"ref"`
	ROIStd           *float64 `json:"roi_std,omitempty"`
	HighRatio        float64  `json:"high_ratio"`
	ConditionalRatio float64  `json:"conditional_ratio"`
}

// RegionStats are the raw statistics of a pixel rectangle.
type RegionStats struct {
	Mean             float64
	Std              float64
	HighRatio        float64
	ConditionalRatio float64
}

// Analyzer computes FrameMetrics for frames of a fixed size.
type Analyzer struct {
	roi        PixelROI
	width      int
	height     int
	thresholds Thresholds
	withStd    bool
}

// NewAnalyzer resolves roi against a width x height frame. withStd enables
// the optional ROI standard deviation.
func NewAnalyzer(roi NormalizedROI, width, height int, th Thresholds, withStd bool) (*Analyzer, error) {
	p, err := roi.Resolve(width, height)
	if err != nil {
		hem.Opsf("roi rejected: %v", err)
		return nil, err
	}
	hem.Diagf("roi %+v -> pixels %s (%dx%d) in %dx%d frame", roi, p, p.Width(), p.Height(), width, height)
	return &Analyzer{roi: p, width: width, height: height, thresholds: th, withStd: withStd}, nil
}

// PixelROI returns the resolved pixel rectangle.
func (a *Analyzer) PixelROI() PixelROI { return a.roi }

// Analyze computes the metrics of one sampled frame. A frame whose bounds
// do not contain the resolved rectangle fails with ErrInvalidROI.
func (a *Analyzer) Analyze(f l1frames.SampledFrame) (FrameMetrics, error) {
	if f.Pixels == nil {
		return FrameMetrics{}, fmt.Errorf("%w: frame %d has no pixels", ErrInvalidROI, f.Index)
	}
	b := f.Pixels.Bounds()
	if a.roi.X1 > b.Dx() || a.roi.Y1 > b.Dy() {
		return FrameMetrics{}, fmt.Errorf("%w: %s outside %dx%d frame %d", ErrInvalidROI, a.roi, b.Dx(), b.Dy(), f.Index)
	}

	rs := Region(f.Pixels, a.roi, a.thresholds)
	m := FrameMetrics{
		T:                f.Timestamp,
		FrameIndex:       f.Index,
		ROIMean:          rs.Mean,
		RefMean:          GlobalMean(f.Pixels),
		HighRatio:        rs.HighRatio,
		ConditionalRatio: rs.ConditionalRatio,
	}
	if a.withStd {
		std := rs.Std
		m.ROIStd = &std
	}
	return m, nil
}

// ROIMean returns only the ROI mean of a frame, NaN if the rectangle
// falls outside the frame.
func (a *Analyzer) ROIMean(img *image.Gray) float64 {
	b := img.Bounds()
	if a.roi.X1 > b.Dx() || a.roi.Y1 > b.Dy() {
		return math.NaN()
	}
	return Region(img, a.roi, a.thresholds).Mean
}

// Region computes statistics over the rectangle p of img, with p given
// relative to img's top-left corner. An empty rectangle yields NaN mean
// and std and zero ratios.
func Region(img *image.Gray, p PixelROI, th Thresholds) RegionStats {
	if p.Width() <= 0 || p.Height() <= 0 {
		return RegionStats{Mean: math.NaN(), Std: math.NaN()}
	}

	values := make([]float64, 0, p.Width()*p.Height())
	high := 0
	for y := p.Y0; y < p.Y1; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+img.Rect.Dx()]
		for _, px := range row[p.X0:p.X1] {
			v := float64(px)
			if v > th.High {
				high++
			}
			values = append(values, v)
		}
	}

	n := float64(len(values))
	mean, std := hem.MeanStd(values)
	rs := RegionStats{
		Mean:      mean,
		Std:       std,
		HighRatio: float64(high) / n * 100,
	}

	if mean > th.ConditionalMean {
		bright := 0
		for _, v := range values {
			if v > th.ConditionalPixel {
				bright++
			}
		}
		rs.ConditionalRatio = float64(bright) / n * 100
	}
	return rs
}

// GlobalMean returns the mean grey level of the whole frame, the
// illumination reference.
func GlobalMean(img *image.Gray) float64 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w <= 0 || h <= 0 {
		return math.NaN()
	}
	var sum uint64
	for y := 0; y < h; y++ {
		for _, px := range img.Pix[y*img.Stride : y*img.Stride+w] {
			sum += uint64(px)
		}
	}
	return float64(sum) / float64(w*h)
}
