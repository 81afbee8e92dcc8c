package l3series

import (
	"github.com/banshee-data/hem.analyzer/internal/hem/l2roi"
)

// Series is the ordered list of per-frame metrics of one analysis request,
// ascending in time.
type Series []l2roi.FrameMetrics

// Times returns the timestamp stream.
func (s Series) Times() []float64 {
	return s.project(func(m l2roi.FrameMetrics) float64 { return m.T })
}

// ROIMeans returns the ROI mean stream.
func (s Series) ROIMeans() []float64 {
	return s.project(func(m l2roi.FrameMetrics) float64 { return m.ROIMean })
}

// RefMeans returns the whole-frame reference mean stream.
func (s Series) RefMeans() []float64 {
	return s.project(func(m l2roi.FrameMetrics) float64 { return m.RefMean })
}

// HighRatios returns the high-brightness percentage stream.
func (s Series) HighRatios() []float64 {
	return s.project(func(m l2roi.FrameMetrics) float64 { return m.HighRatio })
}

// ConditionalRatios returns the conditional percentage stream.
func (s Series) ConditionalRatios() []float64 {
	return s.project(func(m l2roi.FrameMetrics) float64 { return m.ConditionalRatio })
}

func (s Series) project(f func(l2roi.FrameMetrics) float64) []float64 {
	out := make([]float64, len(s))
	for i, m := range s {
		out[i] = f(m)
	}
	return out
}

// Builder appends metrics in sample order.
type Builder struct {
	series Series
}

// NewBuilder returns a Builder with room for capacity samples.
func NewBuilder(capacity int) *Builder {
	return &Builder{series: make(Series, 0, max(capacity, 0))}
}

// Append adds one frame's metrics to the end of the series.
func (b *Builder) Append(m l2roi.FrameMetrics) {
	b.series = append(b.series, m)
}

// Len returns the number of samples collected so far.
func (b *Builder) Len() int { return len(b.series) }

// Series returns a copy of the collected series.
func (b *Builder) Series() Series {
	out := make(Series, len(b.series))
	copy(out, b.series)
	return out
}
