package l5peaks

import (
	"github.com/banshee-data/hem.analyzer/internal/hem"
)

// settleFrames is how many samples either side of a span feed
// FrameDifference.
const settleFrames = 5

// Color is the stability class of a peak.
type Color string

const (
	// Green peaks hold their level after the span.
	Green Color = "green"
	// Red peaks fall back after the span.
	Red Color = "red"
)

// Peak is a classified and scored span.
type Peak struct {
	Start           int     `json:"start"`
	End             int     `json:"end"`
	FrameDifference float64 `json:"frame_difference"`
	Color           Color   `json:"color"`
	Score           float64 `json:"score"`
}

// Interval is a bare [Start, End] index pair.
type Interval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// FrameDifference returns the mean of up to five samples after end minus
// the mean of up to five samples before start. With nothing before start
// the before side is curve[start]; with nothing after end the after side
// is curve[end].
func FrameDifference(curve []float64, start, end int) float64 {
	n := len(curve)

	before := curve[start]
	if start > 0 {
		before = hem.Mean(curve[max(0, start-settleFrames):start])
	}

	after := curve[end]
	if end < n-1 {
		after = hem.Mean(curve[end+1 : min(n, end+1+settleFrames)])
	}

	return after - before
}

// ClassifyColor returns Green when frameDifference exceeds threshold and
// Red otherwise.
func ClassifyColor(frameDifference, threshold float64) Color {
	if frameDifference > threshold {
		return Green
	}
	return Red
}

// Score ranks a span for display. Higher, narrower, greener and more
// sharply pointed peaks score higher. Degenerate spans (start >= end or
// out of range) score 0.
func Score(curve []float64, start, end int, frameDifference, threshold float64) float64 {
	if start >= end || start < 0 || end >= len(curve) {
		return 0
	}
	values := curve[start : end+1]
	peakMax := hem.Max(values)
	peakAvg := hem.Mean(values)

	score := 0.4 * peakMax
	if ClassifyColor(frameDifference, threshold) == Green {
		score += 50
	} else {
		score -= 30
	}
	score += float64(max(0, 20-len(values)))
	if peakAvg > 0 {
		score += 10 * (peakMax - peakAvg) / peakAvg
	}
	return score
}

// Classify colours and scores each span.
func Classify(curve []float64, spans []Span, threshold float64) []Peak {
	peaks := make([]Peak, len(spans))
	for i, s := range spans {
		peaks[i] = Peak{
			Start:           s.Start,
			End:             s.End,
			FrameDifference: s.FrameDifference,
			Color:           ClassifyColor(s.FrameDifference, threshold),
			Score:           Score(curve, s.Start, s.End, s.FrameDifference, threshold),
		}
	}
	return peaks
}

// GreenIntervals returns the bounds of the green peaks, in order.
func GreenIntervals(peaks []Peak) []Interval {
	out := []Interval{}
	for _, p := range peaks {
		if p.Color == Green {
			out = append(out, Interval{Start: p.Start, End: p.End})
		}
	}
	return out
}
