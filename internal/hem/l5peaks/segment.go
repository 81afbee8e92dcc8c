package l5peaks

import (
	"github.com/banshee-data/hem.analyzer/internal/hem"
)

// Span is a segmented peak before classification. Start and End are
// inclusive curve indices.
type Span struct {
	Start           int     `json:"start"`
	End             int     `json:"end"`
	FrameDifference float64 `json:"frame_difference"`
}

// Width returns the number of samples covered by the span.
func (s Span) Width() int { return s.End - s.Start + 1 }

// Segmenter splits a curve into peak spans.
type Segmenter interface {
	Segment(curve []float64) []Span
}

// spanMax returns the largest curve value in [start, end].
func spanMax(curve []float64, start, end int) float64 {
	return hem.Max(curve[start : end+1])
}

// ThresholdSegmenter finds runs at or above an absolute level.
type ThresholdSegmenter struct {
	Threshold float64
	// MarginFrames is accepted for configuration compatibility; runs are
	// always widened by exactly one sample per side.
	MarginFrames int
}

type thresholdRun struct {
	start, end int // run as detected
	span       Span
}

// Segment returns the widened runs in curve order. When a widened run
// touches the previously accepted one, the run with the higher maximum
// over its detected (unwidened) samples wins and the other is dropped.
// FrameDifference is measured around the detected samples.
func (s ThresholdSegmenter) Segment(curve []float64) []Span {
	n := len(curve)
	var raw [][2]int
	start := -1
	for i, v := range curve {
		if v >= s.Threshold {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			raw = append(raw, [2]int{start, i - 1})
			start = -1
		}
	}
	if start >= 0 {
		raw = append(raw, [2]int{start, n - 1})
	}

	var accepted []thresholdRun
	for _, r := range raw {
		run := thresholdRun{
			start: r[0],
			end:   r[1],
			span: Span{
				Start:           max(0, r[0]-1),
				End:             min(n-1, r[1]+1),
				FrameDifference: FrameDifference(curve, r[0], r[1]),
			},
		}
		if k := len(accepted) - 1; k >= 0 && run.span.Start <= accepted[k].span.End {
			prev := accepted[k]
			if spanMax(curve, run.start, run.end) > spanMax(curve, prev.start, prev.end) {
				hem.Tracef("peaks: run [%d,%d] replaces overlapping [%d,%d]", run.start, run.end, prev.start, prev.end)
				accepted[k] = run
			} else {
				hem.Tracef("peaks: run [%d,%d] dropped, overlaps [%d,%d]", run.start, run.end, prev.start, prev.end)
			}
			continue
		}
		accepted = append(accepted, run)
	}

	out := make([]Span, len(accepted))
	for i, a := range accepted {
		out[i] = a.span
	}
	return out
}

// MorphologicalSegmenter finds isolated local maxima that rise far enough
// above the curve median and grows each into a monotone peak shape.
type MorphologicalSegmenter struct {
	Sensitivity  float64
	MinPeakWidth int
	MaxPeakWidth int
	MinDistance  int
}

// Segment returns the surviving peak spans in curve order.
func (s MorphologicalSegmenter) Segment(curve []float64) []Span {
	n := len(curve)
	minW, maxW := s.MinPeakWidth, s.MaxPeakWidth
	if n == 0 || minW < 0 || n < 2*minW {
		return nil
	}

	baseline := hem.Median(curve)
	floor := baseline + 0.3*s.Sensitivity

	var candidates []Span
	for i := minW; i < n-minW; i++ {
		if !isApex(curve, i, minW) || curve[i]-baseline < s.Sensitivity {
			continue
		}

		left := i
		for j := i - 1; j > max(0, i-maxW); j-- {
			if curve[j] >= curve[j+1] {
				left = j + 1
				break
			}
			left = j
		}
		right := i
		for j := i + 1; j < min(n, i+maxW+1); j++ {
			if curve[j] >= curve[j-1] {
				right = j - 1
				break
			}
			right = j
		}

		for left < i && curve[left] < floor {
			left++
		}
		for right > i && curve[right] < floor {
			right--
		}

		width := right - left + 1
		if width < minW || width > maxW {
			continue
		}
		candidates = append(candidates, Span{Start: left, End: right, FrameDifference: FrameDifference(curve, left, right)})
	}

	return dedupByDistance(curve, candidates, s.MinDistance)
}

// isApex reports whether curve[i] is strictly greater than every other
// sample within radius.
func isApex(curve []float64, i, radius int) bool {
	for j := i - radius; j <= i+radius; j++ {
		if j != i && curve[j] >= curve[i] {
			return false
		}
	}
	return true
}

// dedupByDistance collapses neighbours closer than minDistance samples,
// keeping whichever has the higher maximum. Ties keep the earlier span.
func dedupByDistance(curve []float64, spans []Span, minDistance int) []Span {
	if len(spans) <= 1 {
		return spans
	}
	out := []Span{spans[0]}
	for _, cur := range spans[1:] {
		k := len(out) - 1
		prev := out[k]
		if cur.Start-prev.End >= minDistance {
			out = append(out, cur)
			continue
		}
		if spanMax(curve, cur.Start, cur.End) > spanMax(curve, prev.Start, prev.End) {
			out[k] = cur
		}
	}
	return out
}
