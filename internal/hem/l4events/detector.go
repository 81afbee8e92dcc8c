package l4events

import (
	"math"

	"github.com/banshee-data/hem.analyzer/internal/hem"
)

// madFloor keeps the sudden-jump threshold positive on flat signals.
const madFloor = 1e-3

// Event is one detection. Different methods may report the same instant.
type Event struct {
	T     float64 `json:"t"`
	Type  Method  `json:"type"`
	Score float64 `json:"score"`
}

// Result is the outcome of Detect.
type Result struct {
	Events   []Event   `json:"events"`
	HasEvent bool      `json:"has_hem"`
	Baseline float64   `json:"baseline"`
	Smoothed []float64 `json:"-"`
}

// Detect screens the ROI mean series against the requested methods.
// t, roi and ref are parallel streams; ref may be shorter than roi, in
// which case the relative method only covers the shared prefix. Events are
// grouped by method in sudden, threshold, relative order. Unknown methods
// are ignored. An empty series yields no events and a zero baseline.
func Detect(t, roi, ref []float64, methods []Method, p Params) Result {
	res := Result{Events: []Event{}}
	n := min(len(t), len(roi))
	if n == 0 {
		return res
	}
	t, roi = t[:n], roi[:n]

	smoothed := hem.MovingAverage(roi, p.GetSmoothK())
	res.Smoothed = smoothed

	baselineN := p.GetBaselineN(n)
	if baselineN > 0 {
		res.Baseline = hem.Median(smoothed[:min(baselineN, n)])
	} else {
		res.Baseline = hem.Median(smoothed)
	}

	want := make(map[Method]bool, len(methods))
	for _, m := range methods {
		want[m] = true
	}

	if want[MethodSudden] {
		res.Events = append(res.Events, detectSudden(t, smoothed, p)...)
	}
	if want[MethodThreshold] {
		res.Events = append(res.Events, detectThreshold(t, smoothed, res.Baseline, p)...)
	}
	if want[MethodRelative] {
		res.Events = append(res.Events, detectRelative(t, smoothed, ref, p)...)
	}

	res.HasEvent = len(res.Events) > 0
	hem.Diagf("events: n=%d baseline=%.2f (first %d) methods=%v events=%d", n, res.Baseline, baselineN, methods, len(res.Events))
	return res
}

func detectSudden(t, smoothed []float64, p Params) []Event {
	diff := hem.Diff(smoothed)
	thr := p.GetSuddenK() * math.Max(hem.MAD(diff), madFloor)
	limit := math.Max(thr, p.GetSuddenMin())

	var out []Event
	for i, d := range diff {
		if d > limit {
			out = append(out, Event{T: t[i], Type: MethodSudden, Score: d})
		}
	}
	return out
}

// detectThreshold fires once per run, on the sample where the run length
// first reaches the hold count.
func detectThreshold(t, smoothed []float64, baseline float64, p Params) []Event {
	level := baseline + p.GetThresholdDelta()
	hold := p.GetThresholdHold()

	var out []Event
	run := 0
	for i, v := range smoothed {
		if v > level {
			run++
		} else {
			run = 0
		}
		if run == hold {
			out = append(out, Event{T: t[i], Type: MethodThreshold, Score: v - level})
		}
	}
	return out
}

func detectRelative(t, smoothed, ref []float64, p Params) []Event {
	delta := p.GetRelativeDelta()
	var out []Event
	for i := 0; i < min(len(smoothed), len(ref)); i++ {
		d := smoothed[i] - ref[i]
		if d > delta {
			out = append(out, Event{T: t[i], Type: MethodRelative, Score: d})
		}
	}
	return out
}
