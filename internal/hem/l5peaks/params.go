package l5peaks

import (
	"fmt"

	"github.com/banshee-data/hem.analyzer/internal/hem"
)

// Method names a segmentation strategy.
type Method string

const (
	MethodThreshold     Method = "threshold"
	MethodMorphological Method = "morphological"
)

// ParseMethod validates a segmentation method name. Empty selects
// MethodThreshold.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "", MethodThreshold:
		return MethodThreshold, nil
	case MethodMorphological:
		return MethodMorphological, nil
	}
	return "", fmt.Errorf("unknown peak method %q", s)
}

// Params overlays the segmentation defaults. Nil fields use the default.
type Params struct {
	Method              Method   `json:"method,omitempty"`
	Threshold           *float64 `json:"threshold,omitempty"`
	MarginFrames        *int     `json:"margin_frames,omitempty"`
	DifferenceThreshold *float64 `json:"difference_threshold,omitempty"`
	Sensitivity         *float64 `json:"sensitivity,omitempty"`
	MinPeakWidth        *int     `json:"min_peak_width,omitempty"`
	MaxPeakWidth        *int     `json:"max_peak_width,omitempty"`
	MinDistance         *int     `json:"min_distance,omitempty"`
}

func ptrInt(v int) *int             { return &v }
func ptrFloat64(v float64) *float64 { return &v }

// ParamsFromMap builds Params from a flat numeric mapping. Unrecognised
// keys are ignored; integer options are truncated. The method is not
// numeric and stays at its default.
func ParamsFromMap(m map[string]float64) Params {
	var p Params
	for k, v := range m {
		switch k {
		case "threshold":
			p.Threshold = ptrFloat64(v)
		case "margin_frames", "marginFrames":
			p.MarginFrames = ptrInt(int(v))
		case "difference_threshold", "differenceThreshold":
			p.DifferenceThreshold = ptrFloat64(v)
		case "sensitivity":
			p.Sensitivity = ptrFloat64(v)
		case "min_peak_width", "minPeakWidth":
			p.MinPeakWidth = ptrInt(int(v))
		case "max_peak_width", "maxPeakWidth":
			p.MaxPeakWidth = ptrInt(int(v))
		case "min_distance", "minDistance":
			p.MinDistance = ptrInt(int(v))
		}
	}
	return p
}

// Merge returns p with every set field of o applied on top. A non-empty
// o.Method replaces p.Method.
func (p Params) Merge(o Params) Params {
	if o.Method != "" {
		p.Method = o.Method
	}
	for _, kv := range []struct{ src, dst **float64 }{
		{&o.Threshold, &p.Threshold},
		{&o.DifferenceThreshold, &p.DifferenceThreshold},
		{&o.Sensitivity, &p.Sensitivity},
	} {
		if *kv.src != nil {
			*kv.dst = *kv.src
		}
	}
	for _, kv := range []struct{ src, dst **int }{
		{&o.MarginFrames, &p.MarginFrames},
		{&o.MinPeakWidth, &p.MinPeakWidth},
		{&o.MaxPeakWidth, &p.MaxPeakWidth},
		{&o.MinDistance, &p.MinDistance},
	} {
		if *kv.src != nil {
			*kv.dst = *kv.src
		}
	}
	return p
}

// GetMethod returns the selected strategy, MethodThreshold when unset.
func (p Params) GetMethod() Method {
	if p.Method == "" {
		return MethodThreshold
	}
	return p.Method
}

// GetThreshold returns the absolute run level (default 105).
func (p Params) GetThreshold() float64 {
	if p.Threshold == nil {
		return 105
	}
	return *p.Threshold
}

// GetMarginFrames returns the configured margin (default 5).
func (p Params) GetMarginFrames() int {
	if p.MarginFrames == nil {
		return 5
	}
	return *p.MarginFrames
}

// GetDifferenceThreshold returns the green/red boundary (default 0.5).
func (p Params) GetDifferenceThreshold() float64 {
	if p.DifferenceThreshold == nil {
		return 0.5
	}
	return *p.DifferenceThreshold
}

// GetSensitivity returns the minimum apex height above the curve median
// (default 20).
func (p Params) GetSensitivity() float64 {
	if p.Sensitivity == nil {
		return 20
	}
	return *p.Sensitivity
}

// GetMinPeakWidth returns the narrowest accepted peak (default 3).
func (p Params) GetMinPeakWidth() int {
	if p.MinPeakWidth == nil {
		return 3
	}
	return *p.MinPeakWidth
}

// GetMaxPeakWidth returns the widest accepted peak (default 15).
func (p Params) GetMaxPeakWidth() int {
	if p.MaxPeakWidth == nil {
		return 15
	}
	return *p.MaxPeakWidth
}

// GetMinDistance returns the closest two peaks may sit (default 5).
func (p Params) GetMinDistance() int {
	if p.MinDistance == nil {
		return 5
	}
	return *p.MinDistance
}

// Validate rejects negative widths or distance and a minimum width above
// the maximum. Defaults apply to nil fields before the comparison.
func (p Params) Validate() error {
	for _, f := range []struct {
		name string
		v    *int
	}{
		{"margin_frames", p.MarginFrames},
		{"min_peak_width", p.MinPeakWidth},
		{"max_peak_width", p.MaxPeakWidth},
		{"min_distance", p.MinDistance},
	} {
		if f.v != nil && *f.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", f.name, *f.v)
		}
	}
	if minW, maxW := p.GetMinPeakWidth(), p.GetMaxPeakWidth(); minW > maxW {
		return fmt.Errorf("min_peak_width %d exceeds max_peak_width %d", minW, maxW)
	}
	return nil
}

// Segmenter returns the strategy selected by Method.
func (p Params) Segmenter() Segmenter {
	if p.GetMethod() == MethodMorphological {
		return MorphologicalSegmenter{
			Sensitivity:  p.GetSensitivity(),
			MinPeakWidth: p.GetMinPeakWidth(),
			MaxPeakWidth: p.GetMaxPeakWidth(),
			MinDistance:  p.GetMinDistance(),
		}
	}
	return ThresholdSegmenter{
		Threshold:    p.GetThreshold(),
		MarginFrames: p.GetMarginFrames(),
	}
}

// Detect segments curve with the selected strategy and classifies every
// span.
func Detect(curve []float64, p Params) []Peak {
	if len(curve) == 0 {
		return []Peak{}
	}
	spans := p.Segmenter().Segment(curve)
	peaks := Classify(curve, spans, p.GetDifferenceThreshold())
	for _, pk := range peaks {
		hem.Diagf("peaks: [%d,%d] max=%.1f fd=%.2f %s score=%.1f",
			pk.Start, pk.End, spanMax(curve, pk.Start, pk.End), pk.FrameDifference, pk.Color, pk.Score)
	}
	return peaks
}

// DetectGreenPeaks returns the stable peak intervals of curve using the
// absolute-threshold strategy, whatever p.Method says.
func DetectGreenPeaks(curve []float64, p Params) []Interval {
	p.Method = MethodThreshold
	return GreenIntervals(Detect(curve, p))
}
