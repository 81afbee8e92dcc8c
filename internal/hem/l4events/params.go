package l4events

import (
	"fmt"
	"math"
	"strings"
)

// Method names one detection heuristic.
type Method string

const (
	MethodSudden    Method = "sudden"
	MethodThreshold Method = "threshold"
	MethodRelative  Method = "relative"
)

// AllMethods lists every heuristic in evaluation order.
var AllMethods = []Method{MethodSudden, MethodThreshold, MethodRelative}

// ParseMethods parses a comma-separated method list. Blank entries are
// skipped; unknown names are an error.
func ParseMethods(s string) ([]Method, error) {
	var out []Method
	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		m := Method(name)
		switch m {
		case MethodSudden, MethodThreshold, MethodRelative:
			out = append(out, m)
		default:
			return nil, fmt.Errorf("unknown detection method %q", name)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no detection methods in %q", s)
	}
	return out, nil
}

// Params overlays the detector defaults. Nil fields use the default.
type Params struct {
	SmoothK        *int     `json:"smooth_k,omitempty"`
	BaselineN      *int     `json:"baseline_n,omitempty"`
	SuddenK        *float64 `json:"sudden_k,omitempty"`
	SuddenMin      *float64 `json:"sudden_min,omitempty"`
	ThresholdDelta *float64 `json:"threshold_delta,omitempty"`
	ThresholdHold  *int     `json:"threshold_hold,omitempty"`
	RelativeDelta  *float64 `json:"relative_delta,omitempty"`
}

func ptrInt(v int) *int             { return &v }
func ptrFloat64(v float64) *float64 { return &v }

// ParamsFromMap builds Params from a flat numeric mapping. Unrecognised
// keys are ignored; integer options are truncated.
func ParamsFromMap(m map[string]float64) Params {
	var p Params
	for k, v := range m {
		switch k {
		case "smooth_k":
			p.SmoothK = ptrInt(int(v))
		case "baseline_n":
			p.BaselineN = ptrInt(int(v))
		case "sudden_k":
			p.SuddenK = ptrFloat64(v)
		case "sudden_min":
			p.SuddenMin = ptrFloat64(v)
		case "threshold_delta":
			p.ThresholdDelta = ptrFloat64(v)
		case "threshold_hold":
			p.ThresholdHold = ptrInt(int(v))
		case "relative_delta":
			p.RelativeDelta = ptrFloat64(v)
		}
	}
	return p
}

// GetSmoothK returns the moving-average window (default 3).
func (p Params) GetSmoothK() int {
	if p.SmoothK == nil {
		return 3
	}
	return *p.SmoothK
}

// GetBaselineN returns the number of leading samples whose median is the
// baseline. The default is round(0.2*n) clamped to [5,20].
func (p Params) GetBaselineN(n int) int {
	if p.BaselineN != nil {
		return *p.BaselineN
	}
	b := int(math.Round(0.2 * float64(n)))
	return min(max(b, 5), 20)
}

// GetSuddenK returns the MAD multiplier for sudden jumps (default 6).
func (p Params) GetSuddenK() float64 {
	if p.SuddenK == nil {
		return 6.0
	}
	return *p.SuddenK
}

// GetSuddenMin returns the minimum sudden jump (default 4).
func (p Params) GetSuddenMin() float64 {
	if p.SuddenMin == nil {
		return 4.0
	}
	return *p.SuddenMin
}

// GetThresholdDelta returns the excess over baseline for the threshold
// method (default 8).
func (p Params) GetThresholdDelta() float64 {
	if p.ThresholdDelta == nil {
		return 8.0
	}
	return *p.ThresholdDelta
}

// GetThresholdHold returns how many consecutive samples must exceed the
// threshold before an event fires (default 1, never below 1).
func (p Params) GetThresholdHold() int {
	if p.ThresholdHold == nil || *p.ThresholdHold < 1 {
		return 1
	}
	return *p.ThresholdHold
}

// GetRelativeDelta returns the ROI-minus-reference margin (default 6).
func (p Params) GetRelativeDelta() float64 {
	if p.RelativeDelta == nil {
		return 6.0
	}
	return *p.RelativeDelta
}
