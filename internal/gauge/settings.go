// Package gauge reads the ultrasound console's on-screen settings panel and
// measurement overlay. Text recognition is pluggable behind Reader; this
// package only interprets the recognised words.
package gauge

import (
	"math"
)

// Settings is an immutable snapshot of the instrument state at the time a
// video was captured. Nil fields were not recognised.
type Settings struct {
	Gain        *float64 `json:"gain_db,omitempty"`
	Depth       *float64 `json:"depth_cm,omitempty"`
	Frequency   *float64 `json:"frequency_mhz,omitempty"`
	Enhancement *float64 `json:"enhancement,omitempty"`
	ZoomScaler  float64  `json:"zoom_scaler"`
	Frozen      bool     `json:"frozen"`

	SkinDistance *float64 `json:"skin_distance_mm,omitempty"`
	A            *float64 `json:"a_mm,omitempty"`
	B            *float64 `json:"b_mm,omitempty"`
	Alpha        *float64 `json:"alpha_deg,omitempty"`

	PointsPerMM *int `json:"points_per_mm,omitempty"`
}

// DefaultSettings returns the state before anything has been read.
func DefaultSettings() Settings {
	return Settings{ZoomScaler: 1.0}
}

// depthScalePixels is the on-screen height in pixels of the depth ruler
// from its zero tick to its last tick.
const depthScalePixels = 734

// PointsPerMM returns the image pixels per millimetre of tissue for a
// display depth in centimetres and zoom factor, rounded half up. ok is
// false when either input is non-positive.
func PointsPerMM(depthCM, zoom float64) (int, bool) {
	if depthCM <= 0 || zoom <= 0 {
		return 0, false
	}
	v := 1 / (depthCM * 10 / zoom / depthScalePixels)
	return int(math.Floor(v + 0.5)), true
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Clone returns a deep copy so callers can hold a snapshot safely.
func (s Settings) Clone() Settings {
	out := s
	out.Gain = clonePtr(s.Gain)
	out.Depth = clonePtr(s.Depth)
	out.Frequency = clonePtr(s.Frequency)
	out.Enhancement = clonePtr(s.Enhancement)
	out.SkinDistance = clonePtr(s.SkinDistance)
	out.A = clonePtr(s.A)
	out.B = clonePtr(s.B)
	out.Alpha = clonePtr(s.Alpha)
	out.PointsPerMM = clonePtr(s.PointsPerMM)
	return out
}
