package l2roi

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidROI is returned when a region resolves to an empty or
// out-of-frame pixel rectangle. It is fatal for the whole request.
var ErrInvalidROI = errors.New("invalid roi")

// NormalizedROI is a rectangle in frame-relative coordinates, each in [0,1].
type NormalizedROI struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// PixelROI is a half-open pixel rectangle [X0,X1) x [Y0,Y1).
type PixelROI struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// Width returns X1-X0.
func (p PixelROI) Width() int { return p.X1 - p.X0 }

// Height returns Y1-Y0.
func (p PixelROI) Height() int { return p.Y1 - p.Y0 }

func (p PixelROI) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", p.X0, p.Y0, p.X1, p.Y1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(math.Min(v, hi), lo)
}

// Clamp limits X and Y to [0,1], then W to [0,1-X] and H to [0,1-Y]
// using the clamped origin.
func (r NormalizedROI) Clamp() NormalizedROI {
	x := clamp(r.X, 0, 1)
	y := clamp(r.Y, 0, 1)
	return NormalizedROI{
		X: x,
		Y: y,
		W: clamp(r.W, 0, 1-x),
		H: clamp(r.H, 0, 1-y),
	}
}

// Resolve converts r into pixel bounds for a width x height frame.
// Coordinates are clamped, scaled and truncated; each side is widened to
// at least one pixel and then clipped to the frame. A rectangle that is
// still empty or escapes the frame yields ErrInvalidROI.
func (r NormalizedROI) Resolve(width, height int) (PixelROI, error) {
	c := r.Clamp()
	w, h := float64(width), float64(height)

	p := PixelROI{
		X0: int(c.X * w),
		Y0: int(c.Y * h),
		X1: int((c.X + c.W) * w),
		Y1: int((c.Y + c.H) * h),
	}
	p.X1 = min(max(p.X1, p.X0+1), width)
	p.Y1 = min(max(p.Y1, p.Y0+1), height)

	if p.Width() <= 0 || p.Height() <= 0 {
		return p, fmt.Errorf("%w: size %dx%d for %+v in %dx%d frame", ErrInvalidROI, p.Width(), p.Height(), r, width, height)
	}
	if p.X0 < 0 || p.Y0 < 0 || p.X1 > width || p.Y1 > height {
		return p, fmt.Errorf("%w: %s outside %dx%d frame", ErrInvalidROI, p, width, height)
	}
	return p, nil
}
