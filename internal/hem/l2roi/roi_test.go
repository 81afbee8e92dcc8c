package l2roi

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/hem.analyzer/internal/hem/l1frames"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name string
		in   NormalizedROI
		want NormalizedROI
	}{
		{"inside", NormalizedROI{0.1, 0.2, 0.3, 0.4}, NormalizedROI{0.1, 0.2, 0.3, 0.4}},
		{"negative origin", NormalizedROI{-0.5, -1, 0.5, 0.5}, NormalizedROI{0, 0, 0.5, 0.5}},
		{"width uses clamped x", NormalizedROI{1.5, 0, 0.5, 0.5}, NormalizedROI{1, 0, 0, 0.5}},
		{"overflowing extent", NormalizedROI{0.8, 0.6, 0.5, 0.9}, NormalizedROI{0.8, 0.6, 0.2, 0.4}},
		{"negative extent", NormalizedROI{0.2, 0.2, -1, -1}, NormalizedROI{0.2, 0.2, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Clamp()
			assert.InDelta(t, tt.want.X, got.X, 1e-12)
			assert.InDelta(t, tt.want.Y, got.Y, 1e-12)
			assert.InDelta(t, tt.want.W, got.W, 1e-12)
			assert.InDelta(t, tt.want.H, got.H, 1e-12)
		})
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		roi  NormalizedROI
		w, h int
		want PixelROI
	}{
		{"full frame", NormalizedROI{0, 0, 1, 1}, 640, 480, PixelROI{0, 0, 640, 480}},
		{"truncates toward zero", NormalizedROI{0.25, 0.5, 0.3, 0.25}, 10, 10, PixelROI{2, 5, 5, 7}},
		{"zero extent widened to one pixel", NormalizedROI{0.5, 0.5, 0, 0}, 100, 50, PixelROI{50, 25, 51, 26}},
		{"overflow clipped", NormalizedROI{0.9, 0.9, 0.5, 0.5}, 10, 10, PixelROI{9, 9, 10, 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.roi.Resolve(tt.w, tt.h)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveInvalid(t *testing.T) {
	tests := []struct {
		name string
		roi  NormalizedROI
		w, h int
	}{
		{"origin at right edge", NormalizedROI{1, 0, 0.5, 0.5}, 100, 100},
		{"origin at bottom edge", NormalizedROI{0, 1.2, 0.5, 0.5}, 100, 100},
		{"empty frame", NormalizedROI{0, 0, 1, 1}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.roi.Resolve(tt.w, tt.h)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidROI))
		})
	}
}

// Every valid normalized ROI on every frame size must land inside the frame
// with at least one pixel on each axis.
func TestResolveBoundsProperty(t *testing.T) {
	steps := []float64{0, 0.001, 0.1, 0.33, 0.5, 0.75, 0.999}
	sizes := [][2]int{{1, 1}, {3, 7}, {640, 480}, {1919, 1081}}
	for _, size := range sizes {
		for _, x := range steps {
			for _, y := range steps {
				for _, w := range steps {
					roi := NormalizedROI{X: x, Y: y, W: w * (1 - x), H: w * (1 - y)}
					p, err := roi.Resolve(size[0], size[1])
					require.NoError(t, err, fmt.Sprintf("%+v in %v", roi, size))
					assert.True(t, 0 <= p.X0 && p.X0 < p.X1 && p.X1 <= size[0], "x bounds %s in %v", p, size)
					assert.True(t, 0 <= p.Y0 && p.Y0 < p.Y1 && p.Y1 <= size[1], "y bounds %s in %v", p, size)
				}
			}
		}
	}
}

func grayFrom(w, h int, fill func(x, y int) uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: fill(x, y)})
		}
	}
	return img
}

func TestRegion(t *testing.T) {
	// Left half 200, right half 50.
	img := grayFrom(4, 2, func(x, _ int) uint8 {
		if x < 2 {
			return 200
		}
		return 50
	})
	th := DefaultThresholds()

	t.Run("whole frame", func(t *testing.T) {
		rs := Region(img, PixelROI{0, 0, 4, 2}, th)
		assert.InDelta(t, 125.0, rs.Mean, 1e-12)
		assert.InDelta(t, 75.0, rs.Std, 1e-12)
		assert.InDelta(t, 50.0, rs.HighRatio, 1e-12)
		// Mean 125 > 105 so the conditional ratio is computed.
		assert.InDelta(t, 50.0, rs.ConditionalRatio, 1e-12)
	})

	t.Run("dark half keeps conditional ratio at zero", func(t *testing.T) {
		rs := Region(img, PixelROI{2, 0, 4, 2}, th)
		assert.InDelta(t, 50.0, rs.Mean, 1e-12)
		assert.Equal(t, 0.0, rs.HighRatio)
		assert.Equal(t, 0.0, rs.ConditionalRatio)
	})

	t.Run("high ratio is strict", func(t *testing.T) {
		flat := grayFrom(2, 2, func(int, int) uint8 { return 128 })
		rs := Region(flat, PixelROI{0, 0, 2, 2}, th)
		assert.Equal(t, 0.0, rs.HighRatio)
	})

	t.Run("empty rectangle", func(t *testing.T) {
		rs := Region(img, PixelROI{1, 1, 1, 2}, th)
		assert.True(t, math.IsNaN(rs.Mean))
		assert.True(t, math.IsNaN(rs.Std))
		assert.Equal(t, 0.0, rs.HighRatio)
		assert.Equal(t, 0.0, rs.ConditionalRatio)
	})
}

func TestGlobalMean(t *testing.T) {
	img := grayFrom(3, 3, func(x, y int) uint8 { return uint8(10 * (x + 3*y)) })
	assert.InDelta(t, 40.0, GlobalMean(img), 1e-12)

	sub := img.SubImage(image.Rect(1, 1, 3, 3)).(*image.Gray)
	// 40, 50, 70, 80
	assert.InDelta(t, 60.0, GlobalMean(sub), 1e-12)
}

func TestAnalyzer(t *testing.T) {
	img := grayFrom(10, 10, func(x, y int) uint8 {
		if x >= 5 && y >= 5 {
			return 250
		}
		return 20
	})
	a, err := NewAnalyzer(NormalizedROI{X: 0.5, Y: 0.5, W: 0.5, H: 0.5}, 10, 10, DefaultThresholds(), true)
	require.NoError(t, err)
	assert.Equal(t, PixelROI{5, 5, 10, 10}, a.PixelROI())

	m, err := a.Analyze(l1frames.SampledFrame{Pixels: img, Timestamp: 1.5, Index: 45})
	require.NoError(t, err)
	assert.Equal(t, 1.5, m.T)
	assert.Equal(t, 45, m.FrameIndex)
	assert.InDelta(t, 250.0, m.ROIMean, 1e-12)
	assert.InDelta(t, (25*250.0+75*20.0)/100, m.RefMean, 1e-12)
	require.NotNil(t, m.ROIStd)
	assert.InDelta(t, 0.0, *m.ROIStd, 1e-12)
	assert.Equal(t, 100.0, m.HighRatio)
	assert.Equal(t, 100.0, m.ConditionalRatio)
	assert.InDelta(t, 250.0, a.ROIMean(img), 1e-12)
}

func TestAnalyzerRejects(t *testing.T) {
	_, err := NewAnalyzer(NormalizedROI{X: 1, Y: 1, W: 1, H: 1}, 10, 10, DefaultThresholds(), false)
	assert.ErrorIs(t, err, ErrInvalidROI)

	a, err := NewAnalyzer(NormalizedROI{X: 0, Y: 0, W: 1, H: 1}, 10, 10, DefaultThresholds(), false)
	require.NoError(t, err)

	small := image.NewGray(image.Rect(0, 0, 4, 4))
	_, err = a.Analyze(l1frames.SampledFrame{Pixels: small})
	assert.ErrorIs(t, err, ErrInvalidROI)
	assert.True(t, math.IsNaN(a.ROIMean(small)))

	_, err = a.Analyze(l1frames.SampledFrame{})
	assert.ErrorIs(t, err, ErrInvalidROI)

	m, err := a.Analyze(l1frames.SampledFrame{Pixels: image.NewGray(image.Rect(0, 0, 10, 10))})
	require.NoError(t, err)
	assert.Nil(t, m.ROIStd)
}
