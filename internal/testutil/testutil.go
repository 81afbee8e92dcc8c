// Package testutil provides shared test utilities and fixtures.
//
// Fixtures here build synthetic frames and curves from the standard image
// types only, so any package can use them without import cycles.
package testutil

import (
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
)

// SampleCurve returns the reference brightness curve: a bright plateau at
// indices 5-9 that falls back, a sub-threshold hump, and a second bright
// plateau at 29-33 that settles slightly higher. Each call returns a new
// slice.
func SampleCurve() []float64 {
	return []float64{
		40, 42, 45, 48, 52, 108, 110, 112, 109, 107, 45, 43, 41,
		42, 44, 46, 49, 53, 55, 58, 60, 62, 61, 59, 45, 43, 41,
		42, 45, 110, 115, 118, 116, 113, 48, 46, 44, 42, 41,
	}
}

// UniformFrame returns a w x h frame filled with v.
func UniformFrame(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// GradientFrame returns a w x h frame whose pixel (x, y) is (x+y) mod 256.
func GradientFrame(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Pix[y*img.Stride+x] = uint8((x + y) % 256)
		}
	}
	return img
}

// PatchFrame returns a w x h frame at background level bg with the
// rectangle r set to fg.
func PatchFrame(w, h int, bg, fg uint8, r image.Rectangle) *image.Gray {
	img := UniformFrame(w, h, bg)
	r = r.Intersect(img.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Pix[y*img.Stride+x] = fg
		}
	}
	return img
}

// StepFrames returns n frames whose rectangle r is at level low before
// index stepAt and high from then on. The rest of each frame is at low.
func StepFrames(n, w, h int, r image.Rectangle, low, high uint8, stepAt int) []*image.Gray {
	frames := make([]*image.Gray, n)
	for i := range frames {
		if i < stepAt {
			frames[i] = UniformFrame(w, h, low)
		} else {
			frames[i] = PatchFrame(w, h, low, high, r)
		}
	}
	return frames
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// DecodeJSON decodes a recorded response body into v.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}
