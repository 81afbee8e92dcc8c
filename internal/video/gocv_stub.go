//go:build !gocv
// +build !gocv

package video

import (
	"errors"

	"github.com/banshee-data/hem.analyzer/internal/hem/l1frames"
)

// GocvAvailable reports whether the OpenCV backend is compiled in.
const GocvAvailable = false

// NewGocvSource is a stub implementation when OpenCV support is disabled.
// Build with -tags=gocv to enable it.
func NewGocvSource(path string) (l1frames.Source, error) {
	return nil, errors.New("gocv support not enabled: rebuild with -tags=gocv to decode with OpenCV")
}
