//go:build gocv
// +build gocv

package video

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/banshee-data/hem.analyzer/internal/hem"
)

// GocvAvailable reports whether the OpenCV backend is compiled in.
const GocvAvailable = true

// GocvSource decodes a video file with OpenCV's VideoCapture.
// This type is only available when building with the 'gocv' build tag.
type GocvSource struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
	gray    gocv.Mat
	fps     float64
	width   int
	height  int
}

// NewGocvSource opens path for sequential decoding.
func NewGocvSource(path string) (*GocvSource, error) {
	capture, err := gocv.OpenVideoCapture(path)
	if err != nil {
		return nil, fmt.Errorf("open video capture %s: %w", path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("video capture %s is not opened", path)
	}
	s := &GocvSource{
		capture: capture,
		mat:     gocv.NewMat(),
		gray:    gocv.NewMat(),
		fps:     capture.Get(gocv.VideoCaptureFPS),
		width:   int(capture.Get(gocv.VideoCaptureFrameWidth)),
		height:  int(capture.Get(gocv.VideoCaptureFrameHeight)),
	}
	hem.Diagf("gocv: decoding %s %dx%d @ %.3f fps", path, s.width, s.height, s.fps)
	return s, nil
}

func (s *GocvSource) FPS() float64     { return s.fps }
func (s *GocvSource) Size() (int, int) { return s.width, s.height }

// Read decodes the next frame and converts it to grayscale.
func (s *GocvSource) Read() (*image.Gray, bool) {
	if !s.capture.Read(&s.mat) || s.mat.Empty() {
		return nil, false
	}
	src := s.mat
	if s.mat.Channels() > 1 {
		gocv.CvtColor(s.mat, &s.gray, gocv.ColorBGRToGray)
		src = s.gray
	}
	img, err := src.ToImage()
	if err != nil {
		hem.Opsf("gocv: frame conversion failed: %v", err)
		return nil, false
	}
	return ToGray(img), true
}

// Close releases the capture and scratch matrices.
func (s *GocvSource) Close() error {
	s.mat.Close()
	s.gray.Close()
	return s.capture.Close()
}
