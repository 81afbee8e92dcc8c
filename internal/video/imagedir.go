package video

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/banshee-data/hem.analyzer/internal/hem"
)

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// ImageDirSource reads a directory of still frames in lexical file order.
type ImageDirSource struct {
	fps           float64
	paths         []string
	pos           int
	width, height int
	first         *image.Gray
}

// NewImageDirSource lists the image files in dir. The first frame is
// decoded up front to learn the frame size.
func NewImageDirSource(dir string, fps float64) (*ImageDirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoFrames)
	}
	sort.Strings(paths)

	first, err := decodeGray(paths[0])
	if err != nil {
		return nil, err
	}
	b := first.Bounds()
	return &ImageDirSource{fps: fps, paths: paths, width: b.Dx(), height: b.Dy(), first: first}, nil
}

func decodeGray(path string) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return ToGray(img), nil
}

func (s *ImageDirSource) FPS() float64     { return s.fps }
func (s *ImageDirSource) Size() (int, int) { return s.width, s.height }
func (s *ImageDirSource) Close() error     { return nil }

// Len returns the number of frame files.
func (s *ImageDirSource) Len() int { return len(s.paths) }

// Read decodes the next file. A file that fails to decode or changes the
// frame size ends the stream.
func (s *ImageDirSource) Read() (*image.Gray, bool) {
	if s.pos >= len(s.paths) {
		return nil, false
	}
	path := s.paths[s.pos]
	s.pos++

	if s.pos == 1 && s.first != nil {
		f := s.first
		s.first = nil
		return f, true
	}

	img, err := decodeGray(path)
	if err != nil {
		hem.Opsf("frame source stopped: %v", err)
		return nil, false
	}
	if b := img.Bounds(); b.Dx() != s.width || b.Dy() != s.height {
		hem.Opsf("frame source stopped: %s is %dx%d, want %dx%d", path, b.Dx(), b.Dy(), s.width, s.height)
		return nil, false
	}
	return img, true
}
