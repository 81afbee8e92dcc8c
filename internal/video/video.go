// Package video provides the decoded-video collaborators that feed the
// frame sampler: in-memory frames, image-sequence directories, an
// ffmpeg/ffprobe subprocess and (with -tags=gocv) OpenCV.
package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"os"

	"github.com/banshee-data/hem.analyzer/internal/hem/l1frames"
)

// ErrNoFrames is returned when a source has no decodable frames at all.
var ErrNoFrames = errors.New("video has no frames")

// ToGray converts img to 8-bit luma. Colour images use the ITU-R 601
// weights (0.299, 0.587, 0.114). A *image.Gray is returned unchanged.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

// Options select how FileOpener decodes a path.
type Options struct {
	// FPS is the frame rate of image-sequence directories, which carry
	// none of their own. Ignored for video files.
	FPS float64
	// FFmpegPath and FFprobePath override the binaries found on PATH.
	FFmpegPath  string
	FFprobePath string
	// Backend forces "ffmpeg" or "gocv" for video files. Empty picks gocv
	// when compiled in and ffmpeg otherwise.
	Backend string
}

// FileOpener returns an Opener for path. Directories are read as image
// sequences; anything else is treated as a video container.
func FileOpener(ctx context.Context, path string, opts Options) (l1frames.Opener, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}
	if info.IsDir() {
		return func() (l1frames.Source, error) {
			src, err := NewImageDirSource(path, opts.FPS)
			if err != nil {
				return nil, err
			}
			return src, nil
		}, nil
	}

	backend := opts.Backend
	if backend == "" {
		backend = "ffmpeg"
		if GocvAvailable {
			backend = "gocv"
		}
	}
	switch backend {
	case "ffmpeg":
		cfg := FFmpegConfig{FFmpegPath: opts.FFmpegPath, FFprobePath: opts.FFprobePath}
		return func() (l1frames.Source, error) {
			src, err := NewFFmpegSource(ctx, path, cfg)
			if err != nil {
				return nil, err
			}
			return src, nil
		}, nil
	case "gocv":
		return func() (l1frames.Source, error) {
			src, err := NewGocvSource(path)
			if err != nil {
				return nil, err
			}
			return src, nil
		}, nil
	}
	return nil, fmt.Errorf("unknown video backend %q", backend)
}
