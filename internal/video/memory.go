package video

import (
	"image"

	"github.com/banshee-data/hem.analyzer/internal/hem/l1frames"
)

// MemorySource replays a fixed slice of frames.
type MemorySource struct {
	fps    float64
	frames []*image.Gray
	pos    int
}

// NewMemorySource returns a source over frames at the given rate.
func NewMemorySource(fps float64, frames []*image.Gray) *MemorySource {
	return &MemorySource{fps: fps, frames: frames}
}

// MemoryOpener returns an Opener that starts a fresh pass over frames on
// every call.
func MemoryOpener(fps float64, frames []*image.Gray) l1frames.Opener {
	return func() (l1frames.Source, error) {
		if len(frames) == 0 {
			return nil, ErrNoFrames
		}
		return NewMemorySource(fps, frames), nil
	}
}

func (m *MemorySource) FPS() float64 { return m.fps }

func (m *MemorySource) Size() (int, int) {
	if len(m.frames) == 0 {
		return 0, 0
	}
	b := m.frames[0].Bounds()
	return b.Dx(), b.Dy()
}

func (m *MemorySource) Read() (*image.Gray, bool) {
	if m.pos >= len(m.frames) {
		return nil, false
	}
	f := m.frames[m.pos]
	m.pos++
	return f, true
}

func (m *MemorySource) Close() error { return nil }
