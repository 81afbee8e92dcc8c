package l1frames

import (
	"math"

	"github.com/banshee-data/hem.analyzer/internal/hem"
)

// minSampleFPS bounds the requested rate so the stride stays finite.
const minSampleFPS = 0.1

// Stride returns how many native frames separate two sampled frames:
// max(round(fps / max(sampleFPS, 0.1)), 1). Halves round to even.
func Stride(fps, sampleFPS float64) int {
	fps = EffectiveFPS(fps)
	s := int(math.RoundToEven(fps / math.Max(sampleFPS, minSampleFPS)))
	if s < 1 {
		return 1
	}
	return s
}

// Sampler walks a Source once, yielding every stride-th frame.
// It is not restartable; open a new Source for another pass.
type Sampler struct {
	src    Source
	fps    float64
	stride int
	next   int // native index of the next frame Read will return
	done   bool
}

// NewSampler creates a Sampler over src targeting sampleFPS frames per second.
func NewSampler(src Source, sampleFPS float64) *Sampler {
	fps := EffectiveFPS(src.FPS())
	s := &Sampler{
		src:    src,
		fps:    fps,
		stride: Stride(fps, sampleFPS),
	}
	hem.Diagf("sampler: fps=%.3f sample_fps=%.3f stride=%d", fps, sampleFPS, s.stride)
	return s
}

// FPS returns the effective native frame rate used for timestamps.
func (s *Sampler) FPS() float64 { return s.fps }

// Stride returns the sampling stride.
func (s *Sampler) Stride() int { return s.stride }

// Next returns the next sampled frame. ok is false once the source is
// exhausted; every later call also returns false.
func (s *Sampler) Next() (SampledFrame, bool) {
	for !s.done {
		frame, ok := s.src.Read()
		if !ok {
			s.done = true
			break
		}
		idx := s.next
		s.next++
		if idx%s.stride != 0 {
			continue
		}
		return SampledFrame{
			Pixels:    frame,
			Timestamp: float64(idx) / s.fps,
			Index:     idx,
		}, true
	}
	return SampledFrame{}, false
}

// FramesRead returns how many native frames have been consumed.
func (s *Sampler) FramesRead() int { return s.next }
