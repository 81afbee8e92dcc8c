package l1frames

import "image"

// DefaultFPS is assumed when a source reports a non-positive frame rate.
const DefaultFPS = 25.0

// Source is a decoded video yielding grayscale frames in native order.
// Implementations live in internal/video.
type Source interface {
	// FPS returns the native frame rate. Values <= 0 mean "unknown".
	FPS() float64

	// Size returns the frame width and height in pixels.
	Size() (width, height int)

	// Read returns the next frame. ok is false once the source is
	// exhausted or the decoder failed; the two are not distinguished.
	Read() (frame *image.Gray, ok bool)

	// Close releases decoder resources.
	Close() error
}

// Opener opens a fresh Source positioned at the first frame. Every pass
// over a video opens its own Source; sources are never rewound.
type Opener func() (Source, error)

// SampledFrame is a frame selected by the Sampler.
type SampledFrame struct {
	Pixels *image.Gray
	// Timestamp is Index / fps, in seconds.
	Timestamp float64
	// Index is the native (pre-sampling) frame position.
	Index int
}

// EffectiveFPS applies the DefaultFPS fallback to a reported rate.
func EffectiveFPS(fps float64) float64 {
	if fps <= 0 {
		return DefaultFPS
	}
	return fps
}
