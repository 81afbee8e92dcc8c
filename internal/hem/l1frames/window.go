package l1frames

// ReadWindow reads src from its current position and returns the frames
// whose native index lies in [from, to). Reading stops at index to-1 or
// when the source is exhausted, whichever comes first.
func ReadWindow(src Source, from, to int) []SampledFrame {
	if from < 0 {
		from = 0
	}
	fps := EffectiveFPS(src.FPS())
	var out []SampledFrame
	for idx := 0; idx < to; idx++ {
		frame, ok := src.Read()
		if !ok {
			break
		}
		if idx < from {
			continue
		}
		out = append(out, SampledFrame{Pixels: frame, Timestamp: float64(idx) / fps, Index: idx})
	}
	return out
}
