// Package l5peaks owns Layer 5 (Peaks) of the analysis pipeline.
//
// Responsibilities: segmenting a brightness curve into peak spans,
// measuring how the curve settles after each span, and classifying spans
// as stable (green) or decaying (red).
// Key types: Segmenter, ThresholdSegmenter, MorphologicalSegmenter, Span,
// Peak, Params.
//
// Two segmentation strategies share one contract (curve in, spans out) so
// classification and scoring are written once.
//
// Dependency rule: L5 operates on plain curves and may import only the
// shared hem helpers.
package l5peaks
