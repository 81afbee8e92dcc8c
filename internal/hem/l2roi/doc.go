// Package l2roi owns Layer 2 (ROI statistics) of the analysis pipeline.
//
// Responsibilities: resolving a normalized region of interest into pixel
// bounds for a given frame size, and computing the per-frame brightness
// statistics (ROI mean and spread, high-brightness ratio, conditional
// ratio, whole-frame reference mean).
// Key types: NormalizedROI, PixelROI, Thresholds, Analyzer, FrameMetrics.
//
// Dependency rule: L2 may depend on L1, but never on L3+.
package l2roi
