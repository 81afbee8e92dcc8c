// Package l3series owns Layer 3 (Series) of the analysis pipeline.
//
// Responsibilities: accumulating per-frame metrics into a time-ordered
// series and projecting it onto single-statistic value streams for the
// detectors.
// Key types: Series, Builder, BuildOptions.
//
// Dependency rule: L3 may depend on L1 and L2, never on L4+.
package l3series
