// Package l4events owns Layer 4 (Events) of the analysis pipeline.
//
// Responsibilities: smoothing and baselining the ROI mean series and
// running the sudden-jump, sustained-threshold and reference-relative
// heuristics over it.
// Key types: Method, Params, Event, Result.
//
// Dependency rule: L4 consumes plain value streams; it does not import
// L1-L3 so that any series can be screened.
package l4events
