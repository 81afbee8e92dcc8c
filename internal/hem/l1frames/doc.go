// Package l1frames owns Layer 1 (Frames) of the analysis pipeline.
//
// Responsibilities: the decoded-video Source contract, selecting a
// subsequence of frames at an approximate target rate, and stamping each
// selected frame with its native position and time.
// Key types: Source, Opener, SampledFrame, Sampler.
//
// Dependency rule: L1 depends only on the hem helpers.
package l1frames
