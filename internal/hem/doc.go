// Package hem holds the helpers shared by every layer of the brightness
// analysis pipeline: robust statistics over float series and the
// ops/diag/trace log streams.
//
// The pipeline itself is split into layers, each in its own package:
//
//	l1frames   frame sampling from a decoded video source
//	l2roi      ROI resolution and per-frame statistics
//	l3series   ordered per-frame metric series
//	l4events   sudden / threshold / relative event detection
//	l5peaks    peak segmentation and stability classification
//
// Dependency rule: a layer may depend on lower layers and on this package,
// never on a higher layer. The pipeline package wires them together for a
// single analysis request.
package hem
