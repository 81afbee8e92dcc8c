// Package charts renders diagnostic views of an analysis: a gonum/plot PNG
// of a brightness curve with its segmented peaks, and go-echarts HTML pages
// of a ROI series with its detected events.
package charts
