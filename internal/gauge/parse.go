package gauge

import (
	"image"
	"strconv"
	"strings"
)

// Word is one recognised text fragment and its bounding box in the
// coordinates of the image that was read.
type Word struct {
	Text       string
	Box        image.Rectangle
	Confidence float64
}

// Panel labels as they appear on the console.
const (
	LabelGain        = "增益"
	LabelDepth       = "深度"
	LabelFrequency   = "频率"
	LabelEnhancement = "图像增强"
	LabelZoom        = "缩放倍数"
	LabelDistance    = "距离"
)

// liveMarkers are only drawn on the panel while the probe is imaging.
var liveMarkers = []string{"*", "米", "焦深", "管宽"}

// valueOffset is how far below a label's bottom edge its value sits.
const valueOffset = 20

// alphaMinColumn is the character position after which a trailing ":"
// introduces the angle rather than a distance.
const alphaMinColumn = 15

func normalize(text string) string {
	return strings.ReplaceAll(text, "：", ":")
}

// Panel is what ParsePanel recognised in the settings panel.
type Panel struct {
	Gain, Depth, Frequency, Enhancement *float64
	// ZoomScaler is nil when no zoom label was found.
	ZoomScaler *float64
	Frozen     bool
}

// ParsePanel interprets the words of the settings panel. Each numeric
// setting is read from the word directly below its label.
func ParsePanel(words []Word) Panel {
	var p Panel
	p.Frozen = true
	for _, w := range words {
		for _, m := range liveMarkers {
			if w.Text == m {
				p.Frozen = false
			}
		}
	}

	for _, w := range words {
		text := normalize(w.Text)
		if p.ZoomScaler == nil && strings.Contains(text, LabelZoom) {
			if _, after, ok := strings.Cut(text, ":"); ok {
				p.ZoomScaler = parseNumber(after)
			}
		}
	}

	targets := []struct {
		label string
		dst   **float64
	}{
		{LabelGain, &p.Gain},
		{LabelDepth, &p.Depth},
		{LabelFrequency, &p.Frequency},
		{LabelEnhancement, &p.Enhancement},
	}
	for _, w := range words {
		for _, t := range targets {
			if !strings.Contains(w.Text, t.label) {
				continue
			}
			if v, ok := valueBelow(words, w.Box); ok {
				*t.dst = parseNumber(v)
			}
		}
	}
	return p
}

// valueBelow returns the first word whose left or right edge falls
// strictly inside label's horizontal extent and whose vertical extent
// contains the point just below label.
func valueBelow(words []Word, label image.Rectangle) (string, bool) {
	y := label.Max.Y + valueOffset
	for _, w := range words {
		b := w.Box
		overlaps := (label.Min.X < b.Max.X && b.Max.X < label.Max.X) ||
			(label.Min.X < b.Min.X && b.Min.X < label.Max.X)
		if overlaps && b.Min.Y <= y && y <= b.Max.Y {
			return w.Text, true
		}
	}
	return "", false
}

// Measurements are the caliper readouts of the measurement overlay.
type Measurements struct {
	A, B, SkinDistance, Alpha *float64
}

// ParseMeasurements interprets the words of the measurement overlay.
// Lines look like "A:12.5mm", "B:3.0mm" and "距离:40.2mm  角度:15°". A later
// word overrides an earlier one for the same readout.
func ParseMeasurements(words []Word) Measurements {
	var m Measurements
	for _, w := range words {
		text := normalize(w.Text)
		hasMM := strings.Contains(text, "mm")

		if i := strings.Index(text, "A:"); i >= 0 && hasMM {
			if end := strings.Index(text, "mm"); end > i+2 {
				setIfParsed(&m.A, text[i+2:end])
			}
		}
		if i := strings.Index(text, "B:"); i >= 0 && hasMM {
			if end := strings.LastIndex(text, "mm"); end > i+2 {
				setIfParsed(&m.B, text[i+2:end])
			}
		}
		if strings.Contains(text, LabelDistance) && hasMM {
			colon, end := strings.Index(text, ":"), strings.Index(text, "mm")
			if colon >= 0 && end > colon+1 {
				setIfParsed(&m.SkinDistance, text[colon+1:end])
			}
		}

		runes := []rune(text)
		last := -1
		for i, r := range runes {
			if r == ':' {
				last = i
			}
		}
		if last >= 0 && last+1 > alphaMinColumn {
			alpha := strings.ReplaceAll(string(runes[last+1:]), "°", "")
			setIfParsed(&m.Alpha, alpha)
		}
	}
	return m
}

func setIfParsed(dst **float64, s string) {
	if v := parseNumber(s); v != nil {
		*dst = v
	}
}

func parseNumber(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &v
}
