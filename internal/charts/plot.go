package charts

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/hem.analyzer/internal/hem/l5peaks"
)

var (
	curveColor     = color.RGBA{R: 60, G: 60, B: 60, A: 255}
	thresholdColor = color.RGBA{R: 120, G: 120, B: 220, A: 255}
	greenColor     = color.RGBA{R: 30, G: 170, B: 60, A: 255}
	redColor       = color.RGBA{R: 210, G: 40, B: 40, A: 255}
)

// PlotPeaks draws curve against sample index with a horizontal threshold
// line and every peak span overdrawn in its classification colour.
func PlotPeaks(curve []float64, peaks []l5peaks.Peak, threshold float64) (*plot.Plot, error) {
	if len(curve) == 0 {
		return nil, fmt.Errorf("empty curve")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Brightness curve - %d peaks", len(peaks))
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Brightness"

	pts := make(plotter.XYs, len(curve))
	for i, v := range curve {
		pts[i] = plotter.XY{X: float64(i), Y: v}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = curveColor
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("curve", line)

	thr := plotter.NewFunction(func(float64) float64 { return threshold })
	thr.Color = thresholdColor
	thr.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(thr)
	p.Legend.Add(fmt.Sprintf("threshold %.0f", threshold), thr)

	for _, pk := range peaks {
		if pk.Start < 0 || pk.End >= len(curve) || pk.Start > pk.End {
			continue
		}
		seg, err := plotter.NewLine(pts[pk.Start : pk.End+1])
		if err != nil {
			return nil, err
		}
		seg.Color = redColor
		if pk.Color == l5peaks.Green {
			seg.Color = greenColor
		}
		seg.Width = vg.Points(3)
		p.Add(seg)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// WritePeaksPNG renders PlotPeaks as a 14x6 inch PNG into w.
func WritePeaksPNG(w io.Writer, curve []float64, peaks []l5peaks.Peak, threshold float64) error {
	p, err := PlotPeaks(curve, peaks, threshold)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// SavePeaksPNG renders PlotPeaks to path.
func SavePeaksPNG(path string, curve []float64, peaks []l5peaks.Peak, threshold float64) error {
	p, err := PlotPeaks(curve, peaks, threshold)
	if err != nil {
		return err
	}
	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
