package charts

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/hem.analyzer/internal/hem/l3series"
	"github.com/banshee-data/hem.analyzer/internal/hem/l4events"
	"github.com/banshee-data/hem.analyzer/internal/hem/l5peaks"
)

// AssetsHost is where rendered pages load the echarts scripts from.
var AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

func timeLabel(t float64) string { return strconv.FormatFloat(t, 'f', 3, 64) }

// RenderSeries renders the ROI and reference means over time with one mark
// point per event and a dashed baseline.
func RenderSeries(series l3series.Series, events []l4events.Event, baseline float64) ([]byte, error) {
	xs := make([]string, len(series))
	roi := make([]opts.LineData, len(series))
	ref := make([]opts.LineData, len(series))
	byTime := make(map[float64]float64, len(series))
	for i, m := range series {
		xs[i] = timeLabel(m.T)
		roi[i] = opts.LineData{Value: m.ROIMean}
		ref[i] = opts.LineData{Value: m.RefMean}
		byTime[m.T] = m.ROIMean
	}

	marks := make([]opts.MarkPointNameCoordItem, 0, len(events))
	for _, e := range events {
		marks = append(marks, opts.MarkPointNameCoordItem{
			Name:       string(e.Type),
			Coordinate: []interface{}{timeLabel(e.T), byTime[e.T]},
		})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "ROI brightness", Width: "100%", Height: "600px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "ROI brightness", Subtitle: fmt.Sprintf("samples=%d events=%d baseline=%.1f", len(series), len(events), baseline)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "grey level", NameLocation: "middle", NameGap: 35}),
	)
	line.SetXAxis(xs).
		AddSeries("roi", roi,
			charts.WithMarkPointNameCoordItemOpts(marks...),
			charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{Name: "baseline", YAxis: baseline}),
		).
		AddSeries("ref", ref)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderPeaks renders a brightness curve with its peaks shaded green or red
// and the segmentation threshold as a mark line.
func RenderPeaks(curve []float64, peaks []l5peaks.Peak, threshold float64) ([]byte, error) {
	xs := make([]int, len(curve))
	data := make([]opts.LineData, len(curve))
	for i, v := range curve {
		xs[i] = i
		data[i] = opts.LineData{Value: v}
	}

	areas := make([]opts.MarkAreaNameCoordItem, 0, len(peaks))
	for _, pk := range peaks {
		fill := "rgba(210,40,40,0.25)"
		if pk.Color == l5peaks.Green {
			fill = "rgba(30,170,60,0.25)"
		}
		areas = append(areas, opts.MarkAreaNameCoordItem{
			Name:        fmt.Sprintf("%s %.1f", pk.Color, pk.Score),
			Coordinate0: []interface{}{strconv.Itoa(pk.Start), nil},
			Coordinate1: []interface{}{strconv.Itoa(pk.End), nil},
			ItemStyle:   &opts.ItemStyle{Color: fill},
		})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Peaks", Width: "100%", Height: "600px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Brightness peaks", Subtitle: fmt.Sprintf("frames=%d peaks=%d", len(curve), len(peaks))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame", NameLocation: "middle", NameGap: 25}),
	)
	line.SetXAxis(xs).
		AddSeries("curve", data,
			charts.WithMarkAreaNameCoordItemOpts(areas...),
			charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{Name: "threshold", YAxis: threshold}),
		)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
