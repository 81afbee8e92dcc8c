// Command roi-analyze runs the brightness analysis on one video and prints
// the report as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/banshee-data/hem.analyzer/internal/charts"
	"github.com/banshee-data/hem.analyzer/internal/config"
	"github.com/banshee-data/hem.analyzer/internal/gauge"
	"github.com/banshee-data/hem.analyzer/internal/hem"
	"github.com/banshee-data/hem.analyzer/internal/hem/l2roi"
	"github.com/banshee-data/hem.analyzer/internal/hem/l5peaks"
	"github.com/banshee-data/hem.analyzer/internal/hem/pipeline"
	"github.com/banshee-data/hem.analyzer/internal/security"
	"github.com/banshee-data/hem.analyzer/internal/video"
)

// Config holds configuration for one offline analysis.
type Config struct {
	Input       string
	ROI         string
	FPS         float64
	SampleFPS   float64
	Methods     string
	TuningFile  string
	Backend     string
	Workers     int
	MaxFrames   int
	WithStd     bool
	Peaks       bool
	OutputJSON  string
	OutputHTML  string
	OutputPNG   string
	GaugeImage  string
	OCRLanguage string
	Verbose     bool
}

// Output is the JSON document the tool writes.
type Output struct {
	*pipeline.Report
	Peaks []l5peaks.Peak     `json:"peaks,omitempty"`
	Green []l5peaks.Interval `json:"green,omitempty"`
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{}

	fs.StringVar(&cfg.Input, "video", "", "Video file or directory of frame images")
	fs.StringVar(&cfg.ROI, "roi", "", "Normalised ROI as x,y,w,h (e.g. 0.4,0.3,0.2,0.2)")
	fs.Float64Var(&cfg.FPS, "fps", 25, "Frame rate of an image directory")
	fs.Float64Var(&cfg.SampleFPS, "sample-fps", 0, "Sampling rate (default from config)")
	fs.StringVar(&cfg.Methods, "methods", "", "Comma-separated detection methods (default from config)")
	fs.StringVar(&cfg.TuningFile, "config", "", "Tuning JSON file")
	fs.StringVar(&cfg.Backend, "backend", "", "Video backend: ffmpeg or gocv")
	fs.IntVar(&cfg.Workers, "workers", 0, "Parallel ROI workers (default from config)")
	fs.IntVar(&cfg.MaxFrames, "max-frames", -1, "Stop after this many samples (default from config)")
	fs.BoolVar(&cfg.WithStd, "std", false, "Include the ROI standard deviation")
	fs.BoolVar(&cfg.Peaks, "peaks", false, "Segment the ROI curve into green/red peaks")
	fs.StringVar(&cfg.OutputJSON, "json", "", "Write JSON here instead of stdout")
	fs.StringVar(&cfg.OutputHTML, "html", "", "Write an HTML chart of the series")
	fs.StringVar(&cfg.OutputPNG, "png", "", "Write a PNG plot of the peaks (implies -peaks)")
	fs.StringVar(&cfg.GaugeImage, "gauge-image", "", "Console screenshot to read instrument settings from (needs -tags=ocr)")
	fs.StringVar(&cfg.OCRLanguage, "ocr-lang", "chi_sim+eng", "Tesseract languages for -gauge-image")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Enable diagnostic logging")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.Input == "" {
		return Config{}, fmt.Errorf("-video is required")
	}
	if cfg.ROI == "" {
		return Config{}, fmt.Errorf("-roi is required")
	}
	if cfg.OutputPNG != "" {
		cfg.Peaks = true
	}
	return cfg, nil
}

func parseROI(s string) (l2roi.NormalizedROI, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return l2roi.NormalizedROI{}, fmt.Errorf("roi %q: want x,y,w,h", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return l2roi.NormalizedROI{}, fmt.Errorf("roi %q: %w", s, err)
		}
		v[i] = f
	}
	return l2roi.NormalizedROI{X: v[0], Y: v[1], W: v[2], H: v[3]}, nil
}

// tuning loads the config file and applies the command-line overrides.
func tuning(cfg Config) (*config.TuningConfig, error) {
	base := config.DefaultTuningConfig()
	if cfg.TuningFile != "" {
		loaded, err := config.LoadTuningConfig(cfg.TuningFile)
		if err != nil {
			return nil, err
		}
		base = loaded
	}
	o := config.EmptyTuningConfig()
	if cfg.SampleFPS > 0 {
		o.SampleFPS = &cfg.SampleFPS
	}
	if cfg.Methods != "" {
		o.Methods = &cfg.Methods
	}
	if cfg.Workers > 0 {
		o.Workers = &cfg.Workers
	}
	if cfg.MaxFrames >= 0 {
		o.MaxFrames = &cfg.MaxFrames
	}
	if cfg.WithStd {
		o.WithStd = &cfg.WithStd
	}
	return base.Overlay(o)
}

func readGauge(ctx context.Context, path, lang string) (*gauge.Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	reader, err := gauge.NewTesseractReader(strings.Split(lang, "+")...)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	s, err := gauge.Scan(ctx, reader, img, gauge.DefaultLayout(), gauge.NewTracker())
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func run(ctx context.Context, cfg Config, stdout io.Writer) error {
	for _, out := range []string{cfg.OutputJSON, cfg.OutputHTML, cfg.OutputPNG} {
		if out == "" {
			continue
		}
		if err := security.ValidateOutputPath(out); err != nil {
			return err
		}
	}

	roi, err := parseROI(cfg.ROI)
	if err != nil {
		return err
	}
	tc, err := tuning(cfg)
	if err != nil {
		return fmt.Errorf("tuning: %w", err)
	}
	req := tc.Request(roi)

	if cfg.GaugeImage != "" {
		settings, err := readGauge(ctx, cfg.GaugeImage, cfg.OCRLanguage)
		if err != nil {
			return fmt.Errorf("gauge: %w", err)
		}
		req.Settings = settings
	}

	opener, err := video.FileOpener(ctx, cfg.Input, video.Options{FPS: cfg.FPS, Backend: cfg.Backend})
	if err != nil {
		return err
	}
	report, err := pipeline.Analyze(ctx, opener, req)
	if err != nil {
		return err
	}

	out := Output{Report: report}
	if cfg.Peaks {
		pp := tc.PeakParams()
		out.Peaks = l5peaks.Detect(report.Series.ROIMeans(), pp)
		out.Green = l5peaks.GreenIntervals(out.Peaks)
		if cfg.OutputPNG != "" {
			if err := charts.SavePeaksPNG(cfg.OutputPNG, report.Series.ROIMeans(), out.Peaks, pp.GetThreshold()); err != nil {
				return err
			}
		}
	}

	if cfg.OutputHTML != "" {
		page, err := charts.RenderSeries(report.Series, report.Events, report.Baseline)
		if err != nil {
			return err
		}
		if err := os.WriteFile(cfg.OutputHTML, page, 0644); err != nil {
			return err
		}
	}

	w := stdout
	if cfg.OutputJSON != "" {
		f, err := os.Create(cfg.OutputJSON)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	writers := hem.LogWriters{Ops: os.Stderr}
	if cfg.Verbose {
		writers.Diag = os.Stderr
	}
	hem.SetLogWriters(writers)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		log.Fatalf("analysis failed: %v", err)
	}
}
