// Command peak-detect segments a brightness curve into green and red peaks.
//
// The curve is read from a JSON file (a bare array or {"curve": [...]}) or
// from CSV/plain text with one or more values per line.
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/hem.analyzer/internal/charts"
	"github.com/banshee-data/hem.analyzer/internal/config"
	"github.com/banshee-data/hem.analyzer/internal/hem"
	"github.com/banshee-data/hem.analyzer/internal/hem/l5peaks"
	"github.com/banshee-data/hem.analyzer/internal/security"
)

// Config holds the tool flags.
type Config struct {
	Input      string
	Method     string
	Threshold  *float64 // nil keeps the configured threshold
	TuningFile string
	OutputPNG  string
	OutputHTML string
	Verbose    bool
}

// Result is the JSON document the tool writes.
type Result struct {
	Method l5peaks.Method     `json:"method"`
	Green  []l5peaks.Interval `json:"green"`
	Peaks  []l5peaks.Peak     `json:"peaks"`
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{}

	fs.StringVar(&cfg.Input, "curve", "", "Curve file (.json, .csv or .txt); - reads JSON from stdin")
	fs.StringVar(&cfg.Method, "method", "", "Segmentation method: threshold or morphological (default from config)")
	threshold := fs.Float64("threshold", 0, "Absolute threshold for the threshold method (default from config)")
	fs.StringVar(&cfg.TuningFile, "config", "", "Tuning JSON file")
	fs.StringVar(&cfg.OutputPNG, "png", "", "Write a PNG plot here")
	fs.StringVar(&cfg.OutputHTML, "html", "", "Write an HTML chart here")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Log every segmented peak")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "threshold" {
			cfg.Threshold = threshold
		}
	})
	if cfg.Input == "" {
		return Config{}, fmt.Errorf("-curve is required")
	}
	if _, err := l5peaks.ParseMethod(cfg.Method); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// parseJSONCurve accepts a bare array or an object with a curve field.
func parseJSONCurve(data []byte) ([]float64, error) {
	data = bytes.TrimSpace(data)
	var curve []float64
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &curve); err != nil {
			return nil, err
		}
		return curve, nil
	}
	var doc struct {
		Curve []float64 `json:"curve"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Curve, nil
}

// parseCSVCurve reads every field of every record in order. Blank fields
// are skipped. A first record whose first field is not numeric is a
// header and is skipped whole.
func parseCSVCurve(r io.Reader) ([]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var curve []float64
	for line := 0; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return curve, nil
		}
		if err != nil {
			return nil, err
		}
		if first := strings.TrimSpace(rec[0]); line == 0 && first != "" {
			if _, err := strconv.ParseFloat(first, 64); err != nil {
				continue
			}
		}
		for _, field := range rec {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line+1, err)
			}
			curve = append(curve, v)
		}
	}
}

func readCurve(path string, stdin io.Reader) ([]float64, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, err
		}
		return parseJSONCurve(data)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return parseJSONCurve(data)
	}
	return parseCSVCurve(bytes.NewReader(data))
}

func params(cfg Config) (l5peaks.Params, error) {
	tc := config.DefaultTuningConfig()
	if cfg.TuningFile != "" {
		loaded, err := config.LoadTuningConfig(cfg.TuningFile)
		if err != nil {
			return l5peaks.Params{}, err
		}
		tc = loaded
	}
	p := tc.PeakParams()
	if cfg.Method != "" {
		p.Method = l5peaks.Method(cfg.Method)
	}
	if cfg.Threshold != nil {
		v := *cfg.Threshold
		p.Threshold = &v
	}
	if err := p.Validate(); err != nil {
		return l5peaks.Params{}, err
	}
	return p, nil
}

func run(cfg Config, stdin io.Reader, stdout io.Writer) error {
	for _, out := range []string{cfg.OutputPNG, cfg.OutputHTML} {
		if out == "" {
			continue
		}
		if err := security.ValidateOutputPath(out); err != nil {
			return err
		}
	}

	curve, err := readCurve(cfg.Input, stdin)
	if err != nil {
		return fmt.Errorf("read curve: %w", err)
	}
	p, err := params(cfg)
	if err != nil {
		return err
	}

	peaks := l5peaks.Detect(curve, p)
	res := Result{Method: p.GetMethod(), Green: l5peaks.GreenIntervals(peaks), Peaks: peaks}

	if cfg.OutputPNG != "" {
		if err := charts.SavePeaksPNG(cfg.OutputPNG, curve, peaks, p.GetThreshold()); err != nil {
			return err
		}
	}
	if cfg.OutputHTML != "" {
		page, err := charts.RenderPeaks(curve, peaks, p.GetThreshold())
		if err != nil {
			return err
		}
		if err := os.WriteFile(cfg.OutputHTML, page, 0644); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
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

	if err := run(cfg, os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}
