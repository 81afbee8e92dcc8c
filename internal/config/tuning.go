// Package config loads the analysis tuning file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/hem.analyzer/internal/hem/l2roi"
	"github.com/banshee-data/hem.analyzer/internal/hem/l4events"
	"github.com/banshee-data/hem.analyzer/internal/hem/l5peaks"
	"github.com/banshee-data/hem.analyzer/internal/hem/pipeline"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig is the flat tuning schema shared by the config file and the
// per-request overrides of the API.
type TuningConfig struct {
	// Sampling and ROI statistics
	SampleFPS                 *float64 `json:"sample_fps,omitempty"`
	Methods                   *string  `json:"methods,omitempty"` // comma-separated, e.g. "sudden,threshold"
	BrightnessThreshold       *float64 `json:"brightness_threshold,omitempty"`
	ConditionalMeanThreshold  *float64 `json:"conditional_mean_threshold,omitempty"`
	ConditionalPixelThreshold *float64 `json:"conditional_pixel_threshold,omitempty"`
	WithStd                   *bool    `json:"with_std,omitempty"`

	// Event detector
	SmoothK        *int     `json:"smooth_k,omitempty"`
	BaselineN      *int     `json:"baseline_n,omitempty"` // nil derives it from the series length
	SuddenK        *float64 `json:"sudden_k,omitempty"`
	SuddenMin      *float64 `json:"sudden_min,omitempty"`
	ThresholdDelta *float64 `json:"threshold_delta,omitempty"`
	ThresholdHold  *int     `json:"threshold_hold,omitempty"`
	RelativeDelta  *float64 `json:"relative_delta,omitempty"`

	// Peak segmenter
	PeakMethod          *string  `json:"peak_method,omitempty"`
	PeakThreshold       *float64 `json:"peak_threshold,omitempty"`
	MarginFrames        *int     `json:"margin_frames,omitempty"`
	DifferenceThreshold *float64 `json:"difference_threshold,omitempty"`
	Sensitivity         *float64 `json:"sensitivity,omitempty"`
	MinPeakWidth        *int     `json:"min_peak_width,omitempty"`
	MaxPeakWidth        *int     `json:"max_peak_width,omitempty"`
	MinDistance         *int     `json:"min_distance,omitempty"`

	// Resource bounds
	Workers   *int `json:"workers,omitempty"`
	MaxFrames *int `json:"max_frames,omitempty"` // 0 = unbounded
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a config with every field set to the value
// its getter falls back to. BaselineN stays nil because its default
// depends on the series length.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		SampleFPS:                 ptrFloat64(8),
		Methods:                   ptrString("sudden,threshold,relative"),
		BrightnessThreshold:       ptrFloat64(128),
		ConditionalMeanThreshold:  ptrFloat64(105),
		ConditionalPixelThreshold: ptrFloat64(180),
		WithStd:                   ptrBool(false),
		SmoothK:                   ptrInt(3),
		SuddenK:                   ptrFloat64(6),
		SuddenMin:                 ptrFloat64(4),
		ThresholdDelta:            ptrFloat64(8),
		ThresholdHold:             ptrInt(1),
		RelativeDelta:             ptrFloat64(6),
		PeakMethod:                ptrString("threshold"),
		PeakThreshold:             ptrFloat64(105),
		MarginFrames:              ptrInt(5),
		DifferenceThreshold:       ptrFloat64(0.5),
		Sensitivity:               ptrFloat64(20),
		MinPeakWidth:              ptrInt(3),
		MaxPeakWidth:              ptrInt(15),
		MinDistance:               ptrInt(5),
		Workers:                   ptrInt(1),
		MaxFrames:                 ptrInt(0),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file fall back to the getter defaults, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches the current directory and its parents up to the repo root.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/hem/pipeline/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.SampleFPS != nil && *c.SampleFPS <= 0 {
		return fmt.Errorf("sample_fps must be positive, got %f", *c.SampleFPS)
	}
	if c.Methods != nil {
		if _, err := l4events.ParseMethods(*c.Methods); err != nil {
			return fmt.Errorf("methods: %w", err)
		}
	}
	if c.PeakMethod != nil {
		if _, err := l5peaks.ParseMethod(*c.PeakMethod); err != nil {
			return fmt.Errorf("peak_method: %w", err)
		}
	}
	if c.SmoothK != nil && *c.SmoothK < 1 {
		return fmt.Errorf("smooth_k must be at least 1, got %d", *c.SmoothK)
	}
	if err := c.PeakParams().Validate(); err != nil {
		return err
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.MaxFrames != nil && *c.MaxFrames < 0 {
		return fmt.Errorf("max_frames must be non-negative, got %d", *c.MaxFrames)
	}
	return nil
}

// GetSampleFPS returns the sample_fps value or the default.
func (c *TuningConfig) GetSampleFPS() float64 {
	if c.SampleFPS == nil {
		return 8
	}
	return *c.SampleFPS
}

// GetMethods returns the parsed detection methods, or all of them when the
// field is unset or malformed.
func (c *TuningConfig) GetMethods() []l4events.Method {
	if c.Methods == nil {
		return l4events.AllMethods
	}
	methods, err := l4events.ParseMethods(*c.Methods)
	if err != nil {
		return l4events.AllMethods
	}
	return methods
}

// GetWithStd returns the with_std value or the default.
func (c *TuningConfig) GetWithStd() bool {
	if c.WithStd == nil {
		return false
	}
	return *c.WithStd
}

// GetPeakMethod returns the peak_method value or the default.
func (c *TuningConfig) GetPeakMethod() l5peaks.Method {
	if c.PeakMethod == nil {
		return l5peaks.MethodThreshold
	}
	m, err := l5peaks.ParseMethod(*c.PeakMethod)
	if err != nil {
		return l5peaks.MethodThreshold
	}
	return m
}

// GetWorkers returns the workers value or the default.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// GetMaxFrames returns the max_frames value or the default.
func (c *TuningConfig) GetMaxFrames() int {
	if c.MaxFrames == nil {
		return 0
	}
	return *c.MaxFrames
}

// ROIThresholds projects the grey levels onto l2roi.Thresholds.
func (c *TuningConfig) ROIThresholds() l2roi.Thresholds {
	th := l2roi.DefaultThresholds()
	if c.BrightnessThreshold != nil {
		th.High = *c.BrightnessThreshold
	}
	if c.ConditionalMeanThreshold != nil {
		th.ConditionalMean = *c.ConditionalMeanThreshold
	}
	if c.ConditionalPixelThreshold != nil {
		th.ConditionalPixel = *c.ConditionalPixelThreshold
	}
	return th
}

// EventParams projects the detector keys onto l4events.Params. Unset keys
// stay nil so the detector applies its own defaults.
func (c *TuningConfig) EventParams() l4events.Params {
	return l4events.Params{
		SmoothK:        c.SmoothK,
		BaselineN:      c.BaselineN,
		SuddenK:        c.SuddenK,
		SuddenMin:      c.SuddenMin,
		ThresholdDelta: c.ThresholdDelta,
		ThresholdHold:  c.ThresholdHold,
		RelativeDelta:  c.RelativeDelta,
	}
}

// PeakParams projects the segmenter keys onto l5peaks.Params.
func (c *TuningConfig) PeakParams() l5peaks.Params {
	return l5peaks.Params{
		Method:              c.GetPeakMethod(),
		Threshold:           c.PeakThreshold,
		MarginFrames:        c.MarginFrames,
		DifferenceThreshold: c.DifferenceThreshold,
		Sensitivity:         c.Sensitivity,
		MinPeakWidth:        c.MinPeakWidth,
		MaxPeakWidth:        c.MaxPeakWidth,
		MinDistance:         c.MinDistance,
	}
}

// Request builds an analysis request for roi from the config.
func (c *TuningConfig) Request(roi l2roi.NormalizedROI) pipeline.Request {
	req := pipeline.NewRequest(roi)
	req.SampleFPS = c.GetSampleFPS()
	req.Methods = c.GetMethods()
	req.EventParams = c.EventParams()
	req.Thresholds = c.ROIThresholds()
	req.WithStd = c.GetWithStd()
	req.Workers = c.GetWorkers()
	req.MaxFrames = c.GetMaxFrames()
	return req
}

// Overlay returns a new config with every non-nil field of o applied on
// top of c. Neither input is modified.
func (c *TuningConfig) Overlay(o *TuningConfig) (*TuningConfig, error) {
	out := EmptyTuningConfig()
	for _, layer := range []*TuningConfig{c, o} {
		if layer == nil {
			continue
		}
		// omitempty drops nil fields, so only the set ones overwrite.
		data, err := json.Marshal(layer)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, out); err != nil {
			return nil, err
		}
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
