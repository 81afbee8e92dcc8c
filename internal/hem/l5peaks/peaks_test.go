package l5peaks

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/hem.analyzer/internal/hem"
)

// referenceCurve has two bright plateaus: one that falls back afterwards
// (indices 5-9) and one that settles slightly higher (indices 29-33).
var referenceCurve = []float64{
	40, 42, 45, 48, 52, 108, 110, 112, 109, 107, 45, 43, 41,
	42, 44, 46, 49, 53, 55, 58, 60, 62, 61, 59, 45, 43, 41,
	42, 45, 110, 115, 118, 116, 113, 48, 46, 44, 42, 41,
}

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestThresholdSegmenterReferenceCurve(t *testing.T) {
	spans := ThresholdSegmenter{Threshold: 105}.Segment(referenceCurve)
	want := []Span{
		{Start: 4, End: 10, FrameDifference: -2.4},
		{Start: 28, End: 34, FrameDifference: 1.0},
	}
	if diff := cmp.Diff(want, spans, approx); diff != "" {
		t.Errorf("spans mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectReferenceCurve(t *testing.T) {
	peaks := Detect(referenceCurve, Params{})
	require.Len(t, peaks, 2)

	assert.Equal(t, Red, peaks[0].Color)
	assert.Equal(t, Green, peaks[1].Color)
	assert.InDelta(t, 29.992846034214622, peaks[0].Score, 1e-9)
	assert.InDelta(t, 112.62105263157895, peaks[1].Score, 1e-9)
}

func TestDetectGreenPeaksReferenceCurve(t *testing.T) {
	got := DetectGreenPeaks(referenceCurve, Params{})
	assert.Equal(t, []Interval{{Start: 28, End: 34}}, got)

	// A stricter boundary turns the second plateau red as well.
	strict := 2.1
	assert.Empty(t, DetectGreenPeaks(referenceCurve, Params{DifferenceThreshold: &strict}))

	// The strategy is fixed regardless of Method.
	assert.Equal(t, got, DetectGreenPeaks(referenceCurve, Params{Method: MethodMorphological}))
}

func TestDetectGreenPeaksEmpty(t *testing.T) {
	got := DetectGreenPeaks(nil, Params{})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestThresholdSegmenterRuns(t *testing.T) {
	cases := []struct {
		name  string
		curve []float64
		want  []Span
	}{
		{
			name:  "no run",
			curve: []float64{1, 2, 3},
			want:  nil,
		},
		{
			name:  "run at start is clamped",
			curve: []float64{130, 120, 0, 0},
			want:  []Span{{Start: 0, End: 2, FrameDifference: -130}},
		},
		{
			name:  "run at end is clamped",
			curve: []float64{0, 0, 0, 110},
			want:  []Span{{Start: 2, End: 3, FrameDifference: 110}},
		},
		{
			name:  "separate runs survive",
			curve: []float64{0, 0, 0, 120, 0, 0, 120, 0, 0, 0},
			want: []Span{
				{Start: 2, End: 4, FrameDifference: 24},
				{Start: 5, End: 7, FrameDifference: -24},
			},
		},
		{
			name:  "higher later run replaces",
			curve: []float64{0, 0, 120, 0, 130, 0, 0},
			want:  []Span{{Start: 3, End: 5, FrameDifference: -30}},
		},
		{
			name:  "lower later run is dropped",
			curve: []float64{0, 0, 130, 0, 120, 0, 0},
			want:  []Span{{Start: 1, End: 3, FrameDifference: 30}},
		},
		{
			name:  "equal maxima keep the first",
			curve: []float64{0, 0, 120, 0, 120, 0, 0},
			want:  []Span{{Start: 1, End: 3, FrameDifference: 30}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ThresholdSegmenter{Threshold: 105}.Segment(tc.curve)
			if diff := cmp.Diff(tc.want, got, approx, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestThresholdRunBeforeExtension(t *testing.T) {
	curve := referenceCurve[:12]
	spans := ThresholdSegmenter{Threshold: 105}.Segment(curve)
	require.Len(t, spans, 1)
	// Detected run is [5,9]; the reported span adds one sample per side.
	assert.Equal(t, 4, spans[0].Start)
	assert.Equal(t, 10, spans[0].End)
	assert.InDelta(t, FrameDifference(curve, 5, 9), spans[0].FrameDifference, 1e-12)
}

func TestMorphologicalSegmenterReferenceCurve(t *testing.T) {
	spans := MorphologicalSegmenter{Sensitivity: 20, MinPeakWidth: 3, MaxPeakWidth: 15, MinDistance: 5}.Segment(referenceCurve)
	want := []Span{
		{Start: 5, End: 9, FrameDifference: -2.4},
		{Start: 29, End: 33, FrameDifference: 1.0},
	}
	if diff := cmp.Diff(want, spans, approx); diff != "" {
		t.Errorf("spans mismatch (-want +got):\n%s", diff)
	}

	peaks := Detect(referenceCurve, Params{Method: MethodMorphological})
	require.Len(t, peaks, 2)
	assert.InDelta(t, 30.05641025641026, peaks[0].Score, 1e-9)
	assert.InDelta(t, 112.51468531468532, peaks[1].Score, 1e-9)
}

func twoBumps(first, second float64) []float64 {
	c := slices.Repeat([]float64{10}, 10)
	c = append(c, 50, first, 50)
	c = append(c, 10, 10, 10)
	c = append(c, 50, second, 50)
	return append(c, slices.Repeat([]float64{10}, 10)...)
}

func TestMorphologicalDedupKeepsHigher(t *testing.T) {
	seg := MorphologicalSegmenter{Sensitivity: 20, MinPeakWidth: 3, MaxPeakWidth: 15, MinDistance: 5}

	t.Run("later higher", func(t *testing.T) {
		got := seg.Segment(twoBumps(60, 70))
		require.Len(t, got, 1)
		assert.Equal(t, Span{Start: 16, End: 18, FrameDifference: -18}, got[0])
	})

	t.Run("earlier higher", func(t *testing.T) {
		got := seg.Segment(twoBumps(70, 60))
		require.Len(t, got, 1)
		assert.Equal(t, Span{Start: 10, End: 12, FrameDifference: 18}, got[0])
	})

	t.Run("far enough apart", func(t *testing.T) {
		loose := seg
		loose.MinDistance = 1
		got := loose.Segment(twoBumps(60, 70))
		require.Len(t, got, 2)
		assert.Equal(t, 10, got[0].Start)
		assert.Equal(t, 16, got[1].Start)
	})
}

func TestMorphologicalShortCurve(t *testing.T) {
	seg := MorphologicalSegmenter{Sensitivity: 20, MinPeakWidth: 3, MaxPeakWidth: 15, MinDistance: 5}
	assert.Empty(t, seg.Segment([]float64{1, 2, 3, 4, 5}))
	assert.Empty(t, seg.Segment(nil))
}

func TestMorphologicalNegativeWidth(t *testing.T) {
	seg := MorphologicalSegmenter{Sensitivity: 20, MinPeakWidth: -2, MaxPeakWidth: 15, MinDistance: 5}
	assert.NotPanics(t, func() {
		assert.Empty(t, seg.Segment([]float64{10, 10, 10, 60, 10, 10, 10, 10}))
	})
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Params
		wantErr string
	}{
		{"defaults", Params{}, ""},
		{"zero widths", Params{MinPeakWidth: ptrInt(0), MaxPeakWidth: ptrInt(0), MinDistance: ptrInt(0)}, ""},
		{"negative min width", Params{MinPeakWidth: ptrInt(-2)}, "min_peak_width"},
		{"negative max width", Params{MaxPeakWidth: ptrInt(-1)}, "max_peak_width"},
		{"negative min distance", Params{MinDistance: ptrInt(-1)}, "min_distance"},
		{"negative margin", Params{MarginFrames: ptrInt(-1)}, "margin_frames"},
		{"inverted widths", Params{MinPeakWidth: ptrInt(9), MaxPeakWidth: ptrInt(4)}, "exceeds"},
		{"max below default min", Params{MaxPeakWidth: ptrInt(2)}, "exceeds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestFrameDifference(t *testing.T) {
	curve := []float64{5, 1, 2, 3}
	// Nothing precedes index 0, so the start value stands in.
	assert.InDelta(t, 2.5-5, FrameDifference(curve, 0, 1), 1e-12)
	// Nothing follows the last index, so the end value stands in.
	assert.InDelta(t, 0.0, FrameDifference(curve, 2, 3), 1e-12)
	// Windows are capped at five samples.
	long := []float64{100, 1, 1, 1, 1, 1, 50, 2, 2, 2, 2, 2, 100}
	assert.InDelta(t, 1.0, FrameDifference(long, 6, 6), 1e-12)
}

func TestClassifyColorBoundary(t *testing.T) {
	assert.Equal(t, Green, ClassifyColor(0.51, 0.5))
	assert.Equal(t, Red, ClassifyColor(0.5, 0.5))
	assert.Equal(t, Red, ClassifyColor(-10, 0.5))
}

func TestTimeReversalFlipsFrameDifference(t *testing.T) {
	reversed := slices.Clone(referenceCurve)
	slices.Reverse(reversed)

	fwd := ThresholdSegmenter{Threshold: 105}.Segment(referenceCurve)
	rev := ThresholdSegmenter{Threshold: 105}.Segment(reversed)
	require.Len(t, rev, len(fwd))

	// Both plateaus have full five-sample context, so reversing time
	// negates each frame difference: the decaying plateau now settles.
	n := len(fwd)
	for i := range fwd {
		assert.InDelta(t, -fwd[n-1-i].FrameDifference, rev[i].FrameDifference, 1e-9)
	}
	assert.Equal(t, []Interval{{Start: 28, End: 34}}, DetectGreenPeaks(reversed, Params{}))
}

func TestMirrorAroundBaselineFlipsClassification(t *testing.T) {
	spans := ThresholdSegmenter{Threshold: 105}.Segment(referenceCurve)
	require.Len(t, spans, 2)

	// Mirroring every sample around the median keeps the spans in place but
	// negates each frame difference, so stable and decaying swap colours.
	baseline := hem.Median(referenceCurve)
	mirrored := make([]float64, len(referenceCurve))
	for i, v := range referenceCurve {
		mirrored[i] = 2*baseline - v
	}

	flipped := make([]Span, len(spans))
	for i, sp := range spans {
		// Frame difference is measured on the run inside the extension.
		flipped[i] = sp
		flipped[i].FrameDifference = FrameDifference(mirrored, sp.Start+1, sp.End-1)
	}

	orig := Classify(referenceCurve, spans, 0.5)
	flip := Classify(mirrored, flipped, 0.5)
	require.Len(t, flip, len(orig))
	for i := range orig {
		assert.Equal(t, orig[i].Start, flip[i].Start)
		assert.Equal(t, orig[i].End, flip[i].End)
		assert.InDelta(t, -orig[i].FrameDifference, flip[i].FrameDifference, 1e-9)
	}
	assert.Equal(t, []Color{Red, Green}, []Color{orig[0].Color, orig[1].Color})
	assert.Equal(t, []Color{Green, Red}, []Color{flip[0].Color, flip[1].Color})
}

func TestScore(t *testing.T) {
	curve := []float64{0, 10, 20, 10, 0}
	// max 20, avg 40/3, width 3.
	want := 0.4*20 + 50 + 17 + 10*(20-40.0/3)/(40.0/3)
	assert.InDelta(t, want, Score(curve, 1, 3, 1, 0.5), 1e-9)
	assert.InDelta(t, want-80, Score(curve, 1, 3, 0, 0.5), 1e-9)

	assert.Zero(t, Score(curve, 2, 2, 1, 0.5))
	assert.Zero(t, Score(curve, 3, 1, 1, 0.5))
	assert.Zero(t, Score(curve, 1, 9, 1, 0.5))
}

func TestParamsFromMap(t *testing.T) {
	p := ParamsFromMap(map[string]float64{
		"threshold":      90,
		"min_peak_width": 4.7,
		"minDistance":    2,
		"bogus":          1,
	})
	assert.Equal(t, 90.0, p.GetThreshold())
	assert.Equal(t, 4, p.GetMinPeakWidth())
	assert.Equal(t, 2, p.GetMinDistance())
	assert.Equal(t, 0.5, p.GetDifferenceThreshold())
	assert.Equal(t, 15, p.GetMaxPeakWidth())
	assert.Equal(t, 20.0, p.GetSensitivity())
	assert.Equal(t, 5, p.GetMarginFrames())
	assert.IsType(t, ThresholdSegmenter{}, p.Segmenter())

	p.Method = MethodMorphological
	assert.Equal(t, MorphologicalSegmenter{Sensitivity: 20, MinPeakWidth: 4, MaxPeakWidth: 15, MinDistance: 2}, p.Segmenter())
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, MethodThreshold, m)

	m, err = ParseMethod("morphological")
	require.NoError(t, err)
	assert.Equal(t, MethodMorphological, m)

	_, err = ParseMethod("wavelet")
	assert.Error(t, err)
}

func TestParamsMerge(t *testing.T) {
	base := Params{Method: MethodMorphological, Threshold: ptrFloat64(90), MinDistance: ptrInt(2)}
	got := base.Merge(Params{Threshold: ptrFloat64(120), MaxPeakWidth: ptrInt(8)})

	assert.Equal(t, MethodMorphological, got.Method)
	assert.Equal(t, 120.0, got.GetThreshold())
	assert.Equal(t, 8, got.GetMaxPeakWidth())
	assert.Equal(t, 2, got.GetMinDistance())
	assert.Equal(t, 90.0, base.GetThreshold(), "receiver is a copy")

	assert.Equal(t, MethodThreshold, base.Merge(Params{Method: MethodThreshold}).Method)
}
