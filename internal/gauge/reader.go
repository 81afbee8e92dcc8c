package gauge

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/banshee-data/hem.analyzer/internal/hem"
)

// Reader recognises the text in an image.
type Reader interface {
	ReadWords(ctx context.Context, img image.Image) ([]Word, error)
}

// Layout locates the overlay regions on a full console screenshot.
type Layout struct {
	Measurements image.Rectangle
	Panel        image.Rectangle
}

// DefaultLayout is the 1920x1080 console layout.
func DefaultLayout() Layout {
	return Layout{
		Measurements: image.Rect(1555, 152, 1920, 217),
		Panel:        image.Rect(1304, 822, 1920, 944),
	}
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

func crop(img image.Image, r image.Rectangle) (image.Image, error) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("region outside %v screenshot", img.Bounds())
	}
	si, ok := img.(subImager)
	if !ok {
		return nil, fmt.Errorf("image type %T cannot be cropped", img)
	}
	return si.SubImage(r), nil
}

// Tracker accumulates readings across screenshots. Panel values that are
// not recognised in a screenshot keep their previous value; the zoom
// factor falls back to 1.
type Tracker struct {
	mu      sync.Mutex
	current Settings
}

// NewTracker starts from DefaultSettings.
func NewTracker() *Tracker {
	return &Tracker{current: DefaultSettings()}
}

// Update merges one screenshot's readings and returns the new snapshot.
func (t *Tracker) Update(p Panel, m Measurements) Settings {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &t.current
	s.A, s.B, s.Alpha = m.A, m.B, m.Alpha
	if m.SkinDistance != nil {
		s.SkinDistance = m.SkinDistance
	}
	s.Frozen = p.Frozen
	s.ZoomScaler = 1.0
	if p.ZoomScaler != nil {
		s.ZoomScaler = *p.ZoomScaler
	}
	for _, kv := range []struct{ src, dst **float64 }{
		{&p.Gain, &s.Gain},
		{&p.Depth, &s.Depth},
		{&p.Frequency, &s.Frequency},
		{&p.Enhancement, &s.Enhancement},
	} {
		if *kv.src != nil {
			*kv.dst = *kv.src
		}
	}

	s.PointsPerMM = nil
	if s.Depth != nil {
		if ppm, ok := PointsPerMM(*s.Depth, s.ZoomScaler); ok {
			s.PointsPerMM = &ppm
		}
	}
	return s.Clone()
}

// Snapshot returns a copy of the current settings.
func (t *Tracker) Snapshot() Settings {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current.Clone()
}

// Scan reads both overlay regions of a console screenshot and folds them
// into tracker.
func Scan(ctx context.Context, r Reader, img image.Image, layout Layout, tracker *Tracker) (Settings, error) {
	mImg, err := crop(img, layout.Measurements)
	if err != nil {
		return Settings{}, fmt.Errorf("measurement region: %w", err)
	}
	mWords, err := r.ReadWords(ctx, mImg)
	if err != nil {
		return Settings{}, fmt.Errorf("read measurements: %w", err)
	}

	pImg, err := crop(img, layout.Panel)
	if err != nil {
		return Settings{}, fmt.Errorf("panel region: %w", err)
	}
	pWords, err := r.ReadWords(ctx, pImg)
	if err != nil {
		return Settings{}, fmt.Errorf("read panel: %w", err)
	}

	s := tracker.Update(ParsePanel(pWords), ParseMeasurements(mWords))
	hem.Diagf("gauge: %d measurement words, %d panel words, frozen=%v zoom=%.2f", len(mWords), len(pWords), s.Frozen, s.ZoomScaler)
	return s, nil
}
