//go:build !ocr
// +build !ocr

package gauge

import (
	"context"
	"errors"
	"image"
)

var errOCRDisabled = errors.New("OCR support not enabled: rebuild with -tags=ocr to read gauge text")

// TesseractReader is a stub implementation when OCR support is disabled.
// Build with -tags=ocr to enable it.
type TesseractReader struct{}

// NewTesseractReader always fails without the 'ocr' build tag.
func NewTesseractReader(languages ...string) (*TesseractReader, error) {
	return nil, errOCRDisabled
}

func (r *TesseractReader) ReadWords(ctx context.Context, img image.Image) ([]Word, error) {
	return nil, errOCRDisabled
}

func (r *TesseractReader) Close() error { return nil }
