package capture

import (
	"errors"
	"fmt"
)

// ErrOCRUnavailable is returned when OCR is disabled or tesseract is missing.
var ErrOCRUnavailable = errors.New("ocr is not available")

// CaptureError describes a failed screenshot.
type CaptureError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *CaptureError) Error() string {
	return fmt.Sprintf("screenshot %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *CaptureError) Unwrap() error {
	return e.Err
}

// OCRError describes a failed text extraction.
type OCRError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *OCRError) Error() string {
	return fmt.Sprintf("ocr %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *OCRError) Unwrap() error {
	return e.Err
}
