// Package ocr finds existing text in a reference drawing so new labels can
// be placed around it.
//
// Recognition uses the Tesseract engine through gosseract/v2, which needs
// cgo and the Tesseract libraries at build time:
//   - Ubuntu/Debian: apt-get install tesseract-ocr libtesseract-dev
//   - macOS: brew install tesseract
//
// Language data must be installed for every language used (for example
// tesseract-ocr-eng). Builds without cgo get a Reader whose TextRegions
// always returns ErrUnavailable.
//
// Word-level boxes are reported, filtered by a minimum confidence in the
// range 0 to 1. Only the centers are used by the annotator.
package ocr
