package ocr

import (
	"errors"
	"image"
)

// ErrUnavailable is returned when the binary was built without Tesseract.
var ErrUnavailable = errors.New("ocr is not available in this build")

// DefaultLanguage is the Tesseract language used when none is configured.
const DefaultLanguage = "eng"

// Bounds represents a rectangular bounding box in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Center returns the midpoint of the box.
func (b Bounds) Center() image.Point {
	return image.Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// TextRegion is a recognized word with its location and confidence.
type TextRegion struct {
	Text string `json:"text"`

	// Confidence is the OCR confidence score (0.0 to 1.0).
	Confidence float64 `json:"confidence"`

	Bounds Bounds `json:"bounds"`
}

// Options configures a Reader.
type Options struct {
	Language      string
	MinConfidence float64
}

// Centers returns the midpoints of regions in order.
func Centers(regions []TextRegion) []image.Point {
	out := make([]image.Point, len(regions))
	for i, r := range regions {
		out[i] = r.Bounds.Center()
	}
	return out
}

// filter drops empty words and regions below minConfidence. conf is the raw
// Tesseract score from 0 to 100.
func filter(words []word, minConfidence float64) []TextRegion {
	regions := make([]TextRegion, 0, len(words))
	for _, w := range words {
		if w.text == "" {
			continue
		}
		confidence := w.conf / 100.0
		if confidence < minConfidence {
			continue
		}
		regions = append(regions, TextRegion{
			Text:       w.text,
			Confidence: confidence,
			Bounds: Bounds{
				X1: w.box.Min.X,
				Y1: w.box.Min.Y,
				X2: w.box.Max.X,
				Y2: w.box.Max.Y,
			},
		})
	}
	return regions
}

type word struct {
	text string
	conf float64
	box  image.Rectangle
}

func (o Options) language() string {
	if o.Language == "" {
		return DefaultLanguage
	}
	return o.Language
}
