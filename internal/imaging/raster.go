package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// ErrEmptyImage is returned when asked to decode zero bytes.
var ErrEmptyImage = errors.New("image data is empty")

// Raster is an encoded image together with its decoded pixels.
//
// A Raster is immutable once produced. The byte slice returned by Bytes and
// the image returned by Image must not be modified by callers; pipeline
// stages hand the same Raster forward rather than copying it.
type Raster struct {
	data   []byte
	img    image.Image
	format string
}

// Decode parses encoded image bytes. Supported formats are PNG, JPEG, GIF
// and WebP.
func Decode(data []byte) (*Raster, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return &Raster{data: data, img: img, format: format}, nil
}

// FromImage wraps an in-memory image, encoding it as PNG.
func FromImage(img image.Image) (*Raster, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return &Raster{data: buf.Bytes(), img: img, format: "png"}, nil
}

// Bytes returns the encoded image.
func (r *Raster) Bytes() []byte { return r.data }

// Image returns the decoded image.
func (r *Raster) Image() image.Image { return r.img }

// Format returns the encoded format name ("png", "jpeg", "gif", "webp").
func (r *Raster) Format() string { return r.format }

// Width returns the image width in pixels.
func (r *Raster) Width() int { return r.img.Bounds().Dx() }

// Height returns the image height in pixels.
func (r *Raster) Height() int { return r.img.Bounds().Dy() }

// Flatten composites img over an opaque white canvas of the same size.
// The result always has its origin at (0,0). Transparent regions of a
// sketch become paper rather than ink.
func Flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}

// Grayscale flattens img onto white and converts it to 8-bit luminance.
// The returned image always has its origin at (0,0).
func Grayscale(img image.Image) *image.Gray {
	// effect.Grayscale yields RGBA with equal channels; keep one of them.
	rgba := effect.Grayscale(Flatten(img))
	b := rgba.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := rgba.Pix[y*rgba.Stride : y*rgba.Stride+b.Dx()*4]
		dst := gray.Pix[y*gray.Stride : y*gray.Stride+b.Dx()]
		for x := range dst {
			dst[x] = src[x*4]
		}
	}
	return gray
}

// PrepareSketch readies a sketch for the generation service: the image is
// flattened to opaque RGB, reduced to fit within maxDim×maxDim (preserving
// aspect ratio, Lanczos resampling) and re-encoded as PNG. Images already
// within bounds are only flattened.
func PrepareSketch(r *Raster, maxDim int) (*Raster, error) {
	img := image.Image(Flatten(r.Image()))
	if maxDim > 0 && (r.Width() > maxDim || r.Height() > maxDim) {
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}
	return FromImage(img)
}
