//go:build cgo

package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Reader runs word-level OCR with Tesseract.
type Reader struct {
	opts Options
}

// NewReader creates a Reader. An empty language means DefaultLanguage.
func NewReader(opts Options) *Reader {
	return &Reader{opts: opts}
}

// Available reports whether TextRegions can succeed in this build.
func (r *Reader) Available() bool { return true }

// TextRegions returns the words found in the encoded image, with bounds in
// image pixel coordinates. Tesseract itself is not interruptible, so ctx is
// only checked before work starts.
func (r *Reader) TextRegions(ctx context.Context, data []byte) ([]TextRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(r.opts.language()); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("failed to get text regions: %w", err)
	}

	words := make([]word, 0, len(boxes))
	for _, box := range boxes {
		words = append(words, word{text: box.Word, conf: box.Confidence, box: box.Box})
	}
	return filter(words, r.opts.MinConfidence), nil
}
