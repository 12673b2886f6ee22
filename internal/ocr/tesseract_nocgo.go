//go:build !cgo

package ocr

import "context"

// Reader is a placeholder in builds without cgo.
type Reader struct {
	opts Options
}

// NewReader creates a Reader that always reports ErrUnavailable.
func NewReader(opts Options) *Reader {
	return &Reader{opts: opts}
}

// Available reports whether TextRegions can succeed in this build.
func (r *Reader) Available() bool { return false }

// TextRegions always returns ErrUnavailable.
func (r *Reader) TextRegions(ctx context.Context, data []byte) ([]TextRegion, error) {
	return nil, ErrUnavailable
}
