package detection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ironsheep/patent-diagram-mcp/internal/imaging"
	"github.com/ironsheep/patent-diagram-mcp/internal/observability"
)

// Strategy identifies how a Detector finds components.
type Strategy int

const (
	// StrategyContour binarizes the image and reports outermost ink regions.
	StrategyContour Strategy = iota

	// StrategySegmentation asks a learned segmentation model for masks.
	StrategySegmentation
)

func (s Strategy) String() string {
	switch s {
	case StrategySegmentation:
		return "segmentation"
	case StrategyContour:
		return "contour"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ErrInvalidLimits is returned when Detect is called with a negative
// minimum area or a non-positive component limit.
var ErrInvalidLimits = errors.New("invalid detection limits")

// Mask is one region reported by a segmentation model.
type Mask struct {
	BBox BBox

	// Area is the mask's pixel count. Segmenters that only report boxes
	// use the box area.
	Area int
}

// Segmenter produces region masks for an image.
type Segmenter interface {
	Segment(ctx context.Context, r *imaging.Raster) ([]Mask, error)
}

// Loader prepares a Segmenter. It is called at most once per ModelHandle.
type Loader func(ctx context.Context) (Segmenter, error)

// ModelHandle lazily loads a segmentation model and memoizes the outcome.
//
// The first Get starts a single load that every caller shares. Callers wait
// for it until their own context ends; the load itself keeps running and
// its result is kept for later callers. A failed load is cached as well:
// every later Get returns the same error without retrying.
type ModelHandle struct {
	load Loader

	once  sync.Once
	ready chan struct{}
	seg   Segmenter
	err   error
	loads atomic.Int32
}

// NewModelHandle returns a handle that will load its model with load.
func NewModelHandle(load Loader) *ModelHandle {
	return &ModelHandle{load: load, ready: make(chan struct{})}
}

// Get returns the loaded Segmenter, loading it on first use. It returns
// ctx.Err() if ctx ends before the load completes.
func (h *ModelHandle) Get(ctx context.Context) (Segmenter, error) {
	h.once.Do(func() {
		h.loads.Add(1)
		// Shared by every caller; detach from this caller's cancellation.
		go h.run(context.WithoutCancel(ctx))
	})

	select {
	case <-h.ready:
		return h.seg, h.err
	default:
	}
	select {
	case <-h.ready:
		return h.seg, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *ModelHandle) run(ctx context.Context) {
	defer close(h.ready)
	h.seg, h.err = h.load(ctx)
	if h.err == nil && h.seg == nil {
		h.err = errors.New("loader returned no segmenter")
	}
}

// Loads reports how many times the loader has been invoked.
func (h *ModelHandle) Loads() int {
	return int(h.loads.Load())
}

// Detector finds components in rasters.
type Detector struct {
	model      *ModelHandle
	logger     observability.Logger
	limiter    Limiter
	downgraded atomic.Bool
}

// Limiter bounds concurrent CPU-bound work. Do runs fn once a slot is free
// or returns ctx.Err() if ctx ends first.
type Limiter interface {
	Do(ctx context.Context, fn func() error) error
}

// Option configures a Detector.
type Option func(*Detector)

// WithModel selects the segmentation strategy backed by h.
func WithModel(h *ModelHandle) Option {
	return func(d *Detector) { d.model = h }
}

// WithLimiter runs contour detection through l. Segmentation requests are
// not limited, since they mostly wait on the model.
func WithLimiter(l Limiter) Option {
	return func(d *Detector) { d.limiter = l }
}

// WithLogger sets the logger used for degraded-detection events.
func WithLogger(l observability.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// New builds a Detector. Without WithModel it uses the contour strategy.
func New(opts ...Option) *Detector {
	d := &Detector{logger: observability.NopLogger{}}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Strategy reports the strategy the next Detect call will try first.
func (d *Detector) Strategy() Strategy {
	if d.model == nil || d.downgraded.Load() {
		return StrategyContour
	}
	return StrategySegmentation
}

// Detect returns at most maxComponents components whose area is at least
// minArea, largest first.
//
// Segmentation problems never fail the call: a model that cannot be loaded
// downgrades the Detector to contours permanently, and a segmentation error
// falls back to contours for this call. Only invalid arguments and context
// cancellation are returned as errors.
func (d *Detector) Detect(ctx context.Context, r *imaging.Raster, minArea, maxComponents int) ([]Component, error) {
	if r == nil {
		return nil, imaging.ErrEmptyImage
	}
	if minArea < 0 || maxComponents < 1 {
		return nil, fmt.Errorf("%w: min_area=%d max_components=%d", ErrInvalidLimits, minArea, maxComponents)
	}

	if d.Strategy() == StrategySegmentation {
		components, err := d.segment(ctx, r, minArea)
		if err == nil {
			return rank(components, maxComponents), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if d.Strategy() == StrategySegmentation {
			d.logger.Warn("segmentation failed, using contour detection for this call",
				observability.Error("error", err))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var components []Component
	contours := func() error {
		components = detectContours(r.Image(), minArea)
		return nil
	}
	if d.limiter == nil {
		_ = contours()
	} else if err := d.limiter.Do(ctx, contours); err != nil {
		return nil, err
	}
	return rank(components, maxComponents), nil
}

func (d *Detector) segment(ctx context.Context, r *imaging.Raster, minArea int) ([]Component, error) {
	seg, err := d.model.Get(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		if d.downgraded.CompareAndSwap(false, true) {
			d.logger.Warn("segmentation model unavailable, switching to contour detection",
				observability.Error("error", err))
		}
		return nil, err
	}

	masks, err := seg.Segment(ctx, r)
	if err != nil {
		return nil, err
	}

	bounds := BBox{W: r.Width(), H: r.Height()}
	components := make([]Component, 0, len(masks))
	for i, m := range masks {
		if m.Area < minArea {
			continue
		}
		box, ok := clip(m.BBox, bounds)
		if !ok {
			continue
		}
		components = append(components, Component{
			ID:    i,
			BBox:  box,
			Area:  m.Area,
			Shape: Classify(box.W, box.H),
		})
	}
	return components, nil
}

// clip intersects b with the image bounds.
func clip(b, bounds BBox) (BBox, bool) {
	x1, y1 := max(b.X, bounds.X), max(b.Y, bounds.Y)
	x2 := min(b.X+b.W, bounds.X+bounds.W)
	y2 := min(b.Y+b.H, bounds.Y+bounds.H)
	if x2 <= x1 || y2 <= y1 {
		return BBox{}, false
	}
	return BBox{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}, true
}
