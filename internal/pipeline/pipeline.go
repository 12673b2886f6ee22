// Package pipeline turns sketches into annotated patent diagrams.
//
// A full run renders the sketch through the generation service, traces the
// rendering to SVG, detects components and numbers them. VectorizeOnly,
// DetectComponents and AnnotateExisting expose the later stages on their
// own.
//
// Runs share nothing except the detector's model handle and the worker
// pool, so a Pipeline is safe for concurrent use.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ironsheep/patent-diagram-mcp/internal/annotate"
	"github.com/ironsheep/patent-diagram-mcp/internal/detection"
	"github.com/ironsheep/patent-diagram-mcp/internal/generation"
	"github.com/ironsheep/patent-diagram-mcp/internal/imaging"
	"github.com/ironsheep/patent-diagram-mcp/internal/observability"
	"github.com/ironsheep/patent-diagram-mcp/internal/ocr"
	"github.com/ironsheep/patent-diagram-mcp/internal/svgdoc"
	"github.com/ironsheep/patent-diagram-mcp/internal/vectorize"
)

// Defaults used for zero-valued Options fields.
const (
	DefaultVectorizeThreshold = 128
	DefaultMinComponentArea   = 100
	DefaultMaxComponents      = 50
	DefaultSketchMaxDimension = 1024
	DefaultWorkers            = 4
)

// Request parameter limits.
const (
	MinStartNumber     = 1
	MaxStartNumber     = 100
	MinIncrement       = 1
	MaxIncrement       = 50
	MaxCustomPromptLen = 500
)

// TextFinder locates existing text in a raster.
type TextFinder interface {
	TextRegions(ctx context.Context, data []byte) ([]ocr.TextRegion, error)
}

// Options configures a Pipeline.
type Options struct {
	// Renderer is required for Run.
	Renderer generation.Renderer

	// Model enables segmentation-based detection. Without it components
	// are found from contours.
	Model *detection.ModelHandle

	// TextFinder is optional. Without it AnnotateExisting ignores AvoidText.
	TextFinder TextFinder

	Logger  observability.Logger
	Workers int
	Style   annotate.Style

	VectorizeThreshold int
	MinComponentArea   int
	MaxComponents      int
	SketchMaxDimension int
}

// Pipeline runs diagram jobs.
type Pipeline struct {
	renderer generation.Renderer
	detector *detection.Detector
	text     TextFinder
	logger   observability.Logger
	pool     *Pool
	style    annotate.Style

	threshold     int
	minArea       int
	maxComponents int
	sketchMaxDim  int
}

// New creates a Pipeline. The label style is validated here so runs never
// fail on it.
func New(opts Options) (*Pipeline, error) {
	style, err := opts.Style.Normalize()
	if err != nil {
		return nil, fmt.Errorf("annotation style: %w", err)
	}

	p := &Pipeline{
		renderer:      opts.Renderer,
		text:          opts.TextFinder,
		logger:        opts.Logger,
		style:         style,
		threshold:     orDefault(opts.VectorizeThreshold, DefaultVectorizeThreshold),
		minArea:       orDefault(opts.MinComponentArea, DefaultMinComponentArea),
		maxComponents: orDefault(opts.MaxComponents, DefaultMaxComponents),
		sketchMaxDim:  orDefault(opts.SketchMaxDimension, DefaultSketchMaxDimension),
		pool:          NewPool(orDefault(opts.Workers, DefaultWorkers)),
	}
	base := p.logger
	if base == nil {
		base = observability.NopLogger{}
	}
	p.logger = base.With(observability.String("component", "pipeline"))
	detectorOpts := []detection.Option{
		detection.WithLogger(base.With(observability.String("component", "detection"))),
		detection.WithLimiter(p.pool),
	}
	if opts.Model != nil {
		detectorOpts = append(detectorOpts, detection.WithModel(opts.Model))
	}
	p.detector = detection.New(detectorOpts...)
	return p, nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// Request describes a full pipeline run.
type Request struct {
	// Sketch is the encoded input sketch (PNG, JPEG, GIF or WebP).
	Sketch []byte

	DiagramType  generation.DiagramType
	AutoAnnotate bool
	StartNumber  int
	Increment    int
	LeaderLines  bool

	// ControlNetStrength is how closely the rendering follows the sketch,
	// from 0 to 1.
	ControlNetStrength float64

	// CustomPrompt replaces the diagram type's prompt when non-empty.
	CustomPrompt string
}

// QualityMetrics summarizes an annotation pass.
type QualityMetrics struct {
	ComponentCount    int     `json:"component_count"`
	LabelCount        int     `json:"label_count"`
	MeanComponentArea float64 `json:"mean_component_area"`
	OverlappingLabels int     `json:"overlapping_labels"`
	LeaderLineCount   int     `json:"leader_line_count"`
}

// Result is the outcome of a run.
type Result struct {
	RunID string `json:"run_id"`
	SVG   string `json:"svg"`

	// DiagramRaster is the rendered diagram as returned by the generation
	// service. Empty for AnnotateExisting.
	DiagramRaster []byte `json:"-"`

	Components       []detection.Component `json:"components"`
	Labels           []annotate.Label      `json:"labels"`
	ProcessingTimeMS int64                 `json:"processing_time_ms"`
	AutoAnnotated    bool                  `json:"auto_annotated"`
	QualityMetrics   *QualityMetrics       `json:"quality_metrics,omitempty"`
}

// Validate checks req against the accepted parameter ranges.
func (req Request) Validate() error {
	if len(req.Sketch) == 0 {
		return invalid("sketch", "image data is empty")
	}
	if _, ok := generation.Lookup(req.DiagramType); !ok {
		return invalid("diagram_type", "unknown type %q", req.DiagramType)
	}
	if err := validateNumbering(req.StartNumber, req.Increment); err != nil {
		return err
	}
	if req.ControlNetStrength < 0 || req.ControlNetStrength > 1 {
		return invalid("controlnet_strength", "must be between 0 and 1, got %g", req.ControlNetStrength)
	}
	if n := utf8.RuneCountInString(req.CustomPrompt); n > MaxCustomPromptLen {
		return invalid("custom_prompt", "must be at most %d characters, got %d", MaxCustomPromptLen, n)
	}
	return nil
}

func validateNumbering(start, increment int) error {
	if start < MinStartNumber || start > MaxStartNumber {
		return invalid("start_number", "must be between %d and %d, got %d", MinStartNumber, MaxStartNumber, start)
	}
	if increment < MinIncrement || increment > MaxIncrement {
		return invalid("increment", "must be between %d and %d, got %d", MinIncrement, MaxIncrement, increment)
	}
	return nil
}

// Run renders, vectorizes and optionally annotates a sketch.
//
// Invalid parameters return a *ConfigurationError and a failed rendering a
// *GenerationError. Detection and placement problems degrade the result
// instead of failing it.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if p.renderer == nil {
		return nil, &GenerationError{Err: errors.New("no generation service configured")}
	}

	start := time.Now()
	runID := uuid.NewString()
	log := p.logger.With(observability.String("run_id", runID))

	sketch, err := imaging.Decode(req.Sketch)
	if err != nil {
		return nil, invalid("sketch", "%v", err)
	}
	prepared, err := within(ctx, p.pool, func() (*imaging.Raster, error) {
		return imaging.PrepareSketch(sketch, p.sketchMaxDim)
	})
	if err != nil {
		return nil, fmt.Errorf("prepare sketch: %w", err)
	}

	log.Info("rendering diagram",
		observability.String("diagram_type", string(req.DiagramType)),
		observability.Int("width", prepared.Width()),
		observability.Int("height", prepared.Height()))

	rendered, err := p.renderer.Render(ctx, generation.Request{
		Sketch:         prepared.Bytes(),
		Prompt:         generation.PromptFor(req.DiagramType, req.CustomPrompt),
		NegativePrompt: generation.NegativePrompt,
		Strength:       req.ControlNetStrength,
	})
	if err != nil {
		log.Error("diagram generation failed", observability.Error("error", err))
		return nil, &GenerationError{Err: err}
	}
	diagram, err := imaging.Decode(rendered)
	if err != nil {
		return nil, &GenerationError{Err: fmt.Errorf("rendered image: %w", err)}
	}

	doc, err := p.vectorize(ctx, log, diagram, p.threshold, true)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:         runID,
		DiagramRaster: rendered,
		Components:    []detection.Component{},
		Labels:        []annotate.Label{},
	}

	if !req.AutoAnnotate {
		result.SVG = doc.String()
		result.ProcessingTimeMS = time.Since(start).Milliseconds()
		log.Info("run complete", observability.Int64("processing_time_ms", result.ProcessingTimeMS))
		return result, nil
	}

	if err := p.annotate(ctx, log, result, doc, diagram, annotate.Options{
		StartNumber: req.StartNumber,
		Increment:   req.Increment,
		LeaderLines: req.LeaderLines,
	}); err != nil {
		return nil, err
	}
	result.ProcessingTimeMS = time.Since(start).Milliseconds()
	log.Info("run complete",
		observability.Int("components", len(result.Components)),
		observability.Int64("processing_time_ms", result.ProcessingTimeMS))
	return result, nil
}

// VectorizeResult is the outcome of VectorizeOnly.
type VectorizeResult struct {
	SVG       string `json:"svg"`
	PathCount int    `json:"path_count"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// VectorizeOnly traces an encoded raster without generation or detection.
func (p *Pipeline) VectorizeOnly(ctx context.Context, data []byte, threshold int, optimize bool) (*VectorizeResult, error) {
	if threshold < 0 || threshold > 255 {
		return nil, invalid("threshold", "must be between 0 and 255, got %d", threshold)
	}
	r, err := imaging.Decode(data)
	if err != nil {
		return nil, invalid("image", "%v", err)
	}

	log := p.logger.With(observability.String("run_id", uuid.NewString()))
	doc, err := p.vectorize(ctx, log, r, threshold, optimize)
	if err != nil {
		return nil, err
	}
	return &VectorizeResult{
		SVG:       doc.String(),
		PathCount: doc.Root.Count("path"),
		Width:     r.Width(),
		Height:    r.Height(),
	}, nil
}

// DetectComponents runs component detection alone and reports which
// strategy produced the result.
func (p *Pipeline) DetectComponents(ctx context.Context, data []byte, minArea, maxComponents int) ([]detection.Component, detection.Strategy, error) {
	if minArea < 0 {
		return nil, 0, invalid("min_area", "must not be negative, got %d", minArea)
	}
	if maxComponents < 1 {
		return nil, 0, invalid("max_components", "must be at least 1, got %d", maxComponents)
	}
	r, err := imaging.Decode(data)
	if err != nil {
		return nil, 0, invalid("image", "%v", err)
	}

	components, err := p.detector.Detect(ctx, r, minArea, maxComponents)
	if err != nil {
		return nil, 0, fmt.Errorf("detect components: %w", err)
	}
	return components, p.detector.Strategy(), nil
}

// AnnotateRequest describes a re-annotation of an existing SVG.
type AnnotateRequest struct {
	SVG string

	// Reference is the encoded raster components are detected in.
	Reference []byte

	StartNumber int
	Increment   int
	LeaderLines bool

	// AvoidText keeps labels away from text already present in Reference.
	AvoidText bool
}

// AnnotateExisting detects components in the reference raster and labels
// the supplied SVG.
func (p *Pipeline) AnnotateExisting(ctx context.Context, req AnnotateRequest) (*Result, error) {
	if err := validateNumbering(req.StartNumber, req.Increment); err != nil {
		return nil, err
	}
	doc, err := svgdoc.ParseString(req.SVG)
	if err != nil {
		return nil, invalid("svg", "%v", err)
	}
	reference, err := imaging.Decode(req.Reference)
	if err != nil {
		return nil, invalid("reference_image", "%v", err)
	}

	start := time.Now()
	runID := uuid.NewString()
	log := p.logger.With(observability.String("run_id", runID))

	opts := annotate.Options{
		StartNumber: req.StartNumber,
		Increment:   req.Increment,
		LeaderLines: req.LeaderLines,
	}
	if req.AvoidText {
		opts.Reserved = p.textObstacles(ctx, log, req.Reference)
	}

	result := &Result{RunID: runID}
	if err := p.annotate(ctx, log, result, doc, reference, opts); err != nil {
		return nil, err
	}
	result.ProcessingTimeMS = time.Since(start).Milliseconds()
	return result, nil
}

// DiagramTypes lists the supported diagram types.
func (p *Pipeline) DiagramTypes() []generation.TypeInfo {
	return generation.Types()
}

func (p *Pipeline) vectorize(ctx context.Context, log observability.Logger, r *imaging.Raster, threshold int, optimize bool) (*svgdoc.Document, error) {
	doc, err := within(ctx, p.pool, func() (*svgdoc.Document, error) {
		doc, err := vectorize.Trace(r, threshold)
		if err != nil {
			return nil, err
		}
		if optimize {
			doc = vectorize.Optimize(doc)
		}
		return doc, nil
	})
	if errors.Is(err, vectorize.ErrInvalidThreshold) {
		return nil, invalid("threshold", "%v", err)
	}
	if err != nil {
		return nil, fmt.Errorf("vectorize: %w", err)
	}
	if doc.Root.Count("path") == 0 {
		log.Info("vectorization produced no paths", observability.Int("threshold", threshold))
	}
	return doc, nil
}

// annotate detects components in r, labels doc and fills the annotation
// fields of result.
func (p *Pipeline) annotate(ctx context.Context, log observability.Logger, result *Result, doc *svgdoc.Document, r *imaging.Raster, opts annotate.Options) error {
	opts.Style = p.style

	components, err := p.detector.Detect(ctx, r, p.minArea, p.maxComponents)
	if err != nil {
		return fmt.Errorf("detect components: %w", err)
	}

	type annotated struct {
		doc *svgdoc.Document
		res annotate.Result
	}
	out, err := within(ctx, p.pool, func() (annotated, error) {
		d, res, err := annotate.Annotate(doc, components, opts)
		return annotated{d, res}, err
	})
	switch {
	case errors.Is(err, svgdoc.ErrNotSVG):
		return invalid("svg", "%v", err)
	case errors.Is(err, annotate.ErrInvalidIncrement):
		return invalid("increment", "%v", err)
	case err != nil:
		return fmt.Errorf("annotate: %w", err)
	}

	if components == nil {
		components = []detection.Component{}
	}
	if out.res.Labels == nil {
		out.res.Labels = []annotate.Label{}
	}
	if out.res.Overlaps > 0 {
		log.Warn("some labels could not be placed without overlap",
			observability.Int("overlapping_labels", out.res.Overlaps))
	}

	result.SVG = out.doc.String()
	result.Components = components
	result.Labels = out.res.Labels
	result.AutoAnnotated = true
	result.QualityMetrics = &QualityMetrics{
		ComponentCount:    len(components),
		LabelCount:        len(out.res.Labels),
		MeanComponentArea: detection.MeanArea(components),
		OverlappingLabels: out.res.Overlaps,
		LeaderLineCount:   out.res.LeaderLines,
	}
	log.Debug("annotated diagram",
		observability.String("strategy", p.detector.Strategy().String()),
		observability.Int("labels", len(out.res.Labels)))
	return nil
}

// textObstacles returns the centers of text found in data. OCR failures
// only cost the obstacle avoidance.
func (p *Pipeline) textObstacles(ctx context.Context, log observability.Logger, data []byte) []annotate.Point {
	if p.text == nil {
		return nil
	}
	regions, err := p.text.TextRegions(ctx, data)
	if err != nil {
		log.Warn("text detection failed, placing labels without text obstacles",
			observability.Error("error", err))
		return nil
	}
	points := make([]annotate.Point, 0, len(regions))
	for _, c := range ocr.Centers(regions) {
		points = append(points, annotate.Point{X: c.X, Y: c.Y})
	}
	return points
}
