// Package annotate places numbered reference labels on SVG diagrams.
//
// Components are numbered in order of importance (largest first, with a
// slight preference for the top-left), each label is placed at the first
// free candidate position around its component, and a dashed leader line
// connects labels that end up far from their component.
//
// Placement is deterministic: identical components and options always
// produce identical output. When no candidate is free the label is placed at
// its first candidate anyway and counted in Result.Overlaps.
package annotate

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/ironsheep/patent-diagram-mcp/internal/detection"
	"github.com/ironsheep/patent-diagram-mcp/internal/svgdoc"
)

// Placement geometry, in pixels.
const (
	CircleRadius    = 12
	MinSeparation   = 25
	LeaderThreshold = 30

	margin      = 15
	labelWidth  = 30
	labelHeight = 15

	// DefaultWidth and DefaultHeight are used when the document does not
	// declare its size.
	DefaultWidth  = 800
	DefaultHeight = 600
)

// ErrInvalidIncrement is returned for numbering increments below 1.
var ErrInvalidIncrement = errors.New("number increment must be at least 1")

// Point is a pixel position. It serializes to JSON as [x, y].
type Point struct {
	X int
	Y int
}

// MarshalJSON encodes the point as [x, y].
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.X, p.Y})
}

// UnmarshalJSON decodes a point from [x, y].
func (p *Point) UnmarshalJSON(data []byte) error {
	var v []int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if len(v) != 2 {
		return fmt.Errorf("point must have 2 elements, got %d", len(v))
	}
	*p = Point{X: v[0], Y: v[1]}
	return nil
}

func (p Point) distance(q Point) float64 {
	return math.Hypot(float64(p.X-q.X), float64(p.Y-q.Y))
}

// Label is the placement chosen for one component.
type Label struct {
	Number        int   `json:"number"`
	Position      Point `json:"position"`
	ComponentID   int   `json:"component_id"`
	HasLeaderLine bool  `json:"has_leader_line"`
}

// Options controls numbering and placement.
type Options struct {
	// StartNumber is the first reference numeral.
	StartNumber int

	// Increment is the step between consecutive numerals. Must be >= 1.
	Increment int

	// LeaderLines enables dashed lines from distant labels to their
	// component centers.
	LeaderLines bool

	// Reserved are points labels must keep MinSeparation away from, such
	// as existing text in the drawing.
	Reserved []Point

	// Style overrides the default label appearance. A zero Style uses
	// DefaultStyle.
	Style Style
}

// Result summarizes an annotation pass.
type Result struct {
	// Labels holds one entry per component, in numbering order.
	Labels []Label

	// Overlaps counts labels placed without a free candidate.
	Overlaps int

	// LeaderLines counts the leader lines drawn.
	LeaderLines int
}

// Annotate returns a copy of doc with a label for every component appended
// to the root element. The input document is left unchanged.
func Annotate(doc *svgdoc.Document, components []detection.Component, opts Options) (*svgdoc.Document, Result, error) {
	if doc == nil || doc.Root == nil || localName(doc.Root.Name) != "svg" {
		return nil, Result{}, svgdoc.ErrNotSVG
	}
	if opts.Increment < 1 {
		return nil, Result{}, fmt.Errorf("%w, got %d", ErrInvalidIncrement, opts.Increment)
	}
	style, err := opts.Style.Normalize()
	if err != nil {
		return nil, Result{}, err
	}

	width, height := DefaultWidth, DefaultHeight
	if w, h, ok := doc.Size(); ok {
		width, height = int(w), int(h)
	}

	out := doc.Clone()
	ordered := byImportance(components)
	result := Result{Labels: make([]Label, 0, len(ordered))}
	placed := make([]Point, 0, len(ordered))

	for i, c := range ordered {
		number := opts.StartNumber + i*opts.Increment
		cx, cy := c.BBox.Center()
		center := Point{cx, cy}

		pos, free := position(c.BBox, width, height, placed, opts.Reserved)
		if !free {
			result.Overlaps++
		}

		out.Root.Append(labelElement(number, pos, style))

		leader := opts.LeaderLines && pos.distance(center) > LeaderThreshold
		if leader {
			out.Root.Append(leaderElement(center, pos, style))
			result.LeaderLines++
		}

		result.Labels = append(result.Labels, Label{
			Number:        number,
			Position:      pos,
			ComponentID:   c.ID,
			HasLeaderLine: leader,
		})
		placed = append(placed, pos)
	}
	return out, result, nil
}

// byImportance returns components sorted by area minus a small top-left
// position bonus, most important first. Ties keep their input order.
func byImportance(components []detection.Component) []detection.Component {
	sorted := make([]detection.Component, len(components))
	copy(sorted, components)

	score := func(c detection.Component) float64 {
		return float64(c.Area) - (float64(c.BBox.Y)*0.3+float64(c.BBox.X)*0.1)/1000
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return score(sorted[i]) > score(sorted[j])
	})
	return sorted
}

// candidates lists label positions around b in order of preference.
func candidates(b detection.BBox) [7]Point {
	x, y, w, h := b.X, b.Y, b.W, b.H
	return [7]Point{
		{x + w + margin, y},                      // right-top
		{x + w + margin, y + h/2},                // right-middle
		{x - margin - labelWidth, y},             // left-top
		{x + w/2 - 10, y - margin - labelHeight}, // top-center
		{x + w/2 - 10, y + h + margin},           // bottom-center
		{x + w + margin, y + h},                  // right-bottom
		{x - margin - labelWidth, y + h/2},       // left-middle
	}
}

// position picks the first in-bounds candidate that keeps MinSeparation
// from every placed label and reserved point. If none qualifies it returns
// the first candidate and free=false.
func position(b detection.BBox, width, height int, placed, reserved []Point) (Point, bool) {
	cands := candidates(b)
	for _, p := range cands {
		if p.X < 10 || p.X > width-labelWidth || p.Y < 15 || p.Y > height-10 {
			continue
		}
		if isClear(p, placed) && isClear(p, reserved) {
			return p, true
		}
	}
	return cands[0], false
}

func isClear(p Point, others []Point) bool {
	for _, o := range others {
		if p.distance(o) < MinSeparation {
			return false
		}
	}
	return true
}

func labelElement(number int, p Point, style Style) *svgdoc.Node {
	x, y := strconv.Itoa(p.X), strconv.Itoa(p.Y)
	circle := svgdoc.Element("circle",
		"cx", x,
		"cy", y,
		"r", strconv.Itoa(CircleRadius),
		"fill", style.LabelFill,
		"stroke", style.LabelStroke,
		"stroke-width", "1.5",
	)
	text := svgdoc.Element("text",
		"x", x,
		"y", strconv.Itoa(p.Y+5),
		"font-family", style.FontFamily,
		"font-size", strconv.Itoa(style.FontSize),
		"font-weight", "bold",
		"fill", style.LabelStroke,
		"text-anchor", "middle",
		"dominant-baseline", "middle",
	).Append(svgdoc.Text(strconv.Itoa(number)))

	return svgdoc.Element("g", "class", "patent-label").Append(circle, text)
}

// leaderElement draws a dashed line from the component center toward the
// label, stopping at the label circle's edge.
func leaderElement(from, to Point, style Style) *svgdoc.Node {
	dx, dy := float64(to.X-from.X), float64(to.Y-from.Y)
	length := math.Hypot(dx, dy)
	x2, y2 := to.X, to.Y
	if length > 0 {
		factor := (length - CircleRadius) / length
		x2 = int(float64(from.X) + dx*factor)
		y2 = int(float64(from.Y) + dy*factor)
	}

	return svgdoc.Element("line",
		"x1", strconv.Itoa(from.X),
		"y1", strconv.Itoa(from.Y),
		"x2", strconv.Itoa(x2),
		"y2", strconv.Itoa(y2),
		"stroke", style.LineColor,
		"stroke-width", "1",
		"stroke-dasharray", "3,3",
		"class", "leader-line",
	)
}

func localName(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == ':' {
			return name[i+1:]
		}
	}
	return name
}
