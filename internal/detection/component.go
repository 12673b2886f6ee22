package detection

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ShapeClass is a coarse geometric category derived from a bounding box.
type ShapeClass string

const (
	ShapeCircular     ShapeClass = "circular"
	ShapeHorizontal   ShapeClass = "horizontal"
	ShapeVertical     ShapeClass = "vertical"
	ShapeRectangularH ShapeClass = "rectangular_h"
	ShapeRectangularV ShapeClass = "rectangular_v"
	ShapeSquare       ShapeClass = "square"
	ShapeUnknown      ShapeClass = "unknown"
)

// BBox is an axis-aligned bounding box. It serializes to JSON as
// [x, y, w, h].
type BBox struct {
	X int
	Y int
	W int
	H int
}

// Center returns the box center using integer division.
func (b BBox) Center() (int, int) {
	return b.X + b.W/2, b.Y + b.H/2
}

// MarshalJSON encodes the box as [x, y, w, h].
func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{b.X, b.Y, b.W, b.H})
}

// UnmarshalJSON decodes a box from [x, y, w, h].
func (b *BBox) UnmarshalJSON(data []byte) error {
	var v []int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if len(v) != 4 {
		return fmt.Errorf("bbox must have 4 elements, got %d", len(v))
	}
	*b = BBox{X: v[0], Y: v[1], W: v[2], H: v[3]}
	return nil
}

// Component is one detected region of a diagram.
type Component struct {
	// ID is the region's index in discovery order, before filtering and
	// ranking. It is stable for identical input.
	ID int `json:"id"`

	// BBox is the region's bounding box.
	BBox BBox `json:"bbox"`

	// Area is the number of pixels the region covers. For contour
	// detection this includes any holes enclosed by the outer boundary.
	Area int `json:"area"`

	// Shape is the aspect-ratio class of BBox.
	Shape ShapeClass `json:"type"`
}

// Classify maps a bounding box size to its shape class using the aspect
// ratio w/h:
//
//	0.9 < r < 1.1  circular
//	r > 2.5        horizontal
//	r < 0.4        vertical
//	r > 1.5        rectangular_h
//	r < 0.67       rectangular_v
//	otherwise      square
//
// A zero height yields unknown.
func Classify(w, h int) ShapeClass {
	if h == 0 {
		return ShapeUnknown
	}
	r := float64(w) / float64(h)

	switch {
	case r > 0.9 && r < 1.1:
		return ShapeCircular
	case r > 2.5:
		return ShapeHorizontal
	case r < 0.4:
		return ShapeVertical
	case r > 1.5:
		return ShapeRectangularH
	case r < 0.67:
		return ShapeRectangularV
	default:
		return ShapeSquare
	}
}

// rank orders components by area, largest first, keeping discovery order
// among equal areas, and truncates to maxComponents.
func rank(components []Component, maxComponents int) []Component {
	sort.SliceStable(components, func(i, j int) bool {
		return components[i].Area > components[j].Area
	})
	if len(components) > maxComponents {
		components = components[:maxComponents]
	}
	return components
}

// MeanArea returns the average component area, or 0 for an empty slice.
func MeanArea(components []Component) float64 {
	if len(components) == 0 {
		return 0
	}
	total := 0
	for _, c := range components {
		total += c.Area
	}
	return float64(total) / float64(len(components))
}
