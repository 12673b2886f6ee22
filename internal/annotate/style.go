package annotate

import (
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Style controls how labels and leader lines are drawn.
type Style struct {
	FontFamily string
	FontSize   int

	// LabelFill is the circle background.
	LabelFill string

	// LabelStroke colours both the circle outline and the numeral.
	LabelStroke string

	LineColor string
}

// DefaultStyle is a white circle with a black outline and bold black
// Arial numerals.
func DefaultStyle() Style {
	return Style{
		FontFamily:  "Arial, sans-serif",
		FontSize:    14,
		LabelFill:   "#ffffff",
		LabelStroke: "#000000",
		LineColor:   "#000000",
	}
}

var namedColors = map[string]string{
	"black": "#000000",
	"white": "#ffffff",
}

// Normalize validates s and rewrites every colour as lowercase #rrggbb.
// Colours may be given as #rgb, #rrggbb, "black" or "white". Empty fields
// take their DefaultStyle value.
func (s Style) Normalize() (Style, error) {
	def := DefaultStyle()
	if strings.TrimSpace(s.FontFamily) == "" {
		s.FontFamily = def.FontFamily
	}
	if s.FontSize == 0 {
		s.FontSize = def.FontSize
	}
	if s.FontSize < 0 {
		return s, fmt.Errorf("font size must be positive, got %d", s.FontSize)
	}

	colors := []struct {
		name string
		val  *string
		def  string
	}{
		{"label_fill", &s.LabelFill, def.LabelFill},
		{"label_stroke", &s.LabelStroke, def.LabelStroke},
		{"line_color", &s.LineColor, def.LineColor},
	}
	for _, c := range colors {
		hex, err := normalizeColor(*c.val, c.def)
		if err != nil {
			return s, fmt.Errorf("%s: %w", c.name, err)
		}
		*c.val = hex
	}
	return s, nil
}

func normalizeColor(v, def string) (string, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		v = def
	}
	if named, ok := namedColors[v]; ok {
		v = named
	}
	c, err := colorful.Hex(v)
	if err != nil {
		return "", fmt.Errorf("invalid colour %q", v)
	}
	return c.Hex(), nil
}
