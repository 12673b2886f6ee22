package vectorize

import (
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/ironsheep/patent-diagram-mcp/internal/imaging"
	"github.com/ironsheep/patent-diagram-mcp/internal/svgdoc"
)

// createTestImage creates a white canvas of the given size.
func createTestImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

// fillRect paints a rectangle covering [x1,x2)×[y1,y2).
func fillRect(img *image.RGBA, x1, y1, x2, y2 int, c color.Color) {
	for y := y1; y < y2; y++ {
		for x := x1; x < x2; x++ {
			img.Set(x, y, c)
		}
	}
}

// fillCircle paints a filled disc.
func fillCircle(img *image.RGBA, cx, cy, r int) {
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				img.Set(x, y, color.Black)
			}
		}
	}
}

func pathData(t *testing.T, doc *svgdoc.Document) []string {
	t.Helper()
	var out []string
	for _, p := range doc.Root.Elements("path") {
		d, ok := p.Attr("d")
		if !ok {
			t.Fatal("path without d attribute")
		}
		out = append(out, d)
	}
	return out
}

func TestTrace_WhiteImageHasNoPaths(t *testing.T) {
	r, err := imaging.FromImage(createTestImage(64, 48))
	if err != nil {
		t.Fatal(err)
	}

	doc, err := Trace(r, DefaultThreshold)
	if err != nil {
		t.Fatalf("Trace failed: %v", err)
	}
	if n := doc.Root.Count("path"); n != 0 {
		t.Errorf("expected 0 paths, got %d", n)
	}

	w, h, ok := doc.Size()
	if !ok || w != 64 || h != 48 {
		t.Errorf("Size() = %v, %v, %v; want 64, 48", w, h, ok)
	}
	if v, _ := doc.Root.Attr("version"); v != "1.1" {
		t.Errorf("version = %q", v)
	}
}

func TestTrace_Square(t *testing.T) {
	img := createTestImage(60, 60)
	fillRect(img, 10, 10, 30, 30, color.Black)

	doc, err := TraceImage(img, DefaultThreshold)
	if err != nil {
		t.Fatalf("Trace failed: %v", err)
	}

	paths := pathData(t, doc)
	if len(paths) != 1 {
		t.Fatalf("expected 1 path, got %d", len(paths))
	}

	want := "M 10,20 L 10,10 L 20,10 L 30,10 L 30,20 L 30,30 L 20,30 L 10,30 L 10,20 Z"
	if paths[0] != want {
		t.Errorf("d =\n%s\nwant\n%s", paths[0], want)
	}

	p := doc.Root.Elements("path")[0]
	for name, want := range map[string]string{"fill": "black", "stroke": "none", "fill-rule": "evenodd"} {
		if v, _ := p.Attr(name); v != want {
			t.Errorf("%s = %q, want %q", name, v, want)
		}
	}
}

func TestTrace_HoleSharesPath(t *testing.T) {
	img := createTestImage(60, 60)
	fillRect(img, 10, 10, 50, 50, color.Black)
	fillRect(img, 20, 20, 40, 40, color.White)

	doc, err := TraceImage(img, DefaultThreshold)
	if err != nil {
		t.Fatalf("Trace failed: %v", err)
	}

	paths := pathData(t, doc)
	if len(paths) != 1 {
		t.Fatalf("expected 1 path, got %d", len(paths))
	}
	if n := strings.Count(paths[0], "M "); n != 2 {
		t.Errorf("expected outer and hole subpaths, got %d", n)
	}
}

func TestTrace_SeparateRegions(t *testing.T) {
	img := createTestImage(100, 50)
	fillRect(img, 5, 5, 25, 25, color.Black)
	fillRect(img, 60, 10, 90, 40, color.Black)

	doc, err := TraceImage(img, DefaultThreshold)
	if err != nil {
		t.Fatalf("Trace failed: %v", err)
	}
	if n := doc.Root.Count("path"); n != 2 {
		t.Errorf("expected 2 paths, got %d", n)
	}
}

func TestTrace_DiagonalPixelsAreOneRegion(t *testing.T) {
	img := createTestImage(20, 20)
	fillRect(img, 5, 5, 9, 9, color.Black)
	fillRect(img, 9, 9, 13, 13, color.Black)

	doc, err := TraceImage(img, DefaultThreshold)
	if err != nil {
		t.Fatalf("Trace failed: %v", err)
	}
	if n := doc.Root.Count("path"); n != 1 {
		t.Errorf("expected diagonally touching squares to trace as 1 path, got %d", n)
	}
}

func TestTrace_CircleUsesCurves(t *testing.T) {
	img := createTestImage(80, 80)
	fillCircle(img, 40, 40, 25)

	doc, err := TraceImage(img, DefaultThreshold)
	if err != nil {
		t.Fatalf("Trace failed: %v", err)
	}
	paths := pathData(t, doc)
	if len(paths) != 1 {
		t.Fatalf("expected 1 path, got %d", len(paths))
	}
	if !strings.Contains(paths[0], " C ") {
		t.Errorf("expected cubic segments in circle outline: %s", paths[0])
	}
}

func TestTrace_SpeckleRemoved(t *testing.T) {
	img := createTestImage(30, 30)
	fillRect(img, 3, 3, 4, 4, color.Black)
	fillRect(img, 10, 10, 12, 11, color.Black)

	doc, err := TraceImage(img, DefaultThreshold)
	if err != nil {
		t.Fatalf("Trace failed: %v", err)
	}
	if n := doc.Root.Count("path"); n != 0 {
		t.Errorf("expected speckle to be dropped, got %d paths", n)
	}
}

func TestTrace_Threshold(t *testing.T) {
	img := createTestImage(40, 40)
	fillRect(img, 10, 10, 30, 30, color.Gray{Y: 150})

	tests := []struct {
		threshold int
		paths     int
	}{
		{128, 0},
		{160, 1},
		{200, 1},
	}
	for _, tt := range tests {
		doc, err := TraceImage(img, tt.threshold)
		if err != nil {
			t.Fatalf("threshold %d: %v", tt.threshold, err)
		}
		if n := doc.Root.Count("path"); n != tt.paths {
			t.Errorf("threshold %d: got %d paths, want %d", tt.threshold, n, tt.paths)
		}
	}
}

func TestTrace_InvalidThreshold(t *testing.T) {
	img := createTestImage(10, 10)
	for _, th := range []int{-1, 256} {
		if _, err := TraceImage(img, th); !errors.Is(err, ErrInvalidThreshold) {
			t.Errorf("threshold %d: expected ErrInvalidThreshold, got %v", th, err)
		}
	}
}

func TestOptimize_StripsAndIndents(t *testing.T) {
	src := `<?xml version="1.0"?>
<!DOCTYPE svg>
<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"><!-- generator -->
<metadata>stuff</metadata><title>t</title>
      <g>   <path d="M 0,0 Z"/><desc>x</desc></g>
<text x="1">  hello
   world </text></svg>`

	doc, err := svgdoc.ParseString(src)
	if err != nil {
		t.Fatal(err)
	}
	got := Optimize(doc).String()

	want := `<!DOCTYPE svg>
<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10">
  <g>
    <path d="M 0,0 Z"/>
  </g>
  <text x="1">hello world</text>
</svg>`
	if got != want {
		t.Errorf("Optimize =\n%s\nwant\n%s", got, want)
	}

	if !strings.Contains(doc.String(), "generator") {
		t.Error("Optimize modified its input")
	}
}

func TestOptimize_MixedContentWhitespace(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`<svg><g> a <!--k--> b <rect/></g></svg>`, `<svg>
  <g> a b <rect/></g>
</svg>`},
		{`<svg><text>A` + "\n\t  " + `<tspan>B</tspan>   C  </text></svg>`, `<svg>
  <text>A <tspan>B</tspan> C </text>
</svg>`},
	}

	for _, tt := range tests {
		doc, err := svgdoc.ParseString(tt.src)
		if err != nil {
			t.Fatal(err)
		}
		if got := Optimize(doc).String(); got != tt.want {
			t.Errorf("Optimize(%q) =\n%s\nwant\n%s", tt.src, got, tt.want)
		}
	}
}

func TestOptimize_Idempotent(t *testing.T) {
	img := createTestImage(60, 40)
	fillRect(img, 5, 5, 20, 30, color.Black)
	fillCircle(img, 42, 20, 10)

	for _, threshold := range []int{0, 64, 128, 200, 255} {
		doc, err := TraceImage(img, threshold)
		if err != nil {
			t.Fatal(err)
		}
		once := Optimize(doc)
		twice := Optimize(once)
		if once.String() != twice.String() {
			t.Errorf("threshold %d: Optimize not idempotent:\n%s\n---\n%s", threshold, once.String(), twice.String())
		}
	}

	mixed, err := svgdoc.ParseString(`<svg><!--a--><text>A <tspan> B </tspan> C</text>  <g/></svg>`)
	if err != nil {
		t.Fatal(err)
	}
	once := Optimize(mixed).String()
	if twice := Optimize(Optimize(mixed)).String(); once != twice {
		t.Errorf("mixed content not idempotent:\n%s\n---\n%s", once, twice)
	}
}
