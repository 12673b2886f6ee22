package vectorize

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	"github.com/ironsheep/patent-diagram-mcp/internal/imaging"
	"github.com/ironsheep/patent-diagram-mcp/internal/svgdoc"
)

// Tracing parameters.
const (
	// DefaultThreshold is the binarization level used by the pipeline.
	DefaultThreshold = 128

	// turdSize is the largest enclosed area (in pixels) discarded as speckle.
	turdSize = 2

	// alphaMax is the deflection angle (radians) above which a vertex is
	// kept as a sharp corner instead of being smoothed into a curve.
	alphaMax = 1.0

	// tolerance is the maximum distance (pixels) a boundary point may lie
	// from its simplified segment.
	tolerance = 1.0
)

// ErrInvalidThreshold is returned for thresholds outside 0..255.
var ErrInvalidThreshold = errors.New("threshold must be between 0 and 255")

// Directions in pixel-corner space, clockwise starting to the right.
const (
	dirRight = iota
	dirDown
	dirLeft
	dirUp
)

var (
	stepX = [4]int{1, 0, -1, 0}
	stepY = [4]int{0, 1, 0, -1}
)

type point struct {
	X, Y float64
}

// Trace binarizes r at threshold and returns an SVG document whose paths
// outline every ink region. The document's width, height and viewBox match
// the raster.
func Trace(r *imaging.Raster, threshold int) (*svgdoc.Document, error) {
	if r == nil {
		return nil, imaging.ErrEmptyImage
	}
	return TraceImage(r.Image(), threshold)
}

// TraceImage is Trace for an already decoded image.
func TraceImage(img image.Image, threshold int) (*svgdoc.Document, error) {
	if threshold < 0 || threshold > 255 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidThreshold, threshold)
	}

	gray := imaging.Grayscale(img)
	width := gray.Bounds().Dx()
	height := gray.Bounds().Dy()

	ink := make([]bool, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			ink[y*width+x] = gray.GrayAt(x, y).Y <= uint8(threshold)
		}
	}

	doc := svgdoc.New(width, height)
	for _, d := range tracePaths(ink, width, height) {
		doc.Root.Append(svgdoc.Element("path",
			"d", d,
			"fill", "black",
			"stroke", "none",
			"fill-rule", "evenodd",
		))
	}
	return doc, nil
}

// tracePaths returns one path description per ink region, ordered by the
// region's first pixel in row-major order.
func tracePaths(ink []bool, width, height int) []string {
	labels, regions := labelRegions(ink, width, height)
	if regions == 0 {
		return nil
	}

	inkAt := func(x, y int) bool {
		if x < 0 || x >= width || y < 0 || y >= height {
			return false
		}
		return ink[y*width+x]
	}

	// Each vertex of the (width+1)×(height+1) pixel-corner grid records
	// its outgoing boundary edges as a direction bitmask. Edges run with
	// ink on their right-hand side.
	stride := width + 1
	edges := make([]uint8, stride*(height+1))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !ink[y*width+x] {
				continue
			}
			if !inkAt(x, y-1) {
				edges[y*stride+x] |= 1 << dirRight
			}
			if !inkAt(x+1, y) {
				edges[y*stride+x+1] |= 1 << dirDown
			}
			if !inkAt(x, y+1) {
				edges[(y+1)*stride+x+1] |= 1 << dirLeft
			}
			if !inkAt(x-1, y) {
				edges[(y+1)*stride+x] |= 1 << dirUp
			}
		}
	}

	subpaths := make([][]string, regions)
	for v := range edges {
		for edges[v] != 0 {
			loop, region := walkLoop(edges, stride, v, labels, width)
			if math.Abs(shoelace(loop)) <= turdSize {
				continue
			}
			subpaths[region] = append(subpaths[region], encodeLoop(loop))
		}
	}

	paths := make([]string, 0, regions)
	for _, parts := range subpaths {
		if len(parts) > 0 {
			paths = append(paths, strings.Join(parts, " "))
		}
	}
	return paths
}

// walkLoop consumes one closed boundary starting at vertex start and
// returns its vertices along with the ink region it encloses.
func walkLoop(edges []uint8, stride, start int, labels []int, width int) ([]point, int) {
	dir := dirRight
	for edges[start]&(1<<dir) == 0 {
		dir++
	}

	sx, sy := start%stride, start/stride
	region := labels[pixelIndex(sx, sy, dir, width)]

	var loop []point
	x, y := sx, sy
	for {
		loop = append(loop, point{float64(x), float64(y)})
		edges[y*stride+x] &^= 1 << dir
		x += stepX[dir]
		y += stepY[dir]
		if x == sx && y == sy {
			break
		}

		// Prefer turning left so diagonally touching ink stays one region,
		// matching the 8-connected labelling.
		out := edges[y*stride+x]
		for _, next := range [3]int{(dir + 3) % 4, dir, (dir + 1) % 4} {
			if out&(1<<next) != 0 {
				dir = next
				break
			}
		}
	}
	return loop, region
}

// pixelIndex returns the index of the ink pixel to the right of the edge
// leaving vertex (x, y) in direction dir.
func pixelIndex(x, y, dir, width int) int {
	switch dir {
	case dirDown:
		x--
	case dirLeft:
		x--
		y--
	case dirUp:
		y--
	}
	return y*width + x
}

// labelRegions assigns each ink pixel the index of its 8-connected region.
// Paper pixels are labelled -1.
func labelRegions(ink []bool, width, height int) ([]int, int) {
	labels := make([]int, len(ink))
	for i := range labels {
		labels[i] = -1
	}

	regions := 0
	stack := make([]int, 0, 64)
	for start := range ink {
		if !ink[start] || labels[start] >= 0 {
			continue
		}
		labels[start] = regions
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			px, py := p%width, p/width

			// 8-connected neighbors
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := px+dx, py+dy
					if nx < 0 || nx >= width || ny < 0 || ny >= height {
						continue
					}
					n := ny*width + nx
					if ink[n] && labels[n] < 0 {
						labels[n] = regions
						stack = append(stack, n)
					}
				}
			}
		}
		regions++
	}
	return labels, regions
}

// shoelace returns the signed area enclosed by a closed polygon.
func shoelace(pts []point) float64 {
	area := 0.0
	for i := range pts {
		j := (i + 1) % len(pts)
		area += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return area / 2
}

// encodeLoop reduces a pixel boundary to its corners, simplifies it and
// writes it as a closed SVG subpath.
func encodeLoop(loop []point) string {
	poly := corners(loop)
	if simplified := simplify(poly, tolerance); len(simplified) >= 3 {
		poly = simplified
	}

	n := len(poly)
	mid := func(i int) point {
		a, b := poly[i%n], poly[(i+1)%n]
		return point{(a.X + b.X) / 2, (a.Y + b.Y) / 2}
	}

	var b strings.Builder
	m := mid(n - 1)
	b.WriteString("M " + coord(m))
	for i := 0; i < n; i++ {
		v := poly[i]
		prev := poly[(i+n-1)%n]
		next := poly[(i+1)%n]
		in := mid(i + n - 1)
		out := mid(i)
		if deflection(prev, v, next) > alphaMax {
			b.WriteString(" L " + coord(v) + " L " + coord(out))
			continue
		}
		c1 := point{in.X + 2*(v.X-in.X)/3, in.Y + 2*(v.Y-in.Y)/3}
		c2 := point{out.X + 2*(v.X-out.X)/3, out.Y + 2*(v.Y-out.Y)/3}
		b.WriteString(" C " + coord(c1) + " " + coord(c2) + " " + coord(out))
	}
	b.WriteString(" Z")
	return b.String()
}

// corners drops vertices that lie on a straight run.
func corners(loop []point) []point {
	n := len(loop)
	out := make([]point, 0, n)
	for i := 0; i < n; i++ {
		prev := loop[(i+n-1)%n]
		cur := loop[i]
		next := loop[(i+1)%n]
		cross := (cur.X-prev.X)*(next.Y-cur.Y) - (cur.Y-prev.Y)*(next.X-cur.X)
		if cross != 0 {
			out = append(out, cur)
		}
	}
	return out
}

// simplify applies Douglas-Peucker to a closed polygon, anchored at the
// first vertex and the vertex farthest from it.
func simplify(poly []point, tol float64) []point {
	n := len(poly)
	if n < 4 {
		return poly
	}

	far, best := 0, -1.0
	for i := 1; i < n; i++ {
		dx, dy := poly[i].X-poly[0].X, poly[i].Y-poly[0].Y
		if d := dx*dx + dy*dy; d > best {
			far, best = i, d
		}
	}

	keep := make([]bool, n)
	keep[0] = true
	keep[far] = true
	reduce(poly, 0, far, tol, keep)
	reduce(poly, far, n, tol, keep)

	out := make([]point, 0, n)
	for i, k := range keep {
		if k {
			out = append(out, poly[i])
		}
	}
	return out
}

// reduce marks the vertices strictly between lo and hi (indices taken
// modulo len(poly)) that must be kept.
func reduce(poly []point, lo, hi int, tol float64, keep []bool) {
	if hi-lo < 2 {
		return
	}
	n := len(poly)
	a, b := poly[lo%n], poly[hi%n]

	idx, dmax := -1, tol
	for i := lo + 1; i < hi; i++ {
		if d := segmentDistance(poly[i%n], a, b); d > dmax {
			idx, dmax = i, d
		}
	}
	if idx < 0 {
		return
	}
	keep[idx%n] = true
	reduce(poly, lo, idx, tol, keep)
	reduce(poly, idx, hi, tol, keep)
}

func segmentDistance(p, a, b point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}

// deflection returns the turning angle at v in radians (0 = straight).
func deflection(prev, v, next point) float64 {
	ax, ay := v.X-prev.X, v.Y-prev.Y
	bx, by := next.X-v.X, next.Y-v.Y
	la, lb := math.Hypot(ax, ay), math.Hypot(bx, by)
	if la == 0 || lb == 0 {
		return math.Pi
	}
	cos := (ax*bx + ay*by) / (la * lb)
	return math.Acos(math.Max(-1, math.Min(1, cos)))
}

func coord(p point) string {
	return num(p.X) + "," + num(p.Y)
}

func num(f float64) string {
	return strconv.FormatFloat(math.Round(f*100)/100, 'f', -1, 64)
}
