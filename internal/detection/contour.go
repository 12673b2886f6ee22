package detection

import (
	"image"

	"github.com/ironsheep/patent-diagram-mcp/internal/imaging"
)

// contourThreshold is the binarization level for the contour strategy.
// Pixels at or below it are ink.
const contourThreshold = 127

type pixel struct {
	X, Y int
}

// region is an 8-connected ink region found during the scan.
type region struct {
	label    int
	bbox     BBox
	external bool
}

// detectContours returns the outermost ink regions of img with an enclosed
// area of at least minArea. IDs count every outermost region in row-major
// discovery order, including those later dropped for being too small.
func detectContours(img image.Image, minArea int) []Component {
	gray := imaging.Grayscale(img)
	width := gray.Bounds().Dx()
	height := gray.Bounds().Dy()
	if width == 0 || height == 0 {
		return nil
	}

	ink := make([]bool, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			ink[y*width+x] = gray.GrayAt(x, y).Y <= contourThreshold
		}
	}

	outside := markOutside(ink, width, height)
	labels, regions := findRegions(ink, outside, width, height)

	components := make([]Component, 0)
	id := 0
	for _, r := range regions {
		if !r.external {
			continue
		}
		area := enclosedArea(labels, r, width, height)
		if area >= minArea {
			components = append(components, Component{
				ID:    id,
				BBox:  r.bbox,
				Area:  area,
				Shape: Classify(r.bbox.W, r.bbox.H),
			})
		}
		id++
	}
	return components
}

// markOutside flags paper pixels 4-connected to the image border.
func markOutside(ink []bool, width, height int) []bool {
	outside := make([]bool, len(ink))
	stack := make([]pixel, 0, 2*(width+height))
	for x := 0; x < width; x++ {
		stack = append(stack, pixel{x, 0}, pixel{x, height - 1})
	}
	for y := 0; y < height; y++ {
		stack = append(stack, pixel{0, y}, pixel{width - 1, y})
	}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		i := p.Y*width + p.X
		if outside[i] || ink[i] {
			continue
		}
		outside[i] = true

		stack = append(stack,
			pixel{p.X + 1, p.Y}, pixel{p.X - 1, p.Y},
			pixel{p.X, p.Y + 1}, pixel{p.X, p.Y - 1},
		)
	}
	return outside
}

// findRegions labels 8-connected ink regions in row-major discovery order.
// A region is external when it touches the image border or outside paper.
func findRegions(ink, outside []bool, width, height int) ([]int, []region) {
	labels := make([]int, len(ink))
	for i := range labels {
		labels[i] = -1
	}

	var regions []region
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			if !ink[i] || labels[i] >= 0 {
				continue
			}
			r := region{label: len(regions)}
			floodFill(ink, outside, labels, x, y, width, height, &r)
			regions = append(regions, r)
		}
	}
	return labels, regions
}

func floodFill(ink, outside []bool, labels []int, startX, startY, width, height int, r *region) {
	minX, minY, maxX, maxY := startX, startY, startX, startY
	stack := []pixel{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		i := p.Y*width + p.X
		if labels[i] >= 0 || !ink[i] {
			continue
		}
		labels[i] = r.label

		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)

		if !r.external {
			if p.X == 0 || p.Y == 0 || p.X == width-1 || p.Y == height-1 {
				r.external = true
			} else if outside[i-1] || outside[i+1] || outside[i-width] || outside[i+width] {
				r.external = true
			}
		}

		// 8-connected neighbors
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, pixel{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}

	r.bbox = BBox{X: minX, Y: minY, W: maxX - minX + 1, H: maxY - minY + 1}
}

// enclosedArea counts the pixels inside a region's outer boundary: its own
// pixels plus everything in its holes. It floods the region's bounding box,
// padded by one pixel, from the corner and subtracts what it reaches.
func enclosedArea(labels []int, r region, width, height int) int {
	pw, ph := r.bbox.W+2, r.bbox.H+2
	ox, oy := r.bbox.X-1, r.bbox.Y-1

	isRegion := func(px, py int) bool {
		x, y := ox+px, oy+py
		if x < 0 || x >= width || y < 0 || y >= height {
			return false
		}
		return labels[y*width+x] == r.label
	}

	seen := make([]bool, pw*ph)
	reached := 0
	stack := []pixel{{0, 0}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= pw || p.Y < 0 || p.Y >= ph {
			continue
		}
		i := p.Y*pw + p.X
		if seen[i] || isRegion(p.X, p.Y) {
			continue
		}
		seen[i] = true
		reached++

		stack = append(stack,
			pixel{p.X + 1, p.Y}, pixel{p.X - 1, p.Y},
			pixel{p.X, p.Y + 1}, pixel{p.X, p.Y - 1},
		)
	}
	return pw*ph - reached
}
