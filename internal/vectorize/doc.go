// Package vectorize converts raster diagrams into SVG outlines.
//
// Trace binarizes an image at a luminance threshold and follows the pixel
// boundaries of every ink region, producing closed paths. Straight runs and
// sharp turns are written as line segments while gently curving runs become
// cubic Bézier segments, so rendered technical drawings come back as a
// compact, scalable outline rather than a bitmap wrapper.
//
// # Binarization
//
// A pixel whose gray value is strictly greater than the threshold is paper;
// everything else is ink. Everything beyond the canvas edge counts as paper,
// so a blank page traces to a document with no paths.
//
// # Output Shape
//
// Each 8-connected ink region becomes one <path> element holding its outer
// boundary and the boundaries of any holes. Paths are drawn with
// fill="black", stroke="none" and fill-rule="evenodd" so holes stay open.
// Regions enclosing two pixels or fewer are discarded as speckle.
//
// Optimize tidies a document for storage and comparison. It is idempotent:
// optimizing an optimized document changes nothing.
package vectorize
