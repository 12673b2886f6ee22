// Package imaging provides raster decoding and pixel preparation for the
// diagram pipeline.
//
// A Raster pairs the encoded bytes of an image with its decoded pixels so the
// pipeline can hand the same value to the generation service (which wants
// bytes) and to the tracer and detector (which want pixels) without
// re-encoding.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner,
// X increasing rightward and Y increasing downward.
//
// # Thread Safety
//
// Raster values are immutable. The ImageCache type is safe for concurrent use.
//
// # Transparency
//
// Sketches exported from drawing tools frequently have transparent
// backgrounds. Flatten and Grayscale composite images over white first, so a
// transparent pixel reads as paper rather than as black ink.
package imaging
