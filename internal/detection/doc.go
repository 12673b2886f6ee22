// Package detection finds the distinct visual components of a technical
// diagram.
//
// A Detector runs one of two strategies:
//
//   - Segmentation: a learned model, reached through a ModelHandle, returns
//     region masks for the image.
//   - Contour: a deterministic fallback that binarizes the image and reports
//     every outermost ink region.
//
// The strategy is fixed when the Detector is built, with one exception: if
// the segmentation model fails to load, the failure is cached and the
// Detector switches to the contour strategy for the rest of its life. A
// segmentation error on an individual call falls back to contours for that
// call only.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//   - Bounding boxes are (X, Y, W, H) with W and H in pixels
//
// # Ordering
//
// Detect returns components ordered by area, largest first. Components of
// equal area keep their discovery order, so results are reproducible for
// identical input.
//
// # Shape Classes
//
// Classification is purely geometric and based on the bounding box aspect
// ratio; see Classify. No engineering meaning is inferred.
package detection
