// Package detection finds and measures the object of interest in a set of
// color masks.
//
// It covers two pipeline stages:
//
//   - Contour selection: clean each mask, trace external contours, and pick
//     at most one candidate by center priority with an optional
//     region-of-interest fallback (Select)
//   - Shape classification: reduce a contour to Rectangle, Circle, Oval or
//     Unknown from its polygon approximation, rectangularity, elongation and
//     circularity (ClassifyShape)
//
// # Contours
//
// Contours are traced from 8-connected foreground regions with Moore-neighbor
// tracing and compressed to the end points of straight runs. Only outer
// boundaries are returned; regions nested in another region's hole are
// ignored. Areas follow the shoelace formula over pixel centers, so a solid
// w x h block has area (w-1)*(h-1).
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//   - Bounding boxes use inclusive top-left and exclusive bottom-right
//
// # Errors
//
// Nothing in this package returns an error. Degenerate input (empty masks,
// zero-area contours) yields no candidate or the Unknown shape.
package detection
