// Package imaging provides frame-level image operations for the detector.
//
// This package turns raw color frames into the representation the rest of the
// pipeline works on, and renders diagnostic views of a frame. It covers frame
// loading, gamma correction, HSV conversion, tiled contrast equalization of the
// brightness channel, HSV sampling, ROI cropping, and annotated overlays.
// All operations work with standard Go image.Image types and use a coordinate
// system where (0,0) is at the top-left corner, X increases rightward, and Y
// increases downward.
//
// # HSV Convention
//
// HSV frames follow the 8-bit OpenCV convention so that color tables tuned
// against OpenCV footage can be reused unchanged:
//   - H: 0-179 (degrees halved, 0 = red, 60 = green, 120 = blue)
//   - S: 0-255 (0 = gray, 255 = fully saturated)
//   - V: 0-255 (0 = black, 255 = full brightness)
//
// # Preprocessing
//
// Preprocess applies, in order:
//
//  1. Gamma correction through a 256-entry lookup table (optional)
//  2. RGB to HSV conversion
//  3. Contrast-limited adaptive histogram equalization of V only
//
// Hue and saturation are never modified by step 3, so color segmentation sees
// the same hue regardless of how uneven the lighting is.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Every other function is
// stateless and can be called concurrently on different frames.
//
// # Error Handling
//
// Pure transforms (Preprocess, ToHSV, EqualizeAdaptive) never fail for a
// well-formed frame. Functions that touch the filesystem, validate
// coordinates, or encode PNG output return wrapped errors.
package imaging
