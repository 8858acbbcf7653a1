package imaging

import (
	"fmt"
	"image"
)

// RGBColor represents an RGB color with 8-bit components.
type RGBColor struct {
	R uint8 `json:"r"` // Red component (0-255)
	G uint8 `json:"g"` // Green component (0-255)
	B uint8 `json:"b"` // Blue component (0-255)
}

// HSVColor represents a color in the 8-bit OpenCV HSV convention.
//
// This is the space the color table is expressed in:
//   - H: 0-179 (half degrees, 0=red, 60=green, 120=blue)
//   - S: 0-255 (0=gray, 255=vivid)
//   - V: 0-255 (0=black, 255=full brightness)
type HSVColor struct {
	H uint8 `json:"h"`
	S uint8 `json:"s"`
	V uint8 `json:"v"`
}

// HSVSample describes one pixel at every preprocessing step.
//
// Comparing Raw with Corrected shows the effect of the gamma table, and HSV
// shows the exact triple the segmenter compares against the color table
// (after brightness equalization).
type HSVSample struct {
	X         int      `json:"x"`
	Y         int      `json:"y"`
	Hex       string   `json:"hex"`       // Raw pixel as "#RRGGBB"
	Raw       RGBColor `json:"raw"`       // Raw pixel components
	Corrected RGBColor `json:"corrected"` // After gamma correction
	HSV       HSVColor `json:"hsv"`       // After HSV conversion and equalization
}

// SampleHSV reports the preprocessed HSV value of a pixel in a frame.
//
// Parameters:
//   - frame: The raw frame.
//   - x, y: Pixel coordinates (0-based, relative to the frame's top-left).
//   - opts: Preprocessing options. Equalization is tile-based, so the HSV value
//     of a pixel depends on its neighbourhood, not just its own color.
//
// Returns:
//   - *HSVSample: The pixel at each preprocessing step.
//   - error: Non-nil if the coordinates fall outside the frame.
func SampleHSV(frame image.Image, x, y int, opts PreprocessOptions) (*HSVSample, error) {
	bounds := frame.Bounds()
	if x < 0 || x >= bounds.Dx() || y < 0 || y >= bounds.Dy() {
		return nil, fmt.Errorf("coordinates (%d,%d) outside frame bounds %dx%d", x, y, bounds.Dx(), bounds.Dy())
	}

	r, g, b, _ := frame.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
	r8, g8, b8 := uint8(r>>8), uint8(g>>8), uint8(b>>8)

	corrected, hsv := Preprocess(frame, opts)
	c := corrected.NRGBAAt(x, y)
	h, s, v := hsv.At(x, y)

	return &HSVSample{
		X:         x,
		Y:         y,
		Hex:       fmt.Sprintf("#%02X%02X%02X", r8, g8, b8),
		Raw:       RGBColor{R: r8, G: g8, B: b8},
		Corrected: RGBColor{R: c.R, G: c.G, B: c.B},
		HSV:       HSVColor{H: h, S: s, V: v},
	}, nil
}
