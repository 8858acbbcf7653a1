package imaging

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// HSVFrame is a planar HSV image using the 8-bit OpenCV convention.
//
// Each plane holds Width*Height values in row-major order. H ranges 0-179,
// S and V range 0-255.
type HSVFrame struct {
	Width  int
	Height int
	H      []uint8
	S      []uint8
	V      []uint8
}

// NewHSVFrame allocates a zeroed HSV frame of the given size.
func NewHSVFrame(width, height int) *HSVFrame {
	n := width * height
	return &HSVFrame{
		Width:  width,
		Height: height,
		H:      make([]uint8, n),
		S:      make([]uint8, n),
		V:      make([]uint8, n),
	}
}

// At returns the HSV triple at (x, y). No bounds checking is performed.
func (f *HSVFrame) At(x, y int) (h, s, v uint8) {
	i := y*f.Width + x
	return f.H[i], f.S[i], f.V[i]
}

// Set stores an HSV triple at (x, y). No bounds checking is performed.
func (f *HSVFrame) Set(x, y int, h, s, v uint8) {
	i := y*f.Width + x
	f.H[i], f.S[i], f.V[i] = h, s, v
}

// PreprocessOptions controls the preprocessing stage.
type PreprocessOptions struct {
	// UseGamma enables the gamma lookup table.
	UseGamma bool `json:"use_gamma"`

	// Gamma is the correction exponent. Values above 1.0 brighten midtones.
	Gamma float64 `json:"gamma"`

	// ClipLimit bounds each histogram bin at ClipLimit times the mean bin
	// height before equalization. Zero or negative disables clipping.
	ClipLimit float64 `json:"clahe_clip_limit"`

	// TileGrid is the number of equalization tiles along each axis.
	TileGrid int `json:"clahe_tiles"`
}

// DefaultPreprocessOptions returns the settings tuned for a desk camera at
// roughly 30 cm from the work surface.
func DefaultPreprocessOptions() PreprocessOptions {
	return PreprocessOptions{
		UseGamma:  true,
		Gamma:     1.2,
		ClipLimit: 2.0,
		TileGrid:  8,
	}
}

// Preprocess normalizes a raw color frame for segmentation.
//
// Returns the gamma-corrected copy of the frame (a plain copy when gamma is
// disabled) and the HSV frame whose V channel has been equalized with CLAHE.
// The input frame is not modified.
func Preprocess(frame image.Image, opts PreprocessOptions) (*image.NRGBA, *HSVFrame) {
	var corrected *image.NRGBA
	if opts.UseGamma && opts.Gamma > 0 {
		corrected = imaging.AdjustGamma(frame, opts.Gamma)
	} else {
		corrected = imaging.Clone(frame)
	}

	hsv := ToHSV(corrected)
	hsv.V = EqualizeAdaptive(hsv.V, hsv.Width, hsv.Height, opts.ClipLimit, opts.TileGrid)
	return corrected, hsv
}

// ToHSV converts an NRGBA image to a planar HSV frame. Alpha is ignored.
func ToHSV(img *image.NRGBA) *HSVFrame {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	out := NewHSVFrame(width, height)

	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for x := 0; x < width; x++ {
			h, s, v := rgbToHSV(row[x*4], row[x*4+1], row[x*4+2])
			out.Set(x, y, h, s, v)
		}
	}
	return out
}

// rgbToHSV converts 8-bit RGB to 8-bit OpenCV-style HSV.
func rgbToHSV(r, g, b uint8) (uint8, uint8, uint8) {
	c := colorful.Color{R: float64(r) / 255.0, G: float64(g) / 255.0, B: float64(b) / 255.0}
	h, s, v := c.Hsv()

	// Hue is halved to fit a byte; 359.x degrees rounds to 180 which wraps to 0.
	hue := int(math.Round(h/2)) % 180
	return uint8(hue), uint8(math.Round(s * 255)), uint8(math.Round(v * 255))
}
