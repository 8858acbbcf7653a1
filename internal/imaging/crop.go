package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// CropResult contains the cropped image data
type CropResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Crop extracts a rectangular region from a frame and encodes it as PNG.
//
// The region is given in frame coordinates (origin at the frame's top-left).
// A scale other than 1.0 resizes the crop with a Lanczos filter.
func Crop(img image.Image, region image.Rectangle, scale float64) (*CropResult, error) {
	bounds := img.Bounds()
	frame := image.Rect(0, 0, bounds.Dx(), bounds.Dy())

	if region.Empty() {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}
	if !region.In(frame) {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside frame bounds %dx%d",
			region.Min.X, region.Min.Y, region.Max.X, region.Max.Y, frame.Dx(), frame.Dy())
	}

	cropped := imaging.Crop(img, region.Add(bounds.Min))

	if scale != 1.0 && scale > 0 {
		newWidth := int(float64(cropped.Bounds().Dx()) * scale)
		newHeight := int(float64(cropped.Bounds().Dy()) * scale)
		if newWidth < 1 || newHeight < 1 {
			return nil, fmt.Errorf("scale %.3f reduces crop below one pixel", scale)
		}
		cropped = imaging.Resize(cropped, newWidth, newHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, cropped); err != nil {
		return nil, fmt.Errorf("failed to encode cropped image: %w", err)
	}

	return &CropResult{
		Width:       cropped.Bounds().Dx(),
		Height:      cropped.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
