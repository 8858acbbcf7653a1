package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Annotation describes what to draw on top of a frame.
type Annotation struct {
	// ROI is the region-of-interest box, drawn as a 2-pixel outline.
	ROI image.Rectangle

	// Center is the detection anchor, drawn as a small ring.
	Center image.Point

	// Outline is the selected contour. Empty means nothing was selected.
	Outline []image.Point

	// Box is the selected contour's bounding box. Empty means none.
	Box image.Rectangle

	// Lines are text lines drawn in the top-left corner.
	Lines []string

	// GuideColor is the hex color for the ROI and center ("#RRGGBB" or
	// "#RRGGBBAA"). Defaults to green when empty or invalid.
	GuideColor string
}

// AnnotateResult contains the annotated frame as a base64 PNG.
type AnnotateResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Annotate renders the diagnostic view of a frame: ROI box, center marker,
// selected contour and its bounding box, and status text.
func Annotate(img image.Image, a Annotation) (*AnnotateResult, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	guide, err := parseHexColor(a.GuideColor)
	if err != nil {
		guide = color.RGBA{60, 255, 60, 255}
	}
	contourColor := color.RGBA{0, 255, 0, 255}
	boxColor := color.RGBA{255, 200, 0, 255}

	result := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(result, result.Bounds(), img, bounds.Min, draw.Src)

	drawRect(result, a.ROI, guide, 2)
	drawRing(result, a.Center, 6, guide)

	for i := range a.Outline {
		p := a.Outline[i]
		q := a.Outline[(i+1)%len(a.Outline)]
		drawLine(result, p, q, contourColor)
	}
	if !a.Box.Empty() {
		drawRect(result, a.Box, boxColor, 1)
	}

	labelColor := color.RGBA{0, 200, 255, 255}
	bgColor := color.RGBA{0, 0, 0, 180}
	for i, line := range a.Lines {
		drawLabel(result, 10, 10+i*16, line, labelColor, bgColor)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, result); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &AnnotateResult{
		Width:       width,
		Height:      height,
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// parseHexColor parses a hex color string like "#FF0000" or "#FF000080"
func parseHexColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}

	var r, g, b, a uint8 = 0, 0, 0, 255

	switch len(hex) {
	case 6:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		r = uint8(val >> 16)
		g = uint8(val >> 8)
		b = uint8(val)
	case 8:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		r = uint8(val >> 24)
		g = uint8(val >> 16)
		b = uint8(val >> 8)
		a = uint8(val)
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length")
	}

	return color.RGBA{R: r, G: g, B: b, A: a}, nil
}

// drawRect draws a rectangle outline of the given thickness, clipped to the image.
func drawRect(img *image.RGBA, r image.Rectangle, c color.Color, thickness int) {
	if r.Empty() {
		return
	}
	for t := 0; t < thickness; t++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Set(x, r.Min.Y+t, c)
			img.Set(x, r.Max.Y-1-t, c)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			img.Set(r.Min.X+t, y, c)
			img.Set(r.Max.X-1-t, y, c)
		}
	}
}

// drawRing draws a circle outline using the midpoint algorithm.
func drawRing(img *image.RGBA, center image.Point, radius int, c color.Color) {
	x, y, e := radius, 0, 0
	for x >= y {
		for _, p := range [8]image.Point{
			{x, y}, {y, x}, {-y, x}, {-x, y}, {-x, -y}, {-y, -x}, {y, -x}, {x, -y},
		} {
			img.Set(center.X+p.X, center.Y+p.Y, c)
		}
		if e <= 0 {
			y++
			e += 2*y + 1
		}
		if e > 0 {
			x--
			e -= 2*x + 1
		}
	}
}

// drawLine draws a 1-pixel line with Bresenham's algorithm.
func drawLine(img *image.RGBA, p, q image.Point, c color.Color) {
	dx := abs(q.X - p.X)
	dy := -abs(q.Y - p.Y)
	sx, sy := 1, 1
	if p.X > q.X {
		sx = -1
	}
	if p.Y > q.Y {
		sy = -1
	}
	err := dx + dy
	for {
		img.Set(p.X, p.Y, c)
		if p == q {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			p.X += sx
		}
		if e2 <= dx {
			err += dx
			p.Y += sy
		}
	}
}

// drawLabel draws text on a translucent background box with the top-left
// corner of the box at (x, y).
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
	}

	box := image.Rect(x-2, y, x+d.MeasureString(text).Ceil()+2, y+face.Height+2)
	draw.Draw(img, box, image.NewUniform(bg), image.Point{}, draw.Over)

	d.Dot = fixed.P(x, y+face.Ascent+1)
	d.DrawString(text)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
