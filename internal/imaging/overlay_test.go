package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func decodeResultPNG(t *testing.T, b64 string) image.Image {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}
	return img
}

func rgb8(c color.Color) (uint8, uint8, uint8) {
	r, g, b, _ := c.RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}

func TestAnnotate(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{0, 0, 0, 255})

	result, err := Annotate(img, Annotation{
		ROI:        image.Rect(10, 10, 90, 90),
		Center:     image.Pt(50, 50),
		Box:        image.Rect(40, 45, 60, 55),
		GuideColor: "#FF0000",
	})
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}

	if result.Width != 100 || result.Height != 100 {
		t.Errorf("dimensions: got %dx%d, want 100x100", result.Width, result.Height)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}

	out := decodeResultPNG(t, result.ImageBase64)

	if r, g, b := rgb8(out.At(10, 50)); r != 255 || g != 0 || b != 0 {
		t.Errorf("ROI edge: got (%d,%d,%d), want red", r, g, b)
	}
	if r, g, b := rgb8(out.At(40, 50)); r != 255 || g != 200 || b != 0 {
		t.Errorf("candidate box edge: got (%d,%d,%d), want (255,200,0)", r, g, b)
	}
	if r, g, b := rgb8(out.At(30, 30)); r != 0 || g != 0 || b != 0 {
		t.Errorf("interior should be untouched: got (%d,%d,%d)", r, g, b)
	}
}

func TestAnnotate_Outline(t *testing.T) {
	img := createInMemoryImage(50, 50, color.RGBA{0, 0, 0, 255})

	result, err := Annotate(img, Annotation{
		Outline: []image.Point{{5, 5}, {25, 5}, {25, 25}, {5, 25}},
		Center:  image.Pt(-100, -100),
	})
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}
	out := decodeResultPNG(t, result.ImageBase64)

	for _, p := range []image.Point{{15, 5}, {25, 15}, {15, 25}, {5, 15}} {
		if _, g, _ := rgb8(out.At(p.X, p.Y)); g != 255 {
			t.Errorf("outline pixel %v not drawn", p)
		}
	}
}

func TestAnnotate_InvalidColorFallsBack(t *testing.T) {
	img := createInMemoryImage(40, 40, color.RGBA{0, 0, 0, 255})

	for _, c := range []string{"", "invalid", "#GG0000"} {
		result, err := Annotate(img, Annotation{ROI: image.Rect(0, 0, 40, 40), GuideColor: c})
		if err != nil {
			t.Fatalf("Annotate(%q) failed: %v", c, err)
		}
		out := decodeResultPNG(t, result.ImageBase64)
		if r, g, b := rgb8(out.At(0, 20)); r != 60 || g != 255 || b != 60 {
			t.Errorf("color %q: got (%d,%d,%d), want default green", c, r, g, b)
		}
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		input   string
		want    color.RGBA
		wantErr bool
	}{
		{"#FF0000", color.RGBA{255, 0, 0, 255}, false},
		{"#00FF00", color.RGBA{0, 255, 0, 255}, false},
		{"0000FF", color.RGBA{0, 0, 255, 255}, false},
		{"#FF000080", color.RGBA{255, 0, 0, 128}, false},
		{"", color.RGBA{}, true},
		{"#FFF", color.RGBA{}, true},
		{"#GGGGGG", color.RGBA{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseHexColor(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDrawLabel(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 120, 40))
	fg := color.RGBA{255, 255, 255, 255}
	bg := color.RGBA{0, 0, 0, 255}

	drawLabel(img, 5, 5, "Study", fg, bg)

	found := false
	for y := 5; y < 20 && !found; y++ {
		for x := 5; x < 45; x++ {
			if img.RGBAAt(x, y) == fg {
				found = true
				break
			}
		}
	}
	if !found {
		t.Error("no glyph pixels drawn in the label box")
	}
}

func TestDrawLabel_BoundsCheck(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))

	// Should not panic when the label runs off the image
	drawLabel(img, 15, 15, "overflowing text", color.RGBA{255, 255, 255, 255}, color.RGBA{})
	drawLabel(img, 0, 0, "", color.RGBA{255, 255, 255, 255}, color.RGBA{})
}
