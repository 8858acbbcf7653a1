package detection

import (
	"image"
	"math"
)

// Shape is the coarse geometric class of a contour.
type Shape string

// Shape classes. Square is part of the vocabulary the object rules accept,
// but ClassifyShape reports square contours as Rectangle.
const (
	Rectangle Shape = "Rectangle"
	Square    Shape = "Square"
	Circle    Shape = "Circle"
	Oval      Shape = "Oval"
	Unknown   Shape = "Unknown"
)

// Thresholds used by ClassifyShape.
const (
	// ApproxTolerance is the polygon approximation tolerance as a fraction
	// of the contour perimeter.
	ApproxTolerance = 0.02

	// MinRectangularity is the area/bounding-box ratio above which a
	// many-sided polygon still counts as a rectangle.
	MinRectangularity = 0.85

	// Elongation is the bounding box side ratio above which any contour is
	// treated as a rectangle (pen-like slivers approximate badly).
	Elongation = 5.0

	// MinCircularity is the 4*pi*area/perimeter^2 threshold for Circle.
	MinCircularity = 0.67

	// aspectSentinel stands in for w/h when the approximation has no height.
	aspectSentinel = 999.0
)

// ShapeFeatures are the measurements the shape decision is made from.
type ShapeFeatures struct {
	// Area is the enclosed contour area in square pixels.
	Area float64 `json:"area"`

	// Perimeter is the closed contour length in pixels.
	Perimeter float64 `json:"perimeter"`

	// Vertices is the vertex count of the polygon approximation.
	Vertices int `json:"vertices"`

	// Width and Height are the bounding box of the approximation.
	Width  int `json:"width"`
	Height int `json:"height"`

	// AspectRatio is Width/Height, or 999 when Height is zero.
	AspectRatio float64 `json:"aspect_ratio"`

	// Rectangularity is Area / (Width * Height), 0 when the box is empty.
	Rectangularity float64 `json:"rectangularity"`

	// Circularity is 4*pi*Area / Perimeter^2, 0 when Perimeter is zero.
	Circularity float64 `json:"circularity"`
}

// Describe measures a contour for shape classification.
//
// The width and height are the inclusive pixel extents of the polygon
// approximation (tolerance ApproxTolerance * perimeter).
func Describe(c Contour) ShapeFeatures {
	f := ShapeFeatures{
		Area:      c.Area(),
		Perimeter: c.Perimeter(),
	}

	approx := c.ApproxPolygon(ApproxTolerance * f.Perimeter)
	f.Vertices = len(approx)

	box := approx.BoundingRect()
	f.Width = box.Dx()
	f.Height = box.Dy()

	if f.Height > 0 {
		f.AspectRatio = float64(f.Width) / float64(f.Height)
	} else {
		f.AspectRatio = aspectSentinel
	}
	if f.Width > 0 && f.Height > 0 {
		f.Rectangularity = f.Area / float64(f.Width*f.Height)
	}
	if f.Perimeter > 0 {
		f.Circularity = 4 * math.Pi * f.Area / (f.Perimeter * f.Perimeter)
	}
	return f
}

// ClassifyShape assigns a coarse shape class to a contour.
//
// Decision order (first match wins):
//
//  1. Unknown if the contour encloses no area
//  2. Rectangle if the approximation has exactly 4 vertices, or more than 4
//     with rectangularity above MinRectangularity, or the bounding box is
//     more than Elongation times longer on one side
//  3. Circle if circularity is above MinCircularity
//  4. Oval otherwise
func ClassifyShape(c Contour) Shape {
	shape, _ := classify(c)
	return shape
}

// ClassifyShapeWithFeatures is ClassifyShape that also returns the
// measurements behind the decision.
func ClassifyShapeWithFeatures(c Contour) (Shape, ShapeFeatures) {
	return classify(c)
}

func classify(c Contour) (Shape, ShapeFeatures) {
	if c.Area() <= 0 {
		return Unknown, ShapeFeatures{}
	}
	f := Describe(c)

	w, h := float64(f.Width), float64(f.Height)
	switch {
	case f.Vertices == 4,
		f.Vertices > 4 && f.Rectangularity > MinRectangularity,
		w > Elongation*h,
		h > Elongation*w:
		return Rectangle, f
	case f.Circularity > MinCircularity:
		return Circle, f
	}
	return Oval, f
}

// Bounds represents a rectangular bounding box in pixel coordinates.
//
// The coordinate convention follows standard image bounds:
//   - (X1, Y1) is the top-left corner (inclusive)
//   - (X2, Y2) is the bottom-right corner (exclusive)
type Bounds struct {
	X1 int `json:"x1"` // Left edge (inclusive)
	Y1 int `json:"y1"` // Top edge (inclusive)
	X2 int `json:"x2"` // Right edge (exclusive)
	Y2 int `json:"y2"` // Bottom edge (exclusive)
}

// BoundsOf converts an image rectangle to Bounds.
func BoundsOf(r image.Rectangle) Bounds {
	return Bounds{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// Rect converts Bounds back to an image rectangle.
func (b Bounds) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// Point represents a 2D coordinate in pixel space.
type Point struct {
	X int `json:"x"` // Horizontal position (0 = leftmost)
	Y int `json:"y"` // Vertical position (0 = topmost)
}

// PointOf converts an image point to Point.
func PointOf(p image.Point) Point {
	return Point{X: p.X, Y: p.Y}
}
