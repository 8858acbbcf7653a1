package detection

import (
	"image"

	"github.com/ironsheep/desk-mode-mcp/internal/segment"
)

// How a candidate was chosen.
const (
	ViaCenter = "center"
	ViaROI    = "roi"
)

// Candidate is the contour chosen as the object of interest for a frame.
type Candidate struct {
	// Label is the color label of the mask the contour came from.
	Label string `json:"label"`

	// Contour is the traced outer boundary.
	Contour Contour `json:"-"`

	// Centroid is the area centroid, truncated to whole pixels.
	Centroid Point `json:"centroid"`

	// Area is the contour area in square pixels.
	Area float64 `json:"area"`

	// Bounds is the contour's bounding box.
	Bounds Bounds `json:"bounds"`

	// Overlap is the bounding box / ROI intersection area in square pixels.
	Overlap int `json:"roi_overlap"`

	// Via is ViaCenter or ViaROI.
	Via string `json:"via"`
}

// SelectorOptions controls candidate selection.
type SelectorOptions struct {
	// MinArea drops contours smaller than this many square pixels.
	MinArea float64

	// ROIFallback enables the ROI-overlap rule when no contour contains the
	// center point.
	ROIFallback bool
}

// Selection is the outcome of Select.
type Selection struct {
	// Candidate is nil when nothing qualified.
	Candidate *Candidate

	// Combined is the union of all cleaned masks, for display only. It is
	// nil when there were no masks.
	Combined *image.Gray

	// Contours is the number of contours that passed the area filter.
	Contours int
}

// CenterROI returns the frame center and the region of interest around it.
// The region spans scale times each frame dimension.
func CenterROI(width, height int, scale float64) (image.Point, image.Rectangle) {
	cx, cy := width/2, height/2
	rw := int(float64(width) * scale)
	rh := int(float64(height) * scale)
	return image.Pt(cx, cy), image.Rect(cx-rw/2, cy-rh/2, cx+rw/2, cy+rh/2)
}

// Select chooses at most one candidate contour across all label masks.
//
// Each mask is cleaned (see Clean) and its external contours extracted.
// Contours below opts.MinArea, and contours with no area moment, are dropped.
// Then, scanning masks in the order given:
//
//  1. Center priority: the largest-area contour that contains center
//     (inside or on its boundary) wins.
//  2. ROI fallback: if enabled and nothing contains center, the contour whose
//     bounding box has the largest intersection with roi wins. Equal
//     intersections keep the first one found.
//
// Strict comparisons make both rules keep the earliest contour on ties, so
// the result is deterministic for a given mask order.
func Select(center image.Point, roi image.Rectangle, masks []segment.Mask, opts SelectorOptions) Selection {
	var sel Selection
	var best, fallback *Candidate

	for _, m := range masks {
		cleaned := Clean(m.Image)
		sel.Combined = union(sel.Combined, cleaned)

		for _, c := range FindExternalContours(cleaned) {
			area := c.Area()
			if area < opts.MinArea {
				continue
			}
			centroid, ok := c.Centroid()
			if !ok {
				continue
			}
			sel.Contours++

			box := c.BoundingRect()
			overlap := box.Intersect(roi)
			cand := &Candidate{
				Label:    m.Label,
				Contour:  c,
				Centroid: PointOf(centroid),
				Area:     area,
				Bounds:   BoundsOf(box),
				Overlap:  overlap.Dx() * overlap.Dy(),
			}

			if c.Contains(center) {
				if best == nil || cand.Area > best.Area {
					cand.Via = ViaCenter
					best = cand
				}
				continue
			}
			if opts.ROIFallback && cand.Overlap > 0 {
				if fallback == nil || cand.Overlap > fallback.Overlap {
					cand.Via = ViaROI
					fallback = cand
				}
			}
		}
	}

	switch {
	case best != nil:
		sel.Candidate = best
	case fallback != nil:
		sel.Candidate = fallback
	}
	return sel
}

// union ORs src into dst, allocating dst on first use.
func union(dst, src *image.Gray) *image.Gray {
	if dst == nil {
		dst = image.NewGray(src.Bounds())
	}
	for i, p := range src.Pix {
		if p != 0 && i < len(dst.Pix) {
			dst.Pix[i] = 255
		}
	}
	return dst
}
