package detection

import (
	"image"
	"math"
)

// Contour is a closed boundary polygon in pixel coordinates. The last point
// connects back to the first.
type Contour []image.Point

// moore lists the 8 neighbor offsets clockwise (y grows downward),
// starting at West.
var moore = [8]image.Point{
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1},
}

// FindExternalContours extracts the outer boundary of every 8-connected
// foreground region of a binary mask (non-zero = foreground).
//
// Regions nested inside a hole of another region are skipped, so only the
// outermost boundaries are returned. Boundaries are traced clockwise from
// each region's first pixel in raster order, and runs of collinear points
// are compressed to their end points.
//
// # Algorithm
//
//  1. Flood-fill the background from the image border (4-connected) to tell
//     the outside apart from enclosed holes
//  2. Label foreground regions by flood fill (8-connected), in raster order
//  3. A region is external when the pixel above its first pixel is outside
//     (or the region touches the top row)
//  4. Trace each external region with Moore-neighbor tracing
func FindExternalContours(mask *image.Gray) []Contour {
	bounds := mask.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	fg := func(x, y int) bool {
		if x < 0 || y < 0 || x >= width || y >= height {
			return false
		}
		return mask.Pix[y*mask.Stride+x] != 0
	}

	outside := markOutside(width, height, fg)
	visited := make([]bool, width*height)
	contours := make([]Contour, 0)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !fg(x, y) || visited[y*width+x] {
				continue
			}
			fillRegion(visited, x, y, width, height, fg)
			if y > 0 && !outside[(y-1)*width+x] {
				continue
			}
			contours = append(contours, compress(traceBoundary(image.Pt(x, y), fg)))
		}
	}
	return contours
}

// markOutside flood-fills background reachable from the image border.
// Uses a stack-based approach to avoid deep recursion on large frames.
func markOutside(width, height int, fg func(x, y int) bool) []bool {
	outside := make([]bool, width*height)
	stack := make([]image.Point, 0, 2*(width+height))
	for x := 0; x < width; x++ {
		stack = append(stack, image.Pt(x, 0), image.Pt(x, height-1))
	}
	for y := 0; y < height; y++ {
		stack = append(stack, image.Pt(0, y), image.Pt(width-1, y))
	}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		i := p.Y*width + p.X
		if outside[i] || fg(p.X, p.Y) {
			continue
		}
		outside[i] = true

		// 4-connected, the dual of 8-connected foreground
		stack = append(stack,
			image.Pt(p.X+1, p.Y), image.Pt(p.X-1, p.Y),
			image.Pt(p.X, p.Y+1), image.Pt(p.X, p.Y-1))
	}
	return outside
}

// fillRegion marks every foreground pixel 8-connected to (startX, startY).
func fillRegion(visited []bool, startX, startY, width, height int, fg func(x, y int) bool) {
	stack := []image.Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		i := p.Y*width + p.X
		if visited[i] || !fg(p.X, p.Y) {
			continue
		}
		visited[i] = true

		for _, d := range moore {
			stack = append(stack, p.Add(d))
		}
	}
}

// traceBoundary walks the outer boundary of the region containing start,
// which must be the region's first pixel in raster order (so its West
// neighbor is background).
//
// Tracing stops when the walk is back at start and about to repeat its
// first move.
func traceBoundary(start image.Point, fg func(x, y int) bool) Contour {
	contour := Contour{start}
	cur := start
	back := 0 // direction from cur to the last background pixel examined

	// A boundary pixel is visited at most 4 times; anything beyond that is a bug.
	limit := 0
	for {
		next, nextBack, ok := mooreStep(cur, back, fg)
		if !ok {
			return contour // isolated pixel
		}
		if cur == start && len(contour) > 1 && next == contour[1] {
			break
		}
		contour = append(contour, next)
		cur, back = next, nextBack

		limit++
		if limit > 1<<24 {
			break
		}
	}

	if len(contour) > 1 && contour[len(contour)-1] == start {
		contour = contour[:len(contour)-1]
	}
	return contour
}

// mooreStep scans the neighbors of cur clockwise, starting just after the
// backtrack direction, and returns the first foreground neighbor together
// with the new backtrack direction as seen from that neighbor.
func mooreStep(cur image.Point, back int, fg func(x, y int) bool) (image.Point, int, bool) {
	for i := 1; i <= 8; i++ {
		d := (back + i) % 8
		n := cur.Add(moore[d])
		if !fg(n.X, n.Y) {
			continue
		}
		prev := cur.Add(moore[(d+7)%8])
		return n, direction(prev.Sub(n)), true
	}
	return cur, back, false
}

// direction returns the index in moore of a unit offset.
func direction(d image.Point) int {
	for i, m := range moore {
		if m == d {
			return i
		}
	}
	return 0
}

// compress drops points that lie between two steps in the same direction.
func compress(c Contour) Contour {
	n := len(c)
	if n < 3 {
		return c
	}
	out := make(Contour, 0, n)
	for i := 0; i < n; i++ {
		prev := c[(i+n-1)%n]
		next := c[(i+1)%n]
		if c[i].Sub(prev) == next.Sub(c[i]) {
			continue
		}
		out = append(out, c[i])
	}
	if len(out) == 0 {
		// a straight line folded onto itself keeps its two ends
		return Contour{c[0], c[n/2]}
	}
	return out
}

// Area returns the enclosed area by the shoelace formula. The result is
// non-negative regardless of orientation.
func (c Contour) Area() float64 {
	return math.Abs(c.signedArea())
}

func (c Contour) signedArea() float64 {
	n := len(c)
	if n < 3 {
		return 0
	}
	sum := 0
	for i := 0; i < n; i++ {
		p, q := c[i], c[(i+1)%n]
		sum += p.X*q.Y - q.X*p.Y
	}
	return float64(sum) / 2
}

// Perimeter returns the length of the closed polyline.
func (c Contour) Perimeter() float64 {
	n := len(c)
	if n < 2 {
		return 0
	}
	total := 0.0
	for i := 0; i < n; i++ {
		p, q := c[i], c[(i+1)%n]
		total += math.Hypot(float64(q.X-p.X), float64(q.Y-p.Y))
	}
	return total
}

// BoundingRect returns the smallest rectangle containing every point.
// Max is exclusive, so a single point yields a 1x1 rectangle.
func (c Contour) BoundingRect() image.Rectangle {
	if len(c) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: c[0], Max: c[0]}
	for _, p := range c[1:] {
		if p.X < r.Min.X {
			r.Min.X = p.X
		}
		if p.X > r.Max.X {
			r.Max.X = p.X
		}
		if p.Y < r.Min.Y {
			r.Min.Y = p.Y
		}
		if p.Y > r.Max.Y {
			r.Max.Y = p.Y
		}
	}
	r.Max = r.Max.Add(image.Pt(1, 1))
	return r
}

// Moments holds the zeroth and first order area moments of a polygon.
type Moments struct {
	M00 float64
	M10 float64
	M01 float64
}

// Moments computes area moments with Green's theorem. M00 is the (positive)
// area; the first order moments are oriented to match.
func (c Contour) Moments() Moments {
	var m Moments
	n := len(c)
	if n < 3 {
		return m
	}
	for i := 0; i < n; i++ {
		p, q := c[i], c[(i+1)%n]
		a := float64(p.X*q.Y - q.X*p.Y)
		m.M00 += a
		m.M10 += float64(p.X+q.X) * a
		m.M01 += float64(p.Y+q.Y) * a
	}
	m.M00 /= 2
	m.M10 /= 6
	m.M01 /= 6
	if m.M00 < 0 {
		m.M00, m.M10, m.M01 = -m.M00, -m.M10, -m.M01
	}
	return m
}

// Centroid returns the area centroid truncated to whole pixels. ok is false
// for degenerate contours whose area moment is zero.
func (c Contour) Centroid() (image.Point, bool) {
	m := c.Moments()
	if m.M00 == 0 {
		return image.Point{}, false
	}
	return image.Pt(int(m.M10/m.M00), int(m.M01/m.M00)), true
}

// Contains reports whether p lies inside the contour or on its boundary.
func (c Contour) Contains(p image.Point) bool {
	n := len(c)
	if n == 0 {
		return false
	}
	if n == 1 {
		return c[0] == p
	}

	for i := 0; i < n; i++ {
		if onSegment(p, c[i], c[(i+1)%n]) {
			return true
		}
	}
	if n < 3 {
		return false
	}

	// Ray casting to the right
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := c[i], c[j]
		if (pi.Y > p.Y) != (pj.Y > p.Y) {
			xCross := float64(pj.X-pi.X)*float64(p.Y-pi.Y)/float64(pj.Y-pi.Y) + float64(pi.X)
			if float64(p.X) < xCross {
				inside = !inside
			}
		}
	}
	return inside
}

// onSegment reports whether p lies on the closed segment a-b.
func onSegment(p, a, b image.Point) bool {
	cross := (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
	if cross != 0 {
		return false
	}
	return p.X >= min(a.X, b.X) && p.X <= max(a.X, b.X) &&
		p.Y >= min(a.Y, b.Y) && p.Y <= max(a.Y, b.Y)
}

// ApproxPolygon simplifies a closed contour with the Douglas-Peucker
// algorithm. No point of the original lies farther than epsilon from the
// result.
//
// The contour is split at the point farthest from its first point, and each
// half is simplified on its own so the closing edge is handled like any other.
func (c Contour) ApproxPolygon(epsilon float64) Contour {
	n := len(c)
	if n < 3 {
		return append(Contour(nil), c...)
	}

	far := 0
	best := -1.0
	for i, p := range c {
		d := sqDist(c[0], p)
		if d > best {
			best, far = d, i
		}
	}
	if far == 0 {
		return Contour{c[0]}
	}

	keep := make([]bool, n+1)
	keep[0], keep[far], keep[n] = true, true, true

	closed := append(append(Contour(nil), c...), c[0])
	douglasPeucker(closed, 0, far, epsilon, keep)
	douglasPeucker(closed, far, n, epsilon, keep)

	out := make(Contour, 0)
	for i := 0; i < n; i++ {
		if keep[i] {
			out = append(out, c[i])
		}
	}
	return out
}

func douglasPeucker(pts Contour, first, last int, epsilon float64, keep []bool) {
	if last-first < 2 {
		return
	}
	idx := -1
	maxDist := epsilon
	for i := first + 1; i < last; i++ {
		d := segmentDistance(pts[i], pts[first], pts[last])
		if d > maxDist {
			maxDist, idx = d, i
		}
	}
	if idx < 0 {
		return
	}
	keep[idx] = true
	douglasPeucker(pts, first, idx, epsilon, keep)
	douglasPeucker(pts, idx, last, epsilon, keep)
}

// segmentDistance is the distance from p to the segment a-b.
func segmentDistance(p, a, b image.Point) float64 {
	dx, dy := float64(b.X-a.X), float64(b.Y-a.Y)
	px, py := float64(p.X-a.X), float64(p.Y-a.Y)
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(px, py)
	}
	t := (px*dx + py*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(px-t*dx, py-t*dy)
}

func sqDist(a, b image.Point) float64 {
	dx, dy := float64(a.X-b.X), float64(a.Y-b.Y)
	return dx*dx + dy*dy
}
