package imaging

import "math"

// EqualizeAdaptive applies contrast-limited adaptive histogram equalization
// (CLAHE) to a single 8-bit plane.
//
// Parameters:
//   - plane: Row-major pixel values, len(plane) == width*height.
//   - width, height: Plane dimensions.
//   - clipLimit: Histogram clip factor relative to the mean bin height.
//     Values <= 0 disable clipping (plain tiled equalization).
//   - grid: Tiles per axis. Clamped to [1, dimension].
//
// Returns a new plane; the input is not modified.
//
// # Algorithm
//
//  1. Split the plane into grid x grid tiles and histogram each tile
//  2. Clip every bin at max(1, clipLimit*tileArea/256) and spread the excess
//     evenly over all bins (any remainder goes to evenly spaced bins)
//  3. Build a cumulative lookup table per tile scaled to 0-255
//  4. Map each pixel by bilinear interpolation between the lookup tables of
//     the four nearest tile centers (edges and corners use fewer tiles)
func EqualizeAdaptive(plane []uint8, width, height int, clipLimit float64, grid int) []uint8 {
	out := make([]uint8, len(plane))
	if width <= 0 || height <= 0 || len(plane) < width*height {
		copy(out, plane)
		return out
	}

	tilesX := clamp(grid, 1, width)
	tilesY := clamp(grid, 1, height)
	tileW := float64(width) / float64(tilesX)
	tileH := float64(height) / float64(tilesY)

	luts := make([][256]uint8, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		y0 := int(math.Round(float64(ty) * tileH))
		y1 := int(math.Round(float64(ty+1) * tileH))
		for tx := 0; tx < tilesX; tx++ {
			x0 := int(math.Round(float64(tx) * tileW))
			x1 := int(math.Round(float64(tx+1) * tileW))

			var hist [256]int
			for y := y0; y < y1; y++ {
				for _, v := range plane[y*width+x0 : y*width+x1] {
					hist[v]++
				}
			}
			area := (x1 - x0) * (y1 - y0)
			clipHistogram(&hist, clipLimit, area)
			luts[ty*tilesX+tx] = cumulativeLUT(&hist, area)
		}
	}

	for y := 0; y < height; y++ {
		ty0, ty1, wy := tileWeights(y, tileH, tilesY)
		for x := 0; x < width; x++ {
			tx0, tx1, wx := tileWeights(x, tileW, tilesX)
			v := plane[y*width+x]

			top := (1-wx)*float64(luts[ty0*tilesX+tx0][v]) + wx*float64(luts[ty0*tilesX+tx1][v])
			bottom := (1-wx)*float64(luts[ty1*tilesX+tx0][v]) + wx*float64(luts[ty1*tilesX+tx1][v])
			out[y*width+x] = uint8(clamp(int(math.Round((1-wy)*top+wy*bottom)), 0, 255))
		}
	}
	return out
}

// clipHistogram clips bins above the limit and redistributes the excess.
func clipHistogram(hist *[256]int, clipLimit float64, area int) {
	if clipLimit <= 0 || area <= 0 {
		return
	}
	limit := int(clipLimit * float64(area) / 256)
	if limit < 1 {
		limit = 1
	}

	excess := 0
	for i := range hist {
		if hist[i] > limit {
			excess += hist[i] - limit
			hist[i] = limit
		}
	}

	batch := excess / 256
	residual := excess - batch*256
	for i := range hist {
		hist[i] += batch
	}
	if residual > 0 {
		step := 256 / residual
		if step < 1 {
			step = 1
		}
		for i := 0; i < 256 && residual > 0; i += step {
			hist[i]++
			residual--
		}
	}
}

// cumulativeLUT turns a (clipped) histogram into a 0-255 lookup table.
func cumulativeLUT(hist *[256]int, area int) [256]uint8 {
	var lut [256]uint8
	if area <= 0 {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}
	scale := 255.0 / float64(area)
	sum := 0
	for i := range hist {
		sum += hist[i]
		lut[i] = uint8(clamp(int(math.Round(float64(sum)*scale)), 0, 255))
	}
	return lut
}

// tileWeights locates the two tiles whose centers bracket pixel p and the
// interpolation weight of the second one.
func tileWeights(p int, tileSize float64, tiles int) (int, int, float64) {
	f := (float64(p)+0.5)/tileSize - 0.5
	t0 := int(math.Floor(f))
	w := f - float64(t0)
	t1 := t0 + 1
	if t0 < 0 {
		return 0, 0, 0
	}
	if t1 >= tiles {
		return tiles - 1, tiles - 1, 0
	}
	return t0, t1, w
}

// clamp constrains an integer value to the range [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
