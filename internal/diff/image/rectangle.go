package image

import (
	"image/color"
	"visual-regression/internal/raster"
)

type Rectangle struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Regions clusters the report's differing pixels into bounding boxes.
// Pixels within gap of each other (Chebyshev distance) belong to the same
// cluster, and boxes closer than gap are merged afterwards. With a pixel
// skip, gap should be at least the skip so sampled neighbors connect.
func Regions(report *Report, gap int) []Rectangle {
	if report == nil || report.NumDifferences == 0 || report.Width <= 0 || report.Height <= 0 {
		return nil
	}
	if gap < 1 {
		gap = 1
	}

	width := report.Width
	height := report.Height
	numPixels := width * height

	diffMap := make([]bool, numPixels)
	for _, index := range report.Differences {
		if index >= 0 && index < numPixels {
			diffMap[index] = true
		}
	}
	visited := make([]bool, numPixels)

	var rectangles []Rectangle
	for _, index := range report.Differences {
		if index < 0 || index >= numPixels || visited[index] {
			continue
		}
		rectangles = append(rectangles, findBoundingBox(diffMap, visited, index, width, height, gap))
	}

	return mergeRectangles(rectangles, gap)
}

func findBoundingBox(diffMap []bool, visited []bool, start int, width int, height int, gap int) Rectangle {
	minX := start % width
	minY := start / width
	maxX := minX
	maxY := minY

	queue := []int{start}
	visited[start] = true

	for len(queue) > 0 {
		index := queue[0]
		queue = queue[1:]

		x := index % width
		y := index / width
		minX = min(minX, x)
		maxX = max(maxX, x)
		minY = min(minY, y)
		maxY = max(maxY, y)

		for ny := max(0, y-gap); ny <= min(height-1, y+gap); ny++ {
			for nx := max(0, x-gap); nx <= min(width-1, x+gap); nx++ {
				n := ny*width + nx
				if diffMap[n] && !visited[n] {
					visited[n] = true
					queue = append(queue, n)
				}
			}
		}
	}

	return Rectangle{
		X:      minX,
		Y:      minY,
		Width:  maxX - minX + 1,
		Height: maxY - minY + 1,
	}
}

func mergeRectangles(rects []Rectangle, threshold int) []Rectangle {
	if len(rects) <= 1 {
		return rects
	}

	merged := make([]Rectangle, 0, len(rects))
	used := make([]bool, len(rects))

	for i := 0; i < len(rects); i++ {
		if used[i] {
			continue
		}

		current := rects[i]
		mergedAny := true

		for mergedAny {
			mergedAny = false
			for j := i + 1; j < len(rects); j++ {
				if used[j] {
					continue
				}

				if rectanglesOverlap(current, rects[j]) || rectanglesClose(current, rects[j], threshold) {
					current = combineRectangles(current, rects[j])
					used[j] = true
					mergedAny = true
				}
			}
		}

		merged = append(merged, current)
	}

	return merged
}

func rectanglesOverlap(r1 Rectangle, r2 Rectangle) bool {
	return !(r1.X+r1.Width <= r2.X || r2.X+r2.Width <= r1.X ||
		r1.Y+r1.Height <= r2.Y || r2.Y+r2.Height <= r1.Y)
}

func rectanglesClose(r1 Rectangle, r2 Rectangle, threshold int) bool {
	expand := func(r Rectangle) Rectangle {
		return Rectangle{
			X:      r.X - threshold,
			Y:      r.Y - threshold,
			Width:  r.Width + 2*threshold,
			Height: r.Height + 2*threshold,
		}
	}
	return rectanglesOverlap(expand(r1), expand(r2))
}

func combineRectangles(r1 Rectangle, r2 Rectangle) Rectangle {
	minX := min(r1.X, r2.X)
	minY := min(r1.Y, r2.Y)
	maxX := max(r1.X+r1.Width, r2.X+r2.Width)
	maxY := max(r1.Y+r1.Height, r2.Y+r2.Height)

	return Rectangle{
		X:      minX,
		Y:      minY,
		Width:  maxX - minX,
		Height: maxY - minY,
	}
}

// OutlineRegions draws a border of the given thickness just outside every
// rectangle, clipped to the image.
func OutlineRegions(img *raster.Image, rects []Rectangle, c color.NRGBA, thickness int) {
	set := func(x int, y int) {
		if x >= 0 && x < img.Width && y >= 0 && y < img.Height {
			img.SetNRGBA(y*img.Width+x, c)
		}
	}

	for _, rect := range rects {
		for t := 1; t <= thickness; t++ {
			top := rect.Y - t
			bottom := rect.Y + rect.Height - 1 + t
			left := rect.X - t
			right := rect.X + rect.Width - 1 + t

			for x := left; x <= right; x++ {
				set(x, top)
				set(x, bottom)
			}
			for y := top; y <= bottom; y++ {
				set(left, y)
				set(right, y)
			}
		}
	}
}
