package facematch

import (
	"image"
	"math"
)

// BBoxFromCorners converts a [x1, y1, x2, y2] pixel box, as returned by the face
// service, into a BBox. Returns false if the slice is malformed or the box is empty.
func BBoxFromCorners(corners []float64) (BBox, bool) {
	if len(corners) != 4 {
		return BBox{}, false
	}
	b := BBox{
		Left:   int(math.Round(corners[0])),
		Top:    int(math.Round(corners[1])),
		Right:  int(math.Round(corners[2])),
		Bottom: int(math.Round(corners[3])),
	}
	if b.Empty() {
		return BBox{}, false
	}
	return b, true
}

// BBoxFromRect converts an image rectangle into a BBox.
func BBoxFromRect(r image.Rectangle) BBox {
	return BBox{Top: r.Min.Y, Right: r.Max.X, Bottom: r.Max.Y, Left: r.Min.X}
}

// Rect returns the box as an image rectangle.
func (b BBox) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// Corners returns the box as [x1, y1, x2, y2].
func (b BBox) Corners() []float64 {
	return []float64{float64(b.Left), float64(b.Top), float64(b.Right), float64(b.Bottom)}
}

// Empty reports whether the box has no area.
func (b BBox) Empty() bool {
	return b.Right <= b.Left || b.Bottom <= b.Top
}

// Scale multiplies every coordinate by factor.
// Used to map boxes found on a downscaled frame back to the original frame.
func (b BBox) Scale(factor float64) BBox {
	if factor == 1 {
		return b
	}
	return BBox{
		Top:    int(math.Round(float64(b.Top) * factor)),
		Right:  int(math.Round(float64(b.Right) * factor)),
		Bottom: int(math.Round(float64(b.Bottom) * factor)),
		Left:   int(math.Round(float64(b.Left) * factor)),
	}
}

// Clamp restricts the box to the given bounds.
func (b BBox) Clamp(bounds image.Rectangle) BBox {
	return BBoxFromRect(b.Rect().Intersect(bounds))
}

// ComputeIoU calculates Intersection over Union between two boxes.
func ComputeIoU(a, b BBox) float64 {
	inter := a.Rect().Intersect(b.Rect())
	if inter.Empty() {
		return 0
	}
	area := func(r image.Rectangle) float64 { return float64(r.Dx() * r.Dy()) }
	intersection := area(inter)
	union := area(a.Rect()) + area(b.Rect()) - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}
