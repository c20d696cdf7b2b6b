// Package geometry holds the pure coordinate conversions shared by the
// editor, the ingestion pipeline and the exporters: normalized center-form
// boxes to pixel corner-form rectangles and back, and screen coordinates to
// image-pixel coordinates under a pan/zoom viewport.
package geometry

import (
	"github.com/menta2k/yolo-annotator/pkg/types"
)

// Rect is an axis-aligned rectangle in image pixels, corner-form: (X, Y) is
// the top-left corner.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// ToPixelRect converts a normalized center-form box to a pixel corner-form
// rectangle. Callers must reject degenerate images (imgW or imgH zero) before
// calling; the conversion itself does not guard.
func ToPixelRect(b types.Box, imgW, imgH float64) Rect {
	w := b.W * imgW
	h := b.H * imgH
	return Rect{
		X: b.X*imgW - w/2,
		Y: b.Y*imgH - h/2,
		W: w,
		H: h,
	}
}

// ToNormalized converts a pixel corner-form rectangle back to a normalized
// center-form box. For any box with positive size, ToNormalized(ToPixelRect(b))
// reproduces b to floating-point precision.
func ToNormalized(r Rect, imgW, imgH float64) types.Box {
	return types.Box{
		X: (r.X + r.W/2) / imgW,
		Y: (r.Y + r.H/2) / imgH,
		W: r.W / imgW,
		H: r.H / imgH,
	}
}

// ScreenToImage maps a screen-space point into image-pixel space under the
// given viewport. Pan and zoom can change between pointer events, so callers
// recompute this on every event rather than caching the result.
func ScreenToImage(p types.Point, vp types.Viewport) types.Point {
	return types.Point{
		X: (p.X - vp.OriginX - vp.Pan.X) / vp.Zoom,
		Y: (p.Y - vp.OriginY - vp.Pan.Y) / vp.Zoom,
	}
}

// ImageToScreen is the inverse of ScreenToImage.
func ImageToScreen(p types.Point, vp types.Viewport) types.Point {
	return types.Point{
		X: p.X*vp.Zoom + vp.OriginX + vp.Pan.X,
		Y: p.Y*vp.Zoom + vp.OriginY + vp.Pan.Y,
	}
}

// Contains reports whether the image-space point lies inside the rectangle.
func (r Rect) Contains(p types.Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// Corner returns the rectangle corner at the given horizontal/vertical side.
func (r Rect) Corner(right, bottom bool) types.Point {
	p := types.Point{X: r.X, Y: r.Y}
	if right {
		p.X = r.X + r.W
	}
	if bottom {
		p.Y = r.Y + r.H
	}
	return p
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampBox clamps a normalized box so it lies entirely within [0,1] in both
// axes, working in corner-form so the center shifts rather than the box
// collapsing. Boxes pushed partially off-image during editing are brought
// back in range at export time with this.
func ClampBox(b types.Box) types.Box {
	xmin := Clamp(b.X-b.W/2, 0, 1)
	ymin := Clamp(b.Y-b.H/2, 0, 1)
	xmax := Clamp(b.X+b.W/2, 0, 1)
	ymax := Clamp(b.Y+b.H/2, 0, 1)
	return types.Box{
		X: (xmin + xmax) / 2,
		Y: (ymin + ymax) / 2,
		W: xmax - xmin,
		H: ymax - ymin,
	}
}
