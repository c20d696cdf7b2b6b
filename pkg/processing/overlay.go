package processing

import (
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/menta2k/yolo-annotator/pkg/geometry"
	"github.com/menta2k/yolo-annotator/pkg/types"
)

// fallbackColor is used for annotations whose label has no parseable color
// token.
var fallbackColor = color.NRGBA{0, 255, 0, 255}

// RenderAnnotations draws every annotation onto a copy of the image, using
// each label's color, for visual review of a labeled image.
func (p *Processor) RenderAnnotations(img image.Image, boxes []types.BBox, labels []types.LabelClass) image.Image {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()
	stroke := int(math.Max(2, 0.004*float64(min(w, h))))

	colors := make(map[string]color.NRGBA, len(labels))
	for _, l := range labels {
		colors[l.ID] = ParseHexColor(l.Color)
	}

	for i := range boxes {
		c, ok := colors[boxes[i].LabelID]
		if !ok {
			c = fallbackColor
		}
		r := geometry.ToPixelRect(geometry.ClampBox(boxes[i].Box), float64(w), float64(h))
		drawRect(nrgba, r, c, stroke)
	}
	return nrgba
}

// ParseHexColor parses a "#rrggbb" token; anything unparseable yields the
// fallback green.
func ParseHexColor(s string) color.NRGBA {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return fallbackColor
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return fallbackColor
	}
	return color.NRGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 255}
}

func drawRect(img *image.NRGBA, r geometry.Rect, c color.NRGBA, stroke int) {
	x0, y0 := int(r.X+0.5), int(r.Y+0.5)
	x1, y1 := int(r.X+r.W+0.5), int(r.Y+r.H+0.5)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
