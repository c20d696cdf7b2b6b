// Package vision proposes candidate annotation boxes from image content
// alone, without a vision model: a cheap saliency pass over edge strength
// finds high-contrast regions and emits them as raw detections. Proposals go
// through the same ingest pipeline as model output, so everything downstream
// treats the two sources identically.
package vision

import (
	"image"
	"math"
	"sort"

	"github.com/menta2k/yolo-annotator/pkg/types"
)

// ProposerConfig holds tuning for region proposal.
type ProposerConfig struct {
	// EdgeThreshold is the minimum mean saliency a window must reach to
	// become a proposal.
	EdgeThreshold float64
	// MinRegionRatio is the minimum proposal area as a fraction of the
	// image area.
	MinRegionRatio float64
	// MaxProposals caps the number of emitted regions.
	MaxProposals int
	// Label is the label string attached to every proposal. Proposals are
	// class-agnostic; the ingest label resolution decides what the string
	// maps onto.
	Label string
}

// Proposer finds salient regions in images.
type Proposer struct {
	config ProposerConfig
}

// New creates a Proposer with default configuration.
func New() *Proposer {
	return &Proposer{
		config: ProposerConfig{
			EdgeThreshold:  0.02,
			MinRegionRatio: 0.005,
			MaxProposals:   10,
			Label:          "object",
		},
	}
}

// NewWithConfig creates a Proposer with custom configuration.
func NewWithConfig(config ProposerConfig) *Proposer {
	return &Proposer{config: config}
}

// Propose scans the image and returns candidate detections in the same shape
// a vision model would produce: normalized [ymin, xmin, ymax, xmax] boxes
// with the window's mean saliency as confidence, strongest first.
func (p *Proposer) Propose(img image.Image) []types.RawDetection {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 2 || height < 2 {
		return nil
	}

	saliency := saliencyMap(img)
	regions := p.scanWindows(saliency, width, height)

	sort.Slice(regions, func(i, j int) bool { return regions[i].score > regions[j].score })
	if len(regions) > p.config.MaxProposals {
		regions = regions[:p.config.MaxProposals]
	}

	out := make([]types.RawDetection, 0, len(regions))
	for _, r := range regions {
		score := r.score
		out = append(out, types.RawDetection{
			Label: p.config.Label,
			Box2D: []float64{
				float64(r.y) / float64(height),
				float64(r.x) / float64(width),
				float64(r.y+r.h) / float64(height),
				float64(r.x+r.w) / float64(width),
			},
			Confidence: &score,
		})
	}
	return out
}

type region struct {
	x, y, w, h int
	score      float64
}

// saliencyMap computes per-pixel edge strength from color difference against
// the 8-neighborhood.
func saliencyMap(img image.Image) [][]float64 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	m := make([][]float64, height)
	for i := range m {
		m[i] = make([]float64, width)
	}

	neighbors := [][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}

	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			r1, g1, b1, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()

			var edge float64
			for _, off := range neighbors {
				r2, g2, b2, _ := img.At(x+off[0]+bounds.Min.X, y+off[1]+bounds.Min.Y).RGBA()
				dr := float64(r1) - float64(r2)
				dg := float64(g1) - float64(g2)
				db := float64(b1) - float64(b2)
				edge += math.Sqrt(dr*dr + dg*dg + db*db)
			}
			m[y][x] = edge / (8.0 * 65535.0)
		}
	}
	return m
}

// scanWindows slides windows of several sizes over the saliency map and
// keeps those whose mean saliency clears the threshold. Overlapping windows
// are collapsed to the strongest one.
func (p *Proposer) scanWindows(saliency [][]float64, width, height int) []region {
	var regions []region
	minArea := int(float64(width*height) * p.config.MinRegionRatio)

	for _, div := range []int{3, 4, 6} {
		win := width / div
		if win < 8 || win*win < minArea {
			continue
		}
		step := win / 2

		for y := 0; y+win <= height; y += step {
			for x := 0; x+win <= width; x += step {
				score := meanSaliency(saliency, x, y, win, win)
				if score <= p.config.EdgeThreshold {
					continue
				}
				r := region{x: x, y: y, w: win, h: win, score: score}
				if i := overlapping(regions, r); i >= 0 {
					if regions[i].score < r.score {
						regions[i] = r
					}
				} else {
					regions = append(regions, r)
				}
			}
		}
	}
	return regions
}

func meanSaliency(m [][]float64, x, y, w, h int) float64 {
	var total float64
	count := 0
	for ry := y; ry < y+h && ry < len(m); ry++ {
		for rx := x; rx < x+w && rx < len(m[ry]); rx++ {
			total += m[ry][rx]
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// overlapping returns the index of the first region whose intersection with r
// covers more than half of either area, or -1.
func overlapping(regions []region, r region) int {
	for i, o := range regions {
		ix := max(0, min(o.x+o.w, r.x+r.w)-max(o.x, r.x))
		iy := max(0, min(o.y+o.h, r.y+r.h)-max(o.y, r.y))
		inter := ix * iy
		if inter*2 > o.w*o.h || inter*2 > r.w*r.h {
			return i
		}
	}
	return -1
}
