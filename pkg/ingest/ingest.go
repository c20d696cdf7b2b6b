// Package ingest validates raw detections from an external detector and
// converts the survivors into annotations. Detections are independent: a
// malformed item is skipped and counted, never fatal to the batch.
package ingest

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/menta2k/yolo-annotator/pkg/geometry"
	"github.com/menta2k/yolo-annotator/pkg/types"
)

var (
	// ErrValidation marks a structurally malformed detection.
	ErrValidation = errors.New("malformed detection")
	// ErrUnknownLabel marks a detection whose label resolves to no known
	// label class.
	ErrUnknownLabel = errors.New("unknown label")
	// ErrLowConfidence marks a detection filtered by the confidence
	// threshold.
	ErrLowConfidence = errors.New("confidence below threshold")
	// ErrGeometry marks a detection whose box degenerates after
	// normalization.
	ErrGeometry = errors.New("degenerate geometry")
)

const (
	// DefaultMinConfidence is the confidence threshold applied when the
	// caller does not override it.
	DefaultMinConfidence = 0.3
	// minExtent is the smallest normalized width/height an ingested box may
	// have; smaller boxes are expanded symmetrically around their center.
	minExtent = 0.01
)

// Options configures one ingestion batch.
type Options struct {
	MinConfidence      float64
	IncludeDescription bool
}

// DefaultOptions returns the standard ingestion settings.
func DefaultOptions() Options {
	return Options{MinConfidence: DefaultMinConfidence}
}

// Report aggregates what happened to each detection in a batch. The counters
// are for observability; they carry no per-item detail.
type Report struct {
	Accepted        int
	Malformed       int
	UnknownLabel    int
	LowConfidence   int
	InvalidGeometry int
}

// Skipped returns how many detections were rejected.
func (r Report) Skipped() int {
	return r.Malformed + r.UnknownLabel + r.LowConfidence + r.InvalidGeometry
}

func (r Report) String() string {
	return fmt.Sprintf("accepted=%d malformed=%d unknown-label=%d low-confidence=%d invalid-geometry=%d",
		r.Accepted, r.Malformed, r.UnknownLabel, r.LowConfidence, r.InvalidGeometry)
}

// Process runs the validation chain over a batch of raw detections and
// returns the accepted annotations plus the aggregate report. imgW/imgH are
// the image's pixel dimensions; they may be zero (not yet decoded), in which
// case pixel-coordinate detections are rejected.
func Process(dets []types.RawDetection, labels []types.LabelClass, imgW, imgH int, opts Options) ([]types.BBox, Report) {
	var out []types.BBox
	var rep Report

	for i := range dets {
		box, err := processOne(&dets[i], labels, imgW, imgH, opts)
		switch {
		case err == nil:
			out = append(out, box)
			rep.Accepted++
		case errors.Is(err, ErrUnknownLabel):
			rep.UnknownLabel++
		case errors.Is(err, ErrLowConfidence):
			rep.LowConfidence++
		case errors.Is(err, ErrGeometry):
			rep.InvalidGeometry++
		default:
			rep.Malformed++
		}
	}
	return out, rep
}

// processOne applies the per-detection checks in order; the first failure
// rejects the detection.
func processOne(d *types.RawDetection, labels []types.LabelClass, imgW, imgH int, opts Options) (types.BBox, error) {
	// Structural validation.
	if d.Label == "" || len(d.Box2D) != 4 {
		return types.BBox{}, fmt.Errorf("%w: label=%q box_2d has %d entries", ErrValidation, d.Label, len(d.Box2D))
	}
	for _, v := range d.Box2D {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return types.BBox{}, fmt.Errorf("%w: non-finite coordinate", ErrValidation)
		}
	}

	labelID, ok := ResolveLabel(d.Label, labels)
	if !ok {
		return types.BBox{}, fmt.Errorf("%w: %q", ErrUnknownLabel, d.Label)
	}

	// Missing confidence means the detector was sure enough not to say.
	conf := 1.0
	if d.Confidence != nil {
		conf = *d.Confidence
	}
	if conf < opts.MinConfidence {
		return types.BBox{}, fmt.Errorf("%w: %.3f < %.3f", ErrLowConfidence, conf, opts.MinConfidence)
	}

	ymin, xmin, ymax, xmax := d.Box2D[0], d.Box2D[1], d.Box2D[2], d.Box2D[3]

	// Any value above 1 means the detector answered in pixels.
	if ymin > 1 || xmin > 1 || ymax > 1 || xmax > 1 {
		if imgW == 0 || imgH == 0 {
			return types.BBox{}, fmt.Errorf("%w: pixel coordinates but image dimensions unknown", ErrGeometry)
		}
		ymin /= float64(imgH)
		ymax /= float64(imgH)
		xmin /= float64(imgW)
		xmax /= float64(imgW)
	}

	// Some detectors transpose min/max.
	if ymin > ymax {
		ymin, ymax = ymax, ymin
	}
	if xmin > xmax {
		xmin, xmax = xmax, xmin
	}

	ymin = geometry.Clamp(ymin, 0, 1)
	ymax = geometry.Clamp(ymax, 0, 1)
	xmin = geometry.Clamp(xmin, 0, 1)
	xmax = geometry.Clamp(xmax, 0, 1)

	xmin, xmax = ensureExtent(xmin, xmax)
	ymin, ymax = ensureExtent(ymin, ymax)

	w := xmax - xmin
	h := ymax - ymin
	if w <= 0 || h <= 0 {
		// Should not survive ensureExtent, but guard the conversion anyway.
		return types.BBox{}, fmt.Errorf("%w: %fx%f", ErrGeometry, w, h)
	}

	box := types.BBox{
		ID:      uuid.NewString(),
		LabelID: labelID,
		Box: types.Box{
			X: xmin + w/2,
			Y: ymin + h/2,
			W: w,
			H: h,
		},
		Confidence: conf,
	}
	if opts.IncludeDescription {
		box.Description = d.Description
	}
	return box, nil
}

// ensureExtent expands an interval below the minimum extent symmetrically
// around its midpoint, then shifts it back inside [0,1] if the expansion
// overran an edge.
func ensureExtent(lo, hi float64) (float64, float64) {
	if hi-lo >= minExtent {
		return lo, hi
	}
	mid := (lo + hi) / 2
	lo = mid - minExtent/2
	hi = mid + minExtent/2
	if lo < 0 {
		hi -= lo
		lo = 0
	}
	if hi > 1 {
		lo -= hi - 1
		hi = 1
	}
	return geometry.Clamp(lo, 0, 1), geometry.Clamp(hi, 0, 1)
}

// ResolveLabel maps a detected label string onto a known label class by name.
// Matching is case-insensitive on trimmed names; when no exact match exists
// it falls back to substring containment in either direction, first match
// wins. The containment fallback is deliberately loose and can attach a
// detection to an unrelated label that happens to share a substring (for
// example "car" inside "car_red"); callers that need stricter matching must
// filter detections beforehand.
func ResolveLabel(detected string, labels []types.LabelClass) (string, bool) {
	name := strings.ToLower(strings.TrimSpace(detected))
	if name == "" {
		return "", false
	}
	for _, l := range labels {
		if strings.ToLower(strings.TrimSpace(l.Name)) == name {
			return l.ID, true
		}
	}
	for _, l := range labels {
		known := strings.ToLower(strings.TrimSpace(l.Name))
		if known == "" {
			continue
		}
		if strings.Contains(known, name) || strings.Contains(name, known) {
			return l.ID, true
		}
	}
	return "", false
}
