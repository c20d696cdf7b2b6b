// Package export writes and reads the dataset's text artifacts: YOLO label
// files (one line per box, normalized center-form) and the class manifest.
// Class indices are positional in the label list, so the manifest's name
// order and the label lines always agree.
package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/yolo-annotator/pkg/geometry"
	"github.com/menta2k/yolo-annotator/pkg/types"
)

// LabelLines renders an image's annotations as YOLO label-file content:
// "<classIndex> <x> <y> <w> <h>" per box, values to exactly 6 decimal places,
// joined by newlines with no trailing metadata. Boxes are clamped into [0,1]
// at this boundary; boxes whose label is not in the label list are skipped.
func LabelLines(boxes []types.BBox, labels []types.LabelClass) string {
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		index[l.ID] = i
	}

	lines := make([]string, 0, len(boxes))
	for i := range boxes {
		idx, ok := index[boxes[i].LabelID]
		if !ok {
			continue
		}
		b := geometry.ClampBox(boxes[i].Box)
		lines = append(lines, fmt.Sprintf("%d %.6f %.6f %.6f %.6f", idx, b.X, b.Y, b.W, b.H))
	}
	return strings.Join(lines, "\n")
}

// manifest mirrors the on-disk data.yaml layout used by YOLO training
// pipelines.
type manifest struct {
	Train string   `yaml:"train"`
	Val   string   `yaml:"val"`
	NC    int      `yaml:"nc"`
	Names []string `yaml:"names"`
}

// Manifest renders the class manifest. The names appear in label-list order,
// matching the class indices in LabelLines.
func Manifest(labels []types.LabelClass, trainPath, valPath string) ([]byte, error) {
	if trainPath == "" {
		trainPath = "./train/images"
	}
	if valPath == "" {
		valPath = "./val/images"
	}
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.Name
	}

	var buf strings.Builder
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	err := enc.Encode(manifest{Train: trainPath, Val: valPath, NC: len(labels), Names: names})
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return []byte(buf.String()), nil
}

// ParseManifest extracts the class names from manifest content. Both the
// block list form ("- name" per line) and the inline bracketed form
// ("names: [a, b]") are accepted; yaml treats them identically.
func ParseManifest(data []byte) ([]string, error) {
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return m.Names, nil
}

// ParseLabelLines reads YOLO label-file content back into annotations against
// the given label list. Tolerances match what real label files need: lines
// with fewer than 5 whitespace-separated fields are ignored, as are lines
// with non-numeric values or a class index outside the label list's range.
// A bad line drops only itself, never the file.
func ParseLabelLines(data string, labels []types.LabelClass) []types.BBox {
	var boxes []types.BBox
	for _, line := range strings.Split(data, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		idx, err := strconv.Atoi(fields[0])
		if err != nil || idx < 0 || idx >= len(labels) {
			continue
		}
		vals := make([]float64, 4)
		ok := true
		for i := 0; i < 4; i++ {
			v, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			continue
		}
		boxes = append(boxes, types.BBox{
			ID:      uuid.NewString(),
			LabelID: labels[idx].ID,
			Box:     types.Box{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]},
		})
	}
	return boxes
}
