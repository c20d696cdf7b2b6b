package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/yolo-annotator/pkg/types"
)

var labels = []types.LabelClass{
	{ID: "l-a", Name: "person"},
	{ID: "l-b", Name: "car"},
}

func TestLabelLinesFormat(t *testing.T) {
	boxes := []types.BBox{
		{ID: "1", LabelID: "l-a", Box: types.Box{X: 0.5, Y: 0.5, W: 0.25, H: 0.25}},
		{ID: "2", LabelID: "l-b", Box: types.Box{X: 0.1, Y: 0.2, W: 0.05, H: 0.05}},
	}

	got := LabelLines(boxes, labels)
	want := "0 0.500000 0.500000 0.250000 0.250000\n1 0.100000 0.200000 0.050000 0.050000"
	assert.Equal(t, want, got)
}

func TestLabelLinesClampsOffImageBoxes(t *testing.T) {
	// Dragged half off the left edge during editing.
	boxes := []types.BBox{
		{ID: "1", LabelID: "l-a", Box: types.Box{X: 0.0, Y: 0.5, W: 0.2, H: 0.2}},
	}
	got := LabelLines(boxes, labels)
	assert.Equal(t, "0 0.050000 0.500000 0.100000 0.200000", got)
}

func TestLabelLinesSkipsUnknownLabels(t *testing.T) {
	boxes := []types.BBox{
		{ID: "1", LabelID: "gone", Box: types.Box{X: 0.5, Y: 0.5, W: 0.1, H: 0.1}},
		{ID: "2", LabelID: "l-a", Box: types.Box{X: 0.5, Y: 0.5, W: 0.1, H: 0.1}},
	}
	got := LabelLines(boxes, labels)
	assert.Equal(t, 1, len(strings.Split(got, "\n")))
	assert.True(t, strings.HasPrefix(got, "0 "))
}

func TestLabelLinesEmpty(t *testing.T) {
	assert.Equal(t, "", LabelLines(nil, labels))
}

func TestManifest(t *testing.T) {
	data, err := Manifest(labels, "", "")
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, "train: ./train/images")
	assert.Contains(t, s, "val: ./val/images")
	assert.Contains(t, s, "nc: 2")
	assert.Contains(t, s, "names:")
	assert.Contains(t, s, "- person")
	assert.Contains(t, s, "- car")

	// Names must appear in label-list order to match class indices.
	assert.Less(t, strings.Index(s, "- person"), strings.Index(s, "- car"))
}

func TestManifestRoundTrip(t *testing.T) {
	data, err := Manifest(labels, "./custom/train", "./custom/val")
	require.NoError(t, err)

	names, err := ParseManifest(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"person", "car"}, names)
}

func TestParseManifestInlineForm(t *testing.T) {
	names, err := ParseManifest([]byte("train: ./train/images\nval: ./val/images\nnc: 3\nnames: [person, car, dog]\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"person", "car", "dog"}, names)
}

func TestParseManifestBlockForm(t *testing.T) {
	names, err := ParseManifest([]byte("nc: 2\nnames:\n  - person\n  - car\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"person", "car"}, names)
}

func TestParseManifestInvalid(t *testing.T) {
	_, err := ParseManifest([]byte("names: [unterminated"))
	assert.Error(t, err)
}

func TestParseLabelLines(t *testing.T) {
	content := strings.Join([]string{
		"0 0.500000 0.500000 0.250000 0.250000",
		"too short",                              // < 5 fields, ignored
		"9 0.1 0.2 0.3 0.4",                      // class index out of range, dropped
		"x 0.1 0.2 0.3 0.4",                      // non-numeric index, dropped
		"1 0.1 notanumber 0.3 0.4",               // non-numeric coordinate, dropped
		"1 0.100000 0.200000 0.050000 0.050000",  // valid
		"",
	}, "\n")

	boxes := ParseLabelLines(content, labels)
	require.Len(t, boxes, 2)

	assert.Equal(t, "l-a", boxes[0].LabelID)
	assert.InDelta(t, 0.5, boxes[0].X, 1e-9)
	assert.Equal(t, "l-b", boxes[1].LabelID)
	assert.InDelta(t, 0.05, boxes[1].W, 1e-9)
	assert.NotEqual(t, boxes[0].ID, boxes[1].ID, "parsed boxes get fresh ids")
}

func TestParseLabelLinesRoundTrip(t *testing.T) {
	in := []types.BBox{
		{ID: "1", LabelID: "l-a", Box: types.Box{X: 0.5, Y: 0.5, W: 0.25, H: 0.25}},
		{ID: "2", LabelID: "l-b", Box: types.Box{X: 0.1, Y: 0.2, W: 0.05, H: 0.05}},
	}
	out := ParseLabelLines(LabelLines(in, labels), labels)
	require.Len(t, out, 2)
	for i := range in {
		assert.Equal(t, in[i].LabelID, out[i].LabelID)
		assert.InDelta(t, in[i].X, out[i].X, 1e-6)
		assert.InDelta(t, in[i].W, out[i].W, 1e-6)
	}
}
