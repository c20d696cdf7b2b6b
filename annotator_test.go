package annotator

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/yolo-annotator/pkg/autolabel"
	"github.com/menta2k/yolo-annotator/pkg/editor"
	"github.com/menta2k/yolo-annotator/pkg/ingest"
	"github.com/menta2k/yolo-annotator/pkg/types"
)

// scriptedClient returns a fixed detection list, optionally blocking or
// running a hook before responding.
type scriptedClient struct {
	dets    []types.RawDetection
	err     error
	block   chan struct{}
	onCall  func()
	calls   int
}

func (s *scriptedClient) Detect(ctx context.Context, model, prompt, imgB64 string) ([]types.RawDetection, error) {
	s.calls++
	if s.onCall != nil {
		s.onCall()
	}
	if s.block != nil {
		<-s.block
	}
	return s.dets, s.err
}

func (s *scriptedClient) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	return "", nil
}

func writeTestImage(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 5), 128, 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, nil))
	return path
}

func newTestProject(t *testing.T, c *scriptedClient) (*Project, *types.DatasetImage) {
	t.Helper()
	var labeler *autolabel.Labeler
	if c != nil {
		labeler = autolabel.New(c, "test-model")
		labeler.Policy.BaseDelay = time.Millisecond
	}
	p := New(labeler)
	p.Dataset.AddLabel("person", "#e6194b")

	path := writeTestImage(t, t.TempDir(), "a.jpg")
	img := p.Dataset.AddImage("a.jpg", path)
	return p, img
}

func TestOpenImageDecodesDimensions(t *testing.T) {
	p, img := newTestProject(t, nil)

	require.NoError(t, p.OpenImage(img.ID))
	assert.Equal(t, 64, img.Width)
	assert.Equal(t, 48, img.Height)
	assert.Same(t, img, p.Editor.Image())

	assert.ErrorIs(t, p.OpenImage("nope"), ErrImageNotFound)
}

func TestManualAnnotationThroughEditor(t *testing.T) {
	p, img := newTestProject(t, nil)
	require.NoError(t, p.OpenImage(img.ID))

	p.Editor.Mode = editor.ModeDraw
	p.Editor.ActiveLabelID = p.Dataset.Labels[0].ID
	p.Editor.PointerDown(types.Point{X: 10, Y: 10})
	p.Editor.PointerMove(types.Point{X: 40, Y: 30})
	p.Editor.PointerUp(types.Point{X: 40, Y: 30})

	require.Len(t, img.Boxes, 1)
	assert.Equal(t, types.StatusInProgress, img.Status)
}

func TestAutoLabelAppliesDetections(t *testing.T) {
	c := &scriptedClient{dets: []types.RawDetection{
		{Label: "person", Box2D: []float64{0.1, 0.1, 0.5, 0.5}},
	}}
	p, img := newTestProject(t, c)

	rep, err := p.AutoLabel(context.Background(), img.ID, ingest.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Accepted)
	require.Len(t, img.Boxes, 1)
	assert.Equal(t, p.Dataset.Labels[0].ID, img.Boxes[0].LabelID)
	assert.Equal(t, types.StatusInProgress, img.Status)
	assert.Equal(t, 64, img.Width, "dimensions decoded before ingestion")
}

func TestAutoLabelRejectsConcurrentRequests(t *testing.T) {
	c := &scriptedClient{
		dets:  []types.RawDetection{{Label: "person", Box2D: []float64{0.1, 0.1, 0.5, 0.5}}},
		block: make(chan struct{}),
	}
	started := make(chan struct{})
	c.onCall = func() { close(started) }
	p, img := newTestProject(t, c)

	done := make(chan error, 1)
	go func() {
		_, err := p.AutoLabel(context.Background(), img.ID, ingest.DefaultOptions())
		done <- err
	}()

	<-started
	_, err := p.AutoLabel(context.Background(), img.ID, ingest.DefaultOptions())
	assert.ErrorIs(t, err, ErrBusy)

	close(c.block)
	require.NoError(t, <-done)

	// The flag clears once the request finishes.
	c.block = nil
	c.onCall = nil
	_, err = p.AutoLabel(context.Background(), img.ID, ingest.DefaultOptions())
	assert.NoError(t, err)
}

func TestAutoLabelDiscardsResultsForRemovedImage(t *testing.T) {
	c := &scriptedClient{dets: []types.RawDetection{
		{Label: "person", Box2D: []float64{0.1, 0.1, 0.5, 0.5}},
	}}
	p, img := newTestProject(t, c)

	// The image disappears while the detection call is in flight.
	c.onCall = func() { p.Dataset.Images = nil }

	_, err := p.AutoLabel(context.Background(), img.ID, ingest.DefaultOptions())
	assert.ErrorIs(t, err, ErrImageNotFound)
	assert.Empty(t, img.Boxes, "no annotations applied to a removed image")
}

func TestExportDataset(t *testing.T) {
	p, img := newTestProject(t, nil)
	img.Boxes = []types.BBox{{
		ID:      "b1",
		LabelID: p.Dataset.Labels[0].ID,
		Box:     types.Box{X: 0.5, Y: 0.5, W: 0.25, H: 0.25},
	}}

	dir := t.TempDir()
	require.NoError(t, p.ExportDataset(dir, "", ""))

	labelData, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "0 0.500000 0.500000 0.250000 0.250000\n", string(labelData))

	manifest, err := os.ReadFile(filepath.Join(dir, "data.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(manifest), "nc: 1")
	assert.Contains(t, string(manifest), "- person")
}

func TestImportLabelsAndManifest(t *testing.T) {
	p, img := newTestProject(t, nil)

	require.NoError(t, p.ImportManifest([]byte("nc: 2\nnames: [car, dog]\n")))
	require.Len(t, p.Dataset.Labels, 3) // person + imported

	content := strings.Join([]string{
		"1 0.500000 0.500000 0.250000 0.250000",
		"bad line",
		"99 0.1 0.1 0.1 0.1",
	}, "\n")
	require.NoError(t, p.ImportLabels(img.ID, content))
	require.Len(t, img.Boxes, 1)
	assert.Equal(t, "car", labelName(p, img.Boxes[0].LabelID))
	assert.Equal(t, types.StatusInProgress, img.Status)

	assert.ErrorIs(t, p.ImportLabels("nope", ""), ErrImageNotFound)
}

func labelName(p *Project, id string) string {
	l, _ := p.Dataset.Label(id)
	return l.Name
}
