// Package annotator ties the annotation core together: a dataset of labeled
// images, an interactive editing session, and an auto-labeling pipeline
// backed by a vision model.
//
// The editor and dataset are single-threaded, event-driven state; the only
// suspending operation is the auto-label network call. The project enforces
// at most one in-flight auto-label request per image and re-validates the
// target image after the call returns, so a stale response can never write
// into a dataset that moved on.
//
// Basic usage:
//
//	proj := annotator.New(labeler)
//	person := proj.Dataset.AddLabel("person", "#e6194b")
//	img := proj.Dataset.AddImage("street.jpg", "/data/street.jpg")
//	if err := proj.OpenImage(img.ID); err != nil {
//		log.Fatal(err)
//	}
//
//	proj.Editor.Mode = editor.ModeDraw
//	proj.Editor.ActiveLabelID = person.ID
//	// pointer events from the UI layer:
//	proj.Editor.PointerDown(types.Point{X: 100, Y: 100})
//	proj.Editor.PointerMove(types.Point{X: 300, Y: 240})
//	proj.Editor.PointerUp(types.Point{X: 300, Y: 240})
//
//	rep, err := proj.AutoLabel(ctx, img.ID, ingest.DefaultOptions())
package annotator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/menta2k/yolo-annotator/internal/utils"
	"github.com/menta2k/yolo-annotator/pkg/autolabel"
	"github.com/menta2k/yolo-annotator/pkg/dataset"
	"github.com/menta2k/yolo-annotator/pkg/editor"
	"github.com/menta2k/yolo-annotator/pkg/export"
	"github.com/menta2k/yolo-annotator/pkg/ingest"
	"github.com/menta2k/yolo-annotator/pkg/processing"
)

// ErrImageNotFound is returned when an operation references an unknown image
// id.
var ErrImageNotFound = errors.New("image not found")

// ErrBusy is returned when an auto-label request is already in flight for the
// image.
var ErrBusy = errors.New("auto-label already in progress for this image")

// sendMaxDim bounds the long side of images sent to the vision model.
const sendMaxDim = 1536

// Project is one annotation project: dataset, editing session and
// auto-labeler.
type Project struct {
	Dataset *dataset.Dataset
	Editor  *editor.Session
	Labeler *autolabel.Labeler

	proc *processing.Processor

	mu   sync.Mutex
	busy map[string]bool
}

// New creates an empty project. The labeler may be nil for purely manual
// annotation.
func New(labeler *autolabel.Labeler) *Project {
	return &Project{
		Dataset: dataset.New(),
		Editor:  editor.NewSession(),
		Labeler: labeler,
		proc:    processing.NewProcessor(),
		busy:    make(map[string]bool),
	}
}

// OpenImage makes the image the active editing target, decoding its
// dimensions from disk on first open. Switching images resets the viewport
// and selection.
func (p *Project) OpenImage(id string) error {
	img := p.Dataset.Image(id)
	if img == nil {
		return fmt.Errorf("open %q: %w", id, ErrImageNotFound)
	}
	if img.Width == 0 || img.Height == 0 {
		if decoded, err := p.proc.LoadImage(img.Path); err == nil {
			p.proc.DecodeDimensions(img, decoded)
		}
		// Decode failure leaves dimensions at zero; the editor tolerates
		// that and draw gestures stay disabled.
	}
	p.Editor.SetImage(img)
	return nil
}

// AutoLabel runs the detection pipeline for one image and merges the
// accepted annotations into it. At most one request per image may be in
// flight; concurrent callers get ErrBusy. If the image is removed from the
// dataset while the call is suspended, the results are discarded.
func (p *Project) AutoLabel(ctx context.Context, imageID string, opts ingest.Options) (ingest.Report, error) {
	if p.Labeler == nil {
		return ingest.Report{}, fmt.Errorf("no labeler configured")
	}

	img := p.Dataset.Image(imageID)
	if img == nil {
		return ingest.Report{}, fmt.Errorf("auto-label %q: %w", imageID, ErrImageNotFound)
	}

	p.mu.Lock()
	if p.busy[imageID] {
		p.mu.Unlock()
		return ingest.Report{}, ErrBusy
	}
	p.busy[imageID] = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.busy, imageID)
		p.mu.Unlock()
	}()

	decoded, err := p.proc.LoadImage(img.Path)
	if err != nil {
		return ingest.Report{}, fmt.Errorf("failed to load image: %w", err)
	}
	if img.Width == 0 || img.Height == 0 {
		p.proc.DecodeDimensions(img, decoded)
	}
	imgB64, err := p.proc.PrepareImageForModel(decoded, "jpg", sendMaxDim, 85)
	if err != nil {
		return ingest.Report{}, fmt.Errorf("failed to encode image: %w", err)
	}

	boxes, rep, err := p.Labeler.Run(ctx, imgB64, img, p.Dataset.Labels, opts)
	if err != nil {
		return rep, err
	}

	// The call suspended; re-validate the target before writing back.
	img = p.Dataset.Image(imageID)
	if img == nil {
		return rep, fmt.Errorf("auto-label %q: %w", imageID, ErrImageNotFound)
	}
	img.Boxes = append(img.Boxes, boxes...)
	dataset.Refresh(img)
	return rep, nil
}

// ExportImage writes one image's annotations as a YOLO label file next to
// the image (same basename, .txt).
func (p *Project) ExportImage(imageID string) error {
	img := p.Dataset.Image(imageID)
	if img == nil {
		return fmt.Errorf("export %q: %w", imageID, ErrImageNotFound)
	}
	content := export.LabelLines(img.Boxes, p.Dataset.Labels)
	return os.WriteFile(utils.LabelPath(img.Path), []byte(content+"\n"), 0644)
}

// ExportDataset writes every image's label file plus the class manifest
// (data.yaml) into dir.
func (p *Project) ExportDataset(dir, trainPath, valPath string) error {
	if err := utils.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	for _, img := range p.Dataset.Images {
		content := export.LabelLines(img.Boxes, p.Dataset.Labels)
		name := img.Name
		if name == "" {
			name = filepath.Base(img.Path)
		}
		path := filepath.Join(dir, utils.LabelPath(name))
		if err := os.WriteFile(path, []byte(content+"\n"), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	manifest, err := export.Manifest(p.Dataset.Labels, trainPath, valPath)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "data.yaml"), manifest, 0644)
}

// ImportLabels reads a YOLO label file's content into an image, replacing its
// annotations. Unreadable lines are dropped individually, matching the label
// file tolerances of the export package.
func (p *Project) ImportLabels(imageID, content string) error {
	img := p.Dataset.Image(imageID)
	if img == nil {
		return fmt.Errorf("import %q: %w", imageID, ErrImageNotFound)
	}
	img.Boxes = export.ParseLabelLines(content, p.Dataset.Labels)
	dataset.Refresh(img)
	return nil
}

// ImportManifest reconstructs the label list from class manifest content,
// assigning fresh ids and a default color rotation.
func (p *Project) ImportManifest(content []byte) error {
	names, err := export.ParseManifest(content)
	if err != nil {
		return err
	}
	for _, name := range names {
		p.Dataset.AddLabel(name, defaultColors[len(p.Dataset.Labels)%len(defaultColors)])
	}
	return nil
}

var defaultColors = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#fabebe",
}
