// Package dataset holds the in-memory dataset: the ordered label list and the
// images with their annotations. Mutations replace whole lists rather than
// sharing slices, so a reader never observes a half-applied change.
package dataset

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/menta2k/yolo-annotator/pkg/types"
)

var (
	// ErrMergeSelf is returned when a label merge names the same label as
	// both source and target.
	ErrMergeSelf = errors.New("cannot merge a label into itself")
	// ErrLabelNotFound is returned when an operation references a label id
	// that is not in the dataset.
	ErrLabelNotFound = errors.New("label not found")
)

// Dataset is the complete annotation project: label classes in export order
// plus the annotated images. The label list order defines the YOLO class
// indices.
type Dataset struct {
	Labels []types.LabelClass
	Images []*types.DatasetImage
}

// New returns an empty dataset.
func New() *Dataset {
	return &Dataset{}
}

// AddLabel appends a new label class with a fresh id and returns it.
func (d *Dataset) AddLabel(name, color string) types.LabelClass {
	l := types.LabelClass{ID: uuid.NewString(), Name: name, Color: color}
	d.Labels = append(d.Labels, l)
	return l
}

// AddImage appends a new image with a fresh id. Width and height stay zero
// until the image has been decoded.
func (d *Dataset) AddImage(name, path string) *types.DatasetImage {
	img := &types.DatasetImage{
		ID:     uuid.NewString(),
		Name:   name,
		Path:   path,
		Status: types.StatusUnlabeled,
	}
	d.Images = append(d.Images, img)
	return img
}

// Image returns the image with the given id, or nil.
func (d *Dataset) Image(id string) *types.DatasetImage {
	for _, img := range d.Images {
		if img.ID == id {
			return img
		}
	}
	return nil
}

// Label returns the label with the given id and whether it exists.
func (d *Dataset) Label(id string) (types.LabelClass, bool) {
	for _, l := range d.Labels {
		if l.ID == id {
			return l, true
		}
	}
	return types.LabelClass{}, false
}

// LabelIndex returns the zero-based position of the label in the label list,
// which is the class index used in exported annotation lines. Returns -1 for
// unknown ids.
func (d *Dataset) LabelIndex(id string) int {
	for i, l := range d.Labels {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// RenameLabel changes a label's display name. Identity (and therefore every
// annotation referencing it) is unaffected.
func (d *Dataset) RenameLabel(id, name string) error {
	for i := range d.Labels {
		if d.Labels[i].ID == id {
			d.Labels[i].Name = name
			return nil
		}
	}
	return fmt.Errorf("rename %q: %w", id, ErrLabelNotFound)
}

// MergeLabels rewrites every annotation labeled sourceID to targetID across
// all images, then removes the source label from the label list. No
// annotation is deleted: the total annotation count is unchanged and the
// target's per-label count afterwards is the sum of the two prior counts.
// Validation happens before any mutation, so a failed merge has no effect.
func (d *Dataset) MergeLabels(sourceID, targetID string) error {
	if sourceID == targetID {
		return ErrMergeSelf
	}
	if _, ok := d.Label(sourceID); !ok {
		return fmt.Errorf("merge source %q: %w", sourceID, ErrLabelNotFound)
	}
	if _, ok := d.Label(targetID); !ok {
		return fmt.Errorf("merge target %q: %w", targetID, ErrLabelNotFound)
	}

	for _, img := range d.Images {
		for i := range img.Boxes {
			if img.Boxes[i].LabelID == sourceID {
				img.Boxes[i].LabelID = targetID
			}
		}
	}

	labels := make([]types.LabelClass, 0, len(d.Labels)-1)
	for _, l := range d.Labels {
		if l.ID != sourceID {
			labels = append(labels, l)
		}
	}
	d.Labels = labels
	return nil
}

// CountByLabel returns how many annotations across the dataset reference the
// given label.
func (d *Dataset) CountByLabel(id string) int {
	n := 0
	for _, img := range d.Images {
		for i := range img.Boxes {
			if img.Boxes[i].LabelID == id {
				n++
			}
		}
	}
	return n
}

// TotalAnnotations returns the number of annotations across all images.
func (d *Dataset) TotalAnnotations() int {
	n := 0
	for _, img := range d.Images {
		n += len(img.Boxes)
	}
	return n
}

// RemoveBox deletes the annotation with the given id from the image and
// refreshes the image status. It reports whether a box was removed.
func RemoveBox(img *types.DatasetImage, boxID string) bool {
	for i := range img.Boxes {
		if img.Boxes[i].ID == boxID {
			img.Boxes = append(img.Boxes[:i], img.Boxes[i+1:]...)
			Refresh(img)
			return true
		}
	}
	return false
}

// DeriveStatus computes the labeling status implied by an annotation list:
// unlabeled when empty, in-progress otherwise. Done is never derived; it is
// set only by explicit user action.
func DeriveStatus(boxes []types.BBox) types.Status {
	if len(boxes) == 0 {
		return types.StatusUnlabeled
	}
	return types.StatusInProgress
}

// Refresh recomputes the image's derived status after a mutation, preserving
// an explicit Done.
func Refresh(img *types.DatasetImage) {
	if img.Status == types.StatusDone {
		return
	}
	img.Status = DeriveStatus(img.Boxes)
}
