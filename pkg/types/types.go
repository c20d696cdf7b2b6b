package types

// Box is a normalized center-form bounding box: (X, Y) is the box center and
// (W, H) its size, all expressed as fractions of the image dimensions.
// Values are expected to lie in [0,1] but are not hard-clamped during
// interactive editing; export and ingestion clamp them.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Point is a 2D coordinate. Its unit (screen pixels or image pixels) depends
// on context.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LabelClass is one object class in the dataset. ID is stable across renames;
// the class index written to YOLO label files is the position of the label in
// the dataset's label list, so reordering labels changes exported indices.
type LabelClass struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// BBox is a single annotation: a normalized center-form box referencing a
// LabelClass by id. Confidence and Description are carried through from
// auto-labeling and are zero-valued for hand-drawn boxes.
type BBox struct {
	ID      string `json:"id"`
	LabelID string `json:"label_id"`
	Box
	Confidence  float64 `json:"confidence,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Status describes an image's labeling progress. Unlabeled and InProgress are
// derived from the annotation list; Done is only ever set explicitly.
type Status string

const (
	StatusUnlabeled  Status = "unlabeled"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// DatasetImage is one image plus its annotations. Width and Height are
// populated asynchronously after decode and stay 0 until then; consumers must
// tolerate the zero-dimension transient state.
type DatasetImage struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Boxes  []BBox `json:"boxes"`
	Status Status `json:"status"`
}

// RawDetection is one candidate object as reported by an external detector,
// before any validation. Box2D is nominally [ymin, xmin, ymax, xmax], either
// normalized or in pixels; Confidence is nil when the detector omitted it.
// The whole structure is untrusted input.
type RawDetection struct {
	Label       string    `json:"label"`
	Box2D       []float64 `json:"box_2d"`
	Confidence  *float64  `json:"confidence,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Viewport is the pan/zoom state of an editing session. It is owned by the
// session, not the image, and is reset whenever the active image changes.
type Viewport struct {
	Zoom    float64 `json:"zoom"`
	Pan     Point   `json:"pan"`
	OriginX float64 `json:"origin_x"`
	OriginY float64 `json:"origin_y"`
}

// DefaultViewport returns the identity view: no pan, zoom 1.
func DefaultViewport() Viewport {
	return Viewport{Zoom: 1}
}
