// Package editor implements the pointer-gesture state machine that creates,
// moves and resizes annotation boxes on the active image. The session owns
// the viewport (pan/zoom), the current tool mode, the selection and exactly
// one in-flight gesture; pointer events are delivered synchronously and never
// overlap.
package editor

import (
	"math"

	"github.com/google/uuid"

	"github.com/menta2k/yolo-annotator/pkg/dataset"
	"github.com/menta2k/yolo-annotator/pkg/geometry"
	"github.com/menta2k/yolo-annotator/pkg/types"
)

// Mode is the active tool, selected externally. It gates which gestures a
// pointer-down can start.
type Mode int

const (
	ModeSelect Mode = iota
	ModeDraw
	ModePan
)

// Handle identifies one of the four corner resize handles of a selected box.
type Handle int

const (
	HandleNone Handle = iota
	HandleTopLeft
	HandleTopRight
	HandleBottomLeft
	HandleBottomRight
)

// Kind names the gesture currently in progress.
type Kind int

const (
	Idle Kind = iota
	Panning
	Creating
	MovingBox
	ResizingBox
)

// state is the tagged union for the active gesture. Anchor is in image pixels
// for Creating/MovingBox and in screen pixels for Panning.
type state struct {
	kind     Kind
	anchor   types.Point
	targetID string
	handle   Handle
	moved    bool
}

const (
	// MinBoxPx is the smallest width/height, in image pixels, a box may
	// have after a resize, and the threshold a draw gesture must exceed to
	// finalize. Absolute pixels, independent of zoom.
	MinBoxPx = 5.0
	// handleHitPx is the screen-pixel radius around a corner that counts
	// as grabbing its handle.
	handleHitPx = 8.0
)

// Session is one editing session over a single active image. It is not safe
// for concurrent use; the event source is expected to serialize dispatch.
type Session struct {
	Mode          Mode
	Viewport      types.Viewport
	ActiveLabelID string

	img        *types.DatasetImage
	selectedID string
	state      state
	draft      *geometry.Rect
}

// NewSession returns an idle session in select mode with an identity
// viewport and no active image.
func NewSession() *Session {
	return &Session{Viewport: types.DefaultViewport()}
}

// SetImage switches the active image. The viewport, selection and any
// in-progress gesture are reset; view state belongs to the session, not the
// image.
func (s *Session) SetImage(img *types.DatasetImage) {
	s.img = img
	s.Viewport = types.DefaultViewport()
	s.selectedID = ""
	s.state = state{}
	s.draft = nil
}

// Image returns the active image, or nil.
func (s *Session) Image() *types.DatasetImage { return s.img }

// SelectedID returns the id of the selected box, or "".
func (s *Session) SelectedID() string { return s.selectedID }

// Select sets the selection to the given box id without any gesture.
func (s *Session) Select(id string) { s.selectedID = id }

// Gesture returns the kind of gesture currently in progress.
func (s *Session) Gesture() Kind { return s.state.kind }

// Draft returns the in-progress draw rectangle in image pixels, or nil when
// no draw gesture is active. The rendering layer reads this to show the
// rubber band.
func (s *Session) Draft() *geometry.Rect { return s.draft }

// PointerDown starts a gesture from a screen-space pointer position. Which
// gesture starts depends on the mode and on what the pointer hits; only one
// gesture can be active at a time, and delivering a second pointer-down while
// one is active is a caller contract violation.
func (s *Session) PointerDown(screen types.Point) {
	if s.img == nil {
		return
	}
	imgPt := geometry.ScreenToImage(screen, s.Viewport)

	switch s.Mode {
	case ModeDraw:
		// Dimensions are unknown until decode; a draw gesture cannot be
		// normalized without them.
		if s.img.Width == 0 || s.img.Height == 0 {
			return
		}
		s.selectedID = ""
		s.draft = &geometry.Rect{X: imgPt.X, Y: imgPt.Y}
		s.state = state{kind: Creating, anchor: imgPt}
		return

	case ModeSelect:
		if s.img.Width > 0 && s.img.Height > 0 {
			if h := s.hitHandle(imgPt); h != HandleNone {
				s.state = state{kind: ResizingBox, targetID: s.selectedID, handle: h}
				return
			}
			if id := s.hitBox(imgPt); id != "" {
				s.selectedID = id
				s.state = state{kind: MovingBox, anchor: imgPt, targetID: id}
				return
			}
		}
		// Nothing hit: fall through to panning; an undragged tap clears
		// the selection on pointer-up.
		s.state = state{kind: Panning, anchor: screen}
		return

	case ModePan:
		s.state = state{kind: Panning, anchor: screen}
	}
}

// PointerMove advances the active gesture. A move with no active gesture is a
// no-op (hover).
func (s *Session) PointerMove(screen types.Point) {
	switch s.state.kind {
	case Idle:
		return
	case Panning:
		s.state.moved = true
		s.Viewport.Pan.X += screen.X - s.state.anchor.X
		s.Viewport.Pan.Y += screen.Y - s.state.anchor.Y
		s.state.anchor = screen
		return
	}

	imgPt := geometry.ScreenToImage(screen, s.Viewport)

	switch s.state.kind {
	case Creating:
		// Anchor and cursor are opposite corners regardless of drag
		// direction.
		s.draft = &geometry.Rect{
			X: math.Min(s.state.anchor.X, imgPt.X),
			Y: math.Min(s.state.anchor.Y, imgPt.Y),
			W: math.Abs(imgPt.X - s.state.anchor.X),
			H: math.Abs(imgPt.Y - s.state.anchor.Y),
		}

	case MovingBox:
		box := s.boxByID(s.state.targetID)
		if box == nil {
			s.state = state{}
			return
		}
		// Apply only the delta since the last event and re-anchor, so
		// repeated moves never accumulate drift.
		box.X += (imgPt.X - s.state.anchor.X) / float64(s.img.Width)
		box.Y += (imgPt.Y - s.state.anchor.Y) / float64(s.img.Height)
		s.state.anchor = imgPt

	case ResizingBox:
		box := s.boxByID(s.state.targetID)
		if box == nil {
			s.state = state{}
			return
		}
		w := float64(s.img.Width)
		h := float64(s.img.Height)
		r := resizeRect(geometry.ToPixelRect(box.Box, w, h), s.state.handle, imgPt)
		box.Box = geometry.ToNormalized(r, w, h)
	}
}

// PointerUp ends the active gesture. A draw gesture whose rectangle exceeds
// the minimum extent in both axes finalizes a new annotation and selects it;
// smaller drafts are discarded so a stray click never creates a degenerate
// box. An undragged tap on empty canvas in select mode clears the selection.
func (s *Session) PointerUp(screen types.Point) {
	st := s.state
	s.state = state{}

	switch st.kind {
	case Creating:
		draft := s.draft
		s.draft = nil
		if draft == nil || draft.W <= MinBoxPx || draft.H <= MinBoxPx {
			return
		}
		box := types.BBox{
			ID:      uuid.NewString(),
			LabelID: s.ActiveLabelID,
			Box:     geometry.ToNormalized(*draft, float64(s.img.Width), float64(s.img.Height)),
		}
		s.img.Boxes = append(s.img.Boxes, box)
		dataset.Refresh(s.img)
		s.selectedID = box.ID

	case Panning:
		if s.Mode == ModeSelect && !st.moved {
			s.selectedID = ""
		}
	}
}

// DeleteSelected removes the selected annotation, if any, and reports whether
// one was removed.
func (s *Session) DeleteSelected() bool {
	if s.img == nil || s.selectedID == "" {
		return false
	}
	ok := dataset.RemoveBox(s.img, s.selectedID)
	s.selectedID = ""
	return ok
}

// resizeRect recomputes a pixel rectangle for a corner drag, keeping the
// opposite corner fixed and never letting either dimension drop below
// MinBoxPx.
func resizeRect(r geometry.Rect, h Handle, cur types.Point) geometry.Rect {
	switch h {
	case HandleTopLeft:
		a := r.Corner(true, true)
		x := math.Min(cur.X, a.X-MinBoxPx)
		y := math.Min(cur.Y, a.Y-MinBoxPx)
		return geometry.Rect{X: x, Y: y, W: a.X - x, H: a.Y - y}
	case HandleTopRight:
		a := r.Corner(false, true)
		x2 := math.Max(cur.X, a.X+MinBoxPx)
		y := math.Min(cur.Y, a.Y-MinBoxPx)
		return geometry.Rect{X: a.X, Y: y, W: x2 - a.X, H: a.Y - y}
	case HandleBottomLeft:
		a := r.Corner(true, false)
		x := math.Min(cur.X, a.X-MinBoxPx)
		y2 := math.Max(cur.Y, a.Y+MinBoxPx)
		return geometry.Rect{X: x, Y: a.Y, W: a.X - x, H: y2 - a.Y}
	case HandleBottomRight:
		a := r.Corner(false, false)
		x2 := math.Max(cur.X, a.X+MinBoxPx)
		y2 := math.Max(cur.Y, a.Y+MinBoxPx)
		return geometry.Rect{X: a.X, Y: a.Y, W: x2 - a.X, H: y2 - a.Y}
	}
	return r
}

// hitBox returns the id of the topmost box containing the image-space point.
// Later boxes in the list render on top, so the list is scanned back to
// front.
func (s *Session) hitBox(p types.Point) string {
	w := float64(s.img.Width)
	h := float64(s.img.Height)
	for i := len(s.img.Boxes) - 1; i >= 0; i-- {
		if geometry.ToPixelRect(s.img.Boxes[i].Box, w, h).Contains(p) {
			return s.img.Boxes[i].ID
		}
	}
	return ""
}

// hitHandle checks the selected box's corners against the image-space point.
// The grab radius is fixed in screen pixels, so it shrinks in image space as
// zoom grows.
func (s *Session) hitHandle(p types.Point) Handle {
	if s.selectedID == "" {
		return HandleNone
	}
	box := s.boxByID(s.selectedID)
	if box == nil {
		return HandleNone
	}
	r := geometry.ToPixelRect(box.Box, float64(s.img.Width), float64(s.img.Height))
	tol := handleHitPx / s.Viewport.Zoom

	corners := []struct {
		pt types.Point
		h  Handle
	}{
		{r.Corner(false, false), HandleTopLeft},
		{r.Corner(true, false), HandleTopRight},
		{r.Corner(false, true), HandleBottomLeft},
		{r.Corner(true, true), HandleBottomRight},
	}
	for _, c := range corners {
		if math.Abs(p.X-c.pt.X) <= tol && math.Abs(p.Y-c.pt.Y) <= tol {
			return c.h
		}
	}
	return HandleNone
}

func (s *Session) boxByID(id string) *types.BBox {
	for i := range s.img.Boxes {
		if s.img.Boxes[i].ID == id {
			return &s.img.Boxes[i]
		}
	}
	return nil
}
