package editor

import (
	"math"
	"testing"

	"github.com/menta2k/yolo-annotator/pkg/geometry"
	"github.com/menta2k/yolo-annotator/pkg/types"
)

func newTestSession(mode Mode) *Session {
	s := NewSession()
	s.ActiveLabelID = "label-1"
	s.SetImage(&types.DatasetImage{
		ID:     "img-1",
		Width:  640,
		Height: 480,
	})
	s.Mode = mode
	return s
}

func pt(x, y float64) types.Point { return types.Point{X: x, Y: y} }

func TestCreateGestureNormalizesDragDirection(t *testing.T) {
	s := newTestSession(ModeDraw)

	// Drag up-left: from (100,100) to (40,60).
	s.PointerDown(pt(100, 100))
	if s.Gesture() != Creating {
		t.Fatalf("expected Creating, got %v", s.Gesture())
	}
	s.PointerMove(pt(40, 60))

	d := s.Draft()
	if d == nil {
		t.Fatal("expected draft rectangle")
	}
	if d.X != 40 || d.Y != 60 || d.W != 60 || d.H != 40 {
		t.Errorf("expected draft {40 60 60 40}, got %+v", *d)
	}

	s.PointerUp(pt(40, 60))
	img := s.Image()
	if len(img.Boxes) != 1 {
		t.Fatalf("expected one finalized box, got %d", len(img.Boxes))
	}
	box := img.Boxes[0]
	if box.LabelID != "label-1" || box.ID == "" {
		t.Errorf("finalized box missing label or id: %+v", box)
	}
	if s.SelectedID() != box.ID {
		t.Error("finalized box should be selected")
	}
	if img.Status != types.StatusInProgress {
		t.Errorf("expected in-progress status, got %s", img.Status)
	}

	// Geometry: center (70,80), size 60x40 over 640x480.
	wantX, wantY := 70.0/640, 80.0/480
	if !closeTo(box.X, wantX) || !closeTo(box.Y, wantY) {
		t.Errorf("center = (%f,%f), want (%f,%f)", box.X, box.Y, wantX, wantY)
	}
	if !closeTo(box.W, 60.0/640) || !closeTo(box.H, 40.0/480) {
		t.Errorf("size = (%f,%f)", box.W, box.H)
	}
}

func TestTinyDragIsDiscarded(t *testing.T) {
	s := newTestSession(ModeDraw)

	s.PointerDown(pt(100, 100))
	s.PointerMove(pt(104, 104))
	s.PointerUp(pt(104, 104))

	if len(s.Image().Boxes) != 0 {
		t.Error("a drag smaller than the minimum extent must not create a box")
	}
	if s.Draft() != nil {
		t.Error("draft should be cleared on pointer-up")
	}
	if s.Image().Status != types.StatusUnlabeled {
		t.Errorf("status should stay unlabeled, got %s", s.Image().Status)
	}
}

func TestDrawIgnoredBeforeImageDecode(t *testing.T) {
	s := NewSession()
	s.ActiveLabelID = "label-1"
	s.SetImage(&types.DatasetImage{ID: "img"})
	s.Mode = ModeDraw

	s.PointerDown(pt(10, 10))
	if s.Gesture() != Idle {
		t.Error("draw must not start while dimensions are unknown")
	}
}

func TestMoveAppliesIncrementalDelta(t *testing.T) {
	s := newTestSession(ModeSelect)
	s.Image().Boxes = []types.BBox{{
		ID:      "b1",
		LabelID: "label-1",
		Box:     types.Box{X: 0.5, Y: 0.5, W: 0.25, H: 0.25},
	}}

	// Box covers pixels [240,400]x[180,300]; grab its middle.
	s.PointerDown(pt(320, 240))
	if s.Gesture() != MovingBox {
		t.Fatalf("expected MovingBox, got %v", s.Gesture())
	}
	if s.SelectedID() != "b1" {
		t.Error("pointer-down on a box should select it")
	}

	// Two incremental moves of (+32,+24) each.
	s.PointerMove(pt(352, 264))
	s.PointerMove(pt(384, 288))
	s.PointerUp(pt(384, 288))

	box := s.Image().Boxes[0]
	if !closeTo(box.X, 0.6) || !closeTo(box.Y, 0.6) {
		t.Errorf("expected center (0.6,0.6), got (%f,%f)", box.X, box.Y)
	}
	if !closeTo(box.W, 0.25) || !closeTo(box.H, 0.25) {
		t.Error("move must not change box size")
	}
}

func TestMoveAllowsPartialOffImage(t *testing.T) {
	s := newTestSession(ModeSelect)
	s.Image().Boxes = []types.BBox{{
		ID:  "b1",
		Box: types.Box{X: 0.1, Y: 0.1, W: 0.15, H: 0.15},
	}}

	s.PointerDown(pt(64, 48))
	s.PointerMove(pt(0, 0))
	s.PointerUp(pt(0, 0))

	box := s.Image().Boxes[0]
	if box.X-box.W/2 >= 0 {
		t.Error("editing deliberately does not clamp boxes into [0,1]")
	}
}

func TestResizeKeepsOppositeCornerFixed(t *testing.T) {
	handles := []struct {
		name   string
		handle Handle
		grab   types.Point // corner being dragged
		fixed  types.Point // corner that must not move
		drag   types.Point
	}{
		{"top-left", HandleTopLeft, pt(240, 180), pt(400, 300), pt(200, 120)},
		{"top-right", HandleTopRight, pt(400, 180), pt(240, 300), pt(480, 100)},
		{"bottom-left", HandleBottomLeft, pt(240, 300), pt(400, 180), pt(180, 340)},
		{"bottom-right", HandleBottomRight, pt(400, 300), pt(240, 180), pt(500, 400)},
	}

	for _, tc := range handles {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestSession(ModeSelect)
			s.Image().Boxes = []types.BBox{{
				ID:  "b1",
				Box: types.Box{X: 0.5, Y: 0.5, W: 0.25, H: 0.25},
			}}
			s.Select("b1")

			s.PointerDown(tc.grab)
			if s.Gesture() != ResizingBox {
				t.Fatalf("expected ResizingBox, got %v", s.Gesture())
			}
			s.PointerMove(tc.drag)
			s.PointerUp(tc.drag)

			r := geometry.ToPixelRect(s.Image().Boxes[0].Box, 640, 480)
			corners := map[string]types.Point{
				"tl": r.Corner(false, false),
				"tr": r.Corner(true, false),
				"bl": r.Corner(false, true),
				"br": r.Corner(true, true),
			}
			found := false
			for _, c := range corners {
				if closeTo(c.X, tc.fixed.X) && closeTo(c.Y, tc.fixed.Y) {
					found = true
				}
			}
			if !found {
				t.Errorf("opposite corner (%v) moved; rect now %+v", tc.fixed, r)
			}
			if s.SelectedID() != "b1" {
				t.Error("resize must not change selection")
			}
		})
	}
}

func TestResizeEnforcesMinimumSize(t *testing.T) {
	s := newTestSession(ModeSelect)
	s.Image().Boxes = []types.BBox{{
		ID:  "b1",
		Box: types.Box{X: 0.5, Y: 0.5, W: 0.25, H: 0.25},
	}}
	s.Select("b1")

	// Drag the top-left corner far past the bottom-right one.
	s.PointerDown(pt(240, 180))
	s.PointerMove(pt(600, 460))
	s.PointerUp(pt(600, 460))

	r := geometry.ToPixelRect(s.Image().Boxes[0].Box, 640, 480)
	if r.W < MinBoxPx || r.H < MinBoxPx {
		t.Errorf("dimensions below minimum after resize: %fx%f", r.W, r.H)
	}
	// The fixed corner stays put even in the degenerate case.
	br := r.Corner(true, true)
	if !closeTo(br.X, 400) || !closeTo(br.Y, 300) {
		t.Errorf("bottom-right moved to (%f,%f)", br.X, br.Y)
	}
}

func TestPanGesture(t *testing.T) {
	s := newTestSession(ModePan)

	s.PointerDown(pt(100, 100))
	if s.Gesture() != Panning {
		t.Fatalf("expected Panning, got %v", s.Gesture())
	}
	s.PointerMove(pt(130, 90))
	s.PointerMove(pt(150, 80))
	s.PointerUp(pt(150, 80))

	if s.Viewport.Pan.X != 50 || s.Viewport.Pan.Y != -20 {
		t.Errorf("pan = (%f,%f), want (50,-20)", s.Viewport.Pan.X, s.Viewport.Pan.Y)
	}
	if s.Gesture() != Idle {
		t.Error("pointer-up should return to Idle")
	}
}

func TestEmptyTapClearsSelection(t *testing.T) {
	s := newTestSession(ModeSelect)
	s.Image().Boxes = []types.BBox{{
		ID:  "b1",
		Box: types.Box{X: 0.5, Y: 0.5, W: 0.25, H: 0.25},
	}}
	s.Select("b1")

	// Tap empty canvas without dragging.
	s.PointerDown(pt(10, 10))
	s.PointerUp(pt(10, 10))
	if s.SelectedID() != "" {
		t.Error("undragged tap on empty canvas should clear selection")
	}

	// A dragged pan from empty canvas keeps the selection.
	s.Select("b1")
	s.PointerDown(pt(10, 10))
	s.PointerMove(pt(60, 60))
	s.PointerUp(pt(60, 60))
	if s.SelectedID() != "b1" {
		t.Error("a drag is a pan, not a deselect")
	}
}

func TestHitTestPrefersTopmostBox(t *testing.T) {
	s := newTestSession(ModeSelect)
	s.Image().Boxes = []types.BBox{
		{ID: "under", Box: types.Box{X: 0.5, Y: 0.5, W: 0.5, H: 0.5}},
		{ID: "over", Box: types.Box{X: 0.5, Y: 0.5, W: 0.2, H: 0.2}},
	}

	s.PointerDown(pt(320, 240))
	s.PointerUp(pt(320, 240))
	if s.SelectedID() != "over" {
		t.Errorf("expected topmost box selected, got %q", s.SelectedID())
	}
}

func TestPointerEventsRespectViewport(t *testing.T) {
	s := newTestSession(ModeDraw)
	s.Viewport.Zoom = 2
	s.Viewport.Pan = types.Point{X: 100, Y: 50}

	// Screen (300,250) maps to image (100,100) under zoom 2, pan (100,50).
	s.PointerDown(pt(300, 250))
	s.PointerMove(pt(500, 450))
	s.PointerUp(pt(500, 450))

	if len(s.Image().Boxes) != 1 {
		t.Fatal("expected a finalized box")
	}
	r := geometry.ToPixelRect(s.Image().Boxes[0].Box, 640, 480)
	if !closeTo(r.X, 100) || !closeTo(r.Y, 100) || !closeTo(r.W, 100) || !closeTo(r.H, 100) {
		t.Errorf("expected rect {100 100 100 100}, got %+v", r)
	}
}

func TestSetImageResetsViewState(t *testing.T) {
	s := newTestSession(ModeSelect)
	s.Viewport.Zoom = 3
	s.Viewport.Pan = types.Point{X: 40, Y: 40}
	s.Select("b1")

	s.SetImage(&types.DatasetImage{ID: "img-2", Width: 100, Height: 100})

	if s.Viewport.Zoom != 1 || s.Viewport.Pan.X != 0 || s.Viewport.Pan.Y != 0 {
		t.Error("viewport must reset when the active image changes")
	}
	if s.SelectedID() != "" || s.Gesture() != Idle {
		t.Error("selection and gesture must reset when the active image changes")
	}
}

func TestDeleteSelected(t *testing.T) {
	s := newTestSession(ModeSelect)
	s.Image().Boxes = []types.BBox{{ID: "b1"}, {ID: "b2"}}
	s.Select("b1")

	if !s.DeleteSelected() {
		t.Fatal("expected deletion")
	}
	if len(s.Image().Boxes) != 1 || s.Image().Boxes[0].ID != "b2" {
		t.Error("wrong box deleted")
	}
	if s.DeleteSelected() {
		t.Error("nothing selected, nothing to delete")
	}
}

func closeTo(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}
