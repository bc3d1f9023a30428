package engine

import (
	"testing"

	"github.com/kcwdesign/kcw/backend-go/internal/document"
)

// placeRect adds a rect and pins its geometry without recording history.
func placeRect(t *testing.T, e *Engine, g document.Geometry) *document.Rect {
	t.Helper()
	o := mustAdd(t, e, document.KindRect)
	o.Common().Geometry = g
	return o.(*document.Rect)
}

func TestModeForModifiers(t *testing.T) {
	tests := []struct {
		mods Modifiers
		want DragMode
	}{
		{0, Moving},
		{ModCtrl, Moving},
		{ModAlt, Resizing},
		{ModShift, Rotating},
		{ModShift | ModAlt, Rotating},
	}
	for _, tt := range tests {
		if got := modeFor(tt.mods); got != tt.want {
			t.Errorf("modeFor(%b) = %v, want %v", tt.mods, got, tt.want)
		}
	}
}

func TestMoveDragUnderZoom(t *testing.T) {
	e := newTestEngine(t, Options{})
	r := placeRect(t, e, document.Geometry{X: 100, Y: 100, W: 200, H: 100})
	e.SetZoom(2)

	if err := e.PointerDown(220, 220, 0); err != nil {
		t.Fatal(err)
	}
	if e.DragMode() != Moving || e.Selection() != r.ID {
		t.Fatalf("mode %v sel %d", e.DragMode(), e.Selection())
	}
	e.PointerMove(300, 260)
	if r.X != 140 || r.Y != 120 {
		t.Errorf("moved to (%g,%g), want (140,120)", r.X, r.Y)
	}

	// Off-page positions are not clamped.
	e.PointerMove(-400, -400)
	if r.X != -210 || r.Y != -210 {
		t.Errorf("moved to (%g,%g), want (-210,-210)", r.X, r.Y)
	}
}

func TestDragRecordsOneHistoryEntry(t *testing.T) {
	for _, samples := range []int{1, 5, 60} {
		e := newTestEngine(t, Options{})
		r := placeRect(t, e, document.Geometry{X: 100, Y: 100, W: 200, H: 100})
		depth := undoDepth(e)

		if err := e.PointerDown(150, 150, 0); err != nil {
			t.Fatal(err)
		}
		for i := 1; i <= samples; i++ {
			e.PointerMove(150+float64(i)*3, 150+float64(i))
		}
		e.PointerUp()

		if got := undoDepth(e); got != depth+1 {
			t.Errorf("%d samples: undo depth %d, want %d", samples, got, depth+1)
		}
		if r.X == 100 && r.Y == 100 {
			t.Fatalf("%d samples: object did not move", samples)
		}
		if _, err := e.Undo(); err != nil {
			t.Fatal(err)
		}
		o, _, ok := e.Page().Find(r.ID)
		if !ok {
			t.Fatal("object missing after undo")
		}
		if b := o.Common(); b.X != 100 || b.Y != 100 {
			t.Errorf("%d samples: after undo at (%g,%g), want (100,100)", samples, b.X, b.Y)
		}
	}
}

func TestResizeNeverBelowMinimum(t *testing.T) {
	e := newTestEngine(t, Options{})
	r := placeRect(t, e, document.Geometry{X: 100, Y: 100, W: 200, H: 100})
	e.SetZoom(0.5)

	if err := e.PointerDown(100, 90, ModAlt); err != nil {
		t.Fatal(err)
	}
	e.PointerMove(110, 110)
	if r.W != 220 || r.H != 140 {
		t.Errorf("resized to %gx%g, want 220x140", r.W, r.H)
	}
	e.PointerMove(-5000, -5000)
	if r.W != MinDragSize || r.H != MinDragSize {
		t.Errorf("resized to %gx%g, want %dx%d", r.W, r.H, MinDragSize, MinDragSize)
	}
	if r.X != 100 || r.Y != 100 {
		t.Errorf("resize moved the box to (%g,%g)", r.X, r.Y)
	}
}

func TestRotateFollowsPointer(t *testing.T) {
	e := newTestEngine(t, Options{})
	r := placeRect(t, e, document.Geometry{X: 100, Y: 100, W: 200, H: 200})
	e.SetZoom(2)
	// Centre (200,200) is (400,400) on screen.
	if err := e.PointerDown(400, 400, ModShift); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		x, y float64
		want float64
	}{
		{"above", 400, 100, 0},
		{"right", 700, 400, 90},
		{"below", 400, 700, 180},
		{"left", 100, 400, 270},
		{"upper left", 100, 100, -45},
		{"rounded", 700, 401, 90},
	}
	for _, tt := range tests {
		e.PointerMove(tt.x, tt.y)
		if r.Rot != tt.want {
			t.Errorf("%s: rot = %g, want %g", tt.name, r.Rot, tt.want)
		}
	}
}

func TestModifierLatchedAtDragStart(t *testing.T) {
	e := newTestEngine(t, Options{})
	r := placeRect(t, e, document.Geometry{X: 0, Y: 0, W: 100, H: 100})
	if err := e.PointerDown(50, 50, 0); err != nil {
		t.Fatal(err)
	}
	// Holding Shift now would rotate on a fresh press, but the move drag continues.
	if _, err := e.KeyDown("Shift", ModShift); err != nil {
		t.Fatal(err)
	}
	e.PointerMove(60, 50)
	if e.DragMode() != Moving || r.X != 10 || r.Rot != 0 {
		t.Errorf("mode %v x %g rot %g", e.DragMode(), r.X, r.Rot)
	}
}

func TestPointerDownOnEmptySpaceClearsSelection(t *testing.T) {
	e := newTestEngine(t, Options{})
	placeRect(t, e, document.Geometry{X: 0, Y: 0, W: 100, H: 100})
	depth := undoDepth(e)
	if err := e.PointerDown(500, 500, 0); err != nil {
		t.Fatal(err)
	}
	if e.Selection() != 0 || e.DragMode() != Idle {
		t.Errorf("sel %d mode %v", e.Selection(), e.DragMode())
	}
	if undoDepth(e) != depth {
		t.Error("empty press recorded history")
	}
	if e.PointerMove(600, 600) {
		t.Error("move without a drag reported a change")
	}
}

func TestPointerUpAlwaysEndsDrag(t *testing.T) {
	e := newTestEngine(t, Options{})
	placeRect(t, e, document.Geometry{X: 0, Y: 0, W: 100, H: 100})
	if err := e.PointerDown(10, 10, ModAlt); err != nil {
		t.Fatal(err)
	}
	e.PointerMove(5000, 5000)
	e.PointerUp()
	if e.DragMode() != Idle {
		t.Errorf("mode after up = %v", e.DragMode())
	}
}

func TestDragEndsWhenTargetDisappears(t *testing.T) {
	e := newTestEngine(t, Options{})
	placeRect(t, e, document.Geometry{X: 0, Y: 0, W: 100, H: 100})
	if err := e.PointerDown(10, 10, 0); err != nil {
		t.Fatal(err)
	}
	if err := e.DeleteSelected(); err != nil {
		t.Fatal(err)
	}
	if e.PointerMove(20, 20) {
		t.Error("move on a deleted target reported a change")
	}
	if e.DragMode() != Idle {
		t.Errorf("mode = %v, want idle", e.DragMode())
	}
}

func TestUndoDuringDragEndsIt(t *testing.T) {
	e := newTestEngine(t, Options{})
	r := placeRect(t, e, document.Geometry{X: 0, Y: 0, W: 100, H: 100})
	if err := e.PointerDown(10, 10, 0); err != nil {
		t.Fatal(err)
	}
	e.PointerMove(40, 40)
	if _, err := e.KeyDown("z", ModCtrl); err != nil {
		t.Fatal(err)
	}
	if e.DragMode() != Idle {
		t.Fatalf("mode = %v, want idle", e.DragMode())
	}
	if e.PointerMove(80, 80) {
		t.Error("drag continued after undo")
	}
	o, _, _ := e.Page().Find(r.ID)
	if o.Common().X != 0 {
		t.Errorf("x = %g, want 0", o.Common().X)
	}
}

func TestEveryMoveSampleRenders(t *testing.T) {
	renders := 0
	e := newTestEngine(t, Options{OnRender: func([]DrawCommand) { renders++ }})
	placeRect(t, e, document.Geometry{X: 0, Y: 0, W: 100, H: 100})
	if err := e.PointerDown(10, 10, 0); err != nil {
		t.Fatal(err)
	}
	renders = 0
	for i := 0; i < 7; i++ {
		e.PointerMove(float64(20+i), 20)
	}
	if renders != 7 {
		t.Errorf("renders = %d, want 7", renders)
	}
}

func TestKeyboardShortcuts(t *testing.T) {
	e := newTestEngine(t, Options{})
	r := placeRect(t, e, document.Geometry{X: 100, Y: 100, W: 50, H: 50})
	depth := undoDepth(e)

	keys := []struct {
		key  string
		mods Modifiers
	}{
		{"ArrowRight", 0},
		{"ArrowDown", ModShift},
		{"ArrowLeft", 0},
		{"ArrowUp", 0},
		{"ArrowUp", ModShift},
	}
	for _, k := range keys {
		handled, err := e.KeyDown(k.key, k.mods)
		if !handled || err != nil {
			t.Fatalf("KeyDown(%s) = %v, %v", k.key, handled, err)
		}
	}
	if r.X != 100 || r.Y != 98 {
		t.Errorf("after nudges at (%g,%g), want (100,98)", r.X, r.Y)
	}
	if got := undoDepth(e); got != depth+len(keys) {
		t.Errorf("undo depth = %d, want %d", got, depth+len(keys))
	}

	if _, err := e.KeyDown("z", ModMeta); err != nil {
		t.Fatal(err)
	}
	o, _, _ := e.Page().Find(r.ID)
	if o.Common().Y != 108 {
		t.Errorf("after undo y = %g, want 108", o.Common().Y)
	}
	if _, err := e.KeyDown("Z", ModCtrl|ModShift); err != nil {
		t.Fatal(err)
	}
	o, _, _ = e.Page().Find(r.ID)
	if o.Common().Y != 98 {
		t.Errorf("after redo y = %g, want 98", o.Common().Y)
	}
	if _, err := e.KeyDown("z", ModCtrl); err != nil {
		t.Fatal(err)
	}
	if _, err := e.KeyDown("y", ModCtrl); err != nil {
		t.Fatal(err)
	}
	o, _, _ = e.Page().Find(r.ID)
	if o.Common().Y != 98 {
		t.Errorf("after ctrl+y y = %g, want 98", o.Common().Y)
	}

	e.Select(r.ID)
	if handled, err := e.KeyDown("Backspace", 0); !handled || err != nil {
		t.Fatalf("Backspace = %v, %v", handled, err)
	}
	if len(e.Page().Objects) != 0 {
		t.Error("Backspace did not delete the selection")
	}

	if handled, err := e.KeyDown("ArrowUp", 0); !handled || err != nil {
		t.Errorf("arrow without selection = %v, %v", handled, err)
	}
	if handled, _ := e.KeyDown("q", 0); handled {
		t.Error("unbound key reported handled")
	}
}
