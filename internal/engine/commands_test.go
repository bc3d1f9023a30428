package engine

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/kcwdesign/kcw/backend-go/internal/document"
)

func TestCompileDrawCommandsOrder(t *testing.T) {
	p := document.NewPage(document.DefaultPreset)
	rect := p.Add(document.NewObject(document.KindRect, p.NextID))
	circle := p.Add(document.NewObject(document.KindEllipse, p.NextID))

	cmds := CompileDrawCommands(p, circle.Common().ID, 0.5, tenPerRune)
	ops := make([]string, len(cmds))
	for i, c := range cmds {
		ops[i] = c.Op
	}
	want := []string{OpClear, OpRect, OpEllipse, OpSelection}
	if len(ops) != len(want) {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("ops = %v, want %v", ops, want)
		}
	}

	bg := cmds[0]
	if bg.Zoom != 0.5 || bg.Width != 1080 || bg.Height != 1350 || bg.Fill != Background {
		t.Errorf("clear = %+v", bg)
	}
	if cmds[1].ObjectID != rect.Common().ID {
		t.Errorf("rect command id = %d", cmds[1].ObjectID)
	}
	sel := cmds[3]
	if sel.ObjectID != circle.Common().ID || sel.Stroke != SelectionColor || sel.StrokeWidth != 2 ||
		sel.Radius != HandleRadius || len(sel.Points) != 4 {
		t.Errorf("selection = %+v", sel)
	}
}

func TestCompileDrawCommandsFrameIgnoresZoom(t *testing.T) {
	p := document.NewPage(document.DefaultPreset)
	o := p.Add(document.NewObject(document.KindRect, 1))
	o.Common().Geometry = document.Geometry{X: 10, Y: 20, W: 100, H: 50, Rot: 30}

	a := CompileDrawCommands(p, 0, 1, nil)[1].Matrix()
	b := CompileDrawCommands(p, 0, 3, nil)[1].Matrix()
	if a != b {
		t.Errorf("object frame changed with zoom: %v vs %v", a, b)
	}
	if a != LocalFrame(o.Common().Geometry) {
		t.Errorf("frame = %v, want LocalFrame", a)
	}
}

func TestCompileDrawCommandsShapes(t *testing.T) {
	p := document.NewPage(document.DefaultPreset)
	small := p.Add(document.NewObject(document.KindRect, 1))
	small.Common().W, small.Common().H = 16, 40
	tri := p.Add(document.NewObject(document.KindTriangle, 2))
	line := p.Add(document.NewObject(document.KindLine, 3))
	txt := p.Add(document.NewObject(document.KindText, 4)).(*document.Text)
	txt.Align = document.AlignRight
	noStroke := p.Add(document.NewObject(document.KindEllipse, 5))
	noStroke.Common().StrokeWidth = 0

	cmds := CompileDrawCommands(p, 0, 1, tenPerRune)[1:]

	if r := cmds[0].Radius; r != 8 {
		t.Errorf("rect radius = %g, want 8", r)
	}
	tw, th := tri.Common().W, tri.Common().H
	if pts := cmds[1].Points; len(pts) != 3 || pts[0] != (Point{tw / 2, 0}) || pts[2] != (Point{tw, th}) {
		t.Errorf("triangle points = %v", pts)
	}
	lc := cmds[2]
	lh := line.Common().H
	if lc.Op != OpLine || lc.Fill != "" || lc.StrokeWidth != 6 || lc.Points[0] != (Point{0, lh / 2}) {
		t.Errorf("line = %+v", lc)
	}
	tc := cmds[3]
	if tc.Op != OpText || len(tc.Lines) == 0 || tc.Lines[0].X != txt.W || tc.Lines[0].Y != txt.Size || tc.Stroke != "" {
		t.Errorf("text = %+v", tc)
	}
	if ec := cmds[4]; ec.Stroke != "" || ec.StrokeWidth != 0 {
		t.Errorf("zero-width stroke kept: %+v", ec)
	}
}

func TestHasFill(t *testing.T) {
	for fill, want := range map[string]bool{"": false, "transparent": false, "none": false, "#fff": true} {
		if got := HasFill(fill); got != want {
			t.Errorf("HasFill(%q) = %v", fill, got)
		}
	}
}

func TestDrawCommandsToJSONOmitsPixels(t *testing.T) {
	p := document.NewPage(document.DefaultPreset)
	p.Add(document.NewImageObject(document.Placeholder([]byte("x"), 40, 20), 1))
	out, err := DrawCommandsToJSON(CompileDrawCommands(p, 0, 1, nil))
	if err != nil {
		t.Fatal(err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatal(err)
	}
	img := decoded[1]
	if img["op"] != OpImage || img["imageWidth"] != float64(40) || img["imageHeight"] != float64(20) {
		t.Errorf("image command = %v", img)
	}
	tr, _ := img["transform"].([]any)
	if len(tr) != 6 || math.IsNaN(tr[0].(float64)) {
		t.Errorf("transform = %v", img["transform"])
	}
}
