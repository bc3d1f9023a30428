package document

import (
	"errors"
	"testing"
)

func ids(p *Page) []int {
	out := make([]int, len(p.Objects))
	for i, o := range p.Objects {
		out[i] = o.Common().ID
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAddAssignsMonotonicIDs(t *testing.T) {
	p := NewPage(DefaultPreset)
	p.Add(NewObject(KindRect, p.NextID))
	p.Add(NewObject(KindEllipse, p.NextID))
	if got := ids(p); !equalInts(got, []int{1, 2}) {
		t.Fatalf("ids = %v, want [1 2]", got)
	}

	p.Remove(2)
	p.Add(NewObject(KindText, p.NextID))
	if got := ids(p); !equalInts(got, []int{1, 3}) {
		t.Fatalf("ids after remove+add = %v, want [1 3] (ids must not be reused)", got)
	}
}

func TestFindAndRemove(t *testing.T) {
	p := NewPage(DefaultPreset)
	p.Add(NewObject(KindRect, p.NextID))

	if _, _, ok := p.Find(7); ok {
		t.Fatal("Find(7) found an object on a page without one")
	}
	o, idx, ok := p.Find(1)
	if !ok || idx != 0 || o.Kind() != KindRect {
		t.Fatalf("Find(1) = %v, %d, %v", o, idx, ok)
	}
	if p.Remove(7) {
		t.Fatal("Remove(7) reported success")
	}
	if !p.Remove(1) || len(p.Objects) != 0 {
		t.Fatalf("Remove(1) left %d objects", len(p.Objects))
	}
}

func TestReorder(t *testing.T) {
	tests := []struct {
		name    string
		id      int
		dir     Direction
		want    []int
		changed bool
	}{
		{"forward from bottom", 1, Forward, []int{2, 1, 3}, true},
		{"backward from top", 3, Backward, []int{1, 3, 2}, true},
		{"forward at top", 3, Forward, []int{1, 2, 3}, false},
		{"backward at bottom", 1, Backward, []int{1, 2, 3}, false},
		{"missing id", 9, Forward, []int{1, 2, 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPage(DefaultPreset)
			for i := 0; i < 3; i++ {
				p.Add(NewObject(KindRect, p.NextID))
			}
			if can := p.CanReorder(tt.id, tt.dir); can != tt.changed {
				t.Errorf("CanReorder = %v, want %v", can, tt.changed)
			}
			if got := p.Reorder(tt.id, tt.dir); got != tt.changed {
				t.Errorf("Reorder = %v, want %v", got, tt.changed)
			}
			if got := ids(p); !equalInts(got, tt.want) {
				t.Errorf("order = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeletePageRejectsLastPage(t *testing.T) {
	doc := NewDocument(DefaultPreset)
	only := doc.Pages[0]

	err := doc.DeletePage(0)
	if !errors.Is(err, ErrLastPage) {
		t.Fatalf("DeletePage = %v, want ErrLastPage", err)
	}
	if len(doc.Pages) != 1 || doc.Pages[0] != only {
		t.Fatal("rejected delete changed the page set")
	}
}

func TestDeleteAndInsertPage(t *testing.T) {
	doc := NewDocument(DefaultPreset)
	second := NewPage(DefaultPreset)
	if err := doc.InsertPage(1, second); err != nil {
		t.Fatal(err)
	}
	if err := doc.InsertPage(5, second); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("InsertPage(5) = %v, want ErrPageOutOfRange", err)
	}
	if err := doc.DeletePage(0); err != nil {
		t.Fatal(err)
	}
	if doc.Pages[0] != second {
		t.Fatal("DeletePage(0) removed the wrong page")
	}
}

func TestDuplicatePageIsDeep(t *testing.T) {
	p := NewPage(DefaultPreset)
	p.Add(NewObject(KindRect, p.NextID))
	p.Add(NewObject(KindText, p.NextID))

	cp, err := DuplicatePage(p)
	if err != nil {
		t.Fatal(err)
	}
	if cp.ID == p.ID {
		t.Error("duplicate kept the source page id")
	}
	if cp.NextID != p.NextID {
		t.Errorf("NextID = %d, want %d", cp.NextID, p.NextID)
	}

	cp.Objects[0].Common().X = 999
	cp.Objects[1].(*Text).Content = "changed"
	if p.Objects[0].Common().X == 999 {
		t.Error("editing the duplicate moved the source object")
	}
	if p.Objects[1].(*Text).Content == "changed" {
		t.Error("editing the duplicate changed the source text")
	}
}

func TestTemplateApply(t *testing.T) {
	p := NewPage(DefaultPreset)
	p.Add(NewObject(KindRect, p.NextID))

	tpl, err := LookupTemplate("flyer")
	if err != nil {
		t.Fatal(err)
	}
	if err := tpl.Apply(p); err != nil {
		t.Fatal(err)
	}
	if p.Width != 2480 || p.Height != 3508 {
		t.Errorf("size = %gx%g, want a4", p.Width, p.Height)
	}
	if got := ids(p); !equalInts(got, []int{2, 3, 4}) {
		t.Errorf("ids = %v, want [2 3 4]", got)
	}
	title := p.Objects[0].(*Text)
	if title.W != 2480*0.8 || title.Size != 96 {
		t.Errorf("title = %+v", title)
	}
}

func TestLookupPresetUnknown(t *testing.T) {
	if _, err := LookupPreset("billboard"); !errors.Is(err, ErrUnknownPreset) {
		t.Fatalf("LookupPreset = %v, want ErrUnknownPreset", err)
	}
	if got := len(Presets()); got != 5 {
		t.Fatalf("len(Presets()) = %d, want 5", got)
	}
}

func TestNewObjectDefaults(t *testing.T) {
	line := NewObject(KindLine, 1).(*Line)
	if line.W != 300 || line.H != 4 || line.StrokeWidth != 6 || line.Fill != "transparent" {
		t.Errorf("line defaults = %+v", line.Base)
	}
	circle := NewObject(KindEllipse, 2)
	if b := circle.Common(); b.X != 132 || b.W != 220 || b.Fill != "#8b5cf6" {
		t.Errorf("circle defaults = %+v", b)
	}
}
